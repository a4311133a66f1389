// Package models - ExportTask thuộc domain Export.
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái của một export task
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// IsTerminal kiểm tra status có phải trạng thái kết thúc không (không còn chuyển tiếp).
func IsTerminal(status string) bool {
	return status == ExportStatusCompleted || status == ExportStatusFailed
}

// ExportTask là một job render báo cáo cho một cặp (page, branch) (report_export_tasks).
// Scheduler tạo và poll task này; render worker nhận pending task, gọi renderer
// và đưa task về trạng thái terminal.
type ExportTask struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`                    // MongoDB _id
	ExportTaskID string             `json:"exportTaskId" bson:"exportTaskId"`                     // Id nghiệp vụ (uuid), dùng để poll
	TenantID     string             `json:"tenantId" bson:"tenantId"`                             // Tenant sở hữu
	TaskName     string             `json:"taskName" bson:"taskName"`                             // Tên hiển thị của job
	ReportPage   string             `json:"reportPage" bson:"reportPage"`                         // Trang báo cáo cần render
	BranchID     string             `json:"branchId,omitempty" bson:"branchId,omitempty"`         // Chi nhánh, rỗng = không có chiều branch
	ReportURL    string             `json:"reportUrl" bson:"reportUrl"`                           // URL trang báo cáo đưa cho renderer
	Timezone     string             `json:"timezone,omitempty" bson:"timezone,omitempty"`         // Timezone của cửa sổ dữ liệu
	StartTime    int64              `json:"startTime" bson:"startTime"`                           // Đầu cửa sổ dữ liệu (Unix milliseconds)
	EndTime      int64              `json:"endTime" bson:"endTime"`                               // Cuối cửa sổ dữ liệu (Unix milliseconds)
	Status       string             `json:"status" bson:"status" default:"pending"`               // pending | processing | completed | failed
	FilePath     string             `json:"filePath,omitempty" bson:"filePath,omitempty"`         // Đường dẫn relative của artifact khi completed
	ErrorMessage string             `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"` // Lý do fail
	CreatedAt    int64              `json:"createdAt" bson:"createdAt"`                           // Unix milliseconds
	UpdatedAt    int64              `json:"updatedAt" bson:"updatedAt"`                           // Unix milliseconds
}
