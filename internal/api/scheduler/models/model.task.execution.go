// Package models - TaskExecutionRecord thuộc domain Scheduler.
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái của một lần thực thi
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// Trạng thái gửi email của một lần thực thi
const (
	EmailStatusSuccess = "success"
	EmailStatusFailed  = "failed"
	EmailStatusNotSent = "not_sent"
)

// EmailAttachment là một file đính kèm trong email báo cáo.
// Path lưu dạng relative so với storage dir; mailer convert sang absolute khi gửi.
type EmailAttachment struct {
	Filename string `json:"filename" bson:"filename"` // Tên file hiển thị
	Path     string `json:"path" bson:"path"`         // Đường dẫn relative trong storage
}

// TaskExecutionRecord lưu kết quả một lần chạy của scheduled task (report_task_executions).
// Một bản ghi mỗi run (không phải mỗi sub-task). Append-mostly: tạo lúc bắt đầu run,
// finalize đúng một lần lúc kết thúc, sau đó immutable.
type TaskExecutionRecord struct {
	ID                primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`                            // MongoDB _id
	TaskID            string             `json:"taskId" bson:"taskId"`                                         // Task id
	TenantID          string             `json:"tenantId" bson:"tenantId"`                                     // Tenant sở hữu
	Status            string             `json:"status" bson:"status" default:"success"`                       // success | failed (optimistic success lúc tạo)
	TriggeredAt       int64              `json:"triggeredAt" bson:"triggeredAt"`                               // Thời điểm trigger (Unix milliseconds)
	StartTime         int64              `json:"startTime" bson:"startTime"`                                   // Bắt đầu run (Unix milliseconds)
	EndTime           int64              `json:"endTime,omitempty" bson:"endTime,omitempty"`                   // Kết thúc run (Unix milliseconds)
	Duration          int64              `json:"duration,omitempty" bson:"duration,omitempty"`                 // EndTime - StartTime (ms)
	EmailStatus       string             `json:"emailStatus" bson:"emailStatus" default:"not_sent"`            // success | failed | not_sent
	EmailErrorMessage string             `json:"emailErrorMessage,omitempty" bson:"emailErrorMessage,omitempty"` // Lỗi transport nếu gửi fail
	EmailAttachments  []EmailAttachment  `json:"emailAttachments" bson:"emailAttachments"`                     // Các file đã đính kèm
	Recipients        []string           `json:"recipients" bson:"recipients"`                                 // Snapshot recipient tại thời điểm run
	TotalExports      int                `json:"totalExports" bson:"totalExports"`                             // Tổng số sub-task đã tạo
	SuccessfulExports int                `json:"successfulExports" bson:"successfulExports"`                   // Số sub-task thành công
	ErrorMessage      string             `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`         // Chỉ set khi cả run fail
	ErrorStack        string             `json:"errorStack,omitempty" bson:"errorStack,omitempty"`             // Stack trace khi run fail
	CreatedAt         int64              `json:"createdAt" bson:"createdAt"`                                   // Unix milliseconds
	UpdatedAt         int64              `json:"updatedAt" bson:"updatedAt"`                                   // Unix milliseconds
}
