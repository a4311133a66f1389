// Package models - ScheduledTask thuộc domain Scheduler.
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskIDAutoReportExport là task id cố định của hệ thống.
// Hiện tại mỗi tenant chỉ có đúng một logical task (xuất báo cáo tự động).
const TaskIDAutoReportExport = "auto_report_export"

// Các giá trị frequency hợp lệ
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ScheduledTask lưu cấu hình lịch xuất báo cáo của một tenant (report_scheduled_tasks).
// Uniqueness theo cặp (taskId, tenantId) — taskId đơn lẻ KHÔNG unique giữa các tenant.
type ScheduledTask struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`        // MongoDB _id
	TaskID         string             `json:"taskId" bson:"taskId"`                     // Task id cố định (auto_report_export)
	TenantID       string             `json:"tenantId" bson:"tenantId"`                 // Tenant sở hữu lịch
	Enable         bool               `json:"enable" bson:"enable"`                     // false = lịch ngủ đông, các field khác có thể stale
	Frequency      string             `json:"frequency" bson:"frequency" default:"daily"` // daily | weekly | monthly
	Time           string             `json:"time" bson:"time" default:"09:00"`         // Giờ chạy "HH:MM" theo timezone
	Timezone       string             `json:"timezone,omitempty" bson:"timezone,omitempty"` // IANA timezone, rỗng = default của hệ thống
	Recipients     []string           `json:"recipient" bson:"recipient"`               // Danh sách email nhận báo cáo
	PageIDs        []string           `json:"pageIds" bson:"pageIds"`                   // Các trang báo cáo cần xuất
	BranchIDs      []string           `json:"branchIds" bson:"branchIds"`               // Chi nhánh xuất theo từng trang, rỗng = một export mỗi trang
	CronExpression string             `json:"cronExpression" bson:"cronExpression"`     // Derive từ frequency + time, không nhận từ user
	CreatedAt      int64              `json:"createdAt" bson:"createdAt"`               // Unix milliseconds
	UpdatedAt      int64              `json:"updatedAt" bson:"updatedAt"`               // Unix milliseconds
}

// Key trả về khóa định danh duy nhất của task trong registry.
func (t *ScheduledTask) Key() string {
	return t.TaskID + "|" + t.TenantID
}
