package scheduler

import (
	"context"

	exportmodels "meta_report/internal/api/export/models"
	schedmodels "meta_report/internal/api/scheduler/models"
)

// ExportSpec mô tả một export sub-task cần tạo cho một cặp (page, branch).
type ExportSpec struct {
	TaskName   string // Tên hiển thị của job
	ReportPage string // Trang báo cáo
	BranchID   string // Chi nhánh, rỗng = không có chiều branch
	ReportURL  string // URL trang báo cáo cho renderer
	Timezone   string // Timezone của cửa sổ dữ liệu
	StartTime  int64  // Đầu cửa sổ (Unix milliseconds)
	EndTime    int64  // Cuối cửa sổ (Unix milliseconds)
}

// ExportCollaborator là boundary tới hệ thống export: tạo sub-task mới và poll
// trạng thái. Core chỉ đọc status/filePath, không can thiệp vào quá trình render.
type ExportCollaborator interface {
	CreateExportTask(ctx context.Context, spec ExportSpec, tenantID string) (*exportmodels.ExportTask, error)
	FindOne(ctx context.Context, exportTaskID, tenantID string) (*exportmodels.ExportTask, error)
}

// TaskStore đọc scheduled task từ storage. Registry dùng để re-read khi reschedule
// và load toàn bộ task enabled lúc khởi động.
type TaskStore interface {
	FindByKey(ctx context.Context, taskID, tenantID string) (*schedmodels.ScheduledTask, error)
	FindAllEnabled(ctx context.Context) ([]schedmodels.ScheduledTask, error)
}

// ExecutionStore ghi execution record: tạo lúc bắt đầu run, finalize đúng một lần lúc kết thúc.
type ExecutionStore interface {
	Create(ctx context.Context, record *schedmodels.TaskExecutionRecord) (*schedmodels.TaskExecutionRecord, error)
	Finalize(ctx context.Context, record *schedmodels.TaskExecutionRecord) error
}

// Transport gửi email báo cáo. Attachment.Path là đường dẫn ABSOLUTE trên disk.
type Transport interface {
	SendEmail(recipients []string, subject, textBody, htmlBody string, attachments []Attachment) error
}

// Attachment là một file đính kèm giao cho transport.
type Attachment struct {
	Filename string
	Path     string
}
