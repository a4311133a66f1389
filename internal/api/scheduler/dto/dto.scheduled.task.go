package dto

// UpsertScheduledTaskInput dùng cho enable/cập nhật lịch xuất báo cáo của một tenant
// Đây là contract cho Frontend - tenant lấy từ header X-Tenant-ID, không nằm trong body
type UpsertScheduledTaskInput struct {
	Enable    bool     `json:"enable"`                                               // Bật/tắt lịch
	Frequency string   `json:"frequency" validate:"omitempty,report_frequency"`      // daily | weekly | monthly - Optional (default: daily)
	Time      string   `json:"time,omitempty"`                                       // Giờ fire dạng HH:mm - Optional (default: 09:00)
	Timezone  string   `json:"timezone,omitempty" validate:"omitempty,timezone"`     // IANA timezone - Optional (default theo server)
	Recipient []string `json:"recipient,omitempty" validate:"omitempty,dive,email"`  // Danh sách email nhận báo cáo
	PageIDs   []string `json:"pageIds,omitempty"`                                    // Các trang báo cáo cần xuất
	BranchIDs []string `json:"branchIds,omitempty"`                                  // Các chi nhánh, rỗng = không có chiều branch
}

// ScheduledTaskParams chứa path param của các route /scheduled-tasks/:taskId/...
type ScheduledTaskParams struct {
	TaskID string `uri:"taskId" validate:"required"` // Task id, hiện tại luôn là auto_report_export
}

// ListExecutionsQuery chứa query param của route GET /scheduled-tasks/:taskId/executions
type ListExecutionsQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=success failed"` // Filter theo trạng thái run - Optional
}
