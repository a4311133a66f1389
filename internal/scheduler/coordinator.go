package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	exportmodels "meta_report/internal/api/export/models"
	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/logger"
)

// Coordinator điều phối trọn vẹn MỘT run của scheduled task: tạo execution record,
// duyệt tuần tự từng page và từng branch (một sub-task in-flight tại một thời điểm
// để chặn áp lực bộ nhớ/CPU từ renderer), gom artifact thành công, gửi email tổng hợp
// và finalize record. Mọi lỗi được nuốt vào record — registry không bao giờ nhận exception.
type Coordinator struct {
	executions ExecutionStore
	driver     *SubTaskDriver
	mailer     *Mailer
	defaultLoc *time.Location
}

// NewCoordinator tạo coordinator cho một hệ scheduler.
func NewCoordinator(executions ExecutionStore, driver *SubTaskDriver, mailer *Mailer, defaultLoc *time.Location) *Coordinator {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Coordinator{
		executions: executions,
		driver:     driver,
		mailer:     mailer,
		defaultLoc: defaultLoc,
	}
}

// Run chạy một lần thực thi đầy đủ. Không bao giờ panic và không trả lỗi ra caller:
// từ góc nhìn của cron registry run luôn "thành công", kết quả thật nằm trong
// execution record. Hai run chồng lấn của cùng task tạo hai record độc lập —
// không có mutual exclusion giữa các run (chủ đích, xem execution record để quan sát).
func (c *Coordinator) Run(ctx context.Context, task *schedmodels.ScheduledTask) {
	log := logger.WithTask(task.TaskID, task.TenantID)

	now := time.Now()
	record := &schedmodels.TaskExecutionRecord{
		TaskID:           task.TaskID,
		TenantID:         task.TenantID,
		Status:           schedmodels.ExecutionStatusSuccess, // optimistic, hạ xuống failed khi có lỗi run-level
		TriggeredAt:      now.UnixMilli(),
		StartTime:        now.UnixMilli(),
		EmailStatus:      schedmodels.EmailStatusNotSent,
		EmailAttachments: []schedmodels.EmailAttachment{},
		Recipients:       append([]string{}, task.Recipients...),
	}

	defer func() {
		if r := recover(); r != nil {
			c.handleRunFailure(ctx, task, record, fmt.Errorf("panic: %v", r), debug.Stack())
		}
	}()

	log.WithFields(logrus.Fields{
		"pages":    len(task.PageIDs),
		"branches": len(task.BranchIDs),
	}).Info("🗓️ [REPORT_RUN] Starting scheduled report run")

	created, err := c.executions.Create(ctx, record)
	if err != nil {
		c.handleRunFailure(ctx, task, record, fmt.Errorf("create execution record: %w", err), debug.Stack())
		return
	}
	record = created

	// Cửa sổ dữ liệu theo timezone của task
	loc := ResolveLocation(task.Timezone, c.defaultLoc)
	window := ComputeWindow(task.Frequency, loc)

	// Fan-out tuần tự: từng page, từng branch, một sub-task tại một thời điểm
	successes := c.runExports(ctx, task, window, record)

	// Một email duy nhất cho cả run; không có artifact hoặc không có recipient = not_sent
	if len(successes) > 0 && len(task.Recipients) > 0 {
		result := c.mailer.SendReport(task, successes)
		record.EmailAttachments = result.Attachments
		if result.Success {
			record.EmailStatus = schedmodels.EmailStatusSuccess
		} else {
			record.EmailStatus = schedmodels.EmailStatusFailed
			record.EmailErrorMessage = result.ErrorMessage
		}
	}

	c.finalize(ctx, record)

	log.WithFields(logrus.Fields{
		"totalExports":      record.TotalExports,
		"successfulExports": record.SuccessfulExports,
		"emailStatus":       record.EmailStatus,
		"durationMs":        record.Duration,
	}).Info("🗓️ [REPORT_RUN] Scheduled report run finished")
}

// runExports duyệt ma trận {page × branch} tuần tự, trả về danh sách sub-task thành công.
// totalExports tăng TRƯỚC khi chờ sub-task, successfulExports tăng khi có kết quả non-nil.
// pageIds rỗng = bỏ qua export hoàn toàn (record giữ số 0).
func (c *Coordinator) runExports(ctx context.Context, task *schedmodels.ScheduledTask, window Window, record *schedmodels.TaskExecutionRecord) []*exportmodels.ExportTask {
	var successes []*exportmodels.ExportTask

	branchIDs := task.BranchIDs
	if len(branchIDs) == 0 {
		// Không có chiều branch: một export duy nhất cho mỗi page
		branchIDs = []string{""}
	}

	for _, pageID := range task.PageIDs {
		for _, branchID := range branchIDs {
			record.TotalExports++
			if result := c.driver.Run(ctx, task, window, pageID, branchID); result != nil {
				record.SuccessfulExports++
				successes = append(successes, result)
			}
		}
	}

	return successes
}

// handleRunFailure xử lý lỗi run-level: hạ status xuống failed, bắt message + stack
// vào record, gửi failure notification best-effort rồi finalize. Lỗi không propagate.
func (c *Coordinator) handleRunFailure(ctx context.Context, task *schedmodels.ScheduledTask, record *schedmodels.TaskExecutionRecord, runErr error, stack []byte) {
	logger.WithTask(task.TaskID, task.TenantID).
		WithError(runErr).Error("🗓️ [REPORT_RUN] Run failed with uncaught error")

	record.Status = schedmodels.ExecutionStatusFailed
	record.ErrorMessage = runErr.Error()
	record.ErrorStack = string(stack)

	// Best-effort, lỗi gửi mail được nuốt bên trong mailer
	c.mailer.SendFailureNotification(task, runErr)

	c.finalize(ctx, record)
}

// finalize chốt record: endTime, duration, persist đúng một lần.
// Lỗi persist ở bước này chỉ còn log được — record không bao giờ sửa sau finalize.
func (c *Coordinator) finalize(ctx context.Context, record *schedmodels.TaskExecutionRecord) {
	record.EndTime = time.Now().UnixMilli()
	record.Duration = record.EndTime - record.StartTime

	if err := c.executions.Finalize(ctx, record); err != nil {
		logger.GetErrorLogger().WithFields(logrus.Fields{
			"taskId":   record.TaskID,
			"tenantId": record.TenantID,
		}).WithError(err).Error("🗓️ [REPORT_RUN] Failed to persist execution record")
	}
}
