package worker

import (
	"context"
	"time"

	exportsvc "meta_report/internal/api/export/service"
	schedsvc "meta_report/internal/api/scheduler/service"
	"meta_report/internal/logger"
)

// ExecutionCleanupWorker xóa execution record và export task cũ hơn retention.
// Chạy định kỳ (mặc định 24 giờ) để hai collection không phình ra vô hạn.
type ExecutionCleanupWorker struct {
	executionService *schedsvc.TaskExecutionService
	exportService    *exportsvc.ExportTaskService
	retention        time.Duration
	interval         time.Duration
}

// NewExecutionCleanupWorker tạo mới ExecutionCleanupWorker.
// Tham số:
//   - retentionDays: Số ngày giữ lại bản ghi (mặc định: 90)
//   - interval: Khoảng thời gian giữa các lần quét (mặc định: 24 giờ)
func NewExecutionCleanupWorker(retentionDays int, interval time.Duration) (*ExecutionCleanupWorker, error) {
	executionService, err := schedsvc.NewTaskExecutionService()
	if err != nil {
		return nil, err
	}
	exportService, err := exportsvc.NewExportTaskService()
	if err != nil {
		return nil, err
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	if interval < time.Hour {
		interval = 24 * time.Hour
	}

	return &ExecutionCleanupWorker{
		executionService: executionService,
		exportService:    exportService,
		retention:        time.Duration(retentionDays) * 24 * time.Hour,
		interval:         interval,
	}, nil
}

// Start chạy worker trong vòng lặp: mỗi interval purge các bản ghi quá retention
func (w *ExecutionCleanupWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"retention": w.retention.String(),
		"interval":  w.interval.String(),
	}).Info("🧹 [EXECUTION_CLEANUP] Starting Execution Cleanup Worker...")

	// Purge một lần ngay khi khởi động rồi mới vào nhịp ticker
	w.purge(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("🧹 [EXECUTION_CLEANUP] Execution Cleanup Worker stopped")
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

// purge xóa execution record và export task terminal có mốc thời gian trước cutoff
func (w *ExecutionCleanupWorker) purge(ctx context.Context) {
	log := logger.GetAppLogger()
	cutoff := time.Now().Add(-w.retention).UnixMilli()

	deletedExec, err := w.executionService.PurgeBefore(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("🧹 [EXECUTION_CLEANUP] Lỗi purge execution records")
	}

	deletedExports, err := w.exportService.PurgeTerminalBefore(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("🧹 [EXECUTION_CLEANUP] Lỗi purge export tasks")
	}

	if deletedExec > 0 || deletedExports > 0 {
		log.WithFields(map[string]interface{}{
			"deletedExecutions": deletedExec,
			"deletedExports":    deletedExports,
			"cutoff":            cutoff,
		}).Info("🧹 [EXECUTION_CLEANUP] Purged old records")
	}
}
