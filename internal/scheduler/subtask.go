package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	exportmodels "meta_report/internal/api/export/models"
	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/logger"
)

// SubTaskDriver chạy một export sub-task cho một cặp (page, branch) tới kết quả cuối:
// tạo job qua ExportCollaborator, poll tới trạng thái terminal, retry với exponential
// backoff khi fail/timeout. Component này không bao giờ ném lỗi ra ngoài — luôn trả về
// sub-task thành công hoặc nil.
type SubTaskDriver struct {
	exports       ExportCollaborator
	reportBaseURL string        // Base URL của trang báo cáo
	retryMax      int           // Số lần retry tối đa (tổng số attempt = retryMax + 1)
	pollInterval  time.Duration // Khoảng cách giữa hai lần poll
	maxWait       time.Duration // Tổng thời gian chờ tối đa cho một attempt
	backoffBase   time.Duration // Backoff attempt 0
	backoffCap    time.Duration // Trần backoff
}

// NewSubTaskDriver tạo driver với tham số mặc định của hệ thống:
// poll 2s, chờ tối đa 10 phút, retry 3 lần, backoff min(1000*2^attempt, 10000) ms.
func NewSubTaskDriver(exports ExportCollaborator, reportBaseURL string, retryMax int, pollIntervalMs, maxWaitSec int) *SubTaskDriver {
	if retryMax < 0 {
		retryMax = 3
	}
	if pollIntervalMs <= 0 {
		pollIntervalMs = 2000
	}
	if maxWaitSec <= 0 {
		maxWaitSec = 600
	}
	return &SubTaskDriver{
		exports:       exports,
		reportBaseURL: reportBaseURL,
		retryMax:      retryMax,
		pollInterval:  time.Duration(pollIntervalMs) * time.Millisecond,
		maxWait:       time.Duration(maxWaitSec) * time.Second,
		backoffBase:   time.Second,
		backoffCap:    10 * time.Second,
	}
}

// Run chạy một sub-task tới kết quả cuối cùng.
// Trả về sub-task completed (có FilePath) hoặc nil khi đã hết retry.
// Mỗi lần retry tạo sub-task MỚI từ đầu (id mới), không dùng lại job cũ.
func (d *SubTaskDriver) Run(ctx context.Context, task *schedmodels.ScheduledTask, window Window, pageID, branchID string) *exportmodels.ExportTask {
	log := logger.GetAppLogger()

	spec := ExportSpec{
		TaskName:   fmt.Sprintf("%s - %s", task.TaskID, pageID),
		ReportPage: pageID,
		BranchID:   branchID,
		ReportURL:  d.buildReportURL(pageID, branchID, window),
		Timezone:   task.Timezone,
		StartTime:  window.Start.UnixMilli(),
		EndTime:    window.End.UnixMilli(),
	}

	for attempt := 0; ; attempt++ {
		result, err := d.runAttempt(ctx, spec, task.TenantID)
		if err == nil {
			return result
		}

		log.WithFields(logrus.Fields{
			"taskId":   task.TaskID,
			"tenantId": task.TenantID,
			"pageId":   pageID,
			"branchId": branchID,
			"attempt":  attempt,
		}).WithError(err).Warn("📤 [EXPORT_SUBTASK] Export attempt failed")

		if attempt >= d.retryMax {
			log.WithFields(logrus.Fields{
				"taskId":   task.TaskID,
				"tenantId": task.TenantID,
				"pageId":   pageID,
				"branchId": branchID,
				"attempts": attempt + 1,
			}).Error("📤 [EXPORT_SUBTASK] Export failed after all retries, skipping artifact")
			return nil
		}

		if !sleepCtx(ctx, d.backoff(attempt)) {
			return nil
		}
	}
}

// runAttempt thực hiện đúng một attempt: tạo sub-task mới rồi poll tới terminal.
// Trả về lỗi cho mọi kết quả không phải completed-có-file (failed, timeout, lỗi collaborator).
func (d *SubTaskDriver) runAttempt(ctx context.Context, spec ExportSpec, tenantID string) (*exportmodels.ExportTask, error) {
	created, err := d.exports.CreateExportTask(ctx, spec, tenantID)
	if err != nil {
		return nil, fmt.Errorf("create export task: %w", err)
	}

	terminal, err := d.pollUntilTerminal(ctx, created.ExportTaskID, tenantID)
	if err != nil {
		return nil, err
	}

	if terminal.Status == exportmodels.ExportStatusCompleted && terminal.FilePath != "" {
		return terminal, nil
	}
	if terminal.ErrorMessage != "" {
		return nil, fmt.Errorf("export task %s failed: %s", terminal.ExportTaskID, terminal.ErrorMessage)
	}
	return nil, fmt.Errorf("export task %s finished without artifact (status=%s)", terminal.ExportTaskID, terminal.Status)
}

// pollUntilTerminal poll trạng thái sub-task mỗi pollInterval cho tới khi terminal
// hoặc vượt quá maxWait (coi là lỗi để retry).
func (d *SubTaskDriver) pollUntilTerminal(ctx context.Context, exportTaskID, tenantID string) (*exportmodels.ExportTask, error) {
	deadline := time.Now().Add(d.maxWait)

	for {
		subTask, err := d.exports.FindOne(ctx, exportTaskID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("poll export task %s: %w", exportTaskID, err)
		}
		if exportmodels.IsTerminal(subTask.Status) {
			return subTask, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("export task %s timed out after %s", exportTaskID, d.maxWait)
		}
		if !sleepCtx(ctx, d.pollInterval) {
			return nil, ctx.Err()
		}
	}
}

// backoff tính thời gian chờ trước retry: min(backoffBase * 2^attempt, backoffCap).
func (d *SubTaskDriver) backoff(attempt int) time.Duration {
	delay := d.backoffBase
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= d.backoffCap {
			return d.backoffCap
		}
	}
	if delay > d.backoffCap {
		return d.backoffCap
	}
	return delay
}

// buildReportURL dựng URL trang báo cáo cho renderer, kèm branch và cửa sổ thời gian.
func (d *SubTaskDriver) buildReportURL(pageID, branchID string, window Window) string {
	q := url.Values{}
	q.Set("from", fmt.Sprintf("%d", window.Start.UnixMilli()))
	q.Set("to", fmt.Sprintf("%d", window.End.UnixMilli()))
	if branchID != "" {
		q.Set("branchId", branchID)
	}
	return fmt.Sprintf("%s/reports/%s?%s", d.reportBaseURL, url.PathEscape(pageID), q.Encode())
}

// sleepCtx chờ d hoặc tới khi ctx bị hủy. Trả về false nếu ctx hủy trước.
func sleepCtx(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
