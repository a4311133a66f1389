package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	exportsvc "meta_report/internal/api/export/service"
	"meta_report/internal/logger"
	"meta_report/internal/utility"
)

// ExportRenderWorker nhận các export task pending, gọi rendering worker bên ngoài
// để render trang báo cáo thành file, lưu artifact vào storage dir và đưa task về
// trạng thái terminal. Chạy định kỳ; mỗi tick drain hết queue pending (tuần tự).
type ExportRenderWorker struct {
	exportService *exportsvc.ExportTaskService
	client        *http.Client
	rendererURL   string
	storageDir    string
	interval      time.Duration
}

// renderRequest là payload gửi cho rendering worker
type renderRequest struct {
	ExportTaskID string `json:"exportTaskId"`
	ReportURL    string `json:"reportUrl"`
	ReportPage   string `json:"reportPage"`
	BranchID     string `json:"branchId,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`
}

// NewExportRenderWorker tạo mới ExportRenderWorker.
// Tham số:
//   - rendererURL: Endpoint của rendering worker
//   - storageDir: Thư mục gốc lưu artifact (đường dẫn trong DB lưu relative so với đây)
//   - interval: Khoảng thời gian giữa các lần quét queue (mặc định: 5 giây)
func NewExportRenderWorker(rendererURL, storageDir string, interval time.Duration) (*ExportRenderWorker, error) {
	exportService, err := exportsvc.NewExportTaskService()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &ExportRenderWorker{
		exportService: exportService,
		client:        &http.Client{Timeout: 5 * time.Minute},
		rendererURL:   rendererURL,
		storageDir:    storageDir,
		interval:      interval,
	}, nil
}

// Start chạy worker trong vòng lặp: mỗi interval claim lần lượt các task pending
// và render từng task cho đến khi queue rỗng.
func (w *ExportRenderWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval":    w.interval.String(),
		"rendererUrl": w.rendererURL,
		"storageDir":  w.storageDir,
	}).Info("🖨️ [EXPORT_RENDER] Starting Export Render Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🖨️ [EXPORT_RENDER] Export Render Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🖨️ [EXPORT_RENDER] Panic khi render export task, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()
				w.drainPending(ctx)
			}()
		}
	}
}

// drainPending claim và render từng task pending cho đến khi queue rỗng hoặc ctx bị hủy
func (w *ExportRenderWorker) drainPending(ctx context.Context) {
	log := logger.GetAppLogger()

	for ctx.Err() == nil {
		task, err := w.exportService.ClaimPending(ctx)
		if err != nil {
			log.WithError(err).Error("🖨️ [EXPORT_RENDER] Lỗi claim export task")
			return
		}
		if task == nil {
			return
		}

		relPath, size, err := w.render(ctx, task.ExportTaskID, task.TenantID, renderRequest{
			ExportTaskID: task.ExportTaskID,
			ReportURL:    task.ReportURL,
			ReportPage:   task.ReportPage,
			BranchID:     task.BranchID,
			Timezone:     task.Timezone,
			StartTime:    task.StartTime,
			EndTime:      task.EndTime,
		})
		if err != nil {
			log.WithFields(map[string]interface{}{
				"exportTaskId": task.ExportTaskID,
				"tenantId":     task.TenantID,
			}).WithError(err).Error("🖨️ [EXPORT_RENDER] Render thất bại")
			if markErr := w.exportService.MarkFailed(ctx, task.ExportTaskID, err.Error()); markErr != nil {
				log.WithError(markErr).Error("🖨️ [EXPORT_RENDER] Lỗi đánh dấu task failed")
			}
			continue
		}

		if err := w.exportService.MarkCompleted(ctx, task.ExportTaskID, relPath); err != nil {
			log.WithError(err).Error("🖨️ [EXPORT_RENDER] Lỗi đánh dấu task completed")
			continue
		}

		log.WithFields(map[string]interface{}{
			"exportTaskId": task.ExportTaskID,
			"tenantId":     task.TenantID,
			"filePath":     relPath,
			"fileSize":     utility.FormatBytes(uint64(size)),
		}).Info("🖨️ [EXPORT_RENDER] Export task completed")
	}
}

// render gọi rendering worker và ghi artifact xuống storage dir.
// Trả về đường dẫn relative của file và kích thước (bytes).
func (w *ExportRenderWorker) render(ctx context.Context, exportTaskID, tenantID string, payload renderRequest) (string, int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.rendererURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("call renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, fmt.Errorf("renderer returned status %d: %s", resp.StatusCode, string(respBody))
	}

	// Artifact lưu theo tenant: <storageDir>/<tenantId>/<exportTaskId>.pdf
	relPath := filepath.Join(tenantID, exportTaskID+".pdf")
	absPath := filepath.Join(w.storageDir, relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("create storage dir: %w", err)
	}

	out, err := os.Create(absPath)
	if err != nil {
		return "", 0, fmt.Errorf("create artifact file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, resp.Body)
	if err != nil {
		os.Remove(absPath)
		return "", 0, fmt.Errorf("write artifact: %w", err)
	}

	return relPath, size, nil
}
