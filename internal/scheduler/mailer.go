package scheduler

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	exportmodels "meta_report/internal/api/export/models"
	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/logger"
)

// NotifyResult là kết quả gửi email tổng hợp của một run.
type NotifyResult struct {
	Success      bool
	ErrorMessage string
	Attachments  []schedmodels.EmailAttachment
}

// Mailer là notification aggregator: gom tất cả artifact thành công của một run
// vào đúng MỘT email kèm manifest. Partial success (thiếu vài artifact) vẫn gửi;
// zero artifact được coordinator xử lý là not_sent trước khi gọi tới đây.
type Mailer struct {
	transport  Transport
	storageDir string // Gốc absolute của storage; artifact path trong record là relative so với đây
}

// NewMailer tạo mailer với transport và storage dir cho việc convert path.
func NewMailer(transport Transport, storageDir string) *Mailer {
	return &Mailer{
		transport:  transport,
		storageDir: storageDir,
	}
}

// SendReport gửi một email duy nhất chứa toàn bộ artifact thành công của run.
// Record lưu path dạng relative; transport cần absolute — convert tại đây.
// Không retry: transport fail trả về Success=false với thông điệp lỗi.
func (m *Mailer) SendReport(task *schedmodels.ScheduledTask, exports []*exportmodels.ExportTask) NotifyResult {
	log := logger.GetAppLogger()

	attachments := make([]schedmodels.EmailAttachment, 0, len(exports))
	transportAttachments := make([]Attachment, 0, len(exports))
	for _, export := range exports {
		filename := filepath.Base(export.FilePath)
		attachments = append(attachments, schedmodels.EmailAttachment{
			Filename: filename,
			Path:     export.FilePath,
		})
		transportAttachments = append(transportAttachments, Attachment{
			Filename: filename,
			Path:     filepath.Join(m.storageDir, export.FilePath),
		})
	}

	subject := fmt.Sprintf("Báo cáo tự động %s - %s", task.TenantID, time.Now().Format("2006-01-02"))
	text, html := buildManifest(task, attachments)

	if err := m.transport.SendEmail(task.Recipients, subject, text, html, transportAttachments); err != nil {
		log.WithFields(logrus.Fields{
			"taskId":      task.TaskID,
			"tenantId":    task.TenantID,
			"recipients":  len(task.Recipients),
			"attachments": len(attachments),
		}).WithError(err).Error("📧 [REPORT_MAIL] Failed to send report email")
		return NotifyResult{
			Success:      false,
			ErrorMessage: err.Error(),
			Attachments:  attachments,
		}
	}

	log.WithFields(logrus.Fields{
		"taskId":      task.TaskID,
		"tenantId":    task.TenantID,
		"recipients":  len(task.Recipients),
		"attachments": len(attachments),
	}).Info("📧 [REPORT_MAIL] Report email sent")

	return NotifyResult{
		Success:     true,
		Attachments: attachments,
	}
}

// SendFailureNotification gửi email best-effort báo cả run thất bại.
// Lỗi của chính nó chỉ log, không bao giờ propagate.
func (m *Mailer) SendFailureNotification(task *schedmodels.ScheduledTask, runErr error) {
	log := logger.GetAppLogger()

	if len(task.Recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("Xuất báo cáo tự động thất bại - %s", task.TenantID)
	text := fmt.Sprintf(
		"Lần xuất báo cáo tự động của task %s (tenant %s) đã thất bại.\n\nLỗi: %v\n",
		task.TaskID, task.TenantID, runErr,
	)
	html := fmt.Sprintf(
		"<p>Lần xuất báo cáo tự động của task <b>%s</b> (tenant <b>%s</b>) đã thất bại.</p><p>Lỗi: %v</p>",
		task.TaskID, task.TenantID, runErr,
	)

	if err := m.transport.SendEmail(task.Recipients, subject, text, html, nil); err != nil {
		log.WithFields(logrus.Fields{
			"taskId":   task.TaskID,
			"tenantId": task.TenantID,
		}).WithError(err).Warn("📧 [REPORT_MAIL] Failed to send failure notification (swallowed)")
	}
}

// buildManifest dựng nội dung email: danh sách tên file đính kèm dạng text và HTML.
func buildManifest(task *schedmodels.ScheduledTask, attachments []schedmodels.EmailAttachment) (text string, html string) {
	var textSb strings.Builder
	var htmlSb strings.Builder

	textSb.WriteString(fmt.Sprintf("Báo cáo tự động (%s) đính kèm %d file:\n\n", task.Frequency, len(attachments)))
	htmlSb.WriteString(fmt.Sprintf("<p>Báo cáo tự động (<b>%s</b>) đính kèm %d file:</p><ul>", task.Frequency, len(attachments)))

	for i, a := range attachments {
		textSb.WriteString(fmt.Sprintf("%d. %s\n", i+1, a.Filename))
		htmlSb.WriteString(fmt.Sprintf("<li>%s</li>", a.Filename))
	}
	htmlSb.WriteString("</ul>")

	return textSb.String(), htmlSb.String()
}
