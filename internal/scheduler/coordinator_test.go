package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	schedmodels "meta_report/internal/api/scheduler/models"
)

// fakeExecutions giả lập ExecutionStore, ghi lại các record được tạo và finalize.
// Có mutex vì TriggerNow chạy run trên goroutine riêng.
type fakeExecutions struct {
	mu        sync.Mutex
	createErr error
	created   []*schedmodels.TaskExecutionRecord
	finalized []*schedmodels.TaskExecutionRecord
}

func (f *fakeExecutions) Create(ctx context.Context, record *schedmodels.TaskExecutionRecord) (*schedmodels.TaskExecutionRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, record)
	return record, nil
}

func (f *fakeExecutions) Finalize(ctx context.Context, record *schedmodels.TaskExecutionRecord) error {
	copied := *record
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, &copied)
	return nil
}

// FinalizedCount đọc số record đã finalize một cách an toàn giữa các goroutine
func (f *fakeExecutions) FinalizedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finalized)
}

// fakeTransport ghi lại các email đã gửi qua transport.
type fakeTransport struct {
	sendErr error
	sent    []sentMail
}

type sentMail struct {
	recipients  []string
	subject     string
	attachments []Attachment
}

func (f *fakeTransport) SendEmail(recipients []string, subject, textBody, htmlBody string, attachments []Attachment) error {
	f.sent = append(f.sent, sentMail{recipients: recipients, subject: subject, attachments: attachments})
	return f.sendErr
}

func newTestCoordinator(exports ExportCollaborator, executions ExecutionStore, transport Transport) *Coordinator {
	driver := newTestDriver(exports, 1)
	mailer := NewMailer(transport, "/storage/exports")
	return NewCoordinator(executions, driver, mailer, time.UTC)
}

func fullTask() *schedmodels.ScheduledTask {
	return &schedmodels.ScheduledTask{
		TaskID:     schedmodels.TaskIDAutoReportExport,
		TenantID:   "tenant-1",
		Enable:     true,
		Frequency:  schedmodels.FrequencyDaily,
		Timezone:   "Asia/Shanghai",
		Recipients: []string{"boss@example.com"},
		PageIDs:    []string{"doanh-thu", "ton-kho"},
		BranchIDs:  []string{"b1", "b2"},
	}
}

func TestCoordinator_RunThanhCong(t *testing.T) {
	// 2 pages x 2 branches = 4 sub-task, tất cả thành công
	exports := newFakeExports(
		fakeOutcome{status: "completed", filePath: "tenant-1/export-0.pdf"},
		fakeOutcome{status: "completed", filePath: "tenant-1/export-1.pdf"},
		fakeOutcome{status: "completed", filePath: "tenant-1/export-2.pdf"},
		fakeOutcome{status: "completed", filePath: "tenant-1/export-3.pdf"},
	)
	executions := &fakeExecutions{}
	transport := &fakeTransport{}
	coordinator := newTestCoordinator(exports, executions, transport)

	coordinator.Run(context.Background(), fullTask())

	if len(executions.finalized) != 1 {
		t.Fatalf("phải finalize đúng 1 record, got %d", len(executions.finalized))
	}
	record := executions.finalized[0]

	if record.Status != schedmodels.ExecutionStatusSuccess {
		t.Errorf("status phải là success, got %s", record.Status)
	}
	if record.TotalExports != 4 || record.SuccessfulExports != 4 {
		t.Errorf("exports sai: total=%d success=%d, want 4/4", record.TotalExports, record.SuccessfulExports)
	}
	if record.EmailStatus != schedmodels.EmailStatusSuccess {
		t.Errorf("emailStatus phải là success, got %s", record.EmailStatus)
	}
	if len(record.EmailAttachments) != 4 {
		t.Errorf("record phải lưu 4 attachment, got %d", len(record.EmailAttachments))
	}
	if record.EndTime == 0 || record.Duration < 0 {
		t.Errorf("record phải có endTime/duration: end=%d duration=%d", record.EndTime, record.Duration)
	}

	// Đúng MỘT email cho cả run, với path absolute cho transport
	if len(transport.sent) != 1 {
		t.Fatalf("cả run chỉ gửi đúng 1 email, got %d", len(transport.sent))
	}
	mail := transport.sent[0]
	if len(mail.attachments) != 4 {
		t.Errorf("email phải đính kèm 4 file, got %d", len(mail.attachments))
	}
	if mail.attachments[0].Path != "/storage/exports/tenant-1/export-0.pdf" {
		t.Errorf("transport phải nhận path absolute, got %q", mail.attachments[0].Path)
	}
	// Record thì lưu path relative
	if record.EmailAttachments[0].Path != "tenant-1/export-0.pdf" {
		t.Errorf("record phải lưu path relative, got %q", record.EmailAttachments[0].Path)
	}
}

func TestCoordinator_PartialSuccessVanGuiMail(t *testing.T) {
	// Page đầu thành công, page sau fail hết (kể cả retry)
	exports := newFakeExports(
		fakeOutcome{status: "completed", filePath: "tenant-1/export-0.pdf"},
	)
	executions := &fakeExecutions{}
	transport := &fakeTransport{}
	coordinator := newTestCoordinator(exports, executions, transport)

	task := fullTask()
	task.BranchIDs = nil // 2 pages, không có chiều branch

	coordinator.Run(context.Background(), task)

	record := executions.finalized[0]
	if record.Status != schedmodels.ExecutionStatusSuccess {
		t.Errorf("sub-task fail không được lật run status: got %s", record.Status)
	}
	if record.TotalExports != 2 || record.SuccessfulExports != 1 {
		t.Errorf("exports sai: total=%d success=%d, want 2/1", record.TotalExports, record.SuccessfulExports)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("partial success vẫn phải gửi email, got %d", len(transport.sent))
	}
	if len(transport.sent[0].attachments) != 1 {
		t.Errorf("email chỉ đính kèm artifact thành công, got %d", len(transport.sent[0].attachments))
	}
}

func TestCoordinator_ZeroArtifactKhongGuiMail(t *testing.T) {
	exports := newFakeExports() // mọi sub-task fail
	executions := &fakeExecutions{}
	transport := &fakeTransport{}
	coordinator := newTestCoordinator(exports, executions, transport)

	coordinator.Run(context.Background(), fullTask())

	record := executions.finalized[0]
	if record.EmailStatus != schedmodels.EmailStatusNotSent {
		t.Errorf("zero artifact phải là not_sent, got %s", record.EmailStatus)
	}
	if len(transport.sent) != 0 {
		t.Errorf("zero artifact không được gửi email, got %d", len(transport.sent))
	}
	if record.Status != schedmodels.ExecutionStatusSuccess {
		t.Errorf("export fail toàn bộ vẫn không phải run-level failure, got %s", record.Status)
	}
}

func TestCoordinator_KhongCoRecipientKhongGuiMail(t *testing.T) {
	exports := newFakeExports(
		fakeOutcome{status: "completed", filePath: "tenant-1/export-0.pdf"},
	)
	executions := &fakeExecutions{}
	transport := &fakeTransport{}
	coordinator := newTestCoordinator(exports, executions, transport)

	task := fullTask()
	task.Recipients = nil
	task.PageIDs = []string{"doanh-thu"}
	task.BranchIDs = nil

	coordinator.Run(context.Background(), task)

	record := executions.finalized[0]
	if record.EmailStatus != schedmodels.EmailStatusNotSent {
		t.Errorf("không có recipient phải là not_sent, got %s", record.EmailStatus)
	}
	if len(transport.sent) != 0 {
		t.Errorf("không có recipient không được gửi email, got %d", len(transport.sent))
	}
}

func TestCoordinator_TransportFailGhiEmailStatusFailed(t *testing.T) {
	exports := newFakeExports(
		fakeOutcome{status: "completed", filePath: "tenant-1/export-0.pdf"},
	)
	executions := &fakeExecutions{}
	transport := &fakeTransport{sendErr: errors.New("smtp: connection refused")}
	coordinator := newTestCoordinator(exports, executions, transport)

	task := fullTask()
	task.PageIDs = []string{"doanh-thu"}
	task.BranchIDs = nil

	coordinator.Run(context.Background(), task)

	record := executions.finalized[0]
	if record.Status != schedmodels.ExecutionStatusSuccess {
		t.Errorf("lỗi email không được lật run status, got %s", record.Status)
	}
	if record.EmailStatus != schedmodels.EmailStatusFailed {
		t.Errorf("emailStatus phải là failed, got %s", record.EmailStatus)
	}
	if record.EmailErrorMessage == "" {
		t.Error("emailErrorMessage phải chứa lỗi transport")
	}
	// Không retry: transport chỉ được gọi đúng 1 lần
	if len(transport.sent) != 1 {
		t.Errorf("gửi mail không retry, got %d lần gọi", len(transport.sent))
	}
}

func TestCoordinator_CreateRecordFailVanFinalize(t *testing.T) {
	exports := newFakeExports()
	executions := &fakeExecutions{createErr: errors.New("mongo: network error")}
	transport := &fakeTransport{}
	coordinator := newTestCoordinator(exports, executions, transport)

	coordinator.Run(context.Background(), fullTask())

	// Run dừng sớm nhưng kết quả vẫn phải được persist qua Finalize
	if len(executions.finalized) != 1 {
		t.Fatalf("record phải được finalize kể cả khi create fail, got %d", len(executions.finalized))
	}
	record := executions.finalized[0]
	if record.Status != schedmodels.ExecutionStatusFailed {
		t.Errorf("create fail là run-level failure: got %s", record.Status)
	}
	if record.ErrorMessage == "" || record.ErrorStack == "" {
		t.Error("record fail phải có errorMessage và errorStack")
	}
	// Create fail thì không export gì cả
	if len(exports.created) != 0 {
		t.Errorf("không được tạo sub-task khi record create fail, got %d", len(exports.created))
	}
	// Failure notification best-effort được gửi cho recipients
	if len(transport.sent) != 1 {
		t.Errorf("phải gửi failure notification, got %d", len(transport.sent))
	}
}

func TestCoordinator_RecipientsSnapshot(t *testing.T) {
	exports := newFakeExports()
	executions := &fakeExecutions{}
	transport := &fakeTransport{}
	coordinator := newTestCoordinator(exports, executions, transport)

	task := fullTask()
	task.PageIDs = nil // bỏ qua export, chỉ quan tâm snapshot

	coordinator.Run(context.Background(), task)

	record := executions.finalized[0]
	if len(record.Recipients) != 1 || record.Recipients[0] != "boss@example.com" {
		t.Fatalf("record phải snapshot recipients tại thời điểm run: %v", record.Recipients)
	}

	// Sửa task sau run không được thay đổi snapshot trong record
	task.Recipients[0] = "changed@example.com"
	if record.Recipients[0] != "boss@example.com" {
		t.Error("snapshot recipients phải là bản copy độc lập")
	}
}
