package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	exportmodels "meta_report/internal/api/export/models"
	schedmodels "meta_report/internal/api/scheduler/models"
)

// fakeExports giả lập hệ thống export: script sẵn trạng thái terminal cho từng
// sub-task theo thứ tự tạo ra.
type fakeExports struct {
	created   []ExportSpec
	createErr error
	// outcomes[i] quyết định kết quả của sub-task thứ i (status, filePath, errorMessage)
	outcomes []fakeOutcome
	// pendingPolls: số lần poll đầu tiên trả về pending trước khi terminal
	pendingPolls int
	pollCount    map[string]int
}

type fakeOutcome struct {
	status   string
	filePath string
	errMsg   string
}

func newFakeExports(outcomes ...fakeOutcome) *fakeExports {
	return &fakeExports{outcomes: outcomes, pollCount: make(map[string]int)}
}

func (f *fakeExports) CreateExportTask(ctx context.Context, spec ExportSpec, tenantID string) (*exportmodels.ExportTask, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	idx := len(f.created)
	f.created = append(f.created, spec)
	return &exportmodels.ExportTask{
		ExportTaskID: fmt.Sprintf("export-%d", idx),
		TenantID:     tenantID,
		ReportPage:   spec.ReportPage,
		Status:       exportmodels.ExportStatusPending,
	}, nil
}

func (f *fakeExports) FindOne(ctx context.Context, exportTaskID, tenantID string) (*exportmodels.ExportTask, error) {
	f.pollCount[exportTaskID]++
	if f.pollCount[exportTaskID] <= f.pendingPolls {
		return &exportmodels.ExportTask{ExportTaskID: exportTaskID, Status: exportmodels.ExportStatusProcessing}, nil
	}

	var idx int
	fmt.Sscanf(exportTaskID, "export-%d", &idx)
	out := fakeOutcome{status: exportmodels.ExportStatusFailed, errMsg: "no outcome scripted"}
	if idx < len(f.outcomes) {
		out = f.outcomes[idx]
	}
	return &exportmodels.ExportTask{
		ExportTaskID: exportTaskID,
		Status:       out.status,
		FilePath:     out.filePath,
		ErrorMessage: out.errMsg,
	}, nil
}

// newTestDriver tạo driver với timing nén lại cho test
func newTestDriver(exports ExportCollaborator, retryMax int) *SubTaskDriver {
	return &SubTaskDriver{
		exports:       exports,
		reportBaseURL: "http://reports.local",
		retryMax:      retryMax,
		pollInterval:  time.Millisecond,
		maxWait:       200 * time.Millisecond,
		backoffBase:   time.Millisecond,
		backoffCap:    4 * time.Millisecond,
	}
}

func testTask() *schedmodels.ScheduledTask {
	return &schedmodels.ScheduledTask{
		TaskID:   schedmodels.TaskIDAutoReportExport,
		TenantID: "tenant-1",
		Timezone: "Asia/Shanghai",
	}
}

func testWindow() Window {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	return computeWindowAt(time.Date(2024, 3, 15, 9, 0, 0, 0, loc), "daily", loc)
}

func TestSubTaskDriver_ThanhCongLanDau(t *testing.T) {
	exports := newFakeExports(fakeOutcome{status: exportmodels.ExportStatusCompleted, filePath: "tenant-1/export-0.pdf"})
	exports.pendingPolls = 2
	driver := newTestDriver(exports, 3)

	result := driver.Run(context.Background(), testTask(), testWindow(), "doanh-thu", "")

	if result == nil {
		t.Fatal("sub-task completed có file phải trả về non-nil")
	}
	if result.FilePath != "tenant-1/export-0.pdf" {
		t.Errorf("filePath sai: %q", result.FilePath)
	}
	if len(exports.created) != 1 {
		t.Errorf("thành công lần đầu chỉ được tạo 1 sub-task, got %d", len(exports.created))
	}
}

func TestSubTaskDriver_RetryTaoSubTaskMoi(t *testing.T) {
	// Fail 2 lần đầu, lần 3 thành công
	exports := newFakeExports(
		fakeOutcome{status: exportmodels.ExportStatusFailed, errMsg: "renderer crashed"},
		fakeOutcome{status: exportmodels.ExportStatusFailed, errMsg: "renderer crashed"},
		fakeOutcome{status: exportmodels.ExportStatusCompleted, filePath: "tenant-1/export-2.pdf"},
	)
	driver := newTestDriver(exports, 3)

	result := driver.Run(context.Background(), testTask(), testWindow(), "doanh-thu", "branch-9")

	if result == nil {
		t.Fatal("attempt thứ 3 thành công phải trả về non-nil")
	}
	if len(exports.created) != 3 {
		t.Errorf("mỗi retry phải tạo sub-task MỚI: want 3 creates, got %d", len(exports.created))
	}
	if result.ExportTaskID != "export-2" {
		t.Errorf("kết quả phải là sub-task của attempt cuối, got %s", result.ExportTaskID)
	}
}

func TestSubTaskDriver_HetRetryTraVeNil(t *testing.T) {
	exports := newFakeExports() // mọi sub-task đều fail (không có outcome script)
	retryMax := 3
	driver := newTestDriver(exports, retryMax)

	result := driver.Run(context.Background(), testTask(), testWindow(), "doanh-thu", "")

	if result != nil {
		t.Fatal("hết retry phải trả về nil, không ném lỗi")
	}
	if len(exports.created) != retryMax+1 {
		t.Errorf("tổng số attempt phải là retryMax+1 = %d, got %d", retryMax+1, len(exports.created))
	}
}

func TestSubTaskDriver_CompletedKhongCoFileVanCoiLaFail(t *testing.T) {
	exports := newFakeExports(
		fakeOutcome{status: exportmodels.ExportStatusCompleted, filePath: ""},
	)
	driver := newTestDriver(exports, 0)

	result := driver.Run(context.Background(), testTask(), testWindow(), "doanh-thu", "")

	if result != nil {
		t.Error("completed nhưng không có filePath phải coi là fail")
	}
}

func TestSubTaskDriver_Backoff(t *testing.T) {
	driver := &SubTaskDriver{backoffBase: time.Second, backoffCap: 10 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // 16s bị chặn bởi cap
		{10, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := driver.backoff(tc.attempt); got != tc.want {
			t.Errorf("backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestSubTaskDriver_BuildReportURL(t *testing.T) {
	driver := newTestDriver(newFakeExports(), 0)
	w := testWindow()

	got := driver.buildReportURL("doanh-thu", "branch-9", w)
	if !strings.HasPrefix(got, "http://reports.local/reports/doanh-thu?") {
		t.Errorf("URL sai prefix: %s", got)
	}
	if !strings.Contains(got, "branchId=branch-9") {
		t.Errorf("URL thiếu branchId: %s", got)
	}
	if !strings.Contains(got, fmt.Sprintf("from=%d", w.Start.UnixMilli())) {
		t.Errorf("URL thiếu from: %s", got)
	}

	// Không có branch thì URL không được chứa branchId
	noBranch := driver.buildReportURL("doanh-thu", "", w)
	if strings.Contains(noBranch, "branchId") {
		t.Errorf("URL không có branch không được chứa branchId: %s", noBranch)
	}
}

func TestSubTaskDriver_ContextHuyDungSom(t *testing.T) {
	exports := newFakeExports()
	exports.pendingPolls = 1000000 // không bao giờ terminal
	driver := newTestDriver(exports, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan *exportmodels.ExportTask, 1)
	go func() {
		done <- driver.Run(ctx, testTask(), testWindow(), "doanh-thu", "")
	}()

	select {
	case result := <-done:
		if result != nil {
			t.Error("run bị hủy phải trả về nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("driver không dừng sau khi context bị hủy")
	}
}
