package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/common"
)

// fakeTaskStore giả lập TaskStore bằng map trong bộ nhớ.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*schedmodels.ScheduledTask
}

func newFakeTaskStore(tasks ...*schedmodels.ScheduledTask) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[string]*schedmodels.ScheduledTask)}
	for _, t := range tasks {
		s.put(t)
	}
	return s
}

func (s *fakeTaskStore) put(t *schedmodels.ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.Key()] = t
}

func (s *fakeTaskStore) FindByKey(ctx context.Context, taskID, tenantID string) (*schedmodels.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID+"|"+tenantID]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *fakeTaskStore) FindAllEnabled(ctx context.Context) ([]schedmodels.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedmodels.ScheduledTask
	for _, t := range s.tasks {
		if t.Enable {
			out = append(out, *t)
		}
	}
	return out, nil
}

func cronTask(tenantID, expr string, enable bool) *schedmodels.ScheduledTask {
	return &schedmodels.ScheduledTask{
		TaskID:         schedmodels.TaskIDAutoReportExport,
		TenantID:       tenantID,
		Enable:         enable,
		Frequency:      schedmodels.FrequencyDaily,
		Time:           "09:00",
		CronExpression: expr,
		Recipients:     []string{"boss@example.com"},
	}
}

func newTestRegistry(store TaskStore, executions ExecutionStore) *Registry {
	coordinator := newTestCoordinator(newFakeExports(), executions, &fakeTransport{})
	return NewRegistry(store, coordinator, time.UTC)
}

func TestRegistry_ScheduleVaStatus(t *testing.T) {
	registry := newTestRegistry(newFakeTaskStore(), &fakeExecutions{})
	defer registry.StopAll()

	task := cronTask("tenant-1", "0 9 * * *", true)
	if err := registry.Schedule(task); err != nil {
		t.Fatalf("schedule lỗi: %v", err)
	}

	status := registry.Status(task.TaskID, "tenant-1")
	if !status.IsRunning {
		t.Error("task đã schedule phải có isRunning = true")
	}
	if status.NextRun.IsZero() {
		t.Error("task đã schedule phải có nextRun")
	}

	// Key khác tenant là timer khác
	other := registry.Status(task.TaskID, "tenant-2")
	if other.IsRunning {
		t.Error("tenant chưa schedule không được có timer")
	}
}

func TestRegistry_ScheduleIdempotent(t *testing.T) {
	registry := newTestRegistry(newFakeTaskStore(), &fakeExecutions{})
	defer registry.StopAll()

	task := cronTask("tenant-1", "0 9 * * *", true)
	for i := 0; i < 5; i++ {
		if err := registry.Schedule(task); err != nil {
			t.Fatalf("schedule lần %d lỗi: %v", i, err)
		}
	}

	if registry.Size() != 1 {
		t.Errorf("schedule lặp lại cùng key phải giữ đúng 1 timer, got %d", registry.Size())
	}
}

func TestRegistry_CronExpressionKhongHopLe(t *testing.T) {
	registry := newTestRegistry(newFakeTaskStore(), &fakeExecutions{})
	defer registry.StopAll()

	if err := registry.Schedule(cronTask("tenant-1", "not a cron", true)); err == nil {
		t.Error("cron expression không hợp lệ phải trả lỗi")
	}
	if err := registry.Schedule(cronTask("tenant-1", "", true)); err == nil {
		t.Error("cron expression rỗng phải trả lỗi")
	}
	if registry.Size() != 0 {
		t.Errorf("schedule fail không được để lại timer, got %d", registry.Size())
	}
}

func TestRegistry_Unschedule(t *testing.T) {
	registry := newTestRegistry(newFakeTaskStore(), &fakeExecutions{})
	defer registry.StopAll()

	task := cronTask("tenant-1", "0 9 * * *", true)
	if err := registry.Schedule(task); err != nil {
		t.Fatalf("schedule lỗi: %v", err)
	}

	registry.Unschedule(task.TaskID, "tenant-1")
	if registry.Status(task.TaskID, "tenant-1").IsRunning {
		t.Error("unschedule xong không được còn timer")
	}

	// Unschedule key không tồn tại là no-op
	registry.Unschedule(task.TaskID, "tenant-khac")
}

func TestRegistry_RescheduleDocLaiConfig(t *testing.T) {
	store := newFakeTaskStore(cronTask("tenant-1", "0 9 * * *", true))
	registry := newTestRegistry(store, &fakeExecutions{})
	defer registry.StopAll()

	if err := registry.Reschedule(context.Background(), schedmodels.TaskIDAutoReportExport, "tenant-1"); err != nil {
		t.Fatalf("reschedule lỗi: %v", err)
	}
	if !registry.Status(schedmodels.TaskIDAutoReportExport, "tenant-1").IsRunning {
		t.Error("reschedule task enabled phải tạo timer")
	}

	// Task bị disable trong storage: reschedule gỡ timer và không schedule lại
	store.put(cronTask("tenant-1", "0 9 * * *", false))
	if err := registry.Reschedule(context.Background(), schedmodels.TaskIDAutoReportExport, "tenant-1"); err != nil {
		t.Fatalf("reschedule task disabled lỗi: %v", err)
	}
	if registry.Status(schedmodels.TaskIDAutoReportExport, "tenant-1").IsRunning {
		t.Error("task disabled không được còn timer sau reschedule")
	}
}

func TestRegistry_TriggerNow(t *testing.T) {
	store := newFakeTaskStore(cronTask("tenant-1", "0 9 * * *", true))
	executions := &fakeExecutions{}
	registry := newTestRegistry(store, executions)
	defer registry.StopAll()

	if err := registry.TriggerNow(context.Background(), schedmodels.TaskIDAutoReportExport, "tenant-1"); err != nil {
		t.Fatalf("trigger task enabled lỗi: %v", err)
	}

	// Run chạy bất đồng bộ; chờ tới khi record được finalize
	deadline := time.Now().Add(2 * time.Second)
	for {
		if executions.FinalizedCount() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("trigger không tạo execution record sau 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_TriggerNowTaskKhongTonTai(t *testing.T) {
	registry := newTestRegistry(newFakeTaskStore(), &fakeExecutions{})
	defer registry.StopAll()

	err := registry.TriggerNow(context.Background(), schedmodels.TaskIDAutoReportExport, "tenant-1")
	if !errors.Is(err, common.ErrTaskNotFound) {
		t.Errorf("trigger task không tồn tại phải trả ErrTaskNotFound, got %v", err)
	}
}

func TestRegistry_TriggerNowTaskDisabled(t *testing.T) {
	store := newFakeTaskStore(cronTask("tenant-1", "0 9 * * *", false))
	registry := newTestRegistry(store, &fakeExecutions{})
	defer registry.StopAll()

	err := registry.TriggerNow(context.Background(), schedmodels.TaskIDAutoReportExport, "tenant-1")
	if !errors.Is(err, common.ErrTaskDisabled) {
		t.Errorf("trigger task disabled phải trả ErrTaskDisabled, got %v", err)
	}
}

func TestRegistry_LoadAll(t *testing.T) {
	store := newFakeTaskStore(
		cronTask("tenant-1", "0 9 * * *", true),
		cronTask("tenant-2", "30 8 * * 1", true),
		cronTask("tenant-3", "0 9 * * *", false), // disabled, FindAllEnabled không trả về
		cronTask("tenant-4", "hong", true),       // cron hỏng, bị bỏ qua nhưng không chặn task khác
	)
	// tenant-3 disabled nên không nằm trong FindAllEnabled; tenant-4 lỗi schedule
	registry := newTestRegistry(store, &fakeExecutions{})
	defer registry.StopAll()

	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatalf("loadAll lỗi: %v", err)
	}

	if registry.Size() != 2 {
		t.Errorf("loadAll phải schedule đúng 2 task enabled hợp lệ, got %d", registry.Size())
	}
	if !registry.Status(schedmodels.TaskIDAutoReportExport, "tenant-1").IsRunning {
		t.Error("tenant-1 phải được schedule")
	}
	if registry.Status(schedmodels.TaskIDAutoReportExport, "tenant-3").IsRunning {
		t.Error("tenant-3 disabled không được schedule")
	}
}

func TestRegistry_StopAll(t *testing.T) {
	registry := newTestRegistry(newFakeTaskStore(), &fakeExecutions{})

	registry.Schedule(cronTask("tenant-1", "0 9 * * *", true))
	registry.Schedule(cronTask("tenant-2", "0 9 * * *", true))

	registry.StopAll()
	if registry.Size() != 0 {
		t.Errorf("stopAll phải gỡ toàn bộ timer, got %d", registry.Size())
	}
}
