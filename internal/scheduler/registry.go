package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/common"
	"meta_report/internal/logger"
)

// runner là một timer đang hoạt động cho một key (taskId, tenantId).
type runner struct {
	cron    *cron.Cron
	entryID cron.EntryID
}

// TaskStatus là kết quả truy vấn trạng thái lịch của một key.
type TaskStatus struct {
	IsRunning bool      `json:"isRunning"`          // Có timer đang đăng ký cho key không
	NextRun   time.Time `json:"nextRun,omitempty"`  // Lần fire kế tiếp (zero nếu không xác định)
}

// Registry giữ đúng một timer cho mỗi (taskId, tenantId). Map runners là shared state
// duy nhất bị mutate đồng thời; mọi schedule/unschedule atomic theo key với kỷ luật
// cancel-before-insert — reschedule không bao giờ để lại hai timer cho cùng key.
type Registry struct {
	mu          sync.Mutex
	runners     map[string]*runner
	tasks       TaskStore
	coordinator *Coordinator
	defaultLoc  *time.Location
}

// NewRegistry tạo cron registry.
func NewRegistry(tasks TaskStore, coordinator *Coordinator, defaultLoc *time.Location) *Registry {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Registry{
		runners:     make(map[string]*runner),
		tasks:       tasks,
		coordinator: coordinator,
		defaultLoc:  defaultLoc,
	}
}

// registryKey dựng key map từ cặp định danh.
func registryKey(taskID, tenantID string) string {
	return taskID + "|" + tenantID
}

// Schedule đăng ký timer cho task. Nếu key đã có timer thì cancel trước (idempotent
// reschedule). Timer fire trong timezone của task, dispatch run lên goroutine riêng.
func (r *Registry) Schedule(task *schedmodels.ScheduledTask) error {
	log := logger.GetAppLogger()

	if task.CronExpression == "" {
		return fmt.Errorf("cron expression is empty for task %s: %w", task.Key(), common.ErrRequiredField)
	}

	loc := ResolveLocation(task.Timezone, r.defaultLoc)
	runCron := cron.New(cron.WithLocation(loc))

	// Snapshot task cho closure; run đọc config tại thời điểm schedule
	taskCopy := *task
	entryID, err := runCron.AddFunc(task.CronExpression, func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					"taskId":   taskCopy.TaskID,
					"tenantId": taskCopy.TenantID,
				}).Errorf("🗓️ [CRON_REGISTRY] Recovered panic in timer fire: %v", rec)
			}
		}()
		r.coordinator.Run(context.Background(), &taskCopy)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for task %s: %w", task.CronExpression, task.Key(), err)
	}

	key := registryKey(task.TaskID, task.TenantID)

	r.mu.Lock()
	if old, exists := r.runners[key]; exists {
		old.cron.Stop()
	}
	runCron.Start()
	r.runners[key] = &runner{cron: runCron, entryID: entryID}
	r.mu.Unlock()

	log.WithFields(logrus.Fields{
		"taskId":   task.TaskID,
		"tenantId": task.TenantID,
		"cron":     task.CronExpression,
		"timezone": loc.String(),
	}).Info("🗓️ [CRON_REGISTRY] Task scheduled")

	return nil
}

// Unschedule hủy và gỡ timer của key nếu có; no-op nếu không có.
// Run đang chạy dở KHÔNG bị hủy — unschedule chỉ chặn các lần fire tương lai.
func (r *Registry) Unschedule(taskID, tenantID string) {
	key := registryKey(taskID, tenantID)

	r.mu.Lock()
	run, exists := r.runners[key]
	if exists {
		run.cron.Stop()
		delete(r.runners, key)
	}
	r.mu.Unlock()

	if exists {
		logger.GetAppLogger().WithFields(logrus.Fields{
			"taskId":   taskID,
			"tenantId": tenantID,
		}).Info("🗓️ [CRON_REGISTRY] Task unscheduled")
	}
}

// Reschedule gỡ timer rồi đọc lại task từ storage, chỉ schedule lại nếu task còn
// enabled — chặn race với disable xảy ra song song.
func (r *Registry) Reschedule(ctx context.Context, taskID, tenantID string) error {
	r.Unschedule(taskID, tenantID)

	task, err := r.tasks.FindByKey(ctx, taskID, tenantID)
	if err != nil {
		return err
	}
	if !task.Enable {
		return nil
	}
	return r.Schedule(task)
}

// TriggerNow fire coordinator ngay lập tức, ngoài timer (dùng cho manual trigger).
// Trả lỗi nếu task không tồn tại hoặc đang disabled.
func (r *Registry) TriggerNow(ctx context.Context, taskID, tenantID string) error {
	task, err := r.tasks.FindByKey(ctx, taskID, tenantID)
	if err != nil {
		return common.ErrTaskNotFound
	}
	if !task.Enable {
		return common.ErrTaskDisabled
	}

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.GetAppLogger().WithFields(logrus.Fields{
					"taskId":   taskID,
					"tenantId": tenantID,
				}).Errorf("🗓️ [CRON_REGISTRY] Recovered panic in manual trigger: %v", rec)
			}
		}()
		r.coordinator.Run(context.Background(), task)
	}()

	return nil
}

// Status trả về trạng thái timer của key: có đang đăng ký không và lần fire kế tiếp.
func (r *Registry) Status(taskID, tenantID string) TaskStatus {
	key := registryKey(taskID, tenantID)

	r.mu.Lock()
	defer r.mu.Unlock()

	run, exists := r.runners[key]
	if !exists {
		return TaskStatus{IsRunning: false}
	}

	return TaskStatus{
		IsRunning: true,
		NextRun:   run.cron.Entry(run.entryID).Next,
	}
}

// LoadAll load toàn bộ task enabled từ storage và schedule từng task.
// Gọi một lần lúc khởi động server; lỗi của một task không chặn các task còn lại.
func (r *Registry) LoadAll(ctx context.Context) error {
	log := logger.GetAppLogger()

	tasks, err := r.tasks.FindAllEnabled(ctx)
	if err != nil {
		return fmt.Errorf("load enabled tasks: %w", err)
	}

	scheduled := 0
	for i := range tasks {
		if err := r.Schedule(&tasks[i]); err != nil {
			log.WithFields(logrus.Fields{
				"taskId":   tasks[i].TaskID,
				"tenantId": tasks[i].TenantID,
			}).WithError(err).Error("🗓️ [CRON_REGISTRY] Failed to schedule task at startup")
			continue
		}
		scheduled++
	}

	log.WithFields(logrus.Fields{
		"total":     len(tasks),
		"scheduled": scheduled,
	}).Info("🗓️ [CRON_REGISTRY] Startup scheduling finished")

	return nil
}

// StopAll hủy toàn bộ timer (shutdown).
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, run := range r.runners {
		run.cron.Stop()
		delete(r.runners, key)
	}

	logger.GetAppLogger().Info("🗓️ [CRON_REGISTRY] All timers stopped")
}

// Size trả về số timer đang hoạt động (phục vụ quan sát/test).
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runners)
}
