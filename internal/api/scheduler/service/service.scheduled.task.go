// package service chứa service cho domain Scheduler
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"

	basesvc "meta_report/internal/api/base/service"
	"meta_report/internal/api/scheduler/dto"
	"meta_report/internal/api/scheduler/models"
	"meta_report/internal/common"
	"meta_report/internal/global"
	"meta_report/internal/logger"
	"meta_report/internal/scheduler"
)

// ScheduledTaskService là service quản lý cấu hình lịch xuất báo cáo (report_scheduled_tasks)
type ScheduledTaskService struct {
	*basesvc.BaseServiceMongoImpl[models.ScheduledTask]
}

// NewScheduledTaskService tạo mới ScheduledTaskService
func NewScheduledTaskService() (*ScheduledTaskService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.ScheduledTasks)
	if !exist {
		return nil, fmt.Errorf("failed to get report_scheduled_tasks collection: %v", common.ErrNotFound)
	}

	return &ScheduledTaskService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.ScheduledTask](collection),
	}, nil
}

// buildUpsertData hợp nhất request với cấu hình đang lưu thành update document.
// Field vắng mặt trong request (slice nil, chuỗi rỗng) không xuất hiện trong $set
// nên không ghi đè giá trị tenant đã cấu hình trước đó; default daily/09:00 chỉ
// áp dụng khi cả request lẫn bản ghi cũ đều không có giá trị.
// cronExpression luôn derive lại từ frequency + time hiệu lực sau hợp nhất —
// không bao giờ nhận từ user.
func buildUpsertData(taskID, tenantID string, existing *models.ScheduledTask, input *dto.UpsertScheduledTaskInput) (*basesvc.UpdateData, error) {
	frequency := input.Frequency
	timeOfDay := input.Time
	if existing != nil {
		if frequency == "" {
			frequency = existing.Frequency
		}
		if timeOfDay == "" {
			timeOfDay = existing.Time
		}
	}
	if frequency == "" {
		frequency = models.FrequencyDaily
	}
	if timeOfDay == "" {
		timeOfDay = "09:00"
	}

	cronExpr, err := scheduler.BuildCronExpression(frequency, timeOfDay)
	if err != nil {
		return nil, err
	}

	update := &basesvc.UpdateData{
		Set: map[string]interface{}{
			"taskId":         taskID,
			"tenantId":       tenantID,
			"enable":         input.Enable,
			"frequency":      frequency,
			"time":           timeOfDay,
			"cronExpression": cronExpr,
		},
	}
	if input.Timezone != "" {
		update.Set["timezone"] = input.Timezone
	}
	if input.Recipient != nil {
		update.Set["recipient"] = input.Recipient
	}
	if input.PageIDs != nil {
		update.Set["pageIds"] = input.PageIDs
	}
	if input.BranchIDs != nil {
		update.Set["branchIds"] = input.BranchIDs
	}
	return update, nil
}

// EnableOrUpdate upsert cấu hình lịch của tenant theo cặp khóa (taskId, tenantId).
// Chỉ ghi các field request thực sự gửi lên: enable lại mà không kèm dữ liệu mới
// thì recipient/pageIds/frequency... của tenant giữ nguyên như trước khi disable.
// Duplicate key ở đây nghĩa là database còn unique index cũ trên taskId đơn lẻ
// (từ phiên bản single-tenant); trả lỗi kèm hướng dẫn xóa index.
func (s *ScheduledTaskService) EnableOrUpdate(ctx context.Context, taskID, tenantID string, input *dto.UpsertScheduledTaskInput) (*models.ScheduledTask, error) {
	var existing *models.ScheduledTask
	current, err := s.FindOne(ctx, bson.M{"taskId": taskID, "tenantId": tenantID}, nil)
	if err == nil {
		existing = &current
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	update, err := buildUpsertData(taskID, tenantID, existing, input)
	if err != nil {
		return nil, err
	}

	saved, err := s.Upsert(ctx, bson.M{"taskId": taskID, "tenantId": tenantID}, update)
	if err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, common.NewLegacyIndexError(global.MongoDB_ColNames.ScheduledTasks, err)
		}
		return nil, err
	}

	logger.GetAppLogger().WithFields(logrus.Fields{
		"taskId":    taskID,
		"tenantId":  tenantID,
		"enable":    saved.Enable,
		"frequency": saved.Frequency,
		"cron":      saved.CronExpression,
	}).Info("🗓️ [SCHEDULED_TASK] Task config upserted")

	return &saved, nil
}

// Disable tắt lịch của tenant: chỉ flip enable, giữ nguyên toàn bộ cấu hình còn lại.
// Nếu tenant chưa có bản ghi nào thì upsert tạo placeholder disabled với default an toàn
// (frequency daily, time 09:00) để lần enable sau có sẵn khung cấu hình.
func (s *ScheduledTaskService) Disable(ctx context.Context, taskID, tenantID string) (*models.ScheduledTask, error) {
	saved, err := s.Upsert(ctx,
		bson.M{"taskId": taskID, "tenantId": tenantID},
		bson.M{"enable": false})
	if err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, common.NewLegacyIndexError(global.MongoDB_ColNames.ScheduledTasks, err)
		}
		return nil, err
	}

	logger.GetAppLogger().WithFields(logrus.Fields{
		"taskId":   taskID,
		"tenantId": tenantID,
	}).Info("🗓️ [SCHEDULED_TASK] Task disabled")

	return &saved, nil
}

// FindByKey tìm cấu hình lịch theo cặp (taskId, tenantId)
func (s *ScheduledTaskService) FindByKey(ctx context.Context, taskID, tenantID string) (*models.ScheduledTask, error) {
	task, err := s.FindOne(ctx, bson.M{"taskId": taskID, "tenantId": tenantID}, nil)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindAllEnabled trả về toàn bộ task đang enabled của mọi tenant (dùng lúc khởi động)
func (s *ScheduledTaskService) FindAllEnabled(ctx context.Context) ([]models.ScheduledTask, error) {
	return s.Find(ctx, bson.M{"enable": true}, nil)
}
