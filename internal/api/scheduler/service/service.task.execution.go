package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	basemodels "meta_report/internal/api/base/models"
	basesvc "meta_report/internal/api/base/service"
	"meta_report/internal/api/scheduler/models"
	"meta_report/internal/common"
	"meta_report/internal/global"
)

// TaskExecutionService là service quản lý execution record (report_task_executions)
type TaskExecutionService struct {
	*basesvc.BaseServiceMongoImpl[models.TaskExecutionRecord]
}

// NewTaskExecutionService tạo mới TaskExecutionService
func NewTaskExecutionService() (*TaskExecutionService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.TaskExecutions)
	if !exist {
		return nil, fmt.Errorf("failed to get report_task_executions collection: %v", common.ErrNotFound)
	}

	return &TaskExecutionService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.TaskExecutionRecord](collection),
	}, nil
}

// Create ghi execution record lúc bắt đầu run và gán lại _id cho record.
// Record được tạo optimistic (status success) ngay khi run bắt đầu; nếu run fail
// thì Finalize sẽ lật status sau.
func (s *TaskExecutionService) Create(ctx context.Context, record *models.TaskExecutionRecord) (*models.TaskExecutionRecord, error) {
	inserted, err := s.InsertOne(ctx, *record)
	if err != nil {
		return nil, err
	}
	*record = inserted
	return record, nil
}

// Finalize ghi trạng thái cuối cùng của record theo _id. Nếu record chưa từng được
// insert (Create fail lúc đầu run) thì insert mới — kết quả run không bao giờ bị mất
// chỉ vì lần ghi đầu tiên lỗi.
func (s *TaskExecutionService) Finalize(ctx context.Context, record *models.TaskExecutionRecord) error {
	if record.ID.IsZero() {
		inserted, err := s.InsertOne(ctx, *record)
		if err != nil {
			return err
		}
		*record = inserted
		return nil
	}

	updateData := &basesvc.UpdateData{Set: map[string]interface{}{
		"status":            record.Status,
		"endTime":           record.EndTime,
		"duration":          record.Duration,
		"emailStatus":       record.EmailStatus,
		"emailErrorMessage": record.EmailErrorMessage,
		"emailAttachments":  record.EmailAttachments,
		"totalExports":      record.TotalExports,
		"successfulExports": record.SuccessfulExports,
		"errorMessage":      record.ErrorMessage,
		"errorStack":        record.ErrorStack,
	}}

	_, err := s.UpdateOne(ctx, bson.M{"_id": record.ID}, updateData, nil)
	return err
}

// FindHistory trả về lịch sử run của một cặp (taskId, tenantId), mới nhất trước,
// có phân trang và filter theo status
func (s *TaskExecutionService) FindHistory(ctx context.Context, taskID, tenantID, status string, page, limit int64) (*basemodels.PaginateResult[models.TaskExecutionRecord], error) {
	filter := bson.M{"taskId": taskID, "tenantId": tenantID}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "triggeredAt", Value: -1}})
	return s.FindWithPagination(ctx, filter, page, limit, opts)
}

// PurgeBefore xóa execution record có triggeredAt trước mốc cutoff (retention)
func (s *TaskExecutionService) PurgeBefore(ctx context.Context, cutoff int64) (int64, error) {
	return s.DeleteMany(ctx, bson.M{"triggeredAt": bson.M{"$lt": cutoff}})
}
