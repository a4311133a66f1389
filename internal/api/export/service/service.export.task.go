// package service chứa service cho domain Export
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	basesvc "meta_report/internal/api/base/service"
	"meta_report/internal/api/export/models"
	"meta_report/internal/common"
	"meta_report/internal/global"
	"meta_report/internal/logger"
	"meta_report/internal/scheduler"
)

// ExportTaskService là service quản lý export task (report_export_tasks)
type ExportTaskService struct {
	*basesvc.BaseServiceMongoImpl[models.ExportTask]
}

// NewExportTaskService tạo mới ExportTaskService
func NewExportTaskService() (*ExportTaskService, error) {
	collection, exist := global.RegistryCollections.Get(global.MongoDB_ColNames.ExportTasks)
	if !exist {
		return nil, fmt.Errorf("failed to get report_export_tasks collection: %v", common.ErrNotFound)
	}

	return &ExportTaskService{
		BaseServiceMongoImpl: basesvc.NewBaseServiceMongo[models.ExportTask](collection),
	}, nil
}

// CreateExportTask tạo một export sub-task mới ở trạng thái pending.
// exportTaskId là uuid nghiệp vụ, dùng để poll — không phụ thuộc vào _id của Mongo.
func (s *ExportTaskService) CreateExportTask(ctx context.Context, spec scheduler.ExportSpec, tenantID string) (*models.ExportTask, error) {
	task := models.ExportTask{
		ExportTaskID: uuid.NewString(),
		TenantID:     tenantID,
		TaskName:     spec.TaskName,
		ReportPage:   spec.ReportPage,
		BranchID:     spec.BranchID,
		ReportURL:    spec.ReportURL,
		Timezone:     spec.Timezone,
		StartTime:    spec.StartTime,
		EndTime:      spec.EndTime,
		Status:       models.ExportStatusPending,
	}

	inserted, err := s.InsertOne(ctx, task)
	if err != nil {
		return nil, err
	}

	logger.GetAppLogger().WithFields(logrus.Fields{
		"exportTaskId": inserted.ExportTaskID,
		"tenantId":     tenantID,
		"reportPage":   spec.ReportPage,
		"branchId":     spec.BranchID,
	}).Info("📤 [EXPORT_TASK] Export task created")

	return &inserted, nil
}

// FindOne tìm export task theo exportTaskId trong scope của tenant
func (s *ExportTaskService) FindOne(ctx context.Context, exportTaskID, tenantID string) (*models.ExportTask, error) {
	task, err := s.BaseServiceMongoImpl.FindOne(ctx, bson.M{
		"exportTaskId": exportTaskID,
		"tenantId":     tenantID,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ClaimPending nhận (claim) một export task pending: chuyển atomic pending -> processing.
// Nhiều worker gọi đồng thời vẫn an toàn — FindOneAndUpdate bảo đảm mỗi task chỉ
// được claim đúng một lần. Trả về nil, nil khi không còn task pending nào.
func (s *ExportTaskService) ClaimPending(ctx context.Context) (*models.ExportTask, error) {
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetReturnDocument(options.After)

	task, err := s.BaseServiceMongoImpl.FindOneAndUpdate(ctx,
		bson.M{"status": models.ExportStatusPending},
		&basesvc.UpdateData{Set: map[string]interface{}{"status": models.ExportStatusProcessing}},
		opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// MarkCompleted đưa task về trạng thái completed kèm đường dẫn artifact
func (s *ExportTaskService) MarkCompleted(ctx context.Context, exportTaskID, filePath string) error {
	_, err := s.UpdateOne(ctx,
		bson.M{"exportTaskId": exportTaskID},
		&basesvc.UpdateData{Set: map[string]interface{}{
			"status":   models.ExportStatusCompleted,
			"filePath": filePath,
		}}, nil)
	return err
}

// MarkFailed đưa task về trạng thái failed kèm lý do
func (s *ExportTaskService) MarkFailed(ctx context.Context, exportTaskID, reason string) error {
	_, err := s.UpdateOne(ctx,
		bson.M{"exportTaskId": exportTaskID},
		&basesvc.UpdateData{Set: map[string]interface{}{
			"status":       models.ExportStatusFailed,
			"errorMessage": reason,
		}}, nil)
	return err
}

// PurgeTerminalBefore xóa các export task đã terminal có createdAt trước mốc cutoff.
// Dùng bởi cleanup worker để giữ collection không phình ra vô hạn.
func (s *ExportTaskService) PurgeTerminalBefore(ctx context.Context, cutoff int64) (int64, error) {
	return s.DeleteMany(ctx, bson.M{
		"status":    bson.M{"$in": []string{models.ExportStatusCompleted, models.ExportStatusFailed}},
		"createdAt": bson.M{"$lt": cutoff},
	})
}
