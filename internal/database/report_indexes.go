// Package database - Index cho các collection báo cáo (compound unique, query indexes).
package database

import (
	"context"
	"strings"

	"meta_report/internal/global"
	"meta_report/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// legacyTaskIndexNames là tên các unique index cũ chỉ trên taskId đơn lẻ.
// Các index này chặn tenant thứ hai đăng ký cùng taskId, phải xóa trước khi
// tạo compound index (taskId, tenantId).
var legacyTaskIndexNames = []string{"taskId_unique", "taskId_1"}

// CreateReportIndexes tạo index cho các collection báo cáo.
// Gọi một lần khi khởi động server, sau khi đã đăng ký collections vào registry.
func CreateReportIndexes(ctx context.Context, db *mongo.Database) error {
	// report_scheduled_tasks: dọn unique index cũ trên taskId đơn lẻ (nếu còn sót)
	scheduledTasks := db.Collection(global.MongoDB_ColNames.ScheduledTasks)
	if err := dropLegacyTaskIndexes(ctx, scheduledTasks); err != nil {
		return err
	}

	// report_scheduled_tasks: (taskId, tenantId) unique — một lịch cho mỗi tenant trên mỗi task
	if _, err := scheduledTasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "taskId", Value: 1},
			{Key: "tenantId", Value: 1},
		},
		Options: options.Index().SetName("task_tenant_unique").SetUnique(true),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// report_scheduled_tasks: enable — scan khi khởi động scheduler
	if _, err := scheduledTasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "enable", Value: 1}},
		Options: options.Index().SetName("task_enable"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// report_task_executions: (taskId, tenantId, triggeredAt desc) — truy vấn lịch sử thực thi
	taskExecutions := db.Collection(global.MongoDB_ColNames.TaskExecutions)
	if _, err := taskExecutions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "taskId", Value: 1},
			{Key: "tenantId", Value: 1},
			{Key: "triggeredAt", Value: -1},
		},
		Options: options.Index().SetName("execution_task_tenant_time"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// report_task_executions: triggeredAt — cleanup worker quét theo retention
	if _, err := taskExecutions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "triggeredAt", Value: 1}},
		Options: options.Index().SetName("execution_triggered_at"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// report_export_tasks: exportTaskId unique — id sinh bởi collaborator, dùng để poll
	exportTasks := db.Collection(global.MongoDB_ColNames.ExportTasks)
	if _, err := exportTasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "exportTaskId", Value: 1}},
		Options: options.Index().SetName("export_task_id_unique").SetUnique(true),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	// report_export_tasks: (status, createdAt) — render worker claim pending tasks
	if _, err := exportTasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "createdAt", Value: 1},
		},
		Options: options.Index().SetName("export_status_created"),
	}); err != nil && !isIndexExistsError(err) {
		return err
	}

	logger.GetAppLogger().Info("Report indexes created")
	return nil
}

// isIndexExistsError nhận diện lỗi index đã tồn tại (trùng key nhưng khác tên/option).
// Coi là idempotent để server restart không fail chỉ vì index có sẵn.
func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "IndexOptionsConflict") ||
		strings.Contains(msg, "IndexKeySpecsConflict") ||
		strings.Contains(msg, "already exists")
}

// dropLegacyTaskIndexes xóa unique index cũ trên taskId đơn lẻ nếu còn tồn tại.
// Index cũ khiến insert của tenant thứ hai fail với duplicate key dù (taskId, tenantId) khác nhau.
func dropLegacyTaskIndexes(ctx context.Context, coll *mongo.Collection) error {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var idx bson.M
		if err := cursor.Decode(&idx); err != nil {
			continue
		}
		name, _ := idx["name"].(string)
		if !isLegacyTaskIndex(name, idx) {
			continue
		}
		logger.GetAppLogger().WithField("index", name).
			Warn("Dropping legacy unique index on taskId (superseded by compound (taskId, tenantId))")
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// isLegacyTaskIndex nhận diện unique index cũ: key duy nhất là taskId và có unique=true.
func isLegacyTaskIndex(name string, idx bson.M) bool {
	key := indexKeys(idx)
	if len(key) != 1 {
		return false
	}
	if _, hasTaskID := key["taskId"]; !hasTaskID {
		return false
	}
	if unique, _ := idx["unique"].(bool); unique {
		return true
	}
	for _, legacy := range legacyTaskIndexNames {
		if name == legacy {
			return true
		}
	}
	return false
}

// indexKeys trả về key pattern của index dưới dạng map (driver trả bson.M hoặc bson.D tùy version).
func indexKeys(idx bson.M) map[string]any {
	switch k := idx["key"].(type) {
	case bson.M:
		return k
	case bson.D:
		out := make(map[string]any, len(k))
		for _, e := range k {
			out[e.Key] = e.Value
		}
		return out
	}
	return nil
}
