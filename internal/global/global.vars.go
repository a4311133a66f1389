package global

import (
	"meta_report/config"
	"meta_report/internal/registry"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDB_Report_CollectionName chứa tên các collection trong MongoDB
type MongoDB_Report_CollectionName struct {
	ScheduledTasks string // Tên collection cho scheduled task (lịch xuất báo cáo theo tenant)
	TaskExecutions string // Tên collection cho bản ghi thực thi của mỗi lần trigger
	ExportTasks    string // Tên collection cho export sub-task (một bản ghi mỗi lần export)
}

// Các biến toàn cục
var Validate *validator.Validate               // Biến để xác thực dữ liệu
var MongoDB_Session *mongo.Client              // Phiên kết nối tới MongoDB
var MongoDB_ServerConfig *config.Configuration // Cấu hình của server
var MongoDB_ColNames = MongoDB_Report_CollectionName{
	ScheduledTasks: "report_scheduled_tasks",
	TaskExecutions: "report_task_executions",
	ExportTasks:    "report_export_tasks",
}

// Các Registry
var RegistryCollections = registry.NewRegistry[*mongo.Collection]() // Registry chứa các collections
var RegistryDatabase = registry.NewRegistry[*mongo.Database]()      // Registry chứa các databases
