package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"meta_report/config"
	"meta_report/internal/database"
	"meta_report/internal/global"
)

// InitGlobal khởi tạo các biến toàn cục theo đúng thứ tự phụ thuộc:
// validator -> config -> database (kết nối + index)
func InitGlobal() {
	initValidator()
	initConfig()
	initDatabase_MongoDB()
}

// Hàm khởi tạo validator (global.InitValidator đăng ký custom validators: no_xss, exists, timezone, report_frequency)
func initValidator() {
	global.InitValidator()
	logrus.Info("Initialized validator")
}

// Hàm khởi tạo cấu hình server
func initConfig() {
	global.MongoDB_ServerConfig = config.NewConfig()
	if global.MongoDB_ServerConfig == nil {
		logrus.Fatalf("Failed to initialize config: config is nil")
	}
	logrus.Info("Initialized server config")
}

// Hàm khởi tạo kết nối database và bootstrap index.
// CreateReportIndexes drop unique index cũ trên taskId đơn lẻ (nếu còn từ bản
// single-tenant) trước khi tạo compound index (taskId, tenantId).
func initDatabase_MongoDB() {
	var err error
	global.MongoDB_Session, err = database.GetInstance(global.MongoDB_ServerConfig)
	if err != nil {
		logrus.Fatalf("Failed to get database instance: %v", err)
	}
	logrus.Info("Connected to MongoDB")

	db := global.MongoDB_Session.Database(global.MongoDB_ServerConfig.MongoDB_DBName)
	if err := database.CreateReportIndexes(context.TODO(), db); err != nil {
		logrus.Fatalf("Failed to create report indexes: %v", err)
	}
	logrus.Info("Ensured report collection indexes")
}
