package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	exportsvc "meta_report/internal/api/export/service"
	schedsvc "meta_report/internal/api/scheduler/service"
	"meta_report/internal/global"
	"meta_report/internal/scheduler"
)

// InitScheduler dựng toàn bộ scheduler stack: export collaborator, sub-task driver,
// mailer, coordinator và cron registry, rồi load mọi task enabled từ database.
// Gọi sau khi collection registry đã sẵn sàng.
func InitScheduler() *scheduler.Registry {
	cfg := global.MongoDB_ServerConfig

	defaultLoc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logrus.Warnf("Invalid default timezone %q, falling back to UTC: %v", cfg.DefaultTimezone, err)
		defaultLoc = time.UTC
	}

	taskService, err := schedsvc.NewScheduledTaskService()
	if err != nil {
		logrus.Fatalf("Failed to create scheduled task service: %v", err)
	}

	executionService, err := schedsvc.NewTaskExecutionService()
	if err != nil {
		logrus.Fatalf("Failed to create task execution service: %v", err)
	}

	exportService, err := exportsvc.NewExportTaskService()
	if err != nil {
		logrus.Fatalf("Failed to create export task service: %v", err)
	}

	driver := scheduler.NewSubTaskDriver(exportService, cfg.ReportBaseURL,
		cfg.ExportRetryMax, cfg.ExportPollIntervalMs, cfg.ExportMaxWaitSec)
	mailer := scheduler.NewMailer(scheduler.NewSMTPTransport(cfg), cfg.ExportStorageDir)
	coordinator := scheduler.NewCoordinator(executionService, driver, mailer, defaultLoc)
	registry := scheduler.NewRegistry(taskService, coordinator, defaultLoc)

	if err := registry.LoadAll(context.TODO()); err != nil {
		logrus.Fatalf("Failed to load scheduled tasks: %v", err)
	}

	logrus.Info("Initialized scheduler registry")
	return registry
}
