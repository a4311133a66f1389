// Package router đăng ký các route thuộc domain Scheduler: ScheduledTask, Execution.
package router

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"meta_report/internal/api/middleware"
	apirouter "meta_report/internal/api/router"
	schedhdl "meta_report/internal/api/scheduler/handler"
	"meta_report/internal/scheduler"
)

// Register đăng ký tất cả route scheduled-task lên v1.
// Mọi route đều đi qua TenantContextMiddleware — request không có X-Tenant-ID bị từ chối.
func Register(v1 fiber.Router, registry *scheduler.Registry) error {
	taskHandler, err := schedhdl.NewScheduledTaskHandler(registry)
	if err != nil {
		return fmt.Errorf("create scheduled task handler: %w", err)
	}

	tenantMiddleware := middleware.TenantContextMiddleware()

	apirouter.RegisterRouteWithMiddleware(v1, "/scheduled-tasks", "PUT", "/", []fiber.Handler{tenantMiddleware}, taskHandler.HandleUpsert)
	apirouter.RegisterRouteWithMiddleware(v1, "/scheduled-tasks", "POST", "/:taskId/trigger", []fiber.Handler{tenantMiddleware}, taskHandler.HandleTrigger)
	apirouter.RegisterRouteWithMiddleware(v1, "/scheduled-tasks", "GET", "/:taskId/status", []fiber.Handler{tenantMiddleware}, taskHandler.HandleStatus)
	apirouter.RegisterRouteWithMiddleware(v1, "/scheduled-tasks", "GET", "/:taskId/executions", []fiber.Handler{tenantMiddleware}, taskHandler.HandleListExecutions)

	return nil
}
