// package handler chứa handler HTTP cho domain Scheduler
package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	basehdl "meta_report/internal/api/base/handler"
	"meta_report/internal/api/middleware"
	"meta_report/internal/api/scheduler/dto"
	"meta_report/internal/api/scheduler/models"
	"meta_report/internal/api/scheduler/service"
	"meta_report/internal/common"
	"meta_report/internal/scheduler"
)

// ScheduledTaskHandler xử lý các request quản lý lịch xuất báo cáo
type ScheduledTaskHandler struct {
	basehdl.BaseHandler
	tasks      *service.ScheduledTaskService
	executions *service.TaskExecutionService
	registry   *scheduler.Registry
}

// NewScheduledTaskHandler tạo mới ScheduledTaskHandler
func NewScheduledTaskHandler(registry *scheduler.Registry) (*ScheduledTaskHandler, error) {
	tasks, err := service.NewScheduledTaskService()
	if err != nil {
		return nil, err
	}

	executions, err := service.NewTaskExecutionService()
	if err != nil {
		return nil, err
	}

	return &ScheduledTaskHandler{
		tasks:      tasks,
		executions: executions,
		registry:   registry,
	}, nil
}

// HandleUpsert xử lý PUT /scheduled-tasks: enable/cập nhật hoặc disable lịch của tenant.
// Sau khi ghi config, registry được đồng bộ ngay: enable -> reschedule, disable -> unschedule.
func (h *ScheduledTaskHandler) HandleUpsert(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		tenantID := middleware.TenantIDFromCtx(c)

		input := new(dto.UpsertScheduledTaskInput)
		if err := h.ParseRequestBody(c, input); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		taskID := models.TaskIDAutoReportExport
		ctx := context.Background()

		if !input.Enable {
			task, err := h.tasks.Disable(ctx, taskID, tenantID)
			if err == nil {
				h.registry.Unschedule(taskID, tenantID)
			}
			h.HandleResponse(c, task, err)
			return nil
		}

		task, err := h.tasks.EnableOrUpdate(ctx, taskID, tenantID, input)
		if err == nil {
			err = h.registry.Reschedule(ctx, taskID, tenantID)
		}
		h.HandleResponse(c, task, err)
		return nil
	})
}

// HandleTrigger xử lý POST /scheduled-tasks/:taskId/trigger: fire run ngay, ngoài lịch.
// Run chạy bất đồng bộ; response chỉ xác nhận đã nhận trigger.
func (h *ScheduledTaskHandler) HandleTrigger(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		tenantID := middleware.TenantIDFromCtx(c)

		params := new(dto.ScheduledTaskParams)
		if err := h.ParseRequestParams(c, params); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		err := h.registry.TriggerNow(context.Background(), params.TaskID, tenantID)
		if err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		h.HandleResponse(c, fiber.Map{
			"taskId":    params.TaskID,
			"tenantId":  tenantID,
			"triggered": true,
		}, nil)
		return nil
	})
}

// HandleStatus xử lý GET /scheduled-tasks/:taskId/status: trả cấu hình hiện tại kèm
// trạng thái timer (đang chạy không, lần fire kế tiếp)
func (h *ScheduledTaskHandler) HandleStatus(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		tenantID := middleware.TenantIDFromCtx(c)

		params := new(dto.ScheduledTaskParams)
		if err := h.ParseRequestParams(c, params); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		task, err := h.tasks.FindByKey(context.Background(), params.TaskID, tenantID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				h.HandleResponse(c, nil, common.ErrTaskNotFound)
				return nil
			}
			h.HandleResponse(c, nil, err)
			return nil
		}

		status := h.registry.Status(params.TaskID, tenantID)
		h.HandleResponse(c, fiber.Map{
			"task":   task,
			"status": status,
		}, nil)
		return nil
	})
}

// HandleListExecutions xử lý GET /scheduled-tasks/:taskId/executions: lịch sử run
// của tenant, mới nhất trước, có phân trang và filter theo status
func (h *ScheduledTaskHandler) HandleListExecutions(c fiber.Ctx) error {
	return h.SafeHandler(c, func() error {
		tenantID := middleware.TenantIDFromCtx(c)

		params := new(dto.ScheduledTaskParams)
		if err := h.ParseRequestParams(c, params); err != nil {
			h.HandleResponse(c, nil, err)
			return nil
		}

		query := new(dto.ListExecutionsQuery)
		if err := c.Bind().Query(query); err != nil {
			h.HandleResponse(c, nil, common.ErrInvalidFormat)
			return nil
		}

		page, limit := h.ParsePagination(c)
		result, err := h.executions.FindHistory(context.Background(), params.TaskID, tenantID, query.Status, page, limit)
		h.HandleResponse(c, result, err)
		return nil
	})
}
