package logger

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// WithRequest trả về logger entry với request context từ Fiber
func WithRequest(c fiber.Ctx) *logrus.Entry {
	entry := GetAppLogger().WithContext(context.Background())

	// Request ID middleware của Fiber set vào Locals; fallback sang header
	var requestID string
	if rid := c.Locals("requestid"); rid != nil {
		if ridStr, ok := rid.(string); ok {
			requestID = ridStr
		}
	}
	if requestID == "" {
		requestID = c.Get("X-Request-ID")
	}
	if requestID == "" {
		requestID = c.GetRespHeader("X-Request-ID")
	}
	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	// Tenant context nếu middleware đã set
	if tenantID, ok := c.Locals("tenant_id").(string); ok && tenantID != "" {
		entry = entry.WithField("tenant_id", tenantID)
	}

	entry = entry.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"ip":     c.IP(),
	})

	return entry
}

// WithTask trả về logger entry gắn với một cặp (taskId, tenantId)
func WithTask(taskID, tenantID string) *logrus.Entry {
	return GetAppLogger().WithFields(logrus.Fields{
		"taskId":   taskID,
		"tenantId": tenantID,
	})
}
