package middleware

import (
	"github.com/gofiber/fiber/v3"

	basehdl "meta_report/internal/api/base/handler"
	"meta_report/internal/common"
)

// LocalsTenantID là key lưu tenant id trong fiber Locals
const LocalsTenantID = "tenant_id"

// TenantContextMiddleware đọc X-Tenant-ID từ header và lưu vào request context.
// Mọi route scheduled-task đều scoped theo tenant — thiếu header là lỗi client,
// từ chối ngay tại đây để handler không phải kiểm tra lại.
func TenantContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		tenantID := c.Get("X-Tenant-ID")
		if tenantID == "" {
			return basehdl.JSONResponse(c, common.StatusBadRequest, fiber.Map{
				"code":    common.ErrCodeValidationInput.Code,
				"message": "Thiếu header X-Tenant-ID",
				"status":  "error",
			})
		}

		c.Locals(LocalsTenantID, tenantID)
		return c.Next()
	}
}

// TenantIDFromCtx lấy tenant id đã được middleware set; rỗng nếu middleware chưa chạy
func TenantIDFromCtx(c fiber.Ctx) string {
	tenantID, _ := c.Locals(LocalsTenantID).(string)
	return tenantID
}
