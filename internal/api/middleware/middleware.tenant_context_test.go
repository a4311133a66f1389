package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
)

// newTenantTestApp dựng một app tối giản có middleware tenant,
// route echo lại tenant id đã được set vào Locals.
func newTenantTestApp() *fiber.App {
	app := fiber.New()
	app.Use(TenantContextMiddleware())
	app.Get("/echo", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"tenantId": TenantIDFromCtx(c)})
	})
	return app
}

// TestTenantContextMiddleware kiểm tra cả hai nhánh: có và không có header X-Tenant-ID
func TestTenantContextMiddleware(t *testing.T) {
	app := newTenantTestApp()

	t.Run("Thiếu header X-Tenant-ID trả về 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/echo", nil)

		resp, err := app.Test(req)
		assert.NoError(t, err, "Request không được lỗi transport")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "Thiếu tenant header phải bị từ chối 400")

		body, _ := io.ReadAll(resp.Body)
		var result map[string]interface{}
		err = json.Unmarshal(body, &result)
		assert.NoError(t, err, "Phải parse được JSON response")
		assert.Equal(t, "error", result["status"], "Response phải có status error")
	})

	t.Run("Có header X-Tenant-ID thì đi tiếp và set Locals", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Header.Set("X-Tenant-ID", "tenant-42")

		resp, err := app.Test(req)
		assert.NoError(t, err, "Request không được lỗi transport")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "Có tenant header phải đi qua middleware")

		body, _ := io.ReadAll(resp.Body)
		var result map[string]interface{}
		err = json.Unmarshal(body, &result)
		assert.NoError(t, err, "Phải parse được JSON response")
		assert.Equal(t, "tenant-42", result["tenantId"], "Tenant id phải được truyền tới handler qua Locals")
	})
}
