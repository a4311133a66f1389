// Package router chứa helper đăng ký route dùng chung cho các domain router.
package router

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRouteWithMiddleware đăng ký một route kèm middleware chain qua .Use().
//
// ⚠️ LƯU Ý: Fiber v3 KHÔNG gọi middleware khi truyền trực tiếp trong route
// (router.Get(path, middleware, handler) bỏ qua middleware). Phải tạo group
// và attach middleware bằng .Use() như hàm này làm. Mọi route mới đều phải
// đi qua đây thay vì đăng ký trực tiếp.
func RegisterRouteWithMiddleware(router fiber.Router, prefix string, method string, path string, middlewares []fiber.Handler, handler fiber.Handler) {
	routeGroup := router.Group(prefix)
	for _, mw := range middlewares {
		routeGroup.Use(mw)
	}

	switch method {
	case "GET":
		routeGroup.Get(path, handler)
	case "POST":
		routeGroup.Post(path, handler)
	case "PUT":
		routeGroup.Put(path, handler)
	case "DELETE":
		routeGroup.Delete(path, handler)
	}
}
