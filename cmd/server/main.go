package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"meta_report/internal/database"
	"meta_report/internal/global"
	"meta_report/internal/logger"
	"meta_report/internal/scheduler"
	"meta_report/internal/worker"
)

// initLogger khởi tạo và cấu hình logger cho toàn bộ ứng dụng
func initLogger() {
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	log := logger.GetAppLogger()
	log.Info("Logger system initialized successfully")
}

// startWorkers khởi động các background worker theo cấu hình.
// Mỗi worker chạy trong goroutine riêng với recover để panic không kéo sập server.
func startWorkers(ctx context.Context) {
	log := logger.GetAppLogger()
	cfg := global.MongoDB_ServerConfig

	if cfg.RenderWorkerOn {
		renderWorker, err := worker.NewExportRenderWorker(cfg.RendererURL, cfg.ExportStorageDir, 5*time.Second)
		if err != nil {
			log.WithError(err).Error("Failed to create export render worker, continuing without it")
		} else {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🖨️ [EXPORT_RENDER] Worker goroutine panic")
					}
				}()
				renderWorker.Start(ctx)
			}()
		}
	}

	if cfg.CleanupWorkerOn {
		cleanupWorker, err := worker.NewExecutionCleanupWorker(cfg.ExecRetentionDays, 24*time.Hour)
		if err != nil {
			log.WithError(err).Error("Failed to create execution cleanup worker, continuing without it")
		} else {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🧹 [EXECUTION_CLEANUP] Worker goroutine panic")
					}
				}()
				cleanupWorker.Start(ctx)
			}()
		}
	}
}

// main_thread chạy Fiber server trên main goroutine cho đến khi Shutdown được gọi
func main_thread(app *fiber.App) {
	log := logger.GetAppLogger()
	address := global.MongoDB_ServerConfig.Address

	log.WithFields(map[string]interface{}{
		"address":  address,
		"protocol": "HTTP",
	}).Info("Starting Fiber server...")

	if err := app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		log.Fatalf("Error in Fiber Listen: %v", err)
	}
}

// Hàm main
func main() {
	// Khởi tạo logger
	initLogger()

	// Khởi tạo các biến toàn cục (validator, config, database)
	InitGlobal()

	// Khởi tạo registry collections
	InitRegistry()

	// Dựng scheduler stack và load các task enabled
	schedRegistry := InitScheduler()

	// Chạy các background worker (render + cleanup)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	startWorkers(workerCtx)

	// Khởi tạo Fiber app
	app := InitFiberApp(schedRegistry)

	// Graceful shutdown: dừng timer, worker rồi đóng kết nối database
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log := logger.GetAppLogger()
		log.Info("Shutdown signal received, stopping...")

		shutdown(app, schedRegistry, cancelWorkers)
	}()

	// Chạy Fiber server trên main thread
	main_thread(app)
}

// shutdown dừng các thành phần theo thứ tự ngược với khởi động
func shutdown(app *fiber.App, schedRegistry *scheduler.Registry, cancelWorkers context.CancelFunc) {
	log := logger.GetAppLogger()

	schedRegistry.StopAll()
	cancelWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.WithError(err).Error("Error during server shutdown")
	}

	if global.MongoDB_Session != nil {
		if err := database.CloseInstance(global.MongoDB_Session); err != nil {
			log.WithError(err).Error("Error closing MongoDB connection")
		}
	}

	log.Info("Shutdown complete")
}
