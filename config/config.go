package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration chứa thông tin tĩnh cần thiết để chạy ứng dụng
// Bao gồm cấu hình server, MongoDB, SMTP và các tham số của scheduler
type Configuration struct {
	Address               string `env:"ADDRESS" envDefault:":8080"`                // Địa chỉ server
	MongoDB_ConnectionURI string `env:"MONGODB_CONNECTION_URI,required"`           // URL kết nối cơ sở dữ liệu
	MongoDB_DBName        string `env:"MONGODB_DBNAME,required"`                   // Tên cơ sở dữ liệu
	CORS_Origins          string `env:"CORS_ORIGINS" envDefault:"*"`               // Các origins được phép (phân cách bởi dấu phẩy, * = tất cả)
	CORS_AllowCredentials bool   `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"` // Cho phép gửi credentials
	RateLimit_Max         int    `env:"RATE_LIMIT_MAX" envDefault:"100"`           // Số request tối đa trong window (0 = disable rate limit)
	RateLimit_Window      int    `env:"RATE_LIMIT_WINDOW" envDefault:"60"`         // Thời gian window (giây)
	RateLimit_Enabled     bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`      // Bật/tắt rate limiting

	// SMTP Configuration (Notification Aggregator)
	SMTPHost     string `env:"SMTP_HOST"`                                 // SMTP host
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`                // SMTP port
	SMTPUsername string `env:"SMTP_USERNAME"`                             // SMTP username
	SMTPPassword string `env:"SMTP_PASSWORD"`                             // SMTP password
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"reports@localhost"`  // Địa chỉ gửi
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Report Center"` // Tên hiển thị của người gửi

	// Scheduler Configuration
	DefaultTimezone      string `env:"DEFAULT_TIMEZONE" envDefault:"Asia/Shanghai"` // Timezone mặc định khi task không khai báo
	ExportRetryMax       int    `env:"EXPORT_RETRY_MAX" envDefault:"3"`             // Số lần retry tối đa cho một export sub-task
	ExportPollIntervalMs int    `env:"EXPORT_POLL_INTERVAL_MS" envDefault:"2000"`   // Khoảng cách giữa các lần poll trạng thái sub-task (ms)
	ExportMaxWaitSec     int    `env:"EXPORT_MAX_WAIT_SEC" envDefault:"600"`        // Thời gian chờ tối đa cho một sub-task (giây)

	// Export Renderer (external worker pool)
	RendererURL       string `env:"RENDERER_URL" envDefault:"http://localhost:3001/render"` // Endpoint của rendering worker
	ExportStorageDir  string `env:"EXPORT_STORAGE_DIR" envDefault:"./storage/exports"`      // Thư mục lưu file export (gốc của đường dẫn tương đối)
	ReportBaseURL     string `env:"REPORT_BASE_URL" envDefault:"http://localhost:3000"`     // Base URL của report page để renderer truy cập
	ExecRetentionDays int    `env:"EXECUTION_RETENTION_DAYS" envDefault:"90"`               // Số ngày giữ lại execution records
	RenderWorkerOn    bool   `env:"RENDER_WORKER_ENABLED" envDefault:"true"`                // Bật/tắt render worker nội bộ
	CleanupWorkerOn   bool   `env:"CLEANUP_WORKER_ENABLED" envDefault:"true"`               // Bật/tắt cleanup worker
}

// getEnvPath trả về đường dẫn đến file env dựa trên môi trường
func getEnvPath() string {
	// Mặc định sử dụng môi trường development
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Tìm thư mục config
	currentDir, err := os.Getwd()
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể lấy được thư mục hiện tại: %v\n", err)
		return ""
	}

	// Tìm thư mục config/env
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			// Tìm thấy thư mục config/env
			envPath := filepath.Join(envDir, fmt.Sprintf("%s.env", env))
			return envPath
		}

		// Đi lên thư mục cha
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig sẽ đọc dữ liệu cấu hình từ file env được cung cấp
func NewConfig(files ...string) *Configuration {
	envPath := getEnvPath()
	if envPath == "" {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không tìm thấy thư mục config/env\n")
		return nil
	}

	err := godotenv.Load(envPath)
	if err != nil {
		// Sử dụng fmt.Printf vì logger có thể chưa được init ở đây
		fmt.Printf("Không thể load file env tại %s: %v\n", envPath, err)
		return nil
	}

	cfg := Configuration{}
	err = env.Parse(&cfg)
	if err != nil {
		fmt.Printf("Lỗi khi parse config: %+v\n", err)
		return nil
	}

	return &cfg
}
