package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// AsyncHook là một hook để ghi log bất đồng bộ, tránh blocking goroutine đang log.
// Hook buffer log entries vào channel và ghi chúng vào các writers trong một goroutine riêng.
type AsyncHook struct {
	writers []io.Writer // Danh sách các writers (file, stdout, etc.)
	entries chan *logrus.Entry
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewAsyncHookWithWriters tạo một async hook mới với nhiều writers
// bufferSize: kích thước buffer cho log entries (mặc định 1000)
func NewAsyncHookWithWriters(writers []io.Writer, bufferSize int) *AsyncHook {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	hook := &AsyncHook{
		writers: writers,
		entries: make(chan *logrus.Entry, bufferSize),
	}

	// Khởi động goroutine để xử lý log entries
	hook.wg.Add(1)
	go hook.processEntries()

	return hook
}

// Levels trả về các log levels mà hook này xử lý
func (h *AsyncHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire được gọi mỗi khi có log entry mới.
// Hàm này không block: chỉ đưa entry vào channel; nếu buffer đầy thì ghi trực tiếp.
func (h *AsyncHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		// Hook đã đóng, ghi trực tiếp vào các writers (fallback)
		return h.writeEntry(entry)
	}

	select {
	case h.entries <- entry.Dup():
		return nil
	default:
		// Buffer đầy, ghi đồng bộ để không mất log
		return h.writeEntry(entry)
	}
}

// processEntries đọc entries từ channel và ghi ra các writers
func (h *AsyncHook) processEntries() {
	defer h.wg.Done()
	for entry := range h.entries {
		_ = h.writeEntry(entry)
	}
}

// writeEntry format một entry và ghi ra tất cả writers
func (h *AsyncHook) writeEntry(entry *logrus.Entry) error {
	var data []byte
	var err error

	if entry.Logger != nil && entry.Logger.Formatter != nil {
		data, err = entry.Logger.Formatter.Format(entry)
	} else {
		line, strErr := entry.String()
		if strErr != nil {
			return strErr
		}
		data = []byte(line)
	}
	if err != nil {
		return err
	}

	for _, w := range h.writers {
		if _, werr := w.Write(data); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// Close đóng hook và chờ mọi entry còn trong buffer được ghi xong
func (h *AsyncHook) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	close(h.entries)
	h.wg.Wait()
}
