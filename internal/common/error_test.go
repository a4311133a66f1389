package common

import (
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestConvertMongoError(t *testing.T) {
	if ConvertMongoError(nil) != nil {
		t.Error("nil phải giữ nguyên nil")
	}

	if got := ConvertMongoError(mongo.ErrNoDocuments); !errors.Is(got, ErrNotFound) {
		t.Errorf("ErrNoDocuments phải map sang ErrNotFound, got %v", got)
	}

	// Lỗi đã là lỗi hệ thống thì giữ nguyên, không wrap thêm
	if got := ConvertMongoError(ErrDuplicate); got != ErrDuplicate {
		t.Errorf("lỗi hệ thống phải được giữ nguyên, got %v", got)
	}

	// Lỗi lạ map về lỗi database chung với StatusInternalServerError
	got := ConvertMongoError(errors.New("something odd"))
	var appErr *Error
	if !errors.As(got, &appErr) {
		t.Fatalf("lỗi lạ phải được wrap thành *Error, got %T", got)
	}
	if appErr.StatusCode != StatusInternalServerError {
		t.Errorf("status code sai: %d", appErr.StatusCode)
	}
}

func TestNewLegacyIndexError(t *testing.T) {
	cause := errors.New("E11000 duplicate key error index: taskId_unique")
	err := NewLegacyIndexError("report_scheduled_tasks", cause)

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatalf("phải là *Error, got %T", err)
	}
	if appErr.StatusCode != StatusConflict {
		t.Errorf("legacy index error phải là 409 Conflict, got %d", appErr.StatusCode)
	}
	if appErr.Code.Code != ErrCodeDatabaseIndex.Code {
		t.Errorf("code sai: %s", appErr.Code.Code)
	}

	// Thông điệp phải chứa hướng dẫn khắc phục cụ thể cho operator
	msg := appErr.Message
	if !strings.Contains(msg, "report_scheduled_tasks") {
		t.Errorf("message thiếu tên collection: %s", msg)
	}
	if !strings.Contains(msg, `dropIndex("taskId_unique")`) {
		t.Errorf("message thiếu lệnh dropIndex: %s", msg)
	}
	if !strings.Contains(msg, "(taskId, tenantId)") {
		t.Errorf("message phải giải thích uniqueness theo cặp: %s", msg)
	}
}

func TestErrorIs(t *testing.T) {
	if !errors.Is(ErrTaskNotFound, ErrTaskNotFound) {
		t.Error("errors.Is với chính nó phải true")
	}
	if errors.Is(ErrTaskNotFound, ErrTaskDisabled) {
		t.Error("hai lỗi khác nhau không được match")
	}
}
