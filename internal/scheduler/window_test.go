// Package scheduler - Test tính cửa sổ dữ liệu theo frequency và timezone.
package scheduler

import (
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("không load được timezone %s: %v", name, err)
	}
	return loc
}

func TestComputeWindow_Daily(t *testing.T) {
	loc := mustLoc(t, "Asia/Shanghai")
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, loc)

	w := computeWindowAt(now, "daily", loc)

	wantStart := time.Date(2024, 3, 14, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2024, 3, 15, 23, 59, 59, 999000000, loc)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start sai: got %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("end sai: got %v, want %v", w.End, wantEnd)
	}
}

func TestComputeWindow_Weekly(t *testing.T) {
	loc := mustLoc(t, "Asia/Shanghai")
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, loc)

	w := computeWindowAt(now, "weekly", loc)

	wantStart := time.Date(2024, 3, 8, 0, 0, 0, 0, loc)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start sai: got %v, want %v", w.Start, wantStart)
	}
}

func TestComputeWindow_Monthly(t *testing.T) {
	loc := mustLoc(t, "Asia/Shanghai")
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, loc)

	w := computeWindowAt(now, "monthly", loc)

	wantStart := time.Date(2024, 2, 15, 0, 0, 0, 0, loc)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start sai: got %v, want %v", w.Start, wantStart)
	}
}

func TestComputeWindow_UnknownFrequencyDungRuleDaily(t *testing.T) {
	loc := mustLoc(t, "Asia/Shanghai")
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, loc)

	w := computeWindowAt(now, "hourly", loc)
	want := computeWindowAt(now, "daily", loc)
	if !w.Start.Equal(want.Start) || !w.End.Equal(want.End) {
		t.Errorf("frequency lạ phải dùng rule daily: got [%v, %v]", w.Start, w.End)
	}
}

// Cửa sổ phải đúng theo giờ LỊCH của timezone kể cả khi khoảng [start, end]
// vắt qua lần đổi DST: start vẫn là 00:00 giờ địa phương của ngày đích.
func TestComputeWindow_QuaDST(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	// 2024-03-10 là ngày Mỹ chuyển sang DST (mất 1 giờ)
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, loc)

	w := computeWindowAt(now, "weekly", loc)

	wantStart := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start qua DST sai: got %v, want %v", w.Start, wantStart)
	}
	if h, m, s := w.Start.Clock(); h != 0 || m != 0 || s != 0 {
		t.Errorf("start phải là nửa đêm giờ địa phương, got %02d:%02d:%02d", h, m, s)
	}
	if h, _, _ := w.End.Clock(); h != 23 {
		t.Errorf("end phải là 23:59:59 giờ địa phương, got hour %d", h)
	}
	// Khoảng thực tế ngắn hơn 7 ngày tròn đúng 1 giờ vì mất 1 giờ DST
	elapsed := w.End.Sub(w.Start)
	want := 8*24*time.Hour - time.Hour - time.Millisecond
	if elapsed != want {
		t.Errorf("khoảng thời gian qua DST sai: got %v, want %v", elapsed, want)
	}
}

// Monthly ngày 31 tháng 3: time.Date normalize Feb 31 thành đầu tháng 3.
// Chấp nhận hành vi normalize của Go thay vì clamp về cuối tháng 2.
func TestComputeWindow_MonthlyNormalize(t *testing.T) {
	loc := mustLoc(t, "Asia/Shanghai")
	now := time.Date(2024, 3, 31, 9, 0, 0, 0, loc)

	w := computeWindowAt(now, "monthly", loc)

	wantStart := time.Date(2024, 3, 2, 0, 0, 0, 0, loc) // Feb 31 (năm nhuận, Feb có 29 ngày) -> Mar 2
	if !w.Start.Equal(wantStart) {
		t.Errorf("monthly normalize sai: got %v, want %v", w.Start, wantStart)
	}
}

func TestResolveLocation(t *testing.T) {
	def := time.UTC

	if got := ResolveLocation("", def); got != def {
		t.Error("tên rỗng phải trả về default location")
	}
	if got := ResolveLocation("khong/ton_tai", def); got != def {
		t.Error("timezone không hợp lệ phải fallback về default")
	}

	got := ResolveLocation("Asia/Ho_Chi_Minh", def)
	if got.String() != "Asia/Ho_Chi_Minh" {
		t.Errorf("timezone hợp lệ trả về sai: %v", got)
	}

	// Lần hai lấy từ cache, vẫn phải cùng location
	cached := ResolveLocation("Asia/Ho_Chi_Minh", def)
	if cached != got {
		t.Error("lần resolve thứ hai phải trả về location đã cache")
	}
}
