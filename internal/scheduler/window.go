// Package scheduler chứa core điều phối xuất báo cáo theo lịch:
// tính cửa sổ thời gian, cron registry theo (taskId, tenantId), driver chạy
// export sub-task với retry/backoff, coordinator cho một run và mailer tổng hợp.
package scheduler

import (
	"time"

	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/utility"
)

// Window là cửa sổ dữ liệu [Start, End] của một lần xuất báo cáo.
type Window struct {
	Start time.Time
	End   time.Time
}

// locationCache cache *time.Location theo tên để không LoadLocation lặp lại mỗi run.
var locationCache = utility.NewCache(12*time.Hour, 24*time.Hour)

// ResolveLocation load IANA timezone theo tên, fallback về defaultLoc khi tên rỗng
// hoặc không hợp lệ.
func ResolveLocation(name string, defaultLoc *time.Location) *time.Location {
	if name == "" {
		return defaultLoc
	}
	if cached, ok := locationCache.Get(name); ok {
		if loc, ok := cached.(*time.Location); ok {
			return loc
		}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return defaultLoc
	}
	locationCache.Set(name, loc)
	return loc
}

// ComputeWindow tính cửa sổ dữ liệu cho một lần chạy tại thời điểm hiện tại.
// end = 23:59:59.999 của "hôm nay" theo loc; start = 00:00:00.000 của ngày
// 1 ngày (daily), 7 ngày (weekly) hoặc 1 tháng lịch (monthly) trước đó.
func ComputeWindow(frequency string, loc *time.Location) Window {
	return computeWindowAt(time.Now(), frequency, loc)
}

// computeWindowAt tách riêng để test với thời điểm cố định.
// "Hôm nay" xác định bằng calendar fields theo loc, sau đó dựng lại instant
// trong chính loc đó — offset được resolve tại ngày đích, đúng qua các lần đổi DST.
func computeWindowAt(now time.Time, frequency string, loc *time.Location) Window {
	local := now.In(loc)
	y, m, d := local.Date()

	end := time.Date(y, m, d, 23, 59, 59, 999*int(time.Millisecond), loc)

	var start time.Time
	switch frequency {
	case schedmodels.FrequencyWeekly:
		start = time.Date(y, m, d-7, 0, 0, 0, 0, loc)
	case schedmodels.FrequencyMonthly:
		start = time.Date(y, m-1, d, 0, 0, 0, 0, loc)
	default:
		// Frequency không xác định dùng rule daily
		start = time.Date(y, m, d-1, 0, 0, 0, 0, loc)
	}

	return Window{Start: start, End: end}
}
