package scheduler

import (
	"testing"

	"github.com/robfig/cron/v3"
)

func TestBuildCronExpression(t *testing.T) {
	cases := []struct {
		frequency string
		time      string
		want      string
	}{
		{"daily", "09:00", "0 9 * * *"},
		{"daily", "23:59", "59 23 * * *"},
		{"weekly", "09:30", "30 9 * * 1"},
		{"monthly", "00:00", "0 0 1 * *"},
	}

	for _, tc := range cases {
		got, err := BuildCronExpression(tc.frequency, tc.time)
		if err != nil {
			t.Errorf("BuildCronExpression(%s, %s) lỗi: %v", tc.frequency, tc.time, err)
			continue
		}
		if got != tc.want {
			t.Errorf("BuildCronExpression(%s, %s) = %q, want %q", tc.frequency, tc.time, got, tc.want)
		}
	}
}

// Mọi expression derive ra phải parse được bởi chính cron parser dùng trong registry.
func TestBuildCronExpression_ParseDuocBoiCron(t *testing.T) {
	parser := cron.ParseStandard
	for _, freq := range []string{"daily", "weekly", "monthly"} {
		expr, err := BuildCronExpression(freq, "07:15")
		if err != nil {
			t.Fatalf("BuildCronExpression(%s) lỗi: %v", freq, err)
		}
		if _, err := parser(expr); err != nil {
			t.Errorf("expression %q không parse được: %v", expr, err)
		}
	}
}

func TestBuildCronExpression_FrequencyKhongHopLe(t *testing.T) {
	if _, err := BuildCronExpression("hourly", "09:00"); err == nil {
		t.Error("frequency lạ phải trả lỗi")
	}
	if _, err := BuildCronExpression("", "09:00"); err == nil {
		t.Error("frequency rỗng phải trả lỗi")
	}
}

func TestBuildCronExpression_GioKhongHopLe(t *testing.T) {
	for _, bad := range []string{"", "9h00", "24:00", "12:60", "-1:00", "12:34:56"} {
		if _, err := BuildCronExpression("daily", bad); err == nil {
			t.Errorf("giờ %q phải trả lỗi", bad)
		}
	}
}
