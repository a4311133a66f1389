package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	schedmodels "meta_report/internal/api/scheduler/models"
	"meta_report/internal/common"
	"meta_report/internal/utility"
)

// validFrequencies là các frequency được hỗ trợ khi derive cron expression.
var validFrequencies = []string{
	schedmodels.FrequencyDaily,
	schedmodels.FrequencyWeekly,
	schedmodels.FrequencyMonthly,
}

// BuildCronExpression derive cron expression (5 field, chuẩn robfig/cron) từ frequency + giờ chạy.
// daily:   "M H * * *"
// weekly:  "M H * * 1" (thứ Hai)
// monthly: "M H 1 * *" (ngày mùng 1)
// cronExpression không bao giờ nhận trực tiếp từ user.
func BuildCronExpression(frequency, hhmm string) (string, error) {
	if !utility.Contains(validFrequencies, frequency) {
		return "", common.NewError(
			common.ErrCodeValidationInput,
			fmt.Sprintf("Frequency không hợp lệ: %q (chỉ hỗ trợ daily, weekly, monthly)", frequency),
			common.StatusBadRequest,
			nil,
		)
	}

	hour, minute, err := parseClock(hhmm)
	if err != nil {
		return "", err
	}

	switch frequency {
	case schedmodels.FrequencyWeekly:
		return fmt.Sprintf("%d %d * * 1", minute, hour), nil
	case schedmodels.FrequencyMonthly:
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	default:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	}
}

// parseClock parse chuỗi "HH:MM" và validate khoảng giá trị.
func parseClock(hhmm string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, 0, common.NewError(
			common.ErrCodeValidationFormat,
			fmt.Sprintf("Giờ chạy không đúng định dạng HH:MM: %q", hhmm),
			common.StatusBadRequest,
			nil,
		)
	}

	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, common.NewError(
			common.ErrCodeValidationFormat,
			fmt.Sprintf("Giờ chạy nằm ngoài khoảng hợp lệ (00:00 - 23:59): %q", hhmm),
			common.StatusBadRequest,
			nil,
		)
	}

	return hour, minute, nil
}
