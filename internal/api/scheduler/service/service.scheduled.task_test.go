package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"meta_report/internal/api/scheduler/dto"
	"meta_report/internal/api/scheduler/models"
)

// Disable rồi enable lại với body rỗng: cấu hình tenant đã lưu
// (recipient, pageIds, branchIds, frequency, time) phải giữ nguyên.
func TestBuildUpsertData_EnableKhongKemDataGiuNguyenCauHinh(t *testing.T) {
	existing := &models.ScheduledTask{
		TaskID:     models.TaskIDAutoReportExport,
		TenantID:   "tenant-1",
		Enable:     false,
		Frequency:  models.FrequencyWeekly,
		Time:       "08:30",
		Timezone:   "Asia/Ho_Chi_Minh",
		Recipients: []string{"owner@folkgroup.vn"},
		PageIDs:    []string{"revenue", "orders"},
		BranchIDs:  []string{"hcm", "hn"},
	}

	update, err := buildUpsertData(models.TaskIDAutoReportExport, "tenant-1", existing,
		&dto.UpsertScheduledTaskInput{Enable: true})
	assert.NoError(t, err, "Enable với body rỗng không được lỗi")

	assert.Equal(t, true, update.Set["enable"], "Enable phải được flip sang true")
	assert.Equal(t, models.FrequencyWeekly, update.Set["frequency"], "Frequency phải giữ giá trị trước khi disable")
	assert.Equal(t, "08:30", update.Set["time"], "Time phải giữ giá trị trước khi disable")
	assert.Equal(t, "30 8 * * 1", update.Set["cronExpression"], "Cron phải derive từ frequency/time đã lưu, không phải default")

	// Field không có trong request phải vắng mặt khỏi $set để Mongo giữ nguyên giá trị cũ
	for _, field := range []string{"recipient", "pageIds", "branchIds", "timezone"} {
		_, present := update.Set[field]
		assert.False(t, present, "Field %q không được xuất hiện trong $set khi request không gửi", field)
	}
}

// Tenant chưa từng có bản ghi: enable lần đầu với body rỗng phải ra default daily 09:00.
func TestBuildUpsertData_TaoMoiDungDefault(t *testing.T) {
	update, err := buildUpsertData(models.TaskIDAutoReportExport, "tenant-moi", nil,
		&dto.UpsertScheduledTaskInput{Enable: true})
	assert.NoError(t, err)

	assert.Equal(t, models.FrequencyDaily, update.Set["frequency"])
	assert.Equal(t, "09:00", update.Set["time"])
	assert.Equal(t, "0 9 * * *", update.Set["cronExpression"])
	assert.Equal(t, models.TaskIDAutoReportExport, update.Set["taskId"])
	assert.Equal(t, "tenant-moi", update.Set["tenantId"])
}

// Field request gửi lên phải thắng giá trị đang lưu, và cron derive theo giá trị mới.
func TestBuildUpsertData_RequestGhiDeGiaTriCu(t *testing.T) {
	existing := &models.ScheduledTask{
		Frequency:  models.FrequencyWeekly,
		Time:       "08:30",
		Recipients: []string{"old@folkgroup.vn"},
	}

	update, err := buildUpsertData(models.TaskIDAutoReportExport, "tenant-1", existing,
		&dto.UpsertScheduledTaskInput{
			Enable:    true,
			Frequency: models.FrequencyMonthly,
			Recipient: []string{"new@folkgroup.vn"},
		})
	assert.NoError(t, err)

	assert.Equal(t, models.FrequencyMonthly, update.Set["frequency"], "Frequency mới phải ghi đè giá trị cũ")
	assert.Equal(t, "08:30", update.Set["time"], "Time không gửi thì giữ giá trị cũ")
	assert.Equal(t, "30 8 1 * *", update.Set["cronExpression"])
	assert.Equal(t, []string{"new@folkgroup.vn"}, update.Set["recipient"])
}

// Frequency không hợp lệ phải bị chặn ngay từ lúc build update, trước khi chạm database.
func TestBuildUpsertData_FrequencyKhongHopLe(t *testing.T) {
	_, err := buildUpsertData(models.TaskIDAutoReportExport, "tenant-1", nil,
		&dto.UpsertScheduledTaskInput{Enable: true, Frequency: "hourly"})
	assert.Error(t, err, "Frequency ngoài daily/weekly/monthly phải trả lỗi")
}
