package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage/memory"
)

func TestAttendanceSaveBatch(t *testing.T) {
	t.Run("整批保存成功", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewAttendanceService(store, nil, time.UTC, nil)

		records, err := svc.SaveBatch("t-100", "2026-03-02", []AttendanceEntry{
			{StudentName: "عبدالله", Status: domain.AttendancePresent},
			{StudentName: "يوسف", Status: domain.AttendanceAbsent, Notes: "مريض"},
		})
		require.NoError(t, err)
		require.Len(t, records, 2)

		for _, r := range records {
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, "2026-03-02", r.Date)
			assert.Equal(t, "t-100", r.TeacherID)
		}
		// 2026-03-02 是周一
		assert.Equal(t, "الإثنين 2026-03-02", records[0].DateDisplay)

		stored, err := store.ListAttendanceByTeacher("t-100", "", "")
		require.NoError(t, err)
		assert.Len(t, stored, 2)
	})

	t.Run("空批次失败", func(t *testing.T) {
		svc := NewAttendanceService(memory.NewStore(), nil, time.UTC, nil)

		_, err := svc.SaveBatch("t-100", "2026-03-02", nil)
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("日期格式非法失败", func(t *testing.T) {
		svc := NewAttendanceService(memory.NewStore(), nil, time.UTC, nil)

		_, err := svc.SaveBatch("t-100", "02/03/2026", []AttendanceEntry{
			{StudentName: "عبدالله", Status: domain.AttendancePresent},
		})
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("状态非法失败", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewAttendanceService(store, nil, time.UTC, nil)

		_, err := svc.SaveBatch("t-100", "2026-03-02", []AttendanceEntry{
			{StudentName: "عبدالله", Status: domain.AttendanceStatus("late")},
		})
		assert.ErrorIs(t, err, ErrInvalidStatus)

		// 校验失败时整批不落盘
		stored, err := store.ListAttendanceByTeacher("t-100", "", "")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("学生姓名为空失败", func(t *testing.T) {
		svc := NewAttendanceService(memory.NewStore(), nil, time.UTC, nil)

		_, err := svc.SaveBatch("t-100", "2026-03-02", []AttendanceEntry{
			{StudentName: "  ", Status: domain.AttendancePresent},
		})
		assert.ErrorIs(t, err, ErrStudentRequired)
	})

	t.Run("无协程池时异步提交退化为同步", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewAttendanceService(store, nil, time.UTC, nil)

		_, err := svc.SaveBatchAsync("t-100", "2026-03-02", []AttendanceEntry{
			{StudentName: "عبدالله", Status: domain.AttendancePresent},
		})
		require.NoError(t, err)

		stored, err := store.ListAttendanceByTeacher("t-100", "", "")
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	})
}

func TestAttendanceQueries(t *testing.T) {
	store := memory.NewStore()
	svc := NewAttendanceService(store, nil, time.UTC, nil)

	for _, date := range []string{"2026-03-01", "2026-03-02", "2026-03-08"} {
		_, err := svc.SaveBatch("t-100", date, []AttendanceEntry{
			{StudentName: "عبدالله", Status: domain.AttendancePresent},
		})
		require.NoError(t, err)
	}

	t.Run("按教师和日期区间查询", func(t *testing.T) {
		records, err := svc.ListByTeacher("t-100", "2026-03-01", "2026-03-02")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("按学生查询", func(t *testing.T) {
		records, err := svc.ListByStudent("عبدالله", "", "")
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("区间端点格式非法失败", func(t *testing.T) {
		_, err := svc.ListByTeacher("t-100", "yesterday", "")
		assert.ErrorIs(t, err, ErrInvalidDate)
	})
}

func TestStudentLogAppend(t *testing.T) {
	store := memory.NewStore()
	svc := NewStudentLogService(store, time.UTC)

	t.Run("追加并按学生查询", func(t *testing.T) {
		log, err := svc.Append(AppendLogInput{
			StudentID:     "S2001",
			Date:          "2026-03-02",
			NewMemorizing: "سورة الملك",
			Review:        "سورة يس",
			NewTarget:     "سورة القلم",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, log.ID)
		assert.Equal(t, "الإثنين 2026-03-02", log.DateDisplay)

		logs, err := svc.List("S2001")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "سورة الملك", logs[0].NewMemorizing)
	})

	t.Run("学生编号为空失败", func(t *testing.T) {
		_, err := svc.Append(AppendLogInput{Date: "2026-03-02"})
		assert.ErrorIs(t, err, ErrLogStudentRequired)
	})

	t.Run("日期留空取当天", func(t *testing.T) {
		log, err := svc.Append(AppendLogInput{StudentID: "S2002", Review: "جزء عم"})
		require.NoError(t, err)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), log.Date)
	})
}
