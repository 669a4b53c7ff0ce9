package sql

import (
	"time"

	"maktab/backend/internal/domain"
)

// ========== Admin Repository ==========

// GetSystemStatistics 汇总管理端仪表盘统计
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	stats := &domain.SystemStatistics{GeneratedAt: time.Now().UTC()}
	today := stats.GeneratedAt.Format("2006-01-02")
	startOfDay := stats.GeneratedAt.Truncate(24 * time.Hour)

	counts := []struct {
		query string
		dest  *int
		args  []interface{}
	}{
		{`SELECT COUNT(*) FROM users WHERE role = ?`, &stats.TotalTeachers, []interface{}{domain.RoleTeacher}},
		{`SELECT COUNT(*) FROM users WHERE role = ?`, &stats.TotalStudents, []interface{}{domain.RoleStudent}},
		{`SELECT COUNT(*) FROM users WHERE is_active = true`, &stats.ActiveUsers, nil},
		{`SELECT COUNT(*) FROM messages`, &stats.TotalMessages, nil},
		{`SELECT COUNT(*) FROM messages WHERE is_read = false`, &stats.UnreadMessages, nil},
		{`SELECT COUNT(*) FROM messages WHERE sent_at >= ?`, &stats.MessagesToday, []interface{}{startOfDay}},
		{`SELECT COUNT(*) FROM attendance_records WHERE date = ?`, &stats.AttendanceToday, []interface{}{today}},
		{`SELECT COUNT(*) FROM attendance_records WHERE date = ? AND status = ?`, &stats.AbsencesToday, []interface{}{today, domain.AttendanceAbsent}},
		{`SELECT COUNT(*) FROM student_logs`, &stats.StudentLogsTotal, nil},
	}

	for _, c := range counts {
		if err := s.db.QueryRow(s.rebind(c.query), c.args...).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
