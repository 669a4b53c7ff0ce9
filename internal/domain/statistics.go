package domain

import "time"

// SystemStatistics 系统整体统计信息（管理端仪表盘使用）
type SystemStatistics struct {
	TotalTeachers    int       `json:"totalTeachers"`
	TotalStudents    int       `json:"totalStudents"`
	ActiveUsers      int       `json:"activeUsers"`
	TotalMessages    int       `json:"totalMessages"`
	UnreadMessages   int       `json:"unreadMessages"`
	MessagesToday    int       `json:"messagesToday"`
	AttendanceToday  int       `json:"attendanceToday"`
	AbsencesToday    int       `json:"absencesToday"`
	StudentLogsTotal int       `json:"studentLogsTotal"`
	GeneratedAt      time.Time `json:"generatedAt"`
}
