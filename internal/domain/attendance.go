package domain

import "time"

// AttendanceStatus 考勤状态
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// Valid 判断考勤状态是否合法
func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// AttendanceRecord 表示某天某学生的一条考勤记录。
//
// 记录按天、按教师批量写入：教师在花名册界面为每个学生标记状态后
// 一次性提交整批记录。
type AttendanceRecord struct {
	ID          string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Date        string           `json:"date" gorm:"type:varchar(10);index;not null"`    // ISO 日期 YYYY-MM-DD
	DateDisplay string           `json:"dateDisplay,omitempty" gorm:"type:varchar(100)"` // 本地化显示文本（含星期）
	TeacherID   string           `json:"teacherId" gorm:"type:varchar(36);index;not null"`
	StudentName string           `json:"studentName" gorm:"type:varchar(255);not null"`
	Status      AttendanceStatus `json:"status" gorm:"type:varchar(10);not null"`
	Notes       string           `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time        `json:"createdAt"`
}
