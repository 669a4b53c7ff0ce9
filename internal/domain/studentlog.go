package domain

import "time"

// StudentLog 表示学生某天的背诵进度记录。
type StudentLog struct {
	ID            string    `json:"id,omitempty" gorm:"primaryKey;type:varchar(36)"`
	StudentID     string    `json:"studentCode" gorm:"type:varchar(64);index;not null"`
	Date          string    `json:"date" gorm:"type:varchar(10);index;not null"` // ISO 日期 YYYY-MM-DD
	DateDisplay   string    `json:"dateDisplay,omitempty" gorm:"type:varchar(100)"`
	NewMemorizing string    `json:"newMemorizing" gorm:"type:varchar(500)"` // 新背内容
	Review        string    `json:"review" gorm:"type:varchar(500)"`        // 复习内容
	Listening     string    `json:"listening" gorm:"type:varchar(500)"`     // 听写内容
	NewTarget     string    `json:"newTarget" gorm:"type:varchar(500)"`     // 下次目标
	Notes         string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt"`
}
