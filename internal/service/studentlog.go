package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

var ErrLogStudentRequired = errors.New("student code is required")

// StudentLogService 封装背诵进度记录的业务操作。
type StudentLogService struct {
	repo storage.StudentLogRepository
	loc  *time.Location
}

// NewStudentLogService 创建进度记录服务
func NewStudentLogService(repo storage.StudentLogRepository, loc *time.Location) *StudentLogService {
	if loc == nil {
		loc = time.UTC
	}
	return &StudentLogService{repo: repo, loc: loc}
}

// AppendLogInput 追加进度记录的输入
type AppendLogInput struct {
	StudentID     string `json:"studentCode"`
	Date          string `json:"date"`
	NewMemorizing string `json:"newMemorizing"`
	Review        string `json:"review"`
	Listening     string `json:"listening"`
	NewTarget     string `json:"newTarget"`
	Notes         string `json:"notes,omitempty"`
}

// Append 校验并保存一条进度记录。
// 日期留空时取服务时区的当天。
func (s *StudentLogService) Append(input AppendLogInput) (*domain.StudentLog, error) {
	studentID := strings.TrimSpace(input.StudentID)
	if studentID == "" {
		return nil, ErrLogStudentRequired
	}

	date := input.Date
	if date == "" {
		date = time.Now().In(s.loc).Format("2006-01-02")
	}
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	log := &domain.StudentLog{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		Date:          date,
		DateDisplay:   fmt.Sprintf("%s %s", arabicWeekdays[day.Weekday()], date),
		NewMemorizing: input.NewMemorizing,
		Review:        input.Review,
		Listening:     input.Listening,
		NewTarget:     input.NewTarget,
		Notes:         input.Notes,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.SaveStudentLog(log); err != nil {
		return nil, fmt.Errorf("failed to save student log: %w", err)
	}
	return log, nil
}

// List 返回某学生的全部进度记录，最新在前
func (s *StudentLogService) List(studentID string) ([]domain.StudentLog, error) {
	return s.repo.ListStudentLogs(studentID)
}

// Delete 删除一条进度记录
func (s *StudentLogService) Delete(id string) error {
	return s.repo.DeleteStudentLog(id)
}
