package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/pool"
	"maktab/backend/internal/storage"
)

var (
	ErrEmptyBatch      = errors.New("attendance batch is empty")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidStatus   = errors.New("invalid attendance status")
	ErrStudentRequired = errors.New("student name is required")
)

// 阿拉伯语星期名，DateDisplay 用
var arabicWeekdays = [...]string{
	time.Sunday:    "الأحد",
	time.Monday:    "الإثنين",
	time.Tuesday:   "الثلاثاء",
	time.Wednesday: "الأربعاء",
	time.Thursday:  "الخميس",
	time.Friday:    "الجمعة",
	time.Saturday:  "السبت",
}

// AttendanceService 封装考勤相关业务操作。
//
// 考勤按天、按教师整批提交。落盘可以同步（错误直接返回）或经协程
// 池异步（请求立即返回，失败记日志），由调用方选择。
type AttendanceService struct {
	repo storage.AttendanceRepository
	pool *pool.WorkerPool
	loc  *time.Location
	log  *zap.Logger
}

// NewAttendanceService 创建考勤服务。
// loc 决定 DateDisplay 的本地化；workerPool 可以为 nil，此时异步提交退化为同步。
func NewAttendanceService(repo storage.AttendanceRepository, workerPool *pool.WorkerPool, loc *time.Location, log *zap.Logger) *AttendanceService {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AttendanceService{
		repo: repo,
		pool: workerPool,
		loc:  loc,
		log:  log,
	}
}

// AttendanceEntry 整批提交中单个学生的标记
type AttendanceEntry struct {
	StudentName string                  `json:"studentName"`
	Status      domain.AttendanceStatus `json:"status"`
	Notes       string                  `json:"notes,omitempty"`
}

// SaveBatch 校验并同步落盘一批考勤记录
func (s *AttendanceService) SaveBatch(teacherID, date string, entries []AttendanceEntry) ([]domain.AttendanceRecord, error) {
	records, err := s.buildBatch(teacherID, date, entries)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveAttendanceBatch(records); err != nil {
		return nil, fmt.Errorf("failed to save attendance batch: %w", err)
	}
	return records, nil
}

// SaveBatchAsync 校验后将落盘任务交给协程池，立即返回。
// 存储失败只记日志；协程池缺失或队列已满时退化为同步落盘。
func (s *AttendanceService) SaveBatchAsync(teacherID, date string, entries []AttendanceEntry) ([]domain.AttendanceRecord, error) {
	records, err := s.buildBatch(teacherID, date, entries)
	if err != nil {
		return nil, err
	}

	task := func() {
		if err := s.repo.SaveAttendanceBatch(records); err != nil {
			s.log.Error("failed to save attendance batch",
				zap.String("teacher_id", teacherID),
				zap.String("date", date),
				zap.Int("records", len(records)),
				zap.Error(err),
			)
		}
	}

	if s.pool == nil || !s.pool.TrySubmit(task) {
		if err := s.repo.SaveAttendanceBatch(records); err != nil {
			return nil, fmt.Errorf("failed to save attendance batch: %w", err)
		}
	}
	return records, nil
}

// ListByTeacher 查询某教师提交的考勤，from/to 为空表示不限
func (s *AttendanceService) ListByTeacher(teacherID, from, to string) ([]domain.AttendanceRecord, error) {
	if err := validateOptionalDates(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListAttendanceByTeacher(teacherID, from, to)
}

// ListByStudent 查询某学生的考勤，from/to 为空表示不限
func (s *AttendanceService) ListByStudent(studentName, from, to string) ([]domain.AttendanceRecord, error) {
	if err := validateOptionalDates(from, to); err != nil {
		return nil, err
	}
	return s.repo.ListAttendanceByStudent(studentName, from, to)
}

// buildBatch 校验输入并装配待落盘的记录
func (s *AttendanceService) buildBatch(teacherID, date string, entries []AttendanceEntry) ([]domain.AttendanceRecord, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}

	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	now := time.Now().UTC()
	display := fmt.Sprintf("%s %s", arabicWeekdays[day.Weekday()], date)

	records := make([]domain.AttendanceRecord, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.StudentName) == "" {
			return nil, ErrStudentRequired
		}
		if !entry.Status.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, entry.Status)
		}

		records = append(records, domain.AttendanceRecord{
			ID:          uuid.NewString(),
			Date:        date,
			DateDisplay: display,
			TeacherID:   teacherID,
			StudentName: strings.TrimSpace(entry.StudentName),
			Status:      entry.Status,
			Notes:       entry.Notes,
			CreatedAt:   now,
		})
	}
	return records, nil
}

// validateOptionalDates 校验可选的日期端点格式
func validateOptionalDates(dates ...string) error {
	for _, d := range dates {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}
