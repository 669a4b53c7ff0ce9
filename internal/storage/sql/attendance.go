package sql

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

// ========== Attendance Repository ==========

const attendanceColumns = `id, date, date_display, teacher_id, student_name, status, notes, created_at`

// SaveAttendanceBatch 在单个事务内写入一批考勤记录。
// 任何一条失败整批回滚，不会留下半天的考勤。
func (s *Store) SaveAttendanceBatch(records []domain.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := s.rebind(`
		INSERT INTO attendance_records (id, date, date_display, teacher_id, student_name, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	now := time.Now().UTC()
	for i := range records {
		record := &records[i]
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}

		_, err := tx.Exec(query,
			record.ID,
			record.Date,
			record.DateDisplay,
			record.TeacherID,
			record.StudentName,
			record.Status,
			record.Notes,
			record.CreatedAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save attendance record: %w", err)
		}
	}

	return tx.Commit()
}

// ListAttendanceByTeacher 列出某教师提交的考勤，可按日期区间过滤
func (s *Store) ListAttendanceByTeacher(teacherID string, from, to string) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE teacher_id = ?
	`
	args := []interface{}{teacherID}
	query, args = appendDateRange(query, args, from, to)
	query += ` ORDER BY date DESC, student_name ASC`

	return s.queryAttendance(s.rebind(query), args...)
}

// ListAttendanceByStudent 列出某学生的考勤，可按日期区间过滤
func (s *Store) ListAttendanceByStudent(studentName string, from, to string) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE student_name = ?
	`
	args := []interface{}{studentName}
	query, args = appendDateRange(query, args, from, to)
	query += ` ORDER BY date DESC`

	return s.queryAttendance(s.rebind(query), args...)
}

// appendDateRange 追加 ISO 日期区间条件，空串表示不限
func appendDateRange(query string, args []interface{}, from, to string) (string, []interface{}) {
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	return query, args
}

func (s *Store) queryAttendance(query string, args ...interface{}) ([]domain.AttendanceRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.AttendanceRecord{}
	for rows.Next() {
		var record domain.AttendanceRecord
		err := rows.Scan(
			&record.ID,
			&record.Date,
			&record.DateDisplay,
			&record.TeacherID,
			&record.StudentName,
			&record.Status,
			&record.Notes,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ========== StudentLog Repository ==========

// SaveStudentLog 写入一条背诵进度记录
func (s *Store) SaveStudentLog(log *domain.StudentLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO student_logs (id, student_id, date, date_display, new_memorizing, review, listening, new_target, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		log.ID,
		log.StudentID,
		log.Date,
		log.DateDisplay,
		log.NewMemorizing,
		log.Review,
		log.Listening,
		log.NewTarget,
		log.Notes,
		log.CreatedAt,
	)
	return err
}

// ListStudentLogs 列出某学生的全部进度记录，最新在前
func (s *Store) ListStudentLogs(studentID string) ([]domain.StudentLog, error) {
	query := s.rebind(`
		SELECT id, student_id, date, date_display, new_memorizing, review, listening, new_target, notes, created_at
		FROM student_logs
		WHERE student_id = ?
		ORDER BY date DESC, created_at DESC
	`)

	rows, err := s.db.Query(query, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []domain.StudentLog{}
	for rows.Next() {
		var log domain.StudentLog
		err := rows.Scan(
			&log.ID,
			&log.StudentID,
			&log.Date,
			&log.DateDisplay,
			&log.NewMemorizing,
			&log.Review,
			&log.Listening,
			&log.NewTarget,
			&log.Notes,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// DeleteStudentLog 删除一条进度记录
func (s *Store) DeleteStudentLog(id string) error {
	query := s.rebind(`DELETE FROM student_logs WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrLogNotFound
	}
	return nil
}
