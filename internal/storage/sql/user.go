package sql

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

// ========== User Repository ==========

const userColumns = `id, code, name, role, password_hash, email, class, teacher_id,
	       is_active, created_at, updated_at, last_login_at`

// CreateUser 创建新账号，登录编号重复时返回 ErrCodeExists
func (s *Store) CreateUser(user *domain.User) error {
	var exists int
	query := s.rebind(`SELECT COUNT(*) FROM users WHERE code = ?`)
	if err := s.db.QueryRow(query, user.Code).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return storage.ErrCodeExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query = s.rebind(`
		INSERT INTO users (id, code, name, role, password_hash, email, class, teacher_id,
		                   is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		user.ID,
		user.Code,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Email,
		user.Class,
		user.TeacherID,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}

// GetUserByID 根据 ID 获取账号
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.scanUser(s.db.QueryRow(query, id))
}

// GetUserByCode 根据登录编号获取账号
func (s *Store) GetUserByCode(code string) (*domain.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE code = ?`)
	return s.scanUser(s.db.QueryRow(query, code))
}

// ListUsersByRole 列出指定角色的全部账号
func (s *Store) ListUsersByRole(role domain.Role) ([]domain.User, error) {
	query := s.rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE role = ?
		ORDER BY name ASC
	`)
	return s.queryUsers(query, role)
}

// ListStudentsByTeacher 列出某教师名下的学生
func (s *Store) ListStudentsByTeacher(teacherID string) ([]domain.User, error) {
	query := s.rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE teacher_id = ? AND role = ?
		ORDER BY name ASC
	`)
	return s.queryUsers(query, teacherID, domain.RoleStudent)
}

// UpdateUser 更新账号信息
func (s *Store) UpdateUser(user *domain.User) error {
	query := s.rebind(`
		UPDATE users
		SET code = ?, name = ?, role = ?, password_hash = ?, email = ?,
		    class = ?, teacher_id = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)
	result, err := s.db.Exec(query,
		user.Code,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Email,
		user.Class,
		user.TeacherID,
		user.IsActive,
		time.Now().UTC(),
		user.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新账号最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	query := s.rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`)
	_, err := s.db.Exec(query, time.Now().UTC(), userID)
	return err
}

// DeleteUser 删除账号
func (s *Store) DeleteUser(userID string) error {
	query := s.rebind(`DELETE FROM users WHERE id = ?`)
	result, err := s.db.Exec(query, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

func (s *Store) scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Code,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.Email,
		&user.Class,
		&user.TeacherID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	return &user, nil
}

func (s *Store) queryUsers(query string, args ...interface{}) ([]domain.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		var lastLoginAt sql.NullTime

		err := rows.Scan(
			&user.ID,
			&user.Code,
			&user.Name,
			&user.Role,
			&user.PasswordHash,
			&user.Email,
			&user.Class,
			&user.TeacherID,
			&user.IsActive,
			&user.CreatedAt,
			&user.UpdatedAt,
			&lastLoginAt,
		)
		if err != nil {
			return nil, err
		}

		if lastLoginAt.Valid {
			user.LastLoginAt = &lastLoginAt.Time
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
