package sql

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

// ========== Message Repository ==========
//
// 顶层消息与回复存在同一张表：回复行携带非空 parent_id，顶层行的
// parent_id 为空字符串。查询只返回顶层行，回复在装配阶段挂回
// Replies 字段。

const messageColumns = `id, parent_id, sender_id, sender_name, sender_role,
	       recipient_id, recipient_role, subject, content, sent_at, is_read`

// SaveMessage 落盘一条顶层消息，ID 为空时由存储层分配
func (s *Store) SaveMessage(message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	message.ParentID = ""

	query := s.rebind(`
		INSERT INTO messages (id, parent_id, sender_id, sender_name, sender_role,
		                      recipient_id, recipient_role, subject, content, sent_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		message.ID,
		message.ParentID,
		message.SenderID,
		message.SenderName,
		message.SenderRole,
		message.RecipientID,
		message.RecipientRole,
		message.Subject,
		message.Content,
		message.SentAt,
		message.IsRead,
	)
	return err
}

// ListInbox 返回 (userID, role) 收到的顶层消息。
//
// 除了直接寻址到该身份的消息，还包含任一回复寻址到该身份的线程，
// 这样回复会把整个线程带回原发件人的收件箱。
func (s *Store) ListInbox(userID string, role domain.Role) ([]domain.Message, error) {
	query := s.rebind(`
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.parent_id = ''
		  AND ((m.recipient_id = ? AND m.recipient_role = ?)
		       OR EXISTS (
		              SELECT 1 FROM messages r
		              WHERE r.parent_id = m.id AND r.recipient_id = ? AND r.recipient_role = ?
		          ))
		ORDER BY m.sent_at DESC
	`)
	return s.queryThreads(query, userID, role, userID, role)
}

// ListSent 返回 (userID, role) 发出的顶层消息
func (s *Store) ListSent(userID string, role domain.Role) ([]domain.Message, error) {
	query := s.rebind(`
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.parent_id = '' AND m.sender_id = ? AND m.sender_role = ?
		ORDER BY m.sent_at DESC
	`)
	return s.queryThreads(query, userID, role)
}

// GetMessage 获取单条顶层消息及其回复
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	query := s.rebind(`
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.id = ? AND m.parent_id = ''
	`)

	var msg domain.Message
	err := s.scanMessage(s.db.QueryRow(query, id), &msg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	replies, err := s.loadReplies([]string{msg.ID})
	if err != nil {
		return nil, err
	}
	msg.Replies = replies[msg.ID]
	return &msg, nil
}

// AppendReply 向父消息追加一条回复。
//
// 父消息必须是存在的顶层消息：查询带 parent_id 为空串的条件，对回复
// ID 调用会返回 ErrMessageNotFound，嵌套回复在存储层就不可能产生。
func (s *Store) AppendReply(parentID string, reply *domain.Message) error {
	var exists int
	query := s.rebind(`SELECT COUNT(*) FROM messages WHERE id = ? AND parent_id = ''`)
	if err := s.db.QueryRow(query, parentID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return storage.ErrMessageNotFound
	}

	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	reply.ParentID = parentID

	query = s.rebind(`
		INSERT INTO messages (id, parent_id, sender_id, sender_name, sender_role,
		                      recipient_id, recipient_role, subject, content, sent_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		reply.ID,
		reply.ParentID,
		reply.SenderID,
		reply.SenderName,
		reply.SenderRole,
		reply.RecipientID,
		reply.RecipientRole,
		reply.Subject,
		reply.Content,
		reply.SentAt,
		reply.IsRead,
	)
	return err
}

// MarkMessageRead 将消息置为已读，幂等
func (s *Store) MarkMessageRead(id string) error {
	// MySQL 对无变化的 UPDATE 报告零行，存在性单独确认
	var exists int
	query := s.rebind(`SELECT COUNT(*) FROM messages WHERE id = ?`)
	if err := s.db.QueryRow(query, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return storage.ErrMessageNotFound
	}

	query = s.rebind(`UPDATE messages SET is_read = true WHERE id = ?`)
	_, err := s.db.Exec(query, id)
	return err
}

// DeleteMessage 硬删除消息及其全部回复
func (s *Store) DeleteMessage(id string) error {
	query := s.rebind(`DELETE FROM messages WHERE id = ?`)
	result, err := s.db.Exec(query, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrMessageNotFound
	}

	query = s.rebind(`DELETE FROM messages WHERE parent_id = ?`)
	_, err = s.db.Exec(query, id)
	return err
}

// queryThreads 执行顶层消息查询并装配各自的回复
func (s *Store) queryThreads(query string, args ...interface{}) ([]domain.Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	ids := []string{}
	for rows.Next() {
		var msg domain.Message
		if err := s.scanMessage(rows, &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
		ids = append(ids, msg.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	replies, err := s.loadReplies(ids)
	if err != nil {
		return nil, err
	}
	for i := range messages {
		messages[i].Replies = replies[messages[i].ID]
	}
	return messages, nil
}

// loadReplies 批量加载一组父消息的回复，按发送时间升序
func (s *Store) loadReplies(parentIDs []string) (map[string][]domain.Message, error) {
	replies := make(map[string][]domain.Message)
	if len(parentIDs) == 0 {
		return replies, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(parentIDs)), ", ")
	query := s.rebind(`
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.parent_id IN (` + placeholders + `)
		ORDER BY m.sent_at ASC
	`)

	args := make([]interface{}, len(parentIDs))
	for i, id := range parentIDs {
		args[i] = id
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var reply domain.Message
		if err := s.scanMessage(rows, &reply); err != nil {
			return nil, err
		}
		replies[reply.ParentID] = append(replies[reply.ParentID], reply)
	}
	return replies, rows.Err()
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows 的扫描入口
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanMessage(row rowScanner, msg *domain.Message) error {
	return row.Scan(
		&msg.ID,
		&msg.ParentID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.SenderRole,
		&msg.RecipientID,
		&msg.RecipientRole,
		&msg.Subject,
		&msg.Content,
		&msg.SentAt,
		&msg.IsRead,
	)
}
