package domain

import "time"

// Message 表示一条站内消息及其回复线程。
//
// 一条消息只有一个收件人，没有群发语义。Replies 为顶层消息携带的
// 回复序列（仅一层，回复本身不再嵌套回复），持久化时回复以
// ParentID 行的形式存储，Replies 字段不入库。
type Message struct {
	ID            string    `json:"id,omitempty" gorm:"primaryKey;type:varchar(36)"`
	ParentID      string    `json:"-" gorm:"type:varchar(36);index"` // 顶层消息为空
	SenderID      string    `json:"senderId" gorm:"type:varchar(64);index;not null"`
	SenderName    string    `json:"senderName" gorm:"type:varchar(255)"`
	SenderRole    Role      `json:"senderRole" gorm:"type:varchar(20)"`
	RecipientID   string    `json:"recipientId" gorm:"type:varchar(64);index;not null"`
	RecipientRole Role      `json:"recipientRole" gorm:"type:varchar(20)"`
	Subject       string    `json:"subject" gorm:"type:varchar(500)"`
	Content       string    `json:"content" gorm:"type:text"`
	SentAt        time.Time `json:"timestamp" gorm:"index"` // 唯一排序键，发送时刻赋值
	IsRead        bool      `json:"read" gorm:"default:false;index"`
	Replies       []Message `json:"replies,omitempty" gorm:"-"`
}

// IsPersisted 判断消息是否已由存储层分配 ID
func (m *Message) IsPersisted() bool {
	return m.ID != ""
}

// AddressedTo 判断消息是否以 (userID, role) 为收件人
func (m *Message) AddressedTo(userID string, role Role) bool {
	return m.RecipientID == userID && m.RecipientRole == role
}

// SentBy 判断消息是否由 (userID, role) 发出
func (m *Message) SentBy(userID string, role Role) bool {
	return m.SenderID == userID && m.SenderRole == role
}

// ReplySubjectPrefix 回复主题前缀
const ReplySubjectPrefix = "Re: "

// NewMessage 构造一条待发送的顶层消息。
//
// ID 留空，由存储层在落盘时分配；read 初始为 false，SentAt 取当前
// UTC 时刻，Replies 缺省为空。
func NewMessage(sender UserContext, recipientID string, recipientRole Role, subject, content string) *Message {
	return &Message{
		SenderID:      sender.ID,
		SenderName:    sender.Name,
		SenderRole:    sender.Role,
		RecipientID:   recipientID,
		RecipientRole: recipientRole,
		Subject:       subject,
		Content:       content,
		SentAt:        time.Now().UTC(),
		IsRead:        false,
	}
}

// NewReply 基于父消息构造一条回复。
//
// 主题由父消息确定（"Re: " + 父主题），收件人固定回路到父消息的
// 发件人，而不是当前用户的其他通信对象。回复不携带自己的 Replies。
func NewReply(sender UserContext, parent *Message, content string) *Message {
	return &Message{
		ParentID:      parent.ID,
		SenderID:      sender.ID,
		SenderName:    sender.Name,
		SenderRole:    sender.Role,
		RecipientID:   parent.SenderID,
		RecipientRole: parent.SenderRole,
		Subject:       ReplySubjectPrefix + parent.Subject,
		Content:       content,
		SentAt:        time.Now().UTC(),
		IsRead:        false,
	}
}
