package domain

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// 验证相关的错误定义
var (
	ErrSubjectRequired   = errors.New("subject is required")
	ErrSubjectTooLong    = errors.New("subject too long (max 500 chars)")
	ErrContentRequired   = errors.New("content is required")
	ErrContentTooLong    = errors.New("content too long (max 10000 chars)")
	ErrRecipientRequired = errors.New("recipient is required")
	ErrInvalidRole       = errors.New("invalid role")
	ErrCodeTooShort      = errors.New("code too short (min 2 chars)")
	ErrCodeTooLong       = errors.New("code too long (max 64 chars)")
	ErrInvalidCode       = errors.New("invalid code format")
	ErrNameRequired      = errors.New("name is required")
)

// 验证常量
const (
	MaxSubjectLength = 500
	MaxContentLength = 10000

	MinCodeLength = 2
	MaxCodeLength = 64
)

// 登录编号：字母数字开头，可含点、下划线、连字符
var codeRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MessageValidator 消息字段验证器
type MessageValidator struct{}

// NewMessageValidator 创建消息验证器
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateCompose 验证一条待发送消息的必填字段。
//
// 任意一项不满足即拒绝，调用方不应再访问存储层。
func (v *MessageValidator) ValidateCompose(subject, content, recipientID string) error {
	if strings.TrimSpace(subject) == "" {
		return ErrSubjectRequired
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	if strings.TrimSpace(content) == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	if strings.TrimSpace(recipientID) == "" {
		return ErrRecipientRequired
	}
	return nil
}

// ValidateReply 验证回复内容。
func (v *MessageValidator) ValidateReply(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrContentRequired
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ValidateCode 验证登录编号格式。
func ValidateCode(code string) error {
	code = strings.TrimSpace(code)
	if len(code) < MinCodeLength {
		return ErrCodeTooShort
	}
	if len(code) > MaxCodeLength {
		return ErrCodeTooLong
	}
	if !codeRegex.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}
