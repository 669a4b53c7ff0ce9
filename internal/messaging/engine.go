// Package messaging 实现站内消息的核心引擎：按文件夹检索、撰写、回复、
// 已读标记、删除，以及收件箱界面的视图状态机。
//
// 引擎持有当前展示列表的缓存和唯一的选中消息引用，存储层持有持久
// 状态。缓存在每次变更操作（发送、回复、删除）后整体重载，不做增量
// 修补。引擎的调用方是单个用户界面，一次一个动作；引擎内部仍以互斥
// 锁保护状态，保证已读标记等旁路写入不产生数据竞争。
package messaging

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

// Folder 视图分区：收件箱或发件箱，是同一份消息数据上的过滤视图。
type Folder string

const (
	FolderInbox Folder = "inbox"
	FolderSent  Folder = "sent"
)

// Valid 判断文件夹取值是否合法
func (f Folder) Valid() bool {
	return f == FolderInbox || f == FolderSent
}

// ViewState 视图状态。
//
// Composing 与 ThreadSelected 互斥，进入其一会清除另一个；
// 初始为 Idle，引擎在会话期内长活，没有终止状态。
type ViewState string

const (
	StateIdle           ViewState = "idle"
	StateComposing      ViewState = "composing"
	StateThreadSelected ViewState = "thread_selected"
)

// ErrorKind 结构化错误类别，供上层和测试断言使用。
type ErrorKind string

const (
	ErrorValidation       ErrorKind = "validation"
	ErrorStoreUnavailable ErrorKind = "store_unavailable"
	ErrorNotFound         ErrorKind = "not_found"
)

// EngineError 引擎操作失败的结构化描述。
//
// 存储失败不会让会话崩溃：操作降级为一条用户可见的提示，
// 内部保留类别供测试区分。
type EngineError struct {
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

// Error 实现 error 接口
func (e *EngineError) Error() string {
	return string(e.Kind) + ": " + e.Reason
}

// Draft 撰写中的消息草稿
type Draft struct {
	Subject       string      `json:"subject"`
	Content       string      `json:"content"`
	RecipientID   string      `json:"recipientId"`
	RecipientRole domain.Role `json:"recipientRole"`
}

// Snapshot 引擎对外暴露的展示快照，渲染层只依赖这份数据。
type Snapshot struct {
	Folder    Folder           `json:"folder"`
	State     ViewState        `json:"state"`
	Messages  []domain.Message `json:"messages"`
	Selected  *domain.Message  `json:"selected,omitempty"`
	Draft     *Draft           `json:"draft,omitempty"`
	Loading   bool             `json:"loading"`
	LastError *EngineError     `json:"lastError,omitempty"`
}

// Engine 单个用户会话的消息引擎。
//
// 所有操作显式接收 domain.UserContext，引擎本身不保存当前用户身份。
type Engine struct {
	repo      storage.MessageRepository
	log       *zap.Logger
	validator *domain.MessageValidator

	mu         sync.Mutex
	folder     Folder
	state      ViewState
	messages   []domain.Message
	selectedID string
	draft      *Draft
	loading    bool
	lastErr    *EngineError
	gen        uint64 // 列表加载代数，切换文件夹时递增，用于丢弃过期响应
}

// NewEngine 创建消息引擎，初始视图为收件箱、Idle 状态。
func NewEngine(repo storage.MessageRepository, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		repo:      repo,
		log:       log,
		validator: domain.NewMessageValidator(),
		folder:    FolderInbox,
		state:     StateIdle,
		messages:  []domain.Message{},
	}
}

// SwitchFolder 切换文件夹并强制重新加载列表。
//
// 切换总是清除选中与撰写状态，不保留跨文件夹的过期选中。
func (e *Engine) SwitchFolder(uc domain.UserContext, folder Folder) error {
	if !folder.Valid() {
		return e.failValidation("unknown folder: " + string(folder))
	}

	e.mu.Lock()
	e.folder = folder
	e.state = StateIdle
	e.selectedID = ""
	e.draft = nil
	e.gen++
	e.mu.Unlock()

	e.Refresh(uc)
	return nil
}

// Refresh 重新加载当前文件夹的消息列表。
//
// 往返期间置位加载标记。存储不可用时列表清空、错误仅记录，
// 不向调用方抛出——界面降级为"没有消息"。完成时比对文件夹代数，
// 切换发生在途中的过期响应直接丢弃，不会覆盖新文件夹的列表。
func (e *Engine) Refresh(uc domain.UserContext) {
	e.mu.Lock()
	folder := e.folder
	gen := e.gen
	e.loading = true
	e.mu.Unlock()

	var msgs []domain.Message
	var err error
	switch folder {
	case FolderSent:
		msgs, err = e.repo.ListSent(uc.ID, uc.Role)
	default:
		msgs, err = e.repo.ListInbox(uc.ID, uc.Role)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != gen || e.folder != folder {
		// 过期响应：加载标记归新一代的请求管理
		return
	}
	e.loading = false

	if err != nil {
		e.messages = []domain.Message{}
		e.lastErr = &EngineError{Kind: ErrorStoreUnavailable, Reason: "failed to load messages"}
		e.log.Error("failed to load messages",
			zap.String("user_id", uc.ID),
			zap.String("folder", string(folder)),
			zap.Error(err),
		)
		return
	}

	sortBySentAtDesc(msgs)
	e.messages = msgs
	e.lastErr = nil

	// 选中消息在重载后不存在时同步清除，不留悬空选中
	if e.selectedID != "" && e.findLocked(e.selectedID) == nil {
		e.selectedID = ""
		e.state = StateIdle
	}
}

// StartCompose 进入撰写状态，清除当前选中。
func (e *Engine) StartCompose(uc domain.UserContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateComposing
	e.selectedID = ""
	if e.draft == nil {
		e.draft = &Draft{}
	}
}

// CancelCompose 放弃草稿，回到 Idle。
func (e *Engine) CancelCompose(uc domain.UserContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateComposing {
		e.state = StateIdle
	}
	e.draft = nil
}

// Compose 校验并发送一条新消息。
//
// 必填字段缺失时直接拒绝，不触达存储层，草稿原样保留；
// 发送成功后清空草稿、退出撰写状态并重载当前文件夹。
func (e *Engine) Compose(uc domain.UserContext, draft Draft) error {
	if err := e.validator.ValidateCompose(draft.Subject, draft.Content, draft.RecipientID); err != nil {
		e.mu.Lock()
		e.state = StateComposing
		e.selectedID = ""
		d := draft
		e.draft = &d
		e.mu.Unlock()
		return e.failValidation(err.Error())
	}

	message := domain.NewMessage(uc, draft.RecipientID, draft.RecipientRole, draft.Subject, draft.Content)
	if err := e.repo.SaveMessage(message); err != nil {
		e.log.Error("failed to send message",
			zap.String("user_id", uc.ID),
			zap.Error(err),
		)
		return e.failStore("failed to send message")
	}

	e.mu.Lock()
	e.draft = nil
	e.state = StateIdle
	e.lastErr = nil
	e.mu.Unlock()

	e.Refresh(uc)
	return nil
}

// SelectMessage 从当前列表中选中一条消息，进入线程详情。
//
// 选中一条未读的收件消息会触发已读标记：本地标志先行翻转（乐观更
// 新），存储写入的失败只记录，绝不阻塞详情展示。
func (e *Engine) SelectMessage(uc domain.UserContext, id string) error {
	e.mu.Lock()
	msg := e.findLocked(id)
	if msg == nil {
		e.mu.Unlock()
		return e.failNotFound("message not in current list")
	}
	e.state = StateThreadSelected
	e.selectedID = id
	e.draft = nil
	unread := !msg.IsRead && msg.AddressedTo(uc.ID, uc.Role)
	e.mu.Unlock()

	if unread {
		e.MarkAsRead(uc, id)
	}
	return nil
}

// ClearSelection 取消选中，回到 Idle。
func (e *Engine) ClearSelection(uc domain.UserContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectedID = ""
	if e.state == StateThreadSelected {
		e.state = StateIdle
	}
}

// MarkAsRead 将一条已持久化的未读消息标记为已读，幂等。
//
// 只作用于当前列表中的消息：列表本身按调用方的收发身份过滤，
// 不在列表中的 ID 一律拒绝，拿到他人消息 ID 也无法标记。
// 本地缓存先通过唯一写入点 setReadLocked 翻转，再下发存储更新；
// 存储失败不回滚本地标志，留待下次列表重载校正。
func (e *Engine) MarkAsRead(uc domain.UserContext, id string) error {
	if id == "" {
		return nil
	}

	e.mu.Lock()
	msg := e.findLocked(id)
	if msg == nil {
		e.mu.Unlock()
		return e.failNotFound("message not in current list")
	}
	if msg.IsRead || !msg.AddressedTo(uc.ID, uc.Role) {
		e.mu.Unlock()
		return nil
	}
	e.setReadLocked(id)
	e.mu.Unlock()

	if err := e.repo.MarkMessageRead(id); err != nil {
		e.log.Warn("failed to persist read flag",
			zap.String("message_id", id),
			zap.Error(err),
		)
		if errors.Is(err, storage.ErrMessageNotFound) {
			e.Refresh(uc)
			e.setLastError(ErrorNotFound, "message no longer exists")
		} else {
			e.setLastError(ErrorStoreUnavailable, "failed to persist read flag")
		}
	}
	return nil
}

// Reply 对当前选中的消息发送回复。
//
// 选中消息缺少持久化 ID 或内容为空时整个操作是空操作。成功后清除
// 回复草稿与选中（回到 Idle）并重载文件夹。
func (e *Engine) Reply(uc domain.UserContext, content string) error {
	e.mu.Lock()
	parent := e.findLocked(e.selectedID)
	e.mu.Unlock()

	if parent == nil || !parent.IsPersisted() {
		return nil
	}
	if err := e.validator.ValidateReply(content); err != nil {
		if errors.Is(err, domain.ErrContentRequired) {
			return nil
		}
		return e.failValidation(err.Error())
	}

	reply := domain.NewReply(uc, parent, content)
	if err := e.repo.AppendReply(parent.ID, reply); err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			// 父消息在选中与回复之间消失：强制重载以重新同步
			e.Refresh(uc)
			return e.failNotFound("original message no longer exists")
		}
		e.log.Error("failed to append reply",
			zap.String("parent_id", parent.ID),
			zap.Error(err),
		)
		return e.failStore("failed to send reply")
	}

	e.mu.Lock()
	e.selectedID = ""
	e.state = StateIdle
	e.lastErr = nil
	e.mu.Unlock()

	e.Refresh(uc)
	return nil
}

// Delete 永久删除一条消息。
//
// 删除必须由外部确认门禁放行（confirmed），未确认或 ID 缺失时为
// 空操作。只允许删除当前列表中的消息，列表之外的 ID 拒绝；
// 目标已不存在时记录 not_found 并强制重载校正视图。
func (e *Engine) Delete(uc domain.UserContext, id string, confirmed bool) error {
	if id == "" || !confirmed {
		return nil
	}

	e.mu.Lock()
	known := e.findLocked(id) != nil
	e.mu.Unlock()
	if !known {
		return e.failNotFound("message not in current list")
	}

	if err := e.repo.DeleteMessage(id); err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			e.Refresh(uc)
			return e.failNotFound("message already deleted")
		}
		e.log.Error("failed to delete message",
			zap.String("message_id", id),
			zap.Error(err),
		)
		return e.failStore("failed to delete message")
	}

	e.mu.Lock()
	if e.selectedID == id {
		e.selectedID = ""
		e.state = StateIdle
	}
	e.lastErr = nil
	e.mu.Unlock()

	e.Refresh(uc)
	return nil
}

// Snapshot 返回当前展示状态的拷贝。
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Folder:    e.folder,
		State:     e.state,
		Messages:  make([]domain.Message, len(e.messages)),
		Loading:   e.loading,
		LastError: e.lastErr,
	}
	copy(snap.Messages, e.messages)

	if e.selectedID != "" {
		if msg := e.findLocked(e.selectedID); msg != nil {
			selected := *msg
			snap.Selected = &selected
		}
	}
	if e.draft != nil {
		d := *e.draft
		snap.Draft = &d
	}
	return snap
}

// findLocked 按 ID 在缓存列表中查找，持锁调用。
func (e *Engine) findLocked(id string) *domain.Message {
	if id == "" {
		return nil
	}
	for i := range e.messages {
		if e.messages[i].ID == id {
			return &e.messages[i]
		}
	}
	return nil
}

// setReadLocked 缓存内已读标志的唯一写入点，持锁调用。
//
// 同一条消息无论从哪个视图被观察，已读状态都经由这里翻转，
// 不存在绕过缓存直接改记录的路径。
func (e *Engine) setReadLocked(id string) {
	for i := range e.messages {
		if e.messages[i].ID == id {
			e.messages[i].IsRead = true
			return
		}
	}
}

func (e *Engine) setLastError(kind ErrorKind, reason string) *EngineError {
	err := &EngineError{Kind: kind, Reason: reason}
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
	return err
}

func (e *Engine) failValidation(reason string) error {
	return e.setLastError(ErrorValidation, reason)
}

func (e *Engine) failStore(reason string) error {
	return e.setLastError(ErrorStoreUnavailable, reason)
}

func (e *Engine) failNotFound(reason string) error {
	return e.setLastError(ErrorNotFound, reason)
}

// sortBySentAtDesc 按发送时间倒序排列，时间相同的消息保持相对次序
// 稳定，单次渲染内不抖动。
func sortBySentAtDesc(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.After(msgs[j].SentAt)
	})
}
