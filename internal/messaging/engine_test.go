package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage/memory"
)

var (
	teacherA = domain.UserContext{ID: "t-100", Name: "أ. محمد", Role: domain.RoleTeacher}
	studentB = domain.UserContext{ID: "s-200", Name: "عبدالله", Role: domain.RoleStudent}
	adminC   = domain.UserContext{ID: "admin", Name: "الإدارة", Role: domain.RoleAdmin}
)

// failingRepo 模拟存储不可用
type failingRepo struct{}

var errDown = errors.New("store unavailable")

func (f *failingRepo) SaveMessage(*domain.Message) error { return errDown }
func (f *failingRepo) ListInbox(string, domain.Role) ([]domain.Message, error) {
	return nil, errDown
}
func (f *failingRepo) ListSent(string, domain.Role) ([]domain.Message, error) {
	return nil, errDown
}
func (f *failingRepo) GetMessage(string) (*domain.Message, error) { return nil, errDown }
func (f *failingRepo) AppendReply(string, *domain.Message) error  { return errDown }
func (f *failingRepo) MarkMessageRead(string) error               { return errDown }
func (f *failingRepo) DeleteMessage(string) error                 { return errDown }

func composeTestMessage(t *testing.T, engine *Engine, sender domain.UserContext, recipient domain.UserContext, subject, content string) {
	t.Helper()
	err := engine.Compose(sender, Draft{
		Subject:       subject,
		Content:       content,
		RecipientID:   recipient.ID,
		RecipientRole: recipient.Role,
	})
	require.NoError(t, err)
}

func TestEngine_ComposeCreatesUnreadMessage(t *testing.T) {
	store := memory.NewStore()
	engineA := NewEngine(store, nil)
	engineB := NewEngine(store, nil)

	composeTestMessage(t, engineA, teacherA, studentB, "الاختبار", "تذكير")

	// B 的收件箱获得一条未读消息
	require.NoError(t, engineB.SwitchFolder(studentB, FolderInbox))
	inbox := engineB.Snapshot().Messages
	require.Len(t, inbox, 1)
	assert.Equal(t, "الاختبار", inbox[0].Subject)
	assert.Equal(t, "تذكير", inbox[0].Content)
	assert.False(t, inbox[0].IsRead)
	assert.Empty(t, inbox[0].Replies)
	assert.NotEmpty(t, inbox[0].ID)

	// A 的发件箱获得同一条记录
	require.NoError(t, engineA.SwitchFolder(teacherA, FolderSent))
	sent := engineA.Snapshot().Messages
	require.Len(t, sent, 1)
	assert.Equal(t, inbox[0].ID, sent[0].ID)
	assert.Equal(t, teacherA.ID, sent[0].SenderID)
	assert.Equal(t, teacherA.Name, sent[0].SenderName)
}

func TestEngine_ComposeValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
	}{
		{"主题为空", Draft{Content: "hello", RecipientID: studentB.ID, RecipientRole: domain.RoleStudent}},
		{"内容为空", Draft{Subject: "hi", RecipientID: studentB.ID, RecipientRole: domain.RoleStudent}},
		{"收件人为空", Draft{Subject: "hi", Content: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			engine := NewEngine(store, nil)

			err := engine.Compose(teacherA, tt.draft)
			require.Error(t, err)

			var engErr *EngineError
			require.ErrorAs(t, err, &engErr)
			assert.Equal(t, ErrorValidation, engErr.Kind)
			assert.NotEmpty(t, engErr.Reason)

			// 没有触达存储层，草稿与撰写状态保留
			sent, _ := store.ListSent(teacherA.ID, teacherA.Role)
			assert.Empty(t, sent)
			snap := engine.Snapshot()
			assert.Equal(t, StateComposing, snap.State)
			require.NotNil(t, snap.Draft)
			assert.Equal(t, tt.draft.Content, snap.Draft.Content)
		})
	}
}

func TestEngine_ReplyRoutesBackToSender(t *testing.T) {
	store := memory.NewStore()
	engineA := NewEngine(store, nil)
	engineB := NewEngine(store, nil)

	composeTestMessage(t, engineA, teacherA, studentB, "الاختبار", "تذكير")

	require.NoError(t, engineB.SwitchFolder(studentB, FolderInbox))
	parent := engineB.Snapshot().Messages[0]
	require.NoError(t, engineB.SelectMessage(studentB, parent.ID))
	require.NoError(t, engineB.Reply(studentB, "شكراً"))

	// 回复后清除选中，回到 Idle
	snap := engineB.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Selected)

	// A 的收件箱获得携带回复的线程
	require.NoError(t, engineA.SwitchFolder(teacherA, FolderInbox))
	inbox := engineA.Snapshot().Messages
	require.Len(t, inbox, 1)
	require.Len(t, inbox[0].Replies, 1)

	reply := inbox[0].Replies[0]
	assert.Equal(t, "شكراً", reply.Content)
	assert.Equal(t, studentB.ID, reply.SenderID)
	assert.Equal(t, "Re: "+parent.Subject, reply.Subject)
	assert.Equal(t, parent.SenderID, reply.RecipientID)
	assert.Equal(t, parent.SenderRole, reply.RecipientRole)
}

func TestEngine_ReplyPreconditions(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	// 没有选中消息：空操作
	require.NoError(t, engine.Reply(studentB, "hello"))

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID
	require.NoError(t, engine.SelectMessage(studentB, id))

	// 内容为空：空操作，选中保留
	require.NoError(t, engine.Reply(studentB, ""))
	snap := engine.Snapshot()
	assert.Equal(t, StateThreadSelected, snap.State)

	msg, err := store.GetMessage(id)
	require.NoError(t, err)
	assert.Empty(t, msg.Replies)
}

func TestEngine_SelectMarksReadSharedRecord(t *testing.T) {
	store := memory.NewStore()
	engineA := NewEngine(store, nil)
	engineB := NewEngine(store, nil)

	composeTestMessage(t, engineA, teacherA, studentB, "الاختبار", "تذكير")

	require.NoError(t, engineB.SwitchFolder(studentB, FolderInbox))
	id := engineB.Snapshot().Messages[0].ID
	require.NoError(t, engineB.SelectMessage(studentB, id))

	// B 的视图立即翻转为已读
	snap := engineB.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.True(t, snap.Selected.IsRead)

	// 同一条记录：A 重新查询发件箱也看到已读
	require.NoError(t, engineA.SwitchFolder(teacherA, FolderSent))
	sent := engineA.Snapshot().Messages
	require.Len(t, sent, 1)
	assert.True(t, sent[0].IsRead)
}

func TestEngine_SelectBySenderKeepsUnread(t *testing.T) {
	store := memory.NewStore()
	engineA := NewEngine(store, nil)

	composeTestMessage(t, engineA, teacherA, studentB, "الاختبار", "تذكير")

	// 发件人查看自己发出的消息不触发已读标记
	require.NoError(t, engineA.SwitchFolder(teacherA, FolderSent))
	id := engineA.Snapshot().Messages[0].ID
	require.NoError(t, engineA.SelectMessage(teacherA, id))

	msg, err := store.GetMessage(id)
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
}

func TestEngine_MarkAsReadIdempotent(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID

	require.NoError(t, engine.MarkAsRead(studentB, id))
	require.NoError(t, engine.MarkAsRead(studentB, id))

	msg, err := store.GetMessage(id)
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
	assert.Nil(t, engine.Snapshot().LastError)
}

func TestEngine_FolderFiltering(t *testing.T) {
	store := memory.NewStore()
	engineA := NewEngine(store, nil)
	engineB := NewEngine(store, nil)

	composeTestMessage(t, engineA, teacherA, studentB, "إلى الطالب", "١")
	composeTestMessage(t, engineA, teacherA, adminC, "إلى الإدارة", "٢")
	composeTestMessage(t, engineB, studentB, teacherA, "إلى المعلم", "٣")

	// 收件箱恰好是 recipientId == userId 的子集
	require.NoError(t, engineB.SwitchFolder(studentB, FolderInbox))
	inbox := engineB.Snapshot().Messages
	require.Len(t, inbox, 1)
	assert.Equal(t, "إلى الطالب", inbox[0].Subject)

	// 发件箱恰好是 senderId == userId 的子集
	require.NoError(t, engineA.SwitchFolder(teacherA, FolderSent))
	sent := engineA.Snapshot().Messages
	require.Len(t, sent, 2)
	for _, m := range sent {
		assert.Equal(t, teacherA.ID, m.SenderID)
	}

	require.NoError(t, engineA.SwitchFolder(teacherA, FolderInbox))
	require.Len(t, engineA.Snapshot().Messages, 1)
}

func TestEngine_ListNewestFirst(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	base := time.Now().UTC()
	for i, subject := range []string{"أولى", "ثانية", "ثالثة"} {
		msg := domain.NewMessage(teacherA, studentB.ID, domain.RoleStudent, subject, "المحتوى")
		msg.SentAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveMessage(msg))
	}

	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	msgs := engine.Snapshot().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "ثالثة", msgs[0].Subject)
	assert.Equal(t, "ثانية", msgs[1].Subject)
	assert.Equal(t, "أولى", msgs[2].Subject)
}

func TestEngine_DeleteRemovesFromBothViews(t *testing.T) {
	store := memory.NewStore()
	engineA := NewEngine(store, nil)
	engineB := NewEngine(store, nil)

	composeTestMessage(t, engineA, teacherA, studentB, "الاختبار", "تذكير")

	require.NoError(t, engineB.SwitchFolder(studentB, FolderInbox))
	id := engineB.Snapshot().Messages[0].ID
	require.NoError(t, engineB.SelectMessage(studentB, id))
	require.NoError(t, engineB.Delete(studentB, id, true))

	// 删除清除选中并从双方视图移除
	snap := engineB.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Messages)

	require.NoError(t, engineA.SwitchFolder(teacherA, FolderSent))
	assert.Empty(t, engineA.Snapshot().Messages)
}

func TestEngine_DeleteRequiresConfirmation(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID

	// 未确认：空操作
	require.NoError(t, engine.Delete(studentB, id, false))
	_, err := store.GetMessage(id)
	require.NoError(t, err)
}

func TestEngine_DeleteMissingMessage(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID

	// 存储层删除，列表里还留着过期条目
	require.NoError(t, store.DeleteMessage(id))

	err := engine.Delete(studentB, id, true)
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrorNotFound, engErr.Kind)

	// 强制重载后过期条目消失
	assert.Empty(t, engine.Snapshot().Messages)
}

func TestEngine_OperationsScopedToOwnList(t *testing.T) {
	store := memory.NewStore()
	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")

	recipient := NewEngine(store, nil)
	require.NoError(t, recipient.SwitchFolder(studentB, FolderInbox))
	id := recipient.Snapshot().Messages[0].ID

	outsider := NewEngine(store, nil)
	require.NoError(t, outsider.SwitchFolder(adminC, FolderInbox))

	// 不在自己列表中的消息既不能删除也不能标记已读
	var engErr *EngineError
	require.ErrorAs(t, outsider.Delete(adminC, id, true), &engErr)
	assert.Equal(t, ErrorNotFound, engErr.Kind)

	require.ErrorAs(t, outsider.MarkAsRead(adminC, id), &engErr)
	assert.Equal(t, ErrorNotFound, engErr.Kind)

	// 消息原样留在收件人的存储里，仍未读
	msg, err := store.GetMessage(id)
	require.NoError(t, err)
	assert.False(t, msg.IsRead)
}

func TestEngine_StateMachine(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID

	assert.Equal(t, StateIdle, engine.Snapshot().State)

	// Idle -> Composing -> Idle
	engine.StartCompose(studentB)
	assert.Equal(t, StateComposing, engine.Snapshot().State)
	engine.CancelCompose(studentB)
	snap := engine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Draft)

	// Idle -> ThreadSelected -> Idle
	require.NoError(t, engine.SelectMessage(studentB, id))
	assert.Equal(t, StateThreadSelected, engine.Snapshot().State)
	engine.ClearSelection(studentB)
	assert.Equal(t, StateIdle, engine.Snapshot().State)

	// Composing 与 ThreadSelected 互斥
	require.NoError(t, engine.SelectMessage(studentB, id))
	engine.StartCompose(studentB)
	snap = engine.Snapshot()
	assert.Equal(t, StateComposing, snap.State)
	assert.Nil(t, snap.Selected)

	require.NoError(t, engine.SelectMessage(studentB, id))
	snap = engine.Snapshot()
	assert.Equal(t, StateThreadSelected, snap.State)
	assert.Nil(t, snap.Draft)
}

func TestEngine_FolderSwitchClearsSelection(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID
	require.NoError(t, engine.SelectMessage(studentB, id))

	require.NoError(t, engine.SwitchFolder(studentB, FolderSent))
	snap := engine.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Selected)
	assert.Empty(t, snap.Messages)
}

func TestEngine_InvalidFolder(t *testing.T) {
	engine := NewEngine(memory.NewStore(), nil)

	err := engine.SwitchFolder(studentB, Folder("archive"))
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrorValidation, engErr.Kind)
}

func TestEngine_StoreFailureDegrades(t *testing.T) {
	engine := NewEngine(&failingRepo{}, nil)

	// 列表加载失败：列表清空、错误记录，不向调用方抛出
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	snap := engine.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, ErrorStoreUnavailable, snap.LastError.Kind)

	// 发送失败：返回 store_unavailable，会话不崩溃
	err := engine.Compose(teacherA, Draft{
		Subject:       "الاختبار",
		Content:       "تذكير",
		RecipientID:   studentB.ID,
		RecipientRole: domain.RoleStudent,
	})
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrorStoreUnavailable, engErr.Kind)
}

func TestEngine_OptimisticReadSurvivesStoreFailure(t *testing.T) {
	store := memory.NewStore()
	engine := NewEngine(store, nil)

	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	require.NoError(t, engine.SwitchFolder(studentB, FolderInbox))
	id := engine.Snapshot().Messages[0].ID

	// 存储层删除消息，模拟标记时目标消失
	require.NoError(t, store.DeleteMessage(id))

	require.NoError(t, engine.MarkAsRead(studentB, id))

	// 本地标志已翻转但强制重载已校正视图
	snap := engine.Snapshot()
	assert.Empty(t, snap.Messages)
	require.NotNil(t, snap.LastError)
	assert.Equal(t, ErrorNotFound, snap.LastError.Kind)
}

// slowInboxRepo 收件箱查询被通道卡住直到放行，其余操作直通内存存储
type slowInboxRepo struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (r *slowInboxRepo) ListInbox(userID string, role domain.Role) ([]domain.Message, error) {
	r.entered <- struct{}{}
	<-r.release
	return r.Store.ListInbox(userID, role)
}

func TestEngine_StaleRefreshDiscardedOnFolderSwitch(t *testing.T) {
	store := memory.NewStore()
	composeTestMessage(t, NewEngine(store, nil), teacherA, studentB, "الاختبار", "تذكير")
	composeTestMessage(t, NewEngine(store, nil), studentB, teacherA, "سؤال", "استفسار")

	repo := &slowInboxRepo{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(repo, nil)

	done := make(chan struct{})
	go func() {
		engine.Refresh(studentB)
		close(done)
	}()
	<-repo.entered

	// 收件箱请求仍在途中时切到发件箱
	require.NoError(t, engine.SwitchFolder(studentB, FolderSent))

	close(repo.release)
	<-done

	// 迟到的收件箱响应被丢弃，发件箱列表与加载标记不受影响
	snap := engine.Snapshot()
	assert.Equal(t, FolderSent, snap.Folder)
	assert.False(t, snap.Loading)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "سؤال", snap.Messages[0].Subject)
}

func TestRegistry_SessionLifecycle(t *testing.T) {
	store := memory.NewStore()
	registry := NewRegistry(store, nil, time.Hour)

	e1 := registry.Engine(studentB.ID)
	e2 := registry.Engine(studentB.ID)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, registry.Len())

	registry.Engine(teacherA.ID)
	assert.Equal(t, 2, registry.Len())

	registry.Evict(studentB.ID)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_PruneExpired(t *testing.T) {
	store := memory.NewStore()
	registry := NewRegistry(store, nil, 100*time.Millisecond)

	registry.Engine(studentB.ID)
	time.Sleep(150 * time.Millisecond)
	registry.Engine(teacherA.ID)

	// teacherA 刚刚活动过，不会被清理
	pruned := registry.PruneExpired()
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, registry.Len())
}
