package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

func newTestMessage(senderID string, senderRole domain.Role, recipientID string, recipientRole domain.Role, subject string) *domain.Message {
	return domain.NewMessage(
		domain.UserContext{ID: senderID, Name: senderID, Role: senderRole},
		recipientID, recipientRole, subject, "محتوى الرسالة",
	)
}

func TestStore_MessageLifecycle(t *testing.T) {
	store := NewStore()

	msg := newTestMessage("t-100", domain.RoleTeacher, "s-200", domain.RoleStudent, "واجب الحفظ")

	t.Run("保存消息并分配ID", func(t *testing.T) {
		require.NoError(t, store.SaveMessage(msg))
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("收件箱按收件人过滤", func(t *testing.T) {
		inbox, err := store.ListInbox("s-200", domain.RoleStudent)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, msg.ID, inbox[0].ID)
		assert.False(t, inbox[0].IsRead)

		// 发件人的收件箱此时为空
		inbox, err = store.ListInbox("t-100", domain.RoleTeacher)
		require.NoError(t, err)
		assert.Empty(t, inbox)
	})

	t.Run("发件箱按发件人过滤", func(t *testing.T) {
		sent, err := store.ListSent("t-100", domain.RoleTeacher)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, msg.ID, sent[0].ID)
	})

	t.Run("标记已读幂等", func(t *testing.T) {
		require.NoError(t, store.MarkMessageRead(msg.ID))
		require.NoError(t, store.MarkMessageRead(msg.ID))

		got, err := store.GetMessage(msg.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)
	})

	t.Run("删除后查询返回未找到", func(t *testing.T) {
		require.NoError(t, store.DeleteMessage(msg.ID))

		_, err := store.GetMessage(msg.ID)
		assert.ErrorIs(t, err, storage.ErrMessageNotFound)
		assert.ErrorIs(t, store.DeleteMessage(msg.ID), storage.ErrMessageNotFound)
	})
}

func TestStore_Replies(t *testing.T) {
	store := NewStore()

	parent := newTestMessage("t-100", domain.RoleTeacher, "s-200", domain.RoleStudent, "سؤال")
	require.NoError(t, store.SaveMessage(parent))

	student := domain.UserContext{ID: "s-200", Name: "عبدالله", Role: domain.RoleStudent}
	reply := domain.NewReply(student, parent, "جواب")
	require.NoError(t, store.AppendReply(parent.ID, reply))

	t.Run("线程携带回复", func(t *testing.T) {
		got, err := store.GetMessage(parent.ID)
		require.NoError(t, err)
		require.Len(t, got.Replies, 1)
		assert.Equal(t, parent.ID, got.Replies[0].ParentID)
		assert.Equal(t, "جواب", got.Replies[0].Content)
	})

	t.Run("回复把线程带回原发件人的收件箱", func(t *testing.T) {
		inbox, err := store.ListInbox("t-100", domain.RoleTeacher)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, parent.ID, inbox[0].ID)
	})

	t.Run("不能对回复再回复", func(t *testing.T) {
		nested := domain.NewReply(student, reply, "عميق جداً")
		err := store.AppendReply(reply.ID, nested)
		assert.ErrorIs(t, err, storage.ErrMessageNotFound)
	})

	t.Run("删除顶层消息连带回复", func(t *testing.T) {
		require.NoError(t, store.DeleteMessage(parent.ID))
		assert.ErrorIs(t, store.AppendReply(parent.ID, reply), storage.ErrMessageNotFound)
	})
}

func TestStore_Users(t *testing.T) {
	store := NewStore()

	teacher := &domain.User{Code: "t-100", Name: "أ. محمد", Role: domain.RoleTeacher, IsActive: true}
	require.NoError(t, store.CreateUser(teacher))
	require.NotEmpty(t, teacher.ID)

	t.Run("登录编号唯一", func(t *testing.T) {
		dup := &domain.User{Code: "t-100", Name: "آخر", Role: domain.RoleTeacher}
		assert.ErrorIs(t, store.CreateUser(dup), storage.ErrCodeExists)
	})

	t.Run("按编号查找", func(t *testing.T) {
		got, err := store.GetUserByCode("t-100")
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)

		_, err = store.GetUserByCode("missing")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("教师学生关联", func(t *testing.T) {
		for _, name := range []string{"عبدالله", "أحمد"} {
			student := &domain.User{
				Code: "s-" + name, Name: name,
				Role: domain.RoleStudent, TeacherID: teacher.ID, IsActive: true,
			}
			require.NoError(t, store.CreateUser(student))
		}

		students, err := store.ListStudentsByTeacher(teacher.ID)
		require.NoError(t, err)
		require.Len(t, students, 2)
		// 按姓名排序
		assert.Equal(t, "أحمد", students[0].Name)
	})

	t.Run("更新最近登录时间", func(t *testing.T) {
		require.NoError(t, store.UpdateLastLogin(teacher.ID))

		got, err := store.GetUserByID(teacher.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
	})

	t.Run("删除账号后编号可复用", func(t *testing.T) {
		require.NoError(t, store.DeleteUser(teacher.ID))
		_, err := store.GetUserByID(teacher.ID)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		again := &domain.User{Code: "t-100", Name: "أ. محمد", Role: domain.RoleTeacher}
		assert.NoError(t, store.CreateUser(again))
	})
}

func TestStore_Attendance(t *testing.T) {
	store := NewStore()

	batch := []domain.AttendanceRecord{
		{Date: "2026-03-01", TeacherID: "t-100", StudentName: "عبدالله", Status: domain.AttendancePresent},
		{Date: "2026-03-02", TeacherID: "t-100", StudentName: "عبدالله", Status: domain.AttendanceAbsent},
		{Date: "2026-03-02", TeacherID: "t-100", StudentName: "أحمد", Status: domain.AttendancePresent},
	}
	require.NoError(t, store.SaveAttendanceBatch(batch))

	t.Run("按教师查询最新在前", func(t *testing.T) {
		records, err := store.ListAttendanceByTeacher("t-100", "", "")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "2026-03-02", records[0].Date)
	})

	t.Run("日期区间含端点", func(t *testing.T) {
		records, err := store.ListAttendanceByTeacher("t-100", "2026-03-02", "2026-03-02")
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("按学生查询", func(t *testing.T) {
		records, err := store.ListAttendanceByStudent("عبدالله", "", "")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, domain.AttendanceAbsent, records[0].Status)
	})
}

func TestStore_Statistics(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.CreateUser(&domain.User{Code: "t-100", Name: "أ. محمد", Role: domain.RoleTeacher, IsActive: true}))
	require.NoError(t, store.CreateUser(&domain.User{Code: "s-200", Name: "عبدالله", Role: domain.RoleStudent, IsActive: true}))

	msg := newTestMessage("t-100", domain.RoleTeacher, "s-200", domain.RoleStudent, "إعلان")
	require.NoError(t, store.SaveMessage(msg))

	today := time.Now().UTC().Format("2006-01-02")
	require.NoError(t, store.SaveAttendanceBatch([]domain.AttendanceRecord{
		{Date: today, TeacherID: "t-100", StudentName: "عبدالله", Status: domain.AttendanceAbsent},
	}))

	stats, err := store.GetSystemStatistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTeachers)
	assert.Equal(t, 1, stats.TotalStudents)
	assert.Equal(t, 2, stats.ActiveUsers)
	assert.Equal(t, 1, stats.TotalMessages)
	assert.Equal(t, 1, stats.UnreadMessages)
	assert.Equal(t, 1, stats.MessagesToday)
	assert.Equal(t, 1, stats.AttendanceToday)
	assert.Equal(t, 1, stats.AbsencesToday)
}

func TestStore_VolatileState(t *testing.T) {
	store := NewStore()

	t.Run("JWT黑名单随TTL过期", func(t *testing.T) {
		require.NoError(t, store.AddToBlacklist("jti-1", 100*time.Millisecond))

		blacklisted, err := store.IsBlacklisted("jti-1")
		require.NoError(t, err)
		assert.True(t, blacklisted)

		time.Sleep(150 * time.Millisecond)
		blacklisted, err = store.IsBlacklisted("jti-1")
		require.NoError(t, err)
		assert.False(t, blacklisted)
	})

	t.Run("限流计数窗口重置", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := store.IncrementRateLimit("login:1.2.3.4", 100*time.Millisecond)
			require.NoError(t, err)
		}
		count, err := store.GetRateLimit("login:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		time.Sleep(150 * time.Millisecond)
		count, err = store.GetRateLimit("login:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("会话缓存读写删", func(t *testing.T) {
		require.NoError(t, store.CacheSession("sess-1", "u-1", time.Minute))

		userID, err := store.GetCachedSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, "u-1", userID)

		require.NoError(t, store.DeleteCachedSession("sess-1"))
		userID, err = store.GetCachedSession("sess-1")
		require.NoError(t, err)
		assert.Empty(t, userID)
	})
}
