package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maktab/backend/internal/cache"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage/memory"
)

// seedRoster 一个管理员、一个教师、教师名下两个学生、一个别人的学生
func seedRoster(t *testing.T, store *memory.Store) {
	t.Helper()
	users := []domain.User{
		{ID: "admin", Code: "A0001", Name: "الإدارة", Role: domain.RoleAdmin, IsActive: true},
		{ID: "t-100", Code: "T1001", Name: "أ. محمد", Role: domain.RoleTeacher, IsActive: true},
		{ID: "s-200", Code: "S2001", Name: "عبدالله", Role: domain.RoleStudent, TeacherID: "t-100", IsActive: true},
		{ID: "s-201", Code: "S2002", Name: "يوسف", Role: domain.RoleStudent, TeacherID: "t-100", IsActive: true},
		{ID: "s-300", Code: "S3001", Name: "خالد", Role: domain.RoleStudent, TeacherID: "t-999", IsActive: true},
	}
	for i := range users {
		require.NoError(t, store.CreateUser(&users[i]))
	}
}

func recipientIDs(recipients []domain.Recipient) []string {
	ids := make([]string, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRecipients(t *testing.T) {
	store := memory.NewStore()
	seedRoster(t, store)
	svc := NewRosterService(store, nil)

	t.Run("管理员可寻址所有人", func(t *testing.T) {
		recipients, err := svc.Recipients(domain.UserContext{ID: "admin", Role: domain.RoleAdmin})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"t-100", "s-200", "s-201", "s-300"}, recipientIDs(recipients))
	})

	t.Run("教师可寻址管理员和自己的学生", func(t *testing.T) {
		recipients, err := svc.Recipients(domain.UserContext{ID: "t-100", Role: domain.RoleTeacher})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"admin", "s-200", "s-201"}, recipientIDs(recipients))
	})

	t.Run("学生可寻址管理员和自己的教师", func(t *testing.T) {
		recipients, err := svc.Recipients(domain.UserContext{ID: "s-200", Role: domain.RoleStudent})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"admin", "t-100"}, recipientIDs(recipients))
	})

	t.Run("教师不存在的学生只看到管理员", func(t *testing.T) {
		recipients, err := svc.Recipients(domain.UserContext{ID: "s-300", Role: domain.RoleStudent})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"admin"}, recipientIDs(recipients))
	})

	t.Run("未知角色失败", func(t *testing.T) {
		_, err := svc.Recipients(domain.UserContext{ID: "x", Role: domain.Role("guest")})
		assert.ErrorIs(t, err, ErrUnknownRole)
	})
}

func TestCanAddress(t *testing.T) {
	store := memory.NewStore()
	seedRoster(t, store)
	svc := NewRosterService(store, nil)

	teacher := domain.UserContext{ID: "t-100", Role: domain.RoleTeacher}

	ok, err := svc.CanAddress(teacher, "s-200", domain.RoleStudent)
	require.NoError(t, err)
	assert.True(t, ok)

	// 别人的学生不可寻址
	ok, err = svc.CanAddress(teacher, "s-300", domain.RoleStudent)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeactivateRemovesFromDirectory(t *testing.T) {
	store := memory.NewStore()
	seedRoster(t, store)
	svc := NewRosterService(store, cache.NewLocalCache(time.Minute))

	require.NoError(t, svc.Deactivate("s-200"))

	recipients, err := svc.Recipients(domain.UserContext{ID: "t-100", Role: domain.RoleTeacher})
	require.NoError(t, err)
	assert.NotContains(t, recipientIDs(recipients), "s-200")
}

func TestDirectoryLocalCache(t *testing.T) {
	store := memory.NewStore()
	seedRoster(t, store)
	local := cache.NewLocalCache(time.Minute)
	defer local.Close()
	svc := NewRosterService(store, local)

	first, err := svc.Recipients(domain.UserContext{ID: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)

	// 绕过服务直接加账号：缓存未作废前目录不变
	require.NoError(t, store.CreateUser(&domain.User{
		ID: "t-101", Code: "T1002", Name: "أ. سعيد", Role: domain.RoleTeacher, IsActive: true,
	}))

	second, err := svc.Recipients(domain.UserContext{ID: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))

	// 作废后能看到新账号
	svc.Invalidate()
	third, err := svc.Recipients(domain.UserContext{ID: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Contains(t, recipientIDs(third), "t-101")
}
