package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(DriverSQLite, filepath.Join(t.TempDir(), "flock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_MigratesOnBothSQLiteDrivers(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverSQLitePure} {
		t.Run(driver, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "flock.db")
			s, err := New(driver, path)
			require.NoError(t, err)
			require.NoError(t, s.Ping(context.Background()))
			require.NoError(t, s.Close())

			// Re-opening re-applies migrations without error.
			s, err = New(driver, path)
			require.NoError(t, err)
			assert.Equal(t, driver, s.Driver())
			require.NoError(t, s.Close())
		})
	}
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "x")
	assert.Error(t, err)
}

func TestUsers_EnsureUserIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	u := &domain.User{AuthUID: "auth|1", Email: "a@x.com", Name: "Ann", Role: domain.RoleLeader}
	require.NoError(t, s.EnsureUser(ctx, u))
	require.NotZero(t, u.ID)

	again := &domain.User{AuthUID: "auth|1", Email: "ann@x.com", Name: "Ann B", Role: domain.RoleAdmin}
	require.NoError(t, s.EnsureUser(ctx, again))
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "ann@x.com", again.Email)
	assert.Equal(t, domain.RoleAdmin, again.Role)

	missing, err := s.GetUserByAuthUID(ctx, "auth|2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	chat := int64(42)
	require.NoError(t, s.UpdateUserTelegramID(ctx, u.ID, &chat))
	byChat, err := s.GetUserByTelegramID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, byChat)
	assert.Equal(t, u.ID, byChat.ID)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestMembers_CRUD(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	m := &domain.Member{FirstName: "Jane", Surname: "Doe", FullName: "Jane Doe", Email: "jane@x.com", Status: string(domain.StatusNew), IsNewcomer: true}
	m.SetInterests([]string{"music"})
	require.NoError(t, s.CreateMember(ctx, m))
	require.NotZero(t, m.ID)

	got, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", got.DisplayName())
	assert.Equal(t, []string{"music"}, got.InterestList())
	assert.True(t, got.IsNewcomer)

	require.NoError(t, s.CreateMember(ctx, &domain.Member{FullName: "Bob Smith", Status: string(domain.StatusMember)}))

	newcomers, err := s.ListMembers(ctx, MemberFilter{Newcomers: true})
	require.NoError(t, err)
	require.Len(t, newcomers, 1)
	assert.Equal(t, m.ID, newcomers[0].ID)

	found, err := s.ListMembers(ctx, MemberFilter{Search: "BOB"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bob Smith", found[0].FullName)

	require.NoError(t, s.UpdateMemberStatus(ctx, m.ID, string(domain.StatusContacted)))
	contacted, err := s.ListMembers(ctx, MemberFilter{Status: string(domain.StatusContacted)})
	require.NoError(t, err)
	assert.Len(t, contacted, 1)

	chat := int64(777)
	require.NoError(t, s.UpdateMemberTelegramID(ctx, m.ID, &chat))
	linked, err := s.ListMembersWithTelegram(ctx)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	byChat, err := s.GetMemberByTelegramID(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, m.ID, byChat.ID)

	require.NoError(t, s.DeleteMember(ctx, m.ID))
	gone, err := s.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestTasks_ListAndOverdue(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	u := &domain.User{AuthUID: "auth|1", Role: domain.RoleAdmin}
	require.NoError(t, s.EnsureUser(ctx, u))
	m := &domain.Member{FullName: "Jane"}
	require.NoError(t, s.CreateMember(ctx, m))

	due := "2024-01-10"
	overdue := &domain.Task{CreatedBy: u.ID, AssignedTo: &m.ID, Title: "Call", Priority: domain.PriorityWeek, DueDate: &due}
	urgent := &domain.Task{CreatedBy: u.ID, Title: "Print", Priority: domain.PriorityUrgent}
	require.NoError(t, s.CreateTask(ctx, overdue))
	require.NoError(t, s.CreateTask(ctx, urgent))

	tasks, err := s.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, urgent.ID, tasks[0].ID)

	late, err := s.ListOverdueTasks(ctx, "2024-01-11")
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, overdue.ID, late[0].ID)

	require.NoError(t, s.MarkTaskDone(ctx, overdue.ID))
	done, err := s.GetTask(ctx, overdue.ID)
	require.NoError(t, err)
	assert.True(t, done.IsDone())

	assigned, err := s.ListTasks(ctx, TaskFilter{AssignedTo: &m.ID})
	require.NoError(t, err)
	assert.Empty(t, assigned)

	all, err := s.ListTasks(ctx, TaskFilter{AssignedTo: &m.ID, IncludeDone: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteTask(ctx, urgent.ID))
	gone, err := s.GetTask(ctx, urgent.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
