package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	s, err := storage.New(storage.DriverSQLite, filepath.Join(t.TempDir(), "flock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func createMember(t *testing.T, s *storage.Storage, name string, telegramID *int64) *domain.Member {
	t.Helper()
	m := &domain.Member{FullName: name, Status: string(domain.StatusMember), TelegramID: telegramID}
	require.NoError(t, s.CreateMember(context.Background(), m))
	return m
}

func createUser(t *testing.T, s *storage.Storage, uid string, role domain.UserRole) *domain.User {
	t.Helper()
	u := &domain.User{AuthUID: uid, Email: uid + "@example.com", Name: uid, Role: role}
	require.NoError(t, s.EnsureUser(context.Background(), u))
	return u
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[int64]bool
}

func (f *fakeSender) SendMessage(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func int64Ptr(v int64) *int64 { return &v }
