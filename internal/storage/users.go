package storage

import (
	"context"

	"github.com/tazhate/flock/internal/domain"
)

const userColumns = `id, auth_uid, email, name, role, telegram_id, created_at`

// EnsureUser returns the user mirrored for the auth subject, creating it on
// first sight. Email, name and role are refreshed from the token claims.
func (s *Storage) EnsureUser(ctx context.Context, u *domain.User) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO users (auth_uid, email, name, role) VALUES (?, ?, ?, ?)
		 ON CONFLICT (auth_uid) DO UPDATE SET email = excluded.email, name = excluded.name, role = excluded.role
		 RETURNING id`,
		u.AuthUID, u.Email, u.Name, u.Role,
	)
	if err != nil {
		return err
	}
	stored, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if stored == nil {
		return domain.ErrNotFound
	}
	*u = *stored
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	found, err := s.get(ctx, u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return u, nil
}

func (s *Storage) GetUserByAuthUID(ctx context.Context, authUID string) (*domain.User, error) {
	u := &domain.User{}
	found, err := s.get(ctx, u, `SELECT `+userColumns+` FROM users WHERE auth_uid = ?`, authUID)
	if !found {
		return nil, err
	}
	return u, nil
}

func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	u := &domain.User{}
	found, err := s.get(ctx, u, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	if !found {
		return nil, err
	}
	return u, nil
}

// ListUsers returns all users
func (s *Storage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.selectAll(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`)
	return users, err
}

func (s *Storage) UpdateUserTelegramID(ctx context.Context, id int64, telegramID *int64) error {
	_, err := s.exec(ctx, `UPDATE users SET telegram_id = ? WHERE id = ?`, telegramID, id)
	return err
}
