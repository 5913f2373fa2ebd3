package storage

import (
	"context"
	"strings"

	"github.com/tazhate/flock/internal/domain"
)

const memberColumns = `id, COALESCE(first_name, '') AS first_name, COALESCE(surname, '') AS surname,
	COALESCE(full_name, '') AS full_name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone,
	COALESCE(address, '') AS address, COALESCE(status, '') AS status, COALESCE(notes, '') AS notes,
	COALESCE(interests, '') AS interests, COALESCE(joining_us, '') AS joining_us,
	is_newcomer, telegram_id, created_at, updated_at`

// MemberFilter narrows ListMembers. Zero values match everything.
type MemberFilter struct {
	Status    string
	Newcomers bool
	Search    string
}

func (s *Storage) CreateMember(ctx context.Context, m *domain.Member) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO members (first_name, surname, full_name, email, phone, address, status, notes, interests, joining_us, is_newcomer, telegram_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		m.FirstName, m.Surname, m.FullName, m.Email, m.Phone, m.Address, m.Status, m.Notes, m.Interests, m.JoiningUs, m.IsNewcomer, m.TelegramID,
	)
	if err != nil {
		return err
	}
	stored, err := s.GetMember(ctx, id)
	if err != nil || stored == nil {
		m.ID = id
		return err
	}
	*m = *stored
	return nil
}

func (s *Storage) GetMember(ctx context.Context, id int64) (*domain.Member, error) {
	m := &domain.Member{}
	found, err := s.get(ctx, m, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return m, nil
}

func (s *Storage) GetMemberByTelegramID(ctx context.Context, telegramID int64) (*domain.Member, error) {
	m := &domain.Member{}
	found, err := s.get(ctx, m, `SELECT `+memberColumns+` FROM members WHERE telegram_id = ? ORDER BY id LIMIT 1`, telegramID)
	if !found {
		return nil, err
	}
	return m, nil
}

func (s *Storage) ListMembers(ctx context.Context, f MemberFilter) ([]*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE 1 = 1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Newcomers {
		query += ` AND is_newcomer = ?`
		args = append(args, true)
	}
	if f.Search != "" {
		query += ` AND (LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?)`
		like := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY COALESCE(full_name, surname, first_name, ''), id`

	var members []*domain.Member
	err := s.selectAll(ctx, &members, query, args...)
	return members, err
}

// ListMembersWithTelegram returns members that linked a Telegram chat.
func (s *Storage) ListMembersWithTelegram(ctx context.Context) ([]*domain.Member, error) {
	var members []*domain.Member
	err := s.selectAll(ctx, &members, `SELECT `+memberColumns+` FROM members WHERE telegram_id IS NOT NULL AND telegram_id != 0 ORDER BY id`)
	return members, err
}

func (s *Storage) UpdateMember(ctx context.Context, m *domain.Member) error {
	_, err := s.exec(ctx,
		`UPDATE members SET first_name = ?, surname = ?, full_name = ?, email = ?, phone = ?, address = ?, status = ?,
		 notes = ?, interests = ?, joining_us = ?, is_newcomer = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		m.FirstName, m.Surname, m.FullName, m.Email, m.Phone, m.Address, m.Status, m.Notes, m.Interests, m.JoiningUs, m.IsNewcomer, m.ID,
	)
	return err
}

func (s *Storage) UpdateMemberStatus(ctx context.Context, id int64, status string) error {
	_, err := s.exec(ctx, `UPDATE members SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

func (s *Storage) UpdateMemberTelegramID(ctx context.Context, id int64, telegramID *int64) error {
	_, err := s.exec(ctx, `UPDATE members SET telegram_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, telegramID, id)
	return err
}

func (s *Storage) DeleteMember(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `DELETE FROM members WHERE id = ?`, id)
	return err
}
