package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

type MemberService struct {
	storage *storage.Storage
}

func NewMemberService(s *storage.Storage) *MemberService {
	return &MemberService{storage: s}
}

// Create validates and stores a member. New members start as newcomers with
// status New unless the caller says otherwise.
func (s *MemberService) Create(ctx context.Context, m *domain.Member) error {
	normalizeMember(m)
	if m.DisplayName() == "" {
		return fmt.Errorf("%w: member name cannot be empty", domain.ErrInvalidInput)
	}
	if m.Status == "" {
		m.Status = string(domain.StatusNew)
	}
	if err := s.storage.CreateMember(ctx, m); err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *MemberService) Get(ctx context.Context, id int64) (*domain.Member, error) {
	m, err := s.storage.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("member %d: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// GetByTelegramID returns the member linked to the chat, or nil.
func (s *MemberService) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.Member, error) {
	return s.storage.GetMemberByTelegramID(ctx, telegramID)
}

func (s *MemberService) List(ctx context.Context, f storage.MemberFilter) ([]*domain.Member, error) {
	return s.storage.ListMembers(ctx, f)
}

func (s *MemberService) ListNewcomers(ctx context.Context) ([]*domain.Member, error) {
	return s.storage.ListMembers(ctx, storage.MemberFilter{Newcomers: true})
}

// Update overwrites the member's editable fields.
func (s *MemberService) Update(ctx context.Context, m *domain.Member) error {
	if _, err := s.Get(ctx, m.ID); err != nil {
		return err
	}
	normalizeMember(m)
	if m.DisplayName() == "" {
		return fmt.Errorf("%w: member name cannot be empty", domain.ErrInvalidInput)
	}
	if err := s.storage.UpdateMember(ctx, m); err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

func (s *MemberService) SetStatus(ctx context.Context, id int64, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return fmt.Errorf("%w: status cannot be empty", domain.ErrInvalidInput)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.storage.UpdateMemberStatus(ctx, id, status)
}

// LinkTelegram attaches a Telegram chat id to the member; nil unlinks.
func (s *MemberService) LinkTelegram(ctx context.Context, id int64, telegramID *int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if telegramID != nil && *telegramID != 0 {
		other, err := s.storage.GetMemberByTelegramID(ctx, *telegramID)
		if err != nil {
			return fmt.Errorf("get member by telegram: %w", err)
		}
		if other != nil && other.ID != id {
			return fmt.Errorf("%w: chat already linked to member %d", domain.ErrInvalidInput, other.ID)
		}
	}
	return s.storage.UpdateMemberTelegramID(ctx, id, telegramID)
}

func (s *MemberService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.storage.DeleteMember(ctx, id)
}

func normalizeMember(m *domain.Member) {
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.Surname = strings.TrimSpace(m.Surname)
	m.FullName = strings.TrimSpace(m.FullName)
	m.Email = strings.TrimSpace(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
	if m.FullName == "" && (m.FirstName != "" || m.Surname != "") {
		m.FullName = strings.TrimSpace(m.FirstName + " " + m.Surname)
	}
}
