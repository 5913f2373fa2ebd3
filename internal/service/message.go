package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

// MessageService covers direct messages, announcements and prayer requests.
// Telegram delivery is best effort and never fails the stored operation.
type MessageService struct {
	storage        *storage.Storage
	sender         MessageSender
	pastoralChatID int64
	now            func() time.Time
}

func NewMessageService(s *storage.Storage) *MessageService {
	return &MessageService{storage: s, now: time.Now}
}

// SetSender sets the Telegram sender
func (s *MessageService) SetSender(sender MessageSender) {
	s.sender = sender
}

// SetPastoralChat sets the chat notified about new prayer requests.
func (s *MessageService) SetPastoralChat(chatID int64) {
	s.pastoralChatID = chatID
}

// === Direct messages ===

func (s *MessageService) Send(ctx context.Context, actor *domain.User, memberID int64, subject, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body cannot be empty", domain.ErrInvalidInput)
	}
	member, err := s.storage.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("member %d: %w", memberID, domain.ErrNotFound)
	}

	msg := &domain.Message{SenderID: actor.ID, MemberID: memberID, Subject: strings.TrimSpace(subject), Body: body}
	if err := s.storage.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	if member.HasTelegram() {
		text := msg.Body
		if msg.Subject != "" {
			text = "✉️ " + msg.Subject + "\n\n" + msg.Body
		}
		s.deliver(*member.TelegramID, text)
	}
	return msg, nil
}

func (s *MessageService) ListForMember(ctx context.Context, memberID int64) ([]*domain.Message, error) {
	return s.storage.ListMessagesForMember(ctx, memberID)
}

func (s *MessageService) MarkRead(ctx context.Context, id int64) error {
	msg, err := s.storage.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	return s.storage.MarkMessageRead(ctx, id)
}

// === Announcements ===

// Announce stores an announcement and, when it is already live, broadcasts it
// to every member with a linked chat. It returns the number of chats reached.
func (s *MessageService) Announce(ctx context.Context, actor *domain.User, a *domain.Announcement) (int, error) {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return 0, fmt.Errorf("%w: announcement title cannot be empty", domain.ErrInvalidInput)
	}
	now := s.now()
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(a.PublishedAt) {
		return 0, fmt.Errorf("%w: announcement expires before it is published", domain.ErrInvalidInput)
	}
	a.AuthorID = actor.ID
	if err := s.storage.CreateAnnouncement(ctx, a); err != nil {
		return 0, fmt.Errorf("create announcement: %w", err)
	}

	if !a.IsActive(now) || s.sender == nil {
		return 0, nil
	}
	members, err := s.storage.ListMembersWithTelegram(ctx)
	if err != nil {
		return 0, fmt.Errorf("list members with telegram: %w", err)
	}
	text := "📢 " + a.Title
	if a.Body != "" {
		text += "\n\n" + a.Body
	}
	sent := 0
	for _, m := range members {
		if s.deliver(*m.TelegramID, text) {
			sent++
		}
	}
	slog.Info("Broadcast announcement", "announcement_id", a.ID, "sent", sent, "members", len(members))
	return sent, nil
}

// ListAnnouncements returns announcements newest first, optionally only those live now.
func (s *MessageService) ListAnnouncements(ctx context.Context, activeOnly bool) ([]*domain.Announcement, error) {
	all, err := s.storage.ListAnnouncements(ctx)
	if err != nil || !activeOnly {
		return all, err
	}
	now := s.now()
	active := make([]*domain.Announcement, 0, len(all))
	for _, a := range all {
		if a.IsActive(now) {
			active = append(active, a)
		}
	}
	return active, nil
}

func (s *MessageService) DeleteAnnouncement(ctx context.Context, id int64) error {
	return s.storage.DeleteAnnouncement(ctx, id)
}

// === Prayer requests ===

// SubmitPrayer stores a new open request and notifies the pastoral chat.
// Private requests are announced without their text.
func (s *MessageService) SubmitPrayer(ctx context.Context, p *domain.PrayerRequest) error {
	p.Request = strings.TrimSpace(p.Request)
	if p.Request == "" {
		return fmt.Errorf("%w: prayer request cannot be empty", domain.ErrInvalidInput)
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Status = string(domain.PrayerOpen)
	if err := s.storage.CreatePrayerRequest(ctx, p); err != nil {
		return fmt.Errorf("create prayer request: %w", err)
	}

	if s.pastoralChatID != 0 {
		s.deliver(s.pastoralChatID, FormatPrayerNotice(p))
	}
	return nil
}

func (s *MessageService) GetPrayer(ctx context.Context, id int64) (*domain.PrayerRequest, error) {
	p, err := s.storage.GetPrayerRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get prayer request: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("prayer request %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (s *MessageService) ListPrayers(ctx context.Context, includeClosed bool) ([]*domain.PrayerRequest, error) {
	return s.storage.ListPrayerRequests(ctx, includeClosed)
}

// UpdatePrayer moves a request to status; empty notes keep the existing notes.
func (s *MessageService) UpdatePrayer(ctx context.Context, id int64, status domain.PrayerStatus, notes string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown prayer status %q", domain.ErrInvalidInput, status)
	}
	p, err := s.GetPrayer(ctx, id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(notes) == "" {
		notes = p.Notes
	}
	return s.storage.UpdatePrayerStatus(ctx, id, status, notes)
}

func FormatPrayerNotice(p *domain.PrayerRequest) string {
	name := p.Name
	if name == "" {
		name = "anonymous"
	}
	if p.IsPrivate {
		return fmt.Sprintf("🙏 New private prayer request #%d from %s", p.ID, name)
	}
	return fmt.Sprintf("🙏 New prayer request #%d from %s:\n\n%s", p.ID, name, p.Request)
}

func (s *MessageService) deliver(chatID int64, text string) bool {
	if s.sender == nil {
		return false
	}
	if err := s.sender.SendMessage(chatID, text); err != nil {
		slog.Warn("Failed to deliver Telegram message", "chat_id", chatID, "error", err)
		return false
	}
	return true
}
