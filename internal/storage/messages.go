package storage

import (
	"context"
	"time"

	"github.com/tazhate/flock/internal/domain"
)

// === Messages ===

const messageColumns = `id, sender_id, member_id, subject, body, read_at, created_at`

func (s *Storage) CreateMessage(ctx context.Context, m *domain.Message) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO messages (sender_id, member_id, subject, body) VALUES (?, ?, ?, ?) RETURNING id`,
		m.SenderID, m.MemberID, m.Subject, m.Body,
	)
	if err != nil {
		return err
	}
	m.ID = id
	m.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	m := &domain.Message{}
	found, err := s.get(ctx, m, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return m, nil
}

func (s *Storage) ListMessagesForMember(ctx context.Context, memberID int64) ([]*domain.Message, error) {
	var out []*domain.Message
	err := s.selectAll(ctx, &out, `SELECT `+messageColumns+` FROM messages WHERE member_id = ? ORDER BY created_at DESC, id DESC`, memberID)
	return out, err
}

func (s *Storage) MarkMessageRead(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `UPDATE messages SET read_at = ? WHERE id = ? AND read_at IS NULL`, time.Now().UTC(), id)
	return err
}

// === Announcements ===

const announcementColumns = `id, author_id, title, body, published_at, expires_at, created_at`

func (s *Storage) CreateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO announcements (author_id, title, body, published_at, expires_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		a.AuthorID, a.Title, a.Body, a.PublishedAt.UTC(), a.ExpiresAt,
	)
	if err != nil {
		return err
	}
	a.ID = id
	a.CreatedAt = time.Now()
	return nil
}

// ListAnnouncements returns announcements newest first.
func (s *Storage) ListAnnouncements(ctx context.Context) ([]*domain.Announcement, error) {
	var out []*domain.Announcement
	err := s.selectAll(ctx, &out, `SELECT `+announcementColumns+` FROM announcements ORDER BY published_at DESC, id DESC`)
	return out, err
}

func (s *Storage) DeleteAnnouncement(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	return err
}

// === Prayer requests ===

const prayerColumns = `id, COALESCE(name, '') AS name, COALESCE(email, '') AS email, COALESCE(request, '') AS request,
	is_private, COALESCE(status, '') AS status, COALESCE(notes, '') AS notes, created_at, updated_at`

func (s *Storage) CreatePrayerRequest(ctx context.Context, p *domain.PrayerRequest) error {
	id, err := s.insertReturningID(ctx, s.db,
		`INSERT INTO prayer_requests (name, email, request, is_private, status, notes) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Name, p.Email, p.Request, p.IsPrivate, p.Status, p.Notes,
	)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	return nil
}

func (s *Storage) GetPrayerRequest(ctx context.Context, id int64) (*domain.PrayerRequest, error) {
	p := &domain.PrayerRequest{}
	found, err := s.get(ctx, p, `SELECT `+prayerColumns+` FROM prayer_requests WHERE id = ?`, id)
	if !found {
		return nil, err
	}
	return p, nil
}

// ListPrayerRequests returns requests newest first; closed ones only when asked.
func (s *Storage) ListPrayerRequests(ctx context.Context, includeClosed bool) ([]*domain.PrayerRequest, error) {
	query := `SELECT ` + prayerColumns + ` FROM prayer_requests`
	var args []any
	if !includeClosed {
		query += ` WHERE COALESCE(status, '') != ?`
		args = append(args, domain.PrayerClosed)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var out []*domain.PrayerRequest
	err := s.selectAll(ctx, &out, query, args...)
	return out, err
}

func (s *Storage) UpdatePrayerStatus(ctx context.Context, id int64, status domain.PrayerStatus, notes string) error {
	_, err := s.exec(ctx,
		`UPDATE prayer_requests SET status = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, notes, id,
	)
	return err
}
