package domain

import "time"

// Message is a direct message from a staff user to a member.
type Message struct {
	ID        int64      `db:"id" json:"id"`
	SenderID  int64      `db:"sender_id" json:"sender_id"`
	MemberID  int64      `db:"member_id" json:"member_id"`
	Subject   string     `db:"subject" json:"subject"`
	Body      string     `db:"body" json:"body"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

type Announcement struct {
	ID          int64      `db:"id" json:"id"`
	AuthorID    int64      `db:"author_id" json:"author_id"`
	Title       string     `db:"title" json:"title"`
	Body        string     `db:"body" json:"body"`
	PublishedAt time.Time  `db:"published_at" json:"published_at"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// IsActive reports whether the announcement is published and not expired at now.
func (a *Announcement) IsActive(now time.Time) bool {
	if now.Before(a.PublishedAt) {
		return false
	}
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

type PrayerStatus string

const (
	PrayerOpen     PrayerStatus = "open"
	PrayerPraying  PrayerStatus = "praying"
	PrayerAnswered PrayerStatus = "answered"
	PrayerClosed   PrayerStatus = "closed"
)

func (s PrayerStatus) Valid() bool {
	switch s {
	case PrayerOpen, PrayerPraying, PrayerAnswered, PrayerClosed:
		return true
	}
	return false
}

type PrayerRequest struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Request   string    `db:"request" json:"request"`
	IsPrivate bool      `db:"is_private" json:"is_private"`
	Status    string    `db:"status" json:"status"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
