package domain

import (
	"encoding/json"
	"time"
)

// MemberStatus tracks where a person is in the newcomer follow-up flow.
type MemberStatus string

const (
	StatusNew       MemberStatus = "New"
	StatusContacted MemberStatus = "Contacted"
	StatusVisiting  MemberStatus = "Visiting"
	StatusMember    MemberStatus = "Member"
	StatusInactive  MemberStatus = "Inactive"
)

// Member represents a church member or newcomer
type Member struct {
	ID         int64     `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	Surname    string    `db:"surname" json:"surname"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	Address    string    `db:"address" json:"address"`
	Status     string    `db:"status" json:"status"`
	Notes      string    `db:"notes" json:"notes"`
	Interests  string    `db:"interests" json:"-"` // JSON array
	JoiningUs  string    `db:"joining_us" json:"joining_us"`
	IsNewcomer bool      `db:"is_newcomer" json:"is_newcomer"`
	TelegramID *int64    `db:"telegram_id" json:"telegram_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the full name, falling back to first name + surname.
func (m *Member) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	if m.Surname == "" {
		return m.FirstName
	}
	if m.FirstName == "" {
		return m.Surname
	}
	return m.FirstName + " " + m.Surname
}

// InterestList decodes the stored interests array.
func (m *Member) InterestList() []string {
	if m.Interests == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(m.Interests), &out); err != nil {
		return nil
	}
	return out
}

// SetInterests encodes interests for storage.
func (m *Member) SetInterests(items []string) {
	if len(items) == 0 {
		m.Interests = ""
		return
	}
	data, _ := json.Marshal(items)
	m.Interests = string(data)
}

// HasTelegram returns true if the member linked a Telegram chat
func (m *Member) HasTelegram() bool {
	return m.TelegramID != nil && *m.TelegramID != 0
}
