package domain

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleLeader UserRole = "leader"
	RoleMember UserRole = "member"
)

// User is a staff account mirrored from the hosted auth provider.
type User struct {
	ID         int64     `db:"id" json:"id"`
	AuthUID    string    `db:"auth_uid" json:"auth_uid"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	Role       UserRole  `db:"role" json:"role"`
	TelegramID *int64    `db:"telegram_id" json:"telegram_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanManage reports whether the role may use the staff API.
func (r UserRole) CanManage() bool {
	return r == RoleAdmin || r == RoleLeader
}

func ParseUserRole(s string) (UserRole, bool) {
	switch UserRole(s) {
	case RoleAdmin, RoleLeader, RoleMember:
		return UserRole(s), true
	}
	return "", false
}
