package domain

import "time"

// ServiceTemplate supplies the name and default start time for generated services.
type ServiceTemplate struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DefaultTime string    `db:"default_time" json:"default_time"` // "HH:MM"
	Location    string    `db:"location" json:"location"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Service is one concrete church service on a calendar date.
type Service struct {
	ID          int64     `db:"id" json:"id"`
	TemplateID  int64     `db:"template_id" json:"template_id"`
	Name        string    `db:"name" json:"name"`
	ServiceDate string    `db:"service_date" json:"service_date"` // YYYY-MM-DD
	StartTime   string    `db:"start_time" json:"start_time"`
	Location    string    `db:"location" json:"location"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StartsAt combines the service date and start time in loc.
// A missing or malformed time yields midnight.
func (s *Service) StartsAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout+" 15:04", s.ServiceDate+" "+s.StartTime, loc); err == nil {
		return t
	}
	t, _ := time.ParseInLocation(DateLayout, s.ServiceDate, loc)
	return t
}

// RotaAssignment puts a member on a duty for a service.
type RotaAssignment struct {
	ID          int64     `db:"id" json:"id"`
	ServiceID   int64     `db:"service_id" json:"service_id"`
	MemberID    int64     `db:"member_id" json:"member_id"`
	Duty        string    `db:"duty" json:"duty"`
	ServiceName string    `db:"service_name" json:"service_name,omitempty"`
	ServiceDate string    `db:"service_date" json:"service_date,omitempty"`
	MemberName  string    `db:"member_name" json:"member_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
