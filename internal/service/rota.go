package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

type RotaService struct {
	storage *storage.Storage
}

func NewRotaService(s *storage.Storage) *RotaService {
	return &RotaService{storage: s}
}

// Assign puts a member on a duty for a service. Repeating an existing
// assignment returns it unchanged.
func (s *RotaService) Assign(ctx context.Context, serviceID, memberID int64, duty string) (*domain.RotaAssignment, error) {
	duty = strings.TrimSpace(duty)
	if duty == "" {
		return nil, fmt.Errorf("%w: duty cannot be empty", domain.ErrInvalidInput)
	}
	svc, err := s.storage.GetService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, fmt.Errorf("service %d: %w", serviceID, domain.ErrNotFound)
	}
	member, err := s.storage.GetMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("member %d: %w", memberID, domain.ErrNotFound)
	}

	a := &domain.RotaAssignment{ServiceID: serviceID, MemberID: memberID, Duty: duty}
	if err := s.storage.CreateRotaAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("create rota assignment: %w", err)
	}
	return a, nil
}

func (s *RotaService) Unassign(ctx context.Context, id int64) error {
	return s.storage.DeleteRotaAssignment(ctx, id)
}

func (s *RotaService) ListForService(ctx context.Context, serviceID int64) ([]*domain.RotaAssignment, error) {
	return s.storage.ListRotaByService(ctx, serviceID)
}

// Upcoming returns the member's duties from today onwards.
func (s *RotaService) Upcoming(ctx context.Context, memberID int64, today time.Time) ([]*domain.RotaAssignment, error) {
	return s.storage.ListRotaByMember(ctx, memberID, today.Format(domain.DateLayout))
}

func (s *RotaService) OnDate(ctx context.Context, date time.Time) ([]*domain.RotaAssignment, error) {
	return s.storage.ListRotaOnDate(ctx, date.Format(domain.DateLayout))
}

// ListServices returns services dated within [from, to].
func (s *RotaService) ListServices(ctx context.Context, from, to time.Time) ([]*domain.Service, error) {
	return s.storage.ListServices(ctx, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
}

func (s *RotaService) GetService(ctx context.Context, id int64) (*domain.Service, error) {
	svc, err := s.storage.GetService(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, fmt.Errorf("service %d: %w", id, domain.ErrNotFound)
	}
	return svc, nil
}

func (s *RotaService) DeleteService(ctx context.Context, id int64) error {
	if _, err := s.GetService(ctx, id); err != nil {
		return err
	}
	return s.storage.DeleteService(ctx, id)
}

func FormatRota(items []*domain.RotaAssignment) string {
	if len(items) == 0 {
		return "No duties scheduled"
	}
	var sb strings.Builder
	for _, a := range items {
		sb.WriteString(fmt.Sprintf("📅 %s %s: %s\n", a.ServiceDate, a.ServiceName, a.Duty))
	}
	return sb.String()
}

func FormatServices(services []*domain.Service) string {
	if len(services) == 0 {
		return "No services scheduled"
	}
	var sb strings.Builder
	for _, svc := range services {
		line := fmt.Sprintf("⛪ %s %s", svc.ServiceDate, svc.Name)
		if svc.StartTime != "" {
			line += " " + svc.StartTime
		}
		if svc.Location != "" {
			line += " @ " + svc.Location
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
