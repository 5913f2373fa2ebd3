package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tazhate/flock/internal/clients/caldav"
	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

const defaultServiceDuration = 90 * time.Minute

// CalendarService publishes services to CalDAV and renders the iCalendar feed.
type CalendarService struct {
	storage  *storage.Storage
	client   *caldav.Client
	timezone *time.Location
	duration time.Duration
	now      func() time.Time
}

// NewCalendarService creates a new calendar service
func NewCalendarService(s *storage.Storage, client *caldav.Client, tz *time.Location) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	return &CalendarService{
		storage:  s,
		client:   client,
		timezone: tz,
		duration: defaultServiceDuration,
		now:      time.Now,
	}
}

// IsConfigured returns true if CalDAV client is configured
func (s *CalendarService) IsConfigured() bool {
	return s.client.IsConfigured()
}

// DiscoverCalendars lists the calendars visible to the configured account.
func (s *CalendarService) DiscoverCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("CalDAV not configured")
	}
	return s.client.DiscoverCalendars(ctx)
}

// PublishServices creates or replaces one event per service. Event UIDs are
// derived from service ids, so republishing is idempotent.
func (s *CalendarService) PublishServices(ctx context.Context, services []*domain.Service) error {
	if !s.IsConfigured() {
		return fmt.Errorf("CalDAV not configured")
	}
	var errs []error
	for _, svc := range services {
		event, err := s.event(ctx, svc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.client.PutEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishRange republishes every service dated within [from, to].
func (s *CalendarService) PublishRange(ctx context.Context, from, to time.Time) (int, error) {
	services, err := s.storage.ListServices(ctx, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("list services: %w", err)
	}
	if err := s.PublishServices(ctx, services); err != nil {
		return 0, err
	}
	return len(services), nil
}

// Unpublish removes a service's event.
func (s *CalendarService) Unpublish(ctx context.Context, serviceID int64) error {
	if !s.IsConfigured() {
		return nil
	}
	return s.client.DeleteEvent(ctx, caldav.ServiceUID(serviceID))
}

// WriteFeed renders services dated within [from, to] as one iCalendar document.
func (s *CalendarService) WriteFeed(ctx context.Context, w io.Writer, from, to time.Time) error {
	services, err := s.storage.ListServices(ctx, from.Format(domain.DateLayout), to.Format(domain.DateLayout))
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	events := make([]caldav.Event, 0, len(services))
	for _, svc := range services {
		event, err := s.event(ctx, svc)
		if err != nil {
			return err
		}
		events = append(events, *event)
	}
	return caldav.Encode(w, caldav.BuildCalendar(events, s.now()))
}

// event builds the calendar event for a service; a service without a start
// time becomes an all-day event. The rota goes into the description.
func (s *CalendarService) event(ctx context.Context, svc *domain.Service) (*caldav.Event, error) {
	rota, err := s.storage.ListRotaByService(ctx, svc.ID)
	if err != nil {
		return nil, fmt.Errorf("list rota for service %d: %w", svc.ID, err)
	}

	start := svc.StartsAt(s.timezone)
	event := &caldav.Event{
		UID:         caldav.ServiceUID(svc.ID),
		Summary:     svc.Name,
		Description: describeRota(rota),
		Location:    svc.Location,
		StartTime:   start,
	}
	if svc.StartTime == "" {
		event.AllDay = true
		event.EndTime = start.AddDate(0, 0, 1)
	} else {
		event.EndTime = start.Add(s.duration)
	}
	return event, nil
}

func describeRota(rota []*domain.RotaAssignment) string {
	if len(rota) == 0 {
		return ""
	}
	lines := make([]string, 0, len(rota))
	for _, a := range rota {
		lines = append(lines, a.Duty+": "+a.MemberName)
	}
	return strings.Join(lines, "\n")
}
