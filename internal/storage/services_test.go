package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/internal/domain"
)

func createTemplate(t *testing.T, s *Storage) *domain.ServiceTemplate {
	t.Helper()
	tpl := &domain.ServiceTemplate{Name: "Sunday Service", DefaultTime: "10:30", Location: "Main hall"}
	require.NoError(t, s.CreateTemplate(context.Background(), tpl))
	return tpl
}

func TestPatterns_RoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	tpl := createTemplate(t, s)

	start, err := domain.ParseDate("2024-01-01")
	require.NoError(t, err)
	day := domain.WeekdaySunday
	week := 2
	p := &domain.RecurrencePattern{TemplateID: tpl.ID, Type: domain.PatternMonthly, DayOfWeek: &day, WeekOfMonth: &week, StartDate: start, IsActive: true}
	require.NoError(t, s.CreatePattern(ctx, p))

	got, err := s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.PatternMonthly, got.Type)
	assert.Equal(t, domain.WeekdaySunday, *got.DayOfWeek)
	assert.Equal(t, 2, *got.WeekOfMonth)
	assert.Nil(t, got.IntervalWeeks)
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.LastGeneratedDate)
	assert.True(t, start.Equal(got.StartDate))

	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, "2024-02-11"))
	require.NoError(t, s.AdvanceWatermark(ctx, p.ID, "2024-01-14"))
	got, err = s.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastGeneratedDate)
	assert.Equal(t, "2024-02-11", got.LastGeneratedDate.Format(domain.DateLayout))

	require.NoError(t, s.SetPatternActive(ctx, p.ID, false))
	active, err := s.ListPatterns(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.ListPatterns(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	missing, err := s.GetPattern(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestServices_CreateIfAbsentSkipsDuplicates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	tpl := createTemplate(t, s)
	other := createTemplate(t, s)

	svc := &domain.Service{TemplateID: tpl.ID, Name: tpl.Name, ServiceDate: "2024-01-07", StartTime: "10:30"}
	created, err := s.CreateServiceIfAbsent(ctx, svc)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, svc.ID)

	created, err = s.CreateServiceIfAbsent(ctx, &domain.Service{TemplateID: tpl.ID, Name: tpl.Name, ServiceDate: "2024-01-07"})
	require.NoError(t, err)
	assert.False(t, created)

	// Another template may hold a service on the same date.
	created, err = s.CreateServiceIfAbsent(ctx, &domain.Service{TemplateID: other.ID, Name: other.Name, ServiceDate: "2024-01-07"})
	require.NoError(t, err)
	assert.True(t, created)

	existing, err := s.ExistingServiceDates(ctx, tpl.ID, []string{"2024-01-07", "2024-01-14"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-07"}, existing)

	existing, err = s.ExistingServiceDates(ctx, tpl.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)

	services, err := s.ListServices(ctx, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Len(t, services, 2)
}

func TestRota_AssignAndList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	tpl := createTemplate(t, s)

	svc := &domain.Service{TemplateID: tpl.ID, Name: tpl.Name, ServiceDate: "2024-01-07"}
	_, err := s.CreateServiceIfAbsent(ctx, svc)
	require.NoError(t, err)
	m := &domain.Member{FirstName: "Jane", Surname: "Doe"}
	require.NoError(t, s.CreateMember(ctx, m))

	a := &domain.RotaAssignment{ServiceID: svc.ID, MemberID: m.ID, Duty: "welcome"}
	require.NoError(t, s.CreateRotaAssignment(ctx, a))
	require.NotZero(t, a.ID)
	assert.Equal(t, "Jane Doe", a.MemberName)
	assert.Equal(t, "2024-01-07", a.ServiceDate)

	dup := &domain.RotaAssignment{ServiceID: svc.ID, MemberID: m.ID, Duty: "welcome"}
	require.NoError(t, s.CreateRotaAssignment(ctx, dup))
	assert.Equal(t, a.ID, dup.ID)

	byService, err := s.ListRotaByService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Len(t, byService, 1)

	upcoming, err := s.ListRotaByMember(ctx, m.ID, "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, upcoming, 1)
	past, err := s.ListRotaByMember(ctx, m.ID, "2024-02-01")
	require.NoError(t, err)
	assert.Empty(t, past)

	onDate, err := s.ListRotaOnDate(ctx, "2024-01-07")
	require.NoError(t, err)
	assert.Len(t, onDate, 1)

	require.NoError(t, s.DeleteRotaAssignment(ctx, a.ID))
	byService, err = s.ListRotaByService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Empty(t, byService)
}
