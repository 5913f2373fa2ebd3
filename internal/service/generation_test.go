package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/storage"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []*domain.Service
}

func (p *fakePublisher) IsConfigured() bool { return true }

func (p *fakePublisher) PublishServices(_ context.Context, services []*domain.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, services...)
	return nil
}

func newGeneration(t *testing.T) (*GenerationService, *storage.Storage, *domain.ServiceTemplate) {
	t.Helper()
	store := newTestStorage(t)
	svc := NewGenerationService(store, metrics.New())
	tpl := &domain.ServiceTemplate{Name: "Sunday Service", DefaultTime: "10:30", Location: "Main hall"}
	require.NoError(t, svc.CreateTemplate(context.Background(), tpl))
	return svc, store, tpl
}

func createPattern(t *testing.T, svc *GenerationService, tpl *domain.ServiceTemplate, typ domain.PatternType, week *int) *domain.RecurrencePattern {
	t.Helper()
	day := domain.WeekdaySunday
	p := &domain.RecurrencePattern{
		TemplateID:  tpl.ID,
		Type:        typ,
		DayOfWeek:   &day,
		WeekOfMonth: week,
		StartDate:   mustDate(t, "2024-01-01"),
		IsActive:    true,
	}
	require.NoError(t, svc.CreatePattern(context.Background(), p))
	return p
}

func TestGenerate_MonthlyMaterializesAndAdvancesWatermark(t *testing.T) {
	svc, store, tpl := newGeneration(t)
	ctx := context.Background()
	week := 2
	p := createPattern(t, svc, tpl, domain.PatternMonthly, &week)
	pub := &fakePublisher{}
	svc.SetPublisher(pub)

	res, err := svc.Generate(ctx, p.ID, mustDate(t, "2024-01-01"), mustDate(t, "2024-03-31"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-14", "2024-02-11", "2024-03-10"}, res.Dates)
	assert.Len(t, res.Created, 3)
	assert.Empty(t, res.Skipped)
	assert.Len(t, pub.published, 3)

	services, err := store.ListServices(ctx, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	require.Len(t, services, 3)
	assert.Equal(t, "Sunday Service", services[0].Name)
	assert.Equal(t, "10:30", services[0].StartTime)
	assert.Equal(t, "Main hall", services[0].Location)

	got, err := store.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastGeneratedDate)
	assert.Equal(t, "2024-03-10", got.LastGeneratedDate.Format(domain.DateLayout))

	// The watermark hides everything already generated.
	res, err = svc.Generate(ctx, p.ID, mustDate(t, "2024-01-01"), mustDate(t, "2024-03-31"))
	require.NoError(t, err)
	assert.Empty(t, res.Dates)
	assert.Empty(t, res.Created)

	services, err = store.ListServices(ctx, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, services, 3)
}

func TestGenerate_SkipsDatesThatAlreadyHaveAService(t *testing.T) {
	svc, _, tpl := newGeneration(t)
	ctx := context.Background()
	week := 2
	monthly := createPattern(t, svc, tpl, domain.PatternMonthly, &week)
	weekly := createPattern(t, svc, tpl, domain.PatternWeekly, nil)

	_, err := svc.Generate(ctx, monthly.ID, mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	require.NoError(t, err)

	res, err := svc.Generate(ctx, weekly.ID, mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-07", "2024-01-14", "2024-01-21", "2024-01-28"}, res.Dates)
	assert.Len(t, res.Created, 3)
	assert.Equal(t, []string{"2024-01-14"}, res.Skipped)
}

func TestGenerate_ConcurrentRunsNeverDuplicate(t *testing.T) {
	svc, store, tpl := newGeneration(t)
	ctx := context.Background()
	var patterns []*domain.RecurrencePattern
	for i := 0; i < 4; i++ {
		patterns = append(patterns, createPattern(t, svc, tpl, domain.PatternWeekly, nil))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for _, p := range patterns {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			res, err := svc.Generate(ctx, id, mustDate(t, "2024-01-01"), mustDate(t, "2024-02-29"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			created += len(res.Created)
			mu.Unlock()
		}(p.ID)
	}
	wg.Wait()

	services, err := store.ListServices(ctx, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, services, 8)
	assert.Equal(t, 8, created)
}

func TestGenerate_UnknownPattern(t *testing.T) {
	svc, _, _ := newGeneration(t)
	_, err := svc.Generate(context.Background(), 404, mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	assert.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestGenerateAll_SkipsInactivePatterns(t *testing.T) {
	svc, _, tpl := newGeneration(t)
	ctx := context.Background()
	week := 1
	active := createPattern(t, svc, tpl, domain.PatternMonthly, &week)

	other := &domain.ServiceTemplate{Name: "Prayer Meeting", DefaultTime: "19:00"}
	require.NoError(t, svc.CreateTemplate(ctx, other))
	paused := createPattern(t, svc, other, domain.PatternWeekly, nil)
	require.NoError(t, svc.SetPatternActive(ctx, paused.ID, false))

	results, err := svc.GenerateAll(ctx, mustDate(t, "2024-01-01"), mustDate(t, "2024-02-29"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, active.ID, results[0].PatternID)
	assert.Equal(t, []string{"2024-01-07", "2024-02-04"}, results[0].Dates)
}

func TestCreatePattern_Validation(t *testing.T) {
	svc, _, tpl := newGeneration(t)
	ctx := context.Background()
	day := domain.WeekdayFriday

	tests := []struct {
		name string
		p    domain.RecurrencePattern
		want error
	}{
		{"unknown type", domain.RecurrencePattern{TemplateID: tpl.ID, Type: "daily", DayOfWeek: &day, StartDate: mustDate(t, "2024-01-01")}, domain.ErrInvalidInput},
		{"monthly without week", domain.RecurrencePattern{TemplateID: tpl.ID, Type: domain.PatternMonthly, DayOfWeek: &day, StartDate: mustDate(t, "2024-01-01")}, domain.ErrInvalidInput},
		{"no start", domain.RecurrencePattern{TemplateID: tpl.ID, Type: domain.PatternWeekly, DayOfWeek: &day}, domain.ErrInvalidInput},
		{"missing template", domain.RecurrencePattern{TemplateID: 999, Type: domain.PatternWeekly, DayOfWeek: &day, StartDate: mustDate(t, "2024-01-01")}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			assert.ErrorIs(t, svc.CreatePattern(ctx, &p), tt.want)
		})
	}

	assert.ErrorIs(t, svc.CreateTemplate(ctx, &domain.ServiceTemplate{Name: " "}), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.CreateTemplate(ctx, &domain.ServiceTemplate{Name: "x", DefaultTime: "25:99"}), domain.ErrInvalidInput)
}

func TestPreview(t *testing.T) {
	svc, _, _ := newGeneration(t)
	day := domain.WeekdaySunday
	p := domain.RecurrencePattern{Type: domain.PatternBiWeekly, DayOfWeek: &day, StartDate: mustDate(t, "2024-01-01")}

	preview := svc.Preview(p, mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	assert.Equal(t, []string{"2024-01-07", "2024-01-21"}, preview.Dates)
	assert.Equal(t, "every other Sunday", preview.Description)
	assert.Contains(t, preview.RRule, "FREQ=WEEKLY")
	assert.Contains(t, preview.RRule, "INTERVAL=2")
}
