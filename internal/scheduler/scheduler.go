package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tazhate/flock/config"
	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/service"
)

const jobTimeout = 10 * time.Minute

type Scheduler struct {
	cron       *cron.Cron
	cfg        *config.Config
	generation *service.GenerationService
	rota       *service.RotaService
	tasks      *service.TaskService
	members    *service.MemberService
	sender     service.MessageSender
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(cfg *config.Config, gen *service.GenerationService, rota *service.RotaService, tasks *service.TaskService, members *service.MemberService, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(cfg.Timezone)),
		cfg:        cfg,
		generation: gen,
		rota:       rota,
		tasks:      tasks,
		members:    members,
		metrics:    m,
		now:        time.Now,
	}
}

func (s *Scheduler) SetSender(sender service.MessageSender) {
	s.sender = sender
}

// Start registers the configured jobs and blocks until ctx is done.
// An empty spec disables its job.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"generate", s.cfg.Scheduler.GenerationSpec, s.GenerateServices},
		{"rota_reminders", s.cfg.Scheduler.RotaReminderSpec, func(ctx context.Context) error {
			_, err := s.SendRotaReminders(ctx)
			return err
		}},
		{"task_digest", s.cfg.Scheduler.TaskDigestSpec, func(ctx context.Context) error {
			_, err := s.SendTaskDigest(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		name, run := job.name, job.run
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(ctx, name, run) }); err != nil {
			return fmt.Errorf("add %s job: %w", name, err)
		}
	}

	s.cron.Start()
	slog.Info("Scheduler started",
		"timezone", s.cfg.Timezone.String(),
		"generation", s.cfg.Scheduler.GenerationSpec,
		"rota_reminders", s.cfg.Scheduler.RotaReminderSpec,
		"task_digest", s.cfg.Scheduler.TaskDigestSpec,
	)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) runJob(parent context.Context, name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, jobTimeout)
	defer cancel()

	started := time.Now()
	err := run(ctx)
	s.metrics.JobRun(name, err)
	if err != nil {
		slog.Error("Scheduled job failed", "job", name, "error", err)
		return
	}
	slog.Debug("Scheduled job finished", "job", name, "duration", time.Since(started))
}

// today is the current calendar date in the configured timezone, as UTC midnight.
func (s *Scheduler) today() time.Time {
	return domain.CivilDate(s.now().In(s.cfg.Timezone))
}

// GenerateServices materializes every active pattern from today to the horizon.
func (s *Scheduler) GenerateServices(ctx context.Context) error {
	from := s.today()
	results, err := s.generation.GenerateAll(ctx, from, s.cfg.Horizon(from))
	created := 0
	for _, r := range results {
		created += len(r.Created)
	}
	slog.Info("Nightly generation finished", "patterns", len(results), "created", created)
	return err
}

// SendRotaReminders messages every linked member serving tomorrow and returns
// the number of reminders sent.
func (s *Scheduler) SendRotaReminders(ctx context.Context) (int, error) {
	if s.sender == nil {
		return 0, nil
	}
	tomorrow := s.today().AddDate(0, 0, 1)
	duties, err := s.rota.OnDate(ctx, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("list rota: %w", err)
	}

	byMember, order := groupBy(duties, func(a *domain.RotaAssignment) int64 { return a.MemberID })
	sent := 0
	for _, memberID := range order {
		member, err := s.members.Get(ctx, memberID)
		if err != nil || !member.HasTelegram() {
			continue
		}
		var sb strings.Builder
		sb.WriteString("⏰ <b>Serving tomorrow</b>\n\n")
		for _, a := range byMember[memberID] {
			sb.WriteString(fmt.Sprintf("• %s: %s\n", a.ServiceName, a.Duty))
		}
		if err := s.sender.SendMessage(*member.TelegramID, sb.String()); err != nil {
			slog.Warn("Failed to send rota reminder", "member_id", memberID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// SendTaskDigest messages every linked assignee their overdue tasks and
// returns the number of digests sent.
func (s *Scheduler) SendTaskDigest(ctx context.Context) (int, error) {
	if s.sender == nil {
		return 0, nil
	}
	overdue, err := s.tasks.ListOverdue(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("list overdue tasks: %w", err)
	}

	byMember, order := groupBy(overdue, func(t *domain.Task) int64 { return *t.AssignedTo })
	sent := 0
	for _, memberID := range order {
		member, err := s.members.Get(ctx, memberID)
		if err != nil || !member.HasTelegram() {
			continue
		}
		tasks := byMember[memberID]
		text := fmt.Sprintf("☀️ <b>%d overdue task(s)</b>\n\n", len(tasks)) + service.FormatTaskList(tasks)
		if err := s.sender.SendMessage(*member.TelegramID, text); err != nil {
			slog.Warn("Failed to send task digest", "member_id", memberID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

func groupBy[T any](items []T, key func(T) int64) (map[int64][]T, []int64) {
	groups := make(map[int64][]T)
	var order []int64
	for _, item := range items {
		k := key(item)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], item)
	}
	return groups, order
}
