package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tazhate/flock/internal/blob"
	"github.com/tazhate/flock/internal/clients/caldav"
	"github.com/tazhate/flock/internal/metrics"
	"github.com/tazhate/flock/internal/service"
	"github.com/tazhate/flock/internal/storage"
)

// app holds the wired services shared by the commands.
type app struct {
	storage    *storage.Storage
	metrics    *metrics.Metrics
	members    *service.MemberService
	tasks      *service.TaskService
	rota       *service.RotaService
	messages   *service.MessageService
	generation *service.GenerationService
	forms      *service.FormService
	calendar   *service.CalendarService
}

func openStorage() (*storage.Storage, error) {
	store, err := storage.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func newApp(ctx context.Context) (*app, error) {
	store, err := openStorage()
	if err != nil {
		return nil, err
	}
	archive, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open submission archive: %w", err)
	}

	m := metrics.New()
	a := &app{
		storage:    store,
		metrics:    m,
		members:    service.NewMemberService(store),
		tasks:      service.NewTaskService(store),
		rota:       service.NewRotaService(store),
		messages:   service.NewMessageService(store),
		generation: service.NewGenerationService(store, m),
		forms:      service.NewFormService(store, archive, m),
	}

	client := caldav.NewClient(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.CalendarPath)
	a.calendar = service.NewCalendarService(store, client, cfg.Timezone)
	if a.calendar.IsConfigured() {
		a.generation.SetPublisher(a.calendar)
		slog.Info("CalDAV publishing enabled", "url", cfg.CalDAV.URL)
	}
	a.messages.SetPastoralChat(cfg.Telegram.PastoralChatID)

	slog.Debug("Application wired", "database", store.Driver(), "archive", archive.Driver())
	return a, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}
