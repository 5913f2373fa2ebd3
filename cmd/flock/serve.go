package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tazhate/flock/internal/api"
	"github.com/tazhate/flock/internal/bot"
	"github.com/tazhate/flock/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the API, Telegram bot and scheduled jobs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(cfg, a.storage, api.Services{
		Members:    a.members,
		Tasks:      a.tasks,
		Rota:       a.rota,
		Messages:   a.messages,
		Generation: a.generation,
		Forms:      a.forms,
		Calendar:   a.calendar,
	}, a.metrics)
	sched := scheduler.New(cfg, a.generation, a.rota, a.tasks, a.members, a.metrics)

	if cfg.Telegram.Token != "" {
		tgBot, err := bot.New(cfg, bot.Services{Members: a.members, Rota: a.rota, Tasks: a.tasks, Messages: a.messages})
		if err != nil {
			return fmt.Errorf("failed to init bot: %w", err)
		}
		a.messages.SetSender(tgBot)
		sched.SetSender(tgBot)

		if cfg.Telegram.WebhookURL != "" {
			if err := tgBot.SetupWebhook(); err != nil {
				return fmt.Errorf("failed to setup webhook: %w", err)
			}
			server.SetWebhook(tgBot.WebhookHandler())
		} else {
			go func() {
				if err := tgBot.Poll(ctx); err != nil {
					slog.Error("Telegram polling stopped", "error", err)
				}
			}()
		}
	} else {
		slog.Info("Telegram token not set, notifications disabled")
	}

	go func() {
		if err := sched.Start(ctx); err != nil {
			slog.Error("Scheduler error", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		sched.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("Shutting down...")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	slog.Info("flock stopped")
	return nil
}
