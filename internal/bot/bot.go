package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/flock/config"
	"github.com/tazhate/flock/internal/service"
)

// Services are the application services the bot reads from.
type Services struct {
	Members  *service.MemberService
	Rota     *service.RotaService
	Tasks    *service.TaskService
	Messages *service.MessageService
}

type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config
	svc Services
	now func() time.Time
}

func New(cfg *config.Config, svc Services) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newBot(api, cfg, svc), nil
}

func newBot(api *tgbotapi.BotAPI, cfg *config.Config, svc Services) *Bot {
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)
	b := &Bot{api: api, cfg: cfg, svc: svc, now: time.Now}
	b.setCommands()
	return b
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "services", Description: "⛪ Upcoming services"},
		{Command: "rota", Description: "📅 My duties"},
		{Command: "tasks", Description: "📋 My tasks"},
		{Command: "pray", Description: "🙏 Send a prayer request"},
		{Command: "help", Description: "❓ Help"},
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		slog.Warn("Failed to set bot commands", "error", err)
	}
}

// SetupWebhook registers <webhook_url>/bot with Telegram.
func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.Telegram.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		slog.Warn("Webhook reported an error", "message", info.LastErrorMessage)
	}

	slog.Info("Webhook set", "url", webhookURL)
	return nil
}

// WebhookHandler handles updates pushed by Telegram.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			slog.Warn("Bad webhook update", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.handleUpdate(r.Context(), *update)
		w.WriteHeader(http.StatusOK)
	})
}

// Poll receives updates by long polling until ctx is done. Used when no
// webhook URL is configured.
func (b *Bot) Poll(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	slog.Info("Polling Telegram for updates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}
