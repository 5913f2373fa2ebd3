package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/service"
	"github.com/tazhate/flock/internal/storage"
)

// servicesWindow is how many days /services looks ahead.
const servicesWindow = 14

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, "Send /help to see what I can do.")
		return
	}

	member, err := b.svc.Members.GetByTelegramID(ctx, msg.Chat.ID)
	if err != nil {
		slog.Error("Failed to look up member", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg.Chat.ID, "❌ Something went wrong, please try again later.")
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		b.cmdStart(msg, member)
	case "help":
		b.cmdHelp(msg.Chat.ID)
	case "services":
		b.cmdServices(ctx, msg.Chat.ID)
	case "rota":
		b.cmdRota(ctx, msg.Chat.ID, member)
	case "tasks":
		b.cmdTasks(ctx, msg.Chat.ID, member)
	case "pray":
		b.cmdPray(ctx, msg, member, args)
	default:
		b.reply(msg.Chat.ID, "Unknown command. /help for the list of commands")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		slog.Warn("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) cmdStart(msg *tgbotapi.Message, member *domain.Member) {
	if member != nil {
		b.reply(msg.Chat.ID, fmt.Sprintf("👋 Welcome back, %s!\n\n/help for the list of commands", html.EscapeString(member.DisplayName())))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"👋 Hello, %s!\n\nYour chat id is <code>%d</code>. Ask a church leader to link it to your member profile to get rota reminders and messages.",
		html.EscapeString(msg.From.FirstName), msg.Chat.ID,
	))
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

/services - upcoming services
/rota - your upcoming duties
/tasks - tasks assigned to you
/pray text - send a prayer request to the pastoral team
/pray private text - the team is told only that you asked
/help - this help`
	b.reply(chatID, text)
}

func (b *Bot) cmdServices(ctx context.Context, chatID int64) {
	today := domain.CivilDate(b.now().In(b.cfg.Timezone))
	services, err := b.svc.Rota.ListServices(ctx, today, today.AddDate(0, 0, servicesWindow-1))
	if err != nil {
		slog.Error("Failed to list services", "error", err)
		b.reply(chatID, "❌ Could not load services.")
		return
	}
	b.reply(chatID, "<b>Upcoming services</b>\n\n"+html.EscapeString(service.FormatServices(services)))
}

func (b *Bot) cmdRota(ctx context.Context, chatID int64, member *domain.Member) {
	if member == nil {
		b.reply(chatID, "Your chat is not linked to a member profile yet. Send /start for your chat id.")
		return
	}
	today := domain.CivilDate(b.now().In(b.cfg.Timezone))
	duties, err := b.svc.Rota.Upcoming(ctx, member.ID, today)
	if err != nil {
		slog.Error("Failed to list rota", "member_id", member.ID, "error", err)
		b.reply(chatID, "❌ Could not load your duties.")
		return
	}
	b.reply(chatID, "<b>Your duties</b>\n\n"+html.EscapeString(service.FormatRota(duties)))
}

func (b *Bot) cmdTasks(ctx context.Context, chatID int64, member *domain.Member) {
	if member == nil {
		b.reply(chatID, "Your chat is not linked to a member profile yet. Send /start for your chat id.")
		return
	}
	tasks, err := b.svc.Tasks.List(ctx, storage.TaskFilter{AssignedTo: &member.ID})
	if err != nil {
		slog.Error("Failed to list tasks", "member_id", member.ID, "error", err)
		b.reply(chatID, "❌ Could not load your tasks.")
		return
	}
	b.reply(chatID, "<b>Your tasks</b>\n\n"+html.EscapeString(service.FormatTaskList(tasks)))
}

func (b *Bot) cmdPray(ctx context.Context, msg *tgbotapi.Message, member *domain.Member, args string) {
	private := false
	if rest, ok := strings.CutPrefix(args, "private"); ok && (rest == "" || rest[0] == ' ') {
		private = true
		args = strings.TrimSpace(rest)
	}
	if args == "" {
		b.reply(msg.Chat.ID, "Write your request after the command: /pray please pray for my family")
		return
	}

	p := &domain.PrayerRequest{Request: args, IsPrivate: private}
	if member != nil {
		p.Name = member.DisplayName()
		p.Email = member.Email
	} else {
		p.Name = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	if err := b.svc.Messages.SubmitPrayer(ctx, p); err != nil {
		slog.Error("Failed to submit prayer request", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg.Chat.ID, "❌ Could not send your request.")
		return
	}
	b.reply(msg.Chat.ID, "🙏 Thank you, the pastoral team will pray for you.")
}
