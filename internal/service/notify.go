package service

// MessageSender delivers text to a Telegram chat.
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}
