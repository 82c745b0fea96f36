package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// CommandHandler answers a chat command such as "/check". An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

// StartPolling long-polls Telegram for commands. Blocks until ctx is cancelled.
// Messages from chats other than the configured one are ignored.
func (t *TelegramSender) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			t.logger.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update, handler)
		}
	}
}

func (t *TelegramSender) handleUpdate(ctx context.Context, update tgbotapi.Update, handler CommandHandler) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if msg.Chat.ID != t.chatID {
		t.logger.Warn("ignoring message from unknown chat", zap.Int64("chat_id", msg.Chat.ID))
		return
	}

	text := strings.TrimSpace(msg.Text)
	// strip the @botname suffix used in group chats
	if cmd, _, found := strings.Cut(text, "@"); found && strings.HasPrefix(cmd, "/") {
		text = cmd
	}
	t.logger.Info("received command", zap.String("command", text))

	reply := handler(ctx, text)
	if reply == "" {
		return
	}
	if err := t.sendText(ctx, msg.Chat.ID, reply); err != nil {
		t.logger.Error("send reply", zap.Error(err))
	}
}
