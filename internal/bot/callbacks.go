package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdReset = "reset"
	cmdNoop  = "noop"
)

// handleReset asks for confirmation before wiping a user's data. The actual
// delete happens in handleCallback once the button is pressed.
func (b *Bot) handleReset(ctx context.Context, chatID int64) {
	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Delete your subscription, watches and price book? This cannot be undone.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete everything", fmt.Sprintf("%s:%d", cmdReset, u.ID)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cmdNoop+":0"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send reset confirmation", "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return
	}

	action := parts[0]
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdReset:
		// The id in the button must still belong to this chat.
		u, err := b.store.GetUserByChat(ctx, chatID)
		if err != nil || u.ID != id {
			b.reply(chatID, "Nothing to delete.")
			return
		}
		if err := b.store.DeleteUser(ctx, u.ID); err != nil {
			b.reply(chatID, fmt.Sprintf("Error: %v", err))
			return
		}
		b.reply(chatID, "All your data has been deleted. Send /start to register again.")
	}
}
