// Package notify pushes listing notifications to subscribers: a provisional
// message as soon as a listing is discovered, then an in-place edit once the
// listing's location has been resolved.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxSendRetries bounds how often a failed send or edit is retried.
const maxSendRetries = 3

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers and edits chat messages, retrying transient failures
// with exponential backoff.
type Telegram struct {
	api        telegramAPI
	log        *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewTelegram wraps an authorized bot API client.
func NewTelegram(api *tgbotapi.BotAPI, log *slog.Logger) *Telegram {
	return &Telegram{api: api, log: log, newBackOff: sendBackOff}
}

// sendBackOff waits 2, 4 and 8 seconds between attempts.
func sendBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(2*time.Second),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(8*time.Second),
		backoff.WithRandomizationFactor(0),
	), maxSendRetries)
}

// Send delivers a message and returns its Telegram message ID.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	var sent tgbotapi.Message
	op := func() error {
		m, err := t.api.Send(msg)
		if err != nil {
			t.log.Warn("send attempt failed", "chat_id", chatID, "error", err)
			return err
		}
		sent = m
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(t.newBackOff(), ctx)); err != nil {
		return 0, fmt.Errorf("sending message to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of an already delivered message.
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true

	op := func() error {
		if _, err := t.api.Send(edit); err != nil {
			t.log.Warn("edit attempt failed",
				"chat_id", chatID, "message_id", messageID, "error", err)
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(t.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("editing message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}
