package bot

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketwatch_bot/internal/config"
	"marketwatch_bot/internal/geo"
	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/schedule"
	"marketwatch_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Geocoder resolves free-text places to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Point, error)
}

// Searcher runs an on-demand marketplace search for /check.
type Searcher interface {
	Search(ctx context.Context, keyword, location string) ([]model.Listing, error)
}

// Bot is the Telegram bot that handles subscriber commands.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	cfg      *config.Config
	geocoder Geocoder
	source   Searcher
	engine   *schedule.Engine
	log      *slog.Logger
}

// New creates a Bot on an existing API client, so the command loop and the
// notification sender share one session.
func New(api *tgbotapi.BotAPI, store storage.Storage, cfg *config.Config, geocoder Geocoder, source Searcher, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		geocoder: geocoder,
		source:   source,
		engine:   schedule.New(),
		log:      log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "list":
		b.handleList(ctx, chatID)
	case "watch":
		b.handleWatch(ctx, chatID, args)
	case "unwatch":
		b.handleUnwatch(ctx, chatID, args)
	case "exclude":
		b.handleExclude(ctx, chatID, args)
	case "rmexclude":
		b.handleRmExclude(ctx, chatID, args)
	case "location":
		b.handleLocation(ctx, chatID, args)
	case "home":
		b.handleHome(ctx, chatID, args)
	case "mode":
		b.handleMode(ctx, chatID, args)
	case "products":
		b.handleProducts(ctx, chatID)
	case "product":
		b.handleProduct(ctx, chatID, args)
	case "rmproduct":
		b.handleRmProduct(ctx, chatID, args)
	case "check":
		b.handleCheck(ctx, chatID, args)
	case "pause":
		b.handlePause(ctx, chatID)
	case "resume":
		b.handleResume(ctx, chatID)
	case cmdReset:
		b.handleReset(ctx, chatID)
	case "extend":
		b.handleExtend(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
