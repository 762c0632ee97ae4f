package bot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketwatch_bot/internal/model"
)

// New registrations get a week to try the service.
const trialDays = 7

const expiryLayout = "2006-01-02"

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	u, err := b.store.GetUserByChat(ctx, chatID)
	switch {
	case err == nil:
		b.reply(chatID, "You are already registered.\n\n"+FormatStatus(u, b.engine.Evaluate(u.Location)))
		return
	case !errors.Is(err, sql.ErrNoRows):
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	expiry := time.Now().UTC().AddDate(0, 0, trialDays).Format(expiryLayout)
	user := &model.User{ChatID: chatID, Active: true, ExpiryDate: expiry}
	if err := b.store.CreateUser(ctx, user); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to register: %v", err))
		return
	}
	b.reply(chatID, FormatWelcome(expiry))
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, FormatHelp())
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	b.reply(chatID, FormatStatus(u, b.engine.Evaluate(u.Location)))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	b.reply(chatID, FormatWatchList(u))
}

func (b *Bot) handleWatch(ctx context.Context, chatID int64, args string) {
	term, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /watch <term>")
		return
	}
	term = strings.ToLower(term)

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.AddKeyword(ctx, u.ID, term); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	if u.Location == "" {
		b.reply(chatID, fmt.Sprintf("Now watching %q. Set a city with /location to start monitoring.", term))
		return
	}
	b.reply(chatID, fmt.Sprintf("Now watching %q in %s.", term, u.Location))
}

func (b *Bot) handleUnwatch(ctx context.Context, chatID int64, args string) {
	term, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /unwatch <term>")
		return
	}
	term = strings.ToLower(term)

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.RemoveKeyword(ctx, u.ID, term); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Stopped watching %q.", term))
}

func (b *Bot) handleExclude(ctx context.Context, chatID int64, args string) {
	word, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /exclude <word>")
		return
	}
	word = strings.ToLower(word)

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.AddExcludedWord(ctx, u.ID, word); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Listings with %q in the title will be hidden.", word))
}

func (b *Bot) handleRmExclude(ctx context.Context, chatID int64, args string) {
	word, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmexclude <word>")
		return
	}
	word = strings.ToLower(word)

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.RemoveExcludedWord(ctx, u.ID, word); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("%q is no longer excluded.", word))
}

func (b *Bot) handleLocation(ctx context.Context, chatID int64, args string) {
	city, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /location <city>")
		return
	}
	city = strings.ToLower(city)

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	// Home coordinates are managed separately via /home.
	if err := b.store.UpdateUserLocation(ctx, u.ID, city, u.Lat, u.Lon); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	st := b.engine.Evaluate(city)
	state := "paused right now"
	if st.Active {
		state = "active right now"
	}
	msg := fmt.Sprintf("Location set to %s. Monitoring there is %s.", city, state)
	if u.Lat == 0 && u.Lon == 0 {
		msg += "\nSet /home <address> to see listing distances."
	}
	b.reply(chatID, msg)
}

func (b *Bot) handleHome(ctx context.Context, chatID int64, args string) {
	query, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /home <address>")
		return
	}

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}

	pt, err := b.geocoder.Geocode(ctx, query)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Could not find that address: %v", err))
		return
	}
	if err := b.store.UpdateUserLocation(ctx, u.ID, u.Location, pt.Lat, pt.Lon); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Home set to %.4f, %.4f. Listing distances are measured from there.", pt.Lat, pt.Lon))
}

func (b *Bot) handleMode(ctx context.Context, chatID int64, args string) {
	mode, on, err := ParseModeArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}

	modes := u.Modes
	switch mode {
	case ModePreferred:
		modes.OnlyPreferred = on
	case ModeNear:
		modes.NearGoodDeals = on
	case ModeGood:
		modes.GoodDeals = on
	}
	if err := b.store.UpdateUserModes(ctx, u.ID, modes); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Modes updated: "+formatModes(modes))
}

func (b *Bot) handleProducts(ctx context.Context, chatID int64) {
	if _, err := b.store.GetUserByChat(ctx, chatID); err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	products, err := b.store.ListProducts(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatProducts(products))
}

func (b *Bot) handleProduct(ctx context.Context, chatID int64, args string) {
	pa, err := ParseProductArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}

	p := &model.Product{Name: pa.Name, Preferred: pa.Preferred, GoodPrice: pa.Price}
	if err := b.store.AddProduct(ctx, u.ID, p); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	suffix := ""
	if p.Preferred {
		suffix = " (preferred)"
	}
	b.reply(chatID, fmt.Sprintf("Saved %q: good at $%.2f%s.", p.Name, p.GoodPrice, suffix))
}

func (b *Bot) handleRmProduct(ctx context.Context, chatID int64, args string) {
	name, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmproduct <name>")
		return
	}

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.RemoveProduct(ctx, u.ID, name); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Removed %q from your price book.", name))
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64, args string) {
	term, err := ParseTermArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /check <term>")
		return
	}
	term = strings.ToLower(term)

	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if u.Location == "" {
		b.reply(chatID, "Set a city with /location first.")
		return
	}

	listings, err := b.source.Search(ctx, term, u.Location)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Search failed: %v", err))
		return
	}
	b.reply(chatID, FormatListings(term, u.Location, b.cfg.BaseURL, listings))
}

func (b *Bot) handlePause(ctx context.Context, chatID int64) {
	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.SetUserActive(ctx, u.ID, false); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, "Notifications paused. Use /resume to start again.")
}

func (b *Bot) handleResume(ctx context.Context, chatID int64) {
	u, err := b.store.GetUserByChat(ctx, chatID)
	if err != nil {
		b.replyNotRegistered(chatID, err)
		return
	}
	if err := b.store.SetUserActive(ctx, u.ID, true); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	// ISO dates compare lexicographically.
	if u.ExpiryDate < time.Now().UTC().Format(expiryLayout) {
		b.reply(chatID, fmt.Sprintf("Notifications resumed, but your subscription expired on %s.", u.ExpiryDate))
		return
	}
	b.reply(chatID, "Notifications resumed.")
}

func (b *Bot) handleExtend(ctx context.Context, chatID int64, args string) {
	if !b.cfg.IsAdmin(chatID) {
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
		return
	}

	targetChat, date, err := ParseExtendArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	target, err := b.store.GetUserByChat(ctx, targetChat)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("No user registered for chat %d.", targetChat))
		return
	}
	if err := b.store.UpdateUserExpiry(ctx, target.ID, date); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Extended chat %d until %s.", targetChat, date))
	b.SendMessage(targetChat, fmt.Sprintf("Your subscription has been extended until %s.", date))
}

func (b *Bot) replyNotRegistered(chatID int64, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		b.reply(chatID, "You are not registered yet. Use /start to begin.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Error: %v", err))
}
