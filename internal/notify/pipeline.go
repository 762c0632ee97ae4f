package notify

import (
	"context"
	"log/slog"
	"strings"

	"marketwatch_bot/internal/classify"
	"marketwatch_bot/internal/geo"
	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/source"
)

// Messenger delivers and edits chat messages.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

// DetailFetcher loads a listing's detail page.
type DetailFetcher interface {
	Detail(ctx context.Context, link string) (string, error)
}

// Geocoder resolves a coordinate to a display address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pt geo.Point) (string, error)
}

// Classifier checks a listing against a user's price book.
type Classifier interface {
	Check(ctx context.Context, chatID int64, title, price string) classify.Result
}

// Pipeline announces new listings. Eligible subscribers get a provisional
// message immediately; one detail fetch per listing then enriches every sent
// message with address and distance via in-place edits.
type Pipeline struct {
	messenger Messenger
	detail    DetailFetcher
	geocoder  Geocoder
	checker   Classifier
	baseURL   string
	dumpDir   string
	log       *slog.Logger
}

// NewPipeline wires the notification pipeline. dumpDir may be empty to
// disable detail-page dumps.
func NewPipeline(messenger Messenger, detail DetailFetcher, geocoder Geocoder, checker Classifier, baseURL, dumpDir string, log *slog.Logger) *Pipeline {
	return &Pipeline{
		messenger: messenger,
		detail:    detail,
		geocoder:  geocoder,
		checker:   checker,
		baseURL:   baseURL,
		dumpDir:   dumpDir,
		log:       log,
	}
}

// pendingEdit tracks one provisional message awaiting enrichment.
type pendingEdit struct {
	chatID    int64
	messageID int
	label     string
	from      geo.Point
}

// Announce notifies every eligible subscriber of the work item about a newly
// seen listing. Failures are per-subscriber; one failed send never blocks
// the rest.
func (p *Pipeline) Announce(ctx context.Context, item model.WorkItem, listing model.Listing) {
	link := source.AbsoluteLink(p.baseURL, listing.Link)

	var pending []pendingEdit
	for _, sub := range item.Subscribers {
		if word, ok := excludedWord(sub.ExcludedWords, listing.Title); ok {
			p.log.Debug("listing excluded for subscriber",
				"chat_id", sub.ChatID, "word", word, "title", listing.Title)
			continue
		}
		res := p.checker.Check(ctx, sub.ChatID, listing.Title, listing.Price)
		if !passesModes(sub.Modes, res) {
			p.log.Debug("listing filtered by modes",
				"chat_id", sub.ChatID, "product", res.ProductName, "title", listing.Title)
			continue
		}

		label := DealLabel(res)
		msgID, err := p.messenger.Send(ctx, sub.ChatID, ProvisionalMessage(label, listing.Price, link))
		if err != nil {
			p.log.Error("failed to send listing notification",
				"chat_id", sub.ChatID, "link", link, "error", err)
			continue
		}
		pending = append(pending, pendingEdit{
			chatID:    sub.ChatID,
			messageID: msgID,
			label:     label,
			from:      geo.Point{Lat: sub.Lat, Lon: sub.Lon},
		})
	}
	if len(pending) == 0 {
		return
	}

	address, coord := p.locateListing(ctx, listing)
	for _, pe := range pending {
		distance := distanceUnknown
		if coord != nil && !pe.from.IsZero() {
			distance = geo.FormatDistance(geo.DistanceKm(pe.from, *coord))
		}
		text := EnrichedMessage(pe.label, address, distance, listing.Price, link)
		if err := p.messenger.Edit(ctx, pe.chatID, pe.messageID, text); err != nil {
			p.log.Error("failed to edit notification",
				"chat_id", pe.chatID, "message_id", pe.messageID, "error", err)
			fallback := FallbackMessage(pe.label, listing.Price, link)
			if err := p.messenger.Edit(ctx, pe.chatID, pe.messageID, fallback); err != nil {
				p.log.Error("fallback edit failed",
					"chat_id", pe.chatID, "message_id", pe.messageID, "error", err)
			}
		}
	}
}

// locateListing fetches the detail page once and resolves the listing's
// address and coordinate. Every failure degrades to the unknown defaults.
func (p *Pipeline) locateListing(ctx context.Context, listing model.Listing) (string, *geo.Point) {
	html, err := p.detail.Detail(ctx, listing.Link)
	if err != nil {
		p.log.Error("failed to fetch detail page", "link", listing.Link, "error", err)
		return addressUnknown, nil
	}

	pt, ok := source.ExtractMapPoint(html)
	if !ok {
		p.log.Warn("no map coordinate on detail page", "link", listing.Link)
		if p.dumpDir != "" {
			path, err := source.DumpPage(p.dumpDir, html)
			if err != nil {
				p.log.Error("failed to dump detail page", "link", listing.Link, "error", err)
			} else {
				p.log.Debug("dumped unmatched detail page", "path", path)
			}
		}
		return addressUnknown, nil
	}

	address, err := p.geocoder.ReverseGeocode(ctx, pt)
	if err != nil {
		p.log.Error("reverse geocode failed", "link", listing.Link, "error", err)
		address = addressUnknown
	}
	return address, &pt
}

func excludedWord(words []string, title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}

// passesModes applies the subscriber's notification gates in order: only
// preferred products, then near-or-good deals, then good deals only.
func passesModes(m model.Modes, res classify.Result) bool {
	if m.OnlyPreferred && !res.Preferred {
		return false
	}
	if m.NearGoodDeals && !(res.GoodDeal || res.NearGoodDeal) {
		return false
	}
	if m.GoodDeals && !res.GoodDeal {
		return false
	}
	return true
}
