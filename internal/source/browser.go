package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"marketwatch_bot/internal/model"
)

// Browser renders marketplace pages in headless Chrome. Each call runs in a
// fresh browser context so a wedged page cannot poison later fetches.
type Browser struct {
	searchURL string
	baseURL   string
	headless  bool
	navDelay  time.Duration
	log       *slog.Logger
}

// NewBrowser creates a browser-driven source. searchURL is a template with
// {keyword}, {location}, {min} and {max} placeholders.
func NewBrowser(searchURL, baseURL string, headless bool, log *slog.Logger) *Browser {
	return &Browser{
		searchURL: searchURL,
		baseURL:   baseURL,
		headless:  headless,
		navDelay:  2 * time.Second,
		log:       log,
	}
}

// rawListing is the shape produced by extractListingsJS.
type rawListing struct {
	Link  string `json:"link"`
	Price string `json:"price"`
	Title string `json:"title"`
}

// Search renders the search page and extracts the visible listing tiles.
func (b *Browser) Search(ctx context.Context, keyword, location string) ([]model.Listing, error) {
	minPrice, maxPrice := priceBounds()
	target := fillTemplate(b.searchURL, keyword, location, minPrice, maxPrice)

	browserCtx, cancel := b.newBrowserContext(ctx, 90*time.Second)
	defer cancel()

	// The marketplace lazy-loads tiles; a settle delay plus a reload gets
	// a stable first page.
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(target),
		chromedp.Sleep(b.navDelay),
		chromedp.Reload(),
		chromedp.WaitVisible(listingTile, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("loading search page for %q in %q: %w", keyword, location, err)
	}

	var raw []rawListing
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(extractListingsJS, &raw)); err != nil {
		return nil, fmt.Errorf("extracting listings for %q in %q: %w", keyword, location, err)
	}

	listings := make([]model.Listing, 0, len(raw))
	for _, r := range raw {
		listings = append(listings, model.Listing{Link: r.Link, Price: r.Price, Title: r.Title})
	}
	b.log.Debug("scraped search page",
		"keyword", keyword, "location", location, "listings", len(listings))
	return listings, nil
}

// Detail renders a listing's detail page and returns its HTML.
func (b *Browser) Detail(ctx context.Context, link string) (string, error) {
	target := AbsoluteLink(b.baseURL, link)

	browserCtx, cancel := b.newBrowserContext(ctx, 60*time.Second)
	defer cancel()

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(b.navDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("loading detail page %s: %w", target, err)
	}
	return html, nil
}

func (b *Browser) newBrowserContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-gpu", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)

	cancel := func() {
		timeoutCancel()
		browserCancel()
		allocCancel()
	}
	return browserCtx, cancel
}
