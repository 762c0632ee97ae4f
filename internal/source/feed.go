package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"

	"marketwatch_bot/internal/model"
)

// maxFeedSize limits feed and detail page bodies to 5MB.
const maxFeedSize = 5 * 1024 * 1024

const feedUserAgent = "marketwatch-bot/1.0"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// itemPriceRe matches a currency-prefixed amount in feed item text, e.g.
// "$500" in "Mountain bike - $500 (Richmond)".
var itemPriceRe = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?`)

// Feed is a listing source for marketplaces that expose search results as an
// RSS feed.
type Feed struct {
	client  HTTPClient
	feedURL string
	log     *slog.Logger
}

// NewFeed creates a feed-backed source. feedURL is a template with
// {keyword}, {location}, {min} and {max} placeholders. If client is nil, a
// default client with a 30-second timeout is used.
func NewFeed(feedURL string, client HTTPClient, log *slog.Logger) *Feed {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Feed{client: client, feedURL: feedURL, log: log}
}

// Search downloads and parses the search feed for a keyword in a location.
func (f *Feed) Search(ctx context.Context, keyword, location string) ([]model.Listing, error) {
	minPrice, maxPrice := priceBounds()
	target := fillTemplate(f.feedURL, keyword, location, minPrice, maxPrice)

	body, err := f.get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetching search feed for %q in %q: %w", keyword, location, err)
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parsing search feed for %q in %q: %w", keyword, location, err)
	}

	listings := make([]model.Listing, 0, len(feed.Items))
	for _, item := range feed.Items {
		listings = append(listings, model.Listing{
			Link:  item.Link,
			Price: itemPrice(item),
			Title: item.Title,
		})
	}
	f.log.Debug("fetched search feed",
		"keyword", keyword, "location", location, "listings", len(listings))
	return listings, nil
}

// Detail fetches a listing's detail page over plain HTTP.
func (f *Feed) Detail(ctx context.Context, link string) (string, error) {
	body, err := f.get(ctx, link)
	if err != nil {
		return "", fmt.Errorf("fetching detail page %s: %w", link, err)
	}
	return body, nil
}

func (f *Feed) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// itemPrice extracts the listing price from a feed item. Feeds embed the
// price in the title or description rather than a dedicated field.
func itemPrice(item *gofeed.Item) string {
	if m := itemPriceRe.FindString(item.Title); m != "" {
		return m
	}
	return itemPriceRe.FindString(item.Description)
}
