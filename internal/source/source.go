// Package source fetches marketplace listings. Two implementations exist: a
// browser-driven source that renders search pages, and a feed source for
// marketplaces exposing search results over RSS.
package source

import (
	"context"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"

	"marketwatch_bot/internal/model"
)

// Source fetches search results and detail pages for one marketplace.
type Source interface {
	// Search returns the current listings for a keyword in a location, in
	// page order. Records may have empty fields; callers decide what to
	// skip.
	Search(ctx context.Context, keyword, location string) ([]model.Listing, error)
	// Detail returns the rendered detail page for a listing link.
	Detail(ctx context.Context, link string) (string, error)
}

// fillTemplate substitutes the {keyword}, {location}, {min} and {max}
// placeholders in a search URL template.
func fillTemplate(tpl, keyword, location string, minPrice, maxPrice int) string {
	r := strings.NewReplacer(
		"{keyword}", url.QueryEscape(keyword),
		"{location}", url.PathEscape(strings.ToLower(location)),
		"{min}", strconv.Itoa(minPrice),
		"{max}", strconv.Itoa(maxPrice),
	)
	return r.Replace(tpl)
}

// priceBounds returns the price-range request parameters, jittered on every
// call so repeated searches do not look identical.
func priceBounds() (int, int) {
	return 90 + rand.IntN(11), 990 + rand.IntN(11)
}

// AbsoluteLink resolves a possibly relative listing link against the
// marketplace base URL.
func AbsoluteLink(baseURL, link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(link, "/")
}
