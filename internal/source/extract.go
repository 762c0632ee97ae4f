package source

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketwatch_bot/internal/geo"
)

// styleURLRe pulls the image URL out of an inline background-image style.
var styleURLRe = regexp.MustCompile(`url\("([^"]+)"\)`)

// mapExtractors are tried in order; the first to yield a coordinate wins.
var mapExtractors = []func(*goquery.Document) (geo.Point, bool){
	extractStaticMapStyle,
	extractAltMapDiv,
}

// ExtractMapPoint finds the listing coordinate embedded in a detail page's
// static map image. Returns false when no strategy matches.
func ExtractMapPoint(html string) (geo.Point, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return geo.Point{}, false
	}
	for _, extract := range mapExtractors {
		if pt, ok := extract(doc); ok {
			return pt, true
		}
	}
	return geo.Point{}, false
}

// extractStaticMapStyle matches any element whose background-image style
// references the static map renderer.
func extractStaticMapStyle(doc *goquery.Document) (geo.Point, bool) {
	var pt geo.Point
	var found bool
	doc.Find(mapImageDiv).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style := s.AttrOr("style", "")
		if !strings.Contains(style, "static_map") {
			return true
		}
		if p, ok := pointFromStyle(style); ok {
			pt, found = p, true
			return false
		}
		return true
	})
	return pt, found
}

// extractAltMapDiv handles the alternate layout where the map div carries a
// stable class and the image URL no longer mentions the renderer.
func extractAltMapDiv(doc *goquery.Document) (geo.Point, bool) {
	var pt geo.Point
	var found bool
	doc.Find(mapImageAltDiv).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style := s.AttrOr("style", "")
		if !strings.Contains(style, "background-image") {
			return true
		}
		if p, ok := pointFromStyle(style); ok {
			pt, found = p, true
			return false
		}
		return true
	})
	return pt, found
}

func pointFromStyle(style string) (geo.Point, bool) {
	m := styleURLRe.FindStringSubmatch(style)
	if m == nil {
		return geo.Point{}, false
	}
	return pointFromMapURL(m[1])
}

// pointFromMapURL parses the center=lat,lon query parameter of a static map
// URL. The comma is usually percent-encoded.
func pointFromMapURL(raw string) (geo.Point, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return geo.Point{}, false
	}
	latStr, lonStr, ok := strings.Cut(u.Query().Get("center"), ",")
	if !ok {
		return geo.Point{}, false
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lon: lon}, true
}

// DumpPage saves a detail page under dir so pages that defeat every map
// extractor can be inspected offline. Returns the written path.
func DumpPage(dir, html string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}
	name := fmt.Sprintf("listing_debug_%d_%04d.html", time.Now().Unix(), rand.IntN(10000))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("writing dump: %w", err)
	}
	return path, nil
}
