// Package geo provides forward and reverse geocoding over a Nominatim-style
// HTTP API and great-circle distance helpers.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// maxBodySize limits geocoder response bodies to 1MB.
	maxBodySize = 1 << 20

	userAgent = "marketwatch-bot/1.0"

	earthRadiusKm = 6371.0
)

// HTTPClient abstracts the HTTP client for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// IsZero reports whether the point is unset. The zero value is treated as
// "no coordinate".
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// Client talks to the geocoding API.
type Client struct {
	client  HTTPClient
	baseURL string
}

// NewClient creates a geocoding client for the given base URL. If client is
// nil, a default client with a 15-second timeout is used.
func NewClient(baseURL string, client HTTPClient) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// ReverseGeocode resolves a coordinate to a display address.
func (c *Client) ReverseGeocode(ctx context.Context, pt Point) (string, error) {
	u := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		c.baseURL, formatCoord(pt.Lat), formatCoord(pt.Lon))
	body, err := c.get(ctx, u)
	if err != nil {
		return "", err
	}

	var payload struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decoding geocoder response: %w", err)
	}
	if payload.DisplayName == "" {
		return "", fmt.Errorf("geocoder response has no display name")
	}
	return payload.DisplayName, nil
}

// Geocode resolves a free-text place query to a coordinate. The first search
// result wins.
func (c *Client) Geocode(ctx context.Context, query string) (Point, error) {
	u := fmt.Sprintf("%s/search?format=jsonv2&q=%s&limit=1", c.baseURL, url.QueryEscape(query))
	body, err := c.get(ctx, u)
	if err != nil {
		return Point{}, err
	}

	// Nominatim returns coordinates as strings.
	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return Point{}, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		return Point{}, fmt.Errorf("no geocoder results for %q", query)
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parsing latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parsing longitude: %w", err)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from geocoder", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading geocoder response: %w", err)
	}
	return body, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DistanceKm returns the haversine distance between two points in kilometers.
func DistanceKm(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders a distance in kilometers for notifications. Values
// under one kilometer are shown in meters.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%.0f m", km*1000)
	}
	return fmt.Sprintf("%.1f km", km)
}
