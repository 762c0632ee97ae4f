package source

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"marketwatch_bot/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	lastReq    *http.Request
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFeedSearch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/search_feed.xml")

	tests := []struct {
		name      string
		transport *mockTransport
		want      []model.Listing
		wantErr   bool
	}{
		{
			name:      "successful fetch",
			transport: &mockTransport{body: xml, statusCode: 200},
			want: []model.Listing{
				{Link: "https://market.test/listing/1001", Price: "$500", Title: "Mountain Bike - $500"},
				{Link: "https://market.test/listing/1002", Price: "$350", Title: "Road bike frame"},
				{Link: "https://market.test/listing/1003", Price: "", Title: "Kids bike, free to good home"},
			},
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   true,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFeed("https://market.test/{location}/rss?q={keyword}", tt.transport, discardLogger())
			got, err := f.Search(context.Background(), "bike", "melbourne")

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("listings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFeedSearchBuildsRequestURL(t *testing.T) {
	xml := loadFixture(t, "../../testdata/search_feed.xml")
	transport := &mockTransport{body: xml, statusCode: 200}
	f := NewFeed("https://market.test/{location}/rss?q={keyword}&min={min}&max={max}", transport, discardLogger())

	if _, err := f.Search(context.Background(), "mountain bike", "Melbourne"); err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	u := transport.lastReq.URL
	if u.Path != "/melbourne/rss" {
		t.Errorf("request path = %q, want %q", u.Path, "/melbourne/rss")
	}
	q := u.Query()
	if got := q.Get("q"); got != "mountain bike" {
		t.Errorf("keyword param = %q, want %q", got, "mountain bike")
	}
	min, max := q.Get("min"), q.Get("max")
	if min == "" || max == "" {
		t.Fatalf("price bounds missing from query: %q", u.RawQuery)
	}
	if transport.lastReq.Header.Get("User-Agent") == "" {
		t.Error("request has no User-Agent header")
	}
}

func TestFeedDetail(t *testing.T) {
	html := loadFixture(t, "../../testdata/detail_map.html")
	transport := &mockTransport{body: html, statusCode: 200}
	f := NewFeed("https://market.test/rss", transport, discardLogger())

	got, err := f.Detail(context.Background(), "https://market.test/listing/1001")
	if err != nil {
		t.Fatalf("Detail() error: %v", err)
	}
	if diff := cmp.Diff(html, got); diff != "" {
		t.Errorf("detail body mismatch (-want +got):\n%s", diff)
	}

	transport.statusCode = 500
	if _, err := f.Detail(context.Background(), "https://market.test/listing/1001"); err == nil {
		t.Fatal("expected error on 500 status, got nil")
	}
}

func TestPriceBounds(t *testing.T) {
	for range 100 {
		min, max := priceBounds()
		if min < 90 || min > 100 {
			t.Fatalf("min price %d outside [90, 100]", min)
		}
		if max < 990 || max > 1000 {
			t.Fatalf("max price %d outside [990, 1000]", max)
		}
	}
}

func TestAbsoluteLink(t *testing.T) {
	tests := []struct {
		name string
		base string
		link string
		want string
	}{
		{
			name: "relative link",
			base: "https://www.facebook.com",
			link: "/marketplace/item/123/",
			want: "https://www.facebook.com/marketplace/item/123/",
		},
		{
			name: "absolute link untouched",
			base: "https://www.facebook.com",
			link: "https://market.test/listing/1001",
			want: "https://market.test/listing/1001",
		},
		{
			name: "trailing slash on base",
			base: "https://market.test/",
			link: "listing/1001",
			want: "https://market.test/listing/1001",
		},
		{
			name: "empty link",
			base: "https://market.test",
			link: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AbsoluteLink(tt.base, tt.link)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("AbsoluteLink() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
