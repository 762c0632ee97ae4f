package geo

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mockHTTP struct {
	resp    *http.Response
	err     error
	lastReq *http.Request
}

func (m *mockHTTP) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestReverseGeocode(t *testing.T) {
	mock := &mockHTTP{
		resp: jsonResponse(200, `{"display_name":"1 Example St, Melbourne VIC 3000, Australia"}`),
	}
	client := NewClient("https://geo.test/", mock)

	got, err := client.ReverseGeocode(context.Background(), Point{Lat: -37.8136, Lon: 144.9631})
	if err != nil {
		t.Fatalf("ReverseGeocode() error: %v", err)
	}
	if diff := cmp.Diff("1 Example St, Melbourne VIC 3000, Australia", got); diff != "" {
		t.Errorf("address mismatch (-want +got):\n%s", diff)
	}

	wantURL := "https://geo.test/reverse?format=jsonv2&lat=-37.8136&lon=144.9631"
	if got := mock.lastReq.URL.String(); got != wantURL {
		t.Errorf("request URL = %q, want %q", got, wantURL)
	}
	if ua := mock.lastReq.Header.Get("User-Agent"); ua == "" {
		t.Error("request has no User-Agent header")
	}
}

func TestReverseGeocodeErrors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockHTTP
	}{
		{
			name: "transport error",
			mock: &mockHTTP{err: fmt.Errorf("connection refused")},
		},
		{
			name: "non-200 status",
			mock: &mockHTTP{resp: jsonResponse(429, `{"error":"rate limited"}`)},
		},
		{
			name: "invalid json",
			mock: &mockHTTP{resp: jsonResponse(200, `<html>not json</html>`)},
		},
		{
			name: "missing display name",
			mock: &mockHTTP{resp: jsonResponse(200, `{"error":"Unable to geocode"}`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient("https://geo.test", tt.mock)
			if _, err := client.ReverseGeocode(context.Background(), Point{}); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestGeocode(t *testing.T) {
	mock := &mockHTTP{
		resp: jsonResponse(200, `[{"lat":"-37.8183","lon":"144.9671","display_name":"Richmond VIC, Australia"}]`),
	}
	client := NewClient("https://geo.test", mock)

	got, err := client.Geocode(context.Background(), "richmond vic")
	if err != nil {
		t.Fatalf("Geocode() error: %v", err)
	}
	if diff := cmp.Diff(Point{Lat: -37.8183, Lon: 144.9671}, got); diff != "" {
		t.Errorf("point mismatch (-want +got):\n%s", diff)
	}

	wantURL := "https://geo.test/search?format=jsonv2&q=richmond+vic&limit=1"
	if got := mock.lastReq.URL.String(); got != wantURL {
		t.Errorf("request URL = %q, want %q", got, wantURL)
	}
}

func TestGeocodeErrors(t *testing.T) {
	tests := []struct {
		name string
		mock *mockHTTP
	}{
		{
			name: "transport error",
			mock: &mockHTTP{err: fmt.Errorf("connection refused")},
		},
		{
			name: "non-200 status",
			mock: &mockHTTP{resp: jsonResponse(500, `{"error":"boom"}`)},
		},
		{
			name: "no results",
			mock: &mockHTTP{resp: jsonResponse(200, `[]`)},
		},
		{
			name: "non-numeric coordinates",
			mock: &mockHTTP{resp: jsonResponse(200, `[{"lat":"abc","lon":"144.9"}]`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient("https://geo.test", tt.mock)
			if _, err := client.Geocode(context.Background(), "nowhere"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestPointIsZero(t *testing.T) {
	if !(Point{}).IsZero() {
		t.Error("zero point should report IsZero")
	}
	if (Point{Lat: -37.8, Lon: 144.9}).IsZero() {
		t.Error("set point should not report IsZero")
	}
}

func TestDistanceKm(t *testing.T) {
	melbourne := Point{Lat: -37.8136, Lon: 144.9631}
	sydney := Point{Lat: -33.8688, Lon: 151.2093}

	got := DistanceKm(melbourne, sydney)
	if math.Abs(got-713.4) > 5 {
		t.Errorf("DistanceKm(melbourne, sydney) = %.1f, want ~713.4", got)
	}

	if got := DistanceKm(melbourne, melbourne); got != 0 {
		t.Errorf("DistanceKm(p, p) = %v, want 0", got)
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		name string
		km   float64
		want string
	}{
		{name: "kilometers", km: 3.42, want: "3.4 km"},
		{name: "sub-kilometer in meters", km: 0.85, want: "850 m"},
		{name: "zero", km: 0, want: "0 m"},
		{name: "long distance", km: 713.44, want: "713.4 km"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatDistance(tt.km)); diff != "" {
				t.Errorf("FormatDistance(%v) mismatch (-want +got):\n%s", tt.km, diff)
			}
		})
	}
}
