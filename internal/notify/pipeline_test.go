package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"marketwatch_bot/internal/classify"
	"marketwatch_bot/internal/geo"
	"marketwatch_bot/internal/model"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
}

type mockMessenger struct {
	mu        sync.Mutex
	sends     []sentMessage
	edits     []editedMessage
	failSends map[int64]bool
	failEdits int // fail this many edit calls before succeeding
	nextID    int
}

func (m *mockMessenger) Send(_ context.Context, chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSends[chatID] {
		return 0, fmt.Errorf("chat %d unreachable", chatID)
	}
	m.nextID++
	m.sends = append(m.sends, sentMessage{ChatID: chatID, Text: text})
	return 100 + m.nextID, nil
}

func (m *mockMessenger) Edit(_ context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEdits > 0 {
		m.failEdits--
		return fmt.Errorf("edit rejected")
	}
	m.edits = append(m.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

type mockDetail struct {
	html  string
	err   error
	calls int
}

func (m *mockDetail) Detail(context.Context, string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.html, nil
}

type mockGeocoder struct {
	address string
	err     error
}

func (m *mockGeocoder) ReverseGeocode(context.Context, geo.Point) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.address, nil
}

type mockChecker struct {
	results map[int64]classify.Result
	calls   int
}

func (m *mockChecker) Check(_ context.Context, chatID int64, _, _ string) classify.Result {
	m.calls++
	return m.results[chatID]
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func newTestPipeline(m Messenger, d DetailFetcher, g Geocoder, c Classifier, dumpDir string) *Pipeline {
	return NewPipeline(m, d, g, c, "https://www.facebook.com", dumpDir,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// mapFixturePoint matches the center coordinate in testdata/detail_map.html.
var mapFixturePoint = geo.Point{Lat: -37.8136, Lon: 144.9631}

var testListing = model.Listing{
	Link:  "/marketplace/item/123/",
	Price: "$500",
	Title: "Mountain Bike",
}

const testListingLink = "https://www.facebook.com/marketplace/item/123/"

func itemWithSubscribers(subs ...model.Subscriber) model.WorkItem {
	return model.WorkItem{Keyword: "bike", Location: "melbourne", Subscribers: subs}
}

func TestAnnounceTwoPhaseDelivery(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	geocoder := &mockGeocoder{address: "12 Example St, Richmond VIC"}
	checker := &mockChecker{results: map[int64]classify.Result{
		100: {ProductName: "mountain bike", GoodDeal: true},
	}}
	p := newTestPipeline(messenger, detail, geocoder, checker, "")

	// Subscriber sits exactly at the listing coordinate.
	sub := model.Subscriber{ChatID: 100, Lat: mapFixturePoint.Lat, Lon: mapFixturePoint.Lon}
	p.Announce(context.Background(), itemWithSubscribers(sub), testListing)

	wantSends := []sentMessage{
		{ChatID: 100, Text: "✅ Good Deal @ For $500\nLink: " + testListingLink},
	}
	if diff := cmp.Diff(wantSends, messenger.sends); diff != "" {
		t.Errorf("sends mismatch (-want +got):\n%s", diff)
	}

	wantEdits := []editedMessage{
		{ChatID: 100, MessageID: 101, Text: "✅ Good Deal @ 12 Example St, Richmond VIC (0 m) For $500\nLink: " + testListingLink},
	}
	if diff := cmp.Diff(wantEdits, messenger.edits); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}

	if detail.calls != 1 {
		t.Errorf("detail page fetched %d times, want 1", detail.calls)
	}
}

func TestAnnounceSubscriberOrderPreserved(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "somewhere"}, checker, "")

	item := itemWithSubscribers(
		model.Subscriber{ChatID: 100},
		model.Subscriber{ChatID: 200},
		model.Subscriber{ChatID: 300},
	)
	p.Announce(context.Background(), item, testListing)

	var sendOrder, editOrder []int64
	for _, s := range messenger.sends {
		sendOrder = append(sendOrder, s.ChatID)
	}
	for _, e := range messenger.edits {
		editOrder = append(editOrder, e.ChatID)
	}
	want := []int64{100, 200, 300}
	if diff := cmp.Diff(want, sendOrder); diff != "" {
		t.Errorf("send order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, editOrder); diff != "" {
		t.Errorf("edit order mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnounceExcludedWordSkipsClassification(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "somewhere"}, checker, "")

	item := itemWithSubscribers(
		model.Subscriber{ChatID: 100, ExcludedWords: []string{"BIKE"}},
		model.Subscriber{ChatID: 200, ExcludedWords: []string{"broken"}},
	)
	p.Announce(context.Background(), item, testListing)

	if checker.calls != 1 {
		t.Errorf("classifier called %d times, want 1 (excluded subscriber must not reach it)", checker.calls)
	}
	if len(messenger.sends) != 1 || messenger.sends[0].ChatID != 200 {
		t.Errorf("sends = %+v, want single send to chat 200", messenger.sends)
	}
}

func TestAnnounceModeGates(t *testing.T) {
	tests := []struct {
		name     string
		modes    model.Modes
		result   classify.Result
		notified bool
	}{
		{
			name:     "no modes passes everything",
			notified: true,
		},
		{
			name:     "only preferred blocks unmatched listing",
			modes:    model.Modes{OnlyPreferred: true},
			notified: false,
		},
		{
			name:     "only preferred passes preferred product",
			modes:    model.Modes{OnlyPreferred: true},
			result:   classify.Result{ProductName: "bike", Preferred: true},
			notified: true,
		},
		{
			name:     "near mode blocks plain listing",
			modes:    model.Modes{NearGoodDeals: true},
			result:   classify.Result{ProductName: "bike"},
			notified: false,
		},
		{
			name:     "near mode passes near deal",
			modes:    model.Modes{NearGoodDeals: true},
			result:   classify.Result{ProductName: "bike", NearGoodDeal: true},
			notified: true,
		},
		{
			name:     "near mode passes good deal",
			modes:    model.Modes{NearGoodDeals: true},
			result:   classify.Result{ProductName: "bike", GoodDeal: true},
			notified: true,
		},
		{
			name:     "good mode blocks near deal",
			modes:    model.Modes{GoodDeals: true},
			result:   classify.Result{ProductName: "bike", NearGoodDeal: true},
			notified: false,
		},
		{
			name:     "good mode passes good deal",
			modes:    model.Modes{GoodDeals: true},
			result:   classify.Result{ProductName: "bike", GoodDeal: true},
			notified: true,
		},
		{
			name:     "combined gates all apply",
			modes:    model.Modes{OnlyPreferred: true, GoodDeals: true},
			result:   classify.Result{ProductName: "bike", Preferred: true, NearGoodDeal: true},
			notified: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := &mockMessenger{}
			detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
			checker := &mockChecker{results: map[int64]classify.Result{100: tt.result}}
			p := newTestPipeline(messenger, detail, &mockGeocoder{address: "somewhere"}, checker, "")

			item := itemWithSubscribers(model.Subscriber{ChatID: 100, Modes: tt.modes})
			p.Announce(context.Background(), item, testListing)

			if got := len(messenger.sends) == 1; got != tt.notified {
				t.Errorf("notified = %v, want %v (sends %+v)", got, tt.notified, messenger.sends)
			}
		})
	}
}

func TestAnnounceNoEligibleSubscribersSkipsDetailFetch(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "somewhere"}, checker, "")

	item := itemWithSubscribers(
		model.Subscriber{ChatID: 100, Modes: model.Modes{GoodDeals: true}},
	)
	p.Announce(context.Background(), item, testListing)

	if detail.calls != 0 {
		t.Errorf("detail page fetched %d times, want 0", detail.calls)
	}
	if len(messenger.edits) != 0 {
		t.Errorf("got %d edits, want 0", len(messenger.edits))
	}
}

func TestAnnounceSendFailureDropsSubscriber(t *testing.T) {
	messenger := &mockMessenger{failSends: map[int64]bool{100: true}}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "somewhere"}, checker, "")

	item := itemWithSubscribers(
		model.Subscriber{ChatID: 100},
		model.Subscriber{ChatID: 200},
	)
	p.Announce(context.Background(), item, testListing)

	if len(messenger.sends) != 1 || messenger.sends[0].ChatID != 200 {
		t.Fatalf("sends = %+v, want single send to chat 200", messenger.sends)
	}
	if len(messenger.edits) != 1 || messenger.edits[0].ChatID != 200 {
		t.Errorf("edits = %+v, want single edit for chat 200", messenger.edits)
	}
}

func TestAnnounceMissingMapEditsWithUnknowns(t *testing.T) {
	dumpDir := filepath.Join(t.TempDir(), "dumps")
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_no_map.html")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "ignored"}, checker, dumpDir)

	p.Announce(context.Background(), itemWithSubscribers(model.Subscriber{ChatID: 100}), testListing)

	wantEdits := []editedMessage{
		{ChatID: 100, MessageID: 101, Text: "Unknown Address (Distance unknown) For $500\nLink: " + testListingLink},
	}
	if diff := cmp.Diff(wantEdits, messenger.edits); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}

	dumps, err := filepath.Glob(filepath.Join(dumpDir, "listing_debug_*.html"))
	if err != nil {
		t.Fatalf("globbing dumps: %v", err)
	}
	if len(dumps) != 1 {
		t.Errorf("got %d dump files, want 1", len(dumps))
	}
}

func TestAnnounceDetailFetchErrorDegrades(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{err: fmt.Errorf("render timeout")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "ignored"}, checker, "")

	p.Announce(context.Background(), itemWithSubscribers(model.Subscriber{ChatID: 100}), testListing)

	if len(messenger.edits) != 1 {
		t.Fatalf("got %d edits, want 1", len(messenger.edits))
	}
	want := "Unknown Address (Distance unknown) For $500\nLink: " + testListingLink
	if diff := cmp.Diff(want, messenger.edits[0].Text); diff != "" {
		t.Errorf("edit text mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnounceNoSubscriberCoordsHidesDistance(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "12 Example St, Richmond VIC"}, checker, "")

	// Subscriber never set a home coordinate.
	p.Announce(context.Background(), itemWithSubscribers(model.Subscriber{ChatID: 100}), testListing)

	if len(messenger.edits) != 1 {
		t.Fatalf("got %d edits, want 1", len(messenger.edits))
	}
	want := "12 Example St, Richmond VIC (Distance unknown) For $500\nLink: " + testListingLink
	if diff := cmp.Diff(want, messenger.edits[0].Text); diff != "" {
		t.Errorf("edit text mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnounceGeocodeErrorKeepsDistance(t *testing.T) {
	messenger := &mockMessenger{}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{}
	geocoder := &mockGeocoder{err: fmt.Errorf("rate limited")}
	p := newTestPipeline(messenger, detail, geocoder, checker, "")

	sub := model.Subscriber{ChatID: 100, Lat: mapFixturePoint.Lat, Lon: mapFixturePoint.Lon}
	p.Announce(context.Background(), itemWithSubscribers(sub), testListing)

	if len(messenger.edits) != 1 {
		t.Fatalf("got %d edits, want 1", len(messenger.edits))
	}
	want := "Unknown Address (0 m) For $500\nLink: " + testListingLink
	if diff := cmp.Diff(want, messenger.edits[0].Text); diff != "" {
		t.Errorf("edit text mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnounceEditFailureTriesFallback(t *testing.T) {
	messenger := &mockMessenger{failEdits: 1}
	detail := &mockDetail{html: loadFixture(t, "../../testdata/detail_map.html")}
	checker := &mockChecker{results: map[int64]classify.Result{
		100: {ProductName: "mountain bike", GoodDeal: true},
	}}
	p := newTestPipeline(messenger, detail, &mockGeocoder{address: "somewhere"}, checker, "")

	p.Announce(context.Background(), itemWithSubscribers(model.Subscriber{ChatID: 100}), testListing)

	wantEdits := []editedMessage{
		{ChatID: 100, MessageID: 101, Text: "✅ Good Deal @ Location update failed. For $500\nLink: " + testListingLink},
	}
	if diff := cmp.Diff(wantEdits, messenger.edits); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}
}
