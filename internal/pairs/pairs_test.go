package pairs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/schedule"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noonUTC is inside the monitoring window for UTC-zoned locations.
var noonUTC = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func noonEngine() *schedule.Engine {
	return schedule.NewWithClock(func() time.Time { return noonUTC })
}

func testUser(id, chatID int64, location string, keywords ...string) model.User {
	return model.User{
		ID:         id,
		ChatID:     chatID,
		Active:     true,
		ExpiryDate: "2099-01-01",
		Location:   location,
		Keywords:   keywords,
	}
}

func TestCompileDeduplicatesPairs(t *testing.T) {
	alice := testUser(1, 100, "testville", "bike")
	bob := testUser(2, 200, "testville", "bike", "couch")

	plan := Compile([]model.User{alice, bob}, noonEngine(), noonUTC, discardLogger())

	want := []model.WorkItem{
		{
			Keyword:  "bike",
			Location: "testville",
			Subscribers: []model.Subscriber{
				{ChatID: 100},
				{ChatID: 200},
			},
		},
		{
			Keyword:  "couch",
			Location: "testville",
			Subscribers: []model.Subscriber{
				{ChatID: 200},
			},
		},
	}
	if diff := cmp.Diff(want, plan.Items); diff != "" {
		t.Errorf("Items mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileSkipsIneligibleUsers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.User)
	}{
		{
			name:   "deactivated subscription",
			mutate: func(u *model.User) { u.Active = false },
		},
		{
			name:   "expired yesterday",
			mutate: func(u *model.User) { u.ExpiryDate = "2025-06-09" },
		},
		{
			name:   "malformed expiry date",
			mutate: func(u *model.User) { u.ExpiryDate = "09/06/2025" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testUser(1, 100, "testville", "bike")
			tt.mutate(&u)

			plan := Compile([]model.User{u}, noonEngine(), noonUTC, discardLogger())
			if len(plan.Items) != 0 {
				t.Errorf("got %d items, want 0", len(plan.Items))
			}
			if len(plan.LocationUsers) != 0 {
				t.Errorf("got %d broadcast locations, want 0", len(plan.LocationUsers))
			}
		})
	}
}

func TestCompileKeepsSubscriptionExpiringToday(t *testing.T) {
	u := testUser(1, 100, "testville", "bike")
	u.ExpiryDate = "2025-06-10"

	plan := Compile([]model.User{u}, noonEngine(), noonUTC, discardLogger())
	if len(plan.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(plan.Items))
	}
}

func TestCompileLocationUsersLowercasedAndDeduplicated(t *testing.T) {
	alice := testUser(1, 100, "Melbourne", "bike")
	bob := testUser(2, 200, "melbourne", "couch")
	carol := testUser(3, 200, "MELBOURNE", "lamp") // same chat as bob

	plan := Compile([]model.User{alice, bob, carol}, noonEngine(), noonUTC, discardLogger())

	want := map[string][]int64{"melbourne": {100, 200}}
	if diff := cmp.Diff(want, plan.LocationUsers); diff != "" {
		t.Errorf("LocationUsers mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileActiveSubsetFollowsSchedule(t *testing.T) {
	// 23:00 UTC: a UTC-zoned location is paused while Melbourne (UTC+10)
	// is at 09:00 the next morning and active.
	lateUTC := time.Date(2025, time.June, 10, 23, 0, 0, 0, time.UTC)
	eng := schedule.NewWithClock(func() time.Time { return lateUTC })

	users := []model.User{
		testUser(1, 100, "melbourne", "bike"),
		testUser(2, 200, "testville", "couch"),
	}
	plan := Compile(users, eng, lateUTC, discardLogger())

	if len(plan.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(plan.Items))
	}
	if len(plan.Active) != 1 {
		t.Fatalf("got %d active items, want 1", len(plan.Active))
	}
	if plan.Active[0].Location != "melbourne" {
		t.Errorf("active item location = %q, want %q", plan.Active[0].Location, "melbourne")
	}
}

func TestWriteLog(t *testing.T) {
	users := []model.User{
		testUser(1, 100, "testville", "bike"),
		testUser(2, 200, "testville", "couch"),
	}
	plan := Compile(users, noonEngine(), noonUTC, discardLogger())

	path := filepath.Join(t.TempDir(), "pairs_log.txt")
	if err := plan.WriteLog(path); err != nil {
		t.Fatalf("WriteLog() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading pairs log: %v", err)
	}
	want := "bike - testville [ACTIVE] - Daytime hours in testville (local time: 12:00)\n" +
		"couch - testville [ACTIVE] - Daytime hours in testville (local time: 12:00)\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("pairs log mismatch (-want +got):\n%s", diff)
	}
}
