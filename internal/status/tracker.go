// Package status tracks the last known monitoring state per location,
// announces transitions to subscribers and maintains the status snapshot
// file.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/schedule"
)

// Sender delivers broadcast messages to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
}

// Tracker owns the per-location status map. It is the only writer; a
// location's first observation is recorded silently, later flips of the
// active flag are broadcast to that location's subscribers.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]model.LocationStatus

	sender       Sender
	snapshotPath string
	log          *slog.Logger
	now          func() time.Time
}

// NewTracker returns an empty tracker writing its snapshot to snapshotPath.
func NewTracker(sender Sender, snapshotPath string, log *slog.Logger) *Tracker {
	return &Tracker{
		entries:      make(map[string]model.LocationStatus),
		sender:       sender,
		snapshotPath: snapshotPath,
		log:          log,
		now:          time.Now,
	}
}

type transition struct {
	location string
	status   schedule.Status
}

// Sync reconciles the recorded statuses with freshly computed ones, keyed by
// lowercased location. Transitions are broadcast to the chat IDs in
// locationUsers under the same key. The snapshot file is rewritten wholesale
// on every call.
func (t *Tracker) Sync(ctx context.Context, statuses map[string]schedule.Status, locationUsers map[string][]int64) {
	t.mu.Lock()
	var transitions []transition
	for loc, st := range statuses {
		entry, ok := t.entries[loc]
		if !ok {
			t.entries[loc] = statusEntry(st, t.now())
			continue
		}
		if entry.IsActive == st.Active {
			continue
		}
		transitions = append(transitions, transition{location: loc, status: st})
		t.entries[loc] = statusEntry(st, t.now())
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	for _, tr := range transitions {
		t.log.Info("monitoring status changed",
			"location", tr.location, "active", tr.status.Active, "reason", tr.status.Reason)
		msg := transitionMessage(tr.location, tr.status)
		for _, chatID := range locationUsers[tr.location] {
			if _, err := t.sender.Send(ctx, chatID, msg); err != nil {
				t.log.Error("failed to send status broadcast",
					"location", tr.location, "chat_id", chatID, "error", err)
			}
		}
	}

	if err := writeSnapshot(t.snapshotPath, snap); err != nil {
		t.log.Error("failed to write status snapshot", "path", t.snapshotPath, "error", err)
	}
}

func statusEntry(st schedule.Status, now time.Time) model.LocationStatus {
	return model.LocationStatus{
		IsActive:    st.Active,
		Reason:      st.Reason,
		LastUpdated: now,
		NextChange:  st.NextChange,
		NextStatus:  st.NextStatus,
	}
}

func transitionMessage(location string, st schedule.Status) string {
	next := "Unknown"
	if !st.NextChange.IsZero() {
		next = st.NextChange.Format("15:04")
	}
	title := cases.Title(language.English).String(location)
	if st.Active {
		return fmt.Sprintf("📢 Monitoring has been resumed for %s.\nReason: %s\nWill stop at: %s",
			title, st.Reason, next)
	}
	return fmt.Sprintf("🛑 Monitoring has been paused for %s.\nReason: %s\nWill resume at: %s",
		title, st.Reason, next)
}

type snapshotEntry struct {
	IsActive    bool   `json:"is_active"`
	LastUpdated string `json:"last_updated"`
	NextChange  string `json:"next_change"`
	NextStatus  string `json:"next_status"`
}

type snapshot struct {
	Locations map[string]snapshotEntry `json:"locations"`
	UpdatedAt string                   `json:"updated_at"`
}

func (t *Tracker) snapshotLocked() snapshot {
	snap := snapshot{
		Locations: make(map[string]snapshotEntry, len(t.entries)),
		UpdatedAt: t.now().Format(time.RFC3339),
	}
	for loc, entry := range t.entries {
		snap.Locations[loc] = snapshotEntry{
			IsActive:    entry.IsActive,
			LastUpdated: entry.LastUpdated.Format(time.RFC3339),
			NextChange:  entry.NextChange.Format(time.RFC3339),
			NextStatus:  entry.NextStatus,
		}
	}
	return snap
}

func writeSnapshot(path string, snap snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
