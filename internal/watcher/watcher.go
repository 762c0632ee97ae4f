// Package watcher runs the polling loop: each cycle compiles the
// subscription plan, reconciles monitoring statuses, fans pollers out over
// the active work items and hands new listings to the notification
// pipeline.
package watcher

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/pairs"
	"marketwatch_bot/internal/schedule"
	"marketwatch_bot/internal/status"
)

// Jittered delays between cycles. Idle cycles (every location paused) back
// off much further.
const (
	activeDelayMin = 15 * time.Second
	activeDelayMax = 25 * time.Second
	idleDelayMin   = 3 * time.Minute
	idleDelayMax   = 5 * time.Minute
)

// UserLister loads the current users; called fresh on every cycle so
// subscription changes apply without a restart.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Searcher fetches the current listings for a (keyword, location) pair.
type Searcher interface {
	Search(ctx context.Context, keyword, location string) ([]model.Listing, error)
}

// Announcer pushes one new listing to a work item's subscribers.
type Announcer interface {
	Announce(ctx context.Context, item model.WorkItem, listing model.Listing)
}

// Watcher is the marketplace polling loop.
type Watcher struct {
	store     UserLister
	source    Searcher
	announcer Announcer
	tracker   *status.Tracker
	engine    *schedule.Engine
	log       *slog.Logger

	pairsLogPath string

	seen *SeenSet

	mu     sync.Mutex
	seeded map[model.PairKey]bool

	activeDelayMin time.Duration
	activeDelayMax time.Duration
	idleDelayMin   time.Duration
	idleDelayMax   time.Duration
}

// New creates a Watcher.
func New(store UserLister, source Searcher, announcer Announcer, tracker *status.Tracker, engine *schedule.Engine, pairsLogPath string, log *slog.Logger) *Watcher {
	return &Watcher{
		store:          store,
		source:         source,
		announcer:      announcer,
		tracker:        tracker,
		engine:         engine,
		log:            log,
		pairsLogPath:   pairsLogPath,
		seen:           NewSeenSet(),
		seeded:         make(map[model.PairKey]bool),
		activeDelayMin: activeDelayMin,
		activeDelayMax: activeDelayMax,
		idleDelayMin:   idleDelayMin,
		idleDelayMax:   idleDelayMax,
	}
}

// Run starts the polling loop, blocking until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		active := w.runCycle(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cycleDelay(active)):
		}
	}
}

// runCycle executes one polling pass and reports how many work items were
// polled.
func (w *Watcher) runCycle(ctx context.Context) int {
	users, err := w.store.ListUsers(ctx)
	if err != nil {
		w.log.Error("failed to load users", "error", err)
		return 0
	}

	plan := pairs.Compile(users, w.engine, time.Now(), w.log)
	if err := plan.WriteLog(w.pairsLogPath); err != nil {
		w.log.Error("failed to write pairs log", "path", w.pairsLogPath, "error", err)
	}
	w.tracker.Sync(ctx, plan.Statuses, plan.LocationUsers)

	if len(plan.Active) == 0 {
		w.log.Debug("no active work items this cycle", "items", len(plan.Items))
		return 0
	}

	p := pool.New().WithContext(ctx)
	for _, item := range plan.Active {
		p.Go(func(ctx context.Context) error {
			w.pollItem(ctx, item)
			return nil // one failed item must not cancel the rest
		})
	}
	if err := p.Wait(); err != nil {
		w.log.Error("poll pool aborted", "error", err)
	}
	return len(plan.Active)
}

// pollItem checks one (keyword, location) pair. The first successful poll
// only seeds the seen set; later polls announce listings that are complete
// and not yet seen.
func (w *Watcher) pollItem(ctx context.Context, item model.WorkItem) {
	listings, err := w.source.Search(ctx, item.Keyword, item.Location)
	if err != nil {
		w.log.Error("failed to poll pair",
			"keyword", item.Keyword, "location", item.Location, "error", err)
		return
	}

	firstRun := w.isFirstRun(item.Key())
	fresh := 0
	for _, l := range listings {
		if l.Link == "" || l.Price == "" || l.Title == "" {
			continue
		}
		if firstRun {
			w.seen.Add(l.Link)
			continue
		}
		if !w.seen.Add(l.Link) {
			continue
		}
		fresh++
		w.announcer.Announce(ctx, item, l)
	}

	if firstRun {
		w.log.Info("seeded first run",
			"keyword", item.Keyword, "location", item.Location, "listings", len(listings))
	} else if fresh > 0 {
		w.log.Info("announced new listings",
			"keyword", item.Keyword, "location", item.Location, "count", fresh)
	}
	w.markSeeded(item.Key())
}

func (w *Watcher) isFirstRun(key model.PairKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.seeded[key]
}

func (w *Watcher) markSeeded(key model.PairKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seeded[key] = true
}

func (w *Watcher) cycleDelay(active int) time.Duration {
	lo, hi := w.activeDelayMin, w.activeDelayMax
	if active == 0 {
		lo, hi = w.idleDelayMin, w.idleDelayMax
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
