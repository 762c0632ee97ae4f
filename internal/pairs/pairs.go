// Package pairs compiles user subscriptions into deduplicated
// (keyword, location) work items for one polling cycle.
package pairs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/schedule"
)

const expiryLayout = "2006-01-02"

// Plan is the compiled output for one cycle. Items preserves first-seen
// order; Active is the subset whose location is currently monitored.
// LocationUsers maps lowercased location names to the chat IDs subscribed
// there, for status broadcasts.
type Plan struct {
	Items         []model.WorkItem
	Active        []model.WorkItem
	LocationUsers map[string][]int64
	Statuses      map[string]schedule.Status
}

// Compile builds the cycle plan from freshly loaded users. Users that are
// deactivated, expired (strictly before today, by calendar date), or carry an
// unparsable expiry date are skipped. The same (keyword, location) pair from
// several users becomes a single work item with all their subscriber configs.
func Compile(users []model.User, eng *schedule.Engine, now time.Time, log *slog.Logger) *Plan {
	plan := &Plan{
		LocationUsers: make(map[string][]int64),
		Statuses:      make(map[string]schedule.Status),
	}
	index := make(map[model.PairKey]int)
	locSeen := make(map[string]map[int64]bool)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, u := range users {
		if !u.Active {
			log.Debug("skipping inactive subscription", "user_id", u.ID)
			continue
		}
		expiry, err := time.ParseInLocation(expiryLayout, u.ExpiryDate, time.UTC)
		if err != nil {
			log.Warn("skipping user with malformed expiry date",
				"user_id", u.ID, "expiry_date", u.ExpiryDate, "error", err)
			continue
		}
		if expiry.Before(today) {
			log.Debug("skipping expired subscription", "user_id", u.ID, "expiry_date", u.ExpiryDate)
			continue
		}

		locKey := strings.ToLower(u.Location)
		if locSeen[locKey] == nil {
			locSeen[locKey] = make(map[int64]bool)
		}
		if !locSeen[locKey][u.ChatID] {
			locSeen[locKey][u.ChatID] = true
			plan.LocationUsers[locKey] = append(plan.LocationUsers[locKey], u.ChatID)
		}

		sub := model.Subscriber{
			ChatID:        u.ChatID,
			ExcludedWords: u.ExcludedWords,
			Lat:           u.Lat,
			Lon:           u.Lon,
			Modes:         u.Modes,
		}
		for _, kw := range u.Keywords {
			key := model.PairKey{Keyword: kw, Location: u.Location}
			i, ok := index[key]
			if !ok {
				plan.Items = append(plan.Items, model.WorkItem{Keyword: kw, Location: u.Location})
				i = len(plan.Items) - 1
				index[key] = i
			}
			plan.Items[i].Subscribers = append(plan.Items[i].Subscribers, sub)
		}
	}

	for _, item := range plan.Items {
		locKey := strings.ToLower(item.Location)
		st, ok := plan.Statuses[locKey]
		if !ok {
			st = eng.Evaluate(item.Location)
			plan.Statuses[locKey] = st
		}
		if st.Active {
			plan.Active = append(plan.Active, item)
		}
	}
	return plan
}

// WriteLog rewrites the pairs log with one line per work item.
func (p *Plan) WriteLog(path string) error {
	var b strings.Builder
	for _, item := range p.Items {
		st := p.Statuses[strings.ToLower(item.Location)]
		label := "PAUSED"
		if st.Active {
			label = "ACTIVE"
		}
		fmt.Fprintf(&b, "%s - %s [%s] - %s\n", item.Keyword, item.Location, label, st.Reason)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing pairs log: %w", err)
	}
	return nil
}
