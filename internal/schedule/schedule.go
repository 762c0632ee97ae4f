// Package schedule computes per-location monitoring windows. Monitoring is
// paused during a fixed nightly window in each location's local time.
package schedule

import (
	"fmt"
	"strings"
	"time"

	// Embed zone data so location lookups work without host zoneinfo.
	_ "time/tzdata"
)

// Status values reported in NextStatus and persisted in the status snapshot.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// The nightly pause window in local minutes-of-day. Half-open: 22:00 is
// inactive, 06:30 is active again.
const (
	inactiveStartMin = 22 * 60
	inactiveEndMin   = 6*60 + 30
)

var locationZones = map[string]string{
	"melbourne": "Australia/Melbourne",
	"brisbane":  "Australia/Brisbane",
	"sydney":    "Australia/Sydney",
	"perth":     "Australia/Perth",
	"adelaide":  "Australia/Adelaide",
}

// Status describes the monitoring window for one location at a point in time.
type Status struct {
	Location   string
	Active     bool
	Reason     string
	LocalTime  time.Time
	NextChange time.Time
	NextStatus string
}

// Engine evaluates location schedules against a clock.
type Engine struct {
	now func() time.Time
}

// New returns an Engine using the system clock.
func New() *Engine {
	return &Engine{now: time.Now}
}

// NewWithClock returns an Engine with a custom clock, for tests.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Timezone returns the time zone for a location name. Lookup is
// case-insensitive; unknown locations fall back to UTC.
func Timezone(location string) *time.Location {
	name, ok := locationZones[strings.ToLower(location)]
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Evaluate computes the current monitoring status for a location.
func (e *Engine) Evaluate(location string) Status {
	zone := Timezone(location)
	lt := e.now().In(zone)
	mins := lt.Hour()*60 + lt.Minute()
	active := mins >= inactiveEndMin && mins < inactiveStartMin

	st := Status{
		Location:  location,
		Active:    active,
		LocalTime: lt,
	}
	if active {
		st.Reason = fmt.Sprintf("Daytime hours in %s (local time: %s)", location, lt.Format("15:04"))
		st.NextChange = atTimeOfDay(lt, 22, 0)
		st.NextStatus = StatusInactive
		return st
	}

	st.Reason = fmt.Sprintf("Nighttime hours in %s (local time: %s). Resuming at 06:30", location, lt.Format("15:04"))
	next := atTimeOfDay(lt, 6, 30)
	if !lt.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	st.NextChange = next
	st.NextStatus = StatusActive
	return st
}

// atTimeOfDay returns the given wall-clock time on t's calendar day, in t's
// zone.
func atTimeOfDay(t time.Time, hour, min int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, min, 0, 0, t.Location())
}
