// Package model defines the domain types used across the application.
package model

import "time"

// User represents a registered subscriber with an active marketplace watch.
type User struct {
	ID            int64
	ChatID        int64
	Active        bool
	ExpiryDate    string // calendar date, "2006-01-02"
	Location      string
	Lat           float64
	Lon           float64
	Keywords      []string
	ExcludedWords []string
	Modes         Modes
	CreatedAt     time.Time
}

// Modes holds the per-user notification gates applied after classification.
type Modes struct {
	OnlyPreferred bool
	NearGoodDeals bool
	GoodDeals     bool
}

// Product is one entry in a user's price book. A listing whose title contains
// the product name is classified against GoodPrice.
type Product struct {
	ID        int64
	Name      string
	Preferred bool
	GoodPrice float64
}

// Listing is a single marketplace search result. Link may be relative to the
// marketplace base URL.
type Listing struct {
	Link  string
	Price string
	Title string
}

// PairKey identifies a (keyword, location) work item.
type PairKey struct {
	Keyword  string
	Location string
}

// Subscriber is the per-user config attached to a work item.
type Subscriber struct {
	ChatID        int64
	ExcludedWords []string
	Lat           float64
	Lon           float64
	Modes         Modes
}

// WorkItem is a deduplicated (keyword, location) pair with every subscriber
// interested in it. Rebuilt from storage on each cycle.
type WorkItem struct {
	Keyword     string
	Location    string
	Subscribers []Subscriber
}

// Key returns the identity of the work item.
func (w WorkItem) Key() PairKey {
	return PairKey{Keyword: w.Keyword, Location: w.Location}
}

// LocationStatus is the last recorded monitoring state for one location.
type LocationStatus struct {
	IsActive    bool
	Reason      string
	LastUpdated time.Time
	NextChange  time.Time
	NextStatus  string
}
