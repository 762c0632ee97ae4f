package watcher

import "sync"

// SeenSet records listing links that have already been handled. It only ever
// grows and is shared by every work item, so a listing surfacing under two
// keywords is still announced once.
type SeenSet struct {
	mu    sync.Mutex
	links map[string]bool
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{links: make(map[string]bool)}
}

// Add records a link and reports whether it was new. Check and insert are a
// single critical section so concurrent pollers cannot both claim a link.
func (s *SeenSet) Add(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.links[link] {
		return false
	}
	s.links[link] = true
	return true
}

// Len returns the number of recorded links.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}
