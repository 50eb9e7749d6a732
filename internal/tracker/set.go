package tracker

import (
	"context"
	"slices"
	"sync"

	"github.com/wolfeidau/reportctl/internal/models"
	"github.com/wolfeidau/reportctl/internal/telemetry"
)

// Set is the registry of analysis jobs the client believes may still be
// pending or in progress. It is shared by every view listing jobs and is only
// mutated through Add, Remove and Clear.
type Set struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSet creates a set seeded with ids.
func NewSet(ids ...string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Add inserts id if absent. Returns true if the set changed.
func (s *Set) Add(id string) bool {
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}

	s.ids[id] = struct{}{}
	telemetry.GetMetrics().TrackedJobs.Add(context.Background(), 1)

	return true
}

// Remove deletes id if present. Returns true if the set changed.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; !ok {
		return false
	}

	delete(s.ids, id)
	telemetry.GetMetrics().TrackedJobs.Add(context.Background(), -1)

	return true
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.ids); n > 0 {
		telemetry.GetMetrics().TrackedJobs.Add(context.Background(), -int64(n))
	}

	s.ids = make(map[string]struct{})
}

// Has reports whether id is tracked.
func (s *Set) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ids[id]
	return ok
}

// Len returns the number of tracked ids.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ids)
}

// IDs returns the tracked ids in sorted order.
func (s *Set) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// Reset replaces the contents with ids. Used to roll back to a snapshot
// taken with IDs after a failed mutation.
func (s *Set) Reset(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.ids)

	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}

	if delta := int64(len(s.ids) - before); delta != 0 {
		telemetry.GetMetrics().TrackedJobs.Add(context.Background(), delta)
	}
}

// EvictTerminal removes the ids of analyses that reached a terminal status
// and returns the evicted ids.
func (s *Set) EvictTerminal(analyses []models.Analysis) []string {
	var evicted []string
	for _, a := range analyses {
		if a.Status.IsTerminal() && s.Remove(a.ID) {
			evicted = append(evicted, a.ID)
		}
	}
	return evicted
}

// HasActive returns true if any analysis in the list is pending or in
// progress. An empty list has no active work.
func HasActive(analyses []models.Analysis) bool {
	for _, a := range analyses {
		if a.Status.IsActive() {
			return true
		}
	}
	return false
}
