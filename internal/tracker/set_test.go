package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/reportctl/internal/models"
)

func TestSet_AddIsIdempotent(t *testing.T) {
	s := NewSet()

	require.True(t, s.Add("a-1"))
	require.False(t, s.Add("a-1"))
	require.Equal(t, 1, s.Len())
	require.True(t, s.Has("a-1"))
}

func TestSet_AddIgnoresEmpty(t *testing.T) {
	s := NewSet("")

	require.False(t, s.Add(""))
	require.Equal(t, 0, s.Len())
}

func TestSet_RemoveAbsentIsNoop(t *testing.T) {
	s := NewSet("a-1")

	require.False(t, s.Remove("missing"))
	require.Equal(t, 1, s.Len())

	require.True(t, s.Remove("a-1"))
	require.False(t, s.Remove("a-1"))
	require.Equal(t, 0, s.Len())
}

func TestSet_Clear(t *testing.T) {
	s := NewSet("a-1", "a-2", "a-3")
	require.Equal(t, 3, s.Len())

	s.Clear()
	require.Equal(t, 0, s.Len())
	require.Empty(t, s.IDs())

	// usable after clear
	require.True(t, s.Add("a-4"))
}

func TestSet_IDsSorted(t *testing.T) {
	s := NewSet("c", "a", "b", "a")
	require.Equal(t, []string{"a", "b", "c"}, s.IDs())
}

func TestSet_ResetRestoresSnapshot(t *testing.T) {
	s := NewSet("a-1", "a-2")
	snapshot := s.IDs()

	s.Add("a-3")
	s.Remove("a-1")

	s.Reset(snapshot)
	require.Equal(t, []string{"a-1", "a-2"}, s.IDs())
}

func TestSet_ConcurrentAddRemoveConverges(t *testing.T) {
	s := NewSet()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Add("job")
		}()
		go func() {
			defer wg.Done()
			s.Add("other")
			s.Remove("other")
		}()
	}
	wg.Wait()

	require.Equal(t, []string{"job"}, s.IDs())

	// polling and explicit deletion racing to evict the same id
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Remove("job")
	}()
	go func() {
		defer wg.Done()
		s.Remove("job")
	}()
	wg.Wait()

	require.Equal(t, 0, s.Len())
}

func TestHasActive(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.AnalysisStatus
		expected bool
	}{
		{
			name:     "empty list",
			statuses: nil,
			expected: false,
		},
		{
			name:     "all terminal",
			statuses: []models.AnalysisStatus{models.AnalysisStatusCompleted, models.AnalysisStatusFailed, models.AnalysisStatusCancelled},
			expected: false,
		},
		{
			name:     "one pending",
			statuses: []models.AnalysisStatus{models.AnalysisStatusCompleted, models.AnalysisStatusPending},
			expected: true,
		},
		{
			name:     "one in progress",
			statuses: []models.AnalysisStatus{models.AnalysisStatusInProgress},
			expected: true,
		},
		{
			name:     "unknown status is not active",
			statuses: []models.AnalysisStatus{"queued_for_review"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyses := make([]models.Analysis, 0, len(tt.statuses))
			for _, s := range tt.statuses {
				analyses = append(analyses, models.Analysis{ID: "x", Status: s})
			}
			require.Equal(t, tt.expected, HasActive(analyses))
		})
	}
}

func TestSet_EvictTerminal(t *testing.T) {
	s := NewSet("a-1", "a-2", "a-3")

	evicted := s.EvictTerminal([]models.Analysis{
		{ID: "a-1", Status: models.AnalysisStatusCompleted},
		{ID: "a-2", Status: models.AnalysisStatusInProgress},
		{ID: "a-3", Status: models.AnalysisStatusCancelled},
		{ID: "untracked", Status: models.AnalysisStatusFailed},
	})

	require.Equal(t, []string{"a-1", "a-3"}, evicted)
	require.Equal(t, []string{"a-2"}, s.IDs())
}
