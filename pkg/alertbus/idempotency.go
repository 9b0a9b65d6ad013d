package alertbus

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const seenCacheSize = 4096

// seenRuns de-duplicates dispatch batches by RunID so a producer retry (or a
// consumer-group rebalance that redelivers an uncommitted offset) does not
// fire the same webhook batch twice.
type seenRuns struct {
	cache *lru.Cache[string, struct{}]
}

func newSeenRuns() *seenRuns {
	c, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which seenCacheSize
		// never is.
		panic(err)
	}
	return &seenRuns{cache: c}
}

// shouldDispatch reports whether runID has not been seen before, and marks
// it seen as a side effect.
func (s *seenRuns) shouldDispatch(runID string) bool {
	if runID == "" {
		return true
	}
	if _, ok := s.cache.Get(runID); ok {
		return false
	}
	s.cache.Add(runID, struct{}{})
	return true
}
