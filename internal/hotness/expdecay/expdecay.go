// Package expdecay implements hotness.Interface with a half-life exponential
// decay, sharded by H3 cell id so concurrent hotspot-locator runs and
// ingestion ticks don't serialize on a single lock.
package expdecay

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/aeris-platform/aeris/internal/hotness"
)

const numShards = 64

// Tracker holds one decaying severity score per H3 cell. A cell's score
// rises by one on each Inc and fades toward zero at HalfLife, so a single
// bad reading doesn't keep a cell scoring high indefinitely. hotspot.Locate
// only reads Score; it does not call Inc.
type Tracker struct {
	HalfLife time.Duration

	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string]*cellScore
}

type cellScore struct {
	score float64
	last  time.Time
}

var _ hotness.Interface = (*Tracker)(nil)

func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	t := &Tracker{HalfLife: halfLife, now: time.Now}
	for i := range t.shards {
		t.shards[i].m = make(map[string]*cellScore)
	}
	return t
}

// Inc decays cell's existing score toward now, then adds one fresh
// observation's worth of severity.
func (t *Tracker) Inc(cell string) {
	if cell == "" {
		return
	}
	s := t.pick(cell)
	n := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.m[cell]
	if c == nil {
		s.m[cell] = &cellScore{score: 1, last: n}
		return
	}
	dt := n.Sub(c.last).Seconds()
	c.score = decay(c.score, dt, t.HalfLife.Seconds()) + 1.0
	c.last = n
}

// Score returns cell's severity, decayed forward to now since its last
// Inc. A cell never observed scores zero.
func (t *Tracker) Score(cell string) float64 {
	if cell == "" {
		return 0
	}
	s := t.pick(cell)
	n := t.now()

	s.mu.RLock()
	c := s.m[cell]
	if c == nil {
		s.mu.RUnlock()
		return 0
	}
	score, last := c.score, c.last
	s.mu.RUnlock()

	dt := n.Sub(last).Seconds()
	return decay(score, dt, t.HalfLife.Seconds())
}

// Reset drops tracked state for cells, used once a cell's severity band
// falls below the hotspot threshold so it stops contributing to clustering.
func (t *Tracker) Reset(cells ...string) {
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		s := t.pick(cell)
		s.mu.Lock()
		delete(s.m, cell)
		s.mu.Unlock()
	}
}

func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	lambda := math.Ln2 / halfLife
	return score * math.Exp(-lambda*dt)
}

func (t *Tracker) pick(cell string) *shard {
	h := xxhash.Sum64String(cell)
	idx := h & (uint64(len(t.shards)) - 1)
	return &t.shards[idx]
}

// Size reports how many cells currently have tracked state, for tests and
// diagnostics.
func (t *Tracker) Size() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].m)
		t.shards[i].mu.RUnlock()
	}
	return total
}
