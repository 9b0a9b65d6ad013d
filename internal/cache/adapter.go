package cache

import (
	"context"
	"strings"
	"time"
)

// Backend is the context-aware store an Adapter wraps — satisfied by
// redisstore.Client. Kept separate from Interface so callers that already
// carry a context (component writers) aren't forced to thread one through
// every cache call; the Adapter binds context.Background() at the edge.
type Backend interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// defaultTTLs maps each key family (the text before a key's first ':') to
// its default TTL, per §4.M.
var defaultTTLs = map[string]time.Duration{
	"weather":            10 * time.Minute,
	"pollutant_movement": 10 * time.Minute,
	"hotspots":           5 * time.Minute,
	"route_exposure":     5 * time.Minute,
	"route_opt":          10 * time.Minute,
}

const fallbackTTL = 5 * time.Minute

// Adapter implements Interface over an optional Backend, resolving a
// caller-omitted TTL (ttl <= 0) from the key's family, with per-family
// overrides. A nil Backend makes every call a silent no-op: MGet reports
// an unconditional miss, Set and Del succeed without doing anything —
// matching an absent cache backend degrading rather than failing callers.
type Adapter struct {
	backend   Backend
	overrides map[string]time.Duration
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Backend Backend

	// Overrides replaces a key family's default TTL, keyed by family name
	// (e.g. "hotspots"). Typically sourced from config.CacheTTLOverrides.
	Overrides map[string]time.Duration
}

// NewAdapter builds an Adapter. opts.Backend may be nil.
func NewAdapter(opts AdapterOptions) *Adapter {
	return &Adapter{backend: opts.Backend, overrides: opts.Overrides}
}

var _ Interface = (*Adapter)(nil)

func (a *Adapter) MGet(keys []string) (map[string][]byte, error) {
	if a.backend == nil {
		return map[string][]byte{}, nil
	}
	return a.backend.MGet(context.Background(), keys)
}

// Set stores val under key. A ttl <= 0 resolves to the key's family
// default (or fallbackTTL for an unrecognized family), so callers that
// don't own a domain-specific TTL can simply pass 0.
func (a *Adapter) Set(key string, val []byte, ttl time.Duration) error {
	if a.backend == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = a.ttlFor(key)
	}
	return a.backend.Set(context.Background(), key, val, ttl)
}

func (a *Adapter) Del(keys ...string) error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Del(context.Background(), keys...)
}

func (a *Adapter) ttlFor(key string) time.Duration {
	family := key
	if i := strings.IndexByte(key, ':'); i >= 0 {
		family = key[:i]
	}
	if d, ok := a.overrides[family]; ok {
		return d
	}
	if d, ok := defaultTTLs[family]; ok {
		return d
	}
	return fallbackTTL
}
