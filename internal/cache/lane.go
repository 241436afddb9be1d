package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sen66-server/internal/telemetry"
)

// Store is the durable tier of a lane. Load reports false when nothing was persisted.
type Store[T any] interface {
	Load(ctx context.Context) (T, bool, error)
	Save(ctx context.Context, v T) error
}

// FetchFunc loads a fresh payload from the remote store.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Entry is one cached payload. A zero FetchedAt means the age is unknown
// (seeded from disk) and the entry is never considered fresh.
type Entry[T any] struct {
	Payload   T
	FetchedAt time.Time
}

// Source tells where a Result came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceMemory Source = "memory"
	SourceRemote Source = "remote"
)

// Result is what Get hands back. OK is false when there is nothing to show.
// Stale is set when the payload is older than the lane TTL or of unknown age.
type Result[T any] struct {
	Payload   T
	OK        bool
	Stale     bool
	FetchedAt time.Time
	Source    Source
}

type LaneConfig[T any] struct {
	Name string
	TTL  time.Duration
	// Store, when set, receives every successful payload and seeds the lane
	// before its first remote fetch.
	Store Store[T]
}

// Lane caches payloads of one data class, keyed by the query parameters that
// produced them.
type Lane[T any] struct {
	name  string
	ttl   time.Duration
	store Store[T]
	c     *Cache

	refill sync.Locker
	flight singleflight.Group

	mu      sync.Mutex
	entries map[string]*Entry[T]
	seeded  bool
}

func NewLane[T any](c *Cache, cfg LaneConfig[T]) *Lane[T] {
	return &Lane[T]{
		name:    cfg.Name,
		ttl:     cfg.TTL,
		store:   cfg.Store,
		c:       c,
		refill:  c.lockFor(),
		entries: make(map[string]*Entry[T]),
	}
}

func (l *Lane[T]) Name() string       { return l.name }
func (l *Lane[T]) TTL() time.Duration { return l.ttl }

// Get returns the payload cached under key while it is younger than the TTL.
// Otherwise it calls fetch, at most once per concurrent wave of callers for
// the same key. When fetch fails the previous payload for key is returned
// with Stale set, or an empty Result if there never was one.
// telemetry.ErrConfigMissing yields an empty Result and is not a failure.
func (l *Lane[T]) Get(ctx context.Context, key string, fetch FetchFunc[T]) Result[T] {
	if r, ok := l.fresh(key); ok {
		l.c.observer.CacheHit(l.name)
		return r
	}
	l.c.observer.CacheMiss(l.name)

	// The flight outlives any single caller; the fetch is bounded by the
	// client timeout instead.
	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := l.flight.Do(key, func() (any, error) {
		return l.load(flightCtx, key, fetch), nil
	})
	return v.(Result[T])
}

// Peek returns whatever is held for key without fetching.
func (l *Lane[T]) Peek(key string) Result[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return Result[T]{Source: SourceNone}
	}
	return l.resultOf(e, SourceMemory)
}

// Seed loads the persisted payload into key if the lane holds nothing for it
// yet. It runs at most once per lane; later calls are no-ops. Failures are
// logged and ignored.
func (l *Lane[T]) Seed(ctx context.Context, key string) {
	l.refill.Lock()
	defer l.refill.Unlock()
	l.seedLocked(ctx, key)
}

// Invalidate drops every cached payload.
func (l *Lane[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
}

func (l *Lane[T]) fresh(key string) (Result[T], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || !l.isFresh(e) {
		return Result[T]{}, false
	}
	return l.resultOf(e, SourceMemory), true
}

func (l *Lane[T]) isFresh(e *Entry[T]) bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	return l.c.now().Sub(e.FetchedAt) < l.ttl
}

func (l *Lane[T]) resultOf(e *Entry[T], src Source) Result[T] {
	return Result[T]{
		Payload:   e.Payload,
		OK:        true,
		Stale:     !l.isFresh(e),
		FetchedAt: e.FetchedAt,
		Source:    src,
	}
}

func (l *Lane[T]) load(ctx context.Context, key string, fetch FetchFunc[T]) Result[T] {
	l.refill.Lock()
	defer l.refill.Unlock()

	// Another flight may have refilled the lane while this one waited.
	if r, ok := l.fresh(key); ok {
		return r
	}
	l.seedLocked(ctx, key)

	payload, err := fetch(ctx)
	switch {
	case errors.Is(err, telemetry.ErrConfigMissing):
		l.c.logger.Debug("cache fetch skipped", "lane", l.name, "reason", err)
		return Result[T]{Source: SourceNone}
	case err != nil:
		l.c.observer.FetchFailed(l.name, err)
		return l.fallback(key, err)
	}

	e := &Entry[T]{Payload: payload, FetchedAt: l.c.now()}
	l.mu.Lock()
	l.entries[key] = e
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Save(ctx, payload); err != nil {
			l.c.observer.PersistFailed(l.name, err)
			l.c.logger.Warn("cache persist failed", "lane", l.name, "error", err)
		}
	}
	return l.resultOf(e, SourceRemote)
}

func (l *Lane[T]) fallback(key string, err error) Result[T] {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		l.c.logger.Warn("cache fetch failed, nothing cached", "lane", l.name, "key", key, "error", err)
		return Result[T]{Source: SourceNone}
	}
	l.c.observer.StaleServed(l.name)
	l.c.logger.Warn("cache fetch failed, serving stale", "lane", l.name, "key", key,
		"fetched_at", e.FetchedAt, "error", err)
	r := l.resultOf(e, SourceMemory)
	r.Stale = true
	return r
}

// seedLocked must run with the refill lock held.
func (l *Lane[T]) seedLocked(ctx context.Context, key string) {
	if l.store == nil || l.seeded {
		return
	}
	l.seeded = true

	l.mu.Lock()
	_, have := l.entries[key]
	l.mu.Unlock()
	if have {
		return
	}

	v, ok, err := l.store.Load(ctx)
	if err != nil {
		l.c.observer.PersistFailed(l.name, err)
		l.c.logger.Warn("cache seed failed", "lane", l.name, "error", err)
		return
	}
	if !ok {
		return
	}
	l.mu.Lock()
	if _, have := l.entries[key]; !have {
		l.entries[key] = &Entry[T]{Payload: v}
	}
	l.mu.Unlock()
	l.c.logger.Debug("cache seeded from disk", "lane", l.name)
}
