// Package cache is the tiered freshness cache in front of the telemetry store.
// Each data class is a Lane with its own TTL. A lane refill is single-flighted
// and runs under a lock that is either shared by every lane or private to the
// lane. Failed refills fall back to the last payload held in memory.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LockScope selects how refills of different lanes are serialized.
type LockScope string

const (
	// LockGlobal runs every refill of every lane under one lock.
	LockGlobal LockScope = "global"
	// LockLane gives each lane its own lock; refills of different lanes may overlap.
	LockLane LockScope = "lane"
)

// ParseLockScope accepts "global" or "lane" (case-insensitive). Empty means global.
func ParseLockScope(s string) (LockScope, error) {
	switch LockScope(strings.ToLower(strings.TrimSpace(s))) {
	case "", LockGlobal:
		return LockGlobal, nil
	case LockLane:
		return LockLane, nil
	default:
		return "", fmt.Errorf("unknown lock scope %q (want global or lane)", s)
	}
}

// Observer receives cache events. Implementations must be safe for concurrent use.
type Observer interface {
	CacheHit(lane string)
	CacheMiss(lane string)
	FetchFailed(lane string, err error)
	StaleServed(lane string)
	PersistFailed(lane string, err error)
}

type noopObserver struct{}

func (noopObserver) CacheHit(string) {}
func (noopObserver) CacheMiss(string) {}
func (noopObserver) FetchFailed(string, error) {}
func (noopObserver) StaleServed(string) {}
func (noopObserver) PersistFailed(string, error) {}

type Options struct {
	LockScope LockScope
	Observer  Observer
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Cache owns the shared refill lock and the settings common to all lanes.
// Build one per process and hand it to every consumer.
type Cache struct {
	shared   sync.Mutex
	scope    LockScope
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

func New(opts Options) *Cache {
	c := &Cache{
		scope:    opts.LockScope,
		observer: opts.Observer,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if c.scope == "" {
		c.scope = LockGlobal
	}
	if c.observer == nil {
		c.observer = noopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

func (c *Cache) LockScope() LockScope { return c.scope }

func (c *Cache) lockFor() sync.Locker {
	if c.scope == LockLane {
		return &sync.Mutex{}
	}
	return &c.shared
}
