// Package cache implements the time-bounded resolution cache that sits in front
// of the school directory. Entries are keyed by (lookup kind, key), expire after a
// TTL measured with an injected clock, and are dropped for every key form at once
// when a school is invalidated.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/zenGate-Global/schoolspace/platform/go/metrics"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10_000
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// LoadFunc fetches a school from the directory on a cache miss.
type LoadFunc func(ctx context.Context) (tenant.School, error)

// Config controls cache behaviour.
type Config struct {
	TTL        time.Duration
	MaxEntries int64
	Clock      Clock
	Bus        Bus
	Logger     *zap.Logger
}

type entry struct {
	key      string
	school   tenant.School
	storedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	store  *ristretto.Cache[string, entry]
	ttl    time.Duration
	now    Clock
	bus    Bus
	logger *zap.Logger
	sfg    singleflight.Group

	// mu serialises writers so a Put can never interleave with an Invalidate
	// for the same school. Readers go straight to the store.
	mu         sync.Mutex
	generation uint64

	// idxMu guards bySchool only. Store callbacks run on ristretto's goroutine
	// while a writer may be blocked in Wait holding mu, so they take idxMu alone.
	// Lock order is mu, then idxMu.
	idxMu    sync.Mutex
	bySchool map[int64]map[string]struct{}
}

// New builds a Cache. Zero values in cfg fall back to the defaults.
func New(cfg Config) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Bus == nil {
		cfg.Bus = NopBus{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Cache{
		ttl:      cfg.TTL,
		now:      cfg.Clock,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		bySchool: make(map[int64]map[string]struct{}),
	}

	dropped := func(item *ristretto.Item[entry]) { c.unindex(item.Value) }
	store, err := ristretto.NewCache(&ristretto.Config[string, entry]{
		NumCounters:        cfg.MaxEntries * 10,
		MaxCost:            cfg.MaxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict:            dropped,
		OnReject:           dropped,
	})
	if err != nil {
		return nil, err
	}
	c.store = store
	return c, nil
}

func cacheKey(kind tenant.LookupKind, key string) string {
	return string(kind) + ":" + key
}

// Get returns the cached school for (kind, key). Entries older than the TTL are
// reported as a miss and removed.
func (c *Cache) Get(kind tenant.LookupKind, key string) (tenant.School, bool) {
	k := cacheKey(kind, key)
	e, ok := c.store.Get(k)
	if !ok {
		metrics.ResolutionCacheMisses.WithLabelValues(string(kind)).Inc()
		return tenant.School{}, false
	}

	if c.expired(e) {
		c.dropExpired(k)
		metrics.ResolutionCacheMisses.WithLabelValues(string(kind)).Inc()
		return tenant.School{}, false
	}

	metrics.ResolutionCacheHits.WithLabelValues(string(kind)).Inc()
	return e.school, true
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

// dropExpired removes k and its index entry unless a writer replaced it with a
// fresh snapshot after the caller read it.
func (c *Cache) dropExpired(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(k)
	if !ok || !c.expired(e) {
		return
	}
	c.store.Del(k)
	c.unindex(e)
	metrics.ResolutionCacheExpired.Inc()
}

func (c *Cache) unindex(e entry) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()

	keys, ok := c.bySchool[e.school.ID]
	if !ok {
		return
	}
	delete(keys, e.key)
	if len(keys) == 0 {
		delete(c.bySchool, e.school.ID)
	}
}

// Put stores a school snapshot under (kind, key).
func (c *Cache) Put(kind tenant.LookupKind, key string, school tenant.School) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(kind, key, school)
}

func (c *Cache) putLocked(kind tenant.LookupKind, key string, school tenant.School) {
	k := cacheKey(kind, key)
	c.store.SetWithTTL(k, entry{key: k, school: school, storedAt: c.now()}, 1, c.ttl)
	// Wait makes the write visible before the lock is released, so a following
	// Invalidate is guaranteed to see and delete it.
	c.store.Wait()
	if _, ok := c.store.Get(k); !ok {
		// rejected by the admission policy
		return
	}

	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	keys, ok := c.bySchool[school.ID]
	if !ok {
		keys = make(map[string]struct{}, 3)
		c.bySchool[school.ID] = keys
	}
	keys[k] = struct{}{}
}

// Invalidate drops every cached key that maps to schoolID, regardless of the
// remaining TTL. It only affects this process; use Broadcast to reach peers.
func (c *Cache) Invalidate(schoolID int64) {
	c.invalidate(schoolID, "local")
}

func (c *Cache) invalidate(schoolID int64, origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.idxMu.Lock()
	keys := c.bySchool[schoolID]
	delete(c.bySchool, schoolID)
	c.idxMu.Unlock()

	for k := range keys {
		c.store.Del(k)
	}
	metrics.ResolutionCacheInvalidations.WithLabelValues(origin).Inc()
}

// Broadcast invalidates schoolID locally and publishes the invalidation so other
// instances drop their copies too.
func (c *Cache) Broadcast(ctx context.Context, schoolID int64) error {
	c.Invalidate(schoolID)
	return c.bus.Publish(ctx, schoolID)
}

// Listen applies invalidations received from the bus until ctx is cancelled.
func (c *Cache) Listen(ctx context.Context) error {
	err := c.bus.Subscribe(ctx, func(schoolID int64) {
		c.logger.Debug("tenant cache invalidation received", zap.Int64("school_id", schoolID))
		c.invalidate(schoolID, "bus")
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// GetOrLoad serves (kind, key) from the cache or calls load once per key across
// concurrent callers. A load that overlaps an invalidation is returned to its
// callers but not cached, so it cannot resurrect a snapshot taken before the
// mutation that triggered the invalidation. Lookup failures are never cached.
func (c *Cache) GetOrLoad(ctx context.Context, kind tenant.LookupKind, key string, load LoadFunc) (tenant.School, error) {
	if s, ok := c.Get(kind, key); ok {
		return s, nil
	}

	k := cacheKey(kind, key)
	v, err, _ := c.sfg.Do(k, func() (interface{}, error) {
		c.mu.Lock()
		gen := c.generation
		c.mu.Unlock()

		school, err := load(ctx)
		if err != nil {
			return tenant.School{}, err
		}

		c.mu.Lock()
		if c.generation == gen {
			c.putLocked(kind, key, school)
		}
		c.mu.Unlock()
		return school, nil
	})
	if err != nil {
		return tenant.School{}, err
	}
	return v.(tenant.School), nil
}

// Len reports the number of keys currently indexed. Expired entries still count
// until they are read, evicted by the store, or their school is invalidated.
func (c *Cache) Len() int {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()

	n := 0
	for _, keys := range c.bySchool {
		n += len(keys)
	}
	return n
}

// Close releases the underlying store.
func (c *Cache) Close() {
	c.store.Close()
}

func parseSchoolID(payload string) (int64, error) {
	return strconv.ParseInt(payload, 10, 64)
}
