// Package snapshot provides a time-bounded, per-user cache of everything a
// user has logged, so the analysis engine never re-runs the underlying joins
// on every request.
package snapshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/morselapp/morsel/internal/model"
)

// DefaultTTL is how long a loaded snapshot stays valid.
const DefaultTTL = 5 * time.Minute

// Data is one user's full log snapshot: their daily logs and entries, plus
// the food -> ingredient -> sub-ingredient graph restricted to foods the
// user has ever logged.
type Data struct {
	DailyLogs      []model.DailyLog
	FoodEntries    []model.FoodLogEntry
	SymptomEntries []model.SymptomLogEntry
	Foods          []model.Food
	Ingredients    []model.Ingredient
	SubIngredients []model.SubIngredient
	LoadedAt       time.Time
}

// Loader produces a fresh snapshot from the underlying store.
type Loader interface {
	LoadSnapshot(userID int64) (*Data, error)
}

type entry struct {
	data      *Data
	refreshed time.Time
}

// Cache holds per-user snapshots for a fixed TTL. Refresh is not mutually
// exclusive: two goroutines refreshing the same user may both hit the
// loader; the recompute is idempotent, so at most a harmless duplicate load
// occurs and the last write wins.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[int64]entry
}

// New creates a cache over the given loader. ttl <= 0 selects DefaultTTL.
func New(loader Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]entry),
	}
}

// NewWithClock is New with an injected clock, used by tests.
func NewWithClock(loader Loader, ttl time.Duration, now func() time.Time) *Cache {
	c := New(loader, ttl)
	c.now = now
	return c
}

// Get returns the user's snapshot, loading it if missing or stale.
func (c *Cache) Get(userID int64) (*Data, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.refreshed) < c.ttl {
		return e.data, nil
	}
	return c.Refresh(userID)
}

// Refresh loads a fresh snapshot regardless of cache state.
func (c *Cache) Refresh(userID int64) (*Data, error) {
	data, err := c.loader.LoadSnapshot(userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for user %d: %w", userID, err)
	}
	c.mu.Lock()
	c.entries[userID] = entry{data: data, refreshed: c.now()}
	c.mu.Unlock()
	return data, nil
}

// Invalidate drops the cached snapshot for one user.
func (c *Cache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll drops every cached snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]entry)
	c.mu.Unlock()
}
