// Package announcement keeps the "nearly sold out" announcement in a cache.
//
// A Refresher recomputes the text from the store on a schedule and writes it
// under Key; readers only ever read the cache. Conferences with between 1
// and NearlySoldOut seats left are listed.
package announcement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/store"
)

// Key is the cache key of the announcement.
const Key = "RECENT_ANNOUNCEMENTS"

// NearlySoldOut is the largest seat count that still gets announced.
const NearlySoldOut = 5

const template = "Last chance to attend! The following conferences are nearly sold out: %s"

// Cache stores the announcement text. Get returns "" for a missing key.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{values: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key], nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// Refresher recomputes the announcement.
type Refresher struct {
	store  store.EntityStore
	cache  Cache
	logger *slog.Logger
}

// NewRefresher creates a Refresher writing to cache.
func NewRefresher(s store.EntityStore, cache Cache, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{store: s, cache: cache, logger: logger}
}

// Refresh lists the nearly sold out conferences and stores the resulting
// announcement, or deletes it when there are none. It returns the text.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	q := store.NewQuery(model.KindConference).
		Where("seatsAvailable", store.OpLessOrEqual, NearlySoldOut).
		Where("seatsAvailable", store.OpGreaterThan, 0).
		OrderBy("name")

	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("query nearly sold out conferences: %w", err)
	}

	if len(docs) == 0 {
		if err := r.cache.Delete(ctx, Key); err != nil {
			return "", fmt.Errorf("delete announcement: %w", err)
		}
		r.logger.Debug("announcement cleared")
		return "", nil
	}

	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.String("name")
	}
	text := fmt.Sprintf(template, strings.Join(names, ", "))
	if err := r.cache.Set(ctx, Key, text); err != nil {
		return "", fmt.Errorf("store announcement: %w", err)
	}
	r.logger.Debug("announcement refreshed", "conferences", len(docs))
	return text, nil
}

// Run refreshes immediately and then every interval until ctx is done.
// Failed refreshes are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("failed to refresh announcement", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Get returns the cached announcement, "" if there is none.
func Get(ctx context.Context, cache Cache) (string, error) {
	return cache.Get(ctx, Key)
}
