package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"mealcard/internal/cache"
	"mealcard/internal/model"
)

const defaultCardCacheTTL = 5 * time.Minute

// CardCache keeps read snapshots of cards in Redis. Concurrent misses for
// the same card share one store read. A nil *CardCache never caches.
type CardCache struct {
	client *cache.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCardCache creates a card snapshot cache on top of client.
func NewCardCache(client *cache.Client, ttl time.Duration) *CardCache {
	if ttl <= 0 {
		ttl = defaultCardCacheTTL
	}
	return &CardCache{client: client, ttl: ttl}
}

func cardKey(id uuid.UUID) string {
	return fmt.Sprintf("card:%s", id.String())
}

// genKey counts invalidations of a card. A snapshot is only written while
// the count still matches the one read before the store load.
func genKey(id uuid.UUID) string {
	return fmt.Sprintf("card:%s:gen", id.String())
}

// Load returns the cached snapshot of id or calls load and caches its result.
// A snapshot loaded before a concurrent Invalidate is returned but not cached.
func (c *CardCache) Load(ctx context.Context, id uuid.UUID, load func() (*model.Card, error)) (*model.Card, error) {
	if c == nil {
		return load()
	}
	key := cardKey(id)
	var card model.Card
	if c.client.GetJSON(ctx, key, &card) {
		return &card, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen, _ := c.client.Get(ctx, genKey(id))
		loaded, err := load()
		if err != nil {
			return nil, err
		}
		c.client.SetJSONIfUnchanged(ctx, genKey(id), gen, key, loaded, c.ttl)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*model.Card)
	return &out, nil
}

// Invalidate drops the snapshots of ids and fences off loads already in
// flight.
func (c *CardCache) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if c == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key := cardKey(id)
		_ = c.client.Incr(ctx, genKey(id), 2*c.ttl)
		c.group.Forget(key)
		keys = append(keys, key)
	}
	_ = c.client.Delete(ctx, keys...)
}
