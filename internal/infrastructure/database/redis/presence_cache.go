package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/havenloop/haven/internal/domain/presence"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
)

// presenceCache decorates a presence repository with a Redis hot cache.
// Presence is the read-heaviest path in the system; circle snapshots hit it
// on every poll.  Writes go through to the store first, then refresh the
// cache; a cache failure never fails the operation.
type presenceCache struct {
	inner presence.Repository
	cache Cache
	ttl   time.Duration
	log   logging.Logger
}

// NewPresenceCache wraps repo with a read-through / write-through cache.
func NewPresenceCache(inner presence.Repository, cache Cache, ttl time.Duration, log logging.Logger) presence.Repository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &presenceCache{inner: inner, cache: cache, ttl: ttl, log: log.Named("presence-cache")}
}

func presenceKey(memberID string) string {
	return "presence:" + memberID
}

func (c *presenceCache) Save(ctx context.Context, p *presence.Presence) error {
	if err := c.inner.Save(ctx, p); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, presenceKey(p.MemberID), p, c.ttl); err != nil {
		c.log.Warn("Failed to refresh presence cache", logging.String("member_id", p.MemberID), logging.Err(err))
	}
	return nil
}

func (c *presenceCache) Get(ctx context.Context, memberID string) (*presence.Presence, error) {
	var p presence.Presence
	if err := c.cache.Get(ctx, presenceKey(memberID), &p); err == nil {
		return &p, nil
	}
	stored, err := c.inner.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, presenceKey(memberID), stored, c.ttl); err != nil {
		c.log.Warn("Failed to backfill presence cache", logging.String("member_id", memberID), logging.Err(err))
	}
	return stored, nil
}

func (c *presenceCache) GetMany(ctx context.Context, memberIDs []string) ([]*presence.Presence, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		keys[i] = presenceKey(id)
	}

	hits := make(map[string]*presence.Presence, len(memberIDs))
	var misses []string
	raw, err := c.cache.MGet(ctx, keys)
	if err != nil {
		c.log.Warn("Presence cache mget failed, reading store", logging.Err(err))
		misses = memberIDs
	} else {
		for i, data := range raw {
			if data == nil {
				misses = append(misses, memberIDs[i])
				continue
			}
			var p presence.Presence
			if jerr := json.Unmarshal(data, &p); jerr != nil {
				misses = append(misses, memberIDs[i])
				continue
			}
			hits[memberIDs[i]] = &p
		}
	}

	if len(misses) > 0 {
		stored, err := c.inner.GetMany(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, p := range stored {
			hits[p.MemberID] = p
			if cerr := c.cache.Set(ctx, presenceKey(p.MemberID), p, c.ttl); cerr != nil {
				c.log.Warn("Failed to backfill presence cache", logging.String("member_id", p.MemberID), logging.Err(cerr))
			}
		}
	}

	// Preserve the requested order; members without a record are skipped,
	// matching the store's contract.
	out := make([]*presence.Presence, 0, len(hits))
	for _, id := range memberIDs {
		if p, ok := hits[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *presenceCache) SetCadence(ctx context.Context, memberID string, cadenceSeconds int) error {
	if err := c.inner.SetCadence(ctx, memberID, cadenceSeconds); err != nil {
		return err
	}
	// Cadence changes are rare relative to reads; invalidate instead of
	// patching the cached record.
	if err := c.cache.Delete(ctx, presenceKey(memberID)); err != nil {
		c.log.Warn("Failed to invalidate presence cache", logging.String("member_id", memberID), logging.Err(err))
	}
	return nil
}
