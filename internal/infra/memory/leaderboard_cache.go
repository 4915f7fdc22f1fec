package memory

import (
	"context"
	"sync"
	"time"

	"quizhub-service/internal/domain"
)

// LeaderboardCache keeps one computed leaderboard until it expires or is
// invalidated.
type LeaderboardCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	entries   []domain.LeaderboardEntry
	expiresAt time.Time
	valid     bool
}

// NewLeaderboardCache builds a cache; ttl <= 0 keeps entries until invalidated.
func NewLeaderboardCache(ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{ttl: ttl, clock: time.Now}
}

func (c *LeaderboardCache) Get(_ context.Context) ([]domain.LeaderboardEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid || (c.ttl > 0 && !c.expiresAt.After(c.clock())) {
		return nil, false, nil
	}
	out := make([]domain.LeaderboardEntry, len(c.entries))
	copy(out, c.entries)
	return out, true, nil
}

func (c *LeaderboardCache) Set(_ context.Context, entries []domain.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append([]domain.LeaderboardEntry(nil), entries...)
	c.expiresAt = c.clock().Add(c.ttl)
	c.valid = true
	return nil
}

func (c *LeaderboardCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.valid = false
	return nil
}
