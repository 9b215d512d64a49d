package ctfd

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type teamCache struct {
	mu        sync.RWMutex
	teams     []Team
	fetchedAt time.Time
	ttl       time.Duration
	refresh   singleflight.Group
}

func newTeamCache(ttl time.Duration) *teamCache {
	return &teamCache{ttl: ttl}
}

func (tc *teamCache) fresh(now time.Time) ([]Team, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.fetchedAt.IsZero() || now.Sub(tc.fetchedAt) >= tc.ttl {
		return nil, false
	}
	return slices.Clone(tc.teams), true
}

func (tc *teamCache) store(teams []Team, at time.Time) {
	tc.mu.Lock()
	tc.teams = teams
	tc.fetchedAt = at
	tc.mu.Unlock()
}

func (tc *teamCache) age(now time.Time) (time.Duration, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.fetchedAt.IsZero() {
		return 0, false
	}
	return now.Sub(tc.fetchedAt), true
}

// GetTeams returns the full team roster, served from cache while it is
// younger than the cache TTL. invalidate forces a refresh. A failed refresh
// keeps the previous roster and returns the error. Concurrent refreshes are
// coalesced into one traversal that runs detached from any single caller;
// each caller stops waiting only when its own ctx is done.
func (c *Client) GetTeams(ctx context.Context, invalidate bool) ([]Team, error) {
	if !invalidate {
		if teams, ok := c.teams.fresh(c.now()); ok {
			return teams, nil
		}
	}

	shared := context.WithoutCancel(ctx)
	ch := c.teams.refresh.DoChan("teams", func() (any, error) {
		teams, err := listAll[Team](shared, c, "teams")
		if err != nil {
			return nil, err
		}
		c.teams.store(teams, c.now())
		c.logger.Debug().Int("count", len(teams)).Msg("team cache refreshed")
		return teams, nil
	})

	select {
	case <-ctx.Done():
		return nil, transportError("GET", "teams", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn().Err(res.Err).Msg("team cache refresh failed")
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug().Msg("joined in-flight team cache refresh")
		}
		return slices.Clone(res.Val.([]Team)), nil
	}
}

// TeamCacheAge is the time since the last successful roster refresh.
func (c *Client) TeamCacheAge() (time.Duration, bool) {
	return c.teams.age(c.now())
}
