package ctfd

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// identityCache maps Discord ids to CTFd user ids and back. Entries are
// only replaced when a refresh finds a link re-pointed.
type identityCache struct {
	mu        sync.RWMutex
	byDiscord map[string]int
	byUser    map[int]string
	refresh   singleflight.Group
}

func newIdentityCache() *identityCache {
	return &identityCache{
		byDiscord: make(map[string]int),
		byUser:    make(map[int]string),
	}
}

func (ic *identityCache) user(discordID string) (int, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	id, ok := ic.byDiscord[discordID]
	return id, ok
}

func (ic *identityCache) discord(userID int) (string, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	id, ok := ic.byUser[userID]
	return id, ok
}

// insert adds links, dropping any earlier pairing of either side so the
// two maps stay inverse to each other.
func (ic *identityCache) insert(links map[string]int) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	for discordID, userID := range links {
		if prev, ok := ic.byDiscord[discordID]; ok && prev != userID {
			delete(ic.byUser, prev)
		}
		if prev, ok := ic.byUser[userID]; ok && prev != discordID {
			delete(ic.byDiscord, prev)
		}
		ic.byDiscord[discordID] = userID
		ic.byUser[userID] = discordID
	}
}

func (ic *identityCache) size() int {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return len(ic.byDiscord)
}

// NormalizeDiscordID trims a Discord snowflake and reports whether it is one.
func NormalizeDiscordID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		return "", false
	}
	return raw, true
}

// RefreshIdentities scans every user for the Discord id custom field and
// adds the links found. Concurrent refreshes share one scan, which is not
// cancelled when any one waiter's ctx is done.
func (c *Client) RefreshIdentities(ctx context.Context) error {
	shared := context.WithoutCancel(ctx)
	ch := c.identity.refresh.DoChan("users", func() (any, error) {
		users, err := listAll[User](shared, c, "users")
		if err != nil {
			return nil, err
		}

		links := make(map[string]int)
		for _, u := range users {
			raw, ok := u.FieldValue(c.discordIDField)
			if !ok {
				continue
			}
			discordID, ok := NormalizeDiscordID(raw)
			if !ok {
				c.logger.Debug().Int("user_id", u.ID).Str("value", raw).Msg("ignoring malformed discord id field")
				continue
			}
			links[discordID] = u.ID
		}

		c.identity.insert(links)
		c.logger.Debug().Int("users", len(users)).Int("linked", len(links)).Msg("identity cache refreshed")
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return transportError("GET", "users", ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

// ResolveDiscord maps a Discord id to a CTFd user id. A miss triggers one
// full refresh; still missing afterwards means the user has no account,
// which is reported as ok=false rather than an error.
func (c *Client) ResolveDiscord(ctx context.Context, discordID string) (int, bool, error) {
	discordID, valid := NormalizeDiscordID(discordID)
	if !valid {
		return 0, false, nil
	}
	if id, ok := c.identity.user(discordID); ok {
		return id, true, nil
	}
	if err := c.RefreshIdentities(ctx); err != nil {
		return 0, false, err
	}
	id, ok := c.identity.user(discordID)
	return id, ok, nil
}

// linkedDiscord is the reverse lookup from the cache only; it never fetches.
func (c *Client) linkedDiscord(userID int) (string, bool) {
	return c.identity.discord(userID)
}

func (c *Client) IdentityCacheSize() int {
	return c.identity.size()
}
