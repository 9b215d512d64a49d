package ctfd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Notifier delivers one batch of solve announcements.
type Notifier interface {
	Notify(ctx context.Context, content string) error
}

// Announcement is a newly observed solve resolved to a Discord user.
type Announcement struct {
	DiscordID string
	Challenge string
}

func (a Announcement) String() string {
	return fmt.Sprintf("<@%s> just solved %s!", a.DiscordID, a.Challenge)
}

// FormatAnnouncements renders one line per announcement.
func FormatAnnouncements(batch []Announcement) string {
	lines := make([]string, len(batch))
	for i, a := range batch {
		lines[i] = a.String()
	}
	return strings.Join(lines, "\n")
}

// SolveWatchStatus is a point-in-time view of the solve tracker.
type SolveWatchStatus struct {
	Warm              bool      `json:"warm"`
	TrackedChallenges int       `json:"tracked_challenges"`
	TrackedSolves     int       `json:"tracked_solves"`
	LastTick          time.Time `json:"last_tick"`
	LastError         string    `json:"last_error,omitempty"`
}

// solveTracker holds, per challenge, the account ids already credited with a
// solve. The sets only grow, which is what makes announcements idempotent.
type solveTracker struct {
	mu      sync.Mutex
	solvers map[int]map[int]struct{}
	// warm is set after the first tick whose statistics fetch succeeded;
	// before that nothing is announced.
	warm bool
	// unbaselined holds challenges whose solve list failed to load while
	// cold; their first successful load is recorded silently.
	unbaselined map[int]struct{}
	lastTick    time.Time
	lastErr     error
}

func newSolveTracker() *solveTracker {
	return &solveTracker{
		solvers:     make(map[int]map[int]struct{}),
		unbaselined: make(map[int]struct{}),
	}
}

func (t *solveTracker) count(challengeID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.solvers[challengeID])
}

// record adds accountID to the challenge's solver set and reports whether it
// was not there before.
func (t *solveTracker) record(challengeID, accountID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.solvers[challengeID]
	if !ok {
		set = make(map[int]struct{})
		t.solvers[challengeID] = set
	}
	if _, seen := set[accountID]; seen {
		return false
	}
	set[accountID] = struct{}{}
	return true
}

func (t *solveTracker) isWarm() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.warm
}

func (t *solveTracker) markWarm() {
	t.mu.Lock()
	t.warm = true
	t.mu.Unlock()
}

func (t *solveTracker) deferBaseline(challengeID int) {
	t.mu.Lock()
	t.unbaselined[challengeID] = struct{}{}
	t.mu.Unlock()
}

// takeBaseline clears a deferred baseline and reports whether one was set.
func (t *solveTracker) takeBaseline(challengeID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.unbaselined[challengeID]; !ok {
		return false
	}
	delete(t.unbaselined, challengeID)
	return true
}

func (t *solveTracker) finish(at time.Time, err error) {
	t.mu.Lock()
	t.lastTick = at
	t.lastErr = err
	t.mu.Unlock()
}

func (t *solveTracker) status() SolveWatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := SolveWatchStatus{
		Warm:              t.warm,
		TrackedChallenges: len(t.solvers),
		LastTick:          t.lastTick,
	}
	for _, set := range t.solvers {
		st.TrackedSolves += len(set)
	}
	if t.lastErr != nil {
		st.LastError = t.lastErr.Error()
	}
	return st
}

func (c *Client) SolveWatchStatus() SolveWatchStatus {
	return c.solves.status()
}

type newSolve struct {
	challengeID int
	challenge   string
	accountID   int
	userAccount bool
}

// WatchSolves runs solve reconciliation every interval until ctx is done.
// Tick failures are logged and never stop the loop.
func (c *Client) WatchSolves(ctx context.Context, interval time.Duration, n Notifier) {
	log := c.logger.With().Str("task", "solve_watch").Logger()
	log.Info().Dur("interval", interval).Msg("solve watcher started")

	for {
		batch, err := c.reconcileSolves(ctx, n)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Error().Err(err).Int("announced", len(batch)).Msg("solve reconciliation tick failed")
		case len(batch) > 0:
			log.Info().Int("announced", len(batch)).Msg("announced new solves")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("solve watcher stopped")
			return
		case <-time.After(interval):
		}
	}
}

// reconcileSolves runs one tick and returns the batch it dispatched.
func (c *Client) reconcileSolves(ctx context.Context, n Notifier) ([]Announcement, error) {
	stats, err := c.GetSolveStatistics(ctx)
	if err != nil {
		err = fmt.Errorf("fetch solve statistics: %w", err)
		c.solves.finish(c.now(), err)
		return nil, err
	}

	announce := c.solves.isWarm()
	var errs []error
	var fresh []newSolve

	for _, stat := range stats {
		if stat.Solves == 0 {
			c.solves.takeBaseline(stat.ID)
			continue
		}
		if stat.Solves <= c.solves.count(stat.ID) {
			continue
		}

		solves, err := c.GetChallengeSolves(ctx, stat.ID)
		if err != nil {
			if !announce {
				c.solves.deferBaseline(stat.ID)
			}
			errs = append(errs, fmt.Errorf("fetch solves of challenge %d: %w", stat.ID, err))
			continue
		}

		silent := c.solves.takeBaseline(stat.ID) || !announce
		for _, s := range solves {
			// recording comes first: a later failure costs at most one
			// missed announcement, never a duplicate
			if !c.solves.record(stat.ID, s.AccountID) || silent {
				continue
			}
			fresh = append(fresh, newSolve{
				challengeID: stat.ID,
				challenge:   stat.Name,
				accountID:   s.AccountID,
				userAccount: s.UserAccount(),
			})
		}
	}

	if !announce {
		c.solves.markWarm()
		c.logger.Info().Int("challenges", len(stats)).Msg("solve history captured")
	}

	batch, resolveErrs := c.resolveAnnouncements(ctx, fresh)
	errs = append(errs, resolveErrs...)

	if len(batch) > 0 {
		if err := n.Notify(ctx, FormatAnnouncements(batch)); err != nil {
			errs = append(errs, fmt.Errorf("dispatch %d announcements: %w", len(batch), err))
		}
	}

	err = errors.Join(errs...)
	c.solves.finish(c.now(), err)
	return batch, err
}

type pendingAnnouncement struct {
	userID    int
	challenge string
}

// resolveAnnouncements maps new solves to (Discord id, challenge) pairs.
// Solvers without a linked Discord id are skipped. Duplicate pairs collapse.
func (c *Client) resolveAnnouncements(ctx context.Context, fresh []newSolve) ([]Announcement, []error) {
	if len(fresh) == 0 {
		return nil, nil
	}

	var errs []error
	teamSolves := make(map[int][]TeamSolve)
	pending := make([]pendingAnnouncement, 0, len(fresh))

	for _, s := range fresh {
		if s.userAccount {
			pending = append(pending, pendingAnnouncement{userID: s.accountID, challenge: s.challenge})
			continue
		}

		solves, ok := teamSolves[s.accountID]
		if !ok {
			var err error
			solves, err = c.GetTeamSolves(ctx, s.accountID)
			if err != nil {
				errs = append(errs, fmt.Errorf("fetch solves of team %d: %w", s.accountID, err))
				continue
			}
			teamSolves[s.accountID] = solves
		}

		userID, err := solverOf(solves, s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pending = append(pending, pendingAnnouncement{userID: userID, challenge: s.challenge})
	}

	refreshed := false
	seen := make(map[Announcement]struct{})
	var batch []Announcement

	for _, p := range pending {
		discordID, ok := c.linkedDiscord(p.userID)
		if !ok && !refreshed {
			refreshed = true
			if err := c.RefreshIdentities(ctx); err != nil {
				errs = append(errs, fmt.Errorf("refresh identities: %w", err))
			}
			discordID, ok = c.linkedDiscord(p.userID)
		}
		if !ok {
			continue
		}

		a := Announcement{DiscordID: discordID, Challenge: p.challenge}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		batch = append(batch, a)
	}

	return batch, errs
}

// solverOf finds the user who solved s.challengeID for the team. Exactly one
// matching record is expected.
func solverOf(solves []TeamSolve, s newSolve) (int, error) {
	var matches []TeamSolve
	for _, ts := range solves {
		if ts.ChallengeID == s.challengeID {
			matches = append(matches, ts)
		}
	}
	if len(matches) != 1 {
		return 0, protocolError("GET", fmt.Sprintf("teams/%d/solves", s.accountID),
			"expected one solve of challenge %d, found %d", s.challengeID, len(matches))
	}
	return matches[0].User.ID, nil
}
