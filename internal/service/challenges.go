package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	"github.com/duca-club/acucys-ctf/internal/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ChallengeInfo struct {
	ID    int
	Name  string
	Value int
}

// Category is a named group of challenges in order of first appearance.
type Category struct {
	Name       string
	Challenges []ChallengeInfo
}

type ChallengeService struct {
	client CTFd
	logger zerolog.Logger

	mu         sync.RWMutex
	categories []Category
	total      int
}

func NewChallengeService(client CTFd, log zerolog.Logger) *ChallengeService {
	return &ChallengeService{client: client, logger: logger.Component(log, "challenges")}
}

// LoadCategories snapshots the challenge categories used for autocomplete
// and progress totals.
func (s *ChallengeService) LoadCategories(ctx context.Context) error {
	challenges, err := s.client.GetChallenges(ctx)
	if err != nil {
		return fmt.Errorf("load challenge categories: %w", err)
	}

	categories := groupByCategory(challenges)

	s.mu.Lock()
	s.categories = categories
	s.total = len(challenges)
	s.mu.Unlock()

	s.logger.Info().Int("categories", len(categories)).Int("challenges", len(challenges)).Msg("challenge categories loaded")
	return nil
}

// Total is the number of challenges seen by the last LoadCategories.
func (s *ChallengeService) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func groupByCategory(challenges []ctfd.Challenge) []Category {
	index := make(map[string]int)
	var out []Category
	for _, c := range challenges {
		i, ok := index[c.Category]
		if !ok {
			i = len(out)
			index[c.Category] = i
			out = append(out, Category{Name: c.Category})
		}
		out[i].Challenges = append(out[i].Challenges, ChallengeInfo{ID: c.ID, Name: c.Name, Value: c.Value})
	}
	return out
}

// Categories autocompletes category names with a case-insensitive substring
// match. "All" is offered whenever it matches too.
func (s *ChallengeService) Categories(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, c := range s.categories {
		if len(out) == constants.AutocompleteLimit {
			return out
		}
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c.Name)
		}
	}
	if len(out) < constants.AutocompleteLimit && strings.Contains(strings.ToLower(AllCategories), q) {
		out = append(out, AllCategories)
	}
	return out
}

// List fetches the live challenge list, optionally limited to one category.
func (s *ChallengeService) List(ctx context.Context, category string) ([]Category, error) {
	challenges, err := s.client.GetChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return filterCategory(groupByCategory(challenges), category)
}

func filterCategory(categories []Category, name string) ([]Category, error) {
	if isAll(name) {
		return categories, nil
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return []Category{c}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

func isAll(category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || strings.EqualFold(category, AllCategories)
}

type ChallengeProgress struct {
	ChallengeInfo
	Solved bool
	// SolvedBy names the team member who solved it.
	SolvedBy string
}

type CategoryProgress struct {
	Name       string
	Challenges []ChallengeProgress
}

type Progress struct {
	Team       string
	Solved     int
	Total      int
	Categories []CategoryProgress
}

// Progress reports which of the loaded challenges the caller's team has
// solved, and by whom.
func (s *ChallengeService) Progress(ctx context.Context, discordID, category string) (*Progress, error) {
	_, teamID, err := teamOf(ctx, s.client, discordID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	categories, err := filterCategory(s.categories, category)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var team *ctfd.FullTeam
	var solves []ctfd.TeamSolve
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		team, err = s.client.GetFullTeam(gCtx, teamID)
		return err
	})
	g.Go(func() error {
		var err error
		solves, err = s.client.GetTeamSolves(gCtx, teamID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Int("team_id", teamID).Msg("failed to fetch team progress")
		return nil, fmt.Errorf("fetch team progress: %w", err)
	}

	solvedBy := make(map[int]string, len(solves))
	for _, ts := range solves {
		solvedBy[ts.ChallengeID] = ts.User.Name
	}

	p := &Progress{Team: team.Name}
	for _, c := range categories {
		cp := CategoryProgress{Name: c.Name}
		for _, ch := range c.Challenges {
			by, solved := solvedBy[ch.ID]
			if solved {
				p.Solved++
			}
			p.Total++
			cp.Challenges = append(cp.Challenges, ChallengeProgress{ChallengeInfo: ch, Solved: solved, SolvedBy: by})
		}
		p.Categories = append(p.Categories, cp)
	}
	return p, nil
}
