package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	"github.com/duca-club/acucys-ctf/internal/logger"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ScoreboardService struct {
	client CTFd
	logger zerolog.Logger
}

func NewScoreboardService(client CTFd, log zerolog.Logger) *ScoreboardService {
	return &ScoreboardService{client: client, logger: logger.Component(log, "scoreboard")}
}

// Top returns the first n scoreboard entries by rank; unranked entries sort
// last. n <= 0 means the default board size.
func (s *ScoreboardService) Top(ctx context.Context, n int) ([]ctfd.Score, error) {
	if n <= 0 {
		n = constants.ScoreboardLimit
	}

	board, err := s.client.GetScoreboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch scoreboard: %w", err)
	}

	slices.SortStableFunc(board, func(a, b ctfd.Score) int {
		switch {
		case a.Pos.Less(b.Pos):
			return -1
		case b.Pos.Less(a.Pos):
			return 1
		}
		return 0
	})
	if len(board) > n {
		board = board[:n]
	}
	return board, nil
}

type MemberScore struct {
	ID    int
	Name  string
	Score int
}

// TeamCard is a team's standing with per-member scores.
type TeamCard struct {
	ID      int
	Name    string
	Place   ctfd.Rank
	Score   int
	Members []MemberScore
}

// Team builds the card of the team called name, or of the caller's own team
// when name is empty.
func (s *ScoreboardService) Team(ctx context.Context, discordID, name string) (*TeamCard, error) {
	var teamID int
	if name = strings.TrimSpace(name); name != "" {
		id, err := s.teamByName(ctx, name)
		if err != nil {
			return nil, err
		}
		teamID = id
	} else {
		_, id, err := teamOf(ctx, s.client, discordID)
		if err != nil {
			return nil, err
		}
		teamID = id
	}

	team, err := s.client.GetFullTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("fetch team %d: %w", teamID, err)
	}

	members := make([]MemberScore, len(team.Members))
	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range team.Members {
		g.Go(func() error {
			u, err := s.client.GetUser(gCtx, id)
			if err != nil {
				return fmt.Errorf("fetch member %d: %w", id, err)
			}
			members[i] = MemberScore{ID: u.ID, Name: u.Name, Score: u.Score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Int("team_id", teamID).Msg("failed to resolve team members")
		return nil, err
	}

	slices.SortStableFunc(members, func(a, b MemberScore) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return &TeamCard{
		ID:      team.ID,
		Name:    team.Name,
		Place:   team.Place,
		Score:   team.Score,
		Members: members,
	}, nil
}

// teamByName matches name exactly against a freshly fetched roster.
func (s *ScoreboardService) teamByName(ctx context.Context, name string) (int, error) {
	teams, err := s.client.GetTeams(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("fetch teams: %w", err)
	}
	for _, t := range teams {
		if t.Name == name {
			return t.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTeam, name)
}

// TeamNames autocompletes team names from the cached roster.
func (s *ScoreboardService) TeamNames(ctx context.Context, query string) ([]string, error) {
	teams, err := s.client.GetTeams(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("fetch teams: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []string
	for _, t := range teams {
		if len(out) == constants.AutocompleteLimit {
			break
		}
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t.Name)
		}
	}
	return out, nil
}
