// Package service holds the operations behind the bot's slash commands. It
// returns plain data and sentinel errors; rendering is the caller's job.
package service

import (
	"context"
	"errors"

	"github.com/duca-club/acucys-ctf/internal/ctfd"
)

// CTFd is the subset of *ctfd.Client the services call.
type CTFd interface {
	GetChallenges(ctx context.Context) ([]ctfd.Challenge, error)
	GetScoreboard(ctx context.Context) ([]ctfd.Score, error)
	GetUser(ctx context.Context, id int) (*ctfd.FullUser, error)
	GetUserFromDiscord(ctx context.Context, discordID string) (*ctfd.FullUser, bool, error)
	GetFullTeam(ctx context.Context, id int) (*ctfd.FullTeam, error)
	GetTeamSolves(ctx context.Context, id int) ([]ctfd.TeamSolve, error)
	GetTeams(ctx context.Context, invalidate bool) ([]ctfd.Team, error)
	RegisterUser(ctx context.Context, name, email, password, discordID string) (*ctfd.User, error)
}

var (
	ErrNoAccount              = errors.New("no CTFd account is linked to this Discord user")
	ErrNoTeam                 = errors.New("the account is not on a team")
	ErrUnknownCategory        = errors.New("unknown challenge category")
	ErrUnknownTeam            = errors.New("unknown team")
	ErrAlreadyRegistered      = errors.New("a CTFd account is already linked to this Discord user")
	ErrRegistrationInProgress = errors.New("a registration is already in progress")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrInvalidName            = errors.New("invalid username")
)

// AllCategories is the pseudo-category that disables filtering.
const AllCategories = "All"

// teamOf resolves the caller's team id.
func teamOf(ctx context.Context, client CTFd, discordID string) (*ctfd.FullUser, int, error) {
	user, found, err := client.GetUserFromDiscord(ctx, discordID)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		return nil, 0, ErrNoAccount
	}
	if user.TeamID == nil {
		return user, 0, ErrNoTeam
	}
	return user, *user.TeamID, nil
}
