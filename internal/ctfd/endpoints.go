package ctfd

import (
	"context"
	"fmt"
)

func (c *Client) GetScoreboard(ctx context.Context) ([]Score, error) {
	env, err := doRequest[[]Score](ctx, c, "GET", "scoreboard", nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetChallenges(ctx context.Context) ([]Challenge, error) {
	env, err := doRequest[[]Challenge](ctx, c, "GET", "challenges", nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetUser(ctx context.Context, id int) (*FullUser, error) {
	env, err := doRequest[FullUser](ctx, c, "GET", fmt.Sprintf("users/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// GetUserFromDiscord returns the account linked to discordID. found is false
// when no account carries that Discord id.
func (c *Client) GetUserFromDiscord(ctx context.Context, discordID string) (user *FullUser, found bool, err error) {
	userID, ok, err := c.ResolveDiscord(ctx, discordID)
	if err != nil || !ok {
		return nil, false, err
	}
	user, err = c.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (c *Client) GetFullTeam(ctx context.Context, id int) (*FullTeam, error) {
	env, err := doRequest[FullTeam](ctx, c, "GET", fmt.Sprintf("teams/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) GetTeamSolves(ctx context.Context, id int) ([]TeamSolve, error) {
	env, err := doRequest[[]TeamSolve](ctx, c, "GET", fmt.Sprintf("teams/%d/solves", id), nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetSolveStatistics(ctx context.Context) ([]SolveStatistic, error) {
	env, err := doRequest[[]SolveStatistic](ctx, c, "GET", "statistics/challenges/solves", nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) GetChallengeSolves(ctx context.Context, challengeID int) ([]ChallengeSolve, error) {
	env, err := doRequest[[]ChallengeSolve](ctx, c, "GET", fmt.Sprintf("challenges/%d/solves", challengeID), nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// RegisterUser creates an account with discordID stored in the Discord id
// custom field, and links it in the identity cache.
func (c *Client) RegisterUser(ctx context.Context, name, email, password, discordID string) (*User, error) {
	body := NewUser{
		Name:     name,
		Email:    email,
		Password: password,
		Fields:   []NewFieldValue{{FieldID: c.discordIDField, Value: discordID}},
	}

	env, err := doRequest[User](ctx, c, "POST", "users", body)
	if err != nil {
		return nil, err
	}

	if id, ok := NormalizeDiscordID(discordID); ok {
		c.identity.insert(map[string]int{id: env.Data.ID})
	}
	c.logger.Info().Int("user_id", env.Data.ID).Str("discord_id", discordID).Msg("registered user")
	return &env.Data, nil
}
