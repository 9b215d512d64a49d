package service

import (
	"context"
	"sync"

	"github.com/duca-club/acucys-ctf/internal/ctfd"
)

// fakeCTFd implements CTFd over in-memory fixtures.
type fakeCTFd struct {
	mu sync.Mutex

	challenges []ctfd.Challenge
	scoreboard []ctfd.Score
	users      map[int]ctfd.FullUser
	discord    map[string]int
	teams      map[int]ctfd.FullTeam
	teamSolves map[int][]ctfd.TeamSolve
	registered []ctfd.NewUser

	err           error
	invalidations int
	userLookups   int
}

func newFakeCTFd() *fakeCTFd {
	return &fakeCTFd{
		users:      make(map[int]ctfd.FullUser),
		discord:    make(map[string]int),
		teams:      make(map[int]ctfd.FullTeam),
		teamSolves: make(map[int][]ctfd.TeamSolve),
	}
}

func (f *fakeCTFd) addUser(id int, name, discordID string, teamID *int, score int) {
	f.users[id] = ctfd.FullUser{User: ctfd.User{ID: id, Name: name}, TeamID: teamID, Score: score}
	if discordID != "" {
		f.discord[discordID] = id
	}
}

func (f *fakeCTFd) GetChallenges(context.Context) ([]ctfd.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ctfd.Challenge(nil), f.challenges...), f.err
}

func (f *fakeCTFd) GetScoreboard(context.Context) ([]ctfd.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ctfd.Score(nil), f.scoreboard...), f.err
}

func (f *fakeCTFd) GetUser(_ context.Context, id int) (*ctfd.FullUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userLookups++
	u, ok := f.users[id]
	if !ok {
		return nil, &ctfd.APIError{Kind: ctfd.KindProtocol, Status: 404}
	}
	return &u, f.err
}

func (f *fakeCTFd) GetUserFromDiscord(_ context.Context, discordID string) (*ctfd.FullUser, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	id, ok := f.discord[discordID]
	if !ok {
		return nil, false, nil
	}
	u := f.users[id]
	return &u, true, nil
}

func (f *fakeCTFd) GetFullTeam(_ context.Context, id int) (*ctfd.FullTeam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.teams[id]
	if !ok {
		return nil, &ctfd.APIError{Kind: ctfd.KindProtocol, Status: 404}
	}
	return &t, nil
}

func (f *fakeCTFd) GetTeamSolves(_ context.Context, id int) ([]ctfd.TeamSolve, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teamSolves[id], nil
}

func (f *fakeCTFd) GetTeams(_ context.Context, invalidate bool) ([]ctfd.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if invalidate {
		f.invalidations++
	}
	var out []ctfd.Team
	for _, t := range f.teams {
		out = append(out, t.Team)
	}
	return out, nil
}

func (f *fakeCTFd) RegisterUser(_ context.Context, name, email, password, discordID string) (*ctfd.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.registered = append(f.registered, ctfd.NewUser{Name: name, Email: email, Password: password,
		Fields: []ctfd.NewFieldValue{{FieldID: 3, Value: discordID}}})
	return &ctfd.User{ID: 500 + len(f.registered), Name: name}, nil
}

func intPtr(v int) *int {
	return &v
}
