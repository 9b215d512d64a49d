package ctfd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/duca-club/acucys-ctf/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const discordField = 3

const (
	routeStats           = "GET /api/v1/statistics/challenges/solves"
	routeChallengeSolves = "GET /api/v1/challenges/{id}/solves"
	routeChallenges      = "GET /api/v1/challenges"
	routeScoreboard      = "GET /api/v1/scoreboard"
	routeTeamSolves      = "GET /api/v1/teams/{id}/solves"
	routeTeam            = "GET /api/v1/teams/{id}"
	routeTeams           = "GET /api/v1/teams"
	routeUser            = "GET /api/v1/users/{id}"
	routeUsers           = "GET /api/v1/users"
	routeCreateUser      = "POST /api/v1/users"
)

// fakeCTFd is an in-memory CTFd API. Every field is read under mu by the
// handlers, so tests mutate state through set.
type fakeCTFd struct {
	mu sync.Mutex

	stats           []SolveStatistic
	challengeSolves map[int][]ChallengeSolve
	teamSolves      map[int][]TeamSolve
	challenges      []Challenge
	scoreboard      []Score
	users           []User
	teams           []Team
	created         []NewUser
	perPage         int

	fail  map[string]int
	delay map[string]time.Duration
	hits  map[string]int
	// lastHeaders keeps the headers of the latest request per route.
	lastHeaders map[string]http.Header
}

func newFakeCTFd() *fakeCTFd {
	return &fakeCTFd{
		challengeSolves: make(map[int][]ChallengeSolve),
		teamSolves:      make(map[int][]TeamSolve),
		perPage:         2,
		fail:            make(map[string]int),
		delay:           make(map[string]time.Duration),
		hits:            make(map[string]int),
		lastHeaders:     make(map[string]http.Header),
	}
}

func (f *fakeCTFd) set(fn func(f *fakeCTFd)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeCTFd) hitCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func (f *fakeCTFd) failRoute(route string, status int) {
	f.set(func(f *fakeCTFd) { f.fail[route] = status })
}

// slowRoute holds every response of route for d before writing it.
func (f *fakeCTFd) slowRoute(route string, d time.Duration) {
	f.set(func(f *fakeCTFd) { f.delay[route] = d })
}

func (f *fakeCTFd) healRoute(route string) {
	f.set(func(f *fakeCTFd) { delete(f.fail, route) })
}

func (f *fakeCTFd) handler() http.Handler {
	mux := http.NewServeMux()
	f.route(mux, routeStats, func(r *http.Request) (int, any) {
		return http.StatusOK, ok(f.stats)
	})
	f.route(mux, routeChallengeSolves, func(r *http.Request) (int, any) {
		return http.StatusOK, ok(nonNil(f.challengeSolves[pathID(r)]))
	})
	f.route(mux, routeChallenges, func(r *http.Request) (int, any) {
		return http.StatusOK, ok(nonNil(f.challenges))
	})
	f.route(mux, routeScoreboard, func(r *http.Request) (int, any) {
		return http.StatusOK, ok(nonNil(f.scoreboard))
	})
	f.route(mux, routeTeamSolves, func(r *http.Request) (int, any) {
		return http.StatusOK, ok(nonNil(f.teamSolves[pathID(r)]))
	})
	f.route(mux, routeTeam, func(r *http.Request) (int, any) {
		id := pathID(r)
		for _, t := range f.teams {
			if t.ID == id {
				full := FullTeam{Team: t, Place: RankOf(1), Score: 100}
				for _, u := range f.users {
					full.Members = append(full.Members, u.ID)
				}
				return http.StatusOK, ok(full)
			}
		}
		return http.StatusNotFound, map[string]any{"message": "not found"}
	})
	f.route(mux, routeTeams, func(r *http.Request) (int, any) {
		return http.StatusOK, page(r, f.teams, f.perPage)
	})
	f.route(mux, routeUser, func(r *http.Request) (int, any) {
		id := pathID(r)
		for _, u := range f.users {
			if u.ID == id {
				return http.StatusOK, ok(FullUser{User: u, Score: 10 * u.ID, Place: ParseRank("2nd")})
			}
		}
		return http.StatusNotFound, map[string]any{"message": "not found"}
	})
	f.route(mux, routeUsers, func(r *http.Request) (int, any) {
		return http.StatusOK, page(r, f.users, f.perPage)
	})
	f.route(mux, routeCreateUser, func(r *http.Request) (int, any) {
		var body NewUser
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return http.StatusBadRequest, map[string]any{"success": false, "errors": err.Error()}
		}
		f.created = append(f.created, body)
		return http.StatusOK, ok(User{ID: 100 + len(f.created), Name: body.Name})
	})
	return mux
}

func (f *fakeCTFd) route(mux *http.ServeMux, pattern string, h func(r *http.Request) (int, any)) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[pattern]++
		f.lastHeaders[pattern] = r.Header.Clone()
		status, failing := f.fail[pattern]
		var body any
		if failing {
			body = map[string]any{"success": false, "message": "injected failure"}
		} else {
			status, body = h(r)
		}
		delay := f.delay[pattern]
		f.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func ok(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(r.PathValue("id"))
	return id
}

// page serves items with CTFd's meta.pagination block.
func page[T any](r *http.Request, items []T, perPage int) map[string]any {
	n, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || n < 1 {
		n = 1
	}
	pages := max(1, (len(items)+perPage-1)/perPage)
	lo := min((n-1)*perPage, len(items))
	hi := min(lo+perPage, len(items))

	var next, prev *int
	if n < pages {
		v := n + 1
		next = &v
	}
	if n > 1 {
		v := n - 1
		prev = &v
	}

	body := ok(nonNil(items[lo:hi]))
	body["meta"] = map[string]any{"pagination": PageInfo{
		Page: n, Next: next, Prev: prev, Pages: pages, PerPage: perPage, Total: len(items),
	}}
	return body
}

func linkedUser(id int, name, discordID string) User {
	return User{ID: id, Name: name, Fields: []Field{{
		FieldID: discordField,
		Name:    "Discord ID",
		Type:    "text",
		Value:   json.RawMessage(strconv.Quote(discordID)),
	}}}
}

func testConfig(url string) *config.Config {
	return &config.Config{
		CTFdInstanceURL: url,
		CTFdAccessToken: "secret-token",
		DiscordIDField:  discordField,
		APITimeout:      2 * time.Second,
		CacheTimeout:    time.Minute,
	}
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := New(testConfig(srv.URL), zerolog.Nop())
	t.Cleanup(c.Close)
	return c, srv
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, content)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func requireAPIKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	got, isAPI := KindOf(err)
	require.True(t, isAPI, "expected an APIError, got %T: %v", err, err)
	require.Equal(t, kind, got, "error: %v", err)
}
