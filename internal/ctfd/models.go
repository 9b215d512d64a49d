package ctfd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Rank is a scoreboard position. CTFd reports it as a number ("pos"), as an
// ordinal string ("place": "3rd"), or not at all for hidden/banned accounts.
type Rank struct {
	Value  int
	Ranked bool
}

func RankOf(v int) Rank {
	return Rank{Value: v, Ranked: true}
}

func (r *Rank) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = Rank{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ParseRank(s)
		return nil
	}

	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("rank: %w", err)
	}
	*r = RankOf(n)
	return nil
}

func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Ranked {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(r.Value)), nil
}

func (r Rank) String() string {
	if !r.Ranked {
		return "-"
	}
	return strconv.Itoa(r.Value)
}

// Less orders ranked entries by position and unranked entries last.
func (r Rank) Less(other Rank) bool {
	switch {
	case r.Ranked && other.Ranked:
		return r.Value < other.Value
	default:
		return r.Ranked && !other.Ranked
	}
}

// ParseRank keeps only the digits of s; nothing left means unranked.
func ParseRank(s string) Rank {
	var digits strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return Rank{}
	}
	return RankOf(n)
}

type Member struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	OauthID     *int    `json:"oauth_id"`
	Score       *int    `json:"score"`
	BracketID   *int    `json:"bracket_id"`
	BracketName *string `json:"bracket_name"`
}

func (m Member) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.Name, validation.Required),
	)
}

// Score is one scoreboard entry.
type Score struct {
	Pos         Rank        `json:"pos"`
	AccountID   int         `json:"account_id"`
	AccountURL  string      `json:"account_url"`
	AccountType AccountType `json:"account_type"`
	OauthID     *int        `json:"oauth_id"`
	Name        string      `json:"name"`
	Score       int         `json:"score"`
	BracketID   *int        `json:"bracket_id"`
	BracketName *string     `json:"bracket_name"`
	Members     []Member    `json:"members"`
}

func (s Score) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.AccountID, validation.Required),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.AccountType, validation.Required),
		validation.Field(&s.Members),
	)
}

type Challenge struct {
	ID         int           `json:"id"`
	Type       ChallengeType `json:"type"`
	Name       string        `json:"name"`
	Value      int           `json:"value"`
	Solves     int           `json:"solves"`
	SolvedByMe bool          `json:"solved_by_me"`
	Category   string        `json:"category"`
	Tags       []string      `json:"tags"`
	Template   string        `json:"template"`
	Script     string        `json:"script"`
}

func (c Challenge) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Type, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

// Field is a custom profile field value attached to a user or team.
type Field struct {
	FieldID     int             `json:"field_id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Value       json.RawMessage `json:"value"`
}

// StringValue renders the field value; numbers keep their literal text.
func (f Field) StringValue() string {
	return renderRaw(f.Value)
}

type User struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Website     *string `json:"website"`
	Affiliation *string `json:"affiliation"`
	Country     *string `json:"country"`
	BracketID   *int    `json:"bracket_id"`
	OauthID     *int    `json:"oauth_id"`
	Fields      []Field `json:"fields"`
}

func (u User) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Required),
		validation.Field(&u.Name, validation.Required),
	)
}

// FieldValue returns the value of custom field id, if the user has it set.
func (u User) FieldValue(id int) (string, bool) {
	for _, f := range u.Fields {
		if f.FieldID == id {
			v := f.StringValue()
			return v, v != ""
		}
	}
	return "", false
}

type FullUser struct {
	User
	TeamID *int `json:"team_id"`
	Score  int  `json:"score"`
	Place  Rank `json:"place"`
}

type Team struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Email       *string `json:"email"`
	Website     *string `json:"website"`
	Affiliation *string `json:"affiliation"`
	Country     *string `json:"country"`
	BracketID   *int    `json:"bracket_id"`
	OauthID     *int    `json:"oauth_id"`
	CaptainID   *int    `json:"captain_id"`
	Fields      []Field `json:"fields"`
}

func (t Team) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Name, validation.Required),
	)
}

type FullTeam struct {
	Team
	Members []int `json:"members"`
	Place   Rank  `json:"place"`
	Score   int   `json:"score"`
}

// SolveStatistic is the per-challenge solve counter used to detect deltas.
type SolveStatistic struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Solves int    `json:"solves"`
}

func (s SolveStatistic) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Name, validation.Required),
	)
}

// Timestamp is a solve time. CTFd emits ISO 8601, with or without a zone
// offset; zone-less values are taken as UTC. null or "" leave it zero.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = Timestamp{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised format %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Format(time.RFC3339Nano))
}

// ChallengeSolve is one recorded solve of a challenge, keyed by account.
type ChallengeSolve struct {
	AccountID  int       `json:"account_id"`
	Name       string    `json:"name"`
	Date       Timestamp `json:"date"`
	AccountURL string    `json:"account_url"`
}

func (s ChallengeSolve) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.AccountID, validation.Required),
	)
}

// UserAccount reports whether the solving account is a user rather than a
// team, which is the case when the CTF runs in user mode.
func (s ChallengeSolve) UserAccount() bool {
	return strings.Contains(s.AccountURL, "/users/")
}

type SolveUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SolveTeam struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SolveChallenge struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Value    int    `json:"value"`
}

// TeamSolve links a solve to the user, team and challenge involved.
type TeamSolve struct {
	ID          int            `json:"id"`
	ChallengeID int            `json:"challenge_id"`
	Challenge   SolveChallenge `json:"challenge"`
	User        SolveUser      `json:"user"`
	Team        *SolveTeam     `json:"team"`
	Date        Timestamp      `json:"date"`
	Type        string         `json:"type"`
}

func (s TeamSolve) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ChallengeID, validation.Required),
		validation.Field(&s.User),
	)
}

func (u SolveUser) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ID, validation.Required),
	)
}

// NewUser is the body of an account creation request.
type NewUser struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Fields   []NewFieldValue `json:"fields,omitempty"`
}

type NewFieldValue struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}
