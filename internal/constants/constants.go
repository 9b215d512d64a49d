package constants

import "time"

const (
	DefaultTeamCacheTTL     = 60 * time.Second
	DefaultSolvePollEvery   = 10 * time.Second
	DefaultRegisterTimeout  = 60 * time.Second
	HeartbeatInterval       = 60 * time.Second
	ChallengeCategoryWarmup = 15 * time.Second
)

const (
	DefaultAPITimeout = 5 * time.Second
	HeartbeatTimeout  = 10 * time.Second
	WebhookTimeout    = 10 * time.Second
	ShutdownTimeout   = 5 * time.Second

	StatusReadHeaderTimeout = 3 * time.Second
)

const (
	HTTPMaxConnsPerHost     = 100
	HTTPMaxIdleConnDuration = 1 * time.Minute
)

const (
	ScoreboardLimit     = 10
	AutocompleteLimit   = 25
	MaxDescriptionLen   = 4096
	MaxWebhookContent   = 2000
	MaxEmailAttempts    = 5
	TempPasswordLength  = 8
	TempPasswordCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)
