package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type BotMode string

const (
	BotModeDevelopment BotMode = "dev"
	BotModeProduction  BotMode = "prod"
)

type Config struct {
	CTFdInstanceURL string
	CTFdAccessToken string
	EventName       string
	WebhookURL      string
	DiscordIDField  int
	BotToken        string
	FeedbackURL     string
	PushURL         string

	WebhookFrequency time.Duration
	APITimeout       time.Duration
	CacheTimeout     time.Duration
	RegisterTimeout  time.Duration

	BotMode    BotMode
	StatusPort string
	LogLevel   zerolog.Level
}

// APIBaseURL is the CTFd REST root every endpoint path is resolved against.
func (c *Config) APIBaseURL() string {
	return c.CTFdInstanceURL + "/api/v1/"
}

// entry is one environment key: its default (when not required) and how the
// raw string is applied to the config.
type entry struct {
	key      string
	required bool
	fallback string
	apply    func(cfg *Config, value string) error
}

var entries = []entry{
	{key: "CTFD_INSTANCE_URL", required: true, apply: func(c *Config, v string) (err error) {
		c.CTFdInstanceURL, err = NormalizeURL(v)
		return err
	}},
	{key: "CTFD_ACCESS_TOKEN", required: true, apply: func(c *Config, v string) error {
		c.CTFdAccessToken = v
		return nil
	}},
	{key: "EVENT_NAME", required: true, apply: func(c *Config, v string) error {
		c.EventName = v
		return nil
	}},
	{key: "WEBHOOK_URL", required: true, apply: func(c *Config, v string) error {
		c.WebhookURL = v
		return nil
	}},
	{key: "DISCORD_ID_FIELD", required: true, apply: func(c *Config, v string) (err error) {
		c.DiscordIDField, err = parsePositiveInt(v)
		return err
	}},
	{key: "BOT_TOKEN", required: true, apply: func(c *Config, v string) error {
		c.BotToken = v
		return nil
	}},
	{key: "FEEDBACK_URL", apply: func(c *Config, v string) error {
		c.FeedbackURL = v
		return nil
	}},
	{key: "PUSH_URL", apply: func(c *Config, v string) (err error) {
		if v == "" {
			return nil
		}
		c.PushURL, err = NormalizeURL(v)
		return err
	}},
	{key: "WEBHOOK_FREQUENCY", fallback: "10", apply: func(c *Config, v string) (err error) {
		c.WebhookFrequency, err = parseSeconds(v)
		return err
	}},
	{key: "API_TIMEOUT", fallback: "5", apply: func(c *Config, v string) (err error) {
		c.APITimeout, err = parseSeconds(v)
		return err
	}},
	{key: "CACHE_TIMEOUT", fallback: "60", apply: func(c *Config, v string) (err error) {
		c.CacheTimeout, err = parseSeconds(v)
		return err
	}},
	{key: "REGISTER_TIMEOUT", fallback: "60", apply: func(c *Config, v string) (err error) {
		c.RegisterTimeout, err = parseSeconds(v)
		return err
	}},
	{key: "BOT_MODE", fallback: string(BotModeDevelopment), apply: func(c *Config, v string) (err error) {
		c.BotMode, err = parseBotMode(v)
		return err
	}},
	{key: "STATUS_PORT", fallback: "8080", apply: func(c *Config, v string) error {
		c.StatusPort = v
		return nil
	}},
	{key: "LOG_LEVEL", fallback: "info", apply: func(c *Config, v string) (err error) {
		c.LogLevel, err = zerolog.ParseLevel(strings.ToLower(v))
		return err
	}},
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := FromViper(newViper())
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(cfg.LogLevel)

	logger.Info().
		Str("ctfd_instance_url", cfg.CTFdInstanceURL).
		Str("event_name", cfg.EventName).
		Int("discord_id_field", cfg.DiscordIDField).
		Str("bot_mode", string(cfg.BotMode)).
		Bool("push_enabled", cfg.PushURL != "").
		Dur("webhook_frequency", cfg.WebhookFrequency).
		Dur("api_timeout", cfg.APITimeout).
		Dur("cache_timeout", cfg.CacheTimeout).
		Dur("register_timeout", cfg.RegisterTimeout).
		Str("status_port", cfg.StatusPort).
		Str("log_level", cfg.LogLevel.String()).
		Msg("configuration loaded")

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for _, e := range entries {
		if !e.required {
			v.SetDefault(e.key, e.fallback)
		}
	}
	return v
}

// FromViper validates every entry eagerly and fails on the first bad one.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	for _, e := range entries {
		value := strings.TrimSpace(v.GetString(e.key))
		if value == "" && e.required {
			return nil, fmt.Errorf("missing required environment variable: %s", e.key)
		}
		if err := e.apply(cfg, value); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", e.key, err)
		}
	}
	return cfg, nil
}

// NormalizeURL defaults the scheme to https and drops trailing slashes,
// query and fragment.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func parsePositiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected positive integer, got %q", value)
	}
	return n, nil
}

func parseSeconds(value string) (time.Duration, error) {
	n, err := parsePositiveInt(value)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parseBotMode(value string) (BotMode, error) {
	switch mode := BotMode(strings.ToLower(value)); mode {
	case BotModeDevelopment, BotModeProduction:
		return mode, nil
	default:
		return "", fmt.Errorf("expected bot mode, got %q", value)
	}
}

var Module = fx.Provide(Load)
