// Package heartbeat pings an Uptime Kuma push monitor while the bot runs.
package heartbeat

import (
	"context"
	"time"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/logger"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type Pusher struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	client   *fasthttp.Client
	logger   zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger) *Pusher {
	return &Pusher{
		url:      cfg.PushURL,
		interval: constants.HeartbeatInterval,
		timeout:  constants.HeartbeatTimeout,
		client:   &fasthttp.Client{ReadTimeout: constants.HeartbeatTimeout},
		logger:   logger.Component(log, "heartbeat"),
	}
}

// Enabled reports whether heartbeats should run for this deployment.
func Enabled(cfg *config.Config) bool {
	return cfg.BotMode == config.BotModeProduction && cfg.PushURL != ""
}

// Run pushes immediately and then every interval until ctx is done.
func (p *Pusher) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("heartbeat started")
	for {
		if err := p.Push(); err != nil {
			p.logger.Error().Err(err).Msg("heartbeat push failed")
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("heartbeat stopped")
			return
		case <-time.After(p.interval):
		}
	}
}

// Push sends one heartbeat. A non-200 answer is logged, not returned.
func (p *Pusher) Push() error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := p.client.DoTimeout(req, resp, p.timeout); err != nil {
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		p.logger.Warn().Int("status", resp.StatusCode()).Msg("push monitor answered with non-200 status")
		return nil
	}
	p.logger.Debug().Msg("heartbeat sent")
	return nil
}
