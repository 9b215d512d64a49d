package ctfd

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Client is the stateful CTFd API client. One instance is shared by every
// command handler and the solve watcher; all of its caches are safe for
// concurrent use.
type Client struct {
	baseURL        string
	token          string
	timeout        time.Duration
	discordIDField int
	client         *fasthttp.Client
	logger         zerolog.Logger
	now            func() time.Time

	teams    *teamCache
	identity *identityCache
	solves   *solveTracker
}

func New(cfg *config.Config, log zerolog.Logger) *Client {
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = constants.DefaultAPITimeout
	}
	ttl := cfg.CacheTimeout
	if ttl <= 0 {
		ttl = constants.DefaultTeamCacheTTL
	}

	return &Client{
		baseURL:        cfg.APIBaseURL(),
		token:          cfg.CTFdAccessToken,
		timeout:        timeout,
		discordIDField: cfg.DiscordIDField,
		client: &fasthttp.Client{
			MaxConnsPerHost:     constants.HTTPMaxConnsPerHost,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: constants.HTTPMaxIdleConnDuration,
			// retries belong to callers, never to the transport
			MaxIdemponentCallAttempts: 1,
		},
		logger:   logger.Component(log, "ctfd"),
		now:      time.Now,
		teams:    newTeamCache(ttl),
		identity: newIdentityCache(),
		solves:   newSolveTracker(),
	}
}

// Close releases the pooled connections. The client must not be used after.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
	c.logger.Debug().Msg("ctfd client closed")
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs one call against endpoint (relative to /api/v1/) and
// decodes the envelope into T. It never retries.
func doRequest[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*Envelope[T], error) {
	endpoint = strings.TrimPrefix(endpoint, "/")

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &APIError{Kind: KindProtocol, Method: method, Endpoint: endpoint, Message: "encode request body", Err: err}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, transportError(method, endpoint, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + endpoint)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.SetContentType("application/json")
	if payload != nil {
		req.SetBodyRaw(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("endpoint", endpoint).Dur("duration", time.Since(start)).Msg("ctfd request failed")
		return nil, transportError(method, endpoint, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("ctfd request")

	return decodeEnvelope[T](method, endpoint, resp.StatusCode(), resp.Body())
}

func transportError(method, endpoint string, err error) *APIError {
	kind := KindTransport
	var netErr net.Error
	switch {
	case errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.Is(err, fasthttp.ErrTLSHandshakeTimeout),
		errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &APIError{Kind: kind, Method: method, Endpoint: endpoint, Err: err}
}
