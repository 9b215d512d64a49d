// Package webhook posts plain-text messages to a Discord webhook.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/duca-club/acucys-ctf/internal/chunk"
	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/logger"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type Client struct {
	url      string
	timeout  time.Duration
	maxChars int
	client   *fasthttp.Client
	logger   zerolog.Logger
}

func New(cfg *config.Config, log zerolog.Logger) *Client {
	return &Client{
		url:      cfg.WebhookURL,
		timeout:  constants.WebhookTimeout,
		maxChars: constants.MaxWebhookContent,
		client: &fasthttp.Client{
			ReadTimeout:               constants.WebhookTimeout,
			WriteTimeout:              constants.WebhookTimeout,
			MaxIdemponentCallAttempts: 1,
		},
		logger: logger.Component(log, "webhook"),
	}
}

type message struct {
	Content string `json:"content"`
}

// Notify posts content as one message, or as several consecutive messages
// split on line boundaries when it exceeds Discord's content limit.
func (c *Client) Notify(ctx context.Context, content string) error {
	for _, part := range chunk.Lines(content, c.maxChars) {
		if err := c.post(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, content string) error {
	body, err := json.Marshal(message{Content: content})
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned %d: %s", status, strings.TrimSpace(string(resp.Body())))
	}

	c.logger.Debug().Int("chars", len(content)).Msg("webhook message sent")
	return nil
}
