package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/duca-club/acucys-ctf/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discordStub struct {
	mu       sync.Mutex
	status   int
	contents []string
}

func (d *discordStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	d.mu.Lock()
	d.contents = append(d.contents, msg.Content)
	status := d.status
	d.mu.Unlock()
	w.WriteHeader(status)
	if status >= 300 {
		_, _ = w.Write([]byte(`{"message": "Invalid Webhook Token"}`))
	}
}

func newStubClient(t *testing.T, status int) (*Client, *discordStub) {
	t.Helper()
	stub := &discordStub{status: status}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return New(&config.Config{WebhookURL: srv.URL + "/api/webhooks/1/token"}, zerolog.Nop()), stub
}

func TestNotify(t *testing.T) {
	c, stub := newStubClient(t, http.StatusNoContent)

	require.NoError(t, c.Notify(context.Background(), "<@555> just solved X!"))
	assert.Equal(t, []string{"<@555> just solved X!"}, stub.contents)
}

func TestNotifySplitsLongBatches(t *testing.T) {
	c, stub := newStubClient(t, http.StatusOK)

	line := "<@123456789012345678> just solved " + strings.Repeat("x", 60) + "!"
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = line
	}

	require.NoError(t, c.Notify(context.Background(), strings.Join(lines, "\n")))
	require.Greater(t, len(stub.contents), 1)

	var total int
	for _, content := range stub.contents {
		assert.LessOrEqual(t, len(content), 2000)
		total += len(strings.Split(content, "\n"))
	}
	assert.Equal(t, 40, total)
}

func TestNotifyRejectsErrorStatus(t *testing.T) {
	c, _ := newStubClient(t, http.StatusUnauthorized)

	err := c.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid Webhook Token")
}
