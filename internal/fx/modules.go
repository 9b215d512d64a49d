package fx

import (
	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	"github.com/duca-club/acucys-ctf/internal/heartbeat"
	"github.com/duca-club/acucys-ctf/internal/logger"
	"github.com/duca-club/acucys-ctf/internal/server"
	"github.com/duca-club/acucys-ctf/internal/service"
	"github.com/duca-club/acucys-ctf/internal/webhook"

	"go.uber.org/fx"
)

func ProvideCTFd(c *ctfd.Client) service.CTFd {
	return c
}

func ProvideStatusSource(c *ctfd.Client) server.StatusSource {
	return c
}

func ProvideNotifier(w *webhook.Client) ctfd.Notifier {
	return w
}

var Module = fx.Options(
	logger.Module,
	fx.Provide(config.Load),
	// ctfd
	fx.Provide(ctfd.New),
	fx.Provide(ProvideCTFd),
	fx.Provide(ProvideStatusSource),
	// outbound
	fx.Provide(webhook.New),
	fx.Provide(ProvideNotifier),
	fx.Provide(heartbeat.New),
	// svc
	fx.Provide(service.NewChallengeService),
	fx.Provide(service.NewScoreboardService),
	fx.Provide(service.NewRegistrationService),
	// server
	fx.Provide(server.NewStatusServer),
)
