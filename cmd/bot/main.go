package main

import (
	"context"
	"sync"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/constants"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	fxmodules "github.com/duca-club/acucys-ctf/internal/fx"
	"github.com/duca-club/acucys-ctf/internal/heartbeat"
	"github.com/duca-club/acucys-ctf/internal/server"
	"github.com/duca-club/acucys-ctf/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runBot),
	).Run()
}

func runBot(
	lc fx.Lifecycle,
	cfg *config.Config,
	client *ctfd.Client,
	notifier ctfd.Notifier,
	pusher *heartbeat.Pusher,
	challenges *service.ChallengeService,
	status *server.StatusServer,
	logger zerolog.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	interval := cfg.WebhookFrequency
	if interval <= 0 {
		interval = constants.DefaultSolvePollEvery
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			loadCtx, loadCancel := context.WithTimeout(startCtx, constants.ChallengeCategoryWarmup)
			defer loadCancel()
			if err := challenges.LoadCategories(loadCtx); err != nil {
				// autocomplete stays empty until the next restart
				logger.Error().Err(err).Msg("failed to load challenge categories")
			}

			if err := status.Start(); err != nil {
				return err
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				client.WatchSolves(ctx, interval, notifier)
			}()

			if heartbeat.Enabled(cfg) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					pusher.Run(ctx)
				}()
			}

			logger.Info().Str("event", cfg.EventName).Str("bot_mode", string(cfg.BotMode)).Msg("bot started")
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info().Msg("shutting down bot")
			cancel()
			wg.Wait()

			err := status.Shutdown(stopCtx)
			if err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
			}
			client.Close()
			logger.Info().Msg("bot stopped gracefully")
			return err
		},
	})
}
