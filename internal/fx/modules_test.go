package fx

import (
	"testing"

	"github.com/duca-club/acucys-ctf/internal/config"
	"github.com/duca-club/acucys-ctf/internal/ctfd"
	"github.com/duca-club/acucys-ctf/internal/heartbeat"
	"github.com/duca-club/acucys-ctf/internal/server"
	"github.com/duca-club/acucys-ctf/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleGraph(t *testing.T) {
	err := fx.ValidateApp(
		Module,
		fx.Invoke(func(
			*config.Config,
			*ctfd.Client,
			ctfd.Notifier,
			*heartbeat.Pusher,
			*service.ChallengeService,
			*service.ScoreboardService,
			*service.RegistrationService,
			*server.StatusServer,
		) {
		}),
	)
	require.NoError(t, err)
}
