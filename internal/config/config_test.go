package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-id/gatekeeper/internal/config"
	"github.com/gatekeeper-id/gatekeeper/sessions"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "Gatekeeper", cfg.AppName)
	require.Equal(t, ":8080", cfg.Listen)
	require.False(t, cfg.UnixSocket())
	require.Equal(t, time.Hour, cfg.SessionTTL)
	require.Equal(t, -1, cfg.SocketUID, "ownership left unchanged by default")
	require.Equal(t, -1, cfg.SocketGID)

	flow := cfg.Flow()
	require.Equal(t, []sessions.StepKind{sessions.StepPrimary, sessions.StepOTP}, flow.Required)
	require.Equal(t, 3, flow.RetryBudget)
	require.NoError(t, flow.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LISTEN", "/run/gatekeeper.sock")
	t.Setenv("AUTH_STEPS", "primary, otp, device")
	t.Setenv("AUTH_STEP_RETRY_LIMIT", "5")

	t.Setenv("SOCKET_MODE", "0770")
	t.Setenv("SOCKET_UID", "1000")
	t.Setenv("SOCKET_GID", "1001")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.True(t, cfg.UnixSocket())
	require.Equal(t, 1000, cfg.SocketUID)
	require.Equal(t, 1001, cfg.SocketGID)

	mode, err := cfg.SocketFileMode()
	require.NoError(t, err)
	require.Equal(t, "-rwxrwx---", mode.String())

	flow := cfg.Flow()
	require.Equal(t, []sessions.StepKind{
		sessions.StepPrimary, sessions.StepOTP, sessions.StepDeviceTrust,
	}, flow.Required)
	require.Equal(t, 5, flow.RetryBudget)
}

func TestLoadRejectsEmptyFlow(t *testing.T) {
	t.Setenv("AUTH_STEPS", "primary,primary")
	_, err := config.Load()
	require.Error(t, err)
}
