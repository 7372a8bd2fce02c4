package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, 30*time.Second, cfg.AppRequestTimeout)
	require.Equal(t, 3, cfg.ReconcileWindowDays)
	require.True(t, cfg.Tolerance().IsZero())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RECONCILE_TOLERANCE", "0.05")
	t.Setenv("RECONCILE_WINDOW_DAYS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "0.05", cfg.Tolerance().StringFixed(2))
	require.Equal(t, 7, cfg.ReconcileWindowDays)
}

func TestLoadConfigRejectsBadTolerance(t *testing.T) {
	t.Setenv("RECONCILE_TOLERANCE", "lots")
	_, err := LoadConfig()
	require.Error(t, err)
}
