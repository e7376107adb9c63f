package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/toil-engine/generic"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TOIL_REDIS_PASSWORD", "s3cret")
	dbPath := filepath.Join(t.TempDir(), "nested", "toil.db")

	cfg, err := Load(writeConfig(t, `
database:
  path: `+dbPath+`
redis:
  address: localhost:6379
  password: ${TOIL_REDIS_PASSWORD}
engine:
  fortnight_anchor: "2025-06-02"
  default_daily_hours: 7.5
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Redis.Password)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, "7.5", cfg.DailyFallback().String())

	fc, err := cfg.Fortnight()
	require.NoError(t, err)
	assert.True(t, fc.Anchor.Equal(generic.NewTimePoint(2025, time.June, 2)))

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "database directory is created")
}

func TestLoad_RejectsBadAnchor(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  fortnight_anchor: next monday\ndatabase:\n  path: \":memory:\"\n"))
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "data/toil.db", cfg.Database.Path)
	assert.False(t, cfg.RedisEnabled())
	assert.True(t, cfg.DailyFallback().IsZero())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())

	fc, err := cfg.Fortnight()
	require.NoError(t, err)
	assert.True(t, fc.Anchor.Equal(generic.DefaultFortnightAnchor))
}
