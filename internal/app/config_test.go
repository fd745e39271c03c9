package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 14*24*time.Hour, cfg.Invitations.Expiry)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, "@hourly", cfg.Maintenance.RetireSchedule)
	require.Equal(t, 30, cfg.Maintenance.NotificationRetention)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  log_level: debug
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: accesshub
  name: accesshub
invitations:
  expiry: 72h
email:
  smtp:
    enabled: true
    host: smtp.internal
    port: 587
    from: noreply@example.com
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 72*time.Hour, cfg.Invitations.Expiry)
	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "noreply@example.com", cfg.Email.SMTP.From)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ACCESSHUB_SERVER_PORT", "3000")
	t.Setenv("ACCESSHUB_DATABASE_DRIVER", "mysql")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, "mysql", cfg.Database.Driver)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("ACCESSHUB_SERVER_PORT", "-1")
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
