package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", c.App.Env)
	require.Equal(t, ":4040", c.Server.Addr)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, "accounts", c.FirstParty.Client)
	require.Equal(t, time.Hour, Duration(c.Token.Accessible))
	require.Equal(t, 30*24*time.Hour, Duration(c.Token.Refreshable))
	require.Equal(t, 20*time.Second, Duration(c.Token.MinAccessibility))
	require.Equal(t, 4, c.Refresh.RetryAttempts)
	require.Equal(t, 500*time.Millisecond, Duration(c.Refresh.RetryDelay))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
app:
  env: prod
server:
  addr: ":9000"
storage:
  driver: postgres
  dsn: postgres://localhost/tokend
token:
  accessible: 2h
  min_accessibility: 45s
refresh:
  retry_attempts: 2
firstparty:
  client: platform
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "prod", c.App.Env)
	require.Equal(t, ":9000", c.Server.Addr)
	require.Equal(t, "postgres", c.Storage.Driver)
	require.Equal(t, 2*time.Hour, Duration(c.Token.Accessible))
	require.Equal(t, 45*time.Second, Duration(c.Token.MinAccessibility))
	require.Equal(t, 2, c.Refresh.RetryAttempts)
	require.Equal(t, "platform", c.FirstParty.Client)
	// untouched keys keep their defaults
	require.Equal(t, "500ms", c.Refresh.RetryDelay)
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":8123")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", "file:tokend.db")
	t.Setenv("TOKEN_MIN_ACCESSIBILITY", "5s")
	t.Setenv("REFRESH_RETRY_ATTEMPTS", "7")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8123", c.Server.Addr)
	require.Equal(t, "sqlite", c.Storage.Driver)
	require.Equal(t, "file:tokend.db", c.Storage.DSN)
	require.Equal(t, 5*time.Second, Duration(c.Token.MinAccessibility))
	require.Equal(t, 7, c.Refresh.RetryAttempts)
}

func TestBadDurationRejected(t *testing.T) {
	t.Setenv("TOKEN_ACCESSIBLE", "soon")

	_, err := Load("")
	require.Error(t, err)
}
