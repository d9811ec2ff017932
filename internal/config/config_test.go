package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.WS.PingPeriod)
	assert.Equal(t, 5*time.Second, cfg.Session.CallTimeout)
	assert.Equal(t, "report", cfg.Session.BindFailure)
	assert.False(t, cfg.Session.DebugAck)
	assert.Equal(t, 36, cfg.Directory.MaxRoomName)
	assert.Equal(t, 8, cfg.Directory.MaxConnsPerUser)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
mode: debug
port: 9000
session:
  bind_failure: close
  max_deferred: 4
ws:
  send_buffer: 8
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("SCRUM_PORT", "9100")
	t.Setenv("SCRUM_SESSION_DEBUG_ACK", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "close", cfg.Session.BindFailure)
	assert.Equal(t, 4, cfg.Session.MaxDeferred)
	assert.True(t, cfg.Session.DebugAck)
	assert.Equal(t, 8, cfg.WS.SendBuffer)
	assert.Equal(t, 64, cfg.Session.MailboxSize)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Port = 0
	cfg.Session.BindFailure = "retry"
	cfg.WS.PongWait = time.Second

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port 0 out of range")
	assert.Contains(t, err.Error(), `session.bind_failure "retry"`)
	assert.Contains(t, err.Error(), "ws.pong_wait must exceed ws.ping_period")
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working directory
// for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
