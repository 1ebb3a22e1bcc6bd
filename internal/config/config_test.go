package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "ws://crewai.aihack.top:8003/ws", cfg.WebSocketURL())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://crew.example.com/
crew_type: research
reconnect_delay: 2s
heartbeat_interval: 0s
notify:
  desktop: true
  webhook_url: https://hooks.example.com/x
  webhook_format: feishu
`), 0o644))

	t.Setenv("CREWMON_CREW_TYPE", "marketing")
	t.Setenv("CREWMON_HTTP_TIMEOUT", "3s")
	t.Setenv("CREWMON_NOTIFY_WEBHOOK_EXTRA", "chat_id:42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://crew.example.com/", cfg.ServerURL)
	assert.Equal(t, "marketing", cfg.CrewType)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
	assert.Zero(t, cfg.HeartbeatInterval)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Notify.Desktop)
	assert.Equal(t, "feishu", cfg.Notify.WebhookFormat)
	assert.Equal(t, map[string]string{"chat_id": "42"}, cfg.Notify.WebhookExtra)
	assert.True(t, cfg.Notify.Enabled())
	assert.Equal(t, "wss://crew.example.com/ws", cfg.WebSocketURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "server_url: [unterminated"},
		{"bad scheme", "server_url: ftp://crew.example.com"},
		{"bad ws url", "ws_url: http://crew.example.com/ws"},
		{"zero reconnect", "reconnect_delay: 0s"},
		{"empty crew", `crew_type: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.WSURL = "ws://localhost:8003/ws"
	cfg.Notify.HookScript = "/usr/local/bin/crew-hook"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
	assert.Equal(t, "ws://localhost:8003/ws", got.WebSocketURL())
}
