package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"crewmon/internal/config"
	"crewmon/internal/output"
	"crewmon/internal/ui"
)

func RunConfigPath() {
	if configFlag != "" {
		config.ConfigPath = configFlag
	}
	output.Print(map[string]string{"path": config.ConfigPath}, func() {
		fmt.Fprintln(ui.Out, config.ConfigPath)
	})
}

// RunConfigShow prints the effective configuration.
func RunConfigShow() {
	cfg := loadRuntimeConfig()
	output.Print(cfg, func() {
		ui.ShowHeader("crewmon configuration")
		ui.ShowField("config file", config.ConfigPath)
		ui.ShowField("server_url", cfg.ServerURL)
		ui.ShowField("ws_url", cfg.WebSocketURL())
		ui.ShowField("crew_type", cfg.CrewType)
		ui.ShowField("reconnect_delay", cfg.ReconnectDelay)
		ui.ShowField("heartbeat_interval", heartbeatLabel(cfg.HeartbeatInterval))
		ui.ShowField("http_timeout", cfg.HTTPTimeout)
		if cfg.LogFile != "" {
			ui.ShowField("log_file", cfg.LogFile)
		}
		ui.ShowField("notify.desktop", cfg.Notify.Desktop)
		if cfg.Notify.WebhookURL != "" {
			ui.ShowField("notify.webhook", fmt.Sprintf("%s (%s)", cfg.Notify.WebhookURL, cfg.Notify.WebhookFormat))
		}
		if cfg.Notify.HookScript != "" {
			ui.ShowField("notify.hook_script", cfg.Notify.HookScript)
		}
	})
}

func heartbeatLabel(d time.Duration) string {
	if d == 0 {
		return "off"
	}
	return d.String()
}

// RunConfigInit writes the default configuration. An existing file is
// kept unless force is set.
func RunConfigInit(force bool) {
	if configFlag != "" {
		config.ConfigPath = configFlag
	}
	path := config.ConfigPath

	_, err := os.Stat(path)
	switch {
	case err == nil && !force:
		output.PrintError(fmt.Errorf("%s already exists (use --force to overwrite)", path))
		return
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		output.PrintError(err)
		return
	}

	if err := config.Save(path, config.Default()); err != nil {
		output.PrintError(fmt.Errorf("write config: %w", err))
		return
	}
	output.Print(map[string]string{"path": path}, func() {
		ui.ShowSuccess("Wrote %s", path)
	})
}
