package commands

import (
	"context"
	"os"
	"os/signal"

	"crewmon/internal/channel"
	"crewmon/internal/config"
	"crewmon/internal/crewinfo"
	"crewmon/internal/monitor"
	"crewmon/internal/notify"
	"crewmon/internal/output"
)

// loadRuntimeConfig loads the config file and environment, then applies
// the global flags. Invalid configuration is fatal.
func loadRuntimeConfig() *config.Config {
	if configFlag != "" {
		config.ConfigPath = configFlag
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		output.PrintError(err)
		return nil
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		output.PrintError(err)
		return nil
	}
	return cfg
}

func applyFlags(cfg *config.Config) {
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}
	if wsURLFlag != "" {
		cfg.WSURL = wsURLFlag
	}
	if crewFlag != "" {
		cfg.CrewType = crewFlag
	}
}

// channelOptions maps the configuration onto the transport. A zero
// heartbeat_interval turns heartbeats off.
func channelOptions(cfg *config.Config) channel.Options {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = -1
	}
	return channel.Options{
		URL:               cfg.WebSocketURL(),
		ReconnectDelay:    cfg.ReconnectDelay,
		HeartbeatInterval: heartbeat,
		HandshakeTimeout:  cfg.HTTPTimeout,
	}
}

func newMonitor(cfg *config.Config) *monitor.Monitor {
	return monitor.New(
		channel.New(channelOptions(cfg)),
		crewinfo.New(cfg.ServerURL, cfg.HTTPTimeout),
		cfg.CrewType,
	)
}

// newNotifier builds the configured notifiers, or nil when none are on.
func newNotifier(n config.NotifyConfig) notify.Notifier {
	var ns []notify.Notifier
	if n.Desktop {
		ns = append(ns, notify.NewDesktopNotifier())
	}
	if n.WebhookURL != "" {
		ns = append(ns, notify.NewWebhookNotifier(n.WebhookURL, n.WebhookFormat, n.WebhookExtra))
	}
	if n.HookScript != "" {
		ns = append(ns, notify.NewHookNotifier(n.HookScript))
	}
	if len(ns) == 0 {
		return nil
	}
	return notify.NewMultiNotifier(ns...)
}

// signalContext is cancelled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
