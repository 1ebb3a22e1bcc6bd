package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. CREWMON_SERVER_URL.
const EnvPrefix = "crewmon"

const (
	DefaultServerURL         = "http://crewai.aihack.top:8003"
	DefaultCrewType          = "product"
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHTTPTimeout       = 10 * time.Second
)

type Config struct {
	ServerURL string `yaml:"server_url" envconfig:"SERVER_URL"`
	// WSURL 为空时由 ServerURL 推导
	WSURL             string        `yaml:"ws_url,omitempty" envconfig:"WS_URL"`
	CrewType          string        `yaml:"crew_type" envconfig:"CREW_TYPE"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" envconfig:"RECONNECT_DELAY"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" envconfig:"HEARTBEAT_INTERVAL"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	LogFile           string        `yaml:"log_file,omitempty" envconfig:"LOG_FILE"`
	Notify            NotifyConfig  `yaml:"notify" envconfig:"NOTIFY"`
}

type NotifyConfig struct {
	Desktop       bool              `yaml:"desktop" envconfig:"DESKTOP"`
	WebhookURL    string            `yaml:"webhook_url,omitempty" envconfig:"WEBHOOK_URL"`
	WebhookFormat string            `yaml:"webhook_format,omitempty" envconfig:"WEBHOOK_FORMAT"`
	WebhookExtra  map[string]string `yaml:"webhook_extra,omitempty" envconfig:"WEBHOOK_EXTRA"`
	HookScript    string            `yaml:"hook_script,omitempty" envconfig:"HOOK_SCRIPT"`
}

// Enabled reports whether any notifier is configured.
func (n NotifyConfig) Enabled() bool {
	return n.Desktop || n.WebhookURL != "" || n.HookScript != ""
}

var ConfigPath string

func init() {
	// 优先使用当前目录的 crewmon.yaml
	pwd, _ := os.Getwd()
	local := filepath.Join(pwd, "crewmon.yaml")
	if _, err := os.Stat(local); err == nil {
		ConfigPath = local
		return
	}
	homeDir, _ := os.UserHomeDir()
	ConfigPath = filepath.Join(homeDir, ".crewmon", "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerURL:         DefaultServerURL,
		CrewType:          DefaultCrewType,
		ReconnectDelay:    DefaultReconnectDelay,
		HeartbeatInterval: DefaultHeartbeatInterval,
		HTTPTimeout:       DefaultHTTPTimeout,
	}
}

// LoadConfig reads ConfigPath over the defaults and applies CREWMON_*
// environment overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	return Load(ConfigPath)
}

// Load is LoadConfig for an explicit path.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	return Save(ConfigPath, cfg)
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the URLs and durations.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url %q: must be an http(s) URL", c.ServerURL)
	}
	if c.WSURL != "" {
		u, err := url.Parse(c.WSURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("ws_url %q: must be a ws(s) URL", c.WSURL)
		}
	}
	if c.CrewType == "" {
		return errors.New("crew_type must not be empty")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay %s: must be positive", c.ReconnectDelay)
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat_interval %s: must not be negative", c.HeartbeatInterval)
	}
	return nil
}

// WebSocketURL returns WSURL, or the /ws endpoint on the server host.
func (c *Config) WebSocketURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	base := strings.TrimRight(c.ServerURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
