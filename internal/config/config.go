// Package config loads the hub configuration: defaults, then an optional
// YAML file, then environment overrides. Command-line flags are applied by
// the caller before Validate.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/smartstall-hub/internal/gpio"
	"github.com/sweeney/smartstall-hub/internal/hub"
	"github.com/sweeney/smartstall-hub/internal/logger"
	"github.com/sweeney/smartstall-hub/internal/logic"
)

// EnvBroker overrides the sink URL.
const EnvBroker = "SMARTSTALL_BROKER"

// Sink kinds.
const (
	SinkMQTT = "mqtt"
	SinkNATS = "nats"
)

// Config is the complete hub configuration.
type Config struct {
	Sink    SinkConfig    `yaml:"sink"`
	HTTP    HTTPConfig    `yaml:"http"`
	Polling PollingConfig `yaml:"polling"`
	Radio   RadioConfig   `yaml:"radio"`
	LED     LEDConfig     `yaml:"led"`
	Logging logger.Config `yaml:"logging"`
}

// SinkConfig selects where snapshots are published.
type SinkConfig struct {
	Kind      string        `yaml:"kind"` // mqtt or nats
	URL       string        `yaml:"url"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig holds the status server settings. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PollingConfig holds the registry and scheduler tunables.
type PollingConfig struct {
	Tick             time.Duration `yaml:"tick"`
	Capacity         int           `yaml:"capacity"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	BackoffUnit      time.Duration `yaml:"backoff_unit"`
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureCap       int           `yaml:"failure_cap"`
	StaleAfter       time.Duration `yaml:"stale_after"`
	RescanInterval   time.Duration `yaml:"rescan_interval"`
	DecayAfter       time.Duration `yaml:"decay_after"`
}

// RadioConfig holds the connection state machine timings.
type RadioConfig struct {
	LocalName        string        `yaml:"local_name"`
	ScanWindow       time.Duration `yaml:"scan_window"`
	ConnectDebounce  time.Duration `yaml:"connect_debounce"`
	ConnectAttempts  int           `yaml:"connect_attempts"`
	ConnectSpacing   time.Duration `yaml:"connect_spacing"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	DiscoveryRetries int           `yaml:"discovery_retries"`
	DiscoverySpacing time.Duration `yaml:"discovery_spacing"`
	ReadAttempts     int           `yaml:"read_attempts"`
	ReadSpacing      time.Duration `yaml:"read_spacing"`
}

// LEDConfig controls the activity LED.
type LEDConfig struct {
	Enabled bool `yaml:"enabled"`
	Pin     int  `yaml:"pin"`
}

// Default returns the configuration the hub ships with.
func Default() *Config {
	h := hub.DefaultConfig()
	return &Config{
		Sink: SinkConfig{
			Kind:      SinkMQTT,
			URL:       "tcp://localhost:1883",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Polling: PollingConfig{
			Tick:             100 * time.Millisecond,
			Capacity:         h.Policy.Capacity,
			PollInterval:     h.Policy.PollInterval,
			BackoffUnit:      h.Policy.BackoffUnit,
			FailureThreshold: h.Policy.FailureThreshold,
			FailureCap:       h.Policy.FailureCap,
			StaleAfter:       h.Policy.StaleAfter,
			RescanInterval:   h.Policy.RescanInterval,
			DecayAfter:       h.Policy.DecayAfter,
		},
		Radio: RadioConfig{
			LocalName:        h.LocalName,
			ScanWindow:       h.ScanWindow,
			ConnectDebounce:  h.ConnectDebounce,
			ConnectAttempts:  h.ConnectAttempts,
			ConnectSpacing:   h.ConnectSpacing,
			ConnectTimeout:   h.ConnectTimeout,
			DiscoveryRetries: h.DiscoveryRetries,
			DiscoverySpacing: h.DiscoverySpacing,
			ReadAttempts:     h.ReadAttempts,
			ReadSpacing:      h.ReadSpacing,
		},
		LED:     LEDConfig{Enabled: false, Pin: gpio.DefaultPinLED},
		Logging: logger.Config{Level: "info", Output: "stdout", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if broker := os.Getenv(EnvBroker); broker != "" {
		cfg.Sink.URL = broker
	}
}

// Hub returns the state machine configuration.
func (c *Config) Hub() hub.Config {
	return hub.Config{
		Policy: logic.Policy{
			Capacity:         c.Polling.Capacity,
			PollInterval:     c.Polling.PollInterval,
			BackoffUnit:      c.Polling.BackoffUnit,
			FailureThreshold: c.Polling.FailureThreshold,
			FailureCap:       c.Polling.FailureCap,
			StaleAfter:       c.Polling.StaleAfter,
			RescanInterval:   c.Polling.RescanInterval,
			DecayAfter:       c.Polling.DecayAfter,
		},
		LocalName:        c.Radio.LocalName,
		ScanWindow:       c.Radio.ScanWindow,
		ConnectDebounce:  c.Radio.ConnectDebounce,
		ConnectAttempts:  c.Radio.ConnectAttempts,
		ConnectSpacing:   c.Radio.ConnectSpacing,
		ConnectTimeout:   c.Radio.ConnectTimeout,
		DiscoveryRetries: c.Radio.DiscoveryRetries,
		DiscoverySpacing: c.Radio.DiscoverySpacing,
		ReadAttempts:     c.Radio.ReadAttempts,
		ReadSpacing:      c.Radio.ReadSpacing,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.validateSink(); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	if c.Polling.Tick <= 0 {
		return fmt.Errorf("polling: tick must be positive, got %v", c.Polling.Tick)
	}
	if c.Sink.Heartbeat < 0 {
		return fmt.Errorf("sink: heartbeat must not be negative, got %v", c.Sink.Heartbeat)
	}
	if c.LED.Enabled && c.LED.Pin < 0 {
		return fmt.Errorf("led: invalid pin %d", c.LED.Pin)
	}
	if err := c.Hub().Validate(); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	return nil
}

func (c *Config) validateSink() error {
	u, err := url.Parse(c.Sink.URL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", c.Sink.URL, err)
	}

	var schemes []string
	switch c.Sink.Kind {
	case SinkMQTT:
		schemes = []string{"tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss"}
	case SinkNATS:
		schemes = []string{"nats", "tls"}
	default:
		return fmt.Errorf("unknown kind %q", c.Sink.Kind)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("url %q is not a %s address", c.Sink.URL, c.Sink.Kind)
}

// YAML renders the configuration as a YAML document.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
