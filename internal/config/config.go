package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "fixnow.yml"

// Config models fixnow.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Reasoning Reasoning `yaml:"reasoning"`
	Directory Directory `yaml:"directory"`
	Events    struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"events"`
	Pacing  Pacing `yaml:"pacing"`
	Booking struct {
		ContactPhone string `yaml:"contact_phone"`
		Timezone     string `yaml:"timezone"`
	} `yaml:"booking"`
	Drafts struct {
		DemoAddress  string `yaml:"demo_address"`
		DemoCustomer string `yaml:"demo_customer"`
		DemoPhone    string `yaml:"demo_phone"`
	} `yaml:"drafts"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Reasoning modes.
const (
	ModeMock     = "mock"
	ModeExternal = "external"
	ModeOpenAI   = "openai"
)

type Reasoning struct {
	Mode      string `yaml:"mode"`
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
}

func (r Reasoning) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

type Directory struct {
	BaseURL         string `yaml:"base_url"`
	TimeoutMS       int    `yaml:"timeout_ms"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	SnapshotPath    string `yaml:"snapshot_path"`
}

func (d Directory) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

func (d Directory) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSeconds) * time.Second
}

// Pacing holds the delays, in milliseconds, of the scripted conversation.
type Pacing struct {
	RFODelayMS        int `yaml:"rfo_delay_ms"`
	CollectDelayMS    int `yaml:"collect_delay_ms"`
	PublishRFODelayMS int `yaml:"publish_rfo_delay_ms"`
	OfferIntroDelayMS int `yaml:"offer_intro_delay_ms"`
	OfferStaggerMS    int `yaml:"offer_stagger_ms"`
	OptionsDelayMS    int `yaml:"options_delay_ms"`
	AwardDelayMS      int `yaml:"award_delay_ms"`
	ConfirmDelayMS    int `yaml:"confirm_delay_ms"`
	DispatchReplyMS   int `yaml:"dispatch_reply_ms"`
}

// MS converts a millisecond setting to a duration.
func MS(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Audiences      []string `yaml:"audiences"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Reasoning.Mode {
	case ModeMock:
	case ModeExternal:
		if c.Reasoning.BaseURL == "" {
			return fmt.Errorf("config.reasoning.base_url is required in external mode")
		}
	case ModeOpenAI:
		if c.Reasoning.APIKey == "" {
			return fmt.Errorf("config.reasoning.api_key is required in openai mode")
		}
	default:
		return fmt.Errorf("config.reasoning.mode must be one of mock, external, openai")
	}
	if c.Reasoning.TimeoutMS <= 0 {
		return fmt.Errorf("config.reasoning.timeout_ms must be positive")
	}
	if c.Events.Capacity <= 0 {
		return fmt.Errorf("config.events.capacity must be positive")
	}
	for name, v := range map[string]int{
		"rfo_delay_ms":         c.Pacing.RFODelayMS,
		"collect_delay_ms":     c.Pacing.CollectDelayMS,
		"publish_rfo_delay_ms": c.Pacing.PublishRFODelayMS,
		"offer_intro_delay_ms": c.Pacing.OfferIntroDelayMS,
		"offer_stagger_ms":     c.Pacing.OfferStaggerMS,
		"options_delay_ms":     c.Pacing.OptionsDelayMS,
		"award_delay_ms":       c.Pacing.AwardDelayMS,
		"confirm_delay_ms":     c.Pacing.ConfirmDelayMS,
		"dispatch_reply_ms":    c.Pacing.DispatchReplyMS,
	} {
		if v < 0 {
			return fmt.Errorf("config.pacing.%s must not be negative", name)
		}
	}
	if c.Booking.Timezone != "" {
		if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
			return fmt.Errorf("config.booking.timezone: %w", err)
		}
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

// Location returns the booking time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.Booking.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML overlays raw YAML onto the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the file does not exist.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:3001
  base_path: /api

reasoning:
  # mock | external | openai
  mode: mock
  base_url: ""
  timeout_ms: 5000
  model: gpt-4o-mini
  api_key: ""

directory:
  base_url: http://localhost:3004
  timeout_ms: 10000
  cache_ttl_seconds: 600
  snapshot_path: ""

events:
  capacity: 50

pacing:
  rfo_delay_ms: 500
  collect_delay_ms: 1000
  publish_rfo_delay_ms: 1000
  offer_intro_delay_ms: 1000
  offer_stagger_ms: 800
  options_delay_ms: 500
  award_delay_ms: 1200
  confirm_delay_ms: 800
  dispatch_reply_ms: 1000

booking:
  contact_phone: "(415) 555-0113"
  timezone: America/Los_Angeles

drafts:
  demo_address: "123 Demo Street, San Francisco, CA"
  demo_customer: Demo Customer
  demo_phone: "(555) 123-4567"

webhooks: []

log:
  level: info
  format: text
`
