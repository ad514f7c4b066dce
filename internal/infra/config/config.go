// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server       ServerConfig            `yaml:"server"`
	Playlist     PlaylistConfig          `yaml:"playlist"`
	Playback     PlaybackConfig          `yaml:"playback"`
	Audio        AudioConfig             `yaml:"audio"`
	Notification NotificationConfig      `yaml:"notification"`
	Filters      map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Token string      `yaml:"token"` // Required in X-Deck-Token on control endpoints, empty disables auth
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// PlaylistConfig represents the playlist source.
type PlaylistConfig struct {
	Path     string `yaml:"path" validate:"required"`
	Name     string `yaml:"name"`      // Overrides the name in the playlist file
	SkipTags bool   `yaml:"skip_tags"` // Do not read title/artist from audio tags
}

// PlaybackConfig represents playback control configuration.
// Settings where 0 is meaningful are pointers so an explicit 0 is not
// replaced by the default.
type PlaybackConfig struct {
	DefaultVolume      *int `yaml:"default_volume" default:"70" validate:"required,gte=0,lte=100"`           // 0 starts silent
	RestartThresholdMs *int `yaml:"restart_threshold_ms" default:"3000" validate:"required,gte=0,lte=60000"` // 0 always restarts once playback has begun
	ResumeDelayMs      int  `yaml:"resume_delay_ms" default:"100" validate:"gte=1,lte=5000"`
	ResumeAttempts     *int `yaml:"resume_attempts" default:"3" validate:"required,gte=0,lte=20"` // 0 disables retries
	EventBuffer        int  `yaml:"event_buffer" default:"32" validate:"gte=1,lte=4096"`
}

// Volume returns the initial volume.
func (c PlaybackConfig) Volume() int {
	return lo.FromPtr(c.DefaultVolume)
}

// RestartThreshold returns the restart threshold as a duration.
func (c PlaybackConfig) RestartThreshold() time.Duration {
	return time.Duration(lo.FromPtr(c.RestartThresholdMs)) * time.Millisecond
}

// Attempts returns the number of resume retries.
func (c PlaybackConfig) Attempts() int {
	return lo.FromPtr(c.ResumeAttempts)
}

// ResumeDelay returns the resume delay as a duration.
func (c PlaybackConfig) ResumeDelay() time.Duration {
	return time.Duration(c.ResumeDelayMs) * time.Millisecond
}

// AudioConfig represents the media engine configuration.
type AudioConfig struct {
	Engine   string         `yaml:"engine" default:"speaker" validate:"oneof=speaker clock"`
	Settings map[string]any `yaml:"settings"`
}

// NotificationConfig represents event fan-out configuration.
type NotificationConfig struct {
	SendTimeoutMs    int `yaml:"send_timeout_ms" default:"100" validate:"gte=1,lte=10000"`
	SubscriberBuffer int `yaml:"subscriber_buffer" default:"64" validate:"gte=1,lte=4096"`
	MaxFailures      int `yaml:"max_failures" default:"3" validate:"gte=1,lte=100"` // Consecutive failed deliveries before a subscriber is dropped
}

// SendTimeout returns the per-subscriber send timeout as a duration.
func (c NotificationConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutMs) * time.Millisecond
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applies environment
// overrides and defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DECK_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("DECK_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DECK_PLAYLIST"); v != "" {
		c.Playlist.Path = v
	}
	if v := os.Getenv("DECK_AUDIO_ENGINE"); v != "" {
		c.Audio.Engine = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
