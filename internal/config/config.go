package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sampling SamplingConfig `yaml:"sampling"`
	Tracking TrackingConfig `yaml:"tracking"`
	Channels []string       `yaml:"channels"`
	Comments CommentsConfig `yaml:"comments"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the discovery and re-check intervals.
type ScheduleConfig struct {
	DiscoveryInterval string `yaml:"discovery_interval"`
	RecheckInterval   string `yaml:"recheck_interval"`
	Workers           int    `yaml:"workers"`
}

// ParseDiscoveryInterval returns the new-video discovery interval.
func (s ScheduleConfig) ParseDiscoveryInterval() time.Duration {
	d, err := time.ParseDuration(s.DiscoveryInterval)
	if err != nil {
		return 3 * time.Minute
	}
	return d
}

// ParseRecheckInterval returns the active-video re-check interval.
func (s ScheduleConfig) ParseRecheckInterval() time.Duration {
	d, err := time.ParseDuration(s.RecheckInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// SamplingConfig configures how titles are sampled per video.
type SamplingConfig struct {
	PerRun        int    `yaml:"per_run"`
	Fast          int    `yaml:"fast"`
	MinBeforePost int    `yaml:"min_before_post"`
	Delay         string `yaml:"delay"`
}

// ParseDelay returns the delay between sequential title fetches.
func (s SamplingConfig) ParseDelay() time.Duration {
	d, err := time.ParseDuration(s.Delay)
	if err != nil {
		return 1500 * time.Millisecond
	}
	return d
}

// TrackingConfig configures the discovery cutoff and stagnation detection.
type TrackingConfig struct {
	CutoffDate            string `yaml:"cutoff_date"`
	InactiveDaysThreshold int    `yaml:"inactive_days_threshold"`
}

// ParseCutoffDate returns the global discovery cutoff as a UTC date.
func (t TrackingConfig) ParseCutoffDate() time.Time {
	d, err := time.ParseInLocation("2006-01-02", t.CutoffDate, time.UTC)
	if err != nil {
		return time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	}
	return d
}

// CommentsConfig configures the YouTube comment backend.
type CommentsConfig struct {
	Skip         bool     `yaml:"skip"`
	Intros       []string `yaml:"intros"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RefreshToken string   `yaml:"refresh_token"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Channel is one tracked channel parsed from the config list.
type Channel struct {
	ID   string
	Name string
}

// ParseChannels parses "channel_id:display_name" entries. A bare id is its
// own display name.
func (c *Config) ParseChannels() []Channel {
	var out []Channel
	for _, raw := range c.Channels {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, name, found := strings.Cut(raw, ":")
		if !found || strings.TrimSpace(name) == "" {
			name = id
		}
		out = append(out, Channel{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return out
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./titlewatch.db"},
		Schedule: ScheduleConfig{
			DiscoveryInterval: "3m",
			RecheckInterval:   "1h",
			Workers:           10,
		},
		Sampling: SamplingConfig{
			PerRun:        21,
			Fast:          3,
			MinBeforePost: 3,
			Delay:         "1.5s",
		},
		Tracking: TrackingConfig{
			CutoffDate:            "2026-02-08",
			InactiveDaysThreshold: 5,
		},
		Channels: []string{"UCHnyfMqiRRG1u-2MsSQLbXA:Veritasium"},
		Comments: CommentsConfig{
			Intros: []string{
				"I noticed YouTube is testing different titles on this video",
				"Interesting, this video seems to have multiple titles being tested",
				"Anyone else seeing a different title? YouTube A/B testing perhaps",
				"The title on this video keeps changing for me",
				"YouTube appears to be running a title experiment here",
				"Different people are seeing different titles on this one",
				"Caught this video with multiple title variations",
				"This video has different titles showing for different viewers",
				"Title A/B test spotted on this video",
				"YouTube is definitely testing titles on this one",
			},
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TITLEWATCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("YOUTUBE_CHANNELS"); v != "" {
		cfg.Channels = strings.Split(v, ",")
	}
	if v := os.Getenv("YOUTUBE_CLIENT_ID"); v != "" {
		cfg.Comments.ClientID = v
	}
	if v := os.Getenv("YOUTUBE_CLIENT_SECRET"); v != "" {
		cfg.Comments.ClientSecret = v
	}
	if v := os.Getenv("YOUTUBE_REFRESH_TOKEN"); v != "" {
		cfg.Comments.RefreshToken = v
	}
	if v := os.Getenv("CUTOFF_DATE"); v != "" {
		cfg.Tracking.CutoffDate = v
	}
	if v := os.Getenv("SKIP_COMMENTS"); v != "" {
		if skip, err := strconv.ParseBool(v); err == nil {
			cfg.Comments.Skip = skip
		}
	}
}
