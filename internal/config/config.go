package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vodgrab/vodgrab/internal/platform"
)

// Defaults applied when the file omits a value
const (
	DefaultServerPort          = 8080
	DefaultMaxConcurrent       = 2
	DefaultRetryBudget         = 3
	DefaultRetryBackoffSeconds = 2
	DefaultWaitingTimeSeconds  = 15
	DefaultFetchTimeoutSeconds = 60
	DefaultEndpoint            = "https://gql.twitch.tv/gql"
	DefaultFFmpegPath          = "ffmpeg"
	DefaultFFprobePath         = "ffprobe"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Catalog struct {
		Endpoint   string `yaml:"endpoint"`
		ClientID   string `yaml:"client_id"`
		OAuthToken string `yaml:"oauth_token"`
	} `yaml:"catalog"`

	Download struct {
		Dir                 string `yaml:"dir"`
		MaxConcurrent       int    `yaml:"max_concurrent"`
		RetryBudget         int    `yaml:"retry_budget"`
		RetryBackoffSeconds int    `yaml:"retry_backoff_seconds"`
		WaitingTimeSeconds  int    `yaml:"waiting_time_seconds"`
		FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	} `yaml:"download"`

	Encode struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
		Disabled    bool   `yaml:"disabled"`
	} `yaml:"encode"`
}

// LoadConfig reads a YAML config file and fills in defaults for every value
// the file omits
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if cfg.Catalog.ClientID == "" {
		return nil, fmt.Errorf("config: catalog.client_id is required")
	}
	return &cfg, nil
}

// DefaultConfig returns a config with every default applied and the download
// directory pointed at the user's Downloads folder
func DefaultConfig(clientID string) *Config {
	var cfg Config
	cfg.Catalog.ClientID = clientID
	cfg.applyDefaults()
	return &cfg
}

// RetryBackoff returns the backoff base as a duration
func (cfg *Config) RetryBackoff() time.Duration {
	return time.Duration(cfg.Download.RetryBackoffSeconds) * time.Second
}

// WaitingTime returns the live re-poll interval as a duration
func (cfg *Config) WaitingTime() time.Duration {
	return time.Duration(cfg.Download.WaitingTimeSeconds) * time.Second
}

// FetchTimeout returns the per-request segment fetch timeout as a duration
func (cfg *Config) FetchTimeout() time.Duration {
	return time.Duration(cfg.Download.FetchTimeoutSeconds) * time.Second
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Catalog.Endpoint == "" {
		cfg.Catalog.Endpoint = DefaultEndpoint
	}
	if cfg.Download.Dir == "" {
		if dir, err := platform.GetHomeDownloadsDir(); err == nil {
			cfg.Download.Dir = dir
		} else {
			cfg.Download.Dir = "downloads"
		}
	}
	if cfg.Download.MaxConcurrent <= 0 {
		cfg.Download.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Download.RetryBudget <= 0 {
		cfg.Download.RetryBudget = DefaultRetryBudget
	}
	if cfg.Download.RetryBackoffSeconds <= 0 {
		cfg.Download.RetryBackoffSeconds = DefaultRetryBackoffSeconds
	}
	if cfg.Download.WaitingTimeSeconds <= 0 {
		cfg.Download.WaitingTimeSeconds = DefaultWaitingTimeSeconds
	}
	if cfg.Download.FetchTimeoutSeconds <= 0 {
		cfg.Download.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}
	if cfg.Encode.FFmpegPath == "" {
		cfg.Encode.FFmpegPath = DefaultFFmpegPath
	}
	if cfg.Encode.FFprobePath == "" {
		cfg.Encode.FFprobePath = DefaultFFprobePath
	}
}
