package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type DefaultAlbums string

const (
	// DefaultAlbumsBuiltin serves the fixed sample set on an empty query.
	DefaultAlbumsBuiltin DefaultAlbums = "builtin"
	// DefaultAlbumsRandom fetches a fresh random set from the catalog instead.
	DefaultAlbumsRandom DefaultAlbums = "random"
)

type Config struct {
	BaseURL       string        `json:"base_url"       yaml:"base_url"`
	CredsDir      string        `json:"creds_dir"      yaml:"creds_dir"`
	DefaultAlbums DefaultAlbums `json:"default_albums" yaml:"default_albums"`
	PageLimit     int           `json:"page_limit"     yaml:"page_limit"`
	RandomCount   int           `json:"random_count"   yaml:"random_count"`
}

func (cfg *Config) validate() error {
	if cfg.BaseURL == "" {
		return errors.New("base URL is empty")
	}

	if cfg.CredsDir == "" {
		return errors.New("credentials dir is empty")
	}

	switch cfg.DefaultAlbums {
	case DefaultAlbumsBuiltin, DefaultAlbumsRandom:
	case "":
		cfg.DefaultAlbums = DefaultAlbumsBuiltin
	default:
		return fmt.Errorf("unsupported default albums mode %q", cfg.DefaultAlbums)
	}

	if cfg.PageLimit == 0 {
		cfg.PageLimit = 5
	}
	if cfg.PageLimit < 0 {
		return errors.New("page limit must be positive")
	}

	if cfg.RandomCount == 0 {
		cfg.RandomCount = 6
	}
	if cfg.RandomCount < 0 {
		return errors.New("random count must be positive")
	}

	return nil
}

func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config file %q: %v", filePath, err)
	}

	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}

func FromString(data string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(data), &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}
