package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the config file (~/.config/shockabsorber/config.yaml).
type Config struct {
	MoviesDir string `yaml:"movies_dir"`
	OutputDir string `yaml:"output_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
	CatalogPath   string `yaml:"catalog_path"`
}

// loadedConfig is read once by the root command before any subcommand runs.
var loadedConfig Config

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "shockabsorber", "config.yaml")
}

// LoadConfig reads the config file at path. A missing default file yields a
// zero Config; an explicitly named file must exist.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyRootConfig applies config file defaults to the global flags when they
// were not explicitly set.
func applyRootConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyMoviesConfig(c *cli.Command, cfg Config) {
	if cfg.MoviesDir != "" && !c.IsSet("movies-dir") {
		moviesPath = cfg.MoviesDir
	}
}

func applyExtractConfig(c *cli.Command, cfg Config, outDir *string) {
	applyMoviesConfig(c, cfg)
	if cfg.OutputDir != "" && !c.IsSet("out") {
		*outDir = cfg.OutputDir
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyMoviesConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func applyCatalogConfig(c *cli.Command, cfg Config, dbPath *string) {
	applyMoviesConfig(c, cfg)
	if cfg.CatalogPath != "" && !c.IsSet("db") {
		*dbPath = cfg.CatalogPath
	}
}
