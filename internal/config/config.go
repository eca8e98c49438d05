// Package config loads project configuration from .codr.yaml, environment
// overrides and the project's .codrignore.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/skelly-dev/codr/internal/ignore"
)

const FileName = ".codr.yaml"

const (
	EnvMetadataDir = "CODR_METADATA_DIR"
	EnvWorkers     = "CODR_WORKERS"
	EnvLogLevel    = "CODR_LOG_LEVEL"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	MetadataDir       string       `yaml:"metadata_dir" validate:"required"`
	Workers           int          `yaml:"workers" validate:"min=1,max=256"`
	Ignore            []string     `yaml:"ignore"`
	Languages         []string     `yaml:"languages" validate:"min=1,dive,oneof=typescript python"`
	RespectGitignore  bool         `yaml:"respect_gitignore"`
	FollowSymlinks    bool         `yaml:"follow_symlinks"`
	RetainGenerations int          `yaml:"retain_generations" validate:"min=1,max=20"`
	MaxFileBytes      int64        `yaml:"max_file_bytes" validate:"min=1"`
	Log               LogConfig    `yaml:"log"`
	Server            ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required,hostname_port"`
	CacheSize int    `yaml:"cache_size" validate:"min=1,max=1024"`
	Watch     bool   `yaml:"watch"`
}

var validate = validator.New()

// Default returns the configuration used when no file or overrides are present.
func Default() Config {
	return Config{
		MetadataDir:       ".codr/metadata",
		Workers:           defaultWorkers(),
		Ignore:            []string{},
		Languages:         []string{"typescript", "python"},
		RespectGitignore:  true,
		RetainGenerations: 2,
		MaxFileBytes:      2 << 20,
		Log:               LogConfig{Level: "info", Format: "text"},
		Server:            ServerConfig{Addr: "127.0.0.1:7878", CacheSize: 16},
	}
}

func defaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > 256 {
		n = 256
	}
	return n
}

// Load reads configuration for root. An empty path means root/.codr.yaml, which
// may be absent. An explicit path must exist.
func Load(root, path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}
	if err := loadYAMLFile(path, &cfg, explicit); err != nil {
		return Config{}, err
	}
	if err := applyEnvironment(&cfg); err != nil {
		return Config{}, err
	}

	rules, err := ignore.ReadRules(filepath.Join(root, ignore.FileName))
	if err != nil {
		return Config{}, err
	}
	cfg.Ignore = append(cfg.Ignore, rules...)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnvironment(cfg *Config) error {
	if v := os.Getenv(EnvMetadataDir); v != "" {
		cfg.MetadataDir = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, EnvWorkers, v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks field constraints and reports every failing field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// LanguageEnabled reports whether lang is listed in Languages.
func (c Config) LanguageEnabled(lang string) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
