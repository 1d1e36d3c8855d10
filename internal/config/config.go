// Package config loads the siolisten YAML configuration.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top level siolisten configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Topics    []string        `yaml:"topics"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	History   HistoryConfig   `yaml:"history"`
}

type ServerConfig struct {
	URL              string            `yaml:"url"`
	Path             string            `yaml:"path"`
	Namespace        string            `yaml:"namespace"`
	Token            string            `yaml:"token"`
	Headers          map[string]string `yaml:"headers"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
}

type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxAttempts is a pointer so an explicit 0 (never retry) survives defaults.
	MaxAttempts        *int  `yaml:"max_attempts"`
	CancelOnDisconnect *bool `yaml:"cancel_on_disconnect"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr   string            `yaml:"addr"`
	Path   string            `yaml:"path"`
	Labels map[string]string `yaml:"labels"`
}

type HistoryConfig struct {
	Size int `yaml:"size"`
}

// DecodeStrict decodes YAML from a reader and rejects any unknown fields.
func DecodeStrict(r io.Reader, out interface{}) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Load reads a YAML config file and expands ${VAR} environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var cfg Config
	if err := DecodeStrict(strings.NewReader(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}
