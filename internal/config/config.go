// Package config holds the omnibus command's configuration: built-in
// defaults, overlaid by a YAML or JSON file, overlaid by OMNIBUS_*
// environment variables, overlaid by flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	ServerURL   string `yaml:"serverUrl" json:"serverUrl"`
	AllowUnsafe bool   `yaml:"allowUnsafe" json:"allowUnsafe"`
	LogLevel    string `yaml:"logLevel" json:"logLevel"`
	Bridge      Bridge `yaml:"bridge" json:"bridge"`
}

// Bridge configures `omnibus bridge`.
type Bridge struct {
	// Prefix selects the channels to forward; empty forwards everything.
	Prefix      string `yaml:"prefix" json:"prefix"`
	MetricsAddr string `yaml:"metricsAddr" json:"metricsAddr"`
	Kafka       Kafka  `yaml:"kafka" json:"kafka"`
	NATS        NATS   `yaml:"nats" json:"nats"`
}

// Kafka configures the Kafka sink. It is disabled when Brokers is empty.
type Kafka struct {
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
}

// NATS configures the NATS sink. It is disabled when URL is empty.
type NATS struct {
	URL           string `yaml:"url" json:"url"`
	SubjectPrefix string `yaml:"subjectPrefix" json:"subjectPrefix"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		ServerURL: "http://localhost:6767",
		LogLevel:  "info",
		Bridge: Bridge{
			MetricsAddr: ":9090",
			Kafka:       Kafka{Topic: "omnibus"},
			NATS:        NATS{SubjectPrefix: "omnibus"},
		},
	}
}

// Load reads configuration from a YAML or JSON file (by extension) on top of
// the defaults. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports every problem with cfg.
func (c Config) Validate() error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, errors.New("serverUrl is required"))
	} else if u, err := url.Parse(c.ServerURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("serverUrl %q is not an absolute URL", c.ServerURL))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(c.Bridge.Kafka.Brokers) > 0 && c.Bridge.Kafka.Topic == "" {
		errs = append(errs, errors.New("bridge.kafka.topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logLevel %q: %w", s, err)
	}
	return l, nil
}
