package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays OMNIBUS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("OMNIBUS_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("OMNIBUS_ALLOW_UNSAFE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowUnsafe = b
		}
	}
	if v := os.Getenv("OMNIBUS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OMNIBUS_BRIDGE_PREFIX"); v != "" {
		cfg.Bridge.Prefix = v
	}
	if v := os.Getenv("OMNIBUS_METRICS_ADDR"); v != "" {
		cfg.Bridge.MetricsAddr = v
	}
	if v := os.Getenv("OMNIBUS_KAFKA_BROKERS"); v != "" {
		cfg.Bridge.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("OMNIBUS_KAFKA_TOPIC"); v != "" {
		cfg.Bridge.Kafka.Topic = v
	}
	if v := os.Getenv("OMNIBUS_NATS_URL"); v != "" {
		cfg.Bridge.NATS.URL = v
	}
	if v := os.Getenv("OMNIBUS_NATS_SUBJECT_PREFIX"); v != "" {
		cfg.Bridge.NATS.SubjectPrefix = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
