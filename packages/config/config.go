// Package config
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simplesapien/redirect-resolver/packages/crawler"
)

type Config struct {
	Port            int
	FetchTimeout    time.Duration
	MaxBodyBytes    int64
	UserAgent       string
	ProxyURL        string
	MaxWorkers      int
	BatchMaxURLs    int
	TrimInput       bool
	ShutdownTimeout time.Duration
	MetricsAddr     string
	LogFile         string
	LogLevel        string
}

// Load reads the configuration from environment variables. When CONFIG_FILE
// names a YAML file of KEY: value pairs, those values sit between the
// environment and the built-in defaults.
func Load() (Config, error) {
	l := loader{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		l.file = file
	}
	return l.load()
}

type loader struct {
	file map[string]string
}

func (l loader) load() (Config, error) {
	cfg := Config{}

	cfg.Port = l.getInt("PORT", 3000)
	cfg.FetchTimeout = l.getDuration("FETCH_TIMEOUT", crawler.DefaultTimeout)
	cfg.MaxBodyBytes = int64(l.getInt("MAX_BODY_BYTES", crawler.DefaultMaxBodyBytes))
	cfg.UserAgent = l.getEnv("USER_AGENT", crawler.DefaultUserAgent)
	cfg.ProxyURL = l.getEnv("PROXY_URL", "")

	cfg.MaxWorkers = l.getInt("MAX_WORKERS", 8)
	cfg.BatchMaxURLs = l.getInt("BATCH_MAX_URLS", 50)
	cfg.TrimInput = l.getBool("TRIM_INPUT", true)
	cfg.ShutdownTimeout = l.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)

	cfg.MetricsAddr = l.getEnv("METRICS_ADDR", "0.0.0.0:9093")
	cfg.LogFile = l.getEnv("LOG_FILE", "logs/redirector.log")
	cfg.LogLevel = l.getEnv("LOG_LEVEL", "info")

	var problems []string
	if cfg.Port <= 0 || cfg.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT out of range: %d", cfg.Port))
	}
	if cfg.FetchTimeout <= 0 {
		problems = append(problems, "FETCH_TIMEOUT must be positive")
	}
	if cfg.MaxWorkers <= 0 {
		problems = append(problems, "MAX_WORKERS must be positive")
	}
	if cfg.BatchMaxURLs <= 0 {
		problems = append(problems, "BATCH_MAX_URLS must be positive")
	}
	if len(problems) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, node := range raw {
		key := strings.ToUpper(k)
		if node.ShortTag() == "!!null" {
			values[key] = ""
			continue
		}
		if durationKeys[key] {
			var d Duration
			if err := node.Decode(&d); err != nil {
				return nil, fmt.Errorf("parse config file %s: %s: %w", path, key, err)
			}
			values[key] = d.String()
			continue
		}
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("parse config file %s: %s: %w", path, key, err)
		}
		values[key] = fmt.Sprint(v)
	}
	return values, nil
}

var durationKeys = map[string]bool{
	"FETCH_TIMEOUT":    true,
	"SHUTDOWN_TIMEOUT": true,
}

func (l loader) getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, exists := l.file[key]; exists {
		return value
	}
	return defaultVal
}

func (l loader) getInt(key string, defaultVal int) int {
	raw := l.getEnv(key, strconv.Itoa(defaultVal))
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("Invalid integer setting, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}

func (l loader) getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := l.getEnv(key, defaultVal.String())
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("Invalid duration setting, using default", "key", key, "value", raw, "default", defaultVal.String())
		return defaultVal
	}
	return v
}

func (l loader) getBool(key string, defaultVal bool) bool {
	raw := l.getEnv(key, strconv.FormatBool(defaultVal))
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("Invalid boolean setting, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}
