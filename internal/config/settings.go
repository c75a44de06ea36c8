package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultServerAddress = "127.0.0.1:8700"

const (
	defaultRequestTimeoutSeconds = 10
	defaultPollIntervalMillis    = 750
	defaultRetryBudget           = 5
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Polling PollingConfig `toml:"polling"`
	Logging LoggingConfig `toml:"logging"`
	UI      UIConfig      `toml:"ui"`
}

type ServerConfig struct {
	Address        string `toml:"address"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type PollingConfig struct {
	IntervalMillis int `toml:"interval_millis"`
	RetryBudget    int `toml:"retry_budget"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type UIConfig struct {
	Dark           bool `toml:"dark"`
	ActivityWindow int  `toml:"activity_window"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:        defaultServerAddress,
			TimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Polling: PollingConfig{
			IntervalMillis: defaultPollIntervalMillis,
			RetryBudget:    defaultRetryBudget,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Dark: true,
		},
	}
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Config, error) {
	cfg := Default()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return toml.Unmarshal(data, out)
}

func (c Config) ServerBaseURL() string {
	addr := strings.TrimSpace(c.Server.Address)
	if addr == "" {
		addr = defaultServerAddress
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	return "http://" + strings.TrimRight(addr, "/")
}

func (c Config) RequestTimeout() time.Duration {
	seconds := c.Server.TimeoutSeconds
	if seconds <= 0 {
		seconds = defaultRequestTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (c Config) PollInterval() time.Duration {
	millis := c.Polling.IntervalMillis
	if millis <= 0 {
		millis = defaultPollIntervalMillis
	}
	return time.Duration(millis) * time.Millisecond
}

func (c Config) PollRetryBudget() int {
	if c.Polling.RetryBudget <= 0 {
		return defaultRetryBudget
	}
	return c.Polling.RetryBudget
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}
