package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

var (
	instance   *Config
	once       sync.Once
	configPath string
)

// Config is the process-wide configuration, loaded once from config.json
// in the data directory.
type Config struct {
	Email     string `json:"email,omitempty"`
	Password  string `json:"password,omitempty"`
	LogLevel  string `json:"log_level,omitempty"`
	Debug     bool   `json:"debug,omitempty"`      // escalates transient API failures to hard errors
	Proxy     string `json:"proxy,omitempty"`      // http(s):// or socks5://
	RateLimit string `json:"rate_limit,omitempty"` // 200/minute or 10/second
	Path      string `json:"-"`                    // data directory, not persisted
}

func (c *Config) JsonFile() string {
	return filepath.Join(c.Path, "config.json")
}

func (c *Config) loadConfig() error {
	if configPath == "" {
		return fmt.Errorf("config path not set")
	}
	c.Path = configPath

	file, err := os.ReadFile(c.JsonFile())
	if err != nil {
		if os.IsNotExist(err) {
			// No config file is fine, the client just starts unauthenticated.
			c.LogLevel = "info"
			return nil
		}
		return err
	}

	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.JsonFile(), data, 0644)
}

// HasCredentials reports whether a username/password pair is configured.
func (c *Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

func SetConfigPath(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	configPath = path
	return nil
}

func Get() *Config {
	once.Do(func() {
		instance = &Config{}
		if err := instance.loadConfig(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
	})
	return instance
}

// Reload forces a reload of the configuration from disk
func Reload() {
	instance = nil
	once = sync.Once{}
}
