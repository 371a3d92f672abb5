// Package config loads beacon settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIURL      string
	Token       string
	AppOrigin   string
	AppName     string
	ListenAddr  string
	PublicURL   string
	StateDir    string
	Env         string
	LogLevel    string
	HTTPTimeout time.Duration
	NoReceiver  bool
}

func Load() Config {
	return Config{
		APIURL:      getEnv("BEACON_API_URL", "http://localhost:8000/api"),
		Token:       getEnv("BEACON_TOKEN", ""),
		AppOrigin:   getEnv("BEACON_APP_ORIGIN", "http://localhost:5173"),
		AppName:     getEnv("BEACON_APP_NAME", "Milena CRM"),
		ListenAddr:  getEnv("BEACON_LISTEN_ADDR", "127.0.0.1:8765"),
		PublicURL:   getEnv("BEACON_PUBLIC_URL", ""),
		StateDir:    getEnv("BEACON_STATE_DIR", defaultStateDir()),
		Env:         getEnv("BEACON_ENV", "development"),
		LogLevel:    getEnv("BEACON_LOG_LEVEL", "info"),
		HTTPTimeout: getEnvDuration("BEACON_HTTP_TIMEOUT", 30*time.Second),
		NoReceiver:  getEnvBool("BEACON_NO_RECEIVER", false),
	}
}

// PublicBase is the base URL push endpoints are built on.
func (c Config) PublicBase() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return "http://" + c.ListenAddr
}

// TokenPath returns <state dir>/token.
func (c Config) TokenPath() string {
	return filepath.Join(c.StateDir, "token")
}

// LogPath returns the log file used while the TUI owns the terminal.
func (c Config) LogPath() string {
	return filepath.Join(c.StateDir, "beacon.log")
}

// ResolveToken fills Token from the token file when the environment did
// not set one. Precedence: env var > file > empty.
func (c *Config) ResolveToken() {
	if c.Token != "" {
		return
	}
	data, err := os.ReadFile(c.TokenPath())
	if err != nil {
		return
	}
	c.Token = strings.TrimSpace(string(data))
}

// SaveToken writes tok to the token file.
func (c Config) SaveToken(tok string) error {
	if err := os.MkdirAll(c.StateDir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", c.StateDir, err)
	}
	if err := os.WriteFile(c.TokenPath(), []byte(tok), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// RemoveToken deletes the token file. It reports false if there was none.
func (c Config) RemoveToken() (bool, error) {
	err := os.Remove(c.TokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove token: %w", err)
	}
	return true, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beacon"
	}
	return filepath.Join(home, ".beacon")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
