package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/till/internal/common"
	"github.com/spf13/viper"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Defaults applied when neither the config file nor the environment set a value.
const (
	DefaultBaseURL  = "http://localhost:3000"
	DefaultTimeout  = 30 * time.Second
	DefaultTimezone = "Asia/Manila"
	defaultDataDir  = "$HOME/.local/share/till"
)

// Config holds the runtime settings of the client.
type Config struct {
	BaseURL        string
	SessionBackend string
	SessionPath    string
	Timezone       string
	Timeout        time.Duration
}

// Load reads configuration from v. It follows this precedence:
// 1. Viper configuration (from config file or TILL_ env vars)
// 2. Direct environment variables (TILL_BASE_URL, XDG_DATA_HOME)
// 3. Default values
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BaseURL:        v.GetString("api.base_url"),
		Timeout:        v.GetDuration("api.timeout"),
		SessionBackend: strings.ToLower(v.GetString("session.backend")),
		SessionPath:    v.GetString("session.path"),
		Timezone:       v.GetString("timezone"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("TILL_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = BackendFile
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	if cfg.SessionPath == "" {
		cfg.SessionPath = defaultSessionPath(cfg.SessionBackend)
	}
	cfg.SessionPath = ExpandPath(cfg.SessionPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all required fields hold usable values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: api.base_url %q must be an absolute http(s) URL", common.ErrInvalidConfig, c.BaseURL)
	}

	switch c.SessionBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("%w: session.backend %q (want %s or %s)", common.ErrInvalidConfig, c.SessionBackend, BackendFile, BackendSQLite)
	}

	if c.SessionPath == "" {
		return fmt.Errorf("%w: session.path", common.ErrMissingConfig)
	}
	return nil
}

// Location resolves the configured timezone. Unknown zones fall back to a
// fixed UTC+8 offset, which is what the backend books dates in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("UTC+8", 8*60*60)
	}
	return loc
}

func defaultSessionPath(backend string) string {
	dir := defaultDataDir
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dir = filepath.Join(xdg, "till")
	}

	if backend == BackendSQLite {
		return filepath.Join(dir, "till.db")
	}
	return filepath.Join(dir, "session.json")
}
