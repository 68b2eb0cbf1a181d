package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Observer ObserverConfig `toml:"observer" yaml:"observer"`
}

type ServerConfig struct {
	Addr            string        `toml:"addr" yaml:"addr"`
	MaxUploadBytes  int64         `toml:"max_upload_bytes" yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	UploadDir string `toml:"upload_dir" yaml:"upload_dir"`
}

type DatabaseConfig struct {
	Driver      string        `toml:"driver" yaml:"driver"` // "sqlite" or "postgres"
	Path        string        `toml:"path" yaml:"path"`
	URL         string        `toml:"url" yaml:"url"`
	MaxConns    int32         `toml:"max_conns" yaml:"max_conns"`
	MinConns    int32         `toml:"min_conns" yaml:"min_conns"`
	DialTimeout time.Duration `toml:"dial_timeout" yaml:"dial_timeout"`

	ConnectAttempts int `toml:"connect_attempts" yaml:"connect_attempts"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "text" or "json"
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxUploadBytes:  32 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage:  StorageConfig{UploadDir: "media"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "modulebox.db", MaxConns: 10, DialTimeout: 5 * time.Second, ConnectAttempts: 5},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config: defaults -> TOML or YAML file -> env vars (env wins).
// A missing or unreadable file leaves the defaults in place.
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "modulebox.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			_ = yaml.Unmarshal(data, &cfg)
		default:
			_ = toml.Unmarshal(data, &cfg)
		}
	}

	// Env overrides
	if v := os.Getenv("MODULEBOX_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MODULEBOX_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("MODULEBOX_UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := os.Getenv("MODULEBOX_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("MODULEBOX_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MODULEBOX_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MODULEBOX_DB_CONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Database.ConnectAttempts = n
		}
	}
	if v := os.Getenv("MODULEBOX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MODULEBOX_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if os.Getenv("MODULEBOX_OBSERVER_ENABLED") == "true" || os.Getenv("MODULEBOX_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Database.URL != "" && cfg.Database.Driver == "sqlite" && os.Getenv("MODULEBOX_DB_DRIVER") == "" {
		cfg.Database.Driver = "postgres"
	}

	return cfg
}

// SlogLevel maps Level to a slog level. Unknown names mean info.
func (c LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
