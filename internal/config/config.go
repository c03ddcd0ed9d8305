// Package config loads recurd settings from defaults, an optional YAML file,
// a .env file and LIBRECUR_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server/auth/memory"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LIBRECUR_SERVER_ADDR for server.addr.
const EnvPrefix = "LIBRECUR"

// Config is the root configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Reminder ReminderConfig `yaml:"reminder" mapstructure:"reminder"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP listener. Users are "name:password"
// entries, with a ":ro" suffix for read-only access; none disables auth.
type ServerConfig struct {
	Addr   string   `yaml:"addr" mapstructure:"addr"`
	Prefix string   `yaml:"prefix" mapstructure:"prefix"`
	Realm  string   `yaml:"realm" mapstructure:"realm"`
	Users  []string `yaml:"users" mapstructure:"users"`
}

// StorageConfig selects the task store
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // memory or sqlite
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// EngineConfig tunes the recurrence engine. Profile picks a preset; Cache and
// MaxTake override it when set.
type EngineConfig struct {
	Zone    string `yaml:"zone" mapstructure:"zone"`
	Profile string `yaml:"profile" mapstructure:"profile"`
	Cache   *bool  `yaml:"cache" mapstructure:"cache"`
	MaxTake int    `yaml:"max_take" mapstructure:"max_take"`
}

// ReminderConfig configures the periodic reminder sweep
type ReminderConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Lead     time.Duration `yaml:"lead" mapstructure:"lead"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:   ":8080",
			Prefix: "/api",
			Realm:  "librecur",
		},
		Storage: StorageConfig{
			Driver: "memory",
			DSN:    "librecur.db",
		},
		Engine: EngineConfig{
			Zone:    recurrence.DefaultZoneName,
			Profile: "default",
		},
		Reminder: ReminderConfig{
			Enabled:  true,
			Interval: time.Minute,
			Lead:     15 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.prefix", d.Server.Prefix)
	v.SetDefault("server.realm", d.Server.Realm)
	v.SetDefault("server.users", []string{})
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("engine.zone", d.Engine.Zone)
	v.SetDefault("engine.profile", d.Engine.Profile)
	v.SetDefault("engine.cache", nil)
	v.SetDefault("engine.max_take", d.Engine.MaxTake)
	v.SetDefault("reminder.enabled", d.Reminder.Enabled)
	v.SetDefault("reminder.interval", d.Reminder.Interval)
	v.SetDefault("reminder.lead", d.Reminder.Lead)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	for _, entry := range c.Server.Users {
		if _, err := memory.ParseUser(entry); err != nil {
			return err
		}
	}
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := recurrence.ConfigByProfile(c.Engine.Profile); err != nil {
		return err
	}
	if _, err := recurrence.LoadZone(c.Engine.Zone); err != nil {
		return err
	}
	if c.Engine.MaxTake < 0 {
		return fmt.Errorf("engine.max_take must not be negative, got %d", c.Engine.MaxTake)
	}
	if c.Reminder.Enabled {
		if c.Reminder.Interval < time.Second {
			return fmt.Errorf("reminder.interval must be at least 1s, got %s", c.Reminder.Interval)
		}
		if c.Reminder.Lead <= 0 {
			return fmt.Errorf("reminder.lead must be positive, got %s", c.Reminder.Lead)
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// EngineConfig resolves the engine preset and applies the overrides.
func (c *Config) EngineConfig() (recurrence.EngineConfig, error) {
	ec, err := recurrence.ConfigByProfile(c.Engine.Profile)
	if err != nil {
		return recurrence.EngineConfig{}, err
	}
	ec.Zone = c.Engine.Zone
	if c.Engine.Cache != nil {
		ec.CacheEnabled = *c.Engine.Cache
		if ec.CacheEnabled && ec.CacheConfig == (recurrence.CacheConfig{}) {
			ec.CacheConfig = recurrence.DefaultCacheConfig
		}
	}
	if c.Engine.MaxTake > 0 {
		ec.MaxTakeCount = c.Engine.MaxTake
	}
	return ec, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
