// Package config loads snipd settings from an optional YAML file, SNIPD_
// environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, with dots in
// keys replaced by underscores: engine.error_log_size -> SNIPD_ENGINE_ERROR_LOG_SIZE.
const EnvPrefix = "SNIPD"

// Config is the complete runtime configuration.
type Config struct {
	Database    string      `mapstructure:"database"`
	Log         Log         `mapstructure:"log"`
	Server      Server      `mapstructure:"server"`
	Engine      Engine      `mapstructure:"engine"`
	Interpreter Interpreter `mapstructure:"interpreter"`
	State       State       `mapstructure:"state"`
	Defs        Defs        `mapstructure:"defs"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

// Log configures logging.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Server configures the injecting HTTP layer.
type Server struct {
	Addr        string `mapstructure:"addr"`
	Upstream    string `mapstructure:"upstream"`
	Root        string `mapstructure:"root"`
	AdminPrefix string `mapstructure:"admin_prefix"`
	AuthCookie  string `mapstructure:"auth_cookie"`
	APIPrefix   string `mapstructure:"api_prefix"`
}

// Engine configures the execution engine.
type Engine struct {
	ErrorLogSize        int           `mapstructure:"error_log_size"`
	RevisionLimit       int           `mapstructure:"revision_limit"`
	SafeModeLogInterval time.Duration `mapstructure:"safe_mode_log_interval"`
	CrashMarkers        []string      `mapstructure:"crash_markers"`
	CrashFile           string        `mapstructure:"crash_file"`
	ReservedSymbols     []string      `mapstructure:"reserved_symbols"`
}

// Interpreter configures the embedded Go interpreter.
type Interpreter struct {
	Packages []string `mapstructure:"packages"`
}

// State selects where safe mode and the executing-snippet marker live.
type State struct {
	Backend  string `mapstructure:"backend"` // "sqlite" | "redis"
	RedisURL string `mapstructure:"redis_url"`
	Shared   bool   `mapstructure:"shared"`
}

// Defs configures declarative CUE definitions.
type Defs struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Loader reads configuration. The zero value is not usable; use NewLoader.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigFile reads an explicit file instead of searching for snipd.yaml.
func WithConfigFile(path string) LoaderOption {
	return func(l *Loader) {
		l.configFile = path
	}
}

// WithFlags binds command-line flags. A flag named "db" overrides the
// "database" key; other flags bind to the key of the same name.
func WithFlags(flags *pflag.FlagSet) LoaderOption {
	return func(l *Loader) {
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return
			}
			_ = l.v.BindPFlag(key, f)
		})
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"db":         "database",
	"addr":       "server.addr",
	"upstream":   "server.upstream",
	"root":       "server.root",
	"defs":       "defs.dir",
	"watch":      "defs.watch",
	"log-format": "log.format",
	"log-file":   "log.file",
	"redis-url":  "state.redis_url",
}

// NewLoader creates a loader with defaults and environment binding.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{v: viper.New()}
	setDefaults(l.v)
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database", "snipd.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.upstream", "")
	v.SetDefault("server.root", "")
	v.SetDefault("server.admin_prefix", "/admin")
	v.SetDefault("server.auth_cookie", "snipd_session")
	v.SetDefault("server.api_prefix", "/_snipd/api")
	v.SetDefault("engine.error_log_size", 20)
	v.SetDefault("engine.revision_limit", 15)
	v.SetDefault("engine.safe_mode_log_interval", time.Hour)
	v.SetDefault("engine.crash_markers", []string{})
	v.SetDefault("engine.crash_file", "snipd-crash.log")
	v.SetDefault("engine.reserved_symbols", []string{})
	v.SetDefault("interpreter.packages", []string{})
	v.SetDefault("state.backend", BackendSQLite)
	v.SetDefault("state.redis_url", "")
	v.SetDefault("state.shared", false)
	v.SetDefault("defs.dir", "")
	v.SetDefault("defs.watch", false)
}

// Load reads the configuration. A missing snipd.yaml is not an error; a
// missing explicit file is.
func (l *Loader) Load() (*Config, error) {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("snipd")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFile = l.v.ConfigFileUsed()

	// Lists from the environment arrive as one comma separated string.
	cfg.Engine.CrashMarkers = splitList(cfg.Engine.CrashMarkers)
	cfg.Engine.ReservedSymbols = splitList(cfg.Engine.ReservedSymbols)
	cfg.Interpreter.Packages = splitList(cfg.Interpreter.Packages)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Database == "" {
		return errors.New("database path is required")
	}
	switch c.State.Backend {
	case BackendSQLite:
	case BackendRedis:
		if c.State.RedisURL == "" {
			return errors.New("state.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}
	if c.Engine.ErrorLogSize < 0 || c.Engine.RevisionLimit < 0 {
		return errors.New("engine limits must not be negative")
	}
	if c.Server.Upstream != "" && c.Server.Root != "" {
		return errors.New("server.upstream and server.root are mutually exclusive")
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
