package config

import (
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/ormlog/internal/eventlog"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// EventLogConfig configures the database event log. Options holds the raw
// value from the config source; see eventlog.ParseOptions for its shapes.
type EventLogConfig struct {
	Options any    `mapstructure:"options"`
	LogPath string `mapstructure:"log_path"`
	Root    string `mapstructure:"root"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	SlowQueryThreshold string `mapstructure:"slow_query_threshold"`
	MigrationsDir      string `mapstructure:"migrations_dir"`
}

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	EventLog EventLogConfig `mapstructure:"ormlog"`
	Database DatabaseConfig `mapstructure:"database"`
}

// Load reads config.yaml from ./config or the working directory, applies
// environment overrides (ORMLOG_OPTIONS, DATABASE_DSN, ...) and validates
// the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("app.environment", EnvDev)
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("ormlog.options", "all")
	v.SetDefault("ormlog.log_path", "")
	v.SetDefault("ormlog.root", "")
	v.SetDefault("database.dsn", "file:ormlog.db")
	v.SetDefault("database.slow_query_threshold", "1s")
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// EventLogOptions parses the configured category selection.
func (c *Config) EventLogOptions() (eventlog.Options, error) {
	return eventlog.ParseOptions(c.EventLog.Options)
}

// SlowQueryThreshold returns the parsed threshold. Call Validate first.
func (c *Config) SlowQueryThreshold() time.Duration {
	d, _ := time.ParseDuration(c.Database.SlowQueryThreshold)
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.App,
			validation.Required,
			validation.By(func(value interface{}) error {
				ac, ok := value.(AppConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an AppConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.EventLog,
			validation.By(func(value interface{}) error {
				ec, ok := value.(EventLogConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an EventLogConfig")
				}
				return validation.ValidateStruct(&ec,
					validation.Field(&ec.Options, validation.By(validateEventLogOptions)),
				)
			}),
		),
		validation.Field(&c.Database,
			validation.Required,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DatabaseConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DatabaseConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.DSN, validation.Required),
					validation.Field(&dc.SlowQueryThreshold,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
	)
}

func validateEventLogOptions(value interface{}) error {
	if _, err := eventlog.ParseOptions(value); err != nil {
		return validation.NewError("validation_invalid_options", err.Error())
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 500ms, 2s, 1m)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}
