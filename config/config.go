package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/tazhate/flock/internal/blob"
)

// EnvPrefix prefixes every environment override, e.g. FLOCK_DATABASE_DSN.
const EnvPrefix = "FLOCK"

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Timezone  *time.Location
	Auth      AuthConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	CalDAV    CalDAVConfig
	Blob      blob.Config
	Logging   LoggingConfig
}

type DatabaseConfig struct {
	Driver string // sqlite3, sqlite or pgx
	DSN    string
}

type ServerConfig struct {
	Port string
}

// AuthConfig verifies tokens issued by the hosted auth provider.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type TelegramConfig struct {
	Token          string
	WebhookURL     string
	PastoralChatID int64
}

type SchedulerConfig struct {
	GenerationSpec   string
	HorizonDays      int
	RotaReminderSpec string
	TaskDigestSpec   string
}

type CalDAVConfig struct {
	URL          string
	Username     string
	Password     string
	CalendarPath string
}

type LoggingConfig struct {
	Level  string
	Format string
}

var defaults = map[string]any{
	"database.driver":              "sqlite3",
	"database.dsn":                 "./data/flock.db",
	"server.port":                  "8080",
	"timezone":                     "UTC",
	"auth.jwt_secret":              "",
	"auth.issuer":                  "",
	"telegram.token":               "",
	"telegram.webhook_url":         "",
	"telegram.pastoral_chat_id":    int64(0),
	"scheduler.generation_spec":    "0 3 * * *",
	"scheduler.horizon_days":       90,
	"scheduler.rota_reminder_spec": "0 18 * * *",
	"scheduler.task_digest_spec":   "0 8 * * *",
	"caldav.url":                   "",
	"caldav.username":              "",
	"caldav.password":              "",
	"caldav.calendar_path":         "",
	"blob.driver":                  string(blob.DriverFilesystem),
	"blob.fs_root":                 "./data/blobs",
	"blob.s3.bucket":               "",
	"blob.s3.region":               "",
	"blob.s3.endpoint":             "",
	"blob.s3.access_key_id":        "",
	"blob.s3.secret_access_key":    "",
	"blob.s3.path_style":           false,
	"logging.level":                "info",
	"logging.format":               "console",
}

// NewViper returns a viper instance with defaults and FLOCK_ environment
// overrides. Callers add a config file on top.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

// SetDefaults registers every key so environment overrides apply to it.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Server: ServerConfig{Port: v.GetString("server.port")},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Telegram: TelegramConfig{
			Token:          v.GetString("telegram.token"),
			WebhookURL:     v.GetString("telegram.webhook_url"),
			PastoralChatID: v.GetInt64("telegram.pastoral_chat_id"),
		},
		Scheduler: SchedulerConfig{
			GenerationSpec:   v.GetString("scheduler.generation_spec"),
			HorizonDays:      v.GetInt("scheduler.horizon_days"),
			RotaReminderSpec: v.GetString("scheduler.rota_reminder_spec"),
			TaskDigestSpec:   v.GetString("scheduler.task_digest_spec"),
		},
		CalDAV: CalDAVConfig{
			URL:          v.GetString("caldav.url"),
			Username:     v.GetString("caldav.username"),
			Password:     v.GetString("caldav.password"),
			CalendarPath: v.GetString("caldav.calendar_path"),
		},
		Blob: blob.Config{
			Driver: v.GetString("blob.driver"),
			FSRoot: v.GetString("blob.fs_root"),
			S3: blob.S3Config{
				Bucket:          v.GetString("blob.s3.bucket"),
				Region:          v.GetString("blob.s3.region"),
				Endpoint:        v.GetString("blob.s3.endpoint"),
				AccessKeyID:     v.GetString("blob.s3.access_key_id"),
				SecretAccessKey: v.GetString("blob.s3.secret_access_key"),
				PathStyle:       v.GetBool("blob.s3.path_style"),
			},
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	tz, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	cfg.Timezone = tz

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "sqlite", "pgx":
	default:
		return fmt.Errorf("invalid database.driver %q (sqlite3, sqlite, pgx)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Scheduler.HorizonDays < 1 {
		return fmt.Errorf("scheduler.horizon_days must be at least 1")
	}
	for key, spec := range map[string]string{
		"scheduler.generation_spec":    c.Scheduler.GenerationSpec,
		"scheduler.rota_reminder_spec": c.Scheduler.RotaReminderSpec,
		"scheduler.task_digest_spec":   c.Scheduler.TaskDigestSpec,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory:
	default:
		return fmt.Errorf("invalid blob.driver %q (fs, s3, memory)", c.Blob.Driver)
	}
	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required to serve the API")
	}
	return nil
}

// Horizon is the generation window starting at from.
func (c *Config) Horizon(from time.Time) time.Time {
	return from.AddDate(0, 0, c.Scheduler.HorizonDays)
}
