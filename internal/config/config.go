package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig      `yaml:"server"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Graph     GraphConfig     `yaml:"graph"`
	Watermark WatermarkConfig `yaml:"watermark"`
	Trust     TrustConfig     `yaml:"trust"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOriginsCSV string        `yaml:"allowed_origins"`
}

// LedgerConfig holds the parsing and confirmation policy.
type LedgerConfig struct {
	ExpiryTimeout      time.Duration `yaml:"expiry_timeout"`
	Rounding           string        `yaml:"rounding_policy"` // reject|truncate
	Split              string        `yaml:"split_policy"`    // override|compose
	AllowGhosts        bool          `yaml:"allow_ghosts"`
	AutoConfirmTrusted bool          `yaml:"auto_confirm_trusted"`
	MinorDigits        int           `yaml:"minor_digits"`
}

// SchedulerConfig controls the expiry sweep and reminder jobs.
type SchedulerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Interval         time.Duration `yaml:"scheduler_interval"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	Timezone         string        `yaml:"reminder_timezone"`
	WeeklyDay        string        `yaml:"weekly_day"`
	WeeklyHour       int           `yaml:"weekly_hour"`
	PaydayHour       int           `yaml:"payday_hour"`
	CatchUp          time.Duration `yaml:"catch_up"`
	Workers          int           `yaml:"workers"`
	ItemTimeout      time.Duration `yaml:"item_timeout"`
	BatchSize        int           `yaml:"batch_size"`
	RetryOnError     bool          `yaml:"retry_on_error"`
}

// PostgresConfig describes the ledger database. An empty URL selects the in-memory store.
type PostgresConfig struct {
	URL            string `yaml:"url"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// GraphConfig describes connectivity to the graph database (Neo4j).
type GraphConfig struct {
	URI            string `yaml:"uri"`
	Database       string `yaml:"database"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxConnections int    `yaml:"max_connections"`
}

// WatermarkConfig selects where reminder watermarks are persisted.
type WatermarkConfig struct {
	Backend    string `yaml:"backend"` // sqlite|postgres|memory
	SQLitePath string `yaml:"sqlite_path"`
}

// TrustConfig selects the trust relation store.
type TrustConfig struct {
	Backend string `yaml:"backend"` // store|graph
	MaxHops int    `yaml:"max_hops"`
}

// TelegramConfig configures notification delivery.
type TelegramConfig struct {
	Token         string        `yaml:"token"`
	NotifyWorkers int           `yaml:"notify_workers"`
	NotifyBuffer  int           `yaml:"notify_buffer"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendStore    = "store"
	BackendGraph    = "graph"
)

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultExpiryTimeout    = 23 * time.Hour
	defaultWatermarkPath    = "data/watermarks.db"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Host:            defaultHost,
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Ledger: LedgerConfig{
			ExpiryTimeout: defaultExpiryTimeout,
			Rounding:      "reject",
			Split:         "override",
			MinorDigits:   2,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			Interval:         5 * time.Minute,
			ReminderInterval: 15 * time.Minute,
			Timezone:         "UTC",
			WeeklyDay:        "monday",
			WeeklyHour:       10,
			PaydayHour:       10,
			CatchUp:          48 * time.Hour,
			Workers:          4,
			ItemTimeout:      30 * time.Second,
			BatchSize:        500,
		},
		Graph: GraphConfig{MaxConnections: defaultGraphMaxSessions},
		Watermark: WatermarkConfig{
			Backend:    BackendSQLite,
			SQLitePath: defaultWatermarkPath,
		},
		Trust: TrustConfig{Backend: BackendStore, MaxHops: 4},
		Telegram: TelegramConfig{
			NotifyWorkers: 2,
			NotifyBuffer:  256,
			NotifyTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  defaultLoggingLevel,
			Format: defaultLoggingFormat,
		},
	}
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE and then from
// environment variables, which take precedence. The result is validated.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTP.Host = valueOrDefault("SERVER_HOST", cfg.HTTP.Host)
	cfg.HTTP.AllowedOriginsCSV = valueOrDefault("SERVER_ALLOWED_ORIGINS", cfg.HTTP.AllowedOriginsCSV)

	port, err := parsePort("SERVER_PORT", cfg.HTTP.Port)
	if err != nil {
		return err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"LEDGER_EXPIRY_TIMEOUT", &cfg.Ledger.ExpiryTimeout},
		{"SCHEDULER_INTERVAL", &cfg.Scheduler.Interval},
		{"SCHEDULER_REMINDER_INTERVAL", &cfg.Scheduler.ReminderInterval},
		{"SCHEDULER_CATCH_UP", &cfg.Scheduler.CatchUp},
		{"SCHEDULER_ITEM_TIMEOUT", &cfg.Scheduler.ItemTimeout},
		{"NOTIFY_TIMEOUT", &cfg.Telegram.NotifyTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	cfg.Ledger.Rounding = valueOrDefault("LEDGER_ROUNDING", cfg.Ledger.Rounding)
	cfg.Ledger.Split = valueOrDefault("LEDGER_SPLIT_POLICY", cfg.Ledger.Split)
	cfg.Ledger.AllowGhosts = parseBoolWithDefault("LEDGER_ALLOW_GHOSTS", cfg.Ledger.AllowGhosts)
	cfg.Ledger.AutoConfirmTrusted = parseBoolWithDefault("LEDGER_AUTO_CONFIRM_TRUSTED", cfg.Ledger.AutoConfirmTrusted)
	cfg.Ledger.MinorDigits = parseIntWithDefault("LEDGER_MINOR_DIGITS", cfg.Ledger.MinorDigits)

	cfg.Scheduler.Enabled = parseBoolWithDefault("SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.Timezone = valueOrDefault("SCHEDULER_TIMEZONE", cfg.Scheduler.Timezone)
	cfg.Scheduler.WeeklyDay = valueOrDefault("SCHEDULER_WEEKLY_DAY", cfg.Scheduler.WeeklyDay)
	cfg.Scheduler.WeeklyHour = parseIntWithDefault("SCHEDULER_WEEKLY_HOUR", cfg.Scheduler.WeeklyHour)
	cfg.Scheduler.PaydayHour = parseIntWithDefault("SCHEDULER_PAYDAY_HOUR", cfg.Scheduler.PaydayHour)
	cfg.Scheduler.Workers = parseIntWithDefault("SCHEDULER_WORKERS", cfg.Scheduler.Workers)
	cfg.Scheduler.BatchSize = parseIntWithDefault("SCHEDULER_BATCH_SIZE", cfg.Scheduler.BatchSize)
	cfg.Scheduler.RetryOnError = parseBoolWithDefault("SCHEDULER_RETRY_ON_ERROR", cfg.Scheduler.RetryOnError)

	cfg.Postgres.URL = valueOrDefault("DATABASE_URL", cfg.Postgres.URL)
	cfg.Postgres.MigrateOnStart = parseBoolWithDefault("DATABASE_MIGRATE", cfg.Postgres.MigrateOnStart)

	cfg.Graph.URI = valueOrDefault("GRAPH_URI", cfg.Graph.URI)
	cfg.Graph.Database = valueOrDefault("GRAPH_DATABASE", cfg.Graph.Database)
	cfg.Graph.Username = valueOrDefault("GRAPH_USERNAME", cfg.Graph.Username)
	cfg.Graph.Password = valueOrDefault("GRAPH_PASSWORD", cfg.Graph.Password)
	cfg.Graph.MaxConnections = parseIntWithDefault("GRAPH_MAX_CONNECTIONS", cfg.Graph.MaxConnections)

	cfg.Watermark.Backend = valueOrDefault("WATERMARK_BACKEND", cfg.Watermark.Backend)
	cfg.Watermark.SQLitePath = valueOrDefault("WATERMARK_SQLITE_PATH", cfg.Watermark.SQLitePath)

	cfg.Trust.Backend = valueOrDefault("TRUST_BACKEND", cfg.Trust.Backend)
	cfg.Trust.MaxHops = parseIntWithDefault("TRUST_MAX_HOPS", cfg.Trust.MaxHops)

	cfg.Telegram.Token = valueOrDefault("BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.NotifyWorkers = parseIntWithDefault("NOTIFY_WORKERS", cfg.Telegram.NotifyWorkers)
	cfg.Telegram.NotifyBuffer = parseIntWithDefault("NOTIFY_BUFFER", cfg.Telegram.NotifyBuffer)

	cfg.Logging.Level = valueOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = valueOrDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.IncludeCaller = parseBoolWithDefault("LOG_INCLUDE_CALLER", cfg.Logging.IncludeCaller)
	return nil
}

// Validate checks cross-field constraints and policy names.
func (c Config) Validate() error {
	if c.Ledger.ExpiryTimeout <= 0 {
		return fmt.Errorf("expiry timeout must be positive, got %s", c.Ledger.ExpiryTimeout)
	}
	if c.Ledger.MinorDigits < 0 || c.Ledger.MinorDigits > 6 {
		return fmt.Errorf("minor digits %d out of range [0,6]", c.Ledger.MinorDigits)
	}
	if _, err := c.ParserOptions(); err != nil {
		return err
	}
	if _, err := c.SchedulerConfig(); err != nil {
		return err
	}
	switch c.Watermark.Backend {
	case BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown watermark backend %q", c.Watermark.Backend)
	}
	if c.Watermark.Backend == BackendPostgres && c.Postgres.URL == "" {
		return fmt.Errorf("watermark backend postgres requires DATABASE_URL")
	}
	switch c.Trust.Backend {
	case BackendStore:
	case BackendGraph:
		if c.Graph.URI == "" {
			return fmt.Errorf("trust backend graph requires GRAPH_URI")
		}
	default:
		return fmt.Errorf("unknown trust backend %q", c.Trust.Backend)
	}
	return nil
}

// AllowedOrigins splits the CSV origin list.
func (c HTTPConfig) AllowedOrigins() []string {
	if c.AllowedOriginsCSV == "" {
		return nil
	}
	var origins []string
	for _, part := range strings.Split(c.AllowedOriginsCSV, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		fallback = port
	}
	if fallback <= 0 || fallback > 65535 {
		return 0, fmt.Errorf("port %d is out of range", fallback)
	}
	return fallback, nil
}
