package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/parser"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 23*time.Hour, cfg.Ledger.ExpiryTimeout)
	assert.Equal(t, "reject", cfg.Ledger.Rounding)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, BackendSQLite, cfg.Watermark.Backend)
	assert.Equal(t, BackendStore, cfg.Trust.Backend)

	sc, err := cfg.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, sc.WeeklyDay)
	assert.Equal(t, "UTC", sc.Location.String())
	assert.Equal(t, 5*time.Minute, sc.Interval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LEDGER_EXPIRY_TIMEOUT", "2h")
	t.Setenv("LEDGER_ROUNDING", "truncate")
	t.Setenv("LEDGER_SPLIT_POLICY", "compose")
	t.Setenv("LEDGER_ALLOW_GHOSTS", "true")
	t.Setenv("SCHEDULER_TIMEZONE", "Europe/Moscow")
	t.Setenv("SCHEDULER_WEEKLY_DAY", "fri")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	opts, err := cfg.ParserOptions()
	require.NoError(t, err)
	assert.Equal(t, amount.RoundTruncate, opts.Amount.Rounding)
	assert.Equal(t, parser.SplitCompose, opts.Split)
	assert.True(t, opts.AllowGhosts)

	sc, err := cfg.SchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, sc.ExpiryTimeout)
	assert.Equal(t, time.Friday, sc.WeeklyDay)
	assert.Equal(t, "Europe/Moscow", sc.Location.String())
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debtbook.yaml")
	doc := `
ledger:
  expiry_timeout: 12h
  minor_digits: 0
scheduler:
  reminder_timezone: Asia/Tokyo
  weekly_hour: 9
watermark:
  backend: memory
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12*time.Hour, cfg.Ledger.ExpiryTimeout)
	assert.Equal(t, 0, cfg.Ledger.MinorDigits)
	assert.Equal(t, "Asia/Tokyo", cfg.Scheduler.Timezone)
	assert.Equal(t, 9, cfg.Scheduler.WeeklyHour)
	assert.Equal(t, 10, cfg.Scheduler.PaydayHour, "unset keys keep defaults")
	assert.Equal(t, BackendMemory, cfg.Watermark.Backend)
	assert.Equal(t, "warn", cfg.Logging.Level, "environment wins over file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"duration":  {"LEDGER_EXPIRY_TIMEOUT", "soon"},
		"rounding":  {"LEDGER_ROUNDING", "bankers"},
		"split":     {"LEDGER_SPLIT_POLICY", "multiply"},
		"timezone":  {"SCHEDULER_TIMEZONE", "Mars/Olympus"},
		"weekday":   {"SCHEDULER_WEEKLY_DAY", "someday"},
		"hour":      {"SCHEDULER_WEEKLY_HOUR", "24"},
		"port":      {"SERVER_PORT", "70000"},
		"watermark": {"WATERMARK_BACKEND", "redis"},
		"trust":     {"TRUST_BACKEND", "graph"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			t.Setenv("GRAPH_URI", "")
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	c := HTTPConfig{AllowedOriginsCSV: " https://a.example, ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins())
	assert.Nil(t, HTTPConfig{}.AllowedOrigins())
}
