package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/parser"
	"github.com/vanshika/debtbook/internal/scheduler"
)

// ParserOptions converts the ledger section into parser options.
func (c Config) ParserOptions() (parser.Options, error) {
	opts := parser.DefaultOptions()

	rounding, err := amount.ParseRounding(c.Ledger.Rounding)
	if err != nil {
		return parser.Options{}, err
	}
	split, err := parser.ParseSplitPolicy(c.Ledger.Split)
	if err != nil {
		return parser.Options{}, err
	}

	opts.Amount = amount.Options{Rounding: rounding, MinorDigits: int32(c.Ledger.MinorDigits)}
	opts.Split = split
	opts.AllowGhosts = c.Ledger.AllowGhosts
	return opts, nil
}

// SchedulerConfig converts the scheduler section, together with the ledger expiry timeout,
// into a scheduler configuration.
func (c Config) SchedulerConfig() (scheduler.Config, error) {
	s := c.Scheduler
	cfg := scheduler.DefaultConfig()

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return scheduler.Config{}, fmt.Errorf("invalid reminder timezone %q: %w", s.Timezone, err)
	}
	day, err := parseWeekday(s.WeeklyDay)
	if err != nil {
		return scheduler.Config{}, err
	}
	for name, hour := range map[string]int{"weekly": s.WeeklyHour, "payday": s.PaydayHour} {
		if hour < 0 || hour > 23 {
			return scheduler.Config{}, fmt.Errorf("%s hour %d out of range [0,23]", name, hour)
		}
	}
	if s.Interval <= 0 || s.ReminderInterval <= 0 {
		return scheduler.Config{}, fmt.Errorf("scheduler intervals must be positive")
	}

	cfg.ExpiryTimeout = c.Ledger.ExpiryTimeout
	cfg.Interval = s.Interval
	cfg.ReminderInterval = s.ReminderInterval
	cfg.Location = loc
	cfg.WeeklyDay = day
	cfg.WeeklyHour = s.WeeklyHour
	cfg.PaydayHour = s.PaydayHour
	cfg.CatchUp = s.CatchUp
	if s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	if s.ItemTimeout > 0 {
		cfg.ItemTimeout = s.ItemTimeout
	}
	if s.BatchSize > 0 {
		cfg.BatchSize = s.BatchSize
	}
	cfg.MinorDigits = int32(c.Ledger.MinorDigits)
	cfg.RetryOnError = s.RetryOnError
	return cfg, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
