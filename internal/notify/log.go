package notify

import (
	"context"
	"log/slog"
)

// Log writes events to a logger. It is the notifier when no bot token is configured.
type Log struct {
	logger      *slog.Logger
	minorDigits int32
}

// NewLog returns a logging notifier.
func NewLog(logger *slog.Logger, minorDigits int32) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify"), minorDigits: minorDigits}
}

// Notify implements Port.
func (l *Log) Notify(_ context.Context, userID int64, ev Event) error {
	l.logger.Info("notification",
		"user_id", userID,
		"kind", ev.Kind,
		"event_id", ev.ID,
		"debt_id", ev.DebtID,
		"text", Render(ev, l.minorDigits),
	)
	return nil
}
