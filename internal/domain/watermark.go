package domain

import "time"

// Watermark marks one delivered occurrence of a periodic job for a user. Period identifies the
// occurrence, e.g. its local date "2026-10-19".
type Watermark struct {
	UserID    int64
	Job       string
	Period    string
	ClaimedAt time.Time
}
