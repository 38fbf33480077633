package notify

import (
	"context"
	"sync"
)

// Delivered is an event captured by Recorder.
type Delivered struct {
	UserID int64
	Event  Event
}

// Recorder keeps every event in memory. Err, when set, is returned after recording.
type Recorder struct {
	mu     sync.Mutex
	events []Delivered
	Err    error
}

// Notify implements Port.
func (r *Recorder) Notify(_ context.Context, userID int64, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Delivered{UserID: userID, Event: ev})
	return r.Err
}

// Events returns a snapshot of recorded deliveries.
func (r *Recorder) Events() []Delivered {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivered(nil), r.events...)
}

// Kinds returns the kinds delivered to userID in order.
func (r *Recorder) Kinds(userID int64) []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, d := range r.events {
		if d.UserID == userID {
			out = append(out, d.Event.Kind)
		}
	}
	return out
}
