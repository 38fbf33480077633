package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
)

// UpsertUser inserts or refreshes the profile of a transport user. Payday days and timezone
// are only overwritten when the incoming record carries them. A ghost with the same handle
// is adopted.
func (s *Store) UpsertUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pingErr != nil {
		return domain.User{}, domain.Wrap(domain.CodeUnavailable, s.pingErr, "memory store offline")
	}

	now := s.nowFn()
	u.Username = domain.NormalizeUsername(u.Username)
	if u.LanguageCode == "" {
		u.LanguageCode = domain.DefaultLanguage
	}
	if u.ID > 0 && u.Username != "" {
		s.adoptGhost(u.ID, u.Username)
	}
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
		if u.PaydayDays == nil {
			u.PaydayDays = existing.PaydayDays
		}
		if u.Timezone == "" {
			u.Timezone = existing.Timezone
		}
		if u.Contact == "" {
			u.Contact = existing.Contact
		}
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

// adoptGhost moves the debts of a ghost holding username to realID. Debts that would become
// self-debts stay with the ghost, which loses its handle.
func (s *Store) adoptGhost(realID int64, username string) {
	for id, g := range s.users {
		if !g.Ghost() || g.Username != username {
			continue
		}
		g.Username = ""
		s.users[id] = g
		for debtID, d := range s.debts {
			switch {
			case d.DebtorID == id && d.CreditorID != realID:
				d.DebtorID = realID
			case d.CreditorID == id && d.DebtorID != realID:
				d.CreditorID = realID
			default:
				continue
			}
			s.debts[debtID] = d
		}
	}
}

// User returns a user by id.
func (s *Store) User(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.Errorf(domain.CodeNotFound, "user %d not found", id)
	}
	return u, nil
}

// UserByUsername looks a user up by handle, case-insensitively.
func (s *Store) UserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := domain.NormalizeUsername(username)
	for _, u := range s.users {
		if u.Username != "" && u.Username == name {
			return u, nil
		}
	}
	return domain.User{}, domain.Errorf(domain.CodeNotFound, "user @%s not found", name)
}

// EnsureGhostUser implements ledger.Tx. Ghost ids are negative and never collide with
// transport ids. An existing user with that handle is returned as is.
func (t *tx) EnsureGhostUser(_ context.Context, username string) (domain.User, error) {
	s := t.s
	name := domain.NormalizeUsername(username)
	for _, u := range s.users {
		if u.Username == name {
			return u, nil
		}
	}
	s.nextGhostID--
	now := s.nowFn()
	u := domain.User{
		ID:           s.nextGhostID,
		Username:     name,
		LanguageCode: domain.DefaultLanguage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return u, nil
}

// Users returns the number of stored users, placeholders included. Tests use it.
func (s *Store) Users() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// ListReminderUsers returns real users that opted into reminders, ordered by id.
func (s *Store) ListReminderUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, u := range s.users {
		if u.ReminderEnabled && !u.Ghost() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Trust records that truster accepts debts from trusted without confirmation.
func (s *Store) Trust(_ context.Context, truster, trusted int64) error {
	if truster == trusted {
		return domain.Errorf(domain.CodeSelfDebt, "a user cannot trust themselves")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := trustKey{truster, trusted}
	if _, ok := s.trust[key]; !ok {
		s.trust[key] = s.nowFn()
	}
	return nil
}

// Untrust removes a trust relation. Removing a missing relation is not an error.
func (s *Store) Untrust(_ context.Context, truster, trusted int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trust, trustKey{truster, trusted})
	return nil
}

// Trusts reports whether truster trusts trusted.
func (s *Store) Trusts(_ context.Context, truster, trusted int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trust[trustKey{truster, trusted}]
	return ok, nil
}

// ListTrusted returns the relations where truster is the trusting side.
func (s *Store) ListTrusted(_ context.Context, truster int64) ([]domain.TrustRelation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrustRelation
	for key, at := range s.trust {
		if key.truster == truster {
			out = append(out, domain.TrustRelation{TrusterID: key.truster, TrustedID: key.trusted, CreatedAt: at})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrustedID < out[j].TrustedID })
	return out, nil
}

// ClaimWatermark records the watermark unless it already exists. It reports whether this
// call made the claim.
func (s *Store) ClaimWatermark(_ context.Context, w domain.Watermark) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pingErr != nil {
		return false, domain.Wrap(domain.CodeUnavailable, s.pingErr, "memory store offline")
	}
	key := watermarkKey{w.UserID, w.Job, w.Period}
	if _, ok := s.watermarks[key]; ok {
		return false, nil
	}
	at := w.ClaimedAt
	if at.IsZero() {
		at = s.nowFn()
	}
	s.watermarks[key] = at
	return true, nil
}

// ReleaseWatermark drops a claim so a failed delivery can be retried on the next sweep.
func (s *Store) ReleaseWatermark(_ context.Context, w domain.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watermarks, watermarkKey{w.UserID, w.Job, w.Period})
	return nil
}

// PruneWatermarks drops claims made before cutoff.
func (s *Store) PruneWatermarks(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, at := range s.watermarks {
		if at.Before(cutoff) {
			delete(s.watermarks, key)
			n++
		}
	}
	return n, nil
}

// Watermarks returns the number of recorded claims. Tests use it.
func (s *Store) Watermarks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watermarks)
}

