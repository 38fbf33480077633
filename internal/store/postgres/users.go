package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vanshika/debtbook/internal/domain"
)

const userColumns = `user_id, COALESCE(username, ''), first_name, COALESCE(last_name, ''), language_code,
	COALESCE(contact, ''), COALESCE(payday_days, ''), reminder_enabled, COALESCE(timezone, ''),
	created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u      domain.User
		payday string
	)
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.LanguageCode,
		&u.Contact, &payday, &u.ReminderEnabled, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	u.PaydayDays = domain.ParsePaydayDays(payday)
	return u, err
}

func queryUser(ctx context.Context, q querier, sql string, arg any) (domain.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.Errorf(domain.CodeNotFound, "user %v not found", arg)
		}
		return domain.User{}, mapError(err)
	}
	return u, nil
}

// User returns a user by id.
func (s *Store) User(ctx context.Context, id int64) (domain.User, error) {
	return queryUser(ctx, s.pool, `user_id=$1`, id)
}

// UserByUsername looks a user up by handle, case-insensitively.
func (s *Store) UserByUsername(ctx context.Context, username string) (domain.User, error) {
	return queryUser(ctx, s.pool, `lower(username)=lower($1)`, domain.NormalizeUsername(username))
}

// UpsertUser registers or refreshes a transport user. A ghost holding the same handle is
// adopted: its debts move to the real user and the ghost keeps only debts that would
// otherwise become self-debts.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.Username = domain.NormalizeUsername(u.Username)
	if u.LanguageCode == "" {
		u.LanguageCode = domain.DefaultLanguage
	}

	var out domain.User
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if u.Username != "" && u.ID > 0 {
			if err := adoptGhost(ctx, tx, u.ID, u.Username); err != nil {
				return err
			}
		}
		var payday *string
		if u.PaydayDays != nil {
			v := domain.FormatPaydayDays(u.PaydayDays)
			payday = &v
		}
		var err error
		out, err = scanUser(tx.QueryRow(ctx, `
			INSERT INTO users(user_id, username, first_name, last_name, language_code, contact,
				payday_days, reminder_enabled, timezone)
			VALUES($1, NULLIF($2::text,''), $3, NULLIF($4::text,''), $5, NULLIF($6::text,''),
				$7, $8, NULLIF($9::text,''))
			ON CONFLICT (user_id) DO UPDATE
			SET username=EXCLUDED.username,
				first_name=EXCLUDED.first_name,
				last_name=EXCLUDED.last_name,
				language_code=EXCLUDED.language_code,
				contact=COALESCE(EXCLUDED.contact, users.contact),
				payday_days=COALESCE(EXCLUDED.payday_days, users.payday_days),
				reminder_enabled=EXCLUDED.reminder_enabled,
				timezone=COALESCE(EXCLUDED.timezone, users.timezone)
			RETURNING `+userColumns,
			u.ID, u.Username, u.FirstName, u.LastName, u.LanguageCode, u.Contact,
			payday, u.ReminderEnabled, u.Timezone))
		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user %d: %w", u.ID, mapError(err))
	}
	return out, nil
}

func adoptGhost(ctx context.Context, tx pgx.Tx, realID int64, username string) error {
	var ghostID int64
	err := tx.QueryRow(ctx, `
		SELECT user_id FROM users WHERE lower(username)=lower($1) AND user_id < 0 FOR UPDATE
	`, username).Scan(&ghostID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET username=NULL WHERE user_id=$1`, ghostID); err != nil {
		return err
	}
	// The real user row may not exist yet; the FK is satisfied by inserting a stub first.
	if _, err := tx.Exec(ctx, `
		INSERT INTO users(user_id) VALUES($1) ON CONFLICT (user_id) DO NOTHING
	`, realID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE debts SET debtor_id=$2 WHERE debtor_id=$1 AND creditor_id<>$2
	`, ghostID, realID); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE debts SET creditor_id=$2 WHERE creditor_id=$1 AND debtor_id<>$2
	`, ghostID, realID)
	return err
}

// EnsureGhostUser implements ledger.Tx: it registers a placeholder for an unknown handle
// under a negative id, or returns the user already holding the handle.
func (t *txStore) EnsureGhostUser(ctx context.Context, username string) (domain.User, error) {
	name := domain.NormalizeUsername(username)
	byName := `lower(username)=lower($1)`
	u, err := queryUser(ctx, t.q, byName, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	u, err = scanUser(t.q.QueryRow(ctx, `
		INSERT INTO users(user_id, username)
		VALUES(-nextval('ghost_user_seq'), $1)
		ON CONFLICT (username) DO NOTHING
		RETURNING `+userColumns, name))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race to a concurrent registration of the same handle.
		return queryUser(ctx, t.q, byName, name)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create ghost user @%s: %w", name, mapError(err))
	}
	return u, nil
}

// ListReminderUsers returns real users that opted into reminders.
func (s *Store) ListReminderUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reminder_enabled AND user_id > 0
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list reminder users: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", mapError(err))
		}
		out = append(out, u)
	}
	return out, mapError(rows.Err())
}

// Trust records that truster accepts debts from trusted without confirmation.
func (s *Store) Trust(ctx context.Context, truster, trusted int64) error {
	if truster == trusted {
		return domain.Errorf(domain.CodeSelfDebt, "a user cannot trust themselves")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trusted_users(user_id, trusted_user_id) VALUES($1,$2)
		ON CONFLICT DO NOTHING
	`, truster, trusted)
	return mapError(err)
}

// Untrust removes a trust relation.
func (s *Store) Untrust(ctx context.Context, truster, trusted int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM trusted_users WHERE user_id=$1 AND trusted_user_id=$2`, truster, trusted)
	return mapError(err)
}

// Trusts reports whether truster trusts trusted.
func (s *Store) Trusts(ctx context.Context, truster, trusted int64) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM trusted_users WHERE user_id=$1 AND trusted_user_id=$2)
	`, truster, trusted).Scan(&ok)
	return ok, mapError(err)
}

// ListTrusted returns the relations where truster is the trusting side.
func (s *Store) ListTrusted(ctx context.Context, truster int64) ([]domain.TrustRelation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, trusted_user_id, created_at FROM trusted_users
		WHERE user_id=$1 ORDER BY trusted_user_id
	`, truster)
	if err != nil {
		return nil, fmt.Errorf("list trusted: %w", mapError(err))
	}
	defer rows.Close()

	var out []domain.TrustRelation
	for rows.Next() {
		var r domain.TrustRelation
		if err := rows.Scan(&r.TrusterID, &r.TrustedID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trust relation: %w", mapError(err))
		}
		out = append(out, r)
	}
	return out, mapError(rows.Err())
}

// ClaimWatermark inserts the watermark unless it exists and reports whether this call won.
func (s *Store) ClaimWatermark(ctx context.Context, w domain.Watermark) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO job_watermarks(user_id, job, period, claimed_at)
		VALUES($1,$2,$3,$4)
		ON CONFLICT DO NOTHING
	`, w.UserID, w.Job, w.Period, w.ClaimedAt)
	if err != nil {
		return false, fmt.Errorf("claim watermark: %w", mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// PruneWatermarks deletes claims made before cutoff.
func (s *Store) PruneWatermarks(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_watermarks WHERE claimed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune watermarks: %w", mapError(err))
	}
	return tag.RowsAffected(), nil
}

// ReleaseWatermark drops a claim so the occurrence is retried.
func (s *Store) ReleaseWatermark(ctx context.Context, w domain.Watermark) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM job_watermarks WHERE user_id=$1 AND job=$2 AND period=$3
	`, w.UserID, w.Job, w.Period)
	return mapError(err)
}
