package postgres

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vanshika/debtbook/internal/domain"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateAdminShutdown        = "57P01"
	sqlStateCannotConnectNow     = "57P03"
)

// mapError translates driver failures into the ledger's persistence codes. Errors already
// carrying a domain code pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.CodeOf(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wrap(domain.CodeNotFound, err, "record not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == sqlStateSerializationFailure, pgErr.Code == sqlStateDeadlockDetected:
			return domain.Wrap(domain.CodeConflict, err, "transaction aborted by a concurrent writer")
		case pgErr.Code == sqlStateAdminShutdown, pgErr.Code == sqlStateCannotConnectNow,
			len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return domain.Wrap(domain.CodeUnavailable, err, "postgres connection lost")
		}
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.Wrap(domain.CodeUnavailable, err, "postgres unreachable")
	}
	return err
}
