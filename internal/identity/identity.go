// Package identity resolves chat handles to ledger users and registers transport users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/vanshika/debtbook/internal/domain"
)

// UserStore is the persistence required by Directory.
type UserStore interface {
	User(ctx context.Context, id int64) (domain.User, error)
	UserByUsername(ctx context.Context, username string) (domain.User, error)
	UpsertUser(ctx context.Context, u domain.User) (domain.User, error)
	ListReminderUsers(ctx context.Context) ([]domain.User, error)
}

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// ErrInvalidUser marks registration input that fails validation.
var ErrInvalidUser = errors.New("invalid user")

// Directory implements parser.Resolver over a UserStore.
type Directory struct {
	users  UserStore
	logger *slog.Logger
}

// NewDirectory wraps users.
func NewDirectory(users UserStore, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{users: users, logger: logger.With("component", "identity")}
}

// Resolve maps a handle to a user id. Unknown handles are not an error.
func (d *Directory) Resolve(ctx context.Context, handle string) (int64, bool, error) {
	u, err := d.users.UserByUsername(ctx, handle)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve @%s: %w", domain.NormalizeUsername(handle), err)
	}
	return u.ID, true, nil
}

// Register validates and stores a transport user.
func (d *Directory) Register(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID <= 0 {
		return domain.User{}, fmt.Errorf("%w: id %d must be positive", ErrInvalidUser, u.ID)
	}
	if u.Username != "" && !handlePattern.MatchString(domain.NormalizeUsername(u.Username)) {
		return domain.User{}, fmt.Errorf("%w: invalid username %q", ErrInvalidUser, u.Username)
	}
	if u.Timezone != "" {
		if _, err := time.LoadLocation(u.Timezone); err != nil {
			return domain.User{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidUser, u.Timezone)
		}
	}
	stored, err := d.users.UpsertUser(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("register user %d: %w", u.ID, err)
	}
	d.logger.Debug("user registered", "user_id", stored.ID, "username", stored.Username)
	return stored, nil
}

// User returns a user by id.
func (d *Directory) User(ctx context.Context, id int64) (domain.User, error) {
	return d.users.User(ctx, id)
}

// ReminderUsers lists users that receive scheduled reminders.
func (d *Directory) ReminderUsers(ctx context.Context) ([]domain.User, error) {
	return d.users.ListReminderUsers(ctx)
}

// Location returns the user's timezone, or fallback when unset or unknown.
func Location(u domain.User, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if u.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
