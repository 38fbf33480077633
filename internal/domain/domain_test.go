package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebtStatusTransitions(t *testing.T) {
	assert.True(t, DebtPending.CanTransition(DebtActive))
	assert.True(t, DebtPending.CanTransition(DebtRejected))
	assert.True(t, DebtActive.CanTransition(DebtPaid))

	assert.False(t, DebtActive.CanTransition(DebtRejected), "active debts are never rejected")
	assert.False(t, DebtPending.CanTransition(DebtPaid))
	assert.False(t, DebtPaid.CanTransition(DebtActive))
	assert.False(t, DebtRejected.CanTransition(DebtPending))

	assert.True(t, DebtPaid.Terminal())
	assert.True(t, DebtRejected.Terminal())
	assert.False(t, DebtActive.Terminal())
	assert.False(t, DebtStatus("closed").Valid())
}

func TestParsePaydayDays(t *testing.T) {
	assert.Equal(t, []int{1, 15}, ParsePaydayDays("15, 1,15"))
	assert.Nil(t, ParsePaydayDays(""))
	assert.Empty(t, ParsePaydayDays("invalid,format"))
	assert.Equal(t, []int{31}, ParsePaydayDays("0,31,32"))
	assert.Equal(t, "1,15", FormatPaydayDays([]int{1, 15}))
}

func TestSummarize(t *testing.T) {
	rows := []NetBalance{
		{CreditorID: 1, DebtorID: 2, TotalDebt: 5000},
		{CreditorID: 2, DebtorID: 1, TotalDebt: 3000},
		{CreditorID: 3, DebtorID: 4, TotalDebt: 700},
	}
	s := Summarize(1, rows)
	assert.Equal(t, int64(5000), s.OwedToUser)
	assert.Equal(t, int64(3000), s.OwedByUser)
	assert.Equal(t, int64(2000), s.Net())
	assert.True(t, Summarize(9, rows).Empty())
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("confirm debt 7: %w", Errorf(CodeUnauthorized, "user %d is not the debtor", 3))

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, errors.Is(err, ErrInvalidTransition))

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnauthorized, code)

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindState, kind)

	wrapped := Wrap(CodeConcurrentModification, ErrConflict, "retry exhausted")
	assert.ErrorIs(t, wrapped, ErrConcurrentModification)
	assert.ErrorIs(t, wrapped, ErrConflict)
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "@alice", User{ID: 1, Username: "alice"}.DisplayName())
	assert.Equal(t, "Bob B", User{ID: 2, FirstName: "Bob", LastName: "B"}.DisplayName())
	assert.Equal(t, "user 3", User{ID: 3}.DisplayName())
	assert.True(t, User{ID: -4}.Ghost())
	assert.Equal(t, "alice", NormalizeUsername(" @Alice"))
}
