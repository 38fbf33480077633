package amount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/domain"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"900", 900},
		{"900/3", 300},
		{"100+50*2", 200},
		{"100-20-30", 50},
		{"600/3*2", 400},
		{"2*3+4*5", 26},
		{"12.50", 1250},
		{"12,5", 1250},
		{"10.5+0.5", 1100},
		{" 900 / 3 ", 300},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr, DefaultOptions())
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}
}

func TestEvaluateMajorUnitsApplyToWholeExpression(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"100*1.5", 15000},
		{"1.5*1.5", 225},
		{"900/1.5", 60000},
		{"12+0.5", 1250},
		{"10.0/4", 250},
		{"37.50/3", 1250},
		{"3*12,5", 3750},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr, DefaultOptions())
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}

	_, err := Evaluate("10.0/3", DefaultOptions())
	assert.ErrorIs(t, err, domain.ErrNonIntegerResult)
	_, err = Evaluate("0.15*0.15", DefaultOptions())
	assert.ErrorIs(t, err, domain.ErrNonIntegerResult)

	got, err := Evaluate("10.0/3", Options{Rounding: RoundTruncate, MinorDigits: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(333), got)

	_, err = Evaluate("12.5", Options{Rounding: RoundReject, MinorDigits: 0})
	assert.ErrorIs(t, err, domain.ErrNonIntegerResult)
}

func TestEvaluateFailures(t *testing.T) {
	cases := []struct {
		expr string
		want error
	}{
		{"", domain.ErrMalformedExpression},
		{"abc", domain.ErrMalformedExpression},
		{"10+", domain.ErrMalformedExpression},
		{"*10", domain.ErrMalformedExpression},
		{"-10", domain.ErrMalformedExpression},
		{"10**2", domain.ErrMalformedExpression},
		{"1.2.3", domain.ErrMalformedExpression},
		{"12.", domain.ErrMalformedExpression},
		{"(1+2)", domain.ErrMalformedExpression},
		{"10/0", domain.ErrDivisionByZero},
		{"100/3", domain.ErrNonIntegerResult},
		{"1.005", domain.ErrNonIntegerResult},
		{"10-10", domain.ErrNonPositiveAmount},
		{"10-20", domain.ErrNonPositiveAmount},
		{"99999999999999999999", domain.ErrMalformedExpression},
		{strings.Repeat("1+", MaxExpressionLength) + "1", domain.ErrMalformedExpression},
	}
	for _, tc := range cases {
		_, err := Evaluate(tc.expr, DefaultOptions())
		assert.ErrorIs(t, err, tc.want, tc.expr)
	}
}

func TestEvaluateTruncate(t *testing.T) {
	opts := Options{Rounding: RoundTruncate, MinorDigits: 2}

	got, err := Evaluate("100/3", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(33), got)

	got, err = Evaluate("100/3*3", opts)
	require.NoError(t, err)
	assert.Equal(t, int64(99), got, "division is applied left to right before the multiplication")

	_, err = Evaluate("1/3", opts)
	assert.ErrorIs(t, err, domain.ErrNonPositiveAmount)
}

func TestEvaluateDeepExpression(t *testing.T) {
	expr := strings.Repeat("1+", 100) + "1"
	got, err := Evaluate(expr, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
}

func TestDivide(t *testing.T) {
	got, err := Divide(900, 2, RoundReject)
	require.NoError(t, err)
	assert.Equal(t, int64(450), got)

	_, err = Divide(1000, 3, RoundReject)
	assert.ErrorIs(t, err, domain.ErrNonIntegerResult)

	got, err = Divide(1000, 3, RoundTruncate)
	require.NoError(t, err)
	assert.Equal(t, int64(333), got)

	_, err = Divide(10, 0, RoundReject)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
}

func TestParseRounding(t *testing.T) {
	r, err := ParseRounding("")
	require.NoError(t, err)
	assert.Equal(t, RoundReject, r)

	r, err = ParseRounding("TRUNCATE")
	require.NoError(t, err)
	assert.Equal(t, RoundTruncate, r)

	_, err = ParseRounding("bankers")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.50", Format(1250, 2))
	assert.Equal(t, "0.05", Format(5, 2))
	assert.Equal(t, "-3.00", Format(-300, 2))
	assert.Equal(t, "900", Format(900, 0))
}
