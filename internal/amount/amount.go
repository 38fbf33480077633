// Package amount evaluates the restricted arithmetic used to write debt amounts.
//
// An expression made only of integer literals is in minor units. As soon as one literal
// carries a decimal point (or comma) the whole expression is in major units: it is evaluated
// on the literals as written and the result is scaled by Options.MinorDigits once at the end.
// With two minor digits "1250", "12.5" and "12+0.5" all denote the same amount, and "100*1.5"
// is 150.00. Evaluation uses explicit operand and operator stacks; there is no recursion and no
// variable or function support.
package amount

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vanshika/debtbook/internal/domain"
)

// Rounding decides what happens when a division leaves a remainder.
type Rounding string

const (
	// RoundReject fails with NonIntegerResult instead of losing or inventing money.
	RoundReject Rounding = "reject"
	// RoundTruncate drops the remainder, rounding toward zero.
	RoundTruncate Rounding = "truncate"
)

// MaxExpressionLength bounds the input accepted by Evaluate.
const MaxExpressionLength = 256

// Options configures evaluation.
type Options struct {
	Rounding    Rounding
	MinorDigits int32
}

// DefaultOptions rejects remainders and uses two minor digits.
func DefaultOptions() Options {
	return Options{Rounding: RoundReject, MinorDigits: 2}
}

// ParseRounding validates a configured rounding policy name.
func ParseRounding(s string) (Rounding, error) {
	switch Rounding(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoundReject:
		return RoundReject, nil
	case RoundTruncate:
		return RoundTruncate, nil
	}
	return "", fmt.Errorf("unknown rounding policy %q", s)
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Evaluate returns the exact value of expr in minor units.
func Evaluate(expr string, opts Options) (int64, error) {
	if opts.Rounding == "" {
		opts.Rounding = RoundReject
	}
	if len(expr) > MaxExpressionLength {
		return 0, domain.Errorf(domain.CodeMalformedExpression, "expression longer than %d characters", MaxExpressionLength)
	}
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}

	// Quotients must be exact at the resolution the result is kept in.
	var (
		major     = hasMajorLiteral(tokens)
		precision int32
	)
	if major {
		precision = opts.MinorDigits
	}

	var (
		operands  []decimal.Decimal
		operators []byte
	)
	reduce := func() error {
		op := operators[len(operators)-1]
		operators = operators[:len(operators)-1]
		b := operands[len(operands)-1]
		a := operands[len(operands)-2]
		operands = operands[:len(operands)-2]
		v, err := apply(op, a, b, precision, opts.Rounding)
		if err != nil {
			return err
		}
		operands = append(operands, v)
		return nil
	}

	expectOperand := true
	for _, tok := range tokens {
		if tok.op == 0 {
			if !expectOperand {
				return 0, domain.Errorf(domain.CodeMalformedExpression, "missing operator before %q", tok.text)
			}
			v, err := literal(tok.text)
			if err != nil {
				return 0, err
			}
			operands = append(operands, v)
			expectOperand = false
			continue
		}
		if expectOperand {
			return 0, domain.Errorf(domain.CodeMalformedExpression, "unexpected operator %q", string(tok.op))
		}
		for len(operators) > 0 && precedence(operators[len(operators)-1]) >= precedence(tok.op) {
			if err := reduce(); err != nil {
				return 0, err
			}
		}
		operators = append(operators, tok.op)
		expectOperand = true
	}
	if expectOperand {
		if len(tokens) == 0 {
			return 0, domain.Errorf(domain.CodeMalformedExpression, "empty expression")
		}
		return 0, domain.Errorf(domain.CodeMalformedExpression, "expression ends with an operator")
	}
	for len(operators) > 0 {
		if err := reduce(); err != nil {
			return 0, err
		}
	}

	result := operands[0]
	if major {
		scaled := result.Shift(opts.MinorDigits)
		if !scaled.Equal(scaled.Truncate(0)) && opts.Rounding != RoundTruncate {
			return 0, domain.Errorf(domain.CodeNonIntegerResult, "%s has more than %d fractional digits", result.String(), opts.MinorDigits)
		}
		result = scaled.Truncate(0)
	}
	if !result.IsPositive() {
		return 0, domain.Errorf(domain.CodeNonPositiveAmount, "amount %s is not positive", result.String())
	}
	if result.GreaterThan(maxAmount) {
		return 0, domain.Errorf(domain.CodeMalformedExpression, "amount %s is out of range", result.String())
	}
	return result.IntPart(), nil
}

// Divide splits total into parts equal shares under the rounding policy.
func Divide(total, parts int64, rounding Rounding) (int64, error) {
	if parts == 0 {
		return 0, domain.ErrDivisionByZero
	}
	if total%parts != 0 && rounding != RoundTruncate {
		return 0, domain.Errorf(domain.CodeNonIntegerResult, "%d does not split evenly into %d shares", total, parts)
	}
	return total / parts, nil
}

// HasDivision reports whether expr carries an explicit divisor.
func HasDivision(expr string) bool {
	return strings.Contains(expr, "/")
}

func apply(op byte, a, b decimal.Decimal, precision int32, rounding Rounding) (decimal.Decimal, error) {
	switch op {
	case '+':
		return a.Add(b), nil
	case '-':
		return a.Sub(b), nil
	case '*':
		return a.Mul(b), nil
	case '/':
		if b.IsZero() {
			return decimal.Zero, domain.ErrDivisionByZero
		}
		q, r := a.QuoRem(b, precision)
		if !r.IsZero() && rounding != RoundTruncate {
			return decimal.Zero, domain.Errorf(domain.CodeNonIntegerResult, "%s / %s leaves a remainder", a.String(), b.String())
		}
		return q, nil
	}
	return decimal.Zero, domain.Errorf(domain.CodeMalformedExpression, "unsupported operator %q", string(op))
}

func precedence(op byte) int {
	if op == '*' || op == '/' {
		return 2
	}
	return 1
}

func hasMajorLiteral(tokens []token) bool {
	for _, tok := range tokens {
		if tok.op == 0 && strings.ContainsAny(tok.text, ".,") {
			return true
		}
	}
	return false
}

func literal(text string) (decimal.Decimal, error) {
	sep := strings.IndexAny(text, ".,")
	if sep < 0 {
		v, err := decimal.NewFromString(text)
		if err != nil {
			return decimal.Zero, domain.Wrap(domain.CodeMalformedExpression, err, fmt.Sprintf("invalid number %q", text))
		}
		return v, nil
	}
	whole, frac := text[:sep], text[sep+1:]
	if whole == "" || frac == "" || strings.ContainsAny(frac, ".,") {
		return decimal.Zero, domain.Errorf(domain.CodeMalformedExpression, "invalid number %q", text)
	}
	v, err := decimal.NewFromString(whole + "." + frac)
	if err != nil {
		return decimal.Zero, domain.Wrap(domain.CodeMalformedExpression, err, fmt.Sprintf("invalid number %q", text))
	}
	return v, nil
}
