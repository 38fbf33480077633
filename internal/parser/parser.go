// Package parser turns a free-form chat message into debt intents.
//
// A line has the shape
//
//	@debtor [@debtor ...] [me] <amount expression> [description ...]
//
// and produces one intent per mentioned debtor. Parsing performs no writes; handle lookup goes
// through the injected Resolver.
package parser

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vanshika/debtbook/internal/amount"
	"github.com/vanshika/debtbook/internal/domain"
)

// Resolver maps a normalized handle (no '@', lowercase) to a user id.
type Resolver interface {
	Resolve(ctx context.Context, handle string) (userID int64, ok bool, err error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, handle string) (int64, bool, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, handle string) (int64, bool, error) {
	return f(ctx, handle)
}

// SplitPolicy decides how an explicit divisor interacts with the implied split across debtors.
type SplitPolicy string

const (
	// SplitOverride treats an expression containing '/' as already per-debtor.
	SplitOverride SplitPolicy = "override"
	// SplitCompose always divides the evaluated amount by the participant count.
	SplitCompose SplitPolicy = "compose"
)

// ParseSplitPolicy validates a configured split policy name.
func ParseSplitPolicy(s string) (SplitPolicy, error) {
	switch SplitPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SplitOverride:
		return SplitOverride, nil
	case SplitCompose:
		return SplitCompose, nil
	}
	return "", fmt.Errorf("unknown split policy %q", s)
}

// Options configures parsing.
type Options struct {
	Amount      amount.Options
	Split       SplitPolicy
	AllowGhosts bool
	// SelfTokens name the sender inside the mention run. The sender then counts as a split
	// participant without owing anything.
	SelfTokens []string
}

// DefaultOptions mirrors the ledger defaults.
func DefaultOptions() Options {
	return Options{
		Amount:     amount.DefaultOptions(),
		Split:      SplitOverride,
		SelfTokens: []string{"я", "me"},
	}
}

var (
	mentionPattern = regexp.MustCompile(`^@[A-Za-z0-9_]{3,32}$`)
	amountPattern  = regexp.MustCompile(`^[0-9.,+\-*/]+$`)
)

// Parse returns the debt intents described by text, sent by sender. Lines are parsed
// independently and intents for the same debtor are merged in first-seen order.
func Parse(ctx context.Context, text string, sender int64, resolver Resolver, opts Options) ([]domain.DebtIntent, error) {
	if opts.Split == "" {
		opts.Split = SplitOverride
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, domain.Errorf(domain.CodeNoMentionFound, "message is empty")
	}

	var (
		order  []string
		merged = make(map[string]*domain.DebtIntent)
	)
	for n, line := range lines {
		intents, err := parseLine(ctx, line, sender, resolver, opts)
		if err != nil {
			if len(lines) == 1 {
				return nil, err
			}
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		for _, in := range intents {
			key := intentKey(in)
			existing, ok := merged[key]
			if !ok {
				in := in
				merged[key] = &in
				order = append(order, key)
				continue
			}
			if existing.Amount > math.MaxInt64-in.Amount {
				return nil, domain.Errorf(domain.CodeMalformedExpression, "line %d: total for @%s is out of range", n+1, in.DebtorHandle)
			}
			existing.Amount += in.Amount
			existing.Description = joinDescription(existing.Description, in.Description)
		}
	}

	out := make([]domain.DebtIntent, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out, nil
}

func parseLine(ctx context.Context, line string, sender int64, resolver Resolver, opts Options) ([]domain.DebtIntent, error) {
	tokens := strings.Fields(line)

	var (
		handles []string
		self    bool
		seen    = make(map[string]struct{})
		i       int
	)
	for ; i < len(tokens); i++ {
		tok := tokens[i]
		if isSelfToken(tok, opts.SelfTokens) {
			if self {
				return nil, domain.Errorf(domain.CodeDuplicateMention, "sender mentioned more than once")
			}
			self = true
			continue
		}
		if !mentionPattern.MatchString(tok) {
			break
		}
		handle := domain.NormalizeUsername(tok)
		if _, dup := seen[handle]; dup {
			return nil, domain.Errorf(domain.CodeDuplicateMention, "@%s mentioned more than once", handle)
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	if len(handles) == 0 {
		return nil, domain.ErrNoMentionFound
	}

	var plain []string
	for ; i < len(tokens) && !startsAmount(tokens[i]); i++ {
		plain = append(plain, tokens[i])
	}
	if i == len(tokens) {
		return nil, domain.ErrNoAmountFound
	}
	expr := tokens[i]
	for i++; i < len(tokens) && amountPattern.MatchString(tokens[i]); i++ {
		if !endsWithOperator(expr) && !startsWithOperator(tokens[i]) {
			break
		}
		expr += tokens[i]
	}
	description := strings.TrimSpace(strings.Join(append(plain, tokens[i:]...), " "))

	total, err := amount.Evaluate(expr, opts.Amount)
	if err != nil {
		return nil, err
	}
	share := total
	participants := int64(len(handles))
	if self {
		participants++
	}
	if participants > 1 && (opts.Split == SplitCompose || !amount.HasDivision(expr)) {
		share, err = amount.Divide(total, participants, opts.Amount.Rounding)
		if err != nil {
			return nil, err
		}
		if share <= 0 {
			return nil, domain.Errorf(domain.CodeNonPositiveAmount, "%d split %d ways is below one minor unit", total, participants)
		}
	}

	intents := make([]domain.DebtIntent, 0, len(handles))
	for _, handle := range handles {
		id, ok, err := resolver.Resolve(ctx, handle)
		if err != nil {
			return nil, fmt.Errorf("resolve @%s: %w", handle, err)
		}
		if !ok {
			if !opts.AllowGhosts {
				return nil, domain.Errorf(domain.CodeUnknownUser, "@%s is not registered", handle)
			}
			intents = append(intents, domain.DebtIntent{DebtorHandle: handle, Amount: share, Description: description, Ghost: true})
			continue
		}
		if id == sender {
			return nil, domain.Errorf(domain.CodeSelfDebt, "@%s is the sender", handle)
		}
		intents = append(intents, domain.DebtIntent{DebtorID: id, DebtorHandle: handle, Amount: share, Description: description})
	}
	return intents, nil
}

func isSelfToken(tok string, selfTokens []string) bool {
	for _, s := range selfTokens {
		if strings.EqualFold(tok, s) {
			return true
		}
	}
	return false
}

func startsAmount(tok string) bool {
	return tok[0] >= '0' && tok[0] <= '9' && amountPattern.MatchString(tok)
}

func startsWithOperator(tok string) bool {
	return strings.ContainsRune("+-*/", rune(tok[0]))
}

func endsWithOperator(tok string) bool {
	return strings.ContainsRune("+-*/", rune(tok[len(tok)-1]))
}

func intentKey(in domain.DebtIntent) string {
	if in.Ghost {
		return "@" + in.DebtorHandle
	}
	return strconv.FormatInt(in.DebtorID, 10)
}

func joinDescription(a, b string) string {
	switch {
	case b == "":
		return a
	case a == "":
		return b
	}
	for _, part := range strings.Split(a, ", ") {
		if part == b {
			return a
		}
	}
	return a + ", " + b
}
