package domain

import (
	"errors"
	"fmt"
)

// Kind groups error codes by the layer that produces them.
type Kind string

const (
	KindParse       Kind = "parse"
	KindState       Kind = "state"
	KindPersistence Kind = "persistence"
)

// Code is a stable identifier callers branch on. Messages are for humans and may change.
type Code string

const (
	CodeNoMentionFound      Code = "NoMentionFound"
	CodeNoAmountFound       Code = "NoAmountFound"
	CodeMalformedExpression Code = "MalformedExpression"
	CodeDivisionByZero      Code = "DivisionByZero"
	CodeNonIntegerResult    Code = "NonIntegerResult"
	CodeNonPositiveAmount   Code = "NonPositiveAmount"
	CodeUnknownUser         Code = "UnknownUser"
	CodeSelfDebt            Code = "SelfDebt"
	CodeDuplicateMention    Code = "DuplicateMention"

	CodeUnauthorized      Code = "Unauthorized"
	CodeInvalidTransition Code = "InvalidTransition"
	CodeAlreadyTerminal   Code = "AlreadyTerminal"
	CodeExceedsBalance    Code = "ExceedsBalance"

	CodeConcurrentModification Code = "ConcurrentModification"
	CodeNotFound               Code = "NotFound"
	CodeConflict               Code = "Conflict"
	CodeUnavailable            Code = "Unavailable"
)

var codeKinds = map[Code]Kind{
	CodeNoMentionFound:      KindParse,
	CodeNoAmountFound:       KindParse,
	CodeMalformedExpression: KindParse,
	CodeDivisionByZero:      KindParse,
	CodeNonIntegerResult:    KindParse,
	CodeNonPositiveAmount:   KindParse,
	CodeUnknownUser:         KindParse,
	CodeSelfDebt:            KindParse,
	CodeDuplicateMention:    KindParse,

	CodeUnauthorized:      KindState,
	CodeInvalidTransition: KindState,
	CodeAlreadyTerminal:   KindState,
	CodeExceedsBalance:    KindState,

	CodeConcurrentModification: KindPersistence,
	CodeNotFound:               KindPersistence,
	CodeConflict:               KindPersistence,
	CodeUnavailable:            KindPersistence,
}

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrNoMentionFound      = &Error{Kind: KindParse, Code: CodeNoMentionFound, Message: "no debtor mention found"}
	ErrNoAmountFound       = &Error{Kind: KindParse, Code: CodeNoAmountFound, Message: "no amount found after mentions"}
	ErrMalformedExpression = &Error{Kind: KindParse, Code: CodeMalformedExpression, Message: "malformed amount expression"}
	ErrDivisionByZero      = &Error{Kind: KindParse, Code: CodeDivisionByZero, Message: "division by zero"}
	ErrNonIntegerResult    = &Error{Kind: KindParse, Code: CodeNonIntegerResult, Message: "amount is not a whole number of minor units"}
	ErrNonPositiveAmount   = &Error{Kind: KindParse, Code: CodeNonPositiveAmount, Message: "amount must be positive"}
	ErrUnknownUser         = &Error{Kind: KindParse, Code: CodeUnknownUser, Message: "unknown user"}
	ErrSelfDebt            = &Error{Kind: KindParse, Code: CodeSelfDebt, Message: "a user cannot owe themselves"}
	ErrDuplicateMention    = &Error{Kind: KindParse, Code: CodeDuplicateMention, Message: "user mentioned more than once"}

	ErrUnauthorized      = &Error{Kind: KindState, Code: CodeUnauthorized, Message: "actor is not allowed to perform this action"}
	ErrInvalidTransition = &Error{Kind: KindState, Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrAlreadyTerminal   = &Error{Kind: KindState, Code: CodeAlreadyTerminal, Message: "record is already in a terminal state"}
	ErrExceedsBalance    = &Error{Kind: KindState, Code: CodeExceedsBalance, Message: "payment exceeds the remaining balance"}

	ErrConcurrentModification = &Error{Kind: KindPersistence, Code: CodeConcurrentModification, Message: "record was modified concurrently"}
	ErrNotFound               = &Error{Kind: KindPersistence, Code: CodeNotFound, Message: "record not found"}
	ErrConflict               = &Error{Kind: KindPersistence, Code: CodeConflict, Message: "transient write conflict"}
	ErrUnavailable            = &Error{Kind: KindPersistence, Code: CodeUnavailable, Message: "ledger storage unavailable"}
)

// Error is the structured error returned by the parser, the ledger and the stores.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Errorf builds an *Error for code with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new *Error for code.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Kind: codeKinds[code], Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// KindOf extracts the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
