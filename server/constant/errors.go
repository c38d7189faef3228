package constant

import (
	"errors"
	"fmt"
)

var (
	UnauthorizedError = errors.New("unauthorized")

	TokenNotFoundError = errors.New("token not found")

	ValidationError = errors.New("invalid payload")

	UnknownTypeError = errors.New("unknown message type")

	StaleBidError = errors.New("bid is below twice the current highest bid")

	GameNotFoundError = errors.New("game not found")

	GameExistsError = errors.New("game already exists")

	AlreadyEndedError = errors.New("game has already ended")

	DuplicateTransactionError = errors.New("transaction already recorded")

	PersistenceError = errors.New("bid could not be persisted")

	LedgerError = errors.New("settlement ledger unavailable")
)

// BidError carries a taxonomy sentinel together with the reply code and a
// human readable detail for the submitting client.
type BidError struct {
	Kind   error
	Code   int
	Detail string
	Retry  bool
}

func (e *BidError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Detail)
}

func (e *BidError) Unwrap() error {
	return e.Kind
}

// NewError wraps kind with a formatted detail. PersistenceError and
// LedgerError are always marked retryable.
func NewError(kind error, format string, args ...any) *BidError {
	return &BidError{
		Kind:   kind,
		Code:   CodeOf(kind),
		Detail: fmt.Sprintf(format, args...),
		Retry:  errors.Is(kind, PersistenceError) || errors.Is(kind, LedgerError),
	}
}

// CodeOf maps an error onto the reply code sent to clients.
func CodeOf(err error) int {
	var bidErr *BidError
	if errors.As(err, &bidErr) && bidErr.Code != 0 {
		return bidErr.Code
	}

	switch {
	case err == nil:
		return Code10000
	case errors.Is(err, ValidationError):
		return Code10001
	case errors.Is(err, UnauthorizedError), errors.Is(err, TokenNotFoundError):
		return Code10012
	case errors.Is(err, UnknownTypeError):
		return Code10014
	case errors.Is(err, GameNotFoundError):
		return Code20001
	case errors.Is(err, StaleBidError):
		return Code20002
	case errors.Is(err, GameExistsError):
		return Code20003
	case errors.Is(err, AlreadyEndedError):
		return Code20004
	case errors.Is(err, DuplicateTransactionError):
		return Code20005
	case errors.Is(err, PersistenceError):
		return Code99998
	case errors.Is(err, LedgerError):
		return Code99997
	}
	return Code99999
}

// IsRetryable reports whether the client may resubmit the same request.
func IsRetryable(err error) bool {
	var bidErr *BidError
	if errors.As(err, &bidErr) {
		return bidErr.Retry
	}
	return errors.Is(err, PersistenceError) || errors.Is(err, LedgerError)
}
