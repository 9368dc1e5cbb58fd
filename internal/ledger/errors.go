// internal/ledger/errors.go
package ledger

import "fmt"

// ErrorCode classifies every failure the marketplace engine can return.
type ErrorCode string

const (
	CodeOwnerOnly         ErrorCode = "owner_only"
	CodeNotFound          ErrorCode = "not_found"
	CodeInsufficientFunds ErrorCode = "insufficient_funds"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeAlreadyExists     ErrorCode = "already_exists"
	CodeInvalidPrice      ErrorCode = "invalid_price"
	CodeUnavailable       ErrorCode = "unavailable"
)

// Error is the typed result every failing engine operation returns.
// Use errors.Is against the exported sentinels to branch on the code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ledger: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("ledger: %s", e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so
// errors.Is(err, ErrNotFound) works for wrapped and detailed errors alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels, one per code.
var (
	ErrOwnerOnly         = &Error{Code: CodeOwnerOnly}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrInsufficientFunds = &Error{Code: CodeInsufficientFunds}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists}
	ErrInvalidPrice      = &Error{Code: CodeInvalidPrice}
	ErrUnavailable       = &Error{Code: CodeUnavailable}
)

func newError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
