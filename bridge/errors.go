package bridge

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is the numeric failure code returned to callers.
type Code uint32

const (
	CodeUnauthorized              Code = 100
	CodeInvalidAmount             Code = 101
	CodeInvalidRecipient          Code = 102
	CodeInvalidToken              Code = 103
	CodeNotFound                  Code = 104
	CodeLockedPeriod              Code = 105
	CodeInsufficientConfirmations Code = 106
	CodeOperationFailed           Code = 107
	CodeInvalidState              Code = 108
	CodeInsufficientFunds         Code = 109
)

var codeNames = map[Code]string{
	CodeUnauthorized:              "unauthorized",
	CodeInvalidAmount:             "invalid amount",
	CodeInvalidRecipient:          "invalid recipient",
	CodeInvalidToken:              "invalid token",
	CodeNotFound:                  "not found",
	CodeLockedPeriod:              "locked period",
	CodeInsufficientConfirmations: "insufficient confirmations",
	CodeOperationFailed:           "operation failed",
	CodeInvalidState:              "invalid state",
	CodeInsufficientFunds:         "insufficient funds",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// Error is an expected, caller-correctable failure of a bridge call.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("err u%d: %s", uint32(e.Code), e.Code)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUnauthorized              = &Error{Code: CodeUnauthorized}
	ErrInvalidAmount             = &Error{Code: CodeInvalidAmount}
	ErrInvalidRecipient          = &Error{Code: CodeInvalidRecipient}
	ErrInvalidToken              = &Error{Code: CodeInvalidToken}
	ErrNotFound                  = &Error{Code: CodeNotFound}
	ErrLockedPeriod              = &Error{Code: CodeLockedPeriod}
	ErrInsufficientConfirmations = &Error{Code: CodeInsufficientConfirmations}
	ErrOperationFailed           = &Error{Code: CodeOperationFailed}
	ErrInvalidState              = &Error{Code: CodeInvalidState}
	ErrInsufficientFunds         = &Error{Code: CodeInsufficientFunds}
)

// CodeOf extracts the failure code of err. It returns false for storage
// and other unexpected errors.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// fail wraps a coded error with context while keeping the code reachable.
func fail(base *Error, format string, args ...interface{}) error {
	return errors.Wrapf(base, format, args...)
}
