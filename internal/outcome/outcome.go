// Package outcome defines the execution outcome taxonomy shared by the
// dispatch queue and the publisher.
//
// The error code is the retry contract: the queue never inspects the
// underlying error, only the code's class.
package outcome

import (
	"errors"
	"fmt"
)

// Code classifies one failed publish attempt.
type Code string

const (
	// Terminal: retrying cannot help.
	CodeChannelNotFound     Code = "CHANNEL_NOT_FOUND"
	CodeChannelDisconnected Code = "CHANNEL_DISCONNECTED"
	CodeInvalidSettings     Code = "INVALID_SETTINGS"
	CodeConflictWithDeal    Code = "CONFLICT_WITH_DEAL"

	// Retryable: transient upstream trouble.
	CodeTelegramAPI       Code = "TELEGRAM_API_ERROR"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeContentGeneration Code = "CONTENT_GENERATION_FAILED"
)

// Retryable reports whether a failure with this code should be retried
// with backoff. Unknown codes are treated as retryable so a new transient
// code added upstream degrades to "try again" rather than silent loss.
func (c Code) Retryable() bool {
	switch c {
	case CodeChannelNotFound, CodeChannelDisconnected, CodeInvalidSettings, CodeConflictWithDeal:
		return false
	default:
		return true
	}
}

// Outcome is the result of one Executor invocation.
type Outcome struct {
	OK      bool
	Code    Code
	Message string
}

func Success() Outcome { return Outcome{OK: true} }

func Failure(code Code, msg string) Outcome {
	return Outcome{Code: code, Message: msg}
}

// Failuref is Failure with fmt-style message construction.
func Failuref(code Code, format string, args ...any) Outcome {
	return Outcome{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error carries a Code through an error chain so deeper layers (content
// composition, settings validation) can decide their own classification.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification code.
func NewError(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts a Code from an error chain.
func CodeOf(err error) (Code, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code, true
	}
	return "", false
}
