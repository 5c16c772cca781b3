package usecase

import (
	"errors"
	"fmt"

	"shipfee-agent/internal/orders"
)

type ErrorCode string

const (
	ErrorInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrorOrderSourceNotFound ErrorCode = "ORDER_SOURCE_NOT_FOUND"
	ErrorOrderSourceInvalid  ErrorCode = "ORDER_SOURCE_INVALID"
	ErrorRateLimited         ErrorCode = "RATE_LIMITED"
	ErrorUpstream            ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal            ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// orderSourceError classifies a failure to obtain an order snapshot.
func orderSourceError(reason string, err error) *Error {
	switch {
	case errors.Is(err, orders.ErrSourceNotFound):
		return newError(ErrorOrderSourceNotFound, reason+"_not_found", err)
	case errors.Is(err, orders.ErrInvalidSnapshot):
		return newError(ErrorOrderSourceInvalid, reason+"_invalid", err)
	}
	if status, ok := upstreamStatusCode(err); ok {
		if status == 429 {
			return newError(ErrorRateLimited, reason+"_rate_limited", err)
		}
		return newError(ErrorUpstream, reason+"_upstream_error", err)
	}
	return newError(ErrorInternal, reason+"_error", err)
}
