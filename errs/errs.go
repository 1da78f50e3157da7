// Package errs provides the structured error envelope shared by the execution core.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies an error category.
type Code string

const (
	// CodeNetwork indicates a transient transport failure; the command may be retried.
	CodeNetwork Code = "network"
	// CodeTimeout indicates that no acknowledgement arrived within the command deadline.
	CodeTimeout Code = "timeout"
	// CodeRateLimited indicates the venue throttled the request.
	CodeRateLimited Code = "rate_limited"
	// CodeUnavailable indicates a component is temporarily unable to serve requests.
	CodeUnavailable Code = "unavailable"
	// CodeRejected indicates the venue refused an order (invalid size/price or limit breach).
	CodeRejected Code = "rejected"
	// CodeDesync indicates the local view disagreed with the venue's authoritative state.
	CodeDesync Code = "desync"
	// CodeConfig indicates an unrecoverable configuration problem.
	CodeConfig Code = "config"
	// CodeNotFound indicates the referenced order does not exist on the venue.
	CodeNotFound Code = "not_found"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
)

// E captures structured error information produced across the bot.
type E struct {
	Component string
	Code      Code
	Channel   string
	OrderID   string
	RawCode   string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithChannel records the channel the failure belongs to.
func WithChannel(channel string) Option {
	trimmed := strings.TrimSpace(channel)
	return func(e *E) {
		e.Channel = trimmed
	}
}

// WithOrder records the order identifier involved in the failure.
func WithOrder(orderID string) Option {
	trimmed := strings.TrimSpace(orderID)
	return func(e *E) {
		e.OrderID = trimmed
	}
}

// WithRawCode captures the raw venue error code.
func WithRawCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.RawCode = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 7)

	component := e.Component
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Channel != "" {
		parts = append(parts, "channel="+e.Channel)
	}
	if e.OrderID != "" {
		parts = append(parts, "order="+e.OrderID)
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawCode != "" {
		parts = append(parts, "raw_code="+strconv.Quote(e.RawCode))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the code of the outermost envelope in err's chain.
func CodeOf(err error) (Code, bool) {
	var env *E
	if errors.As(err, &env) && env != nil {
		return env.Code, true
	}
	return "", false
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case CodeNetwork, CodeRateLimited, CodeUnavailable:
		return true
	default:
		return false
	}
}

// IsRejected reports whether the venue refused the request outright.
func IsRejected(err error) bool {
	code, ok := CodeOf(err)
	return ok && (code == CodeRejected || code == CodeInvalid)
}

// IsNotFound reports whether the referenced order is unknown to the venue.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeNotFound
}

// IsTimeout reports whether err represents a missing acknowledgement.
func IsTimeout(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeTimeout
}

// IsFatal reports whether err must abort startup.
func IsFatal(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeConfig
}
