package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies every failure a gateway call or checkout can end in.
type Kind string

const (
	AuthRequired         Kind = "auth_required"
	RateLimited          Kind = "rate_limited"
	ServerError          Kind = "server_error"
	Rejected             Kind = "rejected"
	LocalValidation      Kind = "local_validation"
	InvalidResponseShape Kind = "invalid_response"
	Forbidden            Kind = "forbidden"
	Transport            Kind = "transport"
)

// Error is the only error type the gateway returns.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case AuthRequired:
		return "authentication required"
	case RateLimited:
		return "too many requests, please try again shortly"
	case ServerError:
		return fmt.Sprintf("server error: %d", e.Status)
	case InvalidResponseShape:
		return "invalid response from server"
	case Transport:
		if e.Err != nil {
			return "request failed: " + e.Err.Error()
		}
		return "request failed"
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == k
}

// KindOf returns the kind of err, or "" for errors from elsewhere.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func NewLocalValidation(msg string) *Error {
	return &Error{Kind: LocalValidation, Message: msg}
}

func NewRejected(msg string) *Error {
	return &Error{Kind: Rejected, Message: msg}
}
