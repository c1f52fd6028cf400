package client

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies an API failure
type Kind string

const (
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server"
)

var (
	// ErrUnauthorized is returned when the session cannot be refreshed. The
	// caller should send the user back to login.
	ErrUnauthorized = &APIError{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "session expired, please log in again"}

	// ErrMFARequired is returned by Login when the account needs a TOTP code
	ErrMFARequired = &APIError{Status: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "MFA code required"}
)

// APIError is the normalized form of every failed call
type APIError struct {
	Status  int
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+" "+e.Fields[name])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches sentinels by kind and message, so errors.Is(err, ErrUnauthorized)
// holds for any refreshed-and-failed call
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the kind of err, or "" when err is not an API error
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Retryable reports whether repeating the call may succeed
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindServer, KindRateLimited:
		return true
	}
	return false
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	}
	return KindValidation
}

func networkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: "could not reach the server", Err: err}
}
