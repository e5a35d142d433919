// Package faults defines the circulation error taxonomy.
//
// Domain packages wrap one of the sentinels below with operation detail via
// Wrap so that callers can classify failures with errors.Is, and the request
// layers can map them to stable kinds and HTTP statuses with KindOf and
// HTTPStatus. Anything that does not wrap a sentinel is an infrastructure
// failure and classifies as KindInternal.
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyQueued    = errors.New("already queued")
	ErrNotQueued        = errors.New("not queued")
	ErrAlreadyConfirmed = errors.New("already confirmed")
	ErrHandoffComplete  = errors.New("handoff complete")
	ErrGiftLocked       = errors.New("gift locked")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Kind is the stable, wire-visible name of an error class.
type Kind string

const (
	KindNotAuthorized    Kind = "not_authorized"
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindAlreadyQueued    Kind = "already_queued"
	KindNotQueued        Kind = "not_queued"
	KindAlreadyConfirmed Kind = "already_confirmed"
	KindHandoffComplete  Kind = "handoff_complete"
	KindGiftLocked       Kind = "gift_locked"
	KindInvalidArgument  Kind = "invalid_argument"
	KindInternal         Kind = "internal"
)

var sentinels = []struct {
	err    error
	kind   Kind
	status int
}{
	{ErrNotAuthorized, KindNotAuthorized, http.StatusForbidden},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrInvalidState, KindInvalidState, http.StatusConflict},
	{ErrAlreadyQueued, KindAlreadyQueued, http.StatusConflict},
	{ErrNotQueued, KindNotQueued, http.StatusConflict},
	{ErrAlreadyConfirmed, KindAlreadyConfirmed, http.StatusConflict},
	{ErrHandoffComplete, KindHandoffComplete, http.StatusConflict},
	{ErrGiftLocked, KindGiftLocked, http.StatusConflict},
	{ErrInvalidArgument, KindInvalidArgument, http.StatusBadRequest},
}

// Wrap tags a failure with one of the sentinels above and prefixes the
// operation name and detail message.
func Wrap(marker error, operation, message string) error {
	if marker == nil {
		marker = ErrInvalidState
	}
	detail := buildDetail(operation, message)
	if detail == "" {
		return marker
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf classifies err. A nil error has an empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindInternal
}

// HTTPStatus maps err to the status code the API responds with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// FromKind rebuilds an error carrying the sentinel for kind. IPC clients use
// it so that errors.Is keeps working across the socket.
func FromKind(kind Kind, message string) error {
	for _, s := range sentinels {
		if s.kind == kind {
			if message == "" || message == s.err.Error() {
				return s.err
			}
			return &remoteError{sentinel: s.err, message: message}
		}
	}
	if message == "" {
		message = string(kind)
	}
	return errors.New(message)
}

type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Unwrap() error { return e.sentinel }

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	return strings.Join(parts, ": ")
}
