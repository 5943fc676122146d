package client

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNetwork         Kind = "NETWORK_ERROR"
	KindAPI             Kind = "API_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidResponse Kind = "INVALID_RESPONSE"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindInvalidGuildID  Kind = "INVALID_GUILD_ID"
)

// Error is returned for every expected failure. Status is zero when no
// response was received.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a client error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
