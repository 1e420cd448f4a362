package objs

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in the error handling design. Service
// code wraps one of these with fmt.Errorf("%w: ...", ErrX, ...); the HTTP
// layer maps the sentinel to a stable type/status via errors.Is.
var (
	ErrBadRequest          = errors.New("bad_request")
	ErrNotFound            = errors.New("not_found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInternal            = errors.New("internal_server")
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
)

// ErrAliasNotFound is returned by copy/delete operations on an alias id that
// does not resolve to a user-owned alias.
var ErrAliasNotFound = errors.New("alias_not_found")

// ErrAliasExists is returned when a user alias name collides with an
// existing alias of any kind.
var ErrAliasExists = errors.New("alias_exists")

// wrapf wraps a sentinel error with a formatted message, preserving
// errors.Is(err, sentinel).
func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
