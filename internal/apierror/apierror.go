// Package apierror maps the service-layer error taxonomy onto the
// OpenAI-shaped HTTP error envelope every bodhi route returns on
// non-2xx responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

// ErrorType is the stable "type" field of the envelope; it is what the
// HTTP status maps one-to-one from.
type ErrorType string

const (
	TypeBadRequest          ErrorType = "invalid_request_error"
	TypeNotFound            ErrorType = "not_found_error"
	TypeUnauthorized        ErrorType = "authentication_error"
	TypeForbidden           ErrorType = "permission_error"
	TypeConflict            ErrorType = "conflict_error"
	TypeInternal            ErrorType = "internal_server_error"
	TypeUpstreamUnavailable ErrorType = "upstream_unavailable_error"
)

// Body is the on-wire error envelope: {"error":{message,type,code,param?}}.
type Body struct {
	Error Detail `json:"error"`
}

// Detail is the inner error object.
type Detail struct {
	Message string         `json:"message"`
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Param   map[string]any `json:"param,omitempty"`
}

// meta pairs each taxonomy sentinel with its HTTP status and envelope type.
var meta = []struct {
	sentinel error
	status   int
	etype    ErrorType
	code     string
}{
	{objs.ErrBadRequest, http.StatusBadRequest, TypeBadRequest, "bad_request"},
	{objs.ErrNotFound, http.StatusNotFound, TypeNotFound, "not_found"},
	{objs.ErrAliasNotFound, http.StatusNotFound, TypeNotFound, "alias_not_found"},
	{objs.ErrUnauthorized, http.StatusUnauthorized, TypeUnauthorized, "unauthorized"},
	{objs.ErrForbidden, http.StatusForbidden, TypeForbidden, "forbidden"},
	{objs.ErrConflict, http.StatusConflict, TypeConflict, "conflict"},
	{objs.ErrAliasExists, http.StatusConflict, TypeConflict, "alias_exists"},
	{objs.ErrUpstreamUnavailable, http.StatusBadGateway, TypeUpstreamUnavailable, "upstream_unavailable"},
	{objs.ErrInternal, http.StatusInternalServerError, TypeInternal, "internal_server_error"},
}

// FromError maps any error produced by a service layer (expected to wrap
// one of objs' taxonomy sentinels) to the HTTP status and envelope body
// to write. Errors that match none of the sentinels are treated as
// Internal — callers should ensure every service-layer error wraps a
// sentinel so this fallback is never exercised in practice.
func FromError(err error) (status int, body Body) {
	for _, m := range meta {
		if errors.Is(err, m.sentinel) {
			return m.status, Body{Error: Detail{Message: err.Error(), Type: m.etype, Code: m.code}}
		}
	}
	return http.StatusInternalServerError, Body{Error: Detail{
		Message: err.Error(),
		Type:    TypeInternal,
		Code:    "internal_server_error",
	}}
}

// WithParam attaches a param map to an already-built Body, for
// validation errors that want to point at the offending field.
func (b Body) WithParam(param map[string]any) Body {
	b.Error.Param = param
	return b
}
