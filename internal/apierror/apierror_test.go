package apierror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/bodhi-ml/bodhi/internal/objs"
)

func TestFromErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantType   ErrorType
	}{
		{fmt.Errorf("%w: bad field", objs.ErrBadRequest), http.StatusBadRequest, TypeBadRequest},
		{fmt.Errorf("%w: no such alias", objs.ErrAliasNotFound), http.StatusNotFound, TypeNotFound},
		{fmt.Errorf("%w: no token", objs.ErrUnauthorized), http.StatusUnauthorized, TypeUnauthorized},
		{fmt.Errorf("%w: insufficient role", objs.ErrForbidden), http.StatusForbidden, TypeForbidden},
		{fmt.Errorf("%w: duplicate prefix", objs.ErrConflict), http.StatusConflict, TypeConflict},
		{fmt.Errorf("%w: hf unreachable", objs.ErrUpstreamUnavailable), http.StatusBadGateway, TypeUpstreamUnavailable},
	}
	for _, c := range cases {
		status, body := FromError(c.err)
		if status != c.wantStatus {
			t.Errorf("%v: status = %d, want %d", c.err, status, c.wantStatus)
		}
		if body.Error.Type != c.wantType {
			t.Errorf("%v: type = %s, want %s", c.err, body.Error.Type, c.wantType)
		}
	}
}

func TestFromErrorUnknownDefaultsInternal(t *testing.T) {
	status, body := FromError(fmt.Errorf("boom"))
	if status != http.StatusInternalServerError || body.Error.Type != TypeInternal {
		t.Fatalf("expected internal fallback, got status=%d type=%s", status, body.Error.Type)
	}
}
