package reconerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Parse("bad row"), http.StatusBadRequest},
		{Conflict("draft open"), http.StatusConflict},
		{InvalidState("not draft"), http.StatusConflict},
		{Forbidden("no access"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Internal("query failed", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("untyped"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), c.err.Error())
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Forbidden("no access"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindForbidden))
}

func TestInternalUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("query failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "query failed")
}
