package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ragidx/ragidx/internal/rerrors"
)

func TestMapError_NilReturnsNil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_MapsRerrorsKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", rerrors.NotFoundError("missing", nil), ErrCodeNotFound},
		{"collection", rerrors.CollectionError("boom", nil), ErrCodeCollection},
		{"verification", rerrors.VerificationError("nope", nil), ErrCodeVerification},
		{"filter", rerrors.FilterError("bad where clause", nil), ErrCodeInvalidParams},
		{"internal", rerrors.InternalError("oops", nil), ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mcpErr := MapError(tc.err)
			assert.Equal(t, tc.code, mcpErr.Code)
		})
	}
}

func TestMapError_MapsContextErrors(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(context.Canceled).Code)
}

func TestMapError_FallsBackToInternal(t *testing.T) {
	mcpErr := MapError(errors.New("something else"))
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
}

func TestNewInvalidParamsError(t *testing.T) {
	err := NewInvalidParamsError("query is required")
	assert.Equal(t, ErrCodeInvalidParams, err.Code)
	assert.Equal(t, "query is required", err.Message)
}

func TestNewMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("unknown_tool")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "unknown_tool")
}
