package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{http.StatusUnauthorized, Authentication},
		{http.StatusForbidden, Authorization},
		{http.StatusNotFound, NotFound},
		{http.StatusBadRequest, Validation},
		{http.StatusUnprocessableEntity, Validation},
		{http.StatusConflict, Validation},
		{http.StatusRequestTimeout, Validation},
		{http.StatusTooManyRequests, RateLimit},
		{http.StatusInternalServerError, Server},
		{http.StatusBadGateway, Server},
		{599, Server},
		{http.StatusFound, Unknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, KindForStatus(tt.code))
		})
	}
}

func TestFromStatus(t *testing.T) {
	err := FromStatus(http.StatusNotFound, "not found")
	assert.Equal(t, NotFound, err.Kind)
	assert.Equal(t, "not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.StatusCode)
	assert.Equal(t, "not found (HTTP 404)", err.Error())
}

func TestFromStatus_EmptyMessageUsesStatusText(t *testing.T) {
	err := FromStatus(http.StatusServiceUnavailable, "")
	assert.Equal(t, "503 Service Unavailable", err.Message)
}

func TestSentinelsMatchByKind(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", FromStatus(http.StatusTooManyRequests, "slow down"))

	assert.ErrorIs(t, wrapped, ErrRateLimit)
	assert.NotErrorIs(t, wrapped, ErrServer)
}

func TestNetworkUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetwork("", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, err.StatusCode)
	assert.Equal(t, "network error: connection refused", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Validation, KindOf(New(Validation, "bad")))
	assert.Equal(t, Network, KindOf(fmt.Errorf("wrapped: %w", NewNetwork("timeout", nil))))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestAs(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)

	e, ok := As(fmt.Errorf("x: %w", Newf(Server, "backend error: %d", 502)))
	require.True(t, ok)
	assert.Equal(t, "backend error: 502", e.Message)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate_limit", RateLimit.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}

func TestFromContext(t *testing.T) {
	err := FromContext(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "call timed out", err.Error())

	assert.Equal(t, context.Canceled, FromContext(context.Canceled))
	assert.NoError(t, FromContext(nil))
}
