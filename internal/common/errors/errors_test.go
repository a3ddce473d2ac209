package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		status    int
		retryable bool
		category  string
	}{
		{"onboarding", NewOnboardingRequiredError("u-1"), ErrCodeOnboardingRequired, http.StatusForbidden, false, "PRECONDITION"},
		{"workspace", NewWorkspaceNotFoundError("u-1"), ErrCodeWorkspaceNotFound, http.StatusNotFound, false, "PRECONDITION"},
		{"quota", NewQuotaExceededError("ws-1", 10, 10), ErrCodeQuotaExceeded, http.StatusPaymentRequired, false, "PRECONDITION"},
		{"rate", NewRateLimitedError("u-1", 30), ErrCodeRateLimited, http.StatusTooManyRequests, false, "PRECONDITION"},
		{"places", NewPlacesFetchFailedError(stderrors.New("503 unavailable")), ErrCodePlacesFetchFailed, http.StatusBadGateway, true, "UPSTREAM"},
		{"ai config", NewAIConfigMissingError("viability"), ErrCodeAIConfigMissing, http.StatusServiceUnavailable, false, "CONFIGURATION"},
		{"store", NewStoreFailedError("insert", stderrors.New("disk full")), ErrCodeStoreFailed, http.StatusInternalServerError, true, "STORAGE"},
		{"engine", NewWorkflowEngineError("topology", stderrors.New("unavailable"), true), ErrCodeWorkflowEngine, http.StatusBadGateway, true, "INFRASTRUCTURE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.category, GetErrorCategory(tt.err.Code))
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestQuotaExceededCarriesCounters(t *testing.T) {
	err := NewQuotaExceededError("ws-1", 12, 10)
	assert.Equal(t, 12, err.Metadata["used"])
	assert.Equal(t, 10, err.Metadata["limit"])
	assert.Contains(t, err.Error(), "workspaceId: ws-1")
}

func TestAsStandardThroughWrapping(t *testing.T) {
	inner := NewQuotaExceededError("ws-1", 10, 10)
	wrapped := fmt.Errorf("run search: %w", inner)

	stdErr, ok := AsStandard(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, stdErr)
	assert.True(t, IsCode(wrapped, ErrCodeQuotaExceeded))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeQuotaExceeded))
}

func TestNormalize(t *testing.T) {
	plain := stderrors.New("boom")
	n := Normalize(plain)
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.ErrorIs(t, n, plain)

	typed := NewInvalidRequestError("textQuery is required")
	assert.Same(t, typed, Normalize(typed))
}

func TestClassifyUpstream(t *testing.T) {
	assert.Equal(t, CategoryAuth, ClassifyUpstream("403 PERMISSION_DENIED: API key not valid"))
	assert.Equal(t, CategoryRateLimit, ClassifyUpstream("429 RESOURCE_EXHAUSTED"))
	assert.Equal(t, CategoryUnavailable, ClassifyUpstream("context deadline exceeded"))
	assert.Equal(t, CategoryUnknown, ClassifyUpstream("something odd"))
	assert.NotEqual(t, UserMessage(CategoryAuth), UserMessage(CategoryUnknown))
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeStoreFailed))
	assert.Equal(t, 1, GetRetryCount(ErrCodePlacesFetchFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeQuotaExceeded))
	assert.Equal(t, 0, GetRetryCount(ErrCodeInvalidRequest))
}

func TestErrorVariables(t *testing.T) {
	vars := ErrorVariables(NewAIConfigMissingError("market_analysis"))
	assert.Equal(t, "AI_CONFIG_MISSING", vars["errorCode"])
	assert.Equal(t, "CONFIGURATION", vars["errorCategory"])
	assert.Equal(t, "market_analysis", vars["role"])
	assert.Equal(t, false, vars["retryable"])
}
