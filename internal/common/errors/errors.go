// Package errors provides the typed error taxonomy of the lead pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a machine-readable error code surfaced to callers.
type ErrorCode string

// Precondition failures
const (
	ErrCodeOnboardingRequired ErrorCode = "ONBOARDING_REQUIRED"
	ErrCodeWorkspaceNotFound  ErrorCode = "WORKSPACE_NOT_FOUND"
	ErrCodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
)

// Upstream and infrastructure failures
const (
	ErrCodePlacesFetchFailed   ErrorCode = "PLACES_FETCH_FAILED"
	ErrCodeAIConfigMissing     ErrorCode = "AI_CONFIG_MISSING"
	ErrCodeAIProviderFailed    ErrorCode = "AI_PROVIDER_FAILED"
	ErrCodeAIEmptyResponse     ErrorCode = "AI_EMPTY_RESPONSE"
	ErrCodeStoreFailed         ErrorCode = "STORE_FAILED"
	ErrCodeQuotaCheckFailed    ErrorCode = "QUOTA_CHECK_FAILED"
	ErrCodeWebSearchFailed     ErrorCode = "WEB_SEARCH_FAILED"
	ErrCodeUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	ErrCodeWorkflowEngine      ErrorCode = "WORKFLOW_ENGINE_ERROR"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// Upstream failure categories, see ClassifyUpstream.
const (
	CategoryAuth        = "auth"
	CategoryRateLimit   = "rate_limit"
	CategoryUnavailable = "unavailable"
	CategoryUnknown     = "unknown"
)

// StandardError is a structured application error with an HTTP-style status.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Status    int                    `json:"status"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after setting key on its metadata map.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, status int, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Status:    status,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewOnboardingRequiredError reports an identity that has not finished onboarding.
func NewOnboardingRequiredError(userID string) *StandardError {
	return newError(ErrCodeOnboardingRequired, http.StatusForbidden,
		"Complete onboarding before searching", fmt.Sprintf("userId: %s", userID), false, nil)
}

// NewWorkspaceNotFoundError reports an identity without a workspace.
func NewWorkspaceNotFoundError(userID string) *StandardError {
	return newError(ErrCodeWorkspaceNotFound, http.StatusNotFound,
		"Workspace not found", fmt.Sprintf("userId: %s", userID), false, nil)
}

// NewQuotaExceededError reports a workspace whose quota is used up.
func NewQuotaExceededError(workspaceID string, used, limit int) *StandardError {
	return newError(ErrCodeQuotaExceeded, http.StatusPaymentRequired,
		"Search quota exhausted for this billing period",
		fmt.Sprintf("workspaceId: %s, used: %d, limit: %d", workspaceID, used, limit), false, nil).
		WithMetadata("used", used).
		WithMetadata("limit", limit)
}

// NewRateLimitedError reports too many requests inside the rate window.
func NewRateLimitedError(userID string, limit int) *StandardError {
	return newError(ErrCodeRateLimited, http.StatusTooManyRequests,
		"Too many searches, slow down",
		fmt.Sprintf("userId: %s, limitPerMinute: %d", userID, limit), false, nil)
}

// NewInvalidRequestError reports a malformed caller request.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, http.StatusBadRequest, "Invalid request", details, false, nil)
}

// NewPlacesFetchFailedError wraps a places provider failure.
func NewPlacesFetchFailedError(err error) *StandardError {
	e := newError(ErrCodePlacesFetchFailed, http.StatusBadGateway,
		UserMessage(ClassifyUpstream(err.Error())), err.Error(), true, err)
	return e.WithMetadata("category", ClassifyUpstream(err.Error()))
}

// NewAIConfigMissingError reports that no AI configuration could be resolved for role.
func NewAIConfigMissingError(role string) *StandardError {
	return newError(ErrCodeAIConfigMissing, http.StatusServiceUnavailable,
		"AI provider not configured", fmt.Sprintf("role: %s", role), false, nil).
		WithMetadata("role", role)
}

// NewAIProviderFailedError wraps an AI provider failure.
func NewAIProviderFailedError(provider string, err error) *StandardError {
	category := ClassifyUpstream(err.Error())
	return newError(ErrCodeAIProviderFailed, http.StatusBadGateway,
		UserMessage(category), fmt.Sprintf("provider: %s, error: %s", provider, err.Error()), true, err).
		WithMetadata("category", category)
}

// NewAIEmptyResponseError reports a provider answer without any extractable text.
func NewAIEmptyResponseError(provider, shape string) *StandardError {
	return newError(ErrCodeAIEmptyResponse, http.StatusBadGateway,
		"AI provider returned an empty response", fmt.Sprintf("provider: %s, shape: %s", provider, shape), true, nil)
}

// NewUnsupportedProviderError reports an unknown provider kind.
func NewUnsupportedProviderError(provider string) *StandardError {
	return newError(ErrCodeUnsupportedProvider, http.StatusInternalServerError,
		"Unsupported AI provider", fmt.Sprintf("provider: %s", provider), false, nil)
}

// NewStoreFailedError wraps a relational or cache store failure.
func NewStoreFailedError(op string, err error) *StandardError {
	return newError(ErrCodeStoreFailed, http.StatusInternalServerError,
		"Storage operation failed", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

// NewQuotaCheckFailedError wraps an identity/quota provider failure.
func NewQuotaCheckFailedError(err error) *StandardError {
	return newError(ErrCodeQuotaCheckFailed, http.StatusInternalServerError,
		"Could not verify quota", err.Error(), true, err)
}

// NewWorkflowEngineError wraps a failed workflow engine command.
func NewWorkflowEngineError(op string, err error, retryable bool) *StandardError {
	return newError(ErrCodeWorkflowEngine, http.StatusBadGateway,
		"Workflow engine request failed", fmt.Sprintf("op: %s, error: %s", op, err.Error()), retryable, err).
		WithMetadata("category", ClassifyUpstream(err.Error()))
}

// NewInternalError wraps anything else.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, http.StatusInternalServerError, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 3. Inspection Helpers
// ==========================

// AsStandard returns the StandardError in err's chain, if any.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// Normalize always returns a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// ClassifyUpstream inspects an upstream error message and returns one of
// the Category* constants.
func ClassifyUpstream(message string) string {
	msg := strings.ToLower(message)
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "forbidden", "api key", "api_key", "permission", "invalid credentials", "authentication"):
		return CategoryAuth
	case containsAny(msg, "429", "quota", "rate limit", "rate_limit", "resource_exhausted", "too many requests"):
		return CategoryRateLimit
	case containsAny(msg, "500", "502", "503", "504", "unavailable", "timeout", "deadline", "overloaded", "connection refused", "eof"):
		return CategoryUnavailable
	default:
		return CategoryUnknown
	}
}

// UserMessage maps an upstream category to a "try again" message.
func UserMessage(category string) string {
	switch category {
	case CategoryAuth:
		return "Provider credentials were rejected, contact your administrator"
	case CategoryRateLimit:
		return "Provider is rate limiting requests, try again in a few minutes"
	case CategoryUnavailable:
		return "Provider is temporarily unavailable, try again shortly"
	default:
		return "Provider request failed, try again"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// GetRetryCount returns the job-level retry budget for code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreFailed, ErrCodeQuotaCheckFailed:
		return 3
	case ErrCodePlacesFetchFailed, ErrCodeAIProviderFailed, ErrCodeAIEmptyResponse, ErrCodeWebSearchFailed:
		return 1
	default:
		return 0
	}
}

// GetErrorCategory groups codes for logs and dashboards.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeOnboardingRequired, ErrCodeWorkspaceNotFound, ErrCodeQuotaExceeded, ErrCodeRateLimited, ErrCodeInvalidRequest:
		return "PRECONDITION"
	case ErrCodePlacesFetchFailed, ErrCodeAIProviderFailed, ErrCodeAIEmptyResponse, ErrCodeWebSearchFailed:
		return "UPSTREAM"
	case ErrCodeAIConfigMissing, ErrCodeUnsupportedProvider:
		return "CONFIGURATION"
	case ErrCodeStoreFailed, ErrCodeQuotaCheckFailed:
		return "STORAGE"
	case ErrCodeWorkflowEngine:
		return "INFRASTRUCTURE"
	default:
		return "INTERNAL"
	}
}
