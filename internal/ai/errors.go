package ai

import (
	"fmt"

	errs "lead-pipeline/internal/common/errors"
)

// ProviderError is a non-success answer from an AI provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ClassifyProviderError maps err to auth, rate_limit, unavailable or unknown.
func ClassifyProviderError(err error) string {
	if err == nil {
		return errs.CategoryUnknown
	}
	return errs.ClassifyUpstream(err.Error())
}
