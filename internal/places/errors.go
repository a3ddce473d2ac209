package places

import "fmt"

// FetchError is a non-success answer from the places provider.
type FetchError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("places %s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Retryable reports statuses worth another attempt.
func (e *FetchError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
