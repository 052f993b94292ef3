package search

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineNotReady is returned by every query while the index is unavailable.
	ErrEngineNotReady = errors.New("search engine not ready")
	// ErrInvalidLimit is returned for a non-positive result limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// QueryProcessingError reports a query that could not be projected or scored
// against the loaded index. The engine stays usable.
type QueryProcessingError struct {
	Query string
	Err   error
}

func (e *QueryProcessingError) Error() string {
	return fmt.Sprintf("process query %q: %v", e.Query, e.Err)
}

func (e *QueryProcessingError) Unwrap() error { return e.Err }
