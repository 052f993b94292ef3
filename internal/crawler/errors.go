package crawler

import (
	"errors"
	"fmt"
)

// TransientFetchError reports a network failure, timeout or non-2xx status.
// The URL is discarded and the crawl continues.
type TransientFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// ContentRejectedError reports a page that was fetched but is not indexable.
type ContentRejectedError struct {
	URL    string
	Reason string
}

func (e *ContentRejectedError) Error() string {
	return fmt.Sprintf("content rejected %s: %s", e.URL, e.Reason)
}

// PolicyUnavailableError reports a robots policy that could not be retrieved.
// The domain is then crawled without restriction.
type PolicyUnavailableError struct {
	Domain string
	Err    error
}

func (e *PolicyUnavailableError) Error() string {
	return fmt.Sprintf("robots policy unavailable for %s: %v", e.Domain, e.Err)
}

func (e *PolicyUnavailableError) Unwrap() error { return e.Err }

// RedirectError reports a 3xx response. The target is queued as an ordinary
// frontier entry instead of being followed.
type RedirectError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect %s: status %d to %s", e.URL, e.StatusCode, e.Location)
}

// ErrDisallowed is returned when the robots gate refuses a URL.
var ErrDisallowed = errors.New("disallowed by robots policy")

// Reasons used by ContentRejectedError.
const (
	ReasonNotHTML     = "non-html content type"
	ReasonEmptyText   = "empty body text"
	ReasonUnparseable = "unparseable html"
)

// ClassifyError maps a per-URL processing error to its Outcome.
func ClassifyError(err error) Outcome {
	var (
		rejected   *ContentRejectedError
		redirected *RedirectError
	)
	switch {
	case err == nil:
		return OutcomeStored
	case errors.Is(err, ErrDisallowed):
		return OutcomeDisallowed
	case errors.As(err, &redirected):
		return OutcomeRedirected
	case errors.As(err, &rejected):
		return OutcomeRejected
	default:
		return OutcomeFetchError
	}
}
