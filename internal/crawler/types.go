package crawler

import (
	"net/http"
	"time"
)

// Document is one stored page. Documents are immutable once appended to a Corpus.
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetch_time"`
}

// Corpus is the ordered output of one crawl run. Order is fetch order.
type Corpus []Document

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Location returns the response Location header.
func (r FetchResponse) Location() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Location")
}

// Outcome classifies what happened to one processed URL.
type Outcome string

// Outcomes recorded for every visited URL.
const (
	OutcomeStored     Outcome = "stored"
	OutcomeDisallowed Outcome = "disallowed"
	OutcomeFetchError Outcome = "fetch_error"
	OutcomeRejected   Outcome = "rejected"
	OutcomeRedirected Outcome = "redirected"
)

// Stats counts per-outcome totals for a run.
type Stats struct {
	Visited    int `json:"visited"`
	Stored     int `json:"stored"`
	Disallowed int `json:"disallowed"`
	FetchError int `json:"fetch_error"`
	Rejected   int `json:"rejected"`
	Redirected int `json:"redirected"`
	Pending    int `json:"pending"`
}

func (s *Stats) add(outcome Outcome) {
	s.Visited++
	switch outcome {
	case OutcomeStored:
		s.Stored++
	case OutcomeDisallowed:
		s.Disallowed++
	case OutcomeFetchError:
		s.FetchError++
	case OutcomeRejected:
		s.Rejected++
	case OutcomeRedirected:
		s.Redirected++
	}
}

// FetchRecord is written to the fetch log for every visited URL.
type FetchRecord struct {
	RunID         string
	URL           string
	Outcome       Outcome
	StatusCode    int
	ContentType   string
	ContentLength int
	ErrorText     string
	Duration      time.Duration
	FetchedAt     time.Time
}

// Result is returned by Crawler.Run.
type Result struct {
	RunID  string
	Corpus Corpus
	Stats  Stats
}
