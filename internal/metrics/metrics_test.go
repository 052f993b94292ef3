package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, crawlerPagesTotal)
	require.NotNil(t, searchQueriesTotal)
	require.NotNil(t, indexDocuments)
}

func TestObserveCrawl(t *testing.T) {
	Init()
	pages := crawlerPagesTotal.WithLabelValues("crawl.test", "stored")
	bytes := crawlerBytesTotal.WithLabelValues("crawl.test")
	beforePages := testutil.ToFloat64(pages)
	beforeBytes := testutil.ToFloat64(bytes)

	ObserveCrawl("https://Crawl.test/a", "stored", 512)
	ObserveCrawl("https://crawl.test/b", "stored", 0)

	assert.InDelta(t, beforePages+2, testutil.ToFloat64(pages), 1e-9)
	assert.InDelta(t, beforeBytes+512, testutil.ToFloat64(bytes), 1e-9)
}

func TestObserveRobots(t *testing.T) {
	Init()
	counter := crawlerRobotsTotal.WithLabelValues("robots.test", "unavailable")
	before := testutil.ToFloat64(counter)

	ObserveRobots("https://robots.test", "unavailable")

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 1e-9)
}

func TestIndexAndSearchMetrics(t *testing.T) {
	ObserveIndexBuild(250*time.Millisecond, 3, 42)
	assert.InDelta(t, 3, testutil.ToFloat64(indexDocuments), 1e-9)
	assert.InDelta(t, 42, testutil.ToFloat64(indexTerms), 1e-9)

	counter := searchQueriesTotal.WithLabelValues("ok")
	before := testutil.ToFloat64(counter)
	ObserveSearch("ok", time.Millisecond)
	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 1e-9)
}

func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
