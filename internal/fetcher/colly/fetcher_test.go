package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/clock/system"
	"github.com/JakeFAU/realtime-search/internal/crawler"
	"github.com/JakeFAU/realtime-search/internal/extract"
	"github.com/JakeFAU/realtime-search/internal/id/uuid"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	req := crawler.FetchRequest{URL: "https://example.com"}

	collector := f.buildCollector(req, time.Unix(0, 0), &crawler.FetchResponse{}, new(error))
	assert.Equal(t, "coverage-agent", collector.UserAgent)
	assert.True(t, collector.IgnoreRobotsTxt)
	assert.True(t, collector.AllowURLRevisit)
	assert.True(t, collector.ParseHTTPErrorResponse)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := crawler.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func TestFetchHTML(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<p>agent=%s</p>", r.UserAgent())
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "websearch-test", Timeout: 2 * time.Second})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/page"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType())
	assert.Equal(t, "<p>agent=websearch-test</p>", string(resp.Body))
	assert.Equal(t, srv.URL+"/page", resp.URL)

	// The same URL can be fetched again.
	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/page"})
	require.NoError(t, err)
}

func TestFetchReturnsErrorStatusWithoutError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/missing"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchDoesNotFollowRedirects(t *testing.T) {
	t.Parallel()
	var newHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/", func(w http.ResponseWriter, _ *http.Request) {
		newHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>moved</p>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/old"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/new/", resp.Location())
	assert.Equal(t, srv.URL+"/old", resp.URL)
	assert.Zero(t, newHits.Load())
}

func TestCrawlRoutesRedirectsThroughGate(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		case "/go":
			http.Redirect(w, r, "/private", http.StatusFound)
		case "/old":
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<p>home</p><a href="/go">go</a><a href="/old">old</a><a href="/new">new</a>`)
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<p>page %s</p>", r.URL.Path)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := crawler.New(crawler.Config{
		Seeds:     []string{srv.URL + "/"},
		MaxPages:  10,
		UserAgent: "websearch-test",
	}, crawler.Dependencies{
		Fetcher:  New(Config{UserAgent: "websearch-test", Timeout: 2 * time.Second}),
		Robots:   crawler.NewRobotsEnforcer(true, "websearch-test", zap.NewNop()),
		Throttle: openThrottle{},
		Parser:   extract.New(extract.DefaultTextSelector),
		Clock:    system.New(),
		IDGen:    uuid.New(),
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, hits["/private"])
	assert.Equal(t, 1, hits["/new"])
	assert.Equal(t, 1, hits["/robots.txt"])

	urls := make([]string, 0, len(result.Corpus))
	for _, doc := range result.Corpus {
		urls = append(urls, doc.URL)
	}
	assert.Equal(t, []string{srv.URL + "/", srv.URL + "/new"}, urls)
	assert.Equal(t, 2, result.Stats.Redirected)
	assert.Equal(t, 1, result.Stats.Disallowed)
}

type openThrottle struct{}

func (openThrottle) Wait(ctx context.Context, _ string) error { return ctx.Err() }

func TestFetchUnreachableHost(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	f := New(Config{Timeout: time.Second})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: target + "/"})
	require.Error(t, err)
}

func TestFetchCanceled(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL + "/slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
