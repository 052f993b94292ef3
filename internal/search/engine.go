// Package search ranks indexed documents against free-text queries using
// cosine similarity over the tf-idf matrix.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/extract"
	"github.com/JakeFAU/realtime-search/internal/index"
	"github.com/JakeFAU/realtime-search/internal/metrics"
	"github.com/JakeFAU/realtime-search/internal/storage"
	"github.com/JakeFAU/realtime-search/internal/textproc"
)

// Defaults for Options.
const (
	DefaultMinScore      = 0.01
	DefaultSnippetLength = 100
	ellipsis             = "..."
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Result is one ranked hit.
type Result struct {
	Rank    int     `json:"rank"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Response holds the ranked results and the time spent from tokenization
// through ranking.
type Response struct {
	Results []Result
	Elapsed time.Duration
}

// Stats summarizes the loaded index.
type Stats struct {
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	BuildID   string    `json:"build_id"`
	CreatedAt time.Time `json:"created_at"`
}

type options struct {
	minScore      float64
	snippetLength int
}

// Option configures an Engine.
type Option func(*options)

// WithMinScore sets the relevance floor. Results scoring below it are dropped.
func WithMinScore(score float64) Option {
	return func(o *options) {
		o.minScore = score
	}
}

// WithSnippetLength sets the snippet budget in runes.
func WithSnippetLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.snippetLength = n
		}
	}
}

// Engine answers queries against one immutable index. All fields are set
// before the constructor returns, so an Engine is safe for concurrent use.
type Engine struct {
	artifact  *index.Artifact
	tokenizer *textproc.Tokenizer
	opts      options
	loadErr   error
	logger    *zap.Logger
}

// Load reads the index under prefix. It never fails: when the artifact
// cannot be loaded the returned Engine is degraded and every query reports
// ErrEngineNotReady.
func Load(ctx context.Context, store storage.BlobStore, prefix string, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	artifact, err := index.Load(ctx, store, prefix)
	if err != nil {
		logger.Error("Search index unavailable, engine degraded", zap.String("prefix", prefix), zap.Error(err))
		return degraded(err, logger, opts)
	}
	return FromArtifact(artifact, logger, opts...)
}

// FromArtifact builds an Engine over an in-memory artifact.
func FromArtifact(artifact *index.Artifact, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := artifact.Validate(); err != nil {
		logger.Error("Search index inconsistent, engine degraded", zap.Error(err))
		return degraded(&index.UnavailableError{Err: err}, logger, opts)
	}
	e := &Engine{
		artifact:  artifact,
		tokenizer: textproc.New(artifact.Manifest.Tokenizer),
		opts:      buildOptions(opts),
		logger:    logger,
	}
	metrics.SetIndexSize(artifact.Matrix.Rows, artifact.Vocabulary.Len())
	logger.Info("Search index loaded",
		zap.String("build_id", artifact.Manifest.BuildID),
		zap.Int("documents", artifact.Matrix.Rows),
		zap.Int("terms", artifact.Vocabulary.Len()),
		zap.Int("nnz", artifact.Matrix.NNZ()))
	return e
}

func degraded(err error, logger *zap.Logger, opts []Option) *Engine {
	return &Engine{loadErr: err, opts: buildOptions(opts), logger: logger}
}

func buildOptions(opts []Option) options {
	o := options{minScore: DefaultMinScore, snippetLength: DefaultSnippetLength}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Ready returns nil when the index is loaded, or ErrEngineNotReady wrapping
// the load failure.
func (e *Engine) Ready() error {
	if e.loadErr != nil {
		return fmt.Errorf("%w: %w", ErrEngineNotReady, e.loadErr)
	}
	return nil
}

// Stats describes the loaded index. It is zero for a degraded engine.
func (e *Engine) Stats() Stats {
	if e.artifact == nil {
		return Stats{}
	}
	return Stats{
		Documents: e.artifact.Matrix.Rows,
		Terms:     e.artifact.Vocabulary.Len(),
		BuildID:   e.artifact.Manifest.BuildID,
		CreatedAt: e.artifact.Manifest.CreatedAt,
	}
}

// Search returns up to topK documents ordered by descending similarity.
// Equal scores keep the lower row first. An empty result is not an error.
func (e *Engine) Search(query string, topK int) (Response, error) {
	if err := e.Ready(); err != nil {
		metrics.ObserveSearch("not_ready", 0)
		return Response{}, err
	}
	if topK <= 0 {
		metrics.ObserveSearch("invalid", 0)
		return Response{}, fmt.Errorf("%w: got %d", ErrInvalidLimit, topK)
	}

	start := time.Now()
	results, err := e.rank(query, topK)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveSearch("error", elapsed)
		e.logger.Error("Query processing failed", zap.String("query", query), zap.Error(err))
		return Response{}, &QueryProcessingError{Query: query, Err: err}
	}
	status := "ok"
	if len(results) == 0 {
		status = "empty"
	}
	metrics.ObserveSearch(status, elapsed)
	e.logger.Debug("Query served",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed))
	return Response{Results: results, Elapsed: elapsed}, nil
}

type scored struct {
	row   int
	score float64
}

func (e *Engine) rank(query string, topK int) ([]Result, error) {
	weights, err := e.project(query)
	if err != nil {
		return nil, err
	}
	results := []Result{}
	if len(weights) == 0 {
		return results, nil
	}

	m := e.artifact.Matrix
	hits := make([]scored, 0, m.Rows)
	for row := 0; row < m.Rows; row++ {
		cols, vals := m.Row(row)
		var score float64
		for i, c := range cols {
			if w, ok := weights[c]; ok {
				score += w * vals[i]
			}
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("row %d: non-finite score", row)
		}
		if score < e.opts.minScore {
			continue
		}
		hits = append(hits, scored{row: row, score: score})
	}

	slices.SortFunc(hits, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.row, b.row)
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	for i, hit := range hits {
		doc := e.artifact.Metadata[hit.row]
		title := doc.Title
		if title == "" {
			title = extract.DefaultTitle
		}
		results = append(results, Result{
			Rank:    i + 1,
			Title:   title,
			URL:     doc.URL,
			Snippet: Snippet(doc.Text, e.opts.snippetLength),
			Score:   hit.score,
		})
	}
	return results, nil
}

// project builds the L2-normalized tf-idf query vector keyed by column.
// Terms outside the vocabulary are dropped.
func (e *Engine) project(query string) (map[uint32]float64, error) {
	counts := e.tokenizer.TermFrequency(query)
	weights := make(map[uint32]float64, len(counts))
	var norm float64
	for term, count := range counts {
		entry, ok := e.artifact.Vocabulary.Lookup(term)
		if !ok {
			continue
		}
		if entry.Column < 0 || entry.Column >= e.artifact.Matrix.Cols {
			return nil, fmt.Errorf("term %q maps to column %d outside %d columns", term, entry.Column, e.artifact.Matrix.Cols)
		}
		w := float64(count) * entry.IDF
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("term %q has non-finite weight", term)
		}
		weights[uint32(entry.Column)] = w
		norm += w * w
	}
	if norm == 0 {
		return nil, nil
	}
	norm = math.Sqrt(norm)
	for c := range weights {
		weights[c] /= norm
	}
	return weights, nil
}

// Snippet truncates text to n runes, replaces line breaks with spaces and
// appends an ellipsis.
func Snippet(text string, n int) string {
	if utf8.RuneCountInString(text) > n {
		cut := 0
		for i := range text {
			if n == 0 {
				cut = i
				break
			}
			n--
		}
		text = text[:cut]
	}
	return lineBreaks.Replace(text) + ellipsis
}

// IsNotReady reports whether err came from a degraded engine.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrEngineNotReady)
}
