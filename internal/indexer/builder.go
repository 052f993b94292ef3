// Package indexer turns a crawled corpus into a tf-idf index artifact.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/crawler"
	"github.com/JakeFAU/realtime-search/internal/index"
	"github.com/JakeFAU/realtime-search/internal/metrics"
	"github.com/JakeFAU/realtime-search/internal/textproc"
)

// Defaults for Config.
const (
	DefaultMaxDFRatio  = 0.98
	DefaultMinDFCount  = 2
	DefaultMaxFeatures = 20000
)

var (
	// ErrEmptyCorpus is returned when no document has indexable text.
	ErrEmptyCorpus = errors.New("corpus has no indexable documents")
	// ErrEmptyVocabulary is returned when pruning removes every term.
	ErrEmptyVocabulary = errors.New("no terms survive vocabulary pruning")
	// ErrInvalidConfig is returned for pruning parameters that cannot be satisfied.
	ErrInvalidConfig = errors.New("invalid index configuration")
)

// Config holds the vocabulary pruning parameters and the tokenizer setup.
type Config struct {
	// MaxDFRatio drops terms appearing in more than this fraction of documents.
	MaxDFRatio float64
	// MinDFCount drops terms appearing in fewer documents than this.
	MinDFCount int
	// MaxFeatures keeps only the most frequent terms corpus-wide. Zero means no cap.
	MaxFeatures int
	Tokenizer   textproc.Config
}

// DefaultConfig returns the standard pruning parameters with English stop words.
func DefaultConfig() Config {
	return Config{
		MaxDFRatio:  DefaultMaxDFRatio,
		MinDFCount:  DefaultMinDFCount,
		MaxFeatures: DefaultMaxFeatures,
		Tokenizer:   textproc.DefaultConfig(),
	}
}

// Validate checks parameter ranges that do not depend on the corpus size.
func (c Config) Validate() error {
	if c.MaxDFRatio <= 0 || c.MaxDFRatio > 1 || math.IsNaN(c.MaxDFRatio) {
		return fmt.Errorf("%w: index.max_df_ratio must be in (0, 1], got %v", ErrInvalidConfig, c.MaxDFRatio)
	}
	if c.MinDFCount < 1 {
		return fmt.Errorf("%w: index.min_df_count must be >= 1, got %d", ErrInvalidConfig, c.MinDFCount)
	}
	if c.MaxFeatures < 0 {
		return fmt.Errorf("%w: index.max_features must be >= 0, got %d", ErrInvalidConfig, c.MaxFeatures)
	}
	return nil
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces build IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Builder computes vocabulary, idf and the normalized weight matrix.
type Builder struct {
	cfg       Config
	tokenizer *textproc.Tokenizer
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// New validates cfg and returns a Builder.
func New(cfg Config, clock Clock, ids IDGenerator, logger *zap.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil || ids == nil {
		return nil, errors.New("indexer: clock and id generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		cfg:       cfg,
		tokenizer: textproc.New(cfg.Tokenizer),
		clock:     clock,
		ids:       ids,
		logger:    logger,
	}, nil
}

type docTerms struct {
	meta   index.DocumentMeta
	counts map[string]int
}

// Build indexes docs in order. Documents with blank text are skipped; the
// remaining documents become matrix rows in their original relative order.
func (b *Builder) Build(ctx context.Context, docs crawler.Corpus) (*index.Artifact, error) {
	start := time.Now()

	rows := make([]docTerms, 0, len(docs))
	for i, doc := range docs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("build index: %w", err)
			}
		}
		if strings.TrimSpace(doc.Text) == "" {
			b.logger.Warn("Skipping document with empty text", zap.String("url", doc.URL))
			continue
		}
		rows = append(rows, docTerms{
			meta:   index.DocumentMeta{URL: doc.URL, Title: doc.Title, Text: doc.Text},
			counts: b.tokenizer.TermFrequency(doc.Text),
		})
	}
	if len(rows) == 0 {
		return nil, ErrEmptyCorpus
	}

	n := len(rows)
	maxDocCount := b.cfg.MaxDFRatio * float64(n)
	if maxDocCount < float64(b.cfg.MinDFCount) {
		return nil, fmt.Errorf("%w: max_df_ratio %.4g of %d documents is below min_df_count %d",
			ErrInvalidConfig, b.cfg.MaxDFRatio, n, b.cfg.MinDFCount)
	}

	df := make(map[string]int)
	total := make(map[string]int)
	for _, row := range rows {
		for term, count := range row.counts {
			df[term]++
			total[term] += count
		}
	}

	kept := b.selectTerms(df, total, maxDocCount)
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]index.Term, len(kept))
	column := make(map[string]uint32, len(kept))
	for i, term := range kept {
		terms[i] = index.Term{
			Term:   term,
			Column: i,
			IDF:    smoothIDF(n, df[term]),
		}
		column[term] = uint32(i)
	}
	vocab, err := index.NewVocabulary(terms)
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}

	matrix := index.NewMatrix(len(terms))
	meta := make([]index.DocumentMeta, 0, n)
	empty := 0
	for _, row := range rows {
		cols, vals := weighRow(row.counts, column, terms)
		if len(cols) == 0 {
			empty++
		}
		if err := matrix.AppendRow(cols, vals); err != nil {
			return nil, fmt.Errorf("build matrix: %w", err)
		}
		meta = append(meta, row.meta)
	}

	buildID, err := b.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate build id: %w", err)
	}
	artifact := &index.Artifact{
		Manifest: index.Manifest{
			FormatVersion: index.FormatVersion,
			BuildID:       buildID,
			CreatedAt:     b.clock.Now(),
			Documents:     n,
			Terms:         vocab.Len(),
			NNZ:           matrix.NNZ(),
			Tokenizer:     b.tokenizer.Config(),
			Builder: index.BuildParams{
				MaxDFRatio:  b.cfg.MaxDFRatio,
				MinDFCount:  b.cfg.MinDFCount,
				MaxFeatures: b.cfg.MaxFeatures,
			},
		},
		Vocabulary: vocab,
		Matrix:     matrix,
		Metadata:   meta,
	}

	elapsed := time.Since(start)
	metrics.ObserveIndexBuild(elapsed, n, vocab.Len())
	b.logger.Info("Index built",
		zap.String("build_id", buildID),
		zap.Int("documents", n),
		zap.Int("skipped", len(docs)-n),
		zap.Int("terms", vocab.Len()),
		zap.Int("candidate_terms", len(df)),
		zap.Int("nnz", matrix.NNZ()),
		zap.Int("empty_rows", empty),
		zap.Duration("elapsed", elapsed))
	return artifact, nil
}

// selectTerms applies the df window and the feature cap, returning the
// surviving terms in lexicographic order.
func (b *Builder) selectTerms(df, total map[string]int, maxDocCount float64) []string {
	candidates := make([]string, 0, len(df))
	for term, count := range df {
		if float64(count) > maxDocCount || count < b.cfg.MinDFCount {
			continue
		}
		candidates = append(candidates, term)
	}
	sort.Strings(candidates)

	if b.cfg.MaxFeatures > 0 && len(candidates) > b.cfg.MaxFeatures {
		ranked := append([]string(nil), candidates...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return total[ranked[i]] > total[ranked[j]]
		})
		ranked = ranked[:b.cfg.MaxFeatures]
		sort.Strings(ranked)
		candidates = ranked
	}
	return candidates
}

// smoothIDF is ln((1+n)/(1+df)) + 1.
func smoothIDF(n, df int) float64 {
	return math.Log(float64(1+n)/float64(1+df)) + 1
}

// weighRow computes the L2-normalized tf-idf entries of one document, in
// increasing column order. A document with no vocabulary terms yields no entries.
func weighRow(counts map[string]int, column map[string]uint32, terms []index.Term) ([]uint32, []float64) {
	cols := make([]uint32, 0, len(counts))
	for term := range counts {
		if c, ok := column[term]; ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, nil
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

	vals := make([]float64, len(cols))
	var norm float64
	for i, c := range cols {
		w := float64(counts[terms[c].Term]) * terms[c].IDF
		vals[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vals {
		vals[i] /= norm
	}
	return cols, vals
}
