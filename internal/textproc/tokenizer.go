// Package textproc holds the tokenizer shared by index builds and queries.
// Its Config is persisted with every index artifact so a query is always
// tokenized exactly like the documents it is scored against.
package textproc

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"go.uber.org/zap"
)

//go:embed english_stopwords.txt
var englishStopwords string

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Config describes the normalization applied to every token.
type Config struct {
	Lowercase      bool     `json:"lowercase"`
	MinTokenLength int      `json:"min_token_length"`
	Stem           bool     `json:"stem"`
	Stopwords      []string `json:"stopwords,omitempty"`
}

// DefaultConfig mirrors a classic English bag-of-words setup.
func DefaultConfig() Config {
	return Config{
		Lowercase:      true,
		MinTokenLength: 2,
		Stopwords:      EnglishStopwords(),
	}
}

// Tokenizer splits text into normalized terms.
type Tokenizer struct {
	cfg       Config
	stopwords map[string]struct{}
}

// New builds a Tokenizer. Stopwords are normalized the same way as tokens.
func New(cfg Config) *Tokenizer {
	if cfg.MinTokenLength <= 0 {
		cfg.MinTokenLength = 1
	}
	t := &Tokenizer{cfg: cfg, stopwords: make(map[string]struct{}, len(cfg.Stopwords))}
	for _, w := range cfg.Stopwords {
		w = strings.TrimSpace(w)
		if cfg.Lowercase {
			w = strings.ToLower(w)
		}
		if w != "" {
			t.stopwords[w] = struct{}{}
		}
	}
	return t
}

// Config returns a copy of the configuration, with a sorted, deduplicated stopword list.
func (t *Tokenizer) Config() Config {
	cfg := t.cfg
	words := make([]string, 0, len(t.stopwords))
	for w := range t.stopwords {
		words = append(words, w)
	}
	slices.Sort(words)
	cfg.Stopwords = words
	return cfg
}

// Tokens returns the terms of text in order of appearance.
func (t *Tokenizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	raw := tokenPattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if utf8.RuneCountInString(tok) < t.cfg.MinTokenLength {
			continue
		}
		if t.cfg.Lowercase {
			tok = strings.ToLower(tok)
		}
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		if t.cfg.Stem {
			tok = english.Stem(tok, false)
			if tok == "" {
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

// TermFrequency counts tokens of text.
func (t *Tokenizer) TermFrequency(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range t.Tokens(text) {
		counts[tok]++
	}
	return counts
}

// EnglishStopwords returns the built-in English stop list.
func EnglishStopwords() []string {
	words, _ := readStopwords(strings.NewReader(englishStopwords))
	return words
}

// Stop list selectors accepted by ResolveStopwords.
const (
	StopwordsEnglish = "english"
	StopwordsNone    = "none"
)

// ResolveStopwords maps a stop list selector to words: "english" (or empty)
// for the built-in list, "none" for no filtering, anything else is a file path
// read with LoadStopwords.
func ResolveStopwords(selector string, logger *zap.Logger) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(selector)) {
	case "", StopwordsEnglish:
		return EnglishStopwords(), nil
	case StopwordsNone:
		return nil, nil
	default:
		return LoadStopwords(selector, logger)
	}
}

// LoadStopwords reads a newline-delimited stop list. A missing file is not an
// error: it is logged and yields an empty list.
func LoadStopwords(path string, logger *zap.Logger) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if logger != nil {
				logger.Warn("stopword file not found; stopword file filtering disabled", zap.String("path", path))
			}
			return nil, nil
		}
		return nil, fmt.Errorf("open stopwords %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only
	words, err := readStopwords(f)
	if err != nil {
		return nil, fmt.Errorf("read stopwords %s: %w", path, err)
	}
	if logger != nil {
		logger.Info("loaded stopwords", zap.String("path", path), zap.Int("count", len(words)))
	}
	return words, nil
}

func readStopwords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w != "" && !strings.HasPrefix(w, "#") {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan stopwords: %w", err)
	}
	return words, nil
}
