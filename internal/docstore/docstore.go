// Package docstore persists a crawled corpus as a JSON array of documents and
// loads it back, validating the shape against the corpus schema.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/realtime-search/internal/crawler"
	"github.com/JakeFAU/realtime-search/internal/extract"
	"github.com/JakeFAU/realtime-search/internal/schemas"
	"github.com/JakeFAU/realtime-search/internal/storage"
)

// TimeLayout is the fetch_time format on disk.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultPath is the object path used when none is configured.
const DefaultPath = "documents/corpus.json"

// ErrNotFound is returned when no corpus exists at the requested path.
var ErrNotFound = errors.New("document store not found")

type record struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	FetchTime string `json:"fetch_time"`
}

// Save writes corpus to path in fetch order and returns the object URI.
func Save(ctx context.Context, store storage.BlobStore, path string, corpus crawler.Corpus) (string, error) {
	records := make([]record, 0, len(corpus))
	for _, doc := range corpus {
		records = append(records, record{
			URL:       doc.URL,
			Title:     doc.Title,
			Text:      doc.Text,
			FetchTime: doc.FetchedAt.UTC().Format(TimeLayout),
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal corpus: %w", err)
	}
	uri, err := store.PutObject(ctx, path, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("write corpus: %w", err)
	}
	return uri, nil
}

// Load reads the corpus at path. A corpus that does not match the schema
// yields a *schemas.ValidationError naming the offending fields. Only url is
// required: a missing title becomes extract.DefaultTitle and a missing text is
// kept empty so the builder skips it.
func Load(ctx context.Context, store storage.BlobStore, path string) (crawler.Corpus, error) {
	data, err := store.GetObject(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if err := schemas.Validate(schemas.Corpus, data); err != nil {
		return nil, fmt.Errorf("validate corpus %s: %w", path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	corpus := make(crawler.Corpus, 0, len(records))
	for i, rec := range records {
		var fetched time.Time
		if rec.FetchTime != "" {
			fetched, err = time.ParseInLocation(TimeLayout, rec.FetchTime, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("decode corpus: document %d fetch_time: %w", i, err)
			}
		}
		title := rec.Title
		if strings.TrimSpace(title) == "" {
			title = extract.DefaultTitle
		}
		corpus = append(corpus, crawler.Document{
			URL:       rec.URL,
			Title:     title,
			Text:      rec.Text,
			FetchedAt: fetched,
		})
	}
	return corpus, nil
}
