// Package publisher announces completed crawls and index builds to
// downstream consumers.
package publisher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/crawler"
)

// Event names.
const (
	CrawlCompleted = "crawl.completed"
	IndexBuilt     = "index.built"
)

// Publisher delivers one event and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// CrawlCompletedEvent is published after the corpus has been stored.
type CrawlCompletedEvent struct {
	RunID         string        `json:"run_id"`
	Documents     int           `json:"documents"`
	Stats         crawler.Stats `json:"stats"`
	DocumentStore string        `json:"document_store"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// IndexBuiltEvent is published after the index artifact has been committed.
type IndexBuiltEvent struct {
	BuildID        string    `json:"build_id"`
	Documents      int       `json:"documents"`
	Terms          int       `json:"terms"`
	ArtifactPrefix string    `json:"artifact_prefix"`
	CreatedAt      time.Time `json:"created_at"`
}

// Announce publishes payload and logs the outcome. Failures never propagate:
// the stored artifact is the source of truth, the event is a courtesy.
func Announce(ctx context.Context, pub Publisher, logger *zap.Logger, topic string, payload any) {
	if pub == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	id, err := pub.Publish(ctx, topic, payload)
	if err != nil {
		logger.Warn("Event publish failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	logger.Info("Event published", zap.String("topic", topic), zap.String("message_id", id))
}
