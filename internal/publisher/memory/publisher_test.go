package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "crawl.completed", map[string]string{"run_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "index.built", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "crawl.completed", msgs[0].Topic)
	assert.Equal(t, "index.built", msgs[1].Topic)

	msgs[0].Topic = "modified"
	assert.Equal(t, "crawl.completed", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Publish(ctx, "index.built", nil)
	require.ErrorIs(t, err, context.Canceled)
}
