package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	eventpubsub "github.com/JakeFAU/realtime-search/internal/publisher/pubsub"
)

func TestPublisherPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "search-events")
	require.NoError(t, err)

	pub := eventpubsub.New(topic)
	defer pub.Close()

	id, err := pub.Publish(ctx, "index.built", map[string]any{"build_id": "b1", "documents": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "index.built", msgs[0].Attributes[eventpubsub.EventAttribute])
	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "b1", body["build_id"])
}

func TestPublisherWithoutTopic(t *testing.T) {
	t.Parallel()
	_, err := eventpubsub.New(nil).Publish(context.Background(), "index.built", nil)
	require.Error(t, err)
}

func TestConnectRequiresIdentifiers(t *testing.T) {
	t.Parallel()
	_, _, err := eventpubsub.Connect(context.Background(), "", "topic")
	require.Error(t, err)
}
