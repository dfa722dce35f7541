package gcppubsub_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/mq/gcppubsub"
	"tracker/mq/mq"
)

func newTestQueue(t *testing.T) mq.SnapshotMessageQueue {
	t.Helper()
	projectID := gcppubsub.GetGCPProjectID()
	if projectID == "" {
		t.Skip("GCP_PROJECT_ID not set")
	}
	queue, err := gcppubsub.NewGCPSnapshotMessageQueue(context.Background(), projectID)
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	return queue
}

func TestPubSubDeliversOnlyMatchingScope(t *testing.T) {
	queue := newTestQueue(t)

	id, ch, err := queue.Subscribe("pubsub-test")
	require.NoError(t, err)
	defer queue.DeSubscribe(id)

	require.NoError(t, queue.Publish(mq.SnapshotMessage{Scope: "other", UpdatedAt: "ignored"}))
	sent := mq.SnapshotMessage{Scope: "pubsub-test", Action: mq.ActionForce, UpdatedAt: "2025-10-27T12:00:00Z", SegmentCount: 2}
	require.NoError(t, queue.Publish(sent))

	select {
	case got := <-ch:
		assert.Equal(t, sent, got)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for Pub/Sub message")
	}
}

func TestPubSubDeSubscribeClosesChannel(t *testing.T) {
	queue := newTestQueue(t)
	id, ch, err := queue.Subscribe("pubsub-test")
	require.NoError(t, err)

	require.NoError(t, queue.DeSubscribe(id))
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 30*time.Second, 100*time.Millisecond)
}
