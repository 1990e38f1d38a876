package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/domain"
)

func TestChannelFor(t *testing.T) {
	assert.Equal(t, "pipeline_run:run-42", ChannelFor("run-42"))
}

func TestMemoryPublisherRecordsEvents(t *testing.T) {
	pub := NewMemoryPublisher()

	err := pub.PublishRunCompleted(context.Background(), Event{
		RunID:  "run-1",
		Status: domain.RunSuccess,
	})
	require.NoError(t, err)

	err = pub.PublishRunCompleted(context.Background(), Event{
		RunID:  "run-2",
		Status: domain.RunFailed,
		Error:  "node load failed",
	})
	require.NoError(t, err)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, domain.RunSuccess, events[0].Status)
	assert.Empty(t, events[0].Error)
	assert.Equal(t, domain.RunFailed, events[1].Status)
	assert.Equal(t, "node load failed", events[1].Error)
}

func TestMemoryPublisherEventsReturnsCopy(t *testing.T) {
	pub := NewMemoryPublisher()
	require.NoError(t, pub.PublishRunCompleted(context.Background(), Event{RunID: "a", Status: domain.RunSuccess}))

	events := pub.Events()
	events[0].RunID = "mutated"

	assert.Equal(t, "a", pub.Events()[0].RunID)
}
