package messagequeue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/agentmesh/engine/pkg/messagequeue"
	"github.com/agentmesh/engine/pkg/messagequeue/adapters/memory"
	"github.com/stretchr/testify/require"
)

func TestResilientQueueDeliversThroughBulkhead(t *testing.T) {
	ctx := context.Background()
	q := messagequeue.NewResilientQueue(memory.New(), messagequeue.ResilientQueueConfig{
		BulkheadLimit: 2,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Send(ctx, messagequeue.SendRequest{
				From: "agent-a", To: "agent-b", Channel: "general", Type: "ping", Priority: 5,
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := q.Receive(ctx, "agent-b", nil, 10, "")
	require.NoError(t, err)
	require.Len(t, msgs, 8)
}

func TestResilientQueueBulkheadRespectsCancellation(t *testing.T) {
	q := messagequeue.NewResilientQueue(memory.New(), messagequeue.ResilientQueueConfig{
		BulkheadLimit: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Send(ctx, messagequeue.SendRequest{
		From: "agent-a", To: "agent-b", Channel: "general", Type: "ping", Priority: 5,
	})
	require.ErrorIs(t, err, context.Canceled)
}
