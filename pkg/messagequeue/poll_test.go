package messagequeue_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentmesh/engine/pkg/messagequeue"
	"github.com/agentmesh/engine/pkg/messagequeue/adapters/memory"
	"github.com/stretchr/testify/require"
)

func TestPollReceiveWaitsForAMessage(t *testing.T) {
	ctx := context.Background()
	q := memory.New()

	go func() {
		time.Sleep(15 * time.Millisecond)
		_, _ = q.Send(ctx, messagequeue.SendRequest{
			From: "agent-a", To: "agent-b", Channel: "general", Type: "ping", Priority: 5,
		})
	}()

	msgs, err := messagequeue.PollReceive(ctx, q, "agent-b", []string{"general"}, 10, "",
		messagequeue.PollConfig{InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 1.5})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestPollReceiveRespectsContextCancellation(t *testing.T) {
	q := memory.New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := messagequeue.PollReceive(ctx, q, "agent-b", []string{"general"}, 10, "",
		messagequeue.PollConfig{InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 1.5})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
