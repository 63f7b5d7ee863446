package sqlite_test

import (
	"context"
	"os"
	"testing"

	"github.com/agentmesh/engine/internal/store"
	subsqlite "github.com/agentmesh/engine/pkg/subscriptions/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *subsqlite.Adapter {
	t.Helper()
	dir, err := os.MkdirTemp("", "agentmesh-subs-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	st, err := store.Open(store.Config{RootDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return subsqlite.New(st)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Subscribe(ctx, "agent-1", "technical"))
	require.NoError(t, reg.Subscribe(ctx, "agent-1", "technical"))

	channels, err := reg.ChannelsOf(ctx, "agent-1")
	require.NoError(t, err)
	require.Equal(t, []string{"technical"}, channels)
}

func TestUnsubscribeRemovesMembership(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Subscribe(ctx, "agent-1", "technical"))
	require.NoError(t, reg.Unsubscribe(ctx, "agent-1", "technical"))

	channels, err := reg.ChannelsOf(ctx, "agent-1")
	require.NoError(t, err)
	require.Empty(t, channels)
}

func TestSubscribeRejectsNonSlugNames(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.Error(t, reg.Subscribe(ctx, "agent-1", "Not A Channel"))
	require.Error(t, reg.Subscribe(ctx, "agent one", "technical"))
	require.Error(t, reg.Subscribe(ctx, "agent-1", ""))
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Unsubscribe(ctx, "agent-never-subscribed", "general"))
}

func TestDefaultChannelsSeededForSystem(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	channels, err := reg.ChannelsOf(ctx, "system")
	require.NoError(t, err)
	require.Equal(t, []string{"general", "review", "technical", "urgent"}, channels)
}
