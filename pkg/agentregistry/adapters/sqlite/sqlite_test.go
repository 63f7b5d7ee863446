package sqlite_test

import (
	"context"
	"os"
	"testing"

	"github.com/agentmesh/engine/internal/store"
	agentsqlite "github.com/agentmesh/engine/pkg/agentregistry/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *agentsqlite.Adapter {
	t.Helper()
	dir, err := os.MkdirTemp("", "agentmesh-agents-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	st, err := store.Open(store.Config{RootDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return agentsqlite.New(st)
}

func TestHeartbeatCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Heartbeat(ctx, "worker-1", "active", "task-1"))

	status, ok, err := reg.Health(ctx, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "active", status.Status)
	require.Equal(t, "task-1", status.CurrentTask)

	require.NoError(t, reg.Heartbeat(ctx, "worker-1", "idle", ""))

	status, ok, err = reg.Health(ctx, "worker-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "idle", status.Status)
	require.Empty(t, status.CurrentTask)
}

func TestHealthUnknownAgent(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	_, ok, err := reg.Health(ctx, "never-heartbeated")
	require.NoError(t, err)
	require.False(t, ok)
}
