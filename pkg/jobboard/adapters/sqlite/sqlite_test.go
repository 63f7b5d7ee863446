package sqlite_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/agentmesh/engine/internal/store"
	jobsqlite "github.com/agentmesh/engine/pkg/jobboard/adapters/sqlite"
	"github.com/agentmesh/engine/pkg/concurrency"
	msgsqlite "github.com/agentmesh/engine/pkg/messagequeue/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

func newBoard(t *testing.T) (*jobsqlite.Adapter, *msgsqlite.Adapter) {
	t.Helper()
	dir, err := os.MkdirTemp("", "agentmesh-jobs-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	st, err := store.Open(store.Config{RootDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return jobsqlite.New(st), msgsqlite.New(st)
}

func TestCreateTaskRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	board, _ := newBoard(t)

	require.NoError(t, board.CreateTask(ctx, "task-1", "Title", "Desc", 5, nil))
	err := board.CreateTask(ctx, "task-1", "Title", "Desc", 5, nil)
	require.Error(t, err)
}

func TestAtomicTaskClaimHasExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	board, _ := newBoard(t)
	require.NoError(t, board.CreateTask(ctx, "task-001", "Title", "Desc", 5, nil))

	var wins int64
	concurrency.FanOut(ctx, 10, func(i int) {
		won, err := board.ClaimTask(ctx, agentName(i), "task-001")
		require.NoError(t, err)
		if won {
			atomic.AddInt64(&wins, 1)
		}
	})
	require.EqualValues(t, 1, wins)

	open, err := board.OpenTasks(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestUpdateTaskStatusEmitsMessage(t *testing.T) {
	ctx := context.Background()
	board, queue := newBoard(t)
	require.NoError(t, board.CreateTask(ctx, "task-2", "Title", "Desc", 5, nil))

	require.NoError(t, board.UpdateTaskStatus(ctx, "task-2", "in-progress", ""))

	msgs, err := queue.Receive(ctx, "system", []string{"general"}, 10, "task.update")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestDependenciesSatisfied(t *testing.T) {
	ctx := context.Background()
	board, _ := newBoard(t)

	require.NoError(t, board.CreateTask(ctx, "dep-1", "Dep", "Desc", 5, nil))
	require.NoError(t, board.CreateTask(ctx, "task-3", "Title", "Desc", 5, []string{"dep-1"}))

	ok, unmet, err := board.DependenciesSatisfied(ctx, "task-3")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{"dep-1"}, unmet)

	require.NoError(t, board.UpdateTaskStatus(ctx, "dep-1", "done", ""))

	ok, unmet, err = board.DependenciesSatisfied(ctx, "task-3")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, unmet)
}

func agentName(i int) string {
	names := []string{"worker-0", "worker-1", "worker-2", "worker-3", "worker-4",
		"worker-5", "worker-6", "worker-7", "worker-8", "worker-9"}
	return names[i]
}
