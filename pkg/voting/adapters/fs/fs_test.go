package fs_test

import (
	"context"
	"os"
	"testing"

	"github.com/agentmesh/engine/internal/store"
	agentsqlite "github.com/agentmesh/engine/pkg/agentregistry/adapters/sqlite"
	msgsqlite "github.com/agentmesh/engine/pkg/messagequeue/adapters/sqlite"
	"github.com/agentmesh/engine/pkg/voting"
	votingfs "github.com/agentmesh/engine/pkg/voting/adapters/fs"
	"github.com/stretchr/testify/require"
)

func newLayer(t *testing.T) *votingfs.Adapter {
	t.Helper()
	dir, err := os.MkdirTemp("", "agentmesh-votes-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	st, err := store.Open(store.Config{RootDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	queue := msgsqlite.New(st)
	agents := agentsqlite.New(st)
	return votingfs.New(st, queue, agents)
}

func TestInitiateDefaultsToAllAgentsThenSystem(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	voteID, err := layer.Initiate(ctx, "proposer", "topic", []string{"a", "b"}, voting.MechanismSimpleMajority, nil, 1, "")
	require.NoError(t, err)

	ballot, err := layer.Status(ctx, voteID)
	require.NoError(t, err)
	require.Equal(t, []string{"system"}, ballot.EligibleVoters)
	require.Equal(t, voting.StatusOpen, ballot.Status)
}

func TestCastRejectsIneligibleDuplicateAndInvalidChoice(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	voteID, err := layer.Initiate(ctx, "proposer", "topic", []string{"a", "b"}, voting.MechanismSimpleMajority, []string{"voter-1", "voter-2"}, 1, "")
	require.NoError(t, err)

	require.Error(t, layer.Cast(ctx, "outsider", voteID, "a", ""))
	require.Error(t, layer.Cast(ctx, "voter-1", voteID, "c", ""))

	require.NoError(t, layer.Cast(ctx, "voter-1", voteID, "a", "reason"))
	require.Error(t, layer.Cast(ctx, "voter-1", voteID, "b", ""))
}

func TestTallySimpleMajority(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	voteID, err := layer.Initiate(ctx, "proposer", "topic", []string{"a", "b"},
		voting.MechanismSimpleMajority, []string{"voter-1", "voter-2", "voter-3"}, 1, "")
	require.NoError(t, err)

	require.NoError(t, layer.Cast(ctx, "voter-1", voteID, "a", ""))
	require.NoError(t, layer.Cast(ctx, "voter-2", voteID, "a", ""))
	require.NoError(t, layer.Cast(ctx, "voter-3", voteID, "b", ""))

	_, err = layer.Tally(ctx, voteID, false)
	require.Error(t, err, "tally before deadline without force should fail")

	result, err := layer.Tally(ctx, voteID, true)
	require.NoError(t, err)
	require.Equal(t, "a", result.Outcome)
	require.True(t, result.Forced)

	ballot, err := layer.Status(ctx, voteID)
	require.NoError(t, err)
	require.Equal(t, voting.StatusClosed, ballot.Status)
}

func TestTallyWeighted(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	voteID, err := layer.Initiate(ctx, "proposer", "topic", []string{"a", "b"},
		voting.MechanismWeighted, []string{"senior-1", "junior-1"}, 1, "")
	require.NoError(t, err)

	// One weighted vote for b outweighs one unweighted vote for a, flipping
	// the outcome a head count alone would tie and break toward a.
	require.NoError(t, layer.Cast(ctx, "senior-1", voteID, "b", ""))
	require.NoError(t, layer.Cast(ctx, "junior-1", voteID, "a", ""))

	result, err := layer.Tally(ctx, voteID, true)
	require.NoError(t, err)
	require.Equal(t, "b", result.Outcome)
	require.Equal(t, float64(2), result.Counts["b"])
	require.Equal(t, float64(1), result.Counts["a"])
}

func TestTallyConsensusFallsBackToNoConsensus(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	voteID, err := layer.Initiate(ctx, "proposer", "topic", []string{"a", "b"},
		voting.MechanismConsensus, []string{"voter-1", "voter-2", "voter-3"}, 1, "")
	require.NoError(t, err)

	require.NoError(t, layer.Cast(ctx, "voter-1", voteID, "a", ""))
	require.NoError(t, layer.Cast(ctx, "voter-2", voteID, "a", ""))
	require.NoError(t, layer.Cast(ctx, "voter-3", voteID, "b", ""))

	result, err := layer.Tally(ctx, voteID, true)
	require.NoError(t, err)
	require.Equal(t, voting.NoConsensusOutcome, result.Outcome)
}

func TestOpenVotesOnlyReturnsOpenBallots(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	id1, err := layer.Initiate(ctx, "proposer", "t1", []string{"a", "b"}, voting.MechanismSimpleMajority, []string{"voter-1"}, 1, "")
	require.NoError(t, err)
	_, err = layer.Initiate(ctx, "proposer", "t2", []string{"a", "b"}, voting.MechanismSimpleMajority, []string{"voter-1"}, 1, "")
	require.NoError(t, err)

	_, err = layer.Tally(ctx, id1, true)
	require.NoError(t, err)

	open, err := layer.OpenVotes(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestStatusRejectsPathTraversalInVoteID(t *testing.T) {
	ctx := context.Background()
	layer := newLayer(t)

	_, err := layer.Status(ctx, "../../../../etc/passwd")
	require.Error(t, err, "vote IDs containing a traversal segment should never resolve to a file")
}
