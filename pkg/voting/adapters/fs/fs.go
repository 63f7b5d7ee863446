// Package fs is the durable voting.Layer backend: one JSON ballot document
// per vote_id under the store's votes directory, written atomically via
// temp-file-then-rename, guarded by an in-process mutex against concurrent
// read-modify-write races on the same file.
package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/agentregistry"
	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/logger"
	"github.com/agentmesh/engine/pkg/messagequeue"
	"github.com/agentmesh/engine/pkg/validator"
	"github.com/agentmesh/engine/pkg/voting"
	"github.com/google/uuid"
)

// Adapter implements voting.Layer over JSON documents on disk.
type Adapter struct {
	store  *store.Store
	queue  messagequeue.Queue
	agents agentregistry.Registry
	mu     sync.Mutex
}

// New wires an Adapter against st's votes directory, queue for lifecycle
// broadcasts, and agents for default eligible-voter enumeration.
func New(st *store.Store, queue messagequeue.Queue, agents agentregistry.Registry) *Adapter {
	return &Adapter{store: st, queue: queue, agents: agents}
}

func (a *Adapter) Initiate(ctx context.Context, proposer, topic string, options []string, mechanism string, eligibleVoters []string, timeoutHours float64, description string) (string, error) {
	if mechanism != voting.MechanismSimpleMajority && mechanism != voting.MechanismWeighted && mechanism != voting.MechanismConsensus {
		return "", voting.ErrUnknownMechanism(mechanism)
	}

	voters := eligibleVoters
	if len(voters) == 0 {
		all, err := a.agents.ListAll(ctx)
		if err != nil {
			return "", errors.Wrap(err, "failed to enumerate agents")
		}
		voters = all
	}
	if len(voters) == 0 {
		voters = []string{"system"}
	}

	if len(voters) < 3 {
		logger.L().WarnContext(ctx, "ballot has fewer than three eligible voters",
			"voters", len(voters), "topic", topic)
	}

	now := time.Now().UTC()
	ballot := voting.Ballot{
		VoteID:         uuid.NewString(),
		Proposer:       proposer,
		Topic:          topic,
		Description:    description,
		Options:        options,
		Mechanism:      mechanism,
		EligibleVoters: voters,
		Status:         voting.StatusOpen,
		ProposedAt:     now,
		Deadline:       now.Add(time.Duration(timeoutHours * float64(time.Hour))),
		VotesCast:      map[string]voting.Cast{},
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.write(ballot); err != nil {
		return "", err
	}

	_, err := a.queue.Send(ctx, messagequeue.SendRequest{
		From:     proposer,
		Channel:  "general",
		Type:     "vote.initiate",
		Priority: 9,
		Payload: map[string]interface{}{
			"vote_id": ballot.VoteID,
			"topic":   topic,
			"options": options,
		},
	})
	if err != nil {
		return "", err
	}

	return ballot.VoteID, nil
}

func (a *Adapter) Cast(ctx context.Context, agent, voteID, choice, reasoning string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ballot, err := a.read(voteID)
	if err != nil {
		return err
	}
	if ballot.Status != voting.StatusOpen {
		return voting.ErrVoteNotOpen(voteID)
	}
	if !slices.Contains(ballot.EligibleVoters, agent) {
		return voting.ErrNotEligible(agent, voteID)
	}
	if !slices.Contains(ballot.Options, choice) {
		return voting.ErrInvalidChoice(choice, voteID)
	}
	if _, voted := ballot.VotesCast[agent]; voted {
		return voting.ErrAlreadyVoted(agent, voteID)
	}

	if ballot.VotesCast == nil {
		ballot.VotesCast = map[string]voting.Cast{}
	}
	ballot.VotesCast[agent] = voting.Cast{
		Choice:    choice,
		Reasoning: reasoning,
		Timestamp: time.Now().UTC(),
	}
	if err := a.write(ballot); err != nil {
		return err
	}

	_, err = a.queue.Send(ctx, messagequeue.SendRequest{
		From:     agent,
		Channel:  "general",
		Type:     "vote.recorded",
		Priority: 5,
		Payload: map[string]interface{}{
			"vote_id": voteID,
			"agent":   agent,
			"choice":  choice,
		},
	})
	return err
}

func (a *Adapter) Tally(ctx context.Context, voteID string, force bool) (voting.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ballot, err := a.read(voteID)
	if err != nil {
		return voting.Result{}, err
	}
	if ballot.Status != voting.StatusOpen {
		return voting.Result{}, voting.ErrVoteNotOpen(voteID)
	}
	if !force && time.Now().UTC().Before(ballot.Deadline) {
		return voting.Result{}, voting.ErrVoteStillOpen(voteID)
	}

	counts, outcome := runMechanism(ballot)
	result := voting.Result{
		Outcome:   outcome,
		Mechanism: ballot.Mechanism,
		Counts:    counts,
		TalliedAt: time.Now().UTC(),
		Forced:    force,
	}
	ballot.Status = voting.StatusClosed
	ballot.Result = &result

	if err := a.write(ballot); err != nil {
		return voting.Result{}, err
	}

	_, err = a.queue.Send(ctx, messagequeue.SendRequest{
		From:     "system",
		Channel:  "general",
		Type:     "vote.result",
		Priority: 8,
		Payload: map[string]interface{}{
			"vote_id": voteID,
			"outcome": outcome,
			"counts":  counts,
		},
	})
	if err != nil {
		return voting.Result{}, err
	}

	return result, nil
}

func (a *Adapter) Status(ctx context.Context, voteID string) (voting.Ballot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.read(voteID)
}

func (a *Adapter) OpenVotes(ctx context.Context) ([]voting.Ballot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.store.VotesDir())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list votes directory")
	}

	var open []voting.Ballot
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		voteID := e.Name()[:len(e.Name())-len(".json")]
		ballot, err := a.read(voteID)
		if err != nil {
			continue
		}
		if ballot.Status == voting.StatusOpen {
			open = append(open, ballot)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ProposedAt.Before(open[j].ProposedAt) })
	return open, nil
}

func (a *Adapter) path(voteID string) string {
	return filepath.Join(a.store.VotesDir(), voteID+".json")
}

func (a *Adapter) read(voteID string) (voting.Ballot, error) {
	if validator.DetectPathTraversal(voteID) {
		return voting.Ballot{}, voting.ErrVoteNotFound(voteID)
	}
	data, err := os.ReadFile(a.path(voteID))
	if err != nil {
		if os.IsNotExist(err) {
			return voting.Ballot{}, voting.ErrVoteNotFound(voteID)
		}
		return voting.Ballot{}, errors.Wrap(err, "failed to read ballot")
	}
	var ballot voting.Ballot
	if err := json.Unmarshal(data, &ballot); err != nil {
		return voting.Ballot{}, errors.Internal("failed to decode ballot", err)
	}
	return ballot, nil
}

// write persists ballot via a temp file in the same directory followed by
// os.Rename, which is atomic on a single filesystem: readers never observe
// a partially-written ballot document.
func (a *Adapter) write(ballot voting.Ballot) error {
	data, err := json.MarshalIndent(ballot, "", "  ")
	if err != nil {
		return errors.Internal("failed to encode ballot", err)
	}

	dir := a.store.VotesDir()
	tmp, err := os.CreateTemp(dir, ballot.VoteID+".*.tmp")
	if err != nil {
		return errors.Internal("failed to create temp ballot file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Internal("failed to write temp ballot file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Internal("failed to close temp ballot file", err)
	}
	if err := os.Rename(tmpName, a.path(ballot.VoteID)); err != nil {
		os.Remove(tmpName)
		return errors.Internal("failed to commit ballot file", err)
	}
	return nil
}

func runMechanism(ballot voting.Ballot) (map[string]float64, string) {
	counts := make(map[string]float64, len(ballot.Options))
	for _, opt := range ballot.Options {
		counts[opt] = 0
	}

	switch ballot.Mechanism {
	case voting.MechanismWeighted:
		for agent, c := range ballot.VotesCast {
			counts[c.Choice] += voting.WeightOf(agent)
		}
		return counts, argmax(ballot.Options, counts)
	case voting.MechanismConsensus:
		for _, c := range ballot.VotesCast {
			counts[c.Choice]++
		}
		total := float64(len(ballot.VotesCast))
		if total == 0 {
			return counts, voting.NoConsensusOutcome
		}
		top := argmax(ballot.Options, counts)
		if counts[top]/total >= voting.ConsensusThreshold {
			return counts, top
		}
		return counts, voting.NoConsensusOutcome
	default: // simple_majority
		for _, c := range ballot.VotesCast {
			counts[c.Choice]++
		}
		return counts, argmax(ballot.Options, counts)
	}
}

// argmax returns the first option (in options' order) holding the maximum
// count, so ties break by iteration order as spec requires.
func argmax(options []string, counts map[string]float64) string {
	best := ""
	bestCount := -1.0
	for _, opt := range options {
		if counts[opt] > bestCount {
			best = opt
			bestCount = counts[opt]
		}
	}
	return best
}

