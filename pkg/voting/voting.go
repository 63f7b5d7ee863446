// Package voting implements the VotingLayer: ballots are JSON documents
// external to the relational store, one file per vote_id, written with a
// temp-then-rename pattern for crash safety. All vote lifecycle broadcasts
// go through a messagequeue.Queue.
package voting

import (
	"context"
	"strings"
	"time"
)

// Tally mechanisms.
const (
	MechanismSimpleMajority = "simple_majority"
	MechanismWeighted       = "weighted"
	MechanismConsensus      = "consensus"
)

// Ballot status values.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// ConsensusThreshold is the fraction of cast votes the top option must hold
// under the consensus mechanism; below it the outcome is NoConsensusOutcome.
const ConsensusThreshold = 0.8

// NoConsensusOutcome is tally's result when consensus fails to reach
// ConsensusThreshold.
const NoConsensusOutcome = "no_consensus"

// Weighted voter substrings. An agent id containing any of these (case
// sensitive) casts a vote of weight 2 under the weighted mechanism.
var weightedSubstrings = []string{"specialist", "expert", "senior"}

// WeightOf returns the weight an agent's vote carries under the weighted
// mechanism: 2 if the agent id contains any weighted substring, 1 otherwise.
func WeightOf(agent string) float64 {
	for _, sub := range weightedSubstrings {
		if strings.Contains(agent, sub) {
			return 2
		}
	}
	return 1
}

// Cast is one recorded vote, keyed by voter in Ballot.VotesCast.
type Cast struct {
	Choice    string    `json:"choice"`
	Reasoning string    `json:"reasoning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Ballot is the full JSON document persisted under votes/<vote_id>.json.
type Ballot struct {
	VoteID         string          `json:"vote_id"`
	Proposer       string          `json:"proposed_by"`
	Topic          string          `json:"topic"`
	Description    string          `json:"description,omitempty"`
	Options        []string        `json:"options"`
	Mechanism      string          `json:"mechanism"`
	EligibleVoters []string        `json:"eligible_voters"`
	Status         string          `json:"status"`
	ProposedAt     time.Time       `json:"proposed_at"`
	Deadline       time.Time       `json:"deadline"`
	VotesCast      map[string]Cast `json:"votes_cast"`
	Result         *Result         `json:"result,omitempty"`
}

// Result is tally's persisted outcome.
type Result struct {
	Outcome   string             `json:"outcome"`
	Mechanism string             `json:"mechanism"`
	Counts    map[string]float64 `json:"counts"`
	TalliedAt time.Time          `json:"tallied_at"`
	Forced    bool               `json:"forced"`
}

// Layer is the VotingLayer contract.
type Layer interface {
	// Initiate enumerates eligible voters (AgentRegistry.ListAll if
	// eligibleVoters is empty, falling back to ["system"] if that is also
	// empty), writes an open ballot document, and broadcasts vote.initiate
	// on "general" at priority 9.
	Initiate(ctx context.Context, proposer, topic string, options []string, mechanism string, eligibleVoters []string, timeoutHours float64, description string) (voteID string, err error)

	// Cast validates eligibility, open status, choice membership, and
	// no-prior-cast, appends the cast, persists, and emits vote.recorded.
	Cast(ctx context.Context, agent, voteID, choice, reasoning string) error

	// Tally refuses unless status=open and (force or deadline has passed),
	// runs mechanism, marks the ballot closed, persists the result, and
	// broadcasts vote.result at priority 8.
	Tally(ctx context.Context, voteID string, force bool) (Result, error)

	// Status returns the current ballot document.
	Status(ctx context.Context, voteID string) (Ballot, error)

	// OpenVotes returns every ballot with status=open.
	OpenVotes(ctx context.Context) ([]Ballot, error)
}
