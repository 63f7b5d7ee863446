package voting

import "github.com/agentmesh/engine/pkg/errors"

func ErrVoteNotFound(voteID string) error {
	return errors.NotFound("vote not found: "+voteID, nil)
}

func ErrNotEligible(agent, voteID string) error {
	return errors.InvalidArgument("agent "+agent+" is not eligible to vote on "+voteID, nil)
}

func ErrAlreadyVoted(agent, voteID string) error {
	return errors.InvalidArgument("agent "+agent+" already cast a vote on "+voteID, nil)
}

func ErrInvalidChoice(choice, voteID string) error {
	return errors.InvalidArgument("choice "+choice+" is not an option on "+voteID, nil)
}

func ErrVoteStillOpen(voteID string) error {
	return errors.InvalidArgument("vote "+voteID+" deadline has not passed and force was not set", nil)
}

func ErrVoteNotOpen(voteID string) error {
	return errors.InvalidArgument("vote "+voteID+" is not open", nil)
}

func ErrUnknownMechanism(mechanism string) error {
	return errors.InvalidArgument("unknown tally mechanism: "+mechanism, nil)
}
