package core

import (
	"errors"
	"fmt"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrInvalidAccount   = errors.New("invalid account address")
	ErrVoteNotAllowed   = errors.New("vote not allowed")
	ErrNoPendingVote    = errors.New("no pending vote")
	ErrSessionMismatch  = errors.New("vote session is tracking another proposal")
	ErrTxMismatch       = errors.New("vote log belongs to another transaction")
	ErrInvalidTxHash    = errors.New("invalid transaction hash")
)

type InvalidBallotError struct {
	Value string
}

func (e *InvalidBallotError) Error() string {
	return fmt.Sprintf("invalid ballot %q, expected yes, no or maybe", e.Value)
}

// VoteNotAllowedError carries the reason a vote submission was refused.
type VoteNotAllowedError struct {
	Reason ReasonCode
}

func (e *VoteNotAllowedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrVoteNotAllowed, e.Reason)
}

func (e *VoteNotAllowedError) Unwrap() error {
	return ErrVoteNotAllowed
}
