package core

import (
	"github.com/shopspring/decimal"
)

type ProposalStatus uint8

const (
	// StatusUnknown means the tally or executed flag has not been fetched yet.
	StatusUnknown ProposalStatus = iota
	StatusActive
	StatusPassed
	StatusFailed
	StatusExecuted
)

func (s ProposalStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

func (s ProposalStatus) Label() string {
	switch s {
	case StatusActive:
		return "In progress"
	case StatusPassed:
		return "Passed"
	case StatusFailed:
		return "Failed"
	case StatusExecuted:
		return "Executed"
	default:
		return "Loading"
	}
}

func (s ProposalStatus) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusExecuted
}

func (s ProposalStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ResolveStatus derives the lifecycle phase of a proposal. A nil tally on a closed,
// unexecuted proposal yields StatusUnknown rather than a guessed outcome.
func ResolveStatus(isVotingOpen, isExecuted bool, quorum decimal.Decimal, tally *Tally) ProposalStatus {
	if isExecuted {
		return StatusExecuted
	}
	if isVotingOpen {
		return StatusActive
	}
	if tally == nil {
		return StatusUnknown
	}
	if quorumReached(quorum, *tally) && tally.Yes.GreaterThan(tally.No) {
		return StatusPassed
	}
	return StatusFailed
}

func quorumReached(quorum decimal.Decimal, tally Tally) bool {
	return tally.Total().GreaterThanOrEqual(quorum)
}

// IsVotingOpen reports whether block falls in the proposal's voting window.
func IsVotingOpen(p Proposal, block uint64) bool {
	return p.Created <= block && block < p.Expiration
}

// IsExecutable reports whether a passed proposal can be executed at block.
func IsExecutable(p Proposal, status ProposalStatus, block uint64) bool {
	return status == StatusPassed && p.Unlock <= block && block < p.LastCall
}

type Outlook uint8

const (
	OutlookNone Outlook = iota
	OutlookPassing
	OutlookFailing
)

func (o Outlook) String() string {
	switch o {
	case OutlookPassing:
		return "passing"
	case OutlookFailing:
		return "failing"
	default:
		return ""
	}
}

func (o Outlook) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ProjectOutlook tells whether an active proposal would pass if voting closed now.
func ProjectOutlook(quorum decimal.Decimal, tally *Tally) Outlook {
	if tally == nil {
		return OutlookNone
	}
	if quorumReached(quorum, *tally) && tally.Yes.GreaterThan(tally.No) {
		return OutlookPassing
	}
	return OutlookFailing
}
