package core

import (
	"github.com/shopspring/decimal"
)

// Proposal is an on-chain proposal mirrored from a curated off-chain snapshot proposal.
type Proposal struct {
	ProposalID string `json:"proposalId"`
	SnapshotID string `json:"snapshotId"`

	// Created is the block the proposal was created at, voting power is measured there.
	Created uint64 `json:"created"`

	// Voting is open in [Created, Expiration).
	Expiration uint64 `json:"expiration"`

	// Execution is allowed in [Unlock, LastCall).
	Unlock   uint64 `json:"unlock"`
	LastCall uint64 `json:"lastCall"`

	Quorum decimal.Decimal `json:"quorum"`
}

type SnapshotState string

const (
	SnapshotActive  SnapshotState = "active"
	SnapshotPending SnapshotState = "pending"
	SnapshotClosed  SnapshotState = "closed"
)

// SnapshotProposal is the off-chain metadata of a proposal.
type SnapshotProposal struct {
	ID    string        `json:"id"`
	Title string        `json:"title"`
	Body  string        `json:"body"`
	Link  string        `json:"link"`
	State SnapshotState `json:"state"`
}

// Ballot mirrors the voting contract enum.
type Ballot uint8

const (
	BallotYes Ballot = iota
	BallotNo
	BallotMaybe
)

func (b Ballot) Valid() bool {
	return b <= BallotMaybe
}

func (b Ballot) String() string {
	switch b {
	case BallotYes:
		return "yes"
	case BallotNo:
		return "no"
	case BallotMaybe:
		return "maybe"
	default:
		return "unknown"
	}
}

// Label is the text shown next to a recorded ballot.
func (b Ballot) Label() string {
	switch b {
	case BallotYes:
		return "Yes"
	case BallotNo:
		return "No"
	case BallotMaybe:
		return "Abstain"
	default:
		return ""
	}
}

func (b Ballot) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Ballot) UnmarshalText(text []byte) error {
	parsed, ok := ParseBallot(string(text))
	if !ok {
		return &InvalidBallotError{Value: string(text)}
	}
	*b = parsed
	return nil
}

func ParseBallot(s string) (Ballot, bool) {
	switch s {
	case "yes", "0":
		return BallotYes, true
	case "no", "1":
		return BallotNo, true
	case "maybe", "abstain", "2":
		return BallotMaybe, true
	}
	return 0, false
}

// ConfirmedBallot is the ballot recorded on chain for an account.
type ConfirmedBallot struct {
	Power  decimal.Decimal `json:"power"`
	Choice Ballot          `json:"choice"`
}

// Tally is the voting power cast per ballot for a proposal.
type Tally struct {
	Yes   decimal.Decimal `json:"yes"`
	No    decimal.Decimal `json:"no"`
	Maybe decimal.Decimal `json:"maybe"`
}

func (t Tally) Total() decimal.Decimal {
	return t.Yes.Add(t.No).Add(t.Maybe)
}

type VotingPowerSnapshot struct {
	Account     string          `json:"account"`
	BlockNumber uint64          `json:"blockNumber"`
	Power       decimal.Decimal `json:"power"`
}

// DepositState holds raw decimal strings as read from the token and vault contracts.
type DepositState struct {
	Allowance     string `json:"allowance"`
	Balance       string `json:"balance"`
	DepositAmount string `json:"depositAmount"`
}
