package core

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	SubmitLabel = "Submit"
	ModifyLabel = "Modify vote"
)

// DisplayState is what the ballot widget shows for one account and proposal.
type DisplayState struct {
	// Choice is meaningful only when Shown is set.
	Choice Ballot `json:"choice"`
	Shown  bool   `json:"shown"`

	// Pending marks an optimistic choice whose transaction is not mined yet.
	Pending bool `json:"pending"`

	// PriorVote is set when a confirmed ballot with non-zero power exists.
	PriorVote bool `json:"priorVote"`

	SubmitLabel string `json:"submitLabel"`
}

// HasPriorVote applies the zero power guard: a recorded choice with no power counts as no vote.
func HasPriorVote(confirmed *ConfirmedBallot) bool {
	return confirmed != nil && confirmed.Power.IsPositive() && confirmed.Choice.Valid()
}

// Reconcile merges the in-flight choice with the confirmed ballot.
func Reconcile(pending *Ballot, confirmed *ConfirmedBallot, txPending bool) DisplayState {
	st := DisplayState{SubmitLabel: SubmitLabel}
	prior := HasPriorVote(confirmed)
	if prior {
		st.PriorVote = true
		st.SubmitLabel = ModifyLabel
	}

	switch {
	case txPending && pending != nil:
		st.Choice, st.Shown, st.Pending = *pending, true, true
	case prior:
		st.Choice, st.Shown = confirmed.Choice, true
	}
	return st
}

type VoteInput struct {
	Account      string
	Selected     *Ballot
	IsVotingOpen bool
	// voting power of the account at the proposal creation block
	VotingPower decimal.Decimal
	TxPending   bool
}

// VoteGate decides whether the submit button is enabled.
func VoteGate(in VoteInput) GateResult {
	switch {
	case in.Account == "":
		return disabled(ReasonNoWallet)
	case !in.IsVotingOpen:
		return disabled(ReasonVotingClosed)
	case !in.VotingPower.IsPositive():
		return disabled(ReasonNoVotingPower)
	case in.Selected == nil:
		return disabled(ReasonNoBallot)
	case in.TxPending:
		return disabled(ReasonTxPending)
	}
	return enabled
}

// VoteSession tracks one account's vote on one proposal across a transaction lifecycle.
// It must be reset whenever the viewed proposal changes.
type VoteSession struct {
	mu sync.Mutex

	proposalID string
	selected   *Ballot
	inFlight   *Ballot
	confirmed  *ConfirmedBallot
	txPending  bool
	changing   bool
	txHash     string
	lastErr    error
}

func NewVoteSession(proposalID string, confirmed *ConfirmedBallot) *VoteSession {
	s := &VoteSession{}
	s.Reset(proposalID, confirmed)
	return s
}

// Reset discards any pending state and starts tracking proposalID.
func (s *VoteSession) Reset(proposalID string, confirmed *ConfirmedBallot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proposalID = proposalID
	s.selected = nil
	s.inFlight = nil
	s.confirmed = cloneConfirmed(confirmed)
	s.txPending = false
	s.changing = false
	s.txHash = ""
	s.lastErr = nil
}

// Refresh replaces the confirmed ballot with a freshly fetched one unless a vote is in flight.
func (s *VoteSession) Refresh(confirmed *ConfirmedBallot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txPending {
		return
	}
	s.confirmed = cloneConfirmed(confirmed)
}

func (s *VoteSession) ProposalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposalID
}

func (s *VoteSession) Select(b Ballot) error {
	if !b.Valid() {
		return &InvalidBallotError{Value: b.String()}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &b
	return nil
}

// Submit validates the selection against the vote gate and marks the vote as being changed.
// The returned ballot is what the caller should sign and send.
func (s *VoteSession) Submit(proposalID string, in VoteInput) (Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proposalID != s.proposalID {
		return 0, ErrSessionMismatch
	}
	in.Selected = s.selected
	in.TxPending = s.txPending
	if res := VoteGate(in); !res.Enabled {
		return 0, &VoteNotAllowedError{Reason: res.Reason}
	}
	s.changing = true
	return *s.selected, nil
}

// Submitted records that the vote transaction was broadcast.
func (s *VoteSession) Submitted(proposalID, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proposalID != s.proposalID {
		return ErrSessionMismatch
	}
	if s.selected == nil {
		return ErrNoPendingVote
	}
	b := *s.selected
	s.inFlight = &b
	s.txPending = true
	s.changing = false
	s.txHash = txHash
	s.lastErr = nil
	return nil
}

// Mined applies the confirmed ballot of the in-flight transaction txHash; it replaces any optimistic value.
func (s *VoteSession) Mined(proposalID, txHash string, confirmed ConfirmedBallot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proposalID != s.proposalID {
		return ErrSessionMismatch
	}
	if !s.txPending {
		return ErrNoPendingVote
	}
	if !strings.EqualFold(txHash, s.txHash) {
		return ErrTxMismatch
	}
	s.confirmed = &confirmed
	s.inFlight = nil
	s.selected = nil
	s.txPending = false
	return nil
}

// Errored rolls the display back to the last confirmed ballot.
func (s *VoteSession) Errored(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = nil
	s.txPending = false
	s.changing = false
	s.lastErr = err
}

// Err returns the error of the last failed vote transaction, if any.
func (s *VoteSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *VoteSession) TxPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txPending
}

// TxHash is the hash of the latest vote transaction, hidden while a new vote is being prepared.
func (s *VoteSession) TxHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changing {
		return ""
	}
	return s.txHash
}

func (s *VoteSession) Display() DisplayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reconcile(s.inFlight, s.confirmed, s.txPending)
}

// Gate evaluates the submit button for the current session state.
func (s *VoteSession) Gate(in VoteInput) GateResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	in.Selected = s.selected
	in.TxPending = s.txPending
	return VoteGate(in)
}

func cloneConfirmed(c *ConfirmedBallot) *ConfirmedBallot {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
