package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/council/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// snapshot metadata changes rarely, refresh it every this many polls
const snapshotRefreshEvery = 10

// SnapshotSource provides off-chain proposal metadata.
type SnapshotSource interface {
	Proposals(ctx context.Context, ids []string) ([]SnapshotProposal, error)
}

// ProposalView is the derived state of one curated proposal at a block.
type ProposalView struct {
	Proposal   Proposal          `json:"proposal"`
	Snapshot   *SnapshotProposal `json:"snapshot,omitempty"`
	Tally      *Tally            `json:"tally,omitempty"`
	Executed   bool              `json:"executed"`
	VotingOpen bool              `json:"votingOpen"`
	Status     ProposalStatus    `json:"status"`
	Label      string            `json:"label"`
	Outlook    Outlook           `json:"outlook,omitempty"`
	Executable bool              `json:"executable"`
	Block      uint64            `json:"block"`
}

// AccountView is what one account sees on a proposal's detail card.
type AccountView struct {
	Account          string              `json:"account"`
	ProposalID       string              `json:"proposalId"`
	PowerAtCreated   VotingPowerSnapshot `json:"powerAtCreated"`
	PowerAtLatest    VotingPowerSnapshot `json:"powerAtLatest"`
	StaleVotingPower bool                `json:"staleVotingPower"`
	ConfirmedBallot  *ConfirmedBallot    `json:"confirmedBallot,omitempty"`
	Display          DisplayState        `json:"display"`
	Submit           GateResult          `json:"submit"`
	LastVoteTx       string              `json:"lastVoteTx,omitempty"`
	LastTxError      string              `json:"lastTxError,omitempty"`
}

type DepositView struct {
	Account string       `json:"account"`
	State   DepositState `json:"state"`
	Gate    GateResult   `json:"gate"`
}

type WithdrawView struct {
	Account   string     `json:"account"`
	Deposited string     `json:"deposited"`
	Amount    string     `json:"amount"`
	Gate      GateResult `json:"gate"`
}

type AirdropView struct {
	Account   string          `json:"account"`
	Eligible  bool            `json:"eligible"`
	Grant     decimal.Decimal `json:"grant"`
	Claimed   decimal.Decimal `json:"claimed"`
	Claimable decimal.Decimal `json:"claimable"`
}

type Option func(*Portal)

func WithStorage(db KV) Option {
	return func(p *Portal) { p.DB = db }
}

func WithSnapshotSource(s SnapshotSource) Option {
	return func(p *Portal) { p.Snapshot = s }
}

func WithCatalogue(c *Catalogue) Option {
	return func(p *Portal) { p.catalogue = c }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Portal) { p.registerer = reg }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(p *Portal) { p.Logger = logger }
}

// Portal keeps derived governance state fresh by polling the chain and following vote logs.
type Portal struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Config    *repo.Config
	Logger    *logrus.Logger
	Client    Client
	Contracts *Contracts
	Snapshot  SnapshotSource
	Indexer   *VoteIndexer
	DB        KV
	Metrics   *Metrics

	registerer prometheus.Registerer
	catalogue  *Catalogue

	mu        sync.RWMutex
	block     uint64
	polls     uint64
	snapshots []SnapshotProposal
	views     map[string]ProposalView
	sessions  map[string]*VoteSession

	wg sync.WaitGroup
}

func NewPortal(ctx context.Context, config *repo.Config, client Client, opts ...Option) (*Portal, error) {
	p := &Portal{
		Config:   config,
		Client:   client,
		views:    make(map[string]ProposalView),
		sessions: make(map[string]*VoteSession),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Ctx, p.cancel = context.WithCancel(ctx)

	if p.Logger == nil {
		p.Logger = log.New()
		p.Logger.SetLevel(log.ParseLevel(config.Log.Level))
	}

	if p.catalogue == nil {
		path, err := (&repo.Repo{Config: config}).ProposalsFile()
		if err != nil {
			return nil, err
		}
		c, err := LoadCatalogue(path)
		if err != nil {
			return nil, err
		}
		p.catalogue = c
	}

	if p.DB == nil {
		db, err := leveldb.New((&repo.Repo{Config: config}).StoragePath())
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		p.DB = db
	}

	if p.Snapshot == nil {
		p.Snapshot = NewSnapshotClient(config.SnapshotUrl, nil)
	}

	if p.registerer == nil {
		p.registerer = prometheus.NewRegistry()
	}
	metrics, err := NewMetrics(p.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	p.Metrics = metrics

	addrs := ContractAddresses{
		Token:        common.HexToAddress(config.Contracts.Token),
		LockingVault: common.HexToAddress(config.Contracts.LockingVault),
		CoreVoting:   common.HexToAddress(config.Contracts.CoreVoting),
	}
	if config.Contracts.Airdrop != "" {
		addrs.Airdrop = common.HexToAddress(config.Contracts.Airdrop)
	}
	p.Contracts = NewContracts(client, addrs, config.Contracts.Decimals)

	p.Indexer = NewVoteIndexer(client, p.Contracts, p.DB, p.Logger, config.Indexer.FromBlock, config.Indexer.BatchSize)
	p.Indexer.OnVote(p.handleVote)

	return p, nil
}

func (p *Portal) Start() error {
	if err := p.RefreshSnapshots(p.Ctx); err != nil {
		p.Logger.Errorf("fetch snapshot proposals error: %s", err)
	}
	if err := p.Refresh(p.Ctx); err != nil {
		return err
	}
	if err := p.Indexer.Start(p.Ctx); err != nil {
		return fmt.Errorf("start vote indexer: %w", err)
	}

	p.wg.Add(1)
	go p.pollLoop()

	p.Logger.Infof("portal started at block %d with %d proposals", p.BlockNumber(), len(p.catalogue.Proposals))
	return nil
}

func (p *Portal) Stop() error {
	p.cancel()
	p.Indexer.Stop()
	p.wg.Wait()

	if closer, ok := p.DB.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (p *Portal) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.Config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.Ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			p.polls++
			refreshSnapshots := p.polls%snapshotRefreshEvery == 0
			p.mu.Unlock()

			if refreshSnapshots {
				if err := p.RefreshSnapshots(p.Ctx); err != nil {
					p.Logger.Errorf("fetch snapshot proposals error: %s", err)
				}
			}
			if err := p.Refresh(p.Ctx); err != nil {
				p.Logger.Errorf("refresh proposals error: %s", err)
			}
		}
	}
}

// RefreshSnapshots reloads the off-chain metadata of every curated proposal.
func (p *Portal) RefreshSnapshots(ctx context.Context) error {
	snapshots, err := p.Snapshot.Proposals(ctx, p.catalogue.SnapshotIDs())
	if err != nil {
		p.Metrics.PollErrors.WithLabelValues("snapshot").Inc()
		return err
	}
	p.mu.Lock()
	p.snapshots = snapshots
	p.mu.Unlock()
	p.Logger.Debugf("fetched %d snapshot proposals", len(snapshots))
	return nil
}

// Refresh re-derives every proposal view from fresh chain reads. Per-proposal read errors keep
// the previous view for that proposal.
func (p *Portal) Refresh(ctx context.Context) error {
	block, err := p.Client.BlockNumber(ctx)
	if err != nil {
		p.Metrics.PollErrors.WithLabelValues("block").Inc()
		return fmt.Errorf("get block number: %w", err)
	}

	p.mu.RLock()
	snapshots := lo.KeyBy(p.snapshots, func(s SnapshotProposal) string { return s.ID })
	prev := p.views
	p.mu.RUnlock()

	views := make(map[string]ProposalView, len(p.catalogue.Proposals))
	for _, prop := range p.catalogue.Proposals {
		view, err := p.deriveView(ctx, prop, block)
		if err != nil {
			p.Metrics.PollErrors.WithLabelValues("proposal").Inc()
			p.Logger.Errorf("refresh proposal %s error: %s", prop.ProposalID, err)
			if old, ok := prev[prop.ProposalID]; ok {
				view = old
			} else {
				view = ProposalView{
					Proposal:   prop,
					VotingOpen: IsVotingOpen(prop, block),
					Status:     StatusUnknown,
					Label:      StatusUnknown.Label(),
					Block:      block,
				}
			}
		}
		if s, ok := snapshots[prop.SnapshotID]; ok {
			s := s
			view.Snapshot = &s
		}
		views[prop.ProposalID] = view
	}

	p.mu.Lock()
	p.block = block
	p.views = views
	p.mu.Unlock()

	p.Metrics.BlockNumber.Set(float64(block))
	p.Metrics.observeStatuses(lo.Values(views))
	return nil
}

func (p *Portal) deriveView(ctx context.Context, prop Proposal, block uint64) (ProposalView, error) {
	id, ok := new(big.Int).SetString(prop.ProposalID, 10)
	if !ok {
		return ProposalView{}, fmt.Errorf("proposal id %q is not a number", prop.ProposalID)
	}
	executed, err := p.Contracts.ProposalExecuted(ctx, id)
	if err != nil {
		return ProposalView{}, err
	}
	tally, err := p.Contracts.ProposalVotingPower(ctx, id)
	if err != nil {
		return ProposalView{}, err
	}

	open := IsVotingOpen(prop, block)
	status := ResolveStatus(open, executed, prop.Quorum, &tally)
	view := ProposalView{
		Proposal:   prop,
		Tally:      &tally,
		Executed:   executed,
		VotingOpen: open,
		Status:     status,
		Label:      status.Label(),
		Executable: IsExecutable(prop, status, block),
		Block:      block,
	}
	if status == StatusActive {
		view.Outlook = ProjectOutlook(prop.Quorum, &tally)
	}
	return view, nil
}

func (p *Portal) BlockNumber() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.block
}

func (p *Portal) Catalogue() *Catalogue {
	return p.catalogue
}

// Proposal returns the current view of proposalID.
func (p *Portal) Proposal(proposalID string) (ProposalView, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.views[proposalID]
	if !ok {
		return ProposalView{}, ErrProposalNotFound
	}
	return v, nil
}

// Views lists every curated proposal in catalogue order, with or without snapshot metadata.
func (p *Portal) Views() []ProposalView {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return lo.FilterMap(p.catalogue.Proposals, func(prop Proposal, _ int) (ProposalView, bool) {
		v, ok := p.views[prop.ProposalID]
		return v, ok
	})
}

// Proposals lists the views shown on tab in snapshot order.
func (p *Portal) Proposals(tab Tab) []ProposalView {
	p.mu.RLock()
	defer p.mu.RUnlock()

	filtered := FilterByTab(tab, p.snapshots, ProposalsBySnapshotID(p.catalogue.Proposals))
	return lo.FilterMap(filtered, func(prop Proposal, _ int) (ProposalView, bool) {
		v, ok := p.views[prop.ProposalID]
		return v, ok
	})
}

func parseAccount(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}
	return common.HexToAddress(account), nil
}

func parseTxHash(txHash string) (common.Hash, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrInvalidTxHash, txHash)
	}
	return common.BytesToHash(raw), nil
}

func sessionKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// session returns the vote session of addr, resetting it when it tracks another proposal.
func (p *Portal) session(addr common.Address, proposalID string, confirmed *ConfirmedBallot) *VoteSession {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := sessionKey(addr)
	s, ok := p.sessions[key]
	if !ok {
		s = NewVoteSession(proposalID, confirmed)
		p.sessions[key] = s
		return s
	}
	if s.ProposalID() != proposalID {
		s.Reset(proposalID, confirmed)
		return s
	}
	s.Refresh(confirmed)
	return s
}

func (p *Portal) existingSession(addr common.Address, proposalID string) (*VoteSession, error) {
	p.mu.RLock()
	s, ok := p.sessions[sessionKey(addr)]
	p.mu.RUnlock()
	if !ok || s.ProposalID() != proposalID {
		return nil, ErrNoPendingVote
	}
	return s, nil
}

// AccountView reads the account's voting power and ballot on proposalID and reconciles them
// with its vote session. Viewing another proposal discards the session's pending state.
func (p *Portal) AccountView(ctx context.Context, account, proposalID string) (*AccountView, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	view, err := p.Proposal(proposalID)
	if err != nil {
		return nil, err
	}
	id, _ := new(big.Int).SetString(proposalID, 10)

	atCreated, err := p.Contracts.QueryVotePower(ctx, addr, view.Proposal.Created)
	if err != nil {
		return nil, err
	}
	atLatest, err := p.Contracts.QueryVotePower(ctx, addr, view.Block)
	if err != nil {
		return nil, err
	}
	confirmed, err := p.Contracts.Votes(ctx, addr, id)
	if err != nil {
		return nil, err
	}

	s := p.session(addr, proposalID, confirmed)
	av := &AccountView{
		Account:          addr.Hex(),
		ProposalID:       proposalID,
		PowerAtCreated:   atCreated,
		PowerAtLatest:    atLatest,
		StaleVotingPower: view.VotingOpen && IsVotingPowerStale(atCreated.Power, atLatest.Power),
		Display:          s.Display(),
		Submit: s.Gate(VoteInput{
			Account:      addr.Hex(),
			IsVotingOpen: view.VotingOpen,
			VotingPower:  atCreated.Power,
		}),
		LastVoteTx: s.TxHash(),
	}
	if HasPriorVote(confirmed) {
		av.ConfirmedBallot = confirmed
	}
	if av.LastVoteTx == "" && !s.TxPending() {
		if rec, ok := p.Indexer.LastVote(addr, proposalID); ok {
			av.LastVoteTx = rec.TxHash
		}
	}
	if err := s.Err(); err != nil {
		av.LastTxError = err.Error()
	}
	return av, nil
}

// SelectBallot records the account's choice; it becomes in-flight once VoteSubmitted is called.
func (p *Portal) SelectBallot(ctx context.Context, account, proposalID string, b Ballot) (*AccountView, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	if _, err := p.AccountView(ctx, account, proposalID); err != nil {
		return nil, err
	}
	s, err := p.existingSession(addr, proposalID)
	if err != nil {
		return nil, err
	}
	if err := s.Select(b); err != nil {
		return nil, err
	}
	return p.AccountView(ctx, account, proposalID)
}

// VoteSubmitted is called by the transaction layer once the vote transaction is broadcast.
func (p *Portal) VoteSubmitted(ctx context.Context, account, proposalID, txHash string) (*AccountView, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	hash, err := parseTxHash(txHash)
	if err != nil {
		return nil, err
	}
	s, err := p.existingSession(addr, proposalID)
	if err != nil {
		return nil, err
	}
	view, err := p.Proposal(proposalID)
	if err != nil {
		return nil, err
	}
	atCreated, err := p.Contracts.QueryVotePower(ctx, addr, view.Proposal.Created)
	if err != nil {
		return nil, err
	}
	if _, err := s.Submit(proposalID, VoteInput{
		Account:      addr.Hex(),
		IsVotingOpen: view.VotingOpen,
		VotingPower:  atCreated.Power,
	}); err != nil {
		return nil, err
	}
	if err := s.Submitted(proposalID, hash.Hex()); err != nil {
		return nil, err
	}
	p.Logger.Infof("vote of %s on proposal %s submitted in %s", addr.Hex(), proposalID, hash.Hex())
	return p.AccountView(ctx, account, proposalID)
}

// VoteFailed is called by the transaction layer when signing or execution failed.
func (p *Portal) VoteFailed(ctx context.Context, account, proposalID, message string) (*AccountView, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	s, err := p.existingSession(addr, proposalID)
	if err != nil {
		return nil, err
	}
	s.Errored(fmt.Errorf("vote transaction failed: %s", message))
	p.Logger.Infof("vote of %s on proposal %s failed: %s", addr.Hex(), proposalID, message)
	return p.AccountView(ctx, account, proposalID)
}

// handleVote confirms the in-flight vote of the voter when its Voted log arrives.
func (p *Portal) handleVote(ev *VoteEvent) {
	p.Metrics.VotesIndexed.Inc()

	p.mu.RLock()
	s, ok := p.sessions[sessionKey(ev.Voter)]
	p.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.Mined(ev.ProposalID.String(), ev.TxHash.Hex(), ev.Ballot); err != nil {
		if errors.Is(err, ErrNoPendingVote) {
			return
		}
		p.Logger.Debugf("vote of %s on %s does not match its session: %s", ev.Voter.Hex(), ev.ProposalID, err)
		return
	}
	p.Logger.Infof("vote of %s on proposal %s mined in %s", ev.Voter.Hex(), ev.ProposalID, ev.TxHash.Hex())
}

// DepositGate reads wallet balance and vault allowance and gates depositing amount.
func (p *Portal) DepositGate(ctx context.Context, account, amount string) (*DepositView, error) {
	if account == "" {
		return &DepositView{State: DepositState{DepositAmount: amount}, Gate: GateDeposit("", "", "", amount)}, nil
	}
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	balance, err := p.Contracts.BalanceOf(ctx, addr)
	if err != nil {
		return nil, err
	}
	allowance, err := p.Contracts.Allowance(ctx, addr)
	if err != nil {
		return nil, err
	}
	state := DepositState{
		Allowance:     allowance.String(),
		Balance:       balance.String(),
		DepositAmount: amount,
	}
	return &DepositView{
		Account: addr.Hex(),
		State:   state,
		Gate:    GateDeposit(addr.Hex(), state.Allowance, state.Balance, state.DepositAmount),
	}, nil
}

// WithdrawGate reads the deposited vault balance and gates withdrawing amount.
func (p *Portal) WithdrawGate(ctx context.Context, account, amount string) (*WithdrawView, error) {
	if account == "" {
		return &WithdrawView{Amount: amount, Gate: GateWithdraw("", "", amount)}, nil
	}
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	deposit, err := p.Contracts.Deposits(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &WithdrawView{
		Account:   addr.Hex(),
		Deposited: deposit.Amount.String(),
		Amount:    amount,
		Gate:      GateWithdraw(addr.Hex(), deposit.Amount.String(), amount),
	}, nil
}

// Airdrop verifies info against the distributor root and reports what is left to claim.
func (p *Portal) Airdrop(ctx context.Context, info MerkleInfo) (*AirdropView, error) {
	addr, err := parseAccount(info.Leaf.Address)
	if err != nil {
		return nil, err
	}
	root, err := p.Contracts.RewardsRoot(ctx)
	if err != nil {
		return nil, err
	}
	view := &AirdropView{Account: addr.Hex()}
	ok, err := info.Verify(root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return view, nil
	}
	grant, _ := new(big.Int).SetString(info.Leaf.Value, 10)
	claimed, err := p.Contracts.Claimed(ctx, addr)
	if err != nil {
		return nil, err
	}
	view.Eligible = true
	view.Grant = FromWei(grant, p.Config.Contracts.Decimals)
	view.Claimed = claimed
	view.Claimable = Claimable(view.Grant, claimed)
	return view, nil
}
