package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/axiomesh/council/repo"
	"github.com/ethereum/go-ethereum/common"
)

var errExecutedUnavailable = errors.New("proposals call failed")

func wei(s string) *big.Int {
	return ToWei(MustParseAmount(s), DefaultDecimals)
}

// fakeChain serves the governance contracts from in-memory state through a MockClient.
type fakeChain struct {
	*MockClient
	addrs ContractAddresses

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	deposits   map[common.Address]*big.Int
	power      map[string]*big.Int
	votes      map[string]ConfirmedBallot
	tallies    map[string][3]*big.Int
	executed   map[string]bool
	claimed    map[common.Address]*big.Int
	root       common.Hash
	failProps  bool
}

func newFakeChain(block uint64) *fakeChain {
	cfg := repo.DefaultConfig("")
	fc := &fakeChain{
		MockClient: NewMockClient(block),
		addrs: ContractAddresses{
			Token:        common.HexToAddress(cfg.Contracts.Token),
			LockingVault: common.HexToAddress(cfg.Contracts.LockingVault),
			CoreVoting:   common.HexToAddress(cfg.Contracts.CoreVoting),
			Airdrop:      common.HexToAddress(cfg.Contracts.Airdrop),
		},
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
		deposits:   make(map[common.Address]*big.Int),
		power:      make(map[string]*big.Int),
		votes:      make(map[string]ConfirmedBallot),
		tallies:    make(map[string][3]*big.Int),
		executed:   make(map[string]bool),
		claimed:    make(map[common.Address]*big.Int),
	}
	fc.register()
	return fc
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func powerKey(acct common.Address, block uint64) string {
	return fmt.Sprintf("%s/%d", acct.Hex(), block)
}

func voteKey(acct common.Address, id *big.Int) string {
	return acct.Hex() + "/" + id.String()
}

func (fc *fakeChain) setPower(acct common.Address, block uint64, amount string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.power[powerKey(acct, block)] = wei(amount)
}

func (fc *fakeChain) setVote(acct common.Address, id int64, power string, b Ballot) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.votes[voteKey(acct, big.NewInt(id))] = ConfirmedBallot{Power: MustParseAmount(power), Choice: b}
}

func (fc *fakeChain) setTally(id int64, yes, no, maybe string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.tallies[big.NewInt(id).String()] = [3]*big.Int{wei(yes), wei(no), wei(maybe)}
}

func (fc *fakeChain) setExecuted(id int64) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.executed[big.NewInt(id).String()] = true
}

func (fc *fakeChain) register() {
	fc.Handle(fc.addrs.Token, TokenABI, "balanceOf", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return []any{orZero(fc.balances[args[0].(common.Address)])}, nil
	})
	fc.Handle(fc.addrs.Token, TokenABI, "allowance", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		if args[1].(common.Address) != fc.addrs.LockingVault {
			return []any{new(big.Int)}, nil
		}
		return []any{orZero(fc.allowances[args[0].(common.Address)])}, nil
	})
	fc.Handle(fc.addrs.LockingVault, VaultABI, "deposits", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		acct := args[0].(common.Address)
		return []any{acct, orZero(fc.deposits[acct])}, nil
	})
	fc.Handle(fc.addrs.LockingVault, VaultABI, "queryVotePowerView", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		block := args[1].(*big.Int).Uint64()
		return []any{orZero(fc.power[powerKey(args[0].(common.Address), block)])}, nil
	})
	fc.Handle(fc.addrs.CoreVoting, VotingABI, "votes", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		v, ok := fc.votes[voteKey(args[0].(common.Address), args[1].(*big.Int))]
		if !ok {
			return []any{new(big.Int), uint8(0)}, nil
		}
		return []any{ToWei(v.Power, DefaultDecimals), uint8(v.Choice)}, nil
	})
	fc.Handle(fc.addrs.CoreVoting, VotingABI, "getProposalVotingPower", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		t, ok := fc.tallies[args[0].(*big.Int).String()]
		if !ok {
			t = [3]*big.Int{new(big.Int), new(big.Int), new(big.Int)}
		}
		return []any{t}, nil
	})
	fc.Handle(fc.addrs.CoreVoting, VotingABI, "proposals", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		if fc.failProps {
			return nil, errExecutedUnavailable
		}
		var hash [32]byte
		if !fc.executed[args[0].(*big.Int).String()] {
			hash = [32]byte{1}
		}
		return []any{hash, new(big.Int), new(big.Int), new(big.Int), new(big.Int), new(big.Int)}, nil
	})
	fc.Handle(fc.addrs.Airdrop, AirdropABI, "claimed", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return []any{orZero(fc.claimed[args[0].(common.Address)])}, nil
	})
	fc.Handle(fc.addrs.Airdrop, AirdropABI, "rewardsRoot", func(args []any) ([]any, error) {
		fc.mu.Lock()
		defer fc.mu.Unlock()
		return []any{[32]byte(fc.root)}, nil
	})
}
