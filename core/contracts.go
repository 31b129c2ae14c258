package core

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

const tokenABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const vaultABIJSON = `[
	{"type":"function","name":"deposits","stateMutability":"view","inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"address"},{"name":"","type":"uint96"}]},
	{"type":"function","name":"queryVotePowerView","stateMutability":"view","inputs":[{"name":"user","type":"address"},{"name":"blockNumber","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const votingABIJSON = `[
	{"type":"function","name":"proposals","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"proposalHash","type":"bytes32"},{"name":"created","type":"uint128"},{"name":"unlock","type":"uint128"},{"name":"expiration","type":"uint128"},{"name":"quorum","type":"uint128"},{"name":"lastCall","type":"uint128"}]},
	{"type":"function","name":"getProposalVotingPower","stateMutability":"view","inputs":[{"name":"proposalId","type":"uint256"}],"outputs":[{"name":"","type":"uint128[3]"}]},
	{"type":"function","name":"votes","stateMutability":"view","inputs":[{"name":"","type":"address"},{"name":"","type":"uint256"}],"outputs":[{"name":"votingPower","type":"uint128"},{"name":"castBallot","type":"uint8"}]},
	{"type":"event","name":"Voted","anonymous":false,"inputs":[{"name":"voter","type":"address","indexed":true},{"name":"proposalId","type":"uint256","indexed":true},{"name":"vote","type":"tuple","indexed":false,"components":[{"name":"votingPower","type":"uint128"},{"name":"castBallot","type":"uint8"}]}]}
]`

const airdropABIJSON = `[
	{"type":"function","name":"claimed","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rewardsRoot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bytes32"}]}
]`

var (
	TokenABI   = mustParseABI(tokenABIJSON)
	VaultABI   = mustParseABI(vaultABIJSON)
	VotingABI  = mustParseABI(votingABIJSON)
	AirdropABI = mustParseABI(airdropABIJSON)

	// VotedTopic is the signature hash of Voted(address,uint256,(uint128,uint8)).
	VotedTopic = VotingABI.Events["Voted"].ID
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

type ContractAddresses struct {
	Token        common.Address
	LockingVault common.Address
	CoreVoting   common.Address
	// zero when no airdrop is configured
	Airdrop common.Address
}

// Contracts performs read-only calls against the governance contracts.
type Contracts struct {
	client   Client
	addrs    ContractAddresses
	decimals int32
}

func NewContracts(client Client, addrs ContractAddresses, decimals int32) *Contracts {
	return &Contracts{
		client:   client,
		addrs:    addrs,
		decimals: decimals,
	}
}

func (c *Contracts) Addresses() ContractAddresses {
	return c.addrs
}

func (c *Contracts) call(ctx context.Context, contract abi.ABI, to common.Address, block *big.Int, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *Contracts) amount(v any) decimal.Decimal {
	return FromWei(v.(*big.Int), c.decimals)
}

func (c *Contracts) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// BalanceOf returns the wallet token balance of account.
func (c *Contracts) BalanceOf(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	out, err := c.call(ctx, TokenABI, c.addrs.Token, nil, "balanceOf", account)
	if err != nil {
		return decimal.Zero, err
	}
	return c.amount(out[0]), nil
}

// Allowance returns how much the vault may pull from account.
func (c *Contracts) Allowance(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	out, err := c.call(ctx, TokenABI, c.addrs.Token, nil, "allowance", account, c.addrs.LockingVault)
	if err != nil {
		return decimal.Zero, err
	}
	return c.amount(out[0]), nil
}

type Deposit struct {
	Delegate common.Address  `json:"delegate"`
	Amount   decimal.Decimal `json:"amount"`
}

func (c *Contracts) Deposits(ctx context.Context, account common.Address) (Deposit, error) {
	out, err := c.call(ctx, VaultABI, c.addrs.LockingVault, nil, "deposits", account)
	if err != nil {
		return Deposit{}, err
	}
	return Deposit{
		Delegate: out[0].(common.Address),
		Amount:   c.amount(out[1]),
	}, nil
}

// QueryVotePower returns the voting power of account at blockNumber.
func (c *Contracts) QueryVotePower(ctx context.Context, account common.Address, blockNumber uint64) (VotingPowerSnapshot, error) {
	out, err := c.call(ctx, VaultABI, c.addrs.LockingVault, nil, "queryVotePowerView", account, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return VotingPowerSnapshot{}, err
	}
	return VotingPowerSnapshot{
		Account:     account.Hex(),
		BlockNumber: blockNumber,
		Power:       c.amount(out[0]),
	}, nil
}

// Votes returns the ballot recorded for account on proposalID. An account that never voted reads
// back as zero power, which the reconciler treats as no prior vote.
func (c *Contracts) Votes(ctx context.Context, account common.Address, proposalID *big.Int) (*ConfirmedBallot, error) {
	out, err := c.call(ctx, VotingABI, c.addrs.CoreVoting, nil, "votes", account, proposalID)
	if err != nil {
		return nil, err
	}
	return &ConfirmedBallot{
		Power:  c.amount(out[0]),
		Choice: Ballot(out[1].(uint8)),
	}, nil
}

// ProposalVotingPower returns the tally of proposalID.
func (c *Contracts) ProposalVotingPower(ctx context.Context, proposalID *big.Int) (Tally, error) {
	out, err := c.call(ctx, VotingABI, c.addrs.CoreVoting, nil, "getProposalVotingPower", proposalID)
	if err != nil {
		return Tally{}, err
	}
	powers := out[0].([3]*big.Int)
	return Tally{
		Yes:   FromWei(powers[BallotYes], c.decimals),
		No:    FromWei(powers[BallotNo], c.decimals),
		Maybe: FromWei(powers[BallotMaybe], c.decimals),
	}, nil
}

// ProposalExecuted reports whether proposalID was executed; the voting contract deletes the
// proposal record on execution, leaving an empty hash.
func (c *Contracts) ProposalExecuted(ctx context.Context, proposalID *big.Int) (bool, error) {
	out, err := c.call(ctx, VotingABI, c.addrs.CoreVoting, nil, "proposals", proposalID)
	if err != nil {
		return false, err
	}
	hash := out[0].([32]byte)
	return hash == [32]byte{}, nil
}

// Claimed returns how much account already claimed from the airdrop.
func (c *Contracts) Claimed(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	if c.addrs.Airdrop == (common.Address{}) {
		return decimal.Zero, nil
	}
	out, err := c.call(ctx, AirdropABI, c.addrs.Airdrop, nil, "claimed", account)
	if err != nil {
		return decimal.Zero, err
	}
	return c.amount(out[0]), nil
}

func (c *Contracts) RewardsRoot(ctx context.Context) (common.Hash, error) {
	if c.addrs.Airdrop == (common.Address{}) {
		return common.Hash{}, nil
	}
	out, err := c.call(ctx, AirdropABI, c.addrs.Airdrop, nil, "rewardsRoot")
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(out[0].([32]byte)), nil
}

// VoteEvent is a decoded Voted log.
type VoteEvent struct {
	Voter       common.Address
	ProposalID  *big.Int
	Ballot      ConfirmedBallot
	BlockNumber uint64
	TxHash      common.Hash
}

type votedTuple struct {
	VotingPower *big.Int
	CastBallot  uint8
}

func (c *Contracts) ParseVoted(l types.Log) (*VoteEvent, error) {
	if len(l.Topics) != 3 || l.Topics[0] != VotedTopic {
		return nil, fmt.Errorf("log %s is not a Voted event", l.TxHash.Hex())
	}
	values, err := VotingABI.Unpack("Voted", l.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack Voted: %w", err)
	}
	vote := *abi.ConvertType(values[0], new(votedTuple)).(*votedTuple)
	return &VoteEvent{
		Voter:      common.BytesToAddress(l.Topics[1].Bytes()),
		ProposalID: new(big.Int).SetBytes(l.Topics[2].Bytes()),
		Ballot: ConfirmedBallot{
			Power:  FromWei(vote.VotingPower, c.decimals),
			Choice: Ballot(vote.CastBallot),
		},
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, nil
}
