package core

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractsReads(t *testing.T) {
	ctx := context.Background()
	fc := newFakeChain(1000)
	c := NewContracts(fc, fc.addrs, DefaultDecimals)
	acct := common.HexToAddress(account)

	fc.balances[acct] = wei("12.5")
	fc.allowances[acct] = wei("100")
	fc.deposits[acct] = wei("3")
	fc.setPower(acct, 900, "3")
	fc.setVote(acct, 4, "3", BallotNo)
	fc.setTally(4, "10", "2.5", "0.000000000000000001")

	block, err := c.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), block)

	bal, err := c.BalanceOf(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, "12.5", bal.String())

	allowance, err := c.Allowance(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, "100", allowance.String())

	dep, err := c.Deposits(ctx, acct)
	require.NoError(t, err)
	assert.Equal(t, acct, dep.Delegate)
	assert.Equal(t, "3", dep.Amount.String())

	power, err := c.QueryVotePower(ctx, acct, 900)
	require.NoError(t, err)
	assert.Equal(t, "3", power.Power.String())
	assert.Equal(t, uint64(900), power.BlockNumber)

	power, err = c.QueryVotePower(ctx, acct, 901)
	require.NoError(t, err)
	assert.True(t, power.Power.IsZero())

	vote, err := c.Votes(ctx, acct, big.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, BallotNo, vote.Choice)
	assert.True(t, HasPriorVote(vote))

	vote, err = c.Votes(ctx, acct, big.NewInt(5))
	require.NoError(t, err)
	assert.False(t, HasPriorVote(vote), "never voted reads back as zero power")

	tl, err := c.ProposalVotingPower(ctx, big.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, "10", tl.Yes.String())
	assert.Equal(t, "2.5", tl.No.String())
	assert.Equal(t, "0.000000000000000001", tl.Maybe.String())

	executed, err := c.ProposalExecuted(ctx, big.NewInt(4))
	require.NoError(t, err)
	assert.False(t, executed)
	fc.setExecuted(4)
	executed, err = c.ProposalExecuted(ctx, big.NewInt(4))
	require.NoError(t, err)
	assert.True(t, executed)
}

func TestContractsAirdropOptional(t *testing.T) {
	ctx := context.Background()
	fc := newFakeChain(1)
	addrs := fc.addrs
	addrs.Airdrop = common.Address{}
	c := NewContracts(fc, addrs, DefaultDecimals)

	root, err := c.RewardsRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, root)

	claimed, err := c.Claimed(ctx, common.HexToAddress(account))
	require.NoError(t, err)
	assert.True(t, claimed.IsZero())
}

func TestContractsCallError(t *testing.T) {
	fc := newFakeChain(1)
	fc.failProps = true
	c := NewContracts(fc, fc.addrs, DefaultDecimals)

	_, err := c.ProposalExecuted(context.Background(), big.NewInt(1))
	assert.ErrorIs(t, err, errExecutedUnavailable)

	// nothing registered on an unknown contract
	other := NewContracts(NewMockClient(1), fc.addrs, DefaultDecimals)
	_, err = other.BalanceOf(context.Background(), common.HexToAddress(account))
	assert.Error(t, err)
}

func TestParseVoted(t *testing.T) {
	fc := newFakeChain(1)
	c := NewContracts(fc, fc.addrs, DefaultDecimals)
	voter := common.HexToAddress(account)
	tx := common.HexToHash("0x01")

	ev, err := c.ParseVoted(VotedLog(fc.addrs.CoreVoting, voter, 42, wei("7.25"), BallotMaybe, 55, tx))
	require.NoError(t, err)
	assert.Equal(t, voter, ev.Voter)
	assert.Equal(t, "42", ev.ProposalID.String())
	assert.Equal(t, "7.25", ev.Ballot.Power.String())
	assert.Equal(t, BallotMaybe, ev.Ballot.Choice)
	assert.Equal(t, uint64(55), ev.BlockNumber)
	assert.Equal(t, tx, ev.TxHash)

	l := VotedLog(fc.addrs.CoreVoting, voter, 42, wei("1"), BallotYes, 55, tx)
	l.Topics = l.Topics[:1]
	_, err = c.ParseVoted(l)
	assert.Error(t, err)
}
