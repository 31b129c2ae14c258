package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(fc *fakeChain, db KV, fromBlock, batch uint64) *VoteIndexer {
	logger := log.New()
	logger.SetLevel(log.ParseLevel("debug"))
	return NewVoteIndexer(fc, NewContracts(fc, fc.addrs, DefaultDecimals), db, logger, fromBlock, batch)
}

func TestVoteIndexerHistory(t *testing.T) {
	fc := newFakeChain(120)
	voter := common.HexToAddress(account)
	other := common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")

	fc.AddLog(VotedLog(fc.addrs.CoreVoting, voter, 1, wei("5"), BallotYes, 20, common.HexToHash("0x01")))
	fc.AddLog(VotedLog(fc.addrs.CoreVoting, voter, 1, wei("5"), BallotNo, 70, common.HexToHash("0x02")))
	fc.AddLog(VotedLog(fc.addrs.CoreVoting, other, 1, wei("1"), BallotMaybe, 90, common.HexToHash("0x03")))
	// before the configured start block
	fc.AddLog(VotedLog(fc.addrs.CoreVoting, voter, 2, wei("5"), BallotYes, 5, common.HexToHash("0x04")))
	// emitted by another contract
	fc.AddLog(VotedLog(common.HexToAddress("0x01"), voter, 3, wei("5"), BallotYes, 50, common.HexToHash("0x05")))

	db := NewMemKV()
	ix := newTestIndexer(fc, db, 10, 25)

	var mu sync.Mutex
	var seen []string
	ix.OnVote(func(ev *VoteEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.TxHash.Hex())
	})

	require.NoError(t, ix.Start(context.Background()))
	defer ix.Stop()

	rec, ok := ix.LastVote(voter, "1")
	require.True(t, ok)
	assert.Equal(t, common.HexToHash("0x02").Hex(), rec.TxHash)
	assert.Equal(t, BallotNo, rec.Ballot.Choice)
	assert.Equal(t, uint64(70), rec.BlockNumber)

	rec, ok = ix.LastVote(other, "1")
	require.True(t, ok)
	assert.Equal(t, BallotMaybe, rec.Ballot.Choice)

	_, ok = ix.LastVote(voter, "2")
	assert.False(t, ok)
	_, ok = ix.LastVote(voter, "3")
	assert.False(t, ok)

	assert.Equal(t, uint64(121), ix.NextFromBlock())
	mu.Lock()
	assert.Len(t, seen, 3)
	mu.Unlock()

	// a restarted indexer resumes from the stored cursor
	again := newTestIndexer(fc, db, 10, 25)
	assert.Equal(t, uint64(121), again.NextFromBlock())
}

func TestVoteIndexerSubscription(t *testing.T) {
	fc := newFakeChain(100)
	voter := common.HexToAddress(account)
	ix := newTestIndexer(fc, NewMemKV(), 0, 1000)

	events := make(chan *VoteEvent, 1)
	ix.OnVote(func(ev *VoteEvent) { events <- ev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ix.Start(ctx))

	fc.AddLog(VotedLog(fc.addrs.CoreVoting, voter, 9, wei("2"), BallotYes, 130, common.HexToHash("0x09")))

	select {
	case ev := <-events:
		assert.Equal(t, "9", ev.ProposalID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("vote event not delivered")
	}

	rec, ok := ix.LastVote(voter, "9")
	require.True(t, ok)
	assert.Equal(t, uint64(130), rec.BlockNumber)
	assert.Equal(t, uint64(130), ix.NextFromBlock())

	ix.Stop()
}

func TestVoteIndexerSkipsRemovedAndStale(t *testing.T) {
	fc := newFakeChain(10)
	voter := common.HexToAddress(account)
	ix := newTestIndexer(fc, NewMemKV(), 0, 100)

	newer := VotedLog(fc.addrs.CoreVoting, voter, 1, wei("1"), BallotNo, 8, common.HexToHash("0x02"))
	older := VotedLog(fc.addrs.CoreVoting, voter, 1, wei("1"), BallotYes, 4, common.HexToHash("0x01"))
	removed := VotedLog(fc.addrs.CoreVoting, voter, 1, wei("1"), BallotMaybe, 9, common.HexToHash("0x03"))
	removed.Removed = true

	ix.handleVoteLog(&newer)
	ix.handleVoteLog(&older)
	ix.handleVoteLog(&removed)

	rec, ok := ix.LastVote(voter, "1")
	require.True(t, ok)
	assert.Equal(t, BallotNo, rec.Ballot.Choice)
}
