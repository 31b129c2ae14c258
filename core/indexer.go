package core

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const (
	LogChanMaxSize = 1000

	nextFromBlockKey  = "nextFromBlock"
	lastVoteKeyPrefix = "lastVote/"
)

// KV is the part of the axiom-kit storage the indexer uses.
type KV interface {
	Get(key []byte) []byte
	Put(key, value []byte)
}

// VoteRecord is the latest vote of an account on a proposal as seen in Voted logs.
type VoteRecord struct {
	TxHash      string          `json:"txHash"`
	BlockNumber uint64          `json:"blockNumber"`
	Ballot      ConfirmedBallot `json:"ballot"`
}

// VoteIndexer follows Voted logs of the voting contract and remembers each account's last vote.
type VoteIndexer struct {
	client    Client
	contracts *Contracts
	db        KV
	logger    *logrus.Logger

	fromBlock uint64
	batchSize uint64

	mu      sync.Mutex
	logChan chan types.Log
	logSub  ethereum.Subscription
	onVote  []func(*VoteEvent)
	wg      sync.WaitGroup
}

func NewVoteIndexer(client Client, contracts *Contracts, db KV, logger *logrus.Logger, fromBlock, batchSize uint64) *VoteIndexer {
	if batchSize == 0 {
		batchSize = 5000
	}
	return &VoteIndexer{
		client:    client,
		contracts: contracts,
		db:        db,
		logger:    logger,
		fromBlock: fromBlock,
		batchSize: batchSize,
		logChan:   make(chan types.Log, LogChanMaxSize),
	}
}

// OnVote registers fn to run for every indexed vote, history included.
func (ix *VoteIndexer) OnVote(fn func(*VoteEvent)) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.onVote = append(ix.onVote, fn)
}

// Start replays history from the stored cursor, then follows new logs until ctx is done.
func (ix *VoteIndexer) Start(ctx context.Context) error {
	if err := ix.fetchHistoryLog(ctx); err != nil {
		return err
	}
	if err := ix.subscribeLog(ctx); err != nil {
		return err
	}

	ix.wg.Add(1)
	go ix.listenEvents(ctx)
	return nil
}

func (ix *VoteIndexer) Stop() {
	ix.mu.Lock()
	sub := ix.logSub
	ix.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	ix.wg.Wait()
}

func (ix *VoteIndexer) query(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{ix.contracts.Addresses().CoreVoting},
		Topics:    [][]common.Hash{{VotedTopic}},
	}
}

func (ix *VoteIndexer) fetchHistoryLog(ctx context.Context) error {
	head, err := ix.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get head block: %w", err)
	}

	from := ix.NextFromBlock()
	for from <= head {
		to := from + ix.batchSize - 1
		if to > head {
			to = head
		}
		logs, err := ix.client.FilterLogs(ctx, ix.query(new(big.Int).SetUint64(from), new(big.Int).SetUint64(to)))
		if err != nil {
			return fmt.Errorf("filter vote logs [%d, %d]: %w", from, to, err)
		}
		ix.logger.Debugf("fetched %d vote logs in [%d, %d]", len(logs), from, to)

		for i := range logs {
			ix.handleVoteLog(&logs[i])
		}
		ix.setNextFromBlock(to + 1)
		from = to + 1
	}
	return nil
}

func (ix *VoteIndexer) subscribeLog(ctx context.Context) error {
	sub, err := ix.client.SubscribeFilterLogs(ctx, ix.query(new(big.Int).SetUint64(ix.NextFromBlock()), nil), ix.logChan)
	if err != nil {
		return fmt.Errorf("subscribe vote logs: %w", err)
	}
	ix.mu.Lock()
	ix.logSub = sub
	ix.mu.Unlock()
	return nil
}

func (ix *VoteIndexer) resubscribe(ctx context.Context) error {
	action := func(attempt uint) error {
		return ix.subscribeLog(ctx)
	}
	return retry.Retry(action, strategy.Limit(5), strategy.Backoff(backoff.Fibonacci(5*time.Second)))
}

func (ix *VoteIndexer) listenEvents(ctx context.Context) {
	defer ix.wg.Done()
	ix.logger.Info("listen vote events")

	for {
		ix.mu.Lock()
		sub := ix.logSub
		ix.mu.Unlock()

		select {
		case <-ctx.Done():
			ix.logger.Info("context done, stop listening vote events")
			return
		case l := <-ix.logChan:
			ix.handleVoteLog(&l)
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				return
			}
			ix.logger.Errorf("vote log subscription error: %s", err)
			if err := ix.resubscribe(ctx); err != nil {
				ix.logger.Errorf("resubscribe vote logs failed: %s", err)
				return
			}
		}
	}
}

func (ix *VoteIndexer) handleVoteLog(l *types.Log) {
	if l.Removed {
		ix.logger.Debugf("skip removed vote log %s", l.TxHash.Hex())
		return
	}
	ev, err := ix.contracts.ParseVoted(*l)
	if err != nil {
		ix.logger.Errorf("parse vote log error: %s", err)
		return
	}

	key := lastVoteKey(ev.Voter, ev.ProposalID.String())
	if prev, ok := ix.get(key); ok && prev.BlockNumber > ev.BlockNumber {
		ix.logger.Debugf("skip stale vote of %s on %s", ev.Voter.Hex(), ev.ProposalID)
	} else {
		ix.put(key, VoteRecord{
			TxHash:      ev.TxHash.Hex(),
			BlockNumber: ev.BlockNumber,
			Ballot:      ev.Ballot,
		})
	}
	if ev.BlockNumber > ix.NextFromBlock() {
		ix.setNextFromBlock(ev.BlockNumber)
	}

	ix.mu.Lock()
	callbacks := append([]func(*VoteEvent){}, ix.onVote...)
	ix.mu.Unlock()
	for _, fn := range callbacks {
		fn(ev)
	}
}

// LastVote returns the last indexed vote of voter on proposalID.
func (ix *VoteIndexer) LastVote(voter common.Address, proposalID string) (VoteRecord, bool) {
	return ix.get(lastVoteKey(voter, proposalID))
}

// NextFromBlock is the first block not yet fully indexed.
func (ix *VoteIndexer) NextFromBlock() uint64 {
	data := ix.db.Get([]byte(nextFromBlockKey))
	if len(data) == 8 {
		if next := binary.BigEndian.Uint64(data); next > ix.fromBlock {
			return next
		}
	}
	return ix.fromBlock
}

func (ix *VoteIndexer) setNextFromBlock(next uint64) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, next)
	ix.db.Put([]byte(nextFromBlockKey), data)
}

func (ix *VoteIndexer) get(key []byte) (VoteRecord, bool) {
	data := ix.db.Get(key)
	if data == nil {
		return VoteRecord{}, false
	}
	var rec VoteRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		ix.logger.Errorf("decode vote record %s: %s", key, err)
		return VoteRecord{}, false
	}
	return rec, true
}

func (ix *VoteIndexer) put(key []byte, rec VoteRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		ix.logger.Errorf("encode vote record %s: %s", key, err)
		return
	}
	ix.db.Put(key, data)
}

func lastVoteKey(voter common.Address, proposalID string) []byte {
	return []byte(lastVoteKeyPrefix + strings.ToLower(voter.Hex()) + "/" + proposalID)
}
