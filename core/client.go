package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is the subset of ethclient.Client the portal needs.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)

	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error)
}

var _ Client = (*MockClient)(nil)

// CallHandler answers a mocked contract call with unpacked arguments and returns unpacked outputs.
type CallHandler func(args []any) ([]any, error)

type mockMethod struct {
	method  abi.Method
	handler CallHandler
}

// MockClient is an in-memory chain used by tests and the status command dry run.
type MockClient struct {
	mu      sync.Mutex
	block   uint64
	methods map[common.Address]map[string]mockMethod
	logs    []types.Log
	subs    []*MockSubscription
}

func NewMockClient(block uint64) *MockClient {
	return &MockClient{
		block:   block,
		methods: make(map[common.Address]map[string]mockMethod),
	}
}

func (mc *MockClient) SetBlock(block uint64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.block = block
}

// Handle registers fn for method of contract at addr.
func (mc *MockClient) Handle(addr common.Address, contract abi.ABI, method string, fn CallHandler) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, ok := contract.Methods[method]
	if !ok {
		panic("unknown method " + method)
	}
	if mc.methods[addr] == nil {
		mc.methods[addr] = make(map[string]mockMethod)
	}
	mc.methods[addr][string(m.ID)] = mockMethod{method: m, handler: fn}
}

func (mc *MockClient) BlockNumber(ctx context.Context) (uint64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.block, nil
}

func (mc *MockClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if call.To == nil || len(call.Data) < 4 {
		return nil, errors.New("mock: malformed call")
	}
	mc.mu.Lock()
	m, ok := mc.methods[*call.To][string(call.Data[:4])]
	mc.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mock: no handler for %x on %s", call.Data[:4], call.To.Hex())
	}

	args, err := m.method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := m.handler(args)
	if err != nil {
		return nil, err
	}
	return m.method.Outputs.Pack(out...)
}

func (mc *MockClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var logs []types.Log
	for _, l := range mc.logs {
		if matchLog(q, l) {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

func (mc *MockClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	sub := &MockSubscription{query: q, ch: ch, errCh: make(chan error, 1)}
	mc.subs = append(mc.subs, sub)
	return sub, nil
}

// AddLog stores l for history queries and delivers it to matching subscriptions.
func (mc *MockClient) AddLog(l types.Log) {
	mc.mu.Lock()
	mc.logs = append(mc.logs, l)
	subs := append([]*MockSubscription(nil), mc.subs...)
	mc.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(l)
	}
}

func matchLog(q ethereum.FilterQuery, l types.Log) bool {
	if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
		return false
	}
	if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
		return false
	}
	if len(q.Addresses) > 0 {
		found := false
		for _, a := range q.Addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, topics := range q.Topics {
		if len(topics) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		found := false
		for _, t := range topics {
			if t == l.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VotedLog builds a Voted event log as the voting contract emits it.
func VotedLog(voting common.Address, voter common.Address, proposalID int64, power *big.Int, ballot Ballot, block uint64, txHash common.Hash) types.Log {
	data, err := VotingABI.Events["Voted"].Inputs.NonIndexed().Pack(votedTuple{
		VotingPower: power,
		CastBallot:  uint8(ballot),
	})
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: voting,
		Topics: []common.Hash{
			VotedTopic,
			common.BytesToHash(voter.Bytes()),
			common.BigToHash(big.NewInt(proposalID)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
	}
}

type MockSubscription struct {
	mu      sync.Mutex
	query   ethereum.FilterQuery
	ch      chan<- types.Log
	errCh   chan error
	stopped bool
}

func (ms *MockSubscription) deliver(l types.Log) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.stopped || !matchLog(ethereum.FilterQuery{Addresses: ms.query.Addresses, Topics: ms.query.Topics}, l) {
		return
	}
	ms.ch <- l
}

func (ms *MockSubscription) Unsubscribe() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if !ms.stopped {
		ms.stopped = true
		close(ms.errCh)
	}
}

func (ms *MockSubscription) Err() <-chan error {
	return ms.errCh
}
