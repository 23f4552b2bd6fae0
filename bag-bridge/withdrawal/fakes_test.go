package withdrawal

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
	"github.com/bag-token/blast-bridge/bag-bridge/messenger"
	"github.com/bag-token/blast-bridge/bag-bridge/wallet"
	"github.com/bag-token/blast-bridge/op-service/eth"
	"github.com/bag-token/blast-bridge/op-service/testlog"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

const (
	l1ChainID = 1
	l2ChainID = 81457
)

var owner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// fakeSender confirms transactions from a receipt table. With hold set, confirmation waits
// until release is called or the context is done.
type fakeSender struct {
	chainID uint64

	mu       sync.Mutex
	reverted map[common.Hash]bool
	hold     chan struct{}
	waits    int
}

func newFakeSender(chainID uint64) *fakeSender {
	return &fakeSender{chainID: chainID, reverted: make(map[common.Hash]bool)}
}

func (s *fakeSender) From() common.Address { return owner }
func (s *fakeSender) ChainID() *big.Int    { return new(big.Int).SetUint64(s.chainID) }

func (s *fakeSender) Publish(context.Context, txmgr.TxCandidate) (*types.Transaction, error) {
	return nil, errors.New("publish goes through the fakes")
}

func (s *fakeSender) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	s.mu.Lock()
	s.waits++
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	status := types.ReceiptStatusSuccessful
	if s.reverted[txHash] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{TxHash: txHash, Status: status, BlockNumber: big.NewInt(1)}, nil
}

func (s *fakeSender) holdConfirmations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = make(chan struct{})
}

func (s *fakeSender) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
}

func (s *fakeSender) revert(h common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverted[h] = true
}

type fakeWallet struct {
	mu       sync.Mutex
	current  uint64
	senders  map[uint64]*fakeSender
	switchTo []uint64
	failWith error
}

func (w *fakeWallet) Address() common.Address { return owner }

func (w *fakeWallet) CurrentChain(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, nil
}

func (w *fakeWallet) SwitchToChain(_ context.Context, chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switchTo = append(w.switchTo, chainID)
	if w.failWith != nil {
		return w.failWith
	}
	if _, ok := w.senders[chainID]; !ok {
		return &wallet.SwitchError{ChainID: chainID, Reason: wallet.ChainUnsupported}
	}
	w.current = chainID
	return nil
}

func (w *fakeWallet) Sender(chainID uint64) (contracts.Sender, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.senders[chainID]
	if !ok {
		return nil, &wallet.SwitchError{ChainID: chainID, Reason: wallet.ChainUnsupported}
	}
	return s, nil
}

// fakeChain plays the token, the bridge, the message oracle and the portal.
type fakeChain struct {
	mu sync.Mutex

	allowance eth.TokenAmount
	balance   eth.TokenAmount
	readErr   error
	reads     int

	approvals   int
	initiations int
	proofs      int
	finals      int
	finalHint   *big.Int

	// statuses are returned in order by GetMessageStatus, the last one repeats.
	statuses     []messenger.MessageStatus
	statusErr    error
	statusCalls  int
	afterProve   []messenger.MessageStatus
	afterFinal   []messenger.MessageStatus
	lowLevelErr  error
	nextTx       uint64
	lastTxHashes []common.Hash
}

func (f *fakeChain) txHash() common.Hash {
	f.nextTx++
	h := common.BigToHash(new(big.Int).SetUint64(0xa000 + f.nextTx))
	f.lastTxHashes = append(f.lastTxHashes, h)
	return h
}

func (f *fakeChain) Allowance(context.Context, common.Address) (eth.TokenAmount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.allowance, f.readErr
}

func (f *fakeChain) BalanceOf(context.Context, common.Address) (eth.TokenAmount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.balance, f.readErr
}

func (f *fakeChain) Approve(_ context.Context, sender contracts.Sender, amount eth.TokenAmount) (*contracts.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals++
	f.allowance = amount
	return contracts.ResumeTx(sender, f.txHash()), nil
}

func (f *fakeChain) BridgeERC20(_ context.Context, sender contracts.Sender, _ eth.TokenAmount) (*contracts.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiations++
	return contracts.ResumeTx(sender, f.txHash()), nil
}

func (f *fakeChain) GetMessageStatus(context.Context, common.Hash) (messenger.MessageStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeChain) setStatuses(statuses ...messenger.MessageStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

func (f *fakeChain) ProveMessage(_ context.Context, sender contracts.Sender, _ common.Hash) (*contracts.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.proofs++
	if f.afterProve != nil {
		f.statuses = f.afterProve
	}
	return contracts.ResumeTx(sender, f.txHash()), nil
}

func (f *fakeChain) ToLowLevelMessage(context.Context, common.Hash) (messenger.LowLevelMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lowLevelErr != nil {
		return messenger.LowLevelMessage{}, f.lowLevelErr
	}
	return messenger.LowLevelMessage{HintID: new(big.Int)}, nil
}

func (f *fakeChain) FinalizeWithdrawalTransaction(_ context.Context, sender contracts.Sender, hintID *big.Int, _ contracts.WithdrawalTransaction) (*contracts.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finals++
	f.finalHint = hintID
	if f.afterFinal != nil {
		f.statuses = f.afterFinal
	}
	return contracts.ResumeTx(sender, f.txHash()), nil
}

func (f *fakeChain) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads + f.approvals + f.initiations + f.proofs + f.finals + f.statusCalls
}

type fakeMetrics struct {
	mu          sync.Mutex
	ops         map[string]int
	failures    map[string]int
	transitions []string
}

func (m *fakeMetrics) RecordOperation(op string) func(err error) {
	return func(err error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.ops[op]++
		if err != nil {
			m.failures[op]++
		}
	}
}

func (m *fakeMetrics) RecordTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

type harness struct {
	ctrl    *Controller
	chain   *fakeChain
	wallet  *fakeWallet
	l1      *fakeSender
	l2      *fakeSender
	metrics *fakeMetrics
}

func newHarness(t *testing.T) *harness {
	l1, l2 := newFakeSender(l1ChainID), newFakeSender(l2ChainID)
	h := &harness{
		chain:   &fakeChain{statuses: []messenger.MessageStatus{messenger.StateRootNotPublished}},
		wallet:  &fakeWallet{current: l2ChainID, senders: map[uint64]*fakeSender{l1ChainID: l1, l2ChainID: l2}},
		l1:      l1,
		l2:      l2,
		metrics: &fakeMetrics{ops: map[string]int{}, failures: map[string]int{}},
	}
	h.ctrl = NewController(testlog.Logger(t, log.LevelDebug), Config{PollInterval: time.Millisecond},
		h.wallet, h.chain, h.chain, h.chain, h.metrics)
	return h
}

func mustRequest(t *testing.T, amount string) WithdrawalRequest {
	req, err := NewRequest(amount, l2ChainID, l1ChainID)
	require.NoError(t, err)
	return req
}

func initiated(t *testing.T, state State) WithdrawalRequest {
	req := mustRequest(t, "100")
	req.WithdrawalHash = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	req.State = state
	return req
}

func requireKind(t *testing.T, err error, kind error) *Error {
	t.Helper()
	require.ErrorIs(t, err, kind)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, kind, e.Kind)
	return e
}
