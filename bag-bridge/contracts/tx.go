package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bag-token/blast-bridge/op-service/metrics"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

// Sender publishes transactions from one account on one chain.
// *txmgr.SimpleTxManager implements it.
type Sender interface {
	From() common.Address
	ChainID() *big.Int
	Publish(ctx context.Context, candidate txmgr.TxCandidate) (*types.Transaction, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Sender = (*txmgr.SimpleTxManager)(nil)

// TxHandle is a published transaction.
type TxHandle struct {
	hash   common.Hash
	sender Sender
}

// ResumeTx returns a handle for a transaction published earlier, possibly by another process.
func ResumeTx(sender Sender, hash common.Hash) *TxHandle {
	return &TxHandle{hash: hash, sender: sender}
}

func (h *TxHandle) Hash() common.Hash {
	return h.hash
}

// AwaitConfirmation waits for the receipt. A reverted receipt is returned as is.
func (h *TxHandle) AwaitConfirmation(ctx context.Context) (*types.Receipt, error) {
	return h.sender.WaitMined(ctx, h.hash)
}

func send(ctx context.Context, sender Sender, to common.Address, data []byte) (*TxHandle, error) {
	tx, err := sender.Publish(ctx, txmgr.TxCandidate{TxData: data, To: &to})
	if err != nil {
		return nil, err
	}
	return &TxHandle{hash: tx.Hash(), sender: sender}, nil
}

// InstrumentedCaller records every eth_call with the given metrics, labelled by contract method.
type InstrumentedCaller struct {
	inner ethereum.ContractCaller
	m     metrics.RPCMetricer
}

func NewInstrumentedCaller(inner ethereum.ContractCaller, m metrics.RPCMetricer) *InstrumentedCaller {
	return &InstrumentedCaller{inner: inner, m: m}
}

func (c *InstrumentedCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	done := c.m.RecordRPCClientRequest(methodLabel(msg.Data))
	out, err := c.inner.CallContract(ctx, msg, blockNumber)
	done(err)
	return out, err
}

var knownSelectors = map[[4]byte]string{
	allowanceFn.Selector:             "allowance",
	balanceOfFn.Selector:             "balanceOf",
	provenWithdrawalsFn.Selector:     "provenWithdrawals",
	finalizedWithdrawalsFn.Selector:  "finalizedWithdrawals",
	latestBlockNumberFn.Selector:     "latestBlockNumber",
	getL2OutputIndexAfterFn.Selector: "getL2OutputIndexAfter",
	getL2OutputFn.Selector:           "getL2Output",
	finalizationPeriodFn.Selector:    "FINALIZATION_PERIOD_SECONDS",
}

func methodLabel(data []byte) string {
	if len(data) < 4 {
		return "unknown"
	}
	if name, ok := knownSelectors[[4]byte(data[:4])]; ok {
		return name
	}
	return "unknown"
}

func call(ctx context.Context, caller ethereum.ContractCaller, to common.Address, data []byte) ([]byte, error) {
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result calling %s, is the contract deployed?", to)
	}
	return out, nil
}
