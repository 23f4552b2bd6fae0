package messenger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
)

var (
	ErrWithdrawalNotFound    = errors.New("withdrawal transaction not found")
	ErrStateRootNotPublished = errors.New("no output covers the withdrawal yet")
	ErrOutputRootMismatch    = errors.New("computed output root does not match the proposed one")
	// ErrUnsupportedWithdrawal is returned for withdrawals that need a yield checkpoint hint,
	// which only ETH withdrawals do.
	ErrUnsupportedWithdrawal = errors.New("withdrawal needs a yield checkpoint hint")
)

const messageCacheSize = 256

type HeaderClient interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type L2Client interface {
	HeaderClient
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type PortalContract interface {
	ProveWithdrawalTransaction(ctx context.Context, sender contracts.Sender, params contracts.ProvenWithdrawalParameters) (*contracts.TxHandle, error)
	ProvenWithdrawal(ctx context.Context, withdrawalHash common.Hash) (contracts.ProvenWithdrawal, error)
	FinalizedWithdrawal(ctx context.Context, withdrawalHash common.Hash) (bool, error)
}

type OutputOracleContract interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FinalizationPeriodSeconds(ctx context.Context) (uint64, error)
	GetL2OutputIndexAfter(ctx context.Context, l2BlockNumber uint64) (*big.Int, error)
	GetL2Output(ctx context.Context, index *big.Int) (contracts.OutputProposal, error)
}

var (
	_ PortalContract       = (*contracts.Portal)(nil)
	_ OutputOracleContract = (*contracts.OutputOracle)(nil)
)

// LowLevelMessage is what the portal needs to finalize a withdrawal.
type LowLevelMessage struct {
	Tx     contracts.WithdrawalTransaction
	HintID *big.Int
}

type Config struct {
	L1           HeaderClient
	L2           L2Client
	Proofs       contracts.ProofClient
	Portal       PortalContract
	OutputOracle OutputOracleContract

	// RetryAttempts and RetryDelay control retries of transient RPC failures.
	RetryAttempts uint
	RetryDelay    time.Duration
}

// Oracle derives the status of L2 to L1 withdrawals from chain data and proves them.
// Withdrawals are identified by the hash of the L2 transaction that initiated them.
type Oracle struct {
	log log.Logger
	cfg Config

	messages *lru.Cache[common.Hash, *contracts.MessagePassed]
}

func NewOracle(log log.Logger, cfg Config) (*Oracle, error) {
	if cfg.L1 == nil || cfg.L2 == nil || cfg.Proofs == nil || cfg.Portal == nil || cfg.OutputOracle == nil {
		return nil, errors.New("incomplete message oracle config")
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	messages, err := lru.New[common.Hash, *contracts.MessagePassed](messageCacheSize)
	if err != nil {
		return nil, err
	}
	return &Oracle{log: log, cfg: cfg, messages: messages}, nil
}

// GetMessageStatus reports where the withdrawal initiated by txHash is in its lifecycle.
func (o *Oracle) GetMessageStatus(ctx context.Context, txHash common.Hash) (MessageStatus, error) {
	ev, err := o.message(ctx, txHash)
	if err != nil {
		return 0, err
	}
	finalized, err := withRetry(ctx, o, "finalizedWithdrawals", func() (bool, error) {
		return o.cfg.Portal.FinalizedWithdrawal(ctx, ev.WithdrawalHash)
	})
	if err != nil {
		return 0, err
	}
	if finalized {
		return Relayed, nil
	}
	proven, err := withRetry(ctx, o, "provenWithdrawals", func() (contracts.ProvenWithdrawal, error) {
		return o.cfg.Portal.ProvenWithdrawal(ctx, ev.WithdrawalHash)
	})
	if err != nil {
		return 0, err
	}
	if !proven.Proven() {
		latest, err := withRetry(ctx, o, "latestBlockNumber", func() (uint64, error) {
			return o.cfg.OutputOracle.LatestBlockNumber(ctx)
		})
		if err != nil {
			return 0, err
		}
		if latest < ev.BlockNumber {
			return StateRootNotPublished, nil
		}
		return ReadyToProve, nil
	}
	period, err := withRetry(ctx, o, "FINALIZATION_PERIOD_SECONDS", func() (uint64, error) {
		return o.cfg.OutputOracle.FinalizationPeriodSeconds(ctx)
	})
	if err != nil {
		return 0, err
	}
	head, err := withRetry(ctx, o, "l1 head", func() (*types.Header, error) {
		return o.cfg.L1.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return 0, err
	}
	if head.Time < proven.Timestamp+period {
		return InChallengePeriod, nil
	}
	return ReadyForRelay, nil
}

// ProveMessage submits the proof of the withdrawal against the first output that covers it.
func (o *Oracle) ProveMessage(ctx context.Context, sender contracts.Sender, txHash common.Hash) (*contracts.TxHandle, error) {
	ev, err := o.message(ctx, txHash)
	if err != nil {
		return nil, err
	}
	latest, err := o.cfg.OutputOracle.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest output block: %w", err)
	}
	if latest < ev.BlockNumber {
		return nil, fmt.Errorf("%w: latest output at %d, withdrawal at %d", ErrStateRootNotPublished, latest, ev.BlockNumber)
	}
	index, err := o.cfg.OutputOracle.GetL2OutputIndexAfter(ctx, ev.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get output index: %w", err)
	}
	proposal, err := o.cfg.OutputOracle.GetL2Output(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to get output %v: %w", index, err)
	}
	header, err := o.cfg.L2.HeaderByNumber(ctx, proposal.L2BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get L2 header %v: %w", proposal.L2BlockNumber, err)
	}
	trieNodes, storageRoot, err := contracts.GetWithdrawalProof(ctx, o.cfg.Proofs, ev, header)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal proof: %w", err)
	}
	rootProof := contracts.OutputRootProof{
		StateRoot:                header.Root,
		MessagePasserStorageRoot: storageRoot,
		LatestBlockhash:          header.Hash(),
	}
	if root := OutputRoot(rootProof); root != proposal.OutputRoot {
		return nil, fmt.Errorf("%w: computed %s, proposed %s", ErrOutputRootMismatch, root, proposal.OutputRoot)
	}
	o.log.Info("Proving withdrawal", "tx", txHash, "withdrawal", ev.WithdrawalHash, "outputIndex", index, "l2Block", proposal.L2BlockNumber)
	return o.cfg.Portal.ProveWithdrawalTransaction(ctx, sender, contracts.ProvenWithdrawalParameters{
		Tx:              ev.WithdrawalTransaction,
		L2OutputIndex:   index,
		OutputRootProof: rootProof,
		WithdrawalProof: trieNodes,
	})
}

// ToLowLevelMessage returns the withdrawal transaction and the finalization hint.
func (o *Oracle) ToLowLevelMessage(ctx context.Context, txHash common.Hash) (LowLevelMessage, error) {
	ev, err := o.message(ctx, txHash)
	if err != nil {
		return LowLevelMessage{}, err
	}
	proven, err := o.cfg.Portal.ProvenWithdrawal(ctx, ev.WithdrawalHash)
	if err != nil {
		return LowLevelMessage{}, fmt.Errorf("failed to get proven withdrawal: %w", err)
	}
	if proven.RequestID != nil && proven.RequestID.Sign() != 0 {
		return LowLevelMessage{}, fmt.Errorf("%w: request id %v", ErrUnsupportedWithdrawal, proven.RequestID)
	}
	return LowLevelMessage{Tx: ev.WithdrawalTransaction, HintID: new(big.Int)}, nil
}

// Message returns the parsed MessagePassed event of the withdrawal initiated by txHash.
func (o *Oracle) Message(ctx context.Context, txHash common.Hash) (*contracts.MessagePassed, error) {
	return o.message(ctx, txHash)
}

func (o *Oracle) message(ctx context.Context, txHash common.Hash) (*contracts.MessagePassed, error) {
	if ev, ok := o.messages.Get(txHash); ok {
		return ev, nil
	}
	receipt, err := withRetry(ctx, o, "receipt", func() (*types.Receipt, error) {
		r, err := o.cfg.L2.TransactionReceipt(ctx, txHash)
		if errors.Is(err, ethereum.NotFound) {
			return nil, retry.Unrecoverable(fmt.Errorf("%w: %s", ErrWithdrawalNotFound, txHash))
		}
		return r, err
	})
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted", ErrWithdrawalNotFound, txHash)
	}
	ev, err := contracts.ParseMessagePassed(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse withdrawal of %s: %w", txHash, err)
	}
	o.messages.Add(txHash, ev)
	return ev, nil
}

// OutputRoot computes the version 0 output root committed to by the output oracle.
func OutputRoot(p contracts.OutputRootProof) common.Hash {
	buf := make([]byte, 0, 128)
	buf = append(buf, p.Version[:]...)
	buf = append(buf, p.StateRoot[:]...)
	buf = append(buf, p.MessagePasserStorageRoot[:]...)
	buf = append(buf, p.LatestBlockhash[:]...)
	return crypto.Keccak256Hash(buf)
}

func withRetry[T any](ctx context.Context, o *Oracle, what string, fn func() (T, error)) (T, error) {
	v, err := retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(o.cfg.RetryAttempts),
		retry.Delay(o.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.log.Debug("Retrying message status query", "query", what, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return v, fmt.Errorf("failed to query %s: %w", what, err)
	}
	return v, nil
}
