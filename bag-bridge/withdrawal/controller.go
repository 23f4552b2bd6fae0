package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
	"github.com/bag-token/blast-bridge/bag-bridge/messenger"
	"github.com/bag-token/blast-bridge/bag-bridge/wallet"
	"github.com/bag-token/blast-bridge/op-service/eth"
)

const (
	OpCheckAllowance = "check_allowance"
	OpApprove        = "approve"
	OpInitiate       = "initiate"
	OpProve          = "prove"
	OpFinalize       = "finalize"
	OpRefresh        = "refresh"
	OpWait           = "wait"
	OpDrive          = "drive"
	OpAbandon        = "abandon"
)

// TokenBridge is the source chain token and the bridge withdrawing it.
type TokenBridge interface {
	Allowance(ctx context.Context, owner common.Address) (eth.TokenAmount, error)
	BalanceOf(ctx context.Context, owner common.Address) (eth.TokenAmount, error)
	Approve(ctx context.Context, sender contracts.Sender, amount eth.TokenAmount) (*contracts.TxHandle, error)
	BridgeERC20(ctx context.Context, sender contracts.Sender, amount eth.TokenAmount) (*contracts.TxHandle, error)
}

// MessageOracle tracks withdrawals by the hash of their initiating transaction.
type MessageOracle interface {
	GetMessageStatus(ctx context.Context, hash common.Hash) (messenger.MessageStatus, error)
	ProveMessage(ctx context.Context, sender contracts.Sender, hash common.Hash) (*contracts.TxHandle, error)
	ToLowLevelMessage(ctx context.Context, hash common.Hash) (messenger.LowLevelMessage, error)
}

// Portal finalizes proven withdrawals on the destination chain.
type Portal interface {
	FinalizeWithdrawalTransaction(ctx context.Context, sender contracts.Sender, hintID *big.Int, tx contracts.WithdrawalTransaction) (*contracts.TxHandle, error)
}

type Metricer interface {
	RecordOperation(op string) func(err error)
	RecordTransition(from, to string)
}

var (
	_ TokenBridge   = (*contracts.TokenBridge)(nil)
	_ MessageOracle = (*messenger.Oracle)(nil)
	_ Portal        = (*contracts.Portal)(nil)
)

type Config struct {
	// PollInterval paces status polling while waiting for a state.
	PollInterval time.Duration
}

// Controller drives withdrawal requests through their lifecycle.
// Every action re-reads live chain state before acting and refuses to act when it does not
// match the action's precondition. At most one operation runs per request at a time.
type Controller struct {
	log    log.Logger
	cfg    Config
	wallet wallet.Adapter
	bridge TokenBridge
	oracle MessageOracle
	portal Portal
	m      Metricer

	mu       sync.Mutex
	inFlight map[uuid.UUID]string

	now func() time.Time
}

func NewController(log log.Logger, cfg Config, w wallet.Adapter, bridge TokenBridge, oracle MessageOracle, portal Portal, m Metricer) *Controller {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 12 * time.Second
	}
	return &Controller{
		log:      log,
		cfg:      cfg,
		wallet:   w,
		bridge:   bridge,
		oracle:   oracle,
		portal:   portal,
		m:        m,
		inFlight: make(map[uuid.UUID]string),
		now:      time.Now,
	}
}

type stepFn func(ctx context.Context, req *WithdrawalRequest) error

// guarded runs fn while holding the in-flight slot of the request.
func (c *Controller) guarded(op string, req WithdrawalRequest, fn func() (WithdrawalRequest, error)) (WithdrawalRequest, error) {
	c.mu.Lock()
	if running, ok := c.inFlight[req.ID]; ok {
		c.mu.Unlock()
		err := newError(op, ErrOperationInFlight, fmt.Errorf("%s is running", running))
		req.LastError = err.Error()
		return req, err
	}
	c.inFlight[req.ID] = op
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inFlight, req.ID)
		c.mu.Unlock()
	}()
	return fn()
}

// apply runs one step on a copy of req. On failure the original state is kept, with the
// error and any pending transaction recorded.
func (c *Controller) apply(ctx context.Context, op string, req WithdrawalRequest, step stepFn) (WithdrawalRequest, error) {
	done := c.m.RecordOperation(op)
	next := req
	err := step(ctx, &next)
	done(err)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			err = newError(op, nil, err)
		}
		req.PendingTx = next.PendingTx
		req.LastError = err.Error()
		req.UpdatedAt = c.now()
		c.log.Warn("Withdrawal operation failed", "op", op, "id", req.ID, "state", req.State, "err", err)
		return req, err
	}
	next.LastError = ""
	next.UpdatedAt = c.now()
	if next.State != req.State {
		c.m.RecordTransition(req.State.String(), next.State.String())
		c.log.Info("Withdrawal state changed", "op", op, "id", req.ID, "from", req.State, "to", next.State)
	}
	return next, nil
}

func (c *Controller) run(ctx context.Context, op string, req WithdrawalRequest, step stepFn) (WithdrawalRequest, error) {
	return c.guarded(op, req, func() (WithdrawalRequest, error) {
		return c.apply(ctx, op, req, step)
	})
}

// CheckAllowance reads allowance and balance and derives the pre-initiation state.
func (c *Controller) CheckAllowance(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.run(ctx, OpCheckAllowance, req, c.checkAllowance)
}

func (c *Controller) checkAllowance(ctx context.Context, req *WithdrawalRequest) error {
	if err := c.checkBeforeInitiation(OpCheckAllowance, req); err != nil {
		return err
	}
	state, err := c.allowanceState(ctx, OpCheckAllowance, req.Amount)
	if err != nil {
		return err
	}
	req.State = state
	return nil
}

func (c *Controller) checkBeforeInitiation(op string, req *WithdrawalRequest) error {
	if req.Amount.IsZero() {
		return newError(op, ErrInvalidInput, errors.New("amount must be positive"))
	}
	if req.State.AtLeast(Initiated) || req.State == Failed {
		return staleError(op, req.State, NotStarted, PendingAllowance, Approved, ReadyToInitiate)
	}
	return nil
}

func (c *Controller) allowanceState(ctx context.Context, op string, amount eth.TokenAmount) (State, error) {
	owner := c.wallet.Address()
	var allowance, balance eth.TokenAmount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.bridge.Allowance(gctx, owner)
		if err != nil {
			return fmt.Errorf("failed to read allowance: %w", err)
		}
		allowance = v
		return nil
	})
	g.Go(func() error {
		v, err := c.bridge.BalanceOf(gctx, owner)
		if err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}
		balance = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, newError(op, nil, err)
	}
	c.log.Debug("Read allowance", "owner", owner, "allowance", allowance, "balance", balance, "amount", amount)
	switch {
	case allowance.Lt(amount):
		return PendingAllowance, nil
	case balance.Lt(amount):
		return Approved, nil
	default:
		return ReadyToInitiate, nil
	}
}

// Approve lets the bridge spend the request amount, then re-reads the allowance.
func (c *Controller) Approve(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.run(ctx, OpApprove, req, c.approve)
}

func (c *Controller) approve(ctx context.Context, req *WithdrawalRequest) error {
	if err := c.checkBeforeInitiation(OpApprove, req); err != nil {
		return err
	}
	handle, err := c.resume(OpApprove, req)
	if err != nil {
		return err
	}
	if handle == nil {
		live, err := c.allowanceState(ctx, OpApprove, req.Amount)
		if err != nil {
			return err
		}
		if live != PendingAllowance {
			return staleError(OpApprove, live, PendingAllowance)
		}
		sender, err := c.switchTo(ctx, OpApprove, req.SourceChain)
		if err != nil {
			return err
		}
		handle, err = c.bridge.Approve(ctx, sender, req.Amount)
		if err != nil {
			return newError(OpApprove, nil, fmt.Errorf("failed to send approval: %w", err))
		}
	}
	if err := c.await(ctx, OpApprove, req, req.SourceChain, handle); err != nil {
		return err
	}
	state, err := c.allowanceState(ctx, OpApprove, req.Amount)
	if err != nil {
		return err
	}
	if state == PendingAllowance {
		return newError(OpApprove, ErrInsufficientAllowance, errors.New("allowance still below amount after approval"))
	}
	req.State = state
	return nil
}

// Initiate starts the withdrawal on the source chain and records its hash.
func (c *Controller) Initiate(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.run(ctx, OpInitiate, req, c.initiate)
}

func (c *Controller) initiate(ctx context.Context, req *WithdrawalRequest) error {
	if err := c.checkBeforeInitiation(OpInitiate, req); err != nil {
		return err
	}
	handle, err := c.resume(OpInitiate, req)
	if err != nil {
		return err
	}
	if handle == nil {
		live, err := c.allowanceState(ctx, OpInitiate, req.Amount)
		if err != nil {
			return err
		}
		switch live {
		case PendingAllowance:
			return &Error{Op: OpInitiate, Kind: ErrInsufficientAllowance, Observed: live}
		case Approved:
			return &Error{Op: OpInitiate, Kind: ErrInsufficientBalance, Observed: live}
		}
		sender, err := c.switchTo(ctx, OpInitiate, req.SourceChain)
		if err != nil {
			return err
		}
		handle, err = c.bridge.BridgeERC20(ctx, sender, req.Amount)
		if err != nil {
			return newError(OpInitiate, nil, fmt.Errorf("failed to send withdrawal: %w", err))
		}
	}
	if err := c.await(ctx, OpInitiate, req, req.SourceChain, handle); err != nil {
		return err
	}
	req.WithdrawalHash = handle.Hash()
	req.State = Initiated
	return nil
}

// Refresh re-derives the state from live chain data. It never moves a request backwards
// once it is initiated.
func (c *Controller) Refresh(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.run(ctx, OpRefresh, req, c.refresh)
}

func (c *Controller) refresh(ctx context.Context, req *WithdrawalRequest) error {
	if req.State.Terminal() {
		return nil
	}
	if !req.State.HasHash() {
		if p := req.PendingTx; p != nil && p.Op == OpInitiate {
			// the allowance is spent by the pending bridge transaction, only initiate can resolve it
			c.log.Info("Initiation is pending, keeping state", "id", req.ID, "tx", p.Hash, "state", req.State)
			return nil
		}
		if err := c.checkAllowance(ctx, req); err != nil {
			return err
		}
		c.settle(req)
		return nil
	}
	live, err := c.liveState(ctx, OpRefresh, req)
	if err != nil {
		return err
	}
	if !live.AtLeast(req.State) {
		return staleError(OpRefresh, live, req.State)
	}
	req.State = live
	c.settle(req)
	return nil
}

func (c *Controller) liveState(ctx context.Context, op string, req *WithdrawalRequest) (State, error) {
	if req.WithdrawalHash == (common.Hash{}) {
		return 0, newError(op, ErrInvalidInput, errors.New("request has no withdrawal hash"))
	}
	status, err := c.oracle.GetMessageStatus(ctx, req.WithdrawalHash)
	if err != nil {
		return 0, newError(op, ErrOracleUnavailable, err)
	}
	state, ok := stateOfMessage(status)
	if !ok {
		return 0, newError(op, ErrOracleUnavailable, fmt.Errorf("unexpected message status %s", status))
	}
	return state, nil
}

// Prove submits the withdrawal proof once the oracle reports it provable.
func (c *Controller) Prove(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.run(ctx, OpProve, req, c.prove)
}

func (c *Controller) prove(ctx context.Context, req *WithdrawalRequest) error {
	switch req.State {
	case Initiated, AwaitingStateRoot, ReadyToProve:
	default:
		return staleError(OpProve, req.State, Initiated, AwaitingStateRoot, ReadyToProve)
	}
	handle, err := c.resume(OpProve, req)
	if err != nil {
		return err
	}
	if handle == nil {
		live, err := c.liveState(ctx, OpProve, req)
		if err != nil {
			return err
		}
		if live != ReadyToProve {
			return staleError(OpProve, live, ReadyToProve)
		}
		sender, err := c.switchTo(ctx, OpProve, req.DestinationChain)
		if err != nil {
			return err
		}
		handle, err = c.oracle.ProveMessage(ctx, sender, req.WithdrawalHash)
		if err != nil {
			return newError(OpProve, nil, fmt.Errorf("failed to prove withdrawal: %w", err))
		}
	}
	if err := c.await(ctx, OpProve, req, req.DestinationChain, handle); err != nil {
		return err
	}
	req.State = InChallengePeriod
	return nil
}

// Finalize relays a proven withdrawal whose challenge period has passed.
func (c *Controller) Finalize(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.run(ctx, OpFinalize, req, c.finalize)
}

func (c *Controller) finalize(ctx context.Context, req *WithdrawalRequest) error {
	switch req.State {
	case InChallengePeriod, ReadyToFinalize:
	default:
		return staleError(OpFinalize, req.State, InChallengePeriod, ReadyToFinalize)
	}
	handle, err := c.resume(OpFinalize, req)
	if err != nil {
		return err
	}
	if handle == nil {
		live, err := c.liveState(ctx, OpFinalize, req)
		if err != nil {
			return err
		}
		if live != ReadyToFinalize {
			return staleError(OpFinalize, live, ReadyToFinalize)
		}
		msg, err := c.oracle.ToLowLevelMessage(ctx, req.WithdrawalHash)
		if err != nil {
			return newError(OpFinalize, ErrOracleUnavailable, err)
		}
		sender, err := c.switchTo(ctx, OpFinalize, req.DestinationChain)
		if err != nil {
			return err
		}
		handle, err = c.portal.FinalizeWithdrawalTransaction(ctx, sender, msg.HintID, msg.Tx)
		if err != nil {
			return newError(OpFinalize, nil, fmt.Errorf("failed to send finalization: %w", err))
		}
	}
	if err := c.await(ctx, OpFinalize, req, req.DestinationChain, handle); err != nil {
		return err
	}
	req.State = Relayed
	return nil
}

// Abandon marks a request as failed. It is never resumed after that.
func (c *Controller) Abandon(req WithdrawalRequest, reason string) (WithdrawalRequest, error) {
	out, err := c.run(context.Background(), OpAbandon, req, func(_ context.Context, req *WithdrawalRequest) error {
		if req.State.Terminal() {
			return staleError(OpAbandon, req.State)
		}
		c.settle(req)
		if req.PendingTx != nil {
			return newError(OpAbandon, ErrOperationInFlight, fmt.Errorf("%s transaction %s is pending", req.PendingTx.Op, req.PendingTx.Hash))
		}
		req.State = Failed
		return nil
	})
	if err != nil {
		return out, err
	}
	out.LastError = reason
	return out, nil
}

func (c *Controller) switchTo(ctx context.Context, op string, chainID uint64) (contracts.Sender, error) {
	if err := c.wallet.SwitchToChain(ctx, chainID); err != nil {
		kind := ErrWalletUnavailable
		if reason, ok := wallet.ReasonOf(err); ok {
			switch reason {
			case wallet.ChainUnsupported:
				kind = ErrInvalidInput
			case wallet.SwitchRejected:
				kind = ErrChainSwitchRejected
			}
		}
		return nil, newError(op, kind, err)
	}
	sender, err := c.wallet.Sender(chainID)
	if err != nil {
		return nil, newError(op, ErrWalletUnavailable, err)
	}
	return sender, nil
}

// resume returns the handle of a transaction op published earlier, or nil if there is none.
func (c *Controller) resume(op string, req *WithdrawalRequest) (*contracts.TxHandle, error) {
	c.settle(req)
	p := req.PendingTx
	if p == nil {
		return nil, nil
	}
	if p.Op != op {
		return nil, newError(op, ErrOperationInFlight, fmt.Errorf("%s transaction %s is still pending", p.Op, p.Hash))
	}
	sender, err := c.wallet.Sender(p.ChainID)
	if err != nil {
		return nil, newError(op, ErrWalletUnavailable, err)
	}
	c.log.Info("Resuming wait for pending transaction", "op", op, "id", req.ID, "tx", p.Hash)
	return contracts.ResumeTx(sender, p.Hash), nil
}

// settle drops a pending transaction whose effect the request state already shows.
func (c *Controller) settle(req *WithdrawalRequest) {
	p := req.PendingTx
	if p == nil || !settledBy(p.Op, req.State) {
		return
	}
	c.log.Info("Pending transaction settled", "op", p.Op, "id", req.ID, "tx", p.Hash, "state", req.State)
	req.PendingTx = nil
}

// settledBy reports whether a request in state s is past the phase a transaction of op was sent for.
func settledBy(op string, s State) bool {
	switch op {
	case OpApprove:
		return s.AtLeast(Approved)
	case OpInitiate:
		return s.HasHash()
	case OpProve:
		return s.AtLeast(InChallengePeriod)
	case OpFinalize:
		return s == Relayed
	default:
		return false
	}
}

// await waits for the receipt. If waiting stops early the transaction stays pending on the request.
func (c *Controller) await(ctx context.Context, op string, req *WithdrawalRequest, chainID uint64, handle *contracts.TxHandle) error {
	req.PendingTx = &PendingTx{Op: op, Hash: handle.Hash(), ChainID: chainID}
	receipt, err := handle.AwaitConfirmation(ctx)
	if err != nil {
		return newError(op, nil, fmt.Errorf("stopped waiting for %s: %w", handle.Hash(), err))
	}
	req.PendingTx = nil
	if receipt.Status != types.ReceiptStatusSuccessful {
		return newError(op, ErrTransactionReverted, fmt.Errorf("tx %s reverted in block %v", handle.Hash(), receipt.BlockNumber))
	}
	c.log.Info("Transaction confirmed", "op", op, "id", req.ID, "tx", handle.Hash(), "block", receipt.BlockNumber)
	return nil
}
