package withdrawal

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/bag-token/blast-bridge/bag-bridge/messenger"
)

// WaitForState polls the oracle until the request reaches target, fails, or ctx is done.
// Oracle outages while waiting are logged and polled through. A withdrawal the source
// chain does not know stops the wait.
func (c *Controller) WaitForState(ctx context.Context, req WithdrawalRequest, target State) (WithdrawalRequest, error) {
	return c.guarded(OpWait, req, func() (WithdrawalRequest, error) {
		return c.waitFor(ctx, req, target)
	})
}

func (c *Controller) waitFor(ctx context.Context, req WithdrawalRequest, target State) (WithdrawalRequest, error) {
	if !req.State.HasHash() {
		return c.apply(ctx, OpWait, req, func(context.Context, *WithdrawalRequest) error {
			return staleError(OpWait, req.State, Initiated)
		})
	}
	limiter := rate.NewLimiter(rate.Every(c.cfg.PollInterval), 1)
	for !req.State.AtLeast(target) {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			return c.apply(ctx, OpWait, req, func(context.Context, *WithdrawalRequest) error {
				return newError(OpWait, nil, err)
			})
		}
		next, err := c.apply(ctx, OpRefresh, req, c.refresh)
		req = next
		if errors.Is(err, ErrOracleUnavailable) && !errors.Is(err, messenger.ErrWithdrawalNotFound) {
			continue
		}
		if err != nil {
			return req, err
		}
		c.log.Debug("Waiting for withdrawal state", "id", req.ID, "state", req.State, "target", target)
	}
	return req, nil
}

// Drive takes an initiated request to Relayed, waiting for each phase and acting when it is due.
func (c *Controller) Drive(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	return c.guarded(OpDrive, req, func() (WithdrawalRequest, error) {
		return c.drive(ctx, req)
	})
}

func (c *Controller) drive(ctx context.Context, req WithdrawalRequest) (WithdrawalRequest, error) {
	var err error
	for {
		switch req.State {
		case Relayed:
			return req, nil
		case Initiated, AwaitingStateRoot:
			req, err = c.waitFor(ctx, req, ReadyToProve)
		case ReadyToProve:
			req, err = c.apply(ctx, OpProve, req, c.prove)
		case InChallengePeriod:
			req, err = c.waitFor(ctx, req, ReadyToFinalize)
		case ReadyToFinalize:
			req, err = c.apply(ctx, OpFinalize, req, c.finalize)
		default:
			return c.apply(ctx, OpDrive, req, func(context.Context, *WithdrawalRequest) error {
				return staleError(OpDrive, req.State, Initiated, AwaitingStateRoot, ReadyToProve, InChallengePeriod, ReadyToFinalize)
			})
		}
		if err == nil {
			continue
		}
		var e *Error
		if errors.As(err, &e) && errors.Is(e.Kind, ErrStaleState) && e.Observed.AtLeast(req.State) && e.Op != OpRefresh {
			// someone else moved the withdrawal on, catch up
			c.log.Info("Withdrawal moved on elsewhere", "id", req.ID, "state", req.State, "observed", e.Observed)
			req, err = c.apply(ctx, OpRefresh, req, c.refresh)
			if err == nil {
				continue
			}
		}
		return req, err
	}
}
