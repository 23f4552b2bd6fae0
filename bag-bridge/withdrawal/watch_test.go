package withdrawal

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/bag-token/blast-bridge/bag-bridge/messenger"
)

func TestWaitForState(t *testing.T) {
	h := newHarness(t)
	h.chain.setStatuses(messenger.StateRootNotPublished, messenger.StateRootNotPublished, messenger.ReadyToProve)
	out, err := h.ctrl.WaitForState(context.Background(), initiated(t, Initiated), ReadyToProve)
	require.NoError(t, err)
	require.Equal(t, ReadyToProve, out.State)
	require.Equal(t, 3, h.chain.statusCalls)
}

func TestWaitForStatePollsThroughOutages(t *testing.T) {
	h := newHarness(t)
	h.chain.setStatuses(messenger.FailedL1ToL2Message, messenger.Relayed)
	out, err := h.ctrl.WaitForState(context.Background(), initiated(t, InChallengePeriod), ReadyToFinalize)
	require.NoError(t, err)
	require.Equal(t, Relayed, out.State)
}

func TestWaitForStateStopsOnUnknownWithdrawal(t *testing.T) {
	h := newHarness(t)
	h.chain.statusErr = fmt.Errorf("%w: 0x11", messenger.ErrWithdrawalNotFound)
	out, err := h.ctrl.WaitForState(context.Background(), initiated(t, Initiated), ReadyToProve)
	requireKind(t, err, ErrOracleUnavailable)
	require.ErrorIs(t, err, messenger.ErrWithdrawalNotFound)
	require.Equal(t, Initiated, out.State)
	require.Equal(t, 1, h.chain.statusCalls)
}

func TestWaitForStateCancelled(t *testing.T) {
	h := newHarness(t)
	h.chain.setStatuses(messenger.StateRootNotPublished)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			h.chain.mu.Lock()
			calls := h.chain.statusCalls
			h.chain.mu.Unlock()
			if calls >= 2 {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	out, err := h.ctrl.WaitForState(ctx, initiated(t, Initiated), ReadyToProve)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, AwaitingStateRoot, out.State)
	require.NotEmpty(t, out.LastError)
}

func TestWaitForStateNeedsHash(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.WaitForState(context.Background(), mustRequest(t, "1"), ReadyToProve)
	requireKind(t, err, ErrStaleState)
	require.Zero(t, h.chain.networkCalls())
}

func TestDrive(t *testing.T) {
	h := newHarness(t)
	h.chain.setStatuses(messenger.StateRootNotPublished, messenger.StateRootNotPublished, messenger.ReadyToProve)
	h.chain.afterProve = []messenger.MessageStatus{messenger.InChallengePeriod, messenger.InChallengePeriod, messenger.ReadyForRelay}
	h.chain.afterFinal = []messenger.MessageStatus{messenger.Relayed}

	out, err := h.ctrl.Drive(context.Background(), initiated(t, Initiated))
	require.NoError(t, err)
	require.Equal(t, Relayed, out.State)
	require.Equal(t, 1, h.chain.proofs)
	require.Equal(t, 1, h.chain.finals)
	require.Nil(t, out.PendingTx)
}

func TestDriveCatchesUpWhenProvenElsewhere(t *testing.T) {
	h := newHarness(t)
	// live status moves past ReadyToProve between the wait and the prove
	h.chain.setStatuses(messenger.ReadyToProve, messenger.InChallengePeriod, messenger.InChallengePeriod, messenger.ReadyForRelay)
	h.chain.afterFinal = []messenger.MessageStatus{messenger.Relayed}

	out, err := h.ctrl.Drive(context.Background(), initiated(t, Initiated))
	require.NoError(t, err)
	require.Equal(t, Relayed, out.State)
	require.Zero(t, h.chain.proofs)
	require.Equal(t, 1, h.chain.finals)
}

func TestDriveStopsOnRevert(t *testing.T) {
	h := newHarness(t)
	h.chain.setStatuses(messenger.ReadyToProve)
	h.l1.revert(common.BigToHash(big.NewInt(0xa001)))
	out, err := h.ctrl.Drive(context.Background(), initiated(t, ReadyToProve))
	requireKind(t, err, ErrTransactionReverted)
	require.Equal(t, ReadyToProve, out.State)
}

func TestDriveRejectsDoubleRun(t *testing.T) {
	h := newHarness(t)
	h.chain.setStatuses(messenger.ReadyToProve)
	h.l1.holdConfirmations()
	req := initiated(t, ReadyToProve)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Drive(context.Background(), req)
		done <- err
	}()
	require.Eventually(t, func() bool {
		h.l1.mu.Lock()
		defer h.l1.mu.Unlock()
		return h.l1.waits == 1
	}, 5*time.Second, time.Millisecond)

	_, err := h.ctrl.Prove(context.Background(), req)
	requireKind(t, err, ErrOperationInFlight)

	h.chain.mu.Lock()
	h.chain.statuses = []messenger.MessageStatus{messenger.ReadyForRelay}
	h.chain.afterFinal = []messenger.MessageStatus{messenger.Relayed}
	h.chain.mu.Unlock()
	h.l1.release()
	require.NoError(t, <-done)
}
