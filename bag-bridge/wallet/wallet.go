package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
)

// Adapter is the wallet as seen by the withdrawal controller.
type Adapter interface {
	Address() common.Address
	CurrentChain(ctx context.Context) (uint64, error)
	// SwitchToChain moves the wallet to chainID. Failures are *SwitchError.
	SwitchToChain(ctx context.Context, chainID uint64) error
	// Sender signs and publishes transactions on chainID.
	Sender(chainID uint64) (contracts.Sender, error)
}

type SwitchReason uint8

const (
	ChainUnsupported SwitchReason = iota
	SwitchRejected
	WalletUnavailable
)

func (r SwitchReason) String() string {
	switch r {
	case ChainUnsupported:
		return "chain unsupported"
	case SwitchRejected:
		return "switch rejected"
	case WalletUnavailable:
		return "wallet unavailable"
	default:
		return fmt.Sprintf("SwitchReason(%d)", uint8(r))
	}
}

type SwitchError struct {
	ChainID uint64
	Reason  SwitchReason
	Err     error
}

func (e *SwitchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("switch to chain %d: %s: %v", e.ChainID, e.Reason, e.Err)
	}
	return fmt.Sprintf("switch to chain %d: %s", e.ChainID, e.Reason)
}

func (e *SwitchError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the switch failure reason of err, if it is one.
func ReasonOf(err error) (SwitchReason, bool) {
	var se *SwitchError
	if errors.As(err, &se) {
		return se.Reason, true
	}
	return 0, false
}
