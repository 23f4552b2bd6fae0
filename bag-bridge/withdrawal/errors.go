package withdrawal

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrWalletUnavailable     = errors.New("wallet unavailable")
	ErrChainSwitchRejected   = errors.New("chain switch rejected")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrStaleState            = errors.New("stale state")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrOracleUnavailable     = errors.New("oracle unavailable")
	ErrOperationInFlight     = errors.New("operation in flight")
)

var kinds = []error{
	ErrInvalidInput,
	ErrWalletUnavailable,
	ErrChainSwitchRejected,
	ErrInsufficientAllowance,
	ErrInsufficientBalance,
	ErrStaleState,
	ErrTransactionReverted,
	ErrOracleUnavailable,
	ErrOperationInFlight,
}

// Error is returned by every controller operation.
type Error struct {
	Op   string
	Kind error
	// Observed is the live state found when Kind is ErrStaleState.
	Observed State
	Expected []State
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if errors.Is(e.Kind, ErrStaleState) {
		fmt.Fprintf(&b, ": observed %s", e.Observed)
		if len(e.Expected) > 0 {
			fmt.Fprintf(&b, ", expected %v", e.Expected)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of err, or nil if it has none.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func newError(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func staleError(op string, observed State, expected ...State) *Error {
	return &Error{Op: op, Kind: ErrStaleState, Observed: observed, Expected: expected}
}
