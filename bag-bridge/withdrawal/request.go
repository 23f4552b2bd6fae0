package withdrawal

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/bag-token/blast-bridge/op-service/eth"
)

var hashFormat = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// WithdrawalRequest is one withdrawal of tokens from the source chain to the destination chain.
// Controller operations take a request by value and return the updated value.
type WithdrawalRequest struct {
	ID               uuid.UUID       `json:"id"`
	Amount           eth.TokenAmount `json:"amount"`
	SourceChain      uint64          `json:"sourceChain"`
	DestinationChain uint64          `json:"destinationChain"`
	// WithdrawalHash is the hash of the source chain transaction that initiated the withdrawal.
	WithdrawalHash common.Hash `json:"withdrawalHash"`
	State          State       `json:"state"`
	LastError      string      `json:"lastError,omitempty"`
	PendingTx      *PendingTx  `json:"pendingTx,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// PendingTx is a published transaction whose confirmation was not observed.
type PendingTx struct {
	Op      string      `json:"op"`
	Hash    common.Hash `json:"hash"`
	ChainID uint64      `json:"chainId"`
}

// NewRequest validates a decimal token amount and returns a request that has not started.
func NewRequest(amount string, sourceChain, destinationChain uint64) (WithdrawalRequest, error) {
	v, err := eth.ParseTokenAmount(amount)
	if err != nil {
		return WithdrawalRequest{}, newError("new", ErrInvalidInput, err)
	}
	if v.IsZero() {
		return WithdrawalRequest{}, newError("new", ErrInvalidInput, fmt.Errorf("amount must be positive"))
	}
	if err := checkChains(sourceChain, destinationChain); err != nil {
		return WithdrawalRequest{}, newError("new", ErrInvalidInput, err)
	}
	now := time.Now()
	return WithdrawalRequest{
		ID:               uuid.New(),
		Amount:           v,
		SourceChain:      sourceChain,
		DestinationChain: destinationChain,
		State:            NotStarted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ImportRequest returns a request for a withdrawal that was initiated elsewhere.
func ImportRequest(hash string, amount eth.TokenAmount, sourceChain, destinationChain uint64) (WithdrawalRequest, error) {
	h, err := ParseWithdrawalHash(hash)
	if err != nil {
		return WithdrawalRequest{}, newError("import", ErrInvalidInput, err)
	}
	if err := checkChains(sourceChain, destinationChain); err != nil {
		return WithdrawalRequest{}, newError("import", ErrInvalidInput, err)
	}
	now := time.Now()
	return WithdrawalRequest{
		ID:               uuid.New(),
		Amount:           amount,
		SourceChain:      sourceChain,
		DestinationChain: destinationChain,
		WithdrawalHash:   h,
		State:            Initiated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ParseWithdrawalHash accepts exactly 0x followed by 64 hex digits.
func ParseWithdrawalHash(s string) (common.Hash, error) {
	if !hashFormat.MatchString(s) {
		return common.Hash{}, fmt.Errorf("malformed withdrawal hash %q", s)
	}
	return common.HexToHash(s), nil
}

func ValidWithdrawalHash(s string) bool {
	return hashFormat.MatchString(s)
}

func checkChains(source, destination uint64) error {
	if source == 0 || destination == 0 {
		return fmt.Errorf("chain ids must be set")
	}
	if source == destination {
		return fmt.Errorf("source and destination chain are both %d", source)
	}
	return nil
}

// Validate checks the invariants of a request before it is acted upon.
func (r WithdrawalRequest) Validate() error {
	if r.Amount.IsZero() {
		return fmt.Errorf("amount must be positive")
	}
	if err := checkChains(r.SourceChain, r.DestinationChain); err != nil {
		return err
	}
	hasHash := r.WithdrawalHash != (common.Hash{})
	if hasHash != r.State.HasHash() && r.State != Failed {
		return fmt.Errorf("withdrawal hash set=%v in state %s", hasHash, r.State)
	}
	return nil
}

func (r WithdrawalRequest) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s BAG %s", r.ID, r.Amount, r.State)
	if r.WithdrawalHash != (common.Hash{}) {
		fmt.Fprintf(&b, " %s", r.WithdrawalHash)
	}
	return b.String()
}
