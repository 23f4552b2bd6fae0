package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type OutputRootProof struct {
	Version                  [32]byte
	StateRoot                [32]byte
	MessagePasserStorageRoot [32]byte
	LatestBlockhash          [32]byte
}

// ProvenWithdrawalParameters is the set of arguments of proveWithdrawalTransaction.
type ProvenWithdrawalParameters struct {
	Tx              WithdrawalTransaction
	L2OutputIndex   *big.Int
	OutputRootProof OutputRootProof
	WithdrawalProof [][]byte
}

// ProvenWithdrawal is an entry of the portal's provenWithdrawals mapping.
// A zero Timestamp means the withdrawal is not proven.
type ProvenWithdrawal struct {
	OutputRoot    common.Hash
	Timestamp     uint64
	L2OutputIndex *big.Int
	RequestID     *big.Int
}

func (p ProvenWithdrawal) Proven() bool {
	return p.Timestamp != 0
}

// Portal is the L1 OptimismPortal, as deployed by Blast.
type Portal struct {
	caller ethereum.ContractCaller
	addr   common.Address
}

func NewPortal(caller ethereum.ContractCaller, addr common.Address) *Portal {
	return &Portal{caller: caller, addr: addr}
}

func (p *Portal) Addr() common.Address {
	return p.addr
}

func (p *Portal) ProveWithdrawalTransaction(ctx context.Context, sender Sender, params ProvenWithdrawalParameters) (*TxHandle, error) {
	data, err := proveWithdrawalFn.EncodeArgs(&params.Tx, params.L2OutputIndex, &params.OutputRootProof, params.WithdrawalProof)
	if err != nil {
		return nil, fmt.Errorf("failed to pack proveWithdrawalTransaction: %w", err)
	}
	return send(ctx, sender, p.addr, data)
}

// FinalizeWithdrawalTransaction relays a proven withdrawal. hintID selects the yield checkpoint
// of an ETH withdrawal and is zero for everything else.
func (p *Portal) FinalizeWithdrawalTransaction(ctx context.Context, sender Sender, hintID *big.Int, tx WithdrawalTransaction) (*TxHandle, error) {
	data, err := finalizeWithdrawalFn.EncodeArgs(hintID, &tx)
	if err != nil {
		return nil, fmt.Errorf("failed to pack finalizeWithdrawalTransaction: %w", err)
	}
	return send(ctx, sender, p.addr, data)
}

func (p *Portal) ProvenWithdrawal(ctx context.Context, withdrawalHash common.Hash) (ProvenWithdrawal, error) {
	data, err := provenWithdrawalsFn.EncodeArgs(withdrawalHash)
	if err != nil {
		return ProvenWithdrawal{}, fmt.Errorf("failed to pack provenWithdrawals: %w", err)
	}
	out, err := call(ctx, p.caller, p.addr, data)
	if err != nil {
		return ProvenWithdrawal{}, fmt.Errorf("failed to call provenWithdrawals: %w", err)
	}
	var (
		res       ProvenWithdrawal
		timestamp *big.Int
	)
	if err := provenWithdrawalsFn.DecodeReturns(out, &res.OutputRoot, &timestamp, &res.L2OutputIndex, &res.RequestID); err != nil {
		return ProvenWithdrawal{}, fmt.Errorf("failed to decode provenWithdrawals: %w", err)
	}
	if !timestamp.IsUint64() {
		return ProvenWithdrawal{}, fmt.Errorf("proven timestamp %v out of range", timestamp)
	}
	res.Timestamp = timestamp.Uint64()
	return res, nil
}

func (p *Portal) FinalizedWithdrawal(ctx context.Context, withdrawalHash common.Hash) (bool, error) {
	data, err := finalizedWithdrawalsFn.EncodeArgs(withdrawalHash)
	if err != nil {
		return false, fmt.Errorf("failed to pack finalizedWithdrawals: %w", err)
	}
	out, err := call(ctx, p.caller, p.addr, data)
	if err != nil {
		return false, fmt.Errorf("failed to call finalizedWithdrawals: %w", err)
	}
	var finalized bool
	if err := finalizedWithdrawalsFn.DecodeReturns(out, &finalized); err != nil {
		return false, fmt.Errorf("failed to decode finalizedWithdrawals: %w", err)
	}
	return finalized, nil
}
