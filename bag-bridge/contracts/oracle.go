package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type OutputProposal struct {
	OutputRoot    common.Hash
	Timestamp     *big.Int
	L2BlockNumber *big.Int
}

// OutputOracle is the L1 L2OutputOracle holding the proposed L2 state roots.
type OutputOracle struct {
	caller ethereum.ContractCaller
	addr   common.Address
}

func NewOutputOracle(caller ethereum.ContractCaller, addr common.Address) *OutputOracle {
	return &OutputOracle{caller: caller, addr: addr}
}

func (o *OutputOracle) Addr() common.Address {
	return o.addr
}

// LatestBlockNumber is the L2 block of the most recent output.
func (o *OutputOracle) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return o.readUint64(ctx, "latestBlockNumber", mustEncode(latestBlockNumberFn.EncodeArgs()), latestBlockNumberFn.DecodeReturns)
}

func (o *OutputOracle) FinalizationPeriodSeconds(ctx context.Context) (uint64, error) {
	return o.readUint64(ctx, "FINALIZATION_PERIOD_SECONDS", mustEncode(finalizationPeriodFn.EncodeArgs()), finalizationPeriodFn.DecodeReturns)
}

// GetL2OutputIndexAfter is the index of the first output covering l2BlockNumber.
func (o *OutputOracle) GetL2OutputIndexAfter(ctx context.Context, l2BlockNumber uint64) (*big.Int, error) {
	data, err := getL2OutputIndexAfterFn.EncodeArgs(new(big.Int).SetUint64(l2BlockNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getL2OutputIndexAfter: %w", err)
	}
	out, err := call(ctx, o.caller, o.addr, data)
	if err != nil {
		return nil, fmt.Errorf("failed to call getL2OutputIndexAfter: %w", err)
	}
	var index *big.Int
	if err := getL2OutputIndexAfterFn.DecodeReturns(out, &index); err != nil {
		return nil, fmt.Errorf("failed to decode getL2OutputIndexAfter: %w", err)
	}
	return index, nil
}

func (o *OutputOracle) GetL2Output(ctx context.Context, index *big.Int) (OutputProposal, error) {
	data, err := getL2OutputFn.EncodeArgs(index)
	if err != nil {
		return OutputProposal{}, fmt.Errorf("failed to pack getL2Output: %w", err)
	}
	out, err := call(ctx, o.caller, o.addr, data)
	if err != nil {
		return OutputProposal{}, fmt.Errorf("failed to call getL2Output: %w", err)
	}
	var proposal OutputProposal
	if err := getL2OutputFn.DecodeReturns(out, &proposal.OutputRoot, &proposal.Timestamp, &proposal.L2BlockNumber); err != nil {
		return OutputProposal{}, fmt.Errorf("failed to decode getL2Output: %w", err)
	}
	return proposal, nil
}

func (o *OutputOracle) readUint64(ctx context.Context, name string, data []byte, decode func([]byte, ...any) error) (uint64, error) {
	out, err := call(ctx, o.caller, o.addr, data)
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", name, err)
	}
	var v *big.Int
	if err := decode(out, &v); err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s value %v out of range", name, v)
	}
	return v.Uint64(), nil
}

func mustEncode(data []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return data
}
