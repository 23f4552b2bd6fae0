package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/bag-token/blast-bridge/op-service/eth"
)

type ERC20 struct {
	caller ethereum.ContractCaller
	addr   common.Address
}

func NewERC20(caller ethereum.ContractCaller, addr common.Address) *ERC20 {
	return &ERC20{caller: caller, addr: addr}
}

func (t *ERC20) Addr() common.Address {
	return t.addr
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (eth.TokenAmount, error) {
	data, err := allowanceFn.EncodeArgs(owner, spender)
	if err != nil {
		return eth.TokenAmount{}, fmt.Errorf("failed to pack allowance: %w", err)
	}
	return t.readAmount(ctx, allowanceFn, data)
}

func (t *ERC20) BalanceOf(ctx context.Context, owner common.Address) (eth.TokenAmount, error) {
	data, err := balanceOfFn.EncodeArgs(owner)
	if err != nil {
		return eth.TokenAmount{}, fmt.Errorf("failed to pack balanceOf: %w", err)
	}
	return t.readAmount(ctx, balanceOfFn, data)
}

func (t *ERC20) readAmount(ctx context.Context, fn *w3.Func, data []byte) (eth.TokenAmount, error) {
	out, err := call(ctx, t.caller, t.addr, data)
	if err != nil {
		return eth.TokenAmount{}, fmt.Errorf("failed to call %s on %s: %w", fn.Signature, t.addr, err)
	}
	var v *big.Int
	if err := fn.DecodeReturns(out, &v); err != nil {
		return eth.TokenAmount{}, fmt.Errorf("failed to decode %s: %w", fn.Signature, err)
	}
	return eth.TokenAmountFromBig(v)
}

// Approve lets spender move amount of the token on behalf of the sender.
func (t *ERC20) Approve(ctx context.Context, sender Sender, spender common.Address, amount eth.TokenAmount) (*TxHandle, error) {
	data, err := approveFn.EncodeArgs(spender, amount.ToBig())
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve: %w", err)
	}
	return send(ctx, sender, t.addr, data)
}
