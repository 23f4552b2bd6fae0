package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/bag-token/blast-bridge/op-service/eth"
)

// BridgeConfig describes one token pair over the L2 standard bridge.
type BridgeConfig struct {
	Bridge      common.Address
	LocalToken  common.Address
	RemoteToken common.Address
	MinGasLimit uint32
	ExtraData   []byte
}

// TokenBridge withdraws one ERC-20 token over the L2 standard bridge.
type TokenBridge struct {
	cfg   BridgeConfig
	token *ERC20
}

func NewTokenBridge(caller ethereum.ContractCaller, cfg BridgeConfig) *TokenBridge {
	return &TokenBridge{cfg: cfg, token: NewERC20(caller, cfg.LocalToken)}
}

func (b *TokenBridge) Config() BridgeConfig {
	return b.cfg
}

// Allowance is what owner allows the bridge to spend.
func (b *TokenBridge) Allowance(ctx context.Context, owner common.Address) (eth.TokenAmount, error) {
	return b.token.Allowance(ctx, owner, b.cfg.Bridge)
}

func (b *TokenBridge) BalanceOf(ctx context.Context, owner common.Address) (eth.TokenAmount, error) {
	return b.token.BalanceOf(ctx, owner)
}

// Approve allows the bridge to spend amount of the local token.
func (b *TokenBridge) Approve(ctx context.Context, sender Sender, amount eth.TokenAmount) (*TxHandle, error) {
	return b.token.Approve(ctx, sender, b.cfg.Bridge, amount)
}

// BridgeERC20 starts a withdrawal of amount to the sender's address on the other chain.
func (b *TokenBridge) BridgeERC20(ctx context.Context, sender Sender, amount eth.TokenAmount) (*TxHandle, error) {
	extraData := b.cfg.ExtraData
	if extraData == nil {
		extraData = []byte{}
	}
	data, err := bridgeERC20Fn.EncodeArgs(b.cfg.LocalToken, b.cfg.RemoteToken, amount.ToBig(), b.cfg.MinGasLimit, extraData)
	if err != nil {
		return nil, fmt.Errorf("failed to pack bridgeERC20: %w", err)
	}
	return send(ctx, sender, b.cfg.Bridge, data)
}
