package txmgr

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	hdwallet "github.com/ethereum-optimism/go-ethereum-hdwallet"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerFn signs a transaction for the given address.
type SignerFn func(ctx context.Context, address common.Address, tx *types.Transaction) (*types.Transaction, error)

var ErrNoKey = errors.New("no private key or mnemonic configured")

// PrivateKeyFromConfig loads the signing key from a hex private key or a mnemonic and HD path.
func PrivateKeyFromConfig(cfg CLIConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case cfg.PrivateKey != "" && cfg.Mnemonic != "":
		return nil, errors.New("cannot specify both a private key and a mnemonic")
	case cfg.PrivateKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return key, nil
	case cfg.Mnemonic != "":
		w, err := hdwallet.NewFromMnemonic(cfg.Mnemonic)
		if err != nil {
			return nil, fmt.Errorf("invalid mnemonic: %w", err)
		}
		hdPath := cfg.HDPath
		if hdPath == "" {
			hdPath = DefaultHDPath
		}
		if _, err := accounts.ParseDerivationPath(hdPath); err != nil {
			return nil, fmt.Errorf("invalid hd path %q: %w", hdPath, err)
		}
		account := accounts.Account{URL: accounts.URL{Path: hdPath}}
		key, err := w.PrivateKey(account)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key of path %s: %w", hdPath, err)
		}
		return key, nil
	default:
		return nil, ErrNoKey
	}
}

// PrivateKeySignerFn signs with key, for the given chain, and refuses any other sender.
func PrivateKeySignerFn(key *ecdsa.PrivateKey, chainID *big.Int) SignerFn {
	from := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(chainID)
	return func(_ context.Context, address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != from {
			return nil, fmt.Errorf("not authorized to sign for %s", address)
		}
		return types.SignTx(tx, signer, key)
	}
}
