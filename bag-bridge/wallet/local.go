package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
	"github.com/bag-token/blast-bridge/op-service/dial"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
	txmetrics "github.com/bag-token/blast-bridge/op-service/txmgr/metrics"
)

var (
	ErrNotDialed     = errors.New("chain not dialed")
	ErrChainMismatch = errors.New("endpoint serves a different chain")
)

// ConfirmFn is asked before every chain switch. Returning false rejects the switch.
type ConfirmFn func(ctx context.Context, from, to uint64) (bool, error)

// DialFn connects to an endpoint within timeout. Tests replace it.
type DialFn func(ctx context.Context, log log.Logger, url string, timeout time.Duration) (Conn, error)

// Conn is a connection to one chain.
type Conn interface {
	txmgr.ETHBackend
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

type LocalConfig struct {
	Key *ecdsa.PrivateKey
	// Endpoints maps chain ids to RPC urls.
	Endpoints map[uint64]string
	// InitialChain is the chain the wallet starts on. Zero means none.
	InitialChain uint64
	TxMgr        txmgr.CLIConfig
	DialTimeout  time.Duration
	Confirm      ConfirmFn
	Dial         DialFn
}

type chain struct {
	conn  Conn
	txmgr *txmgr.SimpleTxManager
}

// LocalWallet holds a key and signs locally, publishing through per-chain RPC endpoints
// that are dialed on first use.
type LocalWallet struct {
	log  log.Logger
	cfg  LocalConfig
	addr common.Address
	metr txmetrics.TxMetricer

	mu      sync.Mutex
	current uint64
	chains  map[uint64]*chain
}

var _ Adapter = (*LocalWallet)(nil)

func NewLocalWallet(log log.Logger, metr txmetrics.TxMetricer, cfg LocalConfig) (*LocalWallet, error) {
	if cfg.Key == nil {
		return nil, txmgr.ErrNoKey
	}
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("no chain endpoints configured")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = dial.DefaultDialTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = dialEth
	}
	if metr == nil {
		metr = &txmetrics.NoopTxMetrics{}
	}
	return &LocalWallet{
		log:     log,
		cfg:     cfg,
		addr:    crypto.PubkeyToAddress(cfg.Key.PublicKey),
		metr:    metr,
		current: cfg.InitialChain,
		chains:  make(map[uint64]*chain),
	}, nil
}

func dialEth(ctx context.Context, log log.Logger, url string, timeout time.Duration) (Conn, error) {
	c, err := dial.DialEthClientWithTimeout(ctx, timeout, log, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (w *LocalWallet) Address() common.Address {
	return w.addr
}

func (w *LocalWallet) CurrentChain(_ context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == 0 {
		return 0, &SwitchError{Reason: WalletUnavailable, Err: errors.New("wallet is not on any chain")}
	}
	return w.current, nil
}

func (w *LocalWallet) SwitchToChain(ctx context.Context, chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.cfg.Endpoints[chainID]; !ok {
		return &SwitchError{ChainID: chainID, Reason: ChainUnsupported}
	}
	if w.current == chainID {
		return nil
	}
	if w.cfg.Confirm != nil {
		ok, err := w.cfg.Confirm(ctx, w.current, chainID)
		if err != nil {
			return &SwitchError{ChainID: chainID, Reason: WalletUnavailable, Err: err}
		}
		if !ok {
			return &SwitchError{ChainID: chainID, Reason: SwitchRejected}
		}
	}
	if _, err := w.connect(ctx, chainID); err != nil {
		return &SwitchError{ChainID: chainID, Reason: WalletUnavailable, Err: err}
	}
	w.log.Info("Switched chain", "from", w.current, "to", chainID)
	w.current = chainID
	return nil
}

// Sender returns the transaction manager of chainID, dialing it if needed.
// It does not switch chains: receipts of earlier transactions can be awaited from anywhere.
func (w *LocalWallet) Sender(chainID uint64) (contracts.Sender, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.cfg.Endpoints[chainID]; !ok {
		return nil, &SwitchError{ChainID: chainID, Reason: ChainUnsupported}
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.DialTimeout)
	defer cancel()
	c, err := w.connect(ctx, chainID)
	if err != nil {
		return nil, &SwitchError{ChainID: chainID, Reason: WalletUnavailable, Err: err}
	}
	return c.txmgr, nil
}

// connect must be called with the lock held.
func (w *LocalWallet) connect(ctx context.Context, chainID uint64) (*chain, error) {
	if c, ok := w.chains[chainID]; ok {
		return c, nil
	}
	url := w.cfg.Endpoints[chainID]
	ctx, cancel := context.WithTimeout(ctx, w.cfg.DialTimeout)
	defer cancel()
	conn, err := w.cfg.Dial(ctx, w.log, url, w.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
	}
	remote, err := conn.ChainID(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query chain id of %d endpoint: %w", chainID, err)
	}
	if !remote.IsUint64() || remote.Uint64() != chainID {
		conn.Close()
		return nil, fmt.Errorf("%w: expected %d, got %v", ErrChainMismatch, chainID, remote)
	}
	txCfg, err := txmgr.NewConfig(w.cfg.TxMgr, conn, remote, w.cfg.Key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	mgr, err := txmgr.NewSimpleTxManagerFromConfig(fmt.Sprintf("chain-%d", chainID), w.log, w.metr, txCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c := &chain{conn: conn, txmgr: mgr}
	w.chains[chainID] = c
	return c, nil
}

func (w *LocalWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, c := range w.chains {
		c.conn.Close()
		delete(w.chains, id)
	}
}
