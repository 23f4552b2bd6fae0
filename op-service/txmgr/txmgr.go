package txmgr

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/bag-token/blast-bridge/op-service/txmgr/metrics"
)

var ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")

// TxCandidate is a transaction to craft, sign and publish.
type TxCandidate struct {
	// TxData is the transaction calldata.
	TxData []byte
	// To is the recipient. Contract creation is not supported.
	To *common.Address
	// GasLimit is estimated when left at 0.
	GasLimit uint64
	Value    *big.Int
}

// ETHBackend is the set of methods the transaction manager uses to interact with the chain.
type ETHBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type Config struct {
	Backend ETHBackend
	ChainID *big.Int
	From    common.Address
	Signer  SignerFn

	NumConfirmations     uint64
	FeeLimitMultiplier   uint64
	MinTipCap            *big.Int
	MinBaseFee           *big.Int
	NetworkTimeout       time.Duration
	TxSendTimeout        time.Duration
	ReceiptQueryInterval time.Duration
}

// NewConfig builds a config signing with key on the given chain.
func NewConfig(cfg CLIConfig, backend ETHBackend, chainID *big.Int, key *ecdsa.PrivateKey) (*Config, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Config{
		Backend:              backend,
		ChainID:              chainID,
		From:                 crypto.PubkeyToAddress(key.PublicKey),
		Signer:               PrivateKeySignerFn(key, chainID),
		NumConfirmations:     cfg.NumConfirmations,
		FeeLimitMultiplier:   cfg.FeeLimitMultiplier,
		MinTipCap:            gweiToWei(cfg.MinTipCapGwei),
		MinBaseFee:           gweiToWei(cfg.MinBaseFeeGwei),
		NetworkTimeout:       cfg.NetworkTimeout,
		TxSendTimeout:        cfg.TxSendTimeout,
		ReceiptQueryInterval: cfg.ReceiptQueryInterval,
	}, nil
}

func (m *Config) Check() error {
	if m.Backend == nil {
		return errors.New("must provide the Backend")
	}
	if m.ChainID == nil {
		return errors.New("must provide the ChainID")
	}
	if m.Signer == nil {
		return errors.New("must provide the Signer")
	}
	if m.NumConfirmations == 0 {
		return errors.New("NumConfirmations must not be 0")
	}
	if m.FeeLimitMultiplier == 0 {
		return errors.New("must provide FeeLimitMultiplier")
	}
	if m.ReceiptQueryInterval == 0 {
		return errors.New("must provide ReceiptQueryInterval")
	}
	if m.NetworkTimeout == 0 {
		return errors.New("must provide NetworkTimeout")
	}
	return nil
}

// SimpleTxManager publishes one transaction at a time and waits for it to confirm.
// Publishing and waiting are separate steps, so a caller can persist the hash of a
// published transaction and resume waiting for it after an interruption.
type SimpleTxManager struct {
	name    string
	cfg     *Config
	l       log.Logger
	metr    metrics.TxMetricer
	nonceMu sync.Mutex
}

func NewSimpleTxManagerFromConfig(name string, l log.Logger, m metrics.TxMetricer, cfg *Config) (*SimpleTxManager, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if m == nil {
		m = &metrics.NoopTxMetrics{}
	}
	return &SimpleTxManager{
		name: name,
		cfg:  cfg,
		l:    l.New("service", name),
		metr: m,
	}, nil
}

func (m *SimpleTxManager) From() common.Address {
	return m.cfg.From
}

func (m *SimpleTxManager) ChainID() *big.Int {
	return new(big.Int).Set(m.cfg.ChainID)
}

// Send publishes the candidate and waits for it to confirm.
func (m *SimpleTxManager) Send(ctx context.Context, candidate TxCandidate) (*types.Receipt, error) {
	tx, err := m.Publish(ctx, candidate)
	if err != nil {
		return nil, err
	}
	return m.WaitMined(ctx, tx.Hash())
}

// Publish crafts, signs and broadcasts the candidate. It does not wait for inclusion.
func (m *SimpleTxManager) Publish(ctx context.Context, candidate TxCandidate) (*types.Transaction, error) {
	if candidate.To == nil {
		return nil, errors.New("contract creation is not supported")
	}
	m.nonceMu.Lock()
	defer m.nonceMu.Unlock()

	tx, err := m.craftTx(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to create the tx: %w", err)
	}
	cCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	defer cancel()
	if err := m.cfg.Backend.SendTransaction(cCtx, tx); err != nil {
		m.metr.TxPublished("send_error")
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	m.metr.TxPublished("")
	m.metr.RecordNonce(tx.Nonce())
	m.l.Info("Transaction published", "tx", tx.Hash(), "nonce", tx.Nonce(), "to", candidate.To,
		"gasTipCap", tx.GasTipCap(), "gasFeeCap", tx.GasFeeCap(), "gasLimit", tx.Gas())
	return tx, nil
}

func (m *SimpleTxManager) craftTx(ctx context.Context, candidate TxCandidate) (*types.Transaction, error) {
	gasTipCap, gasFeeCap, err := m.suggestGasPriceCaps(ctx)
	if err != nil {
		return nil, err
	}

	cCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	defer cancel()
	nonce, err := m.cfg.Backend.PendingNonceAt(cCtx, m.cfg.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	value := candidate.Value
	if value == nil {
		value = new(big.Int)
	}
	gasLimit := candidate.GasLimit
	if gasLimit == 0 {
		cCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
		defer cancel()
		gasLimit, err = m.cfg.Backend.EstimateGas(cCtx, ethereum.CallMsg{
			From:      m.cfg.From,
			To:        candidate.To,
			GasTipCap: gasTipCap,
			GasFeeCap: gasFeeCap,
			Value:     value,
			Data:      candidate.TxData,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	txMessage := &types.DynamicFeeTx{
		ChainID:   m.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        candidate.To,
		Value:     value,
		Data:      candidate.TxData,
	}
	return m.cfg.Signer(ctx, m.cfg.From, types.NewTx(txMessage))
}

// suggestGasPriceCaps returns the tip cap and a fee cap of tip + FeeLimitMultiplier * baseFee,
// honouring the configured floors.
func (m *SimpleTxManager) suggestGasPriceCaps(ctx context.Context) (*big.Int, *big.Int, error) {
	cCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	defer cancel()
	tip, err := m.cfg.Backend.SuggestGasTipCap(cCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch the suggested gas tip cap: %w", err)
	}
	head, err := m.cfg.Backend.HeaderByNumber(cCtx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch the suggested base fee: %w", err)
	}
	if head.BaseFee == nil {
		return nil, nil, errors.New("txmgr does not support pre-london blocks that do not have a base fee")
	}
	baseFee := head.BaseFee
	if m.cfg.MinTipCap != nil && tip.Cmp(m.cfg.MinTipCap) < 0 {
		m.l.Debug("Enforcing min tip cap", "minTipCap", m.cfg.MinTipCap, "origTipCap", tip)
		tip = new(big.Int).Set(m.cfg.MinTipCap)
	}
	if m.cfg.MinBaseFee != nil && baseFee.Cmp(m.cfg.MinBaseFee) < 0 {
		m.l.Debug("Enforcing min base fee", "minBaseFee", m.cfg.MinBaseFee, "origBaseFee", baseFee)
		baseFee = new(big.Int).Set(m.cfg.MinBaseFee)
	}
	m.metr.RecordTipCap(tip)
	m.metr.RecordBaseFee(baseFee)
	feeCap := new(big.Int).Mul(baseFee, new(big.Int).SetUint64(m.cfg.FeeLimitMultiplier))
	feeCap.Add(feeCap, tip)
	return tip, feeCap, nil
}

// WaitMined polls for the receipt of txHash until it has the configured number of confirmations.
// It returns ErrConfirmationTimeout after TxSendTimeout, if set, and the context error on cancellation.
// Reverted receipts are returned without error, callers check the status.
func (m *SimpleTxManager) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.cfg.TxSendTimeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, m.cfg.TxSendTimeout, ErrConfirmationTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(m.cfg.ReceiptQueryInterval)
	defer ticker.Stop()
	for {
		receipt, err := m.queryReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			m.l.Warn("Receipt retrieval failed", "tx", txHash, "err", err)
		} else if receipt != nil {
			m.metr.TxConfirmed(receipt)
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); errors.Is(cause, ErrConfirmationTimeout) {
				return nil, fmt.Errorf("%w: %s", ErrConfirmationTimeout, txHash)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// queryReceipt returns the receipt once it is buried under enough blocks, nil otherwise.
func (m *SimpleTxManager) queryReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	cCtx, cancel := context.WithTimeout(ctx, m.cfg.NetworkTimeout)
	defer cancel()
	receipt, err := m.cfg.Backend.TransactionReceipt(cCtx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil || receipt.BlockNumber == nil {
		return nil, ethereum.NotFound
	}
	tip, err := m.cfg.Backend.BlockNumber(cCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	txHeight := receipt.BlockNumber.Uint64()
	if txHeight+m.cfg.NumConfirmations <= tip+1 {
		m.l.Debug("Transaction confirmed", "tx", txHash, "block", txHeight, "status", receipt.Status)
		return receipt, nil
	}
	m.l.Debug("Transaction not yet confirmed", "tx", txHash, "block", txHeight, "tip", tip,
		"confirmations", tip+1-txHeight, "required", m.cfg.NumConfirmations)
	return nil, nil
}

func gweiToWei(gwei float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(params.GWei)).Int(nil)
	return wei
}
