package txmgr

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/bag-token/blast-bridge/op-service/testlog"
	"github.com/bag-token/blast-bridge/op-service/txmgr/metrics"
)

const (
	testMnemonic = "test test test test test test test test test test test junk"
	testKeyHex   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddrHex  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type mockBackend struct {
	mu       sync.Mutex
	head     uint64
	nonce    uint64
	baseFee  *big.Int
	tip      *big.Int
	gas      uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	sendErr  error
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		head:     100,
		baseFee:  big.NewInt(1000),
		tip:      big.NewInt(10),
		gas:      50_000,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (b *mockBackend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head, nil
}

func (b *mockBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(b.head), BaseFee: b.baseFee}, nil
}

func (b *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *mockBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return b.tip, nil
}

func (b *mockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return b.gas, nil
}

func (b *mockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	b.nonce++
	return nil
}

func (b *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// mine includes tx at the current head, and advances the head by extra blocks.
func (b *mockBackend) mine(txHash common.Hash, status uint64, extra uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head++
	b.receipts[txHash] = &types.Receipt{
		TxHash:      txHash,
		Status:      status,
		BlockNumber: new(big.Int).SetUint64(b.head),
		GasUsed:     21_000,
	}
	b.head += extra
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return key
}

func newTestTxMgr(t *testing.T, backend *mockBackend, mod func(cfg *CLIConfig)) *SimpleTxManager {
	cliCfg := NewCLIConfig(DefaultBridgeFlagValues)
	cliCfg.ReceiptQueryInterval = 5 * time.Millisecond
	if mod != nil {
		mod(&cliCfg)
	}
	cfg, err := NewConfig(cliCfg, backend, big.NewInt(81457), testKey(t))
	require.NoError(t, err)
	m, err := NewSimpleTxManagerFromConfig("test", testlog.Logger(t, log.LevelDebug), &metrics.NoopTxMetrics{}, cfg)
	require.NoError(t, err)
	return m
}

func TestPrivateKeyFromConfig(t *testing.T) {
	t.Run("private key", func(t *testing.T) {
		key, err := PrivateKeyFromConfig(CLIConfig{PrivateKey: "0x" + testKeyHex})
		require.NoError(t, err)
		require.Equal(t, testAddrHex, crypto.PubkeyToAddress(key.PublicKey).Hex())
	})
	t.Run("mnemonic", func(t *testing.T) {
		key, err := PrivateKeyFromConfig(CLIConfig{Mnemonic: testMnemonic, HDPath: DefaultHDPath})
		require.NoError(t, err)
		require.Equal(t, testAddrHex, crypto.PubkeyToAddress(key.PublicKey).Hex())
	})
	t.Run("none", func(t *testing.T) {
		_, err := PrivateKeyFromConfig(CLIConfig{})
		require.ErrorIs(t, err, ErrNoKey)
	})
	t.Run("bad key", func(t *testing.T) {
		_, err := PrivateKeyFromConfig(CLIConfig{PrivateKey: "0xzz"})
		require.Error(t, err)
	})
	t.Run("bad path", func(t *testing.T) {
		_, err := PrivateKeyFromConfig(CLIConfig{Mnemonic: testMnemonic, HDPath: "not/a/path"})
		require.Error(t, err)
	})
}

func TestPublish(t *testing.T) {
	backend := newMockBackend()
	backend.nonce = 7
	m := newTestTxMgr(t, backend, nil)
	to := common.HexToAddress("0x4200000000000000000000000000000000000010")

	tx, err := m.Publish(context.Background(), TxCandidate{TxData: []byte{0x01, 0x02}, To: &to})
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	require.Equal(t, uint64(7), tx.Nonce())
	require.Equal(t, uint64(50_000), tx.Gas())
	require.Equal(t, big.NewInt(10), tx.GasTipCap())
	require.Equal(t, big.NewInt(10+5*1000), tx.GasFeeCap())
	require.Equal(t, big.NewInt(81457), tx.ChainId())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(81457)), tx)
	require.NoError(t, err)
	require.Equal(t, testAddrHex, sender.Hex())
	require.Equal(t, testAddrHex, m.From().Hex())
}

func TestPublishRespectsFeeFloorsAndGasLimit(t *testing.T) {
	backend := newMockBackend()
	m := newTestTxMgr(t, backend, func(cfg *CLIConfig) {
		cfg.MinTipCapGwei = 1
		cfg.MinBaseFeeGwei = 2
	})
	to := common.Address{0xaa}
	tx, err := m.Publish(context.Background(), TxCandidate{To: &to, GasLimit: 123_456})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000_000), tx.GasTipCap())
	require.Equal(t, big.NewInt(1_000_000_000+5*2_000_000_000), tx.GasFeeCap())
	require.Equal(t, uint64(123_456), tx.Gas())
}

func TestPublishErrors(t *testing.T) {
	backend := newMockBackend()
	m := newTestTxMgr(t, backend, nil)
	_, err := m.Publish(context.Background(), TxCandidate{})
	require.ErrorContains(t, err, "contract creation")

	backend.sendErr = errors.New("insufficient funds")
	to := common.Address{0xaa}
	_, err = m.Publish(context.Background(), TxCandidate{To: &to})
	require.ErrorContains(t, err, "insufficient funds")
}

func TestWaitMinedWaitsForConfirmations(t *testing.T) {
	backend := newMockBackend()
	m := newTestTxMgr(t, backend, func(cfg *CLIConfig) { cfg.NumConfirmations = 3 })
	to := common.Address{0xaa}
	tx, err := m.Publish(context.Background(), TxCandidate{To: &to})
	require.NoError(t, err)

	done := make(chan *types.Receipt, 1)
	go func() {
		r, err := m.WaitMined(context.Background(), tx.Hash())
		if err == nil {
			done <- r
		}
		close(done)
	}()

	backend.mine(tx.Hash(), types.ReceiptStatusSuccessful, 1)
	select {
	case <-done:
		t.Fatal("returned before enough confirmations")
	case <-time.After(50 * time.Millisecond):
	}
	backend.mu.Lock()
	backend.head++
	backend.mu.Unlock()

	select {
	case r, ok := <-done:
		require.True(t, ok)
		require.Equal(t, tx.Hash(), r.TxHash)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for confirmation")
	}
}

func TestWaitMinedReturnsRevertedReceipt(t *testing.T) {
	backend := newMockBackend()
	m := newTestTxMgr(t, backend, nil)
	hash := common.Hash{0x01}
	backend.mine(hash, types.ReceiptStatusFailed, 0)
	r, err := m.WaitMined(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusFailed, r.Status)
}

func TestWaitMinedTimeout(t *testing.T) {
	backend := newMockBackend()
	m := newTestTxMgr(t, backend, func(cfg *CLIConfig) { cfg.TxSendTimeout = 20 * time.Millisecond })
	_, err := m.WaitMined(context.Background(), common.Hash{0x02})
	require.ErrorIs(t, err, ErrConfirmationTimeout)
}

func TestWaitMinedCancelled(t *testing.T) {
	backend := newMockBackend()
	m := newTestTxMgr(t, backend, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.WaitMined(ctx, common.Hash{0x03})
	require.ErrorIs(t, err, context.Canceled)
}
