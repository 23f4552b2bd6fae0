package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/bag-token/blast-bridge/op-service/dial"
	"github.com/bag-token/blast-bridge/op-service/testlog"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

const (
	l1ChainID = 1
	l2ChainID = 81457
)

type fakeConn struct {
	chainID uint64
	closed  bool
}

func (c *fakeConn) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(c.chainID), nil
}
func (c *fakeConn) Close() { c.closed = true }
func (c *fakeConn) BlockNumber(context.Context) (uint64, error) {
	return 1, nil
}
func (c *fakeConn) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1)}, nil
}
func (c *fakeConn) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}
func (c *fakeConn) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
func (c *fakeConn) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (c *fakeConn) SendTransaction(context.Context, *types.Transaction) error {
	return nil
}
func (c *fakeConn) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

type dialer struct {
	served   map[string]uint64
	conns    map[string]*fakeConn
	dials    int
	timeouts []time.Duration
}

func (d *dialer) dial(_ context.Context, _ log.Logger, url string, timeout time.Duration) (Conn, error) {
	d.dials++
	d.timeouts = append(d.timeouts, timeout)
	id, ok := d.served[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{chainID: id}
	d.conns[url] = c
	return c, nil
}

func newTestWallet(t *testing.T, d *dialer, confirm ConfirmFn) *LocalWallet {
	return newTestWalletWithConfig(t, LocalConfig{Confirm: confirm, Dial: d.dial})
}

func newTestWalletWithConfig(t *testing.T, cfg LocalConfig) *LocalWallet {
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	cfg.Key = key
	cfg.Endpoints = map[uint64]string{l1ChainID: "l1", l2ChainID: "l2"}
	cfg.InitialChain = l2ChainID
	cfg.TxMgr = txmgr.NewCLIConfig(txmgr.DefaultBridgeFlagValues)
	w, err := NewLocalWallet(testlog.Logger(t, log.LevelInfo), nil, cfg)
	require.NoError(t, err)
	return w
}

func TestDialTimeout(t *testing.T) {
	d := newDialer()
	w := newTestWalletWithConfig(t, LocalConfig{Dial: d.dial, DialTimeout: 3 * time.Second})
	require.NoError(t, w.SwitchToChain(context.Background(), l1ChainID))
	require.Equal(t, []time.Duration{3 * time.Second}, d.timeouts)

	d = newDialer()
	w = newTestWalletWithConfig(t, LocalConfig{Dial: d.dial})
	_, err := w.Sender(l1ChainID)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{dial.DefaultDialTimeout}, d.timeouts)
}

func newDialer() *dialer {
	return &dialer{served: map[string]uint64{"l1": l1ChainID, "l2": l2ChainID}, conns: map[string]*fakeConn{}}
}

func TestLocalWalletAddress(t *testing.T) {
	w := newTestWallet(t, newDialer(), nil)
	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Address())
}

func TestSwitchToChain(t *testing.T) {
	ctx := context.Background()
	d := newDialer()
	w := newTestWallet(t, d, nil)

	current, err := w.CurrentChain(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(l2ChainID), current)

	require.NoError(t, w.SwitchToChain(ctx, l1ChainID))
	current, err = w.CurrentChain(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(l1ChainID), current)

	// already there, no redial
	require.NoError(t, w.SwitchToChain(ctx, l1ChainID))
	require.Equal(t, 1, d.dials)

	sender, err := w.Sender(l1ChainID)
	require.NoError(t, err)
	require.Equal(t, w.Address(), sender.From())
	require.Equal(t, int64(l1ChainID), sender.ChainID().Int64())
	require.Equal(t, 1, d.dials)

	w.Close()
	require.True(t, d.conns["l1"].closed)
}

func TestSwitchUnsupportedChain(t *testing.T) {
	w := newTestWallet(t, newDialer(), nil)
	err := w.SwitchToChain(context.Background(), 10)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	require.Equal(t, ChainUnsupported, reason)

	_, err = w.Sender(10)
	reason, ok = ReasonOf(err)
	require.True(t, ok)
	require.Equal(t, ChainUnsupported, reason)
}

func TestSwitchRejected(t *testing.T) {
	var asked [][2]uint64
	w := newTestWallet(t, newDialer(), func(_ context.Context, from, to uint64) (bool, error) {
		asked = append(asked, [2]uint64{from, to})
		return false, nil
	})
	err := w.SwitchToChain(context.Background(), l1ChainID)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	require.Equal(t, SwitchRejected, reason)
	require.Equal(t, [][2]uint64{{l2ChainID, l1ChainID}}, asked)

	current, err := w.CurrentChain(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(l2ChainID), current)

	// staying put needs no confirmation
	require.NoError(t, w.SwitchToChain(context.Background(), l2ChainID))
	require.Len(t, asked, 1)
}

func TestSwitchDialFailure(t *testing.T) {
	d := newDialer()
	delete(d.served, "l1")
	w := newTestWallet(t, d, nil)
	err := w.SwitchToChain(context.Background(), l1ChainID)
	reason, ok := ReasonOf(err)
	require.True(t, ok)
	require.Equal(t, WalletUnavailable, reason)
	require.ErrorContains(t, err, "connection refused")
}

func TestSwitchChainMismatch(t *testing.T) {
	d := newDialer()
	d.served["l1"] = 5
	w := newTestWallet(t, d, nil)
	err := w.SwitchToChain(context.Background(), l1ChainID)
	require.ErrorIs(t, err, ErrChainMismatch)
	reason, _ := ReasonOf(err)
	require.Equal(t, WalletUnavailable, reason)
	require.True(t, d.conns["l1"].closed)
}

func TestNewLocalWalletRequiresKey(t *testing.T) {
	_, err := NewLocalWallet(testlog.Logger(t, log.LevelInfo), nil, LocalConfig{Endpoints: map[uint64]string{1: "l1"}})
	require.ErrorIs(t, err, txmgr.ErrNoKey)
}
