package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bag-token/blast-bridge/op-service/eth"
	"github.com/bag-token/blast-bridge/op-service/predeploys"
)

var (
	l1Messenger = common.HexToAddress("0x5D4472f31Bd9385709ec61305AFc749F0fA8e9d0")
	l2Messenger = predeploys.L2CrossDomainMessengerAddr
)

func mustAmount(t *testing.T, s string) eth.TokenAmount {
	v, err := eth.ParseTokenAmount(s)
	require.NoError(t, err)
	return v
}

func testWithdrawal() WithdrawalTransaction {
	return WithdrawalTransaction{
		Nonce:    new(big.Int).Lsh(big.NewInt(1), 240),
		Sender:   l2Messenger,
		Target:   l1Messenger,
		Value:    new(big.Int),
		GasLimit: big.NewInt(491713),
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

var bytes32Type, _ = abi.NewType("bytes32", "", nil)

func messagePassedLog(t *testing.T, w WithdrawalTransaction, hash common.Hash) *types.Log {
	args := abi.Arguments{
		{Type: Uint256Type},
		{Type: Uint256Type},
		{Type: BytesType},
		{Type: bytes32Type},
	}
	data, err := args.Pack(w.Value, w.GasLimit, w.Data, [32]byte(hash))
	require.NoError(t, err)
	return &types.Log{
		Address: predeploys.L2ToL1MessagePasserAddr,
		Topics: []common.Hash{
			messagePassedEvt.Topic0,
			common.BigToHash(w.Nonce),
			common.BytesToHash(w.Sender[:]),
			common.BytesToHash(w.Target[:]),
		},
		Data:        data,
		BlockNumber: 4242,
		BlockHash:   common.HexToHash("0x42"),
	}
}

func TestParseMessagePassed(t *testing.T) {
	w := testWithdrawal()
	hash, err := w.Hash()
	require.NoError(t, err)

	other := &types.Log{Address: testToken, Topics: []common.Hash{messagePassedEvt.Topic0}}
	receipt := &types.Receipt{Logs: []*types.Log{other, messagePassedLog(t, w, hash)}}

	ev, err := ParseMessagePassed(receipt)
	require.NoError(t, err)
	require.Equal(t, hash, ev.WithdrawalHash)
	require.Zero(t, w.Nonce.Cmp(ev.Nonce))
	require.Equal(t, w.Sender, ev.Sender)
	require.Equal(t, w.Target, ev.Target)
	require.Zero(t, w.GasLimit.Cmp(ev.GasLimit))
	require.Equal(t, w.Data, ev.Data)
	require.Equal(t, uint64(4242), ev.BlockNumber)
}

func TestParseMessagePassedHashMismatch(t *testing.T) {
	w := testWithdrawal()
	receipt := &types.Receipt{Logs: []*types.Log{messagePassedLog(t, w, common.HexToHash("0x1234"))}}
	_, err := ParseMessagePassed(receipt)
	require.ErrorContains(t, err, "does not match")
}

func TestParseMessagePassedMissing(t *testing.T) {
	_, err := ParseMessagePassed(&types.Receipt{})
	require.ErrorIs(t, err, ErrNoMessagePassed)
}

func TestParseMessagePassedMultiple(t *testing.T) {
	w := testWithdrawal()
	hash, err := w.Hash()
	require.NoError(t, err)
	receipt := &types.Receipt{Logs: []*types.Log{messagePassedLog(t, w, hash), messagePassedLog(t, w, hash)}}
	_, err = ParseMessagePassed(receipt)
	require.ErrorContains(t, err, "exactly one")
	events, err := ParseMessagesPassed(receipt)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestStorageSlotOfWithdrawalHash(t *testing.T) {
	// keccak256 of 64 zero bytes
	require.Equal(t,
		common.HexToHash("0xad3228b676f7d3cd4284a5443f17f1962b36e491b30a40b2405849e597ba5fb5"),
		StorageSlotOfWithdrawalHash(common.Hash{}))
}

func TestERC20WithdrawalData(t *testing.T) {
	w := ERC20Withdrawal{
		L1Token: testL1,
		L2Token: testToken,
		From:    testOwner,
		To:      testOwner,
		Amount:  mustAmount(t, "333"),
	}
	data, err := EncodeERC20WithdrawalData(big.NewInt(3), testBridge, common.HexToAddress("0x697402166Fbf2F22E970df8a6486Ef171dbfc524"), 200000, w, []byte{})
	require.NoError(t, err)

	got, err := DecodeERC20Withdrawal(data)
	require.NoError(t, err)
	require.Equal(t, "333", got.Amount.String())
	require.Equal(t, testL1, got.L1Token)
	require.Equal(t, testToken, got.L2Token)
	require.Equal(t, testOwner, got.To)

	_, err = DecodeERC20Withdrawal([]byte{0xde, 0xad, 0xbe, 0xef})
	require.Error(t, err)
}

// leafProof builds a single-leaf trie holding value at keccak256(key), returning its root and proof.
func leafProof(t *testing.T, key []byte, value []byte) (common.Hash, []string) {
	path := append([]byte{0x20}, crypto.Keccak256(key)...)
	node, err := rlp.EncodeToBytes([][]byte{path, value})
	require.NoError(t, err)
	return crypto.Keccak256Hash(node), []string{common.Bytes2Hex(node)}
}

func singleWithdrawalProof(t *testing.T, hash common.Hash) (common.Hash, *gethclient.AccountResult) {
	slot := StorageSlotOfWithdrawalHash(hash)
	storageValue, err := rlp.EncodeToBytes([]byte{1})
	require.NoError(t, err)
	storageRoot, storageNodes := leafProof(t, slot[:], storageValue)

	account := types.StateAccount{
		Nonce:    0,
		Balance:  uint256.NewInt(0),
		Root:     storageRoot,
		CodeHash: crypto.Keccak256([]byte{0x60}),
	}
	accountValue, err := rlp.EncodeToBytes(&account)
	require.NoError(t, err)
	stateRoot, accountNodes := leafProof(t, predeploys.L2ToL1MessagePasserAddr[:], accountValue)

	return stateRoot, &gethclient.AccountResult{
		Address:      predeploys.L2ToL1MessagePasserAddr,
		AccountProof: accountNodes,
		Balance:      new(big.Int),
		CodeHash:     common.BytesToHash(account.CodeHash),
		Nonce:        0,
		StorageHash:  storageRoot,
		StorageProof: []gethclient.StorageResult{{Key: slot.Hex(), Value: big.NewInt(1), Proof: storageNodes}},
	}
}

func TestVerifyProof(t *testing.T) {
	stateRoot, proof := singleWithdrawalProof(t, common.HexToHash("0x77"))
	require.NoError(t, VerifyProof(stateRoot, proof))

	t.Run("WrongStateRoot", func(t *testing.T) {
		require.Error(t, VerifyProof(common.HexToHash("0x01"), proof))
	})
	t.Run("WrongStorageValue", func(t *testing.T) {
		_, bad := singleWithdrawalProof(t, common.HexToHash("0x77"))
		bad.StorageProof[0].Value = big.NewInt(2)
		require.ErrorContains(t, VerifyProof(stateRoot, bad), "does not prove")
	})
	t.Run("WrongAccount", func(t *testing.T) {
		_, bad := singleWithdrawalProof(t, common.HexToHash("0x77"))
		bad.Nonce = 5
		require.ErrorContains(t, VerifyProof(stateRoot, bad), "does not match")
	})
}

type stubProofClient struct {
	result *gethclient.AccountResult
	keys   []string
	block  *big.Int
}

func (s *stubProofClient) GetProof(_ context.Context, _ common.Address, keys []string, blockNumber *big.Int) (*gethclient.AccountResult, error) {
	s.keys = keys
	s.block = blockNumber
	return s.result, nil
}

func TestGetWithdrawalProof(t *testing.T) {
	w := testWithdrawal()
	hash, err := w.Hash()
	require.NoError(t, err)
	stateRoot, proof := singleWithdrawalProof(t, hash)
	cl := &stubProofClient{result: proof}
	header := &types.Header{Number: big.NewInt(5000), Root: stateRoot}

	nodes, storageRoot, err := GetWithdrawalProof(context.Background(), cl, &MessagePassed{WithdrawalTransaction: w, WithdrawalHash: hash}, header)
	require.NoError(t, err)
	require.Equal(t, proof.StorageHash, storageRoot)
	require.Len(t, nodes, 1)
	require.Equal(t, []string{StorageSlotOfWithdrawalHash(hash).String()}, cl.keys)
	require.Equal(t, header.Number, cl.block)

	_, _, err = GetWithdrawalProof(context.Background(), cl, &MessagePassed{WithdrawalTransaction: w, WithdrawalHash: common.HexToHash("0x01")}, header)
	require.ErrorContains(t, err, "incorrectly")
}
