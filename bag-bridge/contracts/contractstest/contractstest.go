// Package contractstest builds chain data for tests of code sitting on top of the contracts package.
package contractstest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
	"github.com/bag-token/blast-bridge/op-service/predeploys"
)

var (
	messagePassedTopic = crypto.Keccak256Hash([]byte("MessagePassed(uint256,address,address,uint256,uint256,bytes,bytes32)"))
	bytes32Type, _     = abi.NewType("bytes32", "", nil)
)

// Withdrawal returns a withdrawal from the L2 messenger with the given nonce.
func Withdrawal(nonce uint64) contracts.WithdrawalTransaction {
	return contracts.WithdrawalTransaction{
		Nonce:    new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 240), new(big.Int).SetUint64(nonce)),
		Sender:   predeploys.L2CrossDomainMessengerAddr,
		Target:   common.HexToAddress("0x5D4472f31Bd9385709ec61305AFc749F0fA8e9d0"),
		Value:    new(big.Int),
		GasLimit: big.NewInt(491713),
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

// MessagePassedReceipt returns a successful receipt, mined in blockNumber, emitting the MessagePassed event of w.
func MessagePassedReceipt(w contracts.WithdrawalTransaction, blockNumber uint64) (*types.Receipt, common.Hash) {
	hash, err := w.Hash()
	if err != nil {
		panic(err)
	}
	args := abi.Arguments{
		{Type: contracts.Uint256Type},
		{Type: contracts.Uint256Type},
		{Type: contracts.BytesType},
		{Type: bytes32Type},
	}
	data, err := args.Pack(w.Value, w.GasLimit, w.Data, [32]byte(hash))
	if err != nil {
		panic(err)
	}
	log := &types.Log{
		Address: predeploys.L2ToL1MessagePasserAddr,
		Topics: []common.Hash{
			messagePassedTopic,
			common.BigToHash(w.Nonce),
			common.BytesToHash(w.Sender[:]),
			common.BytesToHash(w.Target[:]),
		},
		Data:        data,
		BlockNumber: blockNumber,
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: new(big.Int).SetUint64(blockNumber),
		Logs:        []*types.Log{log},
	}, hash
}

// WithdrawalProof returns a state root and an account proof of a message passer holding only withdrawalHash.
func WithdrawalProof(withdrawalHash common.Hash) (common.Hash, *gethclient.AccountResult) {
	slot := contracts.StorageSlotOfWithdrawalHash(withdrawalHash)
	storageValue, _ := rlp.EncodeToBytes([]byte{1})
	storageRoot, storageNodes := leaf(slot[:], storageValue)

	account := types.StateAccount{
		Balance:  uint256.NewInt(0),
		Root:     storageRoot,
		CodeHash: crypto.Keccak256([]byte{0x60}),
	}
	accountValue, err := rlp.EncodeToBytes(&account)
	if err != nil {
		panic(err)
	}
	stateRoot, accountNodes := leaf(predeploys.L2ToL1MessagePasserAddr[:], accountValue)
	return stateRoot, &gethclient.AccountResult{
		Address:      predeploys.L2ToL1MessagePasserAddr,
		AccountProof: accountNodes,
		Balance:      new(big.Int),
		CodeHash:     common.BytesToHash(account.CodeHash),
		StorageHash:  storageRoot,
		StorageProof: []gethclient.StorageResult{{Key: slot.Hex(), Value: big.NewInt(1), Proof: storageNodes}},
	}
}

// leaf builds the root node of a trie holding a single value at keccak256(key).
func leaf(key []byte, value []byte) (common.Hash, []string) {
	path := append([]byte{0x20}, crypto.Keccak256(key)...)
	node, err := rlp.EncodeToBytes([][]byte{path, value})
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(node), []string{common.Bytes2Hex(node)}
}
