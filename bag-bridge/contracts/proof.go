package contracts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/bag-token/blast-bridge/op-service/predeploys"
)

type ProofClient interface {
	GetProof(ctx context.Context, account common.Address, keys []string, blockNumber *big.Int) (*gethclient.AccountResult, error)
}

// GetWithdrawalProof fetches and checks the storage proof of the withdrawal in the message passer
// at l2Header. It returns the trie nodes in the form the portal expects, and the storage root.
func GetWithdrawalProof(ctx context.Context, proofCl ProofClient, ev *MessagePassed, l2Header *types.Header) ([][]byte, common.Hash, error) {
	withdrawalHash, err := ev.Hash()
	if err != nil {
		return nil, common.Hash{}, err
	}
	if withdrawalHash != ev.WithdrawalHash {
		return nil, common.Hash{}, errors.New("computed withdrawal hash incorrectly")
	}
	slot := StorageSlotOfWithdrawalHash(withdrawalHash)

	p, err := proofCl.GetProof(ctx, predeploys.L2ToL1MessagePasserAddr, []string{slot.String()}, l2Header.Number)
	if err != nil {
		return nil, common.Hash{}, err
	}
	if len(p.StorageProof) != 1 {
		return nil, common.Hash{}, errors.New("invalid amount of storage proofs")
	}
	if err := VerifyProof(l2Header.Root, p); err != nil {
		return nil, common.Hash{}, err
	}

	trieNodes := make([][]byte, len(p.StorageProof[0].Proof))
	for i, s := range p.StorageProof[0].Proof {
		trieNodes[i] = common.FromHex(s)
	}
	return trieNodes, p.StorageHash, nil
}

// VerifyProof checks the account proof against stateRoot and every storage proof against the account's storage root.
func VerifyProof(stateRoot common.Hash, proof *gethclient.AccountResult) error {
	balance := new(uint256.Int)
	if proof.Balance != nil && balance.SetFromBig(proof.Balance) {
		return fmt.Errorf("account balance %v overflows", proof.Balance)
	}
	expected, err := rlp.EncodeToBytes(&types.StateAccount{
		Nonce:    proof.Nonce,
		Balance:  balance,
		Root:     proof.StorageHash,
		CodeHash: proof.CodeHash.Bytes(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	value, err := verifyNodes(stateRoot, crypto.Keccak256(proof.Address[:]), proof.AccountProof)
	if err != nil {
		return fmt.Errorf("failed to verify account proof: %w", err)
	}
	if !bytes.Equal(value, expected) {
		return fmt.Errorf("account proof of %s does not match the claimed account", proof.Address)
	}

	for i, sp := range proof.StorageProof {
		key := common.HexToHash(sp.Key)
		value, err := verifyNodes(proof.StorageHash, crypto.Keccak256(key[:]), sp.Proof)
		if err != nil {
			return fmt.Errorf("failed to verify storage proof %d: %w", i, err)
		}
		var got []byte
		if err := rlp.DecodeBytes(value, &got); err != nil {
			return fmt.Errorf("failed to decode storage value %d: %w", i, err)
		}
		if sp.Value == nil || new(big.Int).SetBytes(got).Cmp(sp.Value) != 0 {
			return fmt.Errorf("storage proof %d does not prove value %v", i, sp.Value)
		}
	}
	return nil
}

func verifyNodes(root common.Hash, key []byte, nodes []string) ([]byte, error) {
	db := memorydb.New()
	for _, n := range nodes {
		node := common.FromHex(n)
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	value, err := trie.VerifyProof(root, key, db)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, errors.New("key not present in trie")
	}
	return value, nil
}
