package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bag-token/blast-bridge/op-service/eth"
	"github.com/bag-token/blast-bridge/op-service/predeploys"
)

var ErrNoMessagePassed = errors.New("unable to find MessagePassed event")

// WithdrawalTransaction is the low-level message of an L2 to L1 withdrawal,
// the tuple the portal proves and finalizes.
type WithdrawalTransaction struct {
	Nonce    *big.Int
	Sender   common.Address
	Target   common.Address
	Value    *big.Int
	GasLimit *big.Int
	Data     []byte
}

// MessagePassed is a parsed L2ToL1MessagePasser MessagePassed event.
type MessagePassed struct {
	WithdrawalTransaction
	WithdrawalHash common.Hash
	BlockNumber    uint64
	BlockHash      common.Hash
}

var (
	Uint256Type, _ = abi.NewType("uint256", "", nil)
	BytesType, _   = abi.NewType("bytes", "", nil)
	AddressType, _ = abi.NewType("address", "", nil)
)

// Hash computes keccak256(abi.encode(nonce, sender, target, value, gasLimit, data)).
func (w *WithdrawalTransaction) Hash() (common.Hash, error) {
	args := abi.Arguments{
		{Name: "nonce", Type: Uint256Type},
		{Name: "sender", Type: AddressType},
		{Name: "target", Type: AddressType},
		{Name: "value", Type: Uint256Type},
		{Name: "gasLimit", Type: Uint256Type},
		{Name: "data", Type: BytesType},
	}
	enc, err := args.Pack(w.Nonce, w.Sender, w.Target, w.Value, w.GasLimit, w.Data)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack for withdrawal hash: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// ParseMessagePassed returns the single MessagePassed event emitted by the message passer in receipt.
// The event's withdrawal hash is checked against the recomputed one.
func ParseMessagePassed(receipt *types.Receipt) (*MessagePassed, error) {
	events, err := ParseMessagesPassed(receipt)
	if err != nil {
		return nil, err
	}
	if len(events) != 1 {
		return nil, fmt.Errorf("expected exactly one MessagePassed event, found %d", len(events))
	}
	return events[0], nil
}

func ParseMessagesPassed(receipt *types.Receipt) ([]*MessagePassed, error) {
	var events []*MessagePassed
	for _, log := range receipt.Logs {
		if log.Address != predeploys.L2ToL1MessagePasserAddr || len(log.Topics) == 0 || log.Topics[0] != messagePassedEvt.Topic0 {
			continue
		}
		ev := &MessagePassed{BlockHash: log.BlockHash, BlockNumber: log.BlockNumber}
		if err := messagePassedEvt.DecodeArgs(log,
			&ev.Nonce, &ev.Sender, &ev.Target, &ev.Value, &ev.GasLimit, &ev.Data, &ev.WithdrawalHash); err != nil {
			return nil, fmt.Errorf("failed to parse log: %w", err)
		}
		computed, err := ev.Hash()
		if err != nil {
			return nil, err
		}
		if computed != ev.WithdrawalHash {
			return nil, fmt.Errorf("computed withdrawal hash %s does not match event hash %s", computed, ev.WithdrawalHash)
		}
		events = append(events, ev)
	}
	if len(events) == 0 {
		return nil, ErrNoMessagePassed
	}
	return events, nil
}

// StorageSlotOfWithdrawalHash returns the slot of the hash in the message passer's sentMessages mapping.
// The mapping is the 0th storage slot, so the slot is keccak256(withdrawalHash ++ uint256(0)).
func StorageSlotOfWithdrawalHash(hash common.Hash) common.Hash {
	buf := make([]byte, 64)
	copy(buf, hash[:])
	return crypto.Keccak256Hash(buf)
}

// ERC20Withdrawal is the token transfer a standard bridge withdrawal relays to L1.
type ERC20Withdrawal struct {
	L1Token common.Address
	L2Token common.Address
	From    common.Address
	To      common.Address
	Amount  eth.TokenAmount
}

// DecodeERC20Withdrawal unpacks relayMessage(..., finalizeBridgeERC20(...)) calldata
// carried by a standard bridge withdrawal.
func DecodeERC20Withdrawal(data []byte) (*ERC20Withdrawal, error) {
	var (
		nonce, value, minGasLimit *big.Int
		sender, target            common.Address
		message                   []byte
	)
	if err := relayMessageFn.DecodeArgs(data, &nonce, &sender, &target, &value, &minGasLimit, &message); err != nil {
		return nil, fmt.Errorf("not a relayMessage call: %w", err)
	}
	var (
		out    ERC20Withdrawal
		amount *big.Int
		extra  []byte
	)
	if err := finalizeBridgeERC20Fn.DecodeArgs(message, &out.L1Token, &out.L2Token, &out.From, &out.To, &amount, &extra); err != nil {
		return nil, fmt.Errorf("not an ERC20 bridge message: %w", err)
	}
	v, err := eth.TokenAmountFromBig(amount)
	if err != nil {
		return nil, err
	}
	out.Amount = v
	return &out, nil
}

// EncodeERC20WithdrawalData builds the relayMessage calldata of a standard bridge ERC-20 withdrawal.
func EncodeERC20WithdrawalData(nonce *big.Int, l2Bridge, l1Bridge common.Address, minGasLimit uint32, w ERC20Withdrawal, extraData []byte) ([]byte, error) {
	message, err := finalizeBridgeERC20Fn.EncodeArgs(w.L1Token, w.L2Token, w.From, w.To, w.Amount.ToBig(), extraData)
	if err != nil {
		return nil, fmt.Errorf("failed to pack finalizeBridgeERC20: %w", err)
	}
	return relayMessageFn.EncodeArgs(nonce, l2Bridge, l1Bridge, new(big.Int), new(big.Int).SetUint64(uint64(minGasLimit)), message)
}
