package op_service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// PrefixEnvVar returns the env var names for a flag: the prefixed form, e.g. BAG_BRIDGE_L1_RPC.
func PrefixEnvVar(prefix, suffix string) []string {
	return []string{prefix + "_" + suffix}
}

var ErrInvalidChecksum = errors.New("address checksum mismatch")

// ParseAddress parses a 0x-prefixed hex address.
// A mixed-case input must carry a valid EIP-55 checksum, all-lower or all-upper inputs are accepted as-is.
func ParseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) || !strings.HasPrefix(address, "0x") {
		return common.Address{}, fmt.Errorf("invalid address: %q", address)
	}
	addr := common.HexToAddress(address)
	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != address {
		return common.Address{}, fmt.Errorf("%w: %s, expected %s", ErrInvalidChecksum, address, addr.Hex())
	}
	return addr, nil
}

// ParseChecksummedAddress is ParseAddress with the additional requirement that the
// input is written in its EIP-55 form.
func ParseChecksummedAddress(address string) (common.Address, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return common.Address{}, err
	}
	if addr.Hex() != address {
		return common.Address{}, fmt.Errorf("%w: %s, expected %s", ErrInvalidChecksum, address, addr.Hex())
	}
	return addr, nil
}
