package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	opservice "github.com/bag-token/blast-bridge/op-service"
	"github.com/bag-token/blast-bridge/op-service/predeploys"
)

//go:embed blast-mainnet.toml
var blastMainnetConfig []byte

var ErrInvalidNetwork = errors.New("invalid network config")

// Address is an address that must be written in its EIP-55 checksummed form.
type Address common.Address

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := opservice.ParseChecksummedAddress(string(text))
	if err != nil {
		return err
	}
	*a = Address(addr)
	return nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(common.Address(a).Hex()), nil
}

func (a Address) Addr() common.Address {
	return common.Address(a)
}

type Chain struct {
	ChainID uint64 `toml:"chain_id"`
	RPC     string `toml:"rpc"`
}

// Token is the same ERC-20 on both chains.
type Token struct {
	L1 Address `toml:"l1"`
	L2 Address `toml:"l2"`
}

type L1Contracts struct {
	AddressManager         Address `toml:"address_manager"`
	L1CrossDomainMessenger Address `toml:"l1_cross_domain_messenger"`
	L1StandardBridge       Address `toml:"l1_standard_bridge"`
	OptimismPortal         Address `toml:"optimism_portal"`
	L2OutputOracle         Address `toml:"l2_output_oracle"`
}

type L2Contracts struct {
	L2CrossDomainMessenger Address `toml:"l2_cross_domain_messenger"`
	L2ToL1MessagePasser    Address `toml:"l2_to_l1_message_passer"`
	L2StandardBridge       Address `toml:"l2_standard_bridge"`
}

type Bridge struct {
	MinGasLimit uint32        `toml:"min_gas_limit"`
	ExtraData   hexutil.Bytes `toml:"extra_data"`
}

// Network is the pair of chains a withdrawal crosses and the contracts it touches.
type Network struct {
	Name        string      `toml:"name"`
	L1          Chain       `toml:"l1"`
	L2          Chain       `toml:"l2"`
	Token       Token       `toml:"token"`
	L1Contracts L1Contracts `toml:"l1_contracts"`
	L2Contracts L2Contracts `toml:"l2_contracts"`
	Bridge      Bridge      `toml:"bridge"`
}

// BlastMainnet returns the built-in Blast to Ethereum preset.
func BlastMainnet() *Network {
	n, err := DecodeNetwork(blastMainnetConfig)
	if err != nil {
		panic(fmt.Errorf("built-in network config is invalid: %w", err))
	}
	return n
}

// LoadNetwork reads a network config from a TOML file.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network config: %w", err)
	}
	n, err := DecodeNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("network config %s: %w", path, err)
	}
	return n, nil
}

func DecodeNetwork(data []byte) (*Network, error) {
	var n Network
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNetwork, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidNetwork, undecoded)
	}
	if err := n.Check(); err != nil {
		return nil, err
	}
	return &n, nil
}

func (n *Network) Check() error {
	if n.L1.ChainID == 0 || n.L2.ChainID == 0 {
		return fmt.Errorf("%w: chain ids must be nonzero", ErrInvalidNetwork)
	}
	if n.L1.ChainID == n.L2.ChainID {
		return fmt.Errorf("%w: L1 and L2 share chain id %d", ErrInvalidNetwork, n.L1.ChainID)
	}
	required := []struct {
		name string
		addr Address
	}{
		{"token.l1", n.Token.L1},
		{"token.l2", n.Token.L2},
		{"l1_contracts.optimism_portal", n.L1Contracts.OptimismPortal},
		{"l1_contracts.l2_output_oracle", n.L1Contracts.L2OutputOracle},
		{"l1_contracts.l1_standard_bridge", n.L1Contracts.L1StandardBridge},
		{"l2_contracts.l2_to_l1_message_passer", n.L2Contracts.L2ToL1MessagePasser},
		{"l2_contracts.l2_standard_bridge", n.L2Contracts.L2StandardBridge},
	}
	for _, r := range required {
		if r.addr == (Address{}) {
			return fmt.Errorf("%w: missing %s", ErrInvalidNetwork, r.name)
		}
	}
	if n.L2Contracts.L2ToL1MessagePasser.Addr() != predeploys.L2ToL1MessagePasserAddr {
		return fmt.Errorf("%w: l2_to_l1_message_passer must be the predeploy %s", ErrInvalidNetwork, predeploys.L2ToL1MessagePasser)
	}
	if n.Bridge.MinGasLimit == 0 {
		return fmt.Errorf("%w: bridge.min_gas_limit must be nonzero", ErrInvalidNetwork)
	}
	return nil
}
