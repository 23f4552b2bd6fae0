package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/bag-token/blast-bridge/bag-bridge/flags"
	"github.com/bag-token/blast-bridge/op-service/predeploys"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

func TestBlastMainnet(t *testing.T) {
	n := BlastMainnet()
	require.Equal(t, "blast-mainnet", n.Name)
	require.Equal(t, uint64(1), n.L1.ChainID)
	require.Equal(t, uint64(81457), n.L2.ChainID)
	require.Equal(t, common.HexToAddress("0x808688c820AB080A6Ff1019F03E5EC227D9b522B"), n.Token.L1.Addr())
	require.Equal(t, common.HexToAddress("0xb9dfCd4CF589bB8090569cb52FaC1b88Dbe4981F"), n.Token.L2.Addr())
	require.Equal(t, common.HexToAddress("0x0Ec68c5B10F21EFFb74f2A5C61DFe6b08C0Db6Cb"), n.L1Contracts.OptimismPortal.Addr())
	require.Equal(t, common.HexToAddress("0x826D1B0D4111Ad9146Eb8941D7Ca2B6a44215c76"), n.L1Contracts.L2OutputOracle.Addr())
	require.Equal(t, predeploys.L2StandardBridgeAddr, n.L2Contracts.L2StandardBridge.Addr())
	require.Equal(t, predeploys.L2ToL1MessagePasserAddr, n.L2Contracts.L2ToL1MessagePasser.Addr())
	require.Equal(t, uint32(200_000), n.Bridge.MinGasLimit)
	require.Empty(t, n.Bridge.ExtraData)
}

func TestBlastMainnetIsFresh(t *testing.T) {
	a := BlastMainnet()
	a.L1.RPC = "http://localhost:8545"
	require.NotEqual(t, a.L1.RPC, BlastMainnet().L1.RPC)
}

func TestDecodeNetworkErrors(t *testing.T) {
	preset := string(blastMainnetConfig)
	t.Run("LowercaseAddress", func(t *testing.T) {
		data := strings.Replace(preset, "0x808688c820AB080A6Ff1019F03E5EC227D9b522B", "0x808688c820ab080a6ff1019f03e5ec227d9b522b", 1)
		_, err := DecodeNetwork([]byte(data))
		require.ErrorContains(t, err, "checksum mismatch")
	})
	t.Run("BadChecksum", func(t *testing.T) {
		data := strings.Replace(preset, "0x808688c820AB080A6Ff1019F03E5EC227D9b522B", "0x808688C820AB080A6Ff1019F03E5EC227D9b522B", 1)
		_, err := DecodeNetwork([]byte(data))
		require.ErrorContains(t, err, "checksum mismatch")
	})
	t.Run("SameChainID", func(t *testing.T) {
		data := strings.Replace(preset, "chain_id = 81457", "chain_id = 1", 1)
		_, err := DecodeNetwork([]byte(data))
		require.ErrorIs(t, err, ErrInvalidNetwork)
	})
	t.Run("ZeroChainID", func(t *testing.T) {
		data := strings.Replace(preset, "chain_id = 81457", "chain_id = 0", 1)
		_, err := DecodeNetwork([]byte(data))
		require.ErrorIs(t, err, ErrInvalidNetwork)
	})
	t.Run("MissingPortal", func(t *testing.T) {
		data := strings.Replace(preset, `optimism_portal = "0x0Ec68c5B10F21EFFb74f2A5C61DFe6b08C0Db6Cb"`, "", 1)
		_, err := DecodeNetwork([]byte(data))
		require.ErrorIs(t, err, ErrInvalidNetwork)
		require.ErrorContains(t, err, "optimism_portal")
	})
	t.Run("UnknownKey", func(t *testing.T) {
		_, err := DecodeNetwork([]byte(preset + "\n[extra]\nfoo = 1\n"))
		require.ErrorIs(t, err, ErrInvalidNetwork)
	})
	t.Run("WrongMessagePasser", func(t *testing.T) {
		data := strings.Replace(preset, `l2_to_l1_message_passer = "0x4200000000000000000000000000000000000016"`,
			`l2_to_l1_message_passer = "0x4200000000000000000000000000000000000017"`, 1)
		_, err := DecodeNetwork([]byte(data))
		require.ErrorIs(t, err, ErrInvalidNetwork)
	})
}

func TestLoadNetwork(t *testing.T) {
	data := strings.Replace(string(blastMainnetConfig), `extra_data = "0x"`, `extra_data = "0x1234"`, 1)
	path := filepath.Join(t.TempDir(), "network.toml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	n, err := LoadNetwork(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x34}, []byte(n.Bridge.ExtraData))

	_, err = LoadNetwork(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func runWithFlags(t *testing.T, args ...string) (*CLIConfig, error) {
	var (
		cfg    *CLIConfig
		cfgErr error
	)
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = NewConfig(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"bag-bridge"}, args...)))
	return cfg, cfgErr
}

func TestNewConfig(t *testing.T) {
	datadir := t.TempDir()
	cfg, err := runWithFlags(t,
		"--l2-rpc", "http://localhost:9545",
		"--datadir", datadir,
		"--poll-interval", "3s",
	)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9545", cfg.Network.L2.RPC)
	require.Equal(t, BlastMainnet().L1.RPC, cfg.Network.L1.RPC)
	require.Equal(t, datadir, cfg.DataDir)
	require.Equal(t, 3*time.Second, cfg.PollInterval)
	require.Equal(t, uint(5), cfg.RPCRetries)
	require.False(t, cfg.ConfirmSwitch)
	require.False(t, cfg.TxMgrConfig.HasKey())
}

func TestNewConfigRejectsBadPollInterval(t *testing.T) {
	_, err := runWithFlags(t, "--poll-interval", "0s")
	require.ErrorContains(t, err, "poll interval")
}

func TestCheck(t *testing.T) {
	valid := func() *CLIConfig {
		return &CLIConfig{
			Network:      BlastMainnet(),
			DataDir:      "data",
			PollInterval: time.Second,
			RPCRetries:   1,
			TxMgrConfig:  txmgr.NewCLIConfig(txmgr.DefaultBridgeFlagValues),
		}
	}
	require.NoError(t, valid().Check())

	cfg := valid()
	cfg.Network = nil
	require.Error(t, cfg.Check())

	cfg = valid()
	cfg.Network.L1.RPC = ""
	require.ErrorContains(t, cfg.Check(), "L1 RPC")

	cfg = valid()
	cfg.DataDir = ""
	require.ErrorContains(t, cfg.Check(), "datadir")

	cfg = valid()
	cfg.RPCRetries = 0
	require.Error(t, cfg.Check())
}
