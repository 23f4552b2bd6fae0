package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/bag-token/blast-bridge/bag-bridge/flags"
	oplog "github.com/bag-token/blast-bridge/op-service/log"
	opmetrics "github.com/bag-token/blast-bridge/op-service/metrics"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

// CLIConfig is the bridge configuration assembled from flags.
type CLIConfig struct {
	Network *Network

	DataDir       string
	ConfirmSwitch bool
	PollInterval  time.Duration
	RPCRetries    uint

	TxMgrConfig   txmgr.CLIConfig
	LogConfig     oplog.CLIConfig
	MetricsConfig opmetrics.CLIConfig
}

func (c *CLIConfig) Check() error {
	if c.Network == nil {
		return errors.New("missing network config")
	}
	if err := c.Network.Check(); err != nil {
		return err
	}
	if c.Network.L1.RPC == "" {
		return errors.New("missing L1 RPC url")
	}
	if c.Network.L2.RPC == "" {
		return errors.New("missing L2 RPC url")
	}
	if c.DataDir == "" {
		return errors.New("missing datadir")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.RPCRetries == 0 {
		return errors.New("rpc retries must be nonzero")
	}
	if err := c.TxMgrConfig.Check(); err != nil {
		return err
	}
	if err := c.MetricsConfig.Check(); err != nil {
		return err
	}
	return nil
}

// NewConfig parses the CLIConfig from the provided flags or environment variables.
func NewConfig(ctx *cli.Context) (*CLIConfig, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, err
	}
	network := BlastMainnet()
	if path := ctx.String(flags.NetworkConfigFlag.Name); path != "" {
		n, err := LoadNetwork(path)
		if err != nil {
			return nil, err
		}
		network = n
	}
	if url := ctx.String(flags.L1RPCFlag.Name); url != "" {
		network.L1.RPC = url
	}
	if url := ctx.String(flags.L2RPCFlag.Name); url != "" {
		network.L2.RPC = url
	}
	cfg := &CLIConfig{
		Network:       network,
		DataDir:       ctx.String(flags.DataDirFlag.Name),
		ConfirmSwitch: ctx.Bool(flags.ConfirmSwitchFlag.Name),
		PollInterval:  ctx.Duration(flags.PollIntervalFlag.Name),
		RPCRetries:    ctx.Uint(flags.RPCRetriesFlag.Name),
		TxMgrConfig:   txmgr.ReadCLIConfig(ctx),
		LogConfig:     oplog.ReadCLIConfig(ctx),
		MetricsConfig: opmetrics.ReadCLIConfig(ctx),
	}
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
