package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/bag-token/blast-bridge/op-service"
	oplog "github.com/bag-token/blast-bridge/op-service/log"
	opmetrics "github.com/bag-token/blast-bridge/op-service/metrics"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

const EnvVarPrefix = "BAG_BRIDGE"

func prefixEnvVars(name string) []string {
	return opservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	L1RPCFlag = &cli.StringFlag{
		Name:    "l1-rpc",
		Usage:   "HTTP provider URL for L1. Overrides the network preset.",
		EnvVars: prefixEnvVars("L1_RPC"),
	}
	L2RPCFlag = &cli.StringFlag{
		Name:    "l2-rpc",
		Usage:   "HTTP provider URL for L2. Overrides the network preset.",
		EnvVars: prefixEnvVars("L2_RPC"),
	}
	DataDirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Directory of the withdrawal request database",
		EnvVars: prefixEnvVars("DATADIR"),
		Value:   "bag-bridge-data",
	}
	NetworkConfigFlag = &cli.StringFlag{
		Name:    "network-config",
		Usage:   "Path to a TOML network config. Defaults to the built-in Blast mainnet preset.",
		EnvVars: prefixEnvVars("NETWORK_CONFIG"),
	}
	ConfirmSwitchFlag = &cli.BoolFlag{
		Name:    "confirm-switch",
		Usage:   "Ask on the terminal before the wallet switches chains",
		EnvVars: prefixEnvVars("CONFIRM_SWITCH"),
	}
	PollIntervalFlag = &cli.DurationFlag{
		Name:    "poll-interval",
		Usage:   "Interval between withdrawal status polls",
		EnvVars: prefixEnvVars("POLL_INTERVAL"),
		Value:   12 * time.Second,
	}
	RPCRetriesFlag = &cli.UintFlag{
		Name:    "rpc-retries",
		Usage:   "Attempts for transient RPC failures while reading withdrawal status",
		EnvVars: prefixEnvVars("RPC_RETRIES"),
		Value:   5,
	}
)

// Subcommand flags
var (
	AmountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "Decimal token amount to withdraw, e.g. 1.5",
		Required: true,
	}
	HashFlag = &cli.StringFlag{
		Name:     "hash",
		Usage:    "L2 transaction hash of an initiated withdrawal",
		Required: true,
	}
	IDFlag = &cli.StringFlag{
		Name:     "id",
		Usage:    "Withdrawal request id",
		Required: true,
	}
	ReasonFlag = &cli.StringFlag{
		Name:  "reason",
		Usage: "Why the request is abandoned",
		Value: "abandoned by user",
	}
	TargetFlag = &cli.StringFlag{
		Name:  "until",
		Usage: "State to wait for",
		Value: "Relayed",
	}
)

var requiredFlags []cli.Flag

var optionalFlags = []cli.Flag{
	L1RPCFlag,
	L2RPCFlag,
	DataDirFlag,
	NetworkConfigFlag,
	ConfirmSwitchFlag,
	PollIntervalFlag,
	RPCRetriesFlag,
}

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, txmgr.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
