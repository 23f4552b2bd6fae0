package txmgr

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/bag-token/blast-bridge/op-service"
)

const (
	// Key Management Flags
	MnemonicFlagName   = "mnemonic"
	HDPathFlagName     = "hd-path"
	PrivateKeyFlagName = "private-key"
	// TxMgr Flags
	NumConfirmationsFlagName     = "num-confirmations"
	FeeLimitMultiplierFlagName   = "fee-limit-multiplier"
	MinBaseFeeFlagName           = "txmgr.min-basefee"
	MinTipCapFlagName            = "txmgr.min-tip-cap"
	NetworkTimeoutFlagName       = "network-timeout"
	TxSendTimeoutFlagName        = "txmgr.send-timeout"
	ReceiptQueryIntervalFlagName = "txmgr.receipt-query-interval"
)

// DefaultHDPath is the first account of the standard Ethereum derivation path.
const DefaultHDPath = "m/44'/60'/0'/0/0"

type DefaultFlagValues struct {
	NumConfirmations     uint64
	FeeLimitMultiplier   uint64
	MinTipCapGwei        float64
	MinBaseFeeGwei       float64
	NetworkTimeout       time.Duration
	TxSendTimeout        time.Duration
	ReceiptQueryInterval time.Duration
}

var (
	// DefaultBridgeFlagValues suits a user waiting on a single transaction at a time.
	// Fee floors are left at zero, Blast fees are a fraction of a gwei.
	DefaultBridgeFlagValues = DefaultFlagValues{
		NumConfirmations:     uint64(1),
		FeeLimitMultiplier:   uint64(5),
		MinTipCapGwei:        0,
		MinBaseFeeGwei:       0,
		NetworkTimeout:       10 * time.Second,
		TxSendTimeout:        10 * time.Minute,
		ReceiptQueryInterval: 4 * time.Second,
	}
)

func CLIFlags(envPrefix string) []cli.Flag {
	return CLIFlagsWithDefaults(envPrefix, DefaultBridgeFlagValues)
}

func CLIFlagsWithDefaults(envPrefix string, defaults DefaultFlagValues) []cli.Flag {
	prefixEnvVars := func(name string) []string {
		return opservice.PrefixEnvVar(envPrefix, name)
	}
	return []cli.Flag{
		&cli.StringFlag{
			Name:    MnemonicFlagName,
			Usage:   "The mnemonic used to derive the wallet",
			EnvVars: prefixEnvVars("MNEMONIC"),
		},
		&cli.StringFlag{
			Name:    HDPathFlagName,
			Usage:   "The HD path used to derive the wallet from the mnemonic. The mnemonic flag must also be set.",
			Value:   DefaultHDPath,
			EnvVars: prefixEnvVars("HD_PATH"),
		},
		&cli.StringFlag{
			Name:    PrivateKeyFlagName,
			Usage:   "The private key to sign with. Must not be used with mnemonic.",
			EnvVars: prefixEnvVars("PRIVATE_KEY"),
		},
		&cli.Uint64Flag{
			Name:    NumConfirmationsFlagName,
			Usage:   "Number of confirmations which we will wait after sending a transaction",
			Value:   defaults.NumConfirmations,
			EnvVars: prefixEnvVars("NUM_CONFIRMATIONS"),
		},
		&cli.Uint64Flag{
			Name:    FeeLimitMultiplierFlagName,
			Usage:   "The multiplier applied to the base fee when computing the fee cap",
			Value:   defaults.FeeLimitMultiplier,
			EnvVars: prefixEnvVars("TXMGR_FEE_LIMIT_MULTIPLIER"),
		},
		&cli.Float64Flag{
			Name:    MinTipCapFlagName,
			Usage:   "Enforces a minimum tip cap (in GWei) to use when determining tx fees.",
			Value:   defaults.MinTipCapGwei,
			EnvVars: prefixEnvVars("TXMGR_MIN_TIP_CAP"),
		},
		&cli.Float64Flag{
			Name:    MinBaseFeeFlagName,
			Usage:   "Enforces a minimum base fee (in GWei) to assume when determining tx fees.",
			Value:   defaults.MinBaseFeeGwei,
			EnvVars: prefixEnvVars("TXMGR_MIN_BASEFEE"),
		},
		&cli.DurationFlag{
			Name:    NetworkTimeoutFlagName,
			Usage:   "Timeout for all network operations",
			Value:   defaults.NetworkTimeout,
			EnvVars: prefixEnvVars("NETWORK_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    TxSendTimeoutFlagName,
			Usage:   "Timeout for waiting on a published transaction to confirm. 0 waits until interrupted.",
			Value:   defaults.TxSendTimeout,
			EnvVars: prefixEnvVars("TXMGR_TX_SEND_TIMEOUT"),
		},
		&cli.DurationFlag{
			Name:    ReceiptQueryIntervalFlagName,
			Usage:   "Frequency to poll for receipts",
			Value:   defaults.ReceiptQueryInterval,
			EnvVars: prefixEnvVars("TXMGR_RECEIPT_QUERY_INTERVAL"),
		},
	}
}

type CLIConfig struct {
	Mnemonic             string
	HDPath               string
	PrivateKey           string
	NumConfirmations     uint64
	FeeLimitMultiplier   uint64
	MinTipCapGwei        float64
	MinBaseFeeGwei       float64
	NetworkTimeout       time.Duration
	TxSendTimeout        time.Duration
	ReceiptQueryInterval time.Duration
}

func NewCLIConfig(defaults DefaultFlagValues) CLIConfig {
	return CLIConfig{
		HDPath:               DefaultHDPath,
		NumConfirmations:     defaults.NumConfirmations,
		FeeLimitMultiplier:   defaults.FeeLimitMultiplier,
		MinTipCapGwei:        defaults.MinTipCapGwei,
		MinBaseFeeGwei:       defaults.MinBaseFeeGwei,
		NetworkTimeout:       defaults.NetworkTimeout,
		TxSendTimeout:        defaults.TxSendTimeout,
		ReceiptQueryInterval: defaults.ReceiptQueryInterval,
	}
}

func (m CLIConfig) Check() error {
	if m.NumConfirmations == 0 {
		return errors.New("NumConfirmations must not be 0")
	}
	if m.NetworkTimeout == 0 {
		return errors.New("must provide NetworkTimeout")
	}
	if m.FeeLimitMultiplier == 0 {
		return errors.New("must provide FeeLimitMultiplier")
	}
	if m.MinBaseFeeGwei < m.MinTipCapGwei {
		return fmt.Errorf("minBaseFee smaller than minTipCap, have %f < %f",
			m.MinBaseFeeGwei, m.MinTipCapGwei)
	}
	if m.MinTipCapGwei < 0 || m.MinBaseFeeGwei < 0 {
		return errors.New("fee floors must not be negative")
	}
	if m.ReceiptQueryInterval == 0 {
		return errors.New("must provide ReceiptQueryInterval")
	}
	if m.PrivateKey != "" && m.Mnemonic != "" {
		return errors.New("can only provide at most one of: [private key, mnemonic]")
	}
	return nil
}

// HasKey reports whether a signing key is configured.
func (m CLIConfig) HasKey() bool {
	return m.PrivateKey != "" || m.Mnemonic != ""
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		Mnemonic:             ctx.String(MnemonicFlagName),
		HDPath:               ctx.String(HDPathFlagName),
		PrivateKey:           ctx.String(PrivateKeyFlagName),
		NumConfirmations:     ctx.Uint64(NumConfirmationsFlagName),
		FeeLimitMultiplier:   ctx.Uint64(FeeLimitMultiplierFlagName),
		MinTipCapGwei:        ctx.Float64(MinTipCapFlagName),
		MinBaseFeeGwei:       ctx.Float64(MinBaseFeeFlagName),
		NetworkTimeout:       ctx.Duration(NetworkTimeoutFlagName),
		TxSendTimeout:        ctx.Duration(TxSendTimeoutFlagName),
		ReceiptQueryInterval: ctx.Duration(ReceiptQueryIntervalFlagName),
	}
}
