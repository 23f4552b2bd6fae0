package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"

	"github.com/bag-token/blast-bridge/bag-bridge/config"
	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
	"github.com/bag-token/blast-bridge/bag-bridge/flags"
	"github.com/bag-token/blast-bridge/bag-bridge/messenger"
	"github.com/bag-token/blast-bridge/bag-bridge/metrics"
	"github.com/bag-token/blast-bridge/bag-bridge/store"
	"github.com/bag-token/blast-bridge/bag-bridge/wallet"
	"github.com/bag-token/blast-bridge/bag-bridge/withdrawal"
	"github.com/bag-token/blast-bridge/op-service/ctxinterrupt"
	"github.com/bag-token/blast-bridge/op-service/dial"
	oplog "github.com/bag-token/blast-bridge/op-service/log"
	opmetrics "github.com/bag-token/blast-bridge/op-service/metrics"
	"github.com/bag-token/blast-bridge/op-service/txmgr"
)

func setupLogging(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	return logger
}

func interruptible(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		ctx.Context = ctxinterrupt.WithCancelOnInterrupt(ctx.Context)
		return action(ctx)
	}
}

// env holds what a command needs. Chain clients and the wallet are opened on demand.
type env struct {
	cfg   *config.CLIConfig
	log   log.Logger
	m     metrics.Metricer
	out   io.Writer
	store *store.Store

	metricsSrv *opmetrics.Server

	l1, l2 *dial.Clients
	wallet *wallet.LocalWallet
	oracle *messenger.Oracle
	bridge *contracts.TokenBridge
	portal *contracts.Portal
}

func newEnv(ctx *cli.Context) (*env, error) {
	logger := setupLogging(ctx)
	cfg, err := config.NewConfig(ctx)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(logger, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:   cfg,
		log:   logger,
		m:     metrics.NoopMetrics,
		out:   oplog.AppOut(ctx),
		store: s,
	}, nil
}

// dialChains connects to both chains and checks they are the configured ones.
func (e *env) dialChains(ctx context.Context) error {
	n := e.cfg.Network
	l1, err := dialChain(ctx, e.log, n.L1)
	if err != nil {
		return fmt.Errorf("L1: %w", err)
	}
	e.l1 = l1
	l2, err := dialChain(ctx, e.log, n.L2)
	if err != nil {
		return fmt.Errorf("L2: %w", err)
	}
	e.l2 = l2

	l1Caller := contracts.NewInstrumentedCaller(l1.Eth, e.m)
	l2Caller := contracts.NewInstrumentedCaller(l2.Eth, e.m)
	e.bridge = contracts.NewTokenBridge(l2Caller, contracts.BridgeConfig{
		Bridge:      n.L2Contracts.L2StandardBridge.Addr(),
		LocalToken:  n.Token.L2.Addr(),
		RemoteToken: n.Token.L1.Addr(),
		MinGasLimit: n.Bridge.MinGasLimit,
		ExtraData:   n.Bridge.ExtraData,
	})
	e.portal = contracts.NewPortal(l1Caller, n.L1Contracts.OptimismPortal.Addr())
	e.oracle, err = messenger.NewOracle(e.log, messenger.Config{
		L1:            l1.Eth,
		L2:            l2.Eth,
		Proofs:        l2.Proof,
		Portal:        e.portal,
		OutputOracle:  contracts.NewOutputOracle(l1Caller, n.L1Contracts.L2OutputOracle.Addr()),
		RetryAttempts: e.cfg.RPCRetries,
	})
	return err
}

func dialChain(ctx context.Context, logger log.Logger, c config.Chain) (*dial.Clients, error) {
	cl, err := dial.DialClientsWithTimeout(ctx, dial.DefaultDialTimeout, logger, c.RPC)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.RPC, err)
	}
	id, err := cl.Eth.ChainID(ctx)
	if err != nil {
		cl.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if id.Cmp(new(big.Int).SetUint64(c.ChainID)) != 0 {
		cl.Close()
		return nil, fmt.Errorf("%s serves chain %v, expected %d", c.RPC, id, c.ChainID)
	}
	return cl, nil
}

func (e *env) openWallet() error {
	key, err := txmgr.PrivateKeyFromConfig(e.cfg.TxMgrConfig)
	if err != nil {
		return err
	}
	n := e.cfg.Network
	lc := wallet.LocalConfig{
		Key: key,
		Endpoints: map[uint64]string{
			n.L1.ChainID: n.L1.RPC,
			n.L2.ChainID: n.L2.RPC,
		},
		InitialChain: n.L2.ChainID,
		TxMgr:        e.cfg.TxMgrConfig,
	}
	if e.cfg.ConfirmSwitch {
		lc.Confirm = terminalConfirm(e.out, n)
	}
	w, err := wallet.NewLocalWallet(e.log, e.m, lc)
	if err != nil {
		return err
	}
	e.wallet = w
	e.log.Info("Using wallet", "address", w.Address())
	return nil
}

func (e *env) controller() *withdrawal.Controller {
	var w wallet.Adapter
	if e.wallet != nil {
		w = e.wallet
	}
	var (
		bridge withdrawal.TokenBridge
		oracle withdrawal.MessageOracle
		portal withdrawal.Portal
	)
	if e.bridge != nil {
		bridge, oracle, portal = e.bridge, e.oracle, e.portal
	}
	return withdrawal.NewController(e.log, withdrawal.Config{PollInterval: e.cfg.PollInterval}, w, bridge, oracle, portal, e.m)
}

// load reads the request named by --id.
func (e *env) load(ctx *cli.Context) (withdrawal.WithdrawalRequest, error) {
	id, err := parseID(ctx.String(flags.IDFlag.Name))
	if err != nil {
		return withdrawal.WithdrawalRequest{}, err
	}
	return e.store.Get(id)
}

// save stores the outcome of an operation, including a failed one, then returns its error.
func (e *env) save(req withdrawal.WithdrawalRequest, opErr error) error {
	if err := e.store.Put(req); err != nil {
		return errors.Join(opErr, err)
	}
	printRequest(e.out, req)
	return opErr
}

// startMetrics replaces the no-op metrics and serves them when enabled.
func (e *env) startMetrics() error {
	m := metrics.NewMetrics("")
	m.RecordInfo(Version)
	e.m = m
	mc := e.cfg.MetricsConfig
	if !mc.Enabled {
		return nil
	}
	srv, err := opmetrics.StartServer(m.Registry(), mc.ListenAddr, mc.ListenPort)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	e.metricsSrv = srv
	e.log.Info("Started metrics server", "addr", srv.Addr())
	return nil
}

func (e *env) Close() error {
	var result *multierror.Error
	if e.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.metricsSrv.Stop(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to stop metrics server: %w", err))
		}
	}
	if e.wallet != nil {
		e.wallet.Close()
	}
	if e.l1 != nil {
		e.l1.Close()
	}
	if e.l2 != nil {
		e.l2.Close()
	}
	if err := e.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// withEnv opens the environment for action and closes it afterwards.
func withEnv(with needs, action func(ctx *cli.Context, e *env) error) cli.ActionFunc {
	return interruptible(func(ctx *cli.Context) (err error) {
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := e.Close(); closeErr != nil {
				err = multierror.Append(err, closeErr).ErrorOrNil()
			}
		}()
		if with&needMetrics != 0 {
			if err := e.startMetrics(); err != nil {
				return err
			}
		}
		if with&needChains != 0 {
			if err := e.dialChains(ctx.Context); err != nil {
				return err
			}
		}
		if with&needWallet != 0 {
			if err := e.openWallet(); err != nil {
				return err
			}
		}
		return action(ctx, e)
	})
}

type needs uint8

const (
	needStore  needs = 0
	needChains needs = 1 << iota
	needWallet
	needMetrics
)
