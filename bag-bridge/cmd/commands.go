package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/bag-token/blast-bridge/bag-bridge/contracts"
	"github.com/bag-token/blast-bridge/bag-bridge/flags"
	"github.com/bag-token/blast-bridge/bag-bridge/store"
	"github.com/bag-token/blast-bridge/bag-bridge/withdrawal"
)

var (
	NewCommand = &cli.Command{
		Name:   "new",
		Usage:  "Creates a withdrawal request for an amount of BAG",
		Flags:  []cli.Flag{flags.AmountFlag},
		Action: withEnv(needStore, newRequest),
	}
	ImportCommand = &cli.Command{
		Name:   "import",
		Usage:  "Tracks a withdrawal that was initiated elsewhere",
		Flags:  []cli.Flag{flags.HashFlag},
		Action: withEnv(needChains, importRequest),
	}
	CheckCommand = &cli.Command{
		Name:   "check",
		Usage:  "Checks the bridge allowance and balance of a request",
		Flags:  []cli.Flag{flags.IDFlag},
		Action: withEnv(needChains|needWallet, step((*withdrawal.Controller).CheckAllowance)),
	}
	ApproveCommand = &cli.Command{
		Name:   "approve",
		Usage:  "Approves the L2 bridge to spend the request amount",
		Flags:  []cli.Flag{flags.IDFlag},
		Action: withEnv(needChains|needWallet, step((*withdrawal.Controller).Approve)),
	}
	InitiateCommand = &cli.Command{
		Name:   "initiate",
		Usage:  "Initiates the withdrawal on L2",
		Flags:  []cli.Flag{flags.IDFlag},
		Action: withEnv(needChains|needWallet, step((*withdrawal.Controller).Initiate)),
	}
	StatusCommand = &cli.Command{
		Name:   "status",
		Usage:  "Refreshes a request from live chain state",
		Flags:  []cli.Flag{flags.IDFlag},
		Action: withEnv(needChains, status),
	}
	ProveCommand = &cli.Command{
		Name:   "prove",
		Usage:  "Proves the withdrawal on L1",
		Flags:  []cli.Flag{flags.IDFlag},
		Action: withEnv(needChains|needWallet, step((*withdrawal.Controller).Prove)),
	}
	FinalizeCommand = &cli.Command{
		Name:   "finalize",
		Usage:  "Finalizes the withdrawal on L1 once the challenge period has passed",
		Flags:  []cli.Flag{flags.IDFlag},
		Action: withEnv(needChains|needWallet, step((*withdrawal.Controller).Finalize)),
	}
	ListCommand = &cli.Command{
		Name:   "list",
		Usage:  "Lists stored withdrawal requests",
		Action: withEnv(needStore, list),
	}
	AbandonCommand = &cli.Command{
		Name:   "abandon",
		Usage:  "Marks a request as failed so it is never resumed",
		Flags:  []cli.Flag{flags.IDFlag, flags.ReasonFlag},
		Action: withEnv(needStore, abandon),
	}
)

type opFn func(c *withdrawal.Controller, ctx context.Context, req withdrawal.WithdrawalRequest) (withdrawal.WithdrawalRequest, error)

// step runs one controller operation on the request named by --id and stores the outcome.
func step(op opFn) func(ctx *cli.Context, e *env) error {
	return func(ctx *cli.Context, e *env) error {
		req, err := e.load(ctx)
		if err != nil {
			return err
		}
		req, err = op(e.controller(), ctx.Context, req)
		return e.save(req, err)
	}
}

func newRequest(ctx *cli.Context, e *env) error {
	n := e.cfg.Network
	req, err := withdrawal.NewRequest(ctx.String(flags.AmountFlag.Name), n.L2.ChainID, n.L1.ChainID)
	if err != nil {
		return err
	}
	return e.save(req, nil)
}

func importRequest(ctx *cli.Context, e *env) error {
	hash, err := withdrawal.ParseWithdrawalHash(ctx.String(flags.HashFlag.Name))
	if err != nil {
		return err
	}
	if existing, err := e.store.FindByHash(hash); err == nil {
		return fmt.Errorf("withdrawal %s is already tracked by request %s", hash, existing.ID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	msg, err := e.oracle.Message(ctx.Context, hash)
	if err != nil {
		return err
	}
	w, err := contracts.DecodeERC20Withdrawal(msg.Data)
	if err != nil {
		return fmt.Errorf("withdrawal %s: %w", hash, err)
	}
	n := e.cfg.Network
	if w.L2Token != n.Token.L2.Addr() || w.L1Token != n.Token.L1.Addr() {
		return fmt.Errorf("withdrawal %s moves %s to %s, not the configured token", hash, w.L2Token, w.L1Token)
	}
	if w.From != w.To {
		e.log.Warn("Withdrawal pays out to a different address", "from", w.From, "to", w.To)
	}
	req, err := withdrawal.ImportRequest(hash.Hex(), w.Amount, n.L2.ChainID, n.L1.ChainID)
	if err != nil {
		return err
	}
	req, err = e.controller().Refresh(ctx.Context, req)
	return e.save(req, err)
}

func status(ctx *cli.Context, e *env) error {
	req, err := e.load(ctx)
	if err != nil {
		return err
	}
	// Before initiation the state comes from the wallet's allowance and balance.
	if !req.State.HasHash() && !req.State.Terminal() {
		if err := e.openWallet(); err != nil {
			return err
		}
	}
	req, err = e.controller().Refresh(ctx.Context, req)
	return e.save(req, err)
}

func list(ctx *cli.Context, e *env) error {
	reqs, err := e.store.List()
	if err != nil {
		return err
	}
	printTable(e.out, reqs)
	return nil
}

func abandon(ctx *cli.Context, e *env) error {
	req, err := e.load(ctx)
	if err != nil {
		return err
	}
	req, err = e.controller().Abandon(req, ctx.String(flags.ReasonFlag.Name))
	return e.save(req, err)
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid request id %q: %w", s, err)
	}
	return id, nil
}
