package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/bag-token/blast-bridge/bag-bridge/flags"
	"github.com/bag-token/blast-bridge/bag-bridge/withdrawal"
	"github.com/bag-token/blast-bridge/op-service/ctxinterrupt"
)

var watchIDFlag = &cli.StringFlag{
	Name:  "id",
	Usage: "Withdrawal request id. Without it every initiated request is driven in turn.",
}

var WatchCommand = &cli.Command{
	Name:  "watch",
	Usage: "Drives initiated withdrawals to completion",
	Description: "Polls the withdrawal status and submits the proof and the finalization " +
		"as each becomes possible. With --until it only waits for the state.",
	Flags:  []cli.Flag{watchIDFlag, flags.TargetFlag},
	Action: withEnv(needMetrics|needChains|needWallet, watch),
}

func watch(ctx *cli.Context, e *env) error {
	e.m.RecordUp()
	ctrl := e.controller()

	var target withdrawal.State
	waitOnly := ctx.IsSet(flags.TargetFlag.Name)
	if waitOnly {
		s, err := withdrawal.ParseState(ctx.String(flags.TargetFlag.Name))
		if err != nil {
			return err
		}
		target = s
	}
	run := func(req withdrawal.WithdrawalRequest) error {
		var err error
		if waitOnly {
			req, err = ctrl.WaitForState(ctx.Context, req, target)
		} else {
			req, err = ctrl.Drive(ctx.Context, req)
		}
		return e.save(req, err)
	}

	if ctx.IsSet(watchIDFlag.Name) {
		id, err := parseID(ctx.String(watchIDFlag.Name))
		if err != nil {
			return err
		}
		req, err := e.store.Get(id)
		if err != nil {
			return err
		}
		return run(req)
	}

	reqs, err := e.store.List()
	if err != nil {
		return err
	}
	var result error
	for _, req := range reqs {
		if req.State.Terminal() {
			continue
		}
		if !req.State.HasHash() {
			e.log.Info("Skipping withdrawal that is not initiated", "id", req.ID, "state", req.State)
			continue
		}
		e.log.Info("Watching withdrawal", "id", req.ID, "state", req.State)
		if err := run(req); err != nil {
			if errors.Is(err, ctxinterrupt.ErrInterrupted) || ctx.Context.Err() != nil {
				return err
			}
			result = errors.Join(result, fmt.Errorf("request %s: %w", req.ID, err))
		}
	}
	return result
}
