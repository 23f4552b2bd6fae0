package main

import (
	"context"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/bag-token/blast-bridge/bag-bridge/flags"
	"github.com/bag-token/blast-bridge/bag-bridge/withdrawal"
	opservice "github.com/bag-token/blast-bridge/op-service"
	"github.com/bag-token/blast-bridge/op-service/ctxinterrupt"
	oplog "github.com/bag-token/blast-bridge/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	oplog.SetupDefaults()

	app := newApp()
	if err := app.RunContext(ctx, os.Args); err != nil {
		args := []any{"err", err}
		if kind := withdrawal.KindOf(err); kind != nil {
			args = append(args, "kind", kind.Error())
		}
		log.Error("Command failed", args...)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = opservice.FormatVersion(Version, GitCommit, GitDate, "")
	app.Name = "bag-bridge"
	app.Usage = "Withdraw BAG from Blast to Ethereum over the standard bridge"
	app.Description = "Tracks each withdrawal request from allowance check through initiation, " +
		"proof and finalization, re-reading chain state before every step."
	app.Commands = []*cli.Command{
		NewCommand,
		ImportCommand,
		CheckCommand,
		ApproveCommand,
		InitiateCommand,
		StatusCommand,
		ProveCommand,
		FinalizeCommand,
		WatchCommand,
		ListCommand,
		AbandonCommand,
	}
	app.Action = func(c *cli.Context) error {
		return cli.ShowAppHelp(c)
	}
	return app
}
