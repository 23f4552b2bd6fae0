package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/bag-token/blast-bridge/bag-bridge/config"
	"github.com/bag-token/blast-bridge/bag-bridge/wallet"
	"github.com/bag-token/blast-bridge/bag-bridge/withdrawal"
)

var (
	printGreen  = color.New(color.FgGreen).SprintFunc()
	printYellow = color.New(color.FgYellow).SprintFunc()
	printRed    = color.New(color.FgRed).SprintFunc()
	printCyan   = color.New(color.FgCyan).SprintFunc()
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// stateColor returns the colouring for a state. Output that is not a terminal stays plain.
func stateColor(w io.Writer, s withdrawal.State) func(a ...any) string {
	if !isTerminal(w) {
		return fmt.Sprint
	}
	switch {
	case s == withdrawal.Relayed:
		return printGreen
	case s == withdrawal.Failed:
		return printRed
	case s == withdrawal.ReadyToProve || s == withdrawal.ReadyToFinalize || s == withdrawal.ReadyToInitiate:
		return printCyan
	default:
		return printYellow
	}
}

func printRequest(w io.Writer, req withdrawal.WithdrawalRequest) {
	paint := stateColor(w, req.State)
	fmt.Fprintf(w, "id:        %s\n", req.ID)
	fmt.Fprintf(w, "amount:    %s\n", req.Amount.Decimal())
	fmt.Fprintf(w, "route:     %d -> %d\n", req.SourceChain, req.DestinationChain)
	fmt.Fprintf(w, "state:     %s\n", paint(req.State.String()))
	if req.WithdrawalHash != (common.Hash{}) {
		fmt.Fprintf(w, "hash:      %s\n", req.WithdrawalHash)
	}
	if req.PendingTx != nil {
		fmt.Fprintf(w, "pending:   %s tx %s on chain %d\n", req.PendingTx.Op, req.PendingTx.Hash, req.PendingTx.ChainID)
	}
	if req.LastError != "" {
		fmt.Fprintf(w, "error:     %s\n", req.LastError)
	}
	fmt.Fprintf(w, "updated:   %s\n", req.UpdatedAt.Format(time.RFC3339))
}

func printTable(w io.Writer, reqs []withdrawal.WithdrawalRequest) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Amount", "State", "Withdrawal Hash", "Updated"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	for _, req := range reqs {
		hash := ""
		if req.State.HasHash() {
			hash = req.WithdrawalHash.Hex()
		}
		table.Append([]string{
			req.ID.String(),
			req.Amount.Decimal(),
			stateColor(w, req.State)(req.State.String()),
			hash,
			req.UpdatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

// terminalConfirm asks on stdin before each chain switch.
func terminalConfirm(out io.Writer, n *config.Network) wallet.ConfirmFn {
	name := func(id uint64) string {
		switch id {
		case n.L1.ChainID:
			return fmt.Sprintf("L1 (%d)", id)
		case n.L2.ChainID:
			return fmt.Sprintf("L2 (%d)", id)
		default:
			return fmt.Sprintf("chain %d", id)
		}
	}
	in := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, from, to uint64) (bool, error) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return false, errors.New("cannot confirm chain switch: stdin is not a terminal")
		}
		fmt.Fprintf(out, "Switch wallet from %s to %s? [y/N] ", name(from), name(to))
		answer := make(chan string, 1)
		errs := make(chan error, 1)
		go func() {
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				errs <- fmt.Errorf("failed to read answer: %w", err)
				return
			}
			answer <- line
		}()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case err := <-errs:
			return false, err
		case line := <-answer:
			line = strings.ToLower(strings.TrimSpace(line))
			return line == "y" || line == "yes", nil
		}
	}
}
