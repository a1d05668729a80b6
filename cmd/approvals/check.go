package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"approvalScope/internal/approval"
	"approvalScope/internal/topic"
)

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	owners := parseOwners(out, a.cfg.Addresses)
	if len(owners) == 0 {
		return fmt.Errorf("at least one valid address is required")
	}
	contracts, err := topic.ParseAddresses(a.cfg.Contracts)
	if err != nil {
		return err
	}

	for _, owner := range owners {
		if len(owners) > 1 {
			fmt.Fprintf(out, "# %s\n", owner.Hex())
		}
		result, err := a.service.Approvals(ctx, owner, contracts)
		if err != nil {
			fmt.Fprintf(out, "failed %s: %v\n", owner.Hex(), err)
			continue
		}
		printApprovals(out, result)
	}
	return nil
}

func printApprovals(w io.Writer, result approval.EnrichResult) {
	for _, a := range result.Approvals {
		fmt.Fprintf(w, "approval on %s (%s) of %s to %s\n",
			a.Token.DisplayName(), a.Token.DisplaySymbol(), a.Amount.String(), a.Spender.Hex())
	}
	for _, a := range result.Revoked {
		fmt.Fprintf(w, "revoked on %s (%s) for %s\n",
			a.Token.DisplayName(), a.Token.DisplaySymbol(), a.Spender.Hex())
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "skipped approval in tx %s on %s: %s\n", f.TxHash, f.Contract, f.Error)
	}
}
