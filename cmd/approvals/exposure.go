package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"approvalScope/internal/exposure"
	"approvalScope/internal/model"
	"approvalScope/internal/storage/postgres"
	"approvalScope/internal/topic"
)

func runExposure(cmd *cobra.Command, _ []string) error {
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

	var store *postgres.Store
	if a.cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	for _, owner := range owners {
		report, failures, err := a.service.Exposure(ctx, owner, contracts, a.cfg.USD)
		if err != nil {
			fmt.Fprintf(out, "failed %s: %v\n", owner.Hex(), err)
			continue
		}
		printExposure(out, report, failures)

		if store == nil {
			continue
		}
		if last, ok, err := store.LastUpdated(ctx, owner.Hex()); err == nil && ok {
			a.logger.Info("replace exposure snapshot", zap.String("owner", owner.Hex()), zap.Time("previous", last))
		}
		runID, err := store.SaveReport(ctx, report)
		if err != nil {
			return fmt.Errorf("save report for %s: %w", owner.Hex(), err)
		}
		a.logger.Info("exposure snapshot saved",
			zap.String("owner", owner.Hex()),
			zap.String("run_id", runID.String()),
			zap.Int("contracts", len(report.Contracts)),
		)
	}
	return nil
}

func printExposure(w io.Writer, report model.ExposureReport, failures []model.ItemError) {
	fmt.Fprintf(w, "exposure of %s\n", report.Owner.Hex())
	for _, entry := range report.Sorted() {
		usd := "n/a"
		if entry.ExposureUSD != nil {
			usd = entry.ExposureUSD.StringFixed(2)
		}
		fmt.Fprintf(w, "  %s (%s) allowance=%s balance=%s exposure=%s usd=%s spenders=%d\n",
			entry.Token.DisplaySymbol(),
			entry.Contract.Hex(),
			exposure.FormatTokenAmount(entry.Allowance, entry.Token.Decimals),
			exposure.FormatTokenAmount(entry.Balance, entry.Token.Decimals),
			exposure.FormatTokenAmount(entry.Exposure, entry.Token.Decimals),
			usd,
			len(entry.Spenders),
		)
	}
	for _, f := range failures {
		if f.TxHash != "" {
			fmt.Fprintf(w, "  skipped %s in tx %s: %s\n", f.Contract, f.TxHash, f.Error)
			continue
		}
		fmt.Fprintf(w, "  skipped %s (%s): %s\n", f.Contract, f.Kind, f.Error)
	}
}
