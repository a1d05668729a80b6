package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "approvals",
		Short:        "ERC20 approval and exposure checker",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "List the live approvals an address has granted",
		RunE:  runCheck,
	}
	addQueryFlags(checkCmd)
	root.AddCommand(checkCmd)

	exposureCmd := &cobra.Command{
		Use:   "exposure",
		Short: "Compute per-token exposure from live allowances and balances",
		RunE:  runExposure,
	}
	addQueryFlags(exposureCmd)
	exposureCmd.Flags().String("pg-dsn", "", "Postgres DSN to persist the report (optional)")
	root.AddCommand(exposureCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export raw approval logs to JSONL",
		RunE:  runExport,
	}
	exportCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	exportCmd.Flags().StringSlice("address", nil, "owner addresses (comma-separated)")
	exportCmd.Flags().StringSlice("contract", nil, "restrict to token contracts (comma-separated)")
	exportCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	exportCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	exportCmd.Flags().Uint64("batch-size", 5000, "blocks per eth_getLogs batch")
	exportCmd.Flags().Int("max-retries", 0, "retry attempts per batch")
	exportCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	exportCmd.Flags().String("out", "./data/approvals.jsonl", "output JSONL path")
	exportCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	exportCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(exportCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve approval queries over HTTP",
		RunE:  runServe,
	}
	addQueryFlags(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("request-timeout", time.Minute, "per-request deadline")
	root.AddCommand(serveCmd)

	return root
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().StringSlice("address", nil, "owner addresses (comma-separated)")
	cmd.Flags().StringSlice("contract", nil, "restrict to token contracts (comma-separated)")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 5000, "blocks per eth_getLogs batch")
	cmd.Flags().Int("max-retries", 0, "retry attempts per log batch")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Duration("call-timeout", 10*time.Second, "timeout per chain call")
	cmd.Flags().Int("workers", 8, "concurrent chain calls")
	cmd.Flags().Bool("usd", false, "include USD prices")
	cmd.Flags().String("filter-policy", "drop", "zero-amount events: drop or revoked")
	cmd.Flags().String("price-url", "https://api.coingecko.com/api/v3", "CoinGecko API base URL")
	cmd.Flags().String("price-api-key", "", "CoinGecko API key")
	cmd.Flags().Duration("price-timeout", 10*time.Second, "timeout per price lookup")
	cmd.Flags().String("in", "", "read approval logs from this JSONL file instead of RPC")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
