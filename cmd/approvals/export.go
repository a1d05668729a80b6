package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"approvalScope/internal/chain"
	"approvalScope/internal/indexer"
	"approvalScope/internal/storage"
	"approvalScope/internal/topic"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	owners, err := topic.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(owners) == 0 {
		return fmt.Errorf("address list is required")
	}
	contracts, err := topic.ParseAddresses(cfg.Contracts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	source := indexer.NewSource(indexer.SourceConfig{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		CallTimeout:  cfg.CallTimeout,
	}, chainClient, logger)

	exporter := indexer.NewExporter(indexer.ExportConfig{
		Owners:            owners,
		Contracts:         contracts,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
	}, source, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("export start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("owners", len(owners)),
		zap.Int("contracts", len(contracts)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return exporter.Run(ctx)
}
