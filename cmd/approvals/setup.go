package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"approvalScope/internal/approval"
	"approvalScope/internal/chain"
	"approvalScope/internal/config"
	"approvalScope/internal/erc20"
	"approvalScope/internal/indexer"
	"approvalScope/internal/pipeline"
	"approvalScope/internal/price"
	"approvalScope/internal/storage"
	"approvalScope/internal/topic"
)

type app struct {
	cfg     config.Config
	logger  *zap.Logger
	chain   *chain.Client
	service *pipeline.Service
}

func (a *app) Close() {
	if a.chain != nil {
		a.chain.Close()
	}
	_ = a.logger.Sync()
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// newApp wires the pipeline. The price service is built when withPrices is
// set; serve always asks for it so usd=true works per request.
func newApp(ctx context.Context, cmd *cobra.Command, withPrices bool) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	policy, err := approval.ParseFilterPolicy(cfg.FilterPolicy)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	var logs approval.LogSource
	if cfg.In != "" {
		logs = storage.NewJsonlSource(cfg.In, logger)
	} else {
		logs = indexer.NewSource(indexer.SourceConfig{
			BatchSize:    cfg.BatchSize,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			CallTimeout:  cfg.CallTimeout,
		}, chainClient, logger)
	}

	var prices erc20.PriceService
	if withPrices || cfg.USD {
		prices = price.NewCoinGecko(price.Config{
			BaseURL: cfg.PriceURL,
			APIKey:  cfg.PriceAPIKey,
			Timeout: cfg.PriceTimeout,
		}, logger)
	}

	service := pipeline.NewService(pipeline.Config{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Policy:       policy,
		Workers:      cfg.Workers,
		CallTimeout:  cfg.CallTimeout,
		PriceTimeout: cfg.PriceTimeout,
	}, logs, chainClient, prices, logger)

	logger.Info("approvals start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("in", cfg.In),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(cfg.Addresses)),
		zap.Int("workers", cfg.Workers),
		zap.Bool("usd", cfg.USD),
		zap.Bool("prices", prices != nil),
		zap.String("filter_policy", string(policy)),
	)

	return &app{cfg: cfg, logger: logger, chain: chainClient, service: service}, nil
}

// parseOwners keeps the well-formed owner addresses and reports the rest on w.
func parseOwners(w io.Writer, inputs []string) []common.Address {
	owners := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		owner, err := topic.ParseAddress(input)
		if err != nil {
			fmt.Fprintf(w, "skip %s: %v\n", input, err)
			continue
		}
		owners = append(owners, owner)
	}
	return owners
}
