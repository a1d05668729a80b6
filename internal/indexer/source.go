// Package indexer reads Approval logs from an Ethereum JSON-RPC node in
// bounded block batches.
package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"approvalScope/internal/model"
)

const defaultBatchSize = 5000

// LogFilterer is the part of the chain client the indexer needs.
type LogFilterer interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// SourceConfig holds batching and retry settings. CallTimeout bounds each
// eth_blockNumber and eth_getLogs attempt; zero leaves attempts unbounded.
type SourceConfig struct {
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	CallTimeout  time.Duration
}

// Source serves log queries from an RPC node.
type Source struct {
	cfg    SourceConfig
	chain  LogFilterer
	logger *zap.Logger
}

func NewSource(cfg SourceConfig, chain LogFilterer, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Source{cfg: cfg, chain: chain, logger: logger}
}

// QueryLogs fetches every Approval log emitted for q.Owner in the requested
// block range. Removed and duplicate logs are dropped and the result is
// sorted ascending in chain order.
func (s *Source) QueryLogs(ctx context.Context, q model.LogQuery) ([]model.RawApprovalEvent, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}

	to, err := s.resolveTo(ctx, q.ToBlock)
	if err != nil {
		return nil, err
	}
	events := make([]model.RawApprovalEvent, 0)
	if q.FromBlock > to {
		return events, nil
	}

	ranges, err := SplitRange(q.FromBlock, to, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	topics := [][]common.Hash{{q.Topic0}, {q.Owner}}
	seen := make(logSet)
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrTransport, err)
		}

		batch, err := s.fetchRange(ctx, blockRange, q.Contracts, topics)
		if err != nil {
			return nil, err
		}
		for _, event := range batch {
			if seen.add(event) {
				events = append(events, event)
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})

	s.logger.Debug("approval logs fetched",
		zap.String("owner", q.Owner.Hex()),
		zap.Int("logs", len(events)),
		zap.Uint64("from", q.FromBlock),
		zap.Uint64("to", to),
	)
	return events, nil
}

func (s *Source) resolveTo(ctx context.Context, to uint64) (uint64, error) {
	if to != 0 {
		return to, nil
	}
	var latest uint64
	err := s.retry(ctx, func(ctx context.Context) error {
		var err error
		latest, err = s.chain.LatestBlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: latest block: %v", model.ErrTransport, err)
	}
	return latest, nil
}

func (s *Source) fetchRange(ctx context.Context, blockRange BlockRange, contracts []common.Address, topics [][]common.Hash) ([]model.RawApprovalEvent, error) {
	var logs []types.Log
	err := s.retry(ctx, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, blockRange.From, blockRange.To, contracts, topics)
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: filter logs %d-%d: %v", model.ErrTransport, blockRange.From, blockRange.To, err)
	}

	events := make([]model.RawApprovalEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		events = append(events, toRawApproval(log))
	}
	return events, nil
}

func (s *Source) retry(ctx context.Context, call func(context.Context) error) error {
	return withRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		if s.cfg.CallTimeout <= 0 {
			return call(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
		return call(attemptCtx)
	})
}
