package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"approvalScope/internal/erc20"
	"approvalScope/internal/storage"
	"approvalScope/internal/topic"
)

// ExportConfig selects the logs written by an Exporter.
type ExportConfig struct {
	Owners            []common.Address
	Contracts         []common.Address
	FromBlock         uint64
	ToBlock           uint64
	CheckpointPath    string
	CheckpointEnabled bool
}

// Exporter streams Approval logs for a set of owners into a sink, batch by
// batch, saving a checkpoint after each stored batch.
type Exporter struct {
	cfg        ExportConfig
	source     *Source
	sink       storage.Sink
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

func NewExporter(cfg ExportConfig, source *Source, sink storage.Sink, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled, selectionKey(cfg)),
	}
}

// selectionKey fingerprints the owners and contracts of an export so a
// checkpoint written for one selection is not reused for another.
func selectionKey(cfg ExportConfig) string {
	part := func(addresses []common.Address) string {
		hexes := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			hexes = append(hexes, strings.ToLower(addr.Hex()))
		}
		sort.Strings(hexes)
		return strings.Join(hexes, ",")
	}
	return crypto.Keccak256Hash([]byte(part(cfg.Owners) + "|" + part(cfg.Contracts))).Hex()
}

// Run executes the export loop.
func (e *Exporter) Run(ctx context.Context) error {
	if e.source == nil || e.source.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if e.sink == nil {
		return fmt.Errorf("storage is nil")
	}
	if len(e.cfg.Owners) == 0 {
		return fmt.Errorf("at least one owner address is required")
	}

	from := e.cfg.FromBlock
	to, err := e.source.resolveTo(ctx, e.cfg.ToBlock)
	if err != nil {
		return err
	}

	cp, ok, err := e.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok && cp.LastProcessedBlock >= from {
		from = cp.LastProcessedBlock + 1
		e.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}

	if from > to {
		e.logger.Info("nothing to export", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, e.source.cfg.BatchSize)
	if err != nil {
		return err
	}

	owners := make([]common.Hash, 0, len(e.cfg.Owners))
	for _, owner := range e.cfg.Owners {
		owners = append(owners, topic.FromAddress(owner))
	}
	topics := [][]common.Hash{{erc20.ApprovalTopic}, owners}

	seen := make(logSet)
	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		batch, err := e.source.fetchRange(ctx, blockRange, e.cfg.Contracts, topics)
		if err != nil {
			return err
		}
		fresh := batch[:0]
		for _, event := range batch {
			if seen.add(event) {
				fresh = append(fresh, event)
			}
		}

		if err := e.sink.PutApprovalBatch(fresh); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		if err := e.checkpoint.Save(blockRange.To); err != nil {
			return err
		}

		e.logger.Info("batch complete", zap.Int("logs", len(fresh)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}
