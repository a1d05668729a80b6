package approval

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"approvalScope/internal/model"
	"approvalScope/internal/topic"
)

// MetadataResolver returns token metadata. erc20.Resolver satisfies it.
type MetadataResolver interface {
	Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// EnrichConfig controls enrichment behavior.
type EnrichConfig struct {
	Policy  FilterPolicy
	Workers int
}

// EnrichResult holds typed approvals and the per-item failures that were excluded.
type EnrichResult struct {
	Approvals []model.EnrichedApproval `json:"approvals"`
	Revoked   []model.EnrichedApproval `json:"revoked,omitempty"`
	Failures  []model.ItemError        `json:"failures,omitempty"`
	Dropped   int                      `json:"dropped"`
}

// Enricher maps deduplicated raw events to EnrichedApproval records.
type Enricher struct {
	resolver MetadataResolver
	cfg      EnrichConfig
	logger   *zap.Logger
}

func NewEnricher(resolver MetadataResolver, cfg EnrichConfig, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyDrop
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Enricher{resolver: resolver, cfg: cfg, logger: logger}
}

type candidate struct {
	event   model.RawApprovalEvent
	amount  *big.Int
	verdict Verdict
}

// Enrich decodes amounts, applies the filter policy and attaches metadata.
// A metadata failure excludes only the approvals of that contract.
func (e *Enricher) Enrich(ctx context.Context, events []model.RawApprovalEvent) EnrichResult {
	result := EnrichResult{
		Approvals: make([]model.EnrichedApproval, 0, len(events)),
	}

	candidates := make([]candidate, 0, len(events))
	contracts := make([]common.Address, 0)
	seen := make(map[common.Address]struct{})
	for _, event := range events {
		amount, verdict := e.cfg.Policy.Classify(event)
		if verdict == VerdictAmbiguous {
			result.Dropped++
			e.logger.Debug("drop ambiguous approval",
				zap.String("contract", event.Address.Hex()),
				zap.String("tx_hash", event.TxHash.Hex()),
				zap.Int("topics", len(event.Topics)),
				zap.Int("data_len", len(event.Data)),
			)
			continue
		}
		candidates = append(candidates, candidate{event: event, amount: amount, verdict: verdict})
		if _, ok := seen[event.Address]; !ok {
			seen[event.Address] = struct{}{}
			contracts = append(contracts, event.Address)
		}
	}

	metas := e.resolveAll(ctx, contracts)

	for _, c := range candidates {
		res := metas[c.event.Address]
		owner := topic.TopicToAddress(c.event.Topics[model.TopicOwner])
		if res.err != nil {
			result.Failures = append(result.Failures, model.NewItemError(owner.Hex(), c.event.Address.Hex(), c.event.TxHash.Hex(), res.err))
			continue
		}

		enriched := model.EnrichedApproval{
			Owner:       owner,
			Spender:     topic.TopicToAddress(c.event.Topics[model.TopicSpender]),
			Contract:    c.event.Address,
			Amount:      c.amount,
			TxHash:      c.event.TxHash,
			BlockNumber: c.event.BlockNumber,
			TxIndex:     c.event.TxIndex,
			Token:       res.meta,
		}
		if c.verdict == VerdictRevoked {
			result.Revoked = append(result.Revoked, enriched)
			continue
		}
		result.Approvals = append(result.Approvals, enriched)
	}

	return result
}

type resolved struct {
	meta model.TokenMeta
	err  error
}

func (e *Enricher) resolveAll(ctx context.Context, contracts []common.Address) map[common.Address]resolved {
	out := make(map[common.Address]resolved, len(contracts))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for _, contract := range contracts {
		contract := contract
		g.Go(func() error {
			meta, err := e.resolver.Resolve(ctx, contract)
			if err != nil {
				e.logger.Warn("metadata resolve failed", zap.String("contract", contract.Hex()), zap.Error(err))
			}
			mu.Lock()
			out[contract] = resolved{meta: meta, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
