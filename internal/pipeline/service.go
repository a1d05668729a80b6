// Package pipeline runs approval queries end to end: log retrieval,
// deduplication, enrichment and exposure aggregation.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"approvalScope/internal/approval"
	"approvalScope/internal/erc20"
	"approvalScope/internal/exposure"
	"approvalScope/internal/model"
	"approvalScope/internal/topic"
)

// View selects what a query returns per owner.
type View string

const (
	ViewRaw      View = "raw"
	ViewExposure View = "exposure"
)

// ParseView maps a view name to a View. Empty means raw.
func ParseView(name string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(name))) {
	case "", ViewRaw:
		return ViewRaw, nil
	case ViewExposure:
		return ViewExposure, nil
	default:
		return "", fmt.Errorf("unknown view %q", name)
	}
}

// Config holds settings shared by every request.
type Config struct {
	FromBlock    uint64
	ToBlock      uint64
	Policy       approval.FilterPolicy
	Workers      int
	CallTimeout  time.Duration
	PriceTimeout time.Duration
}

// Service answers approval and exposure queries.
type Service struct {
	cfg    Config
	logs   approval.LogSource
	client *erc20.Client
	prices erc20.PriceService
	logger *zap.Logger
}

// NewService wires a Service. prices may be nil, in which case no USD
// figures are produced.
func NewService(cfg Config, logs approval.LogSource, caller erc20.Caller, prices erc20.PriceService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = approval.PolicyDrop
	}
	return &Service{
		cfg:    cfg,
		logs:   logs,
		client: erc20.NewClient(caller, cfg.CallTimeout),
		prices: prices,
		logger: logger,
	}
}

// PricesEnabled reports whether USD figures can be produced.
func (s *Service) PricesEnabled() bool {
	return s.prices != nil
}

// request carries the state owned by one logical request. Nothing in it
// outlives the call that created it.
type request struct {
	resolver *erc20.Resolver
}

func (s *Service) newRequest() *request {
	return &request{
		resolver: erc20.NewResolver(s.client, s.prices, erc20.ResolverConfig{PriceTimeout: s.cfg.PriceTimeout}, s.logger),
	}
}

// Approvals returns the enriched approvals granted by owner, optionally
// restricted to contracts. The error is set only when logs could not be read.
func (s *Service) Approvals(ctx context.Context, owner common.Address, contracts []common.Address) (approval.EnrichResult, error) {
	return s.approvals(ctx, s.newRequest(), owner, contracts)
}

// Exposure returns owner's exposure report and the item failures collected
// on the way. The error is set only when logs could not be read.
func (s *Service) Exposure(ctx context.Context, owner common.Address, contracts []common.Address, usd bool) (model.ExposureReport, []model.ItemError, error) {
	return s.exposure(ctx, s.newRequest(), owner, contracts, usd)
}

func (s *Service) approvals(ctx context.Context, req *request, owner common.Address, contracts []common.Address) (approval.EnrichResult, error) {
	if s.logs == nil {
		return approval.EnrichResult{}, fmt.Errorf("log source is nil")
	}

	q := model.LogQuery{
		Topic0:    erc20.ApprovalTopic,
		Owner:     topic.FromAddress(owner),
		FromBlock: s.cfg.FromBlock,
		ToBlock:   s.cfg.ToBlock,
		Contracts: contracts,
	}
	events, err := s.logs.QueryLogs(ctx, q)
	if err != nil {
		return approval.EnrichResult{}, fmt.Errorf("query approval logs for %s: %w", owner.Hex(), err)
	}

	deduped := approval.Dedupe(events)
	enricher := approval.NewEnricher(req.resolver, approval.EnrichConfig{Policy: s.cfg.Policy, Workers: s.cfg.Workers}, s.logger)
	result := enricher.Enrich(ctx, deduped)

	s.logger.Debug("approvals enriched",
		zap.String("owner", owner.Hex()),
		zap.Int("logs", len(events)),
		zap.Int("deduped", len(deduped)),
		zap.Int("approvals", len(result.Approvals)),
		zap.Int("revoked", len(result.Revoked)),
		zap.Int("dropped", result.Dropped),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (s *Service) exposure(ctx context.Context, req *request, owner common.Address, contracts []common.Address, usd bool) (model.ExposureReport, []model.ItemError, error) {
	enriched, err := s.approvals(ctx, req, owner, contracts)
	if err != nil {
		return model.NewExposureReport(owner), nil, err
	}

	aggregator := exposure.NewAggregator(exposure.Config{Workers: s.cfg.Workers, USD: usd}, s.client, s.logger)
	report, failures := aggregator.Aggregate(ctx, owner, enriched.Approvals)

	all := make([]model.ItemError, 0, len(enriched.Failures)+len(failures))
	all = append(all, enriched.Failures...)
	all = append(all, failures...)
	return report, all, nil
}

// Request is a multi-address query.
type Request struct {
	Addresses []string
	Contracts []string
	View      View
	USD       bool
}

// OwnerResult holds the successful part of one owner's answer.
type OwnerResult struct {
	Owner     common.Address           `json:"owner"`
	Approvals []model.EnrichedApproval `json:"approvals,omitempty"`
	Revoked   []model.EnrichedApproval `json:"revoked,omitempty"`
	Exposure  []model.ContractExposure `json:"exposure,omitempty"`
	Dropped   int                      `json:"dropped"`
}

// Response carries partial results plus every item failure.
type Response struct {
	Results  []OwnerResult     `json:"results"`
	Failures []model.ItemError `json:"failures"`
}

// Query answers a multi-address request. Malformed addresses are reported
// before any network call; a failing owner never aborts the others.
func (s *Service) Query(ctx context.Context, req Request) Response {
	resp := Response{Results: make([]OwnerResult, 0, len(req.Addresses)), Failures: make([]model.ItemError, 0)}

	var contracts []common.Address
	for _, raw := range req.Contracts {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		contract, err := topic.ParseAddress(raw)
		if err != nil {
			resp.Failures = append(resp.Failures, model.NewItemError("", raw, "", err))
			continue
		}
		contracts = append(contracts, contract)
	}
	if len(resp.Failures) > 0 {
		return resp
	}

	owners := make([]common.Address, 0, len(req.Addresses))
	for _, raw := range req.Addresses {
		owner, err := topic.ParseAddress(raw)
		if err != nil {
			resp.Failures = append(resp.Failures, model.NewItemError(raw, "", "", err))
			continue
		}
		owners = append(owners, owner)
	}
	if len(owners) == 0 {
		return resp
	}

	view := req.View
	if view == "" {
		view = ViewRaw
	}

	shared := s.newRequest()
	results := make([]*OwnerResult, len(owners))
	failures := make([][]model.ItemError, len(owners))

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, owner := range owners {
		i, owner := i, owner
		g.Go(func() error {
			result, itemFailures, err := s.answer(ctx, shared, owner, contracts, view, req.USD)
			if err != nil {
				s.logger.Warn("owner query failed", zap.String("owner", owner.Hex()), zap.Error(err))
				failures[i] = []model.ItemError{model.NewItemError(owner.Hex(), "", "", err)}
				return nil
			}
			results[i] = &result
			failures[i] = itemFailures
			return nil
		})
	}
	_ = g.Wait()

	for i, result := range results {
		if result != nil {
			resp.Results = append(resp.Results, *result)
		}
		resp.Failures = append(resp.Failures, failures[i]...)
	}
	return resp
}

func (s *Service) answer(ctx context.Context, req *request, owner common.Address, contracts []common.Address, view View, usd bool) (OwnerResult, []model.ItemError, error) {
	result := OwnerResult{Owner: owner}
	if view == ViewExposure {
		report, failures, err := s.exposure(ctx, req, owner, contracts, usd)
		if err != nil {
			return result, nil, err
		}
		result.Exposure = report.Sorted()
		return result, failures, nil
	}

	enriched, err := s.approvals(ctx, req, owner, contracts)
	if err != nil {
		return result, nil, err
	}
	result.Approvals = enriched.Approvals
	result.Revoked = enriched.Revoked
	result.Dropped = enriched.Dropped
	return result, enriched.Failures, nil
}
