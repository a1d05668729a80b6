// Package exposure derives, per token, how much of an owner's balance its
// approved spenders could actually move.
package exposure

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"approvalScope/internal/model"
)

// ChainReader reads live ERC20 state. erc20.Client satisfies it.
type ChainReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Config controls aggregation behavior.
type Config struct {
	// Workers bounds concurrent chain calls across contracts and spenders.
	Workers int
	// USD requests exposure in USD for every contract.
	USD bool
}

// Aggregator computes exposure reports.
type Aggregator struct {
	cfg    Config
	chain  ChainReader
	logger *zap.Logger
}

func NewAggregator(cfg Config, chain ChainReader, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Aggregator{cfg: cfg, chain: chain, logger: logger}
}

type contractGroup struct {
	contract common.Address
	token    model.TokenMeta
	spenders []common.Address
}

type contractResult struct {
	allowances []*big.Int
	balance    *big.Int
	err        error
}

// Aggregate builds the exposure report for owner from its enriched
// approvals. Allowance and balance are read live from the chain; log amounts
// only nominate the (spender, contract) pairs to query. A failing contract is
// left out of the report and returned as an ItemError.
func (a *Aggregator) Aggregate(ctx context.Context, owner common.Address, approvals []model.EnrichedApproval) (model.ExposureReport, []model.ItemError) {
	report := model.NewExposureReport(owner)
	groups := partition(approvals)
	if len(groups) == 0 {
		return report, nil
	}
	if a.chain == nil {
		failures := make([]model.ItemError, 0, len(groups))
		for _, group := range groups {
			failures = append(failures, model.NewItemError(owner.Hex(), group.contract.Hex(), "", fmt.Errorf("chain reader is nil")))
		}
		return report, failures
	}

	results := a.query(ctx, owner, groups)

	var failures []model.ItemError
	for i, group := range groups {
		res := results[i]
		if res.err != nil {
			a.logger.Warn("exposure query failed",
				zap.String("owner", owner.Hex()),
				zap.String("contract", group.contract.Hex()),
				zap.Error(res.err),
			)
			failures = append(failures, model.NewItemError(owner.Hex(), group.contract.Hex(), "", res.err))
			continue
		}

		allowance := SaturatingSum(res.allowances...)
		entry := model.ContractExposure{
			Contract:  group.contract,
			Token:     group.token,
			Spenders:  group.spenders,
			Allowance: allowance,
			Balance:   res.balance,
			Exposure:  Min(allowance, res.balance),
		}

		if a.cfg.USD {
			if group.token.PriceUSD == nil {
				err := fmt.Errorf("%s: %w", group.contract.Hex(), model.ErrPriceUnavailable)
				failures = append(failures, model.NewItemError(owner.Hex(), group.contract.Hex(), "", err))
			} else {
				usd := ToUSD(entry.Exposure, group.token.Decimals, *group.token.PriceUSD)
				entry.ExposureUSD = &usd
			}
		}

		report.Contracts[group.contract] = entry
	}

	return report, failures
}

// query issues every allowance and balance call through one bounded group.
func (a *Aggregator) query(ctx context.Context, owner common.Address, groups []contractGroup) []contractResult {
	results := make([]contractResult, len(groups))
	var mu sync.Mutex
	fail := func(i int, err error) {
		mu.Lock()
		if results[i].err == nil {
			results[i].err = err
		}
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, group := range groups {
		i, group := i, group
		results[i].allowances = make([]*big.Int, len(group.spenders))

		for j, spender := range group.spenders {
			j, spender := j, spender
			g.Go(func() error {
				value, err := a.chain.Allowance(ctx, group.contract, owner, spender)
				if err != nil {
					fail(i, fmt.Errorf("allowance %s: %w", spender.Hex(), err))
					return nil
				}
				results[i].allowances[j] = value
				return nil
			})
		}

		g.Go(func() error {
			value, err := a.chain.BalanceOf(ctx, group.contract, owner)
			if err != nil {
				fail(i, fmt.Errorf("balance: %w", err))
				return nil
			}
			results[i].balance = value
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// partition groups approvals by contract in first-seen order, with distinct
// spenders per contract.
func partition(approvals []model.EnrichedApproval) []contractGroup {
	groups := make([]contractGroup, 0)
	index := make(map[common.Address]int)
	spenderSeen := make(map[common.Address]map[common.Address]struct{})

	for _, approval := range approvals {
		i, ok := index[approval.Contract]
		if !ok {
			i = len(groups)
			index[approval.Contract] = i
			groups = append(groups, contractGroup{contract: approval.Contract, token: approval.Token})
			spenderSeen[approval.Contract] = make(map[common.Address]struct{})
		}
		if _, dup := spenderSeen[approval.Contract][approval.Spender]; dup {
			continue
		}
		spenderSeen[approval.Contract][approval.Spender] = struct{}{}
		groups[i].spenders = append(groups[i].spenders, approval.Spender)
	}
	return groups
}
