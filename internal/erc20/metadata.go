package erc20

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"approvalScope/internal/model"
)

// PriceService returns a USD unit price for a token symbol.
type PriceService interface {
	UnitPriceUSD(ctx context.Context, symbol string) (float64, error)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	PriceTimeout time.Duration
}

// Resolver loads token metadata and price, memoized per contract for the
// lifetime of the Resolver. Create one per request.
type Resolver struct {
	client *Client
	prices PriceService
	cfg    ResolverConfig
	cache  *MetaCache
	group  singleflight.Group
	logger *zap.Logger
}

// NewResolver builds a request-scoped Resolver. prices may be nil.
func NewResolver(client *Client, prices PriceService, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client: client,
		prices: prices,
		cfg:    cfg,
		cache:  NewMetaCache(),
		logger: logger,
	}
}

// Resolve returns metadata for token. Concurrent callers for the same token
// share one in-flight resolution.
func (r *Resolver) Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok, err := r.cache.Get(token); ok {
		return meta, err
	}

	v, err, _ := r.group.Do(token.Hex(), func() (interface{}, error) {
		if meta, ok, err := r.cache.Get(token); ok {
			return meta, err
		}
		meta, err := r.fetch(ctx, token)
		r.cache.Set(token, meta, err)
		return meta, err
	})
	meta, _ := v.(model.TokenMeta)
	return meta, err
}

// Cached returns the number of contracts resolved so far.
func (r *Resolver) Cached() int {
	return r.cache.Len()
}

func (r *Resolver) fetch(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}
	if r.client == nil {
		return meta, fmt.Errorf("erc20 client is nil")
	}

	decimals, err := r.client.Decimals(ctx, token)
	if err != nil {
		return meta, fmt.Errorf("resolve %s: %w", token.Hex(), err)
	}
	meta.Decimals = decimals

	symbol, err := r.optionalString(ctx, token, "symbol", r.client.Symbol)
	if err != nil {
		return meta, fmt.Errorf("resolve %s: %w", token.Hex(), err)
	}
	meta.Symbol = symbol

	name, err := r.optionalString(ctx, token, "name", r.client.Name)
	if err != nil {
		return meta, fmt.Errorf("resolve %s: %w", token.Hex(), err)
	}
	meta.Name = name

	if meta.Symbol != nil {
		meta.PriceUSD = r.price(ctx, token, *meta.Symbol)
	}

	return meta, nil
}

// optionalString treats decode failures as an absent field; transport
// failures are returned.
func (r *Resolver) optionalString(ctx context.Context, token common.Address, method string, fn func(context.Context, common.Address) (string, error)) (*string, error) {
	value, err := fn(ctx, token)
	if err == nil {
		return &value, nil
	}
	if errors.Is(err, model.ErrDecode) {
		r.logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		return nil, nil
	}
	return nil, err
}

func (r *Resolver) price(ctx context.Context, token common.Address, symbol string) *float64 {
	if r.prices == nil || symbol == "" {
		return nil
	}
	if r.cfg.PriceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.PriceTimeout)
		defer cancel()
	}
	value, err := r.prices.UnitPriceUSD(ctx, symbol)
	if err != nil {
		r.logger.Debug("price lookup failed", zap.String("token", token.Hex()), zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	return &value
}
