// Package price looks up USD unit prices for token symbols.
package price

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"approvalScope/internal/model"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	defaultTimeout        = 10 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
	vsCurrency            = "usd"
)

// Config configures the CoinGecko client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

type coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// CoinGecko resolves a symbol to a coin id through the /coins/list catalogue
// and reads its USD price from /simple/price. The catalogue is fetched once.
type CoinGecko struct {
	http   *resty.Client
	logger *zap.Logger

	mu    sync.Mutex
	coins []coin
}

func NewCoinGecko(cfg Config, logger *zap.Logger) *CoinGecko {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxDelay).
		AddRetryCondition(isRetryableResp)
	if cfg.APIKey != "" {
		httpClient.SetHeader("x-cg-demo-api-key", cfg.APIKey)
	}

	return &CoinGecko{http: httpClient, logger: logger}
}

// UnitPriceUSD returns the USD price of the first listed coin whose symbol
// matches, ignoring case.
func (c *CoinGecko) UnitPriceUSD(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("%w: empty symbol", model.ErrPriceService)
	}

	id, err := c.coinID(ctx, symbol)
	if err != nil {
		return 0, err
	}

	var result map[string]map[string]float64
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("ids", id).
		SetQueryParam("vs_currencies", vsCurrency).
		SetResult(&result).
		Get("/simple/price")
	if err != nil {
		return 0, fmt.Errorf("%w: simple price: %v", model.ErrPriceService, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("%w: simple price: HTTP %d: %s", model.ErrPriceService, resp.StatusCode(), truncate(resp.String()))
	}

	value, ok := result[id][vsCurrency]
	if !ok {
		return 0, fmt.Errorf("%w: no %s price for %s", model.ErrPriceService, vsCurrency, id)
	}
	return value, nil
}

func (c *CoinGecko) coinID(ctx context.Context, symbol string) (string, error) {
	coins, err := c.catalogue(ctx)
	if err != nil {
		return "", err
	}
	for _, entry := range coins {
		if strings.EqualFold(entry.Symbol, symbol) {
			return entry.ID, nil
		}
	}
	return "", fmt.Errorf("%w: no coin for symbol %s", model.ErrPriceService, symbol)
}

func (c *CoinGecko) catalogue(ctx context.Context) ([]coin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coins != nil {
		return c.coins, nil
	}

	var coins []coin
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&coins).
		Get("/coins/list")
	if err != nil {
		return nil, fmt.Errorf("%w: coin list: %v", model.ErrPriceService, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: coin list: HTTP %d: %s", model.ErrPriceService, resp.StatusCode(), truncate(resp.String()))
	}

	c.logger.Debug("coin list loaded", zap.Int("coins", len(coins)))
	c.coins = coins
	return coins, nil
}

func isRetryableResp(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

func truncate(body string) string {
	const max = 256
	if len(body) > max {
		return body[:max]
	}
	return body
}
