package erc20_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"approvalScope/internal/erc20"
	"approvalScope/internal/erc20/erc20test"
	"approvalScope/internal/model"
)

var (
	dai   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	mkr   = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	odd   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func newResolver(chain *erc20test.Chain, prices erc20.PriceService) *erc20.Resolver {
	return erc20.NewResolver(erc20.NewClient(chain, time.Second), prices, erc20.ResolverConfig{}, zap.NewNop())
}

func TestResolveStandardToken(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(dai, &erc20test.Token{Decimals: 18, Name: "Dai Stablecoin", Symbol: "DAI"})
	prices := &erc20test.Prices{Values: map[string]float64{"DAI": 1.0}}

	meta, err := newResolver(chain, prices).Resolve(context.Background(), dai)
	require.NoError(t, err)

	assert.Equal(t, dai, meta.Address)
	assert.Equal(t, uint8(18), meta.Decimals)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "Dai Stablecoin", *meta.Name)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "DAI", *meta.Symbol)
	require.NotNil(t, meta.PriceUSD)
	assert.Equal(t, 1.0, *meta.PriceUSD)
}

func TestResolveBytes32Token(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(mkr, &erc20test.Token{Decimals: 18, Name: "Maker", Symbol: "MKR", Bytes32Meta: true})

	meta, err := newResolver(chain, nil).Resolve(context.Background(), mkr)
	require.NoError(t, err)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "MKR", *meta.Symbol)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "Maker", *meta.Name)
	assert.Nil(t, meta.PriceUSD)
}

func TestResolveUndecodableSymbolIsAbsent(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(odd, &erc20test.Token{Decimals: 6, BrokenMeta: true})
	prices := &erc20test.Prices{Values: map[string]float64{}}

	meta, err := newResolver(chain, prices).Resolve(context.Background(), odd)
	require.NoError(t, err)
	assert.Nil(t, meta.Symbol)
	assert.Nil(t, meta.Name)
	assert.Nil(t, meta.PriceUSD)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, 0, prices.Calls(), "no symbol means no price lookup")
}

func TestResolveDecimalsFailureIsFatal(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(odd, &erc20test.Token{DecimalsErr: erc20test.RevertError{}})

	_, err := newResolver(chain, nil).Resolve(context.Background(), odd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDecode))
}

func TestResolveNonContract(t *testing.T) {
	chain := erc20test.NewChain()

	_, err := newResolver(chain, nil).Resolve(context.Background(), odd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDecode))
}

func TestResolveTransportFailure(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(dai, &erc20test.Token{Decimals: 18, Name: "Dai", Symbol: "DAI"})
	chain.Err = errors.New("connection refused")

	_, err := newResolver(chain, nil).Resolve(context.Background(), dai)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTransport))
}

func TestResolvePriceErrorIsAbsent(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(dai, &erc20test.Token{Decimals: 18, Name: "Dai", Symbol: "DAI"})
	prices := &erc20test.Prices{Err: model.ErrPriceService}

	meta, err := newResolver(chain, prices).Resolve(context.Background(), dai)
	require.NoError(t, err)
	assert.Nil(t, meta.PriceUSD)
	require.NotNil(t, meta.Symbol)
}

func TestResolveMemoizesConcurrentCalls(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(dai, &erc20test.Token{Decimals: 18, Name: "Dai", Symbol: "DAI"})
	chain.Delay = 10 * time.Millisecond
	prices := &erc20test.Prices{Values: map[string]float64{"DAI": 1.0}}
	resolver := newResolver(chain, prices)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(context.Background(), dai)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, chain.Calls(dai, "decimals"))
	assert.Equal(t, 1, chain.Calls(dai, "name"))
	assert.Equal(t, 1, chain.Calls(dai, "symbol"))
	assert.Equal(t, 1, prices.Calls())
	assert.Equal(t, 1, resolver.Cached())
}

func TestResolveMemoizesFailures(t *testing.T) {
	chain := erc20test.NewChain()
	resolver := newResolver(chain, nil)

	_, err := resolver.Resolve(context.Background(), odd)
	require.Error(t, err)
	_, err = resolver.Resolve(context.Background(), odd)
	require.Error(t, err)

	assert.Equal(t, 1, chain.Calls(odd, "decimals"))
}

func TestClientAllowanceAndBalance(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(dai, &erc20test.Token{Decimals: 18})
	spender := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	chain.SetAllowance(dai, owner, spender, big.NewInt(500))
	chain.SetBalance(dai, owner, big.NewInt(70))

	client := erc20.NewClient(chain, time.Second)

	allowance, err := client.Allowance(context.Background(), dai, owner, spender)
	require.NoError(t, err)
	assert.Equal(t, int64(500), allowance.Int64())

	balance, err := client.BalanceOf(context.Background(), dai, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance.Int64())
}

func TestClientCallTimeout(t *testing.T) {
	chain := erc20test.NewChain()
	chain.AddToken(dai, &erc20test.Token{Decimals: 18})
	chain.Delay = time.Second

	client := erc20.NewClient(chain, 10*time.Millisecond)
	_, err := client.BalanceOf(context.Background(), dai, owner)
	require.Error(t, err)
	assert.Equal(t, model.KindTransport, model.Classify(err))
}

func TestApprovalTopicMatchesABI(t *testing.T) {
	parsed, err := erc20.StandardABI()
	require.NoError(t, err)
	assert.Equal(t, erc20.ApprovalTopic, parsed.Events["Approval"].ID)
}
