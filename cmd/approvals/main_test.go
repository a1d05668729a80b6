package main

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalScope/internal/approval"
	"approvalScope/internal/model"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	spender = common.HexToAddress("0x5151515151515151515151515151515151515151")
	usdc    = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
)

func strPtr(s string) *string { return &s }

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"check", "exposure", "export", "serve"})
}

func TestPrintApprovals(t *testing.T) {
	var buf bytes.Buffer
	printApprovals(&buf, approval.EnrichResult{
		Approvals: []model.EnrichedApproval{{
			Spender:  spender,
			Contract: usdc,
			Amount:   big.NewInt(1_000_000),
			Token:    model.TokenMeta{Name: strPtr("USD Coin"), Symbol: strPtr("USDC")},
		}, {
			Spender: spender,
			Amount:  big.NewInt(7),
		}},
		Failures: []model.ItemError{{Contract: "0xdead", TxHash: "0xfeed", Kind: model.KindDecode, Error: "decimals reverted"}},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "approval on USD Coin (USDC) of 1000000 to "+spender.Hex(), lines[0])
	assert.Equal(t, "approval on unknown (?) of 7 to "+spender.Hex(), lines[1])
	assert.Contains(t, lines[2], "0xfeed")
}

func TestPrintExposure(t *testing.T) {
	usd := decimal.RequireFromString("12.5")
	report := model.NewExposureReport(owner)
	report.Contracts[usdc] = model.ContractExposure{
		Contract:    usdc,
		Token:       model.TokenMeta{Decimals: 6, Symbol: strPtr("USDC")},
		Spenders:    []common.Address{spender},
		Allowance:   big.NewInt(20_000_000),
		Balance:     big.NewInt(12_500_000),
		Exposure:    big.NewInt(12_500_000),
		ExposureUSD: &usd,
	}

	var buf bytes.Buffer
	printExposure(&buf, report, []model.ItemError{{Contract: "0xbeef", Kind: model.KindPriceUnavailable, Error: "price unavailable"}})

	out := buf.String()
	assert.Contains(t, out, "allowance=20 balance=12.5 exposure=12.5 usd=12.50 spenders=1")
	assert.Contains(t, out, "skipped 0xbeef (price_unavailable)")
}

func TestParseOwners(t *testing.T) {
	var buf bytes.Buffer
	owners := parseOwners(&buf, []string{owner.Hex(), "0x12"})
	assert.Equal(t, []common.Address{owner}, owners)
	assert.Contains(t, buf.String(), "skip 0x12")
}
