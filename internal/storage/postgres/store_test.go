package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalScope/internal/model"
)

func TestSnapshotRows(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	low := common.HexToAddress("0x1111111111111111111111111111111111111111")
	high := common.HexToAddress("0x9999999999999999999999999999999999999999")
	spender := common.HexToAddress("0x5151515151515151515151515151515151515151")
	symbol := "USDC"
	usd := decimal.RequireFromString("12.5")

	report := model.NewExposureReport(owner)
	report.Contracts[high] = model.ContractExposure{
		Contract:    high,
		Token:       model.TokenMeta{Address: high, Decimals: 6, Symbol: &symbol},
		Spenders:    []common.Address{spender},
		Allowance:   big.NewInt(20_000_000),
		Balance:     big.NewInt(12_500_000),
		Exposure:    big.NewInt(12_500_000),
		ExposureUSD: &usd,
	}
	report.Contracts[low] = model.ContractExposure{
		Contract:  low,
		Token:     model.TokenMeta{Address: low, Decimals: 18},
		Allowance: big.NewInt(5),
		Balance:   big.NewInt(0),
		Exposure:  big.NewInt(0),
	}

	rows := snapshotRows(report)
	require.Len(t, rows, 2)

	assert.Equal(t, low.Hex(), rows[0].contract)
	assert.Nil(t, rows[0].symbol)
	assert.Nil(t, rows[0].exposureUSD)
	assert.Empty(t, rows[0].spenders)

	assert.Equal(t, owner.Hex(), rows[1].owner)
	assert.Equal(t, "20000000", rows[1].allowance)
	assert.Equal(t, "12500000", rows[1].exposure)
	assert.Equal(t, []string{spender.Hex()}, rows[1].spenders)
	require.NotNil(t, rows[1].exposureUSD)
	assert.Equal(t, "12.5", *rows[1].exposureUSD)
	assert.Equal(t, int16(6), rows[1].decimals)
}

func TestSnapshotRowsNilAmounts(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	report := model.NewExposureReport(owner)
	report.Contracts[token] = model.ContractExposure{
		Contract: token,
		Token:    model.TokenMeta{Address: token, Decimals: 18},
		Balance:  big.NewInt(3),
	}

	rows := snapshotRows(report)
	require.Len(t, rows, 1)
	assert.Equal(t, "0", rows[0].allowance)
	assert.Equal(t, "3", rows[0].balance)
	assert.Equal(t, "0", rows[0].exposure)
}

func TestSnapshotBatchPrunesDroppedContracts(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	kept := common.HexToAddress("0x1111111111111111111111111111111111111111")
	runID := uuid.New()

	// An earlier run stored kept and a second contract; this run only has kept.
	report := model.NewExposureReport(owner)
	report.Contracts[kept] = model.ContractExposure{
		Contract:  kept,
		Token:     model.TokenMeta{Address: kept, Decimals: 18},
		Allowance: big.NewInt(5),
		Balance:   big.NewInt(5),
		Exposure:  big.NewInt(5),
	}

	batch := snapshotBatch(report, runID)
	require.Equal(t, 2, batch.Len())

	upsert := batch.QueuedQueries[0]
	assert.Equal(t, upsertSnapshotSQL, upsert.SQL)
	assert.Equal(t, kept.Hex(), upsert.Arguments[1])
	assert.Equal(t, runID.String(), upsert.Arguments[9])

	prune := batch.QueuedQueries[1]
	assert.Equal(t, pruneSnapshotsSQL, prune.SQL)
	assert.Contains(t, prune.SQL, "run_id <> $2")
	assert.Equal(t, []any{owner.Hex(), runID.String()}, prune.Arguments)
}

func TestSnapshotBatchEmptyReportStillPrunes(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	runID := uuid.New()

	batch := snapshotBatch(model.NewExposureReport(owner), runID)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, pruneSnapshotsSQL, batch.QueuedQueries[0].SQL)
	assert.Equal(t, []any{owner.Hex(), runID.String()}, batch.QueuedQueries[0].Arguments)
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.Error(t, err)
}
