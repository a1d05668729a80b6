package approval

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalScope/internal/erc20"
	"approvalScope/internal/model"
	"approvalScope/internal/topic"
)

var (
	owner = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	s1    = common.HexToAddress("0x5151515151515151515151515151515151515151")
	s2    = common.HexToAddress("0x5252525252525252525252525252525252525252")
	c1    = common.HexToAddress("0xc1c1c1c1c1c1c1c1c1c1c1c1c1c1c1c1c1c1c1c1")
	c2    = common.HexToAddress("0xc2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c2c2")
)

func rawApproval(contract, spender common.Address, amount int64, block uint64) model.RawApprovalEvent {
	return model.RawApprovalEvent{
		Address: contract,
		Topics: []common.Hash{
			erc20.ApprovalTopic,
			topic.FromAddress(owner),
			topic.FromAddress(spender),
		},
		Data:        common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		BlockNumber: block,
	}
}

func amountOf(e model.RawApprovalEvent) int64 {
	return new(big.Int).SetBytes(e.Data).Int64()
}

func TestDedupeLastWriteWins(t *testing.T) {
	e1 := rawApproval(c1, s1, 100, 10)
	e2 := rawApproval(c1, s1, 50, 20)

	got := Dedupe([]model.RawApprovalEvent{e1, e2})
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), amountOf(got[0]))
	assert.Equal(t, uint64(20), got[0].BlockNumber)
}

func TestDedupeGroupingOrder(t *testing.T) {
	events := []model.RawApprovalEvent{
		rawApproval(c1, s2, 1, 1),
		rawApproval(c2, s1, 2, 2),
		rawApproval(c1, s1, 3, 3),
		rawApproval(c2, s2, 4, 4),
		rawApproval(c1, s2, 5, 5),
	}

	got := Dedupe(events)
	require.Len(t, got, 4)

	// s2 first (first seen), contracts c1 then c2; then s1 with c2 then c1.
	assert.Equal(t, []int64{5, 4, 2, 3}, []int64{amountOf(got[0]), amountOf(got[1]), amountOf(got[2]), amountOf(got[3])})
	assert.Equal(t, c1, got[0].Address)
	assert.Equal(t, c2, got[1].Address)
	assert.Equal(t, c2, got[2].Address)
	assert.Equal(t, c1, got[3].Address)
}

func TestDedupeIdempotent(t *testing.T) {
	inputs := [][]model.RawApprovalEvent{
		nil,
		{rawApproval(c1, s1, 1, 1)},
		{
			rawApproval(c2, s1, 1, 1),
			rawApproval(c1, s2, 2, 2),
			rawApproval(c2, s1, 3, 3),
			rawApproval(c1, s1, 4, 4),
			rawApproval(c1, s2, 5, 5),
		},
		{
			rawApproval(c1, s2, 9, 9),
			rawApproval(c1, s2, 8, 8),
			rawApproval(c2, s2, 7, 7),
		},
	}

	for _, input := range inputs {
		once := Dedupe(input)
		twice := Dedupe(once)
		assert.Equal(t, once, twice)
	}
}

func TestDedupeEmpty(t *testing.T) {
	got := Dedupe(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDedupeSkipsEventsWithoutSpender(t *testing.T) {
	short := model.RawApprovalEvent{Address: c1, Topics: []common.Hash{erc20.ApprovalTopic}}
	got := Dedupe([]model.RawApprovalEvent{short, rawApproval(c1, s1, 1, 1)})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), amountOf(got[0]))
}
