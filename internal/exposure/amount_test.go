package exposure

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaturatingSumClamps(t *testing.T) {
	near := new(big.Int).Sub(MaxUint256, big.NewInt(5))

	got := SaturatingSum(near, near)
	assert.Equal(t, 0, got.Cmp(MaxUint256))
	assert.True(t, got.Cmp(near) >= 0, "sum must not wrap below an addend")

	got = SaturatingSum(MaxUint256, big.NewInt(1))
	assert.Equal(t, 0, got.Cmp(MaxUint256))
}

func TestSaturatingSumExact(t *testing.T) {
	near := new(big.Int).Sub(MaxUint256, big.NewInt(5))
	got := SaturatingSum(near, big.NewInt(5))
	assert.Equal(t, 0, got.Cmp(MaxUint256))

	got = SaturatingSum(big.NewInt(100), big.NewInt(50), nil)
	assert.Equal(t, int64(150), got.Int64())
}

func TestSaturatingSumOversizedInput(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 300)
	got := SaturatingSum(big.NewInt(1), huge)
	assert.Equal(t, 0, got.Cmp(MaxUint256))
}

func TestSaturatingSumEmpty(t *testing.T) {
	assert.Equal(t, 0, SaturatingSum().Sign())
}

func TestMin(t *testing.T) {
	a := big.NewInt(30)
	b := big.NewInt(50)
	assert.Equal(t, int64(30), Min(a, b).Int64())
	assert.Equal(t, int64(30), Min(b, a).Int64())
}

func TestToUSD(t *testing.T) {
	// 1.5 tokens with 18 decimals at 2.0 USD.
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	got := ToUSD(amount, 18, 2.0)
	assert.Equal(t, "3", got.String())

	got = ToUSD(big.NewInt(2500000), 6, 1.0)
	assert.Equal(t, "2.5", got.String())
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "0.5", FormatTokenAmount(big.NewInt(500000), 6))
	assert.Equal(t, "42", FormatTokenAmount(big.NewInt(42), 0))
	assert.Equal(t, "0", FormatTokenAmount(nil, 18))
}
