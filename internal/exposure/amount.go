package exposure

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxUint256 is 2^256-1, the largest value an ERC20 allowance can hold.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SaturatingSum adds values, clamping the result at MaxUint256. Negative
// inputs are treated as zero and inputs above the bound as the bound.
func SaturatingSum(values ...*big.Int) *big.Int {
	sum := new(uint256.Int)
	for _, v := range values {
		if v == nil || v.Sign() <= 0 {
			continue
		}
		addend, overflow := uint256.FromBig(v)
		if overflow {
			return new(big.Int).Set(MaxUint256)
		}
		if _, carry := sum.AddOverflow(sum, addend); carry {
			return new(big.Int).Set(MaxUint256)
		}
	}
	return sum.ToBig()
}

// Min returns the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// ToUSD converts a raw token amount into USD: amount / 10^decimals * price.
func ToUSD(amount *big.Int, decimals uint8, unitPrice float64) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	units := decimal.NewFromBigInt(amount, -int32(decimals))
	return units.Mul(decimal.NewFromFloat(unitPrice))
}

// FormatTokenAmount renders a raw amount with decimals applied.
func FormatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}
