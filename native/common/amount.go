package common

import (
	"errors"
	"math/big"
)

// RatioScale is the denominator for all basis-point quantities: collateral
// ratios, fee rates, referral rates and the protected buffer. 10_000 == 100%.
const RatioScale = 10_000

// PointScale is the fixed-point denominator for points quantities. Prices are
// expressed in settlement-token smallest units per whole point, so a notional
// is points*price/PointScale.
var PointScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var ErrNegativeAmount = errors.New("amount must be non-negative")

// CloneBig returns a defensive copy of v, treating nil as zero.
func CloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// MulDiv computes a*b/den with floor rounding. den must be positive.
func MulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(CloneBig(a), CloneBig(b))
	return out.Div(out, den)
}

// BpsShare computes amount*bps/RatioScale with floor rounding.
func BpsShare(amount *big.Int, bps uint32) *big.Int {
	return MulDiv(amount, new(big.Int).SetUint64(uint64(bps)), big.NewInt(RatioScale))
}

// Notional computes points*price/PointScale with floor rounding.
func Notional(points, price *big.Int) *big.Int {
	return MulDiv(points, price, PointScale)
}

// IsZero reports whether v is nil or equals zero.
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
