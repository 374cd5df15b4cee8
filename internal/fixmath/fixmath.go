// Package fixmath provides deterministic 18-decimal fixed-point arithmetic
// for the LMSR pricing kernel. All values are integers scaled by 10^18
// ("wad" units); collateral amounts use 6 decimals and are converted at the
// package boundary.
package fixmath

import (
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrDivisionByZero = errors.New("fixmath: division by zero")
	ErrDomain         = errors.New("fixmath: input outside function domain")
)

// Fixed-point constants, all scaled by 10^18.
var (
	// Scale is the wad unit: 1.0 in fixed-point representation.
	Scale = sdkmath.NewInt(1_000_000_000_000_000_000)

	// Half is 0.5 in fixed-point representation.
	Half = sdkmath.NewInt(500_000_000_000_000_000)

	// Ln2 is ln(2).
	Ln2 = sdkmath.NewInt(693_147_180_559_945_309)

	// Log2E is log2(e).
	Log2E = sdkmath.NewInt(1_442_695_040_888_963_407)

	// twoOverLn2 is 2/ln(2), used by the log2 fractional series.
	twoOverLn2 = sdkmath.NewInt(2_885_390_081_777_926_814)

	two      = sdkmath.NewInt(2)
	twoScale = Scale.MulRaw(2)

	// maxExp2Input saturates Exp2: inputs beyond 192 integer bits are
	// clamped rather than rejected. The cost function depends on this
	// saturation for its lopsided-pool asymptote.
	maxExp2Input = Scale.MulRaw(192)
)

// expSeriesTerms is the fixed term count of the Exp2 fractional power
// series. Fixed, not adaptive, so results are bit-identical everywhere.
const expSeriesTerms = 20

// collateralScaleDiff converts between 6-decimal collateral units and wads.
var collateralScaleDiff = sdkmath.NewInt(1_000_000_000_000)

// Mul returns x*y/Scale, flooring toward zero.
func Mul(x, y sdkmath.Int) sdkmath.Int {
	return x.Mul(y).Quo(Scale)
}

// Div returns x*Scale/y, flooring toward zero.
func Div(x, y sdkmath.Int) (sdkmath.Int, error) {
	if y.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	return x.Mul(Scale).Quo(y), nil
}

// Exp2 computes 2^x for a fixed-point exponent x.
//
// The integer part of x is applied as a left bit-shift; the fractional part
// is evaluated as e^(frac*ln2) via a fixed 20-term power series. Negative
// exponents are computed as the reciprocal of Exp2(-x). Inputs beyond
// 192*Scale saturate at the clamp boundary.
func Exp2(x sdkmath.Int) sdkmath.Int {
	if x.IsNegative() {
		inv := Exp2(x.Neg())
		if inv.IsZero() {
			return sdkmath.ZeroInt()
		}
		return Scale.Mul(Scale).Quo(inv)
	}
	if x.GT(maxExp2Input) {
		x = maxExp2Input
	}

	shift := x.Quo(Scale)
	frac := x.Mod(Scale)

	// 2^frac = e^(frac*ln2), summed term by term: z^k / k!.
	z := Mul(frac, Ln2)
	term := Scale
	sum := Scale
	for k := int64(1); k < expSeriesTerms; k++ {
		term = Mul(term, z).QuoRaw(k)
		if term.IsZero() {
			break
		}
		sum = sum.Add(term)
	}

	shifted := new(big.Int).Lsh(sum.BigInt(), uint(shift.Int64()))
	return sdkmath.NewIntFromBigInt(shifted)
}

// Log2 computes log2(x) for a fixed-point x > 0.
//
// x is normalized into [Scale, 2*Scale) by successive halvings (or
// doublings for sub-unit inputs), accumulating the shift count as the
// integer part. The fractional remainder uses a 4-term odd-power series:
// log2(v) = (2/ln2) * (u + u^3/3 + u^5/5 + u^7/7) with u = (v-1)/(v+1).
func Log2(x sdkmath.Int) (sdkmath.Int, error) {
	if !x.IsPositive() {
		return sdkmath.Int{}, ErrDomain
	}

	var n int64
	v := x
	for v.GTE(twoScale) {
		v = v.Quo(two)
		n++
	}
	for v.LT(Scale) {
		v = v.Mul(two)
		n--
	}

	// v in [Scale, 2*Scale): u is in [0, 1/3].
	u := v.Sub(Scale).Mul(Scale).Quo(v.Add(Scale))
	usq := Mul(u, u)

	term := u
	sum := u
	term = Mul(term, usq)
	sum = sum.Add(term.QuoRaw(3))
	term = Mul(term, usq)
	sum = sum.Add(term.QuoRaw(5))
	term = Mul(term, usq)
	sum = sum.Add(term.QuoRaw(7))

	frac := Mul(sum, twoOverLn2)
	return Scale.MulRaw(n).Add(frac), nil
}

// Ln computes the natural logarithm of a fixed-point x > 0.
func Ln(x sdkmath.Int) (sdkmath.Int, error) {
	l2, err := Log2(x)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return Mul(l2, Ln2), nil
}

// FromCollateral converts a 6-decimal collateral amount to wad units.
func FromCollateral(amount int64) sdkmath.Int {
	return sdkmath.NewInt(amount).Mul(collateralScaleDiff)
}

// ToCollateral converts a wad amount to 6-decimal collateral units,
// flooring toward zero.
func ToCollateral(wad sdkmath.Int) int64 {
	return wad.Quo(collateralScaleDiff).Int64()
}
