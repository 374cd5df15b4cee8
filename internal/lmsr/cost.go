// Package lmsr implements fixed-point LMSR (Logarithmic Market Scoring
// Rule) pricing for binary outcome markets: the cost function, its spot
// price, a bisection solver that inverts it for buys, and the price-impact
// guard used for chunked order execution.
//
// Reference: https://gnosis-pm-js.readthedocs.io/en/v1.3.0/lmsr-primer.html
package lmsr

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/fixmath"
)

var (
	ErrNoLiquidity        = errors.New("lmsr: liquidity parameter must be positive")
	ErrNegativeQuantities = errors.New("lmsr: quantities must be non-negative")
	ErrInsufficientOutput = errors.New("lmsr: trade produces zero output")
	ErrInsufficientSupply = errors.New("lmsr: cannot sell more than outstanding supply")
)

// satExponent is the saturation threshold on the scaled exponent: beyond
// 2^64 the reciprocal term is below wad precision and the log term
// vanishes, so the cost function short-circuits to the larger pool.
var satExponent = fixmath.Scale.MulRaw(64)

// Cost evaluates the LMSR cost function
//
//	C(qYes, qNo) = hi + b*ln(1 + 2^(-(hi-lo)/b * log2(e)))
//
// where hi/lo are the larger/smaller pool. A balanced market costs
// hi + b*ln2, which is exactly the seed collateral a fresh market is funded
// with; the vault therefore always holds C(q) and can redeem the larger
// pool in full. Past the saturation exponent the log term is below wad
// precision and the function returns hi directly.
func Cost(qYes, qNo, b sdkmath.Int) (sdkmath.Int, error) {
	if !b.IsPositive() {
		return sdkmath.Int{}, ErrNoLiquidity
	}
	if qYes.IsNegative() || qNo.IsNegative() {
		return sdkmath.Int{}, ErrNegativeQuantities
	}

	hi := sdkmath.MaxInt(qYes, qNo)
	lo := sdkmath.MinInt(qYes, qNo)
	if hi.Equal(lo) {
		return hi.Add(fixmath.Mul(b, fixmath.Ln2)), nil
	}

	delta, err := fixmath.Div(hi.Sub(lo), b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	scaled := fixmath.Mul(delta, fixmath.Log2E)
	if scaled.GT(satExponent) {
		// The log term is below wad precision.
		return hi, nil
	}

	e := fixmath.Exp2(scaled)
	recip, err := fixmath.Div(fixmath.Scale, e)
	if err != nil {
		return sdkmath.Int{}, err
	}
	lnTerm, err := fixmath.Ln(fixmath.Scale.Add(recip))
	if err != nil {
		return sdkmath.Int{}, err
	}
	return hi.Add(fixmath.Mul(b, lnTerm)), nil
}

// SpotPriceYes returns the instantaneous marginal price of a YES share as a
// wad fraction in [0, Scale]. The price of NO is Scale minus it.
func SpotPriceYes(qYes, qNo, b sdkmath.Int) (sdkmath.Int, error) {
	if !b.IsPositive() {
		return sdkmath.Int{}, ErrNoLiquidity
	}
	if qYes.IsNegative() || qNo.IsNegative() {
		return sdkmath.Int{}, ErrNegativeQuantities
	}
	if qYes.Equal(qNo) {
		return fixmath.Half, nil
	}

	diff := qYes.Sub(qNo).Abs()
	delta, err := fixmath.Div(diff, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	scaled := fixmath.Mul(delta, fixmath.Log2E)
	if scaled.GT(satExponent) {
		// Numeric saturation: the favored side pins at the bound.
		if qYes.GT(qNo) {
			return fixmath.Scale, nil
		}
		return sdkmath.ZeroInt(), nil
	}

	e := fixmath.Exp2(scaled)
	var price sdkmath.Int
	if qYes.GT(qNo) {
		price, err = fixmath.Div(e, fixmath.Scale.Add(e))
	} else {
		price, err = fixmath.Div(fixmath.Scale, fixmath.Scale.Add(e))
	}
	if err != nil {
		return sdkmath.Int{}, err
	}

	if price.IsNegative() {
		price = sdkmath.ZeroInt()
	}
	if price.GT(fixmath.Scale) {
		price = fixmath.Scale
	}
	return price, nil
}
