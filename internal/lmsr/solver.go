package lmsr

import (
	sdkmath "cosmossdk.io/math"
)

const (
	// bisectIterations is fixed rather than adaptive so that every node
	// computing the same trade arrives at the same result.
	bisectIterations = 60

	// maxDoublings caps the upper-bound expansion when bracketing the
	// solution of a buy.
	maxDoublings = 64
)

// SolveBuy inverts the cost function: it finds the share quantity whose
// purchase costs netCollateralIn (wad, post-fee) given the current pools.
// qSide is the pool being bought, qOther the opposite pool.
//
// The cost function is not analytically invertible in this direction, so
// the solver brackets the answer by doubling an upper bound and then runs a
// fixed 60-iteration bisection.
func SolveBuy(netCollateralIn, qSide, qOther, b sdkmath.Int) (sdkmath.Int, error) {
	if !b.IsPositive() {
		return sdkmath.Int{}, ErrNoLiquidity
	}
	if !netCollateralIn.IsPositive() {
		return sdkmath.Int{}, ErrInsufficientOutput
	}

	baseCost, err := Cost(qSide, qOther, b)
	if err != nil {
		return sdkmath.Int{}, err
	}

	// A share never costs more than one collateral unit, so tokensOut is
	// at least netCollateralIn; expand from there until the bracket holds.
	hi := netCollateralIn
	for i := 0; i < maxDoublings; i++ {
		diff, err := costDiff(baseCost, qSide.Add(hi), qOther, b)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if diff.GTE(netCollateralIn) {
			break
		}
		hi = hi.MulRaw(2)
	}

	lo := sdkmath.ZeroInt()
	for i := 0; i < bisectIterations; i++ {
		mid := lo.Add(hi).QuoRaw(2)
		diff, err := costDiff(baseCost, qSide.Add(mid), qOther, b)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if diff.LT(netCollateralIn) {
			lo = mid
		} else {
			hi = mid
		}
	}

	tokens := lo.Add(hi).QuoRaw(2)
	if tokens.IsZero() {
		return sdkmath.Int{}, ErrInsufficientOutput
	}
	return tokens, nil
}

// SellReturn computes the collateral refunded for selling tokensIn shares
// of the qSide pool. Selling is the closed-form direction: the refund is
// the cost difference between the current state and the reduced pool.
func SellReturn(tokensIn, qSide, qOther, b sdkmath.Int) (sdkmath.Int, error) {
	if !b.IsPositive() {
		return sdkmath.Int{}, ErrNoLiquidity
	}
	if !tokensIn.IsPositive() {
		return sdkmath.Int{}, ErrInsufficientSupply
	}
	if tokensIn.GT(qSide) {
		return sdkmath.Int{}, ErrInsufficientSupply
	}

	before, err := Cost(qSide, qOther, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	after, err := Cost(qSide.Sub(tokensIn), qOther, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return before.Sub(after), nil
}

func costDiff(baseCost, qSide, qOther, b sdkmath.Int) (sdkmath.Int, error) {
	c, err := Cost(qSide, qOther, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return c.Sub(baseCost), nil
}
