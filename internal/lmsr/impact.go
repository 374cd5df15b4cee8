package lmsr

import (
	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/fixmath"
)

// Safety margin applied to the instantaneous cap when sizing chunks. The
// cap itself shifts after every executed chunk, so each chunk is kept
// strictly under the cap measured before it.
const (
	safetyMarginNum = 98
	safetyMarginDen = 100
)

// MaxSafeCollateral returns the largest single-operation collateral-in
// (wad) that keeps the spot price of the side being bought within maxMove
// (wad fraction) of its current value.
//
// The boundary quantity is found with the same doubling-then-bisection
// machinery the buy solver uses, searching over share quantity and
// converting back to collateral through the cost function. The second
// return value is false when the bound can never be exceeded (current
// price plus maxMove reaches or passes 1), in which case no cap applies.
func MaxSafeCollateral(qSide, qOther, b, maxMove sdkmath.Int) (sdkmath.Int, bool, error) {
	spot, err := SpotPriceYes(qSide, qOther, b)
	if err != nil {
		return sdkmath.Int{}, false, err
	}

	bound := spot.Add(maxMove)
	if bound.GTE(fixmath.Scale) {
		return sdkmath.ZeroInt(), false, nil
	}

	// Bracket the share quantity that drives the price to the bound. One
	// b's worth of shares moves the price materially, so expand from there.
	hi := b
	for i := 0; i < maxDoublings; i++ {
		p, err := SpotPriceYes(qSide.Add(hi), qOther, b)
		if err != nil {
			return sdkmath.Int{}, false, err
		}
		if p.GTE(bound) {
			break
		}
		hi = hi.MulRaw(2)
	}

	lo := sdkmath.ZeroInt()
	for i := 0; i < bisectIterations; i++ {
		mid := lo.Add(hi).QuoRaw(2)
		p, err := SpotPriceYes(qSide.Add(mid), qOther, b)
		if err != nil {
			return sdkmath.Int{}, false, err
		}
		if p.LT(bound) {
			lo = mid
		} else {
			hi = mid
		}
	}

	boundaryTokens := lo.Add(hi).QuoRaw(2)
	before, err := Cost(qSide, qOther, b)
	if err != nil {
		return sdkmath.Int{}, false, err
	}
	after, err := Cost(qSide.Add(boundaryTokens), qOther, b)
	if err != nil {
		return sdkmath.Int{}, false, err
	}

	cap := after.Sub(before)
	if cap.IsNegative() {
		cap = sdkmath.ZeroInt()
	}
	return cap, true, nil
}

// PlanChunks splits a requested collateral amount (6-decimal units) into
// execution chunks against a fixed cap. Every chunk except possibly the
// last is cap*0.98; the sizes sum to the requested amount exactly.
//
// The executing path recomputes the cap between chunks; this planner is the
// single-cap projection of that loop and backs the chunk-count guarantees.
func PlanChunks(total, cap int64) []int64 {
	if total <= 0 {
		return nil
	}

	chunkSize := cap * safetyMarginNum / safetyMarginDen
	if chunkSize <= 0 {
		// Degenerate cap: fall back to one-unit chunks rather than stall.
		chunkSize = 1
	}
	if chunkSize >= total {
		return []int64{total}
	}

	n := total / chunkSize
	var chunks []int64
	for i := int64(0); i < n; i++ {
		chunks = append(chunks, chunkSize)
	}
	if rem := total - n*chunkSize; rem > 0 {
		chunks = append(chunks, rem)
	}
	return chunks
}

// MarginCap applies the chunk safety margin to a cap expressed in
// 6-decimal collateral units.
func MarginCap(cap int64) int64 {
	return cap * safetyMarginNum / safetyMarginDen
}
