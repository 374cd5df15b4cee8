package engine

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/fixmath"
	"github.com/openmarkets/totem/internal/lmsr"
	"github.com/openmarkets/totem/internal/model"
)

// Quote is a read-only preview of a trade. All prices are 18-decimal
// fractions of one collateral unit.
type Quote struct {
	MarketID       string         `json:"market_id"`
	Side           model.Outcome  `json:"side"`
	Fees           fees.Breakdown `json:"fees"`
	TokensOut      sdkmath.Int    `json:"tokens_out"`
	CollateralOut  int64          `json:"collateral_out,omitempty"`
	PricePerShare  sdkmath.Int    `json:"price_per_share"`
	NewProbability sdkmath.Int    `json:"new_probability"`
}

// QuoteBuy previews a buy of gross collateral without mutating the market.
// The preview prices the full order in one piece; an executed order may be
// chunked and return marginally fewer tokens.
func (e *Engine) QuoteBuy(ctx context.Context, marketID string, side model.Outcome, gross int64) (*Quote, error) {
	if gross <= 0 {
		return nil, ErrInvalidAmount
	}
	if !side.IsValid() {
		return nil, model.ErrInvalidOutcome
	}
	st, err := e.state(marketID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	m := st.market
	st.mu.Unlock()

	if err := ensureTradable(&m, e.now()); err != nil {
		return nil, err
	}
	split, err := fees.Split(gross, m.Fees)
	if err != nil {
		return nil, err
	}

	qSide := m.PoolFor(side)
	qOther := m.PoolFor(side.Opposite())
	tokens, err := lmsr.SolveBuy(fixmath.FromCollateral(split.Net), qSide, qOther, m.BE18)
	if err != nil {
		return nil, fmt.Errorf("solve buy: %w", err)
	}

	grossWad := fixmath.FromCollateral(gross)
	perShare, err := fixmath.Div(grossWad, tokens)
	if err != nil {
		return nil, fmt.Errorf("price per share: %w", err)
	}
	qYes, qNo := m.QYes, m.QNo
	if side == model.OutcomeYes {
		qYes = qYes.Add(tokens)
	} else {
		qNo = qNo.Add(tokens)
	}
	spot, err := lmsr.SpotPriceYes(qYes, qNo, m.BE18)
	if err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}

	return &Quote{
		MarketID:       marketID,
		Side:           side,
		Fees:           split,
		TokensOut:      tokens,
		PricePerShare:  perShare,
		NewProbability: spot,
	}, nil
}

// QuoteSell previews the collateral returned for selling tokens.
func (e *Engine) QuoteSell(ctx context.Context, marketID string, side model.Outcome, tokens sdkmath.Int) (*Quote, error) {
	if tokens.IsNil() || !tokens.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !side.IsValid() {
		return nil, model.ErrInvalidOutcome
	}
	st, err := e.state(marketID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	m := st.market
	st.mu.Unlock()

	if err := ensureTradable(&m, e.now()); err != nil {
		return nil, err
	}

	qSide := m.PoolFor(side)
	qOther := m.PoolFor(side.Opposite())
	refundWad, err := lmsr.SellReturn(tokens, qSide, qOther, m.BE18)
	if err != nil {
		return nil, fmt.Errorf("sell return: %w", err)
	}
	refund := fixmath.ToCollateral(refundWad)

	perShare, err := fixmath.Div(refundWad, tokens)
	if err != nil {
		return nil, fmt.Errorf("price per share: %w", err)
	}

	qYes, qNo := m.QYes, m.QNo
	if side == model.OutcomeYes {
		qYes = qYes.Sub(tokens)
	} else {
		qNo = qNo.Sub(tokens)
	}
	spot, err := lmsr.SpotPriceYes(qYes, qNo, m.BE18)
	if err != nil {
		return nil, fmt.Errorf("spot price: %w", err)
	}

	return &Quote{
		MarketID:       marketID,
		Side:           side,
		TokensOut:      tokens,
		CollateralOut:  refund,
		PricePerShare:  perShare,
		NewProbability: spot,
	}, nil
}
