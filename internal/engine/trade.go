package engine

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/events"
	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/fixmath"
	"github.com/openmarkets/totem/internal/lmsr"
	"github.com/openmarkets/totem/internal/metrics"
	"github.com/openmarkets/totem/internal/model"
)

// BuyParams describes a buy order. GrossCollateral is the total amount the
// buyer commits, fees included, in 6-decimal units. When NoSplit is set the
// order fails instead of being split into price-capped chunks.
type BuyParams struct {
	MarketID        string
	Buyer           string
	Side            model.Outcome
	GrossCollateral int64
	NoSplit         bool
}

// SellParams describes a sell order. MinReturn is an optional slippage
// floor in collateral units; zero disables the check. Sells carry no fees.
type SellParams struct {
	MarketID  string
	Seller    string
	Side      model.Outcome
	Tokens    sdkmath.Int
	MinReturn int64
}

// TradeReceipt summarizes an executed trade across all of its chunks.
type TradeReceipt struct {
	MarketID      string         `json:"market_id"`
	Side          model.Outcome  `json:"side"`
	GrossIn       int64          `json:"gross_in"`
	Fees          fees.Breakdown `json:"fees"`
	TokensOut     sdkmath.Int    `json:"tokens_out"`
	CollateralOut int64          `json:"collateral_out"`
	Chunks        int            `json:"chunks"`
	NewSpotPrice  sdkmath.Int    `json:"new_spot_price"`
}

// Buy spends GrossCollateral on outcome shares. Orders whose price impact
// would exceed the configured limit are executed as a sequence of capped
// chunks under one market lock; each chunk settles fees, mints shares and
// emits its own event, and a failure between chunks leaves the already
// executed chunks committed.
func (e *Engine) Buy(ctx context.Context, p BuyParams) (*TradeReceipt, error) {
	if p.GrossCollateral <= 0 {
		return nil, ErrInvalidAmount
	}
	if !p.Side.IsValid() {
		return nil, model.ErrInvalidOutcome
	}
	st, err := e.state(p.MarketID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if err := ensureTradable(&m, e.now()); err != nil {
		return nil, err
	}

	receipt := &TradeReceipt{
		MarketID:  p.MarketID,
		Side:      p.Side,
		GrossIn:   p.GrossCollateral,
		TokensOut: sdkmath.ZeroInt(),
	}

	remaining := p.GrossCollateral
	for remaining > 0 {
		chunk, err := e.chunkSize(&m, p.Side, remaining)
		if err != nil {
			return nil, err
		}
		if chunk < remaining && p.NoSplit {
			return nil, fmt.Errorf("%w: %d exceeds single-trade cap %d",
				ErrPriceImpactExceeded, remaining, chunk)
		}

		split, tokens, err := e.executeChunk(ctx, st, &m, p, chunk)
		if err != nil {
			if receipt.Chunks > 0 {
				e.logger.WarnContext(ctx, "buy aborted mid-order, earlier chunks stand",
					"market_id", p.MarketID, "executed_chunks", receipt.Chunks,
					"remaining", remaining, "error", err)
				receipt.GrossIn = p.GrossCollateral - remaining
				return receipt, err
			}
			return nil, err
		}

		receipt.Fees.Treasury += split.Treasury
		receipt.Fees.Vault += split.Vault
		receipt.Fees.Lp += split.Lp
		receipt.Fees.Net += split.Net
		receipt.TokensOut = receipt.TokensOut.Add(tokens)
		receipt.Chunks++
		remaining -= chunk
	}

	spot, err := lmsr.SpotPriceYes(m.QYes, m.QNo, m.BE18)
	if err != nil {
		return nil, fmt.Errorf("spot price after trade: %w", err)
	}
	receipt.NewSpotPrice = sidePrice(spot, p.Side)

	metrics.TradesExecuted.WithLabelValues("buy", p.Side.String()).Inc()
	metrics.TradeVolume.WithLabelValues("buy").Add(float64(p.GrossCollateral))
	metrics.TradeChunks.Observe(float64(receipt.Chunks))
	return receipt, nil
}

// chunkSize returns how much of the remaining gross collateral the next
// chunk may carry under the price impact limit.
func (e *Engine) chunkSize(m *model.Market, side model.Outcome, remaining int64) (int64, error) {
	qSide := m.PoolFor(side)
	qOther := m.PoolFor(side.Opposite())
	capWad, bounded, err := lmsr.MaxSafeCollateral(qSide, qOther, m.BE18, e.cfg.PriceMoveLimit)
	if err != nil {
		return 0, fmt.Errorf("price impact cap: %w", err)
	}
	if !bounded {
		return remaining, nil
	}
	margin := lmsr.MarginCap(fixmath.ToCollateral(capWad))
	if margin < 1 {
		// Price is already pinned against the cap; advance one unit at a
		// time so the order still terminates.
		margin = 1
	}
	if remaining < margin {
		return remaining, nil
	}
	return margin, nil
}

// executeChunk runs one price-capped slice of a buy order: fee split,
// solver, ledger movements, then commit-and-publish. Ledger failures are
// compensated so the chunk either fully applies or not at all.
func (e *Engine) executeChunk(ctx context.Context, st *marketState, m *model.Market, p BuyParams, chunk int64) (fees.Breakdown, sdkmath.Int, error) {
	split, err := fees.Split(chunk, m.Fees)
	if err != nil {
		return fees.Breakdown{}, sdkmath.Int{}, err
	}

	qSide := m.PoolFor(p.Side)
	qOther := m.PoolFor(p.Side.Opposite())

	start := time.Now()
	tokens, err := lmsr.SolveBuy(fixmath.FromCollateral(split.Net), qSide, qOther, m.BE18)
	metrics.SolverDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fees.Breakdown{}, sdkmath.Int{}, fmt.Errorf("solve buy: %w", err)
	}

	if err := e.ledger.DebitCollateral(ctx, p.Buyer, chunk); err != nil {
		return fees.Breakdown{}, sdkmath.Int{}, fmt.Errorf("debit buyer: %w", err)
	}
	if err := e.ledger.MintShares(ctx, m.ID, p.Side, p.Buyer, tokens); err != nil {
		if cErr := e.ledger.CreditCollateral(ctx, p.Buyer, chunk); cErr != nil {
			e.logger.ErrorContext(ctx, "compensation failed after mint error",
				"market_id", m.ID, "buyer", p.Buyer, "amount", chunk, "error", cErr)
		}
		return fees.Breakdown{}, sdkmath.Int{}, fmt.Errorf("mint shares: %w", err)
	}
	if split.Treasury > 0 && e.cfg.TreasuryAccount != "" {
		if err := e.ledger.CreditCollateral(ctx, e.cfg.TreasuryAccount, split.Treasury); err != nil {
			if bErr := e.ledger.BurnShares(ctx, m.ID, p.Side, p.Buyer, tokens); bErr != nil {
				e.logger.ErrorContext(ctx, "compensation failed after treasury error",
					"market_id", m.ID, "buyer", p.Buyer, "error", bErr)
			}
			if cErr := e.ledger.CreditCollateral(ctx, p.Buyer, chunk); cErr != nil {
				e.logger.ErrorContext(ctx, "compensation failed after treasury error",
					"market_id", m.ID, "buyer", p.Buyer, "amount", chunk, "error", cErr)
			}
			return fees.Breakdown{}, sdkmath.Int{}, fmt.Errorf("credit treasury: %w", err)
		}
	}

	if p.Side == model.OutcomeYes {
		m.QYes = m.QYes.Add(tokens)
	} else {
		m.QNo = m.QNo.Add(tokens)
	}
	m.Vault += split.Net + split.Vault
	accrueLpFee(m, split.Lp)
	st.market = *m

	spot, err := lmsr.SpotPriceYes(m.QYes, m.QNo, m.BE18)
	if err != nil {
		spot = sdkmath.ZeroInt()
	}
	st.recordPrice(spot, e.now())
	e.publish(ctx, events.Buy{
		MarketID:     m.ID,
		Buyer:        p.Buyer,
		Side:         p.Side,
		CollateralIn: chunk,
		TokensOut:    tokens,
		NewSpotPrice: sidePrice(spot, p.Side),
	})
	return split, tokens, nil
}

// accrueLpFee credits an LP fee amount to the per-share accumulator. With
// no LP collateral outstanding the amount falls through to the vault so
// nothing is stranded.
func accrueLpFee(m *model.Market, amount int64) {
	if amount <= 0 {
		return
	}
	if m.TotalLpCollateral <= 0 {
		m.Vault += amount
		return
	}
	m.LpFeePot += amount
	m.LpFeeAccPerShare = m.LpFeeAccPerShare.Add(
		sdkmath.NewInt(amount).Mul(fixmath.Scale).QuoRaw(m.TotalLpCollateral))
}

// Sell burns outcome shares for collateral at the closed-form LMSR refund.
// Sells carry no fees and are never chunked.
func (e *Engine) Sell(ctx context.Context, p SellParams) (*TradeReceipt, error) {
	if p.Tokens.IsNil() || !p.Tokens.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !p.Side.IsValid() {
		return nil, model.ErrInvalidOutcome
	}
	st, err := e.state(p.MarketID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if err := ensureTradable(&m, e.now()); err != nil {
		return nil, err
	}

	balance, err := e.ledger.ShareBalance(ctx, m.ID, p.Side, p.Seller)
	if err != nil {
		return nil, fmt.Errorf("share balance: %w", err)
	}
	if balance.LT(p.Tokens) {
		return nil, fmt.Errorf("%w: have %s, selling %s",
			lmsr.ErrInsufficientSupply, balance, p.Tokens)
	}

	qSide := m.PoolFor(p.Side)
	qOther := m.PoolFor(p.Side.Opposite())

	start := time.Now()
	refundWad, err := lmsr.SellReturn(p.Tokens, qSide, qOther, m.BE18)
	metrics.SolverDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("sell return: %w", err)
	}
	refund := fixmath.ToCollateral(refundWad)
	if refund <= 0 {
		return nil, lmsr.ErrInsufficientOutput
	}
	if p.MinReturn > 0 && refund < p.MinReturn {
		return nil, fmt.Errorf("%w: return %d below minimum %d",
			ErrSlippageExceeded, refund, p.MinReturn)
	}
	if refund > m.Vault {
		return nil, fmt.Errorf("vault %d cannot cover refund %d for market %s",
			m.Vault, refund, m.ID)
	}

	if err := e.ledger.BurnShares(ctx, m.ID, p.Side, p.Seller, p.Tokens); err != nil {
		return nil, fmt.Errorf("burn shares: %w", err)
	}
	if err := e.ledger.CreditCollateral(ctx, p.Seller, refund); err != nil {
		if mErr := e.ledger.MintShares(ctx, m.ID, p.Side, p.Seller, p.Tokens); mErr != nil {
			e.logger.ErrorContext(ctx, "compensation failed after credit error",
				"market_id", m.ID, "seller", p.Seller, "error", mErr)
		}
		return nil, fmt.Errorf("credit seller: %w", err)
	}

	if p.Side == model.OutcomeYes {
		m.QYes = m.QYes.Sub(p.Tokens)
	} else {
		m.QNo = m.QNo.Sub(p.Tokens)
	}
	m.Vault -= refund
	st.market = m

	spot, err := lmsr.SpotPriceYes(m.QYes, m.QNo, m.BE18)
	if err != nil {
		return nil, fmt.Errorf("spot price after trade: %w", err)
	}
	newSpot := sidePrice(spot, p.Side)
	st.recordPrice(spot, e.now())

	e.publish(ctx, events.Sell{
		MarketID:      m.ID,
		Seller:        p.Seller,
		Side:          p.Side,
		TokensIn:      p.Tokens,
		CollateralOut: refund,
		NewSpotPrice:  newSpot,
	})
	metrics.TradesExecuted.WithLabelValues("sell", p.Side.String()).Inc()
	metrics.TradeVolume.WithLabelValues("sell").Add(float64(refund))

	return &TradeReceipt{
		MarketID:      p.MarketID,
		Side:          p.Side,
		TokensOut:     p.Tokens.Neg(),
		CollateralOut: refund,
		Chunks:        1,
		NewSpotPrice:  newSpot,
	}, nil
}

// sidePrice converts a YES spot price to the price of the requested side.
func sidePrice(spotYes sdkmath.Int, side model.Outcome) sdkmath.Int {
	if side == model.OutcomeYes {
		return spotYes
	}
	return fixmath.Scale.Sub(spotYes)
}
