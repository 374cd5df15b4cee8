package engine

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/events"
	"github.com/openmarkets/totem/internal/fixmath"
	"github.com/openmarkets/totem/internal/model"
)

// AddLiquidityParams describes an LP deposit. Amount is 6-decimal
// collateral; LP shares are minted one to one against it.
type AddLiquidityParams struct {
	MarketID string
	Provider string
	Amount   int64
}

// AddLiquidity deposits collateral into the market vault and mints LP
// shares. Fees the provider already earned are paid out first so the new
// shares do not dilute them. The liquidity parameter b is fixed at market
// creation and is not adjusted by later deposits.
func (e *Engine) AddLiquidity(ctx context.Context, p AddLiquidityParams) (*model.LpPosition, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
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

	pos, ok := st.positions[p.Provider]
	if !ok {
		pos = model.LpPosition{
			MarketID:           p.MarketID,
			Provider:           p.Provider,
			FeeCheckpoint:      m.LpFeeAccPerShare,
			ResidualCheckpoint: m.LpResidualAccPerShare,
		}
	}

	owed := pendingAmount(pos.Shares, m.LpFeeAccPerShare, pos.FeeCheckpoint)
	if owed > m.LpFeePot {
		owed = m.LpFeePot
	}

	if err := e.ledger.DebitCollateral(ctx, p.Provider, p.Amount); err != nil {
		return nil, fmt.Errorf("debit provider: %w", err)
	}
	if owed > 0 {
		if err := e.ledger.CreditCollateral(ctx, p.Provider, owed); err != nil {
			if cErr := e.ledger.CreditCollateral(ctx, p.Provider, p.Amount); cErr != nil {
				e.logger.ErrorContext(ctx, "compensation failed after fee settle error",
					"market_id", p.MarketID, "provider", p.Provider, "error", cErr)
			}
			return nil, fmt.Errorf("settle pending fees: %w", err)
		}
		m.LpFeePot -= owed
	}

	pos.FeeCheckpoint = m.LpFeeAccPerShare
	pos.Shares += p.Amount
	m.Vault += p.Amount
	m.TotalLpCollateral += p.Amount

	st.positions[p.Provider] = pos
	st.market = m

	e.publish(ctx, events.LiquidityAdded{
		MarketID: p.MarketID,
		Provider: p.Provider,
		Amount:   p.Amount,
	})
	e.logger.InfoContext(ctx, "liquidity added",
		"market_id", p.MarketID, "provider", p.Provider,
		"amount", p.Amount, "settled_fees", owed)

	out := pos
	return &out, nil
}

// ClaimFees pays out the provider's share of accrued LP trading fees.
// Returns the amount paid, which is zero when nothing has accrued since
// the last claim.
func (e *Engine) ClaimFees(ctx context.Context, marketID, provider string) (int64, error) {
	st, err := e.state(marketID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	pos, ok := st.positions[provider]
	if !ok {
		return 0, fmt.Errorf("%w: %s in market %s", ErrPositionNotFound, provider, marketID)
	}

	owed := pendingAmount(pos.Shares, m.LpFeeAccPerShare, pos.FeeCheckpoint)
	if owed > m.LpFeePot {
		owed = m.LpFeePot
	}
	if owed <= 0 {
		pos.FeeCheckpoint = m.LpFeeAccPerShare
		st.positions[provider] = pos
		return 0, nil
	}

	if err := e.ledger.CreditCollateral(ctx, provider, owed); err != nil {
		return 0, fmt.Errorf("credit provider: %w", err)
	}

	m.LpFeePot -= owed
	pos.FeeCheckpoint = m.LpFeeAccPerShare
	st.positions[provider] = pos
	st.market = m

	e.publish(ctx, events.LpFeesClaimed{
		MarketID: marketID,
		Provider: provider,
		Amount:   owed,
	})
	return owed, nil
}

// ClaimResidual pays out the provider's share of the finalized residual.
func (e *Engine) ClaimResidual(ctx context.Context, marketID, provider string) (int64, error) {
	st, err := e.state(marketID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if !m.ResidualFinalized {
		return 0, ErrResidualNotReady
	}
	pos, ok := st.positions[provider]
	if !ok {
		return 0, fmt.Errorf("%w: %s in market %s", ErrPositionNotFound, provider, marketID)
	}

	owed := pendingAmount(pos.Shares, m.LpResidualAccPerShare, pos.ResidualCheckpoint)
	if owed > m.ResidualPot {
		owed = m.ResidualPot
	}
	if owed <= 0 {
		pos.ResidualCheckpoint = m.LpResidualAccPerShare
		st.positions[provider] = pos
		return 0, nil
	}

	if err := e.ledger.CreditCollateral(ctx, provider, owed); err != nil {
		return 0, fmt.Errorf("credit provider: %w", err)
	}

	m.ResidualPot -= owed
	pos.ResidualCheckpoint = m.LpResidualAccPerShare
	st.positions[provider] = pos
	st.market = m

	e.publish(ctx, events.LpResidualClaimed{
		MarketID: marketID,
		Provider: provider,
		Amount:   owed,
	})
	return owed, nil
}

// pendingAmount is the reward-per-share payout formula: shares times the
// accumulator delta since the position's checkpoint, floored to collateral.
func pendingAmount(shares int64, acc, checkpoint sdkmath.Int) int64 {
	if shares <= 0 {
		return 0
	}
	delta := acc.Sub(checkpoint)
	if !delta.IsPositive() {
		return 0
	}
	return sdkmath.NewInt(shares).Mul(delta).Quo(fixmath.Scale).Int64()
}
