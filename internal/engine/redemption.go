package engine

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/events"
	"github.com/openmarkets/totem/internal/fixmath"
	"github.com/openmarkets/totem/internal/metrics"
	"github.com/openmarkets/totem/internal/model"
)

// Redeem burns the caller's entire winning-side balance and pays one
// collateral unit per share. Losing-side shares pay nothing and cannot be
// redeemed. The payout is floored at the collateral precision; any wei of
// dust stays in the vault for the residual sweep.
func (e *Engine) Redeem(ctx context.Context, marketID, account string, side model.Outcome) (int64, error) {
	if !side.IsValid() {
		return 0, model.ErrInvalidOutcome
	}
	st, err := e.state(marketID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if !m.IsResolved() {
		return 0, ErrNotResolved
	}
	if side != m.WinningSide() {
		return 0, ErrNotWinningSide
	}

	balance, err := e.ledger.ShareBalance(ctx, marketID, side, account)
	if err != nil {
		return 0, fmt.Errorf("share balance: %w", err)
	}
	if !balance.IsPositive() {
		return 0, ErrNothingToRedeem
	}

	payout := fixmath.ToCollateral(balance)
	if payout > m.Vault {
		return 0, fmt.Errorf("vault %d cannot cover redemption %d for market %s",
			m.Vault, payout, marketID)
	}

	if err := e.ledger.BurnShares(ctx, marketID, side, account, balance); err != nil {
		return 0, fmt.Errorf("burn shares: %w", err)
	}
	if payout > 0 {
		if err := e.ledger.CreditCollateral(ctx, account, payout); err != nil {
			if mErr := e.ledger.MintShares(ctx, marketID, side, account, balance); mErr != nil {
				e.logger.ErrorContext(ctx, "compensation failed after payout error",
					"market_id", marketID, "account", account, "error", mErr)
			}
			return 0, fmt.Errorf("credit account: %w", err)
		}
	}

	pool := m.PoolFor(side).Sub(balance)
	if pool.IsNegative() {
		pool = sdkmath.ZeroInt()
	}
	if side == model.OutcomeYes {
		m.QYes = pool
	} else {
		m.QNo = pool
	}
	m.Vault -= payout
	st.market = m

	e.publish(ctx, events.Redeemed{
		MarketID:      marketID,
		User:          account,
		Side:          side,
		CollateralOut: payout,
	})
	metrics.Redemptions.Inc()
	return payout, nil
}

// FinalizeResidual sweeps the vault remainder into the residual pot once
// every winning share has been redeemed. The remainder exists because the
// cost function charges more than the winning pool is worth whenever the
// losing side holds shares at resolution. Requires the winning pool to be
// fully drained and the vault to exceed the dust threshold.
func (e *Engine) FinalizeResidual(ctx context.Context, marketID string) (int64, error) {
	st, err := e.state(marketID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if !m.IsResolved() {
		return 0, ErrNotResolved
	}
	if m.ResidualFinalized {
		return 0, ErrResidualNotReady
	}
	if m.PoolFor(m.WinningSide()).IsPositive() {
		return 0, fmt.Errorf("%w: winning pool not fully redeemed", ErrResidualNotReady)
	}
	if m.Vault <= e.cfg.DustThreshold {
		return 0, fmt.Errorf("%w: vault %d at or below dust threshold %d",
			ErrResidualNotReady, m.Vault, e.cfg.DustThreshold)
	}
	if m.TotalLpCollateral <= 0 {
		return 0, fmt.Errorf("%w: no liquidity providers to attribute to", ErrResidualNotReady)
	}

	residual := m.Vault
	m.LpResidualAccPerShare = m.LpResidualAccPerShare.Add(
		sdkmath.NewInt(residual).Mul(fixmath.Scale).QuoRaw(m.TotalLpCollateral))
	m.ResidualPot += residual
	m.Vault = 0
	m.ResidualFinalized = true
	st.market = m

	e.logger.InfoContext(ctx, "residual finalized",
		"market_id", marketID, "residual", residual)
	return residual, nil
}
