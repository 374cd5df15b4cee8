package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmarkets/totem/internal/events"
	"github.com/openmarkets/totem/internal/metrics"
	"github.com/openmarkets/totem/internal/model"
	"github.com/openmarkets/totem/internal/oracle"
)

// CheckUpkeep reports whether the market is due for resolution: past
// expiry and not yet resolved. It never mutates state and is safe to call
// from a polling loop.
func (e *Engine) CheckUpkeep(marketID string) (bool, error) {
	st, err := e.state(marketID)
	if err != nil {
		return false, err
	}
	st.mu.Lock()
	m := st.market
	st.mu.Unlock()
	return !m.IsResolved() && m.IsExpired(e.now()), nil
}

// ResolveManual settles a market whose resolution is not oracle-driven.
// The market must be past expiry; resolution is one-way and idempotent
// calls after the first fail with ErrAlreadyResolved.
func (e *Engine) ResolveManual(ctx context.Context, marketID string, yesWins bool) error {
	st, err := e.state(marketID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if m.IsResolved() {
		return ErrAlreadyResolved
	}
	if m.Resolution.OracleType != model.OracleNone {
		return ErrManualNotAllowed
	}
	if !m.IsExpired(e.now()) {
		return ErrMarketNotExpired
	}

	e.settle(&m, yesWins)
	st.market = m

	e.publish(ctx, events.MarketResolved{MarketID: marketID, YesWins: yesWins})
	e.logger.InfoContext(ctx, "market resolved manually",
		"market_id", marketID, "yes_wins", yesWins)
	metrics.MarketsResolved.WithLabelValues("manual").Inc()
	return nil
}

// PerformUpkeep resolves an oracle-driven market by fetching the latest
// feed reading and evaluating the configured comparison against the
// target. The oracle call is bounded by the configured timeout; a failed,
// missing or stale reading leaves the market unresolved so upkeep can be
// retried.
func (e *Engine) PerformUpkeep(ctx context.Context, marketID string) error {
	st, err := e.state(marketID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	m := st.market
	if m.IsResolved() {
		return ErrAlreadyResolved
	}
	if m.Resolution.OracleType != model.OracleExternalFeed {
		return ErrOracleNotConfigured
	}
	now := e.now()
	if !m.IsExpired(now) {
		return ErrMarketNotExpired
	}
	if e.oracle == nil {
		return ErrOracleNotConfigured
	}

	octx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
	defer cancel()
	reading, err := e.oracle.GetLatest(octx, m.Resolution.FeedID)
	if err != nil {
		metrics.OracleFailures.WithLabelValues("fetch").Inc()
		if errors.Is(err, oracle.ErrUnknownFeed) {
			return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}
		return fmt.Errorf("%w: feed %s: %v", ErrOracleUnavailable, m.Resolution.FeedID, err)
	}
	if !reading.OK {
		metrics.OracleFailures.WithLabelValues("not_ok").Inc()
		return fmt.Errorf("%w: feed %s reported no valid answer", ErrOracleUnavailable, m.Resolution.FeedID)
	}
	if age := now.Sub(reading.UpdatedAt); age > e.cfg.OracleMaxAge {
		metrics.OracleFailures.WithLabelValues("stale").Inc()
		return fmt.Errorf("%w: feed %s is %s old", ErrOracleStale, m.Resolution.FeedID, age)
	}

	yesWins := evaluate(m.Resolution.Comparison, reading.Value, m.Resolution.TargetValue)
	e.settle(&m, yesWins)
	st.market = m

	e.publish(ctx, events.MarketResolved{MarketID: marketID, YesWins: yesWins})
	e.logger.InfoContext(ctx, "market resolved by oracle",
		"market_id", marketID, "feed_id", m.Resolution.FeedID,
		"value", reading.Value, "target", m.Resolution.TargetValue,
		"comparison", m.Resolution.Comparison, "yes_wins", yesWins)
	metrics.MarketsResolved.WithLabelValues("oracle").Inc()
	return nil
}

func (e *Engine) settle(m *model.Market, yesWins bool) {
	now := e.now()
	m.Status = model.StatusResolved
	m.Resolution.IsResolved = true
	m.Resolution.YesWins = yesWins
	m.Resolution.ResolvedAt = &now
}

// evaluate applies the resolution predicate to an 8-decimal oracle value.
func evaluate(cmp model.Comparison, value, target int64) bool {
	switch cmp {
	case model.CompareAbove:
		return value > target
	case model.CompareBelow:
		return value < target
	default:
		return value == target
	}
}
