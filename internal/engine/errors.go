package engine

import "errors"

// Operation errors. Every failure is synchronous and leaves market state
// unchanged; callers can match with errors.Is to decide whether to retry,
// shrink the amount, or wait for oracle recovery.
var (
	ErrMarketNotFound   = errors.New("engine: market not found")
	ErrPositionNotFound = errors.New("engine: no liquidity position")
	ErrInvalidAmount    = errors.New("engine: amount must be positive")
	ErrMarketNotActive  = errors.New("engine: market is not active")

	ErrMarketNotExpired = errors.New("engine: market has not reached expiry")
	ErrAlreadyResolved  = errors.New("engine: market already resolved")
	ErrNotResolved      = errors.New("engine: market not resolved")

	ErrNotWinningSide  = errors.New("engine: side did not win")
	ErrNothingToRedeem = errors.New("engine: no shares to redeem")

	ErrResidualNotReady = errors.New("engine: residual not ready for distribution")

	ErrOracleUnavailable   = errors.New("engine: oracle unavailable")
	ErrOracleStale         = errors.New("engine: oracle reading is stale")
	ErrOracleNotConfigured = errors.New("engine: market has no oracle feed")
	ErrManualNotAllowed    = errors.New("engine: manual resolution not allowed for oracle markets")

	ErrSlippageExceeded    = errors.New("engine: return below requested minimum")
	ErrPriceImpactExceeded = errors.New("engine: trade exceeds price impact cap")
)
