package config

import "time"

const (
	DefaultPort = "8080"

	// Market configuration
	DefaultSeedCollateral = int64(1_000_000_000) // 1,000 units at 6 decimals
	DefaultTreasuryBps    = int64(50)
	DefaultVaultBps       = int64(50)
	DefaultLpBps          = int64(100)

	// DefaultPriceMoveLimit is the maximum spot price move per trade
	// chunk, as an 18-decimal fraction (0.05 = five cents of probability).
	DefaultPriceMoveLimit = int64(50_000_000_000_000_000)

	// DustThreshold is the smallest vault remainder worth sweeping to
	// liquidity providers, in 6-decimal collateral units.
	DustThreshold = int64(1_000)

	// Oracle configuration
	DefaultOracleTimeout = 5 * time.Second
	DefaultOracleMaxAge  = 30 * time.Minute

	// EventsChannel is the Redis pub/sub channel trade events go out on.
	EventsChannel = "totem.events"

	TreasuryAccount = "treasury"
)
