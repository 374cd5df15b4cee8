// Package events defines the engine's emitted event types and the sinks
// that carry them to external indexers and UIs. The engine publishes
// exactly one event per committed operation; sinks are best-effort and
// never fail an already-committed operation.
package events

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/model"
)

// Event is implemented by every emitted event type.
type Event interface {
	EventType() string
	Market() string
}

// Sink receives committed events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

type MarketCreated struct {
	MarketID        string    `json:"market_id"`
	SeedCollateral  int64     `json:"seed_collateral"`
	ExpiryTimestamp time.Time `json:"expiry_timestamp"`
}

func (e MarketCreated) EventType() string { return "market_created" }
func (e MarketCreated) Market() string    { return e.MarketID }

type Buy struct {
	MarketID     string        `json:"market_id"`
	Buyer        string        `json:"buyer"`
	Side         model.Outcome `json:"side"`
	CollateralIn int64         `json:"collateral_in"`
	TokensOut    sdkmath.Int   `json:"tokens_out"`
	NewSpotPrice sdkmath.Int   `json:"new_spot_price"`
}

func (e Buy) EventType() string { return "buy" }
func (e Buy) Market() string    { return e.MarketID }

type Sell struct {
	MarketID      string        `json:"market_id"`
	Seller        string        `json:"seller"`
	Side          model.Outcome `json:"side"`
	TokensIn      sdkmath.Int   `json:"tokens_in"`
	CollateralOut int64         `json:"collateral_out"`
	NewSpotPrice  sdkmath.Int   `json:"new_spot_price"`
}

func (e Sell) EventType() string { return "sell" }
func (e Sell) Market() string    { return e.MarketID }

type LiquidityAdded struct {
	MarketID string `json:"market_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

func (e LiquidityAdded) EventType() string { return "liquidity_added" }
func (e LiquidityAdded) Market() string    { return e.MarketID }

type MarketResolved struct {
	MarketID string `json:"market_id"`
	YesWins  bool   `json:"yes_wins"`
}

func (e MarketResolved) EventType() string { return "market_resolved" }
func (e MarketResolved) Market() string    { return e.MarketID }

type Redeemed struct {
	MarketID      string        `json:"market_id"`
	User          string        `json:"user"`
	Side          model.Outcome `json:"side"`
	CollateralOut int64         `json:"collateral_out"`
}

func (e Redeemed) EventType() string { return "redeemed" }
func (e Redeemed) Market() string    { return e.MarketID }

type LpFeesClaimed struct {
	MarketID string `json:"market_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

func (e LpFeesClaimed) EventType() string { return "lp_fees_claimed" }
func (e LpFeesClaimed) Market() string    { return e.MarketID }

type LpResidualClaimed struct {
	MarketID string `json:"market_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

func (e LpResidualClaimed) EventType() string { return "lp_residual_claimed" }
func (e LpResidualClaimed) Market() string    { return e.MarketID }
