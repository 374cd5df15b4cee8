// Package model defines the Market aggregate and its owned records: the
// resolution configuration and per-provider liquidity positions. The engine
// package mutates these under a per-market lock; everything here is plain
// state plus invariant checks.
package model

import (
	"errors"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/fees"
)

// Validation errors.
var (
	ErrInvalidOutcome    = errors.New("invalid outcome: must be YES or NO")
	ErrInvalidComparison = errors.New("invalid comparison: must be above, below or equals")
	ErrInvalidOracleType = errors.New("invalid oracle type: must be none or external_feed")
	ErrEmptyQuestion     = errors.New("question is required")
	ErrQuestionTooLong   = errors.New("question exceeds maximum length (500 characters)")
	ErrInvalidLiquidity  = errors.New("liquidity parameter must be positive")
	ErrNegativePool      = errors.New("pool quantities must be non-negative")
	ErrExpiryInPast      = errors.New("expiry timestamp must be in the future")
	ErrMissingFeed       = errors.New("external feed resolution requires a feed id")
)

const MaxQuestionLength = 500

// Outcome represents a market outcome side (YES or NO).
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// ParseOutcome parses a string into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES":
		return OutcomeYes, nil
	case "NO":
		return OutcomeNo, nil
	default:
		return "", ErrInvalidOutcome
	}
}

// IsValid returns true if the outcome is valid.
func (o Outcome) IsValid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Opposite returns the other side.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// String returns the string representation.
func (o Outcome) String() string {
	return string(o)
}

// Status is the market lifecycle state. The transition Active -> Resolved
// is one-way; there is no path back.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// OracleType selects the resolution path.
type OracleType string

const (
	// OracleNone markets resolve manually through an authorized caller.
	OracleNone OracleType = "none"
	// OracleExternalFeed markets resolve by comparing an external feed
	// value against the configured target.
	OracleExternalFeed OracleType = "external_feed"
)

// Comparison is the predicate evaluated against the oracle value.
type Comparison string

const (
	CompareAbove  Comparison = "above"
	CompareBelow  Comparison = "below"
	CompareEquals Comparison = "equals"
)

// ResolutionConfig is owned 1:1 by a Market and drives the resolution state
// machine. YesWins is meaningful only once IsResolved is true; IsResolved
// transitions false -> true exactly once.
type ResolutionConfig struct {
	ExpiryTimestamp time.Time  `json:"expiry_timestamp"`
	OracleType      OracleType `json:"oracle_type"`
	FeedID          string     `json:"feed_id,omitempty"`
	TargetValue     int64      `json:"target_value,omitempty"` // 8-decimal integer
	Comparison      Comparison `json:"comparison,omitempty"`
	YesWins         bool       `json:"yes_wins"`
	IsResolved      bool       `json:"is_resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Validate checks the config for a market being created.
func (rc *ResolutionConfig) Validate(now time.Time) error {
	if !rc.ExpiryTimestamp.After(now) {
		return ErrExpiryInPast
	}
	switch rc.OracleType {
	case OracleNone:
	case OracleExternalFeed:
		if rc.FeedID == "" {
			return ErrMissingFeed
		}
		switch rc.Comparison {
		case CompareAbove, CompareBelow, CompareEquals:
		default:
			return ErrInvalidComparison
		}
	default:
		return ErrInvalidOracleType
	}
	return nil
}

// Market is the aggregate root of one binary-outcome prediction market.
//
// QYes/QNo/BE18 are 18-decimal fixed-point quantities; Vault, LpFeePot,
// ResidualPot and TotalLpCollateral are 6-decimal collateral integers. The
// two per-share accumulators are wad-scaled amounts per unit of LP
// collateral, following the reward-per-share pattern so claims stay O(1).
type Market struct {
	ID       string `json:"id"`
	Question string `json:"question"`

	QYes sdkmath.Int `json:"q_yes"`
	QNo  sdkmath.Int `json:"q_no"`
	BE18 sdkmath.Int `json:"b_e18"`

	Vault       int64 `json:"vault"`
	LpFeePot    int64 `json:"lp_fee_pot"`
	ResidualPot int64 `json:"residual_pot"`

	Fees fees.Schedule `json:"fees"`

	Status     Status           `json:"status"`
	Resolution ResolutionConfig `json:"resolution"`

	// ResidualFinalized is set once the leftover vault has been moved
	// into the residual pot; only then may providers claim residuals.
	ResidualFinalized bool `json:"residual_finalized"`

	TotalLpCollateral     int64       `json:"total_lp_collateral"`
	LpFeeAccPerShare      sdkmath.Int `json:"lp_fee_acc_per_share"`
	LpResidualAccPerShare sdkmath.Int `json:"lp_residual_acc_per_share"`

	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether now is at or past the expiry timestamp.
func (m *Market) IsExpired(now time.Time) bool {
	return !now.Before(m.Resolution.ExpiryTimestamp)
}

// IsResolved reports whether the market has been resolved.
func (m *Market) IsResolved() bool {
	return m.Resolution.IsResolved
}

// WinningSide returns the outcome that pays out. Valid only once resolved.
func (m *Market) WinningSide() Outcome {
	if m.Resolution.YesWins {
		return OutcomeYes
	}
	return OutcomeNo
}

// PoolFor returns the outstanding share quantity for one side.
func (m *Market) PoolFor(side Outcome) sdkmath.Int {
	if side == OutcomeYes {
		return m.QYes
	}
	return m.QNo
}

// Validate checks all market invariants. Returns an error if any invariant
// is violated.
func (m *Market) Validate() error {
	if m.ID == "" {
		return errors.New("market ID is required")
	}
	if m.Question == "" {
		return ErrEmptyQuestion
	}
	if len(m.Question) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	if m.BE18.IsNil() || !m.BE18.IsPositive() {
		return ErrInvalidLiquidity
	}
	if m.QYes.IsNil() || m.QNo.IsNil() || m.QYes.IsNegative() || m.QNo.IsNegative() {
		return ErrNegativePool
	}
	if m.Vault < 0 {
		return errors.New("vault must be non-negative")
	}
	if m.TotalLpCollateral < 0 {
		return errors.New("lp collateral must be non-negative")
	}
	if err := m.Fees.Validate(); err != nil {
		return err
	}
	if m.Status == StatusResolved && !m.Resolution.IsResolved {
		return errors.New("resolved market must carry a resolved config")
	}
	if m.Resolution.IsResolved && m.Resolution.ResolvedAt == nil {
		return errors.New("resolved market must have resolved_at timestamp")
	}
	return nil
}

// PricePoint is one observation of the YES spot price, kept per market for
// charting.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	PriceYes  float64   `json:"price_yes"`
}

// LpPosition tracks one provider's claim on a market's LP collateral.
// The checkpoints are the accumulator values at the provider's last claim
// (or mint), so the owed amount is shares * (acc - checkpoint) without
// iterating other providers.
type LpPosition struct {
	MarketID           string      `json:"market_id"`
	Provider           string      `json:"provider"`
	Shares             int64       `json:"shares"` // 6-decimal, 1:1 with deposited collateral
	FeeCheckpoint      sdkmath.Int `json:"fee_checkpoint"`
	ResidualCheckpoint sdkmath.Int `json:"residual_checkpoint"`
}
