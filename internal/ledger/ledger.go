// Package ledger abstracts the external collateral and outcome-token
// custody the engine settles against. The engine only computes amounts; it
// never implements transfer logic itself.
package ledger

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/model"
)

var (
	ErrInsufficientCollateral = errors.New("ledger: insufficient collateral balance")
	ErrInsufficientShares     = errors.New("ledger: insufficient share balance")
)

// TokenLedger is the custody collaborator. Collateral amounts are
// 6-decimal integers; share amounts are 18-decimal fixed-point.
type TokenLedger interface {
	// DebitCollateral removes collateral from an account (a trade payment
	// or liquidity deposit into the market's custody).
	DebitCollateral(ctx context.Context, account string, amount int64) error

	// CreditCollateral adds collateral to an account (a refund, payout or
	// fee transfer out of the market's custody).
	CreditCollateral(ctx context.Context, account string, amount int64) error

	// MintShares creates outcome shares for an account.
	MintShares(ctx context.Context, marketID string, side model.Outcome, account string, amount sdkmath.Int) error

	// BurnShares destroys outcome shares held by an account.
	BurnShares(ctx context.Context, marketID string, side model.Outcome, account string, amount sdkmath.Int) error

	// ShareBalance reads an account's outcome-share balance.
	ShareBalance(ctx context.Context, marketID string, side model.Outcome, account string) (sdkmath.Int, error)
}
