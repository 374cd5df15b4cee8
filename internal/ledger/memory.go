package ledger

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/model"
)

// InMemory is a process-local TokenLedger. It backs the standalone service
// mode and tests; a production deployment substitutes the real custody
// system behind the same interface.
type InMemory struct {
	mu         sync.Mutex
	collateral map[string]int64
	shares     map[shareKey]sdkmath.Int
}

type shareKey struct {
	marketID string
	side     model.Outcome
	account  string
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		collateral: make(map[string]int64),
		shares:     make(map[shareKey]sdkmath.Int),
	}
}

// Fund seeds an account with collateral. Test and bootstrap helper.
func (l *InMemory) Fund(account string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.collateral[account] += amount
}

// CollateralBalance reads an account's collateral balance.
func (l *InMemory) CollateralBalance(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collateral[account]
}

func (l *InMemory) DebitCollateral(ctx context.Context, account string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.collateral[account] < amount {
		return ErrInsufficientCollateral
	}
	l.collateral[account] -= amount
	return nil
}

func (l *InMemory) CreditCollateral(ctx context.Context, account string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.collateral[account] += amount
	return nil
}

func (l *InMemory) MintShares(ctx context.Context, marketID string, side model.Outcome, account string, amount sdkmath.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := shareKey{marketID, side, account}
	l.shares[k] = l.balanceLocked(k).Add(amount)
	return nil
}

func (l *InMemory) BurnShares(ctx context.Context, marketID string, side model.Outcome, account string, amount sdkmath.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := shareKey{marketID, side, account}
	bal := l.balanceLocked(k)
	if bal.LT(amount) {
		return ErrInsufficientShares
	}
	l.shares[k] = bal.Sub(amount)
	return nil
}

func (l *InMemory) ShareBalance(ctx context.Context, marketID string, side model.Outcome, account string) (sdkmath.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(shareKey{marketID, side, account}), nil
}

func (l *InMemory) balanceLocked(k shareKey) sdkmath.Int {
	if b, ok := l.shares[k]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}
