// Package oracle abstracts the external price feed consumed during
// oracle-driven market resolution. The engine only depends on the narrow
// Source capability; concrete providers live behind it so no vendor client
// leaks into the pricing core.
package oracle

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnavailable = errors.New("oracle: feed unavailable")
	ErrUnknownFeed = errors.New("oracle: unknown feed id")
)

// Reading is one observation from a feed. Value is an 8-decimal integer.
type Reading struct {
	Value     int64     `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	OK        bool      `json:"ok"`
}

// Source supplies the latest reading for a feed. Implementations must
// respect context cancellation: resolution wraps calls in a timeout so a
// hung feed cannot hold a market's lock.
type Source interface {
	GetLatest(ctx context.Context, feedID string) (Reading, error)
}

// Static is a fixed-table Source for tests and local bootstrapping.
type Static struct {
	Readings map[string]Reading
}

func (s *Static) GetLatest(ctx context.Context, feedID string) (Reading, error) {
	r, ok := s.Readings[feedID]
	if !ok {
		return Reading{}, ErrUnknownFeed
	}
	return r, nil
}
