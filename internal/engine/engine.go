package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/openmarkets/totem/internal/events"
	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/fixmath"
	"github.com/openmarkets/totem/internal/ledger"
	"github.com/openmarkets/totem/internal/model"
	"github.com/openmarkets/totem/internal/oracle"
)

// Config holds the engine-wide knobs that apply to every market.
type Config struct {
	// PriceMoveLimit is the maximum spot price move a single trade chunk
	// may cause, as an 18-decimal fraction (0.05e18 = five cents).
	PriceMoveLimit sdkmath.Int

	// OracleTimeout bounds how long a resolution attempt may wait on the
	// oracle source while holding the market lock.
	OracleTimeout time.Duration

	// OracleMaxAge is the staleness cutoff for oracle readings.
	OracleMaxAge time.Duration

	// DustThreshold is the smallest vault balance, in collateral units,
	// worth distributing as residual to liquidity providers.
	DustThreshold int64

	// TreasuryAccount receives the treasury cut of trading fees.
	TreasuryAccount string
}

// Engine owns all market state and serializes mutations per market: each
// market has a dedicated mutex, and every operation snapshots the market,
// works on the copy, and commits only after all ledger calls succeed.
type Engine struct {
	mu      sync.RWMutex
	markets map[string]*marketState

	ledger ledger.TokenLedger
	oracle oracle.Source
	sink   events.Sink
	cfg    Config
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

type marketState struct {
	mu        sync.Mutex
	market    model.Market
	positions map[string]model.LpPosition
	history   []model.PricePoint
}

// maxHistoryPoints bounds the in-memory price history per market; the
// sampler in the chart package downsamples anyway.
const maxHistoryPoints = 1_000

// recordPrice appends the current YES spot price to the market's history.
// Callers hold the market lock.
func (st *marketState) recordPrice(spotYes sdkmath.Int, at time.Time) {
	point := model.PricePoint{
		Timestamp: at,
		PriceYes:  float64(spotYes.Int64()) / 1e18,
	}
	if len(st.history) >= maxHistoryPoints {
		st.history = st.history[1:]
	}
	st.history = append(st.history, point)
}

// New builds an engine. The oracle source may be nil when no market uses
// an external feed.
func New(lg ledger.TokenLedger, src oracle.Source, sink events.Sink, cfg Config, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = events.NewLogSink(logger)
	}
	return &Engine{
		markets: make(map[string]*marketState),
		ledger:  lg,
		oracle:  src,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// CreateMarketParams describes a new market. Seed is the creator's initial
// collateral deposit in 6-decimal units; it determines the liquidity
// parameter b and mints the creator's LP position one to one.
type CreateMarketParams struct {
	Creator    string
	Question   string
	Seed       int64
	Fees       fees.Schedule
	Resolution model.ResolutionConfig
}

// CreateMarket registers a new binary market seeded with the creator's
// collateral. The seed fixes b through seed = b*ln2, which makes the vault
// equal to the cost function value of the empty pools.
func (e *Engine) CreateMarket(ctx context.Context, p CreateMarketParams) (*model.Market, error) {
	if p.Seed <= 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	if err := p.Resolution.Validate(now); err != nil {
		return nil, err
	}
	m := model.Market{
		ID:         e.newID(),
		Question:   p.Question,
		Status:     model.StatusActive,
		QYes:       sdkmath.ZeroInt(),
		QNo:        sdkmath.ZeroInt(),
		Vault:      p.Seed,
		Fees:       p.Fees,
		Resolution: p.Resolution,
		CreatedAt:  now,

		TotalLpCollateral:     p.Seed,
		LpFeeAccPerShare:      sdkmath.ZeroInt(),
		LpResidualAccPerShare: sdkmath.ZeroInt(),
	}
	seedWad := fixmath.FromCollateral(p.Seed)
	b, err := fixmath.Div(seedWad, fixmath.Ln2)
	if err != nil {
		return nil, fmt.Errorf("derive liquidity parameter: %w", err)
	}
	m.BE18 = b
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := e.ledger.DebitCollateral(ctx, p.Creator, p.Seed); err != nil {
		return nil, fmt.Errorf("debit seed: %w", err)
	}

	st := &marketState{
		market:  m,
		history: []model.PricePoint{{Timestamp: now, PriceYes: 0.5}},
		positions: map[string]model.LpPosition{
			p.Creator: {
				MarketID:           m.ID,
				Provider:           p.Creator,
				Shares:             p.Seed,
				FeeCheckpoint:      sdkmath.ZeroInt(),
				ResidualCheckpoint: sdkmath.ZeroInt(),
			},
		},
	}
	e.mu.Lock()
	e.markets[m.ID] = st
	e.mu.Unlock()

	e.publish(ctx, events.MarketCreated{
		MarketID:        m.ID,
		SeedCollateral:  p.Seed,
		ExpiryTimestamp: m.Resolution.ExpiryTimestamp,
	})
	e.logger.InfoContext(ctx, "market created",
		"market_id", m.ID, "creator", p.Creator, "seed", p.Seed)

	out := m
	return &out, nil
}

// Market returns a copy of the market aggregate.
func (e *Engine) Market(id string) (*model.Market, error) {
	st, err := e.state(id)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	m := st.market
	st.mu.Unlock()
	return &m, nil
}

// Markets returns copies of all markets in no particular order.
func (e *Engine) Markets() []model.Market {
	e.mu.RLock()
	states := make([]*marketState, 0, len(e.markets))
	for _, st := range e.markets {
		states = append(states, st)
	}
	e.mu.RUnlock()

	out := make([]model.Market, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.market)
		st.mu.Unlock()
	}
	return out
}

// PriceHistory returns a copy of the market's recorded YES price points.
func (e *Engine) PriceHistory(marketID string) ([]model.PricePoint, error) {
	st, err := e.state(marketID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]model.PricePoint, len(st.history))
	copy(out, st.history)
	return out, nil
}

// Position returns a copy of a provider's LP position.
func (e *Engine) Position(marketID, provider string) (*model.LpPosition, error) {
	st, err := e.state(marketID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	pos, ok := st.positions[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s in market %s", ErrPositionNotFound, provider, marketID)
	}
	out := pos
	return &out, nil
}

func (e *Engine) state(id string) (*marketState, error) {
	e.mu.RLock()
	st, ok := e.markets[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	return st, nil
}

func ensureTradable(m *model.Market, now time.Time) error {
	if m.IsResolved() || m.Status != model.StatusActive {
		return ErrMarketNotActive
	}
	if m.IsExpired(now) {
		return ErrMarketNotActive
	}
	return nil
}

// publish sends an event to the sink. Delivery is best effort: a sink
// failure is logged and never fails the operation that produced it.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.sink.Publish(ctx, ev); err != nil {
		e.logger.ErrorContext(ctx, "event publish failed",
			"event", ev.EventType(), "market_id", ev.Market(), "error", err)
	}
}
