// Package service is the application layer over the trading engine: it
// validates transport-shaped requests, invokes engine operations, caches
// read-heavy quotes and writes market state behind to the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/samber/hot"

	"github.com/openmarkets/totem/internal/engine"
	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/model"
	"github.com/openmarkets/totem/internal/store"
)

var (
	ErrInvalidTokenAmount = errors.New("invalid token amount")
	ErrInvalidExpiry      = errors.New("expiry timestamp is required")
)

const (
	// quoteCacheTTL is short on purpose: quotes are advisory and a trade
	// executed between quote and order re-prices at execution time anyway.
	quoteCacheTTL  = 2 * time.Second
	quoteCacheSize = 10_000
)

// Persistence is the slice of the store the service writes behind to.
type Persistence interface {
	SaveMarket(ctx context.Context, m *model.Market) error
	SavePosition(ctx context.Context, p *model.LpPosition) error
}

// MarketService exposes market operations to transports.
type MarketService struct {
	eng    *engine.Engine
	db     Persistence // nil disables persistence
	quotes *hot.HotCache[string, *engine.Quote]
	logger *slog.Logger
}

// NewMarketService creates a new market service. db may be nil for
// in-memory deployments.
func NewMarketService(eng *engine.Engine, db Persistence, logger *slog.Logger) *MarketService {
	return &MarketService{
		eng: eng,
		db:  db,
		quotes: hot.NewHotCache[string, *engine.Quote](hot.LRU, quoteCacheSize).
			WithTTL(quoteCacheTTL).
			Build(),
		logger: logger,
	}
}

// CreateMarketRequest contains data for opening a market.
type CreateMarketRequest struct {
	Creator     string    `json:"creator"`
	Question    string    `json:"question"`
	Seed        int64     `json:"seed"`
	ExpiresAt   time.Time `json:"expires_at"`
	TreasuryBps int64     `json:"treasury_bps"`
	VaultBps    int64     `json:"vault_bps"`
	LpBps       int64     `json:"lp_bps"`
	OracleType  string    `json:"oracle_type"`
	FeedID      string    `json:"feed_id,omitempty"`
	TargetValue int64     `json:"target_value,omitempty"`
	Comparison  string    `json:"comparison,omitempty"`
}

// Validate validates the create request.
func (r *CreateMarketRequest) Validate() error {
	if r.Creator == "" {
		return fmt.Errorf("creator is required")
	}
	if r.Question == "" {
		return model.ErrEmptyQuestion
	}
	if r.Seed <= 0 {
		return engine.ErrInvalidAmount
	}
	if r.ExpiresAt.IsZero() {
		return ErrInvalidExpiry
	}
	s := fees.Schedule{TreasuryBps: r.TreasuryBps, VaultBps: r.VaultBps, LpBps: r.LpBps}
	return s.Validate()
}

// CreateMarket opens a new market and persists its initial state.
func (s *MarketService) CreateMarket(ctx context.Context, req CreateMarketRequest) (*model.Market, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	oracleType := model.OracleType(req.OracleType)
	if req.OracleType == "" {
		oracleType = model.OracleNone
	}
	m, err := s.eng.CreateMarket(ctx, engine.CreateMarketParams{
		Creator:  req.Creator,
		Question: req.Question,
		Seed:     req.Seed,
		Fees:     fees.Schedule{TreasuryBps: req.TreasuryBps, VaultBps: req.VaultBps, LpBps: req.LpBps},
		Resolution: model.ResolutionConfig{
			ExpiryTimestamp: req.ExpiresAt,
			OracleType:      oracleType,
			FeedID:          req.FeedID,
			TargetValue:     req.TargetValue,
			Comparison:      model.Comparison(req.Comparison),
		},
	})
	if err != nil {
		return nil, err
	}
	s.persistMarket(ctx, m.ID)
	s.persistPosition(ctx, m.ID, req.Creator)
	return m, nil
}

// BuyRequest contains data for buying outcome shares.
type BuyRequest struct {
	MarketID string `json:"market_id"`
	Buyer    string `json:"buyer"`
	Side     string `json:"side"`
	Amount   int64  `json:"amount"` // gross collateral, fees included
	NoSplit  bool   `json:"no_split,omitempty"`
}

// Validate validates the buy request.
func (r *BuyRequest) Validate() error {
	if r.MarketID == "" {
		return fmt.Errorf("market ID is required")
	}
	if r.Buyer == "" {
		return fmt.Errorf("buyer is required")
	}
	if _, err := model.ParseOutcome(r.Side); err != nil {
		return err
	}
	if r.Amount <= 0 {
		return engine.ErrInvalidAmount
	}
	return nil
}

// Buy executes a buy order.
func (s *MarketService) Buy(ctx context.Context, req BuyRequest) (*engine.TradeReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	side, _ := model.ParseOutcome(req.Side)
	rcpt, err := s.eng.Buy(ctx, engine.BuyParams{
		MarketID:        req.MarketID,
		Buyer:           req.Buyer,
		Side:            side,
		GrossCollateral: req.Amount,
		NoSplit:         req.NoSplit,
	})
	if err != nil {
		return nil, err
	}
	s.persistMarket(ctx, req.MarketID)
	return rcpt, nil
}

// SellRequest contains data for selling outcome shares. Tokens is an
// 18-decimal integer string because share quantities exceed int64.
type SellRequest struct {
	MarketID  string `json:"market_id"`
	Seller    string `json:"seller"`
	Side      string `json:"side"`
	Tokens    string `json:"tokens"`
	MinReturn int64  `json:"min_return,omitempty"`
}

// Validate validates the sell request.
func (r *SellRequest) Validate() error {
	if r.MarketID == "" {
		return fmt.Errorf("market ID is required")
	}
	if r.Seller == "" {
		return fmt.Errorf("seller is required")
	}
	if _, err := model.ParseOutcome(r.Side); err != nil {
		return err
	}
	if _, err := parseTokens(r.Tokens); err != nil {
		return err
	}
	return nil
}

// Sell executes a sell order.
func (s *MarketService) Sell(ctx context.Context, req SellRequest) (*engine.TradeReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	side, _ := model.ParseOutcome(req.Side)
	tokens, _ := parseTokens(req.Tokens)
	rcpt, err := s.eng.Sell(ctx, engine.SellParams{
		MarketID:  req.MarketID,
		Seller:    req.Seller,
		Side:      side,
		Tokens:    tokens,
		MinReturn: req.MinReturn,
	})
	if err != nil {
		return nil, err
	}
	s.persistMarket(ctx, req.MarketID)
	return rcpt, nil
}

// GetQuote previews a buy. Quotes are cached briefly per
// (market, side, amount) since market pages poll them aggressively.
func (s *MarketService) GetQuote(ctx context.Context, marketID string, side model.Outcome, amount int64) (*engine.Quote, error) {
	key := fmt.Sprintf("%s|%s|%d", marketID, side, amount)
	if q, found, err := s.quotes.Get(key); err == nil && found {
		return q, nil
	}
	q, err := s.eng.QuoteBuy(ctx, marketID, side, amount)
	if err != nil {
		return nil, err
	}
	s.quotes.Set(key, q)
	return q, nil
}

// GetSellQuote previews a sell. Not cached; sell sizing varies per caller.
func (s *MarketService) GetSellQuote(ctx context.Context, marketID string, side model.Outcome, tokens string) (*engine.Quote, error) {
	amount, err := parseTokens(tokens)
	if err != nil {
		return nil, err
	}
	return s.eng.QuoteSell(ctx, marketID, side, amount)
}

// AddLiquidityRequest contains data for an LP deposit.
type AddLiquidityRequest struct {
	MarketID string `json:"market_id"`
	Provider string `json:"provider"`
	Amount   int64  `json:"amount"`
}

// Validate validates the liquidity request.
func (r *AddLiquidityRequest) Validate() error {
	if r.MarketID == "" {
		return fmt.Errorf("market ID is required")
	}
	if r.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if r.Amount <= 0 {
		return engine.ErrInvalidAmount
	}
	return nil
}

// AddLiquidity deposits LP collateral.
func (s *MarketService) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*model.LpPosition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	pos, err := s.eng.AddLiquidity(ctx, engine.AddLiquidityParams{
		MarketID: req.MarketID,
		Provider: req.Provider,
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, err
	}
	s.persistMarket(ctx, req.MarketID)
	s.persistPosition(ctx, req.MarketID, req.Provider)
	return pos, nil
}

// ResolveManual settles a manually resolved market.
func (s *MarketService) ResolveManual(ctx context.Context, marketID string, yesWins bool) error {
	if err := s.eng.ResolveManual(ctx, marketID, yesWins); err != nil {
		return err
	}
	s.persistMarket(ctx, marketID)
	return nil
}

// CheckUpkeep reports whether a market is due for oracle resolution.
func (s *MarketService) CheckUpkeep(marketID string) (bool, error) {
	return s.eng.CheckUpkeep(marketID)
}

// PerformUpkeep attempts oracle resolution.
func (s *MarketService) PerformUpkeep(ctx context.Context, marketID string) error {
	if err := s.eng.PerformUpkeep(ctx, marketID); err != nil {
		return err
	}
	s.persistMarket(ctx, marketID)
	return nil
}

// Redeem pays out the caller's winning shares.
func (s *MarketService) Redeem(ctx context.Context, marketID, account string, side model.Outcome) (int64, error) {
	payout, err := s.eng.Redeem(ctx, marketID, account, side)
	if err != nil {
		return 0, err
	}
	s.persistMarket(ctx, marketID)
	return payout, nil
}

// FinalizeResidual sweeps leftover vault collateral to LPs.
func (s *MarketService) FinalizeResidual(ctx context.Context, marketID string) (int64, error) {
	residual, err := s.eng.FinalizeResidual(ctx, marketID)
	if err != nil {
		return 0, err
	}
	s.persistMarket(ctx, marketID)
	return residual, nil
}

// ClaimFees pays out accrued LP trading fees.
func (s *MarketService) ClaimFees(ctx context.Context, marketID, provider string) (int64, error) {
	amount, err := s.eng.ClaimFees(ctx, marketID, provider)
	if err != nil {
		return 0, err
	}
	s.persistMarket(ctx, marketID)
	s.persistPosition(ctx, marketID, provider)
	return amount, nil
}

// ClaimResidual pays out the provider's residual share.
func (s *MarketService) ClaimResidual(ctx context.Context, marketID, provider string) (int64, error) {
	amount, err := s.eng.ClaimResidual(ctx, marketID, provider)
	if err != nil {
		return 0, err
	}
	s.persistMarket(ctx, marketID)
	s.persistPosition(ctx, marketID, provider)
	return amount, nil
}

// GetMarket returns one market.
func (s *MarketService) GetMarket(marketID string) (*model.Market, error) {
	return s.eng.Market(marketID)
}

// ListMarkets returns all markets.
func (s *MarketService) ListMarkets() []model.Market {
	return s.eng.Markets()
}

// PriceHistory returns the market's recorded YES price points.
func (s *MarketService) PriceHistory(marketID string) ([]model.PricePoint, error) {
	return s.eng.PriceHistory(marketID)
}

// GetPosition returns one provider's LP position.
func (s *MarketService) GetPosition(marketID, provider string) (*model.LpPosition, error) {
	return s.eng.Position(marketID, provider)
}

// persistMarket writes the market's current state behind. The engine is
// the source of truth, so persistence failures are logged, not returned.
func (s *MarketService) persistMarket(ctx context.Context, marketID string) {
	if s.db == nil {
		return
	}
	m, err := s.eng.Market(marketID)
	if err != nil {
		s.logger.ErrorContext(ctx, "persist: market lookup failed", "market_id", marketID, "error", err)
		return
	}
	if err := s.db.SaveMarket(ctx, m); err != nil {
		s.logger.ErrorContext(ctx, "persist: save market failed", "market_id", marketID, "error", err)
	}
}

func (s *MarketService) persistPosition(ctx context.Context, marketID, provider string) {
	if s.db == nil {
		return
	}
	pos, err := s.eng.Position(marketID, provider)
	if err != nil {
		s.logger.ErrorContext(ctx, "persist: position lookup failed",
			"market_id", marketID, "provider", provider, "error", err)
		return
	}
	if err := s.db.SavePosition(ctx, pos); err != nil {
		s.logger.ErrorContext(ctx, "persist: save position failed",
			"market_id", marketID, "provider", provider, "error", err)
	}
}

func parseTokens(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok || !v.IsPositive() {
		return sdkmath.Int{}, fmt.Errorf("%w: %q", ErrInvalidTokenAmount, s)
	}
	return v, nil
}

var _ Persistence = (*store.Store)(nil)
