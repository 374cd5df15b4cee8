package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/engine"
	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/ledger"
	"github.com/openmarkets/totem/internal/model"
)

func newTestService(t *testing.T) (*MarketService, *ledger.InMemory) {
	t.Helper()
	lg := ledger.NewInMemory()
	lg.Fund("alice", 10_000_000_000)
	lg.Fund("bob", 10_000_000_000)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(lg, nil, nil, engine.Config{
		PriceMoveLimit:  sdkmath.NewInt(50_000_000_000_000_000),
		OracleTimeout:   time.Second,
		OracleMaxAge:    time.Hour,
		DustThreshold:   1_000,
		TreasuryAccount: "treasury",
	}, logger)
	return NewMarketService(eng, nil, logger), lg
}

func validCreateRequest() CreateMarketRequest {
	return CreateMarketRequest{
		Creator:     "alice",
		Question:    "Will the launch happen this quarter?",
		Seed:        1_000_000_000,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
		TreasuryBps: 50,
		VaultBps:    50,
		LpBps:       100,
	}
}

func TestCreateMarketRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CreateMarketRequest)
		wantErr error
	}{
		{name: "valid", modify: func(r *CreateMarketRequest) {}},
		{
			name:    "empty question",
			modify:  func(r *CreateMarketRequest) { r.Question = "" },
			wantErr: model.ErrEmptyQuestion,
		},
		{
			name:    "zero seed",
			modify:  func(r *CreateMarketRequest) { r.Seed = 0 },
			wantErr: engine.ErrInvalidAmount,
		},
		{
			name:    "missing expiry",
			modify:  func(r *CreateMarketRequest) { r.ExpiresAt = time.Time{} },
			wantErr: ErrInvalidExpiry,
		},
		{
			name:    "fees exceed 100 percent",
			modify:  func(r *CreateMarketRequest) { r.LpBps = 10_000 },
			wantErr: fees.ErrInvalidBps,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.modify(&req)
			err := req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuyRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     BuyRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  BuyRequest{MarketID: "m1", Buyer: "bob", Side: "YES", Amount: 100},
		},
		{
			name:    "bad side",
			req:     BuyRequest{MarketID: "m1", Buyer: "bob", Side: "MAYBE", Amount: 100},
			wantErr: model.ErrInvalidOutcome,
		},
		{
			name:    "zero amount",
			req:     BuyRequest{MarketID: "m1", Buyer: "bob", Side: "NO"},
			wantErr: engine.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSellRequestValidate(t *testing.T) {
	base := SellRequest{MarketID: "m1", Seller: "bob", Side: "YES", Tokens: "1000000000000000000"}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	bad := base
	bad.Tokens = "-5"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTokenAmount) {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidTokenAmount)
	}

	bad.Tokens = "1.5"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTokenAmount) {
		t.Errorf("Validate() = %v, want %v", err, ErrInvalidTokenAmount)
	}
}

func TestTradeFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMarket(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	quote, err := svc.GetQuote(ctx, m.ID, model.OutcomeYes, 100_000_000)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if !quote.TokensOut.IsPositive() {
		t.Fatal("quote returned no tokens")
	}

	// Second identical quote should come from cache.
	cached, err := svc.GetQuote(ctx, m.ID, model.OutcomeYes, 100_000_000)
	if err != nil {
		t.Fatalf("GetQuote cached: %v", err)
	}
	if !cached.TokensOut.Equal(quote.TokensOut) {
		t.Errorf("cached quote differs: %s vs %s", cached.TokensOut, quote.TokensOut)
	}

	rcpt, err := svc.Buy(ctx, BuyRequest{MarketID: m.ID, Buyer: "bob", Side: "YES", Amount: 100_000_000})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !rcpt.TokensOut.Equal(quote.TokensOut) {
		t.Errorf("execution diverged from quote: %s vs %s", rcpt.TokensOut, quote.TokensOut)
	}

	sold, err := svc.Sell(ctx, SellRequest{
		MarketID: m.ID, Seller: "bob", Side: "YES", Tokens: rcpt.TokensOut.String(),
	})
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if sold.CollateralOut <= 0 || sold.CollateralOut >= 100_000_000 {
		t.Errorf("round trip returned %d, want positive and below gross", sold.CollateralOut)
	}

	markets := svc.ListMarkets()
	if len(markets) != 1 {
		t.Fatalf("ListMarkets returned %d markets, want 1", len(markets))
	}
}
