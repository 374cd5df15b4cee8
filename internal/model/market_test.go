package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/openmarkets/totem/internal/fees"
)

func validMarket() *Market {
	now := time.Now().UTC()
	return &Market{
		ID:       "mkt-1",
		Question: "Will it rain tomorrow?",
		QYes:     sdkmath.ZeroInt(),
		QNo:      sdkmath.ZeroInt(),
		BE18:     sdkmath.NewInt(1_000_000_000_000_000_000),
		Vault:    1_000_000000,
		Fees:     fees.Schedule{TreasuryBps: 100, VaultBps: 50, LpBps: 50},
		Status:   StatusActive,
		Resolution: ResolutionConfig{
			ExpiryTimestamp: now.Add(24 * time.Hour),
			OracleType:      OracleNone,
		},
		TotalLpCollateral:     1_000_000000,
		LpFeeAccPerShare:      sdkmath.ZeroInt(),
		LpResidualAccPerShare: sdkmath.ZeroInt(),
		CreatedAt:             now,
	}
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		in      string
		want    Outcome
		wantErr bool
	}{
		{"YES", OutcomeYes, false},
		{"no", OutcomeNo, false},
		{" Yes ", OutcomeYes, false},
		{"maybe", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutcome(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOutcome) {
					t.Errorf("expected ErrInvalidOutcome, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOutcome(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOutcomeOpposite(t *testing.T) {
	if OutcomeYes.Opposite() != OutcomeNo || OutcomeNo.Opposite() != OutcomeYes {
		t.Error("Opposite should swap sides")
	}
}

func TestMarketValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Market)
		wantErr error
	}{
		{"valid", func(m *Market) {}, nil},
		{"missing id", func(m *Market) { m.ID = "" }, nil},
		{"missing question", func(m *Market) { m.Question = "" }, ErrEmptyQuestion},
		{"question too long", func(m *Market) { m.Question = strings.Repeat("x", 501) }, ErrQuestionTooLong},
		{"zero liquidity", func(m *Market) { m.BE18 = sdkmath.ZeroInt() }, ErrInvalidLiquidity},
		{"negative yes pool", func(m *Market) { m.QYes = sdkmath.NewInt(-1) }, ErrNegativePool},
		{"negative no pool", func(m *Market) { m.QNo = sdkmath.NewInt(-1) }, ErrNegativePool},
		{"bps overflow", func(m *Market) { m.Fees = fees.Schedule{TreasuryBps: 10_001} }, fees.ErrInvalidBps},
		{"resolved without timestamp", func(m *Market) { m.Resolution.IsResolved = true }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			tt.modify(m)
			err := m.Validate()
			if tt.name == "valid" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestResolutionConfigValidate(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		cfg     ResolutionConfig
		wantErr error
	}{
		{
			name:    "manual ok",
			cfg:     ResolutionConfig{ExpiryTimestamp: now.Add(time.Hour), OracleType: OracleNone},
			wantErr: nil,
		},
		{
			name: "feed ok",
			cfg: ResolutionConfig{
				ExpiryTimestamp: now.Add(time.Hour),
				OracleType:      OracleExternalFeed,
				FeedID:          "BTC/USD",
				Comparison:      CompareAbove,
			},
			wantErr: nil,
		},
		{
			name:    "expiry in past",
			cfg:     ResolutionConfig{ExpiryTimestamp: now.Add(-time.Hour), OracleType: OracleNone},
			wantErr: ErrExpiryInPast,
		},
		{
			name: "feed without id",
			cfg: ResolutionConfig{
				ExpiryTimestamp: now.Add(time.Hour),
				OracleType:      OracleExternalFeed,
				Comparison:      CompareAbove,
			},
			wantErr: ErrMissingFeed,
		},
		{
			name: "feed without comparison",
			cfg: ResolutionConfig{
				ExpiryTimestamp: now.Add(time.Hour),
				OracleType:      OracleExternalFeed,
				FeedID:          "BTC/USD",
			},
			wantErr: ErrInvalidComparison,
		},
		{
			name:    "unknown oracle type",
			cfg:     ResolutionConfig{ExpiryTimestamp: now.Add(time.Hour), OracleType: "chainlink"},
			wantErr: ErrInvalidOracleType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(now)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMarketExpiry(t *testing.T) {
	m := validMarket()
	expiry := m.Resolution.ExpiryTimestamp

	if m.IsExpired(expiry.Add(-time.Second)) {
		t.Error("market should not be expired before expiry")
	}
	if !m.IsExpired(expiry) {
		t.Error("market should be expired exactly at expiry")
	}
	if !m.IsExpired(expiry.Add(time.Second)) {
		t.Error("market should be expired after expiry")
	}
}

func TestWinningSide(t *testing.T) {
	m := validMarket()
	m.Resolution.IsResolved = true

	m.Resolution.YesWins = true
	if m.WinningSide() != OutcomeYes {
		t.Error("expected YES to win")
	}
	m.Resolution.YesWins = false
	if m.WinningSide() != OutcomeNo {
		t.Error("expected NO to win")
	}
}
