// Package fees implements the fee waterfall applied to gross trade
// collateral on the buy path. Sells are fee-free: exits keep their full
// LMSR refund.
package fees

import "errors"

var (
	ErrInvalidBps    = errors.New("fees: bps schedule exceeds 10000")
	ErrInvalidAmount = errors.New("fees: amount must be positive")
)

// BpsDenominator is the basis-point unit: 10000 bps = 100%.
const BpsDenominator = 10_000

// Schedule is the fee split in basis points. The three rates may sum to at
// most 10000.
type Schedule struct {
	TreasuryBps int64 `json:"treasury_bps"`
	VaultBps    int64 `json:"vault_bps"`
	LpBps       int64 `json:"lp_bps"`
}

// Validate checks the schedule invariant.
func (s Schedule) Validate() error {
	if s.TreasuryBps < 0 || s.VaultBps < 0 || s.LpBps < 0 {
		return ErrInvalidBps
	}
	if s.TreasuryBps+s.VaultBps+s.LpBps > BpsDenominator {
		return ErrInvalidBps
	}
	return nil
}

// TotalBps returns the combined fee rate.
func (s Schedule) TotalBps() int64 {
	return s.TreasuryBps + s.VaultBps + s.LpBps
}

// Breakdown is the result of splitting a gross amount. All fields are
// 6-decimal collateral units and always satisfy
// Treasury + Vault + Lp + Net == the gross input.
type Breakdown struct {
	Treasury int64 `json:"treasury"`
	Vault    int64 `json:"vault"`
	Lp       int64 `json:"lp"`
	Net      int64 `json:"net"`
}

// Split divides gross collateral into the three fee buckets and the net
// principal. Each bucket floors; the net absorbs every rounding remainder,
// so no collateral is created or destroyed.
func Split(gross int64, s Schedule) (Breakdown, error) {
	if err := s.Validate(); err != nil {
		return Breakdown{}, err
	}
	if gross <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}

	b := Breakdown{
		Treasury: gross * s.TreasuryBps / BpsDenominator,
		Vault:    gross * s.VaultBps / BpsDenominator,
		Lp:       gross * s.LpBps / BpsDenominator,
	}
	b.Net = gross - b.Treasury - b.Vault - b.Lp
	return b, nil
}
