package fixmath

import (
	"errors"
	"math"
	"math/big"
	"testing"

	sdkmath "cosmossdk.io/math"
)

func wad(x float64) sdkmath.Int {
	bf := new(big.Float).Mul(big.NewFloat(x), big.NewFloat(1e18))
	bi, _ := bf.Int(nil)
	return sdkmath.NewIntFromBigInt(bi)
}

func toFloat(x sdkmath.Int) float64 {
	f, _ := new(big.Float).SetInt(x.BigInt()).Float64()
	return f / 1e18
}

func TestMul(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"identity", 1.5, 1, 1.5},
		{"halves", 0.5, 0.5, 0.25},
		{"large", 1000, 2000, 2000000},
		{"zero", 0, 123.456, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toFloat(Mul(wad(tt.x), wad(tt.y)))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mul(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestDiv(t *testing.T) {
	tests := []struct {
		name    string
		x, y    float64
		want    float64
		wantErr bool
	}{
		{"identity", 1.5, 1, 1.5, false},
		{"halving", 1, 2, 0.5, false},
		{"sub-unit", 1, 3, 0.333333333333333333, false},
		{"zero divisor", 1, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Div(wad(tt.x), wad(tt.y))
			if tt.wantErr {
				if !errors.Is(err, ErrDivisionByZero) {
					t.Errorf("expected ErrDivisionByZero, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(toFloat(got)-tt.want) > 1e-9 {
				t.Errorf("Div(%v, %v) = %v, want %v", tt.x, tt.y, toFloat(got), tt.want)
			}
		})
	}
}

func TestExp2(t *testing.T) {
	tests := []struct {
		name      string
		x         float64
		tolerance float64
	}{
		{"zero", 0, 1e-12},
		{"one", 1, 1e-9},
		{"fraction", 0.5, 1e-9},
		{"small fraction", 0.0001, 1e-9},
		{"mixed", 3.75, 1e-7},
		{"ten", 10, 1e-5},
		{"negative one", -1, 1e-9},
		{"negative fraction", -0.25, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toFloat(Exp2(wad(tt.x)))
			want := math.Exp2(tt.x)
			if math.Abs(got-want)/want > tt.tolerance {
				t.Errorf("Exp2(%v) = %v, want %v", tt.x, got, want)
			}
		})
	}
}

func TestExp2Saturation(t *testing.T) {
	// Inputs beyond the clamp boundary saturate instead of overflowing.
	clamped := Exp2(Scale.MulRaw(500))
	boundary := Exp2(Scale.MulRaw(192))
	if !clamped.Equal(boundary) {
		t.Errorf("Exp2 beyond 192 should clamp: got %s, want %s", clamped, boundary)
	}
}

func TestExp2NegativeReciprocal(t *testing.T) {
	x := wad(2.5)
	pos := Exp2(x)
	neg := Exp2(x.Neg())
	product := toFloat(Mul(pos, neg))
	if math.Abs(product-1.0) > 1e-8 {
		t.Errorf("Exp2(x)*Exp2(-x) = %v, want 1", product)
	}
}

func TestLog2(t *testing.T) {
	tests := []struct {
		name      string
		x         float64
		tolerance float64
	}{
		{"one", 1, 1e-12},
		{"two", 2, 1e-9},
		{"power of two", 1024, 1e-9},
		{"fraction above one", 1.5, 1e-5},
		{"large", 1e12, 1e-5},
		{"sub-unit", 0.25, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Log2(wad(tt.x))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := math.Log2(tt.x)
			if math.Abs(toFloat(got)-want) > tt.tolerance {
				t.Errorf("Log2(%v) = %v, want %v", tt.x, toFloat(got), want)
			}
		})
	}
}

func TestLog2Domain(t *testing.T) {
	tests := []struct {
		name string
		x    sdkmath.Int
	}{
		{"zero", sdkmath.ZeroInt()},
		{"negative", wad(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Log2(tt.x); !errors.Is(err, ErrDomain) {
				t.Errorf("expected ErrDomain, got %v", err)
			}
		})
	}
}

func TestLn(t *testing.T) {
	tests := []struct {
		name      string
		x         float64
		tolerance float64
	}{
		{"one", 1, 1e-12},
		{"e-ish", 2.718281828459045, 1e-5},
		{"two", 2, 1e-9},
		{"large", 1e6, 1e-5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Ln(wad(tt.x))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := math.Log(tt.x)
			if math.Abs(toFloat(got)-want) > tt.tolerance {
				t.Errorf("Ln(%v) = %v, want %v", tt.x, toFloat(got), want)
			}
		})
	}
}

func TestCollateralConversion(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
	}{
		{"one unit", 1_000_000},
		{"fractional", 123_456},
		{"large", 10_000_000_000},
		{"zero", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToCollateral(FromCollateral(tt.amount)); got != tt.amount {
				t.Errorf("round trip = %d, want %d", got, tt.amount)
			}
		})
	}

	// Flooring: sub-collateral wad dust is dropped.
	dust := FromCollateral(1).Sub(sdkmath.OneInt())
	if got := ToCollateral(dust); got != 0 {
		t.Errorf("ToCollateral(dust) = %d, want 0", got)
	}
}
