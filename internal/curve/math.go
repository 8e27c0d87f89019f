// Package curve implements the linear bonding-curve pricing engine:
// price(s) = basePrice + slope*s, integrated exactly in 256-bit integer
// arithmetic so every party computes identical costs.
package curve

import (
	"errors"

	"github.com/holiman/uint256"

	"agent-performance-lab/internal/domain"
)

// Slope bounds and the fixed base slope, in wei per token per token.
// Policies may scale the base slope up to 2x and down to 0.25x, so the
// hard bounds span exactly that range.
var (
	BaseSlope = uint256.NewInt(1e13) // 0.00001 in curve units
	MinSlope  = uint256.NewInt(25e11)
	MaxSlope  = uint256.NewInt(2e13)
)

// ErrAmountOverflow is returned when an amount is large enough to
// overflow the 256-bit integral computation.
var ErrAmountOverflow = errors.New("curve: amount overflows integral math")

var two = uint256.NewInt(2)

// integralNumerator computes the shared numerator
//
//	2*U*basePrice*delta + slope*(2*s0*delta ± delta^2)
//
// over the common denominator 2*U^2. plus selects the buy (+) or
// sell (-) direction. For sell, s0 is the supply BEFORE the sell and
// delta <= s0 must hold.
func integralNumerator(basePrice, slope, s0, delta *uint256.Int, plus bool) (*uint256.Int, error) {
	// term1 = 2*U*basePrice*delta
	term1 := new(uint256.Int)
	if _, overflow := term1.MulOverflow(basePrice, delta); overflow {
		return nil, ErrAmountOverflow
	}
	if _, overflow := term1.MulOverflow(term1, domain.TokenUnit); overflow {
		return nil, ErrAmountOverflow
	}
	if _, overflow := term1.MulOverflow(term1, two); overflow {
		return nil, ErrAmountOverflow
	}

	// cross = 2*s0*delta, square = delta^2
	cross := new(uint256.Int)
	if _, overflow := cross.MulOverflow(s0, delta); overflow {
		return nil, ErrAmountOverflow
	}
	if _, overflow := cross.MulOverflow(cross, two); overflow {
		return nil, ErrAmountOverflow
	}
	square := new(uint256.Int)
	if _, overflow := square.MulOverflow(delta, delta); overflow {
		return nil, ErrAmountOverflow
	}

	inner := new(uint256.Int)
	if plus {
		if _, overflow := inner.AddOverflow(cross, square); overflow {
			return nil, ErrAmountOverflow
		}
	} else {
		// 2*s0*delta >= delta^2 holds whenever delta <= s0
		inner.Sub(cross, square)
	}

	term2 := new(uint256.Int)
	if _, overflow := term2.MulOverflow(slope, inner); overflow {
		return nil, ErrAmountOverflow
	}

	numerator := new(uint256.Int)
	if _, overflow := numerator.AddOverflow(term1, term2); overflow {
		return nil, ErrAmountOverflow
	}
	return numerator, nil
}

// denominator2U2 is 2*U^2, the common denominator of the integral.
func denominator2U2() *uint256.Int {
	d := new(uint256.Int).Mul(domain.TokenUnit, domain.TokenUnit)
	return d.Mul(d, two)
}

// BuyCost computes the wei cost of minting delta base units from supply
// s0. Rounds UP so rounding always favors the reserve.
func BuyCost(basePrice, slope, s0, delta *uint256.Int) (*uint256.Int, error) {
	numerator, err := integralNumerator(basePrice, slope, s0, delta, true)
	if err != nil {
		return nil, err
	}
	den := denominator2U2()
	cost := new(uint256.Int)
	rem := new(uint256.Int)
	cost.DivMod(numerator, den, rem)
	if !rem.IsZero() {
		cost.AddUint64(cost, 1)
	}
	return cost, nil
}

// SellRefund computes the wei refund for burning delta base units from
// supply s0 (delta <= s0). Rounds DOWN so rounding favors the reserve.
func SellRefund(basePrice, slope, s0, delta *uint256.Int) (*uint256.Int, error) {
	if delta.Gt(s0) {
		return nil, ErrAmountOverflow
	}
	numerator, err := integralNumerator(basePrice, slope, s0, delta, false)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(numerator, denominator2U2()), nil
}

// SpotPrice computes the marginal price basePrice + slope*s/U at supply s.
func SpotPrice(basePrice, slope, s *uint256.Int) *uint256.Int {
	p := new(uint256.Int).Mul(slope, s)
	p.Div(p, domain.TokenUnit)
	return p.Add(p, basePrice)
}

// ExpectedReserve computes the exact-integral reserve at supply s, the
// quantity the reserve invariant holds against within rounding dust.
func ExpectedReserve(basePrice, slope, s *uint256.Int) (*uint256.Int, error) {
	zero := new(uint256.Int)
	numerator, err := integralNumerator(basePrice, slope, zero, s, true)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(numerator, denominator2U2()), nil
}

// ClampSlope bounds a candidate slope to [MinSlope, MaxSlope].
func ClampSlope(s *uint256.Int) *uint256.Int {
	if s.Lt(MinSlope) {
		return MinSlope.Clone()
	}
	if s.Gt(MaxSlope) {
		return MaxSlope.Clone()
	}
	return s.Clone()
}

// SlopeInRange reports whether s already satisfies the hard bounds.
func SlopeInRange(s *uint256.Int) bool {
	return !s.Lt(MinSlope) && !s.Gt(MaxSlope)
}
