package domain

import "github.com/holiman/uint256"

// TokenUnit is the number of base units per whole token (1e18).
var TokenUnit = uint256.NewInt(1e18)

// CurveState is the observable state of one agent's bonding curve.
// Invariant: ReserveBalance == basePrice*S + slope*S^2/2 with
// S = TotalSupply/TokenUnit, within integer-rounding tolerance.
type CurveState struct {
	AgentID        string
	TotalSupply    *uint256.Int // token base units
	ReserveBalance *uint256.Int // wei
	BasePrice      *uint256.Int // wei per whole token at zero supply
	Slope          *uint256.Int // wei per whole token per whole token of supply
	CurrentPrice   *uint256.Int // derived: BasePrice + Slope*S/U
}

// Clone returns a deep copy. Curve ledgers hand out clones so callers
// can never mutate committed state through shared pointers.
func (c *CurveState) Clone() *CurveState {
	if c == nil {
		return nil
	}
	return &CurveState{
		AgentID:        c.AgentID,
		TotalSupply:    c.TotalSupply.Clone(),
		ReserveBalance: c.ReserveBalance.Clone(),
		BasePrice:      c.BasePrice.Clone(),
		Slope:          c.Slope.Clone(),
		CurrentPrice:   c.CurrentPrice.Clone(),
	}
}
