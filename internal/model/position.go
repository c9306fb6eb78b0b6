package model

import "math/big"

// Position is the lifecycle record of the managed liquidity position.
// A nil ID means no position is open.
type Position struct {
	ID        *big.Int `json:"id,omitempty"`
	TickLower int32    `json:"tick_lower"`
	TickUpper int32    `json:"tick_upper"`
	Liquidity *big.Int `json:"liquidity,omitempty"`
}

// IsOpen reports whether the record refers to an open position.
func (p Position) IsOpen() bool {
	return p.ID != nil
}

// InRange reports whether tick lies inside the position's bounds (inclusive).
func (p Position) InRange(tick int32) bool {
	return tick >= p.TickLower && tick <= p.TickUpper
}

// Clone returns a deep copy.
func (p Position) Clone() Position {
	out := Position{TickLower: p.TickLower, TickUpper: p.TickUpper}
	if p.ID != nil {
		out.ID = new(big.Int).Set(p.ID)
	}
	if p.Liquidity != nil {
		out.Liquidity = new(big.Int).Set(p.Liquidity)
	}
	return out
}
