package model

import "github.com/holiman/uint256"

// Holdings are the wallet balances of the two pool tokens in smallest units.
type Holdings struct {
	Balance0 *uint256.Int
	Balance1 *uint256.Int
}
