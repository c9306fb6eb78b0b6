package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolImmutables captures pool parameters that never change after deployment.
type PoolImmutables struct {
	Factory             common.Address `json:"factory"`
	Token0              common.Address `json:"token0"`
	Token1              common.Address `json:"token1"`
	Fee                 uint32         `json:"fee"`
	TickSpacing         int32          `json:"tick_spacing"`
	MaxLiquidityPerTick *big.Int       `json:"max_liquidity_per_tick"`
}

// PoolState is a slot0 + liquidity snapshot of the pool.
type PoolState struct {
	Liquidity                  *big.Int `json:"liquidity"`
	SqrtPriceX96               *big.Int `json:"sqrt_price_x96"`
	Tick                       int32    `json:"tick"`
	ObservationIndex           uint16   `json:"observation_index"`
	ObservationCardinality     uint16   `json:"observation_cardinality"`
	ObservationCardinalityNext uint16   `json:"observation_cardinality_next"`
	FeeProtocol                uint8    `json:"fee_protocol"`
	Unlocked                   bool     `json:"unlocked"`
}
