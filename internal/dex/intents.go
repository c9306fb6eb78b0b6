package dex

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/SCBuergel/uniminiranger/internal/chain"
)

// MaxUint128 asks collect for everything owed to the position.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// MintParams mirrors INonfungiblePositionManager.MintParams.
type MintParams struct {
	Token0         common.Address `abi:"token0"`
	Token1         common.Address `abi:"token1"`
	Fee            *big.Int       `abi:"fee"`
	TickLower      *big.Int       `abi:"tickLower"`
	TickUpper      *big.Int       `abi:"tickUpper"`
	Amount0Desired *big.Int       `abi:"amount0Desired"`
	Amount1Desired *big.Int       `abi:"amount1Desired"`
	Amount0Min     *big.Int       `abi:"amount0Min"`
	Amount1Min     *big.Int       `abi:"amount1Min"`
	Recipient      common.Address `abi:"recipient"`
	Deadline       *big.Int       `abi:"deadline"`
}

// DecreaseLiquidityParams mirrors INonfungiblePositionManager.DecreaseLiquidityParams.
type DecreaseLiquidityParams struct {
	TokenID    *big.Int `abi:"tokenId"`
	Liquidity  *big.Int `abi:"liquidity"`
	Amount0Min *big.Int `abi:"amount0Min"`
	Amount1Min *big.Int `abi:"amount1Min"`
	Deadline   *big.Int `abi:"deadline"`
}

// CollectParams mirrors INonfungiblePositionManager.CollectParams.
type CollectParams struct {
	TokenID    *big.Int       `abi:"tokenId"`
	Recipient  common.Address `abi:"recipient"`
	Amount0Max *big.Int       `abi:"amount0Max"`
	Amount1Max *big.Int       `abi:"amount1Max"`
}

// ExactInputSingleParams mirrors IV3SwapRouter.ExactInputSingleParams.
type ExactInputSingleParams struct {
	TokenIn           common.Address `abi:"tokenIn"`
	TokenOut          common.Address `abi:"tokenOut"`
	Fee               *big.Int       `abi:"fee"`
	Recipient         common.Address `abi:"recipient"`
	AmountIn          *big.Int       `abi:"amountIn"`
	AmountOutMinimum  *big.Int       `abi:"amountOutMinimum"`
	SqrtPriceLimitX96 *big.Int       `abi:"sqrtPriceLimitX96"`
}

// Deadline returns the unix timestamp delay after now.
func Deadline(now time.Time, delay time.Duration) *big.Int {
	return big.NewInt(now.Add(delay).Unix())
}

// PositionManager encodes calls to a nonfungible position manager.
type PositionManager struct {
	address common.Address
	abi     abi.ABI
}

// NewPositionManager builds an encoder for the manager at address.
func NewPositionManager(address common.Address) (*PositionManager, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	return &PositionManager{address: address, abi: parsed}, nil
}

// Address returns the manager contract address.
func (m *PositionManager) Address() common.Address {
	return m.address
}

// Mint encodes mint(params).
func (m *PositionManager) Mint(params MintParams) ([]byte, error) {
	return pack(m.abi, "mint", params)
}

// DecreaseLiquidity encodes decreaseLiquidity(params).
func (m *PositionManager) DecreaseLiquidity(params DecreaseLiquidityParams) ([]byte, error) {
	return pack(m.abi, "decreaseLiquidity", params)
}

// Collect encodes collect(params).
func (m *PositionManager) Collect(params CollectParams) ([]byte, error) {
	return pack(m.abi, "collect", params)
}

// Multicall batches encoded manager calls into one atomic call.
func (m *PositionManager) Multicall(calls ...[]byte) ([]byte, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("%w: multicall needs at least one call", chain.ErrTxBuild)
	}
	return pack(m.abi, "multicall", calls)
}

// Router encodes calls to a V3 swap router.
type Router struct {
	address common.Address
	abi     abi.ABI
}

// NewRouter builds an encoder for the router at address.
func NewRouter(address common.Address) (*Router, error) {
	parsed, err := SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse swap router abi: %w", err)
	}
	return &Router{address: address, abi: parsed}, nil
}

// Address returns the router contract address.
func (r *Router) Address() common.Address {
	return r.address
}

// ExactInputSingle encodes exactInputSingle(params).
func (r *Router) ExactInputSingle(params ExactInputSingleParams) ([]byte, error) {
	return pack(r.abi, "exactInputSingle", params)
}

func pack(parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", chain.ErrTxBuild, method, err)
	}
	return data, nil
}
