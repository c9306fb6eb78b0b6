package strategy

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

// Direction is the side of a rebalance swap.
type Direction int

const (
	// SellToken0 swaps token0 in for token1 out.
	SellToken0 Direction = iota
	// BuyToken0 swaps token1 in for token0 out.
	BuyToken0
)

func (d Direction) String() string {
	switch d {
	case SellToken0:
		return "sell_token0"
	case BuyToken0:
		return "buy_token0"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ZeroForOne reports whether token0 is the input token.
func (d Direction) ZeroForOne() bool {
	return d == SellToken0
}

var (
	ErrZeroPrice     = errors.New("pool price is zero")
	ErrInvalidParams = errors.New("invalid rebalance params")
)

// divPrecision is the number of decimal places kept by intermediate divisions.
// Prices of 18/6 decimal pairs sit around 1e-9, so this leaves ample headroom.
const divPrecision = 48

var q192 = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)

// Params bounds the rebalance decision.
type Params struct {
	// MaxRatioDeviation is the lower bound of value0/balance1; its reciprocal is the upper bound.
	MaxRatioDeviation decimal.Decimal
	// MaxSlippage is the fraction of the expected output that may be lost.
	MaxSlippage decimal.Decimal
}

// DefaultParams returns 0.3 ratio deviation and 1% slippage.
func DefaultParams() Params {
	return Params{
		MaxRatioDeviation: decimal.RequireFromString("0.3"),
		MaxSlippage:       decimal.RequireFromString("0.01"),
	}
}

// Validate checks 0 < MaxRatioDeviation < 1 and 0 <= MaxSlippage < 1.
func (p Params) Validate() error {
	one := decimal.NewFromInt(1)
	if !p.MaxRatioDeviation.IsPositive() || p.MaxRatioDeviation.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: max ratio deviation %s not in (0,1)", ErrInvalidParams, p.MaxRatioDeviation)
	}
	if p.MaxSlippage.IsNegative() || p.MaxSlippage.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: max slippage %s not in [0,1)", ErrInvalidParams, p.MaxSlippage)
	}
	return nil
}

// SwapAction is a single exact-input swap that moves holdings toward a 1:1 value split.
type SwapAction struct {
	Direction        Direction
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	// ExpectedOut is the output before slippage, truncated to smallest units.
	ExpectedOut *big.Int
	// Ratio is value0/balance1; zero and RatioUnbounded when balance1 is zero.
	Ratio          decimal.Decimal
	RatioUnbounded bool
}

// RatioString formats Ratio with places decimals, or "inf" when balance1 is zero.
func (a SwapAction) RatioString(places int32) string {
	if a.RatioUnbounded {
		return "inf"
	}
	return a.Ratio.StringFixed(places)
}

// PriceFromSqrtX96 converts a Q64.96 sqrt price into token1 per token0.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, ErrZeroPrice
	}
	sqrt := decimal.NewFromBigInt(sqrtPriceX96, 0)
	return sqrt.Mul(sqrt).DivRound(q192, divPrecision), nil
}

// Decide returns the swap needed before deploying holdings, or nil when the
// value ratio already sits inside [MaxRatioDeviation, 1/MaxRatioDeviation].
func Decide(holdings model.Holdings, sqrtPriceX96 *big.Int, params Params) (*SwapAction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, ErrZeroPrice
	}

	balance0 := toDecimal(holdings.Balance0)
	balance1 := toDecimal(holdings.Balance1)
	if balance0.IsZero() && balance1.IsZero() {
		return nil, nil
	}

	sqrt := decimal.NewFromBigInt(sqrtPriceX96, 0)
	sqrtSquared := sqrt.Mul(sqrt)

	// value0 is kept exact as balance0*sqrt^2/2^192 for the band checks.
	value0Scaled := balance0.Mul(sqrtSquared)
	balance1Scaled := balance1.Mul(q192)

	var ratio decimal.Decimal
	if !balance1.IsZero() {
		ratio = value0Scaled.DivRound(balance1Scaled, divPrecision)
		lowerBound := params.MaxRatioDeviation.Mul(balance1Scaled)
		// ratio > 1/d  <=>  value0*d > balance1
		upperExceeded := value0Scaled.Mul(params.MaxRatioDeviation).GreaterThan(balance1Scaled)
		if value0Scaled.GreaterThanOrEqual(lowerBound) && !upperExceeded {
			return nil, nil
		}
	}

	value0 := value0Scaled.DivRound(q192, divPrecision)
	sellValue0 := value0.Sub(balance1).Div(decimal.NewFromInt(2))
	keep := decimal.NewFromInt(1).Sub(params.MaxSlippage)

	action := &SwapAction{Ratio: ratio, RatioUnbounded: balance1.IsZero()}
	var amountIn, expectedOut decimal.Decimal
	if sellValue0.IsNegative() {
		action.Direction = BuyToken0
		amountIn = sellValue0.Abs()
		expectedOut = amountIn.Mul(q192).DivRound(sqrtSquared, divPrecision)
	} else {
		action.Direction = SellToken0
		amountIn = sellValue0.Mul(q192).DivRound(sqrtSquared, divPrecision)
		expectedOut = sellValue0
	}

	action.AmountIn = amountIn.Truncate(0).BigInt()
	if action.AmountIn.Sign() == 0 {
		return nil, nil
	}
	action.ExpectedOut = expectedOut.Truncate(0).BigInt()
	action.AmountOutMinimum = expectedOut.Mul(keep).Truncate(0).BigInt()
	return action, nil
}

func toDecimal(v *uint256.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), 0)
}
