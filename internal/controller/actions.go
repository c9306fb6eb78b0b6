package controller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/SCBuergel/uniminiranger/internal/chain"
	"github.com/SCBuergel/uniminiranger/internal/dex"
	"github.com/SCBuergel/uniminiranger/internal/model"
	"github.com/SCBuergel/uniminiranger/internal/strategy"
)

// withdrawAndCollect removes all liquidity from pos and collects everything
// owed in one multicall. The position is cleared only after confirmation.
func (c *Controller) withdrawAndCollect(ctx context.Context, run tickRun, pos model.Position) error {
	liquidity, err := c.chain.PositionLiquidity(ctx, pos.ID)
	if err != nil {
		return fmt.Errorf("read position %s liquidity: %w", pos.ID, err)
	}

	calls := make([][]byte, 0, 2)
	// decreaseLiquidity reverts on zero liquidity, so a drained position is only collected.
	if liquidity.Sign() > 0 {
		decrease, err := c.manager.DecreaseLiquidity(dex.DecreaseLiquidityParams{
			TokenID:    pos.ID,
			Liquidity:  liquidity,
			Amount0Min: big.NewInt(0),
			Amount1Min: big.NewInt(0),
			Deadline:   dex.Deadline(c.now(), c.cfg.WithdrawDeadline),
		})
		if err != nil {
			return err
		}
		calls = append(calls, decrease)
	}
	collect, err := c.manager.Collect(dex.CollectParams{
		TokenID:    pos.ID,
		Recipient:  c.submitter.From(),
		Amount0Max: dex.MaxUint128,
		Amount1Max: dex.MaxUint128,
	})
	if err != nil {
		return err
	}
	calls = append(calls, collect)

	data, err := c.manager.Multicall(calls...)
	if err != nil {
		return err
	}

	receipt, err := c.submitter.Submit(ctx, c.manager.Address(), data)
	if err != nil {
		return fmt.Errorf("withdraw position %s: %w", pos.ID, err)
	}

	rec := model.ActionRecord{
		TickID:      run.id,
		Kind:        model.ActionWithdraw,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: blockNumber(receipt),
		PositionID:  pos.ID.String(),
		TickLower:   pos.TickLower,
		TickUpper:   pos.TickUpper,
	}
	decreased, collected, err := dex.DecodeTeardown(receipt, c.manager.Address(), pos.ID)
	if err != nil {
		run.logger.Warn("decode teardown events failed", zap.Error(err))
	} else {
		rec.Amount0 = collected.Amount0
		rec.Amount1 = collected.Amount1
		token0, token1 := c.tokens()
		run.logger.Info("position closed",
			zap.String("position_id", pos.ID.String()),
			zap.String("tx_hash", rec.TxHash),
			zap.String("liquidity", decreased.Liquidity),
			zap.String("collected0", formatAmount(token0, collected.Amount0)),
			zap.String("collected1", formatAmount(token1, collected.Amount1)),
		)
	}

	c.setPosition(ctx, run, model.Position{})
	c.record(ctx, run, rec)
	return nil
}

// rebalance swaps toward a 1:1 value split when holdings are outside the ratio band.
func (c *Controller) rebalance(ctx context.Context, run tickRun) error {
	imm := c.PoolImmutables()
	holdings, err := c.ledger.Holdings(ctx, imm.Token0, imm.Token1)
	if err != nil {
		return fmt.Errorf("read holdings: %w", err)
	}
	poolState := c.currentPoolState()

	action, err := strategy.Decide(holdings, poolState.SqrtPriceX96, c.cfg.Params)
	if err != nil {
		return fmt.Errorf("%w: rebalance: %w", chain.ErrTxBuild, err)
	}
	token0, token1 := c.tokens()
	if action == nil {
		run.logger.Info("holdings balanced",
			zap.String("balance0", token0.Format(toBig(holdings.Balance0))+" "+token0.Label()),
			zap.String("balance1", token1.Format(toBig(holdings.Balance1))+" "+token1.Label()),
		)
		return nil
	}
	return c.swap(ctx, run, action)
}

func (c *Controller) swap(ctx context.Context, run tickRun, action *strategy.SwapAction) error {
	imm := c.PoolImmutables()
	tokenIn, tokenOut := imm.Token0, imm.Token1
	metaIn, metaOut := c.tokens()
	if !action.Direction.ZeroForOne() {
		tokenIn, tokenOut = tokenOut, tokenIn
		metaIn, metaOut = metaOut, metaIn
	}

	run.logger.Info("ratio out of band, swapping",
		zap.Stringer("direction", action.Direction),
		zap.String("ratio", action.RatioString(6)),
		zap.String("amount_in", metaIn.Format(action.AmountIn)+" "+metaIn.Label()),
		zap.String("min_out", metaOut.Format(action.AmountOutMinimum)+" "+metaOut.Label()),
	)

	data, err := c.router.ExactInputSingle(dex.ExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(uint64(imm.Fee)),
		Recipient:         c.submitter.From(),
		AmountIn:          action.AmountIn,
		AmountOutMinimum:  action.AmountOutMinimum,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return err
	}

	receipt, err := c.submitter.Submit(ctx, c.router.Address(), data)
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}

	rec := model.ActionRecord{
		TickID:      run.id,
		Kind:        model.ActionSwap,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: blockNumber(receipt),
	}
	swapped, found, err := dex.DecodeSwap(receipt, c.pool)
	switch {
	case err != nil:
		run.logger.Warn("decode swap event failed", zap.Error(err))
	case !found:
		run.logger.Warn("swap event missing from receipt", zap.String("tx_hash", rec.TxHash))
	default:
		rec.Amount0 = swapped.Amount0
		rec.Amount1 = swapped.Amount1
		run.logger.Info("swap confirmed",
			zap.String("tx_hash", rec.TxHash),
			zap.String("amount0", swapped.Amount0),
			zap.String("amount1", swapped.Amount1),
			zap.Int32("tick", swapped.Tick),
		)
	}
	c.record(ctx, run, rec)
	return nil
}

// openPosition mints a new position over a fresh range with the full wallet balances.
func (c *Controller) openPosition(ctx context.Context, run tickRun) error {
	poolState, err := c.refreshPoolState(ctx)
	if err != nil {
		return err
	}
	imm := c.PoolImmutables()

	lower, upper, err := strategy.SelectRange(poolState.Tick, imm.TickSpacing, c.cfg.HalfWidth)
	if err != nil {
		return fmt.Errorf("%w: select range: %w", chain.ErrTxBuild, err)
	}

	holdings, err := c.ledger.Holdings(ctx, imm.Token0, imm.Token1)
	if err != nil {
		return fmt.Errorf("read holdings: %w", err)
	}
	amount0 := toBig(holdings.Balance0)
	amount1 := toBig(holdings.Balance1)
	token0, token1 := c.tokens()
	if amount0.Sign() == 0 && amount1.Sign() == 0 {
		run.logger.Warn("no holdings to deploy")
		return nil
	}

	run.logger.Info("opening position",
		zap.Int32("tick", poolState.Tick),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
		zap.String("amount0", token0.Format(amount0)+" "+token0.Label()),
		zap.String("amount1", token1.Format(amount1)+" "+token1.Label()),
	)

	data, err := c.manager.Mint(dex.MintParams{
		Token0:         imm.Token0,
		Token1:         imm.Token1,
		Fee:            new(big.Int).SetUint64(uint64(imm.Fee)),
		TickLower:      big.NewInt(int64(lower)),
		TickUpper:      big.NewInt(int64(upper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     big.NewInt(0),
		Amount1Min:     big.NewInt(0),
		Recipient:      c.submitter.From(),
		Deadline:       dex.Deadline(c.now(), c.cfg.OpenDeadline),
	})
	if err != nil {
		return err
	}

	receipt, err := c.submitter.Submit(ctx, c.manager.Address(), data)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}

	tokenID, minted, err := dex.DecodeMint(receipt, c.manager.Address())
	if err != nil {
		return fmt.Errorf("mint confirmed in %s: %w", receipt.TxHash.Hex(), err)
	}

	pos := model.Position{ID: tokenID, TickLower: lower, TickUpper: upper}
	if minted.Liquidity != "" {
		if liquidity, ok := new(big.Int).SetString(minted.Liquidity, 10); ok {
			pos.Liquidity = liquidity
		}
	}
	c.setPosition(ctx, run, pos)

	run.logger.Info("position opened",
		zap.String("position_id", tokenID.String()),
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
		zap.String("liquidity", minted.Liquidity),
	)
	c.record(ctx, run, model.ActionRecord{
		TickID:      run.id,
		Kind:        model.ActionMint,
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: blockNumber(receipt),
		PositionID:  tokenID.String(),
		TickLower:   lower,
		TickUpper:   upper,
		Amount0:     minted.Amount0,
		Amount1:     minted.Amount1,
	})
	return nil
}

func (c *Controller) currentPoolState() model.PoolState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.poolState
}

func (c *Controller) tokens() (model.TokenMeta, model.TokenMeta) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token0, c.token1
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt == nil || receipt.BlockNumber == nil {
		return 0
	}
	return receipt.BlockNumber.Uint64()
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func formatAmount(meta model.TokenMeta, raw string) string {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return meta.Format(value) + " " + meta.Label()
}
