package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SCBuergel/uniminiranger/internal/config"
	"github.com/SCBuergel/uniminiranger/internal/dex"
	"github.com/SCBuergel/uniminiranger/internal/model"
	"github.com/SCBuergel/uniminiranger/internal/storage"
	"github.com/SCBuergel/uniminiranger/internal/storage/postgres"
	"github.com/SCBuergel/uniminiranger/internal/strategy"
)

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	reader := dex.NewReader(chainClient, cfg.Pool, cfg.PositionManager)
	imm, err := reader.PoolImmutables(ctx)
	if err != nil {
		return fmt.Errorf("pool immutables: %w", err)
	}
	poolState, err := reader.PoolState(ctx)
	if err != nil {
		return fmt.Errorf("pool state: %w", err)
	}
	token0, err := dex.FetchTokenMeta(ctx, chainClient, imm.Token0, logger)
	if err != nil {
		return fmt.Errorf("token0 metadata: %w", err)
	}
	token1, err := dex.FetchTokenMeta(ctx, chainClient, imm.Token1, logger)
	if err != nil {
		return fmt.Errorf("token1 metadata: %w", err)
	}
	block, err := chainClient.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}

	logger.Info("pool immutables",
		zap.Uint64("block", block),
		zap.String("factory", imm.Factory.Hex()),
		zap.String("token0", token0.Label()+" "+imm.Token0.Hex()),
		zap.String("token1", token1.Label()+" "+imm.Token1.Hex()),
		zap.Uint32("fee", imm.Fee),
		zap.Int32("tick_spacing", imm.TickSpacing),
		zap.String("max_liquidity_per_tick", imm.MaxLiquidityPerTick.String()),
	)

	price, err := strategy.PriceFromSqrtX96(poolState.SqrtPriceX96)
	if err != nil {
		return err
	}
	lower, upper, err := strategy.SelectRange(poolState.Tick, imm.TickSpacing, cfg.HalfWidth)
	if err != nil {
		return err
	}
	logger.Info("pool state",
		zap.String("liquidity", poolState.Liquidity.String()),
		zap.String("sqrt_price_x96", poolState.SqrtPriceX96.String()),
		zap.String("price", price.Shift(int32(token0.Decimals)-int32(token1.Decimals)).StringFixed(8)),
		zap.Int32("tick", poolState.Tick),
		zap.Uint16("observation_index", poolState.ObservationIndex),
		zap.Uint16("observation_cardinality", poolState.ObservationCardinality),
		zap.Uint16("observation_cardinality_next", poolState.ObservationCardinalityNext),
		zap.Uint8("fee_protocol", poolState.FeeProtocol),
		zap.Bool("unlocked", poolState.Unlocked),
		zap.Int32("next_lower", lower),
		zap.Int32("next_upper", upper),
	)

	if err := inspectStoredPosition(ctx, cfg, reader, poolState, logger); err != nil {
		return err
	}

	if cfg.Wallet != nil {
		ledger := dex.NewLedger(chainClient, *cfg.Wallet)
		holdings, err := ledger.Holdings(ctx, imm.Token0, imm.Token1)
		if err != nil {
			return fmt.Errorf("holdings: %w", err)
		}
		logger.Info("holdings",
			zap.String("wallet", cfg.Wallet.Hex()),
			zap.String("balance0", token0.Format(holdings.Balance0.ToBig())+" "+token0.Label()),
			zap.String("balance1", token1.Format(holdings.Balance1.ToBig())+" "+token1.Label()),
		)

		action, err := strategy.Decide(holdings, poolState.SqrtPriceX96, strategy.Params{
			MaxRatioDeviation: cfg.MaxRatioDeviation,
			MaxSlippage:       cfg.MaxSlippage,
		})
		if err != nil {
			return err
		}
		if action == nil {
			logger.Info("holdings balanced, no swap needed")
		} else {
			in, out := token0, token1
			if !action.Direction.ZeroForOne() {
				in, out = token1, token0
			}
			logger.Info("swap needed",
				zap.Stringer("direction", action.Direction),
				zap.String("ratio", action.RatioString(6)),
				zap.String("amount_in", in.Format(action.AmountIn)+" "+in.Label()),
				zap.String("expected_out", out.Format(action.ExpectedOut)+" "+out.Label()),
				zap.String("min_out", out.Format(action.AmountOutMinimum)+" "+out.Label()),
			)
		}
	}

	if cfg.Journal != "" {
		records, err := storage.NewJsonlStorage(cfg.Journal).ReadActions()
		if err != nil {
			return err
		}
		counts := make(map[string]int)
		for _, rec := range records {
			counts[rec.Kind]++
		}
		fields := []zap.Field{
			zap.Int("records", len(records)),
			zap.Int(model.ActionWithdraw, counts[model.ActionWithdraw]),
			zap.Int(model.ActionSwap, counts[model.ActionSwap]),
			zap.Int(model.ActionMint, counts[model.ActionMint]),
		}
		if len(records) > 0 {
			last := records[len(records)-1]
			fields = append(fields,
				zap.String("last_kind", last.Kind),
				zap.String("last_tx_hash", last.TxHash),
				zap.Time("last_recorded_at", last.RecordedAt),
			)
		}
		logger.Info("journal", fields...)
	}

	return nil
}

func inspectStoredPosition(ctx context.Context, cfg config.Config, reader *dex.Reader, poolState model.PoolState, logger *zap.Logger) error {
	if cfg.PositionStore == config.StoreMemory {
		return nil
	}
	var pgStore *postgres.Store
	if cfg.PositionStore == config.StorePostgres {
		var err error
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
	}

	pos, found, err := positionStore(cfg, pgStore).Load(ctx)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if !found || !pos.IsOpen() {
		logger.Info("no stored position", zap.String("position_store", cfg.PositionStore))
		return nil
	}
	liquidity, err := reader.PositionLiquidity(ctx, pos.ID)
	if err != nil {
		return fmt.Errorf("position liquidity: %w", err)
	}
	logger.Info("stored position",
		zap.String("position_id", pos.ID.String()),
		zap.Int32("lower", pos.TickLower),
		zap.Int32("upper", pos.TickUpper),
		zap.Bool("in_range", pos.InRange(poolState.Tick)),
		zap.String("liquidity", liquidity.String()),
	)
	return nil
}
