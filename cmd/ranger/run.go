package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SCBuergel/uniminiranger/internal/chain"
	"github.com/SCBuergel/uniminiranger/internal/config"
	"github.com/SCBuergel/uniminiranger/internal/controller"
	"github.com/SCBuergel/uniminiranger/internal/dex"
	"github.com/SCBuergel/uniminiranger/internal/scheduler"
	"github.com/SCBuergel/uniminiranger/internal/state"
	"github.com/SCBuergel/uniminiranger/internal/storage"
	"github.com/SCBuergel/uniminiranger/internal/storage/postgres"
	"github.com/SCBuergel/uniminiranger/internal/strategy"
)

func runRanger(cmd *cobra.Command, args []string) error {
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

	key, err := chain.ParsePrivateKey(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	submitter, err := chain.NewSubmitter(chainClient.Backend(), key, new(big.Int).SetUint64(cfg.ChainID), cfg.ConfirmTimeout, logger)
	if err != nil {
		return err
	}
	manager, err := dex.NewPositionManager(cfg.PositionManager)
	if err != nil {
		return err
	}
	router, err := dex.NewRouter(cfg.Router)
	if err != nil {
		return err
	}

	var pgStore *postgres.Store
	if cfg.PGDSN != "" {
		pgStore, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	ctrl, err := controller.New(controller.Config{
		Params: strategy.Params{
			MaxRatioDeviation: cfg.MaxRatioDeviation,
			MaxSlippage:       cfg.MaxSlippage,
		},
		HalfWidth:        cfg.HalfWidth,
		OpenDeadline:     cfg.OpenDeadline,
		WithdrawDeadline: cfg.WithdrawDeadline,
	}, controller.Deps{
		Chain:     dex.NewReader(chainClient, cfg.Pool, cfg.PositionManager),
		Ledger:    dex.NewLedger(chainClient, submitter.From()),
		Submitter: submitter,
		Manager:   manager,
		Router:    router,
		Pool:      cfg.Pool,
		Store:     positionStore(cfg, pgStore),
		Journal:   actionJournal(cfg, pgStore),
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("ranger start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("wallet", submitter.From().Hex()),
		zap.String("pool", cfg.Pool.Hex()),
		zap.String("position_manager", cfg.PositionManager.Hex()),
		zap.String("router", cfg.Router.Hex()),
		zap.String("max_ratio_deviation", cfg.MaxRatioDeviation.String()),
		zap.String("max_slippage", cfg.MaxSlippage.String()),
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.String("position_store", cfg.PositionStore),
	)

	if err := ctrl.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	tick := func(ctx context.Context) error {
		err := ctrl.Tick(ctx)
		if errors.Is(err, controller.ErrTickInFlight) {
			logger.Debug("tick skipped, previous tick still running")
			return nil
		}
		return err
	}
	sched, err := scheduler.New(ctx, cfg.TickInterval, tick, logger)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	sched.Stop()
	return nil
}

// connect dials the node and checks it serves the configured chain.
func connect(ctx context.Context, cfg config.Config) (*chain.Client, error) {
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		chainClient.Close()
		return nil, err
	}
	if !chainID.IsUint64() || chainID.Uint64() != cfg.ChainID {
		chainClient.Close()
		return nil, fmt.Errorf("rpc serves chain %s, configured chain-id is %d", chainID, cfg.ChainID)
	}
	return chainClient, nil
}

func positionStore(cfg config.Config, pgStore *postgres.Store) state.Store {
	switch cfg.PositionStore {
	case config.StoreFile:
		return &state.FileStore{Path: cfg.PositionFile}
	case config.StorePostgres:
		return &state.DBStore{Store: pgStore, Name: cfg.Pool.Hex()}
	default:
		return state.NewMemoryStore()
	}
}

func actionJournal(cfg config.Config, pgStore *postgres.Store) storage.Journal {
	switch {
	case cfg.Journal != "":
		return storage.NewJsonlStorage(cfg.Journal)
	case pgStore != nil:
		return pgStore
	default:
		return storage.Nop{}
	}
}
