package controller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SCBuergel/uniminiranger/internal/dex"
	"github.com/SCBuergel/uniminiranger/internal/model"
	"github.com/SCBuergel/uniminiranger/internal/state"
	"github.com/SCBuergel/uniminiranger/internal/storage"
	"github.com/SCBuergel/uniminiranger/internal/strategy"
)

var (
	// ErrTickInFlight is returned when a tick arrives while another is still running.
	ErrTickInFlight   = errors.New("tick already in flight")
	ErrNotInitialized = errors.New("controller not initialized")
)

// ChainView reads pool and position state.
type ChainView interface {
	PoolImmutables(ctx context.Context) (model.PoolImmutables, error)
	PoolState(ctx context.Context) (model.PoolState, error)
	PositionLiquidity(ctx context.Context, tokenID *big.Int) (*big.Int, error)
}

// TokenLedger reads wallet balances and token metadata.
type TokenLedger interface {
	Holdings(ctx context.Context, token0, token1 common.Address) (model.Holdings, error)
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// TxSubmitter signs, sends and confirms transactions from one wallet.
type TxSubmitter interface {
	From() common.Address
	Submit(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error)
}

// Config holds the lifecycle settings.
type Config struct {
	Params           strategy.Params
	HalfWidth        int32
	OpenDeadline     time.Duration
	WithdrawDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.Params.MaxRatioDeviation.IsZero() && c.Params.MaxSlippage.IsZero() {
		c.Params = strategy.DefaultParams()
	}
	if c.HalfWidth <= 0 {
		c.HalfWidth = strategy.DefaultHalfWidth
	}
	if c.OpenDeadline <= 0 {
		c.OpenDeadline = 60 * time.Second
	}
	if c.WithdrawDeadline <= 0 {
		c.WithdrawDeadline = 30 * time.Minute
	}
	return c
}

// Deps bundles the collaborators of a Controller. Store and Journal are optional.
type Deps struct {
	Chain     ChainView
	Ledger    TokenLedger
	Submitter TxSubmitter
	Manager   *dex.PositionManager
	Router    *dex.Router
	Pool      common.Address
	Store     state.Store
	Journal   storage.Journal
}

// tickRun carries the correlation id of one tick through its actions.
type tickRun struct {
	id     string
	logger *zap.Logger
}

// Controller drives the lifecycle of a single liquidity position.
type Controller struct {
	cfg       Config
	chain     ChainView
	ledger    TokenLedger
	submitter TxSubmitter
	manager   *dex.PositionManager
	router    *dex.Router
	pool      common.Address
	store     state.Store
	journal   storage.Journal
	logger    *zap.Logger
	now       func() time.Time

	// guard admits one Init or Tick at a time.
	guard chan struct{}

	// fields below are written only while holding guard; mu covers readers outside it.
	mu          sync.RWMutex
	initialized bool
	immutables  model.PoolImmutables
	poolState   model.PoolState
	token0      model.TokenMeta
	token1      model.TokenMeta
	position    model.Position
}

// New builds a Controller with its dependencies.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Controller, error) {
	if deps.Chain == nil {
		return nil, fmt.Errorf("chain view is nil")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("token ledger is nil")
	}
	if deps.Submitter == nil {
		return nil, fmt.Errorf("tx submitter is nil")
	}
	if deps.Manager == nil || deps.Router == nil {
		return nil, fmt.Errorf("position manager and router are required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Store == nil {
		deps.Store = state.NewMemoryStore()
	}
	if deps.Journal == nil {
		deps.Journal = storage.Nop{}
	}
	return &Controller{
		cfg:       cfg,
		chain:     deps.Chain,
		ledger:    deps.Ledger,
		submitter: deps.Submitter,
		manager:   deps.Manager,
		router:    deps.Router,
		pool:      deps.Pool,
		store:     deps.Store,
		journal:   deps.Journal,
		logger:    logger,
		now:       time.Now,
		guard:     make(chan struct{}, 1),
	}, nil
}

// tryAcquire takes the run guard without blocking.
func (c *Controller) tryAcquire() (func(), bool) {
	select {
	case c.guard <- struct{}{}:
		return func() { <-c.guard }, true
	default:
		return nil, false
	}
}

// Init loads pool immutables, the current pool state, token metadata and any
// stored position. It runs under the same guard as Tick.
func (c *Controller) Init(ctx context.Context) error {
	release, ok := c.tryAcquire()
	if !ok {
		return ErrTickInFlight
	}
	defer release()

	immutables, err := c.chain.PoolImmutables(ctx)
	if err != nil {
		return fmt.Errorf("load pool immutables: %w", err)
	}
	if immutables.TickSpacing <= 0 {
		return fmt.Errorf("pool reports tick spacing %d", immutables.TickSpacing)
	}
	poolState, err := c.chain.PoolState(ctx)
	if err != nil {
		return fmt.Errorf("load pool state: %w", err)
	}
	token0, err := c.ledger.TokenMeta(ctx, immutables.Token0)
	if err != nil {
		return fmt.Errorf("load token0 metadata: %w", err)
	}
	token1, err := c.ledger.TokenMeta(ctx, immutables.Token1)
	if err != nil {
		return fmt.Errorf("load token1 metadata: %w", err)
	}

	pos, found, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if !found || !pos.IsOpen() {
		pos = model.Position{}
	}
	if pos.IsOpen() && pos.TickLower >= pos.TickUpper {
		return fmt.Errorf("stored position %s has lower tick %d >= upper tick %d", pos.ID, pos.TickLower, pos.TickUpper)
	}

	c.mu.Lock()
	c.immutables = immutables
	c.poolState = poolState
	c.token0 = token0
	c.token1 = token1
	c.position = pos
	c.initialized = true
	c.mu.Unlock()

	c.logger.Info("pool immutables",
		zap.String("factory", immutables.Factory.Hex()),
		zap.String("token0", token0.Label()),
		zap.String("token1", token1.Label()),
		zap.Uint32("fee", immutables.Fee),
		zap.Int32("tick_spacing", immutables.TickSpacing),
		zap.String("max_liquidity_per_tick", bigString(immutables.MaxLiquidityPerTick)),
	)
	c.logPoolState(c.logger, poolState)
	if pos.IsOpen() {
		c.logger.Info("resumed position",
			zap.String("position_id", pos.ID.String()),
			zap.Int32("lower", pos.TickLower),
			zap.Int32("upper", pos.TickUpper),
		)
	}
	return nil
}

// Tick runs one decide-and-act pass. A tick that finds another one running
// returns ErrTickInFlight without touching any state.
func (c *Controller) Tick(ctx context.Context) error {
	release, ok := c.tryAcquire()
	if !ok {
		return ErrTickInFlight
	}
	defer release()

	if !c.isInitialized() {
		return ErrNotInitialized
	}

	started := c.now()
	id := uuid.NewString()
	run := tickRun{id: id, logger: c.logger.With(zap.String("tick_id", id))}
	logger := run.logger

	poolState, err := c.refreshPoolState(ctx)
	if err != nil {
		return err
	}

	pos := c.Snapshot()
	logger.Info("tick",
		zap.Int32("tick", poolState.Tick),
		zap.String("position_id", bigString(pos.ID)),
		zap.Int32("lower", pos.TickLower),
		zap.Int32("upper", pos.TickUpper),
	)

	if pos.IsOpen() && !pos.InRange(poolState.Tick) {
		logger.Info("out of range, closing position", zap.String("position_id", pos.ID.String()))
		if err := c.withdrawAndCollect(ctx, run, pos); err != nil {
			return err
		}
	}

	if !c.Snapshot().IsOpen() {
		logger.Info("no position, checking balances")
		if err := c.rebalance(ctx, run); err != nil {
			return err
		}
		if err := c.openPosition(ctx, run); err != nil {
			return err
		}
	}

	logger.Info("tick done", zap.Duration("elapsed", c.now().Sub(started)))
	return nil
}

// Snapshot returns a copy of the current position.
func (c *Controller) Snapshot() model.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position.Clone()
}

// PoolImmutables returns the parameters loaded by Init.
func (c *Controller) PoolImmutables() model.PoolImmutables {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.immutables
}

func (c *Controller) isInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

func (c *Controller) refreshPoolState(ctx context.Context) (model.PoolState, error) {
	poolState, err := c.chain.PoolState(ctx)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("refresh pool state: %w", err)
	}
	c.mu.Lock()
	c.poolState = poolState
	c.mu.Unlock()
	return poolState, nil
}

func (c *Controller) setPosition(ctx context.Context, run tickRun, pos model.Position) {
	c.mu.Lock()
	c.position = pos.Clone()
	c.mu.Unlock()

	if err := c.store.Save(ctx, pos); err != nil {
		run.logger.Warn("save position failed", zap.Error(err))
	}
}

func (c *Controller) record(ctx context.Context, run tickRun, rec model.ActionRecord) {
	rec.RecordedAt = c.now().UTC()
	if err := c.journal.PutActions(ctx, []model.ActionRecord{rec}); err != nil {
		run.logger.Warn("journal action failed", zap.String("kind", rec.Kind), zap.Error(err))
	}
}

func (c *Controller) logPoolState(logger *zap.Logger, s model.PoolState) {
	fields := []zap.Field{
		zap.String("liquidity", bigString(s.Liquidity)),
		zap.String("sqrt_price_x96", bigString(s.SqrtPriceX96)),
		zap.Int32("tick", s.Tick),
		zap.Uint16("observation_index", s.ObservationIndex),
		zap.Uint16("observation_cardinality", s.ObservationCardinality),
		zap.Uint16("observation_cardinality_next", s.ObservationCardinalityNext),
		zap.Uint8("fee_protocol", s.FeeProtocol),
		zap.Bool("unlocked", s.Unlocked),
	}
	if price, err := strategy.PriceFromSqrtX96(s.SqrtPriceX96); err == nil {
		fields = append(fields, zap.String("price", price.StringFixed(18)))
	}
	logger.Info("pool state", fields...)
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
