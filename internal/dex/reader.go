package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/SCBuergel/uniminiranger/internal/chain"
	"github.com/SCBuergel/uniminiranger/internal/model"
)

// Caller executes read-only contract calls against the latest block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Reader reads pool and position manager state.
type Reader struct {
	caller  Caller
	pool    common.Address
	manager common.Address
}

// NewReader builds a Reader for one pool and one position manager.
func NewReader(caller Caller, pool, manager common.Address) *Reader {
	return &Reader{caller: caller, pool: pool, manager: manager}
}

// PoolImmutables loads pool parameters that are fixed at deployment.
func (r *Reader) PoolImmutables(ctx context.Context) (model.PoolImmutables, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolImmutables{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var out model.PoolImmutables

	values, err := r.call(ctx, r.pool, poolABI, "factory")
	if err != nil {
		return out, err
	}
	if out.Factory, err = asAddress(values[0]); err != nil {
		return out, fmt.Errorf("%w: factory: %w", chain.ErrRemoteRead, err)
	}

	values, err = r.call(ctx, r.pool, poolABI, "token0")
	if err != nil {
		return out, err
	}
	if out.Token0, err = asAddress(values[0]); err != nil {
		return out, fmt.Errorf("%w: token0: %w", chain.ErrRemoteRead, err)
	}

	values, err = r.call(ctx, r.pool, poolABI, "token1")
	if err != nil {
		return out, err
	}
	if out.Token1, err = asAddress(values[0]); err != nil {
		return out, fmt.Errorf("%w: token1: %w", chain.ErrRemoteRead, err)
	}

	values, err = r.call(ctx, r.pool, poolABI, "fee")
	if err != nil {
		return out, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return out, fmt.Errorf("%w: fee: %w", chain.ErrRemoteRead, err)
	}
	out.Fee = uint32(feeInt.Uint64())

	values, err = r.call(ctx, r.pool, poolABI, "tickSpacing")
	if err != nil {
		return out, err
	}
	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return out, fmt.Errorf("%w: tick spacing: %w", chain.ErrRemoteRead, err)
	}
	if out.TickSpacing, err = int24FromBig(tickSpacingInt); err != nil {
		return out, fmt.Errorf("%w: tick spacing: %w", chain.ErrRemoteRead, err)
	}

	values, err = r.call(ctx, r.pool, poolABI, "maxLiquidityPerTick")
	if err != nil {
		return out, err
	}
	if out.MaxLiquidityPerTick, err = asBigInt(values[0]); err != nil {
		return out, fmt.Errorf("%w: max liquidity per tick: %w", chain.ErrRemoteRead, err)
	}

	return out, nil
}

// PoolState loads the current slot0 and in-range liquidity.
func (r *Reader) PoolState(ctx context.Context) (model.PoolState, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var out model.PoolState

	values, err := r.call(ctx, r.pool, poolABI, "slot0")
	if err != nil {
		return out, err
	}
	if len(values) != 7 {
		return out, fmt.Errorf("%w: slot0 returned %d values", chain.ErrRemoteRead, len(values))
	}
	if err := decodeSlot0(values, &out); err != nil {
		return out, fmt.Errorf("%w: slot0: %w", chain.ErrRemoteRead, err)
	}

	values, err = r.call(ctx, r.pool, poolABI, "liquidity")
	if err != nil {
		return out, err
	}
	if out.Liquidity, err = asBigInt(values[0]); err != nil {
		return out, fmt.Errorf("%w: liquidity: %w", chain.ErrRemoteRead, err)
	}

	return out, nil
}

func decodeSlot0(values []interface{}, out *model.PoolState) error {
	var err error
	if out.SqrtPriceX96, err = asBigInt(values[0]); err != nil {
		return err
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return err
	}
	if out.Tick, err = int24FromBig(tickInt); err != nil {
		return err
	}
	if out.ObservationIndex, err = asUint16(values[2]); err != nil {
		return err
	}
	if out.ObservationCardinality, err = asUint16(values[3]); err != nil {
		return err
	}
	if out.ObservationCardinalityNext, err = asUint16(values[4]); err != nil {
		return err
	}
	if out.FeeProtocol, err = asUint8(values[5]); err != nil {
		return err
	}
	out.Unlocked, err = asBool(values[6])
	return err
}

// PositionLiquidity returns the liquidity currently held by a position NFT.
func (r *Reader) PositionLiquidity(ctx context.Context, tokenID *big.Int) (*big.Int, error) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := r.call(ctx, r.manager, managerABI, "positions", tokenID)
	if err != nil {
		return nil, err
	}
	if len(values) != 12 {
		return nil, fmt.Errorf("%w: positions returned %d values", chain.ErrRemoteRead, len(values))
	}
	liquidity, err := asBigInt(values[7])
	if err != nil {
		return nil, fmt.Errorf("%w: position liquidity: %w", chain.ErrRemoteRead, err)
	}
	return liquidity, nil
}

func (r *Reader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	return callMethod(ctx, r.caller, to, parsed, method, args...)
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", chain.ErrRemoteRead, method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s returned no values", chain.ErrRemoteRead, method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "name"); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}
