package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/SCBuergel/uniminiranger/internal/model"
)

// DecodeMint finds the position minted in a receipt. The IncreaseLiquidity event
// emitted by the manager is preferred; an ERC721 Transfer from the zero address
// is the fallback when the receipt carries no IncreaseLiquidity log.
func DecodeMint(receipt *types.Receipt, manager common.Address) (*big.Int, model.IncreaseLiquidityEventData, error) {
	if receipt == nil {
		return nil, model.IncreaseLiquidityEventData{}, fmt.Errorf("receipt is nil")
	}
	managerABI, err := PositionManagerABI()
	if err != nil {
		return nil, model.IncreaseLiquidityEventData{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	increase := managerABI.Events["IncreaseLiquidity"]
	for _, log := range receipt.Logs {
		if !matchesEvent(log, manager, increase) {
			continue
		}
		tokenID, values, err := decodeTokenEvent(increase, log)
		if err != nil {
			return nil, model.IncreaseLiquidityEventData{}, err
		}
		return tokenID, model.IncreaseLiquidityEventData{
			TokenID:   tokenID.String(),
			Liquidity: values[0].String(),
			Amount0:   values[1].String(),
			Amount1:   values[2].String(),
		}, nil
	}

	transfer := managerABI.Events["Transfer"]
	for _, log := range receipt.Logs {
		if !matchesEvent(log, manager, transfer) {
			continue
		}
		if common.BytesToAddress(log.Topics[1].Bytes()) != (common.Address{}) {
			continue
		}
		tokenID := new(big.Int).SetBytes(log.Topics[3].Bytes())
		return tokenID, model.IncreaseLiquidityEventData{TokenID: tokenID.String()}, nil
	}

	return nil, model.IncreaseLiquidityEventData{}, fmt.Errorf("no mint event from %s in tx %s", manager.Hex(), receipt.TxHash.Hex())
}

// DecodeTeardown extracts the DecreaseLiquidity and Collect events for tokenID.
// Missing events are returned as zero values.
func DecodeTeardown(receipt *types.Receipt, manager common.Address, tokenID *big.Int) (model.DecreaseLiquidityEventData, model.CollectEventData, error) {
	var decreased model.DecreaseLiquidityEventData
	var collected model.CollectEventData
	if receipt == nil {
		return decreased, collected, fmt.Errorf("receipt is nil")
	}
	managerABI, err := PositionManagerABI()
	if err != nil {
		return decreased, collected, fmt.Errorf("parse position manager abi: %w", err)
	}

	decrease := managerABI.Events["DecreaseLiquidity"]
	collect := managerABI.Events["Collect"]
	for _, log := range receipt.Logs {
		switch {
		case matchesEvent(log, manager, decrease):
			id, values, err := decodeTokenEvent(decrease, log)
			if err != nil {
				return decreased, collected, err
			}
			if id.Cmp(tokenID) != 0 {
				continue
			}
			decreased = model.DecreaseLiquidityEventData{
				TokenID:   id.String(),
				Liquidity: values[0].String(),
				Amount0:   values[1].String(),
				Amount1:   values[2].String(),
			}
		case matchesEvent(log, manager, collect):
			id, err := tokenIDTopic(log)
			if err != nil {
				return decreased, collected, err
			}
			if id.Cmp(tokenID) != 0 {
				continue
			}
			values, err := collect.Inputs.NonIndexed().Unpack(log.Data)
			if err != nil {
				return decreased, collected, fmt.Errorf("unpack %s: %w", collect.Name, err)
			}
			if len(values) != 3 {
				return decreased, collected, fmt.Errorf("unexpected collect values: %d", len(values))
			}
			recipient, err := asAddress(values[0])
			if err != nil {
				return decreased, collected, err
			}
			amount0, err := asBigInt(values[1])
			if err != nil {
				return decreased, collected, err
			}
			amount1, err := asBigInt(values[2])
			if err != nil {
				return decreased, collected, err
			}
			collected = model.CollectEventData{
				TokenID:   id.String(),
				Recipient: recipient.Hex(),
				Amount0:   amount0.String(),
				Amount1:   amount1.String(),
			}
		}
	}
	return decreased, collected, nil
}

// DecodeSwap extracts the pool Swap event from a receipt.
func DecodeSwap(receipt *types.Receipt, pool common.Address) (model.SwapEventData, bool, error) {
	if receipt == nil {
		return model.SwapEventData{}, false, fmt.Errorf("receipt is nil")
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.SwapEventData{}, false, fmt.Errorf("parse pool abi: %w", err)
	}

	event := poolABI.Events["Swap"]
	for _, log := range receipt.Logs {
		if !matchesEvent(log, pool, event) {
			continue
		}
		swap, err := decodeSwap(event, log)
		if err != nil {
			return model.SwapEventData{}, false, err
		}
		return swap, true, nil
	}
	return model.SwapEventData{}, false, nil
}

func decodeSwap(event abi.Event, log *types.Log) (model.SwapEventData, error) {
	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]*big.Int, 0, len(values))
	for _, value := range values {
		v, err := asBigInt(value)
		if err != nil {
			return model.SwapEventData{}, err
		}
		ints = append(ints, v)
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      ints[0].String(),
		Amount1:      ints[1].String(),
		SqrtPriceX96: ints[2].String(),
		Liquidity:    ints[3].String(),
		Tick:         tick,
	}, nil
}

func matchesEvent(log *types.Log, emitter common.Address, event abi.Event) bool {
	if log == nil || log.Address != emitter || len(log.Topics) == 0 {
		return false
	}
	if log.Topics[0] != event.ID {
		return false
	}
	return len(log.Topics) == len(indexedArguments(event.Inputs))+1
}

// decodeTokenEvent decodes events shaped (uint256 indexed tokenId, uint128, uint256, uint256).
func decodeTokenEvent(event abi.Event, log *types.Log) (*big.Int, []*big.Int, error) {
	tokenID, err := tokenIDTopic(log)
	if err != nil {
		return nil, nil, err
	}
	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 3 {
		return nil, nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		v, err := asBigInt(value)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, v)
	}
	return tokenID, out, nil
}

func tokenIDTopic(log *types.Log) (*big.Int, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("missing token id topic")
	}
	return new(big.Int).SetBytes(log.Topics[1].Bytes()), nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
