package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/SCBuergel/uniminiranger/internal/chain"
	"github.com/SCBuergel/uniminiranger/internal/model"
)

// Ledger reads token balances of one wallet.
type Ledger struct {
	caller Caller
	owner  common.Address
}

// NewLedger builds a Ledger for the owner address.
func NewLedger(caller Caller, owner common.Address) *Ledger {
	return &Ledger{caller: caller, owner: owner}
}

// Owner returns the wallet whose balances are read.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// BalanceOf returns the owner's balance of token.
func (l *Ledger) BalanceOf(ctx context.Context, token common.Address) (*uint256.Int, error) {
	erc20ABI, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	values, err := callMethod(ctx, l.caller, token, erc20ABI, "balanceOf", l.owner)
	if err != nil {
		return nil, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf unexpected type %T", chain.ErrRemoteRead, values[0])
	}
	out, overflow := uint256.FromBig(bal)
	if overflow || bal.Sign() < 0 {
		return nil, fmt.Errorf("%w: balanceOf out of range: %s", chain.ErrRemoteRead, bal)
	}
	return out, nil
}

// Holdings returns the owner's balances of both pool tokens.
func (l *Ledger) Holdings(ctx context.Context, token0, token1 common.Address) (model.Holdings, error) {
	bal0, err := l.BalanceOf(ctx, token0)
	if err != nil {
		return model.Holdings{}, fmt.Errorf("token0 balance: %w", err)
	}
	bal1, err := l.BalanceOf(ctx, token1)
	if err != nil {
		return model.Holdings{}, fmt.Errorf("token1 balance: %w", err)
	}
	return model.Holdings{Balance0: bal0, Balance1: bal1}, nil
}

// TokenMeta reads decimals, symbol and name of token.
func (l *Ledger) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	return FetchTokenMeta(ctx, l.caller, token, nil)
}
