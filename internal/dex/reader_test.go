package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/SCBuergel/uniminiranger/internal/chain"
)

type callKey struct {
	to       common.Address
	selector [4]byte
}

type fakeCaller struct {
	responses map[callKey][]byte
	err       error
	calls     int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[callKey][]byte)}
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	var key callKey
	key.to = *msg.To
	copy(key.selector[:], msg.Data[:4])
	resp, ok := f.responses[key]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (f *fakeCaller) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	out, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	var key callKey
	key.to = to
	copy(key.selector[:], m.ID)
	f.responses[key] = out
}

func TestReaderPoolImmutables(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	token0 := common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	token1 := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")

	caller := newFakeCaller()
	caller.respond(t, testPool, poolABI, "factory", factory)
	caller.respond(t, testPool, poolABI, "token0", token0)
	caller.respond(t, testPool, poolABI, "token1", token1)
	caller.respond(t, testPool, poolABI, "fee", big.NewInt(500))
	caller.respond(t, testPool, poolABI, "tickSpacing", big.NewInt(10))
	caller.respond(t, testPool, poolABI, "maxLiquidityPerTick", big.NewInt(1<<40))

	reader := NewReader(caller, testPool, testManager)
	imm, err := reader.PoolImmutables(context.Background())
	if err != nil {
		t.Fatalf("pool immutables: %v", err)
	}
	if imm.Factory != factory || imm.Token0 != token0 || imm.Token1 != token1 {
		t.Fatalf("address mismatch: %+v", imm)
	}
	if imm.Fee != 500 || imm.TickSpacing != 10 {
		t.Fatalf("fee/spacing mismatch: %d %d", imm.Fee, imm.TickSpacing)
	}
	if imm.MaxLiquidityPerTick.Int64() != 1<<40 {
		t.Fatalf("max liquidity mismatch: %s", imm.MaxLiquidityPerTick)
	}
}

func TestReaderPoolState(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	sqrtPrice, _ := new(big.Int).SetString("79228162514264337593543950336", 10)

	caller := newFakeCaller()
	caller.respond(t, testPool, poolABI, "slot0",
		sqrtPrice,
		big.NewInt(-12345),
		uint16(7),
		uint16(100),
		uint16(120),
		uint8(0),
		true,
	)
	caller.respond(t, testPool, poolABI, "liquidity", big.NewInt(987654))

	reader := NewReader(caller, testPool, testManager)
	state, err := reader.PoolState(context.Background())
	if err != nil {
		t.Fatalf("pool state: %v", err)
	}
	if state.SqrtPriceX96.Cmp(sqrtPrice) != 0 {
		t.Fatalf("sqrt price mismatch: %s", state.SqrtPriceX96)
	}
	if state.Tick != -12345 {
		t.Fatalf("tick mismatch: %d", state.Tick)
	}
	if state.ObservationCardinality != 100 || !state.Unlocked {
		t.Fatalf("slot0 mismatch: %+v", state)
	}
	if state.Liquidity.Int64() != 987654 {
		t.Fatalf("liquidity mismatch: %s", state.Liquidity)
	}
}

func TestReaderPositionLiquidity(t *testing.T) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	caller := newFakeCaller()
	caller.respond(t, testManager, managerABI, "positions",
		big.NewInt(0),
		common.Address{},
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		big.NewInt(500),
		big.NewInt(-120),
		big.NewInt(120),
		big.NewInt(55555),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(3),
		big.NewInt(4),
	)

	reader := NewReader(caller, testPool, testManager)
	liquidity, err := reader.PositionLiquidity(context.Background(), big.NewInt(42))
	if err != nil {
		t.Fatalf("position liquidity: %v", err)
	}
	if liquidity.Int64() != 55555 {
		t.Fatalf("liquidity mismatch: %s", liquidity)
	}
}

func TestReaderMalformedResponse(t *testing.T) {
	caller := newFakeCaller()
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	var key callKey
	key.to = testPool
	copy(key.selector[:], poolABI.Methods["slot0"].ID)
	caller.responses[key] = []byte{0x01, 0x02}

	reader := NewReader(caller, testPool, testManager)
	_, err = reader.PoolState(context.Background())
	if !errors.Is(err, chain.ErrRemoteRead) {
		t.Fatalf("expected remote read error, got %v", err)
	}
}

func TestLedgerHoldings(t *testing.T) {
	erc20ABI, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token0 := common.HexToAddress("0x0000000000000000000000000000000000000a00")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000b00")
	balance0, _ := new(big.Int).SetString("1000000000000000000", 10)

	caller := newFakeCaller()
	caller.respond(t, token0, erc20ABI, "balanceOf", balance0)
	caller.respond(t, token1, erc20ABI, "balanceOf", big.NewInt(2500000000))

	ledger := NewLedger(caller, testWallet)
	holdings, err := ledger.Holdings(context.Background(), token0, token1)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	if holdings.Balance0.ToBig().Cmp(balance0) != 0 {
		t.Fatalf("balance0 mismatch: %s", holdings.Balance0)
	}
	if holdings.Balance1.Uint64() != 2500000000 {
		t.Fatalf("balance1 mismatch: %s", holdings.Balance1)
	}

	caller.err = errors.New("connection refused")
	if _, err := ledger.Holdings(context.Background(), token0, token1); err == nil {
		t.Fatalf("expected error on failed call")
	}
}

func TestFetchTokenMetaBytes32Fallback(t *testing.T) {
	stringABI, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token := common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")

	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller := newFakeCaller()
	caller.respond(t, token, stringABI, "decimals", uint8(18))
	caller.respond(t, token, stringABI, "name", "Maker")
	// symbol shares a selector across both ABIs, so the string decode
	// fails on bytes32 data and the fallback kicks in.
	caller.respond(t, token, bytes32ABI, "symbol", symbol)

	meta, err := FetchTokenMeta(context.Background(), caller, token, nil)
	if err != nil {
		t.Fatalf("fetch meta: %v", err)
	}
	if meta.Decimals != 18 || meta.Name != "Maker" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Symbol != "MKR" {
		t.Fatalf("symbol mismatch: %q", meta.Symbol)
	}
}
