package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testManager = common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	testPool    = common.HexToAddress("0xC31E54c7a869B9FcBEcc14363CF510d1c41fa443")
	testWallet  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestDecodeMintIncreaseLiquidity(t *testing.T) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := managerABI.Events["IncreaseLiquidity"].Inputs.NonIndexed().Pack(
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack increase: %v", err)
	}

	erc20Transfer := &types.Log{
		Address: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Topics: []common.Hash{
			managerABI.Events["Transfer"].ID,
			topicFromAddress(testWallet),
			topicFromAddress(testPool),
		},
		Data: common.BigToHash(big.NewInt(100)).Bytes(),
	}
	receipt := &types.Receipt{Logs: []*types.Log{
		erc20Transfer,
		{
			Address: testManager,
			Topics:  []common.Hash{managerABI.Events["IncreaseLiquidity"].ID, common.BigToHash(big.NewInt(424242))},
			Data:    data,
		},
	}}

	tokenID, event, err := DecodeMint(receipt, testManager)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if tokenID.Int64() != 424242 {
		t.Fatalf("token id mismatch: %s", tokenID)
	}
	if event.Liquidity != "5000" || event.Amount0 != "100" || event.Amount1 != "200" {
		t.Fatalf("event mismatch: %+v", event)
	}
}

func TestDecodeMintTransferFallback(t *testing.T) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	receipt := &types.Receipt{Logs: []*types.Log{
		{
			Address: testManager,
			Topics: []common.Hash{
				managerABI.Events["Transfer"].ID,
				topicFromAddress(common.Address{}),
				topicFromAddress(testWallet),
				common.BigToHash(big.NewInt(77)),
			},
		},
	}}

	tokenID, _, err := DecodeMint(receipt, testManager)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if tokenID.Int64() != 77 {
		t.Fatalf("token id mismatch: %s", tokenID)
	}
}

func TestDecodeMintMissing(t *testing.T) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	// Same event emitted by another contract must not count.
	receipt := &types.Receipt{Logs: []*types.Log{
		{
			Address: testPool,
			Topics:  []common.Hash{managerABI.Events["IncreaseLiquidity"].ID, common.BigToHash(big.NewInt(1))},
		},
	}}
	if _, _, err := DecodeMint(receipt, testManager); err == nil {
		t.Fatalf("expected error when no mint event is present")
	}
}

func TestDecodeTeardown(t *testing.T) {
	managerABI, err := PositionManagerABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	tokenID := big.NewInt(9)
	decreaseData, err := managerABI.Events["DecreaseLiquidity"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	if err != nil {
		t.Fatalf("pack decrease: %v", err)
	}
	collectData, err := managerABI.Events["Collect"].Inputs.NonIndexed().Pack(
		testWallet,
		big.NewInt(310),
		big.NewInt(415),
	)
	if err != nil {
		t.Fatalf("pack collect: %v", err)
	}

	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: testManager, Topics: []common.Hash{managerABI.Events["DecreaseLiquidity"].ID, common.BigToHash(tokenID)}, Data: decreaseData},
		{Address: testManager, Topics: []common.Hash{managerABI.Events["Collect"].ID, common.BigToHash(tokenID)}, Data: collectData},
	}}

	decreased, collected, err := DecodeTeardown(receipt, testManager, tokenID)
	if err != nil {
		t.Fatalf("decode teardown: %v", err)
	}
	if decreased.Liquidity != "7000" || decreased.Amount0 != "300" {
		t.Fatalf("decrease mismatch: %+v", decreased)
	}
	if collected.Amount0 != "310" || collected.Amount1 != "415" || collected.Recipient != testWallet.Hex() {
		t.Fatalf("collect mismatch: %+v", collected)
	}
}

func TestDecodeSwap(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	router := common.HexToAddress("0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	receipt := &types.Receipt{Logs: []*types.Log{
		{
			Address: testPool,
			Topics:  []common.Hash{poolABI.Events["Swap"].ID, topicFromAddress(router), topicFromAddress(testWallet)},
			Data:    data,
		},
	}}

	swap, ok, err := DecodeSwap(receipt, testPool)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if !ok {
		t.Fatalf("swap not found")
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" || swap.Tick != -15 {
		t.Fatalf("swap mismatch: %+v", swap)
	}
	if swap.Sender != router.Hex() || swap.Recipient != testWallet.Hex() {
		t.Fatalf("address mismatch")
	}

	if _, ok, err := DecodeSwap(&types.Receipt{}, testPool); err != nil || ok {
		t.Fatalf("empty receipt: ok=%v err=%v", ok, err)
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
