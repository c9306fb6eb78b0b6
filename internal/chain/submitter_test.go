package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeBackend struct {
	mu       sync.Mutex
	sent     []*types.Transaction
	status   uint64
	noReceipt bool
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (b *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 3, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 250_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *fakeBackend) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	if b.noReceipt {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:      b.status,
		TxHash:      hash,
		BlockNumber: big.NewInt(101),
		GasUsed:     120_000,
	}, nil
}

func newTestSubmitter(t *testing.T, backend *fakeBackend, timeout time.Duration) *Submitter {
	t.Helper()
	key, err := ParsePrivateKey("0x" + testKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	sub, err := NewSubmitter(backend, key, big.NewInt(42161), timeout, nil)
	if err != nil {
		t.Fatalf("submitter: %v", err)
	}
	return sub
}

func TestSubmitterConfirmed(t *testing.T) {
	backend := &fakeBackend{status: types.ReceiptStatusSuccessful}
	sub := newTestSubmitter(t, backend, time.Second)
	to := common.HexToAddress("0xC36442b4a4522E871399CD717aBDD847Ab11FE88")

	receipt, err := sub.Submit(context.Background(), to, []byte{0xac, 0x96, 0x50, 0xd8})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one sent tx, got %d", len(backend.sent))
	}

	tx := backend.sent[0]
	if receipt.TxHash != tx.Hash() {
		t.Fatalf("receipt hash mismatch")
	}
	if *tx.To() != to || tx.Nonce() != 3 || tx.Gas() != 250_000 {
		t.Fatalf("unexpected tx fields: to=%s nonce=%d gas=%d", tx.To().Hex(), tx.Nonce(), tx.Gas())
	}

	signer := types.LatestSignerForChainID(big.NewInt(42161))
	from, err := types.Sender(signer, tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from != sub.From() {
		t.Fatalf("sender mismatch: %s != %s", from.Hex(), sub.From().Hex())
	}
}

func TestSubmitterReverted(t *testing.T) {
	backend := &fakeBackend{status: types.ReceiptStatusFailed}
	sub := newTestSubmitter(t, backend, time.Second)

	_, err := sub.Submit(context.Background(), common.HexToAddress("0x01"), []byte{0x01})
	if !errors.Is(err, ErrTxRejected) {
		t.Fatalf("expected ErrTxRejected, got %v", err)
	}
}

func TestSubmitterConfirmationTimeout(t *testing.T) {
	backend := &fakeBackend{noReceipt: true}
	sub := newTestSubmitter(t, backend, 50*time.Millisecond)

	_, err := sub.Submit(context.Background(), common.HexToAddress("0x01"), []byte{0x01})
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("expected ErrConfirmationTimeout, got %v", err)
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey(testKeyHex)
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	prefixed, err := ParsePrivateKey("  0x" + testKeyHex + "\n")
	if err != nil {
		t.Fatalf("parse prefixed key: %v", err)
	}
	if crypto.PubkeyToAddress(prefixed.PublicKey) != want {
		t.Fatalf("prefixed key decodes to a different address")
	}

	if _, err := ParsePrivateKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := ParsePrivateKey("0xnothex"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}
