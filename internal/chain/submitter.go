package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

const defaultConfirmTimeout = 10 * time.Minute

// Backend is what the submitter needs from a node: transacting and receipt polling.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Submitter signs prepared calldata with the wallet key, sends it and waits for confirmation.
type Submitter struct {
	backend        Backend
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	logger         *zap.Logger
}

// ParsePrivateKey decodes a hex private key, with or without 0x prefix.
func ParsePrivateKey(input string) (*ecdsa.PrivateKey, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "0x")
	if input == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(input)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// NewSubmitter builds a Submitter. A non-positive confirmTimeout uses the default.
func NewSubmitter(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, confirmTimeout time.Duration, logger *zap.Logger) (*Submitter, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be positive")
	}
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		backend:        backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        new(big.Int).Set(chainID),
		confirmTimeout: confirmTimeout,
		logger:         logger,
	}, nil
}

// From returns the wallet address transactions are sent from.
func (s *Submitter) From() common.Address {
	return s.from
}

// Submit sends calldata to the target contract and returns the successful receipt.
func (s *Submitter) Submit(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: transactor: %w", ErrTxBuild, err)
	}
	opts.Context = ctx

	contract := bind.NewBoundContract(to, abi.ABI{}, s.backend, s.backend, s.backend)
	tx, err := contract.RawTransact(opts, data)
	if err != nil {
		return nil, fmt.Errorf("%w: send to %s: %w", ErrTxRejected, to.Hex(), err)
	}

	s.logger.Info("transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gas", tx.Gas()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, s.backend, tx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tx %s after %s", ErrConfirmationTimeout, tx.Hash().Hex(), s.confirmTimeout)
		}
		return nil, fmt.Errorf("wait tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: tx %s reverted in block %s", ErrTxRejected, tx.Hash().Hex(), receipt.BlockNumber)
	}

	s.logger.Info("transaction confirmed",
		zap.String("tx_hash", receipt.TxHash.Hex()),
		zap.Uint64("block_number", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed),
	)
	return receipt, nil
}
