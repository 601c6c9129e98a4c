// Package evm provides a private-key backed talentlayer.LedgerClient over go-ethereum's ethclient.
package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	talentlayer "github.com/talentlayer/talentlayer-go"
)

const (
	// DefaultPollInterval is how often WaitForTransactionReceipt polls the node.
	DefaultPollInterval = time.Second

	// gasLimitBuffer is added on top of estimates, in percent
	gasLimitBuffer = 20
)

// Backend is the subset of *ethclient.Client the ledger needs.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Ledger signs and submits contract calls with a single ECDSA key.
type Ledger struct {
	backend      Backend
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	signer       types.Signer
	pollInterval time.Duration
	gasLimit     uint64
	log          logrus.FieldLogger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPollInterval sets the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithGasLimit disables gas estimation and uses limit for every write.
func WithGasLimit(limit uint64) Option {
	return func(l *Ledger) {
		l.gasLimit = limit
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// Dial connects to rpcURL and creates a ledger for privateKeyHex.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, opts ...Option) (*Ledger, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}
	return NewLedger(ctx, client, privateKeyHex, opts...)
}

// NewLedger creates a ledger for privateKeyHex (with or without "0x" prefix) on backend.
// The chain id is read from the backend once.
func NewLedger(ctx context.Context, backend Backend, privateKeyHex string, opts ...Option) (*Ledger, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	l := &Ledger{
		backend:      backend,
		privateKey:   privateKey,
		address:      crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:      chainID,
		signer:       types.LatestSignerForChainID(chainID),
		pollInterval: DefaultPollInterval,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Address returns the checksummed address of the signing key.
func (l *Ledger) Address() string {
	return l.address.Hex()
}

// ChainID returns the chain id the ledger signs for.
func (l *Ledger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

// ReadContract calls a view method and returns its single output, or all outputs
// when the method returns several.
func (l *Ledger) ReadContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	contractABI, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	to := common.HexToAddress(address)
	result, err := l.backend.CallContract(ctx, ethereum.CallMsg{From: l.address, To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}

	switch len(outputs) {
	case 0:
		return nil, nil
	case 1:
		return outputs[0], nil
	default:
		return outputs, nil
	}
}

// WriteContract signs and submits a call to method. It returns as soon as the node
// accepts the transaction; use WaitForTransactionReceipt to wait for inclusion.
func (l *Ledger) WriteContract(ctx context.Context, address string, abiJSON []byte, method string, value *big.Int, args ...interface{}) (string, error) {
	contractABI, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to pack %s: %w", method, err)
	}
	if value == nil {
		value = new(big.Int)
	}
	to := common.HexToAddress(address)

	nonce, err := l.backend.PendingNonceAt(ctx, l.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasLimit := l.gasLimit
	if gasLimit == 0 {
		estimate, err := l.backend.EstimateGas(ctx, ethereum.CallMsg{From: l.address, To: &to, Value: value, Data: data})
		if err != nil {
			return "", fmt.Errorf("failed to estimate gas for %s: %w", method, err)
		}
		gasLimit = estimate + estimate*gasLimitBuffer/100
	}

	txData, err := l.feeFields(ctx, nonce, gasLimit, to, value, data)
	if err != nil {
		return "", err
	}

	tx, err := types.SignNewTx(l.privateKey, l.signer, txData)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := l.backend.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to send %s: %w", method, err)
	}

	l.log.WithFields(logrus.Fields{
		"method":  method,
		"to":      to.Hex(),
		"nonce":   nonce,
		"tx_hash": tx.Hash().Hex(),
	}).Debug("transaction sent")
	return tx.Hash().Hex(), nil
}

// feeFields builds a dynamic-fee transaction when the chain reports a base fee and
// falls back to a legacy transaction otherwise.
func (l *Ledger) feeFields(ctx context.Context, nonce, gasLimit uint64, to common.Address, value *big.Int, data []byte) (types.TxData, error) {
	head, err := l.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest header: %w", err)
	}

	if head.BaseFee == nil {
		gasPrice, err := l.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     data,
		}, nil
	}

	tip, err := l.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return &types.DynamicFeeTx{
		ChainID:   l.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	}, nil
}

// WaitForTransactionReceipt polls until the transaction is mined or ctx is done.
func (l *Ledger) WaitForTransactionReceipt(ctx context.Context, txHash string) (*talentlayer.TransactionReceipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			out := &talentlayer.TransactionReceipt{
				Status: receipt.Status,
				TxHash: receipt.TxHash.Hex(),
			}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			return out, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt of %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Balance returns the balance of the ledger's account in token, or in the native
// currency when token is the zero address.
func (l *Ledger) Balance(ctx context.Context, token string, erc20ABI []byte) (*big.Int, error) {
	if token == "" || common.HexToAddress(token) == (common.Address{}) {
		balance, err := l.backend.BalanceAt(ctx, l.address, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get balance: %w", err)
		}
		return balance, nil
	}

	result, err := l.ReadContract(ctx, token, erc20ABI, "balanceOf", l.address)
	if err != nil {
		return nil, err
	}
	balance, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type: %T", result)
	}
	return balance, nil
}

var (
	_ talentlayer.LedgerClient  = (*Ledger)(nil)
	_ talentlayer.BalanceReader = (*Ledger)(nil)
)
