// Package ethereum provides the network and provider client used by every
// script and service. It wraps a JSON-RPC backend and a signing key and knows
// how to wait for transactions to be mined and confirmed.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
)

// defaultPollInterval is how often receipts and block numbers are queried
// while waiting on a transaction.
const defaultPollInterval = 2 * time.Second

// ErrNoSigner is returned when a transaction is requested from a client that
// was constructed without a private key.
var ErrNoSigner = errors.New("no signing key configured")

// EventHandler defines a function that is called when events occur while
// talking to the network.
type EventHandler func(v string, args ...any)

// Backend represents the behavior required from a JSON-RPC endpoint. The
// ethclient.Client and the go-ethereum simulated client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets how often the client polls while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithEvHandler sets the function used to report progress.
func WithEvHandler(ev EventHandler) Option {
	return func(c *Client) {
		if ev != nil {
			c.evHandler = ev
		}
	}
}

// =============================================================================

// Client provides access to a network through a backend and signs
// transactions with the configured private key.
type Client struct {
	backend      Backend
	closer       func()
	privateKey   *ecdsa.PrivateKey
	address      common.Address
	chainID      *big.Int
	pollInterval time.Duration
	evHandler    EventHandler
}

// Dial connects to the JSON-RPC endpoint at the specified url. The private
// key can be nil for read only access.
func Dial(ctx context.Context, rpcURL string, privateKey *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	client, err := NewClient(ctx, ec, privateKey, opts...)
	if err != nil {
		ec.Close()
		return nil, err
	}
	client.closer = ec.Close

	return client, nil
}

// NewClient constructs a client over the specified backend. The chain id is
// read once and used for signing every transaction.
func NewClient(ctx context.Context, backend Backend, privateKey *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve chain id: %w", err)
	}

	c := Client{
		backend:      backend,
		privateKey:   privateKey,
		chainID:      chainID,
		pollInterval: defaultPollInterval,
		evHandler:    func(v string, args ...any) {},
	}

	if privateKey != nil {
		c.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	}

	for _, opt := range opts {
		opt(&c)
	}

	return &c, nil
}

// Close releases the underlying connection when the client owns it.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Backend returns the backend for use by contract handles.
func (c *Client) Backend() Backend {
	return c.backend
}

// Address returns the account address of the signing key.
func (c *Client) Address() common.Address {
	return c.address
}

// CanSign reports if a private key is available for transactions.
func (c *Client) CanSign() bool {
	return c.privateKey != nil
}

// ChainID returns a copy of the chain id for the connected network.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// =============================================================================

// TransactOpts constructs the options for a state changing call signed by
// the client's key. The value can be nil for calls that transfer nothing.
func (c *Client) TransactOpts(ctx context.Context, value *big.Int) (*bind.TransactOpts, error) {
	if c.privateKey == nil {
		return nil, ErrNoSigner
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("keyed transactor: %w", err)
	}
	opts.Context = ctx

	if value != nil {
		opts.Value = new(big.Int).Set(value)
	}

	return opts, nil
}

// CallOpts constructs the options for a read only call.
func (c *Client) CallOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{
		From:    c.address,
		Context: ctx,
	}
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// Balance returns the current balance for the specified account.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, account, nil)
}

// TransactionReceipt returns the receipt for the specified transaction.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, hash)
}

// SendValue transfers the value from the client's account to the specified
// account. The transaction is returned once it is submitted.
func (c *Client) SendValue(ctx context.Context, to common.Address, value *big.Int) (*types.Transaction, error) {
	opts, err := c.TransactOpts(ctx, value)
	if err != nil {
		return nil, err
	}

	// Gas estimation is only possible against contract code. Transfers to an
	// externally owned account always cost the intrinsic gas.
	code, err := c.backend.PendingCodeAt(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("retrieve code: %w", err)
	}
	if len(code) == 0 {
		opts.GasLimit = params.TxGas
	}

	// A plain transfer carries no calldata. The bound contract's Transfer
	// refuses an ABI without a receive or fallback function, so the empty
	// call is sent raw.
	bc := bind.NewBoundContract(to, abi.ABI{}, c.backend, c.backend, c.backend)
	tx, err := bc.RawTransact(opts, nil)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}

	c.evHandler("ethereum: SendValue: to[%s] value[%s] tx[%s]", to, FormatEther(value), tx.Hash())

	return tx, nil
}
