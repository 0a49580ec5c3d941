// Package ethtest provides an in-memory chain that satisfies the ethereum
// Backend interface. Contracts are Go models registered against bytecode or
// installed at an address. Every transaction is mined into its own block the
// moment it is sent, the way a local development node automines.
package ethtest

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// Gas accounting is flat. These values only need to be realistic enough for
// balance assertions to include a fee.
const (
	gasCall   = 60_000
	gasDeploy = 1_500_000
)

// Fee parameters reported by the chain.
var (
	baseFee = big.NewInt(1_000_000_000)
	tipCap  = big.NewInt(1_000_000_000)
)

// DefaultChainID matches the chain id used by local development nodes.
var DefaultChainID = big.NewInt(1337)

// Contract represents an in-memory contract model.
type Contract interface {
	Execute(env *Env, input []byte) ([]byte, error)
}

// Factory constructs a contract from the packed constructor arguments that
// follow the registered bytecode in a deployment transaction.
type Factory func(env *Env, args []byte) (Contract, error)

type factory struct {
	bytecode []byte
	fn       Factory
}

type block struct {
	header   *types.Header
	receipts []*types.Receipt
}

// =============================================================================

// Chain is an in-memory network.
type Chain struct {
	mu        sync.Mutex
	chainID   *big.Int
	signer    types.Signer
	time      uint64
	blocks    []block
	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	contracts map[common.Address]Contract
	code      map[common.Address][]byte
	factories []factory
	receipts  map[common.Hash]*types.Receipt
	logs      []types.Log
}

// New constructs a chain with the specified accounts funded with 1000 ether.
func New(accounts ...common.Address) *Chain {
	c := Chain{
		chainID:   new(big.Int).Set(DefaultChainID),
		signer:    types.LatestSignerForChainID(DefaultChainID),
		time:      uint64(time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC).Unix()),
		balances:  make(map[common.Address]*big.Int),
		nonces:    make(map[common.Address]uint64),
		contracts: make(map[common.Address]Contract),
		code:      make(map[common.Address][]byte),
		receipts:  make(map[common.Hash]*types.Receipt),
	}

	thousand := new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
	for _, account := range accounts {
		c.balances[account] = new(big.Int).Set(thousand)
	}

	c.mine(nil)

	return &c
}

// NewKey generates a private key and returns it with its address.
func NewKey() (*ecdsa.PrivateKey, common.Address) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return pk, crypto.PubkeyToAddress(pk.PublicKey)
}

// Register associates bytecode with a factory so deployment transactions
// carrying that bytecode construct the model.
func (c *Chain) Register(bytecode []byte, fn Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories = append(c.factories, factory{bytecode: bytecode, fn: fn})
}

// Install places a contract model at the specified address.
func (c *Chain) Install(address common.Address, contract Contract) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.contracts[address] = contract
	c.code[address] = []byte{0x60, 0x80}
}

// Contract returns the model at the specified address.
func (c *Chain) Contract(address common.Address) Contract {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.contracts[address]
}

// SetBalance sets the balance of the specified account.
func (c *Chain) SetBalance(account common.Address, wei *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances[account] = new(big.Int).Set(wei)
}

// AdjustTime moves the clock forward for the next block, like
// evm_increaseTime on a development node.
func (c *Chain) AdjustTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.time += uint64(d / time.Second)
}

// Mine produces the specified number of empty blocks.
func (c *Chain) Mine(blocks int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for range blocks {
		c.mine(nil)
	}
}

// =============================================================================
// These methods implement the ethereum.Backend interface.

// ChainID returns the chain id.
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// BlockNumber returns the latest block number.
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return uint64(len(c.blocks) - 1), nil
}

// BalanceAt returns the latest balance for the account.
func (c *Chain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return new(big.Int).Set(c.balance(account)), nil
}

// HeaderByNumber returns the latest header. Historical headers are returned
// when a number is specified.
func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if number == nil {
		return types.CopyHeader(c.blocks[len(c.blocks)-1].header), nil
	}

	if !number.IsUint64() || number.Uint64() >= uint64(len(c.blocks)) {
		return nil, ethereum.NotFound
	}

	return types.CopyHeader(c.blocks[number.Uint64()].header), nil
}

// CodeAt returns the code at the specified address.
func (c *Chain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.code[contract], nil
}

// PendingCodeAt returns the code at the specified address.
func (c *Chain) PendingCodeAt(ctx context.Context, contract common.Address) ([]byte, error) {
	return c.CodeAt(ctx, contract, nil)
}

// PendingNonceAt returns the next nonce for the account.
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.nonces[account], nil
}

// SuggestGasPrice returns the legacy gas price.
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Add(baseFee, tipCap), nil
}

// SuggestGasTipCap returns the priority fee.
func (c *Chain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(tipCap), nil
}

// CallContract executes a read only call against the latest state.
func (c *Chain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if call.To == nil {
		return nil, errors.New("call without destination")
	}

	contract, exists := c.contracts[*call.To]
	if !exists {
		return nil, nil
	}

	env := c.newEnv(*call.To, call.From, call.Value, false)
	return contract.Execute(env, call.Data)
}

// EstimateGas executes the call without committing to detect reverts.
func (c *Chain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if call.To == nil {
		if _, _, err := c.factory(call.Data); err != nil {
			return 0, err
		}
		return gasDeploy, nil
	}

	contract, exists := c.contracts[*call.To]
	if !exists {
		return params.TxGas, nil
	}

	env := c.newEnv(*call.To, call.From, call.Value, false)
	if _, err := contract.Execute(env, call.Data); err != nil {
		return 0, err
	}

	return gasCall, nil
}

// SendTransaction validates, executes, and mines the transaction into a new
// block. Reverts are mined with a failed receipt.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	if nonce := c.nonces[from]; tx.Nonce() != nonce {
		return fmt.Errorf("invalid nonce: have %d, want %d", tx.Nonce(), nonce)
	}

	price := effectiveGasPrice(tx)
	maxCost := new(big.Int).Mul(price, new(big.Int).SetUint64(tx.Gas()))
	maxCost.Add(maxCost, tx.Value())
	if c.balance(from).Cmp(maxCost) < 0 {
		return fmt.Errorf("insufficient funds for gas * price + value: address %s", from)
	}

	c.nonces[from]++

	receipt := types.Receipt{
		Type:              tx.Type(),
		TxHash:            tx.Hash(),
		Status:            types.ReceiptStatusSuccessful,
		EffectiveGasPrice: price,
	}

	var logs []*types.Log
	switch to := tx.To(); {
	case to == nil:
		receipt.GasUsed = gasDeploy
		address := crypto.CreateAddress(from, tx.Nonce())
		logs, err = c.deploy(address, from, tx)
		if err == nil {
			receipt.ContractAddress = address
		}

	default:
		receipt.GasUsed = gasCall
		logs, err = c.transact(*to, from, tx)
	}

	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
		logs = nil
	}

	if receipt.GasUsed > tx.Gas() {
		receipt.GasUsed = tx.Gas()
	}
	receipt.CumulativeGasUsed = receipt.GasUsed

	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(receipt.GasUsed))
	c.balances[from] = new(big.Int).Sub(c.balance(from), fee)

	receipt.Logs = logs
	c.mine(&receipt)

	return nil
}

// TransactionReceipt returns the receipt for a mined transaction.
func (c *Chain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, exists := c.receipts[hash]
	if !exists {
		return nil, ethereum.NotFound
	}

	cpy := *receipt
	return &cpy, nil
}

// FilterLogs returns the logs matching the query.
func (c *Chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []types.Log
	for _, log := range c.logs {
		if q.FromBlock != nil && log.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && log.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if !matchAddress(q.Addresses, log.Address) || !matchTopics(q.Topics, log.Topics) {
			continue
		}
		out = append(out, log)
	}

	return out, nil
}

// SubscribeFilterLogs is not supported by the in-memory chain.
func (c *Chain) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

// =============================================================================

// deploy constructs the contract described by the transaction data.
func (c *Chain) deploy(address, from common.Address, tx *types.Transaction) ([]*types.Log, error) {
	bytecode, fn, err := c.factory(tx.Data())
	if err != nil {
		return nil, err
	}

	env := c.newEnv(address, from, tx.Value(), true)
	if err := env.credit(); err != nil {
		return nil, err
	}

	contract, err := fn(env, tx.Data()[len(bytecode):])
	if err != nil {
		env.rollback()
		return nil, err
	}

	c.contracts[address] = contract
	c.code[address] = bytecode

	return env.logs, nil
}

// transact executes a state changing call.
func (c *Chain) transact(to, from common.Address, tx *types.Transaction) ([]*types.Log, error) {
	env := c.newEnv(to, from, tx.Value(), true)
	if err := env.credit(); err != nil {
		return nil, err
	}

	contract, exists := c.contracts[to]
	if !exists {
		return env.logs, nil
	}

	if _, err := contract.Execute(env, tx.Data()); err != nil {
		env.rollback()
		return nil, err
	}

	return env.logs, nil
}

// factory locates the factory for the deployment data.
func (c *Chain) factory(data []byte) ([]byte, Factory, error) {
	for _, f := range c.factories {
		if bytes.HasPrefix(data, f.bytecode) {
			return f.bytecode, f.fn, nil
		}
	}
	return nil, nil, errors.New("unknown bytecode")
}

// mine appends a block holding the optional receipt.
func (c *Chain) mine(receipt *types.Receipt) {
	number := uint64(len(c.blocks))

	if number > 0 {
		if prev := c.blocks[number-1].header.Time; c.time <= prev {
			c.time = prev + 1
		}
	}

	header := types.Header{
		Number:   new(big.Int).SetUint64(number),
		Time:     c.time,
		BaseFee:  new(big.Int).Set(baseFee),
		GasLimit: 30_000_000,
	}
	if number > 0 {
		header.ParentHash = c.blocks[number-1].header.Hash()
	}

	blk := block{header: &header}

	if receipt != nil {
		hash := header.Hash()
		receipt.BlockHash = hash
		receipt.BlockNumber = new(big.Int).SetUint64(number)
		for i, log := range receipt.Logs {
			log.BlockNumber = number
			log.BlockHash = hash
			log.TxHash = receipt.TxHash
			log.Index = uint(len(c.logs) + i)
			c.logs = append(c.logs, *log)
		}
		blk.receipts = append(blk.receipts, receipt)
		c.receipts[receipt.TxHash] = receipt
	}

	c.blocks = append(c.blocks, blk)
}

// balance returns the balance without a copy.
func (c *Chain) balance(account common.Address) *big.Int {
	if bal, exists := c.balances[account]; exists {
		return bal
	}
	return new(big.Int)
}

// newEnv constructs an execution environment for the next block.
func (c *Chain) newEnv(self, from common.Address, value *big.Int, commit bool) *Env {
	if value == nil {
		value = new(big.Int)
	}

	latest := c.blocks[len(c.blocks)-1].header

	env := Env{
		chain:  c,
		commit: commit,
		Self:   self,
		From:   from,
		Value:  new(big.Int).Set(value),
		Time:   latest.Time,
		Block:  latest.Number.Uint64(),
	}

	// Transactions execute in the next block.
	if commit {
		env.Block++
		env.Time = max(c.time, latest.Time+1)
	}

	return &env
}

// effectiveGasPrice returns the price paid per unit of gas.
func effectiveGasPrice(tx *types.Transaction) *big.Int {
	if tx.Type() == types.LegacyTxType {
		return new(big.Int).Set(tx.GasPrice())
	}

	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price.Set(tx.GasFeeCap())
	}
	return price
}

func matchAddress(addresses []common.Address, address common.Address) bool {
	if len(addresses) == 0 {
		return true
	}
	for _, a := range addresses {
		if a == address {
			return true
		}
	}
	return false
}

func matchTopics(query [][]common.Hash, topics []common.Hash) bool {
	for i, options := range query {
		if len(options) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, option := range options {
			if option == topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
