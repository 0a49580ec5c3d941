// Package contract constructs handles for deployed contracts from their ABI
// and provides the calls, transactions and event decoding shared by the
// typed contract packages.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Set of errors for resolving names against an ABI.
var (
	ErrMethodNotFound = errors.New("method not found")
	ErrEventNotFound  = errors.New("event not found")
)

// Handle represents a contract deployed at an address.
type Handle struct {
	address  common.Address
	abi      abi.ABI
	backend  bind.ContractBackend
	contract *bind.BoundContract
}

// New constructs a handle for the contract at the specified address.
func New(address common.Address, contractABI abi.ABI, backend bind.ContractBackend) *Handle {
	return &Handle{
		address:  address,
		abi:      contractABI,
		backend:  backend,
		contract: bind.NewBoundContract(address, contractABI, backend, backend, backend),
	}
}

// Address returns the address of the contract.
func (h *Handle) Address() common.Address {
	return h.address
}

// ABI returns the ABI of the contract.
func (h *Handle) ABI() abi.ABI {
	return h.abi
}

// Call executes a read only method and returns its outputs.
func (h *Handle) Call(opts *bind.CallOpts, method string, args ...any) ([]any, error) {
	if _, exists := h.abi.Methods[method]; !exists {
		return nil, fmt.Errorf("%s: %w", method, ErrMethodNotFound)
	}

	var out []any
	if err := h.contract.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	return out, nil
}

// Transact signs and submits a transaction invoking the method.
func (h *Handle) Transact(opts *bind.TransactOpts, method string, args ...any) (*types.Transaction, error) {
	if _, exists := h.abi.Methods[method]; !exists {
		return nil, fmt.Errorf("%s: %w", method, ErrMethodNotFound)
	}

	tx, err := h.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("transact %s: %w", method, err)
	}

	return tx, nil
}

// UnpackEvent decodes the log into out, which must be a pointer to a
// struct with fields matching the event arguments.
func (h *Handle) UnpackEvent(out any, event string, log types.Log) error {
	if _, exists := h.abi.Events[event]; !exists {
		return fmt.Errorf("%s: %w", event, ErrEventNotFound)
	}

	if err := h.contract.UnpackLog(out, event, log); err != nil {
		return fmt.Errorf("unpack %s: %w", event, err)
	}

	return nil
}

// Events returns the logs in the receipt emitted by this contract for the
// named event, in the order they were emitted.
func (h *Handle) Events(receipt *types.Receipt, event string) ([]types.Log, error) {
	ev, exists := h.abi.Events[event]
	if !exists {
		return nil, fmt.Errorf("%s: %w", event, ErrEventNotFound)
	}

	var logs []types.Log
	for _, log := range receipt.Logs {
		if log.Address != h.address || len(log.Topics) == 0 || log.Topics[0] != ev.ID {
			continue
		}
		logs = append(logs, *log)
	}

	return logs, nil
}

// FilterEvents returns the logs of the named event emitted by this contract
// from the specified block onward.
func (h *Handle) FilterEvents(ctx context.Context, event string, fromBlock uint64) ([]types.Log, error) {
	if _, exists := h.abi.Events[event]; !exists {
		return nil, fmt.Errorf("%s: %w", event, ErrEventNotFound)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{h.address},
		Topics:    [][]common.Hash{{h.abi.Events[event].ID}},
	}

	logs, err := h.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", event, err)
	}

	return logs, nil
}

// =============================================================================

// ParseABI parses the JSON ABI definition.
func ParseABI(abiJSON string) (abi.ABI, error) {
	contractABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}

	return contractABI, nil
}

// MustParseABI parses the JSON ABI definition and panics on failure. It is
// meant for ABIs embedded at compile time.
func MustParseABI(abiJSON string) abi.ABI {
	contractABI, err := ParseABI(abiJSON)
	if err != nil {
		panic(err)
	}
	return contractABI
}

// PackConstructor encodes the constructor arguments the way they follow the
// bytecode in a deployment transaction.
func PackConstructor(contractABI abi.ABI, args ...any) ([]byte, error) {
	packed, err := contractABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor: %w", err)
	}

	return packed, nil
}
