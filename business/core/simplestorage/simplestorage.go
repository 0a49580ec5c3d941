// Package simplestorage provides typed access to the SimpleStorage contract,
// the first contract the tooling deploys. The compiled artifact is embedded
// so it can be deployed without a build step.
package simplestorage

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractName is the name the contract is deployed and recorded under.
const ContractName = "SimpleStorage"

//go:embed SimpleStorage.json
var artifactJSON []byte

// Artifact returns the embedded compiled contract.
func Artifact() (contract.Artifact, error) {
	return contract.ParseArtifact(artifactJSON, ContractName)
}

// Person is an entry in the people list.
type Person struct {
	FavoriteNumber *big.Int
	Name           string
}

// SimpleStorage provides access to a deployed SimpleStorage contract.
type SimpleStorage struct {
	client *ethereum.Client
	handle *contract.Handle
}

// New constructs a handle for the contract at the address using the
// embedded ABI.
func New(client *ethereum.Client, address common.Address) (*SimpleStorage, error) {
	art, err := Artifact()
	if err != nil {
		return nil, err
	}

	ss := SimpleStorage{
		client: client,
		handle: contract.New(address, art.ABI, client.Backend()),
	}

	return &ss, nil
}

// Deploy submits the deployment of the embedded artifact. The handle is
// usable once the transaction is mined.
func Deploy(ctx context.Context, client *ethereum.Client) (*SimpleStorage, *types.Transaction, error) {
	art, err := Artifact()
	if err != nil {
		return nil, nil, err
	}

	opts, err := client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	handle, tx, err := contract.Deploy(opts, art, client.Backend())
	if err != nil {
		return nil, nil, err
	}

	return &SimpleStorage{client: client, handle: handle}, tx, nil
}

// Address returns the address of the contract.
func (ss *SimpleStorage) Address() common.Address {
	return ss.handle.Address()
}

// Retrieve returns the stored favorite number.
func (ss *SimpleStorage) Retrieve(ctx context.Context) (*big.Int, error) {
	out, err := ss.handle.Call(ss.client.CallOpts(ctx), "retrieve")
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Store replaces the favorite number.
func (ss *SimpleStorage) Store(ctx context.Context, favoriteNumber *big.Int) (*types.Transaction, error) {
	opts, err := ss.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}
	return ss.handle.Transact(opts, "store", favoriteNumber)
}

// AddPerson appends a person and records their favorite number by name.
func (ss *SimpleStorage) AddPerson(ctx context.Context, name string, favoriteNumber *big.Int) (*types.Transaction, error) {
	opts, err := ss.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}
	return ss.handle.Transact(opts, "addPerson", name, favoriteNumber)
}

// FavoriteNumber returns the favorite number recorded for the name. Unknown
// names return zero.
func (ss *SimpleStorage) FavoriteNumber(ctx context.Context, name string) (*big.Int, error) {
	out, err := ss.handle.Call(ss.client.CallOpts(ctx), "nameToFavoriteNumber", name)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Person returns the person at the index.
func (ss *SimpleStorage) Person(ctx context.Context, index uint64) (Person, error) {
	out, err := ss.handle.Call(ss.client.CallOpts(ctx), "people", new(big.Int).SetUint64(index))
	if err != nil {
		return Person{}, fmt.Errorf("person %d: %w", index, err)
	}

	p := Person{
		FavoriteNumber: abi.ConvertType(out[0], new(big.Int)).(*big.Int),
		Name:           *abi.ConvertType(out[1], new(string)).(*string),
	}

	return p, nil
}
