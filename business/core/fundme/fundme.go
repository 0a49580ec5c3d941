// Package fundme provides typed access to a deployed FundMe contract and the
// price feed it converts contributions with. Anyone can fund with at least
// the minimum USD value; only the owner can withdraw.
package fundme

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Names the contracts are deployed and recorded under.
const (
	ContractName   = "FundMe"
	AggregatorName = "MockV3Aggregator"
)

// Revert represents a revert raised by the contract.
type Revert string

// Error implements the error interface.
func (r Revert) Error() string {
	return string(r)
}

// Set of reverts the contract can raise.
var (
	ErrNotOwner       = Revert("FundMe__NotOwner")
	ErrNotEnoughFunds = Revert("You need to spend more ETH!")
)

var reverts = []Revert{ErrNotOwner, ErrNotEnoughFunds}

func classify(err error) error {
	if err == nil {
		return nil
	}

	reason := ethereum.RevertReason(err, contractABI)
	for _, r := range reverts {
		if reason == string(r) {
			return fmt.Errorf("%w: %w", r, err)
		}
	}

	return err
}

// MinimumUSD is the smallest contribution accepted, in USD with 18 decimals.
var MinimumUSD = new(big.Int).Mul(big.NewInt(50), big.NewInt(1e18))

// USDValue converts the wei amount to USD with 18 decimals using a price
// feed answer carrying the specified number of decimals.
func USDValue(wei *big.Int, answer *big.Int, decimals uint8) *big.Int {
	price := new(big.Int).Set(answer)
	switch {
	case decimals < 18:
		price.Mul(price, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil))
	case decimals > 18:
		price.Div(price, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil))
	}

	usd := new(big.Int).Mul(price, wei)
	return usd.Div(usd, big.NewInt(1e18))
}

// =============================================================================

// FundMe provides access to a deployed FundMe contract.
type FundMe struct {
	client *ethereum.Client
	handle *contract.Handle
}

// New constructs a FundMe handle for the contract at the address.
func New(client *ethereum.Client, address common.Address) *FundMe {
	return &FundMe{
		client: client,
		handle: contract.New(address, contractABI, client.Backend()),
	}
}

// Address returns the address of the contract.
func (f *FundMe) Address() common.Address {
	return f.handle.Address()
}

// Fund contributes the value. The contract reverts with ErrNotEnoughFunds
// below the minimum USD value.
func (f *FundMe) Fund(ctx context.Context, value *big.Int) (*types.Transaction, error) {
	opts, err := f.client.TransactOpts(ctx, value)
	if err != nil {
		return nil, err
	}

	tx, err := f.handle.Transact(opts, "fund")
	return tx, classify(err)
}

// Withdraw sends the contract balance to the owner and resets the funders.
func (f *FundMe) Withdraw(ctx context.Context) (*types.Transaction, error) {
	return f.transact(ctx, "withdraw")
}

// CheaperWithdraw is Withdraw reading the funders from memory.
func (f *FundMe) CheaperWithdraw(ctx context.Context) (*types.Transaction, error) {
	return f.transact(ctx, "cheaperWithdraw")
}

// PriceFeed returns the address of the price feed the contract uses.
func (f *FundMe) PriceFeed(ctx context.Context) (common.Address, error) {
	return f.callAddress(ctx, "getPriceFeed")
}

// Owner returns the account allowed to withdraw.
func (f *FundMe) Owner(ctx context.Context) (common.Address, error) {
	return f.callAddress(ctx, "getOwner")
}

// Funder returns the funder at the specified index. The call reverts past
// the end of the list.
func (f *FundMe) Funder(ctx context.Context, index uint64) (common.Address, error) {
	return f.callAddress(ctx, "getFunders", new(big.Int).SetUint64(index))
}

// AmountFunded returns the total contributed by the account since the last
// withdraw.
func (f *FundMe) AmountFunded(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := f.handle.Call(f.client.CallOpts(ctx), "getAddressToAmountFunded", account)
	if err != nil {
		return nil, classify(err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (f *FundMe) transact(ctx context.Context, method string) (*types.Transaction, error) {
	opts, err := f.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}

	tx, err := f.handle.Transact(opts, method)
	return tx, classify(err)
}

func (f *FundMe) callAddress(ctx context.Context, method string, args ...any) (common.Address, error) {
	out, err := f.handle.Call(f.client.CallOpts(ctx), method, args...)
	if err != nil {
		return common.Address{}, classify(err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// ConstructorArgs returns the deployment arguments.
func ConstructorArgs(priceFeed common.Address) []any {
	return []any{priceFeed}
}

// =============================================================================

// Aggregator provides access to an ETH/USD price feed.
type Aggregator struct {
	client *ethereum.Client
	handle *contract.Handle
}

// NewAggregator constructs a price feed handle for the address.
func NewAggregator(client *ethereum.Client, address common.Address) *Aggregator {
	return &Aggregator{
		client: client,
		handle: contract.New(address, aggregatorABI, client.Backend()),
	}
}

// Address returns the address of the feed.
func (a *Aggregator) Address() common.Address {
	return a.handle.Address()
}

// Decimals returns the number of decimals in an answer.
func (a *Aggregator) Decimals(ctx context.Context) (uint8, error) {
	out, err := a.handle.Call(a.client.CallOpts(ctx), "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// LatestAnswer returns the answer of the latest round.
func (a *Aggregator) LatestAnswer(ctx context.Context) (*big.Int, error) {
	out, err := a.handle.Call(a.client.CallOpts(ctx), "latestRoundData")
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[1], new(big.Int)).(*big.Int), nil
}

// UpdateAnswer sets a new answer on the mock feed.
func (a *Aggregator) UpdateAnswer(ctx context.Context, answer *big.Int) (*types.Transaction, error) {
	opts, err := a.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}
	return a.handle.Transact(opts, "updateAnswer", answer)
}

// USDValue converts the wei amount with the latest answer.
func (a *Aggregator) USDValue(ctx context.Context, wei *big.Int) (*big.Int, error) {
	decimals, err := a.Decimals(ctx)
	if err != nil {
		return nil, err
	}

	answer, err := a.LatestAnswer(ctx)
	if err != nil {
		return nil, err
	}

	return USDValue(wei, answer, decimals), nil
}

// AggregatorConstructorArgs returns the deployment arguments for the mock
// feed.
func AggregatorConstructorArgs(decimals uint8, answer *big.Int) []any {
	return []any{decimals, answer}
}
