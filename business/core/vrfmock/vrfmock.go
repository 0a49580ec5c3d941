// Package vrfmock provides access to the VRF coordinator mock deployed on
// development chains. It stands in for the Chainlink coordinator: it hands
// out subscriptions and answers randomness requests when told to.
package vrfmock

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractName is the name the mock is deployed and recorded under.
const ContractName = "VRFCoordinatorV2Mock"

// Subscription is the state of a coordinator subscription.
type Subscription struct {
	Balance   *big.Int
	Requests  uint64
	Owner     common.Address
	Consumers []common.Address
}

// Coordinator provides access to a deployed coordinator mock.
type Coordinator struct {
	client *ethereum.Client
	handle *contract.Handle
}

// New constructs a coordinator handle for the contract at the address.
func New(client *ethereum.Client, address common.Address) *Coordinator {
	return &Coordinator{
		client: client,
		handle: contract.New(address, contractABI, client.Backend()),
	}
}

// Address returns the address of the coordinator.
func (c *Coordinator) Address() common.Address {
	return c.handle.Address()
}

// CreateSubscription creates a subscription and returns its id once the
// transaction is mined.
func (c *Coordinator) CreateSubscription(ctx context.Context) (uint64, error) {
	opts, err := c.client.TransactOpts(ctx, nil)
	if err != nil {
		return 0, err
	}

	tx, err := c.handle.Transact(opts, "createSubscription")
	if err != nil {
		return 0, err
	}

	receipt, err := c.client.WaitMined(ctx, tx)
	if err != nil {
		return 0, err
	}

	return c.SubscriptionID(receipt)
}

// SubscriptionID decodes the subscription id from a createSubscription
// receipt.
func (c *Coordinator) SubscriptionID(receipt *types.Receipt) (uint64, error) {
	logs, err := c.handle.Events(receipt, "SubscriptionCreated")
	if err != nil {
		return 0, err
	}
	if len(logs) == 0 {
		return 0, errors.New("receipt has no SubscriptionCreated event")
	}

	var ev struct {
		SubId uint64
		Owner common.Address
	}
	if err := c.handle.UnpackEvent(&ev, "SubscriptionCreated", logs[0]); err != nil {
		return 0, err
	}

	return ev.SubId, nil
}

// FundSubscription adds LINK to the subscription. No token moves on the
// mock; the amount is only accounted.
func (c *Coordinator) FundSubscription(ctx context.Context, subID uint64, amount *big.Int) (*types.Transaction, error) {
	opts, err := c.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}

	return c.handle.Transact(opts, "fundSubscription", subID, amount)
}

// AddConsumer allows the consumer contract to request randomness against
// the subscription.
func (c *Coordinator) AddConsumer(ctx context.Context, subID uint64, consumer common.Address) (*types.Transaction, error) {
	opts, err := c.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}

	return c.handle.Transact(opts, "addConsumer", subID, consumer)
}

// FulfillRandomWords answers the request by calling back into the consumer.
// The coordinator reverts with "nonexistent request" for an unknown id.
func (c *Coordinator) FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*types.Transaction, error) {
	opts, err := c.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}

	return c.handle.Transact(opts, "fulfillRandomWords", requestID, consumer)
}

// Fulfilled decodes the fulfillment result from a fulfillRandomWords
// receipt. The consumer callback can fail without reverting the
// fulfillment, so success must be checked.
func (c *Coordinator) Fulfilled(receipt *types.Receipt) (requestID *big.Int, success bool, err error) {
	logs, err := c.handle.Events(receipt, "RandomWordsFulfilled")
	if err != nil {
		return nil, false, err
	}
	if len(logs) == 0 {
		return nil, false, errors.New("receipt has no RandomWordsFulfilled event")
	}

	var ev struct {
		RequestId  *big.Int
		OutputSeed *big.Int
		Payment    *big.Int
		Success    bool
	}
	if err := c.handle.UnpackEvent(&ev, "RandomWordsFulfilled", logs[0]); err != nil {
		return nil, false, err
	}

	return ev.RequestId, ev.Success, nil
}

// Subscription returns the state of the subscription.
func (c *Coordinator) Subscription(ctx context.Context, subID uint64) (Subscription, error) {
	out, err := c.handle.Call(c.client.CallOpts(ctx), "getSubscription", subID)
	if err != nil {
		return Subscription{}, fmt.Errorf("subscription %d: %w", subID, err)
	}

	sub := Subscription{
		Balance:   abi.ConvertType(out[0], new(big.Int)).(*big.Int),
		Requests:  *abi.ConvertType(out[1], new(uint64)).(*uint64),
		Owner:     *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		Consumers: *abi.ConvertType(out[3], new([]common.Address)).(*[]common.Address),
	}

	return sub, nil
}

// ConstructorArgs returns the deployment arguments using the mock fees.
func ConstructorArgs(baseFee *big.Int, gasPriceLink *big.Int) []any {
	return []any{baseFee, gasPriceLink}
}
