package fundmetest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ethereum/go-ethereum/common"
)

// Funders is the number of funding accounts a fixture creates besides the
// owner.
const Funders = 5

const pollInterval = 5 * time.Millisecond

// Fixture is a development chain with the mock price feed and FundMe
// deployed by the owner.
type Fixture struct {
	Chain      *ethtest.Chain
	Owner      *ethereum.Client
	Funders    []*ethereum.Client
	FundMe     *fundme.FundMe
	Aggregator *fundme.Aggregator
}

// Deploy builds the fixture on a new in-memory chain.
func Deploy(ctx context.Context) (*Fixture, error) {
	ownerKey, ownerAddr := ethtest.NewKey()
	accounts := []common.Address{ownerAddr}

	keys := make([]*ecdsa.PrivateKey, 0, Funders)
	for range Funders {
		key, addr := ethtest.NewKey()
		keys = append(keys, key)
		accounts = append(accounts, addr)
	}

	chain := ethtest.New(accounts...)
	Register(chain)

	owner, err := ethereum.NewClient(ctx, chain, ownerKey, ethereum.WithPollInterval(pollInterval))
	if err != nil {
		return nil, err
	}

	aggAddr, err := deploy(ctx, owner, AggregatorArtifact(), fundme.AggregatorConstructorArgs(networks.AggregatorDecimals, big.NewInt(networks.AggregatorAnswer))...)
	if err != nil {
		return nil, err
	}

	fundAddr, err := deploy(ctx, owner, FundMeArtifact(), fundme.ConstructorArgs(aggAddr)...)
	if err != nil {
		return nil, err
	}

	f := Fixture{
		Chain:      chain,
		Owner:      owner,
		FundMe:     fundme.New(owner, fundAddr),
		Aggregator: fundme.NewAggregator(owner, aggAddr),
	}

	for _, key := range keys {
		client, err := ethereum.NewClient(ctx, chain, key, ethereum.WithPollInterval(pollInterval))
		if err != nil {
			return nil, err
		}
		f.Funders = append(f.Funders, client)
	}

	return &f, nil
}

// FundMeAs returns a FundMe handle that signs with the client.
func (f *Fixture) FundMeAs(client *ethereum.Client) *fundme.FundMe {
	return fundme.New(client, f.FundMe.Address())
}

// Model returns the FundMe model for direct assertions.
func (f *Fixture) Model() *FundMe {
	return f.Chain.Contract(f.FundMe.Address()).(*FundMe)
}

func deploy(ctx context.Context, client *ethereum.Client, art contract.Artifact, args ...any) (common.Address, error) {
	opts, err := client.TransactOpts(ctx, nil)
	if err != nil {
		return common.Address{}, err
	}

	handle, tx, err := contract.Deploy(opts, art, client.Backend(), args...)
	if err != nil {
		return common.Address{}, err
	}

	if _, err := client.WaitMined(ctx, tx); err != nil {
		return common.Address{}, fmt.Errorf("deploy %s: %w", art.ContractName, err)
	}

	return handle.Address(), nil
}
