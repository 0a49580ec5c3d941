package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/simplestorage"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/business/data/deployments"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMockRequired is returned when a development chain deployment needs a
// mock that was not deployed.
var ErrMockRequired = errors.New("mock must be deployed first on a development chain")

// Mocks holds the mock deployments of a development chain.
type Mocks struct {
	Coordinator    deployments.Deployment
	SubscriptionID uint64
	Aggregator     deployments.Deployment
}

// Mocks deploys the VRF coordinator mock and the price feed mock on a
// development chain. An artifact without a name is skipped. Nothing is
// deployed on other networks.
func (d *Deployer) Mocks(ctx context.Context, coordinator contract.Artifact, aggregator contract.Artifact) (Mocks, error) {
	if !d.Network.IsDevelopment() {
		d.log("deploy: mocks: %s is not a development chain: skipping", d.Network.Name)
		return Mocks{}, nil
	}

	d.log("deploy: mocks: local network detected! Deploying mocks...")

	var mocks Mocks

	if coordinator.ContractName != "" {
		dep, err := d.Run(ctx, Plan{
			Artifact: coordinator,
			Args:     vrfmock.ConstructorArgs(networks.BaseFee, networks.GasPriceLink),
		})
		if err != nil {
			return Mocks{}, err
		}
		mocks.Coordinator = dep
	}

	if aggregator.ContractName != "" {
		dep, err := d.Run(ctx, Plan{
			Artifact: aggregator,
			Args:     fundme.AggregatorConstructorArgs(networks.AggregatorDecimals, big.NewInt(networks.AggregatorAnswer)),
		})
		if err != nil {
			return Mocks{}, err
		}
		mocks.Aggregator = dep
	}

	d.log("deploy: mocks: deployed!")

	return mocks, nil
}

// Raffle deploys the raffle. On a development chain the recorded coordinator
// mock is used: a subscription is created and funded for the raffle and the
// raffle is added as its consumer. Other networks use the configured
// coordinator and subscription.
func (d *Deployer) Raffle(ctx context.Context, art contract.Artifact) (deployments.Deployment, error) {
	coordAddr := d.Network.VRFCoordinatorV2
	subID := d.Network.SubscriptionID

	var coordinator *vrfmock.Coordinator
	if d.Network.IsDevelopment() {
		mock, err := d.Lookup(ctx, vrfmock.ContractName)
		if err != nil {
			return deployments.Deployment{}, fmt.Errorf("%s: %w: %w", vrfmock.ContractName, ErrMockRequired, err)
		}

		coordAddr = mock.Address
		coordinator = vrfmock.New(d.Client, coordAddr)

		if subID, err = coordinator.CreateSubscription(ctx); err != nil {
			return deployments.Deployment{}, fmt.Errorf("create subscription: %w", err)
		}

		d.log("deploy: raffle: subscription[%d] created", subID)

		tx, err := coordinator.FundSubscription(ctx, subID, networks.SubscriptionFundAmount)
		if err != nil {
			return deployments.Deployment{}, fmt.Errorf("fund subscription: %w", err)
		}
		if _, err := d.Client.WaitMined(ctx, tx); err != nil {
			return deployments.Deployment{}, fmt.Errorf("fund subscription: %w", err)
		}
	}

	if coordAddr == (common.Address{}) {
		return deployments.Deployment{}, fmt.Errorf("network %s has no VRF coordinator configured", d.Network.Name)
	}

	dep, err := d.Run(ctx, Plan{
		Artifact: art,
		Args:     raffle.ConstructorArgs(d.Network, coordAddr, subID),
	})
	if err != nil {
		return deployments.Deployment{}, err
	}

	if coordinator != nil {
		tx, err := coordinator.AddConsumer(ctx, subID, dep.Address)
		if err != nil {
			return dep, fmt.Errorf("add consumer: %w", err)
		}
		if _, err := d.Client.WaitMined(ctx, tx); err != nil {
			return dep, fmt.Errorf("add consumer: %w", err)
		}

		d.log("deploy: raffle: added as consumer of subscription[%d]", subID)
	}

	return dep, nil
}

// FundMe deploys FundMe against the recorded price feed mock on a
// development chain or the configured ETH/USD feed on other networks.
func (d *Deployer) FundMe(ctx context.Context, art contract.Artifact) (deployments.Deployment, error) {
	priceFeed := d.Network.EthUSDPriceFeed

	if d.Network.IsDevelopment() {
		mock, err := d.Lookup(ctx, fundme.AggregatorName)
		if err != nil {
			return deployments.Deployment{}, fmt.Errorf("%s: %w: %w", fundme.AggregatorName, ErrMockRequired, err)
		}
		priceFeed = mock.Address
	}

	if priceFeed == (common.Address{}) {
		return deployments.Deployment{}, fmt.Errorf("network %s has no price feed configured", d.Network.Name)
	}

	return d.Run(ctx, Plan{
		Artifact: art,
		Args:     fundme.ConstructorArgs(priceFeed),
	})
}

// SimpleStorage deploys the embedded SimpleStorage contract and checks it by
// storing a favorite number.
func (d *Deployer) SimpleStorage(ctx context.Context, favoriteNumber *big.Int) (deployments.Deployment, error) {
	art, err := simplestorage.Artifact()
	if err != nil {
		return deployments.Deployment{}, err
	}

	smoke := func(ctx context.Context, dep deployments.Deployment) error {
		ss, err := simplestorage.New(d.Client, dep.Address)
		if err != nil {
			return err
		}

		current, err := ss.Retrieve(ctx)
		if err != nil {
			return err
		}
		d.log("deploy: simple storage: current value is: %s", current)

		tx, err := ss.Store(ctx, favoriteNumber)
		if err != nil {
			return err
		}
		if _, err := d.Client.WaitMined(ctx, tx); err != nil {
			return err
		}

		updated, err := ss.Retrieve(ctx)
		if err != nil {
			return err
		}
		d.log("deploy: simple storage: updated value is: %s", updated)

		if updated.Cmp(favoriteNumber) != 0 {
			return fmt.Errorf("stored %s, retrieved %s", favoriteNumber, updated)
		}

		return nil
	}

	return d.Run(ctx, Plan{Artifact: art, SmokeTest: smoke})
}
