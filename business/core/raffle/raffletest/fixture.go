package raffletest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ethereum/go-ethereum/common"
)

// PollInterval is used by the fixture clients so waits resolve quickly.
const PollInterval = 5 * time.Millisecond

// Fixture is a development chain with the coordinator mock and a raffle
// deployed and wired together.
type Fixture struct {
	Chain          *ethtest.Chain
	Config         networks.Config
	Deployer       *ethereum.Client
	Player         *ethereum.Client
	DeployerKey    *ecdsa.PrivateKey
	PlayerKey      *ecdsa.PrivateKey
	Raffle         *raffle.Raffle
	Coordinator    *vrfmock.Coordinator
	SubscriptionID uint64
}

// Deploy builds the fixture on a new in-memory chain.
func Deploy(ctx context.Context) (*Fixture, error) {
	cfg, err := networks.Select(networks.Ganache)
	if err != nil {
		return nil, err
	}

	deployerKey, deployerAddr := ethtest.NewKey()
	playerKey, playerAddr := ethtest.NewKey()

	chain := ethtest.New(deployerAddr, playerAddr)
	Register(chain)

	deployer, err := ethereum.NewClient(ctx, chain, deployerKey, ethereum.WithPollInterval(PollInterval))
	if err != nil {
		return nil, err
	}

	player, err := ethereum.NewClient(ctx, chain, playerKey, ethereum.WithPollInterval(PollInterval))
	if err != nil {
		return nil, err
	}

	coordAddr, err := deploy(ctx, deployer, CoordinatorArtifact(), vrfmock.ConstructorArgs(networks.BaseFee, networks.GasPriceLink)...)
	if err != nil {
		return nil, err
	}
	coordinator := vrfmock.New(deployer, coordAddr)

	subID, err := coordinator.CreateSubscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	tx, err := coordinator.FundSubscription(ctx, subID, networks.SubscriptionFundAmount)
	if err != nil {
		return nil, fmt.Errorf("fund subscription: %w", err)
	}
	if _, err := deployer.WaitMined(ctx, tx); err != nil {
		return nil, err
	}

	raffleAddr, err := deploy(ctx, deployer, RaffleArtifact(), raffle.ConstructorArgs(cfg, coordAddr, subID)...)
	if err != nil {
		return nil, err
	}

	tx, err = coordinator.AddConsumer(ctx, subID, raffleAddr)
	if err != nil {
		return nil, fmt.Errorf("add consumer: %w", err)
	}
	if _, err := deployer.WaitMined(ctx, tx); err != nil {
		return nil, err
	}

	f := Fixture{
		Chain:          chain,
		Config:         cfg,
		Deployer:       deployer,
		Player:         player,
		DeployerKey:    deployerKey,
		PlayerKey:      playerKey,
		Raffle:         raffle.New(deployer, raffleAddr),
		Coordinator:    coordinator,
		SubscriptionID: subID,
	}

	return &f, nil
}

// PlayerRaffle returns a raffle handle that signs as the player.
func (f *Fixture) PlayerRaffle() *raffle.Raffle {
	return raffle.New(f.Player, f.Raffle.Address())
}

// Model returns the raffle model for direct assertions.
func (f *Fixture) Model() *Raffle {
	return f.Chain.Contract(f.Raffle.Address()).(*Raffle)
}

// PassInterval moves the clock past the raffle interval and mines a block
// so read only calls see the new time.
func (f *Fixture) PassInterval() {
	f.Chain.AdjustTime(f.Config.Interval + time.Second)
	f.Chain.Mine(1)
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
