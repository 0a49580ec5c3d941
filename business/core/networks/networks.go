// Package networks maintains the per chain configuration used to deploy and
// drive the contracts. A configuration is selected once at startup by chain
// id and is never mutated afterwards.
package networks

import (
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownNetwork is returned when no configuration exists for a chain id.
var ErrUnknownNetwork = errors.New("unknown network")

// Set of well known chain ids.
const (
	Rinkeby = 4
	Goerli  = 5
	Sepolia = 11155111
	Hardhat = 31337
	Ganache = 1337
)

// Mock parameters for the VRF coordinator deployed on development chains.
var (
	BaseFee                = new(big.Int).Div(big.NewInt(1_000_000_000_000_000_000), big.NewInt(4))
	GasPriceLink           = big.NewInt(1_000_000_000)
	SubscriptionFundAmount = new(big.Int).Mul(big.NewInt(2), big.NewInt(1_000_000_000_000_000_000))
)

// Mock parameters for the price feed aggregator deployed on development
// chains.
const (
	AggregatorDecimals = 8
	AggregatorAnswer   = 2000_00000000
)

// developmentChains lists the network names that receive mocks instead of
// live oracle contracts.
var developmentChains = []string{"hardhat", "localhost", "ganache"}

// Config represents the settings for a single network. The value is
// immutable; big integer fields are only reachable through accessors that
// return copies.
type Config struct {
	Name               string
	ChainID            uint64
	EthUSDPriceFeed    common.Address
	VRFCoordinatorV2   common.Address
	GasLane            common.Hash
	SubscriptionID     uint64
	CallbackGasLimit   uint32
	Interval           time.Duration
	BlockConfirmations uint64

	entranceFee *big.Int
}

// EntranceFee returns the minimum value required to enter the raffle.
func (c Config) EntranceFee() *big.Int {
	if c.entranceFee == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.entranceFee)
}

// ChainIDBig returns the chain id as a big integer for signing.
func (c Config) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// IsDevelopment reports if the network is a local development chain.
func (c Config) IsDevelopment() bool {
	return slices.Contains(developmentChains, c.Name)
}

// Confirmations returns the number of blocks to wait on after a
// deployment. At least one confirmation is always required.
func (c Config) Confirmations() uint64 {
	return max(c.BlockConfirmations, 1)
}

// String implements the fmt.Stringer interface.
func (c Config) String() string {
	return fmt.Sprintf("%s(%d)", c.Name, c.ChainID)
}

// =============================================================================

func entranceFee() *big.Int {
	return new(big.Int).Div(big.NewInt(1_000_000_000_000_000_000), big.NewInt(100))
}

// defaults returns the built in network records.
func defaults() map[uint64]Config {
	return map[uint64]Config{
		Rinkeby: {
			Name:               "rinkeby",
			ChainID:            Rinkeby,
			EthUSDPriceFeed:    common.HexToAddress("0x8A753747A1Fa494EC906cE90E9f37563A8AF630e"),
			VRFCoordinatorV2:   common.HexToAddress("0x6168499c0cFfCaCD319c818142124B7A15E857ab"),
			GasLane:            common.HexToHash("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc"),
			CallbackGasLimit:   500_000,
			Interval:           30 * time.Second,
			BlockConfirmations: 6,
			entranceFee:        entranceFee(),
		},
		Goerli: {
			Name:               "goerli",
			ChainID:            Goerli,
			EthUSDPriceFeed:    common.HexToAddress("0xD4a33860578De61DBAbDc8BFdb98FD742fA7028e"),
			VRFCoordinatorV2:   common.HexToAddress("0x2Ca8E0C643bDe4C2E08ab1fA0da3401AdAD7734D"),
			GasLane:            common.HexToHash("0x79d3d8832d904592c0bf9818b621522c988bb8b0c05cdc3b15aea1b6e8db0c15"),
			CallbackGasLimit:   500_000,
			Interval:           30 * time.Second,
			BlockConfirmations: 6,
			entranceFee:        entranceFee(),
		},
		Sepolia: {
			Name:               "sepolia",
			ChainID:            Sepolia,
			EthUSDPriceFeed:    common.HexToAddress("0x694AA1769357215DE4FAC081bf1f309aDC325306"),
			VRFCoordinatorV2:   common.HexToAddress("0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625"),
			GasLane:            common.HexToHash("0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"),
			CallbackGasLimit:   500_000,
			Interval:           30 * time.Second,
			BlockConfirmations: 6,
			entranceFee:        entranceFee(),
		},
		Hardhat: {
			Name:               "hardhat",
			ChainID:            Hardhat,
			GasLane:            common.HexToHash("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc"),
			CallbackGasLimit:   500_000,
			Interval:           30 * time.Second,
			BlockConfirmations: 1,
			entranceFee:        entranceFee(),
		},
		Ganache: {
			Name:               "ganache",
			ChainID:            Ganache,
			GasLane:            common.HexToHash("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc"),
			CallbackGasLimit:   500_000,
			Interval:           30 * time.Second,
			BlockConfirmations: 1,
			entranceFee:        entranceFee(),
		},
	}
}

// Networks holds the set of known network records.
type Networks struct {
	configs map[uint64]Config
}

// Default returns the built in network records.
func Default() *Networks {
	return &Networks{configs: defaults()}
}

// Select returns the configuration for the specified chain id.
func (n *Networks) Select(chainID uint64) (Config, error) {
	cfg, exists := n.configs[chainID]
	if !exists {
		return Config{}, fmt.Errorf("chain id %d: %w", chainID, ErrUnknownNetwork)
	}

	cfg.entranceFee = cfg.EntranceFee()
	return cfg, nil
}

// ChainIDs returns the sorted list of known chain ids.
func (n *Networks) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(n.configs))
	for id := range n.configs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Select returns the built in configuration for the specified chain id.
func Select(chainID uint64) (Config, error) {
	return Default().Select(chainID)
}
