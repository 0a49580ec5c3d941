package networks

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// override represents the settings for a network in an override file. Any
// field left out keeps the built in value.
type override struct {
	Name               *string         `json:"name"`
	EthUSDPriceFeed    *common.Address `json:"ethUsdPriceFeed"`
	VRFCoordinatorV2   *common.Address `json:"vrfCoordinatorV2"`
	GasLane            *common.Hash    `json:"gasLane"`
	SubscriptionID     *uint64         `json:"subscriptionId"`
	CallbackGasLimit   *uint32         `json:"callbackGasLimit"`
	IntervalSeconds    *uint64         `json:"interval"`
	BlockConfirmations *uint64         `json:"blockConfirmations"`
	EntranceFeeWei     *string         `json:"entranceFee"`
}

// Load reads the override file keyed by chain id and merges it on top of
// the built in records. An empty path returns the built in records.
//
//	{
//	  "11155111": { "subscriptionId": 1234 },
//	  "8545": { "name": "localhost", "interval": 10 }
//	}
func Load(path string) (*Networks, error) {
	n := Default()
	if path == "" {
		return n, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read networks file: %w", err)
	}

	var overrides map[string]override
	if err := json.Unmarshal(content, &overrides); err != nil {
		return nil, fmt.Errorf("decode networks file: %w", err)
	}

	for key, ov := range overrides {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("networks file: chain id %q: %w", key, err)
		}

		cfg, exists := n.configs[chainID]
		if !exists {
			if ov.Name == nil {
				return nil, fmt.Errorf("networks file: chain id %d: new networks require a name", chainID)
			}
			cfg = Config{ChainID: chainID, BlockConfirmations: 1, entranceFee: entranceFee()}
		}

		if err := ov.apply(&cfg); err != nil {
			return nil, fmt.Errorf("networks file: chain id %d: %w", chainID, err)
		}

		n.configs[chainID] = cfg
	}

	return n, nil
}

func (ov override) apply(cfg *Config) error {
	if ov.Name != nil {
		cfg.Name = *ov.Name
	}
	if ov.EthUSDPriceFeed != nil {
		cfg.EthUSDPriceFeed = *ov.EthUSDPriceFeed
	}
	if ov.VRFCoordinatorV2 != nil {
		cfg.VRFCoordinatorV2 = *ov.VRFCoordinatorV2
	}
	if ov.GasLane != nil {
		cfg.GasLane = *ov.GasLane
	}
	if ov.SubscriptionID != nil {
		cfg.SubscriptionID = *ov.SubscriptionID
	}
	if ov.CallbackGasLimit != nil {
		cfg.CallbackGasLimit = *ov.CallbackGasLimit
	}
	if ov.IntervalSeconds != nil {
		cfg.Interval = time.Duration(*ov.IntervalSeconds) * time.Second
	}
	if ov.BlockConfirmations != nil {
		cfg.BlockConfirmations = *ov.BlockConfirmations
	}
	if ov.EntranceFeeWei != nil {
		fee, ok := new(big.Int).SetString(*ov.EntranceFeeWei, 10)
		if !ok || fee.Sign() < 0 {
			return fmt.Errorf("invalid entrance fee %q", *ov.EntranceFeeWei)
		}
		cfg.entranceFee = fee
	}

	return nil
}
