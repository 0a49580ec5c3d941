package fundme

import (
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI is the interface of the deployed FundMe contract.
const ABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"internalType":"address","name":"priceFeedAddress","type":"address"}
	]},
	{"type":"error","name":"FundMe__NotOwner","inputs":[]},
	{"type":"fallback","stateMutability":"payable"},
	{"type":"receive","stateMutability":"payable"},
	{"type":"function","name":"MINIMUM_USD","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"cheaperWithdraw","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"fund","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"getAddressToAmountFunded","stateMutability":"view",
		"inputs":[{"internalType":"address","name":"fundingAddress","type":"address"}],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"getFunders","stateMutability":"view",
		"inputs":[{"internalType":"uint256","name":"index","type":"uint256"}],
		"outputs":[{"internalType":"address","name":"","type":"address"}]},
	{"type":"function","name":"getOwner","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"address","name":"","type":"address"}]},
	{"type":"function","name":"getPriceFeed","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"contract AggregatorV3Interface","name":"","type":"address"}]},
	{"type":"function","name":"getVersion","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"withdraw","stateMutability":"payable","inputs":[],"outputs":[]}
]`

// AggregatorABI is the interface of the MockV3Aggregator price feed used on
// development chains. It is a subset of AggregatorV3Interface.
const AggregatorABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"internalType":"uint8","name":"_decimals","type":"uint8"},
		{"internalType":"int256","name":"_initialAnswer","type":"int256"}
	]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint8","name":"","type":"uint8"}]},
	{"type":"function","name":"description","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"string","name":"","type":"string"}]},
	{"type":"function","name":"latestAnswer","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"int256","name":"","type":"int256"}]},
	{"type":"function","name":"latestRoundData","stateMutability":"view","inputs":[],
		"outputs":[
			{"internalType":"uint80","name":"roundId","type":"uint80"},
			{"internalType":"int256","name":"answer","type":"int256"},
			{"internalType":"uint256","name":"startedAt","type":"uint256"},
			{"internalType":"uint256","name":"updatedAt","type":"uint256"},
			{"internalType":"uint80","name":"answeredInRound","type":"uint80"}
		]},
	{"type":"function","name":"updateAnswer","stateMutability":"nonpayable",
		"inputs":[{"internalType":"int256","name":"_answer","type":"int256"}],"outputs":[]},
	{"type":"function","name":"version","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]}
]`

var (
	contractABI   = contract.MustParseABI(ABI)
	aggregatorABI = contract.MustParseABI(AggregatorABI)
)

// ContractABI returns the parsed FundMe ABI.
func ContractABI() abi.ABI {
	return contractABI
}

// AggregatorContractABI returns the parsed price feed ABI.
func AggregatorContractABI() abi.ABI {
	return aggregatorABI
}
