package vrfmock

import (
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI is the interface of the VRFCoordinatorV2Mock contract.
const ABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"internalType":"uint96","name":"_baseFee","type":"uint96"},
		{"internalType":"uint96","name":"_gasPriceLink","type":"uint96"}
	]},
	{"type":"error","name":"InsufficientBalance","inputs":[]},
	{"type":"error","name":"InvalidConsumer","inputs":[]},
	{"type":"error","name":"InvalidRandomWords","inputs":[]},
	{"type":"error","name":"InvalidSubscription","inputs":[]},
	{"type":"error","name":"MustBeSubOwner","inputs":[
		{"internalType":"address","name":"owner","type":"address"}
	]},
	{"type":"error","name":"TooManyConsumers","inputs":[]},
	{"type":"event","name":"ConsumerAdded","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint64","name":"subId","type":"uint64"},
		{"indexed":false,"internalType":"address","name":"consumer","type":"address"}
	]},
	{"type":"event","name":"RandomWordsFulfilled","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint256","name":"requestId","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"outputSeed","type":"uint256"},
		{"indexed":false,"internalType":"uint96","name":"payment","type":"uint96"},
		{"indexed":false,"internalType":"bool","name":"success","type":"bool"}
	]},
	{"type":"event","name":"RandomWordsRequested","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"bytes32","name":"keyHash","type":"bytes32"},
		{"indexed":false,"internalType":"uint256","name":"requestId","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"preSeed","type":"uint256"},
		{"indexed":true,"internalType":"uint64","name":"subId","type":"uint64"},
		{"indexed":false,"internalType":"uint16","name":"minimumRequestConfirmations","type":"uint16"},
		{"indexed":false,"internalType":"uint32","name":"callbackGasLimit","type":"uint32"},
		{"indexed":false,"internalType":"uint32","name":"numWords","type":"uint32"},
		{"indexed":true,"internalType":"address","name":"sender","type":"address"}
	]},
	{"type":"event","name":"SubscriptionCreated","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint64","name":"subId","type":"uint64"},
		{"indexed":false,"internalType":"address","name":"owner","type":"address"}
	]},
	{"type":"event","name":"SubscriptionFunded","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint64","name":"subId","type":"uint64"},
		{"indexed":false,"internalType":"uint256","name":"oldBalance","type":"uint256"},
		{"indexed":false,"internalType":"uint256","name":"newBalance","type":"uint256"}
	]},
	{"type":"function","name":"BASE_FEE","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint96","name":"","type":"uint96"}]},
	{"type":"function","name":"GAS_PRICE_LINK","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint96","name":"","type":"uint96"}]},
	{"type":"function","name":"addConsumer","stateMutability":"nonpayable","inputs":[
		{"internalType":"uint64","name":"_subId","type":"uint64"},
		{"internalType":"address","name":"_consumer","type":"address"}
	],"outputs":[]},
	{"type":"function","name":"createSubscription","stateMutability":"nonpayable","inputs":[],
		"outputs":[{"internalType":"uint64","name":"_subId","type":"uint64"}]},
	{"type":"function","name":"fulfillRandomWords","stateMutability":"nonpayable","inputs":[
		{"internalType":"uint256","name":"_requestId","type":"uint256"},
		{"internalType":"address","name":"_consumer","type":"address"}
	],"outputs":[]},
	{"type":"function","name":"fundSubscription","stateMutability":"nonpayable","inputs":[
		{"internalType":"uint64","name":"_subId","type":"uint64"},
		{"internalType":"uint96","name":"_amount","type":"uint96"}
	],"outputs":[]},
	{"type":"function","name":"getSubscription","stateMutability":"view","inputs":[
		{"internalType":"uint64","name":"_subId","type":"uint64"}
	],"outputs":[
		{"internalType":"uint96","name":"balance","type":"uint96"},
		{"internalType":"uint64","name":"reqCount","type":"uint64"},
		{"internalType":"address","name":"owner","type":"address"},
		{"internalType":"address[]","name":"consumers","type":"address[]"}
	]},
	{"type":"function","name":"requestRandomWords","stateMutability":"nonpayable","inputs":[
		{"internalType":"bytes32","name":"_keyHash","type":"bytes32"},
		{"internalType":"uint64","name":"_subId","type":"uint64"},
		{"internalType":"uint16","name":"_minimumRequestConfirmations","type":"uint16"},
		{"internalType":"uint32","name":"_callbackGasLimit","type":"uint32"},
		{"internalType":"uint32","name":"_numWords","type":"uint32"}
	],"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]}
]`

var contractABI = contract.MustParseABI(ABI)

// ContractABI returns the parsed coordinator ABI.
func ContractABI() abi.ABI {
	return contractABI
}
