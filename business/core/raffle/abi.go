package raffle

import (
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI is the interface of the deployed Raffle contract.
const ABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"internalType":"address","name":"vrfCoordinatorV2","type":"address"},
		{"internalType":"uint64","name":"subscriptionId","type":"uint64"},
		{"internalType":"bytes32","name":"gasLane","type":"bytes32"},
		{"internalType":"uint256","name":"interval","type":"uint256"},
		{"internalType":"uint256","name":"entranceFee","type":"uint256"},
		{"internalType":"uint32","name":"callbackGasLimit","type":"uint32"}
	]},
	{"type":"error","name":"OnlyCoordinatorCanFulfill","inputs":[
		{"internalType":"address","name":"have","type":"address"},
		{"internalType":"address","name":"want","type":"address"}
	]},
	{"type":"error","name":"Raffle__NotEnoughETHEntered","inputs":[]},
	{"type":"error","name":"Raffle__NotOpen","inputs":[]},
	{"type":"error","name":"Raffle__TransferFailed","inputs":[]},
	{"type":"error","name":"Raffle__UpkeepNotNeeded","inputs":[
		{"internalType":"uint256","name":"currentBalance","type":"uint256"},
		{"internalType":"uint256","name":"numPlayers","type":"uint256"},
		{"internalType":"uint256","name":"raffleState","type":"uint256"}
	]},
	{"type":"event","name":"RaffleEnter","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"address","name":"player","type":"address"}
	]},
	{"type":"event","name":"RequestedRaffleWinner","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"uint256","name":"requestId","type":"uint256"}
	]},
	{"type":"event","name":"WinnerPicked","anonymous":false,"inputs":[
		{"indexed":true,"internalType":"address","name":"player","type":"address"}
	]},
	{"type":"function","name":"checkUpkeep","stateMutability":"view",
		"inputs":[{"internalType":"bytes","name":"","type":"bytes"}],
		"outputs":[
			{"internalType":"bool","name":"upkeepNeeded","type":"bool"},
			{"internalType":"bytes","name":"","type":"bytes"}
		]},
	{"type":"function","name":"enterRaffle","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"getEntranceFee","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"getInterval","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"getLastTimeStamp","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"getNumWords","stateMutability":"pure","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"getNumberOfPlayers","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"getPlayer","stateMutability":"view",
		"inputs":[{"internalType":"uint256","name":"index","type":"uint256"}],
		"outputs":[{"internalType":"address","name":"","type":"address"}]},
	{"type":"function","name":"getRaffleState","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"enum Raffle.RaffleState","name":"","type":"uint8"}]},
	{"type":"function","name":"getRecentWinner","stateMutability":"view","inputs":[],
		"outputs":[{"internalType":"address","name":"","type":"address"}]},
	{"type":"function","name":"getRequestConfirmations","stateMutability":"pure","inputs":[],
		"outputs":[{"internalType":"uint256","name":"","type":"uint256"}]},
	{"type":"function","name":"performUpkeep","stateMutability":"nonpayable",
		"inputs":[{"internalType":"bytes","name":"","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"rawFulfillRandomWords","stateMutability":"nonpayable",
		"inputs":[
			{"internalType":"uint256","name":"requestId","type":"uint256"},
			{"internalType":"uint256[]","name":"randomWords","type":"uint256[]"}
		],"outputs":[]}
]`

var contractABI = contract.MustParseABI(ABI)

// ContractABI returns the parsed raffle ABI.
func ContractABI() abi.ABI {
	return contractABI
}
