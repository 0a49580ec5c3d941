// Package raffletest provides in-memory models of the Raffle contract and
// the VRF coordinator mock for the ethtest chain, plus a fixture that
// deploys them the way the deploy scripts do on a development chain.
package raffletest

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Placeholder bytecode that identifies the models in deployment
// transactions.
var (
	RaffleBytecode      = []byte("\xfe\x00raffle-model")
	CoordinatorBytecode = []byte("\xfe\x00vrf-coordinator-v2-mock-model")
)

// Constants compiled into the contract.
const (
	numWords             = 1
	requestConfirmations = 3
	maxConsumers         = 100
)

// fulfillGas is the gas the model charges the subscription for a callback.
var fulfillGas = big.NewInt(100_000)

// RaffleArtifact returns a deployable artifact for the raffle model.
func RaffleArtifact() contract.Artifact {
	return contract.Artifact{
		ContractName: raffle.ContractName,
		ABI:          raffle.ContractABI(),
		RawABI:       []byte(raffle.ABI),
		Bytecode:     RaffleBytecode,
	}
}

// CoordinatorArtifact returns a deployable artifact for the coordinator
// model.
func CoordinatorArtifact() contract.Artifact {
	return contract.Artifact{
		ContractName: vrfmock.ContractName,
		ABI:          vrfmock.ContractABI(),
		RawABI:       []byte(vrfmock.ABI),
		Bytecode:     CoordinatorBytecode,
	}
}

// Register teaches the chain how to deploy both models.
func Register(chain *ethtest.Chain) {
	chain.Register(RaffleBytecode, newRaffle)
	chain.Register(CoordinatorBytecode, newCoordinator)
}

// =============================================================================

// Raffle models the Raffle contract.
type Raffle struct {
	abi              abi.ABI
	coordinator      common.Address
	subscriptionID   uint64
	gasLane          [32]byte
	interval         *big.Int
	entranceFee      *big.Int
	callbackGasLimit uint32

	state         raffle.State
	players       []common.Address
	lastTimeStamp uint64
	recentWinner  common.Address
}

func newRaffle(env *ethtest.Env, args []byte) (ethtest.Contract, error) {
	contractABI := raffle.ContractABI()

	vals, err := contractABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("raffle constructor: %w", err)
	}

	r := Raffle{
		abi:              contractABI,
		coordinator:      vals[0].(common.Address),
		subscriptionID:   vals[1].(uint64),
		gasLane:          vals[2].([32]byte),
		interval:         vals[3].(*big.Int),
		entranceFee:      vals[4].(*big.Int),
		callbackGasLimit: vals[5].(uint32),
		state:            raffle.Open,
		lastTimeStamp:    env.Time,
	}

	return &r, nil
}

// Execute implements the ethtest.Contract interface.
func (r *Raffle) Execute(env *ethtest.Env, input []byte) ([]byte, error) {
	method, args, err := ethtest.Dispatch(r.abi, input)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "enterRaffle":
		return nil, r.enter(env)

	case "checkUpkeep":
		return ethtest.Return(method, r.upkeepNeeded(env), []byte{})

	case "performUpkeep":
		return nil, r.performUpkeep(env)

	case "rawFulfillRandomWords":
		return nil, r.fulfill(env, args[1].([]*big.Int))

	case "getEntranceFee":
		return ethtest.Return(method, r.entranceFee)

	case "getInterval":
		return ethtest.Return(method, r.interval)

	case "getLastTimeStamp":
		return ethtest.Return(method, new(big.Int).SetUint64(r.lastTimeStamp))

	case "getNumWords":
		return ethtest.Return(method, big.NewInt(numWords))

	case "getRequestConfirmations":
		return ethtest.Return(method, big.NewInt(requestConfirmations))

	case "getNumberOfPlayers":
		return ethtest.Return(method, big.NewInt(int64(len(r.players))))

	case "getPlayer":
		index := args[0].(*big.Int)
		if !index.IsInt64() || index.Int64() >= int64(len(r.players)) {
			return nil, ethtest.RevertString("index out of bounds")
		}
		return ethtest.Return(method, r.players[index.Int64()])

	case "getRaffleState":
		return ethtest.Return(method, uint8(r.state))

	case "getRecentWinner":
		return ethtest.Return(method, r.recentWinner)
	}

	return nil, fmt.Errorf("raffle: method %s not modeled", method.Name)
}

func (r *Raffle) enter(env *ethtest.Env) error {
	if env.Value.Cmp(r.entranceFee) < 0 {
		return ethtest.Revert(r.abi, "Raffle__NotEnoughETHEntered")
	}

	if r.state != raffle.Open {
		return ethtest.Revert(r.abi, "Raffle__NotOpen")
	}

	if env.Committing() {
		r.players = append(r.players, env.From)
	}

	return env.Emit(r.abi.Events["RaffleEnter"], []common.Hash{ethtest.Topic(env.From)})
}

func (r *Raffle) upkeepNeeded(env *ethtest.Env) bool {
	isOpen := r.state == raffle.Open
	elapsed := new(big.Int).SetUint64(env.Time - r.lastTimeStamp)
	timePassed := elapsed.Cmp(r.interval) > 0
	hasPlayers := len(r.players) > 0
	hasBalance := env.Balance().Sign() > 0

	return isOpen && timePassed && hasPlayers && hasBalance
}

func (r *Raffle) performUpkeep(env *ethtest.Env) error {
	if !r.upkeepNeeded(env) {
		return ethtest.Revert(r.abi, "Raffle__UpkeepNotNeeded", env.Balance(), big.NewInt(int64(len(r.players))), big.NewInt(int64(r.state)))
	}

	input, err := vrfmock.ContractABI().Pack("requestRandomWords", r.gasLane, r.subscriptionID, uint16(requestConfirmations), r.callbackGasLimit, uint32(numWords))
	if err != nil {
		return err
	}

	out, err := env.Call(r.coordinator, input)
	if err != nil {
		return err
	}

	vals, err := vrfmock.ContractABI().Methods["requestRandomWords"].Outputs.Unpack(out)
	if err != nil {
		return err
	}
	requestID := vals[0].(*big.Int)

	if env.Committing() {
		r.state = raffle.Calculating
	}

	return env.Emit(r.abi.Events["RequestedRaffleWinner"], []common.Hash{common.BigToHash(requestID)})
}

func (r *Raffle) fulfill(env *ethtest.Env, words []*big.Int) error {
	if env.From != r.coordinator {
		return ethtest.Revert(r.abi, "OnlyCoordinatorCanFulfill", env.From, r.coordinator)
	}

	if len(r.players) == 0 || len(words) == 0 {
		return ethtest.RevertString("division or modulo by zero")
	}

	index := new(big.Int).Mod(words[0], big.NewInt(int64(len(r.players))))
	winner := r.players[index.Int64()]

	if err := env.Transfer(winner, env.Balance()); err != nil {
		return ethtest.Revert(r.abi, "Raffle__TransferFailed")
	}

	if env.Committing() {
		r.recentWinner = winner
		r.state = raffle.Open
		r.players = nil
		r.lastTimeStamp = env.Time
	}

	return env.Emit(r.abi.Events["WinnerPicked"], []common.Hash{ethtest.Topic(winner)})
}

// State returns the modeled state for assertions.
func (r *Raffle) State() raffle.State {
	return r.state
}

// =============================================================================

type subscription struct {
	owner     common.Address
	balance   *big.Int
	reqCount  uint64
	consumers []common.Address
}

type request struct {
	subID            uint64
	callbackGasLimit uint32
	numWords         uint32
}

// Coordinator models the VRFCoordinatorV2Mock contract.
type Coordinator struct {
	abi           abi.ABI
	baseFee       *big.Int
	gasPriceLink  *big.Int
	currentSubID  uint64
	nextRequestID int64
	nextPreSeed   int64
	subscriptions map[uint64]*subscription
	requests      map[int64]request
}

func newCoordinator(env *ethtest.Env, args []byte) (ethtest.Contract, error) {
	contractABI := vrfmock.ContractABI()

	vals, err := contractABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, fmt.Errorf("coordinator constructor: %w", err)
	}

	c := Coordinator{
		abi:           contractABI,
		baseFee:       vals[0].(*big.Int),
		gasPriceLink:  vals[1].(*big.Int),
		nextRequestID: 1,
		nextPreSeed:   100,
		subscriptions: make(map[uint64]*subscription),
		requests:      make(map[int64]request),
	}

	return &c, nil
}

// Execute implements the ethtest.Contract interface.
func (c *Coordinator) Execute(env *ethtest.Env, input []byte) ([]byte, error) {
	method, args, err := ethtest.Dispatch(c.abi, input)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "BASE_FEE":
		return ethtest.Return(method, c.baseFee)

	case "GAS_PRICE_LINK":
		return ethtest.Return(method, c.gasPriceLink)

	case "createSubscription":
		subID := c.currentSubID + 1
		if env.Committing() {
			c.currentSubID = subID
			c.subscriptions[subID] = &subscription{owner: env.From, balance: new(big.Int)}
		}
		if err := env.Emit(c.abi.Events["SubscriptionCreated"], []common.Hash{subTopic(subID)}, env.From); err != nil {
			return nil, err
		}
		return ethtest.Return(method, subID)

	case "fundSubscription":
		subID, amount := args[0].(uint64), args[1].(*big.Int)
		sub, exists := c.subscriptions[subID]
		if !exists {
			return nil, ethtest.Revert(c.abi, "InvalidSubscription")
		}
		newBalance := new(big.Int).Add(sub.balance, amount)
		if err := env.Emit(c.abi.Events["SubscriptionFunded"], []common.Hash{subTopic(subID)}, sub.balance, newBalance); err != nil {
			return nil, err
		}
		if env.Committing() {
			sub.balance = newBalance
		}
		return nil, nil

	case "addConsumer":
		subID, consumer := args[0].(uint64), args[1].(common.Address)
		sub, exists := c.subscriptions[subID]
		if !exists {
			return nil, ethtest.Revert(c.abi, "InvalidSubscription")
		}
		if env.From != sub.owner {
			return nil, ethtest.Revert(c.abi, "MustBeSubOwner", sub.owner)
		}
		if sub.hasConsumer(consumer) {
			return nil, nil
		}
		if len(sub.consumers) == maxConsumers {
			return nil, ethtest.Revert(c.abi, "TooManyConsumers")
		}
		if env.Committing() {
			sub.consumers = append(sub.consumers, consumer)
		}
		return nil, env.Emit(c.abi.Events["ConsumerAdded"], []common.Hash{subTopic(subID)}, consumer)

	case "getSubscription":
		sub, exists := c.subscriptions[args[0].(uint64)]
		if !exists {
			return nil, ethtest.Revert(c.abi, "InvalidSubscription")
		}
		consumers := append([]common.Address{}, sub.consumers...)
		return ethtest.Return(method, sub.balance, sub.reqCount, sub.owner, consumers)

	case "requestRandomWords":
		return c.requestRandomWords(env, method, args)

	case "fulfillRandomWords":
		return nil, c.fulfillRandomWords(env, args[0].(*big.Int), args[1].(common.Address))
	}

	return nil, fmt.Errorf("coordinator: method %s not modeled", method.Name)
}

func (c *Coordinator) requestRandomWords(env *ethtest.Env, method *abi.Method, args []any) ([]byte, error) {
	keyHash := args[0].([32]byte)
	subID := args[1].(uint64)
	minConfirmations := args[2].(uint16)
	callbackGasLimit := args[3].(uint32)
	words := args[4].(uint32)

	sub, exists := c.subscriptions[subID]
	if !exists {
		return nil, ethtest.Revert(c.abi, "InvalidSubscription")
	}
	if !sub.hasConsumer(env.From) {
		return nil, ethtest.Revert(c.abi, "InvalidConsumer")
	}

	requestID := big.NewInt(c.nextRequestID)
	preSeed := big.NewInt(c.nextPreSeed)

	if env.Committing() {
		c.requests[c.nextRequestID] = request{subID: subID, callbackGasLimit: callbackGasLimit, numWords: words}
		c.nextRequestID++
		c.nextPreSeed++
		sub.reqCount++
	}

	indexed := []common.Hash{common.Hash(keyHash), subTopic(subID), ethtest.Topic(env.From)}
	if err := env.Emit(c.abi.Events["RandomWordsRequested"], indexed, requestID, preSeed, minConfirmations, callbackGasLimit, words); err != nil {
		return nil, err
	}

	return ethtest.Return(method, requestID)
}

func (c *Coordinator) fulfillRandomWords(env *ethtest.Env, requestID *big.Int, consumer common.Address) error {
	if !requestID.IsInt64() {
		return ethtest.RevertString("nonexistent request")
	}

	req, exists := c.requests[requestID.Int64()]
	if !exists {
		return ethtest.RevertString("nonexistent request")
	}

	payment := new(big.Int).Mul(fulfillGas, c.gasPriceLink)
	payment.Add(payment, c.baseFee)

	sub := c.subscriptions[req.subID]
	if sub.balance.Cmp(payment) < 0 {
		return ethtest.Revert(c.abi, "InsufficientBalance")
	}

	words, err := randomWords(requestID, req.numWords)
	if err != nil {
		return err
	}

	input, err := raffle.ContractABI().Pack("rawFulfillRandomWords", requestID, words)
	if err != nil {
		return err
	}

	// The consumer callback is allowed to fail without reverting.
	_, callErr := env.Call(consumer, input)

	if env.Committing() {
		sub.balance = new(big.Int).Sub(sub.balance, payment)
		delete(c.requests, requestID.Int64())
	}

	return env.Emit(c.abi.Events["RandomWordsFulfilled"], []common.Hash{common.BigToHash(requestID)}, requestID, payment, callErr == nil)
}

func (s *subscription) hasConsumer(consumer common.Address) bool {
	for _, c := range s.consumers {
		if c == consumer {
			return true
		}
	}
	return false
}

// randomWords derives the words the way the mock does:
// keccak256(abi.encode(requestId, i)).
func randomWords(requestID *big.Int, n uint32) ([]*big.Int, error) {
	uint256, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	args := abi.Arguments{{Type: uint256}, {Type: uint256}}

	if n == 0 {
		return nil, errors.New("no words requested")
	}

	words := make([]*big.Int, n)
	for i := range words {
		packed, err := args.Pack(requestID, big.NewInt(int64(i)))
		if err != nil {
			return nil, err
		}
		words[i] = new(big.Int).SetBytes(crypto.Keccak256(packed))
	}

	return words, nil
}

func subTopic(subID uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(subID))
}
