// Package raffle provides typed access to a deployed Raffle contract. Players
// enter by paying the entrance fee; an off chain caller asks the contract if
// upkeep is needed and performs it, which requests randomness from the VRF
// coordinator that later picks and pays the winner.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractName is the name the raffle is deployed and recorded under.
const ContractName = "Raffle"

// State represents the lifecycle of a raffle round.
type State uint8

// Set of raffle states.
const (
	Open State = iota
	Calculating
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Calculating:
		return "CALCULATING"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
}

// =============================================================================

// Revert represents a named custom error raised by the contract.
type Revert string

// Error implements the error interface.
func (r Revert) Error() string {
	return string(r)
}

// Set of custom errors the contract can revert with.
var (
	ErrNotEnoughETHEntered = Revert("Raffle__NotEnoughETHEntered")
	ErrNotOpen             = Revert("Raffle__NotOpen")
	ErrUpkeepNotNeeded     = Revert("Raffle__UpkeepNotNeeded")
	ErrTransferFailed      = Revert("Raffle__TransferFailed")
)

var reverts = []Revert{ErrNotEnoughETHEntered, ErrNotOpen, ErrUpkeepNotNeeded, ErrTransferFailed}

// classify attaches the matching Revert to an error returned by the node so
// callers can test it with errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	reason := ethereum.RevertReason(err, contractABI)
	for _, r := range reverts {
		if reason == string(r) {
			return fmt.Errorf("%w: %w", r, err)
		}
	}

	return err
}

// =============================================================================

// Snapshot is a read of the raffle state at a point in time.
type Snapshot struct {
	State           State
	EntranceFee     *big.Int
	Interval        time.Duration
	Players         uint64
	Balance         *big.Int
	RecentWinner    common.Address
	LastTimeStamp   time.Time
	UpkeepNeeded    bool
	NumWords        uint64
	RequestConfirms uint64
}

// Raffle provides access to a deployed raffle.
type Raffle struct {
	client *ethereum.Client
	handle *contract.Handle
}

// New constructs a raffle handle for the contract at the specified address.
func New(client *ethereum.Client, address common.Address) *Raffle {
	return &Raffle{
		client: client,
		handle: contract.New(address, contractABI, client.Backend()),
	}
}

// Address returns the address of the raffle.
func (r *Raffle) Address() common.Address {
	return r.handle.Address()
}

// Handle returns the generic contract handle.
func (r *Raffle) Handle() *contract.Handle {
	return r.handle
}

// EnterRaffle pays the value to enter the current round.
func (r *Raffle) EnterRaffle(ctx context.Context, value *big.Int) (*types.Transaction, error) {
	opts, err := r.client.TransactOpts(ctx, value)
	if err != nil {
		return nil, err
	}

	tx, err := r.handle.Transact(opts, "enterRaffle")
	return tx, classify(err)
}

// CheckUpkeep asks the contract if the interval has passed with players and
// a balance in an open round. It is a read only call.
func (r *Raffle) CheckUpkeep(ctx context.Context) (bool, []byte, error) {
	out, err := r.handle.Call(r.client.CallOpts(ctx), "checkUpkeep", []byte{})
	if err != nil {
		return false, nil, classify(err)
	}

	upkeepNeeded := *abi.ConvertType(out[0], new(bool)).(*bool)
	payload := *abi.ConvertType(out[1], new([]byte)).(*[]byte)

	return upkeepNeeded, payload, nil
}

// PerformUpkeep closes the round and requests randomness. The contract
// reverts with ErrUpkeepNotNeeded when the conditions no longer hold.
func (r *Raffle) PerformUpkeep(ctx context.Context, payload []byte) (*types.Transaction, error) {
	opts, err := r.client.TransactOpts(ctx, nil)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = []byte{}
	}

	tx, err := r.handle.Transact(opts, "performUpkeep", payload)
	return tx, classify(err)
}

// EntranceFee returns the minimum value to enter.
func (r *Raffle) EntranceFee(ctx context.Context) (*big.Int, error) {
	return r.callBig(ctx, "getEntranceFee")
}

// Interval returns the minimum time between winner selections.
func (r *Raffle) Interval(ctx context.Context) (time.Duration, error) {
	v, err := r.callBig(ctx, "getInterval")
	if err != nil {
		return 0, err
	}
	return time.Duration(v.Int64()) * time.Second, nil
}

// State returns the current raffle state.
func (r *Raffle) State(ctx context.Context) (State, error) {
	out, err := r.handle.Call(r.client.CallOpts(ctx), "getRaffleState")
	if err != nil {
		return 0, classify(err)
	}
	return State(*abi.ConvertType(out[0], new(uint8)).(*uint8)), nil
}

// Player returns the player at the specified index.
func (r *Raffle) Player(ctx context.Context, index uint64) (common.Address, error) {
	return r.callAddress(ctx, "getPlayer", new(big.Int).SetUint64(index))
}

// NumberOfPlayers returns the number of entries in the current round.
func (r *Raffle) NumberOfPlayers(ctx context.Context) (uint64, error) {
	v, err := r.callBig(ctx, "getNumberOfPlayers")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// RecentWinner returns the winner of the last round.
func (r *Raffle) RecentWinner(ctx context.Context) (common.Address, error) {
	return r.callAddress(ctx, "getRecentWinner")
}

// LastTimeStamp returns when the last round was opened.
func (r *Raffle) LastTimeStamp(ctx context.Context) (time.Time, error) {
	v, err := r.callBig(ctx, "getLastTimeStamp")
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v.Int64(), 0).UTC(), nil
}

// NumWords returns the number of random words requested per round.
func (r *Raffle) NumWords(ctx context.Context) (uint64, error) {
	v, err := r.callBig(ctx, "getNumWords")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// RequestConfirmations returns the confirmations the coordinator waits on
// before answering.
func (r *Raffle) RequestConfirmations(ctx context.Context) (uint64, error) {
	v, err := r.callBig(ctx, "getRequestConfirmations")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// Snapshot reads every view of the raffle.
func (r *Raffle) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.State, err = r.State(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.EntranceFee, err = r.EntranceFee(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Interval, err = r.Interval(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Players, err = r.NumberOfPlayers(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Balance, err = r.client.Balance(ctx, r.Address()); err != nil {
		return Snapshot{}, err
	}
	if snap.RecentWinner, err = r.RecentWinner(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.LastTimeStamp, err = r.LastTimeStamp(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.UpkeepNeeded, _, err = r.CheckUpkeep(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.NumWords, err = r.NumWords(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.RequestConfirms, err = r.RequestConfirmations(ctx); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

// =============================================================================

// RequestID decodes the randomness request id from a performUpkeep receipt.
func (r *Raffle) RequestID(receipt *types.Receipt) (*big.Int, error) {
	logs, err := r.handle.Events(receipt, "RequestedRaffleWinner")
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, errors.New("receipt has no RequestedRaffleWinner event")
	}

	var ev struct {
		RequestId *big.Int
	}
	if err := r.handle.UnpackEvent(&ev, "RequestedRaffleWinner", logs[0]); err != nil {
		return nil, err
	}

	return ev.RequestId, nil
}

// Winner decodes the winner from a fulfillment receipt.
func (r *Raffle) Winner(receipt *types.Receipt) (common.Address, error) {
	logs, err := r.handle.Events(receipt, "WinnerPicked")
	if err != nil {
		return common.Address{}, err
	}
	if len(logs) == 0 {
		return common.Address{}, errors.New("receipt has no WinnerPicked event")
	}

	var ev struct {
		Player common.Address
	}
	if err := r.handle.UnpackEvent(&ev, "WinnerPicked", logs[0]); err != nil {
		return common.Address{}, err
	}

	return ev.Player, nil
}

// Entrants decodes the players that entered in a receipt.
func (r *Raffle) Entrants(receipt *types.Receipt) ([]common.Address, error) {
	logs, err := r.handle.Events(receipt, "RaffleEnter")
	if err != nil {
		return nil, err
	}

	players := make([]common.Address, 0, len(logs))
	for _, log := range logs {
		var ev struct {
			Player common.Address
		}
		if err := r.handle.UnpackEvent(&ev, "RaffleEnter", log); err != nil {
			return nil, err
		}
		players = append(players, ev.Player)
	}

	return players, nil
}

// Winners returns the history of winners picked from the specified block.
func (r *Raffle) Winners(ctx context.Context, fromBlock uint64) ([]common.Address, error) {
	logs, err := r.handle.FilterEvents(ctx, "WinnerPicked", fromBlock)
	if err != nil {
		return nil, err
	}

	winners := make([]common.Address, 0, len(logs))
	for _, log := range logs {
		var ev struct {
			Player common.Address
		}
		if err := r.handle.UnpackEvent(&ev, "WinnerPicked", log); err != nil {
			return nil, err
		}
		winners = append(winners, ev.Player)
	}

	return winners, nil
}

// =============================================================================

// ConstructorArgs returns the deployment arguments for the network. The
// coordinator and subscription are passed separately since development
// chains use a freshly deployed mock.
func ConstructorArgs(cfg networks.Config, coordinator common.Address, subscriptionID uint64) []any {
	return []any{
		coordinator,
		subscriptionID,
		[32]byte(cfg.GasLane),
		big.NewInt(int64(cfg.Interval / time.Second)),
		cfg.EntranceFee(),
		cfg.CallbackGasLimit,
	}
}

func (r *Raffle) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := r.handle.Call(r.client.CallOpts(ctx), method, args...)
	if err != nil {
		return nil, classify(err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (r *Raffle) callAddress(ctx context.Context, method string, args ...any) (common.Address, error) {
	out, err := r.handle.Call(r.client.CallOpts(ctx), method, args...)
	if err != nil {
		return common.Address{}, classify(err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
