package upkeep

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrFulfillFailed is returned when the coordinator could not deliver the
// random words to the raffle.
var ErrFulfillFailed = errors.New("raffle rejected the random words")

// Fulfiller answers randomness requests through the coordinator mock on a
// development chain, where no VRF node is watching. Its OnPerformed method
// is meant for Config.OnPerformed.
type Fulfiller struct {
	Client      *ethereum.Client
	Raffle      *raffle.Raffle
	Coordinator *vrfmock.Coordinator
	EvHandler   EventHandler
	OnWinner    func(winner common.Address)
}

// OnPerformed decodes the request id from the performUpkeep receipt and has
// the coordinator fulfill it.
func (f *Fulfiller) OnPerformed(ctx context.Context, receipt *types.Receipt) error {
	ev := f.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	requestID, err := f.Raffle.RequestID(receipt)
	if err != nil {
		return err
	}

	ev("upkeep: fulfill: request[%s]: fulfilling", requestID)

	tx, err := f.Coordinator.FulfillRandomWords(ctx, requestID, f.Raffle.Address())
	if err != nil {
		return fmt.Errorf("fulfill request[%s]: %w", requestID, err)
	}

	fulfilled, err := f.Client.WaitMined(ctx, tx)
	if err != nil {
		return fmt.Errorf("fulfill request[%s]: %w", requestID, err)
	}

	if _, success, err := f.Coordinator.Fulfilled(fulfilled); err != nil || !success {
		if err != nil {
			return err
		}
		return fmt.Errorf("request[%s]: %w", requestID, ErrFulfillFailed)
	}

	winner, err := f.Raffle.Winner(fulfilled)
	if err != nil {
		return err
	}

	ev("upkeep: fulfill: request[%s]: winner[%s]", requestID, winner)

	if f.OnWinner != nil {
		f.OnWinner(winner)
	}

	return nil
}
