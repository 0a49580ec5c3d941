// Package upkeep implements the off chain caller that keeps a raffle moving.
// It polls the contract to ask if upkeep is needed and performs it when it
// is, waiting for the transaction to be confirmed before polling again.
package upkeep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// defaultInterval is how often the contract is polled when no interval is
// configured.
const defaultInterval = 15 * time.Second

// EventHandler defines a function that is called when events occur in the
// processing of upkeep.
type EventHandler func(v string, args ...any)

// Upkeeper represents a contract that can be asked for and can perform
// upkeep. The raffle handle implements this interface.
type Upkeeper interface {
	CheckUpkeep(ctx context.Context) (bool, []byte, error)
	PerformUpkeep(ctx context.Context, payload []byte) (*types.Transaction, error)
}

// Confirmer represents the behavior required to wait on a transaction. The
// ethereum client implements this interface.
type Confirmer interface {
	WaitConfirmations(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error)
}

// Result describes the outcome of a single upkeep iteration.
type Result int

// Set of iteration results.
const (
	ResultIdle Result = iota
	ResultPerformed
	ResultRaced
)

// String implements the fmt.Stringer interface.
func (r Result) String() string {
	switch r {
	case ResultIdle:
		return "idle"
	case ResultPerformed:
		return "performed"
	case ResultRaced:
		return "raced"
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// Config holds the dependencies and settings for a Keeper.
type Config struct {
	Upkeeper      Upkeeper
	Confirmer     Confirmer
	Interval      time.Duration
	Confirmations uint64
	OnPerformed   func(ctx context.Context, receipt *types.Receipt) error
	EvHandler     EventHandler
}

// Keeper polls an Upkeeper and performs upkeep when it is needed.
type Keeper struct {
	upkeeper      Upkeeper
	confirmer     Confirmer
	interval      time.Duration
	confirmations uint64
	onPerformed   func(ctx context.Context, receipt *types.Receipt) error
	evHandler     EventHandler

	mu     sync.Mutex
	counts map[Result]int
}

// New constructs a keeper from the configuration.
func New(cfg Config) (*Keeper, error) {
	if cfg.Upkeeper == nil {
		return nil, errors.New("upkeeper is required")
	}
	if cfg.Confirmer == nil {
		return nil, errors.New("confirmer is required")
	}

	ev := func(v string, args ...any) {}
	if cfg.EvHandler != nil {
		ev = cfg.EvHandler
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	k := Keeper{
		upkeeper:      cfg.Upkeeper,
		confirmer:     cfg.Confirmer,
		interval:      interval,
		confirmations: max(cfg.Confirmations, 1),
		onPerformed:   cfg.OnPerformed,
		evHandler:     ev,
		counts:        make(map[Result]int),
	}

	return &k, nil
}

// Run polls until the context is canceled. Any error other than a lost
// race stops the loop and is returned. Cancellation returns nil.
func (k *Keeper) Run(ctx context.Context) error {
	k.evHandler("upkeep: Run: G started: interval[%v] confirmations[%d]", k.interval, k.confirmations)
	defer k.evHandler("upkeep: Run: G completed")

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		if _, err := k.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			k.evHandler("upkeep: Run: received shut signal")
			return nil
		}
	}
}

// RunOnce performs a single check and, when upkeep is needed, performs it
// and waits for the confirmations.
func (k *Keeper) RunOnce(ctx context.Context) (result Result, err error) {
	ctx, span := otel.Tracer("upkeep").Start(ctx, "upkeep.RunOnce")
	defer func() {
		span.SetAttributes(attribute.String("result", result.String()))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	ready, payload, err := k.upkeeper.CheckUpkeep(ctx)
	if err != nil {
		return ResultIdle, fmt.Errorf("check upkeep: %w", err)
	}

	if !ready {
		k.evHandler("upkeep: RunOnce: upkeep not needed")
		return k.record(ResultIdle), nil
	}

	k.evHandler("upkeep: RunOnce: upkeep needed: performing")

	tx, err := k.upkeeper.PerformUpkeep(ctx, payload)
	if err != nil {
		if isRace(err) {
			k.evHandler("upkeep: RunOnce: WARNING: state already advanced: %s", err)
			return k.record(ResultRaced), nil
		}
		return ResultIdle, fmt.Errorf("perform upkeep: %w", err)
	}

	k.evHandler("upkeep: RunOnce: tx[%s] waiting for %d confirmations", tx.Hash(), k.confirmations)

	receipt, err := k.confirmer.WaitConfirmations(ctx, tx, k.confirmations)
	if err != nil {
		if errors.Is(err, ethereum.ErrTxFailed) && k.advanced(ctx) {
			k.evHandler("upkeep: RunOnce: WARNING: tx[%s] failed after the state advanced", tx.Hash())
			return k.record(ResultRaced), nil
		}
		return ResultIdle, fmt.Errorf("wait upkeep tx[%s]: %w", tx.Hash(), err)
	}

	k.evHandler("upkeep: RunOnce: tx[%s] confirmed in block[%d]", tx.Hash(), receipt.BlockNumber)

	if k.onPerformed != nil {
		if err := k.onPerformed(ctx, receipt); err != nil {
			return k.record(ResultPerformed), fmt.Errorf("on performed: %w", err)
		}
	}

	return k.record(ResultPerformed), nil
}

// Counts returns the number of iterations per result.
func (k *Keeper) Counts() map[Result]int {
	k.mu.Lock()
	defer k.mu.Unlock()

	counts := make(map[Result]int, len(k.counts))
	for r, n := range k.counts {
		counts[r] = n
	}
	return counts
}

// advanced reports if upkeep is no longer needed, meaning another caller
// performed it first.
func (k *Keeper) advanced(ctx context.Context) bool {
	ready, _, err := k.upkeeper.CheckUpkeep(ctx)
	return err == nil && !ready
}

func (k *Keeper) record(r Result) Result {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.counts[r]++
	return r
}

// isRace reports if the perform was rejected because upkeep was no longer
// needed.
func isRace(err error) bool {
	return errors.Is(err, raffle.ErrUpkeepNotNeeded) || ethereum.IsRevert(err, "UpkeepNotNeeded", raffle.ContractABI())
}
