package upkeep_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/raffle/raffletest"
	"github.com/ardanlabs/lottery/business/core/upkeep"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fakeUpkeeper struct {
	checks    atomic.Int64
	ready     func(n int64) bool
	checkErr  error
	perform   error
	performed atomic.Int64
}

func (f *fakeUpkeeper) CheckUpkeep(ctx context.Context) (bool, []byte, error) {
	n := f.checks.Add(1)
	if f.checkErr != nil {
		return false, nil, f.checkErr
	}
	return f.ready(n), nil, nil
}

func (f *fakeUpkeeper) PerformUpkeep(ctx context.Context, payload []byte) (*types.Transaction, error) {
	if f.perform != nil {
		return nil, f.perform
	}
	f.performed.Add(1)
	return types.NewTx(&types.LegacyTx{Nonce: uint64(f.performed.Load())}), nil
}

type fakeConfirmer struct {
	err error
}

func (f fakeConfirmer) WaitConfirmations(ctx context.Context, tx *types.Transaction, n uint64) (*types.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(1), Status: types.ReceiptStatusSuccessful}, nil
}

func always(v bool) func(int64) bool {
	return func(int64) bool { return v }
}

func TestRunOnce(t *testing.T) {
	tt := []struct {
		name      string
		upkeeper  *fakeUpkeeper
		confirmer fakeConfirmer
		result    upkeep.Result
		fails     bool
	}{
		{"notneeded", &fakeUpkeeper{ready: always(false)}, fakeConfirmer{}, upkeep.ResultIdle, false},
		{"needed", &fakeUpkeeper{ready: always(true)}, fakeConfirmer{}, upkeep.ResultPerformed, false},
		{"raced", &fakeUpkeeper{ready: always(true), perform: fmt.Errorf("%w: execution reverted", raffle.ErrUpkeepNotNeeded)}, fakeConfirmer{}, upkeep.ResultRaced, false},
		{"racedmessage", &fakeUpkeeper{ready: always(true), perform: errors.New("execution reverted: Raffle__UpkeepNotNeeded(0, 0, 1)")}, fakeConfirmer{}, upkeep.ResultRaced, false},
		{"racedmined", &fakeUpkeeper{ready: func(n int64) bool { return n == 1 }}, fakeConfirmer{err: ethereum.ErrTxFailed}, upkeep.ResultRaced, false},
		{"minedfailed", &fakeUpkeeper{ready: always(true)}, fakeConfirmer{err: ethereum.ErrTxFailed}, upkeep.ResultIdle, true},
		{"performerror", &fakeUpkeeper{ready: always(true), perform: errors.New("connection refused")}, fakeConfirmer{}, upkeep.ResultIdle, true},
		{"checkerror", &fakeUpkeeper{checkErr: errors.New("connection refused")}, fakeConfirmer{}, upkeep.ResultIdle, true},
	}

	t.Log("Given the need to run a single upkeep iteration.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s case.", testID, tst.name)
				{
					k, err := upkeep.New(upkeep.Config{Upkeeper: tst.upkeeper, Confirmer: tst.confirmer})
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to construct a keeper: %s", failed, testID, err)
					}

					result, err := k.RunOnce(context.Background())
					if (err != nil) != tst.fails {
						t.Fatalf("\t%s\tTest %d:\tShould fail[%v], got %v.", failed, testID, tst.fails, err)
					}
					t.Logf("\t%s\tTest %d:\tShould fail[%v].", success, testID, tst.fails)

					if result != tst.result {
						t.Fatalf("\t%s\tTest %d:\tShould get result %s, got %s.", failed, testID, tst.result, result)
					}
					t.Logf("\t%s\tTest %d:\tShould get result %s.", success, testID, tst.result)
				}
			}
			t.Run(tst.name, f)
		}
	}
}

func TestRunOncePerformedHookFails(t *testing.T) {
	t.Log("Given the need to count upkeeps whose follow up fails.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the performed hook returns an error.", testID)
		{
			cfg := upkeep.Config{
				Upkeeper:  &fakeUpkeeper{ready: always(true)},
				Confirmer: fakeConfirmer{},
				OnPerformed: func(ctx context.Context, receipt *types.Receipt) error {
					return upkeep.ErrFulfillFailed
				},
			}

			k, err := upkeep.New(cfg)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct a keeper: %s", failed, testID, err)
			}

			result, err := k.RunOnce(context.Background())
			if !errors.Is(err, upkeep.ErrFulfillFailed) {
				t.Fatalf("\t%s\tTest %d:\tShould get the hook error, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the hook error.", success, testID)

			if result != upkeep.ResultPerformed {
				t.Fatalf("\t%s\tTest %d:\tShould get result %s, got %s.", failed, testID, upkeep.ResultPerformed, result)
			}
			t.Logf("\t%s\tTest %d:\tShould get result %s.", success, testID, upkeep.ResultPerformed)

			if n := k.Counts()[upkeep.ResultPerformed]; n != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould count the performed upkeep, got %d.", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould count the performed upkeep.", success, testID)
		}
	}
}

func TestRun(t *testing.T) {
	t.Log("Given the need to poll for upkeep until told to stop.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the context is canceled.", testID)
		{
			up := fakeUpkeeper{ready: func(n int64) bool { return n%2 == 0 }}
			k, _ := upkeep.New(upkeep.Config{Upkeeper: &up, Confirmer: fakeConfirmer{}, Interval: time.Millisecond})

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- k.Run(ctx)
			}()

			deadline := time.After(5 * time.Second)
			for up.performed.Load() < 3 {
				select {
				case <-deadline:
					t.Fatalf("\t%s\tTest %d:\tShould perform upkeep repeatedly.", failed, testID)
				case <-time.After(time.Millisecond):
				}
			}
			t.Logf("\t%s\tTest %d:\tShould perform upkeep repeatedly.", success, testID)

			cancel()
			if err := <-done; err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould return nil on cancellation, got %s.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould return nil on cancellation.", success, testID)

			counts := k.Counts()
			if counts[upkeep.ResultPerformed] < 3 || counts[upkeep.ResultIdle] < 1 {
				t.Fatalf("\t%s\tTest %d:\tShould count the results, got %v.", failed, testID, counts)
			}
			t.Logf("\t%s\tTest %d:\tShould count the results.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the provider fails.", testID)
		{
			provider := errors.New("dial tcp: connection refused")
			up := fakeUpkeeper{checkErr: provider}
			k, _ := upkeep.New(upkeep.Config{Upkeeper: &up, Confirmer: fakeConfirmer{}, Interval: time.Millisecond})

			err := k.Run(context.Background())
			if !errors.Is(err, provider) {
				t.Fatalf("\t%s\tTest %d:\tShould stop with the provider error, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould stop with the provider error.", success, testID)
		}
	}
}

// staleUpkeeper always reports upkeep as needed, the view a second keeper
// has when it checked before the first one performed.
type staleUpkeeper struct {
	*raffle.Raffle
}

func (s staleUpkeeper) CheckUpkeep(ctx context.Context) (bool, []byte, error) {
	return true, []byte{}, nil
}

func TestKeeperOnChain(t *testing.T) {
	t.Log("Given the need to keep a raffle moving on a development chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a player entered and the interval passed.", testID)
		{
			ctx := context.Background()

			f, err := raffletest.Deploy(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deploy the raffle: %s", failed, testID, err)
			}

			tx, err := f.PlayerRaffle().EnterRaffle(ctx, f.Config.EntranceFee())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to enter: %s", failed, testID, err)
			}
			if _, err := f.Player.WaitMined(ctx, tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the entry: %s", failed, testID, err)
			}
			f.PassInterval()

			var winner common.Address
			fulfiller := upkeep.Fulfiller{
				Client:      f.Deployer,
				Raffle:      f.Raffle,
				Coordinator: f.Coordinator,
				OnWinner:    func(w common.Address) { winner = w },
			}

			k, err := upkeep.New(upkeep.Config{
				Upkeeper:    f.Raffle,
				Confirmer:   f.Deployer,
				OnPerformed: fulfiller.OnPerformed,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct a keeper: %s", failed, testID, err)
			}

			result, err := k.RunOnce(ctx)
			if err != nil || result != upkeep.ResultPerformed {
				t.Fatalf("\t%s\tTest %d:\tShould perform upkeep, got %s %v.", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould perform upkeep.", success, testID)

			if winner != f.Player.Address() {
				t.Fatalf("\t%s\tTest %d:\tShould pick the only player, got %s.", failed, testID, winner)
			}
			t.Logf("\t%s\tTest %d:\tShould pick the only player.", success, testID)

			snap, err := f.Raffle.Snapshot(ctx)
			if err != nil || snap.State != raffle.Open || snap.Players != 0 || snap.Balance.Sign() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould reopen the raffle empty, got %+v %v.", failed, testID, snap, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reopen the raffle empty.", success, testID)

			result, err = k.RunOnce(ctx)
			if err != nil || result != upkeep.ResultIdle {
				t.Fatalf("\t%s\tTest %d:\tShould be idle after the round, got %s %v.", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be idle after the round.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a second keeper loses the race.", testID)
		{
			ctx := context.Background()

			f, err := raffletest.Deploy(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deploy the raffle: %s", failed, testID, err)
			}

			tx, err := f.PlayerRaffle().EnterRaffle(ctx, f.Config.EntranceFee())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to enter: %s", failed, testID, err)
			}
			if _, err := f.Player.WaitMined(ctx, tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the entry: %s", failed, testID, err)
			}
			f.PassInterval()

			first, _ := upkeep.New(upkeep.Config{Upkeeper: f.Raffle, Confirmer: f.Deployer})
			second, _ := upkeep.New(upkeep.Config{Upkeeper: staleUpkeeper{f.PlayerRaffle()}, Confirmer: f.Player})

			if result, err := first.RunOnce(ctx); err != nil || result != upkeep.ResultPerformed {
				t.Fatalf("\t%s\tTest %d:\tShould let the first keeper perform, got %s %v.", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould let the first keeper perform.", success, testID)

			if result, err := second.RunOnce(ctx); err != nil || result != upkeep.ResultRaced {
				t.Fatalf("\t%s\tTest %d:\tShould treat the second perform as raced, got %s %v.", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould treat the second perform as raced.", success, testID)

			if state, _ := f.Raffle.State(ctx); state != raffle.Calculating {
				t.Fatalf("\t%s\tTest %d:\tShould leave the raffle CALCULATING, got %s.", failed, testID, state)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the raffle CALCULATING.", success, testID)
		}
	}
}
