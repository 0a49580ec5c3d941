package ethereum_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}

func newClient(t *testing.T) (*ethereum.Client, *ethtest.Chain) {
	pk, addr := ethtest.NewKey()
	chain := ethtest.New(addr)

	client, err := ethereum.NewClient(context.Background(), chain, pk, ethereum.WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a client: %s", failed, err)
	}

	return client, chain
}

func TestSendValue(t *testing.T) {
	t.Log("Given the need to transfer value between accounts.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen sending one ether to an account.", testID)
		{
			ctx := context.Background()
			client, _ := newClient(t)
			_, to := ethtest.NewKey()

			if client.ChainID().Cmp(ethtest.DefaultChainID) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould read the chain id, got %s.", failed, testID, client.ChainID())
			}
			t.Logf("\t%s\tTest %d:\tShould read the chain id.", success, testID)

			before, err := client.Balance(ctx, client.Address())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the balance: %s", failed, testID, err)
			}

			tx, err := client.SendValue(ctx, to, ethereum.Ether(1))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send value: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to send value.", success, testID)

			if tx.Gas() != params.TxGas {
				t.Fatalf("\t%s\tTest %d:\tShould use the intrinsic gas, got %d.", failed, testID, tx.Gas())
			}
			t.Logf("\t%s\tTest %d:\tShould use the intrinsic gas.", success, testID)

			receipt, err := client.WaitMined(ctx, tx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to wait for the tx: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to wait for the tx.", success, testID)

			bal, err := client.Balance(ctx, to)
			if err != nil || bal.Cmp(ethereum.Ether(1)) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould credit the recipient, got %v: %v", failed, testID, bal, err)
			}
			t.Logf("\t%s\tTest %d:\tShould credit the recipient.", success, testID)

			fee := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
			exp := new(big.Int).Sub(before, ethereum.Ether(1))
			exp.Sub(exp, fee)

			after, _ := client.Balance(ctx, client.Address())
			if after.Cmp(exp) != 0 {
				t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, after)
				t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, exp)
				t.Fatalf("\t%s\tTest %d:\tShould debit the value and the fee.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould debit the value and the fee.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the client has no signing key.", testID)
		{
			_, addr := ethtest.NewKey()
			chain := ethtest.New(addr)

			client, err := ethereum.NewClient(context.Background(), chain, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct a client: %s", failed, testID, err)
			}

			if client.CanSign() {
				t.Fatalf("\t%s\tTest %d:\tShould not report a signer.", failed, testID)
			}

			if _, err := client.SendValue(context.Background(), addr, bigInt(1)); !errors.Is(err, ethereum.ErrNoSigner) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNoSigner, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrNoSigner.", success, testID)
		}
	}
}

func TestWaitConfirmations(t *testing.T) {
	t.Log("Given the need to wait for block confirmations.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen waiting for three confirmations.", testID)
		{
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client, chain := newClient(t)
			_, to := ethtest.NewKey()

			tx, err := client.SendValue(ctx, to, bigInt(1000))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send value: %s", failed, testID, err)
			}

			go func() {
				for range 2 {
					time.Sleep(30 * time.Millisecond)
					chain.Mine(1)
				}
			}()

			receipt, err := client.WaitConfirmations(ctx, tx, 3)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to wait for confirmations: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to wait for confirmations.", success, testID)

			head, _ := client.BlockNumber(ctx)
			if head < receipt.BlockNumber.Uint64()+2 {
				t.Fatalf("\t%s\tTest %d:\tShould have two blocks on top of the tx, head %d tx %d.", failed, testID, head, receipt.BlockNumber)
			}
			t.Logf("\t%s\tTest %d:\tShould have two blocks on top of the tx.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the transaction is never mined.", testID)
		{
			client, _ := newClient(t)

			_, err := client.WaitMinedTimeout(context.Background(), common.HexToHash("0x01"), 50*time.Millisecond)
			if !errors.Is(err, ethereum.ErrMineTimeout) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrMineTimeout, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrMineTimeout.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the caller cancels the wait.", testID)
		{
			client, _ := newClient(t)

			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()

			_, err := client.WaitMinedTimeout(ctx, common.HexToHash("0x01"), time.Minute)
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest %d:\tShould get the cancellation, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the cancellation.", success, testID)
		}
	}
}
