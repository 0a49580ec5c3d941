package fundme_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/fundme/fundmetest"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var sendValue = ethereum.Ether(1)

func deploy(t *testing.T) *fundmetest.Fixture {
	f, err := fundmetest.Deploy(context.Background())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to deploy FundMe: %s", failed, err)
	}
	return f
}

func fund(t *testing.T, f *fundmetest.Fixture, client *ethereum.Client) {
	ctx := context.Background()

	tx, err := f.FundMeAs(client).Fund(ctx, sendValue)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to fund: %s", failed, err)
	}

	if _, err := client.WaitMined(ctx, tx); err != nil {
		t.Fatalf("\t%s\tShould be able to mine the funding: %s", failed, err)
	}
}

func fee(receipt *types.Receipt) *big.Int {
	return new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
}

func TestUSDValue(t *testing.T) {
	tt := []struct {
		name     string
		wei      *big.Int
		answer   *big.Int
		decimals uint8
		usd      *big.Int
	}{
		{"one", ethereum.Ether(1), big.NewInt(2000_00000000), 8, new(big.Int).Mul(big.NewInt(2000), ethereum.Ether(1))},
		{"minimum", ethereum.Gwei(25_000_000), big.NewInt(2000_00000000), 8, fundme.MinimumUSD},
		{"eighteen", ethereum.Ether(2), ethereum.Ether(3), 18, ethereum.Ether(6)},
	}

	t.Log("Given the need to convert ETH to USD with a price feed answer.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling %s.", testID, tst.name)
				{
					got := fundme.USDValue(tst.wei, tst.answer, tst.decimals)
					if got.Cmp(tst.usd) != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould get %s, got %s.", failed, testID, tst.usd, got)
					}
					t.Logf("\t%s\tTest %d:\tShould get %s.", success, testID, tst.usd)
				}
			}
			t.Run(tst.name, f)
		}
	}
}

func TestConstructor(t *testing.T) {
	t.Log("Given the need to deploy FundMe.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen FundMe is first deployed.", testID)
		{
			ctx := context.Background()
			f := deploy(t)

			feed, err := f.FundMe.PriceFeed(ctx)
			if err != nil || feed != f.Aggregator.Address() {
				t.Fatalf("\t%s\tTest %d:\tShould set the aggregator address, got %s %v.", failed, testID, feed, err)
			}
			t.Logf("\t%s\tTest %d:\tShould set the aggregator address.", success, testID)

			owner, err := f.FundMe.Owner(ctx)
			if err != nil || owner != f.Owner.Address() {
				t.Fatalf("\t%s\tTest %d:\tShould set the deployer as owner, got %s %v.", failed, testID, owner, err)
			}
			t.Logf("\t%s\tTest %d:\tShould set the deployer as owner.", success, testID)
		}
	}
}

func TestFund(t *testing.T) {
	t.Log("Given the need to fund the contract.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen not sending enough ETH.", testID)
		{
			f := deploy(t)

			_, err := f.FundMe.Fund(context.Background(), nil)
			if !errors.Is(err, fundme.ErrNotEnoughFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould revert with %q, got %v.", failed, testID, fundme.ErrNotEnoughFunds, err)
			}
			t.Logf("\t%s\tTest %d:\tShould revert with %q.", success, testID, fundme.ErrNotEnoughFunds)
		}

		testID++
		t.Logf("\tTest %d:\tWhen sending 1 ETH.", testID)
		{
			ctx := context.Background()
			f := deploy(t)
			fund(t, f, f.Owner)

			amount, err := f.FundMe.AmountFunded(ctx, f.Owner.Address())
			if err != nil || amount.Cmp(sendValue) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould update the amount funded, got %v %v.", failed, testID, amount, err)
			}
			t.Logf("\t%s\tTest %d:\tShould update the amount funded.", success, testID)

			funder, err := f.FundMe.Funder(ctx, 0)
			if err != nil || funder != f.Owner.Address() {
				t.Fatalf("\t%s\tTest %d:\tShould add the funder to the list, got %s %v.", failed, testID, funder, err)
			}
			t.Logf("\t%s\tTest %d:\tShould add the funder to the list.", success, testID)
		}
	}
}

func TestWithdraw(t *testing.T) {
	type withdrawFn func(f *fundme.FundMe, ctx context.Context) (*types.Transaction, error)

	tt := []struct {
		name     string
		funders  int
		withdraw withdrawFn
	}{
		{"single", 0, (*fundme.FundMe).Withdraw},
		{"singlecheaper", 0, (*fundme.FundMe).CheaperWithdraw},
		{"multiple", fundmetest.Funders, (*fundme.FundMe).Withdraw},
		{"multiplecheaper", fundmetest.Funders, (*fundme.FundMe).CheaperWithdraw},
	}

	t.Log("Given the need to withdraw the funds as the owner.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen withdrawing with %d extra funders.", testID, tst.funders)
				{
					ctx := context.Background()
					f := deploy(t)

					fund(t, f, f.Owner)
					for _, client := range f.Funders[:tst.funders] {
						fund(t, f, client)
					}

					startContract, _ := f.Owner.Balance(ctx, f.FundMe.Address())
					startOwner, _ := f.Owner.Balance(ctx, f.Owner.Address())

					tx, err := tst.withdraw(f.FundMe, ctx)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to withdraw: %s", failed, testID, err)
					}

					receipt, err := f.Owner.WaitMined(ctx, tx)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to mine the withdraw: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to withdraw.", success, testID)

					endContract, _ := f.Owner.Balance(ctx, f.FundMe.Address())
					endOwner, _ := f.Owner.Balance(ctx, f.Owner.Address())

					if endContract.Sign() != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould empty the contract, got %s.", failed, testID, endContract)
					}
					t.Logf("\t%s\tTest %d:\tShould empty the contract.", success, testID)

					exp := new(big.Int).Add(startContract, startOwner)
					got := new(big.Int).Add(endOwner, fee(receipt))
					if exp.Cmp(got) != 0 {
						t.Fatalf("\t%s\tTest %d:\tShould pay the owner the balance less gas, exp %s got %s.", failed, testID, exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould pay the owner the balance less gas.", success, testID)

					if _, err := f.FundMe.Funder(ctx, 0); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reset the funders.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reset the funders.", success, testID)

					for _, client := range f.Funders[:tst.funders] {
						amount, err := f.FundMe.AmountFunded(ctx, client.Address())
						if err != nil || amount.Sign() != 0 {
							t.Fatalf("\t%s\tTest %d:\tShould reset the amount of %s, got %v %v.", failed, testID, client.Address(), amount, err)
						}
					}
					t.Logf("\t%s\tTest %d:\tShould reset the amounts funded.", success, testID)
				}
			}
			t.Run(tst.name, f)
		}
	}
}

func TestOnlyOwnerWithdraws(t *testing.T) {
	t.Log("Given the need to protect the funds.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen an account that is not the owner withdraws.", testID)
		{
			ctx := context.Background()
			f := deploy(t)
			fund(t, f, f.Owner)

			attacker := f.FundMeAs(f.Funders[0])

			_, err := attacker.Withdraw(ctx)
			if !errors.Is(err, fundme.ErrNotOwner) {
				t.Fatalf("\t%s\tTest %d:\tShould revert with %s, got %v.", failed, testID, fundme.ErrNotOwner, err)
			}
			t.Logf("\t%s\tTest %d:\tShould revert with %s.", success, testID, fundme.ErrNotOwner)

			bal, _ := f.Owner.Balance(ctx, f.FundMe.Address())
			if bal.Cmp(sendValue) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the funds in the contract, got %s.", failed, testID, bal)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the funds in the contract.", success, testID)
		}
	}
}

func TestPriceFeed(t *testing.T) {
	t.Log("Given the need to read the price feed.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the answer is updated.", testID)
		{
			ctx := context.Background()
			f := deploy(t)

			usd, err := f.Aggregator.USDValue(ctx, sendValue)
			if err != nil || usd.Cmp(new(big.Int).Mul(big.NewInt(2000), ethereum.Ether(1))) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould value 1 ETH at 2000 USD, got %v %v.", failed, testID, usd, err)
			}
			t.Logf("\t%s\tTest %d:\tShould value 1 ETH at 2000 USD.", success, testID)

			tx, err := f.Aggregator.UpdateAnswer(ctx, big.NewInt(10_00000000))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to update the answer: %s", failed, testID, err)
			}
			if _, err := f.Owner.WaitMined(ctx, tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the update: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to update the answer.", success, testID)

			_, err = f.FundMe.Fund(ctx, sendValue)
			if !errors.Is(err, fundme.ErrNotEnoughFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould reject 1 ETH at 10 USD, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject 1 ETH at 10 USD.", success, testID)
		}
	}
}
