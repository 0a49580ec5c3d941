package handlers_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/lottery/app/services/bridge/handlers"
	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/fundme/fundmetest"
	"github.com/ardanlabs/lottery/business/web/errs"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ardanlabs/lottery/foundation/events"
	goeth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type bridge struct {
	fix  *fundmetest.Fixture
	evts *events.Events
	mux  http.Handler
}

func newBridge(t *testing.T, client *ethereum.Client, fix *fundmetest.Fixture, timeout time.Duration) bridge {
	evts := events.New()
	t.Cleanup(evts.Shutdown)

	mux := handlers.APIMux(handlers.MuxConfig{
		Shutdown:    make(chan os.Signal, 1),
		Log:         zap.NewNop().Sugar(),
		Client:      client,
		FundMe:      fundme.New(client, fix.FundMe.Address()),
		Evts:        evts,
		MineTimeout: timeout,
	})

	return bridge{fix: fix, evts: evts, mux: mux}
}

func (b bridge) do(method string, path string, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	b.mux.ServeHTTP(w, r)
	return w
}

func deploy(t *testing.T) *fundmetest.Fixture {
	fix, err := fundmetest.Deploy(context.Background())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to deploy the contracts: %v", failed, err)
	}
	return fix
}

// =============================================================================

func TestIndex(t *testing.T) {
	fix := deploy(t)
	b := newBridge(t, fix.Owner, fix, 0)

	t.Log("Given the need to serve the wallet page.")
	{
		t.Logf("\tTest 0:\tWhen requesting the root path.")
		{
			w := b.do(http.MethodGet, "/", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 200 status code, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 200 status code.", success)

			if !strings.Contains(w.Body.String(), "fundButton") {
				t.Fatalf("\t%s\tTest 0:\tShould receive the page with the fund button.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould receive the page with the fund button.", success)
		}
	}
}

func TestConnect(t *testing.T) {
	fix := deploy(t)

	readOnly, err := ethereum.NewClient(context.Background(), fix.Chain, nil)
	if err != nil {
		t.Fatalf("Should be able to construct a read only client: %v", err)
	}

	t.Log("Given the need to connect a page to the wallet.")
	{
		t.Logf("\tTest 0:\tWhen a signing key is configured.")
		{
			b := newBridge(t, fix.Owner, fix, 0)

			w := b.do(http.MethodPost, "/v1/connect", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 200 status code, got %d: %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 200 status code.", success)

			var acct struct {
				Account string `json:"account"`
				Balance string `json:"balance"`
				ChainID uint64 `json:"chainId"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &acct); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the response: %v", failed, err)
			}

			if acct.Account != fix.Owner.Address().Hex() {
				t.Fatalf("\t%s\tTest 0:\tShould get the owner account, got %s.", failed, acct.Account)
			}
			t.Logf("\t%s\tTest 0:\tShould get the owner account.", success)

			if acct.ChainID != ethtest.DefaultChainID.Uint64() || acct.Balance == "" {
				t.Fatalf("\t%s\tTest 0:\tShould get the chain id and balance, got %+v.", failed, acct)
			}
			t.Logf("\t%s\tTest 0:\tShould get the chain id and balance.", success)
		}

		t.Logf("\tTest 1:\tWhen no signing key is configured.")
		{
			b := newBridge(t, readOnly, fix, 0)

			for _, path := range []string{"/v1/connect", "/v1/withdraw"} {
				w := b.do(http.MethodPost, path, "")
				if w.Code != http.StatusServiceUnavailable {
					t.Fatalf("\t%s\tTest 1:\tShould receive a 503 status code from %s, got %d.", failed, path, w.Code)
				}
			}
			t.Logf("\t%s\tTest 1:\tShould receive a 503 status code.", success)

			w := b.do(http.MethodGet, "/v1/balance", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 1:\tShould still read the contract balance, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould still read the contract balance.", success)
		}
	}
}

func TestFund(t *testing.T) {
	type table struct {
		name   string
		body   string
		status int
		field  string
		reason string
	}

	tt := []table{
		{name: "zero", body: `{"amount":"0"}`, status: http.StatusBadRequest, field: "amount"},
		{name: "missing", body: `{}`, status: http.StatusBadRequest, field: "amount"},
		{name: "garbage", body: `{"amount":"ten"}`, status: http.StatusBadRequest, field: "amount"},
		{name: "unknown", body: `{"value":"1"}`, status: http.StatusBadRequest},
		{name: "below", body: `{"amount":"0.001"}`, status: http.StatusBadRequest, reason: string(fundme.ErrNotEnoughFunds)},
	}

	fix := deploy(t)
	b := newBridge(t, fix.Funders[0], fix, 0)

	t.Log("Given the need to reject bad fund requests.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s request.", testID, tst.name)
				{
					w := b.do(http.MethodPost, "/v1/fund", tst.body)
					if w.Code != tst.status {
						t.Fatalf("\t%s\tTest %d:\tShould receive a %d status code, got %d: %s", failed, testID, tst.status, w.Code, w.Body)
					}
					t.Logf("\t%s\tTest %d:\tShould receive a %d status code.", success, testID, tst.status)

					var er errs.Response
					if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to decode the error: %v", failed, testID, err)
					}

					if tst.field != "" {
						if _, exists := er.Fields[tst.field]; !exists {
							t.Fatalf("\t%s\tTest %d:\tShould report the %s field, got %+v.", failed, testID, tst.field, er)
						}
						t.Logf("\t%s\tTest %d:\tShould report the %s field.", success, testID, tst.field)
					}

					if tst.reason != "" {
						if !strings.Contains(er.Error, tst.reason) {
							t.Fatalf("\t%s\tTest %d:\tShould report the revert reason, got %q.", failed, testID, er.Error)
						}
						t.Logf("\t%s\tTest %d:\tShould report the revert reason.", success, testID)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}

	t.Log("Given the need to fund the contract through the bridge.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen funding with 0.1 ether.", testID)
		{
			_, ch := b.evts.Subscribe()

			w := b.do(http.MethodPost, "/v1/fund", `{"amount":"0.1"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould receive a 200 status code, got %d: %s", failed, testID, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest %d:\tShould receive a 200 status code.", success, testID)

			var res struct {
				TxHash        string `json:"txHash"`
				Confirmations uint64 `json:"confirmations"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %v", failed, testID, err)
			}

			want := []string{"Mining " + res.TxHash + "...", "Completed with 1 confirmations"}
			for _, exp := range want {
				if got := <-ch; got != exp {
					t.Fatalf("\t%s\tTest %d:\tShould send %q, got %q.", failed, testID, exp, got)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould send the mining progress to the page.", success, testID)

			amount, err := fix.FundMe.AmountFunded(context.Background(), fix.Funders[0].Address())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the funded amount: %v", failed, testID, err)
			}
			if amount.Cmp(big.NewInt(1e17)) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould record 0.1 ether for the funder, got %s.", failed, testID, amount)
			}
			t.Logf("\t%s\tTest %d:\tShould record 0.1 ether for the funder.", success, testID)

			w = b.do(http.MethodGet, "/v1/balance", "")
			var bal struct {
				Balance string `json:"balance"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil || bal.Balance != "0.1" {
				t.Fatalf("\t%s\tTest %d:\tShould report a contract balance of 0.1, got %s.", failed, testID, w.Body)
			}
			t.Logf("\t%s\tTest %d:\tShould report a contract balance of 0.1.", success, testID)
		}
	}
}

func TestWithdraw(t *testing.T) {
	fix := deploy(t)
	ctx := context.Background()

	tx, err := fix.FundMeAs(fix.Funders[0]).Fund(ctx, big.NewInt(1e18))
	if err != nil {
		t.Fatalf("Should be able to fund: %v", err)
	}
	if _, err := fix.Funders[0].WaitMined(ctx, tx); err != nil {
		t.Fatalf("Should be able to mine the fund: %v", err)
	}

	t.Log("Given the need to withdraw through the bridge.")
	{
		t.Logf("\tTest 0:\tWhen the wallet is not the owner.")
		{
			b := newBridge(t, fix.Funders[1], fix, 0)

			w := b.do(http.MethodPost, "/v1/withdraw", "")
			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), string(fundme.ErrNotOwner)) {
				t.Fatalf("\t%s\tTest 0:\tShould be rejected with %s, got %d: %s", failed, fundme.ErrNotOwner, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 0:\tShould be rejected with %s.", success, fundme.ErrNotOwner)
		}

		t.Logf("\tTest 1:\tWhen the wallet is the owner.")
		{
			b := newBridge(t, fix.Owner, fix, 0)

			w := b.do(http.MethodPost, "/v1/withdraw", "")
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 1:\tShould receive a 200 status code, got %d: %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a 200 status code.", success)

			bal, err := fix.Owner.Balance(ctx, fix.FundMe.Address())
			if err != nil || bal.Sign() != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould empty the contract, got %v %v.", failed, bal, err)
			}
			t.Logf("\t%s\tTest 1:\tShould empty the contract.", success)
		}
	}
}

// =============================================================================

// stalled is a chain that never reports a receipt, like a node that dropped
// the transaction.
type stalled struct {
	*ethtest.Chain
}

func (s stalled) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return nil, goeth.NotFound
}

func TestMineTimeout(t *testing.T) {
	fix := deploy(t)
	ctx := context.Background()

	key, addr := ethtest.NewKey()
	fix.Chain.SetBalance(addr, ethereum.Ether(10))

	funder, err := ethereum.NewClient(ctx, stalled{fix.Chain}, key, ethereum.WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("Should be able to construct a client: %v", err)
	}

	t.Log("Given the need to bound the wait for a transaction to be mined.")
	{
		t.Logf("\tTest 0:\tWhen the receipt never shows up.")
		{
			b := newBridge(t, funder, fix, 50*time.Millisecond)
			_, ch := b.evts.Subscribe()

			w := b.do(http.MethodPost, "/v1/fund", `{"amount":"0.1"}`)
			if w.Code != http.StatusGatewayTimeout {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 504 status code, got %d: %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 504 status code.", success)

			<-ch
			if got := <-ch; !strings.HasPrefix(got, "Timed out") {
				t.Fatalf("\t%s\tTest 0:\tShould tell the page the wait timed out, got %q.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould tell the page the wait timed out.", success)
		}
	}
}
