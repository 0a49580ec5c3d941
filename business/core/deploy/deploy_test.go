package deploy_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/lottery/business/core/deploy"
	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/fundme/fundmetest"
	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/raffle/raffletest"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/business/data/deployments"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/ethereum/ethtest"
	"github.com/ardanlabs/lottery/foundation/etherscan"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type fakeVerifier struct {
	mu       sync.Mutex
	status   etherscan.Status
	err      error
	requests []etherscan.VerifyRequest
}

func (f *fakeVerifier) VerifyAndWait(ctx context.Context, req etherscan.VerifyRequest) (etherscan.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	return f.status, f.err
}

func newDeployer(t *testing.T, chainID uint64, verifier deploy.Verifier) *deploy.Deployer {
	cfg, err := networks.Select(chainID)
	if err != nil {
		t.Fatalf("selecting network: %s", err)
	}

	key, addr := ethtest.NewKey()
	chain := ethtest.New(addr)
	raffletest.Register(chain)
	fundmetest.Register(chain)

	client, err := ethereum.NewClient(context.Background(), chain, key, ethereum.WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("creating client: %s", err)
	}

	store, err := deployments.Open(filepath.Join(t.TempDir(), "deployments"))
	if err != nil {
		t.Fatalf("opening store: %s", err)
	}

	d := deploy.Deployer{
		Client:   client,
		Network:  cfg,
		Store:    store,
		Verifier: verifier,
		Sources: map[string]deploy.Source{
			vrfmock.ContractName: {SourceCode: "// SPDX-License-Identifier: MIT", ContractName: "VRFCoordinatorV2Mock", CompilerVersion: "v0.8.7+commit.e28d00a7"},
		},
		Log: func(v string, args ...any) { t.Logf(v, args...) },
	}

	return &d
}

func TestDevelopmentChain(t *testing.T) {
	t.Log("Given the need to deploy everything on a development chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the mocks are deployed first.", testID)
		{
			ctx := context.Background()
			verifier := fakeVerifier{}
			d := newDeployer(t, networks.Ganache, &verifier)

			mocks, err := d.Mocks(ctx, raffletest.CoordinatorArtifact(), fundmetest.AggregatorArtifact())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deploy the mocks: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to deploy the mocks.", success, testID)

			dep, err := d.Raffle(ctx, raffletest.RaffleArtifact())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deploy the raffle: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to deploy the raffle.", success, testID)

			coordinator := vrfmock.New(d.Client, mocks.Coordinator.Address)
			sub, err := coordinator.Subscription(ctx, 1)
			if err != nil || len(sub.Consumers) != 1 || sub.Consumers[0] != dep.Address {
				t.Fatalf("\t%s\tTest %d:\tShould add the raffle as a consumer, got %+v %v.", failed, testID, sub, err)
			}
			if sub.Balance.Cmp(networks.SubscriptionFundAmount) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould fund the subscription, got %s.", failed, testID, sub.Balance)
			}
			t.Logf("\t%s\tTest %d:\tShould create, fund, and add the raffle to a subscription.", success, testID)

			fee, err := raffle.New(d.Client, dep.Address).EntranceFee(ctx)
			if err != nil || fee.Cmp(d.Network.EntranceFee()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould use the network entrance fee, got %v %v.", failed, testID, fee, err)
			}
			t.Logf("\t%s\tTest %d:\tShould use the network entrance fee.", success, testID)

			fm, err := d.FundMe(ctx, fundmetest.FundMeArtifact())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deploy FundMe: %s", failed, testID, err)
			}

			feed, err := fundme.New(d.Client, fm.Address).PriceFeed(ctx)
			if err != nil || feed != mocks.Aggregator.Address {
				t.Fatalf("\t%s\tTest %d:\tShould point FundMe at the mock feed, got %s %v.", failed, testID, feed, err)
			}
			t.Logf("\t%s\tTest %d:\tShould point FundMe at the mock feed.", success, testID)

			list, err := d.Store.List(ctx, d.Network.Name)
			if err != nil || len(list) != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould record four deployments, got %d %v.", failed, testID, len(list), err)
			}
			t.Logf("\t%s\tTest %d:\tShould record four deployments.", success, testID)

			if len(verifier.requests) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not verify on a development chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not verify on a development chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the mocks are missing.", testID)
		{
			d := newDeployer(t, networks.Ganache, nil)

			_, err := d.Raffle(context.Background(), raffletest.RaffleArtifact())
			if !errors.Is(err, deploy.ErrMockRequired) || !errors.Is(err, deployments.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould require the coordinator mock, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould require the coordinator mock.", success, testID)
		}
	}
}

func TestVerify(t *testing.T) {
	tt := []struct {
		name     string
		artifact contract.Artifact
		verifier *fakeVerifier
		verified bool
		requests int
	}{
		{"passed", raffletest.CoordinatorArtifact(), &fakeVerifier{status: etherscan.Status{Passed: true}}, true, 1},
		{"already", raffletest.CoordinatorArtifact(), &fakeVerifier{err: &etherscan.Error{Kind: etherscan.AlreadyVerified, Message: "Contract source code already verified"}}, true, 1},
		{"failed", raffletest.CoordinatorArtifact(), &fakeVerifier{err: &etherscan.Error{Kind: etherscan.Failed, Message: "Fail - Unable to verify"}}, false, 1},
		{"nosource", fundmetest.AggregatorArtifact(), &fakeVerifier{status: etherscan.Status{Passed: true}}, false, 0},
	}

	t.Log("Given the need to verify deployments on a public network.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the explorer reports %s.", testID, tst.name)
				{
					ctx := context.Background()
					d := newDeployer(t, networks.Sepolia, tst.verifier)

					args := vrfmock.ConstructorArgs(networks.BaseFee, networks.GasPriceLink)
					if tst.artifact.ContractName == fundme.AggregatorName {
						args = fundme.AggregatorConstructorArgs(8, big.NewInt(1))
					}

					dep, err := d.Run(ctx, deploy.Plan{Artifact: tst.artifact, Args: args, Confirmations: 1})
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould deploy without error: %s", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould deploy without error.", success, testID)

					if dep.Verified != tst.verified || len(tst.verifier.requests) != tst.requests {
						t.Fatalf("\t%s\tTest %d:\tShould be verified[%v] with %d requests, got %v %d.", failed, testID, tst.verified, tst.requests, dep.Verified, len(tst.verifier.requests))
					}
					t.Logf("\t%s\tTest %d:\tShould be verified[%v].", success, testID, tst.verified)

					stored, err := d.Lookup(ctx, tst.artifact.ContractName)
					if err != nil || stored.Verified != tst.verified || stored.Address != dep.Address {
						t.Fatalf("\t%s\tTest %d:\tShould record the deployment, got %+v %v.", failed, testID, stored, err)
					}
					t.Logf("\t%s\tTest %d:\tShould record the deployment.", success, testID)

					if tst.requests == 1 {
						exp, _ := contract.PackConstructor(tst.artifact.ABI, args...)
						if string(tst.verifier.requests[0].ConstructorArgs) != string(exp) || tst.verifier.requests[0].Address != dep.Address {
							t.Fatalf("\t%s\tTest %d:\tShould send the address and encoded constructor args.", failed, testID)
						}
						t.Logf("\t%s\tTest %d:\tShould send the address and encoded constructor args.", success, testID)
					}
				}
			}
			t.Run(tst.name, f)
		}
	}
}

func TestVerifyRecorded(t *testing.T) {
	ctx := context.Background()

	verifier := fakeVerifier{status: etherscan.Status{Passed: true}}
	d := newDeployer(t, networks.Hardhat, &verifier)

	if _, err := d.Mocks(ctx, raffletest.CoordinatorArtifact(), fundmetest.AggregatorArtifact()); err != nil {
		t.Fatalf("Should be able to deploy the mocks: %s", err)
	}

	t.Log("Given the need to verify recorded deployments.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen verifying every deployment on the network.", testID)
		{
			result, err := d.VerifyRecorded(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould verify without error: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould verify without error.", success, testID)

			if !result[vrfmock.ContractName] || result[fundme.AggregatorName] {
				t.Fatalf("\t%s\tTest %d:\tShould only verify the contract with a source, got %v.", failed, testID, result)
			}
			t.Logf("\t%s\tTest %d:\tShould only verify the contract with a source.", success, testID)

			dep, err := d.Lookup(ctx, vrfmock.ContractName)
			if err != nil || !dep.Verified {
				t.Fatalf("\t%s\tTest %d:\tShould record the verification, got %+v %v.", failed, testID, dep, err)
			}
			t.Logf("\t%s\tTest %d:\tShould record the verification.", success, testID)

			if len(verifier.requests) != 1 || len(verifier.requests[0].ConstructorArgs) == 0 {
				t.Fatalf("\t%s\tTest %d:\tShould send one request with the recorded constructor args, got %d.", failed, testID, len(verifier.requests))
			}
			t.Logf("\t%s\tTest %d:\tShould send one request with the recorded constructor args.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen verifying a verified contract again.", testID)
		{
			result, err := d.VerifyRecorded(ctx, vrfmock.ContractName)
			if err != nil || !result[vrfmock.ContractName] {
				t.Fatalf("\t%s\tTest %d:\tShould report it as verified, got %v %v.", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report it as verified.", success, testID)

			if len(verifier.requests) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould not call the explorer, got %d requests.", failed, testID, len(verifier.requests))
			}
			t.Logf("\t%s\tTest %d:\tShould not call the explorer.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen verifying a contract that was never deployed.", testID)
		{
			if _, err := d.VerifyRecorded(ctx, raffle.ContractName); !errors.Is(err, deployments.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould get ErrNotFound, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get ErrNotFound.", success, testID)
		}
	}
}

func TestSimpleStorage(t *testing.T) {
	t.Log("Given the need to deploy the simple storage contract.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen deploying with the smoke test.", testID)
		{
			ctx := context.Background()

			pk, _ := crypto.GenerateKey()
			backend := simulated.NewBackend(types.GenesisAlloc{
				crypto.PubkeyToAddress(pk.PublicKey): {Balance: ethereum.Ether(100)},
			})

			shut := make(chan struct{})
			go func() {
				ticker := time.NewTicker(5 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						backend.Commit()
					case <-shut:
						return
					}
				}
			}()
			defer backend.Close()
			defer close(shut)

			client, err := ethereum.NewClient(ctx, backend.Client(), pk, ethereum.WithPollInterval(5*time.Millisecond))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create a client: %s", failed, testID, err)
			}

			cfg, _ := networks.Select(networks.Ganache)
			store, err := deployments.Open(filepath.Join(t.TempDir(), "deployments.db"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the store: %s", failed, testID, err)
			}
			defer store.Close()

			d := deploy.Deployer{Client: client, Network: cfg, Store: store}

			dep, err := d.SimpleStorage(ctx, big.NewInt(7))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould deploy and store a number: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould deploy and store a number.", success, testID)

			stored, err := store.Get(ctx, cfg.Name, "SimpleStorage")
			if err != nil || stored.Address != dep.Address || stored.Block == 0 {
				t.Fatalf("\t%s\tTest %d:\tShould record the deployment, got %+v %v.", failed, testID, stored, err)
			}
			t.Logf("\t%s\tTest %d:\tShould record the deployment.", success, testID)
		}
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()

	src := "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.7;\ncontract Raffle {}\n"
	if err := os.WriteFile(filepath.Join(dir, "Raffle.sol"), []byte(src), 0600); err != nil {
		t.Fatalf("writing source: %s", err)
	}

	cfg := `{"Raffle": {"path": "Raffle.sol", "contractName": "Raffle", "compilerVersion": "v0.8.7+commit.e28d00a7", "optimizationUsed": true, "runs": 200}}`
	if err := os.WriteFile(filepath.Join(dir, "sources.json"), []byte(cfg), 0600); err != nil {
		t.Fatalf("writing sources file: %s", err)
	}

	t.Log("Given the need to load the sources used for verification.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reading a sources file.", testID)
		{
			sources, err := deploy.LoadSources(filepath.Join(dir, "sources.json"))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould load the file: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould load the file.", success, testID)

			got := sources[raffle.ContractName]
			if got.SourceCode != src || got.CodeFormat != etherscan.FormatSingleFile || got.Runs != 200 || !got.OptimizationUsed {
				t.Fatalf("\t%s\tTest %d:\tShould read the source with its settings, got %+v.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould read the source with its settings.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a source file is missing.", testID)
		{
			cfg := `{"FundMe": {"path": "FundMe.sol"}}`
			if err := os.WriteFile(filepath.Join(dir, "missing.json"), []byte(cfg), 0600); err != nil {
				t.Fatalf("writing sources file: %s", err)
			}

			if _, err := deploy.LoadSources(filepath.Join(dir, "missing.json")); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to load.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to load.", success, testID)
		}
	}
}
