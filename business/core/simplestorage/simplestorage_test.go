package simplestorage_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ardanlabs/lottery/business/core/simplestorage"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// newClient starts a simulated chain that commits a block every few
// milliseconds so waits on the client resolve.
func newClient(t *testing.T) *ethereum.Client {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generating key: %s", err)
	}

	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(pk.PublicKey): {Balance: ethereum.Ether(100)},
	})

	shut := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
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

	t.Cleanup(func() {
		close(shut)
		<-done
		backend.Close()
	})

	client, err := ethereum.NewClient(context.Background(), backend.Client(), pk, ethereum.WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("creating client: %s", err)
	}

	return client
}

func TestSimpleStorage(t *testing.T) {
	t.Log("Given the need to deploy and use simple storage.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen deploying the embedded artifact.", testID)
		{
			ctx := context.Background()
			client := newClient(t)

			ss, tx, err := simplestorage.Deploy(ctx, client)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to deploy: %s", failed, testID, err)
			}

			receipt, err := client.WaitConfirmations(ctx, tx, 1)
			if err != nil || receipt.ContractAddress != ss.Address() {
				t.Fatalf("\t%s\tTest %d:\tShould mine the deployment: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to deploy.", success, testID)

			fav, err := ss.Retrieve(ctx)
			if err != nil || fav.Sign() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould start with a favorite number of 0, got %v %v.", failed, testID, fav, err)
			}
			t.Logf("\t%s\tTest %d:\tShould start with a favorite number of 0.", success, testID)

			tx, err = ss.Store(ctx, big.NewInt(7))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to store: %s", failed, testID, err)
			}
			if _, err := client.WaitMined(ctx, tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the store: %s", failed, testID, err)
			}

			fav, err = ss.Retrieve(ctx)
			if err != nil || fav.Int64() != 7 {
				t.Fatalf("\t%s\tTest %d:\tShould update when we call store, got %v %v.", failed, testID, fav, err)
			}
			t.Logf("\t%s\tTest %d:\tShould update when we call store.", success, testID)

			tx, err = ss.AddPerson(ctx, "Patrick", big.NewInt(16))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to add a person: %s", failed, testID, err)
			}
			if _, err := client.WaitMined(ctx, tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the person: %s", failed, testID, err)
			}

			fav, err = ss.FavoriteNumber(ctx, "Patrick")
			if err != nil || fav.Int64() != 16 {
				t.Fatalf("\t%s\tTest %d:\tShould map the name to the number, got %v %v.", failed, testID, fav, err)
			}
			t.Logf("\t%s\tTest %d:\tShould map the name to the number.", success, testID)

			person, err := ss.Person(ctx, 0)
			if err != nil || person.Name != "Patrick" || person.FavoriteNumber.Int64() != 16 {
				t.Fatalf("\t%s\tTest %d:\tShould list the person, got %+v %v.", failed, testID, person, err)
			}
			t.Logf("\t%s\tTest %d:\tShould list the person.", success, testID)
		}
	}
}
