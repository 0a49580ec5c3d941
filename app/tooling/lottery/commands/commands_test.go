package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/lottery/foundation/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func run(args ...string) error {
	root := newRoot("test", zap.NewNop().Sugar())
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestFindArtifact(t *testing.T) {
	dir := t.TempDir()

	write := func(path string, data string) {
		path = filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("\t%s\tShould be able to create the directory : %s", failed, err)
		}
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatalf("\t%s\tShould be able to write the file : %s", failed, err)
		}
	}

	write("contracts/Raffle.sol/Raffle.dbg.json", `{"buildInfo":"../../build-info/x.json"}`)
	write("contracts/Raffle.sol/Raffle.json", `{"contractName":"Raffle","abi":[],"bytecode":"0x6000"}`)

	t.Log("Given the need to locate compiled artifacts by contract name.")
	{
		t.Logf("\tTest 0:\tWhen handling a hardhat artifacts tree.")
		{
			art, err := findArtifact(dir, "Raffle")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to find the artifact : %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to find the artifact.", success)

			if art.ContractName != "Raffle" {
				t.Fatalf("\t%s\tTest 0:\tShould get the raffle : got %q", failed, art.ContractName)
			}
			t.Logf("\t%s\tTest 0:\tShould get the raffle.", success)

			if len(art.Bytecode) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould skip the debug file : got %d bytes of code", failed, len(art.Bytecode))
			}
			t.Logf("\t%s\tTest 0:\tShould skip the debug file.", success)
		}

		t.Logf("\tTest 1:\tWhen the contract was never compiled.")
		{
			_, err := findArtifact(dir, "FundMe")
			if !errors.Is(err, errArtifactNotFound) {
				t.Fatalf("\t%s\tTest 1:\tShould get not found : %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get not found.", success)
		}
	}
}

func TestKeys(t *testing.T) {
	accounts := t.TempDir()

	t.Log("Given the need to manage signing keys from the command line.")
	{
		t.Logf("\tTest 0:\tWhen generating a named key.")
		{
			if err := run("--accounts", accounts, "generate", "player"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to generate the key : %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to generate the key.", success)

			if err := run("--accounts", accounts, "generate", "player"); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould refuse to overwrite the key.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould refuse to overwrite the key.", success)

			if err := run("--accounts", accounts, "--account", "player", "account"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to resolve the named key : %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to resolve the named key.", success)
		}

		t.Logf("\tTest 1:\tWhen encrypting the named key.")
		{
			out := filepath.Join(t.TempDir(), "key.json")

			err := run("--accounts", accounts, "--account", "player", "--password", "secret", "encrypt-key", "--out", out)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to encrypt the key : %s", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to encrypt the key.", success)

			want, err := keystore.LoadECDSA(filepath.Join(accounts, "player"+keystore.KeyExtension))
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to load the raw key : %s", failed, err)
			}

			got, err := keystore.LoadEncrypted(out, "secret")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to decrypt the keystore : %s", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to decrypt the keystore.", success)

			if crypto.PubkeyToAddress(got.PublicKey) != crypto.PubkeyToAddress(want.PublicKey) {
				t.Fatalf("\t%s\tTest 1:\tShould decrypt to the same account.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould decrypt to the same account.", success)
		}

		t.Logf("\tTest 2:\tWhen the named key does not exist.")
		{
			if err := run("--accounts", accounts, "--account", "nobody", "account"); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould fail to resolve the key.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould fail to resolve the key.", success)
		}
	}
}

func TestSendArgs(t *testing.T) {
	t.Log("Given the need to reject bad transfers before touching the network.")
	{
		tt := []struct {
			name string
			args []string
		}{
			{"address", []string{"send", "not-an-address", "--amount", "1"}},
			{"amount", []string{"send", "0x0000000000000000000000000000000000000001", "--amount", "abc"}},
			{"zero", []string{"send", "0x0000000000000000000000000000000000000001", "--amount", "0"}},
			{"missing", []string{"send", "0x0000000000000000000000000000000000000001"}},
		}

		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen sending with a bad %s.", testID, tst.name)
				{
					args := append([]string{"--rpc-url", "http://127.0.0.1:1"}, tst.args...)
					if err := run(args...); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reject the transfer.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the transfer.", success, testID)
				}
			}
			t.Run(tst.name, f)
		}
	}
}
