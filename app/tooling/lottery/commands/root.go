// Package commands contains the lottery scripts.
package commands

import (
	"cmp"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/lottery/business/core/deploy"
	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/data/deployments"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/etherscan"
	"github.com/ardanlabs/lottery/foundation/keystore"
	"github.com/ardanlabs/lottery/foundation/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// settings holds the persistent flags shared by every command.
type settings struct {
	rpcURL       string
	key          string
	keystore     string
	password     string
	accounts     string
	account      string
	deployments  string
	networks     string
	etherscanKey string
	pollInterval time.Duration
}

// Execute builds the command tree and runs the command selected by the
// arguments. An interrupt cancels the command at its next wait.
func Execute(build string, log *zap.SugaredLogger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRoot(build, log).ExecuteContext(ctx)
}

func newRoot(build string, log *zap.SugaredLogger) *cobra.Command {
	var s settings

	root := cobra.Command{
		Use:           "lottery",
		Short:         "Deploy and drive the raffle, fund me and simple storage contracts",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&s.rpcURL, "rpc-url", cmp.Or(os.Getenv("RPC_URL"), "http://127.0.0.1:8545"), "JSON-RPC endpoint of the network.")
	pf.StringVar(&s.key, "key", os.Getenv("PRIVATE_KEY"), "Hex encoded private key.")
	pf.StringVar(&s.keystore, "keystore", "", "Path to an encrypted keystore file.")
	pf.StringVar(&s.password, "password", os.Getenv("PRIVATE_KEY_PASSWORD"), "Password of the keystore file.")
	pf.StringVar(&s.accounts, "accounts", "accounts", "Path to the directory with named .ecdsa keys.")
	pf.StringVarP(&s.account, "account", "a", "", "Name of the key to use from the accounts directory.")
	pf.StringVar(&s.deployments, "deployments", "deployments", "Directory, or .db file, recording the deployments.")
	pf.StringVar(&s.networks, "networks", "", "Optional file overriding the network settings.")
	pf.StringVar(&s.etherscanKey, "etherscan-key", os.Getenv("ETHERSCAN_API_KEY"), "Block explorer API key used for verification.")
	pf.DurationVar(&s.pollInterval, "poll-interval", 2*time.Second, "How often to poll while waiting on a transaction.")

	root.AddCommand(
		deployCmd(&s, log),
		verifyCmd(&s, log),
		enterCmd(&s, log),
		stateCmd(&s, log),
		upkeepCmd(&s, log),
		fundCmd(&s, log),
		withdrawCmd(&s, log),
		storeCmd(&s, log),
		retrieveCmd(&s, log),
		blockNumberCmd(&s, log),
		balanceCmd(&s, log),
		sendCmd(&s, log),
		accountCmd(&s, log),
		generateCmd(&s, log),
		encryptKeyCmd(&s, log),
	)

	return &root
}

// =============================================================================

// env is what a command needs to talk to the network.
type env struct {
	log     *zap.SugaredLogger
	client  *ethereum.Client
	network networks.Config
	store   deployments.Storer
}

// open connects to the network. Commands that only read can run without a
// key.
func (s *settings) open(ctx context.Context, log *zap.SugaredLogger, needKey bool) (*env, error) {
	privateKey, err := s.privateKey()
	switch {
	case errors.Is(err, keystore.ErrNoKey) && !needKey:
	case err != nil:
		return nil, err
	}

	client, err := ethereum.Dial(ctx, s.rpcURL, privateKey,
		ethereum.WithPollInterval(s.pollInterval),
		ethereum.WithEvHandler(logger.NewEvHandler(log)),
	)
	if err != nil {
		return nil, err
	}

	nets, err := networks.Load(s.networks)
	if err != nil {
		client.Close()
		return nil, err
	}

	network, err := nets.Select(client.ChainID().Uint64())
	if err != nil {
		client.Close()
		return nil, err
	}

	store, err := deployments.Open(s.deployments)
	if err != nil {
		client.Close()
		return nil, err
	}

	log.Infow("network", "network", network, "rpc", s.rpcURL, "account", client.Address())

	e := env{
		log:     log,
		client:  client,
		network: network,
		store:   store,
	}

	return &e, nil
}

// privateKey resolves the signing key. A named account wins over the
// keystore file, which wins over the hex key.
func (s *settings) privateKey() (*ecdsa.PrivateKey, error) {
	if s.account != "" {
		ns, err := keystore.NewNameService(s.accounts)
		if err != nil {
			return nil, err
		}
		return ns.Key(s.account)
	}

	password := s.password
	if s.keystore != "" && password == "" {
		fmt.Fprint(os.Stderr, "Keystore password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		password = string(pw)
	}

	return keystore.Resolve(keystore.Config{
		KeystorePath: s.keystore,
		Password:     password,
		HexKey:       s.key,
	})
}

// Close releases the connection and the store.
func (e *env) Close() {
	e.store.Close()
	e.client.Close()
}

// deployer constructs the deployer for the network. Verification is only
// configured when an explorer key and a sources file are available.
func (e *env) deployer(s *settings, sourcesPath string) (*deploy.Deployer, error) {
	d := deploy.Deployer{
		Client:  e.client,
		Network: e.network,
		Store:   e.store,
		Log:     logger.NewEvHandler(e.log),
	}

	if sourcesPath == "" || s.etherscanKey == "" {
		return &d, nil
	}

	sources, err := deploy.LoadSources(sourcesPath)
	if err != nil {
		return nil, err
	}

	d.Sources = sources
	d.Verifier = etherscan.New(s.etherscanKey, etherscan.WithChainID(e.network.ChainIDBig()))

	return &d, nil
}

// locate returns the address of the named contract. An explicit address
// wins over the recorded deployment.
func (e *env) locate(ctx context.Context, contractName string, address string) (common.Address, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid %s address %q", contractName, address)
		}
		return common.HexToAddress(address), nil
	}

	dep, err := e.store.Get(ctx, e.network.Name, contractName)
	if err != nil {
		return common.Address{}, fmt.Errorf("locating %s on %s: %w", contractName, e.network, err)
	}

	return dep.Address, nil
}
