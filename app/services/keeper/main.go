package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/upkeep"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/business/data/deployments"
	"github.com/ardanlabs/lottery/business/web/debug"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/keystore"
	"github.com/ardanlabs/lottery/foundation/logger"
	"github.com/ardanlabs/lottery/foundation/tracer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("KEEPER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		conf.Version
		Web struct {
			DebugHost       string        `conf:"default:0.0.0.0:4010"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
		Chain struct {
			RPCURL       string
			PollInterval time.Duration `conf:"default:2s"`
			Networks     string
		}
		Wallet struct {
			PrivateKey   string `conf:"mask"`
			ECDSAFile    string
			KeystoreFile string
			Password     string `conf:"mask"`
		}
		Raffle struct {
			Address     string
			Deployments string `conf:"default:deployments"`
		}
		Upkeep struct {
			Interval      time.Duration `conf:"default:15s"`
			Confirmations uint64
			Fulfill       bool `conf:"default:true"`
		}
		Tracer struct {
			Endpoint    string
			Probability float64 `conf:"default:0.05"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "off chain upkeep caller for the raffle",
		},
	}

	const prefix = "KEEPER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	cfg.Chain.RPCURL = cmp.Or(cfg.Chain.RPCURL, os.Getenv("RPC_URL"), "http://127.0.0.1:8545")
	cfg.Wallet.PrivateKey = cmp.Or(cfg.Wallet.PrivateKey, os.Getenv("PRIVATE_KEY"))
	cfg.Wallet.Password = cmp.Or(cfg.Wallet.Password, os.Getenv("PRIVATE_KEY_PASSWORD"))

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Tracing Support

	_, flush, err := tracer.Setup(context.Background(), tracer.Config{
		ServiceName: "keeper",
		EndpointURL: cfg.Tracer.Endpoint,
		Probability: cfg.Tracer.Probability,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer flush(context.Background())

	// =========================================================================
	// Network Support

	privateKey, err := keystore.Resolve(keystore.Config{
		KeystorePath: cfg.Wallet.KeystoreFile,
		Password:     cfg.Wallet.Password,
		ECDSAPath:    cfg.Wallet.ECDSAFile,
		HexKey:       cfg.Wallet.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}

	// The business packages accept a function of this signature to allow the
	// application to log.
	ev := logger.NewEvHandler(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ethereum.Dial(ctx, cfg.Chain.RPCURL, privateKey,
		ethereum.WithPollInterval(cfg.Chain.PollInterval),
		ethereum.WithEvHandler(ev),
	)
	if err != nil {
		return fmt.Errorf("connecting to network: %w", err)
	}
	defer client.Close()

	nets, err := networks.Load(cfg.Chain.Networks)
	if err != nil {
		return err
	}

	network, err := nets.Select(client.ChainID().Uint64())
	if err != nil {
		return err
	}

	log.Infow("startup", "status", "network connected", "network", network, "account", client.Address())

	store, err := deployments.Open(cfg.Raffle.Deployments)
	if err != nil {
		return err
	}
	defer store.Close()

	raffleAddr, err := locate(ctx, store, network, raffle.ContractName, cfg.Raffle.Address)
	if err != nil {
		return err
	}

	rfl := raffle.New(client, raffleAddr)

	log.Infow("startup", "status", "raffle located", "address", raffleAddr)

	// =========================================================================
	// Keeper Support

	keeperCfg := upkeep.Config{
		Upkeeper:      rfl,
		Confirmer:     client,
		Interval:      cfg.Upkeep.Interval,
		Confirmations: cmp.Or(cfg.Upkeep.Confirmations, network.Confirmations()),
		EvHandler:     ev,
	}

	// A development chain has no VRF node listening for the randomness
	// request, so the keeper answers it through the coordinator mock.
	if network.IsDevelopment() && cfg.Upkeep.Fulfill {
		coordAddr, err := locate(ctx, store, network, vrfmock.ContractName, "")
		if err != nil {
			return err
		}

		f := upkeep.Fulfiller{
			Client:      client,
			Raffle:      rfl,
			Coordinator: vrfmock.New(client, coordAddr),
			EvHandler:   ev,
			OnWinner: func(winner common.Address) {
				log.Infow("raffle", "status", "winner picked", "winner", winner)
			},
		}
		keeperCfg.OnPerformed = f.OnPerformed

		log.Infow("startup", "status", "fulfilling randomness through the mock", "coordinator", coordAddr)
	}

	keeper, err := upkeep.New(keeperCfg)
	if err != nil {
		return err
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	ready := func(ctx context.Context) error {
		_, err := client.BlockNumber(ctx)
		return err
	}
	debugMux := debug.Mux(build, log, ready)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	keeperErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "keeper started", "interval", cfg.Upkeep.Interval)
		keeperErrors <- keeper.Run(ctx)
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-keeperErrors:
		return fmt.Errorf("keeper error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// The keeper stops at its next suspension point. A transaction that
		// was already sent is not waited on.
		cancel()

		select {
		case err := <-keeperErrors:
			if err != nil {
				return fmt.Errorf("keeper error: %w", err)
			}
		case <-time.After(cfg.Web.ShutdownTimeout):
			return errors.New("keeper did not stop in time")
		}

		log.Infow("shutdown", "status", "keeper stopped", "counts", keeper.Counts())
	}

	return nil
}

// locate returns the address of the named contract. An explicit address
// wins over the recorded deployment.
func locate(ctx context.Context, store deployments.Storer, network networks.Config, contractName string, address string) (common.Address, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid %s address %q", contractName, address)
		}
		return common.HexToAddress(address), nil
	}

	dep, err := store.Get(ctx, network.Name, contractName)
	if err != nil {
		return common.Address{}, fmt.Errorf("locating %s on %s: %w", contractName, network, err)
	}

	return dep.Address, nil
}
