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
	"github.com/ardanlabs/lottery/app/services/bridge/handlers"
	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/data/deployments"
	"github.com/ardanlabs/lottery/business/web/debug"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/events"
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
	log, err := logger.New("BRIDGE")
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

	// Values in a .env file are loaded into the environment first so they
	// can be overridden like any other setting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:3m"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:3000"`
			DebugHost       string        `conf:"default:0.0.0.0:4000"`
		}
		Chain struct {
			RPCURL       string
			PollInterval time.Duration `conf:"default:2s"`
			MineTimeout  time.Duration `conf:"default:2m"`
			Networks     string
		}
		Wallet struct {
			PrivateKey   string `conf:"mask"`
			ECDSAFile    string
			KeystoreFile string
			Password     string `conf:"mask"`
		}
		Contract struct {
			Constants   string
			Address     string
			Deployments string `conf:"default:deployments"`
		}
		Tracer struct {
			Endpoint    string
			Probability float64 `conf:"default:0.05"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "wallet bridge for the fund me page",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "BRIDGE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// The variables used by the deploy scripts are honored when the
	// prefixed ones are not set.
	cfg.Chain.RPCURL = cmp.Or(cfg.Chain.RPCURL, os.Getenv("RPC_URL"), "http://127.0.0.1:8545")
	cfg.Wallet.PrivateKey = cmp.Or(cfg.Wallet.PrivateKey, os.Getenv("PRIVATE_KEY"))
	cfg.Wallet.Password = cmp.Or(cfg.Wallet.Password, os.Getenv("PRIVATE_KEY_PASSWORD"))

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Tracing Support

	trc, flush, err := tracer.Setup(context.Background(), tracer.Config{
		ServiceName: "bridge",
		EndpointURL: cfg.Tracer.Endpoint,
		Probability: cfg.Tracer.Probability,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer flush(context.Background())

	// =========================================================================
	// Wallet Support

	// The bridge still serves reads without a key. The wallet endpoints
	// report that no wallet is installed.
	privateKey, err := keystore.Resolve(keystore.Config{
		KeystorePath: cfg.Wallet.KeystoreFile,
		Password:     cfg.Wallet.Password,
		ECDSAPath:    cfg.Wallet.ECDSAFile,
		HexKey:       cfg.Wallet.PrivateKey,
	})
	switch {
	case errors.Is(err, keystore.ErrNoKey):
		log.Infow("startup", "status", "no wallet configured, running read only")
	case err != nil:
		return fmt.Errorf("loading wallet key: %w", err)
	}

	// The events package streams the mining progress to every page that is
	// connected through a web socket.
	evts := events.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := ethereum.Dial(ctx, cfg.Chain.RPCURL, privateKey,
		ethereum.WithPollInterval(cfg.Chain.PollInterval),
		ethereum.WithEvHandler(logger.NewEvHandler(log)),
	)
	if err != nil {
		return fmt.Errorf("connecting to network: %w", err)
	}
	defer client.Close()

	log.Infow("startup", "status", "network connected", "chainid", client.ChainID(), "account", client.Address())

	address, err := fundMeAddress(ctx, client, cfg.Contract.Constants, cfg.Contract.Address, cfg.Contract.Deployments, cfg.Chain.Networks)
	if err != nil {
		return err
	}

	log.Infow("startup", "status", "contract located", "contract", fundme.ContractName, "address", address)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls. The readiness check reaches out
	// to the network.
	ready := func(ctx context.Context) error {
		_, err := client.BlockNumber(ctx)
		return err
	}
	debugMux := debug.Mux(build, log, ready)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		Tracer:      trc,
		Client:      client,
		FundMe:      fundme.New(client, address),
		Evts:        evts,
		MineTimeout: cfg.Chain.MineTimeout,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// fundMeAddress locates the contract. A constants file wins over an
// explicit address, which wins over the recorded deployment for the
// connected network.
func fundMeAddress(ctx context.Context, client *ethereum.Client, constants string, address string, deploymentsPath string, networksPath string) (common.Address, error) {
	switch {
	case constants != "":
		c, err := contract.LoadConstants(constants)
		if err != nil {
			return common.Address{}, err
		}
		return c.Address, nil

	case address != "":
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid contract address %q", address)
		}
		return common.HexToAddress(address), nil
	}

	nets, err := networks.Load(networksPath)
	if err != nil {
		return common.Address{}, err
	}

	network, err := nets.Select(client.ChainID().Uint64())
	if err != nil {
		return common.Address{}, err
	}

	store, err := deployments.Open(deploymentsPath)
	if err != nil {
		return common.Address{}, err
	}
	defer store.Close()

	dep, err := store.Get(ctx, network.Name, fundme.ContractName)
	if err != nil {
		return common.Address{}, fmt.Errorf("locating %s on %s: %w", fundme.ContractName, network, err)
	}

	return dep.Address, nil
}
