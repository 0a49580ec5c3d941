// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	v1 "github.com/ardanlabs/lottery/app/services/bridge/handlers/v1"
	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/web/mid"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/events"
	"github.com/ardanlabs/lottery/foundation/web"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Shutdown    chan os.Signal
	Log         *zap.SugaredLogger
	Tracer      trace.Tracer
	Client      *ethereum.Client
	FundMe      *fundme.FundMe
	Evts        *events.Events
	MineTimeout time.Duration
}

// APIMux constructs a http.Handler with all application routes defined.
func APIMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		cfg.Tracer,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	// The page that drives the wallet.
	app.Handle(http.MethodGet, "", "/", index)

	// Load the v1 routes.
	v1.Routes(app, v1.Config{
		Log:         cfg.Log,
		Client:      cfg.Client,
		FundMe:      cfg.FundMe,
		Evts:        cfg.Evts,
		MineTimeout: cfg.MineTimeout,
	})

	return app
}
