// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"
	"time"

	"github.com/ardanlabs/lottery/app/services/bridge/handlers/v1/walletgrp"
	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/events"
	"github.com/ardanlabs/lottery/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log         *zap.SugaredLogger
	Client      *ethereum.Client
	FundMe      *fundme.FundMe
	Evts        *events.Events
	MineTimeout time.Duration
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	wgh := walletgrp.Handlers{
		Log:         cfg.Log,
		Client:      cfg.Client,
		FundMe:      cfg.FundMe,
		Evts:        cfg.Evts,
		WS:          websocket.Upgrader{},
		MineTimeout: cfg.MineTimeout,
	}

	app.Handle(http.MethodPost, version, "/connect", wgh.Connect)
	app.Handle(http.MethodGet, version, "/balance", wgh.Balance)
	app.Handle(http.MethodPost, version, "/fund", wgh.Fund)
	app.Handle(http.MethodPost, version, "/withdraw", wgh.Withdraw)
	app.Handle(http.MethodGet, version, "/events", wgh.Events)
}
