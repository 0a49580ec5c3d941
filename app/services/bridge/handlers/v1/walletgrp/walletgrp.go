// Package walletgrp maintains the group of handlers that let a browser page
// drive the FundMe contract through the bridge's wallet.
package walletgrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/sys/validate"
	"github.com/ardanlabs/lottery/business/web/errs"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/events"
	"github.com/ardanlabs/lottery/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNoWallet is returned when the bridge was started without a signing key.
var ErrNoWallet = errors.New("no wallet configured, please install a key")

// DefaultMineTimeout is used when no mined wait timeout is configured.
const DefaultMineTimeout = 2 * time.Minute

// Handlers manages the set of wallet endpoints.
type Handlers struct {
	Log         *zap.SugaredLogger
	Client      *ethereum.Client
	FundMe      *fundme.FundMe
	Evts        *events.Events
	WS          websocket.Upgrader
	MineTimeout time.Duration
}

// Connect returns the wallet account with its balance.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if !h.Client.CanSign() {
		return errs.NewTrusted(ErrNoWallet, http.StatusServiceUnavailable)
	}

	bal, err := h.Client.Balance(ctx, h.Client.Address())
	if err != nil {
		return fmt.Errorf("account balance: %w", err)
	}

	acct := account{
		Account: h.Client.Address().Hex(),
		Balance: ethereum.FormatEther(bal),
		ChainID: h.Client.ChainID().Uint64(),
	}

	return web.Respond(ctx, w, acct, http.StatusOK)
}

// Balance returns the amount of ether held by the contract.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	bal, err := h.Client.Balance(ctx, h.FundMe.Address())
	if err != nil {
		return fmt.Errorf("contract balance: %w", err)
	}

	resp := balance{
		Contract: h.FundMe.Address().Hex(),
		Balance:  ethereum.FormatEther(bal),
		Wei:      bal.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Fund sends the requested amount of ether to the contract and waits for
// the transaction to be mined.
func (h Handlers) Fund(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	if !h.Client.CanSign() {
		return errs.NewTrusted(ErrNoWallet, http.StatusServiceUnavailable)
	}

	var req fundRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	amount, err := ethereum.ParseEther(req.Amount)
	if err != nil {
		return validate.FieldErrors{{Field: "amount", Error: err.Error()}}
	}
	if amount.Sign() == 0 {
		return validate.FieldErrors{{Field: "amount", Error: "amount must be greater than zero"}}
	}

	h.Log.Infow("fund", "traceid", v.TraceID, "account", h.Client.Address(), "amount", req.Amount)

	tx, err := h.FundMe.Fund(ctx, amount)
	if err != nil {
		return txError(err)
	}

	res, err := h.waitMined(ctx, tx.Hash())
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// Withdraw moves the contract balance to the owner. Only the owner's wallet
// is allowed to do this.
func (h Handlers) Withdraw(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	if !h.Client.CanSign() {
		return errs.NewTrusted(ErrNoWallet, http.StatusServiceUnavailable)
	}

	h.Log.Infow("withdraw", "traceid", v.TraceID, "account", h.Client.Address())

	tx, err := h.FundMe.Withdraw(ctx)
	if err != nil {
		return txError(err)
	}

	res, err := h.waitMined(ctx, tx.Hash())
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, res, http.StatusOK)
}

// Events handles a web socket to stream the mining progress to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Subscribe()
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

// =============================================================================

// waitMined waits for the transaction to be mined, reporting progress to
// every connected page. The wait is bounded by the mine timeout and by the
// request.
func (h Handlers) waitMined(ctx context.Context, hash common.Hash) (txResult, error) {
	timeout := h.MineTimeout
	if timeout <= 0 {
		timeout = DefaultMineTimeout
	}

	h.Evts.Sendf("Mining %s...", hash)

	receipt, err := h.Client.WaitMinedTimeout(ctx, hash, timeout)
	switch {
	case errors.Is(err, ethereum.ErrMineTimeout):
		h.Evts.Sendf("Timed out waiting for %s", hash)
		return txResult{}, errs.NewTrusted(err, http.StatusGatewayTimeout)

	case errors.Is(err, ethereum.ErrTxFailed):
		h.Evts.Sendf("Transaction %s failed", hash)
		return txResult{}, errs.NewTrusted(err, http.StatusUnprocessableEntity)

	case err != nil:
		return txResult{}, fmt.Errorf("wait mined: %w", err)
	}

	head, err := h.Client.BlockNumber(ctx)
	if err != nil {
		return txResult{}, fmt.Errorf("block number: %w", err)
	}

	confirmations := confirmationsAt(head, receipt.BlockNumber.Uint64())
	h.Evts.Sendf("Completed with %d confirmations", confirmations)

	res := txResult{
		TxHash:        hash.Hex(),
		Block:         receipt.BlockNumber.Uint64(),
		GasUsed:       receipt.GasUsed,
		Confirmations: confirmations,
	}

	return res, nil
}

// confirmationsAt counts the inclusion block as the first confirmation. A
// node behind the one that served the receipt still reports one.
func confirmationsAt(head uint64, block uint64) uint64 {
	if head < block {
		return 1
	}
	return head - block + 1
}

// txError converts a failed submission into a response error. Reverts are
// the caller's problem and are reported with the contract's reason.
func txError(err error) error {
	var r fundme.Revert
	if errors.As(err, &r) {
		return errs.NewTrusted(r, http.StatusBadRequest)
	}

	if reason := ethereum.RevertReason(err, fundme.ContractABI()); reason != "" {
		return errs.NewTrusted(fmt.Errorf("reverted: %s", reason), http.StatusBadRequest)
	}

	return fmt.Errorf("submit transaction: %w", err)
}
