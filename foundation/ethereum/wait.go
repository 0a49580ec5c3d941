package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Set of errors returned while waiting on transactions.
var (
	ErrTxFailed    = errors.New("transaction failed")
	ErrMineTimeout = errors.New("timed out waiting for transaction to be mined")
)

// WaitMined blocks until the transaction is included in a block. The wait is
// only bounded by the context. If the transaction was included but failed,
// the receipt is returned with an error wrapping ErrTxFailed.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return c.waitReceipt(ctx, tx.Hash())
}

// WaitConfirmations blocks until the transaction has been included and the
// specified number of blocks, counting the inclusion block, exist on top of
// the chain. No timeout is applied: under network congestion this can wait
// for as long as the context allows.
func (c *Client) WaitConfirmations(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	hash := tx.Hash()

	receipt, err := c.waitReceipt(ctx, hash)
	if err != nil || confirmations <= 1 {
		return receipt, err
	}

	c.evHandler("ethereum: WaitConfirmations: tx[%s] block[%d] waiting for %d confirmations", hash, receipt.BlockNumber, confirmations)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		head, err := c.backend.BlockNumber(ctx)
		if err != nil {
			c.evHandler("ethereum: WaitConfirmations: tx[%s]: retrieve block number: %s", hash, err)
		}

		if err == nil && head+1 >= receipt.BlockNumber.Uint64()+confirmations {

			// A reorganization can remove the transaction from the block it
			// was first seen in. Check the receipt again before declaring
			// the transaction durable.
			current, err := c.backend.TransactionReceipt(ctx, hash)
			switch {
			case errors.Is(err, ethereum.NotFound):
				c.evHandler("ethereum: WaitConfirmations: tx[%s]: WARNING: dropped by reorg, waiting again", hash)
				if receipt, err = c.waitReceipt(ctx, hash); err != nil {
					return receipt, err
				}
				continue

			case err != nil:
				c.evHandler("ethereum: WaitConfirmations: tx[%s]: retrieve receipt: %s", hash, err)

			case current.BlockHash != receipt.BlockHash:
				c.evHandler("ethereum: WaitConfirmations: tx[%s]: WARNING: moved to block[%d] by reorg", hash, current.BlockNumber)
				receipt = current
				continue

			default:
				c.evHandler("ethereum: WaitConfirmations: tx[%s]: completed with %d confirmations", hash, head+1-receipt.BlockNumber.Uint64())
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitMinedTimeout is the bounded form of the one time mined wait. It
// resolves exactly once: with the receipt, with ErrMineTimeout when the
// timeout expires, or with the context error when the caller cancels.
func (c *Client) WaitMinedTimeout(ctx context.Context, hash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := c.waitReceipt(ctx, hash)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("tx[%s] after %v: %w", hash, timeout, ErrMineTimeout)
	}

	return receipt, err
}

// waitReceipt polls for the receipt of the specified transaction.
func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.evHandler("ethereum: waitReceipt: mining tx[%s]...", hash)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("tx[%s] block[%d]: %w", hash, receipt.BlockNumber, ErrTxFailed)
			}
			c.evHandler("ethereum: waitReceipt: mined tx[%s] block[%d] gas[%d]", hash, receipt.BlockNumber, receipt.GasUsed)
			return receipt, nil

		// Nodes report fresh receipts as unavailable while their transaction
		// index catches up. Any lookup failure is retried until the context
		// ends.
		case err != nil && !errors.Is(err, ethereum.NotFound):
			c.evHandler("ethereum: waitReceipt: tx[%s]: retrieve receipt: %s", hash, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
