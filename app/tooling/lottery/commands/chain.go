package commands

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func blockNumberCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	cmd := cobra.Command{
		Use:   "block-number",
		Short: "Show the current block number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, false)
			if err != nil {
				return err
			}
			defer e.Close()

			number, err := e.client.BlockNumber(ctx)
			if err != nil {
				return err
			}

			log.Infow("block-number", "network", e.network, "block", number)
			return nil
		},
	}

	return &cmd
}

func balanceCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	cmd := cobra.Command{
		Use:   "balance [address]",
		Short: "Show the balance of an address or of the configured account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, len(args) == 0)
			if err != nil {
				return err
			}
			defer e.Close()

			account := e.client.Address()
			if len(args) == 1 {
				if !common.IsHexAddress(args[0]) {
					return fmt.Errorf("invalid address %q", args[0])
				}
				account = common.HexToAddress(args[0])
			}

			wei, err := e.client.Balance(ctx, account)
			if err != nil {
				return err
			}

			log.Infow("balance", "account", account, "ether", ethereum.FormatEther(wei), "wei", wei)
			return nil
		},
	}

	return &cmd
}

func accountCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	cmd := cobra.Command{
		Use:   "account",
		Short: "Show the address of the configured signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			privateKey, err := s.privateKey()
			if err != nil {
				return err
			}

			log.Infow("account", "address", crypto.PubkeyToAddress(privateKey.PublicKey))
			return nil
		},
	}

	return &cmd
}

func sendCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var amount string

	cmd := cobra.Command{
		Use:   "send <address>",
		Short: "Send ether from the configured account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid address %q", args[0])
			}
			to := common.HexToAddress(args[0])

			value, err := ethereum.ParseEther(amount)
			if err != nil {
				return err
			}
			if value.Sign() <= 0 {
				return errors.New("amount must be greater than zero")
			}

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			tx, err := e.client.SendValue(ctx, to, value)
			if err != nil {
				return err
			}

			log.Infow("send", "status", "sending", "to", to, "amount", amount, "tx", tx.Hash())

			receipt, err := e.client.WaitMined(ctx, tx)
			if err != nil {
				return err
			}

			log.Infow("send", "status", "sent", "block", receipt.BlockNumber, "gasUsed", receipt.GasUsed)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Ether to send.")
	cmd.MarkFlagRequired("amount")

	return &cmd
}
