package commands

import (
	"errors"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func fundCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string
	var amount string

	cmd := cobra.Command{
		Use:   "fund",
		Short: "Fund the FundMe contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			addr, err := e.locate(ctx, fundme.ContractName, address)
			if err != nil {
				return err
			}
			fm := fundme.New(e.client, addr)

			log.Infow("fund", "status", "funding contract", "contract", addr, "amount", amount)

			tx, err := fm.Fund(ctx, value)
			if err != nil {
				return err
			}
			if _, err := e.client.WaitMined(ctx, tx); err != nil {
				return err
			}

			funded, err := fm.AmountFunded(ctx, e.client.Address())
			if err != nil {
				return err
			}

			log.Infow("fund", "status", "funded", "tx", tx.Hash(), "total", ethereum.FormatEther(funded))
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "fund-me", "", "Address of FundMe, defaults to the recorded deployment.")
	cmd.Flags().StringVar(&amount, "amount", "0.1", "Ether to fund the contract with.")

	return &cmd
}

func withdrawCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string
	var cheaper bool

	cmd := cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw the FundMe balance to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			addr, err := e.locate(ctx, fundme.ContractName, address)
			if err != nil {
				return err
			}
			fm := fundme.New(e.client, addr)

			log.Infow("withdraw", "status", "withdrawing", "contract", addr, "cheaper", cheaper)

			withdraw := fm.Withdraw
			if cheaper {
				withdraw = fm.CheaperWithdraw
			}

			tx, err := withdraw(ctx)
			if err != nil {
				return err
			}
			if _, err := e.client.WaitMined(ctx, tx); err != nil {
				return err
			}

			balance, err := e.client.Balance(ctx, addr)
			if err != nil {
				return err
			}

			log.Infow("withdraw", "status", "withdrawn", "tx", tx.Hash(), "balance", ethereum.FormatEther(balance))
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "fund-me", "", "Address of FundMe, defaults to the recorded deployment.")
	cmd.Flags().BoolVar(&cheaper, "cheaper", false, "Use the storage optimized withdraw.")

	return &cmd
}
