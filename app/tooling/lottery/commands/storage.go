package commands

import (
	"fmt"
	"math/big"

	"github.com/ardanlabs/lottery/business/core/simplestorage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func storeCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string

	cmd := cobra.Command{
		Use:   "store <number>",
		Short: "Store a favorite number in SimpleStorage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			number, ok := new(big.Int).SetString(args[0], 10)
			if !ok || number.Sign() < 0 {
				return fmt.Errorf("invalid favorite number %q", args[0])
			}

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			addr, err := e.locate(ctx, simplestorage.ContractName, address)
			if err != nil {
				return err
			}

			ss, err := simplestorage.New(e.client, addr)
			if err != nil {
				return err
			}

			tx, err := ss.Store(ctx, number)
			if err != nil {
				return err
			}
			if _, err := e.client.WaitMined(ctx, tx); err != nil {
				return err
			}

			log.Infow("store", "status", "stored", "number", number, "tx", tx.Hash())
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "simple-storage", "", "Address of SimpleStorage, defaults to the recorded deployment.")

	return &cmd
}

func retrieveCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string

	cmd := cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve the favorite number from SimpleStorage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, false)
			if err != nil {
				return err
			}
			defer e.Close()

			addr, err := e.locate(ctx, simplestorage.ContractName, address)
			if err != nil {
				return err
			}

			ss, err := simplestorage.New(e.client, addr)
			if err != nil {
				return err
			}

			number, err := ss.Retrieve(ctx)
			if err != nil {
				return err
			}

			log.Infow("retrieve", "number", number)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "simple-storage", "", "Address of SimpleStorage, defaults to the recorded deployment.")

	return &cmd
}
