package commands

import (
	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/upkeep"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func enterCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string
	var value string

	cmd := cobra.Command{
		Use:   "enter",
		Short: "Enter the raffle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			addr, err := e.locate(ctx, raffle.ContractName, address)
			if err != nil {
				return err
			}
			rfl := raffle.New(e.client, addr)

			fee, err := rfl.EntranceFee(ctx)
			if err != nil {
				return err
			}
			if value != "" {
				if fee, err = ethereum.ParseEther(value); err != nil {
					return err
				}
			}

			tx, err := rfl.EnterRaffle(ctx, fee)
			if err != nil {
				return err
			}

			log.Infow("enter", "status", "entering raffle", "value", ethereum.FormatEther(fee), "tx", tx.Hash())

			if _, err := e.client.WaitMined(ctx, tx); err != nil {
				return err
			}

			players, err := rfl.NumberOfPlayers(ctx)
			if err != nil {
				return err
			}

			log.Infow("enter", "status", "entered", "players", players)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "raffle", "", "Address of the raffle, defaults to the recorded deployment.")
	cmd.Flags().StringVar(&value, "value", "", "Ether sent with the entry, defaults to the entrance fee.")

	return &cmd
}

func stateCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string

	cmd := cobra.Command{
		Use:   "state",
		Short: "Show the state of the raffle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, false)
			if err != nil {
				return err
			}
			defer e.Close()

			addr, err := e.locate(ctx, raffle.ContractName, address)
			if err != nil {
				return err
			}

			snap, err := raffle.New(e.client, addr).Snapshot(ctx)
			if err != nil {
				return err
			}

			log.Infow("state",
				"raffle", addr,
				"state", snap.State,
				"entranceFee", ethereum.FormatEther(snap.EntranceFee),
				"interval", snap.Interval,
				"players", snap.Players,
				"balance", ethereum.FormatEther(snap.Balance),
				"recentWinner", snap.RecentWinner,
				"lastTimeStamp", snap.LastTimeStamp,
				"upkeepNeeded", snap.UpkeepNeeded,
				"numWords", snap.NumWords,
				"requestConfirmations", snap.RequestConfirms,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "raffle", "", "Address of the raffle, defaults to the recorded deployment.")

	return &cmd
}

func upkeepCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var address string
	var confirmations uint64
	var fulfill bool

	cmd := cobra.Command{
		Use:   "upkeep",
		Short: "Check the raffle once and perform upkeep when it is needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			addr, err := e.locate(ctx, raffle.ContractName, address)
			if err != nil {
				return err
			}
			rfl := raffle.New(e.client, addr)

			ev := logger.NewEvHandler(log)

			cfg := upkeep.Config{
				Upkeeper:      rfl,
				Confirmer:     e.client,
				Confirmations: max(confirmations, e.network.Confirmations()),
				EvHandler:     ev,
			}

			if e.network.IsDevelopment() && fulfill {
				coordAddr, err := e.locate(ctx, vrfmock.ContractName, "")
				if err != nil {
					return err
				}

				f := upkeep.Fulfiller{
					Client:      e.client,
					Raffle:      rfl,
					Coordinator: vrfmock.New(e.client, coordAddr),
					EvHandler:   ev,
					OnWinner: func(winner common.Address) {
						log.Infow("upkeep", "status", "winner picked", "winner", winner)
					},
				}
				cfg.OnPerformed = f.OnPerformed
			}

			keeper, err := upkeep.New(cfg)
			if err != nil {
				return err
			}

			result, err := keeper.RunOnce(ctx)
			if err != nil {
				return err
			}

			log.Infow("upkeep", "result", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "raffle", "", "Address of the raffle, defaults to the recorded deployment.")
	cmd.Flags().Uint64Var(&confirmations, "confirmations", 0, "Blocks to wait on after performUpkeep, defaults to the network setting.")
	cmd.Flags().BoolVar(&fulfill, "fulfill", true, "Fulfill the randomness request through the coordinator mock on a development chain.")

	return &cmd
}
