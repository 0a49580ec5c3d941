package commands

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func verifyCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var sources string

	cmd := cobra.Command{
		Use:   "verify [contract...]",
		Short: "Verify recorded deployments with the block explorer",
		Long:  "Verify the named deployments, or every deployment recorded for the network, with the block explorer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if s.etherscanKey == "" {
				return errors.New("an explorer api key is required: set --etherscan-key or ETHERSCAN_API_KEY")
			}
			if sources == "" {
				return errors.New("a sources file is required: set --sources")
			}

			e, err := s.open(ctx, log, false)
			if err != nil {
				return err
			}
			defer e.Close()

			d, err := e.deployer(s, sources)
			if err != nil {
				return err
			}

			result, err := d.VerifyRecorded(ctx, args...)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(result))
			for name := range result {
				names = append(names, name)
			}
			sort.Strings(names)

			var failed int
			for _, name := range names {
				log.Infow("verify", "contract", name, "verified", result[name])
				if !result[name] {
					failed++
				}
			}

			if failed > 0 {
				log.Infow("verify", "status", "some contracts are not verified", "failed", failed)
			}

			return nil
		},
	}
	cmd.Flags().StringVar(&sources, "sources", "", "Sources file describing how each contract was compiled.")

	return &cmd
}
