package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/lottery/business/core/fundme"
	"github.com/ardanlabs/lottery/business/core/raffle"
	"github.com/ardanlabs/lottery/business/core/vrfmock"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errArtifactNotFound is returned when no compiled artifact matches a name.
var errArtifactNotFound = errors.New("artifact not found")

func deployCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var artifacts string
	var sources string

	cmd := cobra.Command{
		Use:   "deploy",
		Short: "Deploy a contract and record the deployment",
	}
	cmd.PersistentFlags().StringVar(&artifacts, "artifacts", "artifacts", "Directory holding the compiled contract artifacts.")
	cmd.PersistentFlags().StringVar(&sources, "sources", "", "Sources file used to verify the contracts with the explorer.")

	mocks := cobra.Command{
		Use:   "mocks",
		Short: "Deploy the coordinator and price feed mocks on a development chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			coordinator, err := findArtifact(artifacts, vrfmock.ContractName)
			if err != nil {
				return err
			}

			aggregator, err := findArtifact(artifacts, fundme.AggregatorName)
			if err != nil {
				return err
			}

			d, err := e.deployer(s, sources)
			if err != nil {
				return err
			}

			m, err := d.Mocks(ctx, coordinator, aggregator)
			if err != nil {
				return err
			}

			log.Infow("deploy", "coordinator", m.Coordinator.Address, "aggregator", m.Aggregator.Address)
			return nil
		},
	}

	rfl := cobra.Command{
		Use:   "raffle",
		Short: "Deploy the raffle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			art, err := findArtifact(artifacts, raffle.ContractName)
			if err != nil {
				return err
			}

			d, err := e.deployer(s, sources)
			if err != nil {
				return err
			}

			dep, err := d.Raffle(ctx, art)
			if err != nil {
				return err
			}

			log.Infow("deploy", "contract", dep.ContractName, "address", dep.Address, "verified", dep.Verified)
			return nil
		},
	}

	fm := cobra.Command{
		Use:   "fund-me",
		Short: "Deploy FundMe against the network's price feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			art, err := findArtifact(artifacts, fundme.ContractName)
			if err != nil {
				return err
			}

			d, err := e.deployer(s, sources)
			if err != nil {
				return err
			}

			dep, err := d.FundMe(ctx, art)
			if err != nil {
				return err
			}

			log.Infow("deploy", "contract", dep.ContractName, "address", dep.Address, "verified", dep.Verified)
			return nil
		},
	}

	var favorite int64
	ss := cobra.Command{
		Use:   "simple-storage",
		Short: "Deploy SimpleStorage and store a favorite number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := s.open(ctx, log, true)
			if err != nil {
				return err
			}
			defer e.Close()

			d, err := e.deployer(s, sources)
			if err != nil {
				return err
			}

			dep, err := d.SimpleStorage(ctx, big.NewInt(favorite))
			if err != nil {
				return err
			}

			log.Infow("deploy", "contract", dep.ContractName, "address", dep.Address, "verified", dep.Verified)
			return nil
		},
	}
	ss.Flags().Int64Var(&favorite, "favorite", 7, "Favorite number stored after the deployment.")

	cmd.AddCommand(&mocks, &rfl, &fm, &ss)

	return &cmd
}

// findArtifact walks the artifacts directory for the compiled contract with
// the specified name. Hardhat debug files are ignored.
func findArtifact(dir string, name string) (contract.Artifact, error) {
	var found string

	fn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".dbg.json") {
			return nil
		}
		if d.Name() == name+".json" {
			found = path
			return fs.SkipAll
		}
		return nil
	}

	if err := filepath.WalkDir(dir, fn); err != nil {
		return contract.Artifact{}, fmt.Errorf("searching %q: %w", dir, err)
	}

	if found == "" {
		return contract.Artifact{}, fmt.Errorf("%s in %q: %w", name, dir, errArtifactNotFound)
	}

	return contract.LoadArtifact(found)
}
