// Package deploy orchestrates contract deployments: it deploys an artifact,
// waits for the network's confirmations, records the deployment and, on
// public networks, verifies the source with the block explorer.
package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/lottery/business/core/networks"
	"github.com/ardanlabs/lottery/business/data/deployments"
	"github.com/ardanlabs/lottery/foundation/contract"
	"github.com/ardanlabs/lottery/foundation/ethereum"
	"github.com/ardanlabs/lottery/foundation/etherscan"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventHandler defines a function that is called when events occur in the
// processing of a deployment.
type EventHandler func(v string, args ...any)

// Verifier represents the block explorer the source is verified with.
type Verifier interface {
	VerifyAndWait(ctx context.Context, req etherscan.VerifyRequest) (etherscan.Status, error)
}

// Source is what the block explorer needs to compile and match a contract.
type Source struct {
	SourceCode       string
	CodeFormat       string
	ContractName     string
	CompilerVersion  string
	OptimizationUsed bool
	Runs             int
}

// Plan describes one deployment for Run.
type Plan struct {
	Artifact      contract.Artifact
	Args          []any
	Confirmations uint64
	SmokeTest     func(ctx context.Context, dep deployments.Deployment) error
}

// Deployer deploys contracts to a network. Store, Verifier, and Sources are
// optional.
type Deployer struct {
	Client   *ethereum.Client
	Network  networks.Config
	Store    deployments.Storer
	Verifier Verifier
	Sources  map[string]Source
	Log      EventHandler
}

// Deploy submits the deployment transaction for the artifact. The returned
// record is completed by Run once the transaction is mined.
func (d *Deployer) Deploy(ctx context.Context, art contract.Artifact, args ...any) (deployments.Deployment, *types.Transaction, error) {
	opts, err := d.Client.TransactOpts(ctx, nil)
	if err != nil {
		return deployments.Deployment{}, nil, err
	}

	d.log("deploy: %s: deploying on %s", art.ContractName, d.Network.Name)

	handle, tx, err := contract.Deploy(opts, art, d.Client.Backend(), args...)
	if err != nil {
		return deployments.Deployment{}, nil, err
	}

	d.log("deploy: %s: tx[%s] address[%s]", art.ContractName, tx.Hash(), handle.Address())

	ctorArgs, err := contract.PackConstructor(art.ABI, args...)
	if err != nil {
		return deployments.Deployment{}, nil, err
	}

	dep := deployments.Deployment{
		Network:         d.Network.Name,
		ChainID:         d.Client.ChainID().Uint64(),
		ContractName:    art.ContractName,
		Address:         handle.Address(),
		TxHash:          tx.Hash(),
		Deployer:        d.Client.Address(),
		Args:            deployments.FormatArgs(args),
		ConstructorArgs: ctorArgs,
		ABI:             art.RawABI,
	}

	return dep, tx, nil
}

// WaitConfirmations waits for the transaction to be mined and confirmed by
// the specified number of blocks. The wait is only bounded by the context.
func (d *Deployer) WaitConfirmations(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	d.log("deploy: tx[%s]: waiting for %d confirmations", tx.Hash(), confirmations)
	return d.Client.WaitConfirmations(ctx, tx, confirmations)
}

// Verify submits the source of the deployment to the block explorer. It is
// best effort: a contract that is already verified counts as verified and
// every other failure is logged and reported as not verified.
func (d *Deployer) Verify(ctx context.Context, dep deployments.Deployment) bool {
	if d.Verifier == nil {
		return false
	}

	d.log("deploy: %s: verifying contract...", dep.ContractName)

	src, exists := d.Sources[dep.ContractName]
	if !exists {
		d.log("deploy: %s: verify: no source configured", dep.ContractName)
		return false
	}

	req := etherscan.VerifyRequest{
		Address:          dep.Address,
		SourceCode:       src.SourceCode,
		CodeFormat:       src.CodeFormat,
		ContractName:     src.ContractName,
		CompilerVersion:  src.CompilerVersion,
		OptimizationUsed: src.OptimizationUsed,
		Runs:             src.Runs,
		ConstructorArgs:  dep.ConstructorArgs,
	}

	status, err := d.Verifier.VerifyAndWait(ctx, req)
	switch {
	case etherscan.IsKind(err, etherscan.AlreadyVerified):
		d.log("deploy: %s: Already verified!", dep.ContractName)
		return true

	case err != nil:
		d.log("deploy: %s: verify: %s", dep.ContractName, err)
		return false

	case !status.Passed:
		d.log("deploy: %s: verify: not passed: %s", dep.ContractName, status.Message)
		return false
	}

	d.log("deploy: %s: verified: %s", dep.ContractName, status.Message)
	return true
}

// Run deploys the plan, waits for the confirmations, records the deployment,
// verifies it on public networks, and runs the smoke test.
func (d *Deployer) Run(ctx context.Context, plan Plan) (deployments.Deployment, error) {
	dep, tx, err := d.Deploy(ctx, plan.Artifact, plan.Args...)
	if err != nil {
		return deployments.Deployment{}, err
	}

	confirmations := plan.Confirmations
	if confirmations == 0 {
		confirmations = d.Network.Confirmations()
	}

	receipt, err := d.WaitConfirmations(ctx, tx, confirmations)
	if err != nil {
		return deployments.Deployment{}, fmt.Errorf("deploy %s: %w", plan.Artifact.ContractName, err)
	}

	dep.Block = receipt.BlockNumber.Uint64()
	dep.DeployedAt = time.Now().UTC()

	d.log("deploy: %s: deployed at %s in block[%d]", dep.ContractName, dep.Address, dep.Block)

	if err := d.save(ctx, dep); err != nil {
		return dep, err
	}

	if !d.Network.IsDevelopment() && d.Verifier != nil {
		if d.Verify(ctx, dep) {
			dep.Verified = true
			if err := d.save(ctx, dep); err != nil {
				return dep, err
			}
		}
	}

	if plan.SmokeTest != nil {
		if err := plan.SmokeTest(ctx, dep); err != nil {
			return dep, fmt.Errorf("smoke test %s: %w", dep.ContractName, err)
		}
	}

	d.log("deploy: %s: ----------------------------------------------------", dep.ContractName)

	return dep, nil
}

// Lookup returns the recorded deployment of the contract on the network.
func (d *Deployer) Lookup(ctx context.Context, contractName string) (deployments.Deployment, error) {
	if d.Store == nil {
		return deployments.Deployment{}, fmt.Errorf("%s: %w", contractName, deployments.ErrNotFound)
	}
	return d.Store.Get(ctx, d.Network.Name, contractName)
}

func (d *Deployer) save(ctx context.Context, dep deployments.Deployment) error {
	if d.Store == nil {
		return nil
	}

	if err := d.Store.Save(ctx, dep); err != nil {
		return fmt.Errorf("record %s: %w", dep.ContractName, err)
	}

	return nil
}

func (d *Deployer) log(v string, args ...any) {
	if d.Log != nil {
		d.Log(v, args...)
	}
}

