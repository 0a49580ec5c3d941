package contract

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoBytecode is returned when deploying an artifact without bytecode.
var ErrNoBytecode = errors.New("artifact has no bytecode")

// Deploy submits the deployment transaction for the artifact. The handle is
// usable once the transaction is mined.
func Deploy(opts *bind.TransactOpts, art Artifact, backend bind.ContractBackend, args ...any) (*Handle, *types.Transaction, error) {
	if len(art.Bytecode) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", art.ContractName, ErrNoBytecode)
	}

	address, tx, _, err := bind.DeployContract(opts, art.ABI, art.Bytecode, backend, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("deploy %s: %w", art.ContractName, err)
	}

	return New(address, art.ABI, backend), tx, nil
}
