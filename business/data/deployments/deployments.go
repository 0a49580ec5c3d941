// Package deployments records what was deployed where, so later scripts and
// services can locate a contract by network and name instead of being handed
// an address.
package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotFound is returned when no deployment is recorded for the name.
var ErrNotFound = errors.New("deployment not found")

// Deployment is the record of a deployed contract.
type Deployment struct {
	Network         string          `json:"network"`
	ChainID         uint64          `json:"chainId"`
	ContractName    string          `json:"contractName"`
	Address         common.Address  `json:"address"`
	TxHash          common.Hash     `json:"transactionHash"`
	Block           uint64          `json:"blockNumber"`
	Deployer        common.Address  `json:"deployer"`
	Args            []string        `json:"args"`
	ConstructorArgs hexutil.Bytes   `json:"constructorArgs"`
	ABI             json.RawMessage `json:"abi"`
	Verified        bool            `json:"verified"`
	DeployedAt      time.Time       `json:"deployedAt"`
}

// Storer represents the behavior required to persist deployments.
type Storer interface {
	Save(ctx context.Context, d Deployment) error
	Get(ctx context.Context, network string, contractName string) (Deployment, error)
	List(ctx context.Context, network string) ([]Deployment, error)
	Close() error
}

// Open constructs the store for the path. A path ending in .db or .sqlite
// is a SQLite database, anything else a directory of JSON files.
func Open(path string) (Storer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(path)
	}
	return NewDisk(path)
}

// FormatArgs converts constructor arguments into the strings recorded with
// a deployment.
func FormatArgs(args []any) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case common.Address:
			out[i] = v.Hex()
		case common.Hash:
			out[i] = v.Hex()
		case [32]byte:
			out[i] = common.Hash(v).Hex()
		case []byte:
			out[i] = common.Bytes2Hex(v)
		case interface{ String() string }:
			out[i] = v.String()
		default:
			data, err := json.Marshal(v)
			if err != nil {
				out[i] = "?"
				continue
			}
			out[i] = string(data)
		}
	}
	return out
}
