package deployments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS deployments (
	network       TEXT    NOT NULL,
	contract_name TEXT    NOT NULL,
	chain_id      INTEGER NOT NULL,
	address       TEXT    NOT NULL,
	tx_hash       TEXT    NOT NULL,
	block_number  INTEGER NOT NULL,
	deployer      TEXT    NOT NULL,
	args          TEXT    NOT NULL,
	ctor_args     TEXT    NOT NULL,
	abi           TEXT    NOT NULL,
	verified      INTEGER NOT NULL,
	deployed_at   INTEGER NOT NULL,
	PRIMARY KEY (network, contract_name)
)`

// SQLite stores deployments in a SQLite database.
type SQLite struct {
	sqlDB *sql.DB
}

// NewSQLite opens the database at the path and creates the schema.
func NewSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0755); err != nil {
		return nil, err
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{sqlDB: sqlDB}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	return s.sqlDB.Close()
}

// Save inserts the deployment, replacing an earlier one with the same name
// on the network.
func (s *SQLite) Save(ctx context.Context, dep Deployment) error {
	if dep.Network == "" || dep.ContractName == "" {
		return errors.New("network and contract name are required")
	}

	args, err := json.Marshal(dep.Args)
	if err != nil {
		return err
	}

	contractABI := dep.ABI
	if len(contractABI) == 0 {
		contractABI = json.RawMessage("[]")
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO deployments (
		   network, contract_name, chain_id, address, tx_hash, block_number,
		   deployer, args, ctor_args, abi, verified, deployed_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dep.Network,
		dep.ContractName,
		int64(dep.ChainID),
		dep.Address.Hex(),
		dep.TxHash.Hex(),
		int64(dep.Block),
		dep.Deployer.Hex(),
		string(args),
		hexutil.Encode(dep.ConstructorArgs),
		string(contractABI),
		dep.Verified,
		dep.DeployedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", dep.Network, dep.ContractName, err)
	}

	return nil
}

// Get reads the deployment of the contract on the network.
func (s *SQLite) Get(ctx context.Context, network string, contractName string) (Deployment, error) {
	row := s.sqlDB.QueryRowContext(ctx, selectDeployment+` WHERE network = ? AND contract_name = ?`, network, contractName)

	dep, err := scanDeployment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Deployment{}, fmt.Errorf("%s/%s: %w", network, contractName, ErrNotFound)
		}
		return Deployment{}, fmt.Errorf("get %s/%s: %w", network, contractName, err)
	}

	return dep, nil
}

// List returns every deployment on the network sorted by contract name.
func (s *SQLite) List(ctx context.Context, network string) ([]Deployment, error) {
	rows, err := s.sqlDB.QueryContext(ctx, selectDeployment+` WHERE network = ? ORDER BY contract_name`, network)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", network, err)
	}
	defer rows.Close()

	var deps []Deployment
	for rows.Next() {
		dep, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}

	return deps, rows.Err()
}

const selectDeployment = `SELECT network, contract_name, chain_id, address, tx_hash, block_number,
	deployer, args, ctor_args, abi, verified, deployed_at FROM deployments`

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (Deployment, error) {
	var (
		dep        Deployment
		chainID    int64
		address    string
		txHash     string
		block      int64
		deployer   string
		args       string
		ctorArgs   string
		abi        string
		deployedAt int64
	)

	err := row.Scan(&dep.Network, &dep.ContractName, &chainID, &address, &txHash, &block, &deployer, &args, &ctorArgs, &abi, &dep.Verified, &deployedAt)
	if err != nil {
		return Deployment{}, err
	}

	if err := json.Unmarshal([]byte(args), &dep.Args); err != nil {
		return Deployment{}, fmt.Errorf("decode args: %w", err)
	}

	if dep.ConstructorArgs, err = hexutil.Decode(ctorArgs); err != nil {
		return Deployment{}, fmt.Errorf("decode constructor args: %w", err)
	}

	dep.ChainID = uint64(chainID)
	dep.Address = common.HexToAddress(address)
	dep.TxHash = common.HexToHash(txHash)
	dep.Block = uint64(block)
	dep.Deployer = common.HexToAddress(deployer)
	dep.ABI = json.RawMessage(abi)
	dep.DeployedAt = time.UnixMilli(deployedAt).UTC()

	return dep, nil
}
