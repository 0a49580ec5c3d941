package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Disk stores each deployment in its own file named after the contract,
// under a directory per network.
type Disk struct {
	dbPath string
}

// NewDisk constructs a disk store rooted at the path.
func NewDisk(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since every deployment is
// written to its own file and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Save writes the deployment, replacing an earlier one with the same name
// on the network.
func (d *Disk) Save(ctx context.Context, dep Deployment) error {
	if dep.Network == "" || dep.ContractName == "" {
		return errors.New("network and contract name are required")
	}

	// Marshal the deployment in a human readable format.
	data, err := json.MarshalIndent(dep, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(d.dbPath, dep.Network), 0755); err != nil {
		return err
	}

	// Write to a temp file first so a crash never leaves half a record.
	path := d.getPath(dep.Network, dep.ContractName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// Get reads the deployment of the contract on the network.
func (d *Disk) Get(ctx context.Context, network string, contractName string) (Deployment, error) {
	f, err := os.Open(d.getPath(network, contractName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Deployment{}, fmt.Errorf("%s/%s: %w", network, contractName, ErrNotFound)
		}
		return Deployment{}, err
	}
	defer f.Close()

	var dep Deployment
	if err := json.NewDecoder(f).Decode(&dep); err != nil {
		return Deployment{}, fmt.Errorf("decode %s/%s: %w", network, contractName, err)
	}

	return dep, nil
}

// List returns every deployment on the network sorted by contract name.
func (d *Disk) List(ctx context.Context, network string) ([]Deployment, error) {
	entries, err := os.ReadDir(filepath.Join(d.dbPath, network))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var deps []Deployment
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}

		dep, err := d.Get(ctx, network, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}

	sort.Slice(deps, func(i, j int) bool {
		return deps[i].ContractName < deps[j].ContractName
	})

	return deps, nil
}

// getPath forms the path to the specified deployment.
func (d *Disk) getPath(network string, contractName string) string {
	return filepath.Join(d.dbPath, network, contractName+".json")
}
