package keystore

import (
	"crypto/ecdsa"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyExtension is the file extension of raw private key files.
const KeyExtension = ".ecdsa"

// NameService maintains the named accounts found in an accounts folder. The
// file name without its extension is the account name, so deployer.ecdsa
// becomes the deployer account.
type NameService struct {
	names map[common.Address]string
	keys  map[string]*ecdsa.PrivateKey
}

// NewNameService walks the specified folder and loads every .ecdsa file.
func NewNameService(root string) (*NameService, error) {
	ns := NameService{
		names: make(map[common.Address]string),
		keys:  make(map[string]*ecdsa.PrivateKey),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != KeyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("load %q: %w", fileName, err)
		}

		name := strings.TrimSuffix(filepath.Base(fileName), KeyExtension)
		ns.names[crypto.PubkeyToAddress(privateKey.PublicKey)] = name
		ns.keys[name] = privateKey

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified address. The hex address is
// returned when the account is unknown.
func (ns *NameService) Lookup(address common.Address) string {
	name, exists := ns.names[address]
	if !exists {
		return address.Hex()
	}
	return name
}

// Key returns the private key for the named account.
func (ns *NameService) Key(name string) (*ecdsa.PrivateKey, error) {
	privateKey, exists := ns.keys[strings.TrimSuffix(name, KeyExtension)]
	if !exists {
		return nil, fmt.Errorf("account %q not found", name)
	}
	return privateKey, nil
}

// Copy returns a copy of the map of addresses and names.
func (ns *NameService) Copy() map[common.Address]string {
	cpy := make(map[common.Address]string, len(ns.names))
	for address, name := range ns.names {
		cpy[address] = name
	}
	return cpy
}
