// Package keystore loads the private keys used to sign transactions. Keys
// can come from a hex string, a raw .ecdsa file or an encrypted V3 keystore
// file.
package keystore

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ErrNoKey is returned by Resolve when no key source is configured.
var ErrNoKey = errors.New("no private key configured")

// FromHex parses a hex encoded private key with or without the 0x prefix.
func FromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")

	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse hex key: %w", err)
	}

	return privateKey, nil
}

// LoadECDSA reads a hex encoded private key from a .ecdsa file.
func LoadECDSA(path string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load key %q: %w", path, err)
	}

	return privateKey, nil
}

// SaveECDSA writes the private key into a .ecdsa file.
func SaveECDSA(path string, privateKey *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create key folder: %w", err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return fmt.Errorf("save key %q: %w", path, err)
	}

	return nil
}

// LoadEncrypted reads and decrypts a V3 keystore file.
func LoadEncrypted(path string, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %q: %w", path, err)
	}

	return key.PrivateKey, nil
}

// EncryptKey encrypts the private key into V3 keystore JSON using the
// standard scrypt parameters.
func EncryptKey(privateKey *ecdsa.PrivateKey, password string) ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("key id: %w", err)
	}

	key := keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		PrivateKey: privateKey,
	}

	data, err := keystore.EncryptKey(&key, password, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return nil, fmt.Errorf("encrypt key: %w", err)
	}

	return data, nil
}

// WriteEncrypted encrypts the private key and writes it to the specified
// path with owner only permissions.
func WriteEncrypted(path string, privateKey *ecdsa.PrivateKey, password string) (common.Address, error) {
	data, err := EncryptKey(privateKey, password)
	if err != nil {
		return common.Address{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return common.Address{}, fmt.Errorf("create keystore folder: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return common.Address{}, fmt.Errorf("write keystore: %w", err)
	}

	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

// =============================================================================

// Config describes where a signing key can be found.
type Config struct {
	KeystorePath string
	Password     string
	ECDSAPath    string
	HexKey       string
}

// Resolve loads the key from the first configured source. An encrypted
// keystore takes precedence over an .ecdsa file, which takes precedence
// over a hex key.
func Resolve(cfg Config) (*ecdsa.PrivateKey, error) {
	switch {
	case cfg.KeystorePath != "":
		return LoadEncrypted(cfg.KeystorePath, cfg.Password)

	case cfg.ECDSAPath != "":
		return LoadECDSA(cfg.ECDSAPath)

	case cfg.HexKey != "":
		return FromHex(cfg.HexKey)
	}

	return nil, ErrNoKey
}
