package commands

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/lottery/foundation/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func generateCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	cmd := cobra.Command{
		Use:   "generate <name>",
		Short: "Generate a new named key in the accounts directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(s.accounts, args[0]+keystore.KeyExtension)

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("key %q already exists", path)
			}

			if err := os.MkdirAll(s.accounts, 0700); err != nil {
				return fmt.Errorf("create accounts directory: %w", err)
			}

			privateKey, err := crypto.GenerateKey()
			if err != nil {
				return err
			}

			if err := keystore.SaveECDSA(path, privateKey); err != nil {
				return err
			}

			log.Infow("generate", "name", args[0], "path", path, "address", crypto.PubkeyToAddress(privateKey.PublicKey))
			return nil
		},
	}

	return &cmd
}

func encryptKeyCmd(s *settings, log *zap.SugaredLogger) *cobra.Command {
	var out string

	cmd := cobra.Command{
		Use:   "encrypt-key",
		Short: "Encrypt the configured private key into a keystore file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.key == "" && s.account == "" {
				return errors.New("a key is required: set --key, PRIVATE_KEY or --account")
			}

			var key *ecdsa.PrivateKey
			var err error
			switch {
			case s.account != "":
				ns, nsErr := keystore.NewNameService(s.accounts)
				if nsErr != nil {
					return nsErr
				}
				key, err = ns.Key(s.account)
			default:
				key, err = keystore.FromHex(s.key)
			}
			if err != nil {
				return err
			}

			password := s.password
			if password == "" {
				if password, err = promptNewPassword(); err != nil {
					return err
				}
			}

			addr, err := keystore.WriteEncrypted(out, key, password)
			if err != nil {
				return err
			}

			log.Infow("encrypt-key", "path", out, "address", addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", ".encryptedKey.json", "Path of the keystore file to write.")

	return &cmd
}

// promptNewPassword reads a password twice from the terminal.
func promptNewPassword() (string, error) {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(os.Stderr, "New keystore password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}

	return string(first), nil
}
