package ethereum

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Set of well known denominations.
var (
	weiPerEther = big.NewInt(1_000_000_000_000_000_000)
	weiPerGwei  = big.NewInt(1_000_000_000)
)

// ParseEther converts a decimal ether amount like "0.01" into wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, 18)
}

// ParseUnits converts a decimal amount into its integer representation with
// the specified number of decimals.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, errors.New("empty amount")
	}

	if strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("negative amount %q", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" {
		whole = "0"
	}

	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}

	return v, nil
}

// FormatEther converts wei into a decimal ether string without trailing zeros.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18)
}

// FormatUnits converts an integer amount into a decimal string with the
// specified number of decimals.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}

	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(v), base, new(big.Int))

	fracStr := frac.String()
	fracStr = strings.Repeat("0", decimals-len(fracStr)) + fracStr
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return sign + whole.String()
	}

	return sign + whole.String() + "." + fracStr
}

// ToGwei converts wei into a decimal gwei string.
func ToGwei(wei *big.Int) string {
	return FormatUnits(wei, 9)
}

// Ether returns the specified number of whole ether in wei.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerEther)
}

// Gwei returns the specified number of gwei in wei.
func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerGwei)
}
