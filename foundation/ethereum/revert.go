package ethereum

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RevertReason extracts the reason a call reverted. Solidity Error(string)
// and Panic(uint256) payloads are decoded. Custom errors are resolved to
// their name using the provided contract ABIs. Nodes that only report a
// message (hardhat, ganache) are parsed from the text. An empty string is
// returned when the error carries no revert information.
func RevertReason(err error, abis ...abi.ABI) string {
	if err == nil {
		return ""
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if data := revertData(de.ErrorData()); len(data) >= 4 {
			if reason, err := abi.UnpackRevert(data); err == nil {
				return reason
			}

			for _, contractABI := range abis {
				for name, abiErr := range contractABI.Errors {
					if bytes.Equal(abiErr.ID[:4], data[:4]) {
						return name
					}
				}
			}
		}
	}

	msg := err.Error()

	for _, marker := range []string{"custom error '", "reason string '"} {
		if _, rest, ok := strings.Cut(msg, marker); ok {
			if i := strings.IndexAny(rest, "('"); i >= 0 {
				return rest[:i]
			}
			return rest
		}
	}

	if _, reason, ok := strings.Cut(msg, "execution reverted: "); ok {
		if i := strings.Index(reason, "("); i > 0 {
			return reason[:i]
		}
		return reason
	}

	return ""
}

// IsRevert reports if the error is a revert with the specified reason or
// custom error name.
func IsRevert(err error, name string, abis ...abi.ABI) bool {
	if err == nil {
		return false
	}

	if reason := RevertReason(err, abis...); reason != "" && strings.Contains(reason, name) {
		return true
	}

	return strings.Contains(err.Error(), name)
}

// revertData converts the data field of a JSON-RPC error into bytes.
func revertData(v any) []byte {
	switch data := v.(type) {
	case []byte:
		return data
	case string:
		b, err := hexutil.Decode(data)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}
