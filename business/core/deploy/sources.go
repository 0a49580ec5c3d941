package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/lottery/foundation/etherscan"
)

// sourceFile is one entry of a sources file. The source path is relative to
// the sources file.
type sourceFile struct {
	Path             string `json:"path"`
	CodeFormat       string `json:"codeFormat"`
	ContractName     string `json:"contractName"`
	CompilerVersion  string `json:"compilerVersion"`
	OptimizationUsed bool   `json:"optimizationUsed"`
	Runs             int    `json:"runs"`
}

// LoadSources reads the file describing the source of every contract that
// can be verified, keyed by the name the contract is deployed under.
//
//	{
//	  "Raffle": {
//	    "path": "contracts/Raffle.json",
//	    "codeFormat": "solidity-standard-json-input",
//	    "contractName": "contracts/Raffle.sol:Raffle",
//	    "compilerVersion": "v0.8.7+commit.e28d00a7",
//	    "optimizationUsed": true,
//	    "runs": 200
//	  }
//	}
func LoadSources(path string) (map[string]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	var files map[string]sourceFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("decode sources %q: %w", path, err)
	}

	dir := filepath.Dir(path)
	sources := make(map[string]Source, len(files))

	for name, sf := range files {
		code, err := os.ReadFile(filepath.Join(dir, sf.Path))
		if err != nil {
			return nil, fmt.Errorf("source for %s: %w", name, err)
		}

		format := sf.CodeFormat
		if format == "" {
			format = etherscan.FormatSingleFile
		}

		sources[name] = Source{
			SourceCode:       string(code),
			CodeFormat:       format,
			ContractName:     sf.ContractName,
			CompilerVersion:  sf.CompilerVersion,
			OptimizationUsed: sf.OptimizationUsed,
			Runs:             sf.Runs,
		}
	}

	return sources, nil
}
