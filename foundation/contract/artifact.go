package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is a compiled contract ready to be deployed.
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	RawABI       json.RawMessage
	Bytecode     []byte
}

// artifactFile covers the hardhat and foundry artifact layouts. Hardhat
// stores the bytecode as a hex string, foundry as an object.
type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads a compiled contract artifact. The file name is used
// when the artifact does not carry the contract name.
func LoadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}

	art, err := ParseArtifact(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact %q: %w", path, err)
	}

	return art, nil
}

// ParseArtifact decodes a hardhat or foundry artifact held in memory.
func ParseArtifact(data []byte, defaultName string) (Artifact, error) {
	var af artifactFile
	if err := json.Unmarshal(data, &af); err != nil {
		return Artifact{}, fmt.Errorf("decode artifact: %w", err)
	}

	if len(af.ABI) == 0 {
		return Artifact{}, errors.New("missing abi")
	}

	contractABI, err := ParseABI(string(af.ABI))
	if err != nil {
		return Artifact{}, err
	}

	bytecode, err := decodeBytecode(af.Bytecode)
	if err != nil {
		return Artifact{}, err
	}

	name := af.ContractName
	if name == "" {
		name = defaultName
	}

	art := Artifact{
		ContractName: name,
		ABI:          contractABI,
		RawABI:       af.ABI,
		Bytecode:     bytecode,
	}

	return art, nil
}

// LoadABIBin reads the .abi and .bin pair produced by solc.
func LoadABIBin(abiPath string, binPath string) (Artifact, error) {
	abiData, err := os.ReadFile(abiPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("read abi: %w", err)
	}

	contractABI, err := ParseABI(string(abiData))
	if err != nil {
		return Artifact{}, err
	}

	binData, err := os.ReadFile(binPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("read bin: %w", err)
	}

	bytecode, err := hexutil.Decode(prefixed(strings.TrimSpace(string(binData))))
	if err != nil {
		return Artifact{}, fmt.Errorf("decode bin %q: %w", binPath, err)
	}

	name := strings.TrimSuffix(filepath.Base(abiPath), filepath.Ext(abiPath))
	if i := strings.LastIndex(name, "_"); i >= 0 {
		name = name[i+1:]
	}

	art := Artifact{
		ContractName: name,
		ABI:          contractABI,
		RawABI:       abiData,
		Bytecode:     bytecode,
	}

	return art, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing bytecode")
	}

	var hexCode string
	if err := json.Unmarshal(raw, &hexCode); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode bytecode: %w", err)
		}
		hexCode = obj.Object
	}

	bytecode, err := hexutil.Decode(prefixed(hexCode))
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}

	return bytecode, nil
}

func prefixed(hexCode string) string {
	if strings.HasPrefix(hexCode, "0x") {
		return hexCode
	}
	return "0x" + hexCode
}

// =============================================================================

// Constants is the file the browser front ends read to locate a contract.
type Constants struct {
	Address common.Address
	ABI     abi.ABI
}

// LoadConstants reads a constants file holding an address and an ABI.
func LoadConstants(path string) (Constants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Constants{}, fmt.Errorf("read constants: %w", err)
	}

	var cf struct {
		Address string          `json:"address"`
		ABI     json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &cf); err != nil {
		return Constants{}, fmt.Errorf("decode constants %q: %w", path, err)
	}

	if !common.IsHexAddress(cf.Address) {
		return Constants{}, fmt.Errorf("constants %q: invalid address %q", path, cf.Address)
	}

	contractABI, err := ParseABI(string(cf.ABI))
	if err != nil {
		return Constants{}, fmt.Errorf("constants %q: %w", path, err)
	}

	return Constants{Address: common.HexToAddress(cf.Address), ABI: contractABI}, nil
}
