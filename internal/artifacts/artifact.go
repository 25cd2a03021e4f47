// Package artifacts resolves compiled contract artifacts by name from a
// Hardhat artifacts directory or a Foundry out directory.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrNotFound  = errors.New("artifact not found")
	ErrAmbiguous = errors.New("artifact name is ambiguous")
	ErrInvalid   = errors.New("artifact is invalid")
	ErrAbstract  = errors.New("contract has no creation bytecode")
	ErrUnlinked  = errors.New("contract bytecode has unlinked libraries")
)

type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Artifact is the subset of a compiler artifact needed to deploy a contract.
type Artifact struct {
	ContractName   string
	SourceName     string
	ABI            abi.ABI
	Bytecode       []byte
	LinkReferences map[string]map[string][]LinkReference

	// Path is the file the artifact was read from.
	Path string

	placeholders bool
}

type rawArtifact struct {
	Format         string                                `json:"_format"`
	ContractName   string                                `json:"contractName"`
	SourceName     string                                `json:"sourceName"`
	ABI            json.RawMessage                       `json:"abi"`
	Bytecode       json.RawMessage                       `json:"bytecode"`
	LinkReferences map[string]map[string][]LinkReference `json:"linkReferences"`
}

type foundryBytecode struct {
	Object         string                                `json:"object"`
	LinkReferences map[string]map[string][]LinkReference `json:"linkReferences"`
}

// Parse decodes a Hardhat (hh-sol-artifact-1) or Foundry artifact. fallbackName
// is used when the artifact does not carry its own contract name.
func Parse(data []byte, fallbackName string) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(bytes.TrimSpace(raw.ABI)) == 0 || string(bytes.TrimSpace(raw.ABI)) == "null" {
		return nil, fmt.Errorf("%w: missing abi", ErrInvalid)
	}
	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: abi: %v", ErrInvalid, err)
	}

	code, links, err := decodeBytecodeField(raw.Bytecode)
	if err != nil {
		return nil, err
	}
	if len(raw.LinkReferences) > 0 {
		links = raw.LinkReferences
	}

	art := &Artifact{
		ContractName:   strings.TrimSpace(raw.ContractName),
		SourceName:     strings.TrimSpace(raw.SourceName),
		ABI:            parsedABI,
		LinkReferences: links,
	}
	if art.ContractName == "" {
		art.ContractName = fallbackName
	}

	code = strings.TrimPrefix(strings.TrimSpace(code), "0x")
	if strings.Contains(code, "__") {
		art.placeholders = true
		return art, nil
	}
	if len(code)%2 != 0 {
		return nil, fmt.Errorf("%w: bytecode has odd length", ErrInvalid)
	}
	decoded, err := hexutil.Decode("0x" + code)
	if err != nil && code != "" {
		return nil, fmt.Errorf("%w: bytecode: %v", ErrInvalid, err)
	}
	art.Bytecode = decoded
	return art, nil
}

func decodeBytecodeField(field json.RawMessage) (string, map[string]map[string][]LinkReference, error) {
	trimmed := bytes.TrimSpace(field)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", nil, nil
	}
	if trimmed[0] == '"' {
		var code string
		if err := json.Unmarshal(trimmed, &code); err != nil {
			return "", nil, fmt.Errorf("%w: bytecode: %v", ErrInvalid, err)
		}
		return code, nil, nil
	}
	var obj foundryBytecode
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", nil, fmt.Errorf("%w: bytecode: %v", ErrInvalid, err)
	}
	return obj.Object, obj.LinkReferences, nil
}

// FullyQualifiedName returns source:Contract, or the contract name alone when
// the source is unknown.
func (a *Artifact) FullyQualifiedName() string {
	if a.SourceName == "" {
		return a.ContractName
	}
	return a.SourceName + ":" + a.ContractName
}

func (a *Artifact) UnlinkedLibraries() []string {
	out := make([]string, 0)
	for source, libs := range a.LinkReferences {
		for lib := range libs {
			out = append(out, source+":"+lib)
		}
	}
	sort.Strings(out)
	return out
}

// CheckDeployable reports why the artifact cannot be deployed as is.
func (a *Artifact) CheckDeployable() error {
	if libs := a.UnlinkedLibraries(); len(libs) > 0 {
		return fmt.Errorf("%w: %s needs %s", ErrUnlinked, a.ContractName, strings.Join(libs, ", "))
	}
	if a.placeholders {
		return fmt.Errorf("%w: %s", ErrUnlinked, a.ContractName)
	}
	if len(a.Bytecode) == 0 {
		return fmt.Errorf("%w: %s is abstract or an interface", ErrAbstract, a.ContractName)
	}
	return nil
}
