// Package preflight checks that a deployment could run without sending
// anything: the node answers, the chain is the expected one, the deployer
// account has funds and the artifact is deployable.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"etherlend/deployer/internal/artifacts"

	"github.com/ethereum/go-ethereum/common"
)

type Chain interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type ArtifactSource interface {
	Load(name string) (*artifacts.Artifact, error)
}

type Input struct {
	Network         string
	ExpectedChainID uint64
	Contract        string
	Deployer        common.Address

	// DialErr and SignerErr carry setup failures that happened before the
	// checks could run.
	DialErr   error
	SignerErr error
}

type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

type Report struct {
	Ready     bool      `json:"ready"`
	Network   string    `json:"network"`
	Contract  string    `json:"contract"`
	Deployer  string    `json:"deployer,omitempty"`
	Checks    []Check   `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

type Checker struct {
	chain     Chain
	artifacts ArtifactSource
	now       func() time.Time
}

func New(chain Chain, source ArtifactSource) *Checker {
	return &Checker{chain: chain, artifacts: source, now: time.Now}
}

func (c *Checker) Doctor(ctx context.Context, input Input) Report {
	report := Report{
		Ready:     true,
		Network:   input.Network,
		Contract:  input.Contract,
		Checks:    make([]Check, 0, 6),
		CheckedAt: c.now().UTC(),
	}
	appendCheck := func(name string, err error) {
		check := Check{Name: name, Pass: err == nil}
		if err != nil {
			check.Reason = err.Error()
			report.Ready = false
		}
		report.Checks = append(report.Checks, check)
	}

	signerOK := input.SignerErr == nil
	appendCheck("signer_configured", input.SignerErr)
	if signerOK {
		report.Deployer = input.Deployer.Hex()
	}

	rpcErr := input.DialErr
	var chainID *big.Int
	if rpcErr == nil && c.chain == nil {
		rpcErr = errors.New("no rpc client")
	}
	if rpcErr == nil {
		chainID, rpcErr = c.chain.ChainID(ctx)
	}
	appendCheck("rpc_reachable", rpcErr)
	if rpcErr == nil {
		appendCheck("chain_id_match", checkChainID(chainID, input.ExpectedChainID))
		if signerOK {
			appendCheck("signer_funded", c.checkFunded(ctx, input.Deployer))
		}
	}

	art, err := c.loadArtifact(input.Contract)
	appendCheck("artifact_resolved", err)
	if err == nil {
		appendCheck("bytecode_linked", art.CheckDeployable())
	}
	return report
}

func checkChainID(got *big.Int, expected uint64) error {
	if expected == 0 {
		return nil
	}
	if !got.IsUint64() || got.Uint64() != expected {
		return fmt.Errorf("node reports chain id %s, configured %d", got, expected)
	}
	return nil
}

func (c *Checker) checkFunded(ctx context.Context, account common.Address) error {
	balance, err := c.chain.BalanceAt(ctx, account, nil)
	if err != nil {
		return fmt.Errorf("fetch balance of %s: %w", account.Hex(), err)
	}
	if balance.Sign() <= 0 {
		return fmt.Errorf("deployer %s has no funds", account.Hex())
	}
	return nil
}

func (c *Checker) loadArtifact(name string) (*artifacts.Artifact, error) {
	if c.artifacts == nil {
		return nil, errors.New("no artifact source")
	}
	return c.artifacts.Load(name)
}
