package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"etherlend/deployer/internal/platform/errcat"
)

const componentName = "deployer"

var ErrChainMismatch = errors.New("connected chain does not match configured chain id")

// Settings carries per-network transaction overrides. Zero values mean "ask
// the node".
type Settings struct {
	ExpectedChainID      uint64
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Confirmations        int
	PollInterval         time.Duration
}

func (s Settings) normalized() Settings {
	if s.Confirmations < 1 {
		s.Confirmations = 1
	}
	if s.PollInterval <= 0 {
		s.PollInterval = time.Second
	}
	return s
}

// Environment binds a backend, a signer and an artifact source; it plays the
// role of the framework runtime that hands out contract factories.
type Environment struct {
	backend   Backend
	signer    TxSigner
	artifacts ArtifactSource
	chainID   *big.Int
	settings  Settings
	logger    *slog.Logger
}

// NewEnvironment queries the chain id once and checks it against
// settings.ExpectedChainID when that is set.
func NewEnvironment(ctx context.Context, backend Backend, signer TxSigner, source ArtifactSource, settings Settings, logger *slog.Logger) (*Environment, error) {
	if backend == nil || signer == nil || source == nil {
		return nil, errcat.Wrap(errcat.CategoryConfig, errors.New("deployer: backend, signer and artifact source are required"))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, errcat.Wrap(errcat.CategoryNetwork, fmt.Errorf("query chain id: %w", err))
	}
	if settings.ExpectedChainID != 0 && (!chainID.IsUint64() || chainID.Uint64() != settings.ExpectedChainID) {
		return nil, errcat.Wrap(errcat.CategoryConfig, fmt.Errorf("%w: node reports %s, configured %d", ErrChainMismatch, chainID, settings.ExpectedChainID))
	}
	return &Environment{
		backend:   backend,
		signer:    signer,
		artifacts: source,
		chainID:   chainID,
		settings:  settings.normalized(),
		logger:    logger,
	}, nil
}

func (e *Environment) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

func (e *Environment) Deployer() TxSigner {
	return e.signer
}

// GetContractFactory resolves name to a deployable artifact.
func (e *Environment) GetContractFactory(ctx context.Context, name string) (*ContractFactory, error) {
	if err := ctx.Err(); err != nil {
		return nil, errcat.Wrap(errcat.CategoryNetwork, err)
	}
	art, err := e.artifacts.Load(name)
	if err != nil {
		return nil, errcat.Wrap(errcat.CategoryArtifact, fmt.Errorf("get contract factory %s: %w", name, err))
	}
	if err := art.CheckDeployable(); err != nil {
		return nil, errcat.Wrap(errcat.CategoryArtifact, fmt.Errorf("get contract factory %s: %w", name, err))
	}
	e.logger.Debug("contract factory ready",
		"component", componentName,
		"operation", "get_contract_factory",
		"contract", art.FullyQualifiedName(),
		"artifact", art.Path,
		"bytecode_bytes", len(art.Bytecode),
	)
	return &ContractFactory{env: e, artifact: art}, nil
}
