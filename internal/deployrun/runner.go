// Package deployrun performs one contract deployment and reports its address.
package deployrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"etherlend/deployer/internal/metrics"
	"etherlend/deployer/internal/platform/errcat"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const componentName = "deployrun"

// Deployment is a submitted creation transaction whose address becomes
// readable after Deployed returns nil.
type Deployment interface {
	Deployed(ctx context.Context) error
	Address() (common.Address, error)
	Receipt() *types.Receipt
	DeploymentTransaction() *types.Transaction
}

type Factory interface {
	Deploy(ctx context.Context, args ...any) (Deployment, error)
}

type FactoryProvider interface {
	GetContractFactory(ctx context.Context, name string) (Factory, error)
}

type Result struct {
	Contract string
	Address  common.Address
	TxHash   common.Hash
	GasUsed  uint64
	Elapsed  time.Duration
}

// Runner deploys Contract exactly once. It never retries: one factory, one
// Deploy, one wait.
type Runner struct {
	Provider FactoryProvider
	Contract string
	Args     []any
	Network  string
	Stdout   io.Writer
	Logger   *slog.Logger
	Metrics  *metrics.Recorder

	now func() time.Time
}

func (r *Runner) Run(ctx context.Context) (Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	name := r.Contract
	result := Result{Contract: name}
	if r.Provider == nil || r.Stdout == nil || name == "" {
		return result, errcat.Wrap(errcat.CategoryConfig, errors.New("deployrun: provider, stdout and contract name are required"))
	}

	start := now()
	r.Metrics.Attempt(name)
	logger.Info("deployment started",
		"component", componentName,
		"operation", "run",
		"contract", name,
		"network", r.Network,
	)

	err := r.deploy(ctx, &result)
	result.Elapsed = now().Sub(start)
	r.Metrics.Duration(name, result.Elapsed)
	if err != nil {
		err = errcat.Wrap(errcat.Category(err), err)
		r.Metrics.Failure(name, errcat.Category(err))
		logger.Error("deployment failed",
			"component", componentName,
			"operation", "run",
			"contract", name,
			"network", r.Network,
			"category", errcat.Category(err),
			"error", err.Error(),
		)
		return result, err
	}

	r.Metrics.GasUsed(name, result.GasUsed)
	logger.Info("deployment finished",
		"component", componentName,
		"operation", "run",
		"contract", name,
		"network", r.Network,
		"address", result.Address.Hex(),
		"tx_hash", result.TxHash.Hex(),
		"gas_used", result.GasUsed,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)
	return result, nil
}

func (r *Runner) deploy(ctx context.Context, result *Result) error {
	name := r.Contract
	factory, err := r.Provider.GetContractFactory(ctx, name)
	if err != nil {
		return err
	}
	deployment, err := factory.Deploy(ctx, r.Args...)
	if err != nil {
		return err
	}
	if tx := deployment.DeploymentTransaction(); tx != nil {
		result.TxHash = tx.Hash()
	}
	if err := deployment.Deployed(ctx); err != nil {
		return err
	}
	address, err := deployment.Address()
	if err != nil {
		return errcat.Wrap(errcat.CategoryTransaction, fmt.Errorf("read %s address: %w", name, err))
	}
	result.Address = address
	if receipt := deployment.Receipt(); receipt != nil {
		result.GasUsed = receipt.GasUsed
	}

	if _, err := fmt.Fprintf(r.Stdout, "%s contract deployed to: %s\n", name, address.Hex()); err != nil {
		return errcat.Wrap(errcat.CategoryConfig, fmt.Errorf("write result: %w", err))
	}
	return nil
}
