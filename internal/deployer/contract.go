package deployer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"etherlend/deployer/internal/platform/errcat"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrNotDeployed = errors.New("contract deployment is not confirmed yet")
	ErrReverted    = errors.New("deployment transaction reverted")
	ErrNoCode      = errors.New("no contract code at deployed address")
)

// Contract is a submitted deployment. Its address becomes readable only after
// Deployed has observed a successful receipt.
type Contract struct {
	env       *Environment
	name      string
	tx        *types.Transaction
	from      common.Address
	predicted common.Address

	// waitMu serializes Deployed; mu guards the confirmed state.
	waitMu   sync.Mutex
	mu       sync.Mutex
	receipt  *types.Receipt
	address  common.Address
	deployed bool
}

func (c *Contract) Name() string {
	return c.name
}

func (c *Contract) DeploymentTransaction() *types.Transaction {
	return c.tx
}

// Deployed waits until the creation transaction is mined with the configured
// number of confirmations and code exists at the new address. Calling it again
// after success returns immediately.
func (c *Contract) Deployed(ctx context.Context) error {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()
	if _, err := c.Address(); err == nil {
		return nil
	}

	env := c.env
	hash := c.tx.Hash()
	receipt, err := waitMined(ctx, env.backend, hash, env.settings.PollInterval)
	if err != nil {
		return errcat.Wrap(errcat.CategoryNetwork, fmt.Errorf("wait for %s deployment %s: %w", c.name, hash.Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errcat.Wrap(errcat.CategoryTransaction, fmt.Errorf("%w: %s in block %v (gas used %d)", ErrReverted, hash.Hex(), receipt.BlockNumber, receipt.GasUsed))
	}
	if env.settings.Confirmations > 1 {
		if err := waitConfirmations(ctx, env.backend, receipt.BlockNumber.Uint64(), env.settings.Confirmations, env.settings.PollInterval); err != nil {
			return errcat.Wrap(errcat.CategoryNetwork, fmt.Errorf("wait for %s confirmations: %w", c.name, err))
		}
	}

	address := receipt.ContractAddress
	if address == (common.Address{}) {
		address = c.predicted
	}
	code, err := env.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return errcat.Wrap(errcat.CategoryNetwork, fmt.Errorf("fetch code at %s: %w", address.Hex(), err))
	}
	if len(code) == 0 {
		return errcat.Wrap(errcat.CategoryTransaction, fmt.Errorf("%w: %s", ErrNoCode, address.Hex()))
	}

	c.mu.Lock()
	c.receipt = receipt
	c.address = address
	c.deployed = true
	c.mu.Unlock()

	env.logger.Info("deployment confirmed",
		"component", componentName,
		"operation", "deployed",
		"contract", c.name,
		"tx_hash", hash.Hex(),
		"address", address.Hex(),
		"block", receipt.BlockNumber.Uint64(),
		"gas_used", receipt.GasUsed,
	)
	return nil
}

func (c *Contract) Address() (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.deployed {
		return common.Address{}, ErrNotDeployed
	}
	return c.address, nil
}

// Receipt returns the confirmed receipt, or nil before Deployed succeeds.
func (c *Contract) Receipt() *types.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt
}
