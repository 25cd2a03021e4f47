package deployer

import (
	"context"
	"fmt"

	"etherlend/deployer/internal/artifacts"
	"etherlend/deployer/internal/platform/errcat"

	"github.com/ethereum/go-ethereum/crypto"
)

// ContractFactory deploys one compiled contract with the environment signer.
type ContractFactory struct {
	env      *Environment
	artifact *artifacts.Artifact
}

func (f *ContractFactory) ContractName() string {
	return f.artifact.ContractName
}

func (f *ContractFactory) Artifact() *artifacts.Artifact {
	return f.artifact
}

// Deploy sends the creation transaction exactly once and returns without
// waiting for it to be mined. Call Contract.Deployed to await confirmation.
func (f *ContractFactory) Deploy(ctx context.Context, args ...any) (*Contract, error) {
	env := f.env
	name := f.artifact.ContractName

	ctorInput, err := f.artifact.ABI.Pack("", args...)
	if err != nil {
		return nil, errcat.Wrap(errcat.CategoryArtifact, fmt.Errorf("encode %s constructor arguments: %w", name, err))
	}
	data := make([]byte, 0, len(f.artifact.Bytecode)+len(ctorInput))
	data = append(data, f.artifact.Bytecode...)
	data = append(data, ctorInput...)

	from := env.signer.Address()
	nonce, err := env.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errcat.Wrap(errcat.CategoryNetwork, fmt.Errorf("fetch nonce for %s: %w", from.Hex(), err))
	}
	fees, err := env.suggestFees(ctx)
	if err != nil {
		return nil, errcat.Wrap(errcat.CategoryNetwork, err)
	}
	gas := env.settings.GasLimit
	if gas == 0 {
		gas, err = env.backend.EstimateGas(ctx, fees.callMsg(from, data))
		if err != nil {
			return nil, errcat.Wrap(errcat.CategoryTransaction, fmt.Errorf("estimate gas for %s: %w", name, err))
		}
	}

	signed, err := env.signer.SignTx(fees.creationTx(env.chainID, nonce, gas, data), env.chainID)
	if err != nil {
		return nil, errcat.Wrap(errcat.CategorySigner, fmt.Errorf("sign %s deployment: %w", name, err))
	}
	if err := env.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errcat.Wrap(errcat.CategoryTransaction, fmt.Errorf("send %s deployment: %w", name, err))
	}

	env.logger.Info("deployment transaction sent",
		"component", componentName,
		"operation", "deploy",
		"contract", name,
		"tx_hash", signed.Hash().Hex(),
		"from", from.Hex(),
		"nonce", nonce,
		"gas_limit", gas,
		"tx_type", signed.Type(),
	)
	return &Contract{
		env:       env,
		name:      name,
		tx:        signed,
		from:      from,
		predicted: crypto.CreateAddress(from, nonce),
	}, nil
}
