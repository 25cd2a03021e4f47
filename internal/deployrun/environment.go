package deployrun

import (
	"context"

	"etherlend/deployer/internal/deployer"
)

// FromEnvironment exposes a deployer.Environment as a FactoryProvider.
func FromEnvironment(env *deployer.Environment) FactoryProvider {
	return environmentProvider{env: env}
}

type environmentProvider struct {
	env *deployer.Environment
}

func (p environmentProvider) GetContractFactory(ctx context.Context, name string) (Factory, error) {
	factory, err := p.env.GetContractFactory(ctx, name)
	if err != nil {
		return nil, err
	}
	return contractFactory{factory: factory}, nil
}

type contractFactory struct {
	factory *deployer.ContractFactory
}

func (f contractFactory) Deploy(ctx context.Context, args ...any) (Deployment, error) {
	contract, err := f.factory.Deploy(ctx, args...)
	if err != nil {
		return nil, err
	}
	return contract, nil
}
