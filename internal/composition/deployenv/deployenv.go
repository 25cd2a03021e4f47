// Package deployenv wires a resolved network configuration into a ready
// deployment environment: RPC client, signer and artifact store.
package deployenv

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"etherlend/deployer/internal/artifacts"
	"etherlend/deployer/internal/config"
	"etherlend/deployer/internal/deployer"
	"etherlend/deployer/internal/platform/errcat"
	"etherlend/deployer/internal/platform/privacylog"
	"etherlend/deployer/internal/preflight"
	"etherlend/deployer/internal/signer"

	"github.com/ethereum/go-ethereum/ethclient"
)

const componentName = "deployenv"

type Session struct {
	Network     config.Network
	Client      *ethclient.Client
	Signer      *signer.Signer
	Artifacts   *artifacts.Store
	Environment *deployer.Environment
}

// Open builds the signer first so a missing account fails before any network
// traffic, then dials the node and checks its chain id.
func Open(ctx context.Context, network config.Network, artifactsDir string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s, err := signer.FromAccounts(network.Accounts)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", network.Name, err)
	}
	client, err := dial(ctx, network)
	if err != nil {
		return nil, err
	}
	store := artifacts.NewStore(artifactsDir)
	env, err := deployer.NewEnvironment(ctx, client, s, store, Settings(network), logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("network %s: %w", network.Name, err)
	}
	logger.Info("deployment environment ready",
		"component", componentName,
		"operation", "open",
		"network", network.Name,
		"rpc_url", network.URL,
		"chain_id", env.ChainID().String(),
		"deployer", s.Address().Hex(),
		"signer_source", s.Source(),
		"artifacts", store.Root(),
	)
	return &Session{
		Network:     network,
		Client:      client,
		Signer:      s,
		Artifacts:   store,
		Environment: env,
	}, nil
}

func (s *Session) Close() {
	if s == nil || s.Client == nil {
		return
	}
	s.Client.Close()
}

// Doctor runs the preflight checks for network without deploying. Setup
// failures are reported as failed checks rather than returned.
func Doctor(ctx context.Context, network config.Network, contract, artifactsDir string) preflight.Report {
	input := preflight.Input{
		Network:         network.Name,
		ExpectedChainID: network.ChainID,
		Contract:        contract,
	}
	s, err := signer.FromAccounts(network.Accounts)
	if err != nil {
		input.SignerErr = err
	} else {
		input.Deployer = s.Address()
	}

	var chain preflight.Chain
	client, err := dial(ctx, network)
	if err != nil {
		input.DialErr = err
	} else {
		defer client.Close()
		chain = client
	}
	report := preflight.New(chain, artifacts.NewStore(artifactsDir)).Doctor(ctx, input)
	for i := range report.Checks {
		report.Checks[i].Reason = privacylog.ScrubEndpoint(report.Checks[i].Reason, network.URL)
	}
	return report
}

// Settings maps configured overrides onto deployer settings. Zero means unset.
func Settings(n config.Network) deployer.Settings {
	return deployer.Settings{
		ExpectedChainID:      n.ChainID,
		GasLimit:             n.Gas,
		GasPrice:             optionalWei(n.GasPrice),
		MaxFeePerGas:         optionalWei(n.MaxFeePerGas),
		MaxPriorityFeePerGas: optionalWei(n.MaxPriorityFeePerGas),
		Confirmations:        n.Confirmations,
		PollInterval:         n.PollInterval,
	}
}

func optionalWei(v uint64) *big.Int {
	if v == 0 {
		return nil
	}
	return new(big.Int).SetUint64(v)
}

func dial(ctx context.Context, network config.Network) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, network.URL)
	if err != nil {
		msg := privacylog.ScrubEndpoint(err.Error(), network.URL)
		return nil, errcat.Wrap(errcat.CategoryNetwork, fmt.Errorf("dial %s: %s", privacylog.RedactURL(network.URL), msg))
	}
	return client, nil
}
