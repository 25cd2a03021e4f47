package deployer

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"etherlend/deployer/internal/artifacts"
	"etherlend/deployer/internal/platform/errcat"
	"etherlend/deployer/internal/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func newTestEnvironment(t *testing.T, backend Backend, settings Settings) *Environment {
	t.Helper()
	s, err := signer.FromPrivateKeyHex(testKeyHex)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	source := mapSource{
		"EtherLendDAO": mustArtifact("EtherLendDAO", `[]`, testInitCode),
		"Vault":        mustArtifact("Vault", `[{"type":"constructor","inputs":[{"name":"cap","type":"uint256"}],"stateMutability":"nonpayable"}]`, testInitCode),
		"IVault":       mustArtifact("IVault", `[]`, "0x"),
	}
	if settings.PollInterval == 0 {
		settings.PollInterval = time.Millisecond
	}
	env, err := NewEnvironment(context.Background(), backend, s, source, settings, nil)
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	return env
}

func deployEtherLend(t *testing.T, env *Environment) *Contract {
	t.Helper()
	factory, err := env.GetContractFactory(context.Background(), "EtherLendDAO")
	if err != nil {
		t.Fatalf("get factory: %v", err)
	}
	contract, err := factory.Deploy(context.Background())
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	return contract
}

func TestDeploySendsOneDynamicFeeTransaction(t *testing.T) {
	backend := newFakeBackend()
	backend.nonce = 5
	env := newTestEnvironment(t, backend, Settings{})

	contract := deployEtherLend(t, env)
	if backend.sentCount() != 1 {
		t.Fatalf("expected one transaction, got %d", backend.sentCount())
	}
	tx := contract.DeploymentTransaction()
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("expected dynamic fee tx, got type %d", tx.Type())
	}
	if tx.To() != nil {
		t.Fatalf("creation tx must not have a recipient")
	}
	if tx.Nonce() != 5 || tx.Gas() != backend.estimate {
		t.Fatalf("unexpected nonce/gas: %d/%d", tx.Nonce(), tx.Gas())
	}
	wantFeeCap := big.NewInt(21_000_000_000)
	if tx.GasFeeCap().Cmp(wantFeeCap) != 0 || tx.GasTipCap().Cmp(backend.tipCap) != 0 {
		t.Fatalf("unexpected fees: cap=%s tip=%s", tx.GasFeeCap(), tx.GasTipCap())
	}
	if !bytes.Equal(tx.Data(), common.FromHex(testInitCode)) {
		t.Fatalf("unexpected tx data %x", tx.Data())
	}
	if backend.lastCall.To != nil || !bytes.Equal(backend.lastCall.Data, tx.Data()) {
		t.Fatalf("gas estimate must simulate the creation call")
	}
}

func TestAddressUnavailableUntilDeployed(t *testing.T) {
	backend := newFakeBackend()
	backend.nonce = 2
	env := newTestEnvironment(t, backend, Settings{})
	contract := deployEtherLend(t, env)

	if _, err := contract.Address(); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed before confirmation, got %v", err)
	}
	if contract.Receipt() != nil {
		t.Fatal("receipt must be nil before confirmation")
	}
	if err := contract.Deployed(context.Background()); err != nil {
		t.Fatalf("deployed: %v", err)
	}
	addr, err := contract.Address()
	if err != nil {
		t.Fatalf("address after confirmation: %v", err)
	}
	want := crypto.CreateAddress(env.Deployer().Address(), 2)
	if addr != want {
		t.Fatalf("expected %s, got %s", want.Hex(), addr.Hex())
	}
	if err := contract.Deployed(context.Background()); err != nil {
		t.Fatalf("second Deployed must be a no-op, got %v", err)
	}
}

func TestDeployUsesLegacyPricingWithoutBaseFee(t *testing.T) {
	backend := newFakeBackend()
	backend.baseFee = nil
	env := newTestEnvironment(t, backend, Settings{})

	tx := deployEtherLend(t, env).DeploymentTransaction()
	if tx.Type() != types.LegacyTxType {
		t.Fatalf("expected legacy tx, got type %d", tx.Type())
	}
	if tx.GasPrice().Cmp(backend.gasPrice) != 0 {
		t.Fatalf("expected suggested gas price %s, got %s", backend.gasPrice, tx.GasPrice())
	}
	if tx.ChainId().Cmp(big.NewInt(31337)) != 0 {
		t.Fatalf("expected replay-protected legacy tx, chain id %s", tx.ChainId())
	}
}

func TestDeployHonoursConfiguredGasAndFees(t *testing.T) {
	backend := newFakeBackend()
	env := newTestEnvironment(t, backend, Settings{
		GasLimit:     3_000_000,
		MaxFeePerGas: big.NewInt(500_000_000),
	})

	tx := deployEtherLend(t, env).DeploymentTransaction()
	if backend.estimateCalls != 0 {
		t.Fatalf("configured gas must skip estimation, got %d calls", backend.estimateCalls)
	}
	if tx.Gas() != 3_000_000 {
		t.Fatalf("unexpected gas %d", tx.Gas())
	}
	if tx.GasFeeCap().Int64() != 500_000_000 || tx.GasTipCap().Int64() != 500_000_000 {
		t.Fatalf("expected tip clamped to fee cap, got cap=%s tip=%s", tx.GasFeeCap(), tx.GasTipCap())
	}

	legacy := newTestEnvironment(t, newFakeBackend(), Settings{GasPrice: big.NewInt(7)})
	if got := deployEtherLend(t, legacy).DeploymentTransaction(); got.Type() != types.LegacyTxType || got.GasPrice().Int64() != 7 {
		t.Fatalf("expected configured legacy price, got type=%d price=%s", got.Type(), got.GasPrice())
	}
}

func TestDeployEncodesConstructorArguments(t *testing.T) {
	backend := newFakeBackend()
	env := newTestEnvironment(t, backend, Settings{})
	factory, err := env.GetContractFactory(context.Background(), "Vault")
	if err != nil {
		t.Fatalf("get factory: %v", err)
	}

	if _, err := factory.Deploy(context.Background()); err == nil {
		t.Fatal("expected missing constructor argument to fail")
	} else if got := errcat.Category(err); got != errcat.CategoryArtifact {
		t.Fatalf("expected artifact category, got %q", got)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("nothing must be sent when encoding fails")
	}

	contract, err := factory.Deploy(context.Background(), big.NewInt(7))
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	data := contract.DeploymentTransaction().Data()
	want := append(common.FromHex(testInitCode), common.LeftPadBytes([]byte{7}, 32)...)
	if !bytes.Equal(data, want) {
		t.Fatalf("unexpected creation data %x", data)
	}
}

func TestGetContractFactoryRejectsMissingAndAbstract(t *testing.T) {
	env := newTestEnvironment(t, newFakeBackend(), Settings{})

	_, err := env.GetContractFactory(context.Background(), "Missing")
	if !errors.Is(err, artifacts.ErrNotFound) || errcat.Category(err) != errcat.CategoryArtifact {
		t.Fatalf("expected categorized ErrNotFound, got %v", err)
	}
	_, err = env.GetContractFactory(context.Background(), "IVault")
	if !errors.Is(err, artifacts.ErrAbstract) {
		t.Fatalf("expected ErrAbstract, got %v", err)
	}
}

func TestDeployFailuresAreCategorized(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*fakeBackend)
		category string
	}{
		{name: "nonce", mutate: func(b *fakeBackend) { b.nonceErr = errBoom }, category: errcat.CategoryNetwork},
		{name: "estimate", mutate: func(b *fakeBackend) { b.estimateErr = errBoom }, category: errcat.CategoryTransaction},
		{name: "send", mutate: func(b *fakeBackend) { b.sendErr = errBoom }, category: errcat.CategoryTransaction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend()
			tc.mutate(backend)
			env := newTestEnvironment(t, backend, Settings{})
			factory, err := env.GetContractFactory(context.Background(), "EtherLendDAO")
			if err != nil {
				t.Fatalf("get factory: %v", err)
			}
			_, err = factory.Deploy(context.Background())
			if !errors.Is(err, errBoom) || !errors.Is(err, errcat.ErrDeploymentFailed) {
				t.Fatalf("expected categorized boom, got %v", err)
			}
			if got := errcat.Category(err); got != tc.category {
				t.Fatalf("expected category %q, got %q", tc.category, got)
			}
			if backend.sentCount() != 0 {
				t.Fatalf("failed deploy must not leave a sent transaction")
			}
		})
	}
}

func TestDeployedPollsUntilMined(t *testing.T) {
	backend := newFakeBackend()
	backend.pendingPolls = 3
	env := newTestEnvironment(t, backend, Settings{})
	contract := deployEtherLend(t, env)

	if err := contract.Deployed(context.Background()); err != nil {
		t.Fatalf("deployed: %v", err)
	}
	if backend.receiptPolls != 4 {
		t.Fatalf("expected 4 receipt polls, got %d", backend.receiptPolls)
	}
	if contract.Receipt() == nil || contract.Receipt().GasUsed == 0 {
		t.Fatalf("expected receipt after confirmation")
	}
}

func TestDeployedWaitsForConfirmations(t *testing.T) {
	backend := newFakeBackend()
	env := newTestEnvironment(t, backend, Settings{Confirmations: 3})
	contract := deployEtherLend(t, env)

	if err := contract.Deployed(context.Background()); err != nil {
		t.Fatalf("deployed: %v", err)
	}
	// Mined at 101; the fake head advances one block per poll, so 103 is
	// reached on the second poll.
	if backend.headPolls != 2 {
		t.Fatalf("expected 2 head polls, got %d", backend.headPolls)
	}
}

func TestDeployedReportsRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.status = types.ReceiptStatusFailed
	env := newTestEnvironment(t, backend, Settings{})
	contract := deployEtherLend(t, env)

	err := contract.Deployed(context.Background())
	if !errors.Is(err, ErrReverted) || errcat.Category(err) != errcat.CategoryTransaction {
		t.Fatalf("expected categorized ErrReverted, got %v", err)
	}
	if _, err := contract.Address(); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("reverted deployment must not expose an address, got %v", err)
	}
}

func TestDeployedRequiresCode(t *testing.T) {
	backend := newFakeBackend()
	backend.code = nil
	env := newTestEnvironment(t, backend, Settings{})

	err := deployEtherLend(t, env).Deployed(context.Background())
	if !errors.Is(err, ErrNoCode) {
		t.Fatalf("expected ErrNoCode, got %v", err)
	}
}

func TestDeployedStopsOnReceiptErrorAndTimeout(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptErr = errBoom
	env := newTestEnvironment(t, backend, Settings{})
	err := deployEtherLend(t, env).Deployed(context.Background())
	if !errors.Is(err, errBoom) || errcat.Category(err) != errcat.CategoryNetwork {
		t.Fatalf("expected categorized network error, got %v", err)
	}
	if backend.receiptPolls != 1 {
		t.Fatalf("receipt errors must not be retried, got %d polls", backend.receiptPolls)
	}

	backend = newFakeBackend()
	backend.neverMine = true
	env = newTestEnvironment(t, backend, Settings{PollInterval: 5 * time.Millisecond})
	contract := deployEtherLend(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := contract.Deployed(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewEnvironmentChecksChainID(t *testing.T) {
	s, err := signer.FromPrivateKeyHex(testKeyHex)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	_, err = NewEnvironment(context.Background(), newFakeBackend(), s, mapSource{}, Settings{ExpectedChainID: 1}, nil)
	if !errors.Is(err, ErrChainMismatch) || errcat.Category(err) != errcat.CategoryConfig {
		t.Fatalf("expected categorized ErrChainMismatch, got %v", err)
	}
	env, err := NewEnvironment(context.Background(), newFakeBackend(), s, mapSource{}, Settings{ExpectedChainID: 31337}, nil)
	if err != nil {
		t.Fatalf("matching chain id: %v", err)
	}
	if env.ChainID().Int64() != 31337 {
		t.Fatalf("unexpected chain id %s", env.ChainID())
	}
}
