package deployer

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"etherlend/deployer/internal/artifacts"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	// testInitCode deploys a runtime that returns 42 from every call.
	testInitCode = "0x69602a60005260206000f3600052600a6016f3"
	testRuntime  = "602a60005260206000f3"
)

type fakeBackend struct {
	mu sync.Mutex

	chainID  *big.Int
	baseFee  *big.Int
	gasPrice *big.Int
	tipCap   *big.Int
	nonce    uint64
	estimate uint64
	head     uint64
	status   uint64
	code     []byte

	// pendingPolls receipt lookups answer NotFound before the receipt appears.
	pendingPolls int
	neverMine    bool

	nonceErr    error
	estimateErr error
	sendErr     error
	receiptErr  error

	sent          []*types.Transaction
	receipts      map[common.Hash]*types.Receipt
	estimateCalls int
	receiptPolls  int
	headPolls     int
	lastCall      ethereum.CallMsg
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  big.NewInt(31337),
		baseFee:  big.NewInt(10_000_000_000),
		gasPrice: big.NewInt(3_000_000_000),
		tipCap:   big.NewInt(1_000_000_000),
		estimate: 150_000,
		head:     100,
		status:   types.ReceiptStatusSuccessful,
		code:     common.FromHex(testRuntime),
		receipts: map[common.Hash]*types.Receipt{},
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headPolls++
	f.head++
	return f.head, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.head), BaseFee: f.baseFee}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.tipCap), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++
	f.lastCall = call
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	from, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	f.head++
	f.receipts[tx.Hash()] = &types.Receipt{
		Status:          f.status,
		TxHash:          tx.Hash(),
		ContractAddress: crypto.CreateAddress(from, tx.Nonce()),
		GasUsed:         tx.Gas() - 1000,
		BlockNumber:     new(big.Int).SetUint64(f.head),
	}
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptPolls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.neverMine || f.receiptPolls <= f.pendingPolls {
		return nil, ethereum.NotFound
	}
	receipt, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return f.code, nil
}

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type mapSource map[string]*artifacts.Artifact

func (m mapSource) Load(name string) (*artifacts.Artifact, error) {
	if art, ok := m[name]; ok {
		return art, nil
	}
	return nil, artifacts.ErrNotFound
}

func mustArtifact(name, abiJSON, bytecode string) *artifacts.Artifact {
	art, err := artifacts.Parse([]byte(`{"contractName":"`+name+`","sourceName":"contracts/`+name+`.sol","abi":`+abiJSON+`,"bytecode":"`+bytecode+`"}`), name)
	if err != nil {
		panic(err)
	}
	return art
}

var errBoom = errors.New("boom")
