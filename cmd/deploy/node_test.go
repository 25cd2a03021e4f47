package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	devKeyHex = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	// initCode deploys a runtime that returns 42 from every call.
	initCode = "0x69602a60005260206000f3600052600a6016f3"
)

// chainProxy serves the eth_ methods a legacy-priced deployment with a
// configured gas limit uses, backed by a simulated chain that mines every
// accepted transaction immediately.
type chainProxy struct {
	sim *simulated.Backend
}

func (p *chainProxy) ChainId(ctx context.Context) (*hexutil.Big, error) {
	id, err := p.sim.Client().ChainID(ctx)
	return (*hexutil.Big)(id), err
}

func (p *chainProxy) GetTransactionCount(ctx context.Context, account common.Address, _ string) (hexutil.Uint64, error) {
	nonce, err := p.sim.Client().PendingNonceAt(ctx, account)
	return hexutil.Uint64(nonce), err
}

func (p *chainProxy) SendRawTransaction(ctx context.Context, raw hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	if err := p.sim.Client().SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	p.sim.Commit()
	return tx.Hash(), nil
}

func (p *chainProxy) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := p.sim.Client().TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return receipt, err
}

func (p *chainProxy) GetCode(ctx context.Context, account common.Address, _ string) (hexutil.Bytes, error) {
	return p.sim.Client().CodeAt(ctx, account, nil)
}

// chainIDOnly answers eth_chainId and nothing else.
type chainIDOnly struct {
	id *big.Int
}

func (c *chainIDOnly) ChainId() *hexutil.Big {
	return (*hexutil.Big)(c.id)
}

func serveEth(t *testing.T, service any, wrap func(http.Handler) http.Handler) string {
	t.Helper()
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", service); err != nil {
		t.Fatalf("register eth service: %v", err)
	}
	var handler http.Handler = srv
	if wrap != nil {
		handler = wrap(srv)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return ts.URL
}

// dropAfterFirst serves the first request and then closes every later
// connection without a response, so the client reports a transport error.
func dropAfterFirst(next http.Handler) http.Handler {
	var served atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if served.Add(1) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "no hijack", http.StatusInternalServerError)
			return
		}
		if conn, _, err := hijacker.Hijack(); err == nil {
			_ = conn.Close()
		}
	})
}

func writeArtifact(t *testing.T, root string) {
	t.Helper()
	dir := filepath.Join(root, "contracts", "EtherLendDAO.sol")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := `{"_format":"hh-sol-artifact-1","contractName":"EtherLendDAO","sourceName":"contracts/EtherLendDAO.sol","abi":[],"bytecode":"` + initCode + `","linkReferences":{}}`
	if err := os.WriteFile(filepath.Join(dir, "EtherLendDAO.json"), []byte(body), 0o600); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}
