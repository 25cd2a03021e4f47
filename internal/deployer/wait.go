package deployer

import (
	"context"
	"errors"
	"time"

	"etherlend/deployer/internal/platform/ratelimiter"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type headReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// waitMined polls for the receipt at most once per interval. A receipt that is
// not found yet is the only error that keeps the loop going.
func waitMined(ctx context.Context, b receiptReader, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	pacer := ratelimiter.NewPacer(interval)
	for {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		receipt, err := b.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
	}
}

// waitConfirmations blocks until the head is confirmations-1 blocks past minedAt.
func waitConfirmations(ctx context.Context, b headReader, minedAt uint64, confirmations int, interval time.Duration) error {
	target := minedAt + uint64(confirmations) - 1
	pacer := ratelimiter.NewPacer(interval)
	for {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		head, err := b.BlockNumber(ctx)
		if err != nil {
			return err
		}
		if head >= target {
			return nil
		}
	}
}
