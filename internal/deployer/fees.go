package deployer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// feeParams is either a legacy gas price or an EIP-1559 fee pair.
type feeParams struct {
	GasPrice  *big.Int
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

func (f feeParams) dynamic() bool {
	return f.GasPrice == nil
}

// suggestFees prefers EIP-1559 when the head block carries a base fee. The
// fee cap defaults to 2*baseFee + tip.
func (e *Environment) suggestFees(ctx context.Context) (feeParams, error) {
	s := e.settings
	if s.GasPrice != nil {
		return feeParams{GasPrice: new(big.Int).Set(s.GasPrice)}, nil
	}

	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return feeParams{}, fmt.Errorf("fetch head: %w", err)
	}
	if head.BaseFee == nil {
		price, err := e.backend.SuggestGasPrice(ctx)
		if err != nil {
			return feeParams{}, fmt.Errorf("suggest gas price: %w", err)
		}
		return feeParams{GasPrice: price}, nil
	}

	tip := s.MaxPriorityFeePerGas
	if tip == nil {
		tip, err = e.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return feeParams{}, fmt.Errorf("suggest gas tip cap: %w", err)
		}
	}
	feeCap := s.MaxFeePerGas
	if feeCap == nil {
		feeCap = new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
	}
	if tip.Cmp(feeCap) > 0 {
		tip = feeCap
	}
	return feeParams{
		GasTipCap: new(big.Int).Set(tip),
		GasFeeCap: new(big.Int).Set(feeCap),
	}, nil
}

func (f feeParams) callMsg(from common.Address, data []byte) ethereum.CallMsg {
	msg := ethereum.CallMsg{From: from, Data: data}
	if f.dynamic() {
		msg.GasTipCap = f.GasTipCap
		msg.GasFeeCap = f.GasFeeCap
	} else {
		msg.GasPrice = f.GasPrice
	}
	return msg
}

func (f feeParams) creationTx(chainID *big.Int, nonce, gas uint64, data []byte) *types.Transaction {
	if f.dynamic() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: f.GasTipCap,
			GasFeeCap: f.GasFeeCap,
			Gas:       gas,
			Value:     new(big.Int),
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: f.GasPrice,
		Gas:      gas,
		Value:    new(big.Int),
		Data:     data,
	})
}
