package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"etherlend/deployer/internal/config"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
)

// accountPath appends the account index to a base path such as m/44'/60'/0'/0.
func accountPath(basePath string, index uint32) (accounts.DerivationPath, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		basePath = config.DefaultDerivationPath
	}
	base, err := accounts.ParseDerivationPath(basePath)
	if err != nil {
		return nil, fmt.Errorf("parse derivation path %q: %w", basePath, err)
	}
	if index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("account index %d out of range", index)
	}
	path := make(accounts.DerivationPath, 0, len(base)+1)
	path = append(path, base...)
	return append(path, index), nil
}

// DeriveKey walks a BIP-32 private derivation from a BIP-39 seed.
func DeriveKey(seed []byte, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	for _, index := range path {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}
	return crypto.ToECDSA(common.LeftPadBytes(key.Key, 32))
}
