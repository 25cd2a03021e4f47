// Package signer resolves the deployer account from configuration and signs
// deployment transactions with it.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"etherlend/deployer/internal/config"
	"etherlend/deployer/internal/platform/errcat"
	"etherlend/deployer/internal/securestore"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const (
	SourcePrivateKey = "private_key"
	SourceKeystore   = "keystore"
	SourceSealedFile = "sealed_file"
	SourceMnemonic   = "mnemonic"
)

var (
	ErrNoAccount          = errors.New("no deployer account configured")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
	ErrInvalidMnemonic    = errors.New("invalid mnemonic")
	ErrPassphraseRequired = errors.New("passphrase is required")
)

type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	source  string
}

func newSigner(key *ecdsa.PrivateKey, source string) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		source:  source,
	}
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Source names where the key came from, safe to log.
func (s *Signer) Source() string {
	return s.source
}

func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("sign transaction: invalid chain id %v", chainID)
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// FromAccounts picks the first configured source in the order private key,
// keystore, sealed mnemonic file, mnemonic.
func FromAccounts(a config.Accounts) (*Signer, error) {
	var (
		s   *Signer
		err error
	)
	switch {
	case strings.TrimSpace(a.PrivateKey) != "":
		s, err = FromPrivateKeyHex(a.PrivateKey)
	case strings.TrimSpace(a.Keystore) != "":
		s, err = FromKeystoreFile(a.Keystore, a.Passphrase)
	case strings.TrimSpace(a.MnemonicFile) != "":
		s, err = FromSealedFile(a.MnemonicFile, a.Passphrase, a.Path, a.Index)
	case strings.TrimSpace(a.Mnemonic) != "":
		s, err = FromMnemonic(a.Mnemonic, a.Path, a.Index)
	default:
		err = ErrNoAccount
	}
	if err != nil {
		return nil, errcat.Wrap(errcat.CategorySigner, err)
	}
	return s, nil
}

func FromPrivateKeyHex(raw string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return newSigner(key, SourcePrivateKey), nil
}

func FromMnemonic(mnemonic, basePath string, index uint32) (*Signer, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	path, err := accountPath(basePath, index)
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(bip39.NewSeed(mnemonic, ""), path)
	if err != nil {
		return nil, err
	}
	return newSigner(key, SourceMnemonic), nil
}

// FromKeystoreFile decrypts a go-ethereum JSON keystore file.
func FromKeystoreFile(path, passphrase string) (*Signer, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(raw, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", path, err)
	}
	return newSigner(key.PrivateKey, SourceKeystore), nil
}

// FromSealedFile opens a securestore file holding either a mnemonic or a
// private key.
func FromSealedFile(path, passphrase, basePath string, index uint32) (*Signer, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	kind, secret, err := securestore.ReadSealedFile(path, passphrase)
	if err != nil {
		return nil, fmt.Errorf("open sealed file %s: %w", path, err)
	}
	defer zeroBytes(secret)

	var s *Signer
	switch kind {
	case securestore.KindMnemonic:
		s, err = FromMnemonic(string(secret), basePath, index)
	case securestore.KindPrivateKey:
		s, err = FromPrivateKeyHex(string(secret))
	default:
		err = fmt.Errorf("sealed file %s holds unsupported kind %q", path, kind)
	}
	if err != nil {
		return nil, err
	}
	s.source = SourceSealedFile
	return s, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
