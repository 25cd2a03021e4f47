// Package securestore seals signer secrets at rest with a passphrase.
package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "ETHLSEAL1\n"

	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
)

const (
	KindMnemonic   = "mnemonic"
	KindPrivateKey = "private_key"
)

var (
	ErrAuthFailed         = errors.New("securestore authentication failed")
	ErrInvalid            = errors.New("securestore envelope is invalid")
	ErrNotSealed          = errors.New("securestore data is not sealed")
	ErrPassphraseRequired = errors.New("securestore passphrase is required")
	ErrUnsupportedKind    = errors.New("securestore secret kind is unsupported")
)

type Envelope struct {
	Version     uint32 `json:"version"`
	Kind        string `json:"kind"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// Seal encrypts secret and returns the prefixed file payload.
func Seal(passphrase, kind string, secret []byte) ([]byte, error) {
	env, err := SealEnvelope(passphrase, kind, secret)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func SealEnvelope(passphrase, kind string, secret []byte) (*Envelope, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrPassphraseRequired
	}
	if !supportedKind(kind) {
		return nil, ErrUnsupportedKind
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, kdfTime, kdfMemoryKB, kdfThreads)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	// The kind is bound as associated data so it cannot be swapped on disk.
	ciphertext := aead.Seal(nil, nonce, secret, []byte(kind))

	return &Envelope{
		Version:     envelopeVersion,
		Kind:        kind,
		KDF:         "argon2id",
		KDFTime:     kdfTime,
		KDFMemoryKB: kdfMemoryKB,
		KDFThreads:  kdfThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}, nil
}

// Open decrypts a payload produced by Seal and returns its kind and secret.
func Open(passphrase string, data []byte) (string, []byte, error) {
	if !strings.HasPrefix(string(data), filePrefix) {
		return "", nil, ErrNotSealed
	}
	data = data[len(filePrefix):]
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, ErrInvalid
	}
	secret, err := OpenEnvelope(passphrase, &env)
	if err != nil {
		return "", nil, err
	}
	return env.Kind, secret, nil
}

func OpenEnvelope(passphrase string, env *Envelope) ([]byte, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrPassphraseRequired
	}
	if env == nil || env.Version != envelopeVersion || env.KDF != "argon2id" || !supportedKind(env.Kind) {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(env.Kind))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func supportedKind(kind string) bool {
	return kind == KindMnemonic || kind == KindPrivateKey
}

func deriveKey(passphrase string, salt []byte, time, memoryKB uint32, threads uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, time, memoryKB, threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
