package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"etherlend/deployer/internal/config"
	"etherlend/deployer/internal/securestore"
	"etherlend/deployer/internal/signer"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

const (
	exitOK           = 0
	exitFailed       = 1
	exitInvalidInput = 2

	maxSecretBytes = 4096
)

type sealEnv struct {
	Passphrase string `env:"DEPLOY_SIGNER_PASSPHRASE,required,notEmpty"`
}

func main() {
	var stdin io.Reader
	if info, err := os.Stdin.Stat(); err == nil && info.Mode()&os.ModeCharDevice == 0 {
		stdin = os.Stdin
	}
	os.Exit(run(os.Args[1:], stdin, os.Stdout, os.Stderr))
}

// run seals the secret piped on stdin, or a fresh 24-word mnemonic when stdin
// is nil or empty, and prints the deployer address it unlocks. A generated
// mnemonic is written once to stderr so it can be backed up; it is never
// printed again. The signer is derived before anything is written, so a bad
// -path or -index leaves no file behind.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("signer-seal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		out   = fs.String("out", "", "sealed signer file to create")
		path  = fs.String("path", config.DefaultDerivationPath, "base derivation path for mnemonics")
		index = fs.Uint("index", 0, "account index under the derivation path")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitInvalidInput
	}
	if strings.TrimSpace(*out) == "" {
		_, _ = fmt.Fprintln(stderr, "out is required")
		return exitInvalidInput
	}
	if *index >= 1<<31 {
		_, _ = fmt.Fprintln(stderr, "index must be below 2^31")
		return exitInvalidInput
	}

	var cfg sealEnv
	if err := env.Parse(&cfg); err != nil {
		return failf(stderr, "read passphrase: %v", err)
	}

	kind, secret, generated, err := readSecret(stdin)
	if err != nil {
		return failf(stderr, "%v", err)
	}
	want, err := derive(kind, secret, *path, uint32(*index))
	if err != nil {
		return failf(stderr, "derive signer: %v", err)
	}
	if err := securestore.WriteSealedFile(*out, cfg.Passphrase, kind, []byte(secret)); err != nil {
		return failf(stderr, "seal %s: %v", *out, err)
	}
	s, err := signer.FromSealedFile(*out, cfg.Passphrase, *path, uint32(*index))
	if err == nil && s.Address() != want.Address() {
		err = errors.New("sealed signer does not match derived address")
	}
	if err != nil {
		_ = os.Remove(*out)
		return failf(stderr, "verify %s: %v", *out, err)
	}
	if generated {
		_, _ = fmt.Fprintf(stderr, "generated mnemonic, write it down and store it offline; it will not be shown again:\n%s\n", secret)
	}
	_, _ = fmt.Fprintf(stdout, "sealed %s to %s\naddress: %s\n", kind, *out, s.Address().Hex())
	return exitOK
}

func derive(kind, secret, path string, index uint32) (*signer.Signer, error) {
	if kind == securestore.KindPrivateKey {
		return signer.FromPrivateKeyHex(secret)
	}
	return signer.FromMnemonic(secret, path, index)
}

// readSecret reports whether the returned mnemonic was freshly generated.
func readSecret(stdin io.Reader) (kind, secret string, generated bool, err error) {
	var raw string
	if stdin != nil {
		data, readErr := io.ReadAll(io.LimitReader(stdin, maxSecretBytes+1))
		if readErr != nil {
			return "", "", false, fmt.Errorf("read stdin: %w", readErr)
		}
		if len(data) > maxSecretBytes {
			return "", "", false, errors.New("stdin secret is too large")
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return "", "", false, fmt.Errorf("generate entropy: %w", err)
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return "", "", false, fmt.Errorf("generate mnemonic: %w", err)
		}
		return securestore.KindMnemonic, mnemonic, true, nil
	}

	words := strings.Join(strings.Fields(raw), " ")
	if bip39.IsMnemonicValid(words) {
		return securestore.KindMnemonic, words, false, nil
	}
	hexKey := strings.TrimPrefix(raw, "0x")
	if _, err := crypto.HexToECDSA(hexKey); err == nil {
		return securestore.KindPrivateKey, hexKey, false, nil
	}
	return "", "", false, errors.New("stdin is neither a valid BIP-39 mnemonic nor a hex private key")
}

func failf(stderr io.Writer, format string, args ...any) int {
	_, _ = fmt.Fprintf(stderr, format+"\n", args...)
	return exitFailed
}
