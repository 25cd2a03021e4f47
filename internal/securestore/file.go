package securestore

import (
	"os"
	"path/filepath"
)

// ReadSealedFile reads and opens a sealed secret file.
func ReadSealedFile(path, passphrase string) (string, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return Open(passphrase, raw)
}

// WriteSealedFile seals secret and writes it with owner-only permissions. An
// existing file is never overwritten.
func WriteSealedFile(path, passphrase, kind string, secret []byte) error {
	sealed, err := Seal(passphrase, kind, secret)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(sealed); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
