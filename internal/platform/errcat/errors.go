// Package errcat classifies deployment failures so the process layer can log
// them uniformly and map them to a single non-zero exit.
package errcat

import (
	"errors"
	"strings"
)

// ErrDeploymentFailed matches every categorized error via errors.Is.
var ErrDeploymentFailed = errors.New("deployment failed")

const (
	CategoryConfig      = "config"
	CategoryArtifact    = "artifact"
	CategorySigner      = "signer"
	CategoryNetwork     = "network"
	CategoryTransaction = "transaction"
)

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

func (e *CategorizedError) Is(target error) bool {
	return target == ErrDeploymentFailed
}

func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryConfig:
		return CategoryConfig
	case CategoryArtifact:
		return CategoryArtifact
	case CategorySigner:
		return CategorySigner
	case CategoryNetwork:
		return CategoryNetwork
	default:
		return CategoryTransaction
	}
}

// Wrap attaches category to err. An already categorized error keeps its
// original category so the innermost classification wins.
func Wrap(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return err
	}
	return &CategorizedError{
		Category: normalizeCategory(category),
		Err:      err,
	}
}

func Category(err error) string {
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeCategory(classified.Category)
	}
	return CategoryTransaction
}
