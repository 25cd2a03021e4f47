package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store looks up artifacts under a root directory laid out as
// <source>/<Contract>.json.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) Root() string {
	return s.root
}

// Load resolves a bare contract name by searching the tree, or a fully
// qualified source:Contract name directly.
func (s *Store) Load(name string) (*Artifact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty contract name", ErrNotFound)
	}
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	contractName := strings.TrimSuffix(filepath.Base(path), ".json")
	art, err := Parse(data, contractName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if art.ContractName != contractName {
		return nil, fmt.Errorf("%w: %s declares contract %q", ErrInvalid, path, art.ContractName)
	}
	art.Path = path
	return art, nil
}

func (s *Store) resolve(name string) (string, error) {
	if source, contract, ok := strings.Cut(name, ":"); ok {
		if source == "" || contract == "" || strings.Contains(contract, "/") {
			return "", fmt.Errorf("%w: malformed name %q", ErrNotFound, name)
		}
		clean := filepath.Clean(filepath.FromSlash(source))
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: source %q escapes the artifacts directory", ErrNotFound, source)
		}
		return filepath.Join(s.root, clean, contract+".json"), nil
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: malformed name %q", ErrNotFound, name)
	}

	want := name + ".json"
	matches := make([]string, 0, 1)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" || d.Name() == "cache" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (artifacts directory %s does not exist)", ErrNotFound, name, s.root)
		}
		return "", fmt.Errorf("scan artifacts %s: %w", s.root, err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.root)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		for i, m := range matches {
			if rel, err := filepath.Rel(s.root, filepath.Dir(m)); err == nil {
				matches[i] = filepath.ToSlash(rel) + ":" + name
			}
		}
		return "", fmt.Errorf("%w: %s matches %s; use a fully qualified name", ErrAmbiguous, name, strings.Join(matches, ", "))
	}
}
