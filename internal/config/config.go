// Package config loads deployer settings from an optional YAML file with
// environment overrides, in the shape of a Hardhat networks section.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"etherlend/deployer/internal/platform/errcat"

	"gopkg.in/yaml.v3"
)

const (
	DefaultContract       = "EtherLendDAO"
	DefaultArtifactsDir   = "artifacts"
	DefaultNetworkName    = "localhost"
	DefaultDerivationPath = "m/44'/60'/0'/0"

	// DevelopmentMnemonic funds the default accounts of hardhat and anvil nodes.
	DevelopmentMnemonic = "test test test test test test test test test test test junk"

	defaultConfirmations = 1
	defaultPollInterval  = time.Second
	defaultTimeout       = 10 * time.Minute
)

var defaultCandidates = []string{
	"deploy.yaml",
	"configs/deploy.yaml",
}

type Config struct {
	DefaultNetwork  string
	Contract        string
	Artifacts       string
	LogLevel        string
	MetricsTextfile string
	Networks        map[string]Network

	// Source is the file the config was read from, empty for built-in defaults.
	Source string

	env envOverrides
}

type Network struct {
	Name                 string
	URL                  string
	ChainID              uint64
	Accounts             Accounts
	Gas                  uint64
	GasPrice             uint64
	MaxFeePerGas         uint64
	MaxPriorityFeePerGas uint64
	Confirmations        int
	PollInterval         time.Duration
	Timeout              time.Duration
}

type Accounts struct {
	PrivateKey   string
	Mnemonic     string
	MnemonicFile string
	Keystore     string
	Passphrase   string
	Path         string
	Index        uint32
}

// Configured reports whether any signer source is set.
func (a Accounts) Configured() bool {
	return strings.TrimSpace(a.PrivateKey) != "" ||
		strings.TrimSpace(a.Mnemonic) != "" ||
		strings.TrimSpace(a.MnemonicFile) != "" ||
		strings.TrimSpace(a.Keystore) != ""
}

type fileConfig struct {
	DefaultNetwork  string                 `yaml:"defaultNetwork"`
	Contract        string                 `yaml:"contract"`
	Artifacts       string                 `yaml:"artifacts"`
	LogLevel        string                 `yaml:"logLevel"`
	MetricsTextfile string                 `yaml:"metricsTextfile"`
	Networks        map[string]fileNetwork `yaml:"networks"`
}

type fileNetwork struct {
	URL                  string        `yaml:"url"`
	ChainID              uint64        `yaml:"chainId"`
	Accounts             fileAccounts  `yaml:"accounts"`
	Gas                  uint64        `yaml:"gas"`
	GasPrice             uint64        `yaml:"gasPrice"`
	MaxFeePerGas         uint64        `yaml:"maxFeePerGas"`
	MaxPriorityFeePerGas uint64        `yaml:"maxPriorityFeePerGas"`
	Confirmations        int           `yaml:"confirmations"`
	PollInterval         time.Duration `yaml:"pollInterval"`
	Timeout              time.Duration `yaml:"timeout"`
}

type fileAccounts struct {
	PrivateKey   string  `yaml:"privateKey"`
	Mnemonic     string  `yaml:"mnemonic"`
	MnemonicFile string  `yaml:"mnemonicFile"`
	Keystore     string  `yaml:"keystore"`
	Passphrase   string  `yaml:"passphrase"`
	Path         string  `yaml:"path"`
	Index        *uint32 `yaml:"index"`
}

func Default() Config {
	return Config{
		DefaultNetwork: DefaultNetworkName,
		Contract:       DefaultContract,
		Artifacts:      DefaultArtifactsDir,
		LogLevel:       "info",
		Networks: map[string]Network{
			"localhost": developmentNetwork("localhost", "http://127.0.0.1:8545"),
		},
	}
}

func developmentNetwork(name, url string) Network {
	return Network{
		Name:    name,
		URL:     url,
		ChainID: 31337,
		Accounts: Accounts{
			Mnemonic: DevelopmentMnemonic,
			Path:     DefaultDerivationPath,
		},
		Confirmations: defaultConfirmations,
		PollInterval:  defaultPollInterval,
		Timeout:       defaultTimeout,
	}
}

// Load reads configPath, or the first default candidate that exists, and
// applies environment overrides. A missing candidate is not an error; a
// missing explicit path or a malformed file is.
func Load(configPath string) (Config, error) {
	return load(configPath, nil)
}

func load(configPath string, environ map[string]string) (Config, error) {
	cfg := Default()

	candidates := defaultCandidates
	explicit := strings.TrimSpace(configPath) != ""
	if explicit {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if !explicit && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, errcat.Wrap(errcat.CategoryConfig, fmt.Errorf("read config %s: %w", path, err))
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, errcat.Wrap(errcat.CategoryConfig, fmt.Errorf("parse config %s: %w", path, err))
		}
		merge(&cfg, parsed)
		cfg.Source = path
		break
	}

	overrides, err := parseEnv(environ)
	if err != nil {
		return Config{}, errcat.Wrap(errcat.CategoryConfig, err)
	}
	overrides.applyTo(&cfg)
	return cfg, nil
}

func merge(dst *Config, src fileConfig) {
	if src.DefaultNetwork != "" {
		dst.DefaultNetwork = strings.TrimSpace(src.DefaultNetwork)
	}
	if src.Contract != "" {
		dst.Contract = strings.TrimSpace(src.Contract)
	}
	if src.Artifacts != "" {
		dst.Artifacts = strings.TrimSpace(src.Artifacts)
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.MetricsTextfile != "" {
		dst.MetricsTextfile = strings.TrimSpace(src.MetricsTextfile)
	}
	for name, n := range src.Networks {
		name = strings.TrimSpace(name)
		base, ok := dst.Networks[name]
		if !ok {
			base = Network{
				Name:          name,
				Confirmations: defaultConfirmations,
				PollInterval:  defaultPollInterval,
				Timeout:       defaultTimeout,
			}
			if name == "hardhat" {
				base = developmentNetwork(name, "http://127.0.0.1:8545")
			}
		}
		mergeNetwork(&base, n)
		dst.Networks[name] = base
	}
}

func mergeNetwork(dst *Network, src fileNetwork) {
	if src.URL != "" {
		dst.URL = strings.TrimSpace(src.URL)
	}
	if src.ChainID != 0 {
		dst.ChainID = src.ChainID
	}
	if src.Gas != 0 {
		dst.Gas = src.Gas
	}
	if src.GasPrice != 0 {
		dst.GasPrice = src.GasPrice
	}
	if src.MaxFeePerGas != 0 {
		dst.MaxFeePerGas = src.MaxFeePerGas
	}
	if src.MaxPriorityFeePerGas != 0 {
		dst.MaxPriorityFeePerGas = src.MaxPriorityFeePerGas
	}
	if src.Confirmations != 0 {
		dst.Confirmations = src.Confirmations
	}
	if src.PollInterval != 0 {
		dst.PollInterval = src.PollInterval
	}
	if src.Timeout != 0 {
		dst.Timeout = src.Timeout
	}
	mergeAccounts(&dst.Accounts, src.Accounts)
}

func mergeAccounts(dst *Accounts, src fileAccounts) {
	replacesSource := src.PrivateKey != "" || src.Mnemonic != "" || src.MnemonicFile != "" || src.Keystore != ""
	if replacesSource {
		*dst = Accounts{Path: dst.Path}
		dst.PrivateKey = strings.TrimSpace(src.PrivateKey)
		dst.Mnemonic = strings.TrimSpace(src.Mnemonic)
		dst.MnemonicFile = strings.TrimSpace(src.MnemonicFile)
		dst.Keystore = strings.TrimSpace(src.Keystore)
	}
	if src.Passphrase != "" {
		dst.Passphrase = src.Passphrase
	}
	if src.Path != "" {
		dst.Path = strings.TrimSpace(src.Path)
	}
	if src.Index != nil {
		dst.Index = *src.Index
	}
}

// Network selects name, or DefaultNetwork when name is empty, and validates it.
// Environment overrides for the endpoint and signer apply to the selection.
func (c Config) Network(name string) (Network, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.env.Network
	}
	if name == "" {
		name = c.DefaultNetwork
	}
	n, ok := c.Networks[name]
	if !ok {
		return Network{}, errcat.Wrap(errcat.CategoryConfig, fmt.Errorf("network %q is not configured (known: %s)", name, strings.Join(c.NetworkNames(), ", ")))
	}
	c.env.applyToNetwork(&n)
	if err := n.validate(); err != nil {
		return Network{}, errcat.Wrap(errcat.CategoryConfig, fmt.Errorf("network %q: %w", name, err))
	}
	return n, nil
}

func (c Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n Network) validate() error {
	if strings.TrimSpace(n.URL) == "" {
		return errors.New("url is required")
	}
	if n.Confirmations < 1 {
		return fmt.Errorf("confirmations must be >= 1, got %d", n.Confirmations)
	}
	if n.PollInterval <= 0 {
		return errors.New("pollInterval must be > 0")
	}
	if n.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if n.GasPrice != 0 && (n.MaxFeePerGas != 0 || n.MaxPriorityFeePerGas != 0) {
		return errors.New("gasPrice cannot be combined with maxFeePerGas or maxPriorityFeePerGas")
	}
	if n.MaxFeePerGas != 0 && n.MaxPriorityFeePerGas > n.MaxFeePerGas {
		return errors.New("maxPriorityFeePerGas must not exceed maxFeePerGas")
	}
	return nil
}
