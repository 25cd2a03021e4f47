package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type envOverrides struct {
	Network         string `env:"DEPLOY_NETWORK"`
	Contract        string `env:"DEPLOY_CONTRACT"`
	Artifacts       string `env:"DEPLOY_ARTIFACTS"`
	LogLevel        string `env:"DEPLOY_LOG_LEVEL"`
	MetricsTextfile string `env:"DEPLOY_METRICS_TEXTFILE"`
	RPCURL          string `env:"DEPLOY_RPC_URL"`
	ChainID         uint64 `env:"DEPLOY_CHAIN_ID"`
	PrivateKey      string `env:"DEPLOY_PRIVATE_KEY"`
	Mnemonic        string `env:"DEPLOY_MNEMONIC"`
	Passphrase      string `env:"DEPLOY_SIGNER_PASSPHRASE"`
}

// parseEnv reads overrides from the process environment, or from environ when
// it is non-nil.
func parseEnv(environ map[string]string) (envOverrides, error) {
	var out envOverrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&out, opts); err != nil {
		return envOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	out.Network = strings.TrimSpace(out.Network)
	out.RPCURL = strings.TrimSpace(out.RPCURL)
	out.PrivateKey = strings.TrimSpace(out.PrivateKey)
	out.Mnemonic = strings.TrimSpace(out.Mnemonic)
	return out, nil
}

func (o envOverrides) applyTo(cfg *Config) {
	if v := strings.TrimSpace(o.Contract); v != "" {
		cfg.Contract = v
	}
	if v := strings.TrimSpace(o.Artifacts); v != "" {
		cfg.Artifacts = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(o.MetricsTextfile); v != "" {
		cfg.MetricsTextfile = v
	}
	cfg.env = o
}

func (o envOverrides) applyToNetwork(n *Network) {
	if o.RPCURL != "" {
		n.URL = o.RPCURL
	}
	if o.ChainID != 0 {
		n.ChainID = o.ChainID
	}
	switch {
	case o.PrivateKey != "":
		n.Accounts = Accounts{PrivateKey: o.PrivateKey, Path: n.Accounts.Path}
	case o.Mnemonic != "":
		n.Accounts = Accounts{Mnemonic: o.Mnemonic, Path: n.Accounts.Path, Index: n.Accounts.Index}
	}
	if o.Passphrase != "" {
		n.Accounts.Passphrase = o.Passphrase
	}
}
