// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault"
)

// fileConfig is the optional YAML config. It only seeds vaults that do
// not exist yet; flags always win over file values for daemon settings.
type fileConfig struct {
	APICors string            `yaml:"api-cors"`
	Vaults  []vaultFileConfig `yaml:"vaults"`
}

type vaultFileConfig struct {
	Name                string `yaml:"name"`
	Owner               string `yaml:"owner"`
	PlatformAccount     string `yaml:"platform-account"`
	UnstakeLockupPeriod int64  `yaml:"unstake-lockup-period"`
	ManagementFeeBps    uint64 `yaml:"management-fee-bps"`
	MinStakeAmount      uint64 `yaml:"min-stake-amount"`
	MaxTotalAssets      uint64 `yaml:"max-total-assets"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read config file")
	}
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.WithMessage(err, "decode config file")
	}
	return &cfg, nil
}

// seedVaults creates the vaults listed in the config file, skipping the
// ones already present in the fund database.
func seedVaults(eng *vault.Engine, cfg *fileConfig, now int64) error {
	for _, vc := range cfg.Vaults {
		existing, err := eng.GetVaultInfo(vc.Name)
		if err != nil && !vault.IsNotFound(err) {
			return errors.WithMessagef(err, "vault %q", vc.Name)
		}
		if existing != nil {
			logger.Debug("vault already exists, skipping seed", "name", vc.Name)
			continue
		}

		owner, err := fund.ParseAddress(vc.Owner)
		if err != nil {
			return errors.WithMessagef(err, "vault %q owner", vc.Name)
		}
		platform, err := fund.ParseAddress(vc.PlatformAccount)
		if err != nil {
			return errors.WithMessagef(err, "vault %q platform account", vc.Name)
		}

		if _, err := eng.InitializeVault(vc.Name, *owner, *platform, vault.Config{
			UnstakeLockupPeriod: vc.UnstakeLockupPeriod,
			ManagementFeeBps:    vc.ManagementFeeBps,
			MinStakeAmount:      vc.MinStakeAmount,
			MaxTotalAssets:      vc.MaxTotalAssets,
		}, now); err != nil {
			return errors.WithMessagef(err, "seed vault %q", vc.Name)
		}
		logger.Info("vault seeded from config", "name", vc.Name, "owner", owner)
	}
	return nil
}
