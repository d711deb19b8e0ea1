// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"github.com/holiman/uint256"

	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault/vaultmath"
)

// Vault is the singleton-per-pool accounting record. All amounts are in
// the smallest unit of the underlying asset; shares are internal
// accounting units denominated in the vault's current rebase epoch.
type Vault struct {
	Name            string
	Owner           fund.Address
	PlatformAccount fund.Address
	AssetAccount    fund.Address

	TotalShares          uint64 // includes pending-unstake shares
	TotalAssets          uint64 // full backing value, principal + compounded rewards
	ReservedAssets       uint64 // earmarked for pending unstakes at their locked price
	PendingUnstakeShares uint64 // excluded from reward accrual and stake pricing
	TotalRewards         uint64 // cumulative vault-side rewards, informational

	// RewardsPerShare is an informational accumulator scaled by
	// vaultmath.SharePrecision; per-user accrual never reads it because
	// rewards compound directly into TotalAssets.
	RewardsPerShare   *uint256.Int
	LastRewardsUpdate int64

	UnstakeLockupPeriod int64
	ManagementFeeBps    uint64
	MinStakeAmount      uint64
	MaxTotalAssets      uint64 // 0 = unlimited
	IsPaused            bool

	SharesBase    uint32
	RebaseVersion uint32
	CreatedAt     int64
}

// Config carries the initialization parameters of a vault. Zero values
// select defaults: 14 day lockup, no fee, no minimum, no cap.
type Config struct {
	UnstakeLockupPeriod int64
	ManagementFeeBps    uint64
	MinStakeAmount      uint64
	MaxTotalAssets      uint64
}

// ConfigUpdate carries a partial configuration change; nil fields are left
// untouched.
type ConfigUpdate struct {
	UnstakeLockupPeriod *int64
	ManagementFeeBps    *uint64
	MinStakeAmount      *uint64
	MaxTotalAssets      *uint64
	IsPaused            *bool
	PlatformAccount     *fund.Address
}

func newVault(name string, owner, platform fund.Address, cfg Config, now int64) (*Vault, error) {
	v := &Vault{
		Name:                name,
		Owner:               owner,
		PlatformAccount:     platform,
		AssetAccount:        fund.AssetAccount(name),
		RewardsPerShare:     uint256.NewInt(0),
		LastRewardsUpdate:   now,
		UnstakeLockupPeriod: cfg.UnstakeLockupPeriod,
		ManagementFeeBps:    cfg.ManagementFeeBps,
		MinStakeAmount:      cfg.MinStakeAmount,
		MaxTotalAssets:      cfg.MaxTotalAssets,
		CreatedAt:           now,
	}
	if v.UnstakeLockupPeriod == 0 {
		v.UnstakeLockupPeriod = DefaultLockupPeriod
	}
	if err := v.validateConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) validateConfig() error {
	if v.Name == "" || len(v.Name) > MaxNameLen {
		return validationErr("vault name must be 1..%d bytes", MaxNameLen)
	}
	if v.Owner.IsZero() || v.PlatformAccount.IsZero() {
		return validationErr("owner and platform accounts are required")
	}
	if v.UnstakeLockupPeriod < MinLockupPeriod || v.UnstakeLockupPeriod > MaxLockupPeriod {
		return validationErr("lockup period out of range [%d, %d]", MinLockupPeriod, MaxLockupPeriod)
	}
	if v.ManagementFeeBps > MaxManagementFeeBps {
		return validationErr("management fee exceeds %d bps", MaxManagementFeeBps)
	}
	if v.MaxTotalAssets != 0 && v.MinStakeAmount > v.MaxTotalAssets {
		return validationErr("minimum stake exceeds asset cap")
	}
	return nil
}

func (v *Vault) applyUpdate(u ConfigUpdate) error {
	if u.UnstakeLockupPeriod != nil {
		v.UnstakeLockupPeriod = *u.UnstakeLockupPeriod
	}
	if u.ManagementFeeBps != nil {
		v.ManagementFeeBps = *u.ManagementFeeBps
	}
	if u.MinStakeAmount != nil {
		v.MinStakeAmount = *u.MinStakeAmount
	}
	if u.MaxTotalAssets != nil {
		v.MaxTotalAssets = *u.MaxTotalAssets
	}
	if u.IsPaused != nil {
		v.IsPaused = *u.IsPaused
	}
	if u.PlatformAccount != nil {
		v.PlatformAccount = *u.PlatformAccount
	}
	return v.validateConfig()
}

// AvailableAssets returns TotalAssets - ReservedAssets, the value backing
// the active share pool.
func (v *Vault) AvailableAssets() (uint64, error) {
	avail, err := vaultmath.Sub(v.TotalAssets, v.ReservedAssets)
	if err != nil {
		return 0, invariantErr("reserved assets %d exceed total assets %d", v.ReservedAssets, v.TotalAssets)
	}
	return avail, nil
}

// ActiveShares returns TotalShares - PendingUnstakeShares, the pool that
// earns rewards and prices new stakes.
func (v *Vault) ActiveShares() (uint64, error) {
	active, err := vaultmath.Sub(v.TotalShares, v.PendingUnstakeShares)
	if err != nil {
		return 0, invariantErr("pending shares %d exceed total shares %d", v.PendingUnstakeShares, v.TotalShares)
	}
	return active, nil
}

// ActiveShareValue returns the Precision-scaled asset value of one active
// share. It fails with an arithmetic error when no active shares exist.
func (v *Vault) ActiveShareValue() (*uint256.Int, error) {
	avail, err := v.AvailableAssets()
	if err != nil {
		return nil, err
	}
	active, err := v.ActiveShares()
	if err != nil {
		return nil, err
	}
	price, err := vaultmath.PriceFloor(avail, active)
	if err != nil {
		return nil, arithmeticErr(err)
	}
	return price, nil
}

// CheckInvariants verifies the solvency invariants after a mutation.
// A failure here is a fatal accounting error, never user-correctable.
func (v *Vault) CheckInvariants() error {
	if v.ReservedAssets > v.TotalAssets {
		return invariantErr("reserved assets %d exceed total assets %d", v.ReservedAssets, v.TotalAssets)
	}
	if v.PendingUnstakeShares > v.TotalShares {
		return invariantErr("pending shares %d exceed total shares %d", v.PendingUnstakeShares, v.TotalShares)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (v *Vault) Clone() *Vault {
	c := *v
	if v.RewardsPerShare != nil {
		c.RewardsPerShare = new(uint256.Int).Set(v.RewardsPerShare)
	}
	return &c
}
