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

// UnstakeRequest is the pending half of the two-phase withdrawal. Shares
// == 0 means no request. AssetPerShare is the Precision-scaled price
// locked at request time; ReservedAssets is the payout computed from it
// once, so rebases of the share count never move the asset-denominated
// claim.
type UnstakeRequest struct {
	Shares         uint64
	RequestTime    int64
	AssetPerShare  *uint256.Int
	ReservedAssets uint64
}

// IsPending returns whether a request is outstanding.
func (r *UnstakeRequest) IsPending() bool {
	return r != nil && r.Shares > 0
}

// CanExecute evaluates the lockup predicate against a caller-supplied
// timestamp. There is no background expiry; a request past its lockup
// simply becomes executable.
func (r *UnstakeRequest) CanExecute(now, lockupPeriod int64) bool {
	return r.IsPending() && now >= r.RequestTime+lockupPeriod
}

func (r *UnstakeRequest) reset() {
	r.Shares = 0
	r.RequestTime = 0
	r.AssetPerShare = nil
	r.ReservedAssets = 0
}

func (r *UnstakeRequest) clone() UnstakeRequest {
	c := *r
	if r.AssetPerShare != nil {
		c.AssetPerShare = new(uint256.Int).Set(r.AssetPerShare)
	}
	return c
}

// Depositor is the per-user-per-vault accounting record. Shares counts
// only active, reward-earning shares: an outstanding unstake request has
// already moved its shares out (see Engine.RequestUnstake).
type Depositor struct {
	VaultName string
	Authority fund.Address

	Shares  uint64
	Request UnstakeRequest

	TotalStaked   uint64
	TotalUnstaked uint64

	// LastRebaseVersion / LastSharesBase record the vault rebase epoch
	// this record's share counts are expressed in. Share arithmetic on an
	// un-synced record is a correctness bug, so every engine operation
	// syncs first.
	LastRebaseVersion uint32
	LastSharesBase    uint32

	LastStakeTime int64
	CreatedAt     int64
}

func newDepositor(vaultName string, authority fund.Address, v *Vault, now int64) *Depositor {
	return &Depositor{
		VaultName:         vaultName,
		Authority:         authority,
		LastRebaseVersion: v.RebaseVersion,
		LastSharesBase:    v.SharesBase,
		CreatedAt:         now,
	}
}

// NeedsRebaseSync returns whether the record lags the vault's rebase
// epoch.
func (d *Depositor) NeedsRebaseSync(v *Vault) bool {
	return d.LastRebaseVersion != v.RebaseVersion
}

// syncRebase catches the record up to the vault's rebase epoch by the
// accumulated factor delta. Divisibility was guaranteed when the rebase
// was applied, so a remainder here means the ledger is corrupt. The
// request's locked price and reservation are asset-denominated and stay
// untouched.
func (d *Depositor) syncRebase(v *Vault) error {
	if !d.NeedsRebaseSync(v) {
		return nil
	}
	if v.SharesBase < d.LastSharesBase {
		return invariantErr("vault shares base %d behind depositor %d", v.SharesBase, d.LastSharesBase)
	}
	divisor, err := vaultmath.Pow10(v.SharesBase - d.LastSharesBase)
	if err != nil {
		return arithmeticErr(err)
	}
	if divisor > 1 {
		if d.Shares%divisor != 0 || d.Request.Shares%divisor != 0 {
			return invariantErr("depositor shares not divisible by rebase factor %d", divisor)
		}
		d.Shares /= divisor
		d.Request.Shares /= divisor
	}
	d.LastRebaseVersion = v.RebaseVersion
	d.LastSharesBase = v.SharesBase
	return nil
}

// Clone returns a deep copy of the record.
func (d *Depositor) Clone() *Depositor {
	c := *d
	c.Request = d.Request.clone()
	return &c
}
