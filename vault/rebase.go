// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault/vaultmath"
)

// rebaseExponent returns the power of ten a rebase would divide shares
// by: the smallest 10^k covering the shares/assets ratio. Zero means no
// rebase is warranted.
func rebaseExponent(totalShares, totalAssets uint64) uint32 {
	if totalAssets == 0 || totalShares <= totalAssets {
		return 0
	}
	ratio := totalShares / totalAssets
	var k uint32
	for divisor := uint64(1); divisor < ratio && k < 20; k++ {
		divisor *= 10
	}
	return k
}

// ApplyRebase divides every share count in the vault by a power of ten
// when accumulated rewards have made shares tiny relative to assets.
// Owner only. The exponent starts at the ratio-covering power of ten and
// is lowered until the vault totals and every holder's share counts
// divide exactly; share prices and reservations are asset-denominated
// and unaffected, so the operation preserves every holder's value to the
// unit. Depositor records catch up lazily on their next operation.
func (e *Engine) ApplyRebase(name string, principal fund.Address) (v *Vault, err error) {
	defer func() { countOp("apply_rebase", err) }()
	defer e.lockVault(name)()

	if v, err = e.getVault(name); err != nil {
		return nil, err
	}
	if v.Owner != principal {
		return nil, errUnauthorized
	}

	k := rebaseExponent(v.TotalShares, v.TotalAssets)
	if k == 0 {
		return nil, errRebaseNotRequired
	}
	if v.SharesBase+k > MaxSharesBase {
		k = MaxSharesBase - v.SharesBase
		if k == 0 {
			return nil, validationErr("shares base already at limit %d", MaxSharesBase)
		}
	}

	deps, err := e.store.ListDepositors(name)
	if err != nil {
		return nil, externalErr(err)
	}
	// Records may lag earlier rebase epochs; compare at the current epoch.
	for _, d := range deps {
		if err := d.syncRebase(v); err != nil {
			return nil, e.failOp(name, err)
		}
	}
	for ; k > 0; k-- {
		factor, err := vaultmath.Pow10(k)
		if err != nil {
			return nil, arithmeticErr(err)
		}
		if dividesAll(factor, v, deps) {
			v.TotalShares /= factor
			v.PendingUnstakeShares /= factor
			break
		}
	}
	if k == 0 {
		return nil, errRebaseLossy
	}
	v.SharesBase += k
	v.RebaseVersion++

	if err = v.CheckInvariants(); err != nil {
		return nil, e.failOp(name, err)
	}
	if err = e.store.Save(v); err != nil {
		return nil, externalErr(err)
	}
	gaugeVault(v)
	logger.Info("rebase applied",
		"vault", name, "exponent", k, "sharesBase", v.SharesBase, "version", v.RebaseVersion)
	return v.Clone(), nil
}

func dividesAll(factor uint64, v *Vault, deps []*Depositor) bool {
	if v.TotalShares%factor != 0 || v.PendingUnstakeShares%factor != 0 {
		return false
	}
	for _, d := range deps {
		if d.Shares%factor != 0 || d.Request.Shares%factor != 0 {
			return false
		}
	}
	return true
}
