// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import "github.com/stakesafe/vaultd/metrics"

var (
	metricOpCount     = metrics.LazyLoadCounterVec("vault_operation_count", []string{"op", "outcome"})
	metricTotalAssets = metrics.LazyLoadGaugeVec("vault_total_assets", []string{"vault"})
	metricTotalShares = metrics.LazyLoadGaugeVec("vault_total_shares", []string{"vault"})
)

func countOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "err"
	}
	metricOpCount().AddWithLabel(1, map[string]string{"op": op, "outcome": outcome})
}

func gaugeVault(v *Vault) {
	label := map[string]string{"vault": v.Name}
	metricTotalAssets().SetWithLabel(int64(v.TotalAssets), label)
	metricTotalShares().SetWithLabel(int64(v.TotalShares), label)
}
