// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import "github.com/stakesafe/vaultd/fund"

// Store persists the Vault and Depositor records, the only persisted
// state of the engine. Get methods return (nil, nil) for absent records;
// returned records are private copies the engine may mutate freely.
// Save must apply all records atomically: every engine operation is
// "all effects or none".
type Store interface {
	GetVault(name string) (*Vault, error)
	GetDepositor(vaultName string, authority fund.Address) (*Depositor, error)
	// ListDepositors returns every depositor record of a vault; the
	// rebase engine walks them to pick an integer-safe factor.
	ListDepositors(vaultName string) ([]*Depositor, error)
	Save(v *Vault, deps ...*Depositor) error
}

// Transferor is the external, trusted, atomic asset-movement primitive.
// The engine never inspects balances; it only instructs movements and
// treats any error as "nothing moved".
type Transferor interface {
	Transfer(from, to fund.Address, amount uint64) error
}
