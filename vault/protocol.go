// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import "math"

const (
	// BasisPoints is the fee denominator: 10000 bps = 100%.
	BasisPoints = uint64(10000)

	// MaxManagementFeeBps caps the platform cut of injected rewards.
	MaxManagementFeeBps = uint64(10000)

	// Lockup bounds, in seconds.
	MinLockupPeriod     = int64(10 * 60)
	MaxLockupPeriod     = int64(90 * 24 * 3600)
	DefaultLockupPeriod = int64(14 * 24 * 3600)

	// StakeCooldown is the mandatory delay between successive stakes (and
	// between a stake and an unstake request) by the same depositor,
	// blunting same-block sandwich plays.
	StakeCooldown = int64(300)

	// MaxSharesBase bounds the cumulative rebase exponent; 10^18 still
	// fits comfortably in the wide price arithmetic.
	MaxSharesBase = uint32(18)

	// MaxNameLen bounds the vault identifier.
	MaxNameLen = 32

	// FullBalance is the request-unstake amount sentinel meaning "all of
	// this depositor's current value".
	FullBalance = uint64(math.MaxUint64)
)
