// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault/vaultmath"
)

// TestVaultLifecycle walks the reference flow: two stakers, a fee-split
// reward injection, a full price-locked exit of the first staker.
func TestVaultLifecycle(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{ManagementFeeBps: 5000, UnstakeLockupPeriod: 3600})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	// empty vault: first stake mints 1:1
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	v := store.vaults["insurance"]
	assert.Equal(t, uint64(100), v.TotalShares)
	assert.Equal(t, uint64(100), v.TotalAssets)
	assert.Equal(t, uint64(100), store.deps[depKey("insurance", userA)].Shares)

	// price still 1:1, second staker gets proportional shares
	require.NoError(t, eng.Stake("insurance", userB, 200, 2400))
	v = store.vaults["insurance"]
	assert.Equal(t, uint64(300), v.TotalShares)
	assert.Equal(t, uint64(300), v.TotalAssets)
	assert.Equal(t, uint64(200), store.deps[depKey("insurance", userB)].Shares)

	// 120 in rewards at 50% fee: platform 60, vault 60
	require.NoError(t, eng.AddRewards("insurance", owner, 120, 2800))
	v = store.vaults["insurance"]
	assert.Equal(t, uint64(360), v.TotalAssets)
	last := transfer.records[len(transfer.records)-1]
	assert.Equal(t, transferRecord{owner, platform, 60}, last)

	tests := []struct {
		ret      any
		expected any
	}{
		{M(eng.GetAssetValue("insurance", userA)), M(uint64(120), nil)},
		{M(eng.GetAssetValue("insurance", userB)), M(uint64(240), nil)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}

	// full exit request locks today's price
	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 3000))
	v = store.vaults["insurance"]
	assert.Equal(t, uint64(0), store.deps[depKey("insurance", userA)].Shares)
	assert.Equal(t, uint64(100), v.PendingUnstakeShares)
	assert.Equal(t, uint64(120), v.ReservedAssets)
	active, err := v.ActiveShares()
	require.NoError(t, err)
	assert.Equal(t, uint64(200), active)
	avail, err := v.AvailableAssets()
	require.NoError(t, err)
	assert.Equal(t, uint64(240), avail)

	// rewards after the request accrue to the remaining staker only
	require.NoError(t, eng.AddRewards("insurance", owner, 200, 3200))
	tests = []struct {
		ret      any
		expected any
	}{
		{M(eng.GetAssetValue("insurance", userA)), M(uint64(120), nil)},
		{M(eng.GetAssetValue("insurance", userB)), M(uint64(340), nil)},
		// lockup not elapsed yet
		{M(eng.Unstake("insurance", userA, 3000+3599)), M(errLockupNotFinished)},
		{M(eng.Unstake("insurance", userA, 3000+3600)), M(nil)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}

	// payout is exactly the locked 120
	last = transfer.records[len(transfer.records)-1]
	assert.Equal(t, transferRecord{fund.AssetAccount("insurance"), userA, 120}, last)
	v = store.vaults["insurance"]
	assert.Equal(t, uint64(200), v.TotalShares)
	assert.Equal(t, uint64(340), v.TotalAssets)
	assert.Equal(t, uint64(0), v.PendingUnstakeShares)
	assert.Equal(t, uint64(0), v.ReservedAssets)
}

// Staked value can never exceed the amount paid in and loses at most one
// unit to the mint rounding.
func TestStakeValueConservation(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	require.NoError(t, eng.Stake("insurance", userA, 1000, 2000))
	require.NoError(t, eng.AddRewards("insurance", owner, 1000, 2200))

	// price is 2.0: the mint truncation can cost at most one share plus
	// one unit of value-floor rounding
	now := int64(2500)
	for _, amount := range []uint64{2, 7, 100, 999, 12345} {
		before, err := eng.GetAssetValue("insurance", userB)
		require.NoError(t, err)
		require.NoError(t, eng.Stake("insurance", userB, amount, now))
		after, err := eng.GetAssetValue("insurance", userB)
		require.NoError(t, err)

		gained := after - before
		assert.LessOrEqual(t, gained, amount)
		assert.GreaterOrEqual(t, gained+3, amount)
		now += StakeCooldown
	}
}

// Rewards injected after a request must not move that request's payout.
func TestPriceLockInvariance(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{UnstakeLockupPeriod: 3600})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	require.NoError(t, eng.Stake("insurance", userB, 100, 2000))

	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2300))
	lockedPayout := store.deps[depKey("insurance", userA)].Request.ReservedAssets
	assert.Equal(t, uint64(100), lockedPayout)

	for _, amount := range []uint64{1, 999, 123456789} {
		require.NoError(t, eng.AddRewards("insurance", owner, amount, 2400))
	}

	require.NoError(t, eng.Unstake("insurance", userA, 2300+3600))
	last := transfer.records[len(transfer.records)-1]
	assert.Equal(t, lockedPayout, last.amount)
}

// Share conservation: depositor active shares plus pending request shares
// always sum to the vault total.
func TestShareConservation(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{UnstakeLockupPeriod: 3600})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	checkSum := func() {
		v := store.vaults["insurance"]
		var sum uint64
		for _, d := range store.deps {
			sum += d.Shares + d.Request.Shares
		}
		assert.Equal(t, v.TotalShares, sum)
		assert.LessOrEqual(t, v.ReservedAssets, v.TotalAssets)
		assert.LessOrEqual(t, v.PendingUnstakeShares, v.TotalShares)
	}

	require.NoError(t, eng.Stake("insurance", userA, 1000, 2000))
	checkSum()
	require.NoError(t, eng.Stake("insurance", userB, 500, 2100))
	checkSum()
	require.NoError(t, eng.AddRewards("insurance", owner, 321, 2200))
	checkSum()
	require.NoError(t, eng.RequestUnstake("insurance", userA, 400, 2400))
	checkSum()
	require.NoError(t, eng.CancelUnstakeRequest("insurance", userA))
	checkSum()
	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2500))
	checkSum()
	require.NoError(t, eng.Unstake("insurance", userA, 2500+3600))
	checkSum()
}

// Cancel followed by an identical re-request ends with the same share
// balance as a single request at a fresh price.
func TestCancelThenRequestIdempotent(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 1000, 2000))
	require.NoError(t, eng.AddRewards("insurance", owner, 117, 2100))

	require.NoError(t, eng.RequestUnstake("insurance", userA, 250, 2300))
	first := store.deps[depKey("insurance", userA)].Clone()

	require.NoError(t, eng.CancelUnstakeRequest("insurance", userA))
	require.NoError(t, eng.RequestUnstake("insurance", userA, 250, 2300))
	second := store.deps[depKey("insurance", userA)]

	assert.Equal(t, first.Shares, second.Shares)
	assert.Equal(t, first.Request.Shares, second.Request.Shares)
	assert.Equal(t, first.Request.ReservedAssets, second.Request.ReservedAssets)
	assert.Equal(t, first.Request.AssetPerShare, second.Request.AssetPerShare)
}

// A fully drained active pool must not price new stakes.
func TestAllSharesPending(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2300))

	assert.Equal(t, errAllSharesPending, eng.Stake("insurance", userB, 50, 2400))
}

// Mint rounding keeps the remainder with the pool when the price is not
// a whole number.
func TestStakeFloorRounding(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	require.NoError(t, eng.Stake("insurance", userA, 300, 2000))
	require.NoError(t, eng.AddRewards("insurance", owner, 60, 2100))

	// price = 1.2, 100 assets buy floor(100/1.2) = 83 shares
	price, err := store.vaults["insurance"].ActiveShareValue()
	require.NoError(t, err)
	assert.Equal(t, "1200000000000", price.Dec())

	require.NoError(t, eng.Stake("insurance", userB, 100, 2200))
	assert.Equal(t, uint64(83), store.deps[depKey("insurance", userB)].Shares)

	shares, err := vaultmath.SharesFloor(100, price)
	require.NoError(t, err)
	assert.Equal(t, uint64(83), shares)
}
