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
)

func TestRebaseExponent(t *testing.T) {
	tests := []struct {
		ret      any
		expected any
	}{
		{M(rebaseExponent(0, 0)), M(uint32(0))},
		{M(rebaseExponent(100, 0)), M(uint32(0))},
		{M(rebaseExponent(100, 100)), M(uint32(0))},
		{M(rebaseExponent(100, 200)), M(uint32(0))},
		{M(rebaseExponent(1000, 100)), M(uint32(1))},
		{M(rebaseExponent(1001, 100)), M(uint32(1))},
		{M(rebaseExponent(1_000_000, 100)), M(uint32(4))},
		{M(rebaseExponent(1_000_001, 100)), M(uint32(4))},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}
}

// seedHoldings overwrites the share ledger behind the engine, keeping the
// depositor records at the current rebase epoch.
func seedHoldings(t *testing.T, store *memStore, totalAssets uint64, holdings map[fund.Address]uint64) {
	t.Helper()
	v := store.vaults["insurance"]
	v.TotalAssets = totalAssets
	v.TotalShares = 0
	for authority, shares := range holdings {
		d := store.deps[depKey("insurance", authority)]
		require.NotNil(t, d)
		d.Shares = shares
		v.TotalShares += shares
	}
}

func TestApplyRebase(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	seedHoldings(t, store, 100, map[fund.Address]uint64{userA: 600_000, userB: 400_000})

	_, err = eng.ApplyRebase("insurance", userA)
	assert.True(t, IsKind(err, KindUnauthorized))

	v, err := eng.ApplyRebase("insurance", owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v.TotalShares)
	assert.Equal(t, uint32(4), v.SharesBase)
	assert.Equal(t, uint32(1), v.RebaseVersion)

	// depositor records catch up lazily; the query view is already scaled
	assert.Equal(t, uint64(600_000), store.deps[depKey("insurance", userA)].Shares)
	dA, err := eng.GetDepositorInfo("insurance", userA)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), dA.Shares)
	assert.Equal(t, uint64(600_000), store.deps[depKey("insurance", userA)].Shares)

	// explicit sync persists the catch-up
	require.NoError(t, eng.SyncRebase("insurance", userA))
	assert.Equal(t, uint64(60), store.deps[depKey("insurance", userA)].Shares)
	assert.Equal(t, uint32(1), store.deps[depKey("insurance", userA)].LastRebaseVersion)

	// ratios survive the rescale
	dB, err := eng.GetDepositorInfo("insurance", userB)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), dB.Shares)

	_, err = eng.ApplyRebase("insurance", owner)
	assert.Equal(t, errRebaseNotRequired, err)
}

func TestApplyRebaseReducesFactor(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	// ratio suggests 10^4 but only 10^1 divides every holding
	seedHoldings(t, store, 100, map[fund.Address]uint64{userA: 999_990, userB: 10})

	v, err := eng.ApplyRebase("insurance", owner)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v.SharesBase)
	assert.Equal(t, uint64(100_000), v.TotalShares)

	dB, err := eng.GetDepositorInfo("insurance", userB)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), dB.Shares)
}

func TestApplyRebaseLossy(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	seedHoldings(t, store, 100, map[fund.Address]uint64{userA: 999_999, userB: 1})

	_, err = eng.ApplyRebase("insurance", owner)
	assert.Equal(t, errRebaseLossy, err)
	assert.Equal(t, uint32(0), store.vaults["insurance"].SharesBase)
}

func TestApplyRebaseSharesBaseLimit(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)

	seedHoldings(t, store, 100, map[fund.Address]uint64{userA: 1_000_000})
	store.vaults["insurance"].SharesBase = MaxSharesBase
	store.deps[depKey("insurance", userA)].LastSharesBase = MaxSharesBase

	_, err = eng.ApplyRebase("insurance", owner)
	assert.True(t, IsKind(err, KindValidation))
}

// A pending request's payout is asset-denominated: the rebase rescales
// its share count but neither the locked price nor the reservation.
func TestRebaseKeepsRequestPayout(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{UnstakeLockupPeriod: 3600})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userB, 1000)
	require.NoError(t, err)

	seedHoldings(t, store, 200, map[fund.Address]uint64{userA: 1_000_000, userB: 1_000_000})

	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2000))
	reserved := store.deps[depKey("insurance", userA)].Request.ReservedAssets
	assert.Equal(t, uint64(100), reserved)

	_, err = eng.ApplyRebase("insurance", owner)
	require.NoError(t, err)

	require.NoError(t, eng.Unstake("insurance", userA, 2000+3600))
	last := transfer.records[len(transfer.records)-1]
	assert.Equal(t, transferRecord{fund.AssetAccount("insurance"), userA, 100}, last)

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(0), v.ReservedAssets)
	assert.Equal(t, uint64(0), v.PendingUnstakeShares)
	assert.Equal(t, uint64(100), v.TotalAssets)
}
