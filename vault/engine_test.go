// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakesafe/vaultd/fund"
)

func M(a ...any) []any {
	return a
}

type memStore struct {
	vaults map[string]*Vault
	deps   map[string]*Depositor

	failSave bool
}

func newMemStore() *memStore {
	return &memStore{
		vaults: make(map[string]*Vault),
		deps:   make(map[string]*Depositor),
	}
}

func depKey(vaultName string, authority fund.Address) string {
	return vaultName + "/" + authority.String()
}

func (s *memStore) GetVault(name string) (*Vault, error) {
	v, ok := s.vaults[name]
	if !ok {
		return nil, nil
	}
	return v.Clone(), nil
}

func (s *memStore) GetDepositor(vaultName string, authority fund.Address) (*Depositor, error) {
	d, ok := s.deps[depKey(vaultName, authority)]
	if !ok {
		return nil, nil
	}
	return d.Clone(), nil
}

func (s *memStore) ListDepositors(vaultName string) ([]*Depositor, error) {
	var out []*Depositor
	for _, d := range s.deps {
		if d.VaultName == vaultName {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (s *memStore) Save(v *Vault, deps ...*Depositor) error {
	if s.failSave {
		return errors.New("save failed")
	}
	s.vaults[v.Name] = v.Clone()
	for _, d := range deps {
		s.deps[depKey(d.VaultName, d.Authority)] = d.Clone()
	}
	return nil
}

type transferRecord struct {
	from, to fund.Address
	amount   uint64
}

type mockTransferor struct {
	records  []transferRecord
	failNext int // fail the nth remaining call (1 = next), 0 = never
}

func (m *mockTransferor) Transfer(from, to fund.Address, amount uint64) error {
	if m.failNext > 0 {
		m.failNext--
		if m.failNext == 0 {
			return errors.New("transfer rejected")
		}
	}
	m.records = append(m.records, transferRecord{from, to, amount})
	return nil
}

var (
	owner    = fund.BytesToAddress([]byte("owner"))
	platform = fund.BytesToAddress([]byte("platform"))
	userA    = fund.BytesToAddress([]byte("userA"))
	userB    = fund.BytesToAddress([]byte("userB"))
)

func newTestEngine(t *testing.T, cfg Config) (*Engine, *memStore, *mockTransferor) {
	store := newMemStore()
	transfer := &mockTransferor{}
	eng := New(store, transfer)
	_, err := eng.InitializeVault("insurance", owner, platform, cfg, 1000)
	require.NoError(t, err)
	return eng, store, transfer
}

func TestInitializeVault(t *testing.T) {
	eng := New(newMemStore(), &mockTransferor{})

	v, err := eng.InitializeVault("insurance", owner, platform, Config{}, 1000)
	require.NoError(t, err)
	assert.Equal(t, DefaultLockupPeriod, v.UnstakeLockupPeriod)
	assert.Equal(t, fund.AssetAccount("insurance"), v.AssetAccount)
	assert.Equal(t, uint64(0), v.TotalShares)

	tests := []struct {
		ret      any
		expected any
	}{
		{M(IsKind(second(eng.InitializeVault("insurance", owner, platform, Config{}, 1000)), KindStateConflict)), M(true)},
		{M(IsKind(second(eng.InitializeVault("short", owner, platform, Config{UnstakeLockupPeriod: 1}, 1000)), KindValidation)), M(true)},
		{M(IsKind(second(eng.InitializeVault("fee", owner, platform, Config{ManagementFeeBps: 10001}, 1000)), KindValidation)), M(true)},
		{M(IsKind(second(eng.InitializeVault("noowner", fund.Address{}, platform, Config{}, 1000)), KindValidation)), M(true)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}
}

func second[T any](_ T, err error) error { return err }

func TestUpdateVaultConfig(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})

	_, err := eng.UpdateVaultConfig("insurance", userA, ConfigUpdate{})
	assert.True(t, IsKind(err, KindUnauthorized))

	lockup := int64(3600)
	paused := true
	v, err := eng.UpdateVaultConfig("insurance", owner, ConfigUpdate{UnstakeLockupPeriod: &lockup, IsPaused: &paused})
	require.NoError(t, err)
	assert.Equal(t, lockup, v.UnstakeLockupPeriod)
	assert.True(t, v.IsPaused)

	// unpausing a paused vault is allowed
	paused = false
	v, err = eng.UpdateVaultConfig("insurance", owner, ConfigUpdate{IsPaused: &paused})
	require.NoError(t, err)
	assert.False(t, v.IsPaused)

	badLockup := int64(1)
	_, err = eng.UpdateVaultConfig("insurance", owner, ConfigUpdate{UnstakeLockupPeriod: &badLockup})
	assert.True(t, IsKind(err, KindValidation))
}

func TestInitializeDepositor(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})

	d, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	assert.Equal(t, userA, d.Authority)
	assert.Equal(t, uint64(0), d.Shares)

	_, err = eng.InitializeDepositor("insurance", userA, 1000)
	assert.True(t, IsKind(err, KindStateConflict))

	_, err = eng.InitializeDepositor("missing", userA, 1000)
	assert.True(t, IsKind(err, KindStateConflict))
}

func TestStakeValidation(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{MinStakeAmount: 10, MaxTotalAssets: 1000})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)

	tests := []struct {
		ret      any
		expected any
	}{
		{M(eng.Stake("insurance", userB, 100, 2000)), M(errDepositorNotFound)},
		{M(eng.Stake("insurance", userA, 0, 2000)), M(errInvalidAmount)},
		{M(eng.Stake("insurance", userA, 5, 2000)), M(errBelowMinimum)},
		{M(eng.Stake("insurance", userA, 1001, 2000)), M(errVaultFull)},
		{M(eng.Stake("insurance", userA, 100, 2000)), M(nil)},
		// cooldown window still open
		{M(eng.Stake("insurance", userA, 100, 2100)), M(errCooldown)},
		{M(eng.Stake("insurance", userA, 100, 2300)), M(nil)},
		// cap applies to the running total
		{M(eng.Stake("insurance", userA, 900, 2700)), M(errVaultFull)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}

	paused := true
	_, err = eng.UpdateVaultConfig("insurance", owner, ConfigUpdate{IsPaused: &paused})
	require.NoError(t, err)
	assert.Equal(t, errVaultPaused, eng.Stake("insurance", userA, 100, 3000))

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(200), v.TotalShares)
	assert.Equal(t, uint64(200), v.TotalAssets)
}

func TestStakeTransferOrdering(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)

	transfer.failNext = 1
	err = eng.Stake("insurance", userA, 100, 2000)
	assert.True(t, IsKind(err, KindExternal))

	// failed transfer leaves no ledger mutation
	v := store.vaults["insurance"]
	assert.Equal(t, uint64(0), v.TotalShares)
	assert.Equal(t, uint64(0), v.TotalAssets)
	assert.Equal(t, uint64(0), store.deps[depKey("insurance", userA)].Shares)

	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	require.Len(t, transfer.records, 1)
	assert.Equal(t, transferRecord{userA, fund.AssetAccount("insurance"), 100}, transfer.records[0])
}

func TestRequestUnstake(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)

	assert.Equal(t, errInsufficientFunds, eng.RequestUnstake("insurance", userA, 50, 2000))

	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	assert.Equal(t, errCooldown, eng.RequestUnstake("insurance", userA, 50, 2100))
	assert.Equal(t, errInvalidAmount, eng.RequestUnstake("insurance", userA, 0, 2300))

	require.NoError(t, eng.RequestUnstake("insurance", userA, 40, 2300))
	d := store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(60), d.Shares)
	assert.Equal(t, uint64(40), d.Request.Shares)
	assert.Equal(t, uint64(40), d.Request.ReservedAssets)
	assert.Equal(t, int64(2300), d.Request.RequestTime)

	// one request at a time
	assert.Equal(t, errRequestExists, eng.RequestUnstake("insurance", userA, 10, 2400))

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(40), v.PendingUnstakeShares)
	assert.Equal(t, uint64(40), v.ReservedAssets)
}

func TestRequestUnstakeValueBound(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))

	// asking for more value than held is rejected, not clamped
	assert.Equal(t, errInsufficientFunds, eng.RequestUnstake("insurance", userA, 101, 2300))
	assert.Equal(t, errInsufficientFunds, eng.RequestUnstake("insurance", userA, 1000, 2300))
	d := store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(100), d.Shares)
	assert.False(t, d.Request.IsPending())

	// the exact holding value is a full exit
	require.NoError(t, eng.RequestUnstake("insurance", userA, 100, 2300))
	d = store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(0), d.Shares)
	assert.Equal(t, uint64(100), d.Request.Shares)

	require.NoError(t, eng.CancelUnstakeRequest("insurance", userA))

	// the sentinel requests everything without a price conversion
	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2300))
	d = store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(0), d.Shares)
	assert.Equal(t, uint64(100), d.Request.Shares)
	assert.Equal(t, uint64(100), d.Request.ReservedAssets)
}

func TestRequestUnstakeCeilOvershoot(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	// 120 assets over 100 shares, price 1.2
	require.NoError(t, eng.AddRewards("insurance", owner, 20, 2100))

	// the holding floors to 120; asking for 121 is over value
	assert.Equal(t, errInsufficientFunds, eng.RequestUnstake("insurance", userA, 121, 2300))

	// 119 needs ceil(119/1.2) = 100 shares, the whole holding
	require.NoError(t, eng.RequestUnstake("insurance", userA, 119, 2300))
	d := store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(0), d.Shares)
	assert.Equal(t, uint64(100), d.Request.Shares)
	assert.Equal(t, uint64(120), d.Request.ReservedAssets)
}

func TestCancelUnstakeRequest(t *testing.T) {
	eng, store, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))

	assert.Equal(t, errNoRequest, eng.CancelUnstakeRequest("insurance", userA))

	require.NoError(t, eng.RequestUnstake("insurance", userA, 100, 2300))
	require.NoError(t, eng.CancelUnstakeRequest("insurance", userA))

	d := store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(100), d.Shares)
	assert.False(t, d.Request.IsPending())

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(0), v.PendingUnstakeShares)
	assert.Equal(t, uint64(0), v.ReservedAssets)
	assert.Equal(t, uint64(100), v.TotalShares)
}

func TestUnstakeLockup(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{UnstakeLockupPeriod: 3600})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))

	assert.Equal(t, errNoRequest, eng.Unstake("insurance", userA, 9999))

	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2300))
	assert.Equal(t, errLockupNotFinished, eng.Unstake("insurance", userA, 2300+3599))

	require.NoError(t, eng.Unstake("insurance", userA, 2300+3600))
	last := transfer.records[len(transfer.records)-1]
	assert.Equal(t, transferRecord{fund.AssetAccount("insurance"), userA, 100}, last)

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(0), v.TotalShares)
	assert.Equal(t, uint64(0), v.TotalAssets)
	assert.Equal(t, uint64(0), v.ReservedAssets)
	assert.Equal(t, uint64(0), v.PendingUnstakeShares)

	d := store.deps[depKey("insurance", userA)]
	assert.Equal(t, uint64(100), d.TotalUnstaked)
	assert.False(t, d.Request.IsPending())
}

func TestUnstakeTransferFailureRollsBack(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{UnstakeLockupPeriod: 3600})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 100, 2000))
	require.NoError(t, eng.RequestUnstake("insurance", userA, FullBalance, 2300))

	transfer.failNext = 1
	err = eng.Unstake("insurance", userA, 2300+3600)
	assert.True(t, IsKind(err, KindExternal))

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(100), v.TotalShares)
	assert.Equal(t, uint64(100), v.TotalAssets)
	assert.True(t, store.deps[depKey("insurance", userA)].Request.IsPending())

	// retry succeeds untouched
	require.NoError(t, eng.Unstake("insurance", userA, 2300+3600))
}

func TestAddRewards(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{ManagementFeeBps: 5000})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 300, 2000))

	assert.Equal(t, errUnauthorized, eng.AddRewards("insurance", userA, 120, 3000))
	assert.Equal(t, errInvalidAmount, eng.AddRewards("insurance", owner, 0, 3000))

	// odd amount: floor favors the vault
	require.NoError(t, eng.AddRewards("insurance", owner, 121, 3000))
	v := store.vaults["insurance"]
	assert.Equal(t, uint64(300+61), v.TotalAssets)
	assert.Equal(t, uint64(61), v.TotalRewards)
	assert.Equal(t, int64(3000), v.LastRewardsUpdate)

	n := len(transfer.records)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, transferRecord{owner, fund.AssetAccount("insurance"), 61}, transfer.records[n-2])
	assert.Equal(t, transferRecord{owner, platform, 60}, transfer.records[n-1])
}

func TestAddRewardsFeeTransferFailure(t *testing.T) {
	eng, store, transfer := newTestEngine(t, Config{ManagementFeeBps: 5000})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)
	require.NoError(t, eng.Stake("insurance", userA, 300, 2000))

	// vault-share transfer succeeds, platform fee transfer fails: the
	// vault share is returned and the ledger stays untouched
	transfer.failNext = 2
	err = eng.AddRewards("insurance", owner, 120, 3000)
	assert.True(t, IsKind(err, KindExternal))

	v := store.vaults["insurance"]
	assert.Equal(t, uint64(300), v.TotalAssets)
	last := transfer.records[len(transfer.records)-1]
	assert.Equal(t, transferRecord{fund.AssetAccount("insurance"), owner, 60}, last)
}

func TestGetAssetValue(t *testing.T) {
	eng, _, _ := newTestEngine(t, Config{})
	_, err := eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)

	tests := []struct {
		ret      any
		expected any
	}{
		{M(eng.GetAssetValue("insurance", userA)), M(uint64(0), nil)},
		{M(eng.Stake("insurance", userA, 100, 2000)), M(nil)},
		{M(eng.GetAssetValue("insurance", userA)), M(uint64(100), nil)},
		{M(eng.AddRewards("insurance", owner, 50, 2500)), M(nil)},
		{M(eng.GetAssetValue("insurance", userA)), M(uint64(150), nil)},
		{M(eng.RequestUnstake("insurance", userA, 90, 2600)), M(nil)},
		// 60 shares pending reserve 90; 40 active shares hold the rest
		{M(eng.GetAssetValue("insurance", userA)), M(uint64(150), nil)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.ret)
	}
}

func TestInvariantViolationPausesVault(t *testing.T) {
	store := newMemStore()
	eng := New(store, &mockTransferor{})
	v, err := eng.InitializeVault("insurance", owner, platform, Config{}, 1000)
	require.NoError(t, err)
	_, err = eng.InitializeDepositor("insurance", userA, 1000)
	require.NoError(t, err)

	// corrupt the ledger behind the engine's back
	v.TotalShares = 100
	v.TotalAssets = 50
	v.ReservedAssets = 80
	require.NoError(t, store.Save(v))

	err = eng.Stake("insurance", userA, 100, 2000)
	assert.True(t, IsKind(err, KindInvariant))
	assert.True(t, store.vaults["insurance"].IsPaused)
}
