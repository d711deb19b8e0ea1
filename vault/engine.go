// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vault implements the pooled-staking share accounting engine:
// stake, two-phase unstake with a price locked at request time, reward
// compounding and administrative rebase.
package vault

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/log"
	"github.com/stakesafe/vaultd/vault/vaultmath"
)

var logger = log.WithContext("pkg", "vault")

// Engine executes vault operations against a Store and a Transferor.
// Operations on the same vault are serialized; the caller supplies
// timestamps and an authenticated principal, the engine only compares
// identities and applies the accounting rules.
type Engine struct {
	store    Store
	transfer Transferor

	mu    deadlock.Mutex
	locks map[string]*deadlock.Mutex
}

// New creates an engine on the given store and transfer primitive.
func New(store Store, transfer Transferor) *Engine {
	return &Engine{
		store:    store,
		transfer: transfer,
		locks:    make(map[string]*deadlock.Mutex),
	}
}

// lockVault serializes all operations touching one vault.
func (e *Engine) lockVault(name string) func() {
	e.mu.Lock()
	lock, ok := e.locks[name]
	if !ok {
		lock = new(deadlock.Mutex)
		e.locks[name] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (e *Engine) getVault(name string) (*Vault, error) {
	v, err := e.store.GetVault(name)
	if err != nil {
		return nil, externalErr(err)
	}
	if v == nil {
		return nil, errVaultNotFound
	}
	return v, nil
}

// getDepositor loads a depositor record and catches it up to the vault's
// rebase epoch. Every operation goes through here so share arithmetic
// never runs on stale counts.
func (e *Engine) getDepositor(v *Vault, authority fund.Address) (*Depositor, error) {
	d, err := e.store.GetDepositor(v.Name, authority)
	if err != nil {
		return nil, externalErr(err)
	}
	if d == nil {
		return nil, errDepositorNotFound
	}
	if err := d.syncRebase(v); err != nil {
		return nil, err
	}
	return d, nil
}

// failOp routes an operation failure. An invariant breach means the
// ledger can no longer be trusted, so the vault is paused before the
// error is returned; everything else passes through untouched.
func (e *Engine) failOp(name string, err error) error {
	if !IsKind(err, KindInvariant) {
		return err
	}
	logger.Error("invariant violated, pausing vault", "vault", name, "err", err)
	v, loadErr := e.store.GetVault(name)
	if loadErr != nil || v == nil {
		logger.Error("failed to load vault for pause", "vault", name, "err", loadErr)
		return err
	}
	v.IsPaused = true
	if saveErr := e.store.Save(v); saveErr != nil {
		logger.Error("failed to persist vault pause", "vault", name, "err", saveErr)
	}
	return err
}

// InitializeVault creates a vault. The name is the identity; creating an
// existing name is a state conflict.
func (e *Engine) InitializeVault(name string, owner, platform fund.Address, cfg Config, now int64) (v *Vault, err error) {
	defer func() { countOp("initialize_vault", err) }()
	defer e.lockVault(name)()

	existing, err := e.store.GetVault(name)
	if err != nil {
		return nil, externalErr(err)
	}
	if existing != nil {
		return nil, errVaultExists
	}
	if v, err = newVault(name, owner, platform, cfg, now); err != nil {
		return nil, err
	}
	if err = e.store.Save(v); err != nil {
		return nil, externalErr(err)
	}
	logger.Info("vault initialized",
		"vault", name, "owner", owner, "lockup", v.UnstakeLockupPeriod, "feeBps", v.ManagementFeeBps)
	return v.Clone(), nil
}

// UpdateVaultConfig applies a partial configuration change. Owner only;
// allowed while paused so a paused vault can be unpaused.
func (e *Engine) UpdateVaultConfig(name string, principal fund.Address, u ConfigUpdate) (v *Vault, err error) {
	defer func() { countOp("update_vault_config", err) }()
	defer e.lockVault(name)()

	if v, err = e.getVault(name); err != nil {
		return nil, err
	}
	if v.Owner != principal {
		return nil, errUnauthorized
	}
	if err = v.applyUpdate(u); err != nil {
		return nil, err
	}
	if err = e.store.Save(v); err != nil {
		return nil, externalErr(err)
	}
	logger.Info("vault config updated", "vault", name, "paused", v.IsPaused)
	return v.Clone(), nil
}

// InitializeDepositor creates the per-user record for a vault.
func (e *Engine) InitializeDepositor(name string, authority fund.Address, now int64) (d *Depositor, err error) {
	defer func() { countOp("initialize_depositor", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return nil, err
	}
	existing, err := e.store.GetDepositor(name, authority)
	if err != nil {
		return nil, externalErr(err)
	}
	if existing != nil {
		return nil, errDepositorExists
	}
	d = newDepositor(name, authority, v, now)
	if err = e.store.Save(v, d); err != nil {
		return nil, externalErr(err)
	}
	logger.Debug("depositor initialized", "vault", name, "authority", authority)
	return d.Clone(), nil
}

// Stake converts an asset amount to newly minted shares at the current
// active share value (1:1 while the vault has no shares at all) and pulls
// the assets into the vault account. The floor rounding on the mint keeps
// any remainder with the pool.
func (e *Engine) Stake(name string, authority fund.Address, amount uint64, now int64) (err error) {
	defer func() { countOp("stake", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return e.failOp(name, err)
	}

	switch {
	case v.IsPaused:
		return errVaultPaused
	case amount == 0:
		return errInvalidAmount
	case amount < v.MinStakeAmount:
		return errBelowMinimum
	case d.LastStakeTime > 0 && now < d.LastStakeTime+StakeCooldown:
		return errCooldown
	}
	newTotalAssets, err := vaultmath.Add(v.TotalAssets, amount)
	if err != nil {
		return arithmeticErr(err)
	}
	if v.MaxTotalAssets > 0 && newTotalAssets > v.MaxTotalAssets {
		return errVaultFull
	}

	var shares uint64
	if v.TotalShares == 0 {
		shares = amount
	} else {
		active, err := v.ActiveShares()
		if err != nil {
			return e.failOp(name, err)
		}
		if active == 0 {
			return errAllSharesPending
		}
		price, err := v.ActiveShareValue()
		if err != nil {
			return e.failOp(name, err)
		}
		if shares, err = vaultmath.SharesFloor(amount, price); err != nil {
			return arithmeticErr(err)
		}
		if shares == 0 {
			return errStakeTooSmall
		}
	}

	if v.TotalShares, err = vaultmath.Add(v.TotalShares, shares); err != nil {
		return arithmeticErr(err)
	}
	v.TotalAssets = newTotalAssets
	if d.Shares, err = vaultmath.Add(d.Shares, shares); err != nil {
		return arithmeticErr(err)
	}
	if d.TotalStaked, err = vaultmath.Add(d.TotalStaked, amount); err != nil {
		return arithmeticErr(err)
	}
	d.LastStakeTime = now

	if err = v.CheckInvariants(); err != nil {
		return e.failOp(name, err)
	}
	if err = e.transfer.Transfer(authority, v.AssetAccount, amount); err != nil {
		return externalErr(err)
	}
	if err = e.store.Save(v, d); err != nil {
		return externalErr(err)
	}
	gaugeVault(v)
	logger.Debug("stake", "vault", name, "authority", authority, "amount", amount, "shares", shares)
	return nil
}

// RequestUnstake starts the two-phase withdrawal: the requested value is
// converted to shares at the current price (ceil), the shares leave the
// active pool and the payout is computed once and reserved at today's
// price. An amount above the holding's current value is rejected;
// amount == FullBalance means the entire holding. A second request while
// one is pending is rejected.
func (e *Engine) RequestUnstake(name string, authority fund.Address, amount uint64, now int64) (err error) {
	defer func() { countOp("request_unstake", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return e.failOp(name, err)
	}

	switch {
	case v.IsPaused:
		return errVaultPaused
	case d.Request.IsPending():
		return errRequestExists
	case amount == 0:
		return errInvalidAmount
	case d.Shares == 0:
		return errInsufficientFunds
	case d.LastStakeTime > 0 && now < d.LastStakeTime+StakeCooldown:
		return errCooldown
	}

	price, err := v.ActiveShareValue()
	if err != nil {
		return e.failOp(name, err)
	}
	var shares uint64
	if amount == FullBalance {
		shares = d.Shares
	} else {
		value, err := vaultmath.ValueFloor(d.Shares, price)
		if err != nil {
			return arithmeticErr(err)
		}
		if amount > value {
			return errInsufficientFunds
		}
		if shares, err = vaultmath.SharesCeil(amount, price); err != nil {
			return arithmeticErr(err)
		}
		// ceil may overshoot the holding by one share
		if shares > d.Shares {
			shares = d.Shares
		}
	}
	reserved, err := vaultmath.ValueFloor(shares, price)
	if err != nil {
		return arithmeticErr(err)
	}

	if d.Shares, err = vaultmath.Sub(d.Shares, shares); err != nil {
		return arithmeticErr(err)
	}
	d.Request = UnstakeRequest{
		Shares:         shares,
		RequestTime:    now,
		AssetPerShare:  price,
		ReservedAssets: reserved,
	}
	if v.PendingUnstakeShares, err = vaultmath.Add(v.PendingUnstakeShares, shares); err != nil {
		return arithmeticErr(err)
	}
	if v.ReservedAssets, err = vaultmath.Add(v.ReservedAssets, reserved); err != nil {
		return arithmeticErr(err)
	}

	if err = v.CheckInvariants(); err != nil {
		return e.failOp(name, err)
	}
	if err = e.store.Save(v, d); err != nil {
		return externalErr(err)
	}
	gaugeVault(v)
	logger.Debug("unstake requested",
		"vault", name, "authority", authority, "shares", shares, "reserved", reserved, "price", price)
	return nil
}

// CancelUnstakeRequest reverses a pending request exactly: the shares
// return to the active pool and the reservation is released. The payout
// the request had locked in is simply forgotten; the returned shares are
// worth whatever the pool says now.
func (e *Engine) CancelUnstakeRequest(name string, authority fund.Address) (err error) {
	defer func() { countOp("cancel_unstake_request", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return e.failOp(name, err)
	}
	if v.IsPaused {
		return errVaultPaused
	}
	if !d.Request.IsPending() {
		return errNoRequest
	}

	shares, reserved := d.Request.Shares, d.Request.ReservedAssets
	if d.Shares, err = vaultmath.Add(d.Shares, shares); err != nil {
		return arithmeticErr(err)
	}
	if v.PendingUnstakeShares, err = vaultmath.Sub(v.PendingUnstakeShares, shares); err != nil {
		return e.failOp(name, invariantErr("pending shares underflow on cancel: %v", err))
	}
	if v.ReservedAssets, err = vaultmath.Sub(v.ReservedAssets, reserved); err != nil {
		return e.failOp(name, invariantErr("reserved assets underflow on cancel: %v", err))
	}
	d.Request.reset()

	if err = v.CheckInvariants(); err != nil {
		return e.failOp(name, err)
	}
	if err = e.store.Save(v, d); err != nil {
		return externalErr(err)
	}
	gaugeVault(v)
	logger.Debug("unstake request cancelled", "vault", name, "authority", authority, "shares", shares)
	return nil
}

// Unstake completes a matured request: it burns the pending shares and
// pays out exactly the reservation recorded at request time, whatever the
// share price has done since. The transfer runs before the ledger commit
// so a failed payout leaves no mutation.
func (e *Engine) Unstake(name string, authority fund.Address, now int64) (err error) {
	defer func() { countOp("unstake", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return e.failOp(name, err)
	}
	if v.IsPaused {
		return errVaultPaused
	}
	if !d.Request.IsPending() {
		return errNoRequest
	}
	if !d.Request.CanExecute(now, v.UnstakeLockupPeriod) {
		return errLockupNotFinished
	}

	shares, payout := d.Request.Shares, d.Request.ReservedAssets
	if v.TotalShares, err = vaultmath.Sub(v.TotalShares, shares); err != nil {
		return e.failOp(name, invariantErr("total shares underflow on unstake: %v", err))
	}
	if v.PendingUnstakeShares, err = vaultmath.Sub(v.PendingUnstakeShares, shares); err != nil {
		return e.failOp(name, invariantErr("pending shares underflow on unstake: %v", err))
	}
	if v.TotalAssets, err = vaultmath.Sub(v.TotalAssets, payout); err != nil {
		return e.failOp(name, invariantErr("total assets underflow on unstake: %v", err))
	}
	if v.ReservedAssets, err = vaultmath.Sub(v.ReservedAssets, payout); err != nil {
		return e.failOp(name, invariantErr("reserved assets underflow on unstake: %v", err))
	}
	if d.TotalUnstaked, err = vaultmath.Add(d.TotalUnstaked, payout); err != nil {
		return arithmeticErr(err)
	}
	d.Request.reset()

	if err = v.CheckInvariants(); err != nil {
		return e.failOp(name, err)
	}
	if payout > 0 {
		if err = e.transfer.Transfer(v.AssetAccount, authority, payout); err != nil {
			return externalErr(err)
		}
	}
	if err = e.store.Save(v, d); err != nil {
		return externalErr(err)
	}
	gaugeVault(v)
	logger.Debug("unstake", "vault", name, "authority", authority, "shares", shares, "payout", payout)
	return nil
}

// AddRewards injects rewards from the owner. The platform takes
// floor(amount * fee / 10000); the remainder compounds into TotalAssets
// so every active share appreciates without individual claims. Owner only.
func (e *Engine) AddRewards(name string, principal fund.Address, amount uint64, now int64) (err error) {
	defer func() { countOp("add_rewards", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return err
	}
	if v.Owner != principal {
		return errUnauthorized
	}
	if v.IsPaused {
		return errVaultPaused
	}
	if amount == 0 {
		return errInvalidAmount
	}

	platformShare, err := vaultmath.MulDivFloor(amount, v.ManagementFeeBps, BasisPoints)
	if err != nil {
		return arithmeticErr(err)
	}
	vaultShare := amount - platformShare

	if v.TotalAssets, err = vaultmath.Add(v.TotalAssets, vaultShare); err != nil {
		return arithmeticErr(err)
	}
	if v.TotalRewards, err = vaultmath.Add(v.TotalRewards, vaultShare); err != nil {
		return arithmeticErr(err)
	}
	active, err := v.ActiveShares()
	if err != nil {
		return e.failOp(name, err)
	}
	if active > 0 && vaultShare > 0 {
		if v.RewardsPerShare, err = vaultmath.AccruePerShare(v.RewardsPerShare, vaultShare, active); err != nil {
			return arithmeticErr(err)
		}
	}
	v.LastRewardsUpdate = now

	if err = v.CheckInvariants(); err != nil {
		return e.failOp(name, err)
	}
	if vaultShare > 0 {
		if err = e.transfer.Transfer(principal, v.AssetAccount, vaultShare); err != nil {
			return externalErr(err)
		}
	}
	if platformShare > 0 {
		if err = e.transfer.Transfer(principal, v.PlatformAccount, platformShare); err != nil {
			// The vault share already moved; send it back so an uncommitted
			// operation leaves no funds in flight. The asset account holding
			// extra unledgered funds is safe, so a failed return is only
			// logged.
			if vaultShare > 0 {
				if backErr := e.transfer.Transfer(v.AssetAccount, principal, vaultShare); backErr != nil {
					logger.Warn("failed to return vault share after fee transfer failure",
						"vault", name, "amount", vaultShare, "err", backErr)
				}
			}
			return externalErr(err)
		}
	}
	if err = e.store.Save(v); err != nil {
		return externalErr(err)
	}
	gaugeVault(v)
	logger.Info("rewards added",
		"vault", name, "amount", amount, "vaultShare", vaultShare, "platformShare", platformShare)
	return nil
}

// SyncRebase persists a depositor's lazy rebase catch-up without any other
// effect. Useful for keeping stored records readable; all mutating
// operations sync implicitly.
func (e *Engine) SyncRebase(name string, authority fund.Address) (err error) {
	defer func() { countOp("sync_rebase", err) }()
	defer e.lockVault(name)()

	v, err := e.getVault(name)
	if err != nil {
		return err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return e.failOp(name, err)
	}
	if err = e.store.Save(v, d); err != nil {
		return externalErr(err)
	}
	return nil
}

// GetVaultInfo returns a copy of the vault record.
func (e *Engine) GetVaultInfo(name string) (*Vault, error) {
	v, err := e.getVault(name)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// GetDepositorInfo returns a rebase-adjusted copy of the depositor record
// without persisting the adjustment.
func (e *Engine) GetDepositorInfo(name string, authority fund.Address) (*Depositor, error) {
	v, err := e.getVault(name)
	if err != nil {
		return nil, err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// GetAssetValue returns the current asset value of a depositor's holding:
// active shares at today's floor price plus the reservation of any pending
// request.
func (e *Engine) GetAssetValue(name string, authority fund.Address) (uint64, error) {
	v, err := e.getVault(name)
	if err != nil {
		return 0, err
	}
	d, err := e.getDepositor(v, authority)
	if err != nil {
		return 0, err
	}

	value := d.Request.ReservedAssets
	if d.Shares > 0 {
		price, err := v.ActiveShareValue()
		if err != nil {
			return 0, err
		}
		activeValue, err := vaultmath.ValueFloor(d.Shares, price)
		if err != nil {
			return 0, arithmeticErr(err)
		}
		if value, err = vaultmath.Add(value, activeValue); err != nil {
			return 0, arithmeticErr(err)
		}
	}
	return value, nil
}
