// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package funddb persists the vault ledger in sqlite and provides the
// book-entry asset accounts the daemon settles transfers against.
package funddb

import (
	"database/sql"

	"github.com/holiman/uint256"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault"
)

// FundDB implements vault.Store and vault.Transferor on a sqlite file.
type FundDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New creates or opens the fund db at the given path.
func New(path string) (fundDB *FundDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if fundDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(vaultTableSchema + depositorTableSchema + balanceTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &FundDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem creates a fund db in ram.
func NewMem() (*FundDB, error) {
	return New(":memory:")
}

// Close closes the fund db.
func (db *FundDB) Close() {
	db.db.Close()
}

func (db *FundDB) Path() string {
	return db.path
}

// GetVault loads a vault record, nil when absent.
func (db *FundDB) GetVault(name string) (*vault.Vault, error) {
	row := db.db.QueryRow(`SELECT name, owner, platformAccount, assetAccount,
		totalShares, totalAssets, reservedAssets, pendingUnstakeShares, totalRewards,
		rewardsPerShare, lastRewardsUpdate, unstakeLockupPeriod, managementFeeBps,
		minStakeAmount, maxTotalAssets, isPaused, sharesBase, rebaseVersion, createdAt
		FROM vault WHERE name = ?`, name)
	v, err := scanVault(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// GetDepositor loads a depositor record, nil when absent.
func (db *FundDB) GetDepositor(vaultName string, authority fund.Address) (*vault.Depositor, error) {
	row := db.db.QueryRow(`SELECT vaultName, authority, shares,
		requestShares, requestTime, requestPrice, requestReserved,
		totalStaked, totalUnstaked, lastRebaseVersion, lastSharesBase, lastStakeTime, createdAt
		FROM depositor WHERE vaultName = ? AND authority = ?`, vaultName, authority.Bytes())
	d, err := scanDepositor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ListDepositors loads every depositor record of a vault.
func (db *FundDB) ListDepositors(vaultName string) ([]*vault.Depositor, error) {
	rows, err := db.db.Query(`SELECT vaultName, authority, shares,
		requestShares, requestTime, requestPrice, requestReserved,
		totalStaked, totalUnstaked, lastRebaseVersion, lastSharesBase, lastStakeTime, createdAt
		FROM depositor WHERE vaultName = ?`, vaultName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*vault.Depositor
	for rows.Next() {
		d, err := scanDepositor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Save writes the vault and the given depositor records in one
// transaction.
func (db *FundDB) Save(v *vault.Vault, deps ...*vault.Depositor) (err error) {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`INSERT OR REPLACE INTO vault
		(name, owner, platformAccount, assetAccount,
		totalShares, totalAssets, reservedAssets, pendingUnstakeShares, totalRewards,
		rewardsPerShare, lastRewardsUpdate, unstakeLockupPeriod, managementFeeBps,
		minStakeAmount, maxTotalAssets, isPaused, sharesBase, rebaseVersion, createdAt)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.Name, v.Owner.Bytes(), v.PlatformAccount.Bytes(), v.AssetAccount.Bytes(),
		int64(v.TotalShares), int64(v.TotalAssets), int64(v.ReservedAssets),
		int64(v.PendingUnstakeShares), int64(v.TotalRewards),
		decOrZero(v.RewardsPerShare), v.LastRewardsUpdate, v.UnstakeLockupPeriod,
		int64(v.ManagementFeeBps), int64(v.MinStakeAmount), int64(v.MaxTotalAssets),
		v.IsPaused, v.SharesBase, v.RebaseVersion, v.CreatedAt,
	); err != nil {
		return err
	}

	for _, d := range deps {
		if _, err = tx.Exec(`INSERT OR REPLACE INTO depositor
			(vaultName, authority, shares,
			requestShares, requestTime, requestPrice, requestReserved,
			totalStaked, totalUnstaked, lastRebaseVersion, lastSharesBase, lastStakeTime, createdAt)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			d.VaultName, d.Authority.Bytes(), int64(d.Shares),
			int64(d.Request.Shares), d.Request.RequestTime,
			decOrZero(d.Request.AssetPerShare), int64(d.Request.ReservedAssets),
			int64(d.TotalStaked), int64(d.TotalUnstaked),
			d.LastRebaseVersion, d.LastSharesBase, d.LastStakeTime, d.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanVault(row scannable) (*vault.Vault, error) {
	var (
		v                                                        vault.Vault
		owner, platformAccount, assetAccount                     []byte
		totalShares, totalAssets, reservedAssets                 int64
		pendingShares, totalRewards, feeBps, minStake, maxAssets int64
		rewardsPerShare                                          string
	)
	if err := row.Scan(&v.Name, &owner, &platformAccount, &assetAccount,
		&totalShares, &totalAssets, &reservedAssets, &pendingShares, &totalRewards,
		&rewardsPerShare, &v.LastRewardsUpdate, &v.UnstakeLockupPeriod, &feeBps,
		&minStake, &maxAssets, &v.IsPaused, &v.SharesBase, &v.RebaseVersion, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	v.Owner = fund.BytesToAddress(owner)
	v.PlatformAccount = fund.BytesToAddress(platformAccount)
	v.AssetAccount = fund.BytesToAddress(assetAccount)
	v.TotalShares = uint64(totalShares)
	v.TotalAssets = uint64(totalAssets)
	v.ReservedAssets = uint64(reservedAssets)
	v.PendingUnstakeShares = uint64(pendingShares)
	v.TotalRewards = uint64(totalRewards)
	v.ManagementFeeBps = uint64(feeBps)
	v.MinStakeAmount = uint64(minStake)
	v.MaxTotalAssets = uint64(maxAssets)

	price, err := uint256.FromDecimal(rewardsPerShare)
	if err != nil {
		return nil, errors.Wrap(err, "parse rewardsPerShare")
	}
	v.RewardsPerShare = price
	return &v, nil
}

func scanDepositor(row scannable) (*vault.Depositor, error) {
	var (
		d                                     vault.Depositor
		authority                             []byte
		shares, reqShares, reqReserved        int64
		totalStaked, totalUnstaked            int64
		reqPrice                              string
	)
	if err := row.Scan(&d.VaultName, &authority, &shares,
		&reqShares, &d.Request.RequestTime, &reqPrice, &reqReserved,
		&totalStaked, &totalUnstaked, &d.LastRebaseVersion, &d.LastSharesBase,
		&d.LastStakeTime, &d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.Authority = fund.BytesToAddress(authority)
	d.Shares = uint64(shares)
	d.Request.Shares = uint64(reqShares)
	d.Request.ReservedAssets = uint64(reqReserved)
	d.TotalStaked = uint64(totalStaked)
	d.TotalUnstaked = uint64(totalUnstaked)

	if d.Request.Shares > 0 {
		price, err := uint256.FromDecimal(reqPrice)
		if err != nil {
			return nil, errors.Wrap(err, "parse requestPrice")
		}
		d.Request.AssetPerShare = price
	}
	return &d, nil
}

func decOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
