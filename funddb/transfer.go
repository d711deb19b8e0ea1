// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package funddb

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/stakesafe/vaultd/fund"
)

// Transfer moves amount between book-entry accounts in one transaction.
// The debit fails when the source balance is insufficient, so a failure
// means nothing moved.
func (db *FundDB) Transfer(from, to fund.Address, amount uint64) (err error) {
	if amount == 0 {
		return nil
	}
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var balance int64
	err = tx.QueryRow(`SELECT amount FROM balance WHERE account = ?`, from.Bytes()).Scan(&balance)
	if err == sql.ErrNoRows {
		return errors.Errorf("account %s has no balance", from)
	}
	if err != nil {
		return err
	}
	if uint64(balance) < amount {
		return errors.Errorf("account %s balance %d short of %d", from, balance, amount)
	}
	if _, err = tx.Exec(`UPDATE balance SET amount = amount - ? WHERE account = ?`,
		int64(amount), from.Bytes()); err != nil {
		return err
	}
	if _, err = tx.Exec(`INSERT INTO balance (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = amount + excluded.amount`,
		to.Bytes(), int64(amount)); err != nil {
		return err
	}
	return tx.Commit()
}

// Credit funds an account from outside the book, e.g. a settled deposit.
func (db *FundDB) Credit(account fund.Address, amount uint64) error {
	_, err := db.db.Exec(`INSERT INTO balance (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = amount + excluded.amount`,
		account.Bytes(), int64(amount))
	return err
}

// Balance returns an account's book balance, zero when unknown.
func (db *FundDB) Balance(account fund.Address) (uint64, error) {
	var balance int64
	err := db.db.QueryRow(`SELECT amount FROM balance WHERE account = ?`, account.Bytes()).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}
