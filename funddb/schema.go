// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package funddb

// Unsigned 64-bit amounts are stored bit-cast to sqlite integers; the
// Precision-scaled request price is wider than 64 bits and stored as a
// decimal string.
const vaultTableSchema = `
create table if not exists vault (
	name text primary key,
	owner blob(20) not null,
	platformAccount blob(20) not null,
	assetAccount blob(20) not null,
	totalShares integer not null,
	totalAssets integer not null,
	reservedAssets integer not null,
	pendingUnstakeShares integer not null,
	totalRewards integer not null,
	rewardsPerShare text not null,
	lastRewardsUpdate integer not null,
	unstakeLockupPeriod integer not null,
	managementFeeBps integer not null,
	minStakeAmount integer not null,
	maxTotalAssets integer not null,
	isPaused integer not null,
	sharesBase integer not null,
	rebaseVersion integer not null,
	createdAt integer not null
);
`

const depositorTableSchema = `
create table if not exists depositor (
	vaultName text not null,
	authority blob(20) not null,
	shares integer not null,
	requestShares integer not null,
	requestTime integer not null,
	requestPrice text not null,
	requestReserved integer not null,
	totalStaked integer not null,
	totalUnstaked integer not null,
	lastRebaseVersion integer not null,
	lastSharesBase integer not null,
	lastStakeTime integer not null,
	createdAt integer not null,
	primary key (vaultName, authority)
);

CREATE INDEX if not exists depositorVaultIndex on depositor(vaultName);
`

const balanceTableSchema = `
create table if not exists balance (
	account blob(20) primary key,
	amount integer not null
);
`
