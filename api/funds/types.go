// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package funds

import (
	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault"
)

// VaultInfo is the wire view of a vault record plus the derived pool
// figures.
type VaultInfo struct {
	Name                 string       `json:"name"`
	Owner                fund.Address `json:"owner"`
	PlatformAccount      fund.Address `json:"platformAccount"`
	AssetAccount         fund.Address `json:"assetAccount"`
	TotalShares          uint64       `json:"totalShares"`
	TotalAssets          uint64       `json:"totalAssets"`
	ReservedAssets       uint64       `json:"reservedAssets"`
	PendingUnstakeShares uint64       `json:"pendingUnstakeShares"`
	AvailableAssets      uint64       `json:"availableAssets"`
	ActiveShares         uint64       `json:"activeShares"`
	TotalRewards         uint64       `json:"totalRewards"`
	UnstakeLockupPeriod  int64        `json:"unstakeLockupPeriod"`
	ManagementFeeBps     uint64       `json:"managementFeeBps"`
	MinStakeAmount       uint64       `json:"minStakeAmount"`
	MaxTotalAssets       uint64       `json:"maxTotalAssets"`
	IsPaused             bool         `json:"isPaused"`
	SharesBase           uint32       `json:"sharesBase"`
	RebaseVersion        uint32       `json:"rebaseVersion"`
	CreatedAt            int64        `json:"createdAt"`
}

func convertVault(v *vault.Vault) (*VaultInfo, error) {
	avail, err := v.AvailableAssets()
	if err != nil {
		return nil, err
	}
	active, err := v.ActiveShares()
	if err != nil {
		return nil, err
	}
	return &VaultInfo{
		Name:                 v.Name,
		Owner:                v.Owner,
		PlatformAccount:      v.PlatformAccount,
		AssetAccount:         v.AssetAccount,
		TotalShares:          v.TotalShares,
		TotalAssets:          v.TotalAssets,
		ReservedAssets:       v.ReservedAssets,
		PendingUnstakeShares: v.PendingUnstakeShares,
		AvailableAssets:      avail,
		ActiveShares:         active,
		TotalRewards:         v.TotalRewards,
		UnstakeLockupPeriod:  v.UnstakeLockupPeriod,
		ManagementFeeBps:     v.ManagementFeeBps,
		MinStakeAmount:       v.MinStakeAmount,
		MaxTotalAssets:       v.MaxTotalAssets,
		IsPaused:             v.IsPaused,
		SharesBase:           v.SharesBase,
		RebaseVersion:        v.RebaseVersion,
		CreatedAt:            v.CreatedAt,
	}, nil
}

// UnstakeRequestInfo is the wire view of a pending request; Price is the
// Precision-scaled locked asset-per-share value in decimal.
type UnstakeRequestInfo struct {
	Shares         uint64 `json:"shares"`
	RequestTime    int64  `json:"requestTime"`
	Price          string `json:"price"`
	ReservedAssets uint64 `json:"reservedAssets"`
}

// DepositorInfo is the wire view of a depositor record.
type DepositorInfo struct {
	VaultName     string              `json:"vaultName"`
	Authority     fund.Address        `json:"authority"`
	Shares        uint64              `json:"shares"`
	Request       *UnstakeRequestInfo `json:"request,omitempty"`
	TotalStaked   uint64              `json:"totalStaked"`
	TotalUnstaked uint64              `json:"totalUnstaked"`
	RebaseVersion uint32              `json:"rebaseVersion"`
	LastStakeTime int64               `json:"lastStakeTime"`
	CreatedAt     int64               `json:"createdAt"`
}

func convertDepositor(d *vault.Depositor) *DepositorInfo {
	out := &DepositorInfo{
		VaultName:     d.VaultName,
		Authority:     d.Authority,
		Shares:        d.Shares,
		TotalStaked:   d.TotalStaked,
		TotalUnstaked: d.TotalUnstaked,
		RebaseVersion: d.LastRebaseVersion,
		LastStakeTime: d.LastStakeTime,
		CreatedAt:     d.CreatedAt,
	}
	if d.Request.IsPending() {
		out.Request = &UnstakeRequestInfo{
			Shares:         d.Request.Shares,
			RequestTime:    d.Request.RequestTime,
			Price:          d.Request.AssetPerShare.Dec(),
			ReservedAssets: d.Request.ReservedAssets,
		}
	}
	return out
}

// AssetValue is the response of the value query.
type AssetValue struct {
	Value uint64 `json:"value"`
}

// CreateVault is the admin vault creation body.
type CreateVault struct {
	Name                string       `json:"name"`
	PlatformAccount     fund.Address `json:"platformAccount"`
	UnstakeLockupPeriod int64        `json:"unstakeLockupPeriod"`
	ManagementFeeBps    uint64       `json:"managementFeeBps"`
	MinStakeAmount      uint64       `json:"minStakeAmount"`
	MaxTotalAssets      uint64       `json:"maxTotalAssets"`
}

// UpdateConfig is the partial config change body; absent fields are left
// untouched.
type UpdateConfig struct {
	UnstakeLockupPeriod *int64        `json:"unstakeLockupPeriod,omitempty"`
	ManagementFeeBps    *uint64       `json:"managementFeeBps,omitempty"`
	MinStakeAmount      *uint64       `json:"minStakeAmount,omitempty"`
	MaxTotalAssets      *uint64       `json:"maxTotalAssets,omitempty"`
	IsPaused            *bool         `json:"isPaused,omitempty"`
	PlatformAccount     *fund.Address `json:"platformAccount,omitempty"`
}

// Amount carries the single asset amount of stake, unstake request and
// reward bodies. All is the full-balance sentinel for unstake requests.
type Amount struct {
	Amount uint64 `json:"amount"`
	All    bool   `json:"all,omitempty"`
}
