// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package funds exposes the vault engine over HTTP. The host in front of
// the daemon authenticates callers; handlers read the already-verified
// principal from the X-Vaultd-Authority header and the engine only
// compares identities.
package funds

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakesafe/vaultd/api/restutil"
	"github.com/stakesafe/vaultd/fund"
	"github.com/stakesafe/vaultd/vault"
)

// AuthorityHeader carries the authenticated principal address.
const AuthorityHeader = "X-Vaultd-Authority"

type Funds struct {
	eng *vault.Engine
	now func() int64
}

// New creates the handler group. nowFn stamps mutating requests; nil
// means wall time.
func New(eng *vault.Engine, nowFn func() int64) *Funds {
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}
	return &Funds{eng: eng, now: nowFn}
}

func principal(req *http.Request) (fund.Address, error) {
	h := req.Header.Get(AuthorityHeader)
	if h == "" {
		return fund.Address{}, restutil.Forbidden(errors.New("missing " + AuthorityHeader + " header"))
	}
	addr, err := fund.ParseAddress(h)
	if err != nil {
		return fund.Address{}, restutil.BadRequest(errors.WithMessage(err, "authority"))
	}
	return *addr, nil
}

// convertError maps engine failure kinds onto http statuses.
func convertError(err error) error {
	switch {
	case err == nil:
		return nil
	case vault.IsNotFound(err):
		return restutil.NotFound(err)
	case vault.IsKind(err, vault.KindValidation):
		return restutil.BadRequest(err)
	case vault.IsKind(err, vault.KindStateConflict):
		return restutil.Conflict(err)
	case vault.IsKind(err, vault.KindUnauthorized):
		return restutil.Forbidden(err)
	case vault.IsKind(err, vault.KindExternal):
		return restutil.BadGateway(err)
	default:
		return err
	}
}

func (f *Funds) handleCreateVault(w http.ResponseWriter, req *http.Request) error {
	owner, err := principal(req)
	if err != nil {
		return err
	}
	var body CreateVault
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := f.eng.InitializeVault(body.Name, owner, body.PlatformAccount, vault.Config{
		UnstakeLockupPeriod: body.UnstakeLockupPeriod,
		ManagementFeeBps:    body.ManagementFeeBps,
		MinStakeAmount:      body.MinStakeAmount,
		MaxTotalAssets:      body.MaxTotalAssets,
	}, f.now())
	if err != nil {
		return convertError(err)
	}
	info, err := convertVault(v)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (f *Funds) handleUpdateConfig(w http.ResponseWriter, req *http.Request) error {
	owner, err := principal(req)
	if err != nil {
		return err
	}
	var body UpdateConfig
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	v, err := f.eng.UpdateVaultConfig(mux.Vars(req)["name"], owner, vault.ConfigUpdate{
		UnstakeLockupPeriod: body.UnstakeLockupPeriod,
		ManagementFeeBps:    body.ManagementFeeBps,
		MinStakeAmount:      body.MinStakeAmount,
		MaxTotalAssets:      body.MaxTotalAssets,
		IsPaused:            body.IsPaused,
		PlatformAccount:     body.PlatformAccount,
	})
	if err != nil {
		return convertError(err)
	}
	info, err := convertVault(v)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (f *Funds) handleAddRewards(w http.ResponseWriter, req *http.Request) error {
	owner, err := principal(req)
	if err != nil {
		return err
	}
	var body Amount
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if err := f.eng.AddRewards(mux.Vars(req)["name"], owner, body.Amount, f.now()); err != nil {
		return convertError(err)
	}
	return f.writeVault(w, mux.Vars(req)["name"])
}

func (f *Funds) handleApplyRebase(w http.ResponseWriter, req *http.Request) error {
	owner, err := principal(req)
	if err != nil {
		return err
	}
	v, err := f.eng.ApplyRebase(mux.Vars(req)["name"], owner)
	if err != nil {
		return convertError(err)
	}
	info, err := convertVault(v)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (f *Funds) handleGetVault(w http.ResponseWriter, req *http.Request) error {
	return f.writeVault(w, mux.Vars(req)["name"])
}

func (f *Funds) writeVault(w http.ResponseWriter, name string) error {
	v, err := f.eng.GetVaultInfo(name)
	if err != nil {
		return convertError(err)
	}
	info, err := convertVault(v)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (f *Funds) handleCreateDepositor(w http.ResponseWriter, req *http.Request) error {
	authority, err := principal(req)
	if err != nil {
		return err
	}
	d, err := f.eng.InitializeDepositor(mux.Vars(req)["name"], authority, f.now())
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertDepositor(d))
}

func (f *Funds) handleStake(w http.ResponseWriter, req *http.Request) error {
	authority, err := principal(req)
	if err != nil {
		return err
	}
	var body Amount
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	name := mux.Vars(req)["name"]
	if err := f.eng.Stake(name, authority, body.Amount, f.now()); err != nil {
		return convertError(err)
	}
	return f.writeDepositor(w, name, authority)
}

func (f *Funds) handleRequestUnstake(w http.ResponseWriter, req *http.Request) error {
	authority, err := principal(req)
	if err != nil {
		return err
	}
	var body Amount
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	amount := body.Amount
	if body.All {
		amount = vault.FullBalance
	}
	name := mux.Vars(req)["name"]
	if err := f.eng.RequestUnstake(name, authority, amount, f.now()); err != nil {
		return convertError(err)
	}
	return f.writeDepositor(w, name, authority)
}

func (f *Funds) handleCancelRequest(w http.ResponseWriter, req *http.Request) error {
	authority, err := principal(req)
	if err != nil {
		return err
	}
	name := mux.Vars(req)["name"]
	if err := f.eng.CancelUnstakeRequest(name, authority); err != nil {
		return convertError(err)
	}
	return f.writeDepositor(w, name, authority)
}

func (f *Funds) handleUnstake(w http.ResponseWriter, req *http.Request) error {
	authority, err := principal(req)
	if err != nil {
		return err
	}
	name := mux.Vars(req)["name"]
	if err := f.eng.Unstake(name, authority, f.now()); err != nil {
		return convertError(err)
	}
	return f.writeDepositor(w, name, authority)
}

func (f *Funds) handleSync(w http.ResponseWriter, req *http.Request) error {
	authority, err := principal(req)
	if err != nil {
		return err
	}
	name := mux.Vars(req)["name"]
	if err := f.eng.SyncRebase(name, authority); err != nil {
		return convertError(err)
	}
	return f.writeDepositor(w, name, authority)
}

func (f *Funds) handleGetDepositor(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	authority, err := fund.ParseAddress(vars["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	return f.writeDepositor(w, vars["name"], *authority)
}

func (f *Funds) writeDepositor(w http.ResponseWriter, name string, authority fund.Address) error {
	d, err := f.eng.GetDepositorInfo(name, authority)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, convertDepositor(d))
}

func (f *Funds) handleGetAssetValue(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	authority, err := fund.ParseAddress(vars["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	value, err := f.eng.GetAssetValue(vars["name"], *authority)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &AssetValue{Value: value})
}

// Mount attaches the user surface.
func (f *Funds) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{name}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetVault))
	sub.Path("/{name}/depositors").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleCreateDepositor))
	sub.Path("/{name}/depositors/{address}").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetDepositor))
	sub.Path("/{name}/depositors/{address}/value").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetAssetValue))
	sub.Path("/{name}/stake").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleStake))
	sub.Path("/{name}/unstake-requests").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleRequestUnstake))
	sub.Path("/{name}/unstake-requests").
		Methods(http.MethodDelete).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleCancelRequest))
	sub.Path("/{name}/unstake").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleUnstake))
	sub.Path("/{name}/sync").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleSync))
}

// MountAdmin attaches the owner-facing surface.
func (f *Funds) MountAdmin(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleCreateVault))
	sub.Path("/{name}/config").
		Methods(http.MethodPatch).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleUpdateConfig))
	sub.Path("/{name}/rewards").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleAddRewards))
	sub.Path("/{name}/rebase").
		Methods(http.MethodPost).
		HandlerFunc(restutil.WrapHandlerFunc(f.handleApplyRebase))
}
