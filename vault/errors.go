// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so callers can tell bad input apart from
// broken math or a corrupted ledger.
type Kind int

const (
	// KindValidation covers rejected input: bad amounts, paused vault,
	// vault full. No retry semantics, no partial effect.
	KindValidation Kind = iota + 1
	// KindStateConflict covers operations illegal in the current state:
	// request already exists, no request, lockup not elapsed. The caller
	// should re-check state before retrying.
	KindStateConflict
	// KindUnauthorized covers principal mismatches on owner-only
	// operations.
	KindUnauthorized
	// KindArithmetic covers overflow, underflow and division by zero.
	// Unreachable under correct invariants; hitting one is a design bug.
	KindArithmetic
	// KindInvariant covers accounting integrity failures. The engine
	// pauses the vault so no further mutation can compound the error.
	KindInvariant
	// KindExternal covers transfer primitive failures. No ledger mutation
	// is retained; the caller may retry.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state-conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindArithmetic:
		return "arithmetic"
	case KindInvariant:
		return "invariant"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Error is the engine's failure type.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.cause }

// IsKind reports whether err is an engine Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.kind == kind
}

// IsNotFound reports whether err means the vault or depositor record is
// missing, as opposed to other state conflicts.
func IsNotFound(err error) bool {
	return errors.Is(err, errVaultNotFound) || errors.Is(err, errDepositorNotFound)
}

var (
	errVaultPaused       = &Error{kind: KindValidation, msg: "vault is paused"}
	errInvalidAmount     = &Error{kind: KindValidation, msg: "invalid amount"}
	errVaultFull         = &Error{kind: KindValidation, msg: "vault is full"}
	errBelowMinimum      = &Error{kind: KindValidation, msg: "amount below minimum stake"}
	errStakeTooSmall     = &Error{kind: KindValidation, msg: "amount too small for current share price"}
	errAllSharesPending  = &Error{kind: KindValidation, msg: "cannot price stake: all shares pending unstake"}
	errCooldown          = &Error{kind: KindValidation, msg: "stake cooldown not elapsed"}
	errInsufficientFunds = &Error{kind: KindValidation, msg: "insufficient funds"}
	errRebaseNotRequired = &Error{kind: KindValidation, msg: "rebase not required"}
	errRebaseLossy       = &Error{kind: KindValidation, msg: "rebase would truncate holder balances"}
	errVaultExists       = &Error{kind: KindStateConflict, msg: "vault already exists"}
	errVaultNotFound     = &Error{kind: KindStateConflict, msg: "vault not found"}
	errDepositorExists   = &Error{kind: KindStateConflict, msg: "depositor already exists"}
	errDepositorNotFound = &Error{kind: KindStateConflict, msg: "depositor not found"}
	errRequestExists     = &Error{kind: KindStateConflict, msg: "unstake request already exists"}
	errNoRequest         = &Error{kind: KindStateConflict, msg: "no unstake request"}
	errLockupNotFinished = &Error{kind: KindStateConflict, msg: "unstake lockup not finished"}
	errUnauthorized      = &Error{kind: KindUnauthorized, msg: "unauthorized"}
)

func validationErr(format string, args ...any) *Error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

func arithmeticErr(cause error) *Error {
	return &Error{kind: KindArithmetic, msg: "accounting arithmetic failed", cause: cause}
}

func invariantErr(format string, args ...any) *Error {
	return &Error{kind: KindInvariant, msg: fmt.Sprintf(format, args...)}
}

func externalErr(cause error) *Error {
	return &Error{kind: KindExternal, msg: "asset transfer failed", cause: cause}
}
