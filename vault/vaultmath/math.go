// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vaultmath provides the checked fixed-point arithmetic used by the
// vault accounting engine. Every division states its rounding direction in
// its name; wide intermediates run on 256-bit integers and narrowing back
// to uint64 fails rather than truncates.
package vaultmath

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// Precision scales asset-per-share prices so they keep sub-unit
	// fidelity while stored as integers.
	Precision = uint64(1_000_000_000_000) // 1e12

	// SharePrecision scales the informational rewards-per-share
	// accumulator.
	SharePrecision = uint64(1_000_000_000_000_000_000) // 1e18
)

var (
	ErrOverflow     = errors.New("math: overflow")
	ErrUnderflow    = errors.New("math: underflow")
	ErrDivideByZero = errors.New("math: divide by zero")

	precision      = uint256.NewInt(Precision)
	sharePrecision = uint256.NewInt(SharePrecision)
)

// Add returns a + b, failing on uint64 overflow.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b, failing on underflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// MulDivFloor returns floor(a * b / den) with a 256-bit intermediate.
func MulDivFloor(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	num := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	num.Div(num, uint256.NewInt(den))
	return toUint64(num)
}

// MulDivCeil returns ceil(a * b / den) with a 256-bit intermediate.
func MulDivCeil(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	d := uint256.NewInt(den)
	num := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	rem := new(uint256.Int).Mod(num, d)
	num.Div(num, d)
	if !rem.IsZero() {
		num.AddUint64(num, 1)
	}
	return toUint64(num)
}

// PriceFloor returns floor(assets * Precision / shares), the
// Precision-scaled asset value of one share.
func PriceFloor(assets, shares uint64) (*uint256.Int, error) {
	if shares == 0 {
		return nil, ErrDivideByZero
	}
	price := new(uint256.Int).Mul(uint256.NewInt(assets), precision)
	price.Div(price, uint256.NewInt(shares))
	return price, nil
}

// ValueFloor returns floor(shares * price / Precision), converting a share
// count back to asset units at a Precision-scaled price.
func ValueFloor(shares uint64, price *uint256.Int) (uint64, error) {
	v := new(uint256.Int).Mul(uint256.NewInt(shares), price)
	v.Div(v, precision)
	return toUint64(v)
}

// SharesFloor returns floor(amount * Precision / price), converting an
// asset amount to shares at a Precision-scaled price.
func SharesFloor(amount uint64, price *uint256.Int) (uint64, error) {
	if price == nil || price.IsZero() {
		return 0, ErrDivideByZero
	}
	s := new(uint256.Int).Mul(uint256.NewInt(amount), precision)
	s.Div(s, price)
	return toUint64(s)
}

// SharesCeil returns ceil(amount * Precision / price).
func SharesCeil(amount uint64, price *uint256.Int) (uint64, error) {
	if price == nil || price.IsZero() {
		return 0, ErrDivideByZero
	}
	s := new(uint256.Int).Mul(uint256.NewInt(amount), precision)
	rem := new(uint256.Int).Mod(s, price)
	s.Div(s, price)
	if !rem.IsZero() {
		s.AddUint64(s, 1)
	}
	return toUint64(s)
}

// AccruePerShare returns acc + floor(amount * SharePrecision / shares).
func AccruePerShare(acc *uint256.Int, amount, shares uint64) (*uint256.Int, error) {
	if shares == 0 {
		return nil, ErrDivideByZero
	}
	delta := new(uint256.Int).Mul(uint256.NewInt(amount), sharePrecision)
	delta.Div(delta, uint256.NewInt(shares))
	if acc == nil {
		return delta, nil
	}
	sum, carry := new(uint256.Int).AddOverflow(acc, delta)
	if carry {
		return nil, ErrOverflow
	}
	return sum, nil
}

// Pow10 returns 10^exp as a uint64, failing above 10^19.
func Pow10(exp uint32) (uint64, error) {
	if exp > 19 {
		return 0, ErrOverflow
	}
	out := uint64(1)
	for i := uint32(0); i < exp; i++ {
		out *= 10
	}
	return out, nil
}

func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}
