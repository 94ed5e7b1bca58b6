// Copyright (c) 2025, Triplet Authors. All rights reserved.
// Use of this source code is governed by a license that can be found in the LICENSE file.

// Package units holds the two scalar types shared by the fabric interface
// and the vault ledger: Balance (the fabric's base cycle unit) and Index
// (the ledger's internal share unit). Both are unsigned 128-bit counts;
// arithmetic is carried out in 256-bit space via holiman/uint256 so that
// multiplying two 128-bit values before dividing never overflows, matching
// spec.md's "multiplication-before-division is mandatory" design note.
package units

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// maxU128 bounds the values this package hands out; addition/subtraction
// beyond it is a programming error per spec.md §3, not a recoverable one.
var maxU128 = new(uint256.Int).Sub(
	new(uint256.Int).Lsh(uint256.NewInt(1), 128),
	uint256.NewInt(1),
)

// Balance is an unsigned 128-bit count of the fabric's base cycle unit.
type Balance struct{ v uint256.Int }

// Index is an unsigned 128-bit accumulator of the ledger's internal share
// unit.
type Index struct{ v uint256.Int }

// ZeroBalance is the additive identity.
func ZeroBalance() Balance { return Balance{} }

// ZeroIndex is the additive identity.
func ZeroIndex() Index { return Index{} }

// NewBalance builds a Balance from a uint64, the common case in tests and
// call sites that don't need full 128-bit range.
func NewBalance(v uint64) Balance { return Balance{v: *uint256.NewInt(v)} }

// NewIndex builds an Index from a uint64.
func NewIndex(v uint64) Index { return Index{v: *uint256.NewInt(v)} }

func checkU128(v *uint256.Int, op string) {
	if v.Gt(maxU128) {
		panic(fmt.Sprintf("units: %s overflowed u128", op))
	}
}

// Add returns b+other. Overflow beyond u128 is a programming error (panic),
// per spec.md: "Addition and subtraction are total within u128; underflow
// is a programming error."
func (b Balance) Add(other Balance) Balance {
	var out uint256.Int
	out.Add(&b.v, &other.v)
	checkU128(&out, "Balance.Add")
	return Balance{v: out}
}

// Sub returns b-other. Panics on underflow (see Add).
func (b Balance) Sub(other Balance) Balance {
	if b.v.Lt(&other.v) {
		panic("units: Balance.Sub underflow")
	}
	var out uint256.Int
	out.Sub(&b.v, &other.v)
	return Balance{v: out}
}

// Cmp compares b to other: -1, 0, or 1.
func (b Balance) Cmp(other Balance) int { return b.v.Cmp(&other.v) }

// IsZero reports whether b is zero.
func (b Balance) IsZero() bool { return b.v.IsZero() }

// Uint64 truncates to a uint64; callers must only use it where the value
// is known to fit (tests, small demo amounts).
func (b Balance) Uint64() uint64 { return b.v.Uint64() }

// String renders the decimal value.
func (b Balance) String() string { return b.v.Dec() }

// MarshalJSON renders the balance as a decimal-string JSON value, avoiding
// precision loss in JSON's float64 number type for values beyond 2^53.
func (b Balance) MarshalJSON() ([]byte, error) { return []byte(`"` + b.v.Dec() + `"`), nil }

// UnmarshalJSON parses a decimal-string JSON value.
func (b *Balance) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("units: invalid Balance literal %q", data)
	}
	v, overflow := uint256.FromBig(i)
	if overflow {
		return fmt.Errorf("units: Balance literal %q exceeds 256 bits", data)
	}
	b.v = *v
	return nil
}

// Add returns i+other. See Balance.Add for overflow behavior.
func (i Index) Add(other Index) Index {
	var out uint256.Int
	out.Add(&i.v, &other.v)
	checkU128(&out, "Index.Add")
	return Index{v: out}
}

// Sub returns i-other. Panics on underflow.
func (i Index) Sub(other Index) Index {
	if i.v.Lt(&other.v) {
		panic("units: Index.Sub underflow")
	}
	var out uint256.Int
	out.Sub(&i.v, &other.v)
	return Index{v: out}
}

// Cmp compares i to other.
func (i Index) Cmp(other Index) int { return i.v.Cmp(&other.v) }

// IsZero reports whether i is zero.
func (i Index) IsZero() bool { return i.v.IsZero() }

// Uint64 truncates to uint64; see Balance.Uint64.
func (i Index) Uint64() uint64 { return i.v.Uint64() }

// String renders the decimal value.
func (i Index) String() string { return i.v.Dec() }

// BalanceToIndex reinterprets a Balance's magnitude as an Index; the two
// types share the same 128-bit width so this is an exact, lossless
// conversion, used only at ledger bootstrap when shares are first minted
// 1:1 with deposited cycles.
func BalanceToIndex(b Balance) Index { return Index{v: b.v} }

// MulDivFloor computes floor(a*b/d) without intermediate overflow, using
// uint256's 512-bit-internal MulDivOverflow. d must be nonzero.
func MulDivFloor(a Balance, b Index, d Balance) Index {
	if d.v.IsZero() {
		panic("units: MulDivFloor division by zero")
	}
	out, overflow := new(uint256.Int).MulDivOverflow(&a.v, &b.v, &d.v)
	if overflow {
		panic("units: MulDivFloor overflowed 256 bits")
	}
	return Index{v: *out}
}

// MulDivFloorBalance computes floor(a*b/d) and returns it as a Balance,
// used by balance_of/withdrawable_of: share * totalSupply / index.
func MulDivFloorBalance(a Index, b Balance, d Index) Balance {
	if d.v.IsZero() {
		return ZeroBalance()
	}
	out, overflow := new(uint256.Int).MulDivOverflow(&a.v, &b.v, &d.v)
	if overflow {
		panic("units: MulDivFloorBalance overflowed 256 bits")
	}
	return Balance{v: *out}
}
