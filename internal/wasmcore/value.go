// Package wasmcore holds the decode-time module representation, the
// instantiated-module state, and the instantiator that links the two
// (components C5 and C6 of the design; see SPEC_FULL.md §2).
package wasmcore

import (
	"fmt"
	"math"
)

// ValueKind tags a Value with the numeric domain an operator should use to
// interpret it. Wasm's i32/i64 are bit-width types in the binary format,
// but many operators (lt_s vs lt_u, div_s vs div_u, shr_s vs shr_u) are
// polymorphic on signedness; spec.md §3 requires the stack to carry that
// distinction directly rather than re-deriving it from the opcode alone.
type ValueKind byte

const (
	// KindNOP is the zero value, used for uninitialized stack slots.
	KindNOP ValueKind = iota
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindV128
	// KindRef carries a function or extern reference (a function index, or
	// an opaque host pointer represented as a uintptr).
	KindRef
)

func (k ValueKind) String() string {
	switch k {
	case KindNOP:
		return "nop"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindV128:
		return "v128"
	case KindRef:
		return "ref"
	}
	return "unknown"
}

// Value is a tagged numeric value as it lives on the interpreter's operand
// stack and in globals. It is a value type (no pointers, no interface) so
// pushing/popping it never allocates.
//
// V128 values spend both halves of the 128 bits across lo/hi; every other
// kind uses only lo (f32/f64 store their IEEE-754 bit pattern in lo).
type Value struct {
	Kind   ValueKind
	lo, hi uint64
}

func NopValue() Value { return Value{Kind: KindNOP} }

func I32Value(v int32) Value  { return Value{Kind: KindI32, lo: uint64(uint32(v))} }
func U32Value(v uint32) Value { return Value{Kind: KindU32, lo: uint64(v)} }
func I64Value(v int64) Value  { return Value{Kind: KindI64, lo: uint64(v)} }
func U64Value(v uint64) Value { return Value{Kind: KindU64, lo: v} }
func BoolValue(v bool) Value {
	if v {
		return I32Value(1)
	}
	return I32Value(0)
}
func RefValue(v uint64) Value { return Value{Kind: KindRef, lo: v} }
func NullRefValue() Value     { return Value{Kind: KindRef, lo: ^uint64(0)} }

func F32Value(v float32) Value {
	return Value{Kind: KindF32, lo: uint64(math.Float32bits(v))}
}
func F64Value(v float64) Value {
	return Value{Kind: KindF64, lo: math.Float64bits(v)}
}
func V128Value(lo, hi uint64) Value { return Value{Kind: KindV128, lo: lo, hi: hi} }

func (v Value) I32() int32   { return int32(uint32(v.lo)) }
func (v Value) U32() uint32  { return uint32(v.lo) }
func (v Value) I64() int64   { return int64(v.lo) }
func (v Value) U64() uint64  { return v.lo }
func (v Value) Bits() uint64 { return v.lo }
func (v Value) IsZero() bool { return v.lo == 0 && v.hi == 0 }
func (v Value) Ref() uint64  { return v.lo }
func (v Value) IsNullRef() bool {
	return v.Kind == KindRef && v.lo == ^uint64(0)
}
func (v Value) V128() (lo, hi uint64) { return v.lo, v.hi }

func (v Value) F32() float32 { return math.Float32frombits(uint32(v.lo)) }
func (v Value) F64() float64 { return math.Float64frombits(v.lo) }

func (v Value) String() string {
	switch v.Kind {
	case KindNOP:
		return "<nop>"
	case KindI32:
		return fmt.Sprintf("i32:%d", v.I32())
	case KindU32:
		return fmt.Sprintf("u32:%d", v.U32())
	case KindI64:
		return fmt.Sprintf("i64:%d", v.I64())
	case KindU64:
		return fmt.Sprintf("u64:%d", v.U64())
	case KindF32:
		return fmt.Sprintf("f32:%v", v.F32())
	case KindF64:
		return fmt.Sprintf("f64:%v", v.F64())
	case KindV128:
		return fmt.Sprintf("v128:%016x%016x", v.hi, v.lo)
	case KindRef:
		return fmt.Sprintf("ref:%#x", v.lo)
	}
	return "<?>"
}

// Equal compares two Values. Per spec.md §3, equality is only defined
// between same-tag values; cross-kind comparisons (e.g. I32 vs U32) are
// considered unequal even when their bit patterns match, since the caller
// asked a type-specific question.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	return v.lo == other.lo && v.hi == other.hi
}
