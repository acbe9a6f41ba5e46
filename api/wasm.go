// Package api includes constants and interfaces shared between the decoder,
// instantiator, interpreter and their host-function callers.
package api

import "fmt"

// ExternType classifies imports and exports with their respective types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ExternTypeName returns the Text Format field name of the given type.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return fmt.Sprintf("%#x", et)
}

// ValueType describes the binary-format type tag of a declared parameter,
// result, local or global. This is distinct from the runtime-tagged Value
// the interpreter pushes on the operand stack (see wasmcore.Value): a
// ValueType says "this slot holds an i32"; a Value says "this i32 is to be
// read as signed" or "as unsigned" for the purposes of a polymorphic
// opcode such as i32.lt_s vs i32.lt_u.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeV128      ValueType = 0x7b
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the Text Format name of the given ValueType, or
// "unknown" if t is not a defined value type.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	}
	return "unknown"
}

// RefType is the subset of ValueType that identifies a reference type,
// used by Table element kinds (spec.md §3 Table.ref_kind).
type RefType = ValueType

const (
	RefTypeFuncRef   RefType = ValueTypeFuncref
	RefTypeExternRef RefType = ValueTypeExternref
)
