package wasmcore

// Opcode tags every variant of the flat Instruction array. Control-flow
// variants carry pre-resolved target program counters (spec.md §3); this
// is the single dispatch tag the interpreter switches on.
type Opcode uint16

const (
	OpUnreachable Opcode = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpCall
	OpCallIndirect

	OpDrop
	OpSelect
	OpSelectTyped

	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet

	OpTableGet
	OpTableSet

	OpMemoryLoad  // sub carries the exact width/signedness variant
	OpMemoryStore // sub carries the exact width variant
	OpMemorySize
	OpMemoryGrow

	OpConstI32
	OpConstI64
	OpConstF32
	OpConstF64

	OpNumeric // sub carries the exact numeric opcode (add/sub/.../convert)

	OpRefNull
	OpRefIsNull
	OpRefFunc

	// OpMisc covers the 0xFC-prefixed bulk-memory and table ops; sub
	// carries the extension sub-opcode. The 0xFC saturating truncations
	// decode to OpNumeric instead.
	OpMisc
	// OpSIMD covers the 0xFD-prefixed vector opcodes. Decoding records the
	// sub-opcode, memarg and lane-index immediates; the 16-byte immediates
	// of v128.const and i8x16.shuffle are consumed but not kept. Execution
	// is a declared non-goal
	// (spec.md §1) and traps UNIMPLEMENTED if reached.
	OpSIMD

	// OpReserved marks a byte in a reserved range; a module is rejected at
	// decode time before this variant could ever reach the interpreter.
	OpReserved
)

// Sub enumerates the width/signedness/numeric-kind variants multiplexed
// under OpMemoryLoad, OpMemoryStore and OpNumeric, keeping the top-level
// Opcode switch small the way the teacher's interpreter dispatch does.
type Sub uint16

const (
	// Memory load/store widths.
	SubI32 Sub = iota
	SubI64
	SubF32
	SubF64
	SubI32Load8S
	SubI32Load8U
	SubI32Load16S
	SubI32Load16U
	SubI64Load8S
	SubI64Load8U
	SubI64Load16S
	SubI64Load16U
	SubI64Load32S
	SubI64Load32U
	SubI32Store8
	SubI32Store16
	SubI64Store8
	SubI64Store16
	SubI64Store32

	// Numeric ops (a representative, spec-complete set; unary/binary
	// arity is implied by the opcode, not encoded separately).
	SubEqz
	SubEq
	SubNe
	SubLtS
	SubLtU
	SubGtS
	SubGtU
	SubLeS
	SubLeU
	SubGeS
	SubGeU
	SubFloatEq
	SubFloatNe
	SubFloatLt
	SubFloatGt
	SubFloatLe
	SubFloatGe
	SubClz
	SubCtz
	SubPopcnt
	SubAdd
	SubSub
	SubMul
	SubDivS
	SubDivU
	SubRemS
	SubRemU
	SubAnd
	SubOr
	SubXor
	SubShl
	SubShrS
	SubShrU
	SubRotl
	SubRotr
	SubFloatAbs
	SubFloatNeg
	SubFloatCeil
	SubFloatFloor
	SubFloatTrunc
	SubFloatNearest
	SubFloatSqrt
	SubFloatAdd
	SubFloatSub
	SubFloatMul
	SubFloatDiv
	SubFloatMin
	SubFloatMax
	SubFloatCopysign
	SubWrapI64
	SubExtendI32S
	SubExtendI32U
	// SubTruncToI32S/U and SubTruncToI64S/U convert a popped F32 or F64
	// (the source width is already known from the popped Value's Kind) to
	// the named signed/unsigned destination integer width, trapping
	// INT_OVERFLOW on a value outside the destination's range.
	SubTruncToI32S
	SubTruncToI32U
	SubTruncToI64S
	SubTruncToI64U
	// SubConvertToF32S/U and SubConvertToF64S/U convert a popped I32 or I64
	// (the source width is already known from the popped Value's Kind) to
	// the named float width, reading the popped bits as signed or unsigned
	// per the S/U suffix. Unlike trunc, signedness here is not recoverable
	// from the operand at all — it is purely the operator's choice — so it
	// must stay encoded in Sub rather than collapsed away.
	SubConvertToF32S
	SubConvertToF32U
	SubConvertToF64S
	SubConvertToF64U
	SubDemoteF64
	SubPromoteF32
	SubReinterpret
	SubExtend8S
	SubExtend16S
	SubExtend32S

	// 0xFC extension sub-opcodes: saturating variants of the above, which
	// clamp to the destination range instead of trapping.
	SubTruncSatToI32S
	SubTruncSatToI32U
	SubTruncSatToI64S
	SubTruncSatToI64U
	SubMemoryInit
	SubDataDrop
	SubMemoryCopy
	SubMemoryFill
	SubTableInit
	SubElemDrop
	SubTableCopy
	SubTableGrow
	SubTableSize
	SubTableFill
)

// MemArg is the (align, offset) immediate pair carried by every memory
// load/store instruction.
type MemArg struct {
	Align  uint32
	Offset uint32
}

// BrTableEntry is one (label, target_pc) pair in a br_table's jump vector.
type BrTableEntry struct {
	Label  uint32
	Target uint32
}

// Instruction is one entry in a Module's flat, shared instruction array.
// Only the fields relevant to Op are populated; the rest are zero.
type Instruction struct {
	Op  Opcode
	Sub Sub

	// Control-flow: resolved target(s), computed once at decode time
	// (spec.md §3/§4.4 — no runtime label search).
	Loc    Location
	Target uint32         // Br/BrIf single target
	Label  uint32         // Br/BrIf/BrTable relative label, kept for inspection
	Table  []BrTableEntry // BrTable jump vector
	Default BrTableEntry  // BrTable default arm

	// Block type: either a value-type result (ResultType != 0 and
	// TypeIndex == ^uint32(0)), a void block (both zero/sentinel), or a
	// multi-value function type index (TypeIndex valid).
	ResultType byte
	TypeIndex  uint32

	// Call / call_indirect.
	FuncIndex  uint32
	TableIndex uint32

	// local/global/table index ops.
	Index uint32

	// Memory ops.
	Mem MemArg

	// Constants.
	I32 int32
	I64 int64
	F32 uint32 // IEEE-754 bit pattern
	F64 uint64 // IEEE-754 bit pattern

	// Reference ops.
	RefKind byte

	// 0xFC/0xFD extension payload.
	MiscIndex uint32 // e.g. data/elem segment index, or dst/src mem/table index
	MiscIndex2 uint32
	RawSub    uint32 // verbatim sub-opcode byte for OpSIMD (decode-only)
}

// NoTypeIndex marks Instruction.TypeIndex as unused (a void or single-value
// block type rather than a multi-value function type).
const NoTypeIndex = ^uint32(0)
