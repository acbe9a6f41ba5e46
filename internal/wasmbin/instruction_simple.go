package wasmbin

import (
	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// decodeSimple decodes every non-control-flow opcode (b already consumed)
// and appends the result to mod.Instructions. Reserved ranges fail
// BAD_OPCODE at decode time (Open Question 2's chosen resolution).
func decodeSimple(c *Cursor, mod *wasmcore.Module, b byte) error {
	if isReserved(b) {
		return newErr(c, ErrBadOpcode, "reserved opcode")
	}

	push := func(i wasmcore.Instruction) error {
		mod.Instructions = append(mod.Instructions, i)
		return nil
	}
	numeric := func(sub wasmcore.Sub) error { return push(wasmcore.Instruction{Op: wasmcore.OpNumeric, Sub: sub}) }
	load := func(sub wasmcore.Sub) error {
		m, err := decodeMemArg(c)
		if err != nil {
			return err
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMemoryLoad, Sub: sub, Mem: m})
	}
	store := func(sub wasmcore.Sub) error {
		m, err := decodeMemArg(c)
		if err != nil {
			return err
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMemoryStore, Sub: sub, Mem: m})
	}
	idx := func(op wasmcore.Opcode) error {
		v, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: op, Index: v})
	}

	switch b {
	case wasmOpUnreachable:
		return push(wasmcore.Instruction{Op: wasmcore.OpUnreachable})
	case wasmOpNop:
		return push(wasmcore.Instruction{Op: wasmcore.OpNop})
	case wasmOpReturn:
		return push(wasmcore.Instruction{Op: wasmcore.OpReturn})
	case wasmOpCall:
		v, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpCall, FuncIndex: v})
	case wasmOpCallIndirect:
		typeIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		tableIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpCallIndirect, TypeIndex: typeIdx, TableIndex: tableIdx})

	case wasmOpDrop:
		return push(wasmcore.Instruction{Op: wasmcore.OpDrop})
	case wasmOpSelect:
		return push(wasmcore.Instruction{Op: wasmcore.OpSelect})
	case wasmOpSelectTyped:
		n, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		if _, err := c.ReadBytes(int(n)); err != nil { // value-type vector, ignored beyond count validation
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpSelectTyped})

	case wasmOpLocalGet:
		return idx(wasmcore.OpLocalGet)
	case wasmOpLocalSet:
		return idx(wasmcore.OpLocalSet)
	case wasmOpLocalTee:
		return idx(wasmcore.OpLocalTee)
	case wasmOpGlobalGet:
		return idx(wasmcore.OpGlobalGet)
	case wasmOpGlobalSet:
		return idx(wasmcore.OpGlobalSet)
	case wasmOpTableGet:
		return idx(wasmcore.OpTableGet)
	case wasmOpTableSet:
		return idx(wasmcore.OpTableSet)

	case wasmOpI32Load:
		return load(wasmcore.SubI32)
	case wasmOpI64Load:
		return load(wasmcore.SubI64)
	case wasmOpF32Load:
		return load(wasmcore.SubF32)
	case wasmOpF64Load:
		return load(wasmcore.SubF64)
	case wasmOpI32Load8S:
		return load(wasmcore.SubI32Load8S)
	case wasmOpI32Load8U:
		return load(wasmcore.SubI32Load8U)
	case wasmOpI32Load16S:
		return load(wasmcore.SubI32Load16S)
	case wasmOpI32Load16U:
		return load(wasmcore.SubI32Load16U)
	case wasmOpI64Load8S:
		return load(wasmcore.SubI64Load8S)
	case wasmOpI64Load8U:
		return load(wasmcore.SubI64Load8U)
	case wasmOpI64Load16S:
		return load(wasmcore.SubI64Load16S)
	case wasmOpI64Load16U:
		return load(wasmcore.SubI64Load16U)
	case wasmOpI64Load32S:
		return load(wasmcore.SubI64Load32S)
	case wasmOpI64Load32U:
		return load(wasmcore.SubI64Load32U)
	case wasmOpI32Store:
		return store(wasmcore.SubI32)
	case wasmOpI64Store:
		return store(wasmcore.SubI64)
	case wasmOpF32Store:
		return store(wasmcore.SubF32)
	case wasmOpF64Store:
		return store(wasmcore.SubF64)
	case wasmOpI32Store8:
		return store(wasmcore.SubI32Store8)
	case wasmOpI32Store16:
		return store(wasmcore.SubI32Store16)
	case wasmOpI64Store8:
		return store(wasmcore.SubI64Store8)
	case wasmOpI64Store16:
		return store(wasmcore.SubI64Store16)
	case wasmOpI64Store32:
		return store(wasmcore.SubI64Store32)
	case wasmOpMemorySize:
		if _, err := c.ReadByte(); err != nil { // reserved zero byte
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMemorySize})
	case wasmOpMemoryGrow:
		if _, err := c.ReadByte(); err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMemoryGrow})

	case wasmOpI32Const:
		v, err := c.ReadI32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpConstI32, I32: v})
	case wasmOpI64Const:
		v, err := c.ReadI64()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpConstI64, I64: v})
	case wasmOpF32Const:
		v, err := c.ReadF32Bits()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpConstF32, F32: v})
	case wasmOpF64Const:
		v, err := c.ReadF64Bits()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpConstF64, F64: v})

	case wasmOpI32Eqz:
		return numeric(wasmcore.SubEqz)
	case wasmOpI32Eq, wasmOpI64Eq:
		return numeric(wasmcore.SubEq)
	case wasmOpI32Ne, wasmOpI64Ne:
		return numeric(wasmcore.SubNe)
	case wasmOpI32LtS, wasmOpI64LtS:
		return numeric(wasmcore.SubLtS)
	case wasmOpI32LtU, wasmOpI64LtU:
		return numeric(wasmcore.SubLtU)
	case wasmOpI32GtS, wasmOpI64GtS:
		return numeric(wasmcore.SubGtS)
	case wasmOpI32GtU, wasmOpI64GtU:
		return numeric(wasmcore.SubGtU)
	case wasmOpI32LeS, wasmOpI64LeS:
		return numeric(wasmcore.SubLeS)
	case wasmOpI32LeU, wasmOpI64LeU:
		return numeric(wasmcore.SubLeU)
	case wasmOpI32GeS, wasmOpI64GeS:
		return numeric(wasmcore.SubGeS)
	case wasmOpI32GeU, wasmOpI64GeU:
		return numeric(wasmcore.SubGeU)
	case wasmOpI64Eqz:
		return numeric(wasmcore.SubEqz)

	case wasmOpF32Eq, wasmOpF64Eq:
		return numeric(wasmcore.SubFloatEq)
	case wasmOpF32Ne, wasmOpF64Ne:
		return numeric(wasmcore.SubFloatNe)
	case wasmOpF32Lt, wasmOpF64Lt:
		return numeric(wasmcore.SubFloatLt)
	case wasmOpF32Gt, wasmOpF64Gt:
		return numeric(wasmcore.SubFloatGt)
	case wasmOpF32Le, wasmOpF64Le:
		return numeric(wasmcore.SubFloatLe)
	case wasmOpF32Ge, wasmOpF64Ge:
		return numeric(wasmcore.SubFloatGe)

	case wasmOpI32Clz, wasmOpI64Clz:
		return numeric(wasmcore.SubClz)
	case wasmOpI32Ctz, wasmOpI64Ctz:
		return numeric(wasmcore.SubCtz)
	case wasmOpI32Popcnt, wasmOpI64Popcnt:
		return numeric(wasmcore.SubPopcnt)
	case wasmOpI32Add, wasmOpI64Add:
		return numeric(wasmcore.SubAdd)
	case wasmOpI32Sub, wasmOpI64Sub:
		return numeric(wasmcore.SubSub)
	case wasmOpI32Mul, wasmOpI64Mul:
		return numeric(wasmcore.SubMul)
	case wasmOpI32DivS, wasmOpI64DivS:
		return numeric(wasmcore.SubDivS)
	case wasmOpI32DivU, wasmOpI64DivU:
		return numeric(wasmcore.SubDivU)
	case wasmOpI32RemS, wasmOpI64RemS:
		return numeric(wasmcore.SubRemS)
	case wasmOpI32RemU, wasmOpI64RemU:
		return numeric(wasmcore.SubRemU)
	case wasmOpI32And, wasmOpI64And:
		return numeric(wasmcore.SubAnd)
	case wasmOpI32Or, wasmOpI64Or:
		return numeric(wasmcore.SubOr)
	case wasmOpI32Xor, wasmOpI64Xor:
		return numeric(wasmcore.SubXor)
	case wasmOpI32Shl, wasmOpI64Shl:
		return numeric(wasmcore.SubShl)
	case wasmOpI32ShrS, wasmOpI64ShrS:
		return numeric(wasmcore.SubShrS)
	case wasmOpI32ShrU, wasmOpI64ShrU:
		return numeric(wasmcore.SubShrU)
	case wasmOpI32Rotl, wasmOpI64Rotl:
		return numeric(wasmcore.SubRotl)
	case wasmOpI32Rotr, wasmOpI64Rotr:
		return numeric(wasmcore.SubRotr)

	case wasmOpF32Abs, wasmOpF64Abs:
		return numeric(wasmcore.SubFloatAbs)
	case wasmOpF32Neg, wasmOpF64Neg:
		return numeric(wasmcore.SubFloatNeg)
	case wasmOpF32Ceil, wasmOpF64Ceil:
		return numeric(wasmcore.SubFloatCeil)
	case wasmOpF32Floor, wasmOpF64Floor:
		return numeric(wasmcore.SubFloatFloor)
	case wasmOpF32Trunc, wasmOpF64Trunc:
		return numeric(wasmcore.SubFloatTrunc)
	case wasmOpF32Nearest, wasmOpF64Nearest:
		return numeric(wasmcore.SubFloatNearest)
	case wasmOpF32Sqrt, wasmOpF64Sqrt:
		return numeric(wasmcore.SubFloatSqrt)
	case wasmOpF32Add, wasmOpF64Add:
		return numeric(wasmcore.SubFloatAdd)
	case wasmOpF32Sub, wasmOpF64Sub:
		return numeric(wasmcore.SubFloatSub)
	case wasmOpF32Mul, wasmOpF64Mul:
		return numeric(wasmcore.SubFloatMul)
	case wasmOpF32Div, wasmOpF64Div:
		return numeric(wasmcore.SubFloatDiv)
	case wasmOpF32Min, wasmOpF64Min:
		return numeric(wasmcore.SubFloatMin)
	case wasmOpF32Max, wasmOpF64Max:
		return numeric(wasmcore.SubFloatMax)
	case wasmOpF32Copysign, wasmOpF64Copysign:
		return numeric(wasmcore.SubFloatCopysign)

	case wasmOpI32WrapI64:
		return numeric(wasmcore.SubWrapI64)
	case wasmOpI32TruncF32S, wasmOpI32TruncF64S:
		return numeric(wasmcore.SubTruncToI32S)
	case wasmOpI32TruncF32U, wasmOpI32TruncF64U:
		return numeric(wasmcore.SubTruncToI32U)
	case wasmOpI64ExtendI32S:
		return numeric(wasmcore.SubExtendI32S)
	case wasmOpI64ExtendI32U:
		return numeric(wasmcore.SubExtendI32U)
	case wasmOpI64TruncF32S, wasmOpI64TruncF64S:
		return numeric(wasmcore.SubTruncToI64S)
	case wasmOpI64TruncF32U, wasmOpI64TruncF64U:
		return numeric(wasmcore.SubTruncToI64U)
	case wasmOpF32ConvertI32S, wasmOpF32ConvertI64S:
		return numeric(wasmcore.SubConvertToF32S)
	case wasmOpF32ConvertI32U, wasmOpF32ConvertI64U:
		return numeric(wasmcore.SubConvertToF32U)
	case wasmOpF64ConvertI32S, wasmOpF64ConvertI64S:
		return numeric(wasmcore.SubConvertToF64S)
	case wasmOpF64ConvertI32U, wasmOpF64ConvertI64U:
		return numeric(wasmcore.SubConvertToF64U)
	case wasmOpF32DemoteF64:
		return numeric(wasmcore.SubDemoteF64)
	case wasmOpF64PromoteF32:
		return numeric(wasmcore.SubPromoteF32)
	case wasmOpI32ReinterpretF32, wasmOpI64ReinterpretF64, wasmOpF32ReinterpretI32, wasmOpF64ReinterpretI64:
		return numeric(wasmcore.SubReinterpret)
	case wasmOpI32Extend8S, wasmOpI64Extend8S:
		return numeric(wasmcore.SubExtend8S)
	case wasmOpI32Extend16S, wasmOpI64Extend16S:
		return numeric(wasmcore.SubExtend16S)
	case wasmOpI64Extend32S:
		return numeric(wasmcore.SubExtend32S)

	case wasmOpRefNull:
		rk, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpRefNull, RefKind: rk})
	case wasmOpRefIsNull:
		return push(wasmcore.Instruction{Op: wasmcore.OpRefIsNull})
	case wasmOpRefFunc:
		v, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpRefFunc, FuncIndex: v})

	case wasmOpMiscPrefix:
		return decodeMisc(c, mod)
	case wasmOpSIMDPrefix:
		return decodeSIMD(c, mod)
	}

	return newErr(c, ErrBadOpcode, "unknown opcode")
}

func decodeMisc(c *Cursor, mod *wasmcore.Module) error {
	sub, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	push := func(i wasmcore.Instruction) error {
		mod.Instructions = append(mod.Instructions, i)
		return nil
	}
	switch byte(sub) {
	case miscI32TruncSatF32S, miscI32TruncSatF64S:
		return push(wasmcore.Instruction{Op: wasmcore.OpNumeric, Sub: wasmcore.SubTruncSatToI32S})
	case miscI32TruncSatF32U, miscI32TruncSatF64U:
		return push(wasmcore.Instruction{Op: wasmcore.OpNumeric, Sub: wasmcore.SubTruncSatToI32U})
	case miscI64TruncSatF32S, miscI64TruncSatF64S:
		return push(wasmcore.Instruction{Op: wasmcore.OpNumeric, Sub: wasmcore.SubTruncSatToI64S})
	case miscI64TruncSatF32U, miscI64TruncSatF64U:
		return push(wasmcore.Instruction{Op: wasmcore.OpNumeric, Sub: wasmcore.SubTruncSatToI64U})
	case miscMemoryInit:
		dataIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		if _, err := c.ReadByte(); err != nil { // reserved memidx byte
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubMemoryInit, MiscIndex: dataIdx})
	case miscDataDrop:
		dataIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubDataDrop, MiscIndex: dataIdx})
	case miscMemoryCopy:
		if _, err := c.ReadByte(); err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		if _, err := c.ReadByte(); err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubMemoryCopy})
	case miscMemoryFill:
		if _, err := c.ReadByte(); err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubMemoryFill})
	case miscTableInit:
		elemIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		tableIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubTableInit, MiscIndex: elemIdx, MiscIndex2: tableIdx})
	case miscElemDrop:
		elemIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubElemDrop, MiscIndex: elemIdx})
	case miscTableCopy:
		dstIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		srcIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubTableCopy, MiscIndex: dstIdx, MiscIndex2: srcIdx})
	case miscTableGrow:
		tableIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubTableGrow, MiscIndex: tableIdx})
	case miscTableSize:
		tableIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubTableSize, MiscIndex: tableIdx})
	case miscTableFill:
		tableIdx, err := c.ReadU32()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		return push(wasmcore.Instruction{Op: wasmcore.OpMisc, Sub: wasmcore.SubTableFill, MiscIndex: tableIdx})
	}
	return newErr(c, ErrBadOpcode, "unknown 0xFC sub-opcode")
}

// decodeSIMD decodes the 0xFD-prefixed vector opcode set. Per spec.md §1
// execution of SIMD lanes is a non-goal; decoding records the sub-opcode,
// the memarg of loads/stores and the lane-index byte of lane ops, and
// consumes the 16-byte immediate of v128.const/shuffle without keeping its
// bytes (v128.const stores only the length, 16, in MiscIndex), so the
// cursor stays byte-accurate even for modules this interpreter will trap
// UNIMPLEMENTED on executing.
func decodeSIMD(c *Cursor, mod *wasmcore.Module) error {
	sub, err := c.ReadU32()
	if err != nil {
		return wrapErr(c, ErrTruncated, err)
	}
	instr := wasmcore.Instruction{Op: wasmcore.OpSIMD, RawSub: sub}
	switch {
	case sub <= 11: // v128.load* / v128.store variants, all memarg-shaped
		m, err := decodeMemArg(c)
		if err != nil {
			return err
		}
		instr.Mem = m
	case sub == 12: // v128.const
		b, err := c.ReadBytes(16)
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		instr.MiscIndex = uint32(len(b))
	case sub == 13: // i8x16.shuffle
		if _, err := c.ReadBytes(16); err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
	case sub >= 21 && sub <= 34: // extract_lane / replace_lane
		lane, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		instr.MiscIndex = uint32(lane)
	case sub >= 84 && sub <= 91: // load_lane / store_lane
		m, err := decodeMemArg(c)
		if err != nil {
			return err
		}
		lane, err := c.ReadByte()
		if err != nil {
			return wrapErr(c, ErrTruncated, err)
		}
		instr.Mem = m
		instr.MiscIndex = uint32(lane)
	case sub == 92 || sub == 93: // v128.load32_zero / v128.load64_zero
		m, err := decodeMemArg(c)
		if err != nil {
			return err
		}
		instr.Mem = m
	default:
		// Remaining opcodes (splats, arithmetic, comparisons, bitmask,
		// reductions) carry no additional immediate.
	}
	mod.Instructions = append(mod.Instructions, instr)
	return nil
}
