package interpreter

import (
	"math"
	"math/bits"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// execNumeric dispatches the OpNumeric family: every arithmetic,
// comparison, bitwise and conversion operator, keyed by Sub. Operand
// widths come from the popped Values' Kind; signedness that isn't
// recoverable from Kind (div_s/u, convert_s/u, ...) stays on Sub, per the
// reasoning in wasmcore.Sub's doc comments.
func (ce *callEngine) execNumeric(sub wasmcore.Sub) {
	switch sub {
	// --- integer unary ---
	case wasmcore.SubEqz:
		v := ce.pop()
		if v.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.BoolValue(v.I64() == 0))
		} else {
			ce.push(wasmcore.BoolValue(v.I32() == 0))
		}
	case wasmcore.SubClz:
		v := ce.pop()
		if v.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(int64(bits.LeadingZeros64(v.U64()))))
		} else {
			ce.push(wasmcore.I32Value(int32(bits.LeadingZeros32(v.U32()))))
		}
	case wasmcore.SubCtz:
		v := ce.pop()
		if v.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(int64(bits.TrailingZeros64(v.U64()))))
		} else {
			ce.push(wasmcore.I32Value(int32(bits.TrailingZeros32(v.U32()))))
		}
	case wasmcore.SubPopcnt:
		v := ce.pop()
		if v.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(int64(bits.OnesCount64(v.U64()))))
		} else {
			ce.push(wasmcore.I32Value(int32(bits.OnesCount32(v.U32()))))
		}

	// --- integer binary: comparisons ---
	case wasmcore.SubEq:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(sameWidthBits(a) == sameWidthBits(b)))
	case wasmcore.SubNe:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(sameWidthBits(a) != sameWidthBits(b)))
	case wasmcore.SubLtS:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(signedCmp(a, b, func(x, y int64) bool { return x < y })))
	case wasmcore.SubLtU:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(sameWidthBits(a) < sameWidthBits(b)))
	case wasmcore.SubGtS:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(signedCmp(a, b, func(x, y int64) bool { return x > y })))
	case wasmcore.SubGtU:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(sameWidthBits(a) > sameWidthBits(b)))
	case wasmcore.SubLeS:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(signedCmp(a, b, func(x, y int64) bool { return x <= y })))
	case wasmcore.SubLeU:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(sameWidthBits(a) <= sameWidthBits(b)))
	case wasmcore.SubGeS:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(signedCmp(a, b, func(x, y int64) bool { return x >= y })))
	case wasmcore.SubGeU:
		b, a := ce.pop(), ce.pop()
		ce.push(wasmcore.BoolValue(sameWidthBits(a) >= sameWidthBits(b)))

	// --- integer binary: arithmetic ---
	case wasmcore.SubAdd:
		b, a := ce.pop(), ce.pop()
		ce.pushIntResult(a, sameWidthBits(a)+sameWidthBits(b))
	case wasmcore.SubSub:
		b, a := ce.pop(), ce.pop()
		ce.pushIntResult(a, sameWidthBits(a)-sameWidthBits(b))
	case wasmcore.SubMul:
		b, a := ce.pop(), ce.pop()
		ce.pushIntResult(a, sameWidthBits(a)*sameWidthBits(b))
	case wasmcore.SubDivS:
		ce.execDivS()
	case wasmcore.SubDivU:
		ce.execDivU()
	case wasmcore.SubRemS:
		ce.execRemS()
	case wasmcore.SubRemU:
		ce.execRemU()
	case wasmcore.SubAnd:
		b, a := ce.pop(), ce.pop()
		ce.pushIntResult(a, sameWidthBits(a)&sameWidthBits(b))
	case wasmcore.SubOr:
		b, a := ce.pop(), ce.pop()
		ce.pushIntResult(a, sameWidthBits(a)|sameWidthBits(b))
	case wasmcore.SubXor:
		b, a := ce.pop(), ce.pop()
		ce.pushIntResult(a, sameWidthBits(a)^sameWidthBits(b))
	case wasmcore.SubShl:
		b, a := ce.pop(), ce.pop()
		if a.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(a.I64() << (b.U64() % 64)))
		} else {
			ce.push(wasmcore.I32Value(a.I32() << (b.U32() % 32)))
		}
	case wasmcore.SubShrS:
		b, a := ce.pop(), ce.pop()
		if a.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(a.I64() >> (b.U64() % 64)))
		} else {
			ce.push(wasmcore.I32Value(a.I32() >> (b.U32() % 32)))
		}
	case wasmcore.SubShrU:
		b, a := ce.pop(), ce.pop()
		if a.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(int64(a.U64() >> (b.U64() % 64))))
		} else {
			ce.push(wasmcore.I32Value(int32(a.U32() >> (b.U32() % 32))))
		}
	case wasmcore.SubRotl:
		b, a := ce.pop(), ce.pop()
		if a.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(int64(bits.RotateLeft64(a.U64(), int(b.U64()%64)))))
		} else {
			ce.push(wasmcore.I32Value(int32(bits.RotateLeft32(a.U32(), int(b.U32()%32)))))
		}
	case wasmcore.SubRotr:
		b, a := ce.pop(), ce.pop()
		if a.Kind == wasmcore.KindI64 {
			ce.push(wasmcore.I64Value(int64(bits.RotateLeft64(a.U64(), -int(b.U64()%64)))))
		} else {
			ce.push(wasmcore.I32Value(int32(bits.RotateLeft32(a.U32(), -int(b.U32()%32)))))
		}

	// --- float unary ---
	case wasmcore.SubFloatAbs:
		ce.unaryFloat(math.Abs, func(f float32) float32 { return float32(math.Abs(float64(f))) })
	case wasmcore.SubFloatNeg:
		ce.unaryFloat(func(f float64) float64 { return -f }, func(f float32) float32 { return -f })
	case wasmcore.SubFloatCeil:
		ce.unaryFloat(math.Ceil, func(f float32) float32 { return float32(math.Ceil(float64(f))) })
	case wasmcore.SubFloatFloor:
		ce.unaryFloat(math.Floor, func(f float32) float32 { return float32(math.Floor(float64(f))) })
	case wasmcore.SubFloatTrunc:
		ce.unaryFloat(math.Trunc, func(f float32) float32 { return float32(math.Trunc(float64(f))) })
	case wasmcore.SubFloatNearest:
		ce.unaryFloat(math.RoundToEven, func(f float32) float32 { return float32(math.RoundToEven(float64(f))) })
	case wasmcore.SubFloatSqrt:
		ce.unaryFloat(math.Sqrt, func(f float32) float32 { return float32(math.Sqrt(float64(f))) })

	// --- float binary ---
	case wasmcore.SubFloatEq:
		ce.floatCmp(func(x, y float64) bool { return x == y })
	case wasmcore.SubFloatNe:
		ce.floatCmp(func(x, y float64) bool { return x != y })
	case wasmcore.SubFloatLt:
		ce.floatCmp(func(x, y float64) bool { return x < y })
	case wasmcore.SubFloatGt:
		ce.floatCmp(func(x, y float64) bool { return x > y })
	case wasmcore.SubFloatLe:
		ce.floatCmp(func(x, y float64) bool { return x <= y })
	case wasmcore.SubFloatGe:
		ce.floatCmp(func(x, y float64) bool { return x >= y })
	case wasmcore.SubFloatAdd:
		ce.binaryFloat(func(x, y float64) float64 { return x + y })
	case wasmcore.SubFloatSub:
		ce.binaryFloat(func(x, y float64) float64 { return x - y })
	case wasmcore.SubFloatMul:
		ce.binaryFloat(func(x, y float64) float64 { return x * y })
	case wasmcore.SubFloatDiv:
		ce.binaryFloat(func(x, y float64) float64 { return x / y })
	case wasmcore.SubFloatMin:
		ce.binaryFloat(wasmMin)
	case wasmcore.SubFloatMax:
		ce.binaryFloat(wasmMax)
	case wasmcore.SubFloatCopysign:
		ce.binaryFloat(math.Copysign)

	// --- conversions ---
	case wasmcore.SubWrapI64:
		ce.push(wasmcore.I32Value(int32(ce.pop().I64())))
	case wasmcore.SubExtendI32S:
		ce.push(wasmcore.I64Value(int64(ce.pop().I32())))
	case wasmcore.SubExtendI32U:
		ce.push(wasmcore.I64Value(int64(uint64(ce.pop().U32()))))
	case wasmcore.SubExtend8S:
		ce.extendSub(8)
	case wasmcore.SubExtend16S:
		ce.extendSub(16)
	case wasmcore.SubExtend32S:
		ce.push(wasmcore.I64Value(int64(int32(ce.pop().I64()))))

	case wasmcore.SubTruncToI32S:
		ce.execTrunc(32, true, false)
	case wasmcore.SubTruncToI32U:
		ce.execTrunc(32, false, false)
	case wasmcore.SubTruncToI64S:
		ce.execTrunc(64, true, false)
	case wasmcore.SubTruncToI64U:
		ce.execTrunc(64, false, false)
	case wasmcore.SubTruncSatToI32S:
		ce.execTrunc(32, true, true)
	case wasmcore.SubTruncSatToI32U:
		ce.execTrunc(32, false, true)
	case wasmcore.SubTruncSatToI64S:
		ce.execTrunc(64, true, true)
	case wasmcore.SubTruncSatToI64U:
		ce.execTrunc(64, false, true)

	case wasmcore.SubConvertToF32S:
		ce.push(wasmcore.F32Value(float32(ce.popSignedAsI64())))
	case wasmcore.SubConvertToF32U:
		ce.push(wasmcore.F32Value(float32(ce.popUnsignedAsU64())))
	case wasmcore.SubConvertToF64S:
		ce.push(wasmcore.F64Value(float64(ce.popSignedAsI64())))
	case wasmcore.SubConvertToF64U:
		ce.push(wasmcore.F64Value(float64(ce.popUnsignedAsU64())))

	case wasmcore.SubDemoteF64:
		ce.push(wasmcore.F32Value(float32(ce.pop().F64())))
	case wasmcore.SubPromoteF32:
		ce.push(wasmcore.F64Value(float64(ce.pop().F32())))

	case wasmcore.SubReinterpret:
		ce.execReinterpret()

	default:
		ce.trap(TrapUnimplemented, "numeric sub-opcode %d has no execution semantics", sub)
	}
}

// sameWidthBits returns the raw integer bit pattern of v widened to 64
// bits, used for operations where sign doesn't matter (add/sub/mul/and/
// or/xor/eq/ne and the _u comparisons all behave identically on bit
// patterns regardless of width once compared at matching width).
func sameWidthBits(v wasmcore.Value) uint64 {
	if v.Kind == wasmcore.KindI64 {
		return v.U64()
	}
	return uint64(v.U32())
}

func signedCmp(a, b wasmcore.Value, cmp func(x, y int64) bool) bool {
	if a.Kind == wasmcore.KindI64 {
		return cmp(a.I64(), b.I64())
	}
	return cmp(int64(a.I32()), int64(b.I32()))
}

func (ce *callEngine) pushIntResult(like wasmcore.Value, bits uint64) {
	if like.Kind == wasmcore.KindI64 {
		ce.push(wasmcore.I64Value(int64(bits)))
	} else {
		ce.push(wasmcore.I32Value(int32(uint32(bits))))
	}
}

func (ce *callEngine) execDivS() {
	b, a := ce.pop(), ce.pop()
	if a.Kind == wasmcore.KindI64 {
		x, y := a.I64(), b.I64()
		if y == 0 {
			ce.trap(TrapDivZero, "i64.div_s by zero")
		}
		if x == math.MinInt64 && y == -1 {
			ce.trap(TrapIntOverflow, "i64.div_s overflow")
		}
		ce.push(wasmcore.I64Value(x / y))
	} else {
		x, y := a.I32(), b.I32()
		if y == 0 {
			ce.trap(TrapDivZero, "i32.div_s by zero")
		}
		if x == math.MinInt32 && y == -1 {
			ce.trap(TrapIntOverflow, "i32.div_s overflow")
		}
		ce.push(wasmcore.I32Value(x / y))
	}
}

func (ce *callEngine) execDivU() {
	b, a := ce.pop(), ce.pop()
	if a.Kind == wasmcore.KindI64 {
		if b.U64() == 0 {
			ce.trap(TrapDivZero, "i64.div_u by zero")
		}
		ce.push(wasmcore.I64Value(int64(a.U64() / b.U64())))
	} else {
		if b.U32() == 0 {
			ce.trap(TrapDivZero, "i32.div_u by zero")
		}
		ce.push(wasmcore.I32Value(int32(a.U32() / b.U32())))
	}
}

func (ce *callEngine) execRemS() {
	b, a := ce.pop(), ce.pop()
	if a.Kind == wasmcore.KindI64 {
		x, y := a.I64(), b.I64()
		if y == 0 {
			ce.trap(TrapDivZero, "i64.rem_s by zero")
		}
		if x == math.MinInt64 && y == -1 {
			ce.push(wasmcore.I64Value(0))
			return
		}
		ce.push(wasmcore.I64Value(x % y))
	} else {
		x, y := a.I32(), b.I32()
		if y == 0 {
			ce.trap(TrapDivZero, "i32.rem_s by zero")
		}
		if x == math.MinInt32 && y == -1 {
			ce.push(wasmcore.I32Value(0))
			return
		}
		ce.push(wasmcore.I32Value(x % y))
	}
}

func (ce *callEngine) execRemU() {
	b, a := ce.pop(), ce.pop()
	if a.Kind == wasmcore.KindI64 {
		if b.U64() == 0 {
			ce.trap(TrapDivZero, "i64.rem_u by zero")
		}
		ce.push(wasmcore.I64Value(int64(a.U64() % b.U64())))
	} else {
		if b.U32() == 0 {
			ce.trap(TrapDivZero, "i32.rem_u by zero")
		}
		ce.push(wasmcore.I32Value(int32(a.U32() % b.U32())))
	}
}

func (ce *callEngine) unaryFloat(f64fn func(float64) float64, f32fn func(float32) float32) {
	v := ce.pop()
	if v.Kind == wasmcore.KindF32 {
		ce.push(wasmcore.F32Value(f32fn(v.F32())))
	} else {
		ce.push(wasmcore.F64Value(f64fn(v.F64())))
	}
}

func (ce *callEngine) binaryFloat(f func(x, y float64) float64) {
	b, a := ce.pop(), ce.pop()
	if a.Kind == wasmcore.KindF32 {
		ce.push(wasmcore.F32Value(float32(f(float64(a.F32()), float64(b.F32())))))
	} else {
		ce.push(wasmcore.F64Value(f(a.F64(), b.F64())))
	}
}

// floatCmp implements the relational float ops, which must return false
// (never trap) whenever either operand is NaN.
func (ce *callEngine) floatCmp(cmp func(x, y float64) bool) {
	b, a := ce.pop(), ce.pop()
	var x, y float64
	if a.Kind == wasmcore.KindF32 {
		x, y = float64(a.F32()), float64(b.F32())
	} else {
		x, y = a.F64(), b.F64()
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		ce.push(wasmcore.BoolValue(false))
		return
	}
	ce.push(wasmcore.BoolValue(cmp(x, y)))
}

func wasmMin(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	return math.Min(x, y)
}

func wasmMax(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	return math.Max(x, y)
}

func (ce *callEngine) extendSub(width int) {
	v := ce.pop()
	if v.Kind == wasmcore.KindI64 {
		switch width {
		case 8:
			ce.push(wasmcore.I64Value(int64(int8(v.I64()))))
		case 16:
			ce.push(wasmcore.I64Value(int64(int16(v.I64()))))
		}
		return
	}
	switch width {
	case 8:
		ce.push(wasmcore.I32Value(int32(int8(v.I32()))))
	case 16:
		ce.push(wasmcore.I32Value(int32(int16(v.I32()))))
	}
}

func (ce *callEngine) popSignedAsI64() int64 {
	v := ce.pop()
	if v.Kind == wasmcore.KindI64 {
		return v.I64()
	}
	return int64(v.I32())
}

func (ce *callEngine) popUnsignedAsU64() uint64 {
	v := ce.pop()
	if v.Kind == wasmcore.KindI64 {
		return v.U64()
	}
	return uint64(v.U32())
}

// execTrunc converts a popped F32/F64 (source width recoverable from
// Kind) to a destWidth-bit integer, signed per wantSigned. sat clamps to
// range instead of trapping INT_OVERFLOW; a NaN operand traps INT_OVERFLOW
// when !sat and yields 0 when sat, per the respective
// non-saturating/saturating semantics.
func (ce *callEngine) execTrunc(destWidth int, wantSigned, sat bool) {
	v := ce.pop()
	var f float64
	if v.Kind == wasmcore.KindF32 {
		f = float64(v.F32())
	} else {
		f = v.F64()
	}

	if math.IsNaN(f) {
		if sat {
			pushTruncResult(ce, destWidth, wantSigned, 0)
			return
		}
		ce.trap(TrapIntOverflow, "trunc of NaN")
	}

	truncated := math.Trunc(f)

	lo, hi := truncRange(destWidth, wantSigned)
	if truncated < lo || truncated > hi {
		if !sat {
			ce.trap(TrapIntOverflow, "trunc result %v out of range for destination", truncated)
		}
		clamp := lo
		if truncated > hi {
			clamp = hi
		}
		if math.IsInf(truncated, 0) && truncated > 0 {
			clamp = hi
		} else if math.IsInf(truncated, 0) {
			clamp = lo
		}
		pushTruncClamped(ce, destWidth, wantSigned, clamp)
		return
	}
	pushTruncClamped(ce, destWidth, wantSigned, truncated)
}

func truncRange(destWidth int, signed bool) (lo, hi float64) {
	switch {
	case destWidth == 32 && signed:
		return math.MinInt32, math.MaxInt32
	case destWidth == 32 && !signed:
		return 0, math.MaxUint32
	case destWidth == 64 && signed:
		return math.MinInt64, math.MaxInt64
	default:
		return 0, math.MaxUint64
	}
}

func pushTruncResult(ce *callEngine, destWidth int, signed bool, v int64) {
	if destWidth == 32 {
		ce.push(wasmcore.I32Value(int32(v)))
	} else {
		ce.push(wasmcore.I64Value(v))
	}
}

func pushTruncClamped(ce *callEngine, destWidth int, signed bool, f float64) {
	if destWidth == 32 {
		if signed {
			ce.push(wasmcore.I32Value(int32(f)))
		} else {
			ce.push(wasmcore.I32Value(int32(uint32(f))))
		}
		return
	}
	if signed {
		ce.push(wasmcore.I64Value(int64(f)))
	} else {
		ce.push(wasmcore.I64Value(int64(uint64(f))))
	}
}

// execReinterpret reinterprets the popped operand's bit pattern as the
// one destination kind its source Kind uniquely maps to (i32<->f32,
// i64<->f64); no second variant shares a source Kind, so Kind alone
// determines the destination.
func (ce *callEngine) execReinterpret() {
	v := ce.pop()
	switch v.Kind {
	case wasmcore.KindI32:
		ce.push(wasmcore.F32Value(math.Float32frombits(v.U32())))
	case wasmcore.KindF32:
		ce.push(wasmcore.I32Value(int32(math.Float32bits(v.F32()))))
	case wasmcore.KindI64:
		ce.push(wasmcore.F64Value(math.Float64frombits(v.U64())))
	case wasmcore.KindF64:
		ce.push(wasmcore.I64Value(int64(math.Float64bits(v.F64()))))
	default:
		ce.trap(TrapTypeMismatch, "reinterpret of unsupported operand kind %s", v.Kind)
	}
}
