package interpreter

import (
	"encoding/binary"
	"math"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

func (ce *callEngine) memBytes() []byte {
	mem := ce.inst.Memory(0)
	if mem == nil {
		ce.trap(TrapMemOOB, "module has no memory")
	}
	return mem.Bytes
}

func (ce *callEngine) effectiveAddr(base wasmcore.Value, mem wasmcore.MemArg, width int, memLen int) uint32 {
	addr := uint64(base.U32()) + uint64(mem.Offset)
	if addr+uint64(width) > uint64(memLen) {
		ce.trap(TrapMemOOB, "memory access at %d+%d out of bounds (size %d)", addr, width, memLen)
	}
	return uint32(addr)
}

// execLoad implements every i32/i64/f32/f64.load* variant, per spec.md
// §4.6's little-endian, sign/zero-extending load semantics.
func (ce *callEngine) execLoad(instr *wasmcore.Instruction) {
	bs := ce.memBytes()
	base := ce.pop()
	effectiveAddr := ce.effectiveAddr

	switch instr.Sub {
	case wasmcore.SubI32:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		ce.push(wasmcore.I32Value(int32(binary.LittleEndian.Uint32(bs[a:]))))
	case wasmcore.SubI64:
		a := effectiveAddr(base, instr.Mem, 8, len(bs))
		ce.push(wasmcore.I64Value(int64(binary.LittleEndian.Uint64(bs[a:]))))
	case wasmcore.SubF32:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		ce.push(wasmcore.F32Value(math.Float32frombits(binary.LittleEndian.Uint32(bs[a:]))))
	case wasmcore.SubF64:
		a := effectiveAddr(base, instr.Mem, 8, len(bs))
		ce.push(wasmcore.F64Value(math.Float64frombits(binary.LittleEndian.Uint64(bs[a:]))))
	case wasmcore.SubI32Load8S:
		a := effectiveAddr(base, instr.Mem, 1, len(bs))
		ce.push(wasmcore.I32Value(int32(int8(bs[a]))))
	case wasmcore.SubI32Load8U:
		a := effectiveAddr(base, instr.Mem, 1, len(bs))
		ce.push(wasmcore.I32Value(int32(bs[a])))
	case wasmcore.SubI32Load16S:
		a := effectiveAddr(base, instr.Mem, 2, len(bs))
		ce.push(wasmcore.I32Value(int32(int16(binary.LittleEndian.Uint16(bs[a:])))))
	case wasmcore.SubI32Load16U:
		a := effectiveAddr(base, instr.Mem, 2, len(bs))
		ce.push(wasmcore.I32Value(int32(binary.LittleEndian.Uint16(bs[a:]))))
	case wasmcore.SubI64Load8S:
		a := effectiveAddr(base, instr.Mem, 1, len(bs))
		ce.push(wasmcore.I64Value(int64(int8(bs[a]))))
	case wasmcore.SubI64Load8U:
		a := effectiveAddr(base, instr.Mem, 1, len(bs))
		ce.push(wasmcore.I64Value(int64(bs[a])))
	case wasmcore.SubI64Load16S:
		a := effectiveAddr(base, instr.Mem, 2, len(bs))
		ce.push(wasmcore.I64Value(int64(int16(binary.LittleEndian.Uint16(bs[a:])))))
	case wasmcore.SubI64Load16U:
		a := effectiveAddr(base, instr.Mem, 2, len(bs))
		ce.push(wasmcore.I64Value(int64(binary.LittleEndian.Uint16(bs[a:]))))
	case wasmcore.SubI64Load32S:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		ce.push(wasmcore.I64Value(int64(int32(binary.LittleEndian.Uint32(bs[a:])))))
	case wasmcore.SubI64Load32U:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		ce.push(wasmcore.I64Value(int64(binary.LittleEndian.Uint32(bs[a:]))))
	default:
		ce.trap(TrapUnimplemented, "load sub-opcode %d has no execution semantics", instr.Sub)
	}
}

// execStore implements every i32/i64/f32/f64.store* variant.
func (ce *callEngine) execStore(instr *wasmcore.Instruction) {
	v := ce.pop()
	bs := ce.memBytes()
	base := ce.pop()
	effectiveAddr := ce.effectiveAddr

	switch instr.Sub {
	case wasmcore.SubI32:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		binary.LittleEndian.PutUint32(bs[a:], v.U32())
	case wasmcore.SubI64:
		a := effectiveAddr(base, instr.Mem, 8, len(bs))
		binary.LittleEndian.PutUint64(bs[a:], v.U64())
	case wasmcore.SubF32:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		binary.LittleEndian.PutUint32(bs[a:], math.Float32bits(v.F32()))
	case wasmcore.SubF64:
		a := effectiveAddr(base, instr.Mem, 8, len(bs))
		binary.LittleEndian.PutUint64(bs[a:], v.Bits())
	case wasmcore.SubI32Store8, wasmcore.SubI64Store8:
		a := effectiveAddr(base, instr.Mem, 1, len(bs))
		bs[a] = byte(v.U64())
	case wasmcore.SubI32Store16, wasmcore.SubI64Store16:
		a := effectiveAddr(base, instr.Mem, 2, len(bs))
		binary.LittleEndian.PutUint16(bs[a:], uint16(v.U64()))
	case wasmcore.SubI64Store32:
		a := effectiveAddr(base, instr.Mem, 4, len(bs))
		binary.LittleEndian.PutUint32(bs[a:], uint32(v.U64()))
	default:
		ce.trap(TrapUnimplemented, "store sub-opcode %d has no execution semantics", instr.Sub)
	}
}

// execMemoryGrow implements memory.grow: push -1 on failure rather than
// trapping, per the Wasm spec's grow contract.
func (ce *callEngine) execMemoryGrow() {
	delta := ce.pop().U32()
	mem := ce.inst.Memory(0)
	if mem == nil {
		ce.push(wasmcore.I32Value(-1))
		return
	}
	oldPages := uint32(len(mem.Bytes) / wasmcore.PageSize)
	newPages := uint64(oldPages) + uint64(delta)
	if newPages*wasmcore.PageSize > mem.MaxBytes() {
		ce.push(wasmcore.I32Value(-1))
		return
	}
	grown := make([]byte, newPages*wasmcore.PageSize)
	copy(grown, mem.Bytes)
	mem.Bytes = grown
	ce.push(wasmcore.I32Value(int32(oldPages)))
}

// execMisc dispatches the 0xFC-prefixed bulk-memory/table operations.
// Saturating-truncation variants are handled by execNumeric instead —
// OpMisc here only ever carries the bulk ops.
func (ce *callEngine) execMisc(instr *wasmcore.Instruction) {
	switch instr.Sub {
	case wasmcore.SubMemoryInit:
		ce.execMemoryInit(instr)
	case wasmcore.SubDataDrop:
		ce.inst.Module.Data[instr.MiscIndex].Drop()
	case wasmcore.SubMemoryCopy:
		ce.execMemoryCopy()
	case wasmcore.SubMemoryFill:
		ce.execMemoryFill()
	case wasmcore.SubTableInit:
		ce.execTableInit(instr)
	case wasmcore.SubElemDrop:
		ce.inst.Module.Elements[instr.MiscIndex].Drop()
	case wasmcore.SubTableCopy:
		ce.execTableCopy(instr)
	case wasmcore.SubTableGrow:
		ce.execTableGrow(instr)
	case wasmcore.SubTableSize:
		t := ce.inst.Tables[instr.MiscIndex]
		ce.push(wasmcore.I32Value(int32(len(t.Elements))))
	case wasmcore.SubTableFill:
		ce.execTableFill(instr)
	default:
		ce.trap(TrapUnimplemented, "misc sub-opcode %d has no execution semantics", instr.Sub)
	}
}

func (ce *callEngine) execMemoryInit(instr *wasmcore.Instruction) {
	n := ce.pop().U32()
	src := ce.pop().U32()
	dst := ce.pop().U32()
	seg := ce.inst.Module.Data[instr.MiscIndex]
	if seg.Dropped() {
		if n != 0 {
			ce.trap(TrapMemOOB, "memory.init from a dropped segment")
		}
		return
	}
	data := seg.Bytes
	if uint64(src)+uint64(n) > uint64(len(data)) {
		ce.trap(TrapMemOOB, "memory.init source range out of bounds")
	}
	bs := ce.memBytes()
	if uint64(dst)+uint64(n) > uint64(len(bs)) {
		ce.trap(TrapMemOOB, "memory.init destination range out of bounds")
	}
	copy(bs[dst:dst+n], data[src:src+n])
}

func (ce *callEngine) execMemoryCopy() {
	n := ce.pop().U32()
	src := ce.pop().U32()
	dst := ce.pop().U32()
	bs := ce.memBytes()
	if uint64(src)+uint64(n) > uint64(len(bs)) || uint64(dst)+uint64(n) > uint64(len(bs)) {
		ce.trap(TrapMemOOB, "memory.copy range out of bounds")
	}
	copy(bs[dst:dst+n], bs[src:src+n])
}

func (ce *callEngine) execMemoryFill() {
	n := ce.pop().U32()
	val := byte(ce.pop().U32())
	dst := ce.pop().U32()
	bs := ce.memBytes()
	if uint64(dst)+uint64(n) > uint64(len(bs)) {
		ce.trap(TrapMemOOB, "memory.fill range out of bounds")
	}
	for i := uint32(0); i < n; i++ {
		bs[dst+i] = val
	}
}

func (ce *callEngine) execTableInit(instr *wasmcore.Instruction) {
	n := ce.pop().U32()
	src := ce.pop().U32()
	dst := ce.pop().U32()
	seg := ce.inst.Module.Elements[instr.MiscIndex]
	t := ce.inst.Tables[instr.MiscIndex2]
	if seg.Dropped() {
		if n != 0 {
			ce.trap(TrapIndirectOOB, "table.init from a dropped segment")
		}
		return
	}
	idxs, err := wasmcore.SegmentElements(ce.inst.Module, ce.inst, seg)
	if err != nil {
		ce.trap(TrapIndirectOOB, "%v", err)
	}
	if uint64(src)+uint64(n) > uint64(len(idxs)) {
		ce.trap(TrapIndirectOOB, "table.init source range out of bounds")
	}
	if uint64(dst)+uint64(n) > uint64(len(t.Elements)) {
		ce.trap(TrapIndirectOOB, "table.init destination range out of bounds")
	}
	copy(t.Elements[dst:dst+n], idxs[src:src+n])
}

func (ce *callEngine) execTableCopy(instr *wasmcore.Instruction) {
	n := ce.pop().U32()
	src := ce.pop().U32()
	dst := ce.pop().U32()
	dstT := ce.inst.Tables[instr.MiscIndex]
	srcT := ce.inst.Tables[instr.MiscIndex2]
	if uint64(src)+uint64(n) > uint64(len(srcT.Elements)) || uint64(dst)+uint64(n) > uint64(len(dstT.Elements)) {
		ce.trap(TrapIndirectOOB, "table.copy range out of bounds")
	}
	copy(dstT.Elements[dst:dst+n], srcT.Elements[src:src+n])
}

func (ce *callEngine) execTableGrow(instr *wasmcore.Instruction) {
	n := ce.pop().U32()
	init := valueToTableElem(ce.pop())
	t := ce.inst.Tables[instr.MiscIndex]
	oldLen := uint32(len(t.Elements))
	newLen := uint64(oldLen) + uint64(n)
	max := uint64(wasmcore.DefaultTableMax)
	if t.Limits.HasMax {
		max = uint64(t.Limits.Maximum)
	}
	if newLen > max {
		ce.push(wasmcore.I32Value(-1))
		return
	}
	grown := make([]uint32, newLen)
	copy(grown, t.Elements)
	for i := oldLen; i < uint32(newLen); i++ {
		grown[i] = init
	}
	t.Elements = grown
	ce.push(wasmcore.I32Value(int32(oldLen)))
}

func (ce *callEngine) execTableFill(instr *wasmcore.Instruction) {
	n := ce.pop().U32()
	val := valueToTableElem(ce.pop())
	dst := ce.pop().U32()
	t := ce.inst.Tables[instr.MiscIndex]
	if uint64(dst)+uint64(n) > uint64(len(t.Elements)) {
		ce.trap(TrapIndirectOOB, "table.fill range out of bounds")
	}
	for i := uint32(0); i < n; i++ {
		t.Elements[dst+i] = val
	}
}
