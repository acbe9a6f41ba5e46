package wasmbin

import (
	"io"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// branchPatch records a not-yet-resolved branch target: once the frame it
// refers to is closed (its matching End is decoded), the recorded slot is
// filled in with the End's pc, per spec.md §4.4's block-stack backfill
// algorithm.
type branchPatch struct {
	instrIdx uint32
	// slot selects which field of mod.Instructions[instrIdx] to patch:
	// -1 = Target, -2 = Default.Target, >=0 = Table[slot].Target.
	slot int
}

type blockFrame struct {
	op             wasmcore.Opcode // OpBlock, OpLoop or OpIf
	placeholderIdx uint32          // pc of the Block/Loop/If instruction (or ^0 for the synthetic outer frame)
	headPC         uint32          // pc an End must match to mean "exit this frame" (placeholderIdx, or entry_pc for the outer frame)
	bodyStart      uint32          // then-arm / loop-body / block-body start pc, fixed at creation
	elseStart      uint32          // If only: else-arm start pc, set once Else is seen
	sawElse        bool
	synthetic      bool // true for the implicit function-body/init-expr frame
	pending        []branchPatch
}

func applyPatch(mod *wasmcore.Module, p branchPatch, target uint32) {
	instr := &mod.Instructions[p.instrIdx]
	switch {
	case p.slot == -1:
		instr.Target = target
	case p.slot == -2:
		instr.Default.Target = target
	default:
		instr.Table[p.slot].Target = target
	}
}

// decodeExpr decodes one instruction sequence (a function body or an
// initializer expression) terminated by the matching top-level End,
// appending every decoded Instruction to mod.Instructions and resolving
// every branch target in the same pass, per spec.md §4.4.
func decodeExpr(c *Cursor, mod *wasmcore.Module) (startPC uint32, endPC uint32, err error) {
	startPC = uint32(len(mod.Instructions))
	outer := &blockFrame{op: wasmcore.OpBlock, placeholderIdx: ^uint32(0), headPC: startPC, bodyStart: startPC, synthetic: true}
	stack := []*blockFrame{outer}

	for {
		b, rerr := c.ReadByte()
		if rerr != nil {
			if rerr == io.EOF {
				return 0, 0, wrapErr(c, ErrTruncated, io.ErrUnexpectedEOF)
			}
			return 0, 0, wrapErr(c, ErrTruncated, rerr)
		}

		switch b {
		case wasmOpEnd:
			idx := uint32(len(mod.Instructions))
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			mod.Instructions = append(mod.Instructions, wasmcore.Instruction{
				Op:     wasmcore.OpEnd,
				Target: top.headPC,
				Loc:    wasmcore.Location{BodyStart: top.bodyStart},
			})
			if !top.synthetic {
				ph := &mod.Instructions[top.placeholderIdx]
				ph.Loc = wasmcore.Location{BodyStart: top.bodyStart, End: idx, LastInst: idx - 1}
				if ph.Op == wasmcore.OpIf {
					if top.sawElse {
						ph.Target = top.elseStart
					} else {
						ph.Target = idx
					}
				}
			}
			for _, p := range top.pending {
				applyPatch(mod, p, idx)
			}
			if len(stack) == 0 {
				return startPC, idx, nil
			}

		case wasmOpBlock, wasmOpLoop, wasmOpIf:
			resultType, typeIndex, berr := decodeBlockType(c)
			if berr != nil {
				return 0, 0, berr
			}
			op := wasmcore.OpBlock
			if b == wasmOpLoop {
				op = wasmcore.OpLoop
			} else if b == wasmOpIf {
				op = wasmcore.OpIf
			}
			idx := uint32(len(mod.Instructions))
			if idx == startPC {
				// A Nop at the body head keeps this frame's headPC distinct
				// from the outer frame's, so its End cannot end the function.
				mod.Instructions = append(mod.Instructions, wasmcore.Instruction{Op: wasmcore.OpNop})
				idx++
			}
			if op == wasmcore.OpIf {
				// pop the I32 condition at runtime; no immediate payload here.
				mod.Instructions = append(mod.Instructions, wasmcore.Instruction{Op: op, ResultType: resultType, TypeIndex: typeIndex})
			} else {
				mod.Instructions = append(mod.Instructions, wasmcore.Instruction{Op: op, ResultType: resultType, TypeIndex: typeIndex})
			}
			bodyStart := uint32(len(mod.Instructions))
			stack = append(stack, &blockFrame{op: op, placeholderIdx: idx, headPC: idx, bodyStart: bodyStart})

		case wasmOpElse:
			top := stack[len(stack)-1]
			if top.op != wasmcore.OpIf || top.sawElse {
				return 0, 0, newErr(c, ErrBadOpcode, "else outside if, or duplicate else")
			}
			brIdx := uint32(len(mod.Instructions))
			mod.Instructions = append(mod.Instructions, wasmcore.Instruction{Op: wasmcore.OpBr})
			top.pending = append(top.pending, branchPatch{instrIdx: brIdx, slot: -1})
			elseIdx := uint32(len(mod.Instructions))
			mod.Instructions = append(mod.Instructions, wasmcore.Instruction{Op: wasmcore.OpElse})
			top.sawElse = true
			top.elseStart = elseIdx + 1

		case wasmOpBr, wasmOpBrIf:
			l, lerr := c.ReadU32()
			if lerr != nil {
				return 0, 0, wrapErr(c, ErrTruncated, lerr)
			}
			if int(l) >= len(stack) {
				return 0, 0, newErr(c, ErrBadType, "branch depth out of range")
			}
			op := wasmcore.OpBr
			if b == wasmOpBrIf {
				op = wasmcore.OpBrIf
			}
			idx := uint32(len(mod.Instructions))
			mod.Instructions = append(mod.Instructions, wasmcore.Instruction{Op: op, Label: l})
			resolveBranch(mod, stack[len(stack)-1-int(l)], idx, -1)

		case wasmOpBrTable:
			count, cerr := c.ReadU32()
			if cerr != nil {
				return 0, 0, wrapErr(c, ErrTruncated, cerr)
			}
			idx := uint32(len(mod.Instructions))
			instr := wasmcore.Instruction{Op: wasmcore.OpBrTable, Table: make([]wasmcore.BrTableEntry, count)}
			for i := uint32(0); i < count; i++ {
				l, lerr := c.ReadU32()
				if lerr != nil {
					return 0, 0, wrapErr(c, ErrTruncated, lerr)
				}
				instr.Table[i] = wasmcore.BrTableEntry{Label: l}
			}
			defLabel, derr := c.ReadU32()
			if derr != nil {
				return 0, 0, wrapErr(c, ErrTruncated, derr)
			}
			instr.Default = wasmcore.BrTableEntry{Label: defLabel}
			mod.Instructions = append(mod.Instructions, instr)
			for i := range instr.Table {
				l := instr.Table[i].Label
				if int(l) >= len(stack) {
					return 0, 0, newErr(c, ErrBadType, "br_table label out of range")
				}
				resolveBranch(mod, stack[len(stack)-1-int(l)], idx, i)
			}
			if int(defLabel) >= len(stack) {
				return 0, 0, newErr(c, ErrBadType, "br_table default label out of range")
			}
			resolveBranch(mod, stack[len(stack)-1-int(defLabel)], idx, -2)

		default:
			if err := decodeSimple(c, mod, b); err != nil {
				return 0, 0, err
			}
		}
	}
}

// resolveBranch sets the branch target immediately when it is known (a
// Loop's target is always its own body head) or queues a patch to apply
// once the target frame's End is decoded (Block/If).
func resolveBranch(mod *wasmcore.Module, frame *blockFrame, instrIdx uint32, slot int) {
	if frame.op == wasmcore.OpLoop {
		target := frame.bodyStart
		applyPatch(mod, branchPatch{instrIdx: instrIdx, slot: slot}, target)
		return
	}
	frame.pending = append(frame.pending, branchPatch{instrIdx: instrIdx, slot: slot})
}

// decodeBlockType decodes the blocktype immediate: 0x40 (void), a single
// value-type byte, or a signed 33-bit LEB128 function-type index.
func decodeBlockType(c *Cursor) (resultType byte, typeIndex uint32, err error) {
	peek, perr := c.PeekByte()
	if perr != nil {
		return 0, 0, wrapErr(c, ErrTruncated, perr)
	}
	switch peek {
	case 0x40:
		c.ReadByte()
		return 0, wasmcore.NoTypeIndex, nil
	case 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, 0x70, 0x6f:
		c.ReadByte()
		return peek, wasmcore.NoTypeIndex, nil
	default:
		v, verr := c.ReadI33AsI64()
		if verr != nil {
			return 0, 0, wrapErr(c, ErrTruncated, verr)
		}
		if v < 0 {
			return 0, 0, newErr(c, ErrBadType, "negative blocktype type index")
		}
		return 0, uint32(v), nil
	}
}

func decodeMemArg(c *Cursor) (wasmcore.MemArg, error) {
	align, err := c.ReadU32()
	if err != nil {
		return wasmcore.MemArg{}, wrapErr(c, ErrTruncated, err)
	}
	offset, err := c.ReadU32()
	if err != nil {
		return wasmcore.MemArg{}, wrapErr(c, ErrTruncated, err)
	}
	return wasmcore.MemArg{Align: align, Offset: offset}, nil
}
