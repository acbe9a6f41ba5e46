package interpreter

import (
	"math"

	"go.uber.org/zap"

	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// stackSlabSlots is the minimum number of free value slots the engine
// keeps above sp at every call frame entry, per spec.md §5's "slabs of at
// least 512 slots" growth policy.
const stackSlabSlots = 512

// maxStackSlots bounds the value stack at roughly 4 MiB of slots, per
// spec.md §5's STACK_OVERFLOW ceiling.
const maxStackSlots = 4 * 1024 * 1024 / 8

// Engine runs compiled modules. It holds no per-call state; every Call
// gets its own callEngine, mirroring the teacher's engine/moduleEngine/
// callEngine split without the module-engine layer (this interpreter has
// no separate compile step to cache).
type Engine struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Call invokes fe (an exported or otherwise addressable function of inst)
// with args, returning its results or the trap/host error that aborted
// it. This is the sole entry point into the interpreter from outside the
// package (the instantiator's own constant-expression evaluator does not
// use it, by design — see wasmcore.evalConstExpr).
func (e *Engine) Call(inst *wasmcore.Instance, fe *wasmcore.FunctionEntry, args []wasmcore.Value) (results []wasmcore.Value, err error) {
	ce := &callEngine{inst: inst, logger: e.logger}
	defer func() {
		if r := recover(); r == nil {
			return
		} else if he, ok := r.(hostError); ok {
			err = he.err
		} else if te, ok := r.(*TrapError); ok {
			te.Frames = ce.frameNames()
			err = te
		} else {
			panic(r)
		}
	}()

	ft := ce.funcType(fe)
	if len(args) != len(ft.Params) {
		ce.trap(TrapTypeMismatch, "expected %d arguments, got %d", len(ft.Params), len(args))
	}
	ce.stack = make([]wasmcore.Value, 0, stackSlabSlots)
	for _, a := range args {
		ce.push(a)
	}
	ce.invoke(fe, len(ft.Params), len(ft.Results))
	n := len(ce.stack)
	results = append(results, ce.stack[n-len(ft.Results):]...)
	return results, nil
}

// callEngine holds the state of one top-level Call and every nested call
// it makes. The value stack is shared across all nested frames — locals
// of a callee simply occupy the next slots above the caller's operands,
// per spec.md §4.6's fp/sp discipline.
type callEngine struct {
	stack  []wasmcore.Value
	inst   *wasmcore.Instance
	logger *zap.Logger
	// names records DebugName of every function currently on the Go call
	// stack (innermost last), used only to annotate a TrapError.
	names []string
	// pc is the instruction index run is currently executing, stamped onto
	// any TrapError raised from it or from a callee it dispatches into.
	pc uint32
}

func (ce *callEngine) push(v wasmcore.Value) {
	if len(ce.stack) >= maxStackSlots {
		ce.trap(TrapStackOverflow, "value stack exceeded %d slots", maxStackSlots)
	}
	ce.stack = append(ce.stack, v)
}

func (ce *callEngine) pop() wasmcore.Value {
	n := len(ce.stack) - 1
	v := ce.stack[n]
	ce.stack = ce.stack[:n]
	return v
}

func (ce *callEngine) peek() wasmcore.Value {
	return ce.stack[len(ce.stack)-1]
}

func (ce *callEngine) frameNames() []string {
	out := make([]string, len(ce.names))
	for i, n := range ce.names {
		out[len(out)-1-i] = n
	}
	return out
}

func (ce *callEngine) funcType(fe *wasmcore.FunctionEntry) *wasmcore.FunctionType {
	return ce.inst.Module.Types[fe.TypeIndex]
}

// invoke dispatches to a host callback or runs a local function's body,
// per spec.md §4.6's call protocol steps 3-6. fp is computed from the
// already-pushed argument values; the result values replace them in
// place once the call completes.
func (ce *callEngine) invoke(fe *wasmcore.FunctionEntry, paramCount, resultCount int) {
	fp := len(ce.stack) - paramCount

	if fe.IsHost {
		args := append([]wasmcore.Value(nil), ce.stack[fp:]...)
		ce.stack = ce.stack[:fp]
		results, err := fe.Host(ce.inst, args)
		if err != nil {
			panic(hostError{err})
		}
		if len(results) != resultCount {
			ce.trap(TrapTypeMismatch, "host function %q returned %d values, want %d", fe.DebugName, len(results), resultCount)
		}
		ce.stack = append(ce.stack, results...)
		return
	}

	if len(ce.names) > 2048 {
		ce.trap(TrapStackOverflow, "call depth exceeded 2048 frames")
	}
	ce.names = append(ce.names, fe.DebugName)
	if cap(ce.stack)-len(ce.stack) < stackSlabSlots {
		grown := make([]wasmcore.Value, len(ce.stack), len(ce.stack)+stackSlabSlots)
		copy(grown, ce.stack)
		ce.stack = grown
	}
	for _, lg := range fe.Body.Locals {
		zero := zeroValue(lg.Type)
		for i := uint32(0); i < lg.Count; i++ {
			ce.push(zero)
		}
	}
	ce.run(fe.Body.CodeStart, uint32(fp))
	ce.names = ce.names[:len(ce.names)-1]

	n := len(ce.stack)
	res := append([]wasmcore.Value(nil), ce.stack[n-resultCount:]...)
	ce.stack = ce.stack[:fp]
	ce.stack = append(ce.stack, res...)
}

func zeroValue(vt byte) wasmcore.Value {
	switch vt {
	case 0x7f:
		return wasmcore.I32Value(0)
	case 0x7e:
		return wasmcore.I64Value(0)
	case 0x7d:
		return wasmcore.F32Value(0)
	case 0x7c:
		return wasmcore.F64Value(0)
	case 0x7b:
		return wasmcore.V128Value(0, 0)
	default: // funcref/externref
		return wasmcore.NullRefValue()
	}
}

// run executes instructions starting at pc with frame-local pointer fp,
// returning when the matching End(entryPC) is observed or Return
// executes — spec.md §4.6's dispatch loop.
func (ce *callEngine) run(entryPC, fp uint32) {
	pc := entryPC
	mod := ce.inst.Module
	for {
		instr := &mod.Instructions[pc]
		ce.pc = pc
		switch instr.Op {
		case wasmcore.OpUnreachable:
			ce.trap(TrapUnreachable, "unreachable instruction executed")

		case wasmcore.OpNop, wasmcore.OpBlock, wasmcore.OpLoop, wasmcore.OpElse:
			pc++

		case wasmcore.OpIf:
			if ce.pop().I32() != 0 {
				pc++
			} else {
				pc = instr.Target
			}

		case wasmcore.OpEnd:
			if instr.Target == entryPC {
				return
			}
			pc++

		case wasmcore.OpBr:
			pc = instr.Target

		case wasmcore.OpBrIf:
			if ce.pop().I32() != 0 {
				pc = instr.Target
			} else {
				pc++
			}

		case wasmcore.OpBrTable:
			idx := ce.pop().U32()
			if int(idx) < len(instr.Table) {
				pc = instr.Table[idx].Target
			} else {
				pc = instr.Default.Target
			}

		case wasmcore.OpReturn:
			return

		case wasmcore.OpCall:
			fe := ce.inst.Functions[instr.FuncIndex]
			ft := ce.funcType(fe)
			ce.invoke(fe, len(ft.Params), len(ft.Results))
			pc++

		case wasmcore.OpCallIndirect:
			ce.execCallIndirect(instr)
			pc++

		case wasmcore.OpDrop:
			ce.pop()
			pc++

		case wasmcore.OpSelect, wasmcore.OpSelectTyped:
			cond := ce.pop()
			vFalse := ce.pop()
			vTrue := ce.pop()
			if cond.I32() != 0 {
				ce.push(vTrue)
			} else {
				ce.push(vFalse)
			}
			pc++

		case wasmcore.OpLocalGet:
			ce.push(ce.stack[fp+instr.Index])
			pc++
		case wasmcore.OpLocalSet:
			ce.stack[fp+instr.Index] = ce.pop()
			pc++
		case wasmcore.OpLocalTee:
			ce.stack[fp+instr.Index] = ce.peek()
			pc++

		case wasmcore.OpGlobalGet:
			ce.push(ce.inst.Globals[instr.Index].Value)
			pc++
		case wasmcore.OpGlobalSet:
			if err := ce.inst.Globals[instr.Index].Set(ce.pop()); err != nil {
				ce.trap(TrapConstWrite, "%v", err)
			}
			pc++

		case wasmcore.OpTableGet:
			t := ce.inst.Tables[instr.Index]
			i := ce.pop().U32()
			if i >= uint32(len(t.Elements)) {
				ce.trap(TrapIndirectOOB, "table.get index %d out of range", i)
			}
			ce.push(tableElemToValue(t.Elements[i]))
			pc++
		case wasmcore.OpTableSet:
			t := ce.inst.Tables[instr.Index]
			v := ce.pop()
			i := ce.pop().U32()
			if i >= uint32(len(t.Elements)) {
				ce.trap(TrapIndirectOOB, "table.set index %d out of range", i)
			}
			t.Elements[i] = valueToTableElem(v)
			pc++

		case wasmcore.OpMemoryLoad:
			ce.execLoad(instr)
			pc++
		case wasmcore.OpMemoryStore:
			ce.execStore(instr)
			pc++
		case wasmcore.OpMemorySize:
			mem := ce.inst.Memory(0)
			ce.push(wasmcore.U32Value(uint32(len(mem.Bytes) / wasmcore.PageSize)))
			pc++
		case wasmcore.OpMemoryGrow:
			ce.execMemoryGrow()
			pc++

		case wasmcore.OpConstI32:
			ce.push(wasmcore.I32Value(instr.I32))
			pc++
		case wasmcore.OpConstI64:
			ce.push(wasmcore.I64Value(instr.I64))
			pc++
		case wasmcore.OpConstF32:
			ce.push(wasmcore.F32Value(math.Float32frombits(instr.F32)))
			pc++
		case wasmcore.OpConstF64:
			ce.push(wasmcore.F64Value(math.Float64frombits(instr.F64)))
			pc++

		case wasmcore.OpNumeric:
			ce.execNumeric(instr.Sub)
			pc++

		case wasmcore.OpRefNull:
			ce.push(wasmcore.NullRefValue())
			pc++
		case wasmcore.OpRefIsNull:
			ce.push(wasmcore.BoolValue(ce.pop().IsNullRef()))
			pc++
		case wasmcore.OpRefFunc:
			ce.push(wasmcore.RefValue(uint64(instr.FuncIndex)))
			pc++

		case wasmcore.OpMisc:
			ce.execMisc(instr)
			pc++

		case wasmcore.OpSIMD:
			ce.trap(TrapUnimplemented, "SIMD execution is not supported")

		default:
			ce.trap(TrapUnimplemented, "opcode %d has no execution semantics", instr.Op)
		}
	}
}

func (ce *callEngine) execCallIndirect(instr *wasmcore.Instruction) {
	t := ce.inst.Tables[instr.TableIndex]
	i := ce.pop().U32()
	if i >= uint32(len(t.Elements)) {
		ce.trap(TrapIndirectOOB, "call_indirect index %d out of range", i)
	}
	funcIdx := t.Elements[i]
	if funcIdx == wasmcore.NullTableElement {
		ce.trap(TrapIndirectOOB, "call_indirect through a null table slot")
	}
	if int(funcIdx) >= len(ce.inst.Functions) {
		ce.trap(TrapIndirectOOB, "call_indirect resolved an out-of-range function index")
	}
	fe := ce.inst.Functions[funcIdx]
	actual := ce.funcType(fe)
	want := ce.inst.Module.Types[instr.TypeIndex]
	if !actual.Equal(want) {
		ce.trap(TrapTypeMismatch, "call_indirect type mismatch: table holds %s, expected %s", actual, want)
	}
	ce.invoke(fe, len(actual.Params), len(actual.Results))
}

func tableElemToValue(e uint32) wasmcore.Value {
	if e == wasmcore.NullTableElement {
		return wasmcore.NullRefValue()
	}
	return wasmcore.RefValue(uint64(e))
}

func valueToTableElem(v wasmcore.Value) uint32 {
	if v.IsNullRef() {
		return wasmcore.NullTableElement
	}
	return uint32(v.Ref())
}
