package wasmcore

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// ImportValue is one entry of a caller-supplied import map (spec.md §4.5,
// §6): a Func import carries a host callback, a Value import carries the
// global's initial value. Table and Memory imports carry no payload here —
// per spec.md §4.5 step 1, the instantiator always allocates a fresh
// table/memory sized from the *import's declared* limits rather than
// adopting a host-owned buffer; this keeps every instance's memory/table
// storage self-contained.
type ImportValue struct {
	Kind ImportKind

	Host HostFunc
	Val  Value
}

// Imports is the `name -> (field_name -> ImportValue)` map spec.md §6
// describes as the external import-map interface.
type Imports map[string]map[string]ImportValue

func (im Imports) lookup(module, field string) (ImportValue, bool) {
	m, ok := im[module]
	if !ok {
		return ImportValue{}, false
	}
	v, ok := m[field]
	return v, ok
}

// Instantiate links a decoded Module against a caller-supplied import map,
// producing a ready-to-run Instance, per spec.md §4.5's eight-step
// procedure.
func Instantiate(mod *Module, name string, imports Imports, logger *zap.Logger) (*Instance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	inst := newInstance(name, mod)
	inst.Functions = make([]*FunctionEntry, len(mod.Functions))
	inst.Tables = make([]*Table, 0, len(mod.Tables))
	inst.Memories = make([]*Memory, 0, len(mod.Memories))
	inst.Globals = make([]*Global, 0, len(mod.Globals))

	// Step 1: resolve imports. mod.Functions already holds Host placeholder
	// entries (IsHost=true, Host=nil) for every Func import, appended by the
	// decoder in declaration order ahead of local functions.
	funcImportSeen := uint32(0)
	tableImportSeen := uint32(0)
	memImportSeen := uint32(0)
	globalImportSeen := uint32(0)
	for _, imp := range mod.Imports {
		iv, ok := imports.lookup(imp.Module, imp.Field)
		if !ok {
			return nil, &InstantiateError{Code: ErrImportNotFound, ImportModule: imp.Module, ImportField: imp.Field, Reason: "not provided"}
		}
		if iv.Kind != imp.Kind {
			return nil, &InstantiateError{Code: ErrImportTypeMismatch, ImportModule: imp.Module, ImportField: imp.Field, Reason: "import kind mismatch"}
		}
		switch imp.Kind {
		case ImportKindFunc:
			if iv.Host == nil {
				return nil, &InstantiateError{Code: ErrImportTypeMismatch, ImportModule: imp.Module, ImportField: imp.Field, Reason: "func import missing host callback"}
			}
			fe := mod.Functions[funcImportSeen]
			inst.Functions[funcImportSeen] = &FunctionEntry{TypeIndex: fe.TypeIndex, IsHost: true, Host: iv.Host, DebugName: fe.DebugName}
			funcImportSeen++
		case ImportKindTable:
			t := &Table{RefKind: imp.TableRefKind, Limits: imp.TableLimits}
			t.Elements = make([]uint32, t.Limits.Minimum)
			for i := range t.Elements {
				t.Elements[i] = NullTableElement
			}
			inst.Tables = append(inst.Tables, t)
			tableImportSeen++
		case ImportKindMemory:
			m := &Memory{Limits: imp.MemoryLimits}
			m.Bytes = make([]byte, uint64(imp.MemoryLimits.Minimum)*PageSize)
			inst.Memories = append(inst.Memories, m)
			memImportSeen++
		case ImportKindGlobal:
			if iv.Val.Kind == KindNOP {
				return nil, &InstantiateError{Code: ErrImportTypeMismatch, ImportModule: imp.Module, ImportField: imp.Field, Reason: "global import missing value"}
			}
			inst.Globals = append(inst.Globals, &Global{Type: imp.GlobalType, Mutability: imp.GlobalMut, Value: iv.Val, initialized: true})
			globalImportSeen++
		}
	}

	// Step 2: register locally defined functions, following the imports.
	for idx := mod.ImportedFuncCount; int(idx) < len(mod.Functions); idx++ {
		fe := mod.Functions[idx]
		inst.Functions[idx] = &FunctionEntry{TypeIndex: fe.TypeIndex, Body: fe.Body, DebugName: fe.DebugName}
	}

	// Step 3: locally declared tables.
	for _, t := range mod.Tables {
		nt := &Table{RefKind: t.RefKind, Limits: t.Limits, Elements: make([]uint32, t.Limits.Minimum)}
		for i := range nt.Elements {
			nt.Elements[i] = NullTableElement
		}
		inst.Tables = append(inst.Tables, nt)
	}

	// Step 4: locally declared memories.
	for _, m := range mod.Memories {
		nm := &Memory{Limits: m.Limits, Bytes: make([]byte, uint64(m.Limits.Minimum)*PageSize)}
		inst.Memories = append(inst.Memories, nm)
	}

	// Step 5: locally declared globals, each initialized by evaluating its
	// initializer expression against the globals resolved so far (imported
	// globals, then earlier locals — the only values a valid const-expr may
	// reference per spec.md §4.7).
	for _, g := range mod.Globals {
		v, err := evalConstExpr(mod, inst, g.InitExprPC)
		if err != nil {
			return nil, &InstantiateError{Code: ErrStartTrap, Reason: fmt.Sprintf("global initializer: %v", err)}
		}
		inst.Globals = append(inst.Globals, &Global{Type: g.Type, Mutability: g.Mutability, Value: v, initialized: true})
	}

	// Step 6: active element segments targeting table 0 (or an explicit
	// table index) are copied in now. Passive/declarative segments are
	// retained on the Module for bulk-memory table.init and are not
	// materialized here.
	for _, seg := range mod.Elements {
		if seg.Mode != ElementActive {
			continue
		}
		off, err := evalConstExpr(mod, inst, seg.OffsetPC)
		if err != nil {
			return nil, &InstantiateError{Code: ErrTableOOB, Reason: fmt.Sprintf("element offset: %v", err)}
		}
		if int(seg.TableIndex) >= len(inst.Tables) {
			return nil, &InstantiateError{Code: ErrTableOOB, Reason: "element segment table index out of range"}
		}
		table := inst.Tables[seg.TableIndex]
		base := off.U32()
		indices, err := segmentFuncIndices(mod, inst, seg)
		if err != nil {
			return nil, &InstantiateError{Code: ErrTableOOB, Reason: err.Error()}
		}
		if uint64(base)+uint64(len(indices)) > uint64(len(table.Elements)) {
			return nil, &InstantiateError{Code: ErrTableOOB, Reason: "element segment exceeds table bounds"}
		}
		copy(table.Elements[base:], indices)
	}

	// Step 7: active data segments are copied into memory now.
	for _, seg := range mod.Data {
		if seg.Mode != DataActive {
			continue
		}
		off, err := evalConstExpr(mod, inst, seg.OffsetPC)
		if err != nil {
			return nil, &InstantiateError{Code: ErrDataOOB, Reason: fmt.Sprintf("data offset: %v", err)}
		}
		if int(seg.MemIndex) >= len(inst.Memories) {
			return nil, &InstantiateError{Code: ErrDataOOB, Reason: "data segment memory index out of range"}
		}
		mem := inst.Memories[seg.MemIndex]
		base := uint64(off.U32())
		if base+uint64(len(seg.Bytes)) > uint64(len(mem.Bytes)) {
			return nil, &InstantiateError{Code: ErrDataOOB, Reason: "data segment exceeds memory bounds"}
		}
		copy(mem.Bytes[base:], seg.Bytes)
	}

	// Step 8: exports are already indexed by newInstance via inst.exports.

	logger.Debug("instantiated module",
		zap.String("name", name),
		zap.Int("functions", len(inst.Functions)),
		zap.Int("tables", len(inst.Tables)),
		zap.Int("memories", len(inst.Memories)),
		zap.Int("globals", len(inst.Globals)),
	)

	_ = tableImportSeen
	_ = memImportSeen
	_ = globalImportSeen
	return inst, nil
}

// SegmentElements resolves an element segment's function/null indices
// against an already-instantiated module, for use by the interpreter's
// table.init (spec.md bulk-memory extension); it shares the same
// evaluation logic Instantiate uses for active segments.
func SegmentElements(mod *Module, inst *Instance, seg *ElementSegment) ([]uint32, error) {
	return segmentFuncIndices(mod, inst, seg)
}

func segmentFuncIndices(mod *Module, inst *Instance, seg *ElementSegment) ([]uint32, error) {
	if seg.FuncIndices != nil {
		return seg.FuncIndices, nil
	}
	out := make([]uint32, len(seg.ExprPCs))
	for i, pc := range seg.ExprPCs {
		v, err := evalConstExpr(mod, inst, pc)
		if err != nil {
			return nil, err
		}
		if v.IsNullRef() {
			out[i] = NullTableElement
		} else {
			out[i] = uint32(v.Ref())
		}
	}
	return out, nil
}

// evalConstExpr evaluates a restricted initializer expression (spec.md
// §4.7): a short instruction span made up only of const pushes,
// global.get, ref.null and ref.func, terminated by End. This is
// deliberately a standalone evaluator rather than a call into the
// interpreter package: the interpreter imports wasmcore for the Module/
// Instance/Value types it operates on, so having wasmcore call back into
// the interpreter would form an import cycle. Real engines draw the same
// line — initializer expressions are a tiny, non-Turing-complete subset
// of the instruction set and don't need a general-purpose stack machine.
func evalConstExpr(mod *Module, inst *Instance, pc uint32) (Value, error) {
	var result Value
	have := false
	for {
		instr := mod.Instructions[pc]
		switch instr.Op {
		case OpConstI32:
			result, have = I32Value(instr.I32), true
		case OpConstI64:
			result, have = I64Value(instr.I64), true
		case OpConstF32:
			result, have = F32Value(math.Float32frombits(instr.F32)), true
		case OpConstF64:
			result, have = F64Value(math.Float64frombits(instr.F64)), true
		case OpGlobalGet:
			if int(instr.Index) >= len(inst.Globals) {
				return Value{}, fmt.Errorf("global.get index %d out of range in const expr", instr.Index)
			}
			result, have = inst.Globals[instr.Index].Value, true
		case OpRefNull:
			result, have = NullRefValue(), true
		case OpRefFunc:
			result, have = RefValue(uint64(instr.FuncIndex)), true
		case OpEnd:
			if !have {
				return Value{}, fmt.Errorf("constant expression produced no value")
			}
			return result, nil
		default:
			return Value{}, fmt.Errorf("opcode %d not permitted in a constant expression", instr.Op)
		}
		pc++
	}
}
