package interpreter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outpostwasm/outpost/api"
	"github.com/outpostwasm/outpost/internal/interpreter"
	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// buildAdd hand-assembles a single-function module equivalent to
//
//	(func (param i32 i32) (result i32) local.get 0 local.get 1 i32.add)
//
// bypassing the decoder entirely, to exercise the interpreter's dispatch
// loop and stack discipline in isolation.
func buildAdd() *wasmcore.Module {
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		Instructions: []wasmcore.Instruction{
			{Op: wasmcore.OpLocalGet, Index: 0},
			{Op: wasmcore.OpLocalGet, Index: 1},
			{Op: wasmcore.OpNumeric, Sub: wasmcore.SubAdd},
			{Op: wasmcore.OpEnd, Target: 0},
		},
	}
	body := &wasmcore.FuncBody{CodeStart: 0, CodeEnd: 3, LastPC: 2}
	mod.Functions = []*wasmcore.FunctionEntry{{TypeIndex: 0, Body: body, DebugName: "add"}}
	return mod
}

func mustInstantiate(t *testing.T, mod *wasmcore.Module) *wasmcore.Instance {
	t.Helper()
	inst, err := wasmcore.Instantiate(mod, "test", wasmcore.Imports{}, nil)
	require.NoError(t, err)
	return inst
}

func TestCallAdd(t *testing.T) {
	mod := buildAdd()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	results, err := eng.Call(inst, inst.Functions[0], []wasmcore.Value{
		wasmcore.I32Value(2), wasmcore.I32Value(40),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(42), results[0].I32())
}

func TestCallArityMismatchTraps(t *testing.T) {
	mod := buildAdd()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	_, err := eng.Call(inst, inst.Functions[0], []wasmcore.Value{wasmcore.I32Value(1)})
	require.Error(t, err)
	var trapErr *interpreter.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, interpreter.TrapTypeMismatch, trapErr.Code)
}

// buildDivZero builds (func (param i32 i32) (result i32) local.get 0
// local.get 1 i32.div_s), to exercise DIV_ZERO trap propagation.
func buildDivZero() *wasmcore.Module {
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		Instructions: []wasmcore.Instruction{
			{Op: wasmcore.OpLocalGet, Index: 0},
			{Op: wasmcore.OpLocalGet, Index: 1},
			{Op: wasmcore.OpNumeric, Sub: wasmcore.SubDivS},
			{Op: wasmcore.OpEnd, Target: 0},
		},
	}
	body := &wasmcore.FuncBody{CodeStart: 0, CodeEnd: 3, LastPC: 2}
	mod.Functions = []*wasmcore.FunctionEntry{{TypeIndex: 0, Body: body, DebugName: "div"}}
	return mod
}

func TestDivByZeroTraps(t *testing.T) {
	mod := buildDivZero()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	_, err := eng.Call(inst, inst.Functions[0], []wasmcore.Value{
		wasmcore.I32Value(10), wasmcore.I32Value(0),
	})
	require.Error(t, err)
	var trapErr *interpreter.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, interpreter.TrapDivZero, trapErr.Code)
	require.Contains(t, trapErr.Frames, "div")
}

// buildCallChain builds two functions: callee (i32)->i32 doubling its
// argument, and caller () -> i32 that calls callee with a constant,
// exercising OpCall / nested invoke / recursive run.
func buildCallChain() *wasmcore.Module {
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
			{Results: []api.ValueType{api.ValueTypeI32}},
		},
		Instructions: []wasmcore.Instruction{
			// callee: local.get 0, local.get 0, i32.add, end
			{Op: wasmcore.OpLocalGet, Index: 0},
			{Op: wasmcore.OpLocalGet, Index: 0},
			{Op: wasmcore.OpNumeric, Sub: wasmcore.SubAdd},
			{Op: wasmcore.OpEnd, Target: 0},
			// caller: i32.const 21, call 0, end
			{Op: wasmcore.OpConstI32, I32: 21},
			{Op: wasmcore.OpCall, FuncIndex: 0},
			{Op: wasmcore.OpEnd, Target: 4},
		},
	}
	calleeBody := &wasmcore.FuncBody{CodeStart: 0, CodeEnd: 3, LastPC: 2}
	callerBody := &wasmcore.FuncBody{CodeStart: 4, CodeEnd: 6, LastPC: 5}
	mod.Functions = []*wasmcore.FunctionEntry{
		{TypeIndex: 0, Body: calleeBody, DebugName: "double"},
		{TypeIndex: 1, Body: callerBody, DebugName: "caller"},
	}
	return mod
}

func TestNestedCall(t *testing.T) {
	mod := buildCallChain()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	results, err := eng.Call(inst, inst.Functions[1], nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(42), results[0].I32())
}

// buildStartExport hand-assembles
//
//	(func (export "_start") i32.const 41 i32.const 1 i32.add drop)
//
// exercising spec.md §8's S2 scenario: running to completion, leaving the
// value stack empty, with no trap (the caller — cmd/outpost run.go, or
// Runtime.CallExported directly — treats a nil error as exit code 0, per
// Open Question #1's decision that only an explicit caller ever runs
// `_start`).
func buildStartExport() *wasmcore.Module {
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{{}},
		Instructions: []wasmcore.Instruction{
			{Op: wasmcore.OpConstI32, I32: 41},
			{Op: wasmcore.OpConstI32, I32: 1},
			{Op: wasmcore.OpNumeric, Sub: wasmcore.SubAdd},
			{Op: wasmcore.OpDrop},
			{Op: wasmcore.OpEnd, Target: 0},
		},
		Exports: []*wasmcore.Export{{Name: "_start", Kind: 0x00, Index: 0}},
	}
	body := &wasmcore.FuncBody{CodeStart: 0, CodeEnd: 5, LastPC: 4}
	mod.Functions = []*wasmcore.FunctionEntry{{TypeIndex: 0, Body: body, DebugName: "_start"}}
	return mod
}

func TestStartExportSpecS2(t *testing.T) {
	mod := buildStartExport()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	fe, err := inst.ExportedFunction("_start")
	require.NoError(t, err)

	results, err := eng.Call(inst, fe, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

// buildIfElse hand-assembles
//
//	(func (param i32) (result i32)
//	  local.get 0
//	  if (result i32) i32.const 10 else i32.const 20 end)
//
// exercising spec.md §8's S4 scenario.
func buildIfElse() *wasmcore.Module {
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{
			{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		Instructions: []wasmcore.Instruction{
			{Op: wasmcore.OpLocalGet, Index: 0}, // 0
			{Op: wasmcore.OpIf, Target: 4},      // 1: cond==0 -> jump to else at 4
			{Op: wasmcore.OpConstI32, I32: 10},  // 2: then-branch
			{Op: wasmcore.OpBr, Target: 6},      // 3: skip the else-branch
			{Op: wasmcore.OpElse},                // 4
			{Op: wasmcore.OpConstI32, I32: 20},  // 5: else-branch
			{Op: wasmcore.OpEnd, Target: 0},     // 6
		},
	}
	body := &wasmcore.FuncBody{CodeStart: 0, CodeEnd: 7, LastPC: 6}
	mod.Functions = []*wasmcore.FunctionEntry{{TypeIndex: 0, Body: body, DebugName: "select"}}
	return mod
}

func TestIfElseSpecS4(t *testing.T) {
	mod := buildIfElse()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	for _, c := range []struct {
		cond int32
		want int32
	}{
		{cond: 1, want: 10},
		{cond: 0, want: 20},
	} {
		results, err := eng.Call(inst, inst.Functions[0], []wasmcore.Value{wasmcore.I32Value(c.cond)})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, c.want, results[0].I32(), "cond=%d", c.cond)
	}
}

// buildCountingLoop hand-assembles a function with one i32 local that
// increments it in a loop, branching back to the loop head with br_if
// while the counter stays below 1,000,000, exercising spec.md §8's S5
// scenario ("(loop (br 0)) ... cancellable only by external termination")
// without an actual unbounded loop: the br_if condition is what a real
// decoder would emit for a bounded `loop` construct, and it exercises the
// same OpLoop/OpBrIf back-edge the unconditional form would, while proving
// the loop does not grow the value stack per iteration (no STACK_OVERFLOW
// across a million iterations).
func buildCountingLoop(limit int32) *wasmcore.Module {
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{
			{Results: []api.ValueType{api.ValueTypeI32}},
		},
		Instructions: []wasmcore.Instruction{
			{Op: wasmcore.OpLoop},                                  // 0
			{Op: wasmcore.OpLocalGet, Index: 0},                    // 1
			{Op: wasmcore.OpConstI32, I32: 1},                      // 2
			{Op: wasmcore.OpNumeric, Sub: wasmcore.SubAdd},         // 3
			{Op: wasmcore.OpLocalTee, Index: 0},                    // 4
			{Op: wasmcore.OpConstI32, I32: limit},                  // 5
			{Op: wasmcore.OpNumeric, Sub: wasmcore.SubLtS},         // 6
			{Op: wasmcore.OpBrIf, Target: 0},                       // 7: loop while counter < limit
			{Op: wasmcore.OpLocalGet, Index: 0},                    // 8
			{Op: wasmcore.OpEnd, Target: 0},                        // 9
		},
	}
	body := &wasmcore.FuncBody{
		Locals:    []wasmcore.LocalGroup{{Count: 1, Type: api.ValueTypeI32}},
		CodeStart: 0, CodeEnd: 10, LastPC: 9,
	}
	mod.Functions = []*wasmcore.FunctionEntry{{TypeIndex: 0, Body: body, DebugName: "count"}}
	return mod
}

func TestLoopBrIfSpecS5(t *testing.T) {
	const limit = 1000000
	mod := buildCountingLoop(limit)
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	results, err := eng.Call(inst, inst.Functions[0], nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(limit), results[0].I32())
}

// buildCallIndirectOOB hand-assembles a module with a one-slot, all-null
// function table and a function that immediately call_indirects through
// index 1 (past the table's size), exercising spec.md §8's S6 scenario.
func buildCallIndirectOOB() *wasmcore.Module {
	fnType := &wasmcore.FunctionType{Results: []api.ValueType{api.ValueTypeI32}}
	mod := &wasmcore.Module{
		Types: []*wasmcore.FunctionType{fnType},
		Tables: []*wasmcore.Table{
			{RefKind: api.RefTypeFuncRef, Limits: wasmcore.Limits{Minimum: 1}},
		},
		Instructions: []wasmcore.Instruction{
			{Op: wasmcore.OpConstI32, I32: 1}, // 0: out-of-range table index
			{Op: wasmcore.OpCallIndirect, TableIndex: 0, TypeIndex: 0}, // 1
			{Op: wasmcore.OpEnd, Target: 0},   // 2
		},
	}
	body := &wasmcore.FuncBody{CodeStart: 0, CodeEnd: 3, LastPC: 2}
	mod.Functions = []*wasmcore.FunctionEntry{{TypeIndex: 0, Body: body, DebugName: "indirect"}}
	return mod
}

func TestCallIndirectOOBSpecS6(t *testing.T) {
	mod := buildCallIndirectOOB()
	inst := mustInstantiate(t, mod)
	eng := interpreter.New(nil)

	_, err := eng.Call(inst, inst.Functions[0], nil)
	require.Error(t, err)
	var trapErr *interpreter.TrapError
	require.ErrorAs(t, err, &trapErr)
	require.Equal(t, interpreter.TrapIndirectOOB, trapErr.Code)
	// The call_indirect instruction is at index 1 in this module's flat
	// instruction array; the trap must report exactly that pc.
	require.EqualValues(t, 1, trapErr.PC)
	require.Contains(t, trapErr.Frames, "indirect")
}
