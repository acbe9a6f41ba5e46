package outpost

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/outpostwasm/outpost/internal/interpreter"
	"github.com/outpostwasm/outpost/internal/wasmbin"
	"github.com/outpostwasm/outpost/internal/wasmcore"
)

// Module is a decoded, not-yet-instantiated binary, per spec.md §3's
// Module lifecycle stage. It carries no host bindings and can be
// instantiated any number of times.
type Module = wasmcore.Module

// Instance is a linked, runnable module, per spec.md §3's Instance
// lifecycle stage.
type Instance = wasmcore.Instance

// Value is a tagged operand as it crosses the host/guest boundary (call
// arguments, call results, host-function marshaling).
type Value = wasmcore.Value

// Imports maps `module name -> field name -> binding`, the external
// interface spec.md §6 describes for resolving a module's imports.
type Imports = wasmcore.Imports

// ImportValue is one import binding: a host callback (ImportKindFunc) or
// an initial value (ImportKindGlobal). Table/Memory imports need no
// payload — see wasmcore.ImportValue's doc comment.
type ImportValue = wasmcore.ImportValue

// HostFunc is the callback signature the interpreter invokes for Func
// imports, per spec.md §4.8.
type HostFunc = wasmcore.HostFunc

// Runtime compiles and instantiates WebAssembly modules, the facade the
// teacher's wazero.Runtime plays for its own compiler/engine pair.
type Runtime struct {
	cfg    *RuntimeConfig
	engine *interpreter.Engine
}

// NewRuntime constructs a Runtime. With no options it decodes every
// extension spec.md §1 names and caps the interpreter stack at the
// spec.md §5 default.
func NewRuntime(opts ...RuntimeConfigOption) *Runtime {
	cfg := newConfig(opts)
	return &Runtime{cfg: cfg, engine: interpreter.New(cfg.logger)}
}

// CompileModule decodes a Wasm binary into a Module, per spec.md §4's
// decode procedure (C1-C4). It performs no instantiation and touches no
// host state.
func (r *Runtime) CompileModule(wasm []byte) (*Module, error) {
	mod, err := wasmbin.Decode(wasm)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	r.cfg.logger.Debug("compiled module",
		zap.Int("bytes", len(wasm)),
		zap.Int("functions", len(mod.Functions)),
		zap.Int("types", len(mod.Types)),
	)
	return mod, nil
}

// Instantiate links mod against imports, per spec.md §4.5. It never
// invokes mod.StartFunc: per the decided Open Question #1, only the
// `_start` export is ever called, and only by an explicit caller (see
// CallExported and cmd/outpost run.go) — the decoded Start section index
// is retained on Module for inspection but is not auto-run.
func (r *Runtime) Instantiate(mod *Module, name string, imports Imports) (*Instance, error) {
	inst, err := wasmcore.Instantiate(mod, name, imports, r.cfg.logger)
	if err != nil {
		return nil, fmt.Errorf("instantiate %q: %w", name, err)
	}
	return inst, nil
}

// Call invokes an already-resolved function entry (typically obtained via
// Instance.ExportedFunction), returning its results or the trap/host
// error that aborted it.
func (r *Runtime) Call(inst *Instance, fe *wasmcore.FunctionEntry, args []Value) ([]Value, error) {
	return r.engine.Call(inst, fe, args)
}

// CallExported looks up name in inst's exports and calls it, the common
// case spec.md §6's CLI contract exercises directly.
func (r *Runtime) CallExported(inst *Instance, name string, args []Value) ([]Value, error) {
	fe, err := inst.ExportedFunction(name)
	if err != nil {
		return nil, err
	}
	return r.engine.Call(inst, fe, args)
}
