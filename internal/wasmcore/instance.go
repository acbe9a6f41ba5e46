package wasmcore

import "fmt"

// Instance is the post-instantiation state of a Module: materialized
// memories/tables/globals, the function index space with imports already
// resolved, and the export table used to look functions back up by name.
// This mirrors the Module/ModuleInstance split real wazero uses internally
// (decode-time Module stays read-only and shareable; Instance is the
// mutable, single-use linked result).
type Instance struct {
	Name string

	Module *Module

	// Functions mirrors Module.Functions for locals, but has imported slots
	// already bound to the resolved host or instance callback.
	Functions []*FunctionEntry
	Tables    []*Table
	Memories  []*Memory
	Globals   []*Global

	exports map[string]*Export

	closed     bool
	exitCode   uint32
}

func newInstance(name string, m *Module) *Instance {
	inst := &Instance{
		Name:    name,
		Module:  m,
		exports: make(map[string]*Export, len(m.Exports)),
	}
	for _, e := range m.Exports {
		inst.exports[e.Name] = e
	}
	return inst
}

// ExportedFunction resolves an exported function by name, per spec.md §6's
// "look up an export by name and invoke it" contract.
func (i *Instance) ExportedFunction(name string) (*FunctionEntry, error) {
	e, ok := i.exports[name]
	if !ok {
		return nil, fmt.Errorf("no such export: %q", name)
	}
	if e.Kind != 0x00 { // api.ExternTypeFunc
		return nil, fmt.Errorf("export %q is not a function", name)
	}
	if int(e.Index) >= len(i.Functions) {
		return nil, fmt.Errorf("export %q: function index %d out of range", name, e.Index)
	}
	return i.Functions[e.Index], nil
}

// Memory returns the instance's linear memory by index, or nil if it has
// none at that index. The MVP only ever has a single memory (index 0), but
// the index is threaded through for forward compatibility with multi-memory.
func (i *Instance) Memory(idx uint32) *Memory {
	if int(idx) >= len(i.Memories) {
		return nil
	}
	return i.Memories[idx]
}

// ReadMemory grants a host callback read access to the module's linear
// memory, per spec.md §4.8.
func (i *Instance) ReadMemory(offset, length uint32) ([]byte, bool) {
	mem := i.Memory(0)
	if mem == nil {
		return nil, false
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(mem.Bytes)) {
		return nil, false
	}
	return mem.Bytes[offset:end], true
}

// WriteMemory grants a host callback write access to the module's linear
// memory, per spec.md §4.8.
func (i *Instance) WriteMemory(offset uint32, data []byte) bool {
	mem := i.Memory(0)
	if mem == nil {
		return false
	}
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(mem.Bytes)) {
		return false
	}
	copy(mem.Bytes[offset:end], data)
	return true
}

// Close marks the instance closed and records an exit code, mirroring the
// teacher's CloseWithExitCode convenience used by the WASI proc_exit bridge.
func (i *Instance) Close(exitCode uint32) {
	i.closed = true
	i.exitCode = exitCode
}

func (i *Instance) Closed() (bool, uint32) { return i.closed, i.exitCode }
