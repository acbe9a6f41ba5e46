package wasmcore

import (
	"fmt"
	"strings"

	"github.com/outpostwasm/outpost/api"
)

// PageSize is one Wasm linear-memory page: 64 KiB (spec.md §3).
const PageSize = 1 << 16

// Implementation-defined ceilings, treated as invariants per spec.md §3.
const (
	DefaultTableMax  = 0x100000 // slots
	DefaultMemoryMax = 0x8000   // pages (= 2^31 bytes, the Wasm address-space ceiling)
)

// FunctionType is `(params, results)`, indexed by type-id within a Module.
type FunctionType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

func (t *FunctionType) String() string {
	p := make([]string, len(t.Params))
	for i, v := range t.Params {
		p[i] = api.ValueTypeName(v)
	}
	r := make([]string, len(t.Results))
	for i, v := range t.Results {
		r[i] = api.ValueTypeName(v)
	}
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(p, ", "), strings.Join(r, ", "))
}

func (t *FunctionType) Equal(o *FunctionType) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return string(t.Params) == string(o.Params) && string(t.Results) == string(o.Results)
}

// Limits is `{flag, minimum, maximum}`; flag&1 indicates an explicit
// maximum was encoded (spec.md §3).
type Limits struct {
	Minimum uint32
	Maximum uint32
	HasMax  bool
}

// Table is `{ref_kind, limits, elements}` (spec.md §3). Elements holds
// function indices once instantiated; -1 (as ^uint32(0)) marks a null slot.
type Table struct {
	RefKind  api.RefType
	Limits   Limits
	Elements []uint32
}

const NullTableElement = ^uint32(0)

// Memory is `{limits, bytes}` (spec.md §3). One page = PageSize bytes.
type Memory struct {
	Limits Limits
	Bytes  []byte
}

func (m *Memory) MaxBytes() uint64 {
	if m.Limits.HasMax {
		return uint64(m.Limits.Maximum) * PageSize
	}
	return uint64(DefaultMemoryMax) * PageSize
}

// Mutability distinguishes Global.Const from Global.Var as distinct sum
// variants (spec.md §3) so write-protection is structural, not a runtime
// flag check alone.
type Mutability byte

const (
	Const Mutability = iota
	Var
)

// Global is `{value_type, mutability, value, init_expr_span}` (spec.md §3).
type Global struct {
	Type        api.ValueType
	Mutability  Mutability
	Value       Value
	InitExprPC  uint32 // program counter of the initializer expression, pre-instantiation
	initialized bool
}

func (g *Global) Set(v Value) error {
	if g.Mutability == Const {
		return fmt.Errorf("%w: global is const", ErrConstWrite)
	}
	g.Value = v
	return nil
}

// ImportKind discriminates the payload of an Import (spec.md §3).
type ImportKind byte

const (
	ImportKindFunc ImportKind = iota
	ImportKindTable
	ImportKindMemory
	ImportKindGlobal
)

// Import is `{module_name, field_name, kind}` (spec.md §3).
type Import struct {
	Module string
	Field  string
	Kind   ImportKind

	// Populated according to Kind.
	FuncTypeIndex  uint32
	TableRefKind   api.RefType
	TableLimits    Limits
	MemoryLimits   Limits
	GlobalType     api.ValueType
	GlobalMut      Mutability
}

// ExportKind discriminates the payload of an Export (spec.md §3).
type ExportKind = api.ExternType

// Export is `{name, kind(index)}` (spec.md §3).
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// FuncBody is `{locals, code_span}` (spec.md §3).
type FuncBody struct {
	Locals    []LocalGroup
	CodeStart uint32
	CodeEnd   uint32
	LastPC    uint32
}

type LocalGroup struct {
	Count uint32
	Type  api.ValueType
}

func (b *FuncBody) NumLocals() int {
	n := 0
	for _, g := range b.Locals {
		n += int(g.Count)
	}
	return n
}

// HostFunc is the callback signature for Func imports (spec.md §4.8):
// given the instance (for memory access) and the argument values, it
// returns the result values.
type HostFunc func(inst *Instance, args []Value) ([]Value, error)

// FunctionEntry is a sum of Host(type_id, callback) and Local(type_id,
// body), per spec.md §3. The function array holds imports first, locals
// second, in declaration order (invariant from spec.md §3 lifecycle).
type FunctionEntry struct {
	TypeIndex uint32
	IsHost    bool
	Host      HostFunc
	Body      *FuncBody // nil when IsHost
	// DebugName identifies this function for traps/inspection, following
	// the teacher's FunctionDefinition.DebugName convention.
	DebugName string
}

// Location is the resolved span of a structured control block, computed at
// decode time (spec.md §3): body_start_pc, end_pc, last_inst_pc.
type Location struct {
	BodyStart uint32
	End       uint32
	LastInst  uint32
}

// Module aggregates the decode-time, read-only representation of a Wasm
// binary (spec.md §3): raw bytes, header, sections, the flat instruction
// array, the flat function array, exports, and the declared-but-not-yet-
// materialized tables/memories/globals.
type Module struct {
	Raw     []byte
	Version uint32

	Types     []*FunctionType
	Imports   []*Import
	Functions []*FunctionEntry // imports first, then locally defined functions
	Tables    []*Table
	Memories  []*Memory
	Globals   []*Global
	Exports   []*Export
	StartFunc *uint32 // function index of the Start section, if any

	Elements []*ElementSegment
	Data     []*DataSegment

	// Instructions is the single flat array shared by every function body
	// and every constant/initializer expression in the module (spec.md §3).
	Instructions []Instruction

	DataCount *uint32 // from the data-count section, if present

	// ImportedFuncCount/ImportedTableCount/... record where the imported
	// prefix of each index space ends, so the instantiator knows which
	// locally declared entries still need materializing.
	ImportedFuncCount   uint32
	ImportedTableCount  uint32
	ImportedMemoryCount uint32
	ImportedGlobalCount uint32
}

// ElementSegmentMode distinguishes the 8 element-segment encodings
// (spec.md §4.3, E0x00-E0x07) by the axes that matter at instantiation.
type ElementSegmentMode byte

const (
	ElementActive ElementSegmentMode = iota
	ElementPassive
	ElementDeclarative
)

type ElementSegment struct {
	Mode       ElementSegmentMode
	TableIndex uint32
	OffsetPC   uint32 // program counter of the offset initializer expression (active only)
	RefKind    api.RefType
	// FuncIndices is set when the segment encodes a plain function-index
	// list; ExprPCs is set when each element is itself an expression
	// (spec.md §4.3 distinguishes these per flag byte).
	FuncIndices []uint32
	ExprPCs     []uint32
	dropped     bool
}

// Drop marks the segment consumed by elem.drop; subsequent table.init
// calls against it trap unless their length is zero (spec.md bulk-memory
// extension).
func (s *ElementSegment) Drop() { s.dropped = true }

func (s *ElementSegment) Dropped() bool { return s.dropped }

type DataSegmentMode byte

const (
	DataActive DataSegmentMode = iota
	DataPassive
)

type DataSegment struct {
	Mode      DataSegmentMode
	MemIndex  uint32
	OffsetPC  uint32 // program counter of the offset initializer expression (active only)
	Bytes     []byte
	dropped   bool
}

// Drop marks the segment consumed by data.drop; subsequent memory.init
// calls against it trap unless their length is zero (spec.md bulk-memory
// extension).
func (s *DataSegment) Drop() { s.dropped = true }

func (s *DataSegment) Dropped() bool { return s.dropped }
