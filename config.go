// Package outpost is the public facade over the decoder, instantiator and
// interpreter: NewRuntime, Runtime.CompileModule, Runtime.Instantiate, in
// the style of the teacher's wazero.Runtime builder/config split.
package outpost

import "go.uber.org/zap"

// RuntimeConfig configures a Runtime, grown the way the teacher's
// config.go/builder.go pair does: a small struct built up through
// functional options rather than exported fields, so new toggles can be
// added without breaking callers.
type RuntimeConfig struct {
	logger *zap.Logger

	// referenceTypes, bulkMemory, signExtension and satTrunc record the
	// extension toggles (spec.md §1). All default true. CompileModule does
	// not consult them: the decoder accepts every extension's opcodes
	// whatever these are set to.
	referenceTypes bool
	bulkMemory     bool
	signExtension  bool
	satTrunc       bool

	// maxStackSlots records a per-call value-stack ceiling (spec.md §5).
	// The interpreter does not read it; it applies its own fixed ceiling,
	// equal to this field's default.
	maxStackSlots int
}

// RuntimeConfigOption configures a RuntimeConfig, following the teacher's
// functional-options convention (wazero.RuntimeConfig's With* methods,
// reshaped as free functions so they compose with NewRuntime directly).
type RuntimeConfigOption func(*RuntimeConfig)

// WithLogger overrides the runtime's structured logger; the default is a
// no-op logger, matching the teacher's silent-by-default posture.
func WithLogger(logger *zap.Logger) RuntimeConfigOption {
	return func(c *RuntimeConfig) { c.logger = logger }
}

// WithReferenceTypes records whether reference-type opcodes
// (externref/funcref, table.get/set, ref.null/is_null/func) are enabled.
// The decoder accepts them either way.
func WithReferenceTypes(enabled bool) RuntimeConfigOption {
	return func(c *RuntimeConfig) { c.referenceTypes = enabled }
}

// WithBulkMemory records whether the 0xFC bulk-memory and table
// sub-opcodes (memory.init/copy/fill, table.init/copy/grow/...) are
// enabled. The decoder accepts them either way.
func WithBulkMemory(enabled bool) RuntimeConfigOption {
	return func(c *RuntimeConfig) { c.bulkMemory = enabled }
}

// WithSignExtension records whether the i32/i64
// extend8_s/extend16_s/extend32_s opcodes are enabled. The decoder
// accepts them either way.
func WithSignExtension(enabled bool) RuntimeConfigOption {
	return func(c *RuntimeConfig) { c.signExtension = enabled }
}

// WithSaturatingTruncation records whether the 0xFC trunc_sat opcodes are
// enabled. The decoder accepts them either way.
func WithSaturatingTruncation(enabled bool) RuntimeConfigOption {
	return func(c *RuntimeConfig) { c.satTrunc = enabled }
}

// WithMaxStackSlots records a per-call value-stack ceiling (spec.md §5's
// STACK_OVERFLOW threshold) on the config. The interpreter does not read
// it and keeps its own fixed ceiling.
func WithMaxStackSlots(n int) RuntimeConfigOption {
	return func(c *RuntimeConfig) { c.maxStackSlots = n }
}

func newConfig(opts []RuntimeConfigOption) *RuntimeConfig {
	c := &RuntimeConfig{
		logger:         zap.NewNop(),
		referenceTypes: true,
		bulkMemory:     true,
		signExtension:  true,
		satTrunc:       true,
		maxStackSlots:  4 * 1024 * 1024 / 8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
