package wasmcore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	require.Equal(t, int32(-42), I32Value(-42).I32())
	require.Equal(t, uint32(42), U32Value(42).U32())
	require.Equal(t, int64(-9000000000), I64Value(-9000000000).I64())
	require.Equal(t, uint64(9000000000), U64Value(9000000000).U64())
	require.Equal(t, float32(3.5), F32Value(3.5).F32())
	require.Equal(t, 3.140625, F64Value(3.140625).F64())

	lo, hi := V128Value(1, 2).V128()
	require.Equal(t, uint64(1), lo)
	require.Equal(t, uint64(2), hi)
}

func TestValueBoolValue(t *testing.T) {
	require.Equal(t, int32(1), BoolValue(true).I32())
	require.Equal(t, int32(0), BoolValue(false).I32())
}

func TestValueNullRef(t *testing.T) {
	null := NullRefValue()
	require.True(t, null.IsNullRef())

	ref := RefValue(7)
	require.False(t, ref.IsNullRef())
	require.Equal(t, uint64(7), ref.Ref())
}

func TestValueFloatBitPatternPreserved(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001)
	v := F32Value(nan)
	require.Equal(t, math.Float32bits(nan), math.Float32bits(v.F32()))
}

func TestValueKindString(t *testing.T) {
	for _, c := range []struct {
		kind     ValueKind
		expected string
	}{
		{KindNOP, "nop"},
		{KindI32, "i32"},
		{KindU32, "u32"},
		{KindI64, "i64"},
		{KindU64, "u64"},
		{KindF32, "f32"},
		{KindF64, "f64"},
		{KindV128, "v128"},
		{KindRef, "ref"},
	} {
		require.Equal(t, c.expected, c.kind.String())
	}
}
