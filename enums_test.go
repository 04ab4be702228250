package bddisasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumFromRaw(t *testing.T) {
	tests := []struct {
		name    string
		decode  func(uint32) (uint8, error)
		valid   []uint32
		invalid []uint32
	}{
		{"addressing mode", rawEnum[AddressingMode](int(numAddrModes)), []uint32{0, 1, 2}, []uint32{3, 15}},
		{"operand mode", rawEnum[OperandMode](int(numOpModes)), []uint32{0, 2}, []uint32{3}},
		{"vector mode", rawEnum[VectorMode](int(numVecModes)), []uint32{0, 2}, []uint32{3}},
		{"encoding mode", rawEnum[EncodingMode](int(numEncModes)), []uint32{0, 3}, []uint32{4}},
		{"exception class", rawEnum[ExceptionClass](int(numExcClasses)), []uint32{0, 4}, []uint32{5}},
		{"rounding mode", rawEnum[RoundingMode](int(numRoundingModes)), []uint32{0, 3}, []uint32{4}},
		{"tuple type", rawEnum[TupleType](int(numTupleTypes)), []uint32{0, 16}, []uint32{17, 255}},
		{"shadow stack", rawEnum[ShadowStackAccess](int(numShStk)), []uint32{0, 4}, []uint32{5}},
		{"register type", asUint8(regTypeFromRaw), []uint32{1, 21}, []uint32{0, 22}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range tt.valid {
				got, err := tt.decode(v)
				require.NoError(t, err)
				assert.Equal(t, uint8(v), got)
			}
			for _, v := range tt.invalid {
				_, err := tt.decode(v)
				var ie *InternalError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, uint64(v), ie.Value)
			}
		})
	}
}

func rawEnum[T ~uint8](n int) func(uint32) (uint8, error) {
	return asUint8(func(v uint32) (T, error) { return enumFromRaw[T](v, n) })
}

func asUint8[T ~uint8](f func(uint32) (T, error)) func(uint32) (uint8, error) {
	return func(v uint32) (uint8, error) {
		r, err := f(v)
		return uint8(r), err
	}
}

func TestOpSizeFromRaw(t *testing.T) {
	// Any byte count is a size, named or not.
	for _, s := range []uint32{0, 1, 2, 3, 4, 6, 8, 10, 12, 14, 16, 24, 28, 32, 40, 48, 64, 94, 108, 512, 1024} {
		got := opSizeFromRaw(s)
		assert.Equal(t, OpSize(s), got)
		n, ok := got.Bytes()
		assert.True(t, ok, "size %d", s)
		assert.Equal(t, s, n)
	}

	cl := opSizeFromRaw(0xFFFFFFFE)
	_, ok := cl.Bytes()
	assert.False(t, ok)
	assert.Equal(t, "cache line", cl.String())

	unknown := opSizeFromRaw(0xFFFFFFFF)
	_, ok = unknown.Bytes()
	assert.False(t, ok)
	assert.Equal(t, "unknown", unknown.String())
	assert.Equal(t, "12", opSizeFromRaw(12).String())

	n, ok := Size512Bit.Bytes()
	assert.True(t, ok)
	assert.Equal(t, uint32(64), n)
}

func TestFpuFlagAccessIsTotal(t *testing.T) {
	for v := 0; v < 256; v++ {
		a := fpuFlagAccessFromBits(uint8(v))
		assert.LessOrEqual(t, a, FpuUndefined)
		assert.NotEmpty(t, a.String())
	}
}

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "GPR", RegGpr.String())
	assert.Equal(t, "UIF", RegUif.String())
	assert.Equal(t, "unknown(30)", RegType(30).String())
	assert.Equal(t, "T1_4X", TupleT1x4.String())
	assert.Equal(t, "evex", EncEvex.String())
	assert.Equal(t, "S", OpEncS.String())
	assert.Equal(t, "ru-sae", RoundUp.String())
}

func TestDecodeMode(t *testing.T) {
	for _, bits := range []int{16, 32, 64} {
		m, ok := ModeFromBits(bits)
		require.True(t, ok)
		assert.True(t, m.Valid())
		c, d := m.native()
		assert.Equal(t, c, d)
	}
	_, ok := ModeFromBits(8)
	assert.False(t, ok)
	assert.False(t, DecodeMode(3).Valid())
	assert.Equal(t, "invalid", DecodeMode(3).String())
}
