package bddisasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperandLookupPush(t *testing.T) {
	ins := fakeDecode(t, []byte{0x53}, 0)
	lut, err := ins.OperandLookup()
	require.NoError(t, err)

	dst, ok := lut.Dst(0)
	require.True(t, ok)
	mem, ok := lut.Mem(0)
	require.True(t, ok)
	stack, ok := lut.Stack()
	require.True(t, ok)

	assert.Equal(t, dst, mem)
	assert.Equal(t, dst, stack)
	assert.True(t, stack.IsDefault)

	_, ok = lut.Rbx()
	assert.False(t, ok, "rbx is an explicit operand")

	src, ok := lut.Src(0)
	require.True(t, ok)
	reg, ok := src.Reg()
	require.True(t, ok)
	assert.Equal(t, RegGpr, reg.Type)
	assert.Equal(t, uint32(GprRbx), reg.Index)

	rsp, ok := lut.Rsp()
	require.True(t, ok)
	assert.True(t, rsp.IsDefault)

	_, ok = lut.Flags()
	assert.False(t, ok)
	_, ok = lut.Mem(1)
	assert.False(t, ok)
}

func TestOperandLookupBounds(t *testing.T) {
	ins := fakeDecode(t, []byte{0x53}, 0)
	lut, err := ins.OperandLookup()
	require.NoError(t, err)

	for _, n := range []int{-1, maxLookupDst, 100} {
		_, ok := lut.Dst(n)
		assert.False(t, ok, "dst %d", n)
	}
	_, ok := lut.Src(maxLookupSrc)
	assert.False(t, ok)
	_, ok = lut.Gpr(numLookupGprs)
	assert.False(t, ok)
}

func TestOperandLookupImplicitRegisters(t *testing.T) {
	ins := fakeDecode(t, []byte{0x75, 0x10}, 0)
	lut, err := ins.OperandLookup()
	require.NoError(t, err)

	rip, ok := lut.Rip()
	require.True(t, ok)
	assert.True(t, rip.Access.CondWrite())

	flags, ok := lut.Flags()
	require.True(t, ok)
	reg, _ := flags.Reg()
	assert.Equal(t, RegFlags, reg.Type)

	// The relative offset, RIP and the flags are all read.
	for i := 0; i < 3; i++ {
		_, ok := lut.Src(i)
		assert.True(t, ok, "src %d", i)
	}
	_, ok = lut.Src(3)
	assert.False(t, ok)

	far := fakeDecode(t, []byte{0x9a, 0x78, 0x56, 0x34, 0x12, 0x08, 0x00}, 0)
	lut, err = far.OperandLookup()
	require.NoError(t, err)
	_, ok = lut.Cs()
	assert.True(t, ok)
	_, ok = lut.Ss()
	assert.False(t, ok)
}

func TestOperandLookupHigh8Default(t *testing.T) {
	// An implicit AH lands in the RAX slot once normalized.
	ah := Operand{
		Info:      OpReg{Type: RegGpr, Size: 1, Index: 0, IsHigh8: true},
		Access:    AccessWrite,
		IsDefault: true,
	}
	lut := newOperandLookup([]Operand{ah})
	got, ok := lut.Rax()
	require.True(t, ok)
	assert.Equal(t, ah, got)
	_, ok = lut.Rsp()
	assert.False(t, ok)
}
