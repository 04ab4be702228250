package record

import (
	"bytes"
	"encoding/binary"
)

// Instrux is an exported instruction header.
type Instrux [InstruxSize]byte

// Operand is an exported operand record.
type Operand [OperandSize]byte

func (r *Instrux) U8(off int) uint8         { return r[off] }
func (r *Instrux) U16(off int) uint16       { return binary.LittleEndian.Uint16(r[off:]) }
func (r *Instrux) U32(off int) uint32       { return binary.LittleEndian.Uint32(r[off:]) }
func (r *Instrux) U64(off int) uint64       { return binary.LittleEndian.Uint64(r[off:]) }
func (r *Instrux) PutU8(off int, v uint8)   { r[off] = v }
func (r *Instrux) PutU16(off int, v uint16) { binary.LittleEndian.PutUint16(r[off:], v) }
func (r *Instrux) PutU32(off int, v uint32) { binary.LittleEndian.PutUint32(r[off:], v) }
func (r *Instrux) PutU64(off int, v uint64) { binary.LittleEndian.PutUint64(r[off:], v) }

// Flag reads bit of the flags word.
func (r *Instrux) Flag(bit uint) bool {
	return r.U64(OffFlags)>>bit&1 != 0
}

// SetFlag sets or clears bit of the flags word.
func (r *Instrux) SetFlag(bit uint, on bool) {
	r.PutU64(OffFlags, setBit64(r.U64(OffFlags), bit, on))
}

// Nibble returns the idx-th 4-bit field of the u64 at off.
func (r *Instrux) Nibble(off int, idx uint) uint8 {
	return uint8(r.U64(off) >> (idx * 4) & 0xF)
}

// SetNibble stores v into the idx-th 4-bit field of the u64 at off.
func (r *Instrux) SetNibble(off int, idx uint, v uint8) {
	r.PutU64(off, putField64(r.U64(off), idx*4, 4, uint64(v)))
}

// Field extracts width bits at shift from the u32 at off.
func (r *Instrux) Field(off int, shift, width uint) uint32 {
	return Bits32(r.U32(off), shift, width)
}

// SetField stores v into width bits at shift of the u32 at off.
func (r *Instrux) SetField(off int, shift, width uint, v uint32) {
	r.PutU32(off, uint32(putField64(uint64(r.U32(off)), shift, width, uint64(v))))
}

// Mnemonic returns the NUL-terminated mnemonic stored in the header.
func (r *Instrux) Mnemonic() string {
	m := r[OffMnemonic : OffMnemonic+MnemonicSize]
	if n := bytes.IndexByte(m, 0); n >= 0 {
		m = m[:n]
	}
	return string(m)
}

// SetMnemonic stores m, truncated to leave room for the terminator.
func (r *Instrux) SetMnemonic(m string) {
	dst := r[OffMnemonic : OffMnemonic+MnemonicSize]
	clear(dst)
	copy(dst[:MnemonicSize-1], m)
}

func (r *Operand) U8(off int) uint8         { return r[off] }
func (r *Operand) U16(off int) uint16       { return binary.LittleEndian.Uint16(r[off:]) }
func (r *Operand) U32(off int) uint32       { return binary.LittleEndian.Uint32(r[off:]) }
func (r *Operand) U64(off int) uint64       { return binary.LittleEndian.Uint64(r[off:]) }
func (r *Operand) PutU8(off int, v uint8)   { r[off] = v }
func (r *Operand) PutU16(off int, v uint16) { binary.LittleEndian.PutUint16(r[off:], v) }
func (r *Operand) PutU32(off int, v uint32) { binary.LittleEndian.PutUint32(r[off:], v) }
func (r *Operand) PutU64(off int, v uint64) { binary.LittleEndian.PutUint64(r[off:], v) }

// Bit reads bit of the u32 at off.
func (r *Operand) Bit(off int, bit uint) bool {
	return r.U32(off)>>bit&1 != 0
}

// SetBit sets or clears bit of the u32 at off.
func (r *Operand) SetBit(off int, bit uint, on bool) {
	r.PutU32(off, uint32(setBit64(uint64(r.U32(off)), bit, on)))
}

// ByteBit reads bit of the byte at off.
func (r *Operand) ByteBit(off int, bit uint) bool {
	return r[off]>>bit&1 != 0
}

// SetByteBit sets or clears bit of the byte at off.
func (r *Operand) SetByteBit(off int, bit uint, on bool) {
	r[off] = uint8(setBit64(uint64(r[off]), bit, on))
}

// Field extracts width bits at shift from the u32 at off.
func (r *Operand) Field(off int, shift, width uint) uint32 {
	return Bits32(r.U32(off), shift, width)
}

// SetField stores v into width bits at shift of the u32 at off.
func (r *Operand) SetField(off int, shift, width uint, v uint32) {
	r.PutU32(off, uint32(putField64(uint64(r.U32(off)), shift, width, uint64(v))))
}

// Bits32 extracts width bits starting at shift.
func Bits32(v uint32, shift, width uint) uint32 {
	return v >> shift & (1<<width - 1)
}

func setBit64(v uint64, bit uint, on bool) uint64 {
	if on {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}

func putField64(v uint64, shift, width uint, field uint64) uint64 {
	mask := uint64(1)<<width - 1
	return v&^(mask<<shift) | (field&mask)<<shift
}
