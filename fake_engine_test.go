package bddisasm

import (
	"bytes"
	"fmt"

	"github.com/bitdefender/bddisasm/internal/record"
)

// fakeInstr is one instruction the fake engine knows how to decode.
type fakeInstr struct {
	code   []byte
	status Status // returned instead of a record when not StatusSuccess
	hdr    record.Instrux
	ops    []record.Operand
	props  map[record.Property]uint64
	text   func(ip uint64) string

	formatStatus Status
}

// fakeEngine serves canned records. The native blob is the entry index.
type fakeEngine struct {
	instrs []fakeInstr
}

func (f *fakeEngine) Decode(code []byte, defCode, defData uint8) (record.Instrux, []byte, uint32) {
	for i, in := range f.instrs {
		if len(code) >= len(in.code) && bytes.HasPrefix(code, in.code) {
			if in.status != StatusSuccess {
				return record.Instrux{}, nil, uint32(in.status)
			}
			return in.hdr, []byte{byte(i)}, uint32(StatusSuccess)
		}
	}
	for _, in := range f.instrs {
		if bytes.HasPrefix(in.code, code) {
			return record.Instrux{}, nil, uint32(StatusBufferTooSmall)
		}
	}
	return record.Instrux{}, nil, uint32(StatusInvalidEncoding)
}

func (f *fakeEngine) lookup(native []byte) (*fakeInstr, bool) {
	if len(native) != 1 || int(native[0]) >= len(f.instrs) {
		return nil, false
	}
	return &f.instrs[native[0]], true
}

func (f *fakeEngine) Format(native []byte, ip uint64, buf []byte) uint32 {
	in, ok := f.lookup(native)
	if !ok {
		return uint32(StatusInvalidInstrux)
	}
	if len(buf) < minFormatBuffer {
		return uint32(StatusBufferTooSmall)
	}
	if in.formatStatus != StatusSuccess {
		return uint32(in.formatStatus)
	}
	text := in.hdr.Mnemonic()
	if in.text != nil {
		text = in.text(ip)
	}
	n := copy(buf[:len(buf)-1], text)
	buf[n] = 0
	return uint32(StatusSuccess)
}

func (f *fakeEngine) Operand(native []byte, index uint8) (record.Operand, uint32) {
	in, ok := f.lookup(native)
	if !ok {
		return record.Operand{}, uint32(StatusInvalidInstrux)
	}
	if int(index) >= len(in.ops) {
		return record.Operand{}, uint32(StatusInvalidParameter)
	}
	return in.ops[index], uint32(StatusSuccess)
}

func (f *fakeEngine) Property(native []byte, p record.Property) (uint64, uint32) {
	in, ok := f.lookup(native)
	if !ok {
		return 0, uint32(StatusInvalidInstrux)
	}
	if !p.Valid() {
		return 0, uint32(StatusInvalidParameter)
	}
	return in.props[p], uint32(StatusSuccess)
}

// hdrFor builds a header for code with the given mnemonic and operand count.
func hdrFor(mnemonic string, code []byte, nops int) record.Instrux {
	var h record.Instrux
	h.SetMnemonic(mnemonic)
	h.PutU8(record.OffLength, uint8(len(code)))
	h.PutU8(record.OffOperandsCount, uint8(nops))
	h.PutU8(record.OffExpOperandsCount, uint8(nops))
	copy(h[record.OffInstrBytes:record.OffInstrBytes+16], code)
	return h
}

func gprOp(size, index uint32, access OpAccess, isDefault bool) record.Operand {
	return regOp(RegGpr, size, index, access, isDefault)
}

func regOp(typ RegType, size, index uint32, access OpAccess, isDefault bool) record.Operand {
	var o record.Operand
	o.PutU8(record.OpOffType, opReg)
	o.PutU8(record.OpOffAccess, uint8(access))
	o.PutU32(record.OpOffSize, size)
	o.PutU32(record.OpOffRawSize, size)
	o.SetByteBit(record.OpOffFlags, record.OpFlagIsDefault, isDefault)
	o.PutU32(record.OpOffRegType, uint32(typ))
	o.PutU32(record.OpOffRegSize, size)
	o.PutU32(record.OpOffReg, index)
	o.PutU32(record.OpOffRegCount, 1)
	if isDefault {
		o.PutU8(record.OpOffEncoding, uint8(OpEncS))
	}
	return o
}

func memOp(size uint32, access OpAccess, isDefault bool, flags ...uint) record.Operand {
	var o record.Operand
	o.PutU8(record.OpOffType, opMem)
	o.PutU8(record.OpOffAccess, uint8(access))
	o.PutU32(record.OpOffSize, size)
	o.PutU32(record.OpOffRawSize, size)
	o.SetByteBit(record.OpOffFlags, record.OpFlagIsDefault, isDefault)
	for _, f := range flags {
		o.SetBit(record.OpOffMemFlags, f, true)
	}
	return o
}

func valueOp(typ uint8, size uint32, v uint64) record.Operand {
	var o record.Operand
	o.PutU8(record.OpOffType, typ)
	o.PutU8(record.OpOffAccess, uint8(AccessRead))
	o.PutU32(record.OpOffSize, size)
	o.PutU32(record.OpOffRawSize, size)
	o.PutU64(record.OpOffValue, v)
	return o
}

func movEaxImm() fakeInstr {
	code := []byte{0xb8, 0, 0, 0, 0}
	h := hdrFor("MOV", code, 2)
	h.SetFlag(record.FlagHasImm1, true)
	h.SetNibble(record.OffLengths, record.LenImm1, 4)
	h.SetNibble(record.OffOffsets, record.PosImm1, 1)
	h.SetNibble(record.OffLengths, record.LenOp, 1)
	h.PutU8(record.OffPrimaryOpCode, 0xb8)
	h.PutU8(record.OffOpCodeBytes, 0xb8)
	h.SetField(record.OffModes, record.ModesOpMode, 4, uint32(OpMode32))
	h.SetField(record.OffModes, record.ModesEfOpMode, 4, uint32(OpMode32))
	h.SetField(record.OffModes, record.ModesAddrMode, 4, uint32(Addr32))
	h.PutU32(record.OffValidModes, 0x1FF)

	dst := gprOp(4, 0, AccessWrite, false)
	dst.PutU8(record.OpOffEncoding, uint8(OpEncO))
	imm := valueOp(opImm, 4, 0)
	imm.PutU8(record.OpOffEncoding, uint8(OpEncI))

	return fakeInstr{
		code:  code,
		hdr:   h,
		ops:   []record.Operand{dst, imm},
		props: map[record.Property]uint64{record.PropCpuidFlag: cpuidNoLeaf},
		text:  func(uint64) string { return "MOV       eax, 0x00000000" },
	}
}

func movRdiRcx() fakeInstr {
	code := []byte{0x48, 0x8b, 0xf9}
	h := hdrFor("MOV", code, 2)
	h.SetFlag(record.FlagHasRex, true)
	h.SetFlag(record.FlagHasModRm, true)
	h.PutU8(record.OffRex, 0x48)
	h.PutU8(record.OffModRm, 0xf9)
	h.SetNibble(record.OffOffsets, record.PosOp, 1)
	h.SetNibble(record.OffOffsets, record.PosModRm, 2)
	h.PutU8(record.OffWordPrefLength, 1<<4)
	return fakeInstr{
		code: code,
		hdr:  h,
		ops:  []record.Operand{gprOp(8, 7, AccessWrite, false), gprOp(8, 1, AccessRead, false)},
		text: func(uint64) string { return "MOV       rdi, rcx" },
	}
}

func movRaxRipRel() fakeInstr {
	code := []byte{0x48, 0x8b, 0x05, 0xf9, 0xff, 0xff, 0xff}
	h := hdrFor("MOV", code, 2)
	h.SetFlag(record.FlagHasRex, true)
	h.SetFlag(record.FlagHasModRm, true)
	h.SetFlag(record.FlagHasDisp, true)
	h.SetFlag(record.FlagIsRipRelative, true)
	h.SetFlag(record.FlagSignDisp, true)
	h.PutU32(record.OffDisplacement, 0xfffffff9)
	h.SetNibble(record.OffLengths, record.LenDisp, 4)
	h.SetNibble(record.OffOffsets, record.PosDisp, 3)

	mem := memOp(8, AccessRead, false, record.MemHasDisp, record.MemIsRipRel)
	mem.PutU64(record.OpOffMemDisp, 0xfffffffffffffff9)
	mem.PutU8(record.OpOffMemDispSize, 4)
	return fakeInstr{
		code: code,
		hdr:  h,
		ops:  []record.Operand{gprOp(8, 0, AccessWrite, false), mem},
		text: func(ip uint64) string {
			return fmt.Sprintf("MOV       rax, qword ptr [rel %#x]", ip)
		},
	}
}

func pushRbx() fakeInstr {
	code := []byte{0x53}
	h := hdrFor("PUSH", code, 3)
	h.PutU8(record.OffExpOperandsCount, 1)

	stack := memOp(8, AccessWrite, true, record.MemHasSeg, record.MemHasBase, record.MemIsStack)
	stack.PutU8(record.OpOffMemSeg, segSs)
	stack.PutU8(record.OpOffMemBase, GprRsp)
	stack.PutU32(record.OpOffMemBaseSize, 8)
	stack.PutU8(record.OpOffEncoding, uint8(OpEncS))

	src := gprOp(8, 3, AccessRead, false)
	src.PutU8(record.OpOffEncoding, uint8(OpEncO))

	return fakeInstr{
		code: code,
		hdr:  h,
		ops:  []record.Operand{src, stack, gprOp(8, GprRsp, AccessRead|AccessWrite, true)},
		props: map[record.Property]uint64{
			record.PropStackWords:   1,
			record.PropStackAccess:  uint64(AccessWrite),
			record.PropMemoryAccess: uint64(AccessWrite),
		},
		text: func(uint64) string { return "PUSH      rbx" },
	}
}

func movAhMem() fakeInstr {
	code := []byte{0x8a, 0x64, 0x51, 0x08}
	h := hdrFor("MOV", code, 2)
	h.SetFlag(record.FlagHasModRm, true)
	h.SetFlag(record.FlagHasSib, true)
	h.SetFlag(record.FlagHasDisp, true)
	h.PutU8(record.OffModRm, 0x64)
	h.PutU8(record.OffSib, 0x51)
	h.PutU32(record.OffDisplacement, 8)

	dst := gprOp(1, 4, AccessWrite, false)
	dst.SetByteBit(record.OpOffRegFlags, record.RegIsHigh8, true)

	mem := memOp(1, AccessRead, false, record.MemHasSeg, record.MemHasBase, record.MemHasIndex, record.MemHasDisp)
	mem.PutU8(record.OpOffMemSeg, 3)
	mem.PutU8(record.OpOffMemBase, GprRcx)
	mem.PutU32(record.OpOffMemBaseSize, 8)
	mem.PutU8(record.OpOffMemIndex, GprRdx)
	mem.PutU32(record.OpOffMemIndexSize, 8)
	mem.PutU8(record.OpOffMemScale, 2)
	mem.PutU64(record.OpOffMemDisp, 8)
	mem.PutU8(record.OpOffMemDispSize, 1)

	return fakeInstr{code: code, hdr: h, ops: []record.Operand{dst, mem}}
}

func jnzRel() fakeInstr {
	code := []byte{0x75, 0x10}
	h := hdrFor("JNZ", code, 3)
	h.SetFlag(record.FlagHasRelOffs, true)
	h.PutU32(record.OffRelativeOffset, 0x10)
	h.PutU32(record.OffAttributes, attrCond)
	h.PutU8(record.OffCondition, 5)
	h.PutU32(record.OffFlagsTested, uint32(FlagZF))
	return fakeInstr{
		code: code,
		hdr:  h,
		ops: []record.Operand{
			valueOp(opOffs, 1, 0x10),
			regOp(RegRip, 8, 0, AccessRead|AccessCondWrite, true),
			regOp(RegFlags, 8, 0, AccessRead, true),
		},
		props: map[record.Property]uint64{
			record.PropRipAccess:   uint64(AccessRead | AccessCondWrite),
			record.PropFlagsAccess: uint64(AccessRead),
		},
	}
}

func jmpRax() fakeInstr {
	code := []byte{0xff, 0xe0}
	h := hdrFor("JMP", code, 2)
	h.SetFlag(record.FlagHasModRm, true)
	h.PutU8(record.OffModRm, 0xe0)
	return fakeInstr{
		code: code,
		hdr:  h,
		ops: []record.Operand{
			gprOp(8, 0, AccessRead, false),
			regOp(RegRip, 8, 0, AccessWrite, true),
		},
		props: map[record.Property]uint64{record.PropRipAccess: uint64(AccessWrite)},
	}
}

func callFar() fakeInstr {
	code := []byte{0x9a, 0x78, 0x56, 0x34, 0x12, 0x08, 0x00}
	h := hdrFor("CALLFD", code, 4)
	h.SetFlag(record.FlagHasAddr, true)
	h.PutU16(record.OffAddrCS, 8)
	h.PutU32(record.OffAddrIP, 0x12345678)

	addr := valueOp(opAddr, 6, 0)
	addr.PutU16(record.OpOffAddrSeg, 8)
	addr.PutU64(record.OpOffAddrOffset, 0x12345678)
	return fakeInstr{
		code: code,
		hdr:  h,
		ops: []record.Operand{
			addr,
			regOp(RegSeg, 2, segCs, AccessRead|AccessWrite, true),
			regOp(RegRip, 4, 0, AccessRead|AccessWrite, true),
			memOp(8, AccessWrite, true, record.MemIsStack),
		},
		props: map[record.Property]uint64{
			record.PropRipAccess: uint64(AccessRead | AccessWrite),
			record.PropCsAccess:  uint64(AccessRead | AccessWrite),
		},
	}
}

// newFakeEngine knows a handful of 64-bit instructions. 0xff alone is a
// truncated JMP; 0xff 0xff is not a valid encoding.
func newFakeEngine() *fakeEngine {
	return &fakeEngine{instrs: []fakeInstr{
		movEaxImm(),
		movRdiRcx(),
		movRaxRipRel(),
		pushRbx(),
		movAhMem(),
		jnzRel(),
		jmpRax(),
		callFar(),
		{code: []byte{0xf0, 0x90}, status: StatusBadLockPrefix},
	}}
}
