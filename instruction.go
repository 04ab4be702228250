package bddisasm

import (
	"bytes"

	"github.com/bitdefender/bddisasm/internal/record"
)

// Attribute bits.
const (
	attrCond     = 0x00000020
	attrSseCondB = 0x00000040
	attr3DNow    = 0x00000800
	attrVector   = 0x00040000
)

// InstructionClass identifies the instruction (one ND_INS_* value).
type InstructionClass uint32

// Category is the instruction category (one ND_CAT_* value).
type Category uint32

// IsaSet is the ISA extension the instruction belongs to (one ND_SET_* value).
type IsaSet uint32

// FarAddress is the seg:offset encoded in a direct far branch.
type FarAddress struct {
	Cs uint16
	Ip uint32
}

// DecodedInstruction is one decoded instruction. It is immutable and safe
// for concurrent reads.
//
// Accessors that consult the native library return an error; the rest read
// the exported header directly.
type DecodedInstruction struct {
	hdr      record.Instrux
	native   []byte
	eng      engine
	ip       uint64
	mode     DecodeMode
	mnemonic string
	length   int
}

func (d DecodedInstruction) Mnemonic() string { return d.mnemonic }
func (d DecodedInstruction) Length() int      { return d.length }
func (d DecodedInstruction) IP() uint64       { return d.ip }
func (d DecodedInstruction) Mode() DecodeMode { return d.mode }

// Bytes returns a copy of the instruction bytes.
func (d DecodedInstruction) Bytes() []byte {
	return bytes.Clone(d.hdr[record.OffInstrBytes : record.OffInstrBytes+d.length])
}

// OpcodeBytes returns the escape bytes and the main opcode.
func (d DecodedInstruction) OpcodeBytes() []byte {
	n := int(d.OpLength())
	if n > 3 {
		n = 3
	}
	return bytes.Clone(d.hdr[record.OffOpCodeBytes : record.OffOpCodeBytes+n])
}

func (d DecodedInstruction) PrimaryOpcode() uint8 { return d.hdr.U8(record.OffPrimaryOpCode) }

// InstructionClass returns the ND_INS_* value.
func (d DecodedInstruction) InstructionClass() InstructionClass {
	return InstructionClass(d.hdr.U32(record.OffInstruction))
}

func (d DecodedInstruction) mode4(shift uint) uint32 {
	return d.hdr.Field(record.OffModes, shift, 4)
}

func (d DecodedInstruction) EncodingMode() (EncodingMode, error) {
	return enumFromRaw[EncodingMode](d.mode4(record.ModesEncMode), int(numEncModes))
}

// VexMode reports the VEX form; ok is false for non-VEX instructions.
func (d DecodedInstruction) VexMode() (m VexMode, ok bool, err error) {
	if !d.HasVex() {
		return 0, false, nil
	}
	m, err = enumFromRaw[VexMode](d.mode4(record.ModesVexMode), int(numVexModes))
	return m, err == nil, err
}

func (d DecodedInstruction) AddrMode() (AddressingMode, error) {
	return enumFromRaw[AddressingMode](d.mode4(record.ModesAddrMode), int(numAddrModes))
}

func (d DecodedInstruction) OpMode() (OperandMode, error) {
	return enumFromRaw[OperandMode](d.mode4(record.ModesOpMode), int(numOpModes))
}

func (d DecodedInstruction) EffectiveOpMode() (OperandMode, error) {
	return enumFromRaw[OperandMode](d.mode4(record.ModesEfOpMode), int(numOpModes))
}

func (d DecodedInstruction) VecMode() (VectorMode, error) {
	return enumFromRaw[VectorMode](uint32(d.hdr.U8(record.OffVecModes)&0xF), int(numVecModes))
}

func (d DecodedInstruction) EffectiveVecMode() (VectorMode, error) {
	return enumFromRaw[VectorMode](uint32(d.hdr.U8(record.OffVecModes)>>4), int(numVecModes))
}

func (d DecodedInstruction) flag(bit uint) bool { return d.hdr.Flag(bit) }

func (d DecodedInstruction) HasRex() bool              { return d.flag(record.FlagHasRex) }
func (d DecodedInstruction) HasVex() bool              { return d.flag(record.FlagHasVex) }
func (d DecodedInstruction) HasXop() bool              { return d.flag(record.FlagHasXop) }
func (d DecodedInstruction) HasEvex() bool             { return d.flag(record.FlagHasEvex) }
func (d DecodedInstruction) HasOpSize() bool           { return d.flag(record.FlagHasOpSize) }
func (d DecodedInstruction) HasAddrSize() bool         { return d.flag(record.FlagHasAddrSize) }
func (d DecodedInstruction) HasLock() bool             { return d.flag(record.FlagHasLock) }
func (d DecodedInstruction) HasRepnzXacquireBnd() bool { return d.flag(record.FlagHasRepnzXacquireBnd) }
func (d DecodedInstruction) HasRepRepzXrelease() bool  { return d.flag(record.FlagHasRepRepzXrelease) }
func (d DecodedInstruction) HasSeg() bool              { return d.flag(record.FlagHasSeg) }
func (d DecodedInstruction) IsRepeated() bool          { return d.flag(record.FlagIsRepeated) }
func (d DecodedInstruction) IsXacquireEnabled() bool   { return d.flag(record.FlagIsXacquireEnabled) }
func (d DecodedInstruction) IsXreleaseEnabled() bool   { return d.flag(record.FlagIsXreleaseEnabled) }
func (d DecodedInstruction) IsRipRelative() bool       { return d.flag(record.FlagIsRipRelative) }
func (d DecodedInstruction) IsCetTracked() bool        { return d.flag(record.FlagIsCetTracked) }
func (d DecodedInstruction) HasModRm() bool            { return d.flag(record.FlagHasModRm) }
func (d DecodedInstruction) HasSib() bool              { return d.flag(record.FlagHasSib) }
func (d DecodedInstruction) HasDisp() bool             { return d.flag(record.FlagHasDisp) }
func (d DecodedInstruction) HasAddr() bool             { return d.flag(record.FlagHasAddr) }
func (d DecodedInstruction) HasMoffset() bool          { return d.flag(record.FlagHasMoffset) }
func (d DecodedInstruction) HasImm1() bool             { return d.flag(record.FlagHasImm1) }
func (d DecodedInstruction) HasImm2() bool             { return d.flag(record.FlagHasImm2) }
func (d DecodedInstruction) HasImm3() bool             { return d.flag(record.FlagHasImm3) }
func (d DecodedInstruction) HasRelOffs() bool          { return d.flag(record.FlagHasRelOffs) }
func (d DecodedInstruction) HasSseImm() bool           { return d.flag(record.FlagHasSseImm) }
func (d DecodedInstruction) HasCompDisp() bool         { return d.flag(record.FlagHasCompDisp) }
func (d DecodedInstruction) HasBroadcast() bool        { return d.flag(record.FlagHasBroadcast) }
func (d DecodedInstruction) HasMask() bool             { return d.flag(record.FlagHasMask) }
func (d DecodedInstruction) HasZero() bool             { return d.flag(record.FlagHasZero) }
func (d DecodedInstruction) HasEr() bool               { return d.flag(record.FlagHasEr) }
func (d DecodedInstruction) HasSae() bool              { return d.flag(record.FlagHasSae) }
func (d DecodedInstruction) SignDisp() bool            { return d.flag(record.FlagSignDisp) }
func (d DecodedInstruction) HasMandatory66() bool      { return d.flag(record.FlagHasMandatory66) }
func (d DecodedInstruction) HasMandatoryF2() bool      { return d.flag(record.FlagHasMandatoryF2) }
func (d DecodedInstruction) HasMandatoryF3() bool      { return d.flag(record.FlagHasMandatoryF3) }

func (d DecodedInstruction) WordLength() uint8 { return d.hdr.U8(record.OffWordPrefLength) & 0xF }
func (d DecodedInstruction) PrefLength() uint8 { return d.hdr.U8(record.OffWordPrefLength) >> 4 }

func (d DecodedInstruction) length4(idx uint) uint8 { return d.hdr.Nibble(record.OffLengths, idx) }

func (d DecodedInstruction) OpLength() uint8      { return d.length4(record.LenOp) }
func (d DecodedInstruction) DispLength() uint8    { return d.length4(record.LenDisp) }
func (d DecodedInstruction) AddrLength() uint8    { return d.length4(record.LenAddr) }
func (d DecodedInstruction) MoffsetLength() uint8 { return d.length4(record.LenMoffset) }
func (d DecodedInstruction) Imm1Length() uint8    { return d.length4(record.LenImm1) }
func (d DecodedInstruction) Imm2Length() uint8    { return d.length4(record.LenImm2) }
func (d DecodedInstruction) Imm3Length() uint8    { return d.length4(record.LenImm3) }
func (d DecodedInstruction) RelOffsLength() uint8 { return d.length4(record.LenRelOffs) }

// Component offsets. A zero offset means the component is absent; only
// prefixes start at 0.
func (d DecodedInstruction) offset(idx uint) (uint8, bool) {
	v := d.hdr.Nibble(record.OffOffsets, idx)
	return v, v != 0
}

func (d DecodedInstruction) OpOffset() (uint8, bool)      { return d.offset(record.PosOp) }
func (d DecodedInstruction) MainOpOffset() (uint8, bool)  { return d.offset(record.PosMainOp) }
func (d DecodedInstruction) DispOffset() (uint8, bool)    { return d.offset(record.PosDisp) }
func (d DecodedInstruction) AddrOffset() (uint8, bool)    { return d.offset(record.PosAddr) }
func (d DecodedInstruction) MoffsetOffset() (uint8, bool) { return d.offset(record.PosMoffset) }
func (d DecodedInstruction) Imm1Offset() (uint8, bool)    { return d.offset(record.PosImm1) }
func (d DecodedInstruction) Imm2Offset() (uint8, bool)    { return d.offset(record.PosImm2) }
func (d DecodedInstruction) Imm3Offset() (uint8, bool)    { return d.offset(record.PosImm3) }
func (d DecodedInstruction) RelOffsOffset() (uint8, bool) { return d.offset(record.PosRelOffs) }
func (d DecodedInstruction) SseImmOffset() (uint8, bool)  { return d.offset(record.PosSseImm) }
func (d DecodedInstruction) ModRmOffset() (uint8, bool)   { return d.offset(record.PosModRm) }

// Rep returns the last REP/REPZ/REPNZ prefix byte, 0 if none.
func (d DecodedInstruction) Rep() uint8 { return d.hdr.U8(record.OffRep) }

// Seg returns the last segment override prefix byte, 0 if none.
func (d DecodedInstruction) Seg() uint8 { return d.hdr.U8(record.OffSeg) }

// Bhint returns the last branch hint prefix byte, 0 if none.
func (d DecodedInstruction) Bhint() uint8 { return d.hdr.U8(record.OffBhint) }

func (d DecodedInstruction) Rex() (Rex, bool) {
	if !d.HasRex() {
		return Rex{}, false
	}
	return rexFromRaw(d.hdr.U8(record.OffRex)), true
}

func (d DecodedInstruction) ModRm() (ModRm, bool) {
	if !d.HasModRm() {
		return ModRm{}, false
	}
	return modRmFromRaw(d.hdr.U8(record.OffModRm)), true
}

func (d DecodedInstruction) Sib() (Sib, bool) {
	if !d.HasSib() {
		return Sib{}, false
	}
	return sibFromRaw(d.hdr.U8(record.OffSib)), true
}

// Prefix returns the extended prefix, selected by the encoding mode.
func (d DecodedInstruction) Prefix() (PrefixEncoding, error) {
	enc, err := d.EncodingMode()
	if err != nil {
		return nil, err
	}
	var raw [4]byte
	copy(raw[:], d.hdr[record.OffPrefixBytes:record.OffPrefixBytes+4])

	switch enc {
	case EncXop:
		return Xop(vex3FromRaw(raw)), nil
	case EncVex:
		vm, _, err := d.VexMode()
		if err != nil {
			return nil, err
		}
		if vm == Vex2B {
			return vex2FromRaw(raw), nil
		}
		return vex3FromRaw(raw), nil
	case EncEvex:
		return evexFromRaw(raw), nil
	}
	return NoPrefix{}, nil
}

func (d DecodedInstruction) Address() (FarAddress, bool) {
	if !d.HasAddr() {
		return FarAddress{}, false
	}
	return FarAddress{Cs: d.hdr.U16(record.OffAddrCS), Ip: d.hdr.U32(record.OffAddrIP)}, true
}

func (d DecodedInstruction) Moffset() (uint64, bool) {
	return d.hdr.U64(record.OffMoffset), d.HasMoffset()
}

// Disp returns the raw displacement, not sign extended.
func (d DecodedInstruction) Disp() (uint32, bool) {
	return d.hdr.U32(record.OffDisplacement), d.HasDisp()
}

func (d DecodedInstruction) RelOffset() (uint32, bool) {
	return d.hdr.U32(record.OffRelativeOffset), d.HasRelOffs()
}

func (d DecodedInstruction) Immediate1() (uint64, bool) {
	return d.hdr.U64(record.OffImmediate1), d.HasImm1()
}

func (d DecodedInstruction) Immediate2() (uint8, bool) {
	return d.hdr.U8(record.OffImmediate2), d.HasImm2()
}

func (d DecodedInstruction) Immediate3() (uint8, bool) {
	return d.hdr.U8(record.OffImmediate3), d.HasImm3()
}

func (d DecodedInstruction) SseImmediate() (uint8, bool) {
	return d.hdr.U8(record.OffSseImmediate), d.HasSseImm()
}

// SseCond returns the condition encoded in the SSE condition byte.
func (d DecodedInstruction) SseCond() (uint8, bool) {
	return d.hdr.U8(record.OffSseCondition), d.Attributes()&attrSseCondB != 0
}

// Cond returns the condition encoded in the low 4 bits of the opcode.
func (d DecodedInstruction) Cond() (uint8, bool) {
	return d.hdr.U8(record.OffCondition), d.Attributes()&attrCond != 0
}

func (d DecodedInstruction) OperandsCount() int    { return int(d.hdr.U8(record.OffOperandsCount)) }
func (d DecodedInstruction) ExpOperandsCount() int { return int(d.hdr.U8(record.OffExpOperandsCount)) }

// OperandsEncodingMap is a bitmap of the instruction parts that encode operands.
func (d DecodedInstruction) OperandsEncodingMap() uint16 { return d.hdr.U16(record.OffOperandsEncMap) }

// Operand returns operand i.
func (d DecodedInstruction) Operand(i int) (Operand, error) {
	if i < 0 || i >= d.OperandsCount() {
		return Operand{}, ErrInvalidParameter
	}
	raw, st := d.eng.Operand(d.native, uint8(i))
	if err := statusToError(st); err != nil {
		return Operand{}, err
	}
	return operandFromRaw(&raw)
}

// Operands returns every operand, explicit ones first.
func (d DecodedInstruction) Operands() ([]Operand, error) {
	n := d.OperandsCount()
	ops := make([]Operand, 0, n)
	for i := 0; i < n; i++ {
		op, err := d.Operand(i)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (d DecodedInstruction) property(p record.Property) (uint64, error) {
	v, st := d.eng.Property(d.native, p)
	if err := statusToError(st); err != nil {
		return 0, err
	}
	return v, nil
}

func (d DecodedInstruction) access(p record.Property) (OpAccess, error) {
	v, err := d.property(p)
	return OpAccess(v), err
}

func (d DecodedInstruction) RipAccess() (OpAccess, error)    { return d.access(record.PropRipAccess) }
func (d DecodedInstruction) StackAccess() (OpAccess, error)  { return d.access(record.PropStackAccess) }
func (d DecodedInstruction) MemoryAccess() (OpAccess, error) { return d.access(record.PropMemoryAccess) }

// CsAccess is the access to CS; far branches and far returns write it.
func (d DecodedInstruction) CsAccess() (OpAccess, error) { return d.access(record.PropCsAccess) }

// StackWords is the number of words pushed or popped.
func (d DecodedInstruction) StackWords() (uint8, error) {
	v, err := d.property(record.PropStackWords)
	return uint8(v), err
}

func (d DecodedInstruction) FlagsAccess() (FlagsAccess, error) {
	mode, err := d.access(record.PropFlagsAccess)
	if err != nil {
		return FlagsAccess{}, err
	}
	return FlagsAccess{
		Mode:      mode,
		Tested:    RFlags(d.hdr.U32(record.OffFlagsTested)),
		Modified:  RFlags(d.hdr.U32(record.OffFlagsModified)),
		Set:       RFlags(d.hdr.U32(record.OffFlagsSet)),
		Cleared:   RFlags(d.hdr.U32(record.OffFlagsCleared)),
		Undefined: RFlags(d.hdr.U32(record.OffFlagsUndefined)),
	}, nil
}

// FpuFlagsAccess is only meaningful for x87 instructions.
func (d DecodedInstruction) FpuFlagsAccess() FpuFlags {
	return fpuFlagsFromRaw(d.hdr.U8(record.OffFpuFlags))
}

func (d DecodedInstruction) ExceptionClass() (ExceptionClass, error) {
	return enumFromRaw[ExceptionClass](uint32(d.hdr.U8(record.OffExceptionClass)), int(numExcClasses))
}

// ExceptionType is interpreted according to ExceptionClass.
func (d DecodedInstruction) ExceptionType() uint8 { return d.hdr.U8(record.OffExceptionType) }

// EvexTuple reports the tuple type of an EVEX instruction.
func (d DecodedInstruction) EvexTuple() (t TupleType, ok bool, err error) {
	if !d.HasEvex() {
		return 0, false, nil
	}
	v, err := d.property(record.PropTupleType)
	if err != nil {
		return 0, false, err
	}
	if v > 0xFF {
		return 0, false, internalError(v)
	}
	t, err = enumFromRaw[TupleType](uint32(v), int(numTupleTypes))
	return t, err == nil, err
}

// EvexRounding reports the embedded rounding mode, when one is encoded.
func (d DecodedInstruction) EvexRounding() (m RoundingMode, ok bool, err error) {
	if !d.HasEr() {
		return 0, false, nil
	}
	m, err = enumFromRaw[RoundingMode](uint32(d.hdr.U8(record.OffRoundingMode)), int(numRoundingModes))
	return m, err == nil, err
}

func (d DecodedInstruction) Category() (Category, error) {
	v, err := d.property(record.PropCategory)
	return Category(v), err
}

func (d DecodedInstruction) IsaSet() (IsaSet, error) {
	v, err := d.property(record.PropIsaSet)
	return IsaSet(v), err
}

// Cpuid reports the CPUID bit for the instruction; ok is false when the
// instruction is available everywhere.
func (d DecodedInstruction) Cpuid() (c Cpuid, ok bool, err error) {
	v, err := d.property(record.PropCpuidFlag)
	if err != nil {
		return Cpuid{}, false, err
	}
	c, ok = cpuidFromRaw(v)
	return c, ok, nil
}

func (d DecodedInstruction) ValidCpuModes() CpuModes {
	return cpuModesFromRaw(d.hdr.U32(record.OffValidModes))
}

func (d DecodedInstruction) ValidPrefixes() ValidPrefixes {
	return validPrefixesFromRaw(d.hdr.U16(record.OffValidPrefixes))
}

func (d DecodedInstruction) ValidDecorators() ValidDecorators {
	return validDecoratorsFromRaw(d.hdr.U8(record.OffValidDecorators))
}

// SimdExceptions is empty when the linked library does not report them.
func (d DecodedInstruction) SimdExceptions() SimdExceptions {
	return simdExceptionsFromRaw(d.hdr.U8(record.OffSimdExceptions))
}

// Attributes returns the ND_FLAG_* attribute bits.
func (d DecodedInstruction) Attributes() uint32 { return d.hdr.U32(record.OffAttributes) }

// HasVector reports a SIMD instruction operating on vector registers.
func (d DecodedInstruction) HasVector() bool { return d.Attributes()&attrVector != 0 }

// Is3DNow reports a 3DNow! instruction, whose opcode is its last byte.
func (d DecodedInstruction) Is3DNow() bool { return d.Attributes()&attr3DNow != 0 }

// IsBranch reports an instruction that writes RIP, conditionally or not.
func (d DecodedInstruction) IsBranch() (bool, error) {
	rip, err := d.RipAccess()
	if err != nil {
		return false, err
	}
	return rip.AnyWrite(), nil
}

// IsConditionalBranch holds for branches that only conditionally write RIP.
func (d DecodedInstruction) IsConditionalBranch() (bool, error) {
	br, err := d.IsBranch()
	if err != nil || !br {
		return false, err
	}
	rip, err := d.RipAccess()
	if err != nil {
		return false, err
	}
	return rip.CondWrite(), nil
}

// IsIndirectBranch holds for branches with a ModRM byte. This is a
// heuristic: it approximates "the target comes from a register or memory",
// which the library does not export.
func (d DecodedInstruction) IsIndirectBranch() (bool, error) {
	br, err := d.IsBranch()
	if err != nil || !br {
		return false, err
	}
	return d.HasModRm(), nil
}

// IsFarBranch holds for branches that also write CS.
func (d DecodedInstruction) IsFarBranch() (bool, error) {
	br, err := d.IsBranch()
	if err != nil || !br {
		return false, err
	}
	cs, err := d.CsAccess()
	if err != nil {
		return false, err
	}
	return cs.AnyWrite(), nil
}

// Format renders the instruction in Intel syntax at its IP.
//
// The native formatter only emits ASCII, so the text needs no validation.
func (d DecodedInstruction) Format() (string, error) {
	if d.eng == nil {
		return "", ErrInvalidInstrux
	}
	buf := make([]byte, minFormatBuffer)
	if err := statusToError(d.eng.Format(d.native, d.ip, buf)); err != nil {
		return "", err
	}
	if n := bytes.IndexByte(buf, 0); n >= 0 {
		buf = buf[:n]
	}
	return string(buf), nil
}

func (d DecodedInstruction) String() string {
	s, err := d.Format()
	if err != nil {
		return d.mnemonic + " <" + err.Error() + ">"
	}
	return s
}
