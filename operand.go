package bddisasm

import (
	"fmt"

	"github.com/bitdefender/bddisasm/internal/record"
)

// Raw operand type tags.
const (
	opNotPresent = iota
	opReg
	opMem
	opImm
	opOffs
	opAddr
	opConst
	opBank
)

// OpInfo is the kind-specific part of an operand. The concrete type is one
// of OpNone, OpReg, OpMem, OpImm, OpOffs, OpAddr, OpConst or OpBank.
type OpInfo interface {
	isOpInfo()
}

// OpNone is an absent operand.
type OpNone struct{}

// OpReg is a register operand.
type OpReg struct {
	Type  RegType
	Size  uint32 // register size in bytes; may exceed the operand size
	Index uint32
	Count uint32 // number of consecutive registers, starting with Index

	// IsHigh8 marks AH, CH, DH and BH. Index then equals the low byte
	// register's index (0-3).
	IsHigh8 bool
	IsBlock bool
}

// Vsib describes vector gather/scatter addressing.
type Vsib struct {
	ElemSize  uint8
	ElemCount uint8
}

// OpMem is a memory operand. Each Has* field gates the field next to it.
type OpMem struct {
	HasSeg bool
	Seg    uint8

	HasBase  bool
	Base     uint8
	BaseSize uint32

	HasIndex bool
	Index    uint8
	Scale    uint8 // set only with an index

	// HasIndexSize is true with an index or with VSIB, whose element index
	// size replaces the plain one.
	HasIndexSize bool
	IndexSize    uint32

	IsVsib bool
	Vsib   Vsib

	HasDisp  bool
	Disp     uint64 // sign extended
	DispSize uint8

	HasCompDisp  bool
	CompDispSize uint8

	IsShadowStack bool
	ShadowStack   ShadowStackAccess

	HasBroadcast bool
	IsRipRel     bool
	IsStack      bool // implicit stack access only
	IsString     bool
	IsDirect     bool
	IsBitbase    bool
	IsAG         bool
	IsMib        bool
	IsSibMem     bool
}

// OpImm is an immediate. Only the operand's size worth of bytes is meaningful.
type OpImm uint64

// OpOffs is a branch displacement relative to the next instruction.
type OpOffs uint64

// OpAddr is a far seg:offset address.
type OpAddr struct {
	BaseSeg uint16
	Offset  uint64
}

// OpConst is an implicit constant, such as the 1 of ROL reg, 1.
type OpConst uint64

// OpBank is a whole register bank (PUSHA, XSAVE and friends).
type OpBank struct{}

func (OpNone) isOpInfo()  {}
func (OpReg) isOpInfo()   {}
func (OpMem) isOpInfo()   {}
func (OpImm) isOpInfo()   {}
func (OpOffs) isOpInfo()  {}
func (OpAddr) isOpInfo()  {}
func (OpConst) isOpInfo() {}
func (OpBank) isOpInfo()  {}

// Broadcast describes an EVEX memory broadcast.
type Broadcast struct {
	Count uint8
	Size  uint8
}

// Decorator holds the EVEX decorations of one operand.
type Decorator struct {
	HasMask bool
	Mask    uint8 // k0-k7

	HasZero bool

	HasBroadcast bool
	Broadcast    Broadcast

	// HasSae and HasEr only mark where the decorator is rendered; both are
	// instruction wide.
	HasSae bool
	HasEr  bool
}

// Operand is one decoded operand.
type Operand struct {
	Info            OpInfo
	Encoding        OperandEncoding
	Size            OpSize // size used by the operation, after any extension
	RawSize         OpSize // size as encoded
	Access          OpAccess
	IsDefault       bool // implicit or default operand
	SignExtendedOp1 bool
	SignExtendedDws bool
	Decorator       Decorator
}

// Reg returns the register payload.
func (o Operand) Reg() (OpReg, bool) {
	r, ok := o.Info.(OpReg)
	return r, ok
}

// Mem returns the memory payload.
func (o Operand) Mem() (OpMem, bool) {
	m, ok := o.Info.(OpMem)
	return m, ok
}

func (o Operand) String() string {
	switch v := o.Info.(type) {
	case OpReg:
		return fmt.Sprintf("%v reg %d size %d", v.Type, v.Index, v.Size)
	case OpMem:
		return fmt.Sprintf("mem size %v", o.Size)
	case OpImm:
		return fmt.Sprintf("imm %#x", uint64(v))
	case OpOffs:
		return fmt.Sprintf("rel %#x", uint64(v))
	case OpAddr:
		return fmt.Sprintf("addr %#x:%#x", v.BaseSeg, v.Offset)
	case OpConst:
		return fmt.Sprintf("const %#x", uint64(v))
	case OpBank:
		return "bank"
	}
	return "none"
}

func operandFromRaw(r *record.Operand) (Operand, error) {
	var op Operand
	var err error

	if op.Encoding, err = enumFromRaw[OperandEncoding](uint32(r.U8(record.OpOffEncoding)), int(numOpEncodings)); err != nil {
		return Operand{}, err
	}
	op.Size = opSizeFromRaw(r.U32(record.OpOffSize))
	op.RawSize = opSizeFromRaw(r.U32(record.OpOffRawSize))
	op.Access = OpAccess(r.U8(record.OpOffAccess))
	op.IsDefault = r.ByteBit(record.OpOffFlags, record.OpFlagIsDefault)
	op.SignExtendedOp1 = r.ByteBit(record.OpOffFlags, record.OpFlagSignExtendedOp1)
	op.SignExtendedDws = r.ByteBit(record.OpOffFlags, record.OpFlagSignExtendedDws)
	op.Decorator = decoratorFromRaw(r)

	switch t := r.U8(record.OpOffType); t {
	case opNotPresent:
		op.Info = OpNone{}
	case opReg:
		reg, err := opRegFromRaw(r)
		if err != nil {
			return Operand{}, err
		}
		op.Info = reg
	case opMem:
		mem, err := opMemFromRaw(r)
		if err != nil {
			return Operand{}, err
		}
		op.Info = mem
	case opImm:
		op.Info = OpImm(r.U64(record.OpOffValue))
	case opOffs:
		op.Info = OpOffs(r.U64(record.OpOffValue))
	case opAddr:
		op.Info = OpAddr{BaseSeg: r.U16(record.OpOffAddrSeg), Offset: r.U64(record.OpOffAddrOffset)}
	case opConst:
		op.Info = OpConst(r.U64(record.OpOffValue))
	case opBank:
		op.Info = OpBank{}
	default:
		return Operand{}, internalError(uint64(t))
	}
	return op, nil
}

func opRegFromRaw(r *record.Operand) (OpReg, error) {
	typ, err := regTypeFromRaw(r.U32(record.OpOffRegType))
	if err != nil {
		return OpReg{}, err
	}
	reg := OpReg{
		Type:    typ,
		Size:    r.U32(record.OpOffRegSize),
		Index:   r.U32(record.OpOffReg),
		Count:   r.U32(record.OpOffRegCount),
		IsHigh8: r.ByteBit(record.OpOffRegFlags, record.RegIsHigh8),
		IsBlock: r.ByteBit(record.OpOffRegFlags, record.RegIsBlock),
	}
	// The native library numbers AH..BH 4-7 like SPL..DIL.
	if reg.Type == RegGpr && reg.IsHigh8 {
		if reg.Index < 4 {
			return OpReg{}, internalError(uint64(reg.Index))
		}
		reg.Index -= 4
	}
	return reg, nil
}

func opMemFromRaw(r *record.Operand) (OpMem, error) {
	has := func(bit uint) bool { return r.Bit(record.OpOffMemFlags, bit) }

	m := OpMem{
		HasBroadcast: has(record.MemHasBroadcast),
		IsRipRel:     has(record.MemIsRipRel),
		IsStack:      has(record.MemIsStack),
		IsString:     has(record.MemIsString),
		IsDirect:     has(record.MemIsDirect),
		IsBitbase:    has(record.MemIsBitbase),
		IsAG:         has(record.MemIsAG),
		IsMib:        has(record.MemIsMib),
		IsSibMem:     has(record.MemIsSibMem),
	}
	if has(record.MemHasSeg) {
		m.HasSeg, m.Seg = true, r.U8(record.OpOffMemSeg)
	}
	if has(record.MemHasBase) {
		m.HasBase, m.Base, m.BaseSize = true, r.U8(record.OpOffMemBase), r.U32(record.OpOffMemBaseSize)
	}
	if has(record.MemHasIndex) {
		m.HasIndex, m.Index, m.Scale = true, r.U8(record.OpOffMemIndex), r.U8(record.OpOffMemScale)
		m.HasIndexSize, m.IndexSize = true, r.U32(record.OpOffMemIndexSize)
	}
	if has(record.MemIsVsib) {
		m.IsVsib = true
		m.Vsib = Vsib{ElemSize: r.U8(record.OpOffMemVsibElem), ElemCount: r.U8(record.OpOffMemVsibCount)}
		m.HasIndexSize, m.IndexSize = true, uint32(r.U8(record.OpOffMemVsibIndex))
	}
	if has(record.MemHasDisp) {
		m.HasDisp, m.Disp, m.DispSize = true, r.U64(record.OpOffMemDisp), r.U8(record.OpOffMemDispSize)
	}
	if has(record.MemHasCompDisp) {
		m.HasCompDisp, m.CompDispSize = true, r.U8(record.OpOffMemCompDisp)
	}
	if has(record.MemIsShadowStack) {
		ss, err := enumFromRaw[ShadowStackAccess](uint32(r.U8(record.OpOffMemShStkType)), int(numShStk))
		if err != nil {
			return OpMem{}, err
		}
		m.IsShadowStack, m.ShadowStack = true, ss
	}
	return m, nil
}

func decoratorFromRaw(r *record.Operand) Decorator {
	has := func(bit uint) bool { return r.Bit(record.OpOffDecorator, bit) }

	d := Decorator{
		HasZero: has(record.DecoHasZero),
		HasSae:  has(record.DecoHasSae),
		HasEr:   has(record.DecoHasEr),
	}
	if has(record.DecoHasMask) {
		d.HasMask, d.Mask = true, uint8(r.Field(record.OpOffDecorator, record.DecoMsk, 8))
	}
	if has(record.DecoHasBroadcast) {
		d.HasBroadcast = true
		d.Broadcast = Broadcast{
			Count: uint8(r.Field(record.OpOffDecorator, record.DecoBcCount, 8)),
			Size:  uint8(r.Field(record.OpOffDecorator, record.DecoBcSize, 8)),
		}
	}
	return d
}
