package bddisasm

import "fmt"

// enumFromRaw maps a raw tag onto an enum with n members numbered from 0.
func enumFromRaw[T ~uint8](raw uint32, n int) (T, error) {
	if raw >= uint32(n) {
		return 0, internalError(uint64(raw))
	}
	return T(raw), nil
}

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("unknown(%d)", v)
}

// RegType is the class of a register operand.
type RegType uint8

const (
	RegGpr  RegType = iota + 1 // general purpose
	RegSeg                     // segment
	RegFpu                     // x87 stack register
	RegMmx                     // MMX
	RegSse                     // XMM, YMM or ZMM
	RegCr                      // control
	RegDr                      // debug
	RegTr                      // test
	RegBnd                     // MPX bound
	RegMsk                     // AVX-512 mask
	RegTile                    // AMX tile
	RegMsr                     // model specific
	RegXcr                     // extended control
	RegSys                     // system
	RegX87                     // x87 control/status
	RegMxcsr
	RegPkru
	RegSsp
	RegFlags
	RegRip
	RegUif
	numRegTypes
)

var regTypeNames = []string{
	"", "GPR", "SEG", "FPU", "MMX", "SSE", "CR", "DR", "TR", "BND", "MSK", "TILE",
	"MSR", "XCR", "SYS", "X87", "MXCSR", "PKRU", "SSP", "FLG", "RIP", "UIF",
}

func (r RegType) String() string { return enumName(regTypeNames, uint8(r)) }

// ND_REG_NOT_PRESENT never labels a register operand.
func regTypeFromRaw(raw uint32) (RegType, error) {
	if raw == 0 {
		return 0, internalError(0)
	}
	return enumFromRaw[RegType](raw, int(numRegTypes))
}

// AddressingMode is the effective address size.
type AddressingMode uint8

const (
	Addr16 AddressingMode = iota
	Addr32
	Addr64
	numAddrModes
)

func (m AddressingMode) String() string { return enumName([]string{"16", "32", "64"}, uint8(m)) }

// OperandMode is the operand size.
type OperandMode uint8

const (
	OpMode16 OperandMode = iota
	OpMode32
	OpMode64
	numOpModes
)

func (m OperandMode) String() string { return enumName([]string{"16", "32", "64"}, uint8(m)) }

// VectorMode is the vector length.
type VectorMode uint8

const (
	Vec128 VectorMode = iota
	Vec256
	Vec512
	numVecModes
)

func (m VectorMode) String() string { return enumName([]string{"128", "256", "512"}, uint8(m)) }

// EncodingMode is the prefix scheme the instruction was encoded with.
type EncodingMode uint8

const (
	EncLegacy EncodingMode = iota
	EncXop
	EncVex
	EncEvex
	numEncModes
)

func (m EncodingMode) String() string {
	return enumName([]string{"legacy", "xop", "vex", "evex"}, uint8(m))
}

// VexMode distinguishes 2-byte from 3-byte VEX.
type VexMode uint8

const (
	Vex2B VexMode = iota
	Vex3B
	numVexModes
)

func (m VexMode) String() string { return enumName([]string{"2B", "3B"}, uint8(m)) }

// ExceptionClass groups instructions by the exception table that applies.
type ExceptionClass uint8

const (
	ExcNone ExceptionClass = iota
	ExcSseAvx
	ExcEvex
	ExcOpmask
	ExcAmx
	numExcClasses
)

func (c ExceptionClass) String() string {
	return enumName([]string{"none", "SSE/AVX", "EVEX", "opmask", "AMX"}, uint8(c))
}

// RoundingMode is the EVEX embedded rounding control.
type RoundingMode uint8

const (
	RoundNearestEqual RoundingMode = iota
	RoundDown
	RoundUp
	RoundZero
	numRoundingModes
)

func (m RoundingMode) String() string {
	return enumName([]string{"rn-sae", "rd-sae", "ru-sae", "rz-sae"}, uint8(m))
}

// TupleType drives EVEX compressed displacement scaling.
type TupleType uint8

const (
	TupleNone  TupleType = iota
	TupleFV              // full vector
	TupleHV              // half vector
	TupleT1S8            // tuple1 scalar, 8 bit
	TupleT1S16           // tuple1 scalar, 16 bit
	TupleT1S             // tuple1 scalar, 32/64 bit
	TupleT1F             // tuple1 float
	TupleT2
	TupleT4
	TupleT8
	TupleFVM // full vector memory
	TupleHVM // half vector memory
	TupleQVM // quarter vector memory
	TupleOVM // oct vector memory
	TupleM128
	TupleDUP  // VMOVDDUP
	TupleT1x4 // four 32-bit memory elements
	numTupleTypes
)

var tupleNames = []string{
	"None", "FV", "HV", "T1S8", "T1S16", "T1S", "T1F", "T2", "T4", "T8",
	"FVM", "HVM", "QVM", "OVM", "M128", "DUP", "T1_4X",
}

func (t TupleType) String() string { return enumName(tupleNames, uint8(t)) }

// ShadowStackAccess says how a memory operand touches the CET shadow stack.
type ShadowStackAccess uint8

const (
	ShStkNone       ShadowStackAccess = iota
	ShStkExplicit                     // explicit operand accessed as shadow stack
	ShStkSspLdSt                      // SSP as base of a load/store
	ShStkSspPushPop                   // SSP as base of a push/pop
	ShStkPl0Ssp                       // IA32_PL0_SSP
	numShStk
)

func (s ShadowStackAccess) String() string {
	return enumName([]string{"none", "explicit", "ssp ld/st", "ssp push/pop", "pl0 ssp"}, uint8(s))
}

// OperandEncoding names the instruction field an operand is encoded in.
type OperandEncoding uint8

const (
	OpEncNP OperandEncoding = iota // not encoded
	OpEncR                         // modrm.reg
	OpEncM                         // modrm.rm
	OpEncV                         // VEX/EVEX/XOP vvvv
	OpEncD                         // subsequent instruction bytes
	OpEncO                         // low 3 bits of the opcode
	OpEncI                         // immediate
	OpEncC                         // CL
	OpEnc1                         // constant 1
	OpEncL                         // register in immediate
	OpEncA                         // EVEX.aaa
	OpEncE                         // MSR or XCR in ECX
	OpEncS                         // implicit
	numOpEncodings
)

func (e OperandEncoding) String() string {
	return enumName([]string{"NP", "R", "M", "V", "D", "O", "I", "C", "1", "L", "A", "E", "S"}, uint8(e))
}

// FpuFlagAccess is the access applied to one x87 condition code bit.
type FpuFlagAccess uint8

const (
	FpuCleared FpuFlagAccess = iota
	FpuSet
	FpuModified
	FpuUndefined
)

func (a FpuFlagAccess) String() string {
	return [...]string{"0", "1", "m", "u"}[a&3]
}

// Two bits always name one of the four accesses.
func fpuFlagAccessFromBits(v uint8) FpuFlagAccess { return FpuFlagAccess(v & 3) }

// OpSize is an operand size in bytes, or one of the two special sizes. The
// named constants are the common sizes, not a closed set.
type OpSize uint32

const (
	Size8Bit      OpSize = 1
	Size16Bit     OpSize = 2
	Size32Bit     OpSize = 4
	Size48Bit     OpSize = 6
	Size64Bit     OpSize = 8
	Size80Bit     OpSize = 10
	Size112Bit    OpSize = 14
	Size128Bit    OpSize = 16
	Size224Bit    OpSize = 28
	Size256Bit    OpSize = 32
	Size384Bit    OpSize = 48
	Size512Bit    OpSize = 64
	Size752Bit    OpSize = 94
	Size864Bit    OpSize = 108
	Size4096Bit   OpSize = 512
	Size1KB       OpSize = 1024
	SizeCacheLine OpSize = 0xFFFFFFFE
	SizeUnknown   OpSize = 0xFFFFFFFF
)

// opSizeFromRaw is total: the decoder reports any byte count, such as 12
// for SAVEPREVSSP or 24 and 40 for the wide stack accesses, and only the
// cache line and unknown sizes are special.
func opSizeFromRaw(raw uint32) OpSize { return OpSize(raw) }

// Bytes returns the size in bytes, or false for the cache line and unknown sizes.
func (s OpSize) Bytes() (uint32, bool) {
	if s == SizeCacheLine || s == SizeUnknown {
		return 0, false
	}
	return uint32(s), true
}

func (s OpSize) String() string {
	switch s {
	case SizeCacheLine:
		return "cache line"
	case SizeUnknown:
		return "unknown"
	}
	return fmt.Sprintf("%d", uint32(s))
}
