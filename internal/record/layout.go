// Package record defines the flat, little-endian layout the native shim
// exports a decode result into, and the accessors that read fields back out
// of it by byte offset and bit position.
//
// The layout is owned by this repository, not by the native library: the
// shim in internal/native fills it field by field, so the native struct's
// compiler-specific bitfield packing never crosses the cgo boundary.
package record

// Sizes of the exported records.
const (
	InstruxSize  = 0xB0
	OperandSize  = 0x30
	MaxOperands  = 10
	MnemonicSize = 32
)

// Instruction header offsets.
const (
	OffModes            = 0x00 // u32, see Modes* shifts
	OffVecModes         = 0x04 // u8, VecMode low nibble, EfVecMode high nibble
	OffLength           = 0x05 // u8
	OffWordPrefLength   = 0x06 // u8, WordLength low nibble, PrefLength high nibble
	OffOperandsCount    = 0x07 // u8
	OffFlags            = 0x08 // u64, see Flag* bits
	OffLengths          = 0x10 // u64 of nibbles, see Len* indexes
	OffOffsets          = 0x18 // u64 of nibbles, see Pos* indexes
	OffRep              = 0x20
	OffSeg              = 0x21
	OffBhint            = 0x22
	OffRex              = 0x23
	OffModRm            = 0x24
	OffSib              = 0x25
	OffExpOperandsCount = 0x26
	OffFpuFlags         = 0x27 // u8, C0..C3 two bits each
	OffPrefixBytes      = 0x28 // [4]u8, raw VEX2/VEX3/XOP/EVEX bytes
	OffExs              = 0x2C // u32, see Exs* fields
	OffAddrIP           = 0x30 // u32
	OffAddrCS           = 0x34 // u16
	OffSseImmediate     = 0x36
	OffSseCondition     = 0x37
	OffMoffset          = 0x38 // u64
	OffDisplacement     = 0x40 // u32
	OffRelativeOffset   = 0x44 // u32
	OffImmediate1       = 0x48 // u64
	OffImmediate2       = 0x50
	OffImmediate3       = 0x51
	OffCondition        = 0x52
	OffExceptionClass   = 0x53
	OffExceptionType    = 0x54
	OffRoundingMode     = 0x55
	OffSimdExceptions   = 0x56
	OffPrimaryOpCode    = 0x57
	OffFlagsTested      = 0x58 // u32
	OffFlagsModified    = 0x5C // u32
	OffFlagsSet         = 0x60 // u32
	OffFlagsCleared     = 0x64 // u32
	OffFlagsUndefined   = 0x68 // u32
	OffAttributes       = 0x6C // u32
	OffInstruction      = 0x70 // u32
	OffValidModes       = 0x74 // u32
	OffValidPrefixes    = 0x78 // u16
	OffValidDecorators  = 0x7A // u8
	OffOpCodeBytes      = 0x7B // [3]u8
	OffOperandsEncMap   = 0x7E // u16
	OffInstrBytes       = 0x80 // [16]u8
	OffMnemonic         = 0x90 // [32]u8, NUL padded
)

// Field shifts inside the u32 at OffModes. Every field is 4 bits wide.
const (
	ModesDefCode  = 0
	ModesDefData  = 4
	ModesDefStack = 8
	ModesEncMode  = 12
	ModesVexMode  = 16
	ModesAddrMode = 20
	ModesOpMode   = 24
	ModesEfOpMode = 28
)

// Bits of the u64 at OffFlags.
const (
	FlagHasRex = iota
	FlagHasVex
	FlagHasXop
	FlagHasEvex
	FlagHasOpSize
	FlagHasAddrSize
	FlagHasLock
	FlagHasRepnzXacquireBnd
	FlagHasRepRepzXrelease
	FlagHasSeg
	FlagIsRepeated
	FlagIsXacquireEnabled
	FlagIsXreleaseEnabled
	FlagIsRipRelative
	FlagIsCetTracked
	FlagHasModRm
	FlagHasSib
	FlagHasDisp
	FlagHasAddr
	FlagHasMoffset
	FlagHasImm1
	FlagHasImm2
	FlagHasImm3
	FlagHasRelOffs
	FlagHasSseImm
	FlagHasCompDisp
	FlagHasBroadcast
	FlagHasMask
	FlagHasZero
	FlagHasEr
	FlagHasSae
	FlagSignDisp
	FlagHasMandatory66
	FlagHasMandatoryF2
	FlagHasMandatoryF3
)

// Nibble indexes inside the u64 at OffLengths.
const (
	LenOp = iota
	LenDisp
	LenAddr
	LenMoffset
	LenImm1
	LenImm2
	LenImm3
	LenRelOffs
)

// Nibble indexes inside the u64 at OffOffsets.
const (
	PosOp = iota
	PosMainOp
	PosDisp
	PosAddr
	PosMoffset
	PosImm1
	PosImm2
	PosImm3
	PosRelOffs
	PosSseImm
	PosModRm
)

// Field shifts and widths inside the u32 at OffExs.
const (
	ExsW  = 0  // 1 bit
	ExsR  = 1  // 1 bit
	ExsX  = 2  // 1 bit
	ExsB  = 3  // 1 bit
	ExsRp = 4  // 1 bit
	ExsP  = 5  // 2 bits
	ExsM  = 7  // 5 bits
	ExsL  = 12 // 2 bits
	ExsV  = 14 // 4 bits
	ExsVp = 18 // 1 bit
	ExsBm = 19 // 1 bit
	ExsZ  = 20 // 1 bit
	ExsK  = 21 // 3 bits
)

// Operand record offsets.
const (
	OpOffType      = 0x00
	OpOffEncoding  = 0x01
	OpOffAccess    = 0x02
	OpOffFlags     = 0x03
	OpOffSize      = 0x04 // u32
	OpOffRawSize   = 0x08 // u32
	OpOffDecorator = 0x0C // u32, see Deco* fields

	// Register payload.
	OpOffRegType  = 0x10 // u32
	OpOffRegSize  = 0x14 // u32
	OpOffReg      = 0x18 // u32
	OpOffRegCount = 0x1C // u32
	OpOffRegFlags = 0x20 // u8, see Reg* bits

	// Memory payload.
	OpOffMemFlags     = 0x10 // u32, see Mem* bits
	OpOffMemBaseSize  = 0x14 // u32
	OpOffMemIndexSize = 0x18 // u32
	OpOffMemDispSize  = 0x1C
	OpOffMemCompDisp  = 0x1D
	OpOffMemShStkType = 0x1E
	OpOffMemVsibIndex = 0x1F
	OpOffMemVsibElem  = 0x20
	OpOffMemVsibCount = 0x21
	OpOffMemSeg       = 0x22
	OpOffMemBase      = 0x23
	OpOffMemIndex     = 0x24
	OpOffMemScale     = 0x25
	OpOffMemDisp      = 0x28 // u64

	// Immediate, relative offset and constant payload.
	OpOffValue = 0x10 // u64

	// Far address payload.
	OpOffAddrSeg    = 0x10 // u16
	OpOffAddrOffset = 0x18 // u64
)

// Bits of the operand flags byte.
const (
	OpFlagIsDefault = iota
	OpFlagSignExtendedOp1
	OpFlagSignExtendedDws
)

// Fields of the u32 at OpOffDecorator.
const (
	DecoHasMask      = 0
	DecoHasZero      = 1
	DecoHasBroadcast = 2
	DecoHasSae       = 3
	DecoHasEr        = 4
	DecoMsk          = 8  // 8 bits
	DecoBcCount      = 16 // 8 bits
	DecoBcSize       = 24 // 8 bits
)

// Bits of the register flags byte.
const (
	RegIsHigh8 = iota
	RegIsBlock
)

// Bits of the u32 at OpOffMemFlags.
const (
	MemHasSeg = iota
	MemHasBase
	MemHasIndex
	MemHasDisp
	MemHasCompDisp
	MemHasBroadcast
	MemIsRipRel
	MemIsStack
	MemIsString
	MemIsShadowStack
	MemIsDirect
	MemIsBitbase
	MemIsAG
	MemIsMib
	MemIsVsib
	MemIsSibMem
)

// Property selects a value served by the get-property primitive.
type Property uint8

const (
	PropCpuidFlag Property = iota + 1
	PropStackWords
	PropRipAccess
	PropStackAccess
	PropMemoryAccess
	PropCsAccess
	PropFlagsAccess
	PropTupleType
	PropCategory
	PropIsaSet
)

// NumProperties is one past the highest Property value.
const NumProperties = int(PropIsaSet) + 1

var propertyNames = [...]string{
	PropCpuidFlag:    "cpuid",
	PropStackWords:   "stack-words",
	PropRipAccess:    "rip-access",
	PropStackAccess:  "stack-access",
	PropMemoryAccess: "memory-access",
	PropCsAccess:     "cs-access",
	PropFlagsAccess:  "flags-access",
	PropTupleType:    "tuple",
	PropCategory:     "category",
	PropIsaSet:       "isa-set",
}

func (p Property) String() string {
	if int(p) < len(propertyNames) && propertyNames[p] != "" {
		return propertyNames[p]
	}
	return "unknown"
}

// Valid reports whether p names a property the engines serve.
func (p Property) Valid() bool {
	return p >= PropCpuidFlag && p <= PropIsaSet
}
