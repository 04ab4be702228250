//go:build cgo

package native

/*
#cgo pkg-config: bddisasm
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/bitdefender/bddisasm/internal/record"
)

const (
	statusBufferTooSmall   = uint32(C.NDX_STATUS_BUFFER_TOO_SMALL)
	statusInvalidParameter = uint32(C.NDX_STATUS_INVALID_PARAMETER)
	statusInvalidInstrux   = uint32(C.NDX_STATUS_INVALID_INSTRUX)
)

// HeaderVersion is the bddisasm version of the headers this package was
// built against.
func HeaderVersion() string {
	return fmt.Sprintf("%d.%d.%d", int(C.DISASM_VERSION_MAJOR), int(C.DISASM_VERSION_MINOR), int(C.DISASM_VERSION_REVISION))
}

// InstruxSize is the size of the native INSTRUX blob.
const InstruxSize = int(C.sizeof_INSTRUX)

// Engine calls into libbddisasm. The zero value is ready to use and safe
// for concurrent use.
type Engine struct{}

// New returns the native engine.
func New() Engine { return Engine{} }

// Decode decodes one instruction from code. On success it returns the
// exported header and a copy of the native INSTRUX.
func (Engine) Decode(code []byte, defCode, defData uint8) (record.Instrux, []byte, uint32) {
	var hdr record.Instrux
	if len(code) == 0 {
		return hdr, nil, statusBufferTooSmall
	}

	var ix C.INSTRUX
	st := uint32(C.ndx_decode(&ix,
		(*C.uint8_t)(unsafe.Pointer(&code[0])), C.size_t(len(code)),
		C.uint8_t(defCode), C.uint8_t(defData),
		(*C.uint8_t)(unsafe.Pointer(&hdr[0]))))
	if st >= 0x80000000 {
		return hdr, nil, st
	}
	return hdr, C.GoBytes(unsafe.Pointer(&ix), C.int(InstruxSize)), st
}

// Format renders blob into buf as a NUL-terminated string.
func (Engine) Format(blob []byte, ip uint64, buf []byte) uint32 {
	ix, ok := load(blob)
	if !ok {
		return statusInvalidInstrux
	}
	if len(buf) == 0 {
		return statusInvalidParameter
	}
	return uint32(C.ndx_format(ix, C.uint64_t(ip), C.uint32_t(len(buf)), (*C.char)(unsafe.Pointer(&buf[0]))))
}

// Operand exports operand index of blob.
func (Engine) Operand(blob []byte, index uint8) (record.Operand, uint32) {
	var op record.Operand
	ix, ok := load(blob)
	if !ok {
		return op, statusInvalidInstrux
	}
	st := uint32(C.ndx_operand(ix, C.uint8_t(index), (*C.uint8_t)(unsafe.Pointer(&op[0]))))
	return op, st
}

// Property reads a derived property of blob.
func (Engine) Property(blob []byte, p record.Property) (uint64, uint32) {
	ix, ok := load(blob)
	if !ok {
		return 0, statusInvalidInstrux
	}
	var v C.uint64_t
	st := uint32(C.ndx_property(ix, C.uint8_t(p), &v))
	return uint64(v), st
}

// load copies blob into a C-typed INSTRUX so the native side never sees a
// Go slice header.
func load(blob []byte) (*C.INSTRUX, bool) {
	if len(blob) != InstruxSize {
		return nil, false
	}
	ix := new(C.INSTRUX)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(ix)), InstruxSize), blob)
	return ix, true
}

// Status is one status constant the linked library defines.
type Status struct {
	Name  string
	Value uint32
}

// StatusTable lists the status constants defined by the headers this
// package was built against.
func StatusTable() []Status {
	n := int(C.ndx_status_count())
	out := make([]Status, 0, n)
	for i := 0; i < n; i++ {
		e := C.ndx_status_at(C.size_t(i))
		if e == nil {
			break
		}
		out = append(out, Status{Name: C.GoString(e.Name), Value: uint32(e.Value)})
	}
	return out
}

// LayoutField pairs a shim offset with the matching record offset.
type LayoutField struct {
	Name   string
	Shim   int
	Record int
}

// Layout reports every offset the shim writes next to the offset the Go
// side reads it from.
func Layout() []LayoutField {
	return []LayoutField{
		{"InstruxSize", C.NDX_INSTRUX_SIZE, record.InstruxSize},
		{"OperandSize", C.NDX_OPERAND_SIZE, record.OperandSize},
		{"MnemonicSize", C.NDX_MNEMONIC_SIZE, record.MnemonicSize},
		{"Modes", C.NDX_OFF_MODES, record.OffModes},
		{"VecModes", C.NDX_OFF_VEC_MODES, record.OffVecModes},
		{"Length", C.NDX_OFF_LENGTH, record.OffLength},
		{"WordPrefLength", C.NDX_OFF_WORD_PREF_LENGTH, record.OffWordPrefLength},
		{"OperandsCount", C.NDX_OFF_OPERANDS_COUNT, record.OffOperandsCount},
		{"Flags", C.NDX_OFF_FLAGS, record.OffFlags},
		{"Lengths", C.NDX_OFF_LENGTHS, record.OffLengths},
		{"Offsets", C.NDX_OFF_OFFSETS, record.OffOffsets},
		{"Rep", C.NDX_OFF_REP, record.OffRep},
		{"Seg", C.NDX_OFF_SEG, record.OffSeg},
		{"Bhint", C.NDX_OFF_BHINT, record.OffBhint},
		{"Rex", C.NDX_OFF_REX, record.OffRex},
		{"ModRm", C.NDX_OFF_MODRM, record.OffModRm},
		{"Sib", C.NDX_OFF_SIB, record.OffSib},
		{"ExpOperandsCount", C.NDX_OFF_EXP_OPERANDS_COUNT, record.OffExpOperandsCount},
		{"FpuFlags", C.NDX_OFF_FPU_FLAGS, record.OffFpuFlags},
		{"PrefixBytes", C.NDX_OFF_PREFIX_BYTES, record.OffPrefixBytes},
		{"Exs", C.NDX_OFF_EXS, record.OffExs},
		{"AddrIP", C.NDX_OFF_ADDR_IP, record.OffAddrIP},
		{"AddrCS", C.NDX_OFF_ADDR_CS, record.OffAddrCS},
		{"SseImmediate", C.NDX_OFF_SSE_IMMEDIATE, record.OffSseImmediate},
		{"SseCondition", C.NDX_OFF_SSE_CONDITION, record.OffSseCondition},
		{"Moffset", C.NDX_OFF_MOFFSET, record.OffMoffset},
		{"Displacement", C.NDX_OFF_DISPLACEMENT, record.OffDisplacement},
		{"RelativeOffset", C.NDX_OFF_RELATIVE_OFFSET, record.OffRelativeOffset},
		{"Immediate1", C.NDX_OFF_IMMEDIATE1, record.OffImmediate1},
		{"Immediate2", C.NDX_OFF_IMMEDIATE2, record.OffImmediate2},
		{"Immediate3", C.NDX_OFF_IMMEDIATE3, record.OffImmediate3},
		{"Condition", C.NDX_OFF_CONDITION, record.OffCondition},
		{"ExceptionClass", C.NDX_OFF_EXCEPTION_CLASS, record.OffExceptionClass},
		{"ExceptionType", C.NDX_OFF_EXCEPTION_TYPE, record.OffExceptionType},
		{"RoundingMode", C.NDX_OFF_ROUNDING_MODE, record.OffRoundingMode},
		{"SimdExceptions", C.NDX_OFF_SIMD_EXCEPTIONS, record.OffSimdExceptions},
		{"PrimaryOpCode", C.NDX_OFF_PRIMARY_OPCODE, record.OffPrimaryOpCode},
		{"FlagsTested", C.NDX_OFF_FLAGS_TESTED, record.OffFlagsTested},
		{"FlagsModified", C.NDX_OFF_FLAGS_MODIFIED, record.OffFlagsModified},
		{"FlagsSet", C.NDX_OFF_FLAGS_SET, record.OffFlagsSet},
		{"FlagsCleared", C.NDX_OFF_FLAGS_CLEARED, record.OffFlagsCleared},
		{"FlagsUndefined", C.NDX_OFF_FLAGS_UNDEFINED, record.OffFlagsUndefined},
		{"Attributes", C.NDX_OFF_ATTRIBUTES, record.OffAttributes},
		{"Instruction", C.NDX_OFF_INSTRUCTION, record.OffInstruction},
		{"ValidModes", C.NDX_OFF_VALID_MODES, record.OffValidModes},
		{"ValidPrefixes", C.NDX_OFF_VALID_PREFIXES, record.OffValidPrefixes},
		{"ValidDecorators", C.NDX_OFF_VALID_DECORATORS, record.OffValidDecorators},
		{"OpCodeBytes", C.NDX_OFF_OPCODE_BYTES, record.OffOpCodeBytes},
		{"OperandsEncMap", C.NDX_OFF_OPERANDS_ENC_MAP, record.OffOperandsEncMap},
		{"InstrBytes", C.NDX_OFF_INSTR_BYTES, record.OffInstrBytes},
		{"Mnemonic", C.NDX_OFF_MNEMONIC, record.OffMnemonic},
		{"OpType", C.NDX_OP_OFF_TYPE, record.OpOffType},
		{"OpEncoding", C.NDX_OP_OFF_ENCODING, record.OpOffEncoding},
		{"OpAccess", C.NDX_OP_OFF_ACCESS, record.OpOffAccess},
		{"OpFlags", C.NDX_OP_OFF_FLAGS, record.OpOffFlags},
		{"OpSize", C.NDX_OP_OFF_SIZE, record.OpOffSize},
		{"OpRawSize", C.NDX_OP_OFF_RAW_SIZE, record.OpOffRawSize},
		{"OpDecorator", C.NDX_OP_OFF_DECORATOR, record.OpOffDecorator},
		{"OpRegType", C.NDX_OP_OFF_REG_TYPE, record.OpOffRegType},
		{"OpRegSize", C.NDX_OP_OFF_REG_SIZE, record.OpOffRegSize},
		{"OpReg", C.NDX_OP_OFF_REG, record.OpOffReg},
		{"OpRegCount", C.NDX_OP_OFF_REG_COUNT, record.OpOffRegCount},
		{"OpRegFlags", C.NDX_OP_OFF_REG_FLAGS, record.OpOffRegFlags},
		{"OpMemFlags", C.NDX_OP_OFF_MEM_FLAGS, record.OpOffMemFlags},
		{"OpMemBaseSize", C.NDX_OP_OFF_MEM_BASE_SIZE, record.OpOffMemBaseSize},
		{"OpMemIndexSize", C.NDX_OP_OFF_MEM_INDEX_SIZE, record.OpOffMemIndexSize},
		{"OpMemDispSize", C.NDX_OP_OFF_MEM_DISP_SIZE, record.OpOffMemDispSize},
		{"OpMemCompDisp", C.NDX_OP_OFF_MEM_COMP_DISP, record.OpOffMemCompDisp},
		{"OpMemShStkType", C.NDX_OP_OFF_MEM_SHSTK_TYPE, record.OpOffMemShStkType},
		{"OpMemVsibIndex", C.NDX_OP_OFF_MEM_VSIB_INDEX, record.OpOffMemVsibIndex},
		{"OpMemVsibElem", C.NDX_OP_OFF_MEM_VSIB_ELEM, record.OpOffMemVsibElem},
		{"OpMemVsibCount", C.NDX_OP_OFF_MEM_VSIB_COUNT, record.OpOffMemVsibCount},
		{"OpMemSeg", C.NDX_OP_OFF_MEM_SEG, record.OpOffMemSeg},
		{"OpMemBase", C.NDX_OP_OFF_MEM_BASE, record.OpOffMemBase},
		{"OpMemIndex", C.NDX_OP_OFF_MEM_INDEX, record.OpOffMemIndex},
		{"OpMemScale", C.NDX_OP_OFF_MEM_SCALE, record.OpOffMemScale},
		{"OpMemDisp", C.NDX_OP_OFF_MEM_DISP, record.OpOffMemDisp},
		{"OpValue", C.NDX_OP_OFF_VALUE, record.OpOffValue},
		{"OpAddrSeg", C.NDX_OP_OFF_ADDR_SEG, record.OpOffAddrSeg},
		{"OpAddrOffset", C.NDX_OP_OFF_ADDR_OFFSET, record.OpOffAddrOffset},
		{"PropCpuidFlag", C.NDX_PROP_CPUID_FLAG, int(record.PropCpuidFlag)},
		{"PropStackWords", C.NDX_PROP_STACK_WORDS, int(record.PropStackWords)},
		{"PropRipAccess", C.NDX_PROP_RIP_ACCESS, int(record.PropRipAccess)},
		{"PropStackAccess", C.NDX_PROP_STACK_ACCESS, int(record.PropStackAccess)},
		{"PropMemoryAccess", C.NDX_PROP_MEMORY_ACCESS, int(record.PropMemoryAccess)},
		{"PropCsAccess", C.NDX_PROP_CS_ACCESS, int(record.PropCsAccess)},
		{"PropFlagsAccess", C.NDX_PROP_FLAGS_ACCESS, int(record.PropFlagsAccess)},
		{"PropTupleType", C.NDX_PROP_TUPLE_TYPE, int(record.PropTupleType)},
		{"PropCategory", C.NDX_PROP_CATEGORY, int(record.PropCategory)},
		{"PropIsaSet", C.NDX_PROP_ISA_SET, int(record.PropIsaSet)},
	}
}
