// Package bddisasm decodes x86 and x64 instructions with the Bitdefender
// disassembler library and exposes the result as plain Go values.
//
// The native library does all of the decoding. This package marshals code
// bytes into it, projects the packed result into typed values, and maps its
// status codes onto errors.
//
//	ins, err := bddisasm.Decode([]byte{0xb8, 0, 0, 0, 0}, bddisasm.Bits32)
//	if err != nil {
//		return err
//	}
//	fmt.Println(ins) // MOV       eax, 0x00000000
//
// Building without cgo yields a package whose decodes all fail with
// ErrEngineUnavailable.
package bddisasm

import (
	"github.com/bitdefender/bddisasm/internal/record"
)

// MaxInstructionLength is the architectural limit on instruction length.
const MaxInstructionLength = 15

// minFormatBuffer is the smallest buffer the native formatter accepts.
const minFormatBuffer = 128

// engine is the native boundary: decode, format, get-operand and
// get-property. Every call can fail and reports a raw status.
type engine interface {
	Decode(code []byte, defCode, defData uint8) (hdr record.Instrux, native []byte, status uint32)
	Format(native []byte, ip uint64, buf []byte) uint32
	Operand(native []byte, index uint8) (record.Operand, uint32)
	Property(native []byte, p record.Property) (uint64, uint32)
}

// activeEngine is nil when the native library is not linked in.
var activeEngine = defaultEngine()

// Decode decodes the first instruction in code, formatted as if it sat at
// address 0.
func Decode(code []byte, mode DecodeMode) (DecodedInstruction, error) {
	return DecodeWithIP(code, mode, 0)
}

// DecodeWithIP decodes the first instruction in code. ip is only used to
// render RIP-relative and branch operands.
func DecodeWithIP(code []byte, mode DecodeMode, ip uint64) (DecodedInstruction, error) {
	return decodeWith(activeEngine, code, mode, ip)
}

func decodeWith(eng engine, code []byte, mode DecodeMode, ip uint64) (DecodedInstruction, error) {
	if eng == nil {
		return DecodedInstruction{}, ErrEngineUnavailable
	}
	if !mode.Valid() {
		return DecodedInstruction{}, ErrInvalidParameter
	}

	defCode, defData := mode.native()
	hdr, native, st := eng.Decode(code, defCode, defData)
	if err := statusToError(st); err != nil {
		return DecodedInstruction{}, err
	}

	length := int(hdr.U8(record.OffLength))
	if length == 0 || length > MaxInstructionLength || length > len(code) {
		return DecodedInstruction{}, internalError(uint64(length))
	}
	if int(hdr.U8(record.OffOperandsCount)) > record.MaxOperands {
		return DecodedInstruction{}, internalError(uint64(hdr.U8(record.OffOperandsCount)))
	}

	return DecodedInstruction{
		hdr:      hdr,
		native:   native,
		eng:      eng,
		ip:       ip,
		mode:     mode,
		mnemonic: hdr.Mnemonic(),
		length:   length,
	}, nil
}
