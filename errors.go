package bddisasm

import (
	"errors"
	"fmt"
)

// DecodeError is a failure reported by the native decoder or formatter.
// Every value is one of the Err constants below; compare with == or
// errors.Is.
type DecodeError Status

const (
	ErrBufferTooSmall               = DecodeError(StatusBufferTooSmall)
	ErrInvalidEncoding              = DecodeError(StatusInvalidEncoding)
	ErrInstructionTooLong           = DecodeError(StatusInstructionTooLong)
	ErrInvalidPrefixSequence        = DecodeError(StatusInvalidPrefixSequence)
	ErrInvalidRegisterInInstruction = DecodeError(StatusInvalidRegisterInInstruction)
	ErrXopWithPrefix                = DecodeError(StatusXopWithPrefix)
	ErrVexWithPrefix                = DecodeError(StatusVexWithPrefix)
	ErrEvexWithPrefix               = DecodeError(StatusEvexWithPrefix)
	ErrInvalidEncodingInMode        = DecodeError(StatusInvalidEncodingInMode)
	ErrBadLockPrefix                = DecodeError(StatusBadLockPrefix)
	ErrCsLoad                       = DecodeError(StatusCsLoad)
	Err66NotAccepted                = DecodeError(Status66NotAccepted)
	Err16BitAddressingNotSupported  = DecodeError(Status16BitAddressingNotSupported)
	ErrRipRelAddressingNotSupported = DecodeError(StatusRipRelAddressingNotSupported)
	ErrVsibWithoutSib               = DecodeError(StatusVsibWithoutSib)
	ErrInvalidVsibRegs              = DecodeError(StatusInvalidVsibRegs)
	ErrVexVvvvMustBeZero            = DecodeError(StatusVexVvvvMustBeZero)
	ErrMaskNotSupported             = DecodeError(StatusMaskNotSupported)
	ErrMaskRequired                 = DecodeError(StatusMaskRequired)
	ErrErSaeNotSupported            = DecodeError(StatusErSaeNotSupported)
	ErrZeroingNotSupported          = DecodeError(StatusZeroingNotSupported)
	ErrZeroingOnMemory              = DecodeError(StatusZeroingOnMemory)
	ErrZeroingNoMask                = DecodeError(StatusZeroingNoMask)
	ErrBroadcastNotSupported        = DecodeError(StatusBroadcastNotSupported)
	ErrBadEvexVPrime                = DecodeError(StatusBadEvexVPrime)
	ErrBadEvexLL                    = DecodeError(StatusBadEvexLL)
	ErrSibmemWithoutSib             = DecodeError(StatusSibmemWithoutSib)
	ErrInvalidTileRegs              = DecodeError(StatusInvalidTileRegs)
	ErrInvalidDestRegs              = DecodeError(StatusInvalidDestRegs)
	ErrBadEvexU                     = DecodeError(StatusBadEvexU)
	ErrInvalidEvexByte3             = DecodeError(StatusInvalidEvexByte3)
	ErrInvalidParameter             = DecodeError(StatusInvalidParameter)
	ErrInvalidInstrux               = DecodeError(StatusInvalidInstrux)
	ErrBufferOverflow               = DecodeError(StatusBufferOverflow)
)

var decodeErrorText = map[DecodeError]string{
	ErrBufferTooSmall:               "the provided input buffer is too small",
	ErrInvalidEncoding:              "invalid encoding/instruction",
	ErrInstructionTooLong:           "instruction exceeds the maximum 15 bytes",
	ErrInvalidPrefixSequence:        "invalid prefix sequence is present",
	ErrInvalidRegisterInInstruction: "the instruction uses an invalid register",
	ErrXopWithPrefix:                "XOP is present, but also a legacy prefix",
	ErrVexWithPrefix:                "VEX is present, but also a legacy prefix",
	ErrEvexWithPrefix:               "EVEX is present, but also a legacy prefix",
	ErrInvalidEncodingInMode:        "invalid encoding/instruction in the given mode",
	ErrBadLockPrefix:                "invalid usage of LOCK",
	ErrCsLoad:                       "an attempt to load the CS register",
	Err66NotAccepted:                "0x66 prefix is not accepted",
	Err16BitAddressingNotSupported:  "16 bit addressing mode not supported",
	ErrRipRelAddressingNotSupported: "RIP-relative addressing not supported",
	ErrVsibWithoutSib:               "instruction uses VSIB, but SIB is not present",
	ErrInvalidVsibRegs:              "VSIB addressing with the same vector register used more than once",
	ErrVexVvvvMustBeZero:            "VEX.VVVV field must be zero",
	ErrMaskNotSupported:             "masking is not supported",
	ErrMaskRequired:                 "masking is mandatory",
	ErrErSaeNotSupported:            "embedded rounding/SAE not supported",
	ErrZeroingNotSupported:          "zeroing not supported",
	ErrZeroingOnMemory:              "zeroing on memory",
	ErrZeroingNoMask:                "zeroing without masking",
	ErrBroadcastNotSupported:        "broadcast not supported",
	ErrBadEvexVPrime:                "EVEX.V' field must be one (negated 0)",
	ErrBadEvexLL:                    "EVEX.L'L field is invalid for the instruction",
	ErrSibmemWithoutSib:             "instruction uses SIBMEM, but SIB is not present",
	ErrInvalidTileRegs:              "tile registers are not unique",
	ErrInvalidDestRegs:              "destination register is not unique (used as src)",
	ErrBadEvexU:                     "EVEX.U field is invalid",
	ErrInvalidEvexByte3:             "EVEX byte 3 is invalid",
	ErrInvalidParameter:             "an invalid parameter was provided",
	ErrInvalidInstrux:               "the INSTRUX structure contains unexpected values",
	ErrBufferOverflow:               "not enough space is available to format instruction",
}

func (e DecodeError) Error() string {
	if s, ok := decodeErrorText[e]; ok {
		return s
	}
	return fmt.Sprintf("decode error %#08x", uint32(e))
}

// Status returns the native status code behind e.
func (e DecodeError) Status() Status { return Status(e) }

// InternalError reports a value the binding does not recognize: an unknown
// native status code, or an unknown tag inside a decoded record.
type InternalError struct {
	Value uint64
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %d", e.Value)
}

// ErrEngineUnavailable is returned by every decode when the module was built
// without cgo.
var ErrEngineUnavailable = errors.New("bddisasm: native engine unavailable (built without cgo)")

func internalError(v uint64) error { return &InternalError{Value: v} }
