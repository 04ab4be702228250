package bddisasm

import "fmt"

// Status is a raw status code returned by the native library.
type Status uint32

// Native status codes.
const (
	StatusSuccess               Status = 0x00000000
	StatusHintOperandNotUsed    Status = 0x00000001
	StatusHintOperandNotPresent Status = 0x00000002

	StatusBufferTooSmall               Status = 0x80000001
	StatusInvalidEncoding              Status = 0x80000002
	StatusInstructionTooLong           Status = 0x80000003
	StatusInvalidPrefixSequence        Status = 0x80000004
	StatusInvalidRegisterInInstruction Status = 0x80000005
	StatusXopWithPrefix                Status = 0x80000006
	StatusVexWithPrefix                Status = 0x80000007
	StatusEvexWithPrefix               Status = 0x80000008
	StatusInvalidEncodingInMode        Status = 0x80000009
	StatusBadLockPrefix                Status = 0x8000000A
	StatusCsLoad                       Status = 0x8000000B
	Status66NotAccepted                Status = 0x8000000C
	Status16BitAddressingNotSupported  Status = 0x8000000D
	StatusRipRelAddressingNotSupported Status = 0x8000000E
	StatusVsibWithoutSib               Status = 0x80000030
	StatusInvalidVsibRegs              Status = 0x80000031
	StatusVexVvvvMustBeZero            Status = 0x80000032
	StatusMaskNotSupported             Status = 0x80000033
	StatusMaskRequired                 Status = 0x80000034
	StatusErSaeNotSupported            Status = 0x80000035
	StatusZeroingNotSupported          Status = 0x80000036
	StatusZeroingOnMemory              Status = 0x80000037
	StatusZeroingNoMask                Status = 0x80000038
	StatusBroadcastNotSupported        Status = 0x80000039
	StatusBadEvexVPrime                Status = 0x80000040
	StatusBadEvexLL                    Status = 0x80000041
	StatusSibmemWithoutSib             Status = 0x80000042
	StatusInvalidTileRegs              Status = 0x80000043
	StatusInvalidDestRegs              Status = 0x80000044
	StatusBadEvexU                     Status = 0x80000045
	StatusInvalidEvexByte3             Status = 0x80000046
	StatusInvalidParameter             Status = 0x80000100
	StatusInvalidInstrux               Status = 0x80000101
	StatusBufferOverflow               Status = 0x80000103
	StatusInternalError                Status = 0x80000200
)

// Success reports whether s is the success code or one of the two
// informational hints.
func (s Status) Success() bool {
	switch s {
	case StatusSuccess, StatusHintOperandNotUsed, StatusHintOperandNotPresent:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusHintOperandNotUsed:
		return "hint: operand not used"
	case StatusHintOperandNotPresent:
		return "hint: operand not present"
	}
	if _, ok := decodeErrorText[DecodeError(s)]; ok {
		return DecodeError(s).Error()
	}
	return fmt.Sprintf("status %#08x", uint32(s))
}

// Err maps s to an error. It returns nil for success and both hint codes.
func (s Status) Err() error { return statusToError(uint32(s)) }

func statusToError(st uint32) error {
	s := Status(st)
	if s.Success() {
		return nil
	}
	if _, ok := decodeErrorText[DecodeError(s)]; ok {
		return DecodeError(s)
	}
	return &InternalError{Value: uint64(st)}
}
