package bddisasm

// DecodeMode selects the default code and data size of a decode.
type DecodeMode uint8

const (
	Bits16 DecodeMode = iota // 16-bit code and data
	Bits32                   // 32-bit code and data
	Bits64                   // 64-bit code and data
)

func (m DecodeMode) String() string {
	switch m {
	case Bits16:
		return "16"
	case Bits32:
		return "32"
	case Bits64:
		return "64"
	}
	return "invalid"
}

// Valid reports whether m is one of the three decode modes.
func (m DecodeMode) Valid() bool { return m <= Bits64 }

// ModeFromBits maps 16, 32 or 64 to a DecodeMode.
func ModeFromBits(bits int) (DecodeMode, bool) {
	switch bits {
	case 16:
		return Bits16, true
	case 32:
		return Bits32, true
	case 64:
		return Bits64, true
	}
	return 0, false
}

// native code and data selectors; ND_CODE_* and ND_DATA_* share values.
func (m DecodeMode) native() (defCode, defData uint8) {
	return uint8(m), uint8(m)
}
