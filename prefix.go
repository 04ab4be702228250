package bddisasm

// Rex is a decoded REX prefix.
type Rex struct {
	Raw        uint8
	W, R, X, B bool
}

func rexFromRaw(v uint8) Rex {
	return Rex{Raw: v, W: v&8 != 0, R: v&4 != 0, X: v&2 != 0, B: v&1 != 0}
}

// ModRm is a decoded ModRM byte.
type ModRm struct {
	Raw uint8
	Mod uint8
	Reg uint8
	Rm  uint8
}

func modRmFromRaw(v uint8) ModRm {
	return ModRm{Raw: v, Mod: v >> 6, Reg: v >> 3 & 7, Rm: v & 7}
}

// Sib is a decoded SIB byte.
type Sib struct {
	Raw   uint8
	Scale uint8
	Index uint8
	Base  uint8
}

func sibFromRaw(v uint8) Sib {
	return Sib{Raw: v, Scale: v >> 6, Index: v >> 3 & 7, Base: v & 7}
}

// PrefixEncoding is the extended prefix an instruction was encoded with:
// one of NoPrefix, Vex2, Vex3, Xop or Evex.
//
// R, X, B, V and V' are reported exactly as encoded, that is inverted.
type PrefixEncoding interface {
	isPrefixEncoding()
}

// NoPrefix marks a legacy encoded instruction.
type NoPrefix struct{}

// Vex2 is the two byte VEX prefix (0xC5).
type Vex2 struct {
	Raw [2]byte
	R   bool
	V   uint8
	L   bool
	P   uint8
}

// Vex3 is the three byte VEX prefix (0xC4).
type Vex3 struct {
	Raw     [3]byte
	R, X, B bool
	M       uint8
	W       bool
	V       uint8
	L       bool
	P       uint8
}

// Xop is the AMD XOP prefix (0x8F). It shares the Vex3 layout.
type Xop Vex3

// Evex is the four byte EVEX prefix (0x62).
type Evex struct {
	Raw         [4]byte
	R, X, B, Rp bool
	M           uint8
	W           bool
	V           uint8
	P           uint8
	Z           bool
	L           uint8 // L'L
	Bm          bool  // broadcast/rounding control
	Vp          bool
	A           uint8 // opmask register
}

func (NoPrefix) isPrefixEncoding() {}
func (Vex2) isPrefixEncoding()     {}
func (Vex3) isPrefixEncoding()     {}
func (Xop) isPrefixEncoding()      {}
func (Evex) isPrefixEncoding()     {}

func bit(b byte, n uint) bool { return b>>n&1 != 0 }

func vex2FromRaw(b [4]byte) Vex2 {
	return Vex2{
		Raw: [2]byte{b[0], b[1]},
		R:   bit(b[1], 7),
		V:   b[1] >> 3 & 0xF,
		L:   bit(b[1], 2),
		P:   b[1] & 3,
	}
}

func vex3FromRaw(b [4]byte) Vex3 {
	return Vex3{
		Raw: [3]byte{b[0], b[1], b[2]},
		R:   bit(b[1], 7),
		X:   bit(b[1], 6),
		B:   bit(b[1], 5),
		M:   b[1] & 0x1F,
		W:   bit(b[2], 7),
		V:   b[2] >> 3 & 0xF,
		L:   bit(b[2], 2),
		P:   b[2] & 3,
	}
}

func evexFromRaw(b [4]byte) Evex {
	return Evex{
		Raw: b,
		R:   bit(b[1], 7),
		X:   bit(b[1], 6),
		B:   bit(b[1], 5),
		Rp:  bit(b[1], 4),
		M:   b[1] & 7,
		W:   bit(b[2], 7),
		V:   b[2] >> 3 & 0xF,
		P:   b[2] & 3,
		Z:   bit(b[3], 7),
		L:   b[3] >> 5 & 3,
		Bm:  bit(b[3], 4),
		Vp:  bit(b[3], 3),
		A:   b[3] & 7,
	}
}
