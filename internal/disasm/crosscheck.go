package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/bitdefender/bddisasm"
)

// Mismatch is a listing entry on which x86asm disagrees with bddisasm.
type Mismatch struct {
	VA       uint64
	Bytes    []byte
	Ours     int // bddisasm length, 0 when it rejected the bytes
	Theirs   int // x86asm length, 0 when it rejected the bytes
	Text     string
	TheirsAs string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%x: bddisasm %d bytes (%s), x86asm %d bytes (%s)", m.VA, m.Ours, m.Text, m.Theirs, m.TheirsAs)
}

// CrossCheck re-decodes every entry of s with x86asm and reports the ones
// whose length or validity differ. code must be the buffer s was built
// from and base the address of its first byte.
func CrossCheck(s Stream, code []byte, base uint64, mode bddisasm.DecodeMode) []Mismatch {
	bits := 64
	switch mode {
	case bddisasm.Bits16:
		bits = 16
	case bddisasm.Bits32:
		bits = 32
	}

	var out []Mismatch
	for _, in := range s {
		off := in.VA - base
		if off >= uint64(len(code)) {
			continue
		}
		window := code[off:min(off+bddisasm.MaxInstructionLength, uint64(len(code)))]

		ours := 0
		if in.Valid() {
			ours = in.Len()
		}
		theirs, text := 0, "invalid"
		if x, err := x86asm.Decode(window, bits); err == nil {
			theirs, text = x.Len, x86asm.IntelSyntax(x, in.VA, nil)
		}
		if ours == theirs {
			continue
		}
		out = append(out, Mismatch{
			VA:       in.VA,
			Bytes:    in.Bytes,
			Ours:     ours,
			Theirs:   theirs,
			Text:     in.Text,
			TheirsAs: text,
		})
	}
	return out
}
