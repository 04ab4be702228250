package cmd

import (
	"fmt"
	"strings"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/disasm"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

// byteColumns is the width, in bytes, reserved for the encoding column.
const byteColumns = 16

// byteLayout is the number of bytes each instruction component takes, in
// encoding order.
type byteLayout struct {
	Prefix   int
	Opcode   int
	ModRm    int
	Sib      int
	Disp     int
	Addr     int
	Moffset  int
	Rel      int
	Imm      int
	Trailing int // 3DNow! opcode, which follows the operands
}

func layoutOf(ins bddisasm.DecodedInstruction) byteLayout {
	l := byteLayout{
		Prefix:  int(ins.PrefLength()),
		Opcode:  int(ins.OpLength()),
		Disp:    int(ins.DispLength()),
		Addr:    int(ins.AddrLength()),
		Moffset: int(ins.MoffsetLength()),
		Rel:     int(ins.RelOffsLength()),
		Imm:     int(ins.Imm1Length()) + int(ins.Imm2Length()) + int(ins.Imm3Length()),
	}
	if ins.HasModRm() {
		l.ModRm = 1
	}
	if ins.HasSib() {
		l.Sib = 1
	}
	if ins.HasSseImm() {
		l.Imm++
	}
	if ins.Is3DNow() && l.Opcode > 0 {
		l.Opcode--
		l.Trailing = 1
	}
	return l
}

func (l byteLayout) spans() []colorize.Span {
	all := []colorize.Span{
		{Part: colorize.PartPrefix, Len: l.Prefix},
		{Part: colorize.PartOpcode, Len: l.Opcode},
		{Part: colorize.PartModRm, Len: l.ModRm},
		{Part: colorize.PartSib, Len: l.Sib},
		{Part: colorize.PartDisp, Len: l.Disp},
		{Part: colorize.PartAddr, Len: l.Addr},
		{Part: colorize.PartMoffset, Len: l.Moffset},
		{Part: colorize.PartRel, Len: l.Rel},
		{Part: colorize.PartImm, Len: l.Imm},
		{Part: colorize.PartOpcode, Len: l.Trailing},
	}
	out := all[:0]
	for _, s := range all {
		if s.Len > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (l byteLayout) total() int {
	return l.Prefix + l.Opcode + l.ModRm + l.Sib + l.Disp + l.Addr + l.Moffset + l.Rel + l.Imm + l.Trailing
}

func bytePadding(n int) string {
	if n >= byteColumns {
		return ""
	}
	return strings.Repeat("  ", byteColumns-n)
}

// formatEntry renders one listing line: address, encoding and text. The
// encoding is colored per component when color is on.
func formatEntry(in disasm.Inst) string {
	var enc string
	if in.Valid() {
		enc = colorize.Bytes(in.Bytes, layoutOf(in.Ins).spans())
	} else {
		enc = colorize.Bytes(in.Bytes, nil)
	}
	return fmt.Sprintf("%x %s%s%s", in.VA, enc, bytePadding(len(in.Bytes)), in.Text)
}
