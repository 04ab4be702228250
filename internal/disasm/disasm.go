// Package disasm builds listings out of bddisasm decodes: one entry per
// instruction or per undecodable byte, in address order.
package disasm

import (
	"fmt"
	"sort"

	"github.com/bitdefender/bddisasm"
)

// Inst is one listing entry. When Err is set the entry covers the single
// byte the decoder skipped and Ins is the zero value.
type Inst struct {
	VA       uint64
	Bytes    []byte
	Text     string
	Mnemonic string
	Err      error
	Ins      bddisasm.DecodedInstruction
}

// Valid reports whether the entry holds a decoded instruction.
func (i Inst) Valid() bool { return i.Err == nil }

// Len is the number of bytes the entry covers.
func (i Inst) Len() int { return len(i.Bytes) }

// Next is the address following the entry.
func (i Inst) Next() uint64 { return i.VA + uint64(len(i.Bytes)) }

// Stream is a linear sequence of instructions.
type Stream []Inst

// Disassemble decodes code as if it were mapped at va. A limit above zero
// caps the number of entries.
func Disassemble(code []byte, mode bddisasm.DecodeMode, va uint64, limit int) Stream {
	return collect(code, mode, va, limit, false)
}

// Function decodes from va until the first return, or until limit entries.
func Function(code []byte, mode bddisasm.DecodeMode, va uint64, limit int) Stream {
	return collect(code, mode, va, limit, true)
}

func collect(code []byte, mode bddisasm.DecodeMode, va uint64, limit int, stopAtRet bool) Stream {
	var out Stream
	Walk(code, mode, va, func(inst Inst) bool {
		out = append(out, inst)
		if limit > 0 && len(out) >= limit {
			return false
		}
		return !stopAtRet || !inst.Valid() || !isReturn(inst.Mnemonic)
	})
	return out
}

// Walk decodes code entry by entry and hands each one to fn until fn
// returns false or the buffer is exhausted.
func Walk(code []byte, mode bddisasm.DecodeMode, va uint64, fn func(Inst) bool) {
	for step := range bddisasm.NewDecoder(code, mode, va).All() {
		if !fn(fromStep(code, step)) {
			return
		}
	}
}

func fromStep(code []byte, step bddisasm.Step) Inst {
	if step.Err != nil {
		var raw []byte
		if step.Offset < len(code) {
			raw = code[step.Offset : step.Offset+1]
		}
		text := "db"
		if len(raw) == 1 {
			text = fmt.Sprintf("db 0x%02x", raw[0])
		}
		return Inst{VA: step.IP, Bytes: raw, Text: text, Mnemonic: "db", Err: step.Err}
	}
	ins := step.Instruction
	return Inst{
		VA:       step.IP,
		Bytes:    code[step.Offset : step.Offset+ins.Length()],
		Text:     ins.String(),
		Mnemonic: ins.Mnemonic(),
		Ins:      ins,
	}
}

func isReturn(mnemonic string) bool {
	switch mnemonic {
	case "RETN", "RETF", "IRET", "IRETD", "IRETQ", "SYSRET", "SYSEXIT":
		return true
	}
	return false
}

// Stats summarizes a stream.
type Stats struct {
	Instructions int
	Invalid      int
	Bytes        int
	Mnemonics    map[string]int
}

// Stats counts decoded and undecodable entries and tallies mnemonics.
func (s Stream) Stats() Stats {
	st := Stats{Mnemonics: make(map[string]int)}
	for _, in := range s {
		st.Bytes += in.Len()
		if !in.Valid() {
			st.Invalid++
			continue
		}
		st.Instructions++
		st.Mnemonics[in.Mnemonic]++
	}
	return st
}

// MnemonicCount is one row of a mnemonic histogram.
type MnemonicCount struct {
	Mnemonic string
	Count    int
}

// Top returns the n most frequent mnemonics, ties broken by name.
func (st Stats) Top(n int) []MnemonicCount {
	out := make([]MnemonicCount, 0, len(st.Mnemonics))
	for m, c := range st.Mnemonics {
		out = append(out, MnemonicCount{m, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Mnemonic < out[j].Mnemonic
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// At returns the entry starting at va.
func (s Stream) At(va uint64) (Inst, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].VA >= va })
	if i < len(s) && s[i].VA == va {
		return s[i], true
	}
	return Inst{}, false
}
