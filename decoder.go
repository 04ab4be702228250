package bddisasm

import "iter"

// Step is one outcome of a Decoder: either Instruction or Err is set.
// Offset and IP are those of the first byte the step decoded from.
type Step struct {
	Instruction DecodedInstruction
	Err         error
	Offset      int
	IP          uint64
}

// Decoder walks a code buffer one instruction at a time. A failed decode
// skips a single byte, so every step makes progress and the walk ends after
// at most len(code) steps.
//
// A Decoder is single pass and must not be shared between goroutines.
type Decoder struct {
	code   []byte
	mode   DecodeMode
	offset int
	ip     uint64
	eng    engine
}

// NewDecoder returns a Decoder over code; ip is the address of code[0].
// The buffer is never modified.
func NewDecoder(code []byte, mode DecodeMode, ip uint64) *Decoder {
	return &Decoder{code: code, mode: mode, ip: ip, eng: activeEngine}
}

// Offset returns the offset of the next step.
func (d *Decoder) Offset() int { return d.offset }

// Next decodes at the cursor. It returns false once the buffer is consumed.
func (d *Decoder) Next() (Step, bool) {
	if d.offset >= len(d.code) {
		return Step{}, false
	}

	step := Step{Offset: d.offset, IP: d.ip}
	ins, err := decodeWith(d.eng, d.code[d.offset:], d.mode, d.ip)
	advance := 1
	if err != nil {
		step.Err = err
	} else {
		step.Instruction = ins
		advance = ins.Length()
	}

	d.offset += advance
	d.ip += uint64(advance)
	return step, true
}

// All yields the remaining steps.
func (d *Decoder) All() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for {
			s, ok := d.Next()
			if !ok || !yield(s) {
				return
			}
		}
	}
}

// Instructions yields the remaining steps as instruction/error pairs.
func (d *Decoder) Instructions() iter.Seq2[DecodedInstruction, error] {
	return func(yield func(DecodedInstruction, error) bool) {
		for s := range d.All() {
			if !yield(s.Instruction, s.Err) {
				return
			}
		}
	}
}
