package bddisasm

// Role lookup limits.
const (
	maxLookupDst = 2
	maxLookupSrc = 4
	maxLookupMem = 2
)

// Implicit GPR slots in the lookup, indexed by register number.
const (
	GprRax = iota
	GprRcx
	GprRdx
	GprRbx
	GprRsp
	GprRbp
	GprRsi
	GprRdi
	numLookupGprs
)

// Segment register numbers.
const (
	segCs = 1
	segSs = 2
)

// OperandLookup finds operands by role. It holds a copy of the operand list
// and an index per role; a role the instruction does not use reports false.
type OperandLookup struct {
	ops   []Operand
	dst   [maxLookupDst]int
	src   [maxLookupSrc]int
	mem   [maxLookupMem]int
	stack int
	flags int
	rip   int
	cs    int
	ss    int
	gpr   [numLookupGprs]int
}

// OperandLookup builds the role lookup for the instruction.
//
// Only default (implicit) register operands fill the flags, RIP, segment
// and GPR slots.
func (d DecodedInstruction) OperandLookup() (*OperandLookup, error) {
	ops, err := d.Operands()
	if err != nil {
		return nil, err
	}
	return newOperandLookup(ops), nil
}

func newOperandLookup(ops []Operand) *OperandLookup {
	l := &OperandLookup{ops: ops, stack: -1, flags: -1, rip: -1, cs: -1, ss: -1}
	for _, s := range [][]int{l.dst[:], l.src[:], l.mem[:], l.gpr[:]} {
		for i := range s {
			s[i] = -1
		}
	}

	for i, op := range ops {
		if op.Access.AnyWrite() {
			fillFirst(l.dst[:], i)
		}
		if op.Access.AnyRead() {
			fillFirst(l.src[:], i)
		}
		if mem, ok := op.Mem(); ok {
			fillFirst(l.mem[:], i)
			if mem.IsStack {
				l.stack = i
			}
		}

		reg, ok := op.Reg()
		if !ok || !op.IsDefault {
			continue
		}
		switch reg.Type {
		case RegFlags:
			l.flags = i
		case RegRip:
			l.rip = i
		case RegSeg:
			switch reg.Index {
			case segCs:
				l.cs = i
			case segSs:
				l.ss = i
			}
		case RegGpr:
			if reg.Index < numLookupGprs {
				l.gpr[reg.Index] = i
			}
		}
	}
	return l
}

func fillFirst(slots []int, i int) {
	for k := range slots {
		if slots[k] < 0 {
			slots[k] = i
			return
		}
	}
}

func (l *OperandLookup) at(i int) (Operand, bool) {
	if i < 0 {
		return Operand{}, false
	}
	return l.ops[i], true
}

func pick(slots []int, n int) int {
	if n < 0 || n >= len(slots) {
		return -1
	}
	return slots[n]
}

// Dst returns the n-th written operand. Only the first two are tracked.
func (l *OperandLookup) Dst(n int) (Operand, bool) { return l.at(pick(l.dst[:], n)) }

// Src returns the n-th read operand. Only the first four are tracked.
func (l *OperandLookup) Src(n int) (Operand, bool) { return l.at(pick(l.src[:], n)) }

// Mem returns the n-th memory operand. Only the first two are tracked.
func (l *OperandLookup) Mem(n int) (Operand, bool) { return l.at(pick(l.mem[:], n)) }

func (l *OperandLookup) Stack() (Operand, bool) { return l.at(l.stack) }
func (l *OperandLookup) Flags() (Operand, bool) { return l.at(l.flags) }
func (l *OperandLookup) Rip() (Operand, bool)   { return l.at(l.rip) }
func (l *OperandLookup) Cs() (Operand, bool)    { return l.at(l.cs) }
func (l *OperandLookup) Ss() (Operand, bool)    { return l.at(l.ss) }

// Gpr returns the implicit general purpose register operand numbered n
// (GprRax through GprRdi).
func (l *OperandLookup) Gpr(n int) (Operand, bool) { return l.at(pick(l.gpr[:], n)) }

func (l *OperandLookup) Rax() (Operand, bool) { return l.Gpr(GprRax) }
func (l *OperandLookup) Rcx() (Operand, bool) { return l.Gpr(GprRcx) }
func (l *OperandLookup) Rdx() (Operand, bool) { return l.Gpr(GprRdx) }
func (l *OperandLookup) Rbx() (Operand, bool) { return l.Gpr(GprRbx) }
func (l *OperandLookup) Rsp() (Operand, bool) { return l.Gpr(GprRsp) }
func (l *OperandLookup) Rbp() (Operand, bool) { return l.Gpr(GprRbp) }
func (l *OperandLookup) Rsi() (Operand, bool) { return l.Gpr(GprRsi) }
func (l *OperandLookup) Rdi() (Operand, bool) { return l.Gpr(GprRdi) }
