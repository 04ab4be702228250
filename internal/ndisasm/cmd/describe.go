package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/disasm"
)

var rflagOrder = []bddisasm.RFlags{
	bddisasm.FlagCF, bddisasm.FlagPF, bddisasm.FlagAF, bddisasm.FlagZF, bddisasm.FlagSF,
	bddisasm.FlagTF, bddisasm.FlagIF, bddisasm.FlagDF, bddisasm.FlagOF, bddisasm.FlagIOPL,
	bddisasm.FlagNT, bddisasm.FlagRF, bddisasm.FlagVM, bddisasm.FlagAC, bddisasm.FlagVIF,
	bddisasm.FlagVIP, bddisasm.FlagID,
}

// flagsSummary renders each flag the instruction touches with t (tested),
// m (modified), 1 (set), 0 (cleared) and u (undefined).
func flagsSummary(fa bddisasm.FlagsAccess) string {
	all := fa.Tested | fa.Modified | fa.Set | fa.Cleared | fa.Undefined
	var parts []string
	for _, f := range rflagOrder {
		if !all.Has(f) {
			continue
		}
		var how strings.Builder
		for _, m := range []struct {
			set  bddisasm.RFlags
			mark byte
		}{
			{fa.Tested, 't'}, {fa.Modified, 'm'}, {fa.Set, '1'}, {fa.Cleared, '0'}, {fa.Undefined, 'u'},
		} {
			if m.set.Has(f) {
				how.WriteByte(m.mark)
			}
		}
		parts = append(parts, f.String()+": "+how.String())
	}
	return strings.Join(parts, "; ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func modesSummary(m bddisasm.CpuModes) string {
	pairs := []struct {
		name string
		ok   bool
	}{
		{"R0", m.PrivilegeLevel.Ring0}, {"R1", m.PrivilegeLevel.Ring1},
		{"R2", m.PrivilegeLevel.Ring2}, {"R3", m.PrivilegeLevel.Ring3},
		{"Real", m.OperatingMode.Real}, {"V8086", m.OperatingMode.V8086},
		{"Prot", m.OperatingMode.Protected}, {"Compat", m.OperatingMode.Compat},
		{"Long", m.OperatingMode.Long}, {"SMM", m.SpecialModes.Smm},
		{"SGX", m.SpecialModes.Sgx}, {"TSX", m.SpecialModes.Tsx},
		{"VMXRoot", m.Vmx.Root}, {"VMXNonRoot", m.Vmx.NonRoot},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.name+": "+yesNo(p.ok))
	}
	return strings.Join(parts, ", ")
}

func operandKind(op bddisasm.Operand) string {
	switch op.Info.(type) {
	case bddisasm.OpReg:
		return "Register"
	case bddisasm.OpMem:
		return "Memory"
	case bddisasm.OpImm:
		return "Immediate"
	case bddisasm.OpOffs:
		return "Offset"
	case bddisasm.OpAddr:
		return "Address"
	case bddisasm.OpConst:
		return "Constant"
	case bddisasm.OpBank:
		return "Bank"
	}
	return "None"
}

func accessRW(a bddisasm.OpAccess) string {
	switch {
	case a.AnyRead() && a.AnyWrite():
		return "RW"
	case a.AnyWrite():
		return "-W"
	case a.AnyRead():
		return "R-"
	}
	return "--"
}

// extendedInfo is the detail block --verbose prints below each instruction.
func extendedInfo(ins bddisasm.DecodedInstruction) ([]string, error) {
	opMode, err := ins.EffectiveOpMode()
	if err != nil {
		return nil, err
	}
	addrMode, err := ins.AddrMode()
	if err != nil {
		return nil, err
	}
	vlen := "-"
	if ins.HasVector() {
		vm, err := ins.EffectiveVecMode()
		if err != nil {
			return nil, err
		}
		vlen = vm.String()
	}
	isa, err := ins.IsaSet()
	if err != nil {
		return nil, err
	}
	cat, err := ins.Category()
	if err != nil {
		return nil, err
	}
	flags, err := ins.FlagsAccess()
	if err != nil {
		return nil, err
	}

	lines := []string{
		fmt.Sprintf("DSIZE: %2s, ASIZE: %2s, VLEN: %s", opMode, addrMode, vlen),
		fmt.Sprintf("ISA Set: %d, Ins cat: %d, Ins class: %d, CET tracked: %s",
			isa, cat, ins.InstructionClass(), yesNo(ins.IsCetTracked())),
	}

	cpuid, ok, err := ins.Cpuid()
	if err != nil {
		return nil, err
	}
	if ok {
		lines = append(lines, "CPUID: "+cpuid.String())
	}
	lines = append(lines,
		"FLAGS access: "+flagsSummary(flags),
		"Valid modes: "+modesSummary(ins.ValidCpuModes()),
	)

	ops, err := ins.Operands()
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		line := fmt.Sprintf("Operand %d  %s  Type: %10s, Size: %2d, RawSize: %2d, Encoding: %s",
			i, accessRW(op.Access), operandKind(op), uint32(op.Size), uint32(op.RawSize), op.Encoding)
		if m, ok := op.Mem(); ok {
			line += ", " + memSummary(m)
		}
		if r, ok := op.Reg(); ok {
			line += fmt.Sprintf(", RegType: %v, RegSize: %d, Reg: %d, RegCount: %d", r.Type, r.Size, r.Index, r.Count)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func memSummary(m bddisasm.OpMem) string {
	var parts []string
	if m.HasSeg {
		parts = append(parts, fmt.Sprintf("Seg: %d", m.Seg))
	}
	if m.HasBase {
		parts = append(parts, fmt.Sprintf("Base: %d", m.Base))
	}
	if m.HasIndex {
		parts = append(parts, fmt.Sprintf("Index: %d * %d", m.Index, m.Scale))
	}
	if m.HasDisp {
		parts = append(parts, fmt.Sprintf("Displacement: 0x%x", m.Disp))
	}
	if m.IsRipRel {
		parts = append(parts, "RipRelative")
	}
	if m.IsStack {
		parts = append(parts, "Stack")
	}
	if m.IsString {
		parts = append(parts, "String")
	}
	if m.IsVsib {
		parts = append(parts, fmt.Sprintf("VSIB: %d x %d", m.Vsib.ElemCount, m.Vsib.ElemSize))
	}
	if len(parts) == 0 {
		return "Memory"
	}
	return strings.Join(parts, ", ")
}

type jsonChunk struct {
	Value  uint64 `json:"value"`
	Len    uint8  `json:"len"`
	Offset uint8  `json:"offset"`
}

func chunk(value uint64, length uint8, offset uint8, hasOffset bool) *jsonChunk {
	if !hasOffset {
		return nil
	}
	return &jsonChunk{Value: value, Len: length, Offset: offset}
}

type jsonOperand struct {
	Type      string `json:"type"`
	Size      uint32 `json:"size"`
	RawSize   uint32 `json:"raw_size"`
	Access    string `json:"access"`
	Encoding  string `json:"encoding"`
	IsDefault bool   `json:"is_default,omitempty"`
}

type jsonInstruction struct {
	Rip            uint64        `json:"rip"`
	Text           string        `json:"text"`
	Mnemonic       string        `json:"mnemonic"`
	Length         int           `json:"length"`
	Bytes          string        `json:"bytes"`
	EncMode        string        `json:"enc_mode"`
	AddrMode       string        `json:"addr_mode"`
	OpMode         string        `json:"op_mode"`
	EfOpMode       string        `json:"ef_op_mode"`
	VecMode        string        `json:"vec_mode,omitempty"`
	PrefLength     uint8         `json:"pref_length"`
	OpLength       uint8         `json:"op_length"`
	PrimaryOpcode  uint8         `json:"primary_opcode"`
	IsRipRelative  bool          `json:"is_rip_relative,omitempty"`
	IsCetTracked   bool          `json:"is_cet_tracked,omitempty"`
	Displacement   *jsonChunk    `json:"displacement,omitempty"`
	RelativeOffset *jsonChunk    `json:"relative_offset,omitempty"`
	Immediate1     *jsonChunk    `json:"immediate1,omitempty"`
	Moffset        *jsonChunk    `json:"moffset,omitempty"`
	Operands       []jsonOperand `json:"operands"`
	RipAccess      string        `json:"rip_access"`
	MemoryAccess   string        `json:"memory_access"`
	StackAccess    string        `json:"stack_access"`
	FlagsAccess    string        `json:"flags_access,omitempty"`
	Class          uint32        `json:"class"`
	Category       uint32        `json:"category"`
	IsaSet         uint32        `json:"set"`
	Cpuid          string        `json:"cpuid,omitempty"`
}

type jsonByte struct {
	Byte   uint8  `json:"byte"`
	Length int    `json:"length"`
	Rip    uint64 `json:"rip"`
}

// jsonEntry is the --json record of one listing entry. Undecodable bytes
// get the short byte record.
func jsonEntry(in disasm.Inst) (any, error) {
	if !in.Valid() {
		var b uint8
		if len(in.Bytes) > 0 {
			b = in.Bytes[0]
		}
		return jsonByte{Byte: b, Length: 1, Rip: in.VA}, nil
	}

	ins := in.Ins
	j := jsonInstruction{
		Rip:           in.VA,
		Text:          in.Text,
		Mnemonic:      ins.Mnemonic(),
		Length:        ins.Length(),
		Bytes:         hex.EncodeToString(in.Bytes),
		PrefLength:    ins.PrefLength(),
		OpLength:      ins.OpLength(),
		PrimaryOpcode: ins.PrimaryOpcode(),
		IsRipRelative: ins.IsRipRelative(),
		IsCetTracked:  ins.IsCetTracked(),
		Class:         uint32(ins.InstructionClass()),
	}

	enc, err := ins.EncodingMode()
	if err != nil {
		return nil, err
	}
	addr, err := ins.AddrMode()
	if err != nil {
		return nil, err
	}
	op, err := ins.OpMode()
	if err != nil {
		return nil, err
	}
	efop, err := ins.EffectiveOpMode()
	if err != nil {
		return nil, err
	}
	j.EncMode, j.AddrMode, j.OpMode, j.EfOpMode = enc.String(), addr.String(), op.String(), efop.String()
	if ins.HasVector() {
		vm, err := ins.VecMode()
		if err != nil {
			return nil, err
		}
		j.VecMode = vm.String()
	}

	if v, ok := ins.Disp(); ok {
		off, hasOff := ins.DispOffset()
		j.Displacement = chunk(uint64(v), ins.DispLength(), off, hasOff)
	}
	if v, ok := ins.RelOffset(); ok {
		off, hasOff := ins.RelOffsOffset()
		j.RelativeOffset = chunk(uint64(v), ins.RelOffsLength(), off, hasOff)
	}
	if v, ok := ins.Immediate1(); ok {
		off, hasOff := ins.Imm1Offset()
		j.Immediate1 = chunk(v, ins.Imm1Length(), off, hasOff)
	}
	if v, ok := ins.Moffset(); ok {
		off, hasOff := ins.MoffsetOffset()
		j.Moffset = chunk(v, ins.MoffsetLength(), off, hasOff)
	}

	ops, err := ins.Operands()
	if err != nil {
		return nil, err
	}
	j.Operands = make([]jsonOperand, 0, len(ops))
	for _, o := range ops {
		j.Operands = append(j.Operands, jsonOperand{
			Type:      operandKind(o),
			Size:      uint32(o.Size),
			RawSize:   uint32(o.RawSize),
			Access:    o.Access.String(),
			Encoding:  o.Encoding.String(),
			IsDefault: o.IsDefault,
		})
	}

	if j.RipAccess, err = accessString(ins.RipAccess); err != nil {
		return nil, err
	}
	if j.MemoryAccess, err = accessString(ins.MemoryAccess); err != nil {
		return nil, err
	}
	if j.StackAccess, err = accessString(ins.StackAccess); err != nil {
		return nil, err
	}
	flags, err := ins.FlagsAccess()
	if err != nil {
		return nil, err
	}
	j.FlagsAccess = flagsSummary(flags)

	cat, err := ins.Category()
	if err != nil {
		return nil, err
	}
	isa, err := ins.IsaSet()
	if err != nil {
		return nil, err
	}
	j.Category, j.IsaSet = uint32(cat), uint32(isa)

	cpuid, ok, err := ins.Cpuid()
	if err != nil {
		return nil, err
	}
	if ok {
		j.Cpuid = cpuid.String()
	}
	return j, nil
}

func accessString(get func() (bddisasm.OpAccess, error)) (string, error) {
	a, err := get()
	if err != nil {
		return "", err
	}
	return a.String(), nil
}
