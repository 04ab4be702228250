package bddisasm

import (
	"fmt"
	"strings"
)

// OpAccess is an access mask: how an operand, RIP, the stack or RFLAGS is
// touched by an instruction.
type OpAccess uint8

const (
	AccessRead      OpAccess = 0x01
	AccessWrite     OpAccess = 0x02
	AccessCondRead  OpAccess = 0x04
	AccessCondWrite OpAccess = 0x08
	AccessPrefetch  OpAccess = 0x10

	AccessAnyRead  = AccessRead | AccessCondRead
	AccessAnyWrite = AccessWrite | AccessCondWrite
)

func (a OpAccess) Read() bool      { return a&AccessRead != 0 }
func (a OpAccess) Write() bool     { return a&AccessWrite != 0 }
func (a OpAccess) CondRead() bool  { return a&AccessCondRead != 0 }
func (a OpAccess) CondWrite() bool { return a&AccessCondWrite != 0 }
func (a OpAccess) Prefetch() bool  { return a&AccessPrefetch != 0 }
func (a OpAccess) AnyRead() bool   { return a&AccessAnyRead != 0 }
func (a OpAccess) AnyWrite() bool  { return a&AccessAnyWrite != 0 }

// String renders a in disasmtool notation: R, W, CR, CW, P joined by |.
func (a OpAccess) String() string {
	if a == 0 {
		return "N"
	}
	var parts []string
	for _, b := range []struct {
		bit  OpAccess
		name string
	}{
		{AccessRead, "R"}, {AccessWrite, "W"}, {AccessCondRead, "CR"},
		{AccessCondWrite, "CW"}, {AccessPrefetch, "P"},
	} {
		if a&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}

// RFlags is a set of RFLAGS bits.
type RFlags uint32

const (
	FlagCF   RFlags = 1 << 0
	FlagPF   RFlags = 1 << 2
	FlagAF   RFlags = 1 << 4
	FlagZF   RFlags = 1 << 6
	FlagSF   RFlags = 1 << 7
	FlagTF   RFlags = 1 << 8
	FlagIF   RFlags = 1 << 9
	FlagDF   RFlags = 1 << 10
	FlagOF   RFlags = 1 << 11
	FlagIOPL RFlags = 3 << 12
	FlagNT   RFlags = 1 << 14
	FlagRF   RFlags = 1 << 16
	FlagVM   RFlags = 1 << 17
	FlagAC   RFlags = 1 << 18
	FlagVIF  RFlags = 1 << 19
	FlagVIP  RFlags = 1 << 20
	FlagID   RFlags = 1 << 21
)

var rflagNames = []struct {
	bit  RFlags
	name string
}{
	{FlagCF, "CF"}, {FlagPF, "PF"}, {FlagAF, "AF"}, {FlagZF, "ZF"}, {FlagSF, "SF"},
	{FlagTF, "TF"}, {FlagIF, "IF"}, {FlagDF, "DF"}, {FlagOF, "OF"}, {FlagIOPL, "IOPL"},
	{FlagNT, "NT"}, {FlagRF, "RF"}, {FlagVM, "VM"}, {FlagAC, "AC"}, {FlagVIF, "VIF"},
	{FlagVIP, "VIP"}, {FlagID, "ID"},
}

// Has reports whether any bit of f is in r.
func (r RFlags) Has(f RFlags) bool { return r&f != 0 }

// Names lists the flags in r from bit 0 upwards.
func (r RFlags) Names() []string {
	var out []string
	for _, n := range rflagNames {
		if r&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (r RFlags) String() string { return strings.Join(r.Names(), " ") }

// FlagsAccess describes how an instruction uses RFLAGS.
type FlagsAccess struct {
	Mode      OpAccess // access to the register as a whole
	Tested    RFlags
	Modified  RFlags
	Set       RFlags
	Cleared   RFlags
	Undefined RFlags
}

// FpuFlags is the access to the x87 condition code bits.
type FpuFlags struct {
	C0, C1, C2, C3 FpuFlagAccess
}

func fpuFlagsFromRaw(raw uint8) FpuFlags {
	return FpuFlags{
		C0: fpuFlagAccessFromBits(raw),
		C1: fpuFlagAccessFromBits(raw >> 2),
		C2: fpuFlagAccessFromBits(raw >> 4),
		C3: fpuFlagAccessFromBits(raw >> 6),
	}
}

func (f FpuFlags) String() string {
	return fmt.Sprintf("C0: %v, C1: %v, C2: %v, C3: %v", f.C0, f.C1, f.C2, f.C3)
}

// SimdExceptions lists the SIMD floating point exceptions an instruction may raise.
type SimdExceptions struct {
	InvalidOperation bool
	Denormal         bool
	DivideByZero     bool
	Overflow         bool
	Underflow        bool
	Precision        bool
}

func simdExceptionsFromRaw(raw uint8) SimdExceptions {
	return SimdExceptions{
		InvalidOperation: raw&0x01 != 0,
		Denormal:         raw&0x02 != 0,
		DivideByZero:     raw&0x04 != 0,
		Overflow:         raw&0x08 != 0,
		Underflow:        raw&0x10 != 0,
		Precision:        raw&0x20 != 0,
	}
}

// PrivilegeLevel lists the rings an instruction is valid in.
type PrivilegeLevel struct {
	Ring0, Ring1, Ring2, Ring3 bool
}

// OperatingMode lists the processor modes an instruction is valid in.
type OperatingMode struct {
	Real, V8086, Protected, Compat, Long bool
}

// SpecialModes lists SMM, SGX and TSX validity.
type SpecialModes struct {
	Smm, SmmOff, Sgx, SgxOff, Tsx, TsxOff bool
}

// VmxMode lists VMX validity.
type VmxMode struct {
	Root, NonRoot, RootSeam, NonRootSeam, Off bool
}

// CpuModes is the set of modes an instruction is valid in.
type CpuModes struct {
	PrivilegeLevel PrivilegeLevel
	OperatingMode  OperatingMode
	SpecialModes   SpecialModes
	Vmx            VmxMode
}

func cpuModesFromRaw(raw uint32) CpuModes {
	bit := func(n uint) bool { return raw>>n&1 != 0 }
	return CpuModes{
		PrivilegeLevel: PrivilegeLevel{Ring0: bit(0), Ring1: bit(1), Ring2: bit(2), Ring3: bit(3)},
		OperatingMode: OperatingMode{
			Real: bit(4), V8086: bit(5), Protected: bit(6), Compat: bit(7), Long: bit(8),
		},
		SpecialModes: SpecialModes{
			Smm: bit(12), SmmOff: bit(13), Sgx: bit(14), SgxOff: bit(15), Tsx: bit(16), TsxOff: bit(17),
		},
		Vmx: VmxMode{
			Root: bit(18), NonRoot: bit(19), RootSeam: bit(20), NonRootSeam: bit(21), Off: bit(22),
		},
	}
}

// ValidPrefixes lists the prefixes an instruction accepts.
type ValidPrefixes struct {
	Rep       bool
	RepCond   bool
	Lock      bool
	Hle       bool
	Xacquire  bool
	Xrelease  bool
	Bnd       bool
	Bhint     bool
	HleNoLock bool
	Dnt       bool
}

func validPrefixesFromRaw(raw uint16) ValidPrefixes {
	bit := func(n uint) bool { return raw>>n&1 != 0 }
	return ValidPrefixes{
		Rep: bit(0), RepCond: bit(1), Lock: bit(2), Hle: bit(3), Xacquire: bit(4),
		Xrelease: bit(5), Bnd: bit(6), Bhint: bit(7), HleNoLock: bit(8), Dnt: bit(9),
	}
}

// ValidDecorators lists the EVEX decorators an instruction accepts.
type ValidDecorators struct {
	Er, Sae, Zero, Mask, Broadcast bool
}

func validDecoratorsFromRaw(raw uint8) ValidDecorators {
	return ValidDecorators{
		Er:        raw&0x01 != 0,
		Sae:       raw&0x02 != 0,
		Zero:      raw&0x04 != 0,
		Mask:      raw&0x08 != 0,
		Broadcast: raw&0x10 != 0,
	}
}

const (
	cpuidNoLeaf    = 0xFFFFFFFF
	cpuidNoSubLeaf = 0x00FFFFFF
)

// Cpuid locates the CPUID bit that reports support for an instruction.
type Cpuid struct {
	Leaf       uint32
	SubLeaf    uint32
	HasSubLeaf bool
	Register   uint8 // 0 EAX, 1 ECX, 2 EDX, 3 EBX
	Bit        uint8
}

// The second result is false when the instruction needs no CPUID check.
func cpuidFromRaw(raw uint64) (Cpuid, bool) {
	leaf := uint32(raw)
	if leaf == cpuidNoLeaf {
		return Cpuid{}, false
	}
	hi := uint32(raw >> 32)
	c := Cpuid{
		Leaf:     leaf,
		Register: uint8(hi >> 24 & 0x7),
		Bit:      uint8(hi >> 27 & 0x1F),
	}
	if sub := hi & 0xFFFFFF; sub != cpuidNoSubLeaf {
		c.SubLeaf, c.HasSubLeaf = sub, true
	}
	return c, true
}

var cpuidRegNames = [...]string{"eax", "ecx", "edx", "ebx"}

func (c Cpuid) String() string {
	reg := fmt.Sprintf("r%d", c.Register)
	if int(c.Register) < len(cpuidRegNames) {
		reg = cpuidRegNames[c.Register]
	}
	if c.HasSubLeaf {
		return fmt.Sprintf("%#x/%#x, %s, bit %d", c.Leaf, c.SubLeaf, reg, c.Bit)
	}
	return fmt.Sprintf("%#x, %s, bit %d", c.Leaf, reg, c.Bit)
}
