package analysis

import (
	"fmt"
	"strings"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/disasm"
	"github.com/bitdefender/bddisasm/internal/elfx"
)

// RefKind classifies an address an instruction mentions.
type RefKind uint8

const (
	RefBranch RefKind = iota // relative branch or call target
	RefData                  // memory operand address
	RefImm                   // immediate that may be an address
)

// Ref is an address an instruction mentions.
type Ref struct {
	Kind RefKind
	VA   uint64
}

// AnnotatedInst is a listing entry plus the comments resolved for it.
type AnnotatedInst struct {
	disasm.Inst
	Refs        []Ref
	Annotations []string
}

func (a AnnotatedInst) String() string {
	base := fmt.Sprintf("%x  %s", a.VA, a.Text)
	if len(a.Annotations) == 0 {
		return base
	}
	return fmt.Sprintf("%-60s ; %s", base, strings.Join(a.Annotations, ", "))
}

// BranchTarget returns the first relative branch target, if any.
func (a AnnotatedInst) BranchTarget() (uint64, bool) {
	for _, r := range a.Refs {
		if r.Kind == RefBranch {
			return r.VA, true
		}
	}
	return 0, false
}

// Annotate resolves the references of every decoded entry of s against im.
func Annotate(im *elfx.Image, s disasm.Stream) []AnnotatedInst {
	out := make([]AnnotatedInst, 0, len(s))
	for _, in := range s {
		a := AnnotatedInst{Inst: in}
		if in.Valid() {
			a.Refs = Refs(in)
			a.Annotations = Resolve(im, a.Refs)
		}
		out = append(out, a)
	}
	return out
}

// Refs extracts the addresses in's operands name. Relative targets are
// computed from the end of the instruction and wrap at the mode's width.
func Refs(in disasm.Inst) []Ref {
	ops, err := in.Ins.Operands()
	if err != nil {
		return nil
	}

	mask := ^uint64(0)
	switch in.Ins.Mode() {
	case bddisasm.Bits16:
		mask = 0xFFFF
	case bddisasm.Bits32:
		mask = 0xFFFFFFFF
	}

	next := in.Next()
	var refs []Ref
	for _, op := range ops {
		switch v := op.Info.(type) {
		case bddisasm.OpOffs:
			refs = append(refs, Ref{RefBranch, (next + uint64(v)) & mask})
		case bddisasm.OpMem:
			switch {
			case v.IsRipRel && v.HasDisp:
				refs = append(refs, Ref{RefData, next + v.Disp})
			case v.HasDisp && !v.HasBase && !v.HasIndex:
				refs = append(refs, Ref{RefData, v.Disp & mask})
			}
		case bddisasm.OpImm:
			if !op.IsDefault && op.Size >= bddisasm.Size32Bit {
				refs = append(refs, Ref{RefImm, uint64(v) & mask})
			}
		}
	}
	return refs
}

// Resolve turns refs into listing comments: "-> symbol" for branches, the
// quoted string for data holding text, and "&symbol" for other data.
func Resolve(im *elfx.Image, refs []Ref) []string {
	if im == nil {
		return nil
	}
	var anns []string
	for _, r := range refs {
		switch r.Kind {
		case RefBranch:
			if name, ok := SymbolName(im, r.VA); ok {
				anns = append(anns, "-> "+name)
			}
		case RefData, RefImm:
			if s, ok := ReadString(im, r.VA); ok {
				anns = append(anns, `"`+s.Value+`"`)
				continue
			}
			if r.Kind != RefData {
				continue
			}
			if sym, ok := im.SymbolAt(r.VA); ok {
				anns = append(anns, "&"+CachedDemangle(sym.Name))
			}
		}
	}
	return anns
}
