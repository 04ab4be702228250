//go:build cgo

package analysis

import (
	"testing"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/disasm"
)

func TestAnnotateListing(t *testing.T) {
	im := image()
	// lea rdi, [rip+0xff9]; call 0x1008
	code := []byte{
		0x48, 0x8d, 0x3d, 0xf9, 0x0f, 0x00, 0x00,
		0xe8, 0xfc, 0xff, 0xff, 0xff,
	}
	s := disasm.Disassemble(code, bddisasm.Bits64, 0x1000, 0)
	got := Annotate(im, s)
	if len(got) != 2 {
		t.Fatalf("Annotate() returned %d entries", len(got))
	}

	if len(got[0].Refs) != 1 || got[0].Refs[0] != (Ref{RefData, 0x2000}) {
		t.Errorf("lea refs = %v", got[0].Refs)
	}
	if len(got[0].Annotations) != 1 || got[0].Annotations[0] != `"hello, world"` {
		t.Errorf("lea annotations = %q", got[0].Annotations)
	}

	target, ok := got[1].BranchTarget()
	if !ok || target != 0x1008 {
		t.Errorf("call target = %#x, %v", target, ok)
	}
	if len(got[1].Annotations) != 1 || got[1].Annotations[0] != "-> puts@plt" {
		t.Errorf("call annotations = %q", got[1].Annotations)
	}
}
