package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/analysis"
	"github.com/bitdefender/bddisasm/internal/disasm"
	"github.com/bitdefender/bddisasm/internal/elfx"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

func testImage() *elfx.Image {
	return &elfx.Image{
		All:   make([]byte, 0x20),
		Loads: []elfx.Seg{{Vaddr: 0x1000, Off: 0, Filesz: 0x20}},
		Text:  elfx.Section{Name: ".text", VA: 0x1000, Size: 0x20},
		Symbols: []elfx.Symbol{
			{Name: "_ZN3foo3barEv", Addr: 0x1000, Size: 0x10, Func: true},
			{Name: "puts@plt", Addr: 0x1010, Size: 0x10, Func: true, IsPLT: true},
		},
	}
}

func loadedModel(t *testing.T) model {
	t.Helper()
	t.Setenv(colorize.EnvNoColor, "1")
	m := NewModel("/tmp/a.out")
	im := testImage()
	return m.withImage(imageMsg{image: im, funcs: analysis.ScanFunctions(im)})
}

func TestModelSummary(t *testing.T) {
	t.Setenv(colorize.EnvNoColor, "1")
	m := NewModel("/tmp/a.out")
	m.digest = "cafe"

	md := m.summaryMarkdown()
	for _, want := range []string{"a.out", "cafe", "Loading symbols"} {
		if !strings.Contains(md, want) {
			t.Errorf("summary lacks %q:\n%s", want, md)
		}
	}
}

func TestModelWithImage(t *testing.T) {
	m := loadedModel(t)

	if m.loading {
		t.Error("still loading after the image arrived")
	}
	if len(m.funcs) != 2 {
		t.Fatalf("got %d functions, want 2", len(m.funcs))
	}
	// A bare image without a file header counts as 32-bit.
	if m.mode != bddisasm.Bits32 {
		t.Errorf("mode = %v, want 32", m.mode)
	}
	if len(m.symbols.Items()) != 2 {
		t.Errorf("symbol list has %d items", len(m.symbols.Items()))
	}
	item := m.symbols.Items()[0].(symbolItem)
	if item.fn.Title() != "foo::bar()" {
		t.Errorf("first item title = %q", item.fn.Title())
	}
	if !strings.Contains(item.FilterValue(), "1000") {
		t.Errorf("filter value %q lacks the address", item.FilterValue())
	}
}

func TestModelKeepsForcedMode(t *testing.T) {
	t.Setenv(colorize.EnvNoColor, "1")
	m := NewModel("/tmp/a.out")
	m.mode, m.modeSet = bddisasm.Bits16, true
	m = m.withImage(imageMsg{image: testImage()})
	if m.mode != bddisasm.Bits16 {
		t.Errorf("mode = %v, want the forced 16", m.mode)
	}
}

func TestModelImageError(t *testing.T) {
	t.Setenv(colorize.EnvNoColor, "1")
	m := NewModel("/tmp/a.out")
	m = m.withImage(imageMsg{err: errors.New("not an x86 ELF image")})

	if m.err == nil || m.image != nil {
		t.Fatalf("err = %v, image = %v", m.err, m.image)
	}
	if md := m.summaryMarkdown(); !strings.Contains(md, "not an x86 ELF image") {
		t.Errorf("summary does not show the error:\n%s", md)
	}
	// Nothing to browse.
	next, _, handled := m.handleKey("s")
	if !handled || next.view != viewListing {
		t.Errorf("s switched to view %v", next.view)
	}
}

func TestModelKeys(t *testing.T) {
	m := loadedModel(t)

	next, _, handled := m.handleKey("s")
	if !handled || next.view != viewSymbols {
		t.Fatalf("s: view = %v, handled = %v", next.view, handled)
	}
	next, _, _ = next.handleKey("r")
	if next.view != viewListing {
		t.Errorf("r: view = %v", next.view)
	}

	// No function is open, so details are skipped while cycling.
	next, _, _ = next.handleKey("tab")
	if next.view != viewSymbols {
		t.Errorf("tab: view = %v, want symbols", next.view)
	}
	next, _, _ = next.handleKey("tab")
	if next.view != viewListing {
		t.Errorf("tab: view = %v, want listing", next.view)
	}
	next, _, _ = next.handleKey("shift+tab")
	if next.view != viewSymbols {
		t.Errorf("shift+tab: view = %v, want symbols", next.view)
	}

	if _, _, handled := next.handleKey("x"); handled {
		t.Error("unbound key was handled")
	}

	quit, cmd, handled := m.handleKey("q")
	if !handled || cmd == nil {
		t.Fatal("q did not quit")
	}
	if quit.image != nil {
		t.Error("quit left the image open")
	}
}

func TestModelCursor(t *testing.T) {
	m := loadedModel(t)
	m.current = &m.funcs[0]
	m.insts = []analysis.AnnotatedInst{
		{Inst: disasm.Inst{VA: 0x1000, Bytes: []byte{0x90}, Text: "NOP", Mnemonic: "NOP"}},
		{Inst: disasm.Inst{VA: 0x1001, Bytes: []byte{0xc3}, Text: "RETN", Mnemonic: "RETN"}},
	}

	next, _, _ := m.handleKey("down")
	if next.cursor != 1 {
		t.Errorf("cursor = %d after down", next.cursor)
	}
	next, _, _ = next.handleKey("j")
	if next.cursor != 1 {
		t.Errorf("cursor moved past the last line: %d", next.cursor)
	}
	next, _, _ = next.handleKey("k")
	if next.cursor != 0 {
		t.Errorf("cursor = %d after up", next.cursor)
	}

	lines := next.listingLines()
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "; foo::bar() @ 0x1000") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "> 1000") || !strings.HasPrefix(lines[2], "  1001") {
		t.Errorf("cursor marker misplaced: %q", lines[1:])
	}
}

func TestModelDetailsForInvalidEntry(t *testing.T) {
	m := loadedModel(t)
	m.insts = []analysis.AnnotatedInst{
		{Inst: disasm.Inst{VA: 0x1000, Bytes: []byte{0xff}, Text: "db 0xff", Mnemonic: "db", Err: bddisasm.ErrInvalidEncoding}},
	}

	next, _, handled := m.handleKey("d")
	if !handled || next.view != viewDetails {
		t.Fatalf("d: view = %v", next.view)
	}
	if !strings.Contains(next.details.View(), "db 0xff") {
		t.Errorf("details do not show the entry:\n%s", next.details.View())
	}
}
