// Package elfx opens x86 and x86-64 ELF images, locates their code and data
// sections, and maps virtual addresses to file offsets and symbols.
package elfx

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"
)

// ErrUnsupportedMachine is returned for ELF images that are not x86.
var ErrUnsupportedMachine = errors.New("not an x86 ELF image")

type Image struct {
	Path    string
	File    *elf.File
	All     []byte
	Loads   []Seg
	Text    Section
	Rodata  Section
	Data    Section
	PLT     Section
	PLTSec  Section // IBT second-stage PLT, x86-64 only
	Symbols []Symbol
	PLTRels []PLTRel
	f       *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Contains reports whether va lies inside s.
func (s Section) Contains(va uint64) bool {
	return s.Size != 0 && va >= s.VA && va < s.VA+s.Size
}

// Symbol is a named address. PLT stubs get a synthetic "name@plt" entry.
type Symbol struct {
	Name  string
	Addr  uint64
	Size  uint64
	Func  bool
	IsPLT bool
}

// PLTRel is one jump-slot relocation and the stub that jumps through it.
type PLTRel struct {
	GOTAddr uint64
	SymName string
	PLTAddr uint64
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	if f.Machine != elf.EM_X86_64 && f.Machine != elf.EM_386 {
		f.Close()
		return nil, fmt.Errorf("%s: %w (machine %v)", path, ErrUnsupportedMachine, f.Machine)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	for _, s := range f.Sections {
		sec := Section{s.Name, s.Addr, s.Offset, s.Size}
		switch s.Name {
		case ".text":
			im.Text = sec
		case ".rodata":
			im.Rodata = sec
		case ".data":
			im.Data = sec
		case ".plt":
			im.PLT = sec
		case ".plt.sec":
			im.PLTSec = sec
		}
	}

	im.loadSymbols()
	im.parsePLT()
	sort.SliceStable(im.Symbols, func(i, j int) bool { return im.Symbols[i].Addr < im.Symbols[j].Addr })

	// Fallbacks if stripped.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}
	if im.Rodata.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_R != 0 && l.Flags&(elf.PF_W|elf.PF_X) == 0 && l.Filesz > 0 {
				im.Rodata = Section{"LOAD(ro)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		if err3 := im.File.Close(); err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	return errors.Join(err1, err2)
}

// Bits is 64 for x86-64 images and 32 for i386 ones.
func (im *Image) Bits() int {
	if im.File != nil && im.File.Machine == elf.EM_X86_64 {
		return 64
	}
	return 32
}

// Entry is the image entry point.
func (im *Image) Entry() uint64 {
	if im.File == nil {
		return 0
	}
	return im.File.Entry
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns the mapped bytes of [va, va+size). The range is clipped
// to the end of the file; it fails only when va itself is unmapped.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok || off > uint64(len(im.All)) {
		return nil, false
	}
	end := min(off+size, uint64(len(im.All)))
	return im.All[off:end], true
}

// ReadBytesVA reads exactly size bytes from a virtual address.
func (im *Image) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	if size <= 0 {
		return []byte{}, true
	}
	b, ok := im.SliceVA(va, uint64(size))
	if !ok || len(b) != size {
		return nil, false
	}
	return b, true
}

// TextBytes returns the bytes of the code section.
func (im *Image) TextBytes() ([]byte, bool) {
	return im.SliceVA(im.Text.VA, im.Text.Size)
}

// InRodata reports whether the VA lies within the read-only data region.
func (im *Image) InRodata(va uint64) bool { return im.Rodata.Contains(va) }

// InDataOrRodata returns true if the VA is inside .rodata or .data
func (im *Image) InDataOrRodata(va uint64) bool {
	return im.Rodata.Contains(va) || im.Data.Contains(va)
}

// IsPLTEntry reports whether va lies inside either PLT section.
func (im *Image) IsPLTEntry(va uint64) bool {
	return im.PLT.Contains(va) || im.PLTSec.Contains(va)
}

// CString reads a NUL-terminated string of at most limit bytes at va.
func (im *Image) CString(va uint64, limit int) (string, bool) {
	b, ok := im.SliceVA(va, uint64(limit))
	if !ok {
		return "", false
	}
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	if n == len(b) {
		return "", false
	}
	return string(b[:n]), true
}

// Functions returns the function symbols in address order.
func (im *Image) Functions() []Symbol {
	var out []Symbol
	for _, s := range im.Symbols {
		if s.Func {
			out = append(out, s)
		}
	}
	return out
}

// SymbolAt returns the symbol that starts exactly at va. Functions win
// over data symbols at the same address.
func (im *Image) SymbolAt(va uint64) (Symbol, bool) {
	i := sort.Search(len(im.Symbols), func(i int) bool { return im.Symbols[i].Addr >= va })
	var found Symbol
	ok := false
	for ; i < len(im.Symbols) && im.Symbols[i].Addr == va; i++ {
		if !ok || im.Symbols[i].Func && !found.Func {
			found, ok = im.Symbols[i], true
		}
	}
	return found, ok
}

// Lookup returns the function containing va and va's offset into it.
// Symbols without a size only match their own address.
func (im *Image) Lookup(va uint64) (Symbol, uint64, bool) {
	i := sort.Search(len(im.Symbols), func(i int) bool { return im.Symbols[i].Addr > va })
	for i--; i >= 0; i-- {
		s := im.Symbols[i]
		if !s.Func {
			continue
		}
		if s.Addr == va || va < s.Addr+s.Size {
			return s, va - s.Addr, true
		}
		return Symbol{}, 0, false
	}
	return Symbol{}, 0, false
}

// FindFunctionByName searches for a function by name in the symbol tables.
func (im *Image) FindFunctionByName(name string) (uint64, bool) {
	for _, s := range im.Symbols {
		if s.Name == name && s.Func && !s.IsPLT && s.Addr != 0 {
			return s.Addr, true
		}
	}
	return 0, false
}

// loadSymbols merges .symtab and .dynsym. Undefined symbols are skipped
// and an address/name pair is kept once.
func (im *Image) loadSymbols() {
	type key struct {
		name string
		addr uint64
	}
	seen := make(map[key]bool)
	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Value == 0 || s.Name == "" || s.Section == elf.SHN_UNDEF {
				continue
			}
			typ := elf.ST_TYPE(s.Info)
			if typ != elf.STT_FUNC && typ != elf.STT_OBJECT && typ != elf.STT_NOTYPE {
				continue
			}
			k := key{s.Name, s.Value}
			if seen[k] {
				continue
			}
			seen[k] = true
			im.Symbols = append(im.Symbols, Symbol{
				Name: s.Name,
				Addr: s.Value,
				Size: s.Size,
				Func: typ == elf.STT_FUNC,
			})
		}
	}

	if syms, err := im.File.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := im.File.DynamicSymbols(); err == nil {
		add(syms)
	}
}

// parsePLT matches jump-slot relocations to the stubs that jump through
// them and adds a name@plt symbol per resolved stub.
func (im *Image) parsePLT() {
	got := make(map[uint64]uint64) // GOT slot -> stub
	const stubSize = 16
	scan := func(sec Section, first uint64) {
		for a := sec.VA + first; a+stubSize <= sec.VA+sec.Size; a += stubSize {
			if slot, ok := im.stubSlot(a, stubSize); ok {
				got[slot] = a
			}
		}
	}
	// .plt entry 0 is the lazy resolver. With .plt.sec the real stubs live
	// there and .plt only holds the lazy trampolines.
	if im.PLTSec.Size != 0 {
		scan(im.PLTSec, 0)
	} else {
		scan(im.PLT, stubSize)
	}

	dynsyms, err := im.File.DynamicSymbols()
	if err != nil {
		return
	}

	for _, name := range []string{".rela.plt", ".rel.plt"} {
		sec := im.File.Section(name)
		if sec == nil {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		for _, r := range decodeRelocs(data, im.File.Class, sec.Type == elf.SHT_RELA) {
			rel := PLTRel{GOTAddr: r.off}
			if r.sym > 0 && int(r.sym) <= len(dynsyms) {
				rel.SymName = dynsyms[r.sym-1].Name
			}
			rel.PLTAddr = got[r.off]
			im.PLTRels = append(im.PLTRels, rel)
			if rel.PLTAddr != 0 && rel.SymName != "" {
				im.Symbols = append(im.Symbols, Symbol{
					Name:  rel.SymName + "@plt",
					Addr:  rel.PLTAddr,
					Size:  stubSize,
					Func:  true,
					IsPLT: true,
				})
			}
		}
	}
}

// stubSlot finds the indirect jump of a PLT stub and returns the GOT slot
// it reads. x86-64 stubs use jmp [rip+disp32], optionally behind endbr64
// and a bnd prefix. i386 stubs use jmp [abs32] or, when PIC, jmp [ebx+disp32]
// relative to .got.plt.
func (im *Image) stubSlot(va uint64, size int) (uint64, bool) {
	b, ok := im.ReadBytesVA(va, size)
	if !ok {
		return 0, false
	}
	for i := 0; i+6 <= len(b); i++ {
		if b[i] != 0xff {
			continue
		}
		disp := binary.LittleEndian.Uint32(b[i+2:])
		switch {
		case b[i+1] == 0x25 && im.Bits() == 64:
			return va + uint64(i) + 6 + uint64(int64(int32(disp))), true
		case b[i+1] == 0x25:
			return uint64(disp), true
		case b[i+1] == 0xa3 && im.Bits() == 32:
			if gotplt := im.File.Section(".got.plt"); gotplt != nil {
				return gotplt.Addr + uint64(disp), true
			}
		}
	}
	return 0, false
}

type reloc struct {
	off uint64
	sym uint32
}

func decodeRelocs(data []byte, class elf.Class, rela bool) []reloc {
	var out []reloc
	if class == elf.ELFCLASS64 {
		size := 16
		if rela {
			size = 24
		}
		for i := 0; i+size <= len(data); i += size {
			info := binary.LittleEndian.Uint64(data[i+8:])
			out = append(out, reloc{binary.LittleEndian.Uint64(data[i:]), uint32(info >> 32)})
		}
		return out
	}

	size := 8
	if rela {
		size = 12
	}
	for i := 0; i+size <= len(data); i += size {
		info := binary.LittleEndian.Uint32(data[i+4:])
		out = append(out, reloc{uint64(binary.LittleEndian.Uint32(data[i:])), info >> 8})
	}
	return out
}
