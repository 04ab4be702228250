package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/disasm"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"packed", "b800000000", []byte{0xb8, 0, 0, 0, 0}, false},
		{"spaced", "48 8b 05", []byte{0x48, 0x8b, 0x05}, false},
		{"0x and commas", "0x48, 0x8B,0x05", []byte{0x48, 0x8b, 0x05}, false},
		{"escaped", `\x90\xc3`, []byte{0x90, 0xc3}, false},
		{"newlines", "90\n c3\t", []byte{0x90, 0xc3}, false},
		{"odd digits", "b80", nil, true},
		{"not hex", "zz", nil, true},
		{"empty", "  ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseHex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("parseHex(%q) = %x, want %x", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectRange(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name         string
		offset, size uint64
		want         []byte
		wantErr      bool
	}{
		{"all", 0, 0, data, false},
		{"offset only", 6, 0, []byte{6, 7}, false},
		{"offset and size", 2, 3, []byte{2, 3, 4}, false},
		{"size past end", 5, 100, []byte{5, 6, 7}, false},
		{"offset at end", 8, 0, nil, true},
		{"offset past end", 20, 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectRange(data, tt.offset, tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("selectRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("selectRange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "code.bin")
	if err := os.WriteFile(file, []byte{0x90, 0xc3}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		flags   []string
		args    []string
		want    []byte
		wantErr bool
	}{
		{"positional", nil, []string{"90c3"}, []byte{0x90, 0xc3}, false},
		{"hex flag", []string{"-x", "cc"}, nil, []byte{0xcc}, false},
		{"file flag", []string{"-f", file}, nil, []byte{0x90, 0xc3}, false},
		{"nothing", nil, nil, nil, true},
		{"two sources", []string{"-x", "cc"}, []string{"90"}, nil, true},
		{"missing file", []string{"-f", file + ".missing"}, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFlagCommand()
			c.Flags().StringP("hex", "x", "", "")
			c.Flags().StringP("file", "f", "", "")
			if err := c.Flags().Parse(tt.flags); err != nil {
				t.Fatal(err)
			}
			got, err := decodeInput(c, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("decodeInput() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestLayoutSpans(t *testing.T) {
	tests := []struct {
		name   string
		layout byteLayout
		want   []colorize.Span
	}{
		{
			name:   "mov rax, [rip+disp32]",
			layout: byteLayout{Prefix: 1, Opcode: 1, ModRm: 1, Disp: 4},
			want: []colorize.Span{
				{Part: colorize.PartPrefix, Len: 1},
				{Part: colorize.PartOpcode, Len: 1},
				{Part: colorize.PartModRm, Len: 1},
				{Part: colorize.PartDisp, Len: 4},
			},
		},
		{
			name:   "jz rel32",
			layout: byteLayout{Opcode: 2, Rel: 4},
			want: []colorize.Span{
				{Part: colorize.PartOpcode, Len: 2},
				{Part: colorize.PartRel, Len: 4},
			},
		},
		{
			name:   "3dnow",
			layout: byteLayout{Opcode: 2, ModRm: 1, Trailing: 1},
			want: []colorize.Span{
				{Part: colorize.PartOpcode, Len: 2},
				{Part: colorize.PartModRm, Len: 1},
				{Part: colorize.PartOpcode, Len: 1},
			},
		},
		{
			name:   "sib and imm",
			layout: byteLayout{Opcode: 1, ModRm: 1, Sib: 1, Disp: 1, Imm: 4},
			want: []colorize.Span{
				{Part: colorize.PartOpcode, Len: 1},
				{Part: colorize.PartModRm, Len: 1},
				{Part: colorize.PartSib, Len: 1},
				{Part: colorize.PartDisp, Len: 1},
				{Part: colorize.PartImm, Len: 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.layout.spans()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("spans() = %v, want %v", got, tt.want)
			}
			sum := 0
			for _, s := range got {
				sum += s.Len
			}
			if sum != tt.layout.total() {
				t.Errorf("spans cover %d bytes, layout has %d", sum, tt.layout.total())
			}
		})
	}
}

func TestBytePadding(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 30},
		{5, 22},
		{15, 2},
		{16, 0},
		{20, 0},
	}
	for _, tt := range tests {
		if got := len(bytePadding(tt.n)); got != tt.want {
			t.Errorf("bytePadding(%d) has %d spaces, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFormatInvalidEntry(t *testing.T) {
	t.Setenv(colorize.EnvNoColor, "1")

	in := disasm.Inst{VA: 0x1008, Bytes: []byte{0xff}, Text: "db 0xff", Mnemonic: "db", Err: bddisasm.ErrInvalidEncoding}
	want := "1008 ff" + strings.Repeat(" ", 30) + "db 0xff"
	if got := formatEntry(in); got != want {
		t.Errorf("formatEntry() = %q, want %q", got, want)
	}
}

func TestWriteEntryJSONInvalid(t *testing.T) {
	in := disasm.Inst{VA: 0x10, Bytes: []byte{0xf9}, Text: "db 0xf9", Err: bddisasm.ErrBufferTooSmall}

	var buf bytes.Buffer
	if err := writeEntry(&buf, in, decodeOptions{json: true}); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	want := map[string]any{"byte": float64(0xf9), "length": float64(1), "rip": float64(0x10)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("writeEntry() = %v, want %v", got, want)
	}
}

func TestWriteEntryErrors(t *testing.T) {
	in := disasm.Inst{VA: 0x10, Bytes: []byte{0xf9}, Text: "db 0xf9", Err: bddisasm.ErrBufferTooSmall}

	// Verbose and dump add nothing to undecodable bytes.
	var buf bytes.Buffer
	if err := writeEntry(&buf, in, decodeOptions{verbose: true, dump: true}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("got %d lines, want 1: %q", n, buf.String())
	}

	if err := writeEntry(failingWriter{}, in, decodeOptions{}); err == nil {
		t.Error("writeEntry() ignored a write error")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestDecodeStats(t *testing.T) {
	var s decodeStats
	s.add(disasm.Inst{Bytes: []byte{0x90}})
	s.add(disasm.Inst{Bytes: []byte{0xb8, 0, 0, 0, 0}})
	s.add(disasm.Inst{Bytes: []byte{0xff}, Err: bddisasm.ErrInvalidEncoding})
	s.size = 7
	s.elapsed = 2 * time.Microsecond

	if s.instructions != 2 || s.invalid != 1 || s.bytes != 6 {
		t.Fatalf("stats = %+v", s)
	}

	st := disasm.Stats{Mnemonics: map[string]int{"NOP": 1, "MOV": 1}}
	var buf bytes.Buffer
	writeStats(&buf, s, st)
	out := buf.String()

	for _, want := range []string{
		"Disassembled 2 instructions took 2µs, 1000 ns / instr.",
		"Invalid: 1/6 (14.29) bytes",
		"Top mnemonics:",
		"MOV",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteStatsEmpty(t *testing.T) {
	var buf bytes.Buffer
	writeStats(&buf, decodeStats{}, disasm.Stats{})
	if !strings.Contains(buf.String(), "Disassembled 0 instructions") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if strings.Contains(buf.String(), "Top mnemonics") {
		t.Error("empty stats printed a mnemonic table")
	}
}

func TestWriteCrossCheck(t *testing.T) {
	var buf bytes.Buffer
	writeCrossCheck(&buf, nil, 3)
	if got := buf.String(); got != "x86asm agrees on all 3 entries\n" {
		t.Errorf("got %q", got)
	}

	buf.Reset()
	writeCrossCheck(&buf, []disasm.Mismatch{{VA: 0x10, Ours: 2, Theirs: 0, Text: "JMP", TheirsAs: "invalid"}}, 4)
	out := buf.String()
	if !strings.Contains(out, "10: bddisasm 2 bytes") || !strings.Contains(out, "disagrees on 1 of 4 entries") {
		t.Errorf("unexpected output %q", out)
	}
}
