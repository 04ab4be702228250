package cmd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm/internal/disasm"
)

func init() {
	decodeCmd.Flags().StringP("hex", "x", "", "Hex bytes to decode")
	decodeCmd.Flags().StringP("file", "f", "", "Raw file to decode")
	decodeCmd.Flags().Uint64("offset", 0, "Offset of the first decoded byte")
	decodeCmd.Flags().Uint64("size", 0, "Number of bytes to decode, 0 for all")
	decodeCmd.Flags().Int("count", 0, "Stop after this many instructions, 0 for all")
	decodeCmd.Flags().Bool("json", false, "Print one JSON object per entry")
	decodeCmd.Flags().Bool("stats", false, "Only print decode statistics")
	decodeCmd.Flags().Bool("dump", false, "Dump the decoded operands of each instruction")
	decodeCmd.Flags().Bool("cross-check", false, "Compare instruction lengths with x86asm")
}

var decodeCmd = &cobra.Command{
	Use:   "decode [hex]",
	Short: "Disassemble a hex string or a file range",
	Example: `
# Decode a hex string
ndisasm decode "b8 00 00 00 00"

# Decode the first 10 instructions at offset 0x40 of a raw file
ndisasm decode -f code.bin --offset 0x40 --count 10
  `,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

// decodeOptions is what runDecode reads from its flags.
type decodeOptions struct {
	rip        uint64
	offset     uint64
	size       uint64
	count      int
	json       bool
	stats      bool
	dump       bool
	verbose    bool
	crossCheck bool
}

func runDecode(cmd *cobra.Command, args []string) error {
	mode, err := decodeMode(cmd)
	if err != nil {
		return err
	}
	data, err := decodeInput(cmd, args)
	if err != nil {
		return err
	}

	var opts decodeOptions
	opts.rip, _ = cmd.Flags().GetUint64("rip")
	opts.offset, _ = cmd.Flags().GetUint64("offset")
	opts.size, _ = cmd.Flags().GetUint64("size")
	opts.count, _ = cmd.Flags().GetInt("count")
	opts.json, _ = cmd.Flags().GetBool("json")
	opts.stats, _ = cmd.Flags().GetBool("stats")
	opts.dump, _ = cmd.Flags().GetBool("dump")
	opts.verbose, _ = cmd.Flags().GetBool("verbose")
	opts.crossCheck, _ = cmd.Flags().GetBool("cross-check")

	code, err := selectRange(data, opts.offset, opts.size)
	if err != nil {
		return err
	}
	base := opts.rip + opts.offset
	slog.Debug("Decoding", "bytes", len(code), "mode", mode, "rip", base)

	out := cmd.OutOrStdout()
	var stream disasm.Stream
	var st decodeStats
	var writeErr error
	start := time.Now()
	disasm.Walk(code, mode, base, func(in disasm.Inst) bool {
		stream = append(stream, in)
		st.add(in)
		if !opts.stats {
			if writeErr = writeEntry(out, in, opts); writeErr != nil {
				return false
			}
		}
		return opts.count <= 0 || st.instructions < opts.count
	})
	st.elapsed = time.Since(start)
	st.size = len(code)
	if writeErr != nil {
		return writeErr
	}

	if opts.stats {
		writeStats(out, st, stream.Stats())
	}
	if opts.crossCheck {
		writeCrossCheck(out, disasm.CrossCheck(stream, code, base, mode), len(stream))
	}
	return nil
}

// decodeInput returns the bytes named by the positional argument, --hex or
// --file. Exactly one of them must be given.
func decodeInput(cmd *cobra.Command, args []string) ([]byte, error) {
	hexFlag, _ := cmd.Flags().GetString("hex")
	file, _ := cmd.Flags().GetString("file")

	given := 0
	for _, s := range []string{hexFlag, file} {
		if s != "" {
			given++
		}
	}
	if len(args) > 0 {
		given++
		hexFlag = args[0]
	}
	switch {
	case given == 0:
		return nil, errors.New("nothing to decode: pass hex bytes, --hex or --file")
	case given > 1:
		return nil, errors.New("pass only one of hex bytes, --hex or --file")
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	}
	return parseHex(hexFlag)
}

// parseHex accepts hex bytes in the usual spellings: "b8000000",
// "b8 00 00", "0xb8, 0x00" and "\xb8\x00".
func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, `\x`, " ")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})

	var sb strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		sb.WriteString(f)
	}
	digits := sb.String()
	if digits == "" {
		return nil, errors.New("no hex bytes given")
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits in %q", digits)
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// selectRange clips data to [offset, offset+size). A zero size means up to
// the end.
func selectRange(data []byte, offset, size uint64) ([]byte, error) {
	if offset >= uint64(len(data)) {
		return nil, fmt.Errorf("offset %#x is past the end of the input (%d bytes)", offset, len(data))
	}
	end := uint64(len(data))
	if size > 0 && size < end-offset {
		end = offset + size
	}
	return data[offset:end], nil
}

func writeEntry(w io.Writer, in disasm.Inst, opts decodeOptions) error {
	if opts.json {
		v, err := jsonEntry(in)
		if err != nil {
			return fmt.Errorf("%x: %w", in.VA, err)
		}
		bts, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		_, err = fmt.Fprintln(w, string(bts))
		return err
	}

	if _, err := fmt.Fprintln(w, formatEntry(in)); err != nil {
		return err
	}
	if !in.Valid() {
		return nil
	}
	if opts.verbose {
		lines, err := extendedInfo(in.Ins)
		if err != nil {
			return fmt.Errorf("%x: %w", in.VA, err)
		}
		for _, l := range lines {
			fmt.Fprintf(w, "%9s%s\n", "", l)
		}
	}
	if opts.dump {
		ops, err := in.Ins.Operands()
		if err != nil {
			return fmt.Errorf("%x: %w", in.VA, err)
		}
		dumper().Fdump(w, ops)
	}
	return nil
}

func dumper() *spew.ConfigState {
	return &spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
}

type decodeStats struct {
	instructions int
	invalid      int
	bytes        int // bytes covered by decoded instructions
	size         int
	elapsed      time.Duration
}

func (s *decodeStats) add(in disasm.Inst) {
	if !in.Valid() {
		s.invalid++
		return
	}
	s.instructions++
	s.bytes += in.Len()
}

func writeStats(w io.Writer, s decodeStats, st disasm.Stats) {
	perInstr := time.Duration(0)
	if s.instructions > 0 {
		perInstr = s.elapsed / time.Duration(s.instructions)
	}
	fmt.Fprintf(w, "Disassembled %d instructions took %s, %d ns / instr.\n",
		s.instructions, s.elapsed, perInstr.Nanoseconds())

	pct := 0.0
	if s.size > 0 {
		pct = float64(s.invalid) / float64(s.size) * 100
	}
	fmt.Fprintf(w, "Invalid: %d/%d (%.2f) bytes\n", s.invalid, s.bytes, pct)

	top := st.Top(10)
	if len(top) == 0 {
		return
	}
	fmt.Fprintln(w, "Top mnemonics:")
	for _, mc := range top {
		fmt.Fprintf(w, "  %-16s %d\n", mc.Mnemonic, mc.Count)
	}
}

func writeCrossCheck(w io.Writer, mismatches []disasm.Mismatch, entries int) {
	if len(mismatches) == 0 {
		fmt.Fprintf(w, "x86asm agrees on all %d entries\n", entries)
		return
	}
	for _, m := range mismatches {
		fmt.Fprintln(w, m.String())
	}
	fmt.Fprintf(w, "x86asm disagrees on %d of %d entries\n", len(mismatches), entries)
}
