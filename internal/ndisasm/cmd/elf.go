package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/analysis"
	"github.com/bitdefender/bddisasm/internal/disasm"
	"github.com/bitdefender/bddisasm/internal/elfx"
	"github.com/bitdefender/bddisasm/internal/logging"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

func init() {
	elfCmd.Flags().StringP("function", "F", "", "Only disassemble the named function")
	elfCmd.Flags().Int("limit", analysis.MaxFunctionInstructions, "Maximum instructions per function")
	elfCmd.Flags().Bool("no-annotate", false, "Do not resolve branch targets and data references")
	elfCmd.Flags().BoolP("list", "l", false, "Only list the functions")
}

var elfCmd = &cobra.Command{
	Use:   "elf <file>",
	Short: "Disassemble the code of an x86 ELF image",
	Example: `
# Disassemble every function of a binary
ndisasm elf /bin/true

# Disassemble one function
ndisasm elf ./a.out -F main
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lg := logging.NewLogger()
		defer lg.Close()

		im, err := elfx.Open(args[0])
		if err != nil {
			return err
		}
		defer im.Close()

		mode, err := imageMode(cmd, im)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		noAnnotate, _ := cmd.Flags().GetBool("no-annotate")
		onlyList, _ := cmd.Flags().GetBool("list")
		name, _ := cmd.Flags().GetString("function")

		funcs := analysis.ScanFunctions(im)
		lg.Info("Opened image", "path", im.Path, "bits", im.Bits(), "functions", len(funcs))

		out := cmd.OutOrStdout()
		if onlyList {
			for _, fn := range funcs {
				fmt.Fprintf(out, "%x %8d %s\n", fn.VA, fn.Size, fn.Title())
			}
			return nil
		}

		if name != "" {
			va, ok := im.FindFunctionByName(name)
			if !ok {
				return fmt.Errorf("function %q not found", name)
			}
			fn := analysis.FunctionSymbol{VA: va, Name: name, Demangled: analysis.CachedDemangle(name)}
			if sym, ok := im.SymbolAt(va); ok {
				fn.Size = sym.Size
			}
			return writeFunction(out, im, fn, mode, limit, !noAnnotate)
		}

		if len(funcs) == 0 {
			lg.Warn("No function symbols, disassembling .text linearly", "section", im.Text.Name)
			code, ok := im.TextBytes()
			if !ok {
				return fmt.Errorf("%s: no executable code found", im.Path)
			}
			s := disasm.Disassemble(code, mode, im.Text.VA, 0)
			writeListing(out, listing(im, s, !noAnnotate))
			return nil
		}

		for _, fn := range funcs {
			if fn.PLT {
				continue
			}
			lg.Debug("Disassembling", "function", fn.Title(), "va", fmt.Sprintf("%#x", fn.VA))
			if err := writeFunction(out, im, fn, mode, limit, !noAnnotate); err != nil {
				lg.Warn("Skipping function", "function", fn.Title(), "error", err)
			}
		}
		entries, hits := analysis.DemangleCacheStats()
		lg.Debug("Demangle cache", "entries", entries, "hits", hits)
		return nil
	},
}

// imageMode picks the decode mode from the ELF class unless --bits was
// given explicitly.
func imageMode(cmd *cobra.Command, im *elfx.Image) (bddisasm.DecodeMode, error) {
	if cmd.Flags().Changed("bits") {
		return decodeMode(cmd)
	}
	mode, ok := bddisasm.ModeFromBits(im.Bits())
	if !ok {
		return 0, fmt.Errorf("%s: unsupported ELF class", im.Path)
	}
	return mode, nil
}

// functionCode returns the bytes of fn. Symbols without a size extend to
// the end of the section holding them.
func functionCode(im *elfx.Image, fn analysis.FunctionSymbol) ([]byte, bool) {
	size := fn.Size
	if size == 0 {
		size = 0x1000
		if im.Text.Contains(fn.VA) {
			size = im.Text.VA + im.Text.Size - fn.VA
		}
	}
	return im.SliceVA(fn.VA, size)
}

// disassembleFunction decodes fn up to its first return.
func disassembleFunction(im *elfx.Image, fn analysis.FunctionSymbol, mode bddisasm.DecodeMode, limit int, annotate bool) ([]analysis.AnnotatedInst, error) {
	code, ok := functionCode(im, fn)
	if !ok || len(code) == 0 {
		return nil, fmt.Errorf("%#x is not backed by file data", fn.VA)
	}
	return listing(im, disasm.Function(code, mode, fn.VA, limit), annotate), nil
}

func listing(im *elfx.Image, s disasm.Stream, annotate bool) []analysis.AnnotatedInst {
	if annotate {
		return analysis.Annotate(im, s)
	}
	out := make([]analysis.AnnotatedInst, len(s))
	for i, in := range s {
		out[i] = analysis.AnnotatedInst{Inst: in}
	}
	return out
}

func writeFunction(w io.Writer, im *elfx.Image, fn analysis.FunctionSymbol, mode bddisasm.DecodeMode, limit int, annotate bool) error {
	insts, err := disassembleFunction(im, fn, mode, limit, annotate)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s\n", colorize.Line(fmt.Sprintf("; %s @ %#x", fn.Title(), fn.VA)))
	writeListing(w, insts)
	return nil
}

func writeListing(w io.Writer, insts []analysis.AnnotatedInst) {
	for _, a := range insts {
		fmt.Fprintln(w, colorize.Line(a.String()))
	}
}
