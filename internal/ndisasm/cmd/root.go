package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/ndisasm/log"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

func init() {
	rootCmd.PersistentFlags().IntP("bits", "b", 64, "Decode mode: 16, 32 or 64")
	rootCmd.PersistentFlags().Uint64P("rip", "r", 0, "Address of the first decoded byte")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print extended instruction info")
	rootCmd.PersistentFlags().String("log-file", "", "Write application logs to file")
	rootCmd.PersistentFlags().String("config", "", "Load flag defaults from a JSON config file")

	rootCmd.Flags().BoolP("help", "h", false, "Help")

	rootCmd.AddCommand(decodeCmd, infoCmd, elfCmd, viewCmd, logsCmd, schemaCmd)
}

var rootCmd = &cobra.Command{
	Use:   "ndisasm",
	Short: "x86 disassembler built on bddisasm",
	Long: `ndisasm decodes x86 machine code with the bddisasm decoder.
It disassembles hex strings, raw files and the code of x86 ELF images, and
shows the full property sheet the decoder reports for any instruction.`,
	Example: `
# Disassemble a hex string as 64-bit code
ndisasm decode "48 8b 05 f9 ff ff ff"

# Disassemble 32 bytes of a raw file as 32-bit code, starting at 0x401000
ndisasm decode -b 32 -r 0x401000 -f dump.bin --size 32

# Show everything bddisasm knows about one instruction
ndisasm info c4e2790e00

# Browse the functions of an ELF image
ndisasm view /bin/true
  `,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// setup applies the config file, then wires logging and color. It runs
// before every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := LoadConfig(path)
		if err != nil {
			return err
		}
		if err := cfg.apply(cmd); err != nil {
			return err
		}
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logFile, _ := cmd.Flags().GetString("log-file")
	log.Setup(logFile, debug)

	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor || !term.IsTerminal(os.Stdout.Fd()) {
		colorize.Disable()
	}

	slog.Debug("Command starting", "command", cmd.Name(), "args", args)
	return nil
}

// decodeMode reads --bits.
func decodeMode(cmd *cobra.Command) (bddisasm.DecodeMode, error) {
	bits, _ := cmd.Flags().GetInt("bits")
	mode, ok := bddisasm.ModeFromBits(bits)
	if !ok {
		return 0, fmt.Errorf("invalid --bits %d: want 16, 32 or 64", bits)
	}
	return mode, nil
}

// plainOutput reports whether args ask for output meant for other programs.
func plainOutput(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--json", "--stats", "--dump", "--no-color":
			return true
		}
	}
	return false
}

func Execute() {
	var err error
	// fang renders help and errors as styled markdown, which only makes
	// sense on a terminal.
	if plainOutput(os.Args[1:]) || !term.IsTerminal(os.Stdout.Fd()) {
		err = rootCmd.Execute()
	} else {
		err = fang.Execute(
			context.Background(),
			rootCmd,
			fang.WithNotifySignal(os.Interrupt),
		)
	}
	if cerr := log.Close(); cerr != nil {
		slog.Error("Failed to close log file", "error", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
