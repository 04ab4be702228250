package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm"
	"github.com/bitdefender/bddisasm/internal/ndisasm/styles"
	"github.com/bitdefender/bddisasm/internal/ui/colorize"
)

func init() {
	infoCmd.Flags().Bool("markdown", false, "Print the markdown source instead of rendering it")
}

var infoCmd = &cobra.Command{
	Use:   "info <hex>",
	Short: "Show the property sheet of one instruction",
	Example: `
# Everything bddisasm reports for a VEX instruction
ndisasm info c4e2790e00
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := decodeMode(cmd)
		if err != nil {
			return err
		}
		code, err := parseHex(args[0])
		if err != nil {
			return err
		}
		rip, _ := cmd.Flags().GetUint64("rip")

		ins, err := bddisasm.DecodeWithIP(code, mode, rip)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", args[0], err)
		}
		md, err := propertySheet(ins)
		if err != nil {
			return err
		}

		if raw, _ := cmd.Flags().GetBool("markdown"); raw {
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		}
		out, err := styles.Render(md, terminalWidth(), colorize.Enabled())
		if err != nil {
			return fmt.Errorf("failed to render: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func terminalWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}

// mdTable renders a markdown table. Pipes in cells are escaped.
func mdTable(header []string, rows [][]string) string {
	var sb strings.Builder
	row := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" " + strings.ReplaceAll(c, "|", `\|`) + " |")
		}
		sb.WriteString("\n")
	}
	row(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	row(sep)
	for _, r := range rows {
		row(r)
	}
	return sb.String()
}

// component is one encoded piece of an instruction, for the layout table.
type component struct {
	name   string
	offset func() (uint8, bool)
	length uint8
}

func components(ins bddisasm.DecodedInstruction) []component {
	var sse uint8
	if ins.HasSseImm() {
		sse = 1
	}
	return []component{
		{"opcode", ins.OpOffset, ins.OpLength()},
		{"modrm", ins.ModRmOffset, 1},
		{"displacement", ins.DispOffset, ins.DispLength()},
		{"address", ins.AddrOffset, ins.AddrLength()},
		{"moffset", ins.MoffsetOffset, ins.MoffsetLength()},
		{"relative offset", ins.RelOffsOffset, ins.RelOffsLength()},
		{"immediate 1", ins.Imm1Offset, ins.Imm1Length()},
		{"immediate 2", ins.Imm2Offset, ins.Imm2Length()},
		{"immediate 3", ins.Imm3Offset, ins.Imm3Length()},
		{"sse immediate", ins.SseImmOffset, sse},
	}
}

// propertySheet describes ins as a markdown document.
func propertySheet(ins bddisasm.DecodedInstruction) (string, error) {
	var sb strings.Builder
	text, err := ins.Format()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "# %s\n\n```nasm\n%x %x  %s\n```\n\n", ins.Mnemonic(), ins.IP(), ins.Bytes(), text)

	enc, err := ins.EncodingMode()
	if err != nil {
		return "", err
	}
	opMode, err := ins.EffectiveOpMode()
	if err != nil {
		return "", err
	}
	addrMode, err := ins.AddrMode()
	if err != nil {
		return "", err
	}
	cat, err := ins.Category()
	if err != nil {
		return "", err
	}
	isa, err := ins.IsaSet()
	if err != nil {
		return "", err
	}

	general := [][]string{
		{"Length", fmt.Sprint(ins.Length())},
		{"Mode", ins.Mode().String() + " bit"},
		{"Encoding", enc.String()},
		{"Operand size", opMode.String()},
		{"Address size", addrMode.String()},
		{"Class", fmt.Sprint(ins.InstructionClass())},
		{"Category", fmt.Sprint(cat)},
		{"ISA set", fmt.Sprint(isa)},
		{"CET tracked", yesNo(ins.IsCetTracked())},
		{"RIP relative", yesNo(ins.IsRipRelative())},
	}
	if ins.HasVector() {
		vm, err := ins.EffectiveVecMode()
		if err != nil {
			return "", err
		}
		general = append(general, []string{"Vector length", vm.String()})
	}
	cpuid, ok, err := ins.Cpuid()
	if err != nil {
		return "", err
	}
	if ok {
		general = append(general, []string{"CPUID", cpuid.String()})
	}
	sb.WriteString("## General\n\n")
	sb.WriteString(mdTable([]string{"Property", "Value"}, general))

	layout := [][]string{}
	if n := ins.PrefLength(); n > 0 {
		layout = append(layout, []string{"prefixes", "0", fmt.Sprint(n)})
	}
	for _, c := range components(ins) {
		off, ok := c.offset()
		if !ok || c.length == 0 {
			continue
		}
		layout = append(layout, []string{c.name, fmt.Sprint(off), fmt.Sprint(c.length)})
	}
	sb.WriteString("\n## Layout\n\n")
	sb.WriteString(mdTable([]string{"Component", "Offset", "Length"}, layout))

	if fields := encodingDetails(ins); len(fields) > 0 {
		sb.WriteString("\n## Encoding\n\n")
		sb.WriteString(mdTable([]string{"Field", "Value"}, fields))
	}

	ops, err := ins.Operands()
	if err != nil {
		return "", err
	}
	if len(ops) > 0 {
		rows := make([][]string, 0, len(ops))
		for i, op := range ops {
			rows = append(rows, []string{
				fmt.Sprint(i), operandKind(op), op.Size.String(), op.Access.String(),
				op.Encoding.String(), yesNo(op.IsDefault), operandDetail(op),
			})
		}
		sb.WriteString("\n## Operands\n\n")
		sb.WriteString(mdTable([]string{"#", "Type", "Size", "Access", "Encoding", "Implicit", "Detail"}, rows))
	}

	access := [][]string{}
	for _, a := range []struct {
		name string
		get  func() (bddisasm.OpAccess, error)
	}{
		{"RIP", ins.RipAccess}, {"Stack", ins.StackAccess}, {"Memory", ins.MemoryAccess},
	} {
		v, err := a.get()
		if err != nil {
			return "", err
		}
		access = append(access, []string{a.name, v.String()})
	}
	flags, err := ins.FlagsAccess()
	if err != nil {
		return "", err
	}
	if s := flagsSummary(flags); s != "" {
		access = append(access, []string{"Flags", s})
	}
	sb.WriteString("\n## Access\n\n")
	sb.WriteString(mdTable([]string{"Resource", "Access"}, access))

	branch, err := branchSummary(ins)
	if err != nil {
		return "", err
	}
	if branch != "" {
		fmt.Fprintf(&sb, "\n## Branch\n\n%s\n", branch)
	}

	fmt.Fprintf(&sb, "\n## Valid modes\n\n%s\n", modesSummary(ins.ValidCpuModes()))
	return sb.String(), nil
}

func encodingDetails(ins bddisasm.DecodedInstruction) [][]string {
	var rows [][]string
	if rex, ok := ins.Rex(); ok {
		rows = append(rows, []string{"REX", fmt.Sprintf("%#02x W:%d R:%d X:%d B:%d",
			rex.Raw, b2i(rex.W), b2i(rex.R), b2i(rex.X), b2i(rex.B))})
	}
	if modrm, ok := ins.ModRm(); ok {
		rows = append(rows, []string{"ModRM", fmt.Sprintf("%#02x mod:%d reg:%d rm:%d",
			modrm.Raw, modrm.Mod, modrm.Reg, modrm.Rm)})
	}
	if sib, ok := ins.Sib(); ok {
		rows = append(rows, []string{"SIB", fmt.Sprintf("%#02x scale:%d index:%d base:%d",
			sib.Raw, sib.Scale, sib.Index, sib.Base)})
	}
	if p, err := ins.Prefix(); err == nil {
		switch v := p.(type) {
		case bddisasm.Vex2:
			rows = append(rows, []string{"VEX2", fmt.Sprintf("%+v", v)})
		case bddisasm.Vex3:
			rows = append(rows, []string{"VEX3", fmt.Sprintf("%+v", v)})
		case bddisasm.Xop:
			rows = append(rows, []string{"XOP", fmt.Sprintf("%+v", v)})
		case bddisasm.Evex:
			rows = append(rows, []string{"EVEX", fmt.Sprintf("%+v", v)})
		}
	}
	return rows
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func operandDetail(op bddisasm.Operand) string {
	switch v := op.Info.(type) {
	case bddisasm.OpReg:
		s := fmt.Sprintf("%v #%d, %d bytes", v.Type, v.Index, v.Size)
		if v.IsHigh8 {
			s += ", high byte"
		}
		return s
	case bddisasm.OpMem:
		return memSummary(v)
	case bddisasm.OpImm:
		return fmt.Sprintf("%#x", uint64(v))
	case bddisasm.OpOffs:
		return fmt.Sprintf("%+d", int64(v))
	case bddisasm.OpAddr:
		return fmt.Sprintf("%#x:%#x", v.BaseSeg, v.Offset)
	case bddisasm.OpConst:
		return fmt.Sprintf("%d", uint64(v))
	}
	return ""
}

// branchSummary describes the control transfer of ins, or returns "" for
// instructions that do not branch.
func branchSummary(ins bddisasm.DecodedInstruction) (string, error) {
	branch, err := ins.IsBranch()
	if err != nil || !branch {
		return "", err
	}
	cond, err := ins.IsConditionalBranch()
	if err != nil {
		return "", err
	}
	indirect, err := ins.IsIndirectBranch()
	if err != nil {
		return "", err
	}
	far, err := ins.IsFarBranch()
	if err != nil {
		return "", err
	}

	kind := []string{}
	if cond {
		kind = append(kind, "conditional")
	}
	if indirect {
		kind = append(kind, "indirect")
	} else {
		kind = append(kind, "direct")
	}
	if far {
		kind = append(kind, "far")
	}
	return strings.Join(kind, ", ") + " branch", nil
}
