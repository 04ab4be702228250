package colorize

import (
	"encoding/hex"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
)

// Part names the component of an instruction a run of bytes encodes.
type Part uint8

const (
	PartPrefix Part = iota
	PartOpcode
	PartModRm
	PartSib
	PartDisp
	PartAddr
	PartMoffset
	PartImm
	PartRel
	PartOther
)

var partNames = [...]string{
	PartPrefix:  "prefix",
	PartOpcode:  "opcode",
	PartModRm:   "modrm",
	PartSib:     "sib",
	PartDisp:    "disp",
	PartAddr:    "addr",
	PartMoffset: "moffset",
	PartImm:     "imm",
	PartRel:     "rel",
	PartOther:   "other",
}

func (p Part) String() string {
	if int(p) < len(partNames) {
		return partNames[p]
	}
	return "other"
}

var partStyles = [...]lipgloss.Style{
	PartPrefix:  lipgloss.NewStyle().Foreground(lipgloss.Color("#C586C0")),
	PartOpcode:  lipgloss.NewStyle().Foreground(lipgloss.Color("#569CD6")).Bold(true),
	PartModRm:   lipgloss.NewStyle().Foreground(lipgloss.Color("#4EC9B0")),
	PartSib:     lipgloss.NewStyle().Foreground(lipgloss.Color("#9CDCFE")),
	PartDisp:    lipgloss.NewStyle().Foreground(lipgloss.Color("#DCDCAA")),
	PartAddr:    lipgloss.NewStyle().Foreground(lipgloss.Color("#CE9178")),
	PartMoffset: lipgloss.NewStyle().Foreground(lipgloss.Color("#CE9178")),
	PartImm:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")),
	PartRel:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
	PartOther:   lipgloss.NewStyle().Foreground(lipgloss.Color("#858585")),
}

// Span is a run of Len bytes encoding Part.
type Span struct {
	Part Part
	Len  int
}

// Bytes renders b as lowercase hex. With color on, each span of bytes is
// styled by its part. Bytes past the last span render as PartOther.
func Bytes(b []byte, spans []Span) string {
	if !Enabled() {
		return hex.EncodeToString(b)
	}

	var sb strings.Builder
	pos := 0
	for _, s := range spans {
		if s.Len <= 0 || pos >= len(b) {
			continue
		}
		end := min(pos+s.Len, len(b))
		sb.WriteString(styleFor(s.Part).Render(hex.EncodeToString(b[pos:end])))
		pos = end
	}
	if pos < len(b) {
		sb.WriteString(styleFor(PartOther).Render(hex.EncodeToString(b[pos:])))
	}
	return sb.String()
}

func styleFor(p Part) lipgloss.Style {
	if int(p) < len(partStyles) {
		return partStyles[p]
	}
	return partStyles[PartOther]
}
