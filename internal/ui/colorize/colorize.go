// Package colorize renders x86 listings and instruction bytes with ANSI
// colors. Every entry point returns its input unchanged when color is off.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// EnvNoColor disables every colorizer when set to a non-empty value.
const EnvNoColor = "NDISASM_NO_COLOR"

// Enabled reports whether colors are on.
func Enabled() bool {
	return os.Getenv(EnvNoColor) == ""
}

// Disable turns colors off for the rest of the process.
func Disable() {
	os.Setenv(EnvNoColor, "1")
}

// getAssemblyLexer returns the Intel-syntax lexer. bddisasm prints NASM-like
// text, so nasm goes first.
func getAssemblyLexer() chroma.Lexer {
	for _, name := range []string{"nasm", "gas"} {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func getDisasmStyle() *chroma.Style {
	for _, name := range []string{styleName, "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Listing colorizes a whole block of disassembly text.
func Listing(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}

	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// Line colorizes one listing line of the form "<hex address> <text>". The
// address is dimmed and the rest goes through the lexer. Lines that do not
// start with an address are lexed whole.
func Line(line string) string {
	if !Enabled() {
		return line
	}

	if strings.HasPrefix(strings.TrimSpace(line), ";") {
		return fmt.Sprintf("\033[38;5;244m%s\033[0m", line)
	}

	addr, rest, ok := strings.Cut(line, " ")
	if !ok || addr == "" || !isHex(addr) {
		return colorizeFullLine(line)
	}
	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m %s", addr, colorizeFullLine(rest))
}

// isHex accepts lowercase digits only; mnemonics such as ADD are uppercase.
func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		if !(s[i] >= '0' && s[i] <= '9') && !(s[i] >= 'a' && s[i] <= 'f') {
			return false
		}
	}
	return true
}

func colorizeFullLine(line string) string {
	out, err := Listing(line)
	if err != nil {
		return line
	}
	// The lexer appends a newline the input may not have had.
	if strings.Count(out, "\n") > strings.Count(line, "\n") {
		i := strings.LastIndexByte(out, '\n')
		out = out[:i] + out[i+1:]
	}
	return out
}

// StripANSI removes SGR escape sequences.
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}

// VisibleLen counts the characters of s a terminal would show.
func VisibleLen(s string) int {
	return len([]rune(StripANSI(s)))
}
