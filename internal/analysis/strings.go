package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bitdefender/bddisasm/internal/elfx"
)

// StringResult represents a recovered string with metadata
type StringResult struct {
	Value string // Escaped string content
	Len   int    // Original byte length
}

// EscapeUnprintable returns a string where printable Unicode runes are preserved.
// Control and unprintable runes are escaped as \uXXXX. Invalid UTF-8 is escaped as \xXX.
func EscapeUnprintable(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&sb, "\\x%02X", b[0])
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "\\u%04X", r)
		}
		b = b[size:]
	}
	return sb.String()
}

// ReadString recovers the C string at va. It only succeeds inside data
// sections and for text that is mostly printable, so pointers into code or
// into binary tables do not produce noise.
func ReadString(im *elfx.Image, va uint64) (StringResult, bool) {
	if !im.InDataOrRodata(va) {
		return StringResult{}, false
	}
	s, ok := im.CString(va, MaxStringLength)
	if !ok || !looksLikeText(s) {
		return StringResult{}, false
	}
	return StringResult{Value: EscapeUnprintable([]byte(s)), Len: len(s)}, true
}

func looksLikeText(s string) bool {
	if len(s) < MinStringLength || !utf8.ValidString(s) {
		return false
	}
	printable := 0
	for _, r := range s {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
	}
	return printable*10 >= utf8.RuneCountInString(s)*9
}
