package docs

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"«", `"`, "»", `"`,
)

// NormalizeText applies the standard text cleanup: control characters
// removed, curly quotes straightened, width folded, whitespace
// collapsed and combining characters composed (NFC).
func NormalizeText(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = quoteReplacer.Replace(text)
	text = width.Fold.String(text)
	text = strings.Join(strings.Fields(text), " ")
	return norm.NFC.String(text)
}
