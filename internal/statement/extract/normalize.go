package extract

import "strings"

// Byte sequences produced when UTF-8 currency glyphs are decoded as
// Windows-1252, mapped back to the intended glyph.
var mojibake = strings.NewReplacer(
	"â‚¹", "₹",
	"â‚¬", "€",
	"Â£", "£",
	"Â\u00a0", " ",
)

// Normalize repairs mis-decoded currency glyphs and collapses whitespace.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(text string) string {
	// Each replacement is shorter than its pattern, so this terminates.
	for {
		fixed := mojibake.Replace(text)
		if fixed == text {
			break
		}
		text = fixed
	}
	return strings.Join(strings.Fields(text), " ")
}
