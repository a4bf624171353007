package extract

import "strings"

// ocrReplacements maps glyphs the OCR engine commonly misreads to the
// character actually printed on the receipt: bracket shapes read in place
// of the digit 1, stray marks read for the multiplication x, a tilde for a
// minus sign and a question mark for the letter P.
var ocrReplacements = map[rune]rune{
	'(': '1',
	'{': '1',
	'«': 'x',
	'¥': 'x',
	'#': 'x',
	'~': '-',
	'?': 'P',
}

// Normalize replaces OCR-confusable glyphs throughout the text. Replacement
// outputs never appear as keys of the table, so Normalize is idempotent.
// Unmatched characters pass through unchanged.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if replacement, ok := ocrReplacements[r]; ok {
			return replacement
		}
		return r
	}, text)
}
