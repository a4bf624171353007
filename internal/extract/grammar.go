package extract

import "regexp"

// The item grammar: a free-text name, an optional 1-2 character separator
// (the fiscal tax letter), a quantity with an optional fraction, an
// optional multiplication mark, a unit price and a total price. Price
// groups admit a stray space after the decimal separator and the letter t,
// which the OCR engine produces in place of some digits; such values fail
// numeric coercion and enter the correction path instead of being dropped.
var (
	itemPattern = regexp.MustCompile(
		`^(.+?)(?:\s+\S{1,2})?\s+(\d+(?:[,. ]\d+)?)\s*x?\s*([t\d]+[,.]\s?\d{0,2})\s+(\d+[,.]\s?\d{0,2})`)

	qtyPattern = regexp.MustCompile(`^(\d+)(?:[,. ]+(\d{0,3}))?`)

	pricePattern = regexp.MustCompile(`(\w+)[,. ]+(\w{0,2})`)

	discountPattern = regexp.MustCompile(`OPUST\s*-?(\w+)[,. ]+(\w{0,2})`)
)
