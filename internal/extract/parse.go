package extract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kmazur/paragon/internal/receipt"
)

// CoercionError reports a matched numeric substring that could not be
// converted to a number, with the full row for operator context.
type CoercionError struct {
	Field string
	Value string
	Row   string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert %s value %q in row %q", e.Field, e.Value, e.Row)
}

// ParseItem matches a logical row against the item grammar and extracts a
// structured item. Rows that do not match yield a nil item; OCR noise
// produces many non-item lines and they are simply dropped. Numeric
// substrings that fail coercion are reported and recorded on the item's
// Unset list, leaving the decision between interactive correction and
// batch degradation to the caller.
func ParseItem(row Row) (*receipt.Item, []*CoercionError) {
	match := itemPattern.FindStringSubmatch(row.Item)
	if match == nil {
		return nil, nil
	}

	item := &receipt.Item{Name: strings.TrimSpace(match[1])}
	var errs []*CoercionError

	set := func(field, raw, context string) {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			item.Unset = append(item.Unset, field)
			errs = append(errs, &CoercionError{Field: field, Value: raw, Row: context})
			return
		}
		item.SetField(field, value)
	}

	set(receipt.FieldQty, canonicalQty(match[2]), row.Item)
	set(receipt.FieldUnitPrice, canonicalPrice(match[3]), row.Item)
	set(receipt.FieldTotalPrice, canonicalPrice(match[4]), row.Item)

	if row.HasDiscount() {
		set(receipt.FieldTotalDiscount, canonicalDiscount(row.Discount), row.Discount)
		set(receipt.FieldFinalPrice, canonicalPrice(row.Final), row.Final)
	}

	return item, errs
}

// canonicalQty rewrites a matched quantity substring into a parseable
// number: the decimal separator may be a comma, a period or a stray space.
func canonicalQty(s string) string {
	match := qtyPattern.FindStringSubmatch(s)
	if match == nil {
		return s
	}
	if match[2] == "" {
		return match[1]
	}
	return match[1] + "." + match[2]
}

// canonicalPrice rewrites a matched price substring. Glyphs misread inside
// a digit group survive the rewrite and fail coercion downstream, which is
// what routes them into the correction path.
func canonicalPrice(s string) string {
	match := pricePattern.FindStringSubmatch(s)
	if match == nil {
		return s
	}
	return match[1] + "." + match[2]
}

// canonicalDiscount extracts the discount magnitude from a discount
// annotation line. Receipts print the discount negative; the sign is
// stripped because the field stores an absolute value.
func canonicalDiscount(s string) string {
	match := discountPattern.FindStringSubmatch(s)
	if match == nil {
		return s
	}
	return match[1] + "." + match[2]
}
