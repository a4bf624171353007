package extract

import (
	"errors"
	"fmt"
	"strings"
)

// discountMarker is the token printed on a discount annotation line.
const discountMarker = "OPUST"

// ErrMalformedDiscountBlock reports a discount marker line without the item
// line before it or the corrected-price line after it. Segmentation fails
// as a whole; a broken block must not be silently skipped.
var ErrMalformedDiscountBlock = errors.New("malformed discount block")

// Row is one logical receipt row: an item line, optionally grouped with the
// discount annotation line and the corrected-final-price line that follow
// it.
type Row struct {
	Item     string
	Discount string
	Final    string
}

// HasDiscount reports whether a discount block was attached to the row.
func (r Row) HasDiscount() bool {
	return r.Discount != ""
}

// Segment splits normalized text into logical rows. Empty lines are
// dropped. A line containing the discount marker is attached, together
// with the line immediately following it, to the previously emitted row.
func Segment(text string) ([]Row, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}

	var rows []Row
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.Contains(line, discountMarker) {
			rows = append(rows, Row{Item: line})
			continue
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: marker %q on the first line", ErrMalformedDiscountBlock, line)
		}
		if i+1 >= len(lines) {
			return nil, fmt.Errorf("%w: no corrected price line after %q", ErrMalformedDiscountBlock, line)
		}
		rows[len(rows)-1].Discount = line
		rows[len(rows)-1].Final = lines[i+1]
		i++
	}
	return rows, nil
}
