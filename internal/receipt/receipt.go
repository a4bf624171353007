package receipt

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts serialize as JSON numbers, matching the receipt output shape.
	decimal.MarshalJSONWithoutQuotes = true
}

// Status tags how a record left the reconciliation loop.
type Status string

const (
	// StatusExtracted marks a record populated by extraction but not yet
	// reconciled.
	StatusExtracted Status = "extracted"

	// StatusReconciled marks a record whose arithmetic invariants all hold.
	StatusReconciled Status = "reconciled"

	// StatusAcceptedWithDiscrepancy marks a record the operator accepted
	// despite a residual grand-total mismatch.
	StatusAcceptedWithDiscrepancy Status = "accepted_with_discrepancy"
)

// ShopUnrecognized is the sentinel shop name for receipts whose shop could
// not be matched.
const ShopUnrecognized = "unrecognized"

// Item field names used by the correction paths.
const (
	FieldQty           = "qty"
	FieldUnitPrice     = "unit_price"
	FieldTotalPrice    = "total_price"
	FieldTotalDiscount = "total_discount"
	FieldFinalPrice    = "final_price"
)

// Item is a single purchased product line.
type Item struct {
	Name          string           `json:"name"`
	Qty           decimal.Decimal  `json:"qty"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	TotalPrice    decimal.Decimal  `json:"total_price"`
	TotalDiscount *decimal.Decimal `json:"total_discount"` // nil when no discount applies
	FinalPrice    decimal.Decimal  `json:"final_price"`

	// Unset lists fields whose numeric coercion failed in batch mode. The
	// item is flagged for review instead of dropped.
	Unset []string `json:"unset_fields,omitempty"`
}

// Discounted reports whether a discount block applied to the item.
func (i *Item) Discounted() bool {
	return i.TotalDiscount != nil
}

// SetField assigns a named numeric field and clears it from the Unset list.
func (i *Item) SetField(name string, value decimal.Decimal) {
	switch name {
	case FieldQty:
		i.Qty = value
	case FieldUnitPrice:
		i.UnitPrice = value
	case FieldTotalPrice:
		i.TotalPrice = value
		if !i.Discounted() {
			i.FinalPrice = value
		}
	case FieldTotalDiscount:
		v := value
		i.TotalDiscount = &v
	case FieldFinalPrice:
		i.FinalPrice = value
	}
	i.Unset = slices.DeleteFunc(i.Unset, func(f string) bool { return f == name })
	if len(i.Unset) == 0 {
		i.Unset = nil
	}
}

// Record is one extracted shopping transaction. Items keep their order of
// appearance on the receipt.
type Record struct {
	ID           string          `json:"id"`
	ShopName     string          `json:"shop_name"`
	ShoppingDate string          `json:"shopping_date"` // yyyy-mm-dd, empty when absent
	Items        []*Item         `json:"items"`
	TotalSum     decimal.Decimal `json:"total_sum"`
	TotalKnown   bool            `json:"total_known"`
	Status       Status          `json:"status"`
	Discrepancy  decimal.Decimal `json:"discrepancy"`
	SourcePath   string          `json:"source_path,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
