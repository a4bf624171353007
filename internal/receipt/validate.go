package receipt

import "github.com/shopspring/decimal"

// TotalPriceOK reports whether total_price equals qty * unit_price rounded
// to two decimal places.
func TotalPriceOK(item *Item) bool {
	return item.TotalPrice.Equal(item.Qty.Mul(item.UnitPrice).Round(2))
}

// FinalPriceOK reports whether final_price equals total_price minus the
// discount, rounded to two decimal places. Items without a discount must
// satisfy final_price == total_price.
func FinalPriceOK(item *Item) bool {
	if !item.Discounted() {
		return item.FinalPrice.Equal(item.TotalPrice)
	}
	return item.FinalPrice.Equal(item.TotalPrice.Sub(*item.TotalDiscount).Round(2))
}

// GrandTotalDiff returns the absolute difference between the sum of item
// final prices and the extracted receipt total, rounded to two decimal
// places.
func GrandTotalDiff(record *Record) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range record.Items {
		sum = sum.Add(item.FinalPrice)
	}
	return sum.Sub(record.TotalSum).Round(2).Abs()
}
