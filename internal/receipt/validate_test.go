package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shopspring/decimal"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func amountPtr(s string) *decimal.Decimal {
	v := amount(s)
	return &v
}

var _ = Describe("TotalPriceOK", func() {
	It("holds when qty times unit price equals the total", func() {
		Expect(TotalPriceOK(&Item{
			Qty:        amount("2"),
			UnitPrice:  amount("3.49"),
			TotalPrice: amount("6.98"),
		})).To(BeTrue())
	})

	It("rounds the product to two decimal places", func() {
		Expect(TotalPriceOK(&Item{
			Qty:        amount("0.486"),
			UnitPrice:  amount("39.99"),
			TotalPrice: amount("19.44"),
		})).To(BeTrue())
	})

	It("fails on a mismatch", func() {
		Expect(TotalPriceOK(&Item{
			Qty:        amount("2"),
			UnitPrice:  amount("3.49"),
			TotalPrice: amount("6.88"),
		})).To(BeFalse())
	})
})

var _ = Describe("FinalPriceOK", func() {
	When("the item has no discount", func() {
		It("requires the final price to equal the total price", func() {
			Expect(FinalPriceOK(&Item{
				TotalPrice: amount("6.98"),
				FinalPrice: amount("6.98"),
			})).To(BeTrue())

			Expect(FinalPriceOK(&Item{
				TotalPrice: amount("6.98"),
				FinalPrice: amount("6.88"),
			})).To(BeFalse())
		})
	})

	When("the item is discounted", func() {
		It("requires the final price to equal total minus discount", func() {
			Expect(FinalPriceOK(&Item{
				TotalPrice:    amount("10.00"),
				TotalDiscount: amountPtr("2.00"),
				FinalPrice:    amount("8.00"),
			})).To(BeTrue())

			Expect(FinalPriceOK(&Item{
				TotalPrice:    amount("10.00"),
				TotalDiscount: amountPtr("2.00"),
				FinalPrice:    amount("7.00"),
			})).To(BeFalse())
		})
	})
})

var _ = Describe("GrandTotalDiff", func() {
	It("is zero when the final prices sum to the extracted total", func() {
		record := &Record{
			Items: []*Item{
				{FinalPrice: amount("2.99")},
				{FinalPrice: amount("6.98")},
			},
			TotalSum: amount("9.97"),
		}
		Expect(GrandTotalDiff(record).IsZero()).To(BeTrue())
	})

	It("returns the absolute difference", func() {
		record := &Record{
			Items:    []*Item{{FinalPrice: amount("2.99")}},
			TotalSum: amount("9.97"),
		}
		Expect(GrandTotalDiff(record).String()).To(Equal("6.98"))

		record.TotalSum = amount("1.99")
		Expect(GrandTotalDiff(record).String()).To(Equal("1.00"))
	})
})
