package receipt

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kmazur/paragon/internal/prompt"
)

// errAttemptsExhausted reports a correction sub-loop that hit its attempt
// bound without reaching consistent values.
var errAttemptsExhausted = errors.New("correction attempts exhausted")

// Reconciler drives corrections on an extracted record until its arithmetic
// invariants hold or the operator accepts the residual discrepancy. The
// record is mutated in place; only one reconciliation may be in flight per
// record.
type Reconciler struct {
	src         prompt.Source
	maxAttempts int
}

// NewReconciler creates a Reconciler asking the given source for
// corrections. maxAttempts bounds every correction sub-loop.
func NewReconciler(src prompt.Source, maxAttempts int) *Reconciler {
	if src == nil {
		// Batch mode: a drained script makes every correction escalate.
		src = prompt.NewScript()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Reconciler{src: src, maxAttempts: maxAttempts}
}

// Reconcile runs the validation and correction loop. It always leaves the
// record in a terminal state: StatusReconciled when every invariant holds,
// StatusAcceptedWithDiscrepancy when the operator accepts the mismatch or
// the answer source runs dry.
func (r *Reconciler) Reconcile(record *Record) error {
	err := r.run(record)
	if err == nil {
		return nil
	}
	if errors.Is(err, prompt.ErrExhausted) || errors.Is(err, errAttemptsExhausted) {
		record.Discrepancy = GrandTotalDiff(record)
		record.Status = StatusAcceptedWithDiscrepancy
		slog.Warn("corrections exhausted, accepting record with discrepancy",
			"discrepancy", record.Discrepancy)
		return nil
	}
	return err
}

func (r *Reconciler) run(record *Record) error {
	for _, item := range record.Items {
		if len(item.Unset) > 0 {
			if err := r.fillUnset(item); err != nil {
				return err
			}
		}
	}

	for _, item := range record.Items {
		if !TotalPriceOK(item) {
			if err := r.correctTotalPrice(item); err != nil {
				return err
			}
		}
		if item.Discounted() && !FinalPriceOK(item) {
			if err := r.correctFinalPrice(item); err != nil {
				return err
			}
		}
		if !item.Discounted() {
			item.FinalPrice = item.TotalPrice
		}
	}

	return r.reconcileTotal(record)
}

// fillUnset asks for every field that failed coercion during extraction.
func (r *Reconciler) fillUnset(item *Item) error {
	slog.Info("item has missing fields", "name", item.Name, "fields", item.Unset)
	for _, field := range append([]string(nil), item.Unset...) {
		value, err := prompt.AskDecimal(r.src,
			fmt.Sprintf("item %q is missing %s, enter a value", item.Name, field),
			r.maxAttempts)
		if err != nil {
			return err
		}
		item.SetField(field, value)
	}
	return nil
}

// correctTotalPrice loops until qty * unit price matches the total price.
// Candidate values are checked before being committed to the item.
func (r *Reconciler) correctTotalPrice(item *Item) error {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		slog.Info("total price check failed",
			"name", item.Name,
			"qty", item.Qty,
			"unit_price", item.UnitPrice,
			"total_price", item.TotalPrice)

		qty, err := r.replacement(FieldQty, item.Qty)
		if err != nil {
			return err
		}
		unit, err := r.replacement(FieldUnitPrice, item.UnitPrice)
		if err != nil {
			return err
		}
		total, err := r.replacement(FieldTotalPrice, item.TotalPrice)
		if err != nil {
			return err
		}

		if total.Equal(qty.Mul(unit).Round(2)) {
			item.Qty = qty
			item.UnitPrice = unit
			item.SetField(FieldTotalPrice, total)
			return nil
		}
	}
	return fmt.Errorf("correcting total price for %q: %w", item.Name, errAttemptsExhausted)
}

// correctFinalPrice loops until total price minus discount matches the
// final price of a discounted item.
func (r *Reconciler) correctFinalPrice(item *Item) error {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		slog.Info("final price check failed",
			"name", item.Name,
			"total_price", item.TotalPrice,
			"total_discount", item.TotalDiscount,
			"final_price", item.FinalPrice)

		total, err := r.replacement(FieldTotalPrice, item.TotalPrice)
		if err != nil {
			return err
		}
		discount, err := r.replacement(FieldTotalDiscount, *item.TotalDiscount)
		if err != nil {
			return err
		}
		final, err := r.replacement(FieldFinalPrice, item.FinalPrice)
		if err != nil {
			return err
		}

		if final.Equal(total.Sub(discount).Round(2)) {
			item.TotalPrice = total
			item.TotalDiscount = &discount
			item.FinalPrice = final
			return nil
		}
	}
	return fmt.Errorf("correcting final price for %q: %w", item.Name, errAttemptsExhausted)
}

// replacement asks for a new value for one field. An empty answer keeps the
// current value.
func (r *Reconciler) replacement(field string, current decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		answer, err := r.src.Ask(fmt.Sprintf("%s is %s, enter a new value or press Enter to keep it", field, current))
		if err != nil {
			return decimal.Decimal{}, err
		}
		if answer == "" {
			return current, nil
		}
		value, err := decimal.NewFromString(answer)
		if err == nil {
			return value, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("replacing %s: %w", field, errAttemptsExhausted)
}

// reconcileTotal compares the sum of final prices against the extracted
// receipt total and offers the operator three ways out: correct the total,
// append missing items, or accept the record as-is.
func (r *Reconciler) reconcileTotal(record *Record) error {
	for {
		diff := GrandTotalDiff(record)
		if diff.IsZero() {
			record.Discrepancy = decimal.Zero
			record.Status = StatusReconciled
			return nil
		}

		slog.Info("grand total mismatch", "total_sum", record.TotalSum, "difference", diff)

		correct, err := r.src.Confirm(fmt.Sprintf(
			"extracted total is %s and the difference is %s, is the extracted total correct?",
			record.TotalSum, diff))
		if err != nil {
			return err
		}

		if !correct {
			total, err := prompt.AskDecimal(r.src, "enter the correct total sum", r.maxAttempts)
			if err != nil {
				return err
			}
			record.TotalSum = total
			record.TotalKnown = true
			continue
		}

		add, err := r.src.Confirm("do you want to add missing items?")
		if err != nil {
			return err
		}
		if !add {
			record.Discrepancy = diff
			record.Status = StatusAcceptedWithDiscrepancy
			return nil
		}

		for {
			item, err := r.newItem()
			if err != nil {
				return err
			}
			record.Items = append(record.Items, item)

			more, err := r.src.Confirm("add another item?")
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
	}
}

// newItem builds an appended item from operator answers. The total price is
// derived from quantity and unit price; a non-zero discount derives the
// final price.
func (r *Reconciler) newItem() (*Item, error) {
	name, err := r.src.Ask("name")
	if err != nil {
		return nil, err
	}
	qty, err := prompt.AskDecimal(r.src, "quantity", r.maxAttempts)
	if err != nil {
		return nil, err
	}
	unit, err := prompt.AskDecimal(r.src, "unit price", r.maxAttempts)
	if err != nil {
		return nil, err
	}
	discount, err := prompt.AskDecimal(r.src, "total discount (0 for none)", r.maxAttempts)
	if err != nil {
		return nil, err
	}

	total := qty.Mul(unit).Round(2)
	item := &Item{
		Name:       name,
		Qty:        qty,
		UnitPrice:  unit,
		TotalPrice: total,
		FinalPrice: total,
	}
	if !discount.IsZero() {
		item.TotalDiscount = &discount
		item.FinalPrice = total.Sub(discount)
	}
	return item, nil
}
