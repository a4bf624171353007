package extract

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/kmazur/paragon/internal/prompt"
	"github.com/kmazur/paragon/internal/receipt"
)

// Extractor assembles a receipt record from raw OCR text. With a prompt
// source it asks the operator to resolve coercion failures and unrecognized
// metadata; without one it degrades to sentinels and flagged items.
type Extractor struct {
	src         prompt.Source // nil in batch mode
	maxAttempts int
}

// New creates an Extractor. src may be nil for batch mode; maxAttempts
// bounds every manual-entry retry loop.
func New(src prompt.Source, maxAttempts int) *Extractor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Extractor{src: src, maxAttempts: maxAttempts}
}

// Run extracts a populated record in StatusExtracted. Only a malformed
// discount block aborts the pass; unparseable rows are dropped and
// metadata misses fall back to sentinels.
func (e *Extractor) Run(raw string) (*receipt.Record, error) {
	text := Normalize(raw)

	rows, err := Segment(text)
	if err != nil {
		return nil, fmt.Errorf("segmenting receipt text: %w", err)
	}

	record := &receipt.Record{Status: receipt.StatusExtracted}

	// Shop name and total are matched against the raw text: normalization
	// may rewrite glyphs inside them.
	record.ShopName, err = e.shopName(raw)
	if err != nil {
		return nil, err
	}
	record.ShoppingDate, err = e.shoppingDate(text)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		item, coercionErrs := ParseItem(row)
		if item == nil {
			continue
		}
		if err := e.resolveCoercion(item, coercionErrs); err != nil {
			return nil, err
		}
		record.Items = append(record.Items, item)
	}

	record.TotalSum, record.TotalKnown, err = e.totalSum(raw)
	if err != nil {
		return nil, err
	}

	slog.Info("extraction finished",
		"shop", record.ShopName,
		"date", record.ShoppingDate,
		"items", len(record.Items),
		"total_known", record.TotalKnown)
	return record, nil
}

// resolveCoercion asks the operator for every numeric substring that
// failed conversion. In batch mode the fields stay unset and the item
// stays flagged.
func (e *Extractor) resolveCoercion(item *receipt.Item, errs []*CoercionError) error {
	for _, cerr := range errs {
		if e.src == nil {
			slog.Warn("numeric coercion failed", "field", cerr.Field, "value", cerr.Value, "row", cerr.Row)
			continue
		}
		value, err := prompt.AskDecimal(e.src,
			fmt.Sprintf("invalid %s value %q in row %q, enter a valid number", cerr.Field, cerr.Value, cerr.Row),
			e.maxAttempts)
		if err != nil {
			if errors.Is(err, prompt.ErrExhausted) {
				slog.Warn("leaving field unset", "field", cerr.Field, "row", cerr.Row)
				continue
			}
			return err
		}
		item.SetField(cerr.Field, value)
	}
	return nil
}

// shopName extracts the shop name, falling back to a bounded manual-entry
// loop in interactive mode and to the sentinel otherwise. Manually entered
// names are matched against the shop table so aliases still canonicalize;
// an unmatched answer is used verbatim.
func (e *Extractor) shopName(text string) (string, error) {
	if name, ok := ExtractShop(text); ok {
		return name, nil
	}
	if e.src == nil {
		return receipt.ShopUnrecognized, nil
	}

	last := ""
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		answer, err := e.src.Ask("shop name was not recognized, enter the correct value")
		if err != nil {
			if errors.Is(err, prompt.ErrExhausted) {
				break
			}
			return "", err
		}
		if name, ok := ExtractShop(answer); ok {
			return name, nil
		}
		last = answer
	}
	if last != "" {
		return last, nil
	}
	return receipt.ShopUnrecognized, nil
}

// shoppingDate extracts the shopping date. A recognized date is confirmed
// by the operator; rejection and recognition failure route to a
// format-validated manual-entry loop.
func (e *Extractor) shoppingDate(text string) (string, error) {
	date, found := ExtractDate(text)
	if e.src == nil {
		if !found {
			return "", nil
		}
		return date, nil
	}

	if found {
		ok, err := e.src.Confirm(fmt.Sprintf("recognized shopping date is %s, is it correct?", date))
		if err != nil {
			if errors.Is(err, prompt.ErrExhausted) {
				return date, nil
			}
			return "", err
		}
		if ok {
			return date, nil
		}
	}
	return e.manualDate()
}

// manualDate asks for a yyyy-mm-dd date until it validates, bounded by the
// attempt count. Exhaustion falls back to the absent sentinel.
func (e *Extractor) manualDate() (string, error) {
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		answer, err := e.src.Ask("enter the correct date in format yyyy-mm-dd")
		if err != nil {
			if errors.Is(err, prompt.ErrExhausted) {
				break
			}
			return "", err
		}
		if validDate(answer) {
			return answer, nil
		}
		slog.Info("incorrect date format", "value", answer)
	}
	slog.Warn("shopping date left unset")
	return "", nil
}

// totalSum extracts the printed receipt total, asking for it in
// interactive mode when the anchor is missing.
func (e *Extractor) totalSum(text string) (decimal.Decimal, bool, error) {
	if total, ok := ExtractTotal(text); ok {
		return total, true, nil
	}
	if e.src == nil {
		return decimal.Decimal{}, false, nil
	}

	total, err := prompt.AskDecimal(e.src, "total sum was not recognized, enter the correct value", e.maxAttempts)
	if err != nil {
		if errors.Is(err, prompt.ErrExhausted) {
			slog.Warn("total sum left unset")
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, err
	}
	return total, true, nil
}
