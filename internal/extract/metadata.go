package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// shopTable maps canonical shop names to the strings they print on their
// receipts. Slice order defines the tie-break: the first match wins.
var shopTable = []struct {
	name    string
	aliases []string
}{
	{"Biedronka", []string{"biedronka"}},
	{"Rossmann", []string{"rossmann"}},
	{"Żabka", []string{"żabka", "zabka"}},
}

var (
	datePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	totalPattern = regexp.MustCompile(`SUMA PLN (\d+[,. ]+\d{2})`)
)

// ExtractShop matches the text case-insensitively against the known shop
// table and returns the canonical shop name.
func ExtractShop(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, shop := range shopTable {
		for _, alias := range shop.aliases {
			if strings.Contains(lower, alias) {
				return shop.name, true
			}
		}
	}
	return "", false
}

// ExtractDate finds the first yyyy-mm-dd date in the text.
func ExtractDate(text string) (string, bool) {
	if match := datePattern.FindString(text); match != "" {
		return match, true
	}
	return "", false
}

// validDate reports whether s is a syntactically valid yyyy-mm-dd date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// ExtractTotal finds the printed receipt total behind the "SUMA PLN"
// anchor, using the same numeric coercion as item prices.
func ExtractTotal(text string) (decimal.Decimal, bool) {
	match := totalPattern.FindStringSubmatch(text)
	if match == nil {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(canonicalPrice(match[1]))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
