package market

import (
	"math"
	"strings"
)

// DefaultPipLocation is used for symbols missing from Instruments.
const DefaultPipLocation = -4

type InstrumentMeta struct {
	Name                string
	BaseCurrency        string
	QuoteCurrency       string
	PipLocation         int
	TradeUnitsPrecision int
	MinimumTradeSize    float64
	MarginRate          float64
}

var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4, MinimumTradeSize: 1, MarginRate: 0.02},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4, MinimumTradeSize: 1, MarginRate: 0.02},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4, MinimumTradeSize: 1, MarginRate: 0.02},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4, MinimumTradeSize: 1, MarginRate: 0.02},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2, MinimumTradeSize: 1, MarginRate: 0.02},
	"EUR_JPY": {Name: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", PipLocation: -2, MinimumTradeSize: 1, MarginRate: 0.02},
}

// NormalizeSymbol maps "eur/usd" and "EURUSD"-style names with a separator to
// the canonical "EUR_USD" form.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "_", "-", "_").Replace(s)
}

// Lookup returns the instrument metadata for symbol.
func Lookup(symbol string) (InstrumentMeta, bool) {
	m, ok := Instruments[NormalizeSymbol(symbol)]
	return m, ok
}

// PipLocation returns the power of ten of one pip for symbol, falling back to
// DefaultPipLocation for unknown symbols.
func PipLocation(symbol string) int {
	if m, ok := Lookup(symbol); ok {
		return m.PipLocation
	}
	return DefaultPipLocation
}

// PipSize returns the price increment of one pip for symbol.
func PipSize(symbol string) float64 {
	return math.Pow(10, float64(PipLocation(symbol)))
}

// Currencies splits a symbol into base and quote currency. Unknown symbols
// are split on the underscore.
func Currencies(symbol string) (base, quote string, ok bool) {
	if m, found := Lookup(symbol); found {
		return m.BaseCurrency, m.QuoteCurrency, true
	}
	parts := strings.Split(NormalizeSymbol(symbol), "_")
	if len(parts) != 2 || len(parts[0]) != 3 || len(parts[1]) != 3 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// QuoteToAccount is the account-currency value of one unit of symbol's quote
// currency, derived from the symbol's own price. ok is false when neither leg
// is the account currency.
func QuoteToAccount(symbol, account string, price float64) (float64, bool) {
	base, quote, ok := Currencies(symbol)
	if !ok {
		return 0, false
	}
	account = strings.ToUpper(account)
	switch {
	case quote == account:
		return 1, true
	case base == account && price > 0:
		return 1 / price, true
	}
	return 0, false
}
