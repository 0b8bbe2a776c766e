package model

import (
	"regexp"
	"strings"
)

// Market identifies the exchange region a Ticker trades on.
type Market string

const (
	MarketCN      Market = "cn"
	MarketHK      Market = "hk"
	MarketUS      Market = "us"
	MarketUnknown Market = ""
)

var usStockPattern = regexp.MustCompile(`^[A-Z]{1,6}(\.[A-Z])?$`)

// Canonical uppercases and trims a raw ticker string. Idempotent:
// Canonical(Canonical(x)) == Canonical(x) for all x.
func Canonical(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	t = strings.TrimPrefix(t, "$")
	return t
}

// InferMarket determines the market for a canonical ticker using pure
// pattern matching: 6 decimal digits -> A-share, 5 digits or an
// HK-prefixed code -> Hong Kong, 1-6 letters with an optional single-dot
// suffix -> US. Unrecognized codes fail open to MarketUnknown.
func InferMarket(canonical string) Market {
	if canonical == "" {
		return MarketUnknown
	}
	if isAllDigits(canonical) && len(canonical) == 6 {
		return MarketCN
	}
	if strings.HasPrefix(canonical, "HK") && isAllDigits(strings.TrimPrefix(canonical, "HK")) {
		return MarketHK
	}
	if isAllDigits(canonical) && len(canonical) == 5 {
		return MarketHK
	}
	if usStockPattern.MatchString(canonical) {
		return MarketUS
	}
	return MarketUnknown
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// USIndexMapping maps common index aliases to the vendor-side symbol
// used when dispatching to the US data source, plus a human name.
var USIndexMapping = map[string]struct {
	Symbol string
	Name   string
}{
	"SPX":   {"^GSPC", "S&P 500"},
	"GSPC":  {"^GSPC", "S&P 500"},
	"DJI":   {"^DJI", "Dow Jones Industrial Average"},
	"DJIA":  {"^DJI", "Dow Jones Industrial Average"},
	"IXIC":  {"^IXIC", "Nasdaq Composite"},
	"NASDAQ": {"^IXIC", "Nasdaq Composite"},
	"NDX":   {"^NDX", "Nasdaq 100"},
	"VIX":   {"^VIX", "CBOE Volatility Index"},
	"RUT":   {"^RUT", "Russell 2000"},
}

// IsUSIndex reports whether the canonical ticker names a recognized US index.
func IsUSIndex(canonical string) bool {
	_, ok := USIndexMapping[strings.TrimPrefix(canonical, "^")]
	return ok
}

// usETFSymbols are common US-listed ETF tickers; unlike index aliases,
// US ETF codes are not distinguishable from single-company tickers by
// shape, so a fixed list is used instead of a pattern.
var usETFSymbols = map[string]bool{
	"SPY": true, "QQQ": true, "DIA": true, "IWM": true, "VOO": true,
	"VTI": true, "ARKK": true, "XLE": true, "XLF": true, "XLK": true,
	"GLD": true, "SLV": true, "EEM": true, "EFA": true, "TLT": true,
}

// cnETFPrefixes are the SSE/SZSE code ranges reserved for exchange-traded
// funds, distinct from the ranges used for ordinary equities.
var cnETFPrefixes = []string{"510", "511", "512", "513", "515", "516", "518", "159", "560", "561", "562", "563", "588"}

// hkETFSymbols are the handful of widely traded HK-listed ETFs/tracker
// funds, keyed without the "HK" prefix.
var hkETFSymbols = map[string]bool{"2800": true, "2828": true, "3033": true}

// IsETF reports whether canonical names an exchange-traded fund rather
// than a single company. This is distinct from IsUSIndex: a fund and an
// index are both baskets, but they use different news-search templates,
// and an index like SPX is not itself an ETF (SPY, which tracks it, is).
func IsETF(canonical string) bool {
	switch InferMarket(canonical) {
	case MarketUS:
		return usETFSymbols[canonical]
	case MarketCN:
		for _, prefix := range cnETFPrefixes {
			if strings.HasPrefix(canonical, prefix) {
				return true
			}
		}
		return false
	case MarketHK:
		return hkETFSymbols[strings.TrimPrefix(canonical, "HK")]
	default:
		return false
	}
}

// ResolveUSIndexSymbol returns the vendor symbol dispatched to the US
// data source for an index alias, or the input unchanged if it is not
// a known index.
func ResolveUSIndexSymbol(canonical string) string {
	if m, ok := USIndexMapping[strings.TrimPrefix(canonical, "^")]; ok {
		return m.Symbol
	}
	return canonical
}
