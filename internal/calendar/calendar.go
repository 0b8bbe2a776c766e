// Package calendar implements the trading-calendar gate (C2): a pure
// function of (date, market, calendar) deciding whether a market is
// open today. Grounded on original_source/src/core/trading_calendar.py,
// which fails open (treats the day as a trading day) when no calendar
// data is available for the date; this port keeps that fail-open policy
// but sources holidays from a small static table instead of an optional
// third-party calendar package, since none of the pack's repos carry an
// exchange-calendar dependency (recorded in DESIGN.md).
package calendar

import (
	"time"

	"github.com/dsa-core/dsa-core/internal/model"
)

// Timezone returns the IANA timezone used to compute "today" for a market.
func Timezone(m model.Market) string {
	switch m {
	case model.MarketCN:
		return "Asia/Shanghai"
	case model.MarketHK:
		return "Asia/Hong_Kong"
	case model.MarketUS:
		return "America/New_York"
	default:
		return "UTC"
	}
}

// holidays is a static table of known market closures, keyed by market
// and "YYYY-MM-DD". This is deliberately small; unknown dates fail open.
var holidays = map[model.Market]map[string]bool{
	model.MarketCN: {
		"2026-01-01": true, "2026-02-16": true, "2026-02-17": true, "2026-02-18": true,
		"2026-02-19": true, "2026-02-20": true, "2026-05-01": true, "2026-10-01": true,
		"2026-10-02": true, "2026-10-05": true,
	},
	model.MarketHK: {
		"2026-01-01": true, "2026-02-17": true, "2026-02-18": true, "2026-02-19": true,
		"2026-04-03": true, "2026-05-01": true, "2026-10-01": true,
	},
	model.MarketUS: {
		"2026-01-01": true, "2026-01-19": true, "2026-02-16": true, "2026-05-25": true,
		"2026-06-19": true, "2026-07-03": true, "2026-09-07": true, "2026-11-26": true,
		"2026-12-25": true,
	},
}

// IsOpen reports whether market is open on day. Weekends are always
// closed; days in the static holiday table are closed; anything else is
// fail-open (treated as a trading day), matching the Python original's
// behavior when its optional calendar dependency is unavailable.
func IsOpen(m model.Market, day time.Time) bool {
	tz, err := time.LoadLocation(Timezone(m))
	if err == nil {
		day = day.In(tz)
	}
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if tbl, ok := holidays[m]; ok {
		if tbl[day.Format("2006-01-02")] {
			return false
		}
	}
	return true
}

// OpenMarketsToday returns the set of markets open today, each evaluated
// in its own timezone.
func OpenMarketsToday(now time.Time) map[model.Market]bool {
	open := map[model.Market]bool{}
	for _, m := range []model.Market{model.MarketCN, model.MarketHK, model.MarketUS} {
		open[m] = IsOpen(m, now)
	}
	return open
}

// Partition splits tickers into those whose market is open today and
// those whose market is closed. Tickers with an unrecognized market
// fail open into runnable.
func Partition(tickers []string, open map[model.Market]bool) (runnable, skipped []string) {
	for _, t := range tickers {
		canon := model.Canonical(t)
		mkt := model.InferMarket(canon)
		if mkt == model.MarketUnknown || open[mkt] {
			runnable = append(runnable, t)
			continue
		}
		skipped = append(skipped, t)
	}
	return runnable, skipped
}

// EffectiveRegion computes the effective market-review region given the
// configured region ("cn"|"us"|"both") and the markets open today.
// Returns "" when every relevant market is closed (skip the review
// entirely). For "both" with only one of cn/us open it narrows to that
// market ("cn" or "us"); otherwise the configured value is returned.
func EffectiveRegion(configRegion string, open map[model.Market]bool) string {
	switch configRegion {
	case "us":
		if open[model.MarketUS] {
			return "us"
		}
		return ""
	case "both":
		cn, us := open[model.MarketCN], open[model.MarketUS]
		switch {
		case cn && us:
			return "both"
		case cn:
			return "cn"
		case us:
			return "us"
		default:
			return ""
		}
	default: // "cn"
		if open[model.MarketCN] {
			return "cn"
		}
		return ""
	}
}
