package domain

import (
	"sort"
	"time"
)

// Bar represents a single daily OHLCV observation for a symbol. Date is the
// trading day at UTC midnight.
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SortBars orders bars ascending by date in place.
func SortBars(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// TradingDay truncates t to UTC midnight.
func TradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddTradingDays advances t by n weekdays. Exchange holidays are not
// modeled; the result is a target date, not a settlement calendar.
func AddTradingDays(t time.Time, n int) time.Time {
	d := TradingDay(t)
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}

// DefaultWatchlist lists the equity symbols tracked out of the box.
var DefaultWatchlist = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
	"META", "TSLA", "JPM", "V", "UNH",
}

// DefaultBenchmark is the market index proxy used for relative-strength
// features and backtest comparisons.
const DefaultBenchmark = "SPY"

// DefaultHorizons are the forward-return horizons (in trading days) trained
// when none are configured.
var DefaultHorizons = []int{1, 5, 20}
