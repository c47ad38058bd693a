package repository

import (
	"time"
	_ "time/tzdata"
)

// marketLocation is the market's local time zone; the trading day rolls
// over at local midnight.
var marketLocation = loadLocation("Europe/Rome")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TradingDay returns the trading day (YYYY-MM-DD) for a given timestamp.
func TradingDay(ts time.Time) string {
	return ts.In(marketLocation).Format("2006-01-02")
}

// TradingDayNow returns the trading day for the current moment.
func TradingDayNow() string {
	return TradingDay(time.Now())
}
