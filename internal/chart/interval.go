package chart

import (
	"fmt"
	"strings"
)

// Interval is the chart lookback selection.
type Interval int

const (
	OneDay Interval = iota
	OneWeek
	OneMonth
	OneYear
	All
)

var intervalLabels = map[Interval]string{
	OneDay:   "1G",
	OneWeek:  "1S",
	OneMonth: "1M",
	OneYear:  "1A",
	All:      "ALL",
}

var intervalAliases = map[string]Interval{
	"1g": OneDay, "1d": OneDay, "day": OneDay,
	"1s": OneWeek, "1w": OneWeek, "week": OneWeek,
	"1m": OneMonth, "month": OneMonth,
	"1a": OneYear, "1y": OneYear, "year": OneYear,
	"all": All, "": All,
}

// Intervals lists every selection in display order.
var Intervals = []Interval{OneDay, OneWeek, OneMonth, OneYear, All}

// Lookback is the number of trailing points kept; 0 means all of them.
func (i Interval) Lookback() int {
	switch i {
	case OneDay:
		return 1
	case OneWeek:
		return 7
	case OneMonth:
		return 30
	case OneYear:
		return 365
	default:
		return 0
	}
}

func (i Interval) String() string {
	if l, ok := intervalLabels[i]; ok {
		return l
	}
	return fmt.Sprintf("Interval(%d)", int(i))
}

func ParseInterval(s string) (Interval, error) {
	if i, ok := intervalAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return i, nil
	}
	return All, fmt.Errorf("unknown interval %q, expected one of 1G|1S|1M|1A|ALL", s)
}

func (i Interval) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Interval) UnmarshalText(b []byte) error {
	parsed, err := ParseInterval(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
