package external

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var forecastFields = []string{"previsione", "valore", "value", "prezzo"}

// parseForecast accepts a number, a numeric string, an array (last element)
// or an object carrying one of forecastFields.
func parseForecast(body []byte) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return decimal.Zero, false
	}
	if !gjson.Valid(trimmed) {
		d, err := decimal.NewFromString(trimmed)
		return d, err == nil
	}
	return forecastValue(gjson.Parse(trimmed))
}

func forecastValue(v gjson.Result) (decimal.Decimal, bool) {
	switch {
	case v.Type == gjson.Number:
		d, err := decimal.NewFromString(v.Raw)
		return d, err == nil
	case v.Type == gjson.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.Str))
		return d, err == nil
	case v.IsArray():
		items := v.Array()
		if len(items) == 0 {
			return decimal.Zero, false
		}
		return forecastValue(items[len(items)-1])
	case v.IsObject():
		for _, field := range forecastFields {
			if f := v.Get(field); f.Exists() {
				return forecastValue(f)
			}
		}
	}
	return decimal.Zero, false
}

// parseBalance accepts a bare number, a numeric string or {"saldo": n}.
func parseBalance(body []byte) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(string(body))
	if gjson.Valid(trimmed) {
		v := gjson.Parse(trimmed)
		if v.IsObject() {
			v = v.Get("saldo")
		}
		switch v.Type {
		case gjson.Number:
			return decimal.NewFromString(v.Raw)
		case gjson.String:
			return decimal.NewFromString(strings.TrimSpace(v.Str))
		}
		return decimal.Zero, errors.New("balance reply carries no amount")
	}
	return decimal.NewFromString(trimmed)
}
