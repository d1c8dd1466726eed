// Package money normalizes untrusted numeric input from cart payloads.
// Prices arrive as "$30", "30,00", "Q30" or plain numbers; quantities as
// numbers or numeric strings. Nothing here ever returns an error: bad input
// degrades to zero (money) or a caller-chosen default (quantity).
package money

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var nonMoney = regexp.MustCompile(`[^0-9.]`)

// Clean reduces a raw price to digits and a dot: "$30" -> "30",
// "30,00" -> "30.00". Empty results become "0".
func Clean(raw interface{}) string {
	s := strings.TrimSpace(toString(raw))
	s = strings.ReplaceAll(s, ",", ".")
	s = nonMoney.ReplaceAllString(s, "")
	if s == "" {
		return "0"
	}
	return s
}

// Normalize parses a raw price into an exact decimal, returning zero when
// nothing parsable remains.
func Normalize(raw interface{}) decimal.Decimal {
	d, err := decimal.NewFromString(Clean(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NormalizeQty parses a raw quantity, falling back to def. Callers clamp to
// a minimum of 1 themselves.
func NormalizeQty(raw interface{}, def int) int {
	switch v := raw.(type) {
	case nil:
		return def
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return n
	default:
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(v)))
		if err != nil {
			return def
		}
		return n
	}
}

func toString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; keep them exact for 2-place money.
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
