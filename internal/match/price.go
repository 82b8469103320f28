package match

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultUAHRate is the fixed UAH→USD conversion rate applied to hryvnia
// prices when no rate is configured.
const DefaultUAHRate = 41.50

// ParsePrice normalizes a raw price text to USD.
//
// All non-digit characters are stripped; a "грн" marker divides the value by
// the conversion rate, "$" (or no marker) keeps it as USD. An empty price
// normalizes to 0. Text with no digits at all is a parse error — the caller
// excludes the listing from the channel and logs it.
func ParsePrice(raw string, uahRate float64) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	if uahRate <= 0 {
		uahRate = DefaultUAHRate
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("price %q: no digits", raw)
	}
	v, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", raw, err)
	}

	if strings.Contains(raw, "грн") {
		return v / uahRate, nil
	}
	return v, nil
}
