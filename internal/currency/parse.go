package currency

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// priceCleaner strips currency symbols and whitespace before separator
// handling. TL must precede the single-rune symbols so both spellings of the
// lira marker are removed.
var priceCleaner = strings.NewReplacer(
	"TL", "",
	"$", "",
	"€", "",
	"£", "",
	"₺", "",
	" ", "",
	" ", "",
)

// ParsePrice converts provider price text to a float. Providers disagree on
// separators: when both comma and dot appear, the one further right is the
// decimal separator and the other marks thousands. A lone separator of either
// kind is treated as decimal, so "189,00" and "189.00" parse the same.
func ParsePrice(raw string) (float64, error) {
	s := priceCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("empty price %q", raw)
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q", raw)
	}
	return value, nil
}

// Round2 rounds to two decimal places, the precision prices are stored at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
