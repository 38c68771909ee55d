package timeseries

import (
	"math"
	"strconv"
	"strings"
)

// FormatCompact abbreviates axis values: 1500 -> "1.5k", 2000000 -> "2M".
// Values under a thousand are truncated to an integer.
func FormatCompact(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e6:
		return scaled(v, a, 1e6) + "M"
	case a >= 1e3:
		return scaled(v, a, 1e3) + "k"
	default:
		return strconv.FormatInt(int64(v), 10)
	}
}

func scaled(v, a, unit float64) string {
	prec := 0
	if math.Mod(a, unit) != 0 {
		prec = 1
	}
	return strconv.FormatFloat(v/unit, 'f', prec, 64)
}

// FormatGrouped prints v with comma thousands separators and at most three
// fraction digits, e.g. 12345.5 -> "12,345.5".
func FormatGrouped(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 3, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	var b strings.Builder
	if v < 0 && (strings.Trim(intPart, "0") != "" || frac != "") {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
