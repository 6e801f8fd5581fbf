// Package canonical turns raw source records into canonical catalog items:
// numeric coercion, unit normalization, and derivation of missing costs.
package canonical

import (
	"strconv"
	"strings"
)

// numericReplacer strips grouping characters the source files use:
// regular and non-breaking spaces as thousands separators, and the
// decimal comma regional exports prefer over the decimal point.
var numericReplacer = strings.NewReplacer(
	" ", "",
	" ", "",
	" ", "",
	",", ".",
)

// ParseAmount parses a monetary or consumption figure as the source files
// write it. Empty input parses as zero. The second return reports whether
// the field held a usable number.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "—" {
		return 0, true
	}
	s = numericReplacer.Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
