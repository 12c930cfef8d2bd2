package common

import (
	"strconv"
	"strings"
)

// ParseNumber converts a numeric literal to float64. Integral literals are parsed as
// integers first so that values like "7" and "-3" never round through a float parse;
// everything else goes through ParseFloat (which also accepts "nan" and "inf").
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i), nil
	}
	return strconv.ParseFloat(s, 64)
}
