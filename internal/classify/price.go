package classify

import (
	"regexp"
	"strconv"
	"strings"
)

var priceRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice extracts a numeric value from a marketplace price string such as
// "$1,250" or "A$90.50". Listings marked free parse as zero. Returns false
// when no numeric value is present.
func ParsePrice(s string) (float64, bool) {
	if m := priceRe.FindString(s); m != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err == nil {
			return v, true
		}
	}
	if strings.Contains(strings.ToLower(s), "free") {
		return 0, true
	}
	return 0, false
}
