package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

var digitRunRegex = regexp.MustCompile(`[0-9][0-9,]*`)

// ParseAmount extracts the best-guess dollar amount from free text like
// "$25,000–$50,000" or "Up to $5,000". A range is represented by its upper
// bound, so the maximum digit run wins. Returns 0 when no digits are
// present ("Rolling", "See listing") and never fails.
func ParseAmount(text string) int {
	matches := digitRunRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return 0
	}

	best := 0
	for _, m := range matches {
		clean := strings.ReplaceAll(m, ",", "")
		val, err := strconv.Atoi(clean)
		if err != nil {
			// Digit run too large for int; skip rather than guess.
			continue
		}
		if val > best {
			best = val
		}
	}
	return best
}
