package circuit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SPICE engineering suffixes. "meg" must be matched before "m".
var suffixes = []struct {
	text   string
	factor float64
}{
	{"meg", 1e6},
	{"t", 1e12},
	{"g", 1e9},
	{"k", 1e3},
	{"m", 1e-3},
	{"u", 1e-6},
	{"n", 1e-9},
	{"p", 1e-12},
	{"f", 1e-15},
}

// ParseValue parses a SPICE number with an optional engineering suffix:
// "1k" is 1000, "10u" is 1e-5, "2.5meg" is 2.5e6. Trailing unit letters after
// the suffix are ignored the way SPICE does ("10uF" equals "10u").
func ParseValue(text string) (float64, error) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return 0, fmt.Errorf("circuit: empty value")
	}

	numEnd := len(text)
	for i, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == '+' || r == '-' {
			continue
		}
		if r == 'e' && i+1 < len(text) && (text[i+1] == '+' || text[i+1] == '-' || (text[i+1] >= '0' && text[i+1] <= '9')) {
			continue
		}
		numEnd = i
		break
	}
	base, err := strconv.ParseFloat(text[:numEnd], 64)
	if err != nil {
		return 0, fmt.Errorf("circuit: cannot parse value %q: %w", text, err)
	}

	rest := text[numEnd:]
	if rest == "" {
		return base, nil
	}
	for _, s := range suffixes {
		if strings.HasPrefix(rest, s.text) {
			return base * s.factor, nil
		}
	}
	// no suffix, just a unit letter
	return base, nil
}

// FormatValue renders a number with the shortest engineering suffix, falling
// back to scientific notation outside the suffix range.
func FormatValue(value float64) string {
	if value == 0 {
		return "0"
	}
	abs := math.Abs(value)
	for _, s := range suffixes {
		if s.factor == 1e-3 && abs >= 1 {
			// plain numbers between 1 and 1000 need no suffix
			break
		}
		scaled := value / s.factor
		if absScaled := math.Abs(scaled); absScaled >= 1 && absScaled < 1000 {
			return trimFloat(scaled) + s.text
		}
	}
	if abs >= 1 && abs < 1000 {
		return trimFloat(value)
	}
	return strconv.FormatFloat(value, 'e', -1, 64)
}

// trimFloat keeps 10 significant digits so scaled mantissas like
// 1e-5/1e-6 do not print binary-float artifacts.
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
