package search

import (
	"regexp"
	"strconv"

	"github.com/zakisalem/souq-bot/internal/arabic"
)

type rangeKind int

const (
	rangeLessThan rangeKind = iota
	rangeMoreThan
	rangeBetween
	rangeAround
)

type rangePattern struct {
	re   *regexp.Regexp
	kind rangeKind
}

// Buyer-query range phrases, tried in order against normalized text, so
// the hamza forms (أقل, أكثر, إلى) appear here bare.
var rangePatterns = []rangePattern{
	{regexp.MustCompile(`اقل من (\d+)`), rangeLessThan},
	{regexp.MustCompile(`اكثر من (\d+)`), rangeMoreThan},
	{regexp.MustCompile(`بين (\d+) و ?(\d+)`), rangeBetween},
	{regexp.MustCompile(`من (\d+) الي (\d+)`), rangeBetween},
	{regexp.MustCompile(`سعر (\d+)`), rangeAround},
	{regexp.MustCompile(`بـ?(\d+) جنيه`), rangeAround},
}

// ParsePriceRange extracts an explicit price range from a buyer query.
// Max of zero means unbounded. "Around N" widens to a ±20% band. The
// first matching pattern wins; ok is false when nothing matched.
func ParsePriceRange(query string) (min, max float64, ok bool) {
	normalized := arabic.Normalize(query)
	for _, pat := range rangePatterns {
		m := pat.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		a, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch pat.kind {
		case rangeLessThan:
			return 0, a, true
		case rangeMoreThan:
			return a, 0, true
		case rangeBetween:
			b, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			if b < a {
				a, b = b, a
			}
			return a, b, true
		case rangeAround:
			return a * 0.8, a * 1.2, true
		}
	}
	return 0, 0, false
}
