package arabic

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

// DefaultCurrency is the single unit all extracted prices are normalized to.
const DefaultCurrency = "EGP"

type Intent string

const (
	IntentBuying  Intent = "buying"
	IntentSelling Intent = "selling"
	IntentGeneral Intent = "general"
)

// PriceInfo is an extracted price, already converted to DefaultCurrency
// with any ألف/مليون multiplier applied.
type PriceInfo struct {
	Value    float64
	Text     string
	Currency string
}

// Analysis is the aggregate result of analyzing one message.
type Analysis struct {
	Keywords []string
	Price    *PriceInfo
	Category string
	Location string
	Contact  string
	Intent   Intent
}

type pricePattern struct {
	re         *regexp.Regexp
	multiplier float64
}

type categoryEntry struct {
	name     string
	keywords []string
}

type locationEntry struct {
	canonical  string
	normalized string
}

// Processor matches text against the configured word tables. All table
// entries are normalized once at compile time so they line up with
// normalized input. Reload swaps the compiled tables atomically, which
// lets configuration changes take effect without a restart.
type Processor struct {
	tables atomic.Pointer[compiledTables]
}

type compiledTables struct {
	stopWords   map[string]struct{}
	categories  []categoryEntry
	locations   []locationEntry
	buyingCues  []string
	sellingCues []string
}

// Patterns are tried in order; the first hit wins. They run against
// normalized text, so the multiplier words appear in their bare-alef
// forms and الا?ف covers both ألف and the plural آلاف.
var pricePatterns = []pricePattern{
	{regexp.MustCompile(`(\d+)\s*جنيه`), 1},
	{regexp.MustCompile(`(\d+)\s*ج\.م`), 1},
	{regexp.MustCompile(`(\d+)\s*ريال`), 1},
	{regexp.MustCompile(`(\d+)\s*درهم`), 1},
	{regexp.MustCompile(`(\d+)\s*دولار`), 1},
	{regexp.MustCompile(`(\d+)\s*يورو`), 1},
	{regexp.MustCompile(`(\d+)\s*الا?ف`), 1000},
	{regexp.MustCompile(`(\d+)\s*مليون`), 1000000},
}

var contactRe = regexp.MustCompile(`01[0-9]{9}`)

// NewProcessor builds a processor from the given tables. Empty table
// fields fall back to the defaults.
func NewProcessor(t Tables) *Processor {
	p := &Processor{}
	p.Reload(t)
	return p
}

// Reload recompiles the word tables and swaps them in atomically.
func (p *Processor) Reload(t Tables) {
	p.tables.Store(compile(t))
}

func compile(t Tables) *compiledTables {
	def := DefaultTables()
	if len(t.StopWords) == 0 {
		t.StopWords = def.StopWords
	}
	if len(t.Categories) == 0 {
		t.Categories = def.Categories
	}
	if len(t.Locations) == 0 {
		t.Locations = def.Locations
	}
	if len(t.BuyingCues) == 0 {
		t.BuyingCues = def.BuyingCues
	}
	if len(t.SellingCues) == 0 {
		t.SellingCues = def.SellingCues
	}

	c := &compiledTables{stopWords: make(map[string]struct{}, len(t.StopWords))}
	for _, w := range t.StopWords {
		c.stopWords[Normalize(w)] = struct{}{}
	}
	for _, cat := range t.Categories {
		entry := categoryEntry{name: cat.Name, keywords: make([]string, 0, len(cat.Keywords))}
		for _, kw := range cat.Keywords {
			entry.keywords = append(entry.keywords, strings.ToLower(Normalize(kw)))
		}
		c.categories = append(c.categories, entry)
	}
	seen := make(map[string]struct{}, len(t.Locations))
	for _, loc := range t.Locations {
		n := Normalize(loc)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		c.locations = append(c.locations, locationEntry{canonical: loc, normalized: n})
	}
	for _, cue := range t.BuyingCues {
		c.buyingCues = append(c.buyingCues, Normalize(cue))
	}
	for _, cue := range t.SellingCues {
		c.sellingCues = append(c.sellingCues, Normalize(cue))
	}
	return c
}

// ExtractPrice finds the first price pattern in the text and returns the
// value in DefaultCurrency. Nil means no pattern matched; that is not an
// error.
func (p *Processor) ExtractPrice(text string) *PriceInfo {
	normalized := Normalize(text)
	for _, pat := range pricePatterns {
		m := pat.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return &PriceInfo{
			Value:    value * pat.multiplier,
			Text:     m[0],
			Currency: DefaultCurrency,
		}
	}
	return nil
}

// DetectCategory returns the canonical name of the first category with a
// keyword substring hit, or "" when nothing matches.
func (p *Processor) DetectCategory(text string) string {
	normalized := strings.ToLower(Normalize(text))
	for _, c := range p.tables.Load().categories {
		for _, kw := range c.keywords {
			if strings.Contains(normalized, kw) {
				return c.name
			}
		}
	}
	return ""
}

// ExtractLocation returns the canonical list entry for the first known
// place name found in the text, not the raw text slice.
func (p *Processor) ExtractLocation(text string) string {
	normalized := Normalize(text)
	for _, loc := range p.tables.Load().locations {
		if strings.Contains(normalized, loc.normalized) {
			return loc.canonical
		}
	}
	return ""
}

// ExtractContact pulls the first Egyptian mobile number out of the text.
func (p *Processor) ExtractContact(text string) string {
	return contactRe.FindString(text)
}

// DetectIntent classifies the message as buying, selling or general.
// The selling check runs second and wins when both cue sets are present.
func (p *Processor) DetectIntent(text string) Intent {
	normalized := Normalize(text)
	intent := IntentGeneral
	for _, cue := range p.tables.Load().buyingCues {
		if strings.Contains(normalized, cue) {
			intent = IntentBuying
			break
		}
	}
	for _, cue := range p.tables.Load().sellingCues {
		if strings.Contains(normalized, cue) {
			intent = IntentSelling
			break
		}
	}
	return intent
}

// CategoryKeywordMatch reports whether any of the keywords fuzzily hits
// the keyword list of the named category: a keyword counts when it
// contains one of the category's representative words.
func (p *Processor) CategoryKeywordMatch(keywords []string, category string) bool {
	for _, c := range p.tables.Load().categories {
		if c.name != category {
			continue
		}
		for _, kw := range keywords {
			lower := strings.ToLower(Normalize(kw))
			for _, catKw := range c.keywords {
				if strings.Contains(lower, catKw) {
					return true
				}
			}
		}
		return false
	}
	return false
}

// Analyze runs every extractor over the text. It never fails: absent
// signals come back as zero values.
func (p *Processor) Analyze(text string) Analysis {
	return Analysis{
		Keywords: p.ExtractKeywords(text),
		Price:    p.ExtractPrice(text),
		Category: p.DetectCategory(text),
		Location: p.ExtractLocation(text),
		Contact:  p.ExtractContact(text),
		Intent:   p.DetectIntent(text),
	}
}

// FormatPrice renders a price the way Egyptian listings write it.
func FormatPrice(price float64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	switch {
	case price >= 1000000:
		return fmt.Sprintf("%.1f مليون %s", price/1000000, currency)
	case price >= 1000:
		return fmt.Sprintf("%.0f ألف %s", price/1000, currency)
	default:
		return fmt.Sprintf("%.0f %s", price, currency)
	}
}
