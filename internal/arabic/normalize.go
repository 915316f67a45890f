// Package arabic cleans, tokenizes and analyzes Arabic classified-ad text.
// All matching happens on normalized text: diacritics stripped, alef and
// yeh variants unified, teh marbuta folded to heh. Without that, the same
// word written two ways would never match.
package arabic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Tashkeel plus the Quranic annotation range.
	diacriticsRe = regexp.MustCompile(`[\x{064B}-\x{065F}\x{0670}\x{06D6}-\x{06ED}]`)
	alefRe       = regexp.MustCompile(`[آأإ]`)
	yehRe        = regexp.MustCompile(`[يى]`)
	// Maximal runs of Arabic-script characters (Arabic + Arabic Supplement).
	arabicWordRe = regexp.MustCompile(`[\x{0600}-\x{06FF}\x{0750}-\x{077F}]+`)
	arabicCharRe = regexp.MustCompile(`[\x{0600}-\x{06FF}\x{0750}-\x{077F}]`)
)

// Arabic-Indic digits (٠-٩) and their Eastern variants (۰-۹) fold to
// ASCII so the numeric patterns only ever see one digit set.
var digitFold = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

// Normalize cleans Arabic text for matching: whitespace runs collapsed,
// NFKC compatibility normalization, diacritics removed, letter variants
// unified. Always returns a result, possibly empty.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	text = norm.NFKC.String(text)
	text = diacriticsRe.ReplaceAllString(text, "")
	text = alefRe.ReplaceAllString(text, "ا")
	text = strings.ReplaceAll(text, "ة", "ه")
	text = yehRe.ReplaceAllString(text, "ي")
	text = digitFold.Replace(text)
	return text
}

// ExtractKeywords tokenizes normalized text into a deduplicated bag of
// meaningful Arabic words: stop words and tokens of length <= 2 are
// dropped. Order carries no meaning downstream.
func (p *Processor) ExtractKeywords(text string) []string {
	words := arabicWordRe.FindAllString(Normalize(text), -1)
	stopWords := p.tables.Load().stopWords
	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

// IsArabic reports whether at least 30% of the text is Arabic script.
func IsArabic(text string) bool {
	if text == "" {
		return false
	}
	matches := arabicCharRe.FindAllString(text, -1)
	return len(matches) > utf8.RuneCountInString(text)*3/10
}
