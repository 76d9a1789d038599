package institution

import (
	"regexp"
	"strings"
)

// Ordered most specific first; only the first matching pattern is applied.
var variantSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`\s+-\s+Between\b.*$`),
	regexp.MustCompile(`\s+-\s+Before\s+\d{4}.*$`),
	regexp.MustCompile(`\s+-\s+After\s+\d{4}.*$`),
	regexp.MustCompile(`\s+-\s+Percent.*$`),
	regexp.MustCompile(`\s+-\s+\d[\d.]*(\s*-\s*\d[\d.]*)?\s+[sS]cale.*$`),
}

// StripVariant removes grading-period and grading-scale suffixes such as
// "- Before 2004" or "- 10 Scale" from an institution name.
func StripVariant(name string) string {
	name = strings.TrimSpace(name)
	for _, re := range variantSuffixes {
		if loc := re.FindStringIndex(name); loc != nil {
			return strings.TrimSpace(name[:loc[0]])
		}
	}
	return name
}
