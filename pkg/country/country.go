// Package country maps free-text country names onto one short English spelling.
package country

import (
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var ErrEmpty = errors.New("empty country name")

// shortNames overrides CLDR display names where the admissions tables use a shorter form.
var shortNames = map[string]string{
	"HK": "Hong Kong",
	"MO": "Macau",
	"KR": "South Korea",
	"KP": "North Korea",
	"CZ": "Czech Republic",
	"MM": "Myanmar",
	"CI": "Cote d'Ivoire",
	"PS": "Palestine",
	"VA": "Vatican",
	"TR": "Turkey",
}

var overrides = map[string]string{
	"scotland":                   "United Kingdom",
	"england":                    "United Kingdom",
	"wales":                      "United Kingdom",
	"northern ireland":           "United Kingdom",
	"great britain":              "United Kingdom",
	"britain":                    "United Kingdom",
	"uk":                         "United Kingdom",
	"u.k.":                       "United Kingdom",
	"usa":                        "United States",
	"us":                         "United States",
	"u.s.":                       "United States",
	"u.s.a.":                     "United States",
	"united states of america":   "United States",
	"america":                    "United States",
	"korea":                      "South Korea",
	"republic of korea":          "South Korea",
	"korea, republic of":         "South Korea",
	"macao":                      "Macau",
	"macau sar":                  "Macau",
	"hong kong sar":              "Hong Kong",
	"prc":                        "China",
	"people's republic of china": "China",
	"mainland china":             "China",
	"russian federation":         "Russia",
	"viet nam":                   "Vietnam",
	"iran, islamic republic of":  "Iran",
	"czechia":                    "Czech Republic",
	"turkiye":                    "Turkey",
	"türkiye":                    "Turkey",
}

// Canonicalizer is safe for concurrent use once built.
type Canonicalizer struct {
	byName map[string]string
	title  cases.Caser
}

var (
	defaultOnce sync.Once
	defaultC    *Canonicalizer
)

func Default() *Canonicalizer {
	defaultOnce.Do(func() { defaultC = New() })
	return defaultC
}

func New() *Canonicalizer {
	c := &Canonicalizer{
		byName: make(map[string]string, 300),
		title:  cases.Title(language.English),
	}
	namer := display.English.Regions()
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			code := string([]rune{a, b})
			r, err := language.ParseRegion(code)
			if err != nil || !r.IsCountry() {
				continue
			}
			full := namer.Name(r)
			if full == "" {
				continue
			}
			short := full
			if s, ok := shortNames[r.String()]; ok {
				short = s
			}
			c.byName[strings.ToLower(full)] = short
			c.byName[strings.ToLower(short)] = short
		}
	}
	return c
}

// Canonicalize returns the short name for a country given as a name, alias or ISO code.
// Unrecognised names come back title-cased rather than failing.
func (c *Canonicalizer) Canonicalize(name string) (string, error) {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if key == "" {
		return "", ErrEmpty
	}
	if v, ok := overrides[key]; ok {
		return v, nil
	}
	if v, ok := c.byName[key]; ok {
		return v, nil
	}
	if len(key) <= 3 {
		if r, err := language.ParseRegion(key); err == nil && r.IsCountry() {
			if s, ok := shortNames[r.String()]; ok {
				return s, nil
			}
			if v := display.English.Regions().Name(r); v != "" {
				return v, nil
			}
		}
	}
	return c.title.String(key), nil
}
