package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Annualization multipliers for salaries quoted per period.
const (
	hoursPerYear  = 2080
	weeksPerYear  = 52
	monthsPerYear = 12
)

var (
	salaryNumberRe = regexp.MustCompile(`(\d{1,3}(?:,\d{2,3})+|\d{1,3}(?:\.\d{3})+(?:,\d{1,2}\b)?|\d+)(?:\.(\d+))?\s*([kK])?`)
	currencyCodeRe = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|CAD|AUD|INR|JPY)\b`)
	hourlyRe       = periodRe(`hours?|hr|h`, `hourly|p/h`)
	weeklyRe       = periodRe(`weeks?|wk`, `weekly`)
	monthlyRe      = periodRe(`months?|mo`, `monthly`)
	dotGroupedRe   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?$`)
)

// periodRe matches a pay period written right after a figure ("$40/hr",
// "2,000 EUR a week", "50k monthly") or in front of a rate ("hourly rate").
// A period elsewhere in the text, as in "4 days a week", does not count.
func periodRe(units, adverb string) *regexp.Regexp {
	figure := `\d[\d,.]*\s*k?\s*(?:(?:usd|eur|gbp|cad|aud|inr|jpy)\s*)?`
	return regexp.MustCompile(`(?i)` +
		figure + `(?:/\s*|per\s+|an?\s+)(?:` + units + `)\b|` +
		figure + `(?:` + adverb + `)\b|` +
		`\b(?:` + adverb + `)\s+(?:rate|pay|wage)\b`)
}

// currencySymbols is ordered so multi-rune prefixes win over "$".
var currencySymbols = []struct{ symbol, code string }{
	{"CA$", "CAD"}, {"C$", "CAD"}, {"AU$", "AUD"}, {"A$", "AUD"},
	{"$", "USD"}, {"£", "GBP"}, {"€", "EUR"}, {"₹", "INR"}, {"¥", "JPY"},
}

// DefaultCurrency is assumed when a salary carries no currency marker.
const DefaultCurrency = "USD"

// ParseSalary extracts a salary range from free text. A single figure yields
// min == max. Hourly, weekly and monthly figures are annualized. ok is false
// when no positive figure is present.
func ParseSalary(text string) (min, max *float64, currency string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, "", false
	}

	matches := salaryNumberRe.FindAllStringSubmatch(text, -1)
	values := make([]float64, 0, 2)
	thousands := make([]bool, 0, 2)
	for _, m := range matches {
		v, err := parseFigure(m[1])
		if err != nil {
			continue
		}
		if m[2] != "" {
			frac, _ := strconv.ParseFloat("0."+m[2], 64)
			v += frac
		}
		if v <= 0 {
			continue
		}
		values = append(values, v)
		thousands = append(thousands, m[3] != "")
		if len(values) == 2 {
			break
		}
	}
	if len(values) == 0 {
		return nil, nil, "", false
	}

	// "80-100k" applies the suffix to both ends.
	anyK := false
	for _, k := range thousands {
		anyK = anyK || k
	}
	for i := range values {
		if thousands[i] || (anyK && values[i] < 1000) {
			values[i] *= 1000
		}
	}

	mult := 1.0
	switch {
	case hourlyRe.MatchString(text):
		mult = hoursPerYear
	case weeklyRe.MatchString(text):
		mult = weeksPerYear
	case monthlyRe.MatchString(text):
		mult = monthsPerYear
	}

	lo, hi := values[0]*mult, values[0]*mult
	if len(values) == 2 {
		hi = values[1] * mult
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return &lo, &hi, detectCurrency(text), true
}

// parseFigure reads "120,000", "12,00,000" and the European "50.000,50".
func parseFigure(s string) (float64, error) {
	if dotGroupedRe.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		return strconv.ParseFloat(s, 64)
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func detectCurrency(text string) string {
	if m := currencyCodeRe.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	upper := strings.ToUpper(text)
	for _, c := range currencySymbols {
		if strings.Contains(upper, c.symbol) {
			return c.code
		}
	}
	return DefaultCurrency
}
