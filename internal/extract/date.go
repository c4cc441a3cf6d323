package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02 Jan 2006",
	"01/02/2006",
}

var (
	relativeRe   = regexp.MustCompile(`(\d+)\+?\s*(minute|min|hour|hr|day|week|wk|month|mo)s?\s+ago`)
	datePrefixRe = regexp.MustCompile(`(?i)^(?:re)?posted(?:\s+on)?\s*:?\s*|^active\s+`)
)

// ParseDate resolves an absolute date or a relative phrase such as
// "3 days ago" or "yesterday" against now.
func ParseDate(text string, now time.Time) (time.Time, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return time.Time{}, false
	}
	abs := strings.TrimSpace(datePrefixRe.ReplaceAllString(text, ""))
	lower := strings.ToLower(abs)

	switch {
	case strings.HasPrefix(lower, "just"), lower == "today", lower == "new", strings.Contains(lower, "few seconds"):
		return now, true
	case lower == "yesterday":
		return now.AddDate(0, 0, -1), true
	}

	if m := relativeRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		switch m[2] {
		case "minute", "min":
			return now.Add(-time.Duration(n) * time.Minute), true
		case "hour", "hr":
			return now.Add(-time.Duration(n) * time.Hour), true
		case "day":
			return now.AddDate(0, 0, -n), true
		case "week", "wk":
			return now.AddDate(0, 0, -7*n), true
		case "month", "mo":
			return now.AddDate(0, -n, 0), true
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, abs); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
