package memory

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthMap = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var monthYearRe = regexp.MustCompile(
	`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december` +
		`|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\b` +
		`(?:\s+(?:of\s+)?(\d{4}))?`)

// ParseDateRange extracts a month-granularity date range from natural
// language, for filtering the archive by its date_unix field. "in
// January 2025" yields [jan 1, feb 1) as unix seconds; a bare month name
// assumes 2025, the year the archive's earliest conversations carry.
// Returns ok=false when no month is mentioned.
func ParseDateRange(text string) (start, end int64, ok bool) {
	m := monthYearRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}

	month, found := monthMap[strings.ToLower(m[1])]
	if !found {
		return 0, 0, false
	}
	year := 2025
	if m[2] != "" {
		if y, err := strconv.Atoi(m[2]); err == nil {
			year = y
		}
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from.Unix(), from.AddDate(0, 1, 0).Unix(), true
}
