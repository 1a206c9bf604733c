package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var (
	dayMonthNameRe = regexp.MustCompile(`^(\d{1,2})[-\s/.]([A-Za-z]{3,9})\.?[-\s/.,]+(\d{2}|\d{4})$`)
	dayFirstRe     = regexp.MustCompile(`^(\d{1,2})([/.\-])(\d{1,2})([/.\-])(\d{2}|\d{4})$`)
	isoRe          = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	timeSuffixRe   = regexp.MustCompile(`(?i)[\sT]+\d{1,2}:\d{2}(?::\d{2}(?:\.\d+)?)?\s*(?:am|pm)?\s*(?:Z|[+-]\d{2}:?\d{2})?$`)
	excelSerialRe  = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// genericDateLayouts are tried after the statement-specific grammars.
var genericDateLayouts = []string{
	"2006/01/02",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Mon, 02 Jan 2006",
	"Monday, January 2, 2006",
	"20060102",
	time.RFC3339,
	time.RFC1123,
}

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// NormalizeDate converts a statement date to YYYY-MM-DD. Day-first order is
// assumed for numeric dates. Input no grammar accepts resolves to now's date.
func NormalizeDate(raw string, now time.Time) string {
	if t, ok := ParseStatementDate(raw); ok {
		return t.Format(isoDate)
	}
	return now.Format(isoDate)
}

// ParseStatementDate parses the date grammars found on bank statements.
func ParseStatementDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	s = strings.TrimSpace(timeSuffixRe.ReplaceAllString(s, ""))

	if m := dayMonthNameRe.FindStringSubmatch(s); m != nil {
		month, ok := monthsByPrefix[strings.ToLower(m[2][:3])]
		if ok {
			if t, ok := calendarDate(atoi(m[3]), month, atoi(m[1])); ok {
				return t, true
			}
		}
	}
	if m := dayFirstRe.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		if t, ok := calendarDate(atoi(m[5]), time.Month(atoi(m[3])), atoi(m[1])); ok {
			return t, true
		}
	}
	if m := isoRe.FindStringSubmatch(s); m != nil {
		if t, ok := calendarDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])); ok {
			return t, true
		}
	}
	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if excelSerialRe.MatchString(s) {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 20000 && serial <= 80000 {
			return excelEpoch.AddDate(0, 0, int(serial)), true
		}
	}
	return time.Time{}, false
}

// calendarDate builds a date, expanding two-digit years (< 50 is 20xx) and
// rejecting values that do not exist on the calendar.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if year < 100 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
