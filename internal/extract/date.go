package extract

import (
	"regexp"
	"strconv"
)

// datePattern tries day-first before year-first at each position.
var datePattern = regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{4})|(\d{4})[/-](\d{2})[/-](\d{2})`)

// extractDate returns the first date found in text as YYYY-MM-DD, or today.
func (e *Extractor) extractDate(text string) string {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return e.today()
	}

	if m[1] != "" {
		day, month, year := m[1], m[2], m[3]
		if isMonthFirst(day, month) {
			day, month = month, day
		}
		return year + "-" + month + "-" + day
	}

	return m[4] + "-" + m[5] + "-" + m[6]
}

// isMonthFirst reports whether a day-first match can only be read as
// MM/DD/YYYY because its month field is larger than 12.
func isMonthFirst(day, month string) bool {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	return m > 12 && d <= 12
}
