package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// ResolveCasualDate normalizes the two supported relative date expressions.
// The "day after tomorrow" branch keeps now's full time-of-day while the
// "tomorrow" branch lets an embedded clock time overwrite it; the asymmetry
// is intentional and callers rely on it. Returns false when neither
// expression is present, signaling the caller to try a general parser.
func ResolveCasualDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "day after tomorrow") {
		return now.AddDate(0, 0, 2), true
	}

	if strings.Contains(lower, "tomorrow") {
		dt := now.AddDate(0, 0, 1)
		if m := clockPattern.FindStringSubmatch(lower); m != nil {
			hour, _ := strconv.Atoi(m[1])
			minute := 0
			if m[2] != "" {
				minute, _ = strconv.Atoi(m[2])
			}
			if m[3] == "pm" && hour < 12 {
				hour += 12
			}
			dt = time.Date(dt.Year(), dt.Month(), dt.Day(), hour, minute, 0, 0, dt.Location())
		}
		return dt, true
	}

	return time.Time{}, false
}
