package store

import (
	"strings"
	"time"

	"github.com/nikkes174/VPNBot/internal/consts"
)

// ParseDate parses a spreadsheet date cell. Accepted layouts are DD.MM.YYYY,
// YYYY-MM-DD and DD/MM/YYYY. Empty or unparseable input yields the zero time
// rather than an error: a garbage date in the sheet means "no date".
func ParseDate(value string) time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range consts.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FormatDate renders a date the way the sheet stores it (DD.MM.YYYY).
// The zero time renders as an empty cell.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(consts.DateLayouts[0])
}

// windowEnd derives an end date for a subscription or trial window started
// today. The extra day matches how end dates have always been issued.
func windowEnd(today time.Time, days int) time.Time {
	return truncateToDay(today).AddDate(0, 0, days+1)
}
