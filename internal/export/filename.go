package export

import (
	"fmt"
	"strings"
	"time"

	"sitepulse/internal/config"
)

// ReportFilename builds the report filename: sanitized building name
// plus a timestamp in the reporting timezone, e.g.
// "Tower-A_inspection_report_20260823_141500.xlsx".
func ReportFilename(buildingName, kind, extension string) string {
	loc, err := time.LoadLocation(config.ReportTimezone)
	if err != nil {
		loc = time.UTC
	}
	stamp := time.Now().In(loc).Format(config.ReportTimeFormat)
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(buildingName), kind, stamp, extension)
}

// sanitizeFilename keeps letters, digits, hyphens and underscores;
// spaces become hyphens, everything else is dropped.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	out := b.String()
	if len(out) > 50 {
		out = out[:50]
	}
	if out == "" {
		out = "report"
	}
	return out
}
