package dataprocessing

import (
	"strings"
	"time"

	"sitepulse/pkg/contracts/domain"
)

// okValues are inspection cell values meaning the point passed.
var okValues = map[string]bool{
	"✓": true, "✔": true,
	"ok": true, "pass": true, "passed": true,
	"good": true, "satisfactory": true,
}

// notOKValues are inspection cell values explicitly meaning a defect.
var notOKValues = map[string]bool{
	"✗": true, "✘": true, "x": true,
	"fail": true, "failed": true, "not ok": true,
	"defect": true, "issue": true,
}

// urgentKeywords in a cell value or its notes escalate the item to Urgent.
var urgentKeywords = []string{
	"urgent", "immediate", "safety", "hazard", "dangerous", "critical", "severe",
}

// safetyComponents are component keywords that make any defect High
// Priority regardless of the recorded text.
var safetyComponents = []string{
	"fire", "smoke", "electrical", "gas", "water", "security", "lock", "door handle",
}

// ClassifyStatus maps a raw inspection cell value to its status class.
// Anything non-empty that is not a recognised pass marker counts as a
// defect: inspectors write free text only when something is wrong.
func ClassifyStatus(value string) domain.StatusClass {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "nan" {
		return domain.StatusBlank
	}
	if okValues[v] {
		return domain.StatusOK
	}
	if notOKValues[v] {
		return domain.StatusNotOK
	}
	return domain.StatusNotOK
}

// ClassifyUrgency ranks an inspection item. Keyword matches in the
// recorded text win, then safety-critical components, then entry doors.
func ClassifyUrgency(text, room, component string) domain.Urgency {
	lower := strings.ToLower(text)
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return domain.UrgencyUrgent
		}
	}

	comp := strings.ToLower(component)
	for _, kw := range safetyComponents {
		if strings.Contains(comp, kw) {
			return domain.UrgencyHigh
		}
	}

	if strings.Contains(strings.ToLower(room), "entry") && strings.Contains(comp, "door") {
		return domain.UrgencyHigh
	}

	return domain.UrgencyNormal
}

// PlanCompletion schedules the remediation date for an item relative to
// base: urgent work within three days, high priority within a week,
// everything else within a fortnight.
func PlanCompletion(urgency domain.Urgency, base time.Time) time.Time {
	switch urgency {
	case domain.UrgencyUrgent:
		return base.AddDate(0, 0, 3)
	case domain.UrgencyHigh:
		return base.AddDate(0, 0, 7)
	default:
		return base.AddDate(0, 0, 14)
	}
}
