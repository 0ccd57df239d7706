package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sitepulse/pkg/contracts/domain"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  domain.StatusClass
	}{
		{"empty", "", domain.StatusBlank},
		{"whitespace", "   ", domain.StatusBlank},
		{"nan literal", "NaN", domain.StatusBlank},
		{"tick mark", "✓", domain.StatusOK},
		{"heavy tick", "✔", domain.StatusOK},
		{"ok lowercase", "ok", domain.StatusOK},
		{"ok uppercase", "OK", domain.StatusOK},
		{"pass", "Pass", domain.StatusOK},
		{"passed", "passed", domain.StatusOK},
		{"good", "Good", domain.StatusOK},
		{"satisfactory", "Satisfactory", domain.StatusOK},
		{"cross", "✗", domain.StatusNotOK},
		{"x", "x", domain.StatusNotOK},
		{"fail", "FAIL", domain.StatusNotOK},
		{"not ok", "Not OK", domain.StatusNotOK},
		{"defect", "defect", domain.StatusNotOK},
		{"free text is a defect", "paint scratched near window", domain.StatusNotOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.value))
		})
	}
}

func TestClassifyUrgency(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		room      string
		component string
		want      domain.Urgency
	}{
		{"urgent keyword", "URGENT: glass cracked", "Living", "Window", domain.UrgencyUrgent},
		{"safety keyword", "safety concern with railing", "Balcony", "Balustrade", domain.UrgencyUrgent},
		{"hazard keyword", "trip hazard at threshold", "Entry", "Floor", domain.UrgencyUrgent},
		{"severe keyword", "severe water damage", "Bathroom", "Ceiling", domain.UrgencyUrgent},
		{"smoke component", "not working", "Hallway", "Smoke Detector", domain.UrgencyHigh},
		{"electrical component", "loose fitting", "Kitchen", "Electrical Outlet", domain.UrgencyHigh},
		{"gas component", "smell present", "Kitchen", "Gas Cooktop", domain.UrgencyHigh},
		{"lock component", "sticky", "Bedroom", "Door Lock", domain.UrgencyHigh},
		{"entry door", "does not close", "Entry", "Door", domain.UrgencyHigh},
		{"bedroom door is normal", "does not close", "Bedroom", "Door", domain.UrgencyNormal},
		{"plain defect", "scuffed paint", "Living", "Walls", domain.UrgencyNormal},
		// Keyword check beats the component check.
		{"urgent beats safety component", "dangerous exposed wiring", "Kitchen", "Electrical Outlet", domain.UrgencyUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyUrgency(tt.text, tt.room, tt.component))
		})
	}
}
