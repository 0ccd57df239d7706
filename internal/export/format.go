package export

import "fmt"

// formatFloat formats a float for report output with exactly 2 decimal
// places so 13.4 renders as 13.40.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatPct formats a percentage with one decimal place and a % sign.
func formatPct(f float64) string {
	return fmt.Sprintf("%.1f%%", f)
}
