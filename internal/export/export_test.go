package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sitepulse/pkg/contracts/domain"
)

func sampleMetrics() *domain.Metrics {
	return &domain.Metrics{
		BuildingName:   "Tower A",
		InspectionDate: "12-08-2026",
		Address:        "1 River St, Southbank, VIC",
		UnitTypes:      "1 Bed, 2 Bed",

		TotalUnits:        10,
		TotalInspections:  400,
		TotalDefects:      37,
		DefectRate:        9.3,
		AvgDefectsPerUnit: 3.7,
		UrgentDefects:     2,

		ReadyUnits:     4,
		MinorWorkUnits: 3,
		MajorWorkUnits: 2,
		ExtensiveUnits: 1,
		ReadyPct:       40,
		MinorPct:       30,
		MajorPct:       20,
		ExtensivePct:   10,

		SummaryTrade: []domain.CountRow{
			{Key: "Painter", Count: 12},
			{Key: "Carpenter", Count: 9},
			{Key: "Plumber", Count: 7},
			{Key: "Electrician", Count: 4},
			{Key: "Tiler", Count: 3},
			{Key: "Glazier", Count: 2},
		},
		SummaryUnit: []domain.CountRow{
			{Key: "101", Count: 16},
			{Key: "102", Count: 12},
		},
		UrgentDefectsTable: []domain.InspectionItem{
			{Unit: "101", Room: "Kitchen", Component: "Gas Cooktop", Trade: "Plumber", Urgency: domain.UrgencyUrgent},
		},
	}
}

func sampleDefects() []domain.Defect {
	return []domain.Defect{
		{Unit: "101", UnitType: "2 Bed", Room: "Kitchen", Component: "Benchtop", Trade: "Stonemason",
			Urgency: domain.UrgencyNormal, Status: domain.DefectOpen},
		{Unit: "102", UnitType: "1 Bed", Room: "Entry", Component: "Door", Trade: "Carpenter",
			Urgency: domain.UrgencyHigh, Status: domain.DefectAssigned, AssignedTo: "builder1"},
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Tower A", "Tower-A"},
		{"Tower A / Stage 2", "Tower-A--Stage-2"},
		{"../../etc/passwd", "etcpasswd"},
		{"", "report"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestReportFilename(t *testing.T) {
	name := ReportFilename("Tower A", "inspection_report", "xlsx")
	assert.True(t, strings.HasPrefix(name, "Tower-A_inspection_report_"))
	assert.True(t, strings.HasSuffix(name, ".xlsx"))
}

func TestPercentEncodeForDataURL(t *testing.T) {
	assert.Equal(t, "abc-_.~", percentEncodeForDataURL("abc-_.~"))
	assert.Equal(t, "a%20b", percentEncodeForDataURL("a b"))
	assert.Equal(t, "%3Chtml%3E", percentEncodeForDataURL("<html>"))
	// Multi-byte runes encode every byte.
	assert.Equal(t, "%E2%9C%93", percentEncodeForDataURL("✓"))
}

func TestBuildExcelReport(t *testing.T) {
	result, err := BuildExcelReport(sampleMetrics(), sampleDefects())
	require.NoError(t, err)
	assert.Equal(t, MimeExcel, result.MimeType)
	assert.True(t, strings.HasSuffix(result.Filename, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, summarySheet)
	assert.Contains(t, sheets, defectsSheet)
	assert.NotContains(t, sheets, "Sheet1")

	title, err := f.GetCellValue(summarySheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Building Information", title)

	building, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Tower A", building)

	unit, err := f.GetCellValue(defectsSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "101", unit)
}

func TestBuildExcelReportCapsTopTrades(t *testing.T) {
	result, err := BuildExcelReport(sampleMetrics(), nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(summarySheet)
	require.NoError(t, err)

	var tradeRows int
	var inTrades bool
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if row[0] == "Top Problem Trades" {
			inTrades = true
			continue
		}
		if inTrades && row[0] != "Trade" {
			tradeRows++
		}
	}
	// Six trades in the metrics, capped to five.
	assert.Equal(t, 5, tradeRows)
}

func TestRenderReportHTML(t *testing.T) {
	html, err := RenderReportHTML(sampleMetrics(), "inspector1")
	require.NoError(t, err)

	assert.Contains(t, html, "Tower A Pre-Settlement Inspection Report")
	assert.Contains(t, html, "1 River St, Southbank, VIC")
	assert.Contains(t, html, "inspector1")
	assert.Contains(t, html, "9.3%")
	assert.Contains(t, html, "3.70")
	assert.Contains(t, html, "Gas Cooktop")
	// Only the top five trades render.
	assert.Contains(t, html, "Tiler")
	assert.NotContains(t, html, "Glazier")
}

func TestRenderReportHTMLEscapesContent(t *testing.T) {
	m := sampleMetrics()
	m.BuildingName = "<script>alert(1)</script>"
	html, err := RenderReportHTML(m, "")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
}

func TestBuildDefectsCSV(t *testing.T) {
	result, err := BuildDefectsCSV("Tower A", sampleDefects(), CSVOptions{BOMPrefix: true})
	require.NoError(t, err)
	assert.Equal(t, MimeCSV, result.MimeType)

	require.True(t, bytes.HasPrefix(result.Data, []byte{0xEF, 0xBB, 0xBF}))

	lines := strings.Split(strings.TrimSpace(string(result.Data[3:])), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Unit,Unit Type,Room,Component")
	assert.Contains(t, lines[2], "builder1")
}

func TestBuildItemsCSV(t *testing.T) {
	items := []domain.InspectionItem{
		{Unit: "101", Room: "Kitchen", Component: "Sink", Trade: "Plumber",
			StatusClass: domain.StatusNotOK, Urgency: domain.UrgencyNormal},
		{Unit: "101", Room: "Kitchen", Component: "Benchtop", Trade: "Stonemason",
			StatusClass: domain.StatusOK, Urgency: domain.UrgencyNormal},
	}
	result, err := BuildItemsCSV("Tower A", items, CSVOptions{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "true")
	assert.Contains(t, lines[2], "false")
}
