package dataprocessing

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/pkg/contracts/domain"
)

const sampleCSV = `auditName,Lot Details_Lot Number,Title Page_Site conducted_Location,Title Page_Site conducted_Area,Title Page_Site conducted_Region,Pre-Settlement Inspection_Unit Type_Room Type,Pre-Settlement Inspection_Kitchen_Benchtop,Pre-Settlement Inspection_Kitchen_Benchtop_notes,Pre-Settlement Inspection_Kitchen_Appliances_Oven,Pre-Settlement Inspection_Entry_Door,Pre-Settlement Inspection_Bedroom_Walls.1
12-08-2026/101/Tower A,101,1 River St,Southbank,VIC,2 Bed,✓,,chipped corner,does not latch,
12-08-2026/102/Tower A,102,1 River St,Southbank,VIC,1 Bed,scratched URGENT,needs replacement,✓,✓,scuffed
`

func testLogger() *slog.Logger {
	return slog.Default()
}

func newSampleReader() *strings.Reader {
	return strings.NewReader(sampleCSV)
}

func parseSample(t *testing.T, csv string) *ParseResult {
	t.Helper()
	p := NewParser(slog.Default())
	result, err := p.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	return result
}

func TestParseMeltsWideExport(t *testing.T) {
	result := parseSample(t, sampleCSV)

	assert.Equal(t, "Tower A", result.BuildingName)
	assert.Equal(t, "12-08-2026", result.InspectionDate)
	assert.Equal(t, "1 River St, Southbank, VIC", result.Address)
	assert.Equal(t, 2, result.UnitCount)
	assert.Zero(t, result.SkippedRows)

	// 2 units x 4 inspection columns; the Unit Type metadata column is
	// dropped from the melt.
	assert.Len(t, result.Items, 8)

	byKey := map[string]domain.InspectionItem{}
	for _, item := range result.Items {
		byKey[item.Unit+"/"+item.Room+"/"+item.Component] = item
	}

	bench101 := byKey["101/Kitchen/Benchtop"]
	assert.Equal(t, domain.StatusOK, bench101.StatusClass)
	assert.Equal(t, "2 Bed", bench101.UnitType)

	// Nested component keeps the last segment.
	oven101 := byKey["101/Kitchen/Oven"]
	assert.Equal(t, domain.StatusNotOK, oven101.StatusClass)

	door101 := byKey["101/Entry/Door"]
	assert.Equal(t, domain.StatusNotOK, door101.StatusClass)
	assert.Equal(t, domain.UrgencyHigh, door101.Urgency, "entry doors escalate")

	// Urgency reads both the cell value and its notes column.
	bench102 := byKey["102/Kitchen/Benchtop"]
	assert.Equal(t, domain.UrgencyUrgent, bench102.Urgency)

	// Numbered duplicate column is normalised.
	walls102 := byKey["102/Bedroom/Walls"]
	assert.Equal(t, domain.StatusNotOK, walls102.StatusClass)

	walls101 := byKey["101/Bedroom/Walls"]
	assert.Equal(t, domain.StatusBlank, walls101.StatusClass)
}

func TestParseUnitFallbackFromAuditName(t *testing.T) {
	csv := `auditName,Pre-Settlement Inspection_Kitchen_Sink
12-08-2026/G03/Tower B,leaking
`
	result := parseSample(t, csv)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "G03", result.Items[0].Unit)
	assert.Equal(t, "Tower B", result.BuildingName)
}

func TestParseSkipsRowsWithoutUnit(t *testing.T) {
	csv := `auditName,Pre-Settlement Inspection_Kitchen_Sink
,leaking
12-08-2026/101/Tower B,ok
`
	result := parseSample(t, csv)
	assert.Equal(t, 1, result.SkippedRows)
	assert.Len(t, result.Items, 1)
}

func TestParseRejectsExportWithoutInspectionColumns(t *testing.T) {
	p := NewParser(slog.Default())
	_, err := p.Parse(strings.NewReader("auditName,other\nx,y\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no inspection columns")
}

func TestParseHandlesBOM(t *testing.T) {
	csv := "\xEF\xBB\xBF" + `auditName,Lot Details_Lot Number,Pre-Settlement Inspection_Kitchen_Sink
12-08-2026/101/Tower A,101,ok
`
	result := parseSample(t, csv)
	assert.Len(t, result.Items, 1)
}
