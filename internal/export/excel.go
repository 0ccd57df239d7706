package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

const (
	summarySheet = "Summary"
	defectsSheet = "Defect Data"
)

// Readiness bucket fill colours, matching the dashboard legend.
const (
	colourReady     = "#C6EFCE"
	colourMinor     = "#FFEB9C"
	colourMajor     = "#F8CBAD"
	colourExtensive = "#FFC7CE"
	colourHeader    = "#D9E1F2"
	colourTitle     = "#4472C4"
)

// BuildExcelReport renders the full inspection report workbook: a
// Summary sheet (building info, inspection summary, colour-coded
// settlement readiness, top problem trades) and a Defect Data sheet
// with every defect row.
func BuildExcelReport(m *domain.Metrics, defects []domain.Defect) (*Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, m); err != nil {
		return nil, fmt.Errorf("write summary sheet: %w", err)
	}
	if err := writeDefectsSheet(f, defects); err != nil {
		return nil, fmt.Errorf("write defects sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(summarySheet); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: ReportFilename(m.BuildingName, "inspection_report", "xlsx"),
		MimeType: MimeExcel,
	}, nil
}

func writeSummarySheet(f *excelize.File, m *domain.Metrics) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{colourTitle}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{colourHeader}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	bucketStyles := map[domain.ReadinessBucket]int{}
	for bucket, colour := range map[domain.ReadinessBucket]string{
		domain.BucketReady:     colourReady,
		domain.BucketMinorWork: colourMinor,
		domain.BucketMajorWork: colourMajor,
		domain.BucketExtensive: colourExtensive,
	} {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{colour}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		bucketStyles[bucket] = style
	}

	row := 1
	setTitle := func(text string) {
		cell := fmt.Sprintf("A%d", row)
		f.SetCellValue(summarySheet, cell, text)
		f.SetCellStyle(summarySheet, cell, fmt.Sprintf("B%d", row), titleStyle)
		row++
	}
	setPair := func(label string, value interface{}) {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), label)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), value)
		row++
	}

	setTitle("Building Information")
	setPair("Building", m.BuildingName)
	setPair("Address", m.Address)
	setPair("Inspection Date", m.InspectionDate)
	setPair("Unit Types", m.UnitTypes)
	row++

	setTitle("Inspection Summary")
	setPair("Total Units", m.TotalUnits)
	setPair("Total Inspection Points", m.TotalInspections)
	setPair("Total Defects", m.TotalDefects)
	setPair("Defect Rate", formatPct(m.DefectRate))
	setPair("Avg Defects per Unit", formatFloat(m.AvgDefectsPerUnit))
	setPair("Urgent Defects", m.UrgentDefects)
	row++

	setTitle("Settlement Readiness")
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Category")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Units")
	f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), "Share")
	f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), headerStyle)
	row++

	readiness := []struct {
		bucket domain.ReadinessBucket
		label  string
		units  int
		pct    float64
	}{
		{domain.BucketReady, fmt.Sprintf("Ready (0-%d defects)", config.ReadyMaxDefects), m.ReadyUnits, m.ReadyPct},
		{domain.BucketMinorWork, fmt.Sprintf("Minor Work (%d-%d)", config.ReadyMaxDefects+1, config.MinorWorkMaxDefects), m.MinorWorkUnits, m.MinorPct},
		{domain.BucketMajorWork, fmt.Sprintf("Major Work (%d-%d)", config.MinorWorkMaxDefects+1, config.MajorWorkMaxDefects), m.MajorWorkUnits, m.MajorPct},
		{domain.BucketExtensive, fmt.Sprintf("Extensive Work (>%d)", config.MajorWorkMaxDefects), m.ExtensiveUnits, m.ExtensivePct},
	}
	for _, r := range readiness {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), r.label)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r.units)
		f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), formatPct(r.pct))
		f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), bucketStyles[r.bucket])
		row++
	}
	row++

	setTitle("Top Problem Trades")
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), "Trade")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), "Defects")
	f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), headerStyle)
	row++

	trades := m.SummaryTrade
	if len(trades) > config.TopProblemTrades {
		trades = trades[:config.TopProblemTrades]
	}
	tradeDataStart := row
	for _, t := range trades {
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), t.Key)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), t.Count)
		row++
	}

	if len(trades) > 0 {
		chart := &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       "Defects",
				Categories: fmt.Sprintf("%s!$A$%d:$A$%d", summarySheet, tradeDataStart, row-1),
				Values:     fmt.Sprintf("%s!$B$%d:$B$%d", summarySheet, tradeDataStart, row-1),
			}},
			Title:  []excelize.RichTextRun{{Text: "Defects by Trade"}},
			Legend: excelize.ChartLegend{Position: "none"},
		}
		if err := f.AddChart(summarySheet, fmt.Sprintf("E%d", tradeDataStart), chart); err != nil {
			return err
		}
	}

	f.SetColWidth(summarySheet, "A", "A", 32)
	f.SetColWidth(summarySheet, "B", "C", 16)
	return nil
}

func writeDefectsSheet(f *excelize.File, defects []domain.Defect) error {
	if _, err := f.NewSheet(defectsSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{colourHeader}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	headers := []string{"Unit", "Unit Type", "Room", "Component", "Trade", "Urgency", "Status", "Assigned To"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(defectsSheet, cell, h)
		f.SetCellStyle(defectsSheet, cell, cell, headerStyle)
	}

	for rowIdx, d := range defects {
		values := []interface{}{
			d.Unit, d.UnitType, d.Room, d.Component, d.Trade,
			string(d.Urgency), string(d.Status), d.AssignedTo,
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(defectsSheet, cell, v)
		}
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(defectsSheet, col, col, 18)
	}
	return nil
}
