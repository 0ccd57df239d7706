package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"sitepulse/pkg/contracts/domain"
)

// CSVOptions configures CSV export behavior.
type CSVOptions struct {
	// BOMPrefix adds a UTF-8 BOM so Excel opens the file correctly.
	BOMPrefix bool
}

var defectCSVHeaders = []string{
	"Unit", "Unit Type", "Room", "Component", "Trade",
	"Urgency", "Status", "Assigned To", "Planned Completion",
}

// BuildDefectsCSV exports the defect register for a building as CSV.
func BuildDefectsCSV(buildingName string, defects []domain.Defect, options CSVOptions) (*Result, error) {
	var buf bytes.Buffer
	if options.BOMPrefix {
		buf.Write([]byte{0xEF, 0xBB, 0xBF})
	}

	writer := csv.NewWriter(&buf)
	if err := writer.Write(defectCSVHeaders); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}

	for i, d := range defects {
		planned := ""
		if d.PlannedCompletion != nil {
			planned = d.PlannedCompletion.Format("2006-01-02")
		}
		record := []string{
			d.Unit, d.UnitType, d.Room, d.Component, d.Trade,
			string(d.Urgency), string(d.Status), d.AssignedTo, planned,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: ReportFilename(buildingName, "defects", "csv"),
		MimeType: MimeCSV,
	}, nil
}

// BuildMappingsCSV exports the active trade-mapping set so it can be
// edited in a spreadsheet and re-imported.
func BuildMappingsCSV(mappings []domain.TradeMapping, options CSVOptions) (*Result, error) {
	var buf bytes.Buffer
	if options.BOMPrefix {
		buf.Write([]byte{0xEF, 0xBB, 0xBF})
	}

	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"Room", "Component", "Trade"}); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}
	for i, m := range mappings {
		if err := writer.Write([]string{m.Room, m.Component, m.Trade}); err != nil {
			return nil, fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: ReportFilename("trade", "mappings", "csv"),
		MimeType: MimeCSV,
	}, nil
}

// BuildItemsCSV exports every melted inspection point, including passes
// and blanks, for downstream analysis.
func BuildItemsCSV(buildingName string, items []domain.InspectionItem, options CSVOptions) (*Result, error) {
	var buf bytes.Buffer
	if options.BOMPrefix {
		buf.Write([]byte{0xEF, 0xBB, 0xBF})
	}

	writer := csv.NewWriter(&buf)
	headers := []string{"Unit", "Unit Type", "Room", "Component", "Trade", "Status", "Urgency", "Is Defect"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}

	for i, item := range items {
		record := []string{
			item.Unit, item.UnitType, item.Room, item.Component, item.Trade,
			string(item.StatusClass), string(item.Urgency), strconv.FormatBool(item.IsDefect()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: ReportFilename(buildingName, "inspection_items", "csv"),
		MimeType: MimeCSV,
	}, nil
}
