package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

// ParseResult is the melted form of one inspection CSV export.
type ParseResult struct {
	BuildingName   string
	Address        string
	InspectionDate string
	UnitCount      int
	Items          []domain.InspectionItem
	SkippedRows    int
}

// metadataRooms are pseudo-rooms in the export that describe the unit
// rather than an inspectable location. They are dropped from the melt;
// Unit Type feeds the unit_type field instead.
var metadataRooms = map[string]bool{
	"Unit Type":      true,
	"Building Type":  true,
	"Townhouse Type": true,
	"Apartment Type": true,
}

// trailingIndex strips the ".1", ".2" suffixes the export appends to
// duplicated column names.
var trailingIndex = regexp.MustCompile(`\.\d+$`)

// Parser melts wide iAuditor CSV exports into inspection items.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With(slog.String("component", "parser"))}
}

// Parse reads a CSV export and melts it. Each input row is one unit;
// each inspection column becomes one item. Rows with no resolvable
// unit number are skipped and counted.
func (p *Parser) Parse(r io.Reader) (*ParseResult, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	// Strip UTF-8 BOM, common in exports saved from Excel.
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > config.MaxCSVColumns {
		return nil, fmt.Errorf("csv has %d columns, maximum is %d", len(header), config.MaxCSVColumns)
	}

	cols := indexColumns(header)
	if len(cols.inspection) == 0 {
		return nil, fmt.Errorf("no inspection columns found (expected %q prefix)", config.InspectionColumnPrefix)
	}

	result := &ParseResult{}
	seenUnits := map[string]bool{}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		unit, date, building := extractIdentity(row, cols)
		if unit == "" {
			result.SkippedRows++
			continue
		}
		if result.BuildingName == "" && building != "" {
			result.BuildingName = building
		}
		if result.InspectionDate == "" && date != "" {
			result.InspectionDate = date
		}
		if result.Address == "" {
			result.Address = extractAddress(row, cols)
		}

		unitType := cellAt(row, cols.unitType)
		if !seenUnits[unit] {
			seenUnits[unit] = true
			result.UnitCount++
		}

		for _, ic := range cols.inspection {
			value := cellAt(row, ic.index)
			notes := cellAt(row, ic.notesIndex)

			status := ClassifyStatus(value)
			item := domain.InspectionItem{
				Unit:        unit,
				UnitType:    unitType,
				Room:        ic.room,
				Component:   ic.component,
				StatusClass: status,
				Urgency:     ClassifyUrgency(value+" "+notes, ic.room, ic.component),
			}
			result.Items = append(result.Items, item)
		}
	}

	p.logger.Info("csv parsed",
		slog.String("building", result.BuildingName),
		slog.Int("units", result.UnitCount),
		slog.Int("items", len(result.Items)),
		slog.Int("skipped_rows", result.SkippedRows))
	return result, nil
}

// inspectionColumn is one melted (room, component) column plus its
// optional notes companion column.
type inspectionColumn struct {
	index      int
	notesIndex int
	room       string
	component  string
}

type columnIndex struct {
	lotNumber      int
	titleLotNumber int
	auditName      int
	location       int
	area           int
	region         int
	unitType       int
	inspection     []inspectionColumn
}

func indexColumns(header []string) columnIndex {
	cols := columnIndex{
		lotNumber: -1, titleLotNumber: -1, auditName: -1,
		location: -1, area: -1, region: -1, unitType: -1,
	}
	notesByKey := map[string]int{}

	for i, raw := range header {
		name := strings.TrimSpace(raw)
		switch name {
		case config.LotNumberColumn:
			cols.lotNumber = i
			continue
		case config.TitleLotNumberColumn:
			cols.titleLotNumber = i
			continue
		case config.AuditNameColumn:
			cols.auditName = i
			continue
		case config.LocationColumn:
			cols.location = i
			continue
		case config.AreaColumn:
			cols.area = i
			continue
		case config.RegionColumn:
			cols.region = i
			continue
		}

		if !strings.HasPrefix(name, config.InspectionColumnPrefix) {
			continue
		}
		rest := strings.TrimPrefix(name, config.InspectionColumnPrefix)

		if strings.HasSuffix(rest, config.NotesColumnSuffix) {
			notesByKey[strings.TrimSuffix(rest, config.NotesColumnSuffix)] = i
			continue
		}

		room, component, ok := splitRoomComponent(rest)
		if !ok {
			continue
		}
		if room == "Unit Type" {
			cols.unitType = i
		}
		if metadataRooms[room] || component == "Room Type" {
			continue
		}

		cols.inspection = append(cols.inspection, inspectionColumn{
			index:      i,
			notesIndex: -1,
			room:       room,
			component:  component,
			// notes key matched after the loop, keyed on the raw rest
		})
	}

	for j := range cols.inspection {
		ic := &cols.inspection[j]
		key := strings.TrimPrefix(strings.TrimSpace(header[ic.index]), config.InspectionColumnPrefix)
		if idx, ok := notesByKey[key]; ok {
			ic.notesIndex = idx
		}
	}

	return cols
}

// splitRoomComponent splits an inspection column suffix into its room
// and component. The export formats these as "Room_Component" with the
// component possibly nested ("Kitchen_Appliances_Oven" keeps the last
// segment) and duplicated columns numbered ("Bedroom_Walls.1").
func splitRoomComponent(rest string) (room, component string, ok bool) {
	rest = trailingIndex.ReplaceAllString(rest, "")
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	room = strings.TrimSpace(parts[0])

	segments := strings.Split(parts[1], "_")
	component = strings.TrimSpace(segments[len(segments)-1])
	if room == "" || component == "" {
		return "", "", false
	}
	return room, component, true
}

// extractIdentity resolves the unit number, inspection date and building
// name for a row. Lot number columns win; the audit name ("date/unit/
// building") is the fallback.
func extractIdentity(row []string, cols columnIndex) (unit, date, building string) {
	if v := cellAt(row, cols.lotNumber); v != "" {
		unit = v
	} else if v := cellAt(row, cols.titleLotNumber); v != "" {
		unit = v
	}

	auditName := cellAt(row, cols.auditName)
	if auditName != "" {
		parts := strings.Split(auditName, "/")
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			switch {
			case looksLikeDate(part):
				if date == "" {
					date = part
				}
			case looksLikeUnit(part):
				if unit == "" {
					unit = part
				}
			case building == "":
				building = part
			}
		}
	}
	return unit, date, building
}

func extractAddress(row []string, cols columnIndex) string {
	var parts []string
	for _, idx := range []int{cols.location, cols.area, cols.region} {
		if v := cellAt(row, idx); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// looksLikeUnit accepts short tokens containing a digit, e.g. "101",
// "G02", "12A".
func looksLikeUnit(s string) bool {
	if len(s) == 0 || len(s) > 6 {
		return false
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// looksLikeDate accepts tokens with at least two date separators and a
// leading digit, e.g. "12-08-2026" or "2026.08.12".
func looksLikeDate(s string) bool {
	if len(s) < 6 || !unicode.IsDigit(rune(s[0])) {
		return false
	}
	seps := strings.Count(s, "-") + strings.Count(s, ".") + strings.Count(s, " ")
	return seps >= 2
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
