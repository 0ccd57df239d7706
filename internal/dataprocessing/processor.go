package dataprocessing

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

// Processor runs the full upload pipeline: parse, trade-map, summarize.
type Processor struct {
	parser *Parser
	logger *slog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{
		parser: NewParser(logger),
		logger: logger.With(slog.String("component", "processor")),
	}
}

// Processed is the complete output of one upload.
type Processed struct {
	BuildingName   string
	Address        string
	InspectionDate string
	Items          []domain.InspectionItem
	Metrics        *domain.Metrics
	SkippedRows    int
}

// Process parses the CSV, applies the active trade mappings and
// computes the metrics snapshot. buildingName overrides the name
// derived from the export when non-empty.
func (p *Processor) Process(r io.Reader, mappings []domain.TradeMapping, buildingName string) (*Processed, error) {
	parsed, err := p.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse inspection csv: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("no inspection items found in upload")
	}

	if buildingName == "" {
		buildingName = parsed.BuildingName
	}
	if buildingName == "" {
		return nil, fmt.Errorf("building name missing from upload and request")
	}

	ApplyMappings(parsed.Items, mappings)

	// Every item gets a remediation date scheduled by urgency; the
	// summarizer's lookahead windows select from these.
	now := time.Now()
	for i := range parsed.Items {
		due := PlanCompletion(parsed.Items[i].Urgency, now)
		parsed.Items[i].PlannedCompletion = &due
	}

	metrics := Summarize(parsed.Items, buildingName, parsed.InspectionDate, parsed.Address)

	p.logger.Info("inspection processed",
		slog.String("building", buildingName),
		slog.Int("units", metrics.TotalUnits),
		slog.Int("defects", metrics.TotalDefects),
		slog.Int("urgent", metrics.UrgentDefects))

	return &Processed{
		BuildingName:   buildingName,
		Address:        parsed.Address,
		InspectionDate: parsed.InspectionDate,
		Items:          parsed.Items,
		Metrics:        metrics,
		SkippedRows:    parsed.SkippedRows,
	}, nil
}

// ApplyMappings fills each item's trade from the (room, component)
// mapping table. Matching ignores case, so imported mappings line up
// with exports regardless of how either side was typed. Unmapped pairs
// get the Unknown Trade sentinel so they surface in reports instead of
// vanishing.
func ApplyMappings(items []domain.InspectionItem, mappings []domain.TradeMapping) {
	lookup := make(map[[2]string]string, len(mappings))
	for _, m := range mappings {
		lookup[mappingKey(m.Room, m.Component)] = m.Trade
	}
	for i := range items {
		if trade, ok := lookup[mappingKey(items[i].Room, items[i].Component)]; ok {
			items[i].Trade = trade
		} else {
			items[i].Trade = config.UnknownTrade
		}
	}
}

func mappingKey(room, component string) [2]string {
	return [2]string{
		strings.ToLower(strings.TrimSpace(room)),
		strings.ToLower(strings.TrimSpace(component)),
	}
}
