// sitepulse-process runs the inspection pipeline offline: it parses an
// iAuditor CSV export, applies the trade mappings from the database and
// prints the computed metrics, without starting the web server. Useful
// for validating an export before uploading it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sitepulse/internal/config"
	"sitepulse/internal/dataprocessing"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

func main() {
	file := flag.String("file", "", "path to the iAuditor CSV export (required)")
	building := flag.String("building", "", "building name override")
	dbPath := flag.String("db", "", "SQLite database to read trade mappings from (optional)")
	asJSON := flag.Bool("json", false, "print the full metrics document as JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: sitepulse-process -file export.csv [-building name] [-db path] [-json]")
		os.Exit(2)
	}

	if err := run(*file, *building, *dbPath, *asJSON, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(file, building, dbPath string, asJSON bool, logger *slog.Logger) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	mappings, err := loadMappings(dbPath, logger)
	if err != nil {
		return err
	}

	processed, err := dataprocessing.NewProcessor(logger).Process(in, mappings, building)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(processed.Metrics)
	}

	printSummary(os.Stdout, processed)
	return nil
}

func loadMappings(dbPath string, logger *slog.Logger) ([]domain.TradeMapping, error) {
	if dbPath == "" {
		return nil, nil
	}
	st, err := store.Open(dbPath, 0, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	return st.ActiveMappings(context.Background())
}

func printSummary(w io.Writer, p *dataprocessing.Processed) {
	m := p.Metrics
	fmt.Fprintf(w, "Building:       %s\n", p.BuildingName)
	if p.InspectionDate != "" {
		fmt.Fprintf(w, "Inspected:      %s\n", p.InspectionDate)
	}
	fmt.Fprintf(w, "Units:          %d\n", m.TotalUnits)
	fmt.Fprintf(w, "Items:          %d (skipped rows: %d)\n", len(p.Items), p.SkippedRows)
	fmt.Fprintf(w, "Defects:        %d (%.1f%% defect rate)\n", m.TotalDefects, m.DefectRate)
	fmt.Fprintf(w, "Urgent:         %d\n", m.UrgentDefects)
	fmt.Fprintf(w, "Readiness:      %d ready / %d minor / %d major / %d extensive\n",
		m.ReadyUnits, m.MinorWorkUnits, m.MajorWorkUnits, m.ExtensiveUnits)
	for i, t := range m.SummaryTrade {
		if i == 0 {
			fmt.Fprintln(w, "Top trades:")
		}
		if i == config.TopProblemTrades {
			break
		}
		fmt.Fprintf(w, "  %-24s %d\n", t.Key, t.Count)
	}
}
