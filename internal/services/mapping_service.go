package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"sitepulse/internal/export"
	"sitepulse/internal/store"
	"sitepulse/pkg/contracts/domain"
)

// MappingService manages the active trade-mapping set.
type MappingService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewMappingService(s *store.Store, logger *slog.Logger) *MappingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappingService{store: s, logger: logger.With(slog.String("service", "mapping"))}
}

// List returns the active mappings.
func (s *MappingService) List(ctx context.Context) ([]domain.TradeMapping, error) {
	return s.store.ActiveMappings(ctx)
}

// Replace swaps the entire active mapping set atomically. Existing rows
// stay in the table deactivated, preserving history.
func (s *MappingService) Replace(ctx context.Context, user domain.User, mappings []domain.TradeMapping) error {
	if err := s.store.ReplaceMappings(ctx, mappings, user.Username); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "trade mappings replaced",
		slog.Int("count", len(mappings)),
		slog.String("by", user.Username))
	return s.store.AppendAudit(ctx, domain.AuditEntry{
		Username: user.Username,
		Action:   "replace_trade_mappings",
		Success:  true,
	})
}

// Upsert adds or updates a single mapping.
func (s *MappingService) Upsert(ctx context.Context, user domain.User, m domain.TradeMapping) error {
	return s.store.UpsertMapping(ctx, m, user.Username)
}

// Delete deactivates the mapping for a (room, component) pair.
func (s *MappingService) Delete(ctx context.Context, user domain.User, room, component string) error {
	return s.store.DeleteMapping(ctx, room, component)
}

// ExportCSV renders the active mapping set as a CSV download.
func (s *MappingService) ExportCSV(ctx context.Context) (*export.Result, error) {
	mappings, err := s.store.ActiveMappings(ctx)
	if err != nil {
		return nil, err
	}
	return export.BuildMappingsCSV(mappings, export.CSVOptions{BOMPrefix: true})
}

// ImportCSV replaces the active mapping set from an uploaded CSV with a
// Room, Component, Trade header. Column order is free and matching is
// case insensitive. Returns the number of mappings imported.
func (s *MappingService) ImportCSV(ctx context.Context, user domain.User, r io.Reader) (int, error) {
	mappings, err := parseMappingsCSV(r)
	if err != nil {
		return 0, err
	}
	if len(mappings) == 0 {
		return 0, fmt.Errorf("mapping file contains no rows")
	}
	if err := s.Replace(ctx, user, mappings); err != nil {
		return 0, err
	}
	return len(mappings), nil
}

func parseMappingsCSV(r io.Reader) ([]domain.TradeMapping, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		// A UTF-8 BOM survives csv parsing as part of the first cell.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	roomIdx, ok := cols["room"]
	if !ok {
		return nil, fmt.Errorf("mapping file is missing a Room column")
	}
	componentIdx, ok := cols["component"]
	if !ok {
		return nil, fmt.Errorf("mapping file is missing a Component column")
	}
	tradeIdx, ok := cols["trade"]
	if !ok {
		return nil, fmt.Errorf("mapping file is missing a Trade column")
	}

	var mappings []domain.TradeMapping
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		m := domain.TradeMapping{
			Room:      strings.TrimSpace(record[roomIdx]),
			Component: strings.TrimSpace(record[componentIdx]),
			Trade:     strings.TrimSpace(record[tradeIdx]),
		}
		if m.Room == "" && m.Component == "" && m.Trade == "" {
			continue
		}
		if m.Room == "" || m.Component == "" || m.Trade == "" {
			return nil, fmt.Errorf("line %d: room, component and trade are all required", line)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}
