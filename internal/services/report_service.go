package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/drivesync"
	"sitepulse/internal/export"
	"sitepulse/internal/infrastructure"
	"sitepulse/internal/store"
	"sitepulse/internal/websocket"
	"sitepulse/pkg/contracts/domain"
	"sitepulse/pkg/contracts/events"
)

// ReportService generates report artifacts from the active inspection
// of a building.
type ReportService struct {
	store   *store.Store
	paths   *config.Paths
	drive   *drivesync.Syncer
	hub     *websocket.Hub
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

func NewReportService(s *store.Store, paths *config.Paths, drive *drivesync.Syncer, hub *websocket.Hub, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		store:   s,
		paths:   paths,
		drive:   drive,
		hub:     hub,
		metrics: metrics,
		logger:  logger.With(slog.String("service", "report")),
	}
}

// formatPermissions maps each report format to the permission it needs
// beyond reports.generate.
var formatPermissions = map[export.Format]string{
	export.FormatExcel: auth.PermReportsExcel,
	export.FormatWord:  auth.PermReportsWord,
	export.FormatPDF:   auth.PermReportsWord,
	export.FormatCSV:   auth.PermReportsExcel,
}

// Generate builds a report for the building's active inspection.
func (s *ReportService) Generate(ctx context.Context, user domain.User, buildingName string, format export.Format) (*export.Result, error) {
	perm, ok := formatPermissions[format]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	if !auth.Can(user.Role, auth.PermReportsGenerate) || !auth.Can(user.Role, perm) {
		return nil, ErrForbidden
	}
	if visible, err := canSeeBuilding(ctx, s.store, user, buildingName); err != nil {
		return nil, err
	} else if !visible {
		return nil, ErrForbidden
	}

	insp, err := s.store.GetActiveInspection(ctx, buildingName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoActiveInspection
		}
		return nil, err
	}
	if insp.Metrics == nil {
		return nil, ErrNoActiveInspection
	}

	start := time.Now()
	result, err := s.build(ctx, user, insp, format)
	if s.metrics != nil {
		infrastructure.RecordReportMetrics(ctx, s.metrics, string(format), time.Since(start), err == nil)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "report generated",
		slog.String("building", buildingName),
		slog.String("format", string(format)),
		slog.String("filename", result.Filename),
		slog.Duration("duration", time.Since(start)))

	s.audit(ctx, user.Username, "generate_report", buildingName, string(format))
	if s.hub != nil {
		s.hub.PublishReportReady(events.ReportReady{
			InspectionID: insp.ID,
			Format:       string(format),
			Filename:     result.Filename,
		})
	}
	s.archive(ctx, result)
	s.mirror(ctx, result)

	return result, nil
}

// archive keeps a copy of the artifact in the reports directory. The
// client response streams from memory either way.
func (s *ReportService) archive(ctx context.Context, result *export.Result) {
	if s.paths == nil {
		return
	}
	path := filepath.Join(s.paths.ReportsDir, result.Filename)
	if err := os.MkdirAll(s.paths.ReportsDir, 0o755); err != nil {
		s.logger.WarnContext(ctx, "report archive failed",
			slog.String("error", err.Error()))
		return
	}
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		s.logger.WarnContext(ctx, "report archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (s *ReportService) build(ctx context.Context, user domain.User, insp domain.Inspection, format export.Format) (*export.Result, error) {
	switch format {
	case export.FormatExcel:
		defects, err := s.store.ListDefects(ctx, store.DefectFilter{InspectionID: insp.ID})
		if err != nil {
			return nil, err
		}
		return export.BuildExcelReport(insp.Metrics, defects)
	case export.FormatWord:
		return export.BuildWordReport(ctx, insp.Metrics, user.FullName)
	case export.FormatPDF:
		return export.BuildPDFReport(ctx, insp.Metrics, user.FullName)
	case export.FormatCSV:
		defects, err := s.store.ListDefects(ctx, store.DefectFilter{InspectionID: insp.ID})
		if err != nil {
			return nil, err
		}
		return export.BuildDefectsCSV(insp.BuildingName, defects, export.CSVOptions{BOMPrefix: true})
	default:
		return nil, ErrUnsupportedFormat
	}
}

// PortfolioSummary aggregates active-inspection metrics for every
// building the user may see, for the portfolio dashboard.
type PortfolioSummary struct {
	Buildings     int              `json:"buildings"`
	TotalUnits    int              `json:"total_units"`
	TotalDefects  int              `json:"total_defects"`
	ReadyUnits    int              `json:"ready_units"`
	ReadyPct      float64          `json:"ready_pct"`
	UrgentDefects int              `json:"urgent_defects"`
	PerBuilding   []domain.Metrics `json:"per_building"`
}

// Portfolio builds the cross-building summary. Requires the portfolio
// reporting permission.
func (s *ReportService) Portfolio(ctx context.Context, user domain.User) (*PortfolioSummary, error) {
	if !auth.Can(user.Role, auth.PermReportsPortfolio) {
		return nil, ErrForbidden
	}
	names, err := visibleBuildings(ctx, s.store, user)
	if err != nil {
		return nil, err
	}
	if names != nil && len(names) == 0 {
		return &PortfolioSummary{}, nil
	}

	inspections, err := s.store.ListInspections(ctx, true, names)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{}
	for _, insp := range inspections {
		if insp.Metrics == nil {
			continue
		}
		m := *insp.Metrics
		summary.Buildings++
		summary.TotalUnits += m.TotalUnits
		summary.TotalDefects += m.TotalDefects
		summary.ReadyUnits += m.ReadyUnits
		summary.UrgentDefects += m.UrgentDefects
		summary.PerBuilding = append(summary.PerBuilding, m)
	}
	if summary.TotalUnits > 0 {
		summary.ReadyPct = float64(summary.ReadyUnits) / float64(summary.TotalUnits) * 100
	}
	return summary, nil
}

// mirror pushes the artifact to Google Drive when the mirror is on.
func (s *ReportService) mirror(ctx context.Context, result *export.Result) {
	if s.drive == nil || !s.drive.Enabled() {
		return
	}
	if _, err := s.drive.Upload(ctx, result); err != nil {
		// Mirroring is best effort; the client still gets the report.
		s.logger.WarnContext(ctx, "drive mirror failed",
			slog.String("filename", result.Filename),
			slog.String("error", err.Error()))
	}
}

func (s *ReportService) audit(ctx context.Context, username, action, resource, details string) {
	if err := s.store.AppendAudit(ctx, domain.AuditEntry{
		Username: username,
		Action:   action,
		Resource: resource,
		Success:  true,
		Details:  details,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
}
