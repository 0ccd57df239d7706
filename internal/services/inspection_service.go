package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sitepulse/internal/config"
	"sitepulse/internal/dataprocessing"
	"sitepulse/internal/export"
	"sitepulse/internal/infrastructure"
	"sitepulse/internal/jobs"
	"sitepulse/internal/store"
	"sitepulse/internal/validation"
	"sitepulse/pkg/contracts/domain"
)

// InspectionService handles CSV uploads and processed-inspection access.
type InspectionService struct {
	store     *store.Store
	processor *dataprocessing.Processor
	validator *validation.UploadValidator
	queue     *jobs.Queue
	paths     *config.Paths
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger
}

// NewInspectionService wires the upload pipeline. The queue is created
// by the caller with the executor this service provides.
func NewInspectionService(s *store.Store, paths *config.Paths, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *InspectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectionService{
		store:     s,
		processor: dataprocessing.NewProcessor(logger),
		validator: validation.NewUploadValidator(config.MaxUploadBytes, logger),
		paths:     paths,
		metrics:   metrics,
		logger:    logger.With(slog.String("service", "inspection")),
	}
}

// SetQueue attaches the job queue after construction. The queue needs
// the service's executor, so the two are wired in two steps.
func (s *InspectionService) SetQueue(q *jobs.Queue) {
	s.queue = q
}

// Executor returns the processing pipeline run for each queued upload.
func (s *InspectionService) Executor() jobs.Executor {
	return jobs.ExecutorFunc(s.runJob)
}

// Upload stores the raw CSV and enqueues a processing job for it.
// buildingName overrides detection from the export when set.
func (s *InspectionService) Upload(ctx context.Context, user domain.User, filename string, content io.Reader, buildingName string) (*jobs.Job, error) {
	if err := s.validator.ValidateFilename(filename); err != nil {
		return nil, err
	}

	storedName := fmt.Sprintf("%s_%s", uuid.New().String()[:8], filepath.Base(filename))
	uploadPath := s.paths.GetUploadPath(storedName)
	if err := os.MkdirAll(filepath.Dir(uploadPath), 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	dst, err := os.Create(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	written, err := io.Copy(dst, content)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(uploadPath)
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := s.validator.ValidateStoredCSV(uploadPath); err != nil {
		os.Remove(uploadPath)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UploadsTotal.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "upload stored",
		slog.String("filename", filename),
		slog.String("path", uploadPath),
		slog.Int64("bytes", written),
		slog.String("uploaded_by", user.Username))

	job := jobs.NewJob(filename, uploadPath, buildingName, user.Username)
	if err := s.queue.Enqueue(job); err != nil {
		os.Remove(uploadPath)
		return nil, err
	}

	s.audit(ctx, user.Username, "upload_inspection", filename, true, "")
	return job, nil
}

// runJob is the queue executor: parse, classify, summarize, persist.
func (s *InspectionService) runJob(ctx context.Context, job *jobs.Job, progress func(stage string, pct int, message string)) (string, error) {
	start := time.Now()

	file, err := os.Open(job.UploadPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	progress(jobs.StageParse, 10, "parsing export")

	mappings, err := s.store.ActiveMappings(ctx)
	if err != nil {
		return "", err
	}

	progress(jobs.StageClassify, 40, "classifying inspection points")

	processed, err := s.processor.Process(file, mappings, job.BuildingName)
	if err != nil {
		if s.metrics != nil {
			infrastructure.RecordProcessingMetrics(ctx, s.metrics, job.BuildingName, 0, 0, time.Since(start), false)
		}
		return "", err
	}

	progress(jobs.StageSummarize, 70, "computing metrics")

	insp := domain.Inspection{
		ID:             uuid.New().String(),
		BuildingName:   processed.BuildingName,
		Address:        processed.Address,
		InspectionDate: processed.InspectionDate,
		UploadedBy:     job.RequestedBy,
		IsActive:       true,
		Metrics:        processed.Metrics,
		SourceFile:     job.Filename,
	}
	if building, err := s.store.GetBuildingByName(ctx, processed.BuildingName); err == nil {
		insp.BuildingID = building.ID
	}

	progress(jobs.StagePersist, 85, "saving inspection")

	if err := s.store.SaveInspection(ctx, insp, processed.Items); err != nil {
		if s.metrics != nil {
			infrastructure.RecordProcessingMetrics(ctx, s.metrics, processed.BuildingName, len(processed.Items), 0, time.Since(start), false)
		}
		return "", err
	}

	if s.metrics != nil {
		infrastructure.RecordProcessingMetrics(ctx, s.metrics,
			processed.BuildingName, len(processed.Items), processed.Metrics.TotalDefects,
			time.Since(start), true)
	}
	s.logger.InfoContext(ctx, "inspection processed",
		slog.String("inspection_id", insp.ID),
		slog.String("building", processed.BuildingName),
		slog.Int("items", len(processed.Items)),
		slog.Int("defects", processed.Metrics.TotalDefects),
		slog.Int("skipped_rows", processed.SkippedRows),
		slog.Duration("duration", time.Since(start)))

	return insp.ID, nil
}

// Job returns processing status for one job.
func (s *InspectionService) Job(id string) (*jobs.Job, error) {
	return s.queue.Get(id)
}

// Jobs lists recent jobs, newest first.
func (s *InspectionService) Jobs(filter jobs.Filter) []*jobs.Job {
	return s.queue.List(filter)
}

// CancelJob cancels a pending or running job.
func (s *InspectionService) CancelJob(ctx context.Context, user domain.User, id string) error {
	if err := s.queue.Cancel(id); err != nil {
		return err
	}
	s.audit(ctx, user.Username, "cancel_job", id, true, "")
	return nil
}

// List returns inspections visible to the user.
func (s *InspectionService) List(ctx context.Context, user domain.User, activeOnly bool) ([]domain.Inspection, error) {
	names, err := visibleBuildings(ctx, s.store, user)
	if err != nil {
		return nil, err
	}
	if names != nil && len(names) == 0 {
		return []domain.Inspection{}, nil
	}
	return s.store.ListInspections(ctx, activeOnly, names)
}

// Get returns one inspection if the user may see its building.
func (s *InspectionService) Get(ctx context.Context, user domain.User, id string) (domain.Inspection, error) {
	insp, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	ok, err := canSeeBuilding(ctx, s.store, user, insp.BuildingName)
	if err != nil {
		return domain.Inspection{}, err
	}
	if !ok {
		return domain.Inspection{}, ErrForbidden
	}
	return insp, nil
}

// Items returns the melted items of an inspection the user may see.
func (s *InspectionService) Items(ctx context.Context, user domain.User, inspectionID string) ([]domain.InspectionItem, error) {
	if _, err := s.Get(ctx, user, inspectionID); err != nil {
		return nil, err
	}
	return s.store.ListItems(ctx, inspectionID)
}

// ExportItemsCSV renders an inspection's full item list, passes and
// blanks included, as a downloadable CSV.
func (s *InspectionService) ExportItemsCSV(ctx context.Context, user domain.User, inspectionID string) (*export.Result, error) {
	insp, err := s.Get(ctx, user, inspectionID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	return export.BuildItemsCSV(insp.BuildingName, items, export.CSVOptions{BOMPrefix: true})
}

// Delete removes an inspection and its items and defects.
func (s *InspectionService) Delete(ctx context.Context, user domain.User, id string) error {
	insp, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInspection(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, user.Username, "delete_inspection", insp.BuildingName, true, "inspection "+id)
	return nil
}

func (s *InspectionService) audit(ctx context.Context, username, action, resource string, success bool, details string) {
	if err := s.store.AppendAudit(ctx, domain.AuditEntry{
		Username: username,
		Action:   action,
		Resource: resource,
		Success:  success,
		Details:  details,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", slog.String("error", err.Error()))
	}
}
